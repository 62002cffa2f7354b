package memory

import "time"

func nowUs() uint64 {
	return uint64(time.Now().UnixMicro())
}
