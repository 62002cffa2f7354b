package memory

import (
	"sync"
	"time"

	hdrhistogram "github.com/HdrHistogram/hdrhistogram-go"
)

// op identifies one of the coordinator's latency-tracked call groups.
type op int

const (
	opLearn op = iota
	opQuery
	opFlush
	opCount
)

// latencyMinUs/MaxUs/SigFigs bound the HdrHistogram the way the teacher's
// own histogram-backed metrics are sized: generous enough to cover a
// pathological multi-second flush without clipping, precise enough at the
// microsecond end to distinguish a fast in-memory query from a cache miss.
const (
	latencyMinUs   = 1
	latencyMaxUs   = 10 * 1000 * 1000 // 10s
	latencySigFigs = 3
)

// opLatency wraps one HdrHistogram with a mutex, since Histogram.RecordValue
// is not safe for concurrent callers and every write/read API call records
// into the same shared instance per op group.
type opLatency struct {
	mu   sync.Mutex
	hist *hdrhistogram.Histogram
}

func newOpLatency() *opLatency {
	return &opLatency{hist: hdrhistogram.New(latencyMinUs, latencyMaxUs, latencySigFigs)}
}

func (o *opLatency) record(us int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	_ = o.hist.RecordValue(us)
}

func (o *opLatency) snapshot() OpLatencyStats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return OpLatencyStats{
		Count:  o.hist.TotalCount(),
		MeanUs: o.hist.Mean(),
		P50Us:  o.hist.ValueAtQuantile(50),
		P99Us:  o.hist.ValueAtQuantile(99),
	}
}

// latencies owns one opLatency per tracked call group.
type latencies struct {
	byOp [opCount]*opLatency
}

func newLatencies() *latencies {
	l := &latencies{}
	for i := range l.byOp {
		l.byOp[i] = newOpLatency()
	}
	return l
}

// start begins timing one call; the returned func records the elapsed
// microseconds when deferred at the top of the calling method.
func (l *latencies) start(o op) func() {
	begin := time.Now()
	return func() {
		l.byOp[o].record(time.Since(begin).Microseconds())
	}
}

func (l *latencies) snapshot() LatencySnapshot {
	return LatencySnapshot{
		Learn: l.byOp[opLearn].snapshot(),
		Query: l.byOp[opQuery].snapshot(),
		Flush: l.byOp[opFlush].snapshot(),
	}
}

// OpLatencyStats is a point-in-time percentile summary for one call group.
type OpLatencyStats struct {
	Count  int64
	MeanUs float64
	P50Us  int64
	P99Us  int64
}

// LatencySnapshot is the full set of tracked call-group latencies,
// embedded in Stats (spec.md §4.9's HdrHistogram ambient exception).
type LatencySnapshot struct {
	Learn OpLatencyStats
	Query OpLatencyStats
	Flush OpLatencyStats
}
