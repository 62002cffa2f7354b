package walog

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/sutradb/sutra/types"
)

// Record framing on disk, little-endian throughout:
//
//	length     uint32   // bytes of (sequence..payload), not including itself
//	sequence   uint64
//	txMarker   uint8    // txNone | txBegin | txCommit | txAbort
//	kind       uint8    // types.WriteKind
//	checksum   uint32   // CRC32 (IEEE) over sequence|txMarker|kind|payload
//	payload    []byte   // kind-dependent encoding, see encodePayload
//
// Payloads never carry concept content or vectors (the "metadata only"
// rule from spec.md §9): AddConcept records the concept id, strength,
// confidence and timestamps but stores content/vector in the payload blob
// file (payload.blob) at a byte offset stored in the payload so replay can reconstruct
// the full ConcurrentMemory state without bloating the WAL itself. This
// is the resolved form of the first Open Question in spec.md §9.
const (
	txNone uint8 = iota
	txBegin
	txCommit
	txAbort
)

const recordHeaderLen = 4 + 8 + 1 + 1 + 4 // length + sequence + txMarker + kind + checksum

type record struct {
	sequence uint64
	tx       uint8
	kind     types.WriteKind
	payload  []byte
}

func checksum(seq uint64, tx uint8, kind types.WriteKind, payload []byte) uint32 {
	h := crc32.NewIEEE()
	var hdr [10]byte
	binary.LittleEndian.PutUint64(hdr[0:8], seq)
	hdr[8] = tx
	hdr[9] = byte(kind)
	h.Write(hdr[:])
	h.Write(payload)
	return h.Sum32()
}

// encode serializes r into a freshly allocated buffer ready to append to
// the log file.
func (r record) encode() []byte {
	body := make([]byte, 8+1+1+4+len(r.payload))
	binary.LittleEndian.PutUint64(body[0:8], r.sequence)
	body[8] = r.tx
	body[9] = byte(r.kind)
	cs := checksum(r.sequence, r.tx, r.kind, r.payload)
	binary.LittleEndian.PutUint32(body[10:14], cs)
	copy(body[14:], r.payload)

	out := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(body)))
	copy(out[4:], body)
	return out
}

// decodeRecord parses one record from buf, returning the record and the
// number of bytes consumed. types.ErrCorrupt is returned for a checksum
// mismatch; io.ErrUnexpectedEOF-style truncation is signaled by returning
// (record{}, 0, nil) so the caller can treat it as "torn tail, stop
// replaying" rather than a hard error.
func decodeRecord(buf []byte) (record, int, error) {
	if len(buf) < 4 {
		return record{}, 0, nil
	}
	length := binary.LittleEndian.Uint32(buf[0:4])
	total := 4 + int(length)
	if len(buf) < total || length < 14 {
		return record{}, 0, nil
	}
	body := buf[4:total]
	seq := binary.LittleEndian.Uint64(body[0:8])
	tx := body[8]
	kind := types.WriteKind(body[9])
	wantCS := binary.LittleEndian.Uint32(body[10:14])
	payload := body[14:]

	gotCS := checksum(seq, tx, kind, payload)
	if gotCS != wantCS {
		return record{}, 0, types.ErrCorrupt
	}
	return record{sequence: seq, tx: tx, kind: kind, payload: append([]byte(nil), payload...)}, total, nil
}
