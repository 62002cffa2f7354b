package walog

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/sutradb/sutra/types"
)

// encodePayload serializes the metadata fields of entry — never Content or
// Vector, which live in the payload blob at the offset recorded in the
// AddConcept payload (see record.go doc comment and (*WAL).appendBlob).
func encodePayload(e types.WriteEntry) []byte {
	switch e.Kind {
	case types.WriteAddConcept:
		// Trailing 8 bytes are the blob file offset (0 = no blob), filled
		// in by (*WAL).appendWithTx after encodePayload runs, via
		// setBlobOffset — never by the caller.
		buf := make([]byte, addConceptPayloadLen)
		off := 0
		copy(buf[off:], e.Concept.ID[:])
		off += types.ConceptIdLen
		binary.LittleEndian.PutUint32(buf[off:], float32bits(e.Concept.Strength))
		off += 4
		binary.LittleEndian.PutUint32(buf[off:], float32bits(e.Concept.Confidence))
		off += 4
		binary.LittleEndian.PutUint64(buf[off:], e.Concept.Created)
		off += 8
		binary.LittleEndian.PutUint64(buf[off:], e.Concept.LastAccessed)
		return buf

	case types.WriteAddAssociation:
		a := e.Association
		buf := make([]byte, types.ConceptIdLen*2+1+4+4+8+8)
		off := 0
		copy(buf[off:], a.SourceID[:])
		off += types.ConceptIdLen
		copy(buf[off:], a.TargetID[:])
		off += types.ConceptIdLen
		buf[off] = byte(a.Type)
		off++
		binary.LittleEndian.PutUint32(buf[off:], float32bits(a.Weight))
		off += 4
		binary.LittleEndian.PutUint32(buf[off:], float32bits(a.Confidence))
		off += 4
		binary.LittleEndian.PutUint64(buf[off:], a.Created)
		off += 8
		binary.LittleEndian.PutUint64(buf[off:], a.LastUsed)
		return buf

	case types.WriteUpdateStrength, types.WriteRecordAccess:
		buf := make([]byte, types.ConceptIdLen+4+8)
		off := 0
		copy(buf[off:], e.TargetID[:])
		off += types.ConceptIdLen
		binary.LittleEndian.PutUint32(buf[off:], float32bits(e.NewValue))
		off += 4
		binary.LittleEndian.PutUint64(buf[off:], e.Timestamp)
		return buf

	case types.WriteDeleteConcept:
		buf := make([]byte, types.ConceptIdLen)
		copy(buf, e.TargetID[:])
		return buf

	case types.WriteBatchMarker:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(e.BatchSize))
		return buf

	default:
		return nil
	}
}

// decodePayload is the inverse of encodePayload. It never populates
// Concept.Content/Vector; callers needing the full concept must resolve
// the payload blob via blobOffset and (*WAL).readBlobAt(offset).
func decodePayload(kind types.WriteKind, seq uint64, payload []byte) (types.WriteEntry, error) {
	e := types.WriteEntry{Kind: kind, Sequence: seq}
	switch kind {
	case types.WriteAddConcept:
		if len(payload) < addConceptPayloadLen {
			return e, fmt.Errorf("add_concept payload too short: %w", types.ErrCorrupt)
		}
		off := 0
		copy(e.Concept.ID[:], payload[off:off+types.ConceptIdLen])
		off += types.ConceptIdLen
		e.Concept.Strength = float32frombits(binary.LittleEndian.Uint32(payload[off:]))
		off += 4
		e.Concept.Confidence = float32frombits(binary.LittleEndian.Uint32(payload[off:]))
		off += 4
		e.Concept.Created = binary.LittleEndian.Uint64(payload[off:])
		off += 8
		e.Concept.LastAccessed = binary.LittleEndian.Uint64(payload[off:])

	case types.WriteAddAssociation:
		want := types.ConceptIdLen*2 + 1 + 16
		if len(payload) < want {
			return e, fmt.Errorf("add_association payload too short: %w", types.ErrCorrupt)
		}
		off := 0
		copy(e.Association.SourceID[:], payload[off:off+types.ConceptIdLen])
		off += types.ConceptIdLen
		copy(e.Association.TargetID[:], payload[off:off+types.ConceptIdLen])
		off += types.ConceptIdLen
		e.Association.Type = types.AssociationType(payload[off])
		off++
		e.Association.Weight = float32frombits(binary.LittleEndian.Uint32(payload[off:]))
		off += 4
		e.Association.Confidence = float32frombits(binary.LittleEndian.Uint32(payload[off:]))
		off += 4
		e.Association.Created = binary.LittleEndian.Uint64(payload[off:])
		off += 8
		e.Association.LastUsed = binary.LittleEndian.Uint64(payload[off:])

	case types.WriteUpdateStrength, types.WriteRecordAccess:
		if len(payload) < types.ConceptIdLen+12 {
			return e, fmt.Errorf("strength/access payload too short: %w", types.ErrCorrupt)
		}
		off := 0
		copy(e.TargetID[:], payload[off:off+types.ConceptIdLen])
		off += types.ConceptIdLen
		e.NewValue = float32frombits(binary.LittleEndian.Uint32(payload[off:]))
		off += 4
		e.Timestamp = binary.LittleEndian.Uint64(payload[off:])

	case types.WriteDeleteConcept:
		if len(payload) < types.ConceptIdLen {
			return e, fmt.Errorf("delete payload too short: %w", types.ErrCorrupt)
		}
		copy(e.TargetID[:], payload[:types.ConceptIdLen])

	case types.WriteBatchMarker:
		if len(payload) < 4 {
			return e, fmt.Errorf("batch marker payload too short: %w", types.ErrCorrupt)
		}
		e.BatchSize = int(binary.LittleEndian.Uint32(payload))
	}
	return e, nil
}

// addConceptPayloadLen is the fixed size of the metadata portion of an
// AddConcept payload (id + strength + confidence + created + last_accessed),
// not counting the trailing blob-offset field appended by setBlobOffset.
const addConceptPayloadLen = types.ConceptIdLen + 4 + 4 + 8 + 8

// setBlobOffset appends (or overwrites, if already present) the trailing
// blob-offset field on an AddConcept payload built by encodePayload.
func setBlobOffset(payload []byte, offset int64) []byte {
	out := payload[:addConceptPayloadLen]
	var suffix [8]byte
	binary.LittleEndian.PutUint64(suffix[:], uint64(offset))
	return append(out, suffix[:]...)
}

// blobOffset reads back the trailing blob-offset field, if the payload is
// long enough to carry one; ok is false only for a payload too short to
// hold it. A concept with no content/vector carries offset 0 with ok true:
// offset 0 never names a real blob, because the start of the blob file is
// reserved by writing a one-byte sentinel there on blob file creation.
func blobOffset(payload []byte) (int64, bool) {
	if len(payload) < addConceptPayloadLen+8 {
		return 0, false
	}
	return int64(binary.LittleEndian.Uint64(payload[addConceptPayloadLen:])), true
}

func float32bits(f float32) uint32 {
	return math.Float32bits(f)
}

func float32frombits(b uint32) float32 {
	return math.Float32frombits(b)
}
