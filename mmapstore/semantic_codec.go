package mmapstore

import (
	"encoding/binary"

	"github.com/sutradb/sutra/semantic"
)

// encodeSemantic serializes m into the compact representation stored in
// the semantic blob region (version 2+ only, spec.md §9 resolved open
// question 3). A nil m encodes to a zero-length slice, which decodeSemantic
// treats as "no metadata" on both a fresh write and a version-1 file that
// never had the field at all.
func encodeSemantic(m *semantic.Metadata) []byte {
	if m == nil {
		return nil
	}
	buf := make([]byte, 0, 64)
	buf = append(buf, byte(m.SemanticType), byte(m.Domain))

	if m.TemporalBounds == nil {
		buf = append(buf, 0)
	} else {
		buf = append(buf, 1)
		buf = appendOptionalI64(buf, m.TemporalBounds.StartUnix)
		buf = appendOptionalI64(buf, m.TemporalBounds.EndUnix)
		buf = append(buf, byte(m.TemporalBounds.Relation))
	}

	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(m.CausalRelations)))
	buf = append(buf, countBuf[:]...)
	for _, c := range m.CausalRelations {
		buf = append(buf, byte(c.Type))
		buf = appendF32(buf, c.Strength)
		buf = appendF32(buf, c.Confidence)
	}

	if m.Negation == nil {
		buf = append(buf, 0)
	} else {
		buf = append(buf, 1)
		var idCount [4]byte
		binary.LittleEndian.PutUint32(idCount[:], uint32(len(m.Negation.NegatedConceptIDs)))
		buf = append(buf, idCount[:]...)
		for _, id := range m.Negation.NegatedConceptIDs {
			var l [4]byte
			binary.LittleEndian.PutUint32(l[:], uint32(len(id)))
			buf = append(buf, l[:]...)
			buf = append(buf, id...)
		}
		buf = appendF32(buf, m.Negation.Confidence)
		buf = append(buf, byte(m.Negation.Type))
	}

	buf = appendF32(buf, m.ClassificationConfidence)
	return buf
}

// decodeSemantic is the inverse of encodeSemantic. An empty payload
// decodes to nil: no metadata.
func decodeSemantic(buf []byte) *semantic.Metadata {
	if len(buf) == 0 {
		return nil
	}
	off := 0
	m := &semantic.Metadata{
		SemanticType: semantic.Type(buf[off]),
		Domain:       semantic.Domain(buf[off+1]),
	}
	off += 2

	hasTemporal := buf[off]
	off++
	if hasTemporal == 1 {
		var tb semantic.TemporalBounds
		tb.StartUnix, off = readOptionalI64(buf, off)
		tb.EndUnix, off = readOptionalI64(buf, off)
		tb.Relation = semantic.TemporalRelation(buf[off])
		off++
		m.TemporalBounds = &tb
	}

	count := binary.LittleEndian.Uint32(buf[off:])
	off += 4
	for i := uint32(0); i < count; i++ {
		t := semantic.CausalType(buf[off])
		off++
		strength := readF32(buf, off)
		off += 4
		confidence := readF32(buf, off)
		off += 4
		m.CausalRelations = append(m.CausalRelations, semantic.CausalRelation{Type: t, Strength: strength, Confidence: confidence})
	}

	hasNegation := buf[off]
	off++
	if hasNegation == 1 {
		var ns semantic.NegationScope
		idCount := binary.LittleEndian.Uint32(buf[off:])
		off += 4
		for i := uint32(0); i < idCount; i++ {
			l := binary.LittleEndian.Uint32(buf[off:])
			off += 4
			ns.NegatedConceptIDs = append(ns.NegatedConceptIDs, string(buf[off:off+int(l)]))
			off += int(l)
		}
		ns.Confidence = readF32(buf, off)
		off += 4
		ns.Type = semantic.NegationType(buf[off])
		off++
		m.Negation = &ns
	}

	m.ClassificationConfidence = readF32(buf, off)
	return m
}

func appendF32(buf []byte, f float32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], floatBits(f))
	return append(buf, b[:]...)
}

func readF32(buf []byte, off int) float32 {
	return floatFromBits(binary.LittleEndian.Uint32(buf[off:]))
}

func appendOptionalI64(buf []byte, v *int64) []byte {
	if v == nil {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(*v))
	return append(buf, b[:]...)
}

func readOptionalI64(buf []byte, off int) (*int64, int) {
	present := buf[off]
	off++
	if present == 0 {
		return nil, off
	}
	v := int64(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	return &v, off
}
