package mmapstore

import (
	"encoding/binary"
	"fmt"

	"github.com/sutradb/sutra/types"
)

// FileHeader layout (256 bytes, little-endian), version 2. Version 2
// extends version 1 with the semanticOff/semanticBytes fields so a
// concept's classified Metadata can be recovered from the arena file
// directly instead of requiring a full WAL replay — the resolved form of
// the third Open Question in spec.md §9.
const (
	headerSize   = 256
	fileMagic    = "SUTRAALL"
	headerVer1   = 1
	headerVer2   = 2
	conceptSize  = 128
	edgeSize     = 64
)

type fileHeader struct {
	version uint32

	conceptArenaOff   uint64
	conceptArenaCount uint64
	edgeArenaOff      uint64
	edgeArenaCount    uint64

	contentBlobOff  uint64
	contentBlobLen  uint64
	vectorBlobOff   uint64
	vectorBlobLen   uint64
	semanticBlobOff uint64 // version 2+
	semanticBlobLen uint64 // version 2+

	bloomOff   uint64
	bloomLen   uint64
	bloomK     uint64
	indexOff   uint64
	indexCount uint64

	fileSize uint64 // total allocated (possibly over-provisioned) file size
	epoch    uint64 // write epoch; incremented on every successful sync()
}

func (h *fileHeader) encode() []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:8], fileMagic)
	binary.LittleEndian.PutUint32(buf[8:12], h.version)

	off := 16
	fields := []uint64{
		h.conceptArenaOff, h.conceptArenaCount,
		h.edgeArenaOff, h.edgeArenaCount,
		h.contentBlobOff, h.contentBlobLen,
		h.vectorBlobOff, h.vectorBlobLen,
		h.semanticBlobOff, h.semanticBlobLen,
		h.bloomOff, h.bloomLen, h.bloomK,
		h.indexOff, h.indexCount,
		h.fileSize, h.epoch,
	}
	for _, f := range fields {
		binary.LittleEndian.PutUint64(buf[off:off+8], f)
		off += 8
	}
	return buf
}

func decodeHeader(buf []byte) (*fileHeader, error) {
	if len(buf) < headerSize {
		return nil, fmt.Errorf("%w: header truncated", types.ErrCorrupt)
	}
	if string(buf[0:8]) != fileMagic {
		return nil, fmt.Errorf("%w: bad mmapstore magic", types.ErrCorrupt)
	}
	h := &fileHeader{version: binary.LittleEndian.Uint32(buf[8:12])}
	if h.version != headerVer1 && h.version != headerVer2 {
		return nil, fmt.Errorf("%w: unsupported mmapstore version %d", types.ErrCorrupt, h.version)
	}

	off := 16
	read := func() uint64 {
		v := binary.LittleEndian.Uint64(buf[off : off+8])
		off += 8
		return v
	}
	h.conceptArenaOff = read()
	h.conceptArenaCount = read()
	h.edgeArenaOff = read()
	h.edgeArenaCount = read()
	h.contentBlobOff = read()
	h.contentBlobLen = read()
	h.vectorBlobOff = read()
	h.vectorBlobLen = read()
	h.semanticBlobOff = read()
	h.semanticBlobLen = read()
	h.bloomOff = read()
	h.bloomLen = read()
	h.bloomK = read()
	h.indexOff = read()
	h.indexCount = read()
	h.fileSize = read()
	h.epoch = read()
	return h, nil
}

// conceptRecord is the fixed 128-byte on-disk representation of a
// ConceptNode's scalar fields; Content/Vector/Semantic live in their own
// blob regions addressed by offset+length here.
type conceptRecord struct {
	id           types.ConceptId // 16
	strength     float32
	confidence   float32
	accessCount  uint32
	lastAccessed uint64
	created      uint64
	contentOff   uint64
	contentLen   uint32
	vectorOff    uint64
	vectorLen    uint32
	semanticOff  uint64
	semanticLen  uint32
	neighborOff  uint64 // offset into edge arena of first outgoing edge
	neighborLen  uint32
}

func (c conceptRecord) encode() []byte {
	buf := make([]byte, conceptSize)
	off := 0
	copy(buf[off:], c.id[:])
	off += types.ConceptIdLen
	binary.LittleEndian.PutUint32(buf[off:], floatBits(c.strength))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], floatBits(c.confidence))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], c.accessCount)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], c.lastAccessed)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], c.created)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], c.contentOff)
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], c.contentLen)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], c.vectorOff)
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], c.vectorLen)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], c.semanticOff)
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], c.semanticLen)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], c.neighborOff)
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], c.neighborLen)
	return buf
}

func decodeConceptRecord(buf []byte) conceptRecord {
	var c conceptRecord
	off := 0
	copy(c.id[:], buf[off:off+types.ConceptIdLen])
	off += types.ConceptIdLen
	c.strength = floatFromBits(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	c.confidence = floatFromBits(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	c.accessCount = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	c.lastAccessed = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	c.created = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	c.contentOff = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	c.contentLen = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	c.vectorOff = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	c.vectorLen = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	c.semanticOff = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	c.semanticLen = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	c.neighborOff = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	c.neighborLen = binary.LittleEndian.Uint32(buf[off:])
	return c
}

// edgeRecord is the fixed 64-byte on-disk representation of one
// AssociationRecord.
type edgeRecord struct {
	sourceID   types.ConceptId
	targetID   types.ConceptId
	assocType  uint8
	weight     float32
	confidence float32
	created    uint64
	lastUsed   uint64
}

func (e edgeRecord) encode() []byte {
	buf := make([]byte, edgeSize)
	off := 0
	copy(buf[off:], e.sourceID[:])
	off += types.ConceptIdLen
	copy(buf[off:], e.targetID[:])
	off += types.ConceptIdLen
	buf[off] = e.assocType
	off++
	off += 3 // padding to 4-byte align the floats
	binary.LittleEndian.PutUint32(buf[off:], floatBits(e.weight))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], floatBits(e.confidence))
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], e.created)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], e.lastUsed)
	return buf
}

func decodeEdgeRecord(buf []byte) edgeRecord {
	var e edgeRecord
	off := 0
	copy(e.sourceID[:], buf[off:off+types.ConceptIdLen])
	off += types.ConceptIdLen
	copy(e.targetID[:], buf[off:off+types.ConceptIdLen])
	off += types.ConceptIdLen
	e.assocType = buf[off]
	off++
	off += 3
	e.weight = floatFromBits(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	e.confidence = floatFromBits(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	e.created = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	e.lastUsed = binary.LittleEndian.Uint64(buf[off:])
	return e
}
