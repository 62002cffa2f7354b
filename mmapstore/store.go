// Package mmapstore implements the single-file, arena-based on-disk
// concept/edge store described in spec.md §4.6: a 256-byte FileHeader
// followed by independently-growable regions (concept arena, edge arena,
// content blob, vector blob, and — version 2 — semantic blob), a
// FNV-1a-double-hashing Bloom filter, and a ConceptId→offset index
// footer. The file is mapped writable via edsrzf/mmap-go. Every region is
// rewritten wholesale by WriteSnapshot on each flush checkpoint, so
// layout never needs incremental in-place growth: region offsets are
// simply recomputed from the snapshot's total size and the file is
// truncated/remapped to fit.
package mmapstore

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/edsrzf/mmap-go"

	"github.com/sutradb/sutra/types"
)

const initialFileSize = 64 * 1024 // 64KiB for a fresh file; WriteSnapshot resizes to the exact layout

type region struct {
	offset   uint64
	capacity uint64
	used     uint64
}

// Store is the mmap-backed single-file concept/edge store.
type Store struct {
	mu   sync.RWMutex
	file *os.File
	m    mmap.MMap

	header fileHeader

	concepts region
	edges    region
	content  region
	vectors  region
	semantic region

	bloom       *bloomFilter
	index       map[types.ConceptId]int64 // concept id -> absolute offset in concept arena
	indexDirty  bool
}

// Open opens (creating if necessary) the store file at path.
func Open(path string) (*Store, error) {
	fresh := false
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if os.IsNotExist(err) {
		f, err = os.Create(path)
		fresh = true
	}
	if err != nil {
		return nil, fmt.Errorf("open mmapstore file: %w", err)
	}

	s := &Store{file: f, index: make(map[types.ConceptId]int64)}
	if fresh {
		if err := s.initFresh(); err != nil {
			f.Close()
			return nil, err
		}
	} else if err := s.loadExisting(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initFresh() error {
	if err := s.file.Truncate(initialFileSize); err != nil {
		return fmt.Errorf("truncate fresh mmapstore file: %w", err)
	}
	quarter := uint64(initialFileSize-headerSize) / 4
	s.concepts = region{offset: headerSize, capacity: quarter}
	s.edges = region{offset: headerSize + quarter, capacity: quarter}
	s.content = region{offset: headerSize + 2*quarter, capacity: quarter}
	s.vectors = region{offset: headerSize + 3*quarter, capacity: quarter}
	s.semantic = region{offset: 0, capacity: 0} // allocated lazily on first use

	bloomBytes, k := optimalBloomSize(10_000, 0.01)
	if err := s.file.Truncate(int64(initialFileSize) + int64(bloomBytes)); err != nil {
		return err
	}
	s.bloom = newBloomFilter(make([]byte, bloomBytes), k)
	s.header = fileHeader{version: headerVer2, bloomK: uint64(k)}

	if err := s.remap(); err != nil {
		return err
	}
	return s.writeFooter()
}

func (s *Store) loadExisting() error {
	fi, err := s.file.Stat()
	if err != nil {
		return err
	}
	if err := s.remapSize(fi.Size()); err != nil {
		return err
	}
	h, err := decodeHeader(s.m)
	if err != nil {
		return err
	}
	s.header = *h
	s.concepts = region{offset: h.conceptArenaOff, capacity: h.conceptArenaCount * conceptSize, used: h.conceptArenaCount * conceptSize}
	s.edges = region{offset: h.edgeArenaOff, capacity: h.edgeArenaCount * edgeSize, used: h.edgeArenaCount * edgeSize}
	s.content = region{offset: h.contentBlobOff, capacity: h.contentBlobLen, used: h.contentBlobLen}
	s.vectors = region{offset: h.vectorBlobOff, capacity: h.vectorBlobLen, used: h.vectorBlobLen}
	s.semantic = region{offset: h.semanticBlobOff, capacity: h.semanticBlobLen, used: h.semanticBlobLen}

	bloomBytes := make([]byte, h.bloomLen)
	copy(bloomBytes, s.m[h.bloomOff:h.bloomOff+h.bloomLen])
	s.bloom = newBloomFilter(bloomBytes, int(h.bloomK))

	s.index = make(map[types.ConceptId]int64, h.indexCount)
	off := h.indexOff
	for i := uint64(0); i < h.indexCount; i++ {
		var id types.ConceptId
		copy(id[:], s.m[off:off+types.ConceptIdLen])
		off += types.ConceptIdLen
		recOff := getU64(s.m[off : off+8])
		off += 8
		s.index[id] = int64(recOff)
	}
	return nil
}

func (s *Store) remap() error {
	fi, err := s.file.Stat()
	if err != nil {
		return err
	}
	return s.remapSize(fi.Size())
}

func (s *Store) remapSize(size int64) error {
	if s.m != nil {
		if err := s.m.Unmap(); err != nil {
			return fmt.Errorf("unmap mmapstore file: %w", err)
		}
		s.m = nil
	}
	m, err := mmap.MapRegion(s.file, int(size), mmap.RDWR, 0, 0)
	if err != nil {
		return fmt.Errorf("mmap store file: %w", err)
	}
	s.m = m
	return nil
}

// Sync flushes the header/footer and msyncs the mapping to disk.
func (s *Store) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeFooterLocked(); err != nil {
		return err
	}
	return s.m.Flush()
}

// writeFooter takes the lock and writes header+bloom+index.
func (s *Store) writeFooter() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeFooterLocked()
}

func (s *Store) writeFooterLocked() error {
	// The Bloom filter and the ConceptId→offset index are both rewritten
	// wholesale on every Sync rather than mutated incrementally in place,
	// so each gets a fresh region appended at the current tail.
	bloomSize := uint64(len(s.bloom.bits))
	indexSize := uint64(len(s.index)) * (types.ConceptIdLen + 8)

	base := uint64(len(s.m))
	needed := base + bloomSize + indexSize
	fi, err := s.file.Stat()
	if err != nil {
		return err
	}
	if uint64(fi.Size()) < needed {
		if err := s.file.Truncate(int64(needed)); err != nil {
			return err
		}
		if err := s.remap(); err != nil {
			return err
		}
	}

	bloomOff := base
	copy(s.m[bloomOff:bloomOff+bloomSize], s.bloom.bits)

	indexOff := bloomOff + bloomSize
	off := indexOff
	ids := make([]types.ConceptId, 0, len(s.index))
	for id := range s.index {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return lessConceptID(ids[i], ids[j]) })
	for _, id := range ids {
		copy(s.m[off:off+types.ConceptIdLen], id[:])
		off += types.ConceptIdLen
		putU64(s.m[off:off+8], uint64(s.index[id]))
		off += 8
	}

	h := fileHeader{
		version:           headerVer2,
		conceptArenaOff:   s.concepts.offset,
		conceptArenaCount: s.concepts.used / conceptSize,
		edgeArenaOff:      s.edges.offset,
		edgeArenaCount:    s.edges.used / edgeSize,
		contentBlobOff:    s.content.offset,
		contentBlobLen:    s.content.used,
		vectorBlobOff:     s.vectors.offset,
		vectorBlobLen:     s.vectors.used,
		semanticBlobOff:   s.semantic.offset,
		semanticBlobLen:   s.semantic.used,
		bloomOff:          bloomOff,
		bloomLen:          uint64(len(s.bloom.bits)),
		bloomK:            uint64(s.bloom.k),
		indexOff:          indexOff,
		indexCount:        uint64(len(s.index)),
		fileSize:          uint64(len(s.m)),
		epoch:             s.header.epoch + 1,
	}
	copy(s.m[0:headerSize], h.encode())
	s.header = h
	s.indexDirty = false
	return nil
}

// Close flushes and releases the mapping and file handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	if s.m != nil {
		if err := s.m.Unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// ConceptCount returns the number of concepts in the index.
func (s *Store) ConceptCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}

// WriteSnapshot is the coordinator's Flush() primitive (spec.md §4.7): it
// rewrites the concept arena, edge arena, content blob, vector blob, and
// semantic blob wholesale from the given concepts, so that two flushes
// with no intervening writes produce a bit-identical file modulo the
// bumped epoch (spec.md §8's round-trip law). Concepts and index entries
// are written in ascending ConceptId order so the output is deterministic
// regardless of the source snapshot's (unspecified) HAMT iteration order.
func (s *Store) WriteSnapshot(concepts []types.ConceptNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := append([]types.ConceptNode(nil), concepts...)
	sort.Slice(sorted, func(i, j int) bool { return lessConceptID(sorted[i].ID, sorted[j].ID) })

	edgeCount := 0
	contentBytes, vectorFloats, semanticBytes := 0, 0, 0
	semanticEncoded := make([][]byte, len(sorted))
	for i, c := range sorted {
		edgeCount += len(c.Associations)
		contentBytes += len(c.Content)
		vectorFloats += len(c.Vector)
		semanticEncoded[i] = encodeSemantic(c.Semantic)
		semanticBytes += len(semanticEncoded[i])
	}

	conceptsOff := uint64(headerSize)
	conceptsLen := uint64(len(sorted)) * conceptSize
	edgesOff := conceptsOff + conceptsLen
	edgesLen := uint64(edgeCount) * edgeSize
	contentOff := edgesOff + edgesLen
	contentLen := uint64(contentBytes)
	vectorOff := contentOff + contentLen
	vectorLen := uint64(vectorFloats) * 4
	semanticOff := vectorOff + vectorLen
	semanticLen := uint64(semanticBytes)

	bloomBytes, bloomK := optimalBloomSize(len(sorted), 0.01)
	bloomOff := semanticOff + semanticLen
	indexOff := bloomOff + uint64(bloomBytes)
	indexLen := uint64(len(sorted)) * (types.ConceptIdLen + 8)
	total := indexOff + indexLen

	fi, err := s.file.Stat()
	if err != nil {
		return err
	}
	if uint64(fi.Size()) != total {
		if err := s.file.Truncate(int64(total)); err != nil {
			return fmt.Errorf("resize mmapstore for snapshot write: %w", err)
		}
	}
	if err := s.remap(); err != nil {
		return err
	}

	bloom := newBloomFilter(make([]byte, bloomBytes), bloomK)
	index := make(map[types.ConceptId]int64, len(sorted))

	contentCursor, vectorCursor, semanticCursor, edgeCursor := contentOff, vectorOff, semanticOff, edgesOff
	conceptCursor := conceptsOff
	for i, c := range sorted {
		cOff, cLen := contentCursor, uint32(len(c.Content))
		copy(s.m[contentCursor:contentCursor+uint64(cLen)], c.Content)
		contentCursor += uint64(cLen)

		vOff, vLen := vectorCursor, uint32(len(c.Vector))
		for j, f := range c.Vector {
			binary.LittleEndian.PutUint32(s.m[vectorCursor+uint64(j*4):], floatBits(f))
		}
		vectorCursor += uint64(vLen) * 4

		sem := semanticEncoded[i]
		semOff, semLen := semanticCursor, uint32(len(sem))
		copy(s.m[semanticCursor:semanticCursor+uint64(semLen)], sem)
		semanticCursor += uint64(semLen)

		neighborOff, neighborLen := edgeCursor, uint32(len(c.Associations))
		for _, a := range c.Associations {
			rec := edgeRecord{sourceID: a.SourceID, targetID: a.TargetID, assocType: uint8(a.Type), weight: a.Weight, confidence: a.Confidence, created: a.Created, lastUsed: a.LastUsed}
			copy(s.m[edgeCursor:edgeCursor+edgeSize], rec.encode())
			edgeCursor += edgeSize
		}

		rec := conceptRecord{
			id: c.ID, strength: c.Strength, confidence: c.Confidence,
			accessCount: c.AccessCount, lastAccessed: c.LastAccessed, created: c.Created,
			contentOff: cOff, contentLen: cLen,
			vectorOff: vOff, vectorLen: vLen,
			semanticOff: semOff, semanticLen: semLen,
			neighborOff: neighborOff, neighborLen: neighborLen,
		}
		copy(s.m[conceptCursor:conceptCursor+conceptSize], rec.encode())
		index[c.ID] = int64(conceptCursor)
		bloom.Add(c.ID[:])
		conceptCursor += conceptSize
	}

	bloomBuf := bloom.bits
	copy(s.m[bloomOff:bloomOff+uint64(len(bloomBuf))], bloomBuf)

	off := indexOff
	for _, c := range sorted {
		copy(s.m[off:off+types.ConceptIdLen], c.ID[:])
		off += types.ConceptIdLen
		putU64(s.m[off:off+8], uint64(index[c.ID]))
		off += 8
	}

	s.concepts = region{offset: conceptsOff, capacity: conceptsLen, used: conceptsLen}
	s.edges = region{offset: edgesOff, capacity: edgesLen, used: edgesLen}
	s.content = region{offset: contentOff, capacity: contentLen, used: contentLen}
	s.vectors = region{offset: vectorOff, capacity: vectorLen, used: vectorLen}
	s.semantic = region{offset: semanticOff, capacity: semanticLen, used: semanticLen}
	s.bloom = bloom
	s.index = index

	h := fileHeader{
		version:           headerVer2,
		conceptArenaOff:   conceptsOff,
		conceptArenaCount: uint64(len(sorted)),
		edgeArenaOff:      edgesOff,
		edgeArenaCount:    uint64(edgeCount),
		contentBlobOff:    contentOff,
		contentBlobLen:    contentLen,
		vectorBlobOff:     vectorOff,
		vectorBlobLen:     vectorLen,
		semanticBlobOff:   semanticOff,
		semanticBlobLen:   semanticLen,
		bloomOff:          bloomOff,
		bloomLen:          uint64(bloomBytes),
		bloomK:            uint64(bloomK),
		indexOff:          indexOff,
		indexCount:        uint64(len(sorted)),
		fileSize:          total,
		epoch:             s.header.epoch + 1,
	}
	copy(s.m[0:headerSize], h.encode())
	s.header = h
	s.indexDirty = false
	return s.m.Flush()
}

func lessConceptID(a, b types.ConceptId) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// LoadAll reconstructs the complete concept map from the arena file,
// including each concept's Associations (rebuilt verbatim from the edge
// arena span recorded in its conceptRecord) and Neighbors (rebuilt from
// the same span but deduplicated by target id, matching the in-memory
// apply path's addNeighborDedup so a duplicate learn_association that
// left two Associations records but one Neighbors entry round-trips
// through a flush without the duplicate reappearing in Neighbors) and
// Semantic metadata (nil for every concept if the file predates version
// 2, since the loader never finds nonzero semantic offsets there). Used
// once at ConcurrentMemory construction to seed the initial GraphSnapshot
// before WAL replay folds in anything written since the last flush.
func (s *Store) LoadAll() (map[types.ConceptId]types.ConceptNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[types.ConceptId]types.ConceptNode, len(s.index))
	for _, off := range s.index {
		rec := decodeConceptRecord(s.m[off : off+conceptSize])
		c := types.ConceptNode{
			ID: rec.id, Strength: rec.strength, Confidence: rec.confidence,
			AccessCount: rec.accessCount, LastAccessed: rec.lastAccessed, Created: rec.created,
		}
		if rec.contentLen > 0 {
			c.Content = append([]byte(nil), s.m[rec.contentOff:rec.contentOff+uint64(rec.contentLen)]...)
		}
		if rec.vectorLen > 0 {
			c.Vector = make([]float32, rec.vectorLen)
			for i := range c.Vector {
				o := rec.vectorOff + uint64(i*4)
				c.Vector[i] = floatFromBits(binary.LittleEndian.Uint32(s.m[o:]))
			}
		}
		if rec.semanticLen > 0 {
			c.Semantic = decodeSemantic(s.m[rec.semanticOff : rec.semanticOff+uint64(rec.semanticLen)])
		}
		if rec.neighborLen > 0 {
			c.Associations = make([]types.AssociationRecord, rec.neighborLen)
			seen := make(map[types.ConceptId]bool, rec.neighborLen)
			for i := uint32(0); i < rec.neighborLen; i++ {
				eo := rec.neighborOff + uint64(i)*edgeSize
				er := decodeEdgeRecord(s.m[eo : eo+edgeSize])
				c.Associations[i] = types.AssociationRecord{
					SourceID: er.sourceID, TargetID: er.targetID, Type: types.AssociationType(er.assocType),
					Weight: er.weight, Confidence: er.confidence, Created: er.created, LastUsed: er.lastUsed,
				}
				if !seen[er.targetID] {
					seen[er.targetID] = true
					c.Neighbors = append(c.Neighbors, er.targetID)
				}
			}
		}
		out[c.ID] = c
	}
	return out, nil
}

// Epoch returns the current write epoch recorded in the file header.
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.header.epoch
}
