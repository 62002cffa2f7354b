// Package snapshot implements GraphSnapshot: the immutable, structurally
// shared view of the whole concept graph that the reconciler publishes
// after every apply cycle (spec.md §3.4, §9). It is backed by a HAMT
// (github.com/benbjohnson/immutable.Map) rather than a plain Go map so
// that cloning a snapshot before a reconciler cycle is O(1) instead of
// O(n) — the clone and the original share every unchanged subtree.
package snapshot

import (
	"github.com/benbjohnson/immutable"

	"github.com/sutradb/sutra/types"
)

// GraphSnapshot is a point-in-time, immutable view of the concept graph.
// It is never mutated in place; every change produces a new GraphSnapshot
// that shares structure with its predecessor.
type GraphSnapshot struct {
	concepts *immutable.Map[types.ConceptId, types.ConceptNode]

	Sequence     uint64 // last WriteEntry.Sequence folded into this snapshot
	TimestampUs  uint64 // when this snapshot was published
	ConceptCount int
	EdgeCount    int
}

// Empty returns a GraphSnapshot with no concepts, suitable as the
// ReadView's initial state before the first reconciler cycle runs.
func Empty() *GraphSnapshot {
	return &GraphSnapshot{concepts: immutable.NewMap[types.ConceptId, types.ConceptNode](conceptIDHasher{})}
}

// Get returns the concept with id, if present.
func (s *GraphSnapshot) Get(id types.ConceptId) (types.ConceptNode, bool) {
	return s.concepts.Get(id)
}

// Len returns the number of concepts in the snapshot.
func (s *GraphSnapshot) Len() int {
	return s.concepts.Len()
}

// Iterator walks every (id, concept) pair. Iteration order is
// unspecified, matching the HAMT's bucket order.
func (s *GraphSnapshot) Iterator() *immutable.MapIterator[types.ConceptId, types.ConceptNode] {
	return s.concepts.Iterator()
}

// Builder accumulates mutations against a base GraphSnapshot and produces
// a new GraphSnapshot when done. It exists so the reconciler can apply an
// entire drained batch and publish once at the end; benbjohnson/immutable
// doesn't expose mutable transients, so Builder folds Set/Delete
// calls one at a time, relying on structural sharing to keep each step
// cheap.
type Builder struct {
	concepts     *immutable.Map[types.ConceptId, types.ConceptNode]
	edgeCount    int
	lastSequence uint64
}

// NewBuilder starts a mutation pass from base.
func NewBuilder(base *GraphSnapshot) *Builder {
	edges := 0
	if base != nil {
		edges = base.EdgeCount
	}
	concepts := immutable.NewMap[types.ConceptId, types.ConceptNode](conceptIDHasher{})
	lastSequence := uint64(0)
	if base != nil {
		concepts = base.concepts
		lastSequence = base.Sequence
	}
	return &Builder{concepts: concepts, edgeCount: edges, lastSequence: lastSequence}
}

// PutConcept inserts or overwrites a concept, adjusting the running edge
// count by the delta between the old and new neighbor counts.
func (b *Builder) PutConcept(c types.ConceptNode) {
	if old, ok := b.concepts.Get(c.ID); ok {
		b.edgeCount -= len(old.Neighbors)
	}
	b.edgeCount += len(c.Neighbors)
	b.concepts = b.concepts.Set(c.ID, c)
}

// DeleteConcept removes a concept and its own outgoing edges. References
// to it held by other concepts are not touched here; memory's
// applyDeleteConcept purges them right after this call, which is how the
// "destroyed with either endpoint" invariant (spec.md §3.3) is kept.
func (b *Builder) DeleteConcept(id types.ConceptId) {
	if old, ok := b.concepts.Get(id); ok {
		b.edgeCount -= len(old.Neighbors)
		b.concepts = b.concepts.Delete(id)
	}
}

// Get returns the concept with id as currently staged in this builder,
// reflecting every PutConcept/DeleteConcept applied so far in the batch.
func (b *Builder) Get(id types.ConceptId) (types.ConceptNode, bool) {
	return b.concepts.Get(id)
}

// ForEach walks every concept currently staged in this builder, in
// unspecified (HAMT bucket) order. Used by DeleteConcept's apply rule
// (§4.4, I3) to purge back-references to a deleted id from every other
// node's Neighbors/Associations.
func (b *Builder) ForEach(fn func(types.ConceptId, types.ConceptNode)) {
	it := b.concepts.Iterator()
	for !it.Done() {
		id, c, _ := it.Next()
		fn(id, c)
	}
}

// MarkSequence records the highest WriteEntry.Sequence folded into this
// build so far.
func (b *Builder) MarkSequence(seq uint64) {
	if seq > b.lastSequence {
		b.lastSequence = seq
	}
}

// Build finalizes the mutation pass into a new GraphSnapshot, stamped
// with tsUs as its publish time.
func (b *Builder) Build(tsUs uint64) *GraphSnapshot {
	return &GraphSnapshot{
		concepts:     b.concepts,
		Sequence:     b.lastSequence,
		TimestampUs:  tsUs,
		ConceptCount: b.concepts.Len(),
		EdgeCount:    b.edgeCount,
	}
}
