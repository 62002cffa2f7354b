// Package readview holds the single atomically-swapped pointer to the
// current GraphSnapshot that every read-path query (query_concept,
// find_path, vector_search, ...) loads from. It is the Go counterpart of
// the teacher's atomic.Value state-swap in wal.go's WAL.s field: readers
// never take a lock, and the old snapshot is simply left for the garbage
// collector to reclaim once the last reader drops its reference — there
// is no manual refcounting to get wrong, unlike the Rust Arc<> original.
package readview

import (
	"sync/atomic"

	"github.com/sutradb/sutra/snapshot"
)

// ReadView publishes GraphSnapshot values for lock-free concurrent reads.
type ReadView struct {
	current atomic.Pointer[snapshot.GraphSnapshot]
}

// New creates a ReadView seeded with an empty snapshot.
func New() *ReadView {
	v := &ReadView{}
	v.current.Store(snapshot.Empty())
	return v
}

// Load returns the currently published snapshot. The returned pointer is
// safe to hold and read from indefinitely; a concurrent Store never
// mutates it, it only swaps which snapshot is current.
func (v *ReadView) Load() *snapshot.GraphSnapshot {
	return v.current.Load()
}

// Store publishes a new snapshot, making it visible to subsequent Load
// calls. The coordinator calls this once at startup with the initial
// snapshot; after that only the reconciler calls it, once per apply cycle.
func (v *ReadView) Store(s *snapshot.GraphSnapshot) {
	v.current.Store(s)
}
