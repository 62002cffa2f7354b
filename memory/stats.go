package memory

import (
	"github.com/sutradb/sutra/reconciler"
	"github.com/sutradb/sutra/writelog"
)

// SnapshotStats summarizes the currently published GraphSnapshot.
type SnapshotStats struct {
	Sequence     uint64
	TimestampUs  uint64
	ConceptCount int
	EdgeCount    int
}

// MmapStoreStats summarizes the on-disk arena store as of its last flush.
type MmapStoreStats struct {
	ConceptCount int
	Epoch        uint64
}

// HnswStats summarizes the in-memory vector index.
type HnswStats struct {
	Len   int
	Dirty bool
}

// Stats is the aggregate observability surface ConcurrentMemory.Stats()
// returns (spec.md §4.9): every component's own stats folded into one
// value, plus per-operation latency percentiles.
type Stats struct {
	WriteLog   writelog.Stats
	Reconciler reconciler.Stats
	Snapshot   SnapshotStats
	MmapStore  MmapStoreStats
	Hnsw       HnswStats
	Latency    LatencySnapshot
}
