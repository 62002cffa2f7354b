package hnsw

import (
	"sync"

	"github.com/sutradb/sutra/types"
)

// Container wraps an Index with the RWMutex spec.md §5 requires: Search
// takes the read lock (so many concurrent queries proceed together),
// Insert/Delete take the write lock. This mirrors the MmapStore/
// ConcurrentMemory pattern of one RWMutex per mutable structure rather
// than a single global lock.
type Container struct {
	mu  sync.RWMutex
	idx *Index
}

// LoadOrBuild opens the persisted index at path if it exists, is valid,
// and was saved for the given dimension, or builds a fresh one for the
// given dimension and inserts initialVectors into it otherwise (a missing,
// unreadable or mismatched file is not an error). initialVectors lets a ConcurrentMemory
// that starts from a mmapstore LoadAll (no HNSW file on disk yet, e.g. the
// very first launch against an existing concept arena) rebuild the vector
// index from the graph it already has instead of starting empty and
// silently losing VectorSearch/SemanticSearch recall until every concept
// is re-learned.
func LoadOrBuild(path string, dimension, maxNeighbors, efConstruction int, initialVectors map[types.ConceptId][]float32) (*Container, error) {
	idx, err := load(path)
	if err == nil && idx.dimension == dimension {
		return &Container{idx: idx}, nil
	}
	idx = New(dimension, maxNeighbors, efConstruction)
	for id, vec := range initialVectors {
		if len(vec) != dimension {
			continue
		}
		idx.Insert(id, vec)
	}
	idx.dirty = false
	return &Container{idx: idx}, nil
}

// Insert adds or replaces a vector under the write lock.
func (c *Container) Insert(id types.ConceptId, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.idx.Insert(id, vector)
}

// Delete removes a vector under the write lock, if present.
func (c *Container) Delete(id types.ConceptId) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.idx.nodes[id]; ok {
		c.idx.remove(n)
	}
}

// Search runs a read-locked k-NN query.
func (c *Container) Search(query []float32, k, ef int) []SearchResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.idx.Search(query, k, ef)
}

// Len returns the current vector count under the read lock.
func (c *Container) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.idx.Len()
}

// IsDirty reports whether there are unsaved mutations.
func (c *Container) IsDirty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.idx.IsDirty()
}

// Save persists the index to path if and only if it is dirty, clearing
// the dirty bit on success. Callers (the reconciler's PersistFunc) are
// expected to call this on the configured disk-flush cadence rather than
// after every single mutation.
func (c *Container) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.idx.dirty {
		return nil
	}
	if err := save(path, c.idx); err != nil {
		return err
	}
	c.idx.dirty = false
	return nil
}
