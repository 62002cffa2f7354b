// Package hnsw implements a persistent, incrementally-updatable
// approximate nearest neighbor index over concept vectors (spec.md §4.5).
// It follows the standard hierarchical navigable small world construction
// — layered proximity graphs with exponentially decaying layer
// membership, greedy descent through upper layers followed by a
// beam-width search at layer 0 — using vecmath.Cosine as its distance
// function throughout.
package hnsw

import (
	"math"
	"math/rand"
	"sort"

	"github.com/sutradb/sutra/types"
	"github.com/sutradb/sutra/vecmath"
)

// DefaultMaxNeighbors is M in the original paper: the number of
// bidirectional links each node keeps per layer above layer 0 (layer 0
// keeps 2*M).
const DefaultMaxNeighbors = 16

// DefaultEfConstruction is the candidate list size used while inserting.
const DefaultEfConstruction = 200

// DefaultMaxElements bounds the index purely as a sanity cap; Insert
// beyond it still succeeds, it just means the caller under-provisioned.
const DefaultMaxElements = 100_000

type node struct {
	id        types.ConceptId
	vector    []float32
	links     [][]types.ConceptId // links[layer] = neighbor ids at that layer
}

// Index is an in-memory HNSW graph. It is not safe for concurrent use by
// itself — Container wraps it with an RWMutex per spec.md §5.
type Index struct {
	dimension      int
	maxNeighbors   int
	efConstruction int

	nodes      map[types.ConceptId]*node
	entryPoint types.ConceptId
	maxLayer   int
	rng        *rand.Rand

	dirty bool
}

// New builds an empty index for vectors of the given dimension.
func New(dimension, maxNeighbors, efConstruction int) *Index {
	if maxNeighbors <= 0 {
		maxNeighbors = DefaultMaxNeighbors
	}
	if efConstruction <= 0 {
		efConstruction = DefaultEfConstruction
	}
	return &Index{
		dimension:      dimension,
		maxNeighbors:   maxNeighbors,
		efConstruction: efConstruction,
		nodes:          make(map[types.ConceptId]*node),
		maxLayer:       -1,
		rng:            rand.New(rand.NewSource(1)),
	}
}

// Len returns the number of vectors in the index.
func (idx *Index) Len() int {
	return len(idx.nodes)
}

// IsDirty reports whether the index has unsaved mutations since the last
// Container.Save call.
func (idx *Index) IsDirty() bool {
	return idx.dirty
}

func (idx *Index) randomLayer() int {
	// Standard HNSW level assignment: exponential decay with mL = 1/ln(M).
	mL := 1.0 / math.Log(float64(idx.maxNeighbors))
	layer := int(math.Floor(-math.Log(idx.rng.Float64()) * mL))
	return layer
}

// Insert adds id/vector to the index, or replaces the vector if id is
// already present (the old node is unlinked and re-inserted fresh — HNSW
// doesn't support in-place vector updates without risking disconnected
// subgraphs).
func (idx *Index) Insert(id types.ConceptId, vector []float32) {
	if existing, ok := idx.nodes[id]; ok {
		idx.remove(existing)
	}

	layer := idx.randomLayer()
	n := &node{id: id, vector: vector, links: make([][]types.ConceptId, layer+1)}
	idx.nodes[id] = n
	idx.dirty = true

	if len(idx.nodes) == 1 {
		idx.entryPoint = id
		idx.maxLayer = layer
		return
	}

	entry := idx.entryPoint
	// Descend from the current top layer down to layer+1 doing a greedy
	// single-best-neighbor walk, to find a good entry point for the
	// layers this node actually participates in.
	for l := idx.maxLayer; l > layer; l-- {
		entry = idx.greedyClosest(entry, vector, l)
	}

	for l := min(layer, idx.maxLayer); l >= 0; l-- {
		candidates := idx.searchLayer(vector, entry, idx.efConstruction, l)
		neighbors := selectNeighbors(candidates, idx.neighborCountForLayer(l))
		n.links[l] = neighbors
		for _, nb := range neighbors {
			idx.addLink(nb, id, l)
		}
		if len(candidates) > 0 {
			entry = candidates[0].id
		}
	}

	if layer > idx.maxLayer {
		idx.maxLayer = layer
		idx.entryPoint = id
	}
}

func (idx *Index) neighborCountForLayer(layer int) int {
	if layer == 0 {
		return idx.maxNeighbors * 2
	}
	return idx.maxNeighbors
}

func (idx *Index) addLink(from, to types.ConceptId, layer int) {
	n, ok := idx.nodes[from]
	if !ok || layer >= len(n.links) {
		return
	}
	n.links[layer] = append(n.links[layer], to)
	max := idx.neighborCountForLayer(layer)
	if len(n.links[layer]) > max {
		cands := idx.toCandidates(n.vector, n.links[layer])
		n.links[layer] = selectNeighbors(cands, max)
	}
}

// remove unlinks a node from every layer it appears in. Used only by
// Insert's replace-on-reinsert path and by Container.Delete.
func (idx *Index) remove(n *node) {
	for layer, neighbors := range n.links {
		for _, nb := range neighbors {
			if other, ok := idx.nodes[nb]; ok && layer < len(other.links) {
				other.links[layer] = removeID(other.links[layer], n.id)
			}
		}
	}
	delete(idx.nodes, n.id)
	idx.dirty = true
	if n.id == idx.entryPoint {
		idx.pickNewEntryPoint()
	}
}

func (idx *Index) pickNewEntryPoint() {
	idx.entryPoint = types.ConceptId{}
	idx.maxLayer = -1
	for id, n := range idx.nodes {
		if len(n.links)-1 > idx.maxLayer {
			idx.maxLayer = len(n.links) - 1
			idx.entryPoint = id
		}
	}
}

func removeID(ids []types.ConceptId, target types.ConceptId) []types.ConceptId {
	for i, id := range ids {
		if id == target {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

type candidate struct {
	id       types.ConceptId
	distance float32 // 1 - cosine similarity; lower is closer
}

func (idx *Index) toCandidates(query []float32, ids []types.ConceptId) []candidate {
	out := make([]candidate, 0, len(ids))
	for _, id := range ids {
		if n, ok := idx.nodes[id]; ok {
			out = append(out, candidate{id: id, distance: 1 - vecmath.Cosine(query, n.vector)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].distance < out[j].distance })
	return out
}

func selectNeighbors(candidates []candidate, max int) []types.ConceptId {
	if len(candidates) > max {
		candidates = candidates[:max]
	}
	out := make([]types.ConceptId, len(candidates))
	for i, c := range candidates {
		out[i] = c.id
	}
	return out
}

// greedyClosest does a single-best-neighbor walk at one layer, returning
// the closest node found (used to descend through upper layers quickly).
func (idx *Index) greedyClosest(entry types.ConceptId, query []float32, layer int) types.ConceptId {
	current := entry
	currentNode, ok := idx.nodes[current]
	if !ok {
		return entry
	}
	currentDist := 1 - vecmath.Cosine(query, currentNode.vector)
	improved := true
	for improved {
		improved = false
		if layer >= len(currentNode.links) {
			break
		}
		for _, candID := range currentNode.links[layer] {
			cn, ok := idx.nodes[candID]
			if !ok {
				continue
			}
			d := 1 - vecmath.Cosine(query, cn.vector)
			if d < currentDist {
				current = candID
				currentNode = cn
				currentDist = d
				improved = true
			}
		}
	}
	return current
}

// searchLayer runs a best-first beam search from entry at one layer,
// returning up to ef candidates sorted nearest-first.
func (idx *Index) searchLayer(query []float32, entry types.ConceptId, ef int, layer int) []candidate {
	visited := map[types.ConceptId]bool{entry: true}
	entryNode, ok := idx.nodes[entry]
	if !ok {
		return nil
	}
	entryDist := 1 - vecmath.Cosine(query, entryNode.vector)
	candidates := []candidate{{id: entry, distance: entryDist}}
	best := []candidate{{id: entry, distance: entryDist}}

	for len(candidates) > 0 {
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].distance < candidates[j].distance })
		c := candidates[0]
		candidates = candidates[1:]

		worstBest := best[len(best)-1].distance
		if c.distance > worstBest && len(best) >= ef {
			break
		}

		n, ok := idx.nodes[c.id]
		if !ok || layer >= len(n.links) {
			continue
		}
		for _, neighborID := range n.links[layer] {
			if visited[neighborID] {
				continue
			}
			visited[neighborID] = true
			nn, ok := idx.nodes[neighborID]
			if !ok {
				continue
			}
			d := 1 - vecmath.Cosine(query, nn.vector)
			if len(best) < ef || d < best[len(best)-1].distance {
				candidates = append(candidates, candidate{id: neighborID, distance: d})
				best = append(best, candidate{id: neighborID, distance: d})
				sort.Slice(best, func(i, j int) bool { return best[i].distance < best[j].distance })
				if len(best) > ef {
					best = best[:ef]
				}
			}
		}
	}
	return best
}

// SearchResult is one match from Search, ordered nearest-first.
type SearchResult struct {
	ID         types.ConceptId
	Similarity float32 // cosine similarity, in [-1, 1]
}

// Search returns the k nearest neighbors of query by cosine similarity.
func (idx *Index) Search(query []float32, k int, ef int) []SearchResult {
	if len(idx.nodes) == 0 {
		return nil
	}
	if ef < k {
		ef = k
	}
	entry := idx.entryPoint
	for l := idx.maxLayer; l > 0; l-- {
		entry = idx.greedyClosest(entry, query, l)
	}
	candidates := idx.searchLayer(query, entry, ef, 0)
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	out := make([]SearchResult, len(candidates))
	for i, c := range candidates {
		out[i] = SearchResult{ID: c.id, Similarity: 1 - c.distance}
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
