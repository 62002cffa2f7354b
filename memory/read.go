package memory

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sutradb/sutra/hnsw"
	"github.com/sutradb/sutra/types"
)

// QueryConcept returns the concept with id from the currently published
// snapshot (spec.md §4.7). Reads never consult the WAL or the WriteLog;
// a write visible here has already cleared a reconciler cycle.
func (m *Memory) QueryConcept(id types.ConceptId) (types.ConceptNode, bool) {
	stop := m.lat.start(opQuery)
	defer stop()

	return m.view.Load().Get(id)
}

// QueryNeighbors returns id's outgoing neighbor ids, in edge order.
func (m *Memory) QueryNeighbors(id types.ConceptId) []types.ConceptId {
	stop := m.lat.start(opQuery)
	defer stop()

	c, ok := m.view.Load().Get(id)
	if !ok {
		return nil
	}
	return c.Neighbors
}

// WeightedNeighbor pairs a neighbor id with the confidence/weight of the
// edge that reaches it.
type WeightedNeighbor struct {
	ID     types.ConceptId
	Weight float32
}

// QueryNeighborsWeighted returns id's outgoing associations as
// (neighbor, weight) pairs, in edge order.
func (m *Memory) QueryNeighborsWeighted(id types.ConceptId) []WeightedNeighbor {
	stop := m.lat.start(opQuery)
	defer stop()

	c, ok := m.view.Load().Get(id)
	if !ok {
		return nil
	}
	out := make([]WeightedNeighbor, len(c.Associations))
	for i, a := range c.Associations {
		out[i] = WeightedNeighbor{ID: a.TargetID, Weight: a.Weight}
	}
	return out
}

// FindPath runs a bounded breadth-first search for a path from start to
// end over at most maxDepth edges, on a single consistent snapshot
// (spec.md §4.7, §8 scenario 3). The maxDepth==0 boundary is explicit
// (§8): Some([start]) iff start==end, else None — a zero-hop search
// never explores an edge.
func (m *Memory) FindPath(start, end types.ConceptId, maxDepth int) []types.ConceptId {
	stop := m.lat.start(opQuery)
	defer stop()

	if start == end {
		return []types.ConceptId{start}
	}
	if maxDepth <= 0 {
		return nil
	}

	snap := m.view.Load()
	if _, ok := snap.Get(start); !ok {
		return nil
	}

	type frame struct {
		id    types.ConceptId
		depth int
	}
	visited := map[types.ConceptId]types.ConceptId{start: start} // child -> parent
	queue := []frame{{start, 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth == maxDepth {
			continue
		}
		c, ok := snap.Get(cur.id)
		if !ok {
			continue
		}
		for _, next := range c.Neighbors {
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = cur.id
			if next == end {
				return reconstructPath(visited, end)
			}
			queue = append(queue, frame{next, cur.depth + 1})
		}
	}
	return nil
}

func reconstructPath(parent map[types.ConceptId]types.ConceptId, end types.ConceptId) []types.ConceptId {
	var rev []types.ConceptId
	for cur := end; ; {
		rev = append(rev, cur)
		p := parent[cur]
		if p == cur {
			break
		}
		cur = p
	}
	out := make([]types.ConceptId, len(rev))
	for i, id := range rev {
		out[len(rev)-1-i] = id
	}
	return out
}

// TextMatch is one result from TextSearch.
type TextMatch struct {
	ID      types.ConceptId
	Content []byte
	Score   float32
}

// stopWords mirrors the minimal English stop-word list the original
// keyword scorer filters before counting matches; the exact set is not
// load-bearing for correctness, only for which tokens count toward the
// score denominator.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "being": true, "of": true,
	"and": true, "or": true, "to": true, "in": true, "on": true, "at": true,
	"for": true, "with": true, "as": true, "by": true, "it": true, "this": true,
	"that": true, "these": true, "those": true,
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	out := fields[:0]
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func nonStopTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !stopWords[t] {
			out = append(out, t)
		}
	}
	return out
}

// TextSearch scores every concept's content by the fraction of the
// query's non-stop tokens it contains, returning the top limit matches
// (spec.md §4.7). Ties are broken by Created ascending: the snapshot's
// HAMT iteration order is explicitly unspecified, so Created is the only
// deterministic proxy for insertion order the stored data carries.
func (m *Memory) TextSearch(query string, limit int) []TextMatch {
	stop := m.lat.start(opQuery)
	defer stop()

	queryTokens := nonStopTokens(tokenize(query))
	if len(queryTokens) == 0 || limit <= 0 {
		return nil
	}
	queryWanted := make(map[string]bool, len(queryTokens))
	for _, t := range queryTokens {
		queryWanted[t] = true
	}

	snap := m.view.Load()
	var matches []TextMatch
	it := snap.Iterator()
	for !it.Done() {
		id, c, _ := it.Next()
		contentTokens := make(map[string]bool)
		for _, t := range nonStopTokens(tokenize(string(c.Content))) {
			contentTokens[t] = true
		}
		hits := 0
		for t := range queryWanted {
			if contentTokens[t] {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		score := float32(hits) / float32(len(queryTokens))
		matches = append(matches, TextMatch{ID: id, Content: c.Content, Score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		ci, _ := snap.Get(matches[i].ID)
		cj, _ := snap.Get(matches[j].ID)
		return ci.Created < cj.Created
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// VectorSearch runs an approximate k-NN query against the HnswContainer
// directly, bypassing the GraphSnapshot entirely (spec.md §4.7, line 40:
// "vector search bypasses the snapshot").
func (m *Memory) VectorSearch(query []float32, k, efSearch int) ([]hnsw.SearchResult, error) {
	stop := m.lat.start(opQuery)
	defer stop()

	if len(query) != m.cfg.VectorDimension {
		return nil, fmt.Errorf("vector search query dimension %d, want %d: %w", len(query), m.cfg.VectorDimension, types.ErrDimensionMismatch)
	}
	return m.hnsw.Search(query, k, efSearch), nil
}

// SemanticSearch validates queryVector's dimension, then delegates to the
// same HnswContainer search VectorSearch uses (spec.md §4.7: "validates
// dimension, then delegates"). It exists as a distinct name because
// callers building on the semantic layer think in terms of a classified
// query, not a raw vector; the underlying index has no notion of the
// distinction.
func (m *Memory) SemanticSearch(queryVector []float32, topK int) ([]hnsw.SearchResult, error) {
	return m.VectorSearch(queryVector, topK, topK*4)
}
