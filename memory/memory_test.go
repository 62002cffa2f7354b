package memory

import (
	"context"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/sutradb/sutra/config"
	"github.com/sutradb/sutra/types"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.StoragePath = t.TempDir()
	cfg.VectorDimension = 3
	cfg.WriteLogCapacity = 256
	cfg.DiskFlushThreshold = 1_000_000 // tests flush explicitly
	cfg.Reconciler.BaseIntervalMs = 2
	cfg.Reconciler.MinIntervalMs = 1
	cfg.Reconciler.MaxIntervalMs = 20
	cfg.Logger = log.NewNopLogger()
	cfg.Registerer = prometheus.NewRegistry()
	return Config{Config: cfg}
}

func mustOpen(t *testing.T) *Memory {
	t.Helper()
	m, err := New(testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = m.Shutdown(context.Background())
	})
	return m
}

func waitQuiescent(t *testing.T, m *Memory, seq uint64) {
	t.Helper()
	require.Eventually(t, func() bool {
		return m.view.Load().Sequence >= seq
	}, time.Second, 5*time.Millisecond)
}

func TestLearnConceptThenQueryConcept(t *testing.T) {
	m := mustOpen(t)
	id := types.ConceptId{1}
	seq, err := m.LearnConcept(id, []byte("alpha"), []float32{1, 0, 0}, 1, 0.9)
	require.NoError(t, err)
	waitQuiescent(t, m, seq)

	c, ok := m.QueryConcept(id)
	require.True(t, ok)
	require.Equal(t, []byte("alpha"), c.Content)
	require.Equal(t, []float32{1, 0, 0}, c.Vector)
	require.NotNil(t, c.Semantic)
}

func TestLearnConceptRejectsWrongDimensionVector(t *testing.T) {
	m := mustOpen(t)
	id := types.ConceptId{2}
	seq, err := m.LearnConcept(id, []byte("beta"), []float32{1, 2}, 1, 0.5)
	require.NoError(t, err)
	waitQuiescent(t, m, seq)

	c, ok := m.QueryConcept(id)
	require.True(t, ok)
	require.Nil(t, c.Vector)
}

func TestBidirectionalAssociation(t *testing.T) {
	m := mustOpen(t)
	a := types.ConceptId{1}
	b := types.ConceptId{2}
	_, err := m.LearnConcept(a, []byte("a"), nil, 1, 1)
	require.NoError(t, err)
	_, err = m.LearnConcept(b, []byte("b"), nil, 1, 1)
	require.NoError(t, err)
	seq, err := m.LearnAssociation(a, b, types.AssociationSemantic, 0.8)
	require.NoError(t, err)
	waitQuiescent(t, m, seq)

	require.Contains(t, m.QueryNeighbors(a), b)
	require.Contains(t, m.QueryNeighbors(b), a)

	weighted := m.QueryNeighborsWeighted(a)
	require.Len(t, weighted, 1)
	require.Equal(t, b, weighted[0].ID)
	require.InDelta(t, 0.8, weighted[0].Weight, 1e-6)
}

func TestFindPath(t *testing.T) {
	m := mustOpen(t)
	a, b, c := types.ConceptId{1}, types.ConceptId{2}, types.ConceptId{3}
	for _, id := range []types.ConceptId{a, b, c} {
		_, err := m.LearnConcept(id, nil, nil, 1, 1)
		require.NoError(t, err)
	}
	_, err := m.LearnAssociation(a, b, types.AssociationSemantic, 1)
	require.NoError(t, err)
	seq, err := m.LearnAssociation(b, c, types.AssociationSemantic, 1)
	require.NoError(t, err)
	waitQuiescent(t, m, seq)

	require.Equal(t, []types.ConceptId{a, b, c}, m.FindPath(a, c, 10))
	require.Nil(t, m.FindPath(a, c, 1))
	require.Equal(t, []types.ConceptId{a}, m.FindPath(a, a, 0))
	require.Nil(t, m.FindPath(a, c, 0))
}

func TestDeleteConceptRemovesBackReferences(t *testing.T) {
	m := mustOpen(t)
	a, b, c := types.ConceptId{1}, types.ConceptId{2}, types.ConceptId{3}
	for _, id := range []types.ConceptId{a, b, c} {
		_, err := m.LearnConcept(id, nil, nil, 1, 1)
		require.NoError(t, err)
	}
	_, err := m.LearnAssociation(a, b, types.AssociationSemantic, 1)
	require.NoError(t, err)
	_, err = m.LearnAssociation(b, c, types.AssociationSemantic, 1)
	require.NoError(t, err)
	seq, err := m.DeleteConcept(b)
	require.NoError(t, err)
	waitQuiescent(t, m, seq)

	_, ok := m.QueryConcept(b)
	require.False(t, ok)
	require.NotContains(t, m.QueryNeighbors(a), b)
	require.NotContains(t, m.QueryNeighbors(c), b)
}

func TestTextSearchScoresAndBreaksTiesByInsertionOrder(t *testing.T) {
	m := mustOpen(t)
	older := types.ConceptId{1}
	newer := types.ConceptId{2}
	_, err := m.LearnConcept(older, []byte("the quick brown fox"), nil, 1, 1)
	require.NoError(t, err)
	seq, err := m.LearnConcept(newer, []byte("a quick brown dog"), nil, 1, 1)
	require.NoError(t, err)
	waitQuiescent(t, m, seq)

	results := m.TextSearch("quick brown", 10)
	require.Len(t, results, 2)
	require.Equal(t, older, results[0].ID)
	require.Equal(t, newer, results[1].ID)
}

func TestVectorSearchRejectsWrongDimension(t *testing.T) {
	m := mustOpen(t)
	_, err := m.VectorSearch([]float32{1, 2}, 1, 10)
	require.ErrorIs(t, err, types.ErrDimensionMismatch)
}

func TestVectorSearchFindsNearest(t *testing.T) {
	m := mustOpen(t)
	a := types.ConceptId{1}
	seq, err := m.LearnConcept(a, nil, []float32{1, 0, 0}, 1, 1)
	require.NoError(t, err)
	waitQuiescent(t, m, seq)

	results, err := m.VectorSearch([]float32{1, 0, 0}, 1, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, a, results[0].ID)
}

func TestFlushAndReopenRoundTrips(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t)
	cfg.StoragePath = dir

	m, err := New(cfg)
	require.NoError(t, err)
	id := types.ConceptId{7}
	seq, err := m.LearnConcept(id, []byte("persisted"), []float32{0, 1, 0}, 1, 1)
	require.NoError(t, err)
	waitQuiescent(t, m, seq)
	require.NoError(t, m.Flush(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()))

	cfg2 := cfg
	cfg2.Registerer = prometheus.NewRegistry()
	m2, err := New(cfg2)
	require.NoError(t, err)
	defer m2.Shutdown(context.Background())

	c, ok := m2.QueryConcept(id)
	require.True(t, ok)
	require.Equal(t, []byte("persisted"), c.Content)

	results, err := m2.VectorSearch([]float32{0, 1, 0}, 1, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, id, results[0].ID)
}

func TestStatsAggregatesComponents(t *testing.T) {
	m := mustOpen(t)
	seq, err := m.LearnConcept(types.ConceptId{1}, []byte("x"), nil, 1, 1)
	require.NoError(t, err)
	waitQuiescent(t, m, seq)

	stats := m.Stats()
	require.Equal(t, 1, stats.Snapshot.ConceptCount)
	require.GreaterOrEqual(t, stats.Latency.Learn.Count, int64(1))
}
