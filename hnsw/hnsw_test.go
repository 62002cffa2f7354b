package hnsw

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sutradb/sutra/types"
)

func TestIndexInsertAndSearchFindsExactMatch(t *testing.T) {
	idx := New(4, 8, 50)
	target := types.ConceptId{1}
	idx.Insert(target, []float32{1, 0, 0, 0})
	idx.Insert(types.ConceptId{2}, []float32{0, 1, 0, 0})
	idx.Insert(types.ConceptId{3}, []float32{0, 0, 1, 0})

	results := idx.Search([]float32{1, 0, 0, 0}, 1, 50)
	require.Len(t, results, 1)
	require.Equal(t, target, results[0].ID)
	require.InDelta(t, 1.0, float64(results[0].Similarity), 1e-5)
}

func TestIndexReinsertReplaces(t *testing.T) {
	idx := New(2, 8, 50)
	id := types.ConceptId{9}
	idx.Insert(id, []float32{1, 0})
	idx.Insert(id, []float32{0, 1})
	require.Equal(t, 1, idx.Len())

	results := idx.Search([]float32{0, 1}, 1, 50)
	require.Equal(t, id, results[0].ID)
}

func TestContainerSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.hnsw")

	c, err := LoadOrBuild(path, 3, 8, 50, nil)
	require.NoError(t, err)
	c.Insert(types.ConceptId{1}, []float32{1, 0, 0})
	c.Insert(types.ConceptId{2}, []float32{0, 1, 0})
	require.True(t, c.IsDirty())
	require.NoError(t, c.Save(path))
	require.False(t, c.IsDirty())

	c2, err := LoadOrBuild(path, 3, 8, 50, nil)
	require.NoError(t, err)
	require.Equal(t, 2, c2.Len())

	results := c2.Search([]float32{1, 0, 0}, 1, 50)
	require.Len(t, results, 1)
	require.Equal(t, types.ConceptId{1}, results[0].ID)
}

func TestContainerDelete(t *testing.T) {
	c, err := LoadOrBuild(filepath.Join(t.TempDir(), "missing.hnsw"), 2, 8, 50, nil)
	require.NoError(t, err)
	id := types.ConceptId{5}
	c.Insert(id, []float32{1, 1})
	require.Equal(t, 1, c.Len())
	c.Delete(id)
	require.Equal(t, 0, c.Len())
}

func TestLoadOrBuildSeedsFromInitialVectors(t *testing.T) {
	initial := map[types.ConceptId][]float32{
		{1}: {1, 0, 0},
		{2}: {0, 1, 0},
		{3}: {9, 9}, // wrong dimension, must be skipped rather than corrupt the index
	}
	c, err := LoadOrBuild(filepath.Join(t.TempDir(), "missing.hnsw"), 3, 8, 50, initial)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())
	require.False(t, c.IsDirty(), "seeding from an existing graph is not itself an unsaved mutation")

	results := c.Search([]float32{1, 0, 0}, 1, 50)
	require.Len(t, results, 1)
	require.Equal(t, types.ConceptId{1}, results[0].ID)
}
