package mmapstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sutradb/sutra/semantic"
	"github.com/sutradb/sutra/types"
)

func TestWriteSnapshotThenLoadAllRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.sutra")
	s, err := Open(path)
	require.NoError(t, err)

	a := types.ConceptId{1}
	b := types.ConceptId{2}
	meta := semantic.NewAnalyzer().Analyze("concepts always cause further concepts")
	concepts := []types.ConceptNode{
		{
			ID:           a,
			Content:      []byte("alpha concept"),
			Vector:       []float32{0.1, 0.2, 0.3},
			Strength:     1,
			Confidence:   0.9,
			Created:      100,
			LastAccessed: 100,
			Neighbors:    []types.ConceptId{b},
			Associations: []types.AssociationRecord{
				types.NewAssociationRecord(a, b, types.AssociationCausal, 0.8, 100),
			},
			Semantic: &meta,
		},
		{
			ID:           b,
			Content:      []byte("beta concept"),
			Strength:     1,
			Confidence:   0.5,
			Created:      200,
			LastAccessed: 200,
		},
	}

	require.NoError(t, s.WriteSnapshot(concepts))
	require.NoError(t, s.Sync())
	require.Equal(t, 2, s.ConceptCount())
	epochAfterFirst := s.Epoch()
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.LoadAll()
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	got, ok := loaded[a]
	require.True(t, ok)
	require.Equal(t, []byte("alpha concept"), got.Content)
	require.Equal(t, []float32{0.1, 0.2, 0.3}, got.Vector)
	require.Equal(t, []types.ConceptId{b}, got.Neighbors)
	require.Len(t, got.Associations, 1)
	require.Equal(t, types.AssociationCausal, got.Associations[0].Type)
	require.NotNil(t, got.Semantic)
	require.Equal(t, meta.SemanticType, got.Semantic.SemanticType)

	gotB, ok := loaded[b]
	require.True(t, ok)
	require.Equal(t, []byte("beta concept"), gotB.Content)
	require.Nil(t, gotB.Vector)
	require.Equal(t, epochAfterFirst, reopened.Epoch())
}

// TestLoadAllDedupsNeighborsButKeepsDuplicateAssociations covers the
// idempotence law in spec.md §8: a repeated learn_association call
// leaves two entries in Associations but must not grow Neighbors beyond
// one entry per distinct target, and that must still hold after a
// WriteSnapshot/Close/reopen/LoadAll round-trip — not just in the
// in-memory apply path.
func TestLoadAllDedupsNeighborsButKeepsDuplicateAssociations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.sutra")
	s, err := Open(path)
	require.NoError(t, err)

	a := types.ConceptId{1}
	b := types.ConceptId{2}
	rec1 := types.NewAssociationRecord(a, b, types.AssociationCausal, 0.8, 100)
	rec2 := types.NewAssociationRecord(a, b, types.AssociationCausal, 0.9, 200)
	concepts := []types.ConceptNode{
		{
			ID:           a,
			Content:      []byte("alpha"),
			Created:      100,
			LastAccessed: 100,
			Neighbors:    []types.ConceptId{b},
			Associations: []types.AssociationRecord{rec1, rec2},
		},
		{ID: b, Content: []byte("beta"), Created: 200, LastAccessed: 200},
	}

	require.NoError(t, s.WriteSnapshot(concepts))
	require.NoError(t, s.Sync())
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.LoadAll()
	require.NoError(t, err)

	got, ok := loaded[a]
	require.True(t, ok)
	require.Len(t, got.Associations, 2, "both association records must survive the round-trip")
	require.Equal(t, []types.ConceptId{b}, got.Neighbors, "Neighbors must stay deduplicated by target across a flush+reload")
}

func TestWriteSnapshotTwiceBumpsEpoch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.sutra")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	c := types.ConceptNode{ID: types.ConceptId{1}, Content: []byte("x"), Created: 1, LastAccessed: 1}
	require.NoError(t, s.WriteSnapshot([]types.ConceptNode{c}))
	first := s.Epoch()

	require.NoError(t, s.WriteSnapshot([]types.ConceptNode{c}))
	require.Greater(t, s.Epoch(), first)
}
