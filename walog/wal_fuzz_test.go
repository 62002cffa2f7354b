package walog

import (
	"testing"

	"github.com/go-kit/log"
	fuzz "github.com/google/gofuzz"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/sutradb/sutra/types"
)

// TestWALRoundTripsRandomConcepts generates a batch of randomized
// ConceptNode writes with gofuzz and checks that every field gofuzz
// populated survives an Append/Close/reopen/replay cycle byte-for-byte.
// This exercises the same durability property as the hand-written
// TestWALAppendAndReplay, but over many shapes of content/vector instead
// of one fixed example.
func TestWALRoundTripsRandomConcepts(t *testing.T) {
	f := fuzz.NewWithSeed(42).NilChance(0).NumElements(0, 8).MaxDepth(2)

	const n = 25
	want := make([]types.ConceptNode, n)
	for i := range want {
		var content []byte
		var vector []float32
		f.Fuzz(&content)
		f.Fuzz(&vector)

		want[i] = types.ConceptNode{
			ID:           types.ConceptId{byte(i + 1)},
			Content:      content,
			Vector:       vector,
			Strength:     float32(i) / float32(n),
			Confidence:   0.5,
			Created:      uint64(i) * 1000,
			LastAccessed: uint64(i) * 1000,
		}
	}

	dir := t.TempDir()
	w := openTestWAL(t, dir, nil)
	for _, c := range want {
		_, err := w.Append(types.NewAddConcept(c))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	var replayed []types.WriteEntry
	w2, err := Open(dir, true, log.NewNopLogger(), prometheus.NewRegistry(), func(e types.WriteEntry) error {
		replayed = append(replayed, e)
		return nil
	})
	require.NoError(t, err)
	defer w2.Close()

	require.Len(t, replayed, n)
	for i, e := range replayed {
		require.Equal(t, types.WriteAddConcept, e.Kind)
		require.Equal(t, want[i].ID, e.Concept.ID)
		require.Equal(t, want[i].Content, e.Concept.Content)
		require.Equal(t, want[i].Vector, e.Concept.Vector)
		require.Equal(t, want[i].Strength, e.Concept.Strength)
		require.Equal(t, want[i].Created, e.Concept.Created)
	}
}
