package walog

import (
	"testing"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/sutradb/sutra/types"
)

func openTestWAL(t *testing.T, dir string, replayFn func(types.WriteEntry) error) *WAL {
	t.Helper()
	w, err := Open(dir, true, log.NewNopLogger(), prometheus.NewRegistry(), replayFn)
	require.NoError(t, err)
	return w
}

func TestWALAppendAndReplay(t *testing.T) {
	dir := t.TempDir()

	w := openTestWAL(t, dir, nil)
	id := types.ConceptId{1, 2, 3}
	c := types.ConceptNode{ID: id, Content: []byte("hello world"), Vector: []float32{0.1, 0.2, 0.3}, Strength: 1, Confidence: 0.9, Created: 100, LastAccessed: 100}
	_, err := w.Append(types.NewAddConcept(c))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	var replayed []types.WriteEntry
	w2 := openTestWAL(t, dir, func(e types.WriteEntry) error {
		replayed = append(replayed, e)
		return nil
	})
	defer w2.Close()

	require.Len(t, replayed, 1)
	got := replayed[0]
	require.Equal(t, types.WriteAddConcept, got.Kind)
	require.Equal(t, id, got.Concept.ID)
	require.Equal(t, []byte("hello world"), got.Concept.Content)
	require.Equal(t, []float32{0.1, 0.2, 0.3}, got.Concept.Vector)
}

func TestWALTransactionCommitVisibleOnReplay(t *testing.T) {
	dir := t.TempDir()
	w := openTestWAL(t, dir, nil)

	tx, err := w.BeginTx()
	require.NoError(t, err)
	_, err = tx.Append(types.NewDeleteConcept(types.ConceptId{9}))
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	require.NoError(t, w.Close())

	var replayed []types.WriteEntry
	w2 := openTestWAL(t, dir, func(e types.WriteEntry) error {
		replayed = append(replayed, e)
		return nil
	})
	defer w2.Close()

	require.Len(t, replayed, 1)
	require.Equal(t, types.WriteDeleteConcept, replayed[0].Kind)
}

func TestWALTransactionAbortInvisibleOnReplay(t *testing.T) {
	dir := t.TempDir()
	w := openTestWAL(t, dir, nil)

	tx, err := w.BeginTx()
	require.NoError(t, err)
	_, err = tx.Append(types.NewDeleteConcept(types.ConceptId{9}))
	require.NoError(t, err)
	require.NoError(t, tx.Abort())
	require.NoError(t, w.Close())

	var replayed []types.WriteEntry
	w2 := openTestWAL(t, dir, func(e types.WriteEntry) error {
		replayed = append(replayed, e)
		return nil
	})
	defer w2.Close()

	require.Empty(t, replayed)
}

func TestWALTruncateResetsReplayToEmpty(t *testing.T) {
	dir := t.TempDir()
	w := openTestWAL(t, dir, nil)

	_, err := w.Append(types.NewDeleteConcept(types.ConceptId{7}))
	require.NoError(t, err)
	require.NoError(t, w.Truncate())
	require.NoError(t, w.Close())

	var replayed []types.WriteEntry
	w2 := openTestWAL(t, dir, func(e types.WriteEntry) error {
		replayed = append(replayed, e)
		return nil
	})
	defer w2.Close()

	require.Empty(t, replayed)

	seq, err := w2.Append(types.NewDeleteConcept(types.ConceptId{8}))
	require.NoError(t, err)
	require.Greater(t, seq, uint64(0), "sequence numbering must not reset across a truncation")
}

func TestWALClosedRejectsAppend(t *testing.T) {
	dir := t.TempDir()
	w := openTestWAL(t, dir, nil)
	require.NoError(t, w.Close())

	_, err := w.Append(types.NewDeleteConcept(types.ConceptId{1}))
	require.ErrorIs(t, err, types.ErrClosed)
}
