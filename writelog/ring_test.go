package writelog

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/sutradb/sutra/types"
)

func newTestRing(t *testing.T, capacity int) *Ring {
	t.Helper()
	return NewRing(capacity, prometheus.NewRegistry())
}

func TestRingAppendAndDrainFIFO(t *testing.T) {
	r := newTestRing(t, 8)
	for i := 0; i < 5; i++ {
		id := types.ConceptId{byte(i)}
		_, err := r.Append(types.NewDeleteConcept(id))
		require.NoError(t, err)
	}
	got := r.DrainBatch(10)
	require.Len(t, got, 5)
	for i, e := range got {
		require.Equal(t, byte(i), e.TargetID[0])
		require.Equal(t, uint64(i), e.Sequence)
	}
	require.Equal(t, uint64(5), r.Stats().Written)
	require.Equal(t, uint64(0), r.Stats().Dropped)
}

func TestRingAppendFullReturnsErrFull(t *testing.T) {
	r := newTestRing(t, 4) // rounds up to 4, already pow2
	for i := 0; i < 4; i++ {
		_, err := r.Append(types.NewBatchMarker(i))
		require.NoError(t, err)
	}
	_, err := r.Append(types.NewBatchMarker(99))
	require.ErrorIs(t, err, types.ErrFull)
	require.Equal(t, uint64(1), r.Stats().Dropped)

	// draining frees capacity for more appends
	drained := r.DrainBatch(2)
	require.Len(t, drained, 2)
	_, err = r.Append(types.NewBatchMarker(100))
	require.NoError(t, err)
	require.Equal(t, uint64(5), r.Stats().Written)
}

func TestRingPartialDrain(t *testing.T) {
	r := newTestRing(t, 16)
	for i := 0; i < 10; i++ {
		_, err := r.Append(types.NewBatchMarker(i))
		require.NoError(t, err)
	}
	first := r.DrainBatch(4)
	require.Len(t, first, 4)
	second := r.DrainBatch(10)
	require.Len(t, second, 6)
	require.Equal(t, 0, first[0].BatchSize)
	require.Equal(t, 4, second[0].BatchSize)
}

func TestRingConcurrentProducers(t *testing.T) {
	const producers = 8
	const perProducer = 200
	r := newTestRing(t, 4096)

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				_, err := r.Append(types.NewBatchMarker(p))
				require.NoError(t, err)
			}
		}(p)
	}
	wg.Wait()

	total := 0
	for {
		batch := r.DrainBatch(64)
		if len(batch) == 0 {
			break
		}
		total += len(batch)
	}
	require.Equal(t, producers*perProducer, total)
	require.Equal(t, uint64(0), r.Stats().Pending)
}
