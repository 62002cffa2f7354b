package reconciler

import (
	"context"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/sutradb/sutra/config"
	"github.com/sutradb/sutra/readview"
	"github.com/sutradb/sutra/snapshot"
	"github.com/sutradb/sutra/types"
	"github.com/sutradb/sutra/writelog"
)

func TestReconcilerAppliesAndPublishes(t *testing.T) {
	ring := writelog.NewRing(64, prometheus.NewRegistry())
	view := readview.New()

	var persisted []types.WriteEntry
	apply := func(b *snapshot.Builder, e types.WriteEntry) error {
		if e.Kind == types.WriteAddConcept {
			b.PutConcept(e.Concept)
		}
		return nil
	}
	persist := func(entries []types.WriteEntry) error {
		persisted = append(persisted, entries...)
		return nil
	}

	cfg := config.DefaultConfig().Reconciler
	cfg.BaseIntervalMs = 5
	cfg.MinIntervalMs = 1
	cfg.MaxIntervalMs = 10

	r := New(cfg, ring, view, apply, persist, log.NewNopLogger(), prometheus.NewRegistry())

	id := types.ConceptId{1}
	_, err := ring.Append(types.NewAddConcept(types.ConceptNode{ID: id, Strength: 1}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	defer func() {
		cancel()
		r.Stop()
	}()

	require.Eventually(t, func() bool {
		return view.Load().Len() == 1
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return len(persisted) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestReconcilerDrainFullyOnStop(t *testing.T) {
	ring := writelog.NewRing(64, prometheus.NewRegistry())
	view := readview.New()
	applied := 0
	apply := func(b *snapshot.Builder, e types.WriteEntry) error {
		applied++
		return nil
	}
	cfg := config.DefaultConfig().Reconciler
	cfg.BaseIntervalMs = 50
	cfg.MinIntervalMs = 1
	cfg.MaxIntervalMs = 100

	r := New(cfg, ring, view, apply, nil, log.NewNopLogger(), prometheus.NewRegistry())
	for i := 0; i < 10; i++ {
		_, err := ring.Append(types.NewBatchMarker(i))
		require.NoError(t, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)
	r.Stop()

	require.Equal(t, 10, applied)
	require.Equal(t, uint64(0), ring.Stats().Pending)
}

// TestIntervalAdjustmentsIncrementUnderLoad exercises spec.md §8 scenario
// 4: under sustained load the self-tuned interval must move off its
// starting value and Stats().IntervalAdjustments must be observable as
// >= 1 at the coordinator's Stats() surface.
func TestIntervalAdjustmentsIncrementUnderLoad(t *testing.T) {
	ring := writelog.NewRing(64, prometheus.NewRegistry())
	view := readview.New()
	apply := func(b *snapshot.Builder, e types.WriteEntry) error { return nil }

	cfg := config.DefaultConfig().Reconciler
	cfg.BaseIntervalMs = 20
	cfg.MinIntervalMs = 1
	cfg.MaxIntervalMs = 200
	cfg.AdjustEveryCycles = 1
	cfg.MaxBatchSize = 1 // drain slowly so the queue stays deep across cycles

	r := New(cfg, ring, view, apply, nil, log.NewNopLogger(), prometheus.NewRegistry())

	for i := 0; i < 60; i++ {
		_, err := ring.Append(types.NewBatchMarker(i))
		require.NoError(t, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	defer func() {
		cancel()
		r.Stop()
	}()

	require.Eventually(t, func() bool {
		return r.Stats().IntervalAdjustments >= 1
	}, time.Second, 5*time.Millisecond)
}
