// Package reconciler implements the AdaptiveReconciler: the single
// background goroutine that drains the WriteLog ring, applies each entry
// to a cloned GraphSnapshot, publishes the result to the ReadView, and
// then hands the applied entries to the caller's PersistFunc — all while
// self-tuning its own poll interval from an EMA of recent queue depth
// (spec.md §4.3, original_source adaptive_reconciler.rs).
package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sutradb/sutra/config"
	"github.com/sutradb/sutra/readview"
	"github.com/sutradb/sutra/snapshot"
	"github.com/sutradb/sutra/types"
	"github.com/sutradb/sutra/writelog"
)

// ApplyFunc folds one WriteEntry into an in-progress snapshot build. It
// is supplied by the memory coordinator so the reconciler stays ignorant
// of HNSW/MmapStore/WAL specifics — its only job is pacing and
// publishing.
type ApplyFunc func(b *snapshot.Builder, entry types.WriteEntry) error

// PersistFunc is called after each cycle's batch has been applied and
// published, with the entries that were just folded in, so the caller can
// mirror them into HNSW and flush MmapStore/HNSW on the configured
// cadence. The WAL is not written here: entries reach the ring only after
// their WAL append. Errors are
// logged, not fatal: a persistence failure must never stall publishing
// the in-memory snapshot, since the WriteLog has already accepted the
// write and cannot be un-accepted.
type PersistFunc func(entries []types.WriteEntry) error

type metrics struct {
	cyclesRun           prometheus.Counter
	entriesApplied      prometheus.Counter
	intervalMs          prometheus.Gauge
	healthScore         prometheus.Gauge
	queueDepthEMA       prometheus.Gauge
	applyErrors         prometheus.Counter
	persistErrors       prometheus.Counter
	intervalAdjustments prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		cyclesRun: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "reconciler_cycles_total",
			Help: "reconciler_cycles_total counts drain/apply/publish cycles run.",
		}),
		entriesApplied: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "reconciler_entries_applied_total",
			Help: "reconciler_entries_applied_total counts WriteEntry values folded into a snapshot.",
		}),
		intervalMs: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "reconciler_interval_ms",
			Help: "reconciler_interval_ms is the current self-tuned poll interval.",
		}),
		healthScore: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "reconciler_health_score",
			Help: "reconciler_health_score is the 0..1 trend-derived health score.",
		}),
		queueDepthEMA: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "reconciler_queue_depth_ema",
			Help: "reconciler_queue_depth_ema is the EMA-smoothed write queue depth.",
		}),
		applyErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "reconciler_apply_errors_total",
			Help: "reconciler_apply_errors_total counts entries that failed to apply and were skipped.",
		}),
		persistErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "reconciler_persist_errors_total",
			Help: "reconciler_persist_errors_total counts PersistFunc failures.",
		}),
		intervalAdjustments: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "reconciler_interval_adjustments_total",
			Help: "reconciler_interval_adjustments_total counts adjustInterval calls that actually changed the poll interval.",
		}),
	}
}

// AdaptiveReconciler owns the single drain→clone→apply→publish loop.
type AdaptiveReconciler struct {
	cfg     config.ReconcilerConfig
	ring    *writelog.Ring
	view    *readview.ReadView
	apply   ApplyFunc
	persist PersistFunc
	logger  log.Logger
	metrics *metrics

	trend               *trendAnalyzer
	intervalMs          float64
	cycle               uint64
	appliedSinceMsg     int
	intervalAdjustments uint64

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// New builds a reconciler. apply and persist must be non-nil.
func New(cfg config.ReconcilerConfig, ring *writelog.Ring, view *readview.ReadView, apply ApplyFunc, persist PersistFunc, logger log.Logger, reg prometheus.Registerer) *AdaptiveReconciler {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &AdaptiveReconciler{
		cfg:        cfg,
		ring:       ring,
		view:       view,
		apply:      apply,
		persist:    persist,
		logger:     logger,
		metrics:    newMetrics(reg),
		trend:      newTrendAnalyzer(cfg.EMAAlpha, cfg.TrendWindowSize),
		intervalMs: float64(cfg.BaseIntervalMs),
	}
}

// Start launches the background loop. It is safe to call once; a second
// call is a no-op.
func (r *AdaptiveReconciler) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	r.mu.Unlock()

	go r.run(ctx)
}

// Stop signals the loop to exit and waits for it to finish its current
// cycle.
func (r *AdaptiveReconciler) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	stop := r.stop
	done := r.done
	r.mu.Unlock()

	close(stop)
	<-done
}

func (r *AdaptiveReconciler) run(ctx context.Context) {
	defer close(r.done)
	timer := time.NewTimer(time.Duration(r.intervalMs) * time.Millisecond)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.drainFully()
			return
		case <-r.stop:
			r.drainFully()
			return
		case <-timer.C:
			r.runCycle()
			timer.Reset(time.Duration(r.intervalMs) * time.Millisecond)
		}
	}
}

// drainFully runs cycles until the ring reports no pending entries, so a
// graceful shutdown never drops accepted writes.
func (r *AdaptiveReconciler) drainFully() {
	for r.ring.Stats().Pending > 0 {
		r.runCycle()
	}
}

func (r *AdaptiveReconciler) runCycle() {
	r.cycle++
	batch := r.ring.DrainBatch(r.cfg.MaxBatchSize)
	depthBefore := float64(r.ring.Stats().Pending) + float64(len(batch))

	base := r.view.Load()
	if len(batch) > 0 {
		b := snapshot.NewBuilder(base)
		applied := make([]types.WriteEntry, 0, len(batch))
		for _, entry := range batch {
			if err := r.apply(b, entry); err != nil {
				r.metrics.applyErrors.Inc()
				level.Warn(r.logger).Log("msg", "failed to apply write entry", "kind", entry.Kind.String(), "sequence", entry.Sequence, "err", err)
				continue
			}
			b.MarkSequence(entry.Sequence)
			applied = append(applied, entry)
		}
		next := b.Build(nowUs())
		r.view.Store(next)
		r.metrics.entriesApplied.Add(float64(len(applied)))

		if r.persist != nil {
			if err := r.persist(applied); err != nil {
				r.metrics.persistErrors.Inc()
				level.Error(r.logger).Log("msg", "persist failed", "err", err)
			}
		}
	}

	r.trend.observe(depthBefore, float64(len(batch)))
	r.metrics.cyclesRun.Inc()

	if r.cycle%uint64(r.cfg.AdjustEveryCycles) == 0 {
		r.adjustInterval()
	}
	if r.cycle%uint64(r.cfg.TelemetryEveryCycles) == 0 {
		r.logTelemetry()
	}
}

func (r *AdaptiveReconciler) adjustInterval() {
	capacity := float64(r.ring.Capacity())
	next := r.trend.calculateOptimalInterval(capacity, float64(r.cfg.MinIntervalMs), float64(r.cfg.MaxIntervalMs), float64(r.cfg.BaseIntervalMs))
	if next != r.intervalMs {
		r.intervalAdjustments++
		r.metrics.intervalAdjustments.Inc()
	}
	r.intervalMs = next
	r.metrics.intervalMs.Set(next)

	utilization := r.ring.Stats().Pending
	if float64(utilization) >= capacity*r.cfg.QueueWarningThreshold {
		level.Warn(r.logger).Log("msg", "write queue above warning threshold", "pending", utilization, "capacity", capacity, "interval_ms", next)
	}
}

// Stats is a point-in-time snapshot of the reconciler's self-tuning state,
// folded into ConcurrentMemory.Stats() (spec.md §4.9).
type Stats struct {
	Cycle               uint64
	IntervalMs          float64
	HealthScore         float64
	QueueDepthEMA       float64
	IntervalAdjustments uint64
}

// Stats reports the reconciler's current pacing and health. Safe to call
// concurrently with the running loop; the numbers are read without a lock
// since the loop is the sole writer and a torn read of a float64 gauge is
// not a correctness concern for telemetry.
func (r *AdaptiveReconciler) Stats() Stats {
	return Stats{
		Cycle:               r.cycle,
		IntervalMs:          r.intervalMs,
		HealthScore:         r.trend.calculateHealthScore(float64(r.ring.Capacity())),
		QueueDepthEMA:       r.trend.emaQueueDepth,
		IntervalAdjustments: r.intervalAdjustments,
	}
}

func (r *AdaptiveReconciler) logTelemetry() {
	health := r.trend.calculateHealthScore(float64(r.ring.Capacity()))
	r.metrics.healthScore.Set(health)
	r.metrics.queueDepthEMA.Set(r.trend.emaQueueDepth)
	level.Info(r.logger).Log("msg", "reconciler telemetry", "cycle", r.cycle, "health_score", health, "queue_depth_ema", r.trend.emaQueueDepth, "interval_ms", r.intervalMs)
}
