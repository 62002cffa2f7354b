// Package config holds the tunables for every layer of the engine and the
// validation that runs once at startup, in the style of the teacher's WAL
// construction options: a plain struct, a Validate method that returns
// ErrInvalidConfig wrapped with context, and go-kit/log warnings for values
// that are legal but suspicious rather than outright rejected.
package config

import (
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sutradb/sutra/types"
)

// Config is the full set of tunables for a ConcurrentMemory instance.
type Config struct {
	// StoragePath is the base directory for the MmapStore file, the WAL
	// directory, and the HNSW index file. Created on first use if it
	// doesn't already exist.
	StoragePath string

	// WriteLogCapacity bounds the MPSC ring. Must be >= 1.
	WriteLogCapacity int

	// VectorDimension is the fixed width every concept vector must match.
	// Must be > 0.
	VectorDimension int

	// DiskFlushThreshold is the number of applied write entries between
	// forced MmapStore/HNSW persistence calls. Must be >= 1.
	DiskFlushThreshold int

	// MemoryThreshold is an advisory concept count; it is only checked by
	// Validate and is never read or enforced by the engine itself.
	MemoryThreshold int

	Reconciler ReconcilerConfig

	// SyncOnAppend forces an fsync on every WAL append when true. Durable
	// but slow; when false, appends are written without an fsync.
	SyncOnAppend bool

	Logger     log.Logger
	Registerer prometheus.Registerer
}

// ReconcilerConfig tunes the AdaptiveReconciler's self-pacing loop.
type ReconcilerConfig struct {
	BaseIntervalMs uint64 // starting poll interval
	MinIntervalMs  uint64
	MaxIntervalMs  uint64

	MaxBatchSize int // entries drained per cycle

	// QueueWarningThreshold is a fraction of WriteLogCapacity; when the
	// queue depth is at or above it at an adjustment point the reconciler
	// logs a warning. It does not affect the chosen interval. Must be in
	// (0, 1].
	QueueWarningThreshold float64

	// EMAAlpha weights the most recent sample in the trend analyzer's
	// exponential moving averages. Must be in (0, 1].
	EMAAlpha float64

	// TrendWindowSize bounds the ring buffers the trend analyzer keeps
	// for queue-depth and drain-rate history. Must be > 0.
	TrendWindowSize int

	// AdjustEveryCycles is how often (in reconciler cycles) the interval
	// is recalculated from trend data.
	AdjustEveryCycles int

	// TelemetryEveryCycles is how often health/trend metrics are logged.
	TelemetryEveryCycles int
}

// DefaultConfig mirrors the original adaptive reconciler's defaults.
func DefaultConfig() Config {
	return Config{
		StoragePath:        "./sutra-data",
		WriteLogCapacity:   100_000,
		VectorDimension:    384,
		DiskFlushThreshold: 1000,
		MemoryThreshold:    1_000_000,
		SyncOnAppend:       false,
		Reconciler: ReconcilerConfig{
			BaseIntervalMs:        10,
			MinIntervalMs:         1,
			MaxIntervalMs:         100,
			MaxBatchSize:          10_000,
			QueueWarningThreshold: 0.8,
			EMAAlpha:              0.2,
			TrendWindowSize:       64,
			AdjustEveryCycles:     10,
			TelemetryEveryCycles:  100,
		},
		Logger:     log.NewNopLogger(),
		Registerer: prometheus.NewRegistry(),
	}
}

// Validate rejects configs that cannot run at all, and logs a warning for
// values that are legal but likely to be a typo (e.g. a vector dimension
// in the tens of thousands).
func (c *Config) Validate() error {
	if c.StoragePath == "" {
		return fmt.Errorf("storage path empty: %w", types.ErrInvalidConfig)
	}
	if c.WriteLogCapacity < 1 {
		return fmt.Errorf("write log capacity %d: %w", c.WriteLogCapacity, types.ErrInvalidConfig)
	}
	if c.VectorDimension <= 0 {
		return fmt.Errorf("vector dimension %d: %w", c.VectorDimension, types.ErrInvalidConfig)
	}
	if c.DiskFlushThreshold < 1 {
		return fmt.Errorf("disk flush threshold %d: %w", c.DiskFlushThreshold, types.ErrInvalidConfig)
	}
	if c.MemoryThreshold < 1000 {
		return fmt.Errorf("memory threshold %d: %w", c.MemoryThreshold, types.ErrInvalidConfig)
	}
	if err := c.Reconciler.validate(); err != nil {
		return err
	}
	if c.Logger == nil {
		c.Logger = log.NewNopLogger()
	}
	if c.Registerer == nil {
		c.Registerer = prometheus.NewRegistry()
	}

	logger := c.Logger
	if c.VectorDimension > 4096 {
		level.Warn(logger).Log("msg", "unusually large vector dimension", "dimension", c.VectorDimension)
	}
	if c.DiskFlushThreshold > 1_000_000 {
		level.Warn(logger).Log("msg", "unusually large disk flush threshold", "threshold", c.DiskFlushThreshold)
	}
	if c.MemoryThreshold > 10_000_000 {
		level.Warn(logger).Log("msg", "unusually large memory threshold", "threshold", c.MemoryThreshold)
	}
	if c.Reconciler.TrendWindowSize > 1000 {
		level.Warn(logger).Log("msg", "unusually large trend window size", "size", c.Reconciler.TrendWindowSize)
	}
	return nil
}

func (r *ReconcilerConfig) validate() error {
	if r.MinIntervalMs == 0 || r.MaxIntervalMs < r.MinIntervalMs || r.BaseIntervalMs < r.MinIntervalMs || r.BaseIntervalMs > r.MaxIntervalMs {
		return fmt.Errorf("reconciler interval bounds min=%d base=%d max=%d: %w", r.MinIntervalMs, r.BaseIntervalMs, r.MaxIntervalMs, types.ErrInvalidConfig)
	}
	if r.MaxBatchSize < 1 {
		return fmt.Errorf("reconciler max batch size %d: %w", r.MaxBatchSize, types.ErrInvalidConfig)
	}
	if r.QueueWarningThreshold <= 0 || r.QueueWarningThreshold > 1 {
		return fmt.Errorf("reconciler queue warning threshold %f: %w", r.QueueWarningThreshold, types.ErrInvalidConfig)
	}
	if r.EMAAlpha <= 0 || r.EMAAlpha > 1 {
		return fmt.Errorf("reconciler ema alpha %f: %w", r.EMAAlpha, types.ErrInvalidConfig)
	}
	if r.TrendWindowSize < 1 {
		return fmt.Errorf("reconciler trend window size %d: %w", r.TrendWindowSize, types.ErrInvalidConfig)
	}
	return nil
}
