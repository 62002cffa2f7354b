// Package memory implements ConcurrentMemory (spec.md §4.7): the public
// coordinator that wires the WAL, the WriteLog ring, the ReadView, the
// AdaptiveReconciler, the HnswContainer, and the MmapStore into the single
// learn_*/query_*/flush surface callers use. Every other package in this
// module is a leaf the coordinator assembles; this is the root.
package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/singleflight"

	"github.com/sutradb/sutra/config"
	"github.com/sutradb/sutra/hnsw"
	"github.com/sutradb/sutra/mmapstore"
	"github.com/sutradb/sutra/readview"
	"github.com/sutradb/sutra/reconciler"
	"github.com/sutradb/sutra/semantic"
	"github.com/sutradb/sutra/snapshot"
	"github.com/sutradb/sutra/types"
	"github.com/sutradb/sutra/walog"
	"github.com/sutradb/sutra/writelog"
)

const (
	mmapFileName  = "graph.sutra"
	hnswFileName  = "index.hnsw"
	walSubdirName = "wal"
)

// Config is the full set of tunables for a Memory instance: the ambient
// engine config (storage, capacities, reconciler tuning, logging, metrics)
// plus the one domain collaborator the core doesn't implement itself.
type Config struct {
	config.Config

	// Embedder is optional. When set, LearnText can derive a vector from
	// content instead of requiring the caller to supply one. Nil is valid:
	// callers that already have vectors use LearnConcept directly.
	Embedder Embedder

	// HnswMaxNeighbors, HnswEfConstruction tune the vector index; zero
	// values fall back to hnsw's own defaults.
	HnswMaxNeighbors   int
	HnswEfConstruction int
}

// Memory is the concrete ConcurrentMemory coordinator.
type Memory struct {
	cfg    Config
	logger log.Logger

	wal   walAppender
	ring  *writelog.Ring
	view  *readview.ReadView
	recon *reconciler.AdaptiveReconciler
	hnsw  *hnsw.Container
	store *mmapstore.Store
	sem   *semantic.Analyzer

	lat *latencies

	flushMu    sync.Mutex
	flushGroup singleflight.Group

	sinceFlush struct {
		mu    sync.Mutex
		count int
	}

	reconCtx    context.Context
	reconCancel context.CancelFunc
}

// New validates cfg, opens (or creates) every on-disk component, replays
// the WAL into an initial GraphSnapshot seeded from the MmapStore's last
// flush, builds the HnswContainer from the resulting vectors, and starts
// the AdaptiveReconciler. The returned Memory owns all of it; call
// Shutdown to release it cleanly.
func New(cfg Config) (*Memory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	reg := cfg.Registerer

	store, err := mmapstore.Open(filepath.Join(cfg.StoragePath, mmapFileName))
	if err != nil {
		return nil, fmt.Errorf("open mmapstore: %w", err)
	}

	loaded, err := store.LoadAll()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load mmapstore graph: %w", err)
	}

	builder := snapshot.NewBuilder(nil)
	for _, c := range loaded {
		builder.PutConcept(c)
	}

	wal, err := walog.Open(filepath.Join(cfg.StoragePath, walSubdirName), cfg.SyncOnAppend, logger, reg, func(entry types.WriteEntry) error {
		err := applyEntry(builder, entry)
		builder.MarkSequence(entry.Sequence)
		return err
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open wal: %w", err)
	}

	initial := builder.Build(nowUs())

	vectors := make(map[types.ConceptId][]float32)
	it := initial.Iterator()
	for !it.Done() {
		id, c, _ := it.Next()
		if len(c.Vector) == cfg.VectorDimension {
			vectors[id] = c.Vector
		}
	}

	idx, err := hnsw.LoadOrBuild(filepath.Join(cfg.StoragePath, hnswFileName), cfg.VectorDimension, cfg.HnswMaxNeighbors, cfg.HnswEfConstruction, vectors)
	if err != nil {
		wal.Close()
		store.Close()
		return nil, fmt.Errorf("load hnsw index: %w", err)
	}

	view := readview.New()
	view.Store(initial)

	ring := writelog.NewRing(cfg.WriteLogCapacity, reg)

	m := &Memory{
		cfg:    cfg,
		logger: logger,
		wal:    wal,
		ring:   ring,
		view:   view,
		hnsw:   idx,
		store:  store,
		sem:    semantic.NewAnalyzer(),
		lat:    newLatencies(),
	}

	m.recon = reconciler.New(cfg.Reconciler, ring, view, applyEntry, m.persistBatch, logger, reg)
	m.reconCtx, m.reconCancel = context.WithCancel(context.Background())
	m.recon.Start(m.reconCtx)

	level.Info(logger).Log("msg", "memory opened", "storage_path", cfg.StoragePath, "concepts", initial.ConceptCount, "vectors", len(vectors))
	return m, nil
}

// persistBatch is the reconciler's PersistFunc (spec.md §4.4, §4.7):
// mirror vector-bearing writes into the HnswContainer and, on the
// configured disk-flush cadence, run a full Flush. It never touches the
// WAL — every entry here was already durably appended before it reached
// the WriteLog, per I5 — its only job is the side effects that happen
// strictly after a write becomes visible in a published snapshot.
func (m *Memory) persistBatch(entries []types.WriteEntry) error {
	for _, e := range entries {
		switch e.Kind {
		case types.WriteAddConcept:
			if len(e.Concept.Vector) == m.cfg.VectorDimension {
				m.hnsw.Insert(e.Concept.ID, e.Concept.Vector)
			}
		case types.WriteDeleteConcept:
			m.hnsw.Delete(e.TargetID)
		}
	}

	m.sinceFlush.mu.Lock()
	m.sinceFlush.count += len(entries)
	due := m.sinceFlush.count >= m.cfg.DiskFlushThreshold
	if due {
		m.sinceFlush.count = 0
	}
	m.sinceFlush.mu.Unlock()

	if due {
		if err := m.Flush(context.Background()); err != nil {
			level.Error(m.logger).Log("msg", "disk-flush-threshold flush failed", "err", err)
			return err
		}
	}
	return nil
}

// Flush serializes the current snapshot to the MmapStore, syncs it, saves
// the HnswContainer if dirty, and truncates the WAL (spec.md §4.7). It is
// the only durability checkpoint; between checkpoints the WAL is the sole
// source of truth for writes that survived a crash. A manual Flush call
// from a caller can race the disk-flush-threshold Flush persistBatch
// triggers from the reconciler goroutine; flushGroup collapses any such
// overlapping calls into a single actual flush via singleflight rather
// than queuing redundant passes behind flushMu one after another.
func (m *Memory) Flush(ctx context.Context) error {
	stop := m.lat.start(opFlush)
	defer stop()

	if err := ctx.Err(); err != nil {
		return err
	}

	_, err, _ := m.flushGroup.Do("flush", func() (interface{}, error) {
		return nil, m.flushOnce()
	})
	return err
}

func (m *Memory) flushOnce() error {
	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	snap := m.view.Load()
	concepts := make([]types.ConceptNode, 0, snap.Len())
	it := snap.Iterator()
	for !it.Done() {
		_, c, _ := it.Next()
		concepts = append(concepts, c)
	}

	if err := m.store.WriteSnapshot(concepts); err != nil {
		return fmt.Errorf("write mmapstore snapshot: %w", err)
	}
	if err := m.store.Sync(); err != nil {
		return fmt.Errorf("sync mmapstore: %w", err)
	}

	if m.hnsw.IsDirty() {
		if err := m.hnsw.Save(filepath.Join(m.cfg.StoragePath, hnswFileName)); err != nil {
			level.Error(m.logger).Log("msg", "hnsw save failed, index remains in memory", "err", err)
		}
	}

	if err := m.wal.Truncate(); err != nil {
		return fmt.Errorf("truncate wal: %w", err)
	}

	level.Info(m.logger).Log("msg", "flush complete", "concepts", len(concepts), "epoch", m.store.Epoch())
	return nil
}

// Shutdown flushes, then stops the reconciler (joining its goroutine),
// then closes the WAL and MmapStore. Safe to call once.
func (m *Memory) Shutdown(ctx context.Context) error {
	if err := m.Flush(ctx); err != nil {
		level.Error(m.logger).Log("msg", "flush during shutdown failed", "err", err)
	}
	if m.reconCancel != nil {
		m.reconCancel()
	}
	m.recon.Stop()

	var firstErr error
	if err := m.wal.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := m.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Stats aggregates every component's observability surface (spec.md
// §4.9) into one snapshot.
func (m *Memory) Stats() Stats {
	snap := m.view.Load()
	return Stats{
		WriteLog:   m.ring.Stats(),
		Reconciler: m.recon.Stats(),
		Snapshot: SnapshotStats{
			Sequence:     snap.Sequence,
			TimestampUs:  snap.TimestampUs,
			ConceptCount: snap.ConceptCount,
			EdgeCount:    snap.EdgeCount,
		},
		MmapStore: MmapStoreStats{
			ConceptCount: m.store.ConceptCount(),
			Epoch:        m.store.Epoch(),
		},
		Hnsw: HnswStats{
			Len:   m.hnsw.Len(),
			Dirty: m.hnsw.IsDirty(),
		},
		Latency: m.lat.snapshot(),
	}
}

// appendWrite is the common tail of every write API: serialize+append to
// the WAL (durable before any in-memory effect, I5), then enqueue to the
// WriteLog ring. A WAL failure leaves no in-memory effect and propagates
// to the caller. A ring Full also propagates, but — per the resolved
// open question in spec.md §3 — the WAL record it already wrote remains
// durable and will be re-applied (idempotently) on the next replay.
func (m *Memory) appendWrite(entry types.WriteEntry) (uint64, error) {
	if _, err := m.wal.Append(entry); err != nil {
		return 0, fmt.Errorf("wal append: %w", err)
	}
	if m.cfg.SyncOnAppend {
		if err := m.wal.Sync(); err != nil {
			return 0, fmt.Errorf("wal sync: %w", err)
		}
	}
	seq, err := m.ring.Append(entry)
	if err != nil {
		level.Warn(m.logger).Log("msg", "write log full, backpressure engaged", "kind", entry.Kind.String(), "err", err)
		return 0, err
	}
	return seq, nil
}

// walAppender is the subset of *walog.WAL that Memory depends on.
type walAppender interface {
	Append(types.WriteEntry) (uint64, error)
	Sync() error
	Truncate() error
	Close() error
}
