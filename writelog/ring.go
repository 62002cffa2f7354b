// Package writelog implements the lock-free bounded write plane described
// in spec.md §4.1: a fixed-capacity multi-producer single-consumer ring
// that callers append WriteEntry values to, and that exactly one
// reconciler goroutine drains in FIFO batches. It never blocks a writer;
// once full, Append returns ErrFull immediately.
//
// The slot-claim/publish protocol below is the same shape as the teacher's
// atomic.Value state-swap in wal.go (load current state, compute next,
// CAS/store, retry on contention) applied at per-slot granularity instead
// of whole-log granularity.
package writelog

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sutradb/sutra/types"
)

const (
	slotEmpty uint32 = iota
	slotWriting
	slotReady
)

type slot struct {
	state uint32 // atomic: slotEmpty | slotWriting | slotReady
	entry types.WriteEntry
}

// Ring is a bounded MPSC queue of WriteEntry values. Capacity is rounded up
// to a power of two at construction so slot indexing is a mask instead of
// a modulo.
type Ring struct {
	slots []slot
	mask  uint64

	// tail is the next sequence number a producer will claim; head is the
	// next sequence number the single consumer will read. Both only ever
	// increase. A producer may claim up to `capacity` sequences ahead of
	// head before Append starts returning ErrFull.
	tail uint64 // atomic
	head uint64 // owned by the single consumer goroutine, read atomically by producers

	written uint64 // atomic: total successful Append calls
	dropped uint64 // atomic: total Append calls that returned ErrFull

	capacity uint64
	metrics  *metrics
}

// NewRing builds a Ring backed by a prometheus Registerer for its gauges
// and counters, matching the teacher's promauto.With(reg) wiring in
// metrics.go.
func NewRing(capacity int, reg prometheus.Registerer) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	cap64 := nextPow2(uint64(capacity))
	r := &Ring{
		slots:    make([]slot, cap64),
		mask:     cap64 - 1,
		capacity: cap64,
		metrics:  newMetrics(reg),
	}
	r.metrics.capacity.Set(float64(cap64))
	return r
}

func nextPow2(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// Append claims the next sequence slot and publishes entry into it. It
// returns types.ErrFull immediately, without blocking, if the ring has no
// free slot (i.e. the consumer hasn't drained far enough yet). Safe for
// concurrent use by any number of producer goroutines.
func (r *Ring) Append(entry types.WriteEntry) (uint64, error) {
	var seq, head uint64
	for {
		head = atomic.LoadUint64(&r.head)
		seq = atomic.LoadUint64(&r.tail)
		if seq-head >= r.capacity {
			atomic.AddUint64(&r.dropped, 1)
			r.metrics.dropped.Inc()
			return 0, types.ErrFull
		}
		if atomic.CompareAndSwapUint64(&r.tail, seq, seq+1) {
			break
		}
	}
	idx := seq & r.mask
	s := &r.slots[idx]
	entry.Sequence = seq
	s.entry = entry
	atomic.StoreUint32(&s.state, slotReady)
	atomic.AddUint64(&r.written, 1)
	r.metrics.appended.Inc()
	r.metrics.pending.Set(float64(atomic.LoadUint64(&r.tail) - head))
	return seq, nil
}

// DrainBatch removes up to maxBatch ready entries from the head of the
// ring, in sequence order, and returns them. Must only be called from a
// single consumer goroutine (the reconciler); concurrent calls would race
// on r.head. A slot that a producer has claimed (via atomic.AddUint64 on
// tail) but not yet published (slotReady) is treated as the drain
// boundary: DrainBatch stops there rather than skip ahead, so entries are
// never reordered.
func (r *Ring) DrainBatch(maxBatch int) []types.WriteEntry {
	if maxBatch <= 0 {
		return nil
	}
	out := make([]types.WriteEntry, 0, maxBatch)
	head := r.head
	tail := atomic.LoadUint64(&r.tail)
	for len(out) < maxBatch && head < tail {
		idx := head & r.mask
		s := &r.slots[idx]
		if atomic.LoadUint32(&s.state) != slotReady {
			break
		}
		out = append(out, s.entry)
		atomic.StoreUint32(&s.state, slotEmpty)
		head++
	}
	atomic.StoreUint64(&r.head, head)
	r.metrics.drained.Add(float64(len(out)))
	r.metrics.pending.Set(float64(atomic.LoadUint64(&r.tail) - head))
	return out
}

// Stats reports the ring's current occupancy plus the spec.md §4.1
// `{written, dropped, pending, capacity}` lifetime counters.
type Stats struct {
	Capacity uint64
	Pending  uint64
	Tail     uint64
	Head     uint64
	Written  uint64
	Dropped  uint64
}

// Stats returns a point-in-time snapshot of queue depth and lifetime
// written/dropped counts. Safe for concurrent use.
func (r *Ring) Stats() Stats {
	tail := atomic.LoadUint64(&r.tail)
	head := atomic.LoadUint64(&r.head)
	return Stats{
		Capacity: r.capacity,
		Pending:  tail - head,
		Tail:     tail,
		Head:     head,
		Written:  atomic.LoadUint64(&r.written),
		Dropped:  atomic.LoadUint64(&r.dropped),
	}
}

// Capacity returns the ring's rounded capacity.
func (r *Ring) Capacity() int {
	return int(r.capacity)
}
