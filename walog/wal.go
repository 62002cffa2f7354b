package walog

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sutradb/sutra/types"
)

const (
	logFileName    = "wal.log"
	blobFileName   = "payload.blob"
	metaFileName   = "wal.meta.db"
	blobIndexEntry = 16 // sequence(8) + offset(8); no blob index is kept, offsets live in AddConcept payloads
)

// WAL is an append-only, crash-recoverable log of WriteEntry metadata plus
// a companion payload blob file for the content/vector bytes that don't
// belong in the hot metadata stream. One process may hold a WAL open for
// writing at a time; reads during replay happen before any writer starts.
//
// Structurally this mirrors the teacher's WAL in wal.go: a single
// writeMu serializes appends, an on-disk metaDB (here bbolt instead of
// the teacher's pluggable MetaStore) tracks durable watermarks, and Close
// is idempotent via an atomic "closed" flag checked first for struct
// alignment, exactly as the teacher does.
type WAL struct {
	closed uint32 // atomic, checked first for alignment like the teacher's WAL.closed

	dir     string
	logFile *os.File
	blob    *os.File
	meta    *metaStore

	writeMu sync.Mutex

	logOffset uint64 // next write offset in logFile
	seq       uint64 // atomic: next sequence to assign

	syncOnAppend bool

	logger  log.Logger
	metrics *metrics
}

// Open creates dir if needed and opens (or initializes) the WAL rooted
// there, replaying any existing records into replayFn before returning.
// replayFn receives entries in sequence order with complete transactions
// only — entries from a transaction that never committed are discarded,
// matching the teacher's practice of never exposing partial state to
// LogStore consumers.
func Open(dir string, syncOnAppend bool, logger log.Logger, reg prometheus.Registerer, replayFn func(types.WriteEntry) error) (*WAL, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create wal dir: %w", err)
	}

	meta, err := openMetaStore(filepath.Join(dir, metaFileName))
	if err != nil {
		return nil, err
	}

	logFile, err := os.OpenFile(filepath.Join(dir, logFileName), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		meta.Close()
		return nil, fmt.Errorf("open wal log file: %w", err)
	}
	blob, err := os.OpenFile(filepath.Join(dir, blobFileName), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		logFile.Close()
		meta.Close()
		return nil, fmt.Errorf("open wal blob file: %w", err)
	}

	w := &WAL{
		dir:          dir,
		logFile:      logFile,
		blob:         blob,
		meta:         meta,
		syncOnAppend: syncOnAppend,
		logger:       logger,
		metrics:      newMetrics(reg),
	}

	if fi, err := blob.Stat(); err == nil && fi.Size() == 0 {
		// Reserve offset 0 so a zero blob-offset field unambiguously means
		// "no blob" instead of colliding with a real blob at the start of
		// the file.
		if _, err := blob.WriteAt([]byte{0}, 0); err != nil {
			w.Close()
			return nil, fmt.Errorf("init wal blob file: %w", err)
		}
	}

	if err := w.replay(replayFn); err != nil {
		w.Close()
		return nil, err
	}

	return w, nil
}

// replay scans logFile from the start, buffering complete transactions
// until their Commit record is seen (Abort or a torn tail at EOF discards
// them), and handing committed entries to fn in order. It tolerates a
// torn tail: a partially-written final record at a crash boundary stops
// replay without error, per spec.md §9's idempotent-replay resolution.
func (w *WAL) replay(fn func(types.WriteEntry) error) error {
	data, err := io.ReadAll(w.logFile)
	if err != nil {
		return fmt.Errorf("read wal log: %w", err)
	}

	var pending []record
	var inTx bool
	var maxSeq uint64
	offset := 0
	for offset < len(data) {
		rec, n, err := decodeRecord(data[offset:])
		if err != nil {
			level.Warn(w.logger).Log("msg", "wal checksum mismatch, stopping replay", "offset", offset)
			w.metrics.replayCorrupt.Inc()
			break
		}
		if n == 0 {
			// torn tail: stop quietly, this is the normal crash case.
			break
		}
		switch rec.tx {
		case txBegin:
			inTx = true
			pending = pending[:0]
		case txCommit:
			for _, p := range pending {
				if err := w.deliver(p, fn); err != nil {
					return err
				}
			}
			pending = pending[:0]
			inTx = false
		case txAbort:
			pending = pending[:0]
			inTx = false
		default: // txNone
			if inTx {
				pending = append(pending, rec)
			} else if err := w.deliver(rec, fn); err != nil {
				return err
			}
		}
		if rec.sequence > maxSeq {
			maxSeq = rec.sequence
		}
		offset += n
	}

	w.logOffset = uint64(offset)
	persistedSeq, err := w.meta.nextSequence()
	if err != nil {
		return err
	}
	next := maxSeq + 1
	if persistedSeq > next {
		next = persistedSeq
	}
	atomic.StoreUint64(&w.seq, next)

	// Drop any open-transaction marker left by a crash mid-transaction;
	// its records were never delivered above since no Commit followed.
	if _, open, _ := w.meta.openTransactionSeq(); open {
		level.Warn(w.logger).Log("msg", "discarding dangling open transaction found on replay")
		w.meta.closeTransaction()
	}

	return nil
}

func (w *WAL) deliver(rec record, fn func(types.WriteEntry) error) error {
	entry, err := decodePayload(rec.kind, rec.sequence, rec.payload)
	if err != nil {
		return err
	}
	w.metrics.replayRecords.Inc()
	if fn == nil {
		return nil
	}
	if rec.kind == types.WriteAddConcept {
		if off, ok := blobOffset(rec.payload); ok && off != 0 {
			content, vector, err := w.readBlobAt(off)
			if err == nil {
				entry.Concept.Content = content
				entry.Concept.Vector = vector
			}
		}
	}
	return fn(entry)
}

// Append writes entry as a single non-transactional record and returns
// its assigned sequence number.
func (w *WAL) Append(entry types.WriteEntry) (uint64, error) {
	return w.appendWithTx(entry, txNone)
}

func (w *WAL) appendWithTx(entry types.WriteEntry, tx uint8) (uint64, error) {
	if atomic.LoadUint32(&w.closed) == 1 {
		return 0, types.ErrClosed
	}
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	seq := atomic.AddUint64(&w.seq, 1) - 1
	entry.Sequence = seq

	payload := encodePayload(entry)
	if entry.Kind == types.WriteAddConcept {
		var off int64
		if len(entry.Concept.Content) > 0 || len(entry.Concept.Vector) > 0 {
			var err error
			off, err = w.appendBlob(entry.Concept.Content, entry.Concept.Vector)
			if err != nil {
				return 0, err
			}
		}
		payload = setBlobOffset(payload, off)
	}

	rec := record{sequence: seq, tx: tx, kind: entry.Kind, payload: payload}
	buf := rec.encode()
	n, err := w.logFile.WriteAt(buf, int64(w.logOffset))
	if err != nil {
		return 0, fmt.Errorf("append wal record: %w", err)
	}
	w.logOffset += uint64(n)
	w.metrics.recordsAppended.Inc()
	w.metrics.bytesAppended.Add(float64(n))

	if w.syncOnAppend {
		if err := w.logFile.Sync(); err != nil {
			return 0, fmt.Errorf("sync wal: %w", err)
		}
		w.metrics.fsyncs.Inc()
	}
	if err := w.meta.commitSequence(seq + 1); err != nil {
		return 0, err
	}
	return seq, nil
}

// appendBlob writes content and vector to the payload blob file and
// returns the byte offset of the record header so readBlobAt can locate
// it later.
func (w *WAL) appendBlob(content []byte, vector []float32) (int64, error) {
	off, err := w.blob.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("seek wal blob: %w", err)
	}
	bw := bufio.NewWriter(w.blob)
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(len(content)))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(vector)))
	if _, err := bw.Write(hdr[:]); err != nil {
		return 0, err
	}
	if _, err := bw.Write(content); err != nil {
		return 0, err
	}
	for _, f := range vector {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], float32bits(f))
		if _, err := bw.Write(b[:]); err != nil {
			return 0, err
		}
	}
	if err := bw.Flush(); err != nil {
		return 0, fmt.Errorf("flush wal blob: %w", err)
	}
	return off, nil
}

func (w *WAL) readBlobAt(offset int64) ([]byte, []float32, error) {
	var hdr [8]byte
	if _, err := w.blob.ReadAt(hdr[:], offset); err != nil {
		return nil, nil, err
	}
	contentLen := binary.LittleEndian.Uint32(hdr[0:4])
	vectorLen := binary.LittleEndian.Uint32(hdr[4:8])

	content := make([]byte, contentLen)
	if contentLen > 0 {
		if _, err := w.blob.ReadAt(content, offset+8); err != nil {
			return nil, nil, err
		}
	}
	vector := make([]float32, vectorLen)
	vb := make([]byte, vectorLen*4)
	if vectorLen > 0 {
		if _, err := w.blob.ReadAt(vb, offset+8+int64(contentLen)); err != nil {
			return nil, nil, err
		}
		for i := range vector {
			vector[i] = float32frombits(binary.LittleEndian.Uint32(vb[i*4:]))
		}
	}
	return content, vector, nil
}

// Tx represents an open WAL transaction. Entries appended through it are
// invisible to replay until Commit is called; Abort discards them.
type Tx struct {
	w         *WAL
	beginSeq  uint64
	committed bool
}

// BeginTx opens a transaction. Only one may be open at a time since the
// WAL has a single writer, matching the teacher's single-writer WAL
// design (writeMu serializes all mutation).
func (w *WAL) BeginTx() (*Tx, error) {
	if atomic.LoadUint32(&w.closed) == 1 {
		return nil, types.ErrClosed
	}
	seq, err := w.appendWithTx(types.WriteEntry{Kind: types.WriteBatchMarker}, txBegin)
	if err != nil {
		return nil, err
	}
	if err := w.meta.openTransaction(seq); err != nil {
		return nil, err
	}
	return &Tx{w: w, beginSeq: seq}, nil
}

// Append adds entry to the open transaction.
func (t *Tx) Append(entry types.WriteEntry) (uint64, error) {
	return t.w.appendWithTx(entry, txNone)
}

// Commit marks the transaction durable; its entries become visible to a
// future replay.
func (t *Tx) Commit() error {
	_, err := t.w.appendWithTx(types.WriteEntry{Kind: types.WriteBatchMarker}, txCommit)
	if err != nil {
		return err
	}
	t.committed = true
	t.w.metrics.transactions.WithLabelValues("commit").Inc()
	return t.w.meta.closeTransaction()
}

// Abort discards the transaction; a future replay skips its entries.
func (t *Tx) Abort() error {
	if t.committed {
		return nil
	}
	_, err := t.w.appendWithTx(types.WriteEntry{Kind: types.WriteBatchMarker}, txAbort)
	if err != nil {
		return err
	}
	t.w.metrics.transactions.WithLabelValues("abort").Inc()
	return t.w.meta.closeTransaction()
}

// Sync forces the log file to stable storage.
func (w *WAL) Sync() error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if err := w.logFile.Sync(); err != nil {
		return err
	}
	w.metrics.fsyncs.Inc()
	return w.blob.Sync()
}

// Truncate performs the safe checkpoint described in spec.md §4.2: once
// the caller has successfully flushed the current snapshot to the
// MmapStore, every WAL record and blob byte becomes redundant (they would
// only ever be replayed to reconstruct exactly the state the flush just
// made durable by other means), so the log and blob files are reset to
// empty. Sequence numbering is never reset — I1 requires it strictly
// increasing for the lifetime of the store, not just since the last
// truncation — so a fresh replay after a truncated WAL with no
// intervening writes correctly yields the empty prefix.
func (w *WAL) Truncate() error {
	if atomic.LoadUint32(&w.closed) == 1 {
		return types.ErrClosed
	}
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if err := w.logFile.Truncate(0); err != nil {
		return fmt.Errorf("truncate wal log: %w", err)
	}
	if _, err := w.logFile.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek wal log: %w", err)
	}
	w.logOffset = 0

	if err := w.blob.Truncate(0); err != nil {
		return fmt.Errorf("truncate wal blob: %w", err)
	}
	if _, err := w.blob.WriteAt([]byte{0}, 0); err != nil {
		return fmt.Errorf("reinit wal blob: %w", err)
	}

	w.metrics.truncations.Inc()
	return nil
}

// Close flushes and releases all file handles. Idempotent.
func (w *WAL) Close() error {
	if !atomic.CompareAndSwapUint32(&w.closed, 0, 1) {
		return nil
	}
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	var firstErr error
	if err := w.logFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.blob.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.meta.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
