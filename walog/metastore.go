package walog

import (
	"encoding/binary"
	"fmt"

	"go.etcd.io/bbolt"
)

// metaStore persists the small amount of state that must survive a crash
// and can't simply be re-derived by scanning the log: the next sequence
// number to hand out and the id of any transaction that was open when the
// process died. bbolt gives us crash-safe single-writer key/value storage
// for free, the same role sqlite/boltdb databases play as the "metaDB" in
// the teacher's WAL (types.MetaStore in wal.go).
type metaStore struct {
	db *bbolt.DB
}

var (
	bucketMeta      = []byte("meta")
	keyNextSequence = []byte("next_sequence")
	keyOpenTx       = []byte("open_tx") // absent if no transaction is open
)

func openMetaStore(path string) (*metaStore, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open wal metastore: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketMeta)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init wal metastore: %w", err)
	}
	return &metaStore{db: db}, nil
}

func (m *metaStore) Close() error {
	return m.db.Close()
}

// nextSequence reads the last persisted sequence watermark, defaulting to
// 0 if the store was just created.
func (m *metaStore) nextSequence() (uint64, error) {
	var seq uint64
	err := m.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta).Get(keyNextSequence)
		if b == nil {
			return nil
		}
		seq = binary.LittleEndian.Uint64(b)
		return nil
	})
	return seq, err
}

// commitSequence persists the watermark after a successful append so a
// restart resumes numbering correctly even before the next replay.
func (m *metaStore) commitSequence(seq uint64) error {
	return m.db.Update(func(tx *bbolt.Tx) error {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], seq)
		return tx.Bucket(bucketMeta).Put(keyNextSequence, buf[:])
	})
}

// openTransaction records that a transaction with the given begin
// sequence is in flight, so that a crash between Begin and Commit/Abort
// can be detected and the dangling transaction rolled back on replay.
func (m *metaStore) openTransaction(beginSeq uint64) error {
	return m.db.Update(func(tx *bbolt.Tx) error {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], beginSeq)
		return tx.Bucket(bucketMeta).Put(keyOpenTx, buf[:])
	})
}

func (m *metaStore) closeTransaction() error {
	return m.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMeta).Delete(keyOpenTx)
	})
}

// openTransactionSeq returns the begin-sequence of the still-open
// transaction, if any, and whether one was found.
func (m *metaStore) openTransactionSeq() (uint64, bool, error) {
	var seq uint64
	var ok bool
	err := m.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta).Get(keyOpenTx)
		if b == nil {
			return nil
		}
		seq = binary.LittleEndian.Uint64(b)
		ok = true
		return nil
	})
	return seq, ok, err
}
