// Package engine adapts go.etcd.io/bbolt into the flat, ordered,
// transactional key-value contract the rest of sealedkv is built against.
// Everything lives in one bucket so iteration order is plain lexicographic
// byte order over the whole keyspace, with no per-entity bucket layout.
package engine

import (
	"bytes"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/sealedkv/kverrors"
)

const dbFileName = "sealedkv.db"

// dataBucket holds every entry: user keys and the reserved DEK key alike.
var dataBucket = []byte("data")

// Engine wraps a single bbolt database file.
type Engine struct {
	db   *bolt.DB
	path string
}

// Open opens the database directory at path. When create is false the
// directory must already exist (a database file missing inside it is
// created); when true the directory is created if absent, matching
// store.New vs store.Open.
func Open(path string, create bool) (*Engine, error) {
	if !create {
		if _, err := os.Stat(path); err != nil {
			return nil, kverrors.New(kverrors.CreationError, path, err)
		}
	}
	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, kverrors.New(kverrors.CreationError, path, err)
	}

	dbPath := filepath.Join(path, dbFileName)
	db, err := bolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, kverrors.New(kverrors.CreationError, dbPath, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(dataBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, kverrors.New(kverrors.CreationError, dbPath, err)
	}

	return &Engine{db: db, path: path}, nil
}

// Path returns the directory this engine was opened against.
func (e *Engine) Path() string { return e.path }

// Close releases the underlying database file.
func (e *Engine) Close() error {
	return e.db.Close()
}

// Size returns the on-disk size of the database file, for metrics.
func (e *Engine) Size() int64 {
	info, err := os.Stat(filepath.Join(e.path, dbFileName))
	if err != nil {
		return 0
	}
	return info.Size()
}

// Tx is a live engine transaction. Writable transactions serialize against
// each other (bbolt's single-writer model); read-only transactions observe
// an MVCC snapshot taken at Begin and never block on concurrent writers.
type Tx struct {
	btx    *bolt.Tx
	bucket *bolt.Bucket
}

// Begin starts a new transaction. The caller must Commit or Rollback it.
func (e *Engine) Begin(writable bool) (*Tx, error) {
	btx, err := e.db.Begin(writable)
	if err != nil {
		return nil, kverrors.New(kverrors.CreationError, "", err)
	}
	return &Tx{btx: btx, bucket: btx.Bucket(dataBucket)}, nil
}

// Put writes key/value inside the transaction.
func (t *Tx) Put(key, value []byte) error {
	if err := t.bucket.Put(key, value); err != nil {
		return kverrors.New(kverrors.WriteError, string(key), err)
	}
	return nil
}

// Get returns a copy of the value stored for key, or nil if absent. The
// returned slice is safe to retain past the transaction's lifetime — bbolt's
// own slices are only valid until commit/rollback, so this always copies.
func (t *Tx) Get(key []byte) ([]byte, error) {
	v := t.bucket.Get(key)
	if v == nil {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Delete removes key. Deleting an absent key is a no-op, matching bbolt.
func (t *Tx) Delete(key []byte) error {
	if err := t.bucket.Delete(key); err != nil {
		return kverrors.New(kverrors.WriteError, string(key), err)
	}
	return nil
}

// Commit finalizes the transaction.
func (t *Tx) Commit() error {
	if err := t.btx.Commit(); err != nil {
		return kverrors.New(kverrors.CommitError, "", err)
	}
	return nil
}

// Rollback discards the transaction without applying its writes.
func (t *Tx) Rollback() error {
	return t.btx.Rollback()
}

// Cursor returns an ordered cursor over the whole keyspace.
func (t *Tx) Cursor() *Cursor {
	return &Cursor{c: t.bucket.Cursor()}
}

// Cursor walks the keyspace in ascending lexicographic order.
type Cursor struct {
	c *bolt.Cursor
}

// First seeks to the smallest key and returns it, or nil if the store is
// empty.
func (c *Cursor) First() (key, value []byte) {
	return c.c.First()
}

// Seek positions the cursor at the first key >= prefix.
func (c *Cursor) Seek(prefix []byte) (key, value []byte) {
	return c.c.Seek(prefix)
}

// Next advances the cursor and returns the next pair, or nil when exhausted.
func (c *Cursor) Next() (key, value []byte) {
	return c.c.Next()
}

// HasPrefix reports whether key starts with prefix.
func HasPrefix(key, prefix []byte) bool {
	return bytes.HasPrefix(key, prefix)
}
