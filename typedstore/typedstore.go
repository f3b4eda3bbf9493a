// Package typedstore is a thin, JSON-serialization-aware convenience layer
// over *store.Storage for structured values (spec.md §4.7).
package typedstore

import (
	"encoding/json"

	"github.com/cuemby/sealedkv/kverrors"
	"github.com/cuemby/sealedkv/store"
)

// Get reads key and JSON-decodes it into V. A missing key surfaces store's
// own kverrors.NotFound.
func Get[V any](s *store.Storage, key string) (*V, error) {
	raw, err := s.Read(key)
	if err != nil {
		return nil, err
	}

	var value V
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil, kverrors.New(kverrors.SerializationError, key, err)
	}
	return &value, nil
}

// Set JSON-encodes value and writes it under key, dispatching to a
// transactional write when tx is non-nil.
func Set[V any](s *store.Storage, key string, value V, tx *store.TxHandle) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return kverrors.New(kverrors.SerializationError, key, err)
	}

	if tx != nil {
		return s.TransactionalWrite(*tx, key, string(encoded))
	}
	return s.Write(key, string(encoded))
}

// Update reads the current V at key, applies patches (last-write-wins per
// field) to its JSON-object encoding, decodes the result back into V, and
// writes it back. The read always goes through Get, outside any transaction,
// so it sees only committed data; tx, when non-nil, carries the write alone.
// A write made earlier on tx to the same key is not seen by the read.
func Update[V any](s *store.Storage, key string, patches map[string]json.RawMessage, tx *store.TxHandle) (V, error) {
	var zero V

	current, err := Get[V](s, key)
	if err != nil {
		return zero, err
	}

	encoded, err := json.Marshal(current)
	if err != nil {
		return zero, kverrors.New(kverrors.SerializationError, key, err)
	}

	var object map[string]json.RawMessage
	if err := json.Unmarshal(encoded, &object); err != nil {
		return zero, kverrors.New(kverrors.SerializationError, key, err)
	}
	if object == nil {
		return zero, kverrors.New(kverrors.SerializationError, key, nil)
	}

	for field, patch := range patches {
		object[field] = patch
	}

	merged, err := json.Marshal(object)
	if err != nil {
		return zero, kverrors.New(kverrors.SerializationError, key, err)
	}

	var updated V
	if err := json.Unmarshal(merged, &updated); err != nil {
		return zero, kverrors.New(kverrors.SerializationError, key, err)
	}

	if err := Set(s, key, updated, tx); err != nil {
		return zero, err
	}
	return updated, nil
}
