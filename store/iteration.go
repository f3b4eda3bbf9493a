package store

import (
	"bytes"
	"unicode/utf8"

	"github.com/cuemby/sealedkv/internal/engine"
	"github.com/cuemby/sealedkv/internal/storemetrics"
	"github.com/cuemby/sealedkv/kverrors"
)

// KV is one decoded (key, value) pair returned by PartialCompare.
type KV struct {
	Key   string
	Value string
}

// Keys returns every user key in ascending lexicographic order. The reserved
// DEK key is never included (spec.md §4.1 invariant).
func (s *Storage) Keys() ([]string, error) {
	var keys []string
	err := storemetrics.Observe("keys", func() error {
		tx, err := s.eng.Begin(false)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		cur := tx.Cursor()
		for k, _ := cur.First(); k != nil; k, _ = cur.Next() {
			if bytes.Equal(k, dekKey) {
				continue
			}
			decoded, err := decodeKey(k)
			if err != nil {
				return err
			}
			keys = append(keys, decoded)
		}
		return nil
	})
	return keys, err
}

// PartialCompareKeys returns every key with the given prefix, in ascending
// order, stopping at the first key that does not share it.
func (s *Storage) PartialCompareKeys(prefix string) ([]string, error) {
	var keys []string
	err := storemetrics.Observe("partial_compare_keys", func() error {
		return s.scanPrefix(prefix, func(k, _ []byte) error {
			decoded, err := decodeKey(k)
			if err != nil {
				return err
			}
			keys = append(keys, decoded)
			return nil
		})
	})
	return keys, err
}

// PartialCompare returns every (key, value) pair with the given prefix, in
// ascending key order, decrypting values in encrypted mode.
func (s *Storage) PartialCompare(prefix string) ([]KV, error) {
	var pairs []KV
	err := storemetrics.Observe("partial_compare", func() error {
		return s.scanPrefix(prefix, func(k, v []byte) error {
			decodedKey, err := decodeKey(k)
			if err != nil {
				return err
			}
			plain, err := s.decodeValue(v)
			if err != nil {
				return err
			}
			if !utf8.Valid(plain) {
				return kverrors.New(kverrors.ConversionError, decodedKey, nil)
			}
			pairs = append(pairs, KV{Key: decodedKey, Value: string(plain)})
			return nil
		})
	})
	return pairs, err
}

func (s *Storage) scanPrefix(prefix string, visit func(k, v []byte) error) error {
	tx, err := s.eng.Begin(false)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	prefixBytes := []byte(prefix)
	cur := tx.Cursor()
	for k, v := cur.Seek(prefixBytes); k != nil && engine.HasPrefix(k, prefixBytes); k, v = cur.Next() {
		if bytes.Equal(k, dekKey) {
			continue
		}
		if err := visit(k, v); err != nil {
			return err
		}
	}
	return nil
}

// IsEmpty reports whether the database has no entries. Matching the
// source's current (buggy, per spec.md §9) behavior, the reserved DEK key
// counts as non-empty here even though it is filtered from every other
// iteration helper.
func (s *Storage) IsEmpty() (bool, error) {
	var empty bool
	err := storemetrics.Observe("is_empty", func() error {
		tx, err := s.eng.Begin(false)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		k, _ := tx.Cursor().First()
		empty = k == nil
		return nil
	})
	return empty, err
}

func decodeKey(k []byte) (string, error) {
	if !utf8.Valid(k) {
		return "", kverrors.New(kverrors.ConversionError, "", nil)
	}
	return string(k), nil
}
