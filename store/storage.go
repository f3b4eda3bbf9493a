package store

import (
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/cuemby/sealedkv/internal/cryptkv"
	"github.com/cuemby/sealedkv/internal/engine"
	"github.com/cuemby/sealedkv/internal/kvlog"
	"github.com/cuemby/sealedkv/internal/policy"
	"github.com/cuemby/sealedkv/internal/storemetrics"
	"github.com/cuemby/sealedkv/kverrors"
)

// dekKey is the reserved entry holding the passphrase-wrapped DEK. It is
// never returned by user-facing iteration or point read.
var dekKey = []byte("DEK")

// Storage is the Storage Facade (C6), the sole type sealedkv clients
// interact with. It is single-thread-affine: the registry holds plain,
// non-atomic map state (spec.md §5).
type Storage struct {
	eng      *engine.Engine
	path     string
	dek      []byte // nil in plaintext mode
	policy   policy.Policy
	registry *registry
	log      zerolog.Logger
}

// New creates a fresh database at cfg.Path if none exists there; an existing
// database at that path is opened as it is.
func New(cfg Config) (*Storage, error) {
	return open(cfg, true)
}

// Open opens an existing database at cfg.Path, failing if it does not exist.
func Open(cfg Config) (*Storage, error) {
	return open(cfg, false)
}

func open(cfg Config, create bool) (*Storage, error) {
	eng, err := engine.Open(cfg.Path, create)
	if err != nil {
		return nil, err
	}

	pol := cfg.effectivePolicy()
	s := &Storage{
		eng:      eng,
		path:     cfg.Path,
		policy:   pol,
		registry: newRegistry(),
		log:      kvlog.WithDB(cfg.Path),
	}

	if cfg.Password != nil {
		if err := s.unlock(*cfg.Password); err != nil {
			_ = eng.Close()
			return nil, err
		}
	}

	s.log.Debug().Bool("encrypted", s.dek != nil).Msg("storage opened")
	return s, nil
}

// unlock validates the passphrase against policy, then either unwraps an
// existing DEK entry or generates and persists a fresh one.
func (s *Storage) unlock(password string) error {
	if !s.policy.IsValid(password) {
		return kverrors.New(kverrors.WeakPassword, "", nil)
	}

	tx, err := s.eng.Begin(true)
	if err != nil {
		return err
	}

	wrapped, err := tx.Get(dekKey)
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	if wrapped != nil {
		dek, err := cryptkv.UnwrapDEK(password, wrapped)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		s.dek = dek
		return tx.Rollback()
	}

	dek, err := cryptkv.GenerateDEK()
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	newWrapped, err := cryptkv.WrapDEK(password, dek)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Put(dekKey, newWrapped); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.dek = dek
	return nil
}

// Close rolls back any outstanding transactions and releases the engine.
func (s *Storage) Close() error {
	s.registry.rollbackAll()
	storemetrics.DBSizeBytes.Set(float64(s.eng.Size()))
	return s.eng.Close()
}

func (s *Storage) encrypted() bool {
	return s.dek != nil
}

// Write stores value under key, encrypting it under the resident DEK in
// encrypted mode. It is auto-committing: single-op writes cannot partially
// apply.
func (s *Storage) Write(key, value string) error {
	return storemetrics.Observe("write", func() error {
		raw, err := s.encodeValue([]byte(value))
		if err != nil {
			return err
		}

		tx, err := s.eng.Begin(true)
		if err != nil {
			return err
		}
		if err := tx.Put([]byte(key), raw); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

// Read returns the value stored under key, decrypting it in encrypted mode.
// A missing key is kverrors.NotFound; non-UTF-8 decrypted bytes are
// kverrors.ConversionError.
func (s *Storage) Read(key string) (string, error) {
	var result string
	err := storemetrics.Observe("read", func() error {
		tx, err := s.eng.Begin(false)
		if err != nil {
			return err
		}
		raw, err := tx.Get([]byte(key))
		_ = tx.Rollback()
		if err != nil {
			return err
		}
		if raw == nil {
			return kverrors.New(kverrors.NotFound, key, nil)
		}

		plain, err := s.decodeValue(raw)
		if err != nil {
			return err
		}
		if !utf8.Valid(plain) {
			return kverrors.New(kverrors.ConversionError, key, nil)
		}
		result = string(plain)
		return nil
	})
	return result, err
}

// Delete removes key. Deleting an absent key is a no-op.
func (s *Storage) Delete(key string) error {
	return storemetrics.Observe("delete", func() error {
		tx, err := s.eng.Begin(true)
		if err != nil {
			return err
		}
		if err := tx.Delete([]byte(key)); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

// HasKey reports whether key is present, without decrypting its value.
func (s *Storage) HasKey(key string) (bool, error) {
	var found bool
	err := storemetrics.Observe("has_key", func() error {
		tx, err := s.eng.Begin(false)
		if err != nil {
			return err
		}
		raw, err := tx.Get([]byte(key))
		_ = tx.Rollback()
		if err != nil {
			return err
		}
		found = raw != nil
		return nil
	})
	return found, err
}

// encodeValue authenticate-encrypts plaintext in encrypted mode, or returns
// it unchanged in plaintext mode.
func (s *Storage) encodeValue(plaintext []byte) ([]byte, error) {
	if !s.encrypted() {
		return plaintext, nil
	}
	return cryptkv.EncryptValue(s.dek, plaintext)
}

// decodeValue reverses encodeValue.
func (s *Storage) decodeValue(raw []byte) ([]byte, error) {
	if !s.encrypted() {
		return raw, nil
	}
	return cryptkv.DecryptValue(s.dek, raw)
}
