package store

import (
	"github.com/cuemby/sealedkv/internal/cryptkv"
	"github.com/cuemby/sealedkv/kverrors"
)

// ChangePassword re-wraps the resident DEK under newPassword. It requires
// the database to already be encrypted, validates newPassword against
// policy, and verifies oldPassword before rotating. The in-memory DEK, and
// every already-encrypted value, is untouched — this is the entire point of
// envelope encryption.
func (s *Storage) ChangePassword(oldPassword, newPassword string) error {
	if !s.encrypted() {
		return kverrors.New(kverrors.NoPasswordSet, "", nil)
	}
	if !s.policy.IsValid(newPassword) {
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
	if wrapped == nil {
		_ = tx.Rollback()
		return kverrors.New(kverrors.NotFound, "DEK", nil)
	}

	dek, err := cryptkv.UnwrapDEK(oldPassword, wrapped)
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	newWrapped, err := cryptkv.WrapDEK(newPassword, dek)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Put(dekKey, newWrapped); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
