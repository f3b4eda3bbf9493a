package store

import "github.com/cuemby/sealedkv/internal/storemetrics"

// BeginTransaction allocates a fresh handle, opens a writable engine
// transaction, and registers it.
func (s *Storage) BeginTransaction() (TxHandle, error) {
	return s.registry.begin(s.eng)
}

// TransactionalWrite stores value under key inside the transaction named by
// h, encrypting identically to Write. It does not commit.
func (s *Storage) TransactionalWrite(h TxHandle, key, value string) error {
	return storemetrics.Observe("transactional_write", func() error {
		tx, err := s.registry.get(h)
		if err != nil {
			return err
		}
		raw, err := s.encodeValue([]byte(value))
		if err != nil {
			return err
		}
		return tx.Put([]byte(key), raw)
	})
}

// TransactionalDelete removes key inside the transaction named by h. It does
// not commit.
func (s *Storage) TransactionalDelete(h TxHandle, key string) error {
	return storemetrics.Observe("transactional_delete", func() error {
		tx, err := s.registry.get(h)
		if err != nil {
			return err
		}
		return tx.Delete([]byte(key))
	})
}

// CommitTransaction removes h from the registry and commits its writes.
// After this call h is invalid: further operations on it fail with
// kverrors.NotFound("Transaction").
func (s *Storage) CommitTransaction(h TxHandle) error {
	return storemetrics.Observe("commit_transaction", func() error {
		tx, err := s.registry.remove(h)
		if err != nil {
			return err
		}
		return tx.Commit()
	})
}

// RollbackTransaction removes h from the registry and discards its writes.
func (s *Storage) RollbackTransaction(h TxHandle) error {
	return storemetrics.Observe("rollback_transaction", func() error {
		tx, err := s.registry.remove(h)
		if err != nil {
			return err
		}
		return tx.Rollback()
	})
}
