package store

import (
	"bytes"
	"io"
	"os"

	"github.com/cuemby/sealedkv/internal/backupio"
	"github.com/cuemby/sealedkv/internal/cryptkv"
	"github.com/cuemby/sealedkv/internal/storemetrics"
	"github.com/cuemby/sealedkv/kverrors"
)

const backupBatchSize = 1000

// Backup writes an encrypted, streamed export of every live (non-reserved)
// key/value pair to backupPath, protected by a freshly generated backup DEK
// that is itself wrapped under backupPassword and written to dekPath.
func (s *Storage) Backup(backupPath, dekPath, backupPassword string) error {
	return storemetrics.Observe("backup", func() error {
		if !s.policy.IsValid(backupPassword) {
			return kverrors.New(kverrors.WeakPassword, "", nil)
		}

		backupDEK, err := cryptkv.GenerateDEK()
		if err != nil {
			return err
		}
		wrappedDEK, err := cryptkv.WrapDEK(backupPassword, backupDEK)
		if err != nil {
			return err
		}
		if err := os.WriteFile(dekPath, wrappedDEK, 0o600); err != nil {
			return kverrors.New(kverrors.IOError, dekPath, err)
		}

		f, err := os.Create(backupPath)
		if err != nil {
			return kverrors.New(kverrors.IOError, backupPath, err)
		}
		defer f.Close()

		w, err := backupio.NewWriter(f, backupDEK)
		if err != nil {
			return err
		}

		tx, err := s.eng.Begin(false)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		var batch bytes.Buffer
		count := 0
		cur := tx.Cursor()
		for k, v := cur.First(); k != nil; k, v = cur.Next() {
			if bytes.Equal(k, dekKey) {
				continue
			}
			if err := backupio.WriteRecord(&batch, k, v); err != nil {
				return err
			}
			count++
			if count == backupBatchSize {
				if _, err := w.Write(batch.Bytes()); err != nil {
					return kverrors.New(kverrors.IOError, backupPath, err)
				}
				batch.Reset()
				count = 0
			}
		}
		if batch.Len() > 0 {
			if _, err := w.Write(batch.Bytes()); err != nil {
				return kverrors.New(kverrors.IOError, backupPath, err)
			}
		}
		return w.Finish()
	})
}

// RestoreBackup reads backupPath/dekPath written by Backup and replays every
// record into a restore transaction via the raw engine put — values are
// stored verbatim, with no re-encryption. Any failure rolls back the
// restore transaction and surfaces the first error.
func (s *Storage) RestoreBackup(backupPath, dekPath, backupPassword string) error {
	return storemetrics.Observe("restore_backup", func() error {
		wrappedDEK, err := os.ReadFile(dekPath)
		if err != nil {
			return kverrors.New(kverrors.IOError, dekPath, err)
		}
		backupDEK, err := cryptkv.UnwrapDEK(backupPassword, wrappedDEK)
		if err != nil {
			return err
		}

		f, err := os.Open(backupPath)
		if err != nil {
			return kverrors.New(kverrors.IOError, backupPath, err)
		}
		defer f.Close()

		r, err := backupio.NewReader(f, backupDEK)
		if err != nil {
			return err
		}
		br := backupio.NewBufferedReader(r)

		tx, err := s.eng.Begin(true)
		if err != nil {
			return err
		}

		for {
			key, value, err := backupio.ReadRecord(br)
			if err == io.EOF {
				break
			}
			if err != nil {
				_ = tx.Rollback()
				return err
			}
			if err := tx.Put(key, value); err != nil {
				_ = tx.Rollback()
				return err
			}
		}
		return tx.Commit()
	})
}

// ChangeBackupPassword re-wraps the backup DEK stored at dekPath under a new
// passphrase, without touching the backup file itself.
func (s *Storage) ChangeBackupPassword(dekPath, oldPassword, newPassword string) error {
	wrapped, err := os.ReadFile(dekPath)
	if err != nil {
		return kverrors.New(kverrors.IOError, dekPath, err)
	}
	dek, err := cryptkv.UnwrapDEK(oldPassword, wrapped)
	if err != nil {
		return err
	}
	if !s.policy.IsValid(newPassword) {
		return kverrors.New(kverrors.WeakPassword, "", nil)
	}
	newWrapped, err := cryptkv.WrapDEK(newPassword, dek)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dekPath, newWrapped, 0o600); err != nil {
		return kverrors.New(kverrors.IOError, dekPath, err)
	}
	return nil
}

// DeleteDBFiles closes s and recursively removes its database directory.
// Go has no consumes-self receiver, so this is a package function rather
// than a method — the caller must not use s afterward.
func DeleteDBFiles(s *Storage) error {
	path := s.path
	if err := s.Close(); err != nil {
		return err
	}
	if err := os.RemoveAll(path); err != nil {
		return kverrors.New(kverrors.IOError, path, err)
	}
	return nil
}
