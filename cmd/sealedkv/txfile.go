package main

import (
	"os"

	"github.com/cuemby/sealedkv/kverrors"
	"github.com/cuemby/sealedkv/store"
)

const txFileName = ".sealedkv-tx"

// saveTxHandle persists a transaction handle for later commit-tx/rollback-tx
// invocations, a process-local convenience store.Storage itself has no
// notion of.
func saveTxHandle(h store.TxHandle) error {
	if err := os.WriteFile(txFileName, []byte(h.String()), 0o600); err != nil {
		return kverrors.New(kverrors.IOError, txFileName, err)
	}
	return nil
}

func loadTxHandle() (store.TxHandle, error) {
	raw, err := os.ReadFile(txFileName)
	if err != nil {
		return store.TxHandle{}, kverrors.New(kverrors.IOError, txFileName, err)
	}
	return store.ParseTxHandle(string(raw))
}

func clearTxHandle() error {
	if err := os.Remove(txFileName); err != nil && !os.IsNotExist(err) {
		return kverrors.New(kverrors.IOError, txFileName, err)
	}
	return nil
}
