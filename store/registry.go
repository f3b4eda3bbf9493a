package store

import (
	"github.com/google/uuid"

	"github.com/cuemby/sealedkv/internal/engine"
	"github.com/cuemby/sealedkv/kverrors"
)

// TxHandle is an opaque, process-unique identifier for a live transaction
// held inside a Storage instance. It is valid only between BeginTransaction
// and the matching CommitTransaction/RollbackTransaction.
type TxHandle uuid.UUID

// String renders the handle for logging and the CLI's .sealedkv-tx file.
func (h TxHandle) String() string {
	return uuid.UUID(h).String()
}

// ParseTxHandle parses a handle previously rendered by String.
func ParseTxHandle(s string) (TxHandle, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return TxHandle{}, kverrors.New(kverrors.ConversionError, s, err)
	}
	return TxHandle(id), nil
}

// registry is the Transaction Registry (C5): a table of live engine
// transactions keyed by handle, interior-mutable, single-thread-affine —
// it holds no mutex, matching spec.md §5's single-threaded model.
type registry struct {
	txs map[uuid.UUID]*engine.Tx
}

func newRegistry() *registry {
	return &registry{txs: make(map[uuid.UUID]*engine.Tx)}
}

func (r *registry) begin(eng *engine.Engine) (TxHandle, error) {
	tx, err := eng.Begin(true)
	if err != nil {
		return TxHandle{}, err
	}
	id := uuid.New()
	r.txs[id] = tx
	return TxHandle(id), nil
}

func (r *registry) get(h TxHandle) (*engine.Tx, error) {
	tx, ok := r.txs[uuid.UUID(h)]
	if !ok {
		return nil, kverrors.New(kverrors.NotFound, "Transaction", nil)
	}
	return tx, nil
}

func (r *registry) remove(h TxHandle) (*engine.Tx, error) {
	tx, ok := r.txs[uuid.UUID(h)]
	if !ok {
		return nil, kverrors.New(kverrors.NotFound, "Transaction", nil)
	}
	delete(r.txs, uuid.UUID(h))
	return tx, nil
}

// rollbackAll discards every still-live transaction, used when Storage is
// closed with transactions outstanding — a dropped Storage implicitly
// rolls back in-flight transactions per spec.md §5.
func (r *registry) rollbackAll() {
	for id, tx := range r.txs {
		_ = tx.Rollback()
		delete(r.txs, id)
	}
}
