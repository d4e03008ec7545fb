package sirix

import (
	"errors"
	"sync"

	"sirixgo/nodetx"
	"sirixgo/page"
	"sirixgo/pagetx"

	"golang.org/x/sync/semaphore"
)

// WriteTrx is the resource-scoped node write transaction handle: the
// full nodetx.WriteTransaction API, wrapped so Commit, Abort, and a
// successful Close all release the resource-wide write lock
// BeginNodeWriteTrx acquired — whichever of the three ends the
// transaction (§5: "released on close").
type WriteTrx struct {
	*nodetx.WriteTransaction
	resource *Resource

	mu       sync.Mutex
	released bool
}

func (w *WriteTrx) release() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.released {
		return
	}
	w.released = true
	w.resource.writerMu.Unlock()
}

// Commit commits the underlying node write transaction, then releases
// the resource's write lock regardless of outcome: a failed commit
// leaves the transaction terminally Aborted, not retryable.
func (w *WriteTrx) Commit() (*page.UberPage, error) {
	uber, err := w.WriteTransaction.Commit()
	w.release()
	return uber, err
}

// Abort discards the transaction's staged mutations and releases the
// resource's write lock.
func (w *WriteTrx) Abort() error {
	err := w.WriteTransaction.Abort()
	w.release()
	return err
}

// Close releases the transaction. If it still carries uncommitted
// mutations, the underlying Close fails with nodetx.ErrDirtyOnClose
// and the write lock is deliberately kept held — the caller must still
// reach Commit or Abort to end the transaction.
func (w *WriteTrx) Close() error {
	err := w.WriteTransaction.Close()
	if errors.Is(err, nodetx.ErrDirtyOnClose) {
		return err
	}
	w.release()
	return err
}

// ReadTrx pairs a read-only page transaction with the bounded-reader
// admission slot it must release when done.
type ReadTrx struct {
	*pagetx.ReadTransaction
	sem *semaphore.Weighted
}

// Close releases this read transaction's admission slot. Safe to call
// exactly once per BeginNodeReadTrx.
func (rt *ReadTrx) Close() {
	rt.sem.Release(1)
}
