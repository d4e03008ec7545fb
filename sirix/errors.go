package sirix

import "errors"

// Sentinel errors for resource-level usage/concurrency failures.
var (
	// ErrResourceBusy is returned by Close when a write transaction is
	// still checked out (§5: the write lock is only released by the
	// transaction's own Commit, Abort, or Close).
	ErrResourceBusy = errors.New("sirix: resource has a write transaction still checked out")
)
