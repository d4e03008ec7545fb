// Package sirix ties the page layer (C1-C8), the node write
// transaction (C9), path summary and value index (C10), and the node
// axes (C11) together into a single resource handle — the teacher's
// own KV/DB pairing in filodb_storage.go/filodb_transactions.go,
// generalized from FiloDB's single writer-mutex-and-reader-heap KV to
// this engine's richer multi-revision, multi-index resource.
package sirix

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"sirixgo/nodetx"
	"sirixgo/page"
	"sirixgo/pagetx"
	"sirixgo/storage"
	"sirixgo/versioning"
)

// Resource is the top-level handle for a single versioned document
// (§5/§6): it owns the on-disk storage and shared page cache, the
// resource-wide single-writer lock, and the bounded admission of
// concurrent readers.
type Resource struct {
	dir      string
	store    *storage.Local
	cache    *pagetx.PageCache
	policies pagetx.Policies
	config   ResourceConfig

	commitMarkerPath string

	// writerMu enforces "exactly one write transaction per resource at
	// any time" (§5): BeginNodeWriteTrx acquires it, and WriteTrx's
	// Commit/Abort/successful Close release it — the same discipline
	// as the teacher's kv.writer.Lock()/Unlock() in KV.Begin/Commit/Abort.
	writerMu sync.Mutex

	// readSem bounds how many read transactions may be open at once
	// (§5's "counted semaphore (bounded max_read_trx)").
	readSem *semaphore.Weighted
}

// Open opens (creating if absent) the resource rooted at dir, running
// crash recovery before anything else touches storage (§6.3).
func Open(dir string, config ResourceConfig) (*Resource, error) {
	if config.MaxReadTrx <= 0 {
		config.MaxReadTrx = 8
	}

	commitMarkerPath := filepath.Join(dir, "commit.marker")
	if _, err := page.RecoverCommit(commitMarkerPath); err != nil {
		return nil, fmt.Errorf("sirix: recover commit marker: %w", err)
	}

	store, err := storage.Open(filepath.Join(dir, "data"))
	if err != nil {
		return nil, fmt.Errorf("sirix: open storage: %w", err)
	}
	store.SetCompression(config.Compression)

	cache, err := pagetx.NewPageCache(4096)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("sirix: open page cache: %w", err)
	}

	pol, err := versioning.New(config.Versioning, config.SlidingWindow)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("sirix: build versioning policy: %w", err)
	}

	return &Resource{
		dir:              dir,
		store:            store,
		cache:            cache,
		policies:         pagetx.Policies{page.FamilyRecord: pol},
		config:           config,
		commitMarkerPath: commitMarkerPath,
		readSem:          semaphore.NewWeighted(config.MaxReadTrx),
	}, nil
}

// OpenPageWriteTransaction implements nodetx.Opener, letting a node
// write transaction transparently reopen the page layer after an
// auto-commit fires mid-stream.
func (r *Resource) OpenPageWriteTransaction() (*pagetx.WriteTransaction, error) {
	return pagetx.OpenWriteTransaction(r.store, r.store, r.cache, r.policies, pagetx.WriteOptions{
		MilestoneStride:  r.config.RevisionsToRestore,
		CommitMarkerPath: r.commitMarkerPath,
	})
}

// stampCommitTimestamp is installed as a pre-commit hook on every
// write transaction this resource opens: pagetx.WriteTransaction.Commit
// reads no clock and writes CommitTimestamp as its pre-commit hooks
// leave it, so this hook fills in the real clock read.
func stampCommitTimestamp(tx *nodetx.WriteTransaction) error {
	tx.PageTx().RevisionRoot().CommitTimestamp = time.Now().UnixNano()
	return nil
}

// BeginNodeWriteTrx opens the resource's single write transaction
// (§5), blocking until any transaction already checked out has
// released the write lock via Commit, Abort, or Close.
func (r *Resource) BeginNodeWriteTrx() (*WriteTrx, error) {
	r.writerMu.Lock()

	pageTx, err := r.OpenPageWriteTransaction()
	if err != nil {
		r.writerMu.Unlock()
		return nil, fmt.Errorf("sirix: open page write transaction: %w", err)
	}

	tx, err := nodetx.Open(pageTx, nodetx.Options{
		HashKind: r.config.HashKind,
		AutoCommit: nodetx.AutoCommit{
			MaxNodeCount: r.config.MaxNodeCount,
			MaxAge:       r.config.MaxTime,
		},
		Opener:         r,
		UsePathSummary: r.config.UsePathSummary,
		UseValueIndex:  r.config.hasIndex(IndexValue),
	})
	if err != nil {
		_ = pageTx.Abort()
		r.writerMu.Unlock()
		return nil, fmt.Errorf("sirix: open node write transaction: %w", err)
	}
	tx.AddPreCommitHook(stampCommitTimestamp)

	return &WriteTrx{WriteTransaction: tx, resource: r}, nil
}

// BeginNodeReadTrx opens a read-only snapshot at revision (0 for the
// latest committed revision), admitted by the resource's bounded
// max_read_trx semaphore. Readers never block on writers — every
// committed revision is immutable — so admission only throttles how
// many snapshots may be open at once, never the write lock.
func (r *Resource) BeginNodeReadTrx(ctx context.Context, revision uint64) (*ReadTrx, error) {
	if err := r.readSem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("sirix: acquire read admission: %w", err)
	}
	tx, err := pagetx.OpenReadTransaction(r.store, r.cache, r.policies, revision)
	if err != nil {
		r.readSem.Release(1)
		return nil, fmt.Errorf("sirix: open read transaction: %w", err)
	}
	return &ReadTrx{ReadTransaction: tx, sem: r.readSem}, nil
}

// Close releases the resource's storage and page cache. It fails with
// ErrResourceBusy if a write transaction is still checked out.
func (r *Resource) Close() error {
	if !r.writerMu.TryLock() {
		return ErrResourceBusy
	}
	defer r.writerMu.Unlock()
	return r.store.Close()
}
