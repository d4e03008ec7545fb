// Package nodetx implements the node write transaction (C9): the
// single-writer state machine that mutates the versioned tree — insert,
// move, remove, rename — on top of the page write transaction (C7),
// maintaining the text-coalescing invariant and the incremental or
// post-order node-content hash as it goes.
package nodetx

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"sirixgo/node"
	"sirixgo/page"
	"sirixgo/pagetx"
	"sirixgo/pathsummary"
	"sirixgo/valueindex"
)

// State is the write transaction's lifecycle (§4.9): Open accepts
// mutations; Modifying is Open with at least one uncommitted change;
// Committed/Aborted are terminal outcomes of commit/abort; Closed means
// the transaction has released its page transaction and must not be
// used again.
type State int

const (
	StateOpen State = iota
	StateModifying
	StateCommitted
	StateAborted
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "Open"
	case StateModifying:
		return "Modifying"
	case StateCommitted:
		return "Committed"
	case StateAborted:
		return "Aborted"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// AutoCommit configures the thresholds at which the transaction
// commits itself and transparently reopens (§4.9 "intermediate/
// auto-commit"; §5's timer-driven auto-commit). MaxNodeCount == 0
// disables the node-count threshold, MaxAge == 0 disables the wall-
// clock one. Both are checked at the same point, on the next mutation
// after the threshold is crossed — §5 describes the timer as running
// in parallel, but a transaction has no internal synchronization to
// let a concurrent goroutine safely commit out from under the
// goroutine driving it, so the deadline is polled at markDirty time
// instead of enforced by a separate ticking goroutine.
type AutoCommit struct {
	MaxNodeCount uint64
	MaxAge       time.Duration
}

// Opener is the narrow slice of a resource nodetx needs to transparently
// reopen a page write transaction after an auto-commit — implemented by
// the sirix package's Resource.
type Opener interface {
	OpenPageWriteTransaction() (*pagetx.WriteTransaction, error)
}

// WriteTransaction is the sole node-level writer of a resource at a
// time, layered on a single pagetx.WriteTransaction.
type WriteTransaction struct {
	pageTx   *pagetx.WriteTransaction
	opener   Opener
	hashKind HashKind
	auto     AutoCommit
	paths    *pathsummary.Tree
	values   *valueindex.Tree

	cursor   node.Key
	dirty    uint64
	state    State
	openedAt time.Time

	preCommitHooks  []func(*WriteTransaction) error
	postCommitHooks []func(*WriteTransaction) error
}

// Options configures a new node write transaction.
type Options struct {
	HashKind   HashKind
	AutoCommit AutoCommit
	// Opener, if set, lets the transaction reopen itself transparently
	// after an auto-commit fires. Without it, AutoCommit.MaxNodeCount
	// is ignored.
	Opener Opener
	// UsePathSummary enables path-summary maintenance (§4.10): every
	// Named node created, renamed or moved keeps its PathNodeKey
	// resolved against the resource's path-summary tree.
	UsePathSummary bool
	// UseValueIndex enables value-index maintenance (§4.10): every
	// Valued node's raw value is kept resolvable through the
	// resource's value index as it is created, changed or removed.
	UseValueIndex bool
}

// Open begins a node write transaction on top of an already-open page
// write transaction, with the cursor positioned at the document root.
func Open(pageTx *pagetx.WriteTransaction, opts Options) (*WriteTransaction, error) {
	tx := &WriteTransaction{
		pageTx:   pageTx,
		opener:   opts.Opener,
		hashKind: opts.HashKind,
		auto:     opts.AutoCommit,
		cursor:   rootKey,
		state:    StateOpen,
		openedAt: time.Now(),
	}
	if err := tx.ensureDocumentRoot(); err != nil {
		return nil, err
	}
	if opts.UsePathSummary {
		paths, err := pathsummary.Open(pageTx)
		if err != nil {
			return nil, err
		}
		tx.paths = paths
	}
	if opts.UseValueIndex {
		values, err := valueindex.Open(pageTx)
		if err != nil {
			return nil, err
		}
		tx.values = values
	}
	return tx, nil
}

// parentPathKey reports the path-summary node a fresh Named child of
// parentKey should resolve under: parentKey's own PathNodeKey if it is
// itself Named (an Element), or the path-summary root for a document
// root or non-Named parent.
func (tx *WriteTransaction) parentPathKey(parentKey node.Key) (node.Key, error) {
	parent, err := tx.getNode(parentKey)
	if err != nil {
		return 0, err
	}
	if named, ok := parent.(node.Named); ok {
		return named.PathNodeKey(), nil
	}
	return pathsummary.RootKey, nil
}

// resolvePath resolves (or creates) n's path-summary node under
// parentKey and stamps n.PathNodeKey, a no-op when path-summary
// maintenance is disabled or n has no qualified name.
func (tx *WriteTransaction) resolvePath(n node.Node, parentKey node.Key) error {
	if tx.paths == nil {
		return nil
	}
	named, ok := n.(node.Named)
	if !ok {
		return nil
	}
	ppk, err := tx.parentPathKey(parentKey)
	if err != nil {
		return err
	}
	pathKey, err := tx.paths.GetOrCreatePath(ppk, named.NameKey(), named.URIKey(), n.Kind())
	if err != nil {
		return err
	}
	named.SetPathNodeKey(pathKey)
	return nil
}

// releasePath releases n's path-summary reference, a no-op when
// path-summary maintenance is disabled or n has no qualified name.
func (tx *WriteTransaction) releasePath(n node.Node) error {
	if tx.paths == nil {
		return nil
	}
	named, ok := n.(node.Named)
	if !ok {
		return nil
	}
	if named.PathNodeKey() == node.NullKey {
		return nil
	}
	return tx.paths.Release(named.PathNodeKey())
}

// rootKey is the fixed node key of the DocumentRoot node of every
// resource (§3.1: "the single root of every revision's tree").
const rootKey node.Key = 1

func (tx *WriteTransaction) ensureDocumentRoot() error {
	_, err := tx.pageTx.GetRecord(rootKey, page.FamilyRecord, 0)
	if errors.Is(err, pagetx.ErrRecordNotFound) {
		root := node.NewDocumentRootNode(rootKey)
		initNodeHash(root)
		_, err := tx.pageTx.CreateEntry(page.FamilyRecord, 0, func(node.Key) node.Record { return root })
		return err
	}
	return err
}

// Cursor reports the node key the transaction is currently positioned at.
func (tx *WriteTransaction) Cursor() node.Key { return tx.cursor }

// MoveTo repositions the cursor at key, failing if it does not exist.
func (tx *WriteTransaction) MoveTo(key node.Key) error {
	if _, err := tx.getNode(key); err != nil {
		return err
	}
	tx.cursor = key
	return nil
}

// Node returns the node currently under the cursor.
func (tx *WriteTransaction) Node() (node.Node, error) {
	return tx.getNode(tx.cursor)
}

// NodeAt resolves key to its node, satisfying axis.Reader so the axis
// package's traversals can run directly against an in-progress write
// transaction.
func (tx *WriteTransaction) NodeAt(key node.Key) (node.Node, error) {
	return tx.getNode(key)
}

// PageTx exposes the underlying page write transaction, letting the
// sirix package stamp a real commit timestamp (§4.7/§6.3) via a
// pre-commit hook before Commit reaches the page layer.
func (tx *WriteTransaction) PageTx() *pagetx.WriteTransaction {
	return tx.pageTx
}

func (tx *WriteTransaction) requireOpen() error {
	if tx.state == StateClosed || tx.state == StateCommitted || tx.state == StateAborted {
		return ErrClosed
	}
	return nil
}

func (tx *WriteTransaction) getNode(key node.Key) (node.Node, error) {
	rec, err := tx.pageTx.GetRecord(key, page.FamilyRecord, 0)
	if errors.Is(err, pagetx.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: key %d", ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	n, ok := rec.(node.Node)
	if !ok {
		return nil, fmt.Errorf("%w: key %d is not a node", ErrUsage, key)
	}
	return n, nil
}

func (tx *WriteTransaction) prepareNodeForModification(key node.Key) (node.Node, error) {
	rec, err := tx.pageTx.PrepareEntryForModification(key, page.FamilyRecord, 0)
	if errors.Is(err, pagetx.ErrRecordMissing) {
		return nil, fmt.Errorf("%w: key %d", ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	n, ok := rec.(node.Node)
	if !ok {
		return nil, fmt.Errorf("%w: key %d is not a node", ErrUsage, key)
	}
	return n, nil
}

func (tx *WriteTransaction) createNode(build func(key node.Key) node.Record) (node.Key, error) {
	return tx.pageTx.CreateEntry(page.FamilyRecord, 0, build)
}

// markDirty records one node-level mutation against the auto-commit
// thresholds, firing an auto-commit and transparent reopen once either
// the node-count or the wall-clock threshold is crossed.
func (tx *WriteTransaction) markDirty() error {
	tx.state = StateModifying
	tx.dirty++
	byCount := tx.auto.MaxNodeCount != 0 && tx.dirty >= tx.auto.MaxNodeCount
	byAge := tx.auto.MaxAge != 0 && time.Since(tx.openedAt) >= tx.auto.MaxAge
	if tx.opener == nil || !(byCount || byAge) {
		return nil
	}
	cursor := tx.cursor
	if _, err := tx.Commit(); err != nil {
		return fmt.Errorf("nodetx: auto-commit at %d dirty nodes: %w", tx.dirty, err)
	}
	newPageTx, err := tx.opener.OpenPageWriteTransaction()
	if err != nil {
		return fmt.Errorf("nodetx: reopen page write transaction after auto-commit: %w", err)
	}
	tx.pageTx = newPageTx
	tx.state = StateOpen
	tx.dirty = 0
	tx.openedAt = time.Now()
	tx.cursor = cursor
	if tx.paths != nil {
		paths, err := pathsummary.Open(newPageTx)
		if err != nil {
			return fmt.Errorf("nodetx: reopen path-summary tree after auto-commit: %w", err)
		}
		tx.paths = paths
	}
	if tx.values != nil {
		values, err := valueindex.Open(newPageTx)
		if err != nil {
			return fmt.Errorf("nodetx: reopen value index after auto-commit: %w", err)
		}
		tx.values = values
	}
	return nil
}

// indexValue adds n's raw value into the value index under n's own
// key, a no-op when value-index maintenance is disabled or n carries
// no value.
func (tx *WriteTransaction) indexValue(n node.Node) error {
	if tx.values == nil {
		return nil
	}
	valued, ok := n.(node.Valued)
	if !ok {
		return nil
	}
	return tx.values.Insert(valued.RawValue(), n.RecordKey())
}

// unindexValue removes n's raw value from the value index, a no-op
// when value-index maintenance is disabled or n carries no value.
func (tx *WriteTransaction) unindexValue(n node.Node) error {
	if tx.values == nil {
		return nil
	}
	valued, ok := n.(node.Valued)
	if !ok {
		return nil
	}
	return tx.values.Remove(valued.RawValue(), n.RecordKey())
}

// reindexValue moves n's value-index entry from oldValue to n's
// current raw value, a no-op when value-index maintenance is disabled
// or n carries no value.
func (tx *WriteTransaction) reindexValue(n node.Node, oldValue []byte) error {
	if tx.values == nil {
		return nil
	}
	valued, ok := n.(node.Valued)
	if !ok {
		return nil
	}
	if bytes.Equal(oldValue, valued.RawValue()) {
		return nil
	}
	if err := tx.values.Remove(oldValue, n.RecordKey()); err != nil {
		return err
	}
	return tx.values.Insert(valued.RawValue(), n.RecordKey())
}

// AddPreCommitHook registers a hook invoked before any page is
// written during Commit (§4.9 add_pre_commit_hook).
func (tx *WriteTransaction) AddPreCommitHook(h func(*WriteTransaction) error) {
	tx.preCommitHooks = append(tx.preCommitHooks, h)
}

// AddPostCommitHook registers a hook invoked after Commit has
// published the new revision (§4.9 add_post_commit_hook).
func (tx *WriteTransaction) AddPostCommitHook(h func(*WriteTransaction) error) {
	tx.postCommitHooks = append(tx.postCommitHooks, h)
}

// Commit runs the registered pre-commit hooks, commits the underlying
// page write transaction, then runs the registered post-commit hooks.
func (tx *WriteTransaction) Commit() (*page.UberPage, error) {
	if err := tx.requireOpen(); err != nil {
		return nil, err
	}
	for _, h := range tx.preCommitHooks {
		if err := h(tx); err != nil {
			return nil, fmt.Errorf("nodetx: pre-commit hook failed: %w", err)
		}
	}
	uber, err := tx.pageTx.Commit()
	if err != nil {
		tx.state = StateAborted
		return nil, err
	}
	tx.state = StateCommitted
	for _, h := range tx.postCommitHooks {
		if err := h(tx); err != nil {
			return uber, fmt.Errorf("nodetx: post-commit hook failed after publish: %w", err)
		}
	}
	return uber, nil
}

// Abort discards every staged mutation.
func (tx *WriteTransaction) Abort() error {
	if err := tx.requireOpen(); err != nil {
		return err
	}
	if err := tx.pageTx.Abort(); err != nil {
		return err
	}
	tx.state = StateAborted
	return nil
}

// Close releases the transaction (§5: "close after a commit/abort is
// idempotent; closing without committing with pending mutations fails
// with DirtyOnClose"). A transaction with no mutations yet (StateOpen)
// is released without having to commit or abort first.
func (tx *WriteTransaction) Close() error {
	if tx.state == StateModifying {
		return ErrDirtyOnClose
	}
	tx.state = StateClosed
	return nil
}
