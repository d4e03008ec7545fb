package pagetx

import (
	"errors"
	"fmt"
	"os"

	"sirixgo/node"
	"sirixgo/page"
	"sirixgo/storage"
	"sirixgo/versioning"
)

// ErrRecordMissing is returned by PrepareEntryForModification when the
// node key has no entry in Complete to copy forward (§4.7).
var ErrRecordMissing = errors.New("pagetx: record missing")

// IndexWriter is the optional hook a storage implementation may offer
// to persist the index definitions alongside a commit (§6.3's
// "indexes-<rev>.xml" file). The narrow PageReader/PageWriter pair
// (§6.1/§6.2) doesn't name this operation, so it is opted into
// separately rather than forced onto every implementation.
type IndexWriter interface {
	WriteIndexDefinitions(revision uint64, definitions []string) error
}

type stagedRecordPage struct {
	container *page.Container
	chain     *versioning.Chain
	leaf      *page.PageReference
}

// pageLog implements page.PageLog: the in-memory map of every indirect
// page cloned or created along a copy-on-write path during this
// transaction (§3.5).
type pageLog struct {
	m map[page.IndirectPageLogKey]*page.IndirectPage
}

func newPageLog() *pageLog {
	return &pageLog{m: make(map[page.IndirectPageLogKey]*page.IndirectPage)}
}

func (l *pageLog) GetIndirect(key page.IndirectPageLogKey) (*page.IndirectPage, bool) {
	ip, ok := l.m[key]
	return ip, ok
}

func (l *pageLog) PutIndirect(key page.IndirectPageLogKey, ip *page.IndirectPage) {
	l.m[key] = ip
}

// WriteTransaction is the sole writer of a resource at a time (§5: "at
// most one write transaction"). It stages every touched page — record
// pages via a per-family/index Container, indirect pages via the page
// log — and only calls through to the PageWriter at commit (C7).
type WriteTransaction struct {
	base *ReadTransaction

	reader storage.PageReader
	writer storage.PageWriter
	cache  *PageCache

	policies        Policies
	milestoneStride uint64

	uber         *page.UberPage
	revisionRoot *page.RevisionRootPage
	revisionLeaf *page.PageReference // leaf of the uber revision-tree for newRevision

	pageLog    *pageLog
	recordLogs map[page.FamilyIndex]map[uint64]*stagedRecordPage

	commitMarkerPath string
	indexWriter      IndexWriter

	preCommitHooks  []func(*WriteTransaction) error
	postCommitHooks []func(*WriteTransaction) error

	committed bool
	aborted   bool
}

// WriteOptions configures a write transaction beyond the mandatory
// reader/writer/cache/policies.
type WriteOptions struct {
	MilestoneStride  uint64
	CommitMarkerPath string
	IndexWriter      IndexWriter
}

// OpenWriteTransaction begins a new write transaction against the
// latest committed revision.
func OpenWriteTransaction(reader storage.PageReader, writer storage.PageWriter, cache *PageCache, policies Policies, opts WriteOptions) (*WriteTransaction, error) {
	base, err := OpenReadTransaction(reader, cache, policies, 0)
	if err != nil {
		return nil, err
	}

	stride := opts.MilestoneStride
	if stride == 0 {
		stride = 1000
	}

	newRevision := base.uber.CurrentRevision + 1
	if base.uber.Bootstrap {
		newRevision = 1
	}

	tx := &WriteTransaction{
		base:             base,
		reader:           reader,
		writer:           writer,
		cache:            cache,
		policies:         policies,
		milestoneStride:  stride,
		commitMarkerPath: opts.CommitMarkerPath,
		indexWriter:      opts.IndexWriter,
		pageLog:          newPageLog(),
		recordLogs:       make(map[page.FamilyIndex]map[uint64]*stagedRecordPage),
	}

	// §4.4 prepare_previous_revision_root: clone counters and root
	// references forward from the last committed revision root.
	tx.uber = &page.UberPage{CurrentRevision: base.uber.CurrentRevision, Bootstrap: base.uber.Bootstrap}
	tx.uber.SetRevisionRootTreeRoot(base.uber.RevisionRootTreeRoot())
	tx.revisionRoot = base.revisionRoot.Clone(newRevision)

	leaf, err := page.PrepareRevisionRootLeaf(tx.uber, newRevision, tx.pageLog, tx.base)
	if err != nil {
		return nil, fmt.Errorf("pagetx: prepare revision-root leaf for revision %d: %w", newRevision, err)
	}
	tx.revisionLeaf = leaf

	return tx, nil
}

// Revision reports the revision number this write transaction will
// publish on commit.
func (tx *WriteTransaction) Revision() uint64 { return tx.revisionRoot.Revision }

// RevisionRoot exposes the in-progress revision root, so nodetx can
// read and bump max_node_key / per-family counters directly.
func (tx *WriteTransaction) RevisionRoot() *page.RevisionRootPage { return tx.revisionRoot }

// AddPreCommitHook registers a hook run before any page is written.
// Returning an error aborts the commit (§4.9 add_pre_commit_hook).
func (tx *WriteTransaction) AddPreCommitHook(h func(*WriteTransaction) error) {
	tx.preCommitHooks = append(tx.preCommitHooks, h)
}

// AddPostCommitHook registers a hook run after a commit has fully
// published (§4.9 add_post_commit_hook).
func (tx *WriteTransaction) AddPostCommitHook(h func(*WriteTransaction) error) {
	tx.postCommitHooks = append(tx.postCommitHooks, h)
}

func (tx *WriteTransaction) stagedPage(fi page.FamilyIndex, pageKey uint64) (*stagedRecordPage, bool) {
	byKey, ok := tx.recordLogs[fi]
	if !ok {
		return nil, false
	}
	s, ok := byKey[pageKey]
	return s, ok
}

// prepareRecordPage returns the staged Container for pageKey, loading
// and reconstructing it from storage on first touch this transaction
// (§4.7's prepare_record_page spine).
func (tx *WriteTransaction) prepareRecordPage(pageKey uint64, family page.Family, index int) (*stagedRecordPage, error) {
	fi := page.FamilyIndex{Family: family, Index: index}
	if s, ok := tx.stagedPage(fi, pageKey); ok {
		return s, nil
	}

	leaf, err := page.PrepareLeaf(tx.revisionRoot.Root(fi), pageKey, family, index, tx.pageLog, tx.base)
	if err != nil {
		return nil, fmt.Errorf("pagetx: prepare leaf for family=%s pageKey=%d: %w", family, pageKey, err)
	}

	var container *page.Container
	var chain *versioning.Chain
	if leaf.IsNull() {
		container = page.NewContainer(page.NewRecordPage(family, index, pageKey, page.DefaultCapacity, tx.revisionRoot.Revision))
	} else {
		c, err := tx.base.snapshotChain(pageKey, family, index)
		if err != nil {
			return nil, err
		}
		chain = c
		policy := tx.policies.forFamily(family)
		container, err = policy.CombineForModification(chain)
		if err != nil {
			return nil, err
		}
	}

	staged := &stagedRecordPage{container: container, chain: chain, leaf: leaf}
	if tx.recordLogs[fi] == nil {
		tx.recordLogs[fi] = make(map[uint64]*stagedRecordPage)
	}
	tx.recordLogs[fi][pageKey] = staged
	return staged, nil
}

// PrepareEntryForModification stages a modifiable copy of nodeKey's
// record, copying it up from Complete on first touch. Returns
// ErrRecordMissing if nodeKey has no entry in Complete (§4.7).
func (tx *WriteTransaction) PrepareEntryForModification(nodeKey node.Key, family page.Family, index int) (node.Record, error) {
	pageKey := page.RecordPageKey(uint64(nodeKey), page.DefaultCapacity)
	staged, err := tx.prepareRecordPage(pageKey, family, index)
	if err != nil {
		return nil, err
	}
	rec, ok := staged.container.EnsureModifiable(nodeKey)
	if !ok {
		return nil, ErrRecordMissing
	}
	return rec, nil
}

// CreateEntry allocates a fresh key (the resource-wide max_node_key
// counter for the Record family, a per-family/index counter for every
// other family) and stages build(key)'s result (§4.7 create_entry).
func (tx *WriteTransaction) CreateEntry(family page.Family, index int, build func(key node.Key) node.Record) (node.Key, error) {
	fi := page.FamilyIndex{Family: family, Index: index}
	var key node.Key
	if family == page.FamilyRecord {
		key = node.Key(tx.revisionRoot.NextNodeKey())
	} else {
		key = node.Key(tx.revisionRoot.NextKey(fi))
	}

	rec := build(key)
	pageKey := page.RecordPageKey(uint64(key), page.DefaultCapacity)
	staged, err := tx.prepareRecordPage(pageKey, family, index)
	if err != nil {
		return 0, err
	}
	staged.container.Put(key, rec)
	return key, nil
}

// RemoveEntry stages a tombstone for nodeKey (§4.7 remove_entry).
func (tx *WriteTransaction) RemoveEntry(nodeKey node.Key, family page.Family, index int) error {
	pageKey := page.RecordPageKey(uint64(nodeKey), page.DefaultCapacity)
	staged, err := tx.prepareRecordPage(pageKey, family, index)
	if err != nil {
		return err
	}
	staged.container.Tombstone(nodeKey)
	return nil
}

// GetRecord resolves nodeKey against this transaction's own staged
// pages first, falling back to the base read transaction. Tombstones
// map to ErrRecordNotFound either way (§4.7).
func (tx *WriteTransaction) GetRecord(nodeKey node.Key, family page.Family, index int) (node.Record, error) {
	pageKey := page.RecordPageKey(uint64(nodeKey), page.DefaultCapacity)
	fi := page.FamilyIndex{Family: family, Index: index}
	if staged, ok := tx.stagedPage(fi, pageKey); ok {
		rec, ok := staged.container.Get(nodeKey)
		if !ok || node.IsDeleted(rec) {
			return nil, ErrRecordNotFound
		}
		return rec, nil
	}
	return tx.base.GetRecord(nodeKey, family, index)
}

// Abort discards every staged change and removes the commit marker, if
// a marker path is configured (an aborted transaction's staged pages
// were never reachable from the uber page, so nothing more needs to
// happen to roll back).
func (tx *WriteTransaction) Abort() error {
	if tx.committed {
		return errors.New("pagetx: cannot abort a committed transaction")
	}
	tx.aborted = true
	tx.pageLog = newPageLog()
	tx.recordLogs = make(map[page.FamilyIndex]map[uint64]*stagedRecordPage)
	if tx.commitMarkerPath != "" {
		_ = os.Remove(tx.commitMarkerPath)
	}
	return nil
}

// Commit runs the full persistence protocol of §4.7/§4.9: touch the
// commit marker, run pre-commit hooks, write every staged record page
// and indirect page bottom-up, publish the new uber page atomically,
// then run post-commit hooks and delete the marker.
func (tx *WriteTransaction) Commit() (*page.UberPage, error) {
	if tx.committed || tx.aborted {
		return nil, errors.New("pagetx: transaction already finished")
	}

	if tx.commitMarkerPath != "" {
		f, err := os.Create(tx.commitMarkerPath)
		if err != nil {
			return nil, fmt.Errorf("pagetx: touch commit marker: %w", err)
		}
		f.Close()
	}

	for _, hook := range tx.preCommitHooks {
		if err := hook(tx); err != nil {
			return nil, fmt.Errorf("pagetx: pre-commit hook failed, marker left at %q: %w", tx.commitMarkerPath, err)
		}
	}

	newRevision := tx.revisionRoot.Revision
	if err := tx.writeRecordPages(newRevision); err != nil {
		return nil, err
	}
	for _, fi := range tx.revisionRoot.Families() {
		if err := tx.writeIndirectLevels(fi.Family, fi.Index); err != nil {
			return nil, err
		}
	}

	// CommitTimestamp is written as the pre-commit hooks left it (0 if
	// none set it); the sirix package stamps it with a real clock read.
	tx.revisionLeaf.Page = tx.revisionRoot
	if err := tx.writer.Write(tx.revisionLeaf); err != nil {
		return nil, fmt.Errorf("pagetx: write revision root page: %w", err)
	}
	tx.revisionLeaf.Page = nil

	if err := tx.writeIndirectLevels(page.RevisionRootFamily(), 0); err != nil {
		return nil, err
	}

	tx.uber.CurrentRevision = newRevision
	tx.uber.Bootstrap = false
	uberRef := &page.PageReference{Page: tx.uber}
	if err := tx.writer.Write(uberRef); err != nil {
		return nil, fmt.Errorf("pagetx: write uber page: %w", err)
	}
	if err := tx.writer.WriteUberPageReference(uberRef); err != nil {
		return nil, fmt.Errorf("pagetx: publish uber page reference: %w", err)
	}

	if tx.indexWriter != nil {
		if err := tx.indexWriter.WriteIndexDefinitions(newRevision, nil); err != nil {
			return nil, fmt.Errorf("pagetx: write index definitions: %w", err)
		}
	}

	for _, hook := range tx.postCommitHooks {
		if err := hook(tx); err != nil {
			return nil, fmt.Errorf("pagetx: post-commit hook failed after publish: %w", err)
		}
	}

	if tx.commitMarkerPath != "" {
		if err := os.Remove(tx.commitMarkerPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("pagetx: remove commit marker: %w", err)
		}
	}

	tx.committed = true
	return tx.uber, nil
}

// writeRecordPages finalizes and persists every staged record page,
// assigning each leaf PageReference its physical key.
func (tx *WriteTransaction) writeRecordPages(newRevision uint64) error {
	for fi, byKey := range tx.recordLogs {
		policy := tx.policies.forFamily(fi.Family)
		for _, staged := range byKey {
			// A page with no prior physical version has nothing to
			// delta against regardless of what the milestone stride
			// says about this revision number.
			milestone := staged.chain == nil || policy.IsMilestone(newRevision, tx.milestoneStride)
			final := policy.Finalize(staged.container, staged.chain, milestone)
			staged.leaf.Page = final
			if err := tx.writer.Write(staged.leaf); err != nil {
				return fmt.Errorf("pagetx: write record page family=%s pageKey=%d: %w", fi.Family, final.PageKey, err)
			}
			staged.leaf.Page = nil
		}
	}
	return nil
}

// writeIndirectLevels persists every indirect page this transaction
// staged for the given family/index (or, for the uber page's own
// revision-root tree, the sentinel family with index ignored),
// deepest level first so that by the time a parent is written every
// child slot already carries its freshly assigned key.
func (tx *WriteTransaction) writeIndirectLevels(family page.Family, index int) error {
	for level := page.TreeHeight - 1; level >= 0; level-- {
		for offset, ip := range tx.indirectAt(family, index, level) {
			var slot *page.PageReference
			if level == 0 {
				slot = tx.rootRefFor(family, index)
			} else {
				parentOffset := page.ParentOffset(offset)
				parentSlot := page.SlotInParent(offset)
				parentIP, ok := tx.pageLog.GetIndirect(page.IndirectPageLogKey{Family: family, Index: index, Level: level - 1, Offset: parentOffset})
				if !ok {
					return fmt.Errorf("pagetx: missing staged parent for family=%s level=%d offset=%d", family, level, offset)
				}
				slot = &parentIP.Slots[parentSlot]
			}
			slot.Page = ip
			if err := tx.writer.Write(slot); err != nil {
				return fmt.Errorf("pagetx: write indirect page family=%s level=%d offset=%d: %w", family, level, offset, err)
			}
			slot.Page = nil
		}
	}
	return nil
}

func (tx *WriteTransaction) indirectAt(family page.Family, index, level int) map[uint64]*page.IndirectPage {
	out := make(map[uint64]*page.IndirectPage)
	for key, ip := range tx.pageLog.m {
		if key.Family == family && key.Index == index && key.Level == level {
			out[key.Offset] = ip
		}
	}
	return out
}

func (tx *WriteTransaction) rootRefFor(family page.Family, index int) *page.PageReference {
	if page.IsDocumentFamily(family) {
		return tx.revisionRoot.Root(page.FamilyIndex{Family: family, Index: index})
	}
	return tx.uber.RevisionRootTreeRoot()
}
