package pagetx

import (
	"errors"
	"fmt"

	"sirixgo/node"
	"sirixgo/page"
	"sirixgo/storage"
	"sirixgo/versioning"
)

// ErrRecordNotFound is returned by GetRecord when no live record is
// stored under the given key at this transaction's revision — either
// because it was never written, or because it carries a tombstone
// (§4.7: "tombstones map to absent").
var ErrRecordNotFound = errors.New("pagetx: record not found")

// Policies selects the versioning.Policy used to reconstruct each page
// family's history. A resource configures one policy per family at
// open time (§6.5, ResourceConfig.RevisioningPerFamily).
type Policies map[page.Family]versioning.Policy

func (p Policies) forFamily(f page.Family) versioning.Policy {
	if pol, ok := p[f]; ok {
		return pol
	}
	return p[page.FamilyRecord]
}

// ReadTransaction is a read-only snapshot of a resource at a fixed
// committed revision (C6). Every lookup descends the revision's
// indirect-page trees through the shared PageCache, falling back to
// the PageReader and reconstructing multi-version pages through the
// active versioning.Policy.
type ReadTransaction struct {
	reader   storage.PageReader
	cache    *PageCache
	policies Policies

	revision     uint64
	uber         *page.UberPage
	revisionRoot *page.RevisionRootPage
}

// OpenReadTransaction opens a snapshot at revision. Pass revision ==
// 0 to mean "the latest committed revision" (§4.9 table: read
// transactions default to the latest revision when none is named).
func OpenReadTransaction(reader storage.PageReader, cache *PageCache, policies Policies, revision uint64) (*ReadTransaction, error) {
	uberRef, err := reader.ReadUberPageReference()
	if err != nil {
		return nil, fmt.Errorf("pagetx: read uber page reference: %w", err)
	}

	tx := &ReadTransaction{reader: reader, cache: cache, policies: policies}

	if uberRef.IsNull() {
		// brand-new resource, nothing committed yet
		tx.uber = page.NewUberPage()
		tx.revision = 0
		tx.revisionRoot = page.NewRevisionRootPage(0)
		return tx, nil
	}

	uberPage, err := tx.loadPage(uberRef)
	if err != nil {
		return nil, fmt.Errorf("pagetx: load uber page: %w", err)
	}
	uber, ok := uberPage.(*page.UberPage)
	if !ok {
		return nil, fmt.Errorf("pagetx: expected *page.UberPage, got %T", uberPage)
	}
	tx.uber = uber

	if revision == 0 || revision > uber.CurrentRevision {
		revision = uber.CurrentRevision
	}
	tx.revision = revision

	leaf, err := page.DescendRevisionRootLeaf(uber, revision, tx)
	if err != nil {
		return nil, fmt.Errorf("pagetx: descend to revision %d: %w", revision, err)
	}
	if leaf.IsNull() {
		return nil, fmt.Errorf("pagetx: revision %d does not exist", revision)
	}
	rrPage, err := tx.loadPage(leaf)
	if err != nil {
		return nil, fmt.Errorf("pagetx: load revision-root page at revision %d: %w", revision, err)
	}
	rr, ok := rrPage.(*page.RevisionRootPage)
	if !ok {
		return nil, fmt.Errorf("pagetx: expected *page.RevisionRootPage, got %T", rrPage)
	}
	tx.revisionRoot = rr

	return tx, nil
}

// Revision reports the committed revision this transaction is pinned to.
func (tx *ReadTransaction) Revision() uint64 { return tx.revision }

// RevisionRoot exposes the pinned revision's root page — consumed by
// nodetx to read max_node_key/per-family counters and by pathsummary
// and valueindex to reach their own family roots.
func (tx *ReadTransaction) RevisionRoot() *page.RevisionRootPage { return tx.revisionRoot }

// Uber exposes the resource's uber page.
func (tx *ReadTransaction) Uber() *page.UberPage { return tx.uber }

// loadPage resolves ref to its Page value, consulting the cache before
// falling back to the reader (§4.6).
func (tx *ReadTransaction) loadPage(ref *page.PageReference) (page.Page, error) {
	if ref.Page != nil {
		return ref.Page, nil
	}
	if ref.IsNull() {
		return nil, fmt.Errorf("pagetx: cannot load a null page reference")
	}
	if p, ok := tx.cache.get(ref.Key); ok {
		return p, nil
	}
	p, err := tx.reader.Read(ref)
	if err != nil {
		return nil, err
	}
	tx.cache.put(ref.Key, p)
	return p, nil
}

// LoadIndirect implements page.PageLoader, letting page.Descend and
// page.DescendRevisionRootLeaf resolve persisted indirect pages
// through this transaction's cache/reader.
func (tx *ReadTransaction) LoadIndirect(ref *page.PageReference, family page.Family, index, level int, offset uint64) (*page.IndirectPage, error) {
	if ref.IsNull() {
		return nil, nil
	}
	p, err := tx.loadPage(ref)
	if err != nil {
		return nil, err
	}
	ip, ok := p.(*page.IndirectPage)
	if !ok {
		return nil, fmt.Errorf("pagetx: expected indirect page family=%s level=%d offset=%d, got %T", family, level, offset, p)
	}
	return ip, nil
}

// snapshotChain reconstructs the full PreviousVersion chain for a page
// key/family/index, bounded by the active policy's MaxHops (§4.5).
func (tx *ReadTransaction) snapshotChain(pageKey uint64, family page.Family, index int) (*versioning.Chain, error) {
	fi := page.FamilyIndex{Family: family, Index: index}
	leaf, err := page.Descend(tx.revisionRoot.Root(fi), pageKey, family, index, tx)
	if err != nil {
		return nil, err
	}
	if leaf.IsNull() {
		return nil, nil
	}
	latestPage, err := tx.loadPage(leaf)
	if err != nil {
		return nil, err
	}
	rp, ok := latestPage.(*page.RecordPage)
	if !ok {
		return nil, fmt.Errorf("pagetx: expected *page.RecordPage, got %T", latestPage)
	}

	policy := tx.policies.forFamily(family)
	load := func(ref *page.PageReference) (*page.RecordPage, error) {
		p, err := tx.loadPage(ref)
		if err != nil {
			return nil, err
		}
		rp, ok := p.(*page.RecordPage)
		if !ok {
			return nil, fmt.Errorf("pagetx: expected *page.RecordPage in version chain, got %T", p)
		}
		return rp, nil
	}
	return versioning.CollectVersions(rp, leaf, load, policy.MaxHops())
}

// GetRecord reconstructs and returns the live record stored under
// nodeKey in the given family/index, or ErrRecordNotFound if absent or
// tombstoned.
func (tx *ReadTransaction) GetRecord(nodeKey node.Key, family page.Family, index int) (node.Record, error) {
	pageKey := page.RecordPageKey(uint64(nodeKey), page.DefaultCapacity)
	chain, err := tx.snapshotChain(pageKey, family, index)
	if err != nil {
		return nil, err
	}
	if chain == nil {
		return nil, ErrRecordNotFound
	}
	policy := tx.policies.forFamily(family)
	complete, err := policy.CombineForRead(chain)
	if err != nil {
		return nil, err
	}
	rec, ok := complete.Get(nodeKey)
	if !ok || node.IsDeleted(rec) {
		return nil, ErrRecordNotFound
	}
	return rec, nil
}

// NodeAt resolves nodeKey to its node in the Record family, satisfying
// axis.Reader so the axis package's traversals can run directly
// against a read-only revision snapshot.
func (tx *ReadTransaction) NodeAt(nodeKey node.Key) (node.Node, error) {
	rec, err := tx.GetRecord(nodeKey, page.FamilyRecord, 0)
	if err != nil {
		return nil, err
	}
	n, ok := rec.(node.Node)
	if !ok {
		return nil, fmt.Errorf("pagetx: key %d is not a node", nodeKey)
	}
	return n, nil
}

// GetSnapshotPages returns every physical version of the record page
// addressing pageKey, oldest first, as reconstructed by the active
// versioning policy's bounded walk — exposed for diagnostics and for
// the write transaction's CombineForModification path.
func (tx *ReadTransaction) GetSnapshotPages(pageKey uint64, family page.Family, index int) ([]*page.RecordPage, error) {
	chain, err := tx.snapshotChain(pageKey, family, index)
	if err != nil {
		return nil, err
	}
	if chain == nil {
		return nil, nil
	}
	return chain.Versions, nil
}
