package page

import (
	"testing"

	"sirixgo/node"
)

func TestRecordPageGetPutDelete(t *testing.T) {
	p := NewRecordPage(FamilyRecord, 0, 0, DefaultCapacity, 1)
	e := node.NewElementNode(1, 0, 3, 0)
	p.Put(1, e)
	got, ok := p.Get(1)
	if !ok || got.(*node.ElementNode) != e {
		t.Fatalf("expected to get back the element just put")
	}
	p.Delete(1)
	if _, ok := p.Get(1); ok {
		t.Fatalf("expected entry to be gone after delete")
	}
}

func TestContainerModifiedShadowsComplete(t *testing.T) {
	complete := NewRecordPage(FamilyRecord, 0, 0, DefaultCapacity, 1)
	complete.Put(1, node.NewElementNode(1, 0, 3, 0))
	c := NewContainer(complete)

	if _, ok := c.Modified.Get(1); ok {
		t.Fatalf("modified should start empty")
	}
	staged, ok := c.EnsureModifiable(1)
	if !ok {
		t.Fatalf("expected copy-up from complete to succeed")
	}
	staged.(*node.ElementNode).SetHash(42)
	if got, _ := c.Complete.Get(1); got.(*node.ElementNode).Hash() != 0 {
		t.Fatalf("mutating the staged copy must not affect complete")
	}
	if got, _ := c.Get(1); got.(*node.ElementNode).Hash() != 42 {
		t.Fatalf("Get must resolve to the modified copy once staged")
	}
}

func TestContainerTombstoneHidesFromBoth(t *testing.T) {
	complete := NewRecordPage(FamilyRecord, 0, 0, DefaultCapacity, 1)
	complete.Put(5, node.NewElementNode(5, 0, 1, 0))
	c := NewContainer(complete)
	c.Tombstone(5)

	rec, ok := c.Get(5)
	if !ok {
		t.Fatalf("tombstoned record must still resolve (as a tombstone)")
	}
	if !node.IsDeleted(rec) {
		t.Fatalf("expected tombstone, got live record")
	}
}

type fakeLog struct {
	m map[IndirectPageLogKey]*IndirectPage
}

func newFakeLog() *fakeLog { return &fakeLog{m: make(map[IndirectPageLogKey]*IndirectPage)} }

func (f *fakeLog) GetIndirect(key IndirectPageLogKey) (*IndirectPage, bool) {
	p, ok := f.m[key]
	return p, ok
}

func (f *fakeLog) PutIndirect(key IndirectPageLogKey, page *IndirectPage) {
	f.m[key] = page
}

func TestPrepareLeafClonesAlongPathOnce(t *testing.T) {
	log := newFakeLog()
	start := &PageReference{}

	ref1, err := PrepareLeaf(start, 42, FamilyRecord, 0, log, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ref1.Key = 100 // simulate the record page eventually being written here

	ref2, err := PrepareLeaf(start, 42, FamilyRecord, 0, log, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref2.Key != 100 {
		t.Fatalf("expected second PrepareLeaf for the same key to return the same staged slot, got key=%d", ref2.Key)
	}
	if len(log.m) != TreeHeight {
		t.Fatalf("expected exactly %d indirect pages staged along the path, got %d", TreeHeight, len(log.m))
	}

	// a different page key sharing the top-level slot should only
	// re-clone the levels where the path actually diverges.
	ref3, err := PrepareLeaf(start, 42+Fanout, FamilyRecord, 0, log, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref3 == ref1 {
		t.Fatalf("expected a distinct leaf slot for a different page key")
	}
}

func TestRevisionRootCloneCarriesCounters(t *testing.T) {
	r1 := NewRevisionRootPage(1)
	r1.MaxNodeKey = 10
	fi := FamilyIndex{Family: FamilyRecord, Index: 0}
	r1.SetMaxKey(fi, 3)
	r1.SetRoot(fi, &PageReference{Key: 7})

	r2 := r1.Clone(2)
	if r2.MaxNodeKey != 10 || r2.MaxKey(fi) != 3 {
		t.Fatalf("expected counters to carry forward, got maxNodeKey=%d maxKey=%d", r2.MaxNodeKey, r2.MaxKey(fi))
	}
	if r2.Root(fi).Key != 7 {
		t.Fatalf("expected root reference to carry forward")
	}
	r2.NextNodeKey()
	if r1.MaxNodeKey == r2.MaxNodeKey {
		t.Fatalf("clone must not share the counter storage with its source")
	}
}
