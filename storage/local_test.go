package storage

import (
	"path/filepath"
	"testing"

	"sirixgo/node"
	"sirixgo/page"
)

func TestLocalRoundTripsRecordPage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer l.Close()

	rp := page.NewRecordPage(page.FamilyRecord, 0, 3, page.DefaultCapacity, 1)
	el := node.NewElementNode(7, 0, 12, 0)
	el.SetFirstChildKey(8)
	el.InsertAttributeKey(9)
	el.SetHash(0xCAFE)
	rp.Put(7, el)

	txt := node.NewTextNode(8, 7, []byte("hello"))
	rp.Put(8, txt)

	ref := &page.PageReference{Page: rp}
	if err := l.Write(ref); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.Key == 0 {
		t.Fatalf("expected Write to assign a non-zero physical key")
	}

	got, err := l.Read(ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	back, ok := got.(*page.RecordPage)
	if !ok {
		t.Fatalf("expected a *page.RecordPage, got %T", got)
	}
	if back.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", back.Len())
	}
	rec, ok := back.Get(7)
	if !ok {
		t.Fatalf("expected key 7 to round-trip")
	}
	backEl, ok := rec.(*node.ElementNode)
	if !ok {
		t.Fatalf("expected an *node.ElementNode, got %T", rec)
	}
	if backEl.Hash() != 0xCAFE || backEl.FirstChildKey() != 8 {
		t.Fatalf("element fields did not round-trip: hash=%x firstChild=%d", backEl.Hash(), backEl.FirstChildKey())
	}
	if len(backEl.AttributeKeys()) != 1 || backEl.AttributeKeys()[0] != 9 {
		t.Fatalf("expected attribute key list to round-trip, got %v", backEl.AttributeKeys())
	}

	rec8, ok := back.Get(8)
	if !ok {
		t.Fatalf("expected key 8 to round-trip")
	}
	if string(rec8.(*node.TextNode).RawValue()) != "hello" {
		t.Fatalf("expected text value to round-trip")
	}
}

func TestLocalRoundTripsTombstone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer l.Close()

	rp := page.NewRecordPage(page.FamilyRecord, 0, 0, page.DefaultCapacity, 1)
	rp.Put(1, node.NewDeletedNode(1))

	ref := &page.PageReference{Page: rp}
	if err := l.Write(ref); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := l.Read(ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, ok := got.(*page.RecordPage).Get(1)
	if !ok {
		t.Fatalf("expected tombstone entry to round-trip as present")
	}
	if !node.IsDeleted(rec) {
		t.Fatalf("expected tombstone to decode back as deleted")
	}
}

func TestLocalUberPageReferencePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rp := page.NewRecordPage(page.FamilyRecord, 0, 0, page.DefaultCapacity, 1)
	ref := &page.PageReference{Page: rp}
	if err := l.Write(ref); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.WriteUberPageReference(ref); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.ReadUberPageReference()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Key != ref.Key {
		t.Fatalf("expected uber-page reference %d to survive reopen, got %d", ref.Key, got.Key)
	}
}

func TestLocalRoundTripsIndirectAndRevisionRootAndUberPages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer l.Close()

	ip := &page.IndirectPage{Family: page.FamilyRecord, Index: 0, Level: 2}
	ip.Slots[5].Key = 123
	ipRef := &page.PageReference{Page: ip}
	if err := l.Write(ipRef); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gotIP, err := l.Read(ipRef)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotIP.(*page.IndirectPage).Slots[5].Key != 123 {
		t.Fatalf("expected indirect page slot to round-trip")
	}

	rr := page.NewRevisionRootPage(4)
	rr.MaxNodeKey = 99
	fi := page.FamilyIndex{Family: page.FamilyCAS, Index: 1}
	rr.SetRoot(fi, &page.PageReference{Key: 55})
	rr.SetMaxKey(fi, 7)
	rrRef := &page.PageReference{Page: rr}
	if err := l.Write(rrRef); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gotRR, err := l.Read(rrRef)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	back := gotRR.(*page.RevisionRootPage)
	if back.MaxNodeKey != 99 || back.Root(fi).Key != 55 || back.MaxKey(fi) != 7 {
		t.Fatalf("revision root page did not round-trip: %+v", back)
	}

	uber := page.NewUberPage()
	uber.CurrentRevision = 4
	uber.Bootstrap = false
	uber.RevisionRootTreeRoot().Key = 321
	uberRef := &page.PageReference{Page: uber}
	if err := l.Write(uberRef); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gotUber, err := l.Read(uberRef)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	backUber := gotUber.(*page.UberPage)
	if backUber.CurrentRevision != 4 || backUber.Bootstrap || backUber.RevisionRootTreeRoot().Key != 321 {
		t.Fatalf("uber page did not round-trip: %+v", backUber)
	}
}
