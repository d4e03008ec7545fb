package valueindex

import (
	"path/filepath"
	"testing"

	"sirixgo/node"
	"sirixgo/page"
	"sirixgo/pagetx"
	"sirixgo/storage"
	"sirixgo/versioning"
)

func openWriteTx(t *testing.T) *pagetx.WriteTransaction {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "data"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	cache, _ := pagetx.NewPageCache(64)
	pol, err := versioning.New(versioning.Full, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wtx, err := pagetx.OpenWriteTransaction(store, store, cache, pagetx.Policies{page.FamilyRecord: pol}, pagetx.WriteOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return wtx
}

func TestInsertAndLookup(t *testing.T) {
	tree, err := Open(openWriteTx(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tree.Insert([]byte("hello"), node.Key(10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tree.Insert([]byte("hello"), node.Key(20)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	refs, err := tree.Lookup([]byte("hello"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 references, got %d: %v", len(refs), refs)
	}
}

func TestLookupMissingReturnsEmpty(t *testing.T) {
	tree, err := Open(openWriteTx(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	refs, err := tree.Lookup([]byte("nope"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("expected no references, got %v", refs)
	}
}

func TestRemovePrunesEmptyEntry(t *testing.T) {
	tree, err := Open(openWriteTx(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tree.Insert([]byte("hello"), node.Key(10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tree.Remove([]byte("hello"), node.Key(10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	refs, err := tree.Lookup([]byte("hello"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("expected the entry to be pruned, got %v", refs)
	}
}

func TestRemoveWithTwoChildrenRewiresSuccessor(t *testing.T) {
	tree, err := Open(openWriteTx(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	values := []string{"m", "b", "t", "a", "f", "q", "z"}
	for i, v := range values {
		if err := tree.Insert([]byte(v), node.Key(i+1)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := tree.Remove([]byte("m"), node.Key(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, v := range values {
		if v == "m" {
			continue
		}
		refs, err := tree.Lookup([]byte(v))
		if err != nil {
			t.Fatalf("unexpected error looking up %q: %v", v, err)
		}
		if len(refs) != 1 || refs[0] != node.Key(i+1) {
			t.Fatalf("expected %q to still resolve to node %d, got %v", v, i+1, refs)
		}
	}
	refs, err := tree.Lookup([]byte("m"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("expected %q to be gone, got %v", "m", refs)
	}
}

func TestBulkDefersUntilEndBulk(t *testing.T) {
	tree, err := Open(openWriteTx(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tree.BeginBulk()
	if err := tree.Insert([]byte("bulk"), node.Key(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	refs, err := tree.Lookup([]byte("bulk"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("expected bulk-mode inserts to stay buffered until EndBulk, got %v", refs)
	}
	if err := tree.EndBulk(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	refs, err = tree.Lookup([]byte("bulk"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("expected EndBulk to apply the buffered insert, got %v", refs)
	}
}
