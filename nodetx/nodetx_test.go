package nodetx

import (
	"errors"
	"path/filepath"
	"testing"

	"sirixgo/node"
	"sirixgo/page"
	"sirixgo/pagetx"
	"sirixgo/storage"
	"sirixgo/versioning"
)

func policiesWith(kind versioning.Kind) pagetx.Policies {
	p, err := versioning.New(kind, 0)
	if err != nil {
		panic(err)
	}
	return pagetx.Policies{page.FamilyRecord: p}
}

func openStore(t *testing.T) *storage.Local {
	t.Helper()
	l, err := storage.Open(filepath.Join(t.TempDir(), "data"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func openNodeTx(t *testing.T, store *storage.Local, cache *pagetx.PageCache, hashKind HashKind) *WriteTransaction {
	t.Helper()
	pageWtx, err := pagetx.OpenWriteTransaction(store, store, cache, policiesWith(versioning.Full), pagetx.WriteOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tx, err := Open(pageWtx, Options{HashKind: hashKind})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tx
}

func TestOpenCreatesDocumentRootAtKeyOne(t *testing.T) {
	store := openStore(t)
	cache, _ := pagetx.NewPageCache(64)
	tx := openNodeTx(t, store, cache, HashNone)
	n, err := tx.Node()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Kind() != node.KindDocumentRoot {
		t.Fatalf("expected the cursor to start at the document root, got %s", n.Kind())
	}
	if n.RecordKey() != 1 {
		t.Fatalf("expected the document root at key 1, got %d", n.RecordKey())
	}
}

func TestInsertElementAsFirstChildAndRetrieve(t *testing.T) {
	store := openStore(t)
	cache, _ := pagetx.NewPageCache(64)
	tx := openNodeTx(t, store, cache, HashRolling)

	key, err := tx.InsertElementAsFirstChild(rootKey, 1, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	el, err := tx.getNode(key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if el.Kind() != node.KindElement {
		t.Fatalf("expected an Element, got %s", el.Kind())
	}
	root, err := tx.getNode(rootKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rs := root.(node.Structural)
	if rs.FirstChildKey() != key {
		t.Fatalf("expected the root's first child to be %d, got %d", key, rs.FirstChildKey())
	}
	if rs.ChildCount() != 1 || rs.DescendantCount() != 1 {
		t.Fatalf("expected child/descendant counts of 1, got %d/%d", rs.ChildCount(), rs.DescendantCount())
	}
}

func TestInsertTextAsFirstChildCoalescesWithExistingTextSibling(t *testing.T) {
	store := openStore(t)
	cache, _ := pagetx.NewPageCache(64)
	tx := openNodeTx(t, store, cache, HashNone)

	elKey, err := tx.InsertElementAsFirstChild(rootKey, 1, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	firstKey, err := tx.InsertTextAsFirstChild(elKey, []byte("world"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	secondKey, err := tx.InsertTextAsFirstChild(elKey, []byte("hello "))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if firstKey != secondKey {
		t.Fatalf("expected inserting text next to an existing Text first child to merge in place, got keys %d and %d", firstKey, secondKey)
	}
	merged, err := tx.getNode(firstKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(merged.(node.Valued).RawValue()) != "hello world" {
		t.Fatalf("expected merged text %q, got %q", "hello world", merged.(node.Valued).RawValue())
	}
	el, err := tx.getNode(elKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if el.(node.Structural).ChildCount() != 1 {
		t.Fatalf("expected coalescing to leave exactly one child, got %d", el.(node.Structural).ChildCount())
	}
}

func TestInsertAttributeDuplicateSemantics(t *testing.T) {
	store := openStore(t)
	cache, _ := pagetx.NewPageCache(64)
	tx := openNodeTx(t, store, cache, HashNone)

	elKey, err := tx.InsertElementAsFirstChild(rootKey, 1, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	attrKey, err := tx.InsertAttribute(elKey, 2, 0, []byte("1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// same name, different value: overwrites in place
	samePos, err := tx.InsertAttribute(elKey, 2, 0, []byte("2"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if samePos != attrKey {
		t.Fatalf("expected overwriting an attribute's value to keep its key, got %d want %d", samePos, attrKey)
	}
	got, err := tx.getNode(attrKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got.(node.Valued).RawValue()) != "2" {
		t.Fatalf("expected the attribute value to be overwritten to %q, got %q", "2", got.(node.Valued).RawValue())
	}

	// same name, same value again: duplicate error
	if _, err := tx.InsertAttribute(elKey, 2, 0, []byte("2")); !errors.Is(err, ErrDuplicateAttribute) {
		t.Fatalf("expected ErrDuplicateAttribute, got %v", err)
	}
}

func TestInsertCommentRejectsForbiddenSubstring(t *testing.T) {
	store := openStore(t)
	cache, _ := pagetx.NewPageCache(64)
	tx := openNodeTx(t, store, cache, HashNone)
	if _, err := tx.InsertCommentAsFirstChild(rootKey, []byte("a--b")); !errors.Is(err, ErrInvalidContent) {
		t.Fatalf("expected ErrInvalidContent, got %v", err)
	}
}

func TestMoveSubtreeToFirstChildRejectsCycles(t *testing.T) {
	store := openStore(t)
	cache, _ := pagetx.NewPageCache(64)
	tx := openNodeTx(t, store, cache, HashNone)

	parentKey, err := tx.InsertElementAsFirstChild(rootKey, 1, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	childKey, err := tx.InsertElementAsFirstChild(parentKey, 2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tx.MoveSubtreeToFirstChild(parentKey, childKey); !errors.Is(err, ErrCycleForbidden) {
		t.Fatalf("expected ErrCycleForbidden, got %v", err)
	}
}

func TestMoveSubtreeToRightSiblingRelinksAndUpdatesCounts(t *testing.T) {
	store := openStore(t)
	cache, _ := pagetx.NewPageCache(64)
	tx := openNodeTx(t, store, cache, HashRolling)

	a, err := tx.InsertElementAsFirstChild(rootKey, 1, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := tx.InsertElementAsRightSibling(a, 2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, err := tx.InsertElementAsFirstChild(b, 3, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := tx.MoveSubtreeToRightSibling(c, a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cNode, err := tx.getNode(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cNode.ParentKey() != rootKey {
		t.Fatalf("expected c's parent to be root after the move, got %d", cNode.ParentKey())
	}
	aNode, err := tx.getNode(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if aNode.(node.Structural).RightSiblingKey() != c {
		t.Fatalf("expected a's right sibling to be c after the move, got %d", aNode.(node.Structural).RightSiblingKey())
	}
	bNode, err := tx.getNode(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bNode.(node.Structural).ChildCount() != 0 {
		t.Fatalf("expected b to have no children left after c moved out, got %d", bNode.(node.Structural).ChildCount())
	}
}

func TestRemoveCannotDeleteDocumentRoot(t *testing.T) {
	store := openStore(t)
	cache, _ := pagetx.NewPageCache(64)
	tx := openNodeTx(t, store, cache, HashNone)
	if err := tx.Remove(rootKey); !errors.Is(err, ErrUsage) {
		t.Fatalf("expected ErrUsage, got %v", err)
	}
}

func TestRemoveDeletesWholeSubtreeIncludingAttributes(t *testing.T) {
	store := openStore(t)
	cache, _ := pagetx.NewPageCache(64)
	tx := openNodeTx(t, store, cache, HashNone)

	elKey, err := tx.InsertElementAsFirstChild(rootKey, 1, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	attrKey, err := tx.InsertAttribute(elKey, 2, 0, []byte("v"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	childKey, err := tx.InsertElementAsFirstChild(elKey, 3, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := tx.Remove(elKey); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := tx.getNode(elKey); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected the removed element to read back as absent, got %v", err)
	}
	if _, err := tx.getNode(attrKey); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected the removed element's attribute to read back as absent, got %v", err)
	}
	if _, err := tx.getNode(childKey); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected the removed element's child to read back as absent, got %v", err)
	}
	root, err := tx.getNode(rootKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if root.(node.Structural).FirstChildKey() != node.NullKey {
		t.Fatalf("expected root to have no children left, got first child %d", root.(node.Structural).FirstChildKey())
	}
}

func TestRemoveMergesAdjacentTextSiblingsAcrossTheGap(t *testing.T) {
	store := openStore(t)
	cache, _ := pagetx.NewPageCache(64)
	tx := openNodeTx(t, store, cache, HashNone)

	a, err := tx.InsertTextAsFirstChild(rootKey, []byte("a"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mid, err := tx.InsertElementAsRightSibling(a, 1, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, err := tx.InsertTextAsRightSibling(mid, []byte("c"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := tx.Remove(mid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	merged, err := tx.getNode(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(merged.(node.Valued).RawValue()) != "ac" {
		t.Fatalf("expected the gap left by removing mid to merge adjacent Text siblings into %q, got %q", "ac", merged.(node.Valued).RawValue())
	}
	if _, err := tx.getNode(c); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected c's own record to be gone after merging into a, got %v", err)
	}
}

func TestSetValuePropagatesPostOrderHashToAncestors(t *testing.T) {
	store := openStore(t)
	cache, _ := pagetx.NewPageCache(64)
	tx := openNodeTx(t, store, cache, HashPostOrder)

	elKey, err := tx.InsertElementAsFirstChild(rootKey, 1, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	textKey, err := tx.InsertTextAsFirstChild(elKey, []byte("v1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before, err := tx.getNode(elKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	beforeHash := before.Hash()

	if err := tx.SetValue(textKey, []byte("v2-longer")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	after, err := tx.getNode(elKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if after.Hash() == beforeHash {
		t.Fatalf("expected the parent element's post-order hash to change after its child's value changed")
	}
}

func TestInsertSubtreeComputesFullPostOrderHash(t *testing.T) {
	for _, tc := range []struct {
		name string
		kind HashKind
	}{
		{"Rolling", HashRolling},
		{"PostOrder", HashPostOrder},
	} {
		t.Run(tc.name, func(t *testing.T) {
			store := openStore(t)
			cache, _ := pagetx.NewPageCache(64)
			tx := openNodeTx(t, store, cache, tc.kind)

			tree := Subtree{
				Kind:    node.KindElement,
				NameKey: 1,
				Children: []Subtree{
					{
						Kind:    node.KindElement,
						NameKey: 2,
						Children: []Subtree{
							{Kind: node.KindText, Value: []byte("leaf")},
						},
					},
				},
			}
			subtreeRootKey, err := tx.InsertSubtreeAsFirstChild(rootKey, tree)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			subtreeRoot, err := tx.getNode(subtreeRootKey)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if subtreeRoot.Hash() == contentHash(subtreeRoot) {
				t.Fatalf("expected the subtree root's hash to fold in descendant contributions, got the bare content hash")
			}

			mid, err := tx.getNode(subtreeRoot.(node.Structural).FirstChildKey())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			leaf, err := tx.getNode(mid.(node.Structural).FirstChildKey())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			wantMid := contentHash(mid) + leaf.Hash()*hashMultiplier
			if mid.Hash() != wantMid {
				t.Fatalf("middle element hash = %d, want %d (content + leaf*P)", mid.Hash(), wantMid)
			}
			wantRoot := contentHash(subtreeRoot) + mid.Hash()*hashMultiplier
			if subtreeRoot.Hash() != wantRoot {
				t.Fatalf("subtree root hash = %d, want %d (content + mid*P)", subtreeRoot.Hash(), wantRoot)
			}
		})
	}
}

func TestAttributeValueChangePropagatesPostOrderHashToAncestors(t *testing.T) {
	store := openStore(t)
	cache, _ := pagetx.NewPageCache(64)
	tx := openNodeTx(t, store, cache, HashPostOrder)

	elKey, err := tx.InsertElementAsFirstChild(rootKey, 1, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := tx.InsertAttribute(elKey, 2, 0, []byte("v1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before, err := tx.getNode(elKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	beforeHash := before.Hash()

	if _, err := tx.InsertAttribute(elKey, 2, 0, []byte("v2-longer")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	after, err := tx.getNode(elKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if after.Hash() == beforeHash {
		t.Fatalf("expected the owning element's post-order hash to change after its attribute's value changed")
	}
}

func TestCommitPublishesNodesVisibleToNewReadTransaction(t *testing.T) {
	store := openStore(t)
	cache, _ := pagetx.NewPageCache(64)
	tx := openNodeTx(t, store, cache, HashRolling)

	key, err := tx.InsertElementAsFirstChild(rootKey, 1, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := tx.Commit(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.state != StateCommitted {
		t.Fatalf("expected state Committed after Commit, got %s", tx.state)
	}

	rtx, err := pagetx.OpenReadTransaction(store, cache, policiesWith(versioning.Full), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := rtx.GetRecord(key, page.FamilyRecord, 0); err != nil {
		t.Fatalf("expected the committed element to be visible, got %v", err)
	}
}

func TestCopySubtreeAsFirstChildFromAnotherRevision(t *testing.T) {
	store := openStore(t)
	cache, _ := pagetx.NewPageCache(64)

	tx := openNodeTx(t, store, cache, HashNone)
	srcKey, err := tx.InsertElementAsFirstChild(rootKey, 1, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := tx.InsertTextAsFirstChild(srcKey, []byte("copy me")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := tx.Commit(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	src, err := pagetx.OpenReadTransaction(store, cache, policiesWith(versioning.Full), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tx2 := openNodeTx(t, store, cache, HashNone)
	destParent, err := tx2.InsertElementAsFirstChild(rootKey, 9, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	copiedKey, err := tx2.CopySubtreeAsFirstChild(src, srcKey, destParent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	copied, err := tx2.getNode(copiedKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if copied.(node.Structural).FirstChildKey() == node.NullKey {
		t.Fatalf("expected the copied element to carry its text child along")
	}
}

func TestPathSummaryResolvesAndSharesPathNodes(t *testing.T) {
	store := openStore(t)
	cache, _ := pagetx.NewPageCache(64)
	pageWtx, err := pagetx.OpenWriteTransaction(store, store, cache, policiesWith(versioning.Full), pagetx.WriteOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tx, err := Open(pageWtx, Options{HashKind: HashNone, UsePathSummary: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a1, err := tx.InsertElementAsFirstChild(rootKey, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a2, err := tx.InsertElementAsRightSibling(a1, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	n1, err := tx.getNode(a1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n2, err := tx.getNode(a2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p1 := n1.(node.Named).PathNodeKey()
	p2 := n2.(node.Named).PathNodeKey()
	if p1 == node.NullKey || p1 != p2 {
		t.Fatalf("expected two equally-named siblings to share one path node, got %d and %d", p1, p2)
	}

	if err := tx.SetQName(a2, 20, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n2, err = tx.getNode(a2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n2.(node.Named).PathNodeKey() == p1 {
		t.Fatalf("expected the renamed node to no longer share the original path node")
	}
	if _, err := tx.paths.Get(p1); err != nil {
		t.Fatalf("expected the still-referenced original path node to remain, got %v", err)
	}
}

func TestValueIndexTracksInsertsSetValueAndRemove(t *testing.T) {
	store := openStore(t)
	cache, _ := pagetx.NewPageCache(64)
	pageWtx, err := pagetx.OpenWriteTransaction(store, store, cache, policiesWith(versioning.Full), pagetx.WriteOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tx, err := Open(pageWtx, Options{HashKind: HashNone, UseValueIndex: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	root, err := tx.InsertElementAsFirstChild(rootKey, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	textKey, err := tx.InsertTextAsFirstChild(root, []byte("hello"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	refs, err := tx.values.Lookup([]byte("hello"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 1 || refs[0] != textKey {
		t.Fatalf("expected the new text node to be indexed under its value, got %v", refs)
	}

	if err := tx.SetValue(textKey, []byte("world")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refs, err := tx.values.Lookup([]byte("hello")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	} else if len(refs) != 0 {
		t.Fatalf("expected the old value's entry to be pruned, got %v", refs)
	}
	if refs, err := tx.values.Lookup([]byte("world")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	} else if len(refs) != 1 || refs[0] != textKey {
		t.Fatalf("expected the new value to resolve to the same node, got %v", refs)
	}

	if err := tx.Remove(textKey); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refs, err := tx.values.Lookup([]byte("world")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	} else if len(refs) != 0 {
		t.Fatalf("expected the removed node's value entry to be gone, got %v", refs)
	}
}
