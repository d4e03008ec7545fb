package node

import "testing"

func TestElementStructuralInvariants(t *testing.T) {
	e := NewElementNode(10, 1, 5, 0)
	e.IncrementChildCount()
	e.IncrementDescendantCount(1)
	if e.ChildCount() != 1 || e.DescendantCount() != 1 {
		t.Fatalf("expected child/descendant count 1, got %d/%d", e.ChildCount(), e.DescendantCount())
	}
	if e.HasFirstChild() {
		t.Fatalf("fresh element should have no first child")
	}
	e.SetFirstChildKey(11)
	if !e.HasFirstChild() {
		t.Fatalf("expected first child to be set")
	}
}

func TestElementAttributeOrdering(t *testing.T) {
	e := NewElementNode(1, 0, 1, 0)
	e.InsertAttributeKey(2)
	e.InsertAttributeKey(3)
	e.InsertAttributeKey(4)
	e.RemoveAttributeKey(3)
	got := e.AttributeKeys()
	if len(got) != 2 || got[0] != 2 || got[1] != 4 {
		t.Fatalf("unexpected attribute keys after removal: %v", got)
	}
}

func TestTextNodeCloneIsDeep(t *testing.T) {
	orig := NewTextNode(1, 0, []byte("hello"))
	cloned := orig.Clone().(*TextNode)
	cloned.SetRawValue([]byte("world"))
	if string(orig.RawValue()) != "hello" {
		t.Fatalf("clone mutation leaked into original: %q", orig.RawValue())
	}
}

func TestDeletedNodeIsAbsent(t *testing.T) {
	var r Record = NewDeletedNode(7)
	if !IsDeleted(r) {
		t.Fatalf("expected tombstone to report deleted")
	}
	if !IsDeleted(nil) {
		t.Fatalf("expected nil record to report deleted (absent)")
	}
	e := NewElementNode(1, 0, 1, 0)
	if IsDeleted(e) {
		t.Fatalf("live element must not report deleted")
	}
}

func TestKindTraits(t *testing.T) {
	if !KindElement.IsStructural() || !KindElement.IsNamed() || KindElement.IsValued() {
		t.Fatalf("unexpected Element trait set")
	}
	if !KindText.IsStructural() || KindText.IsNamed() || !KindText.IsValued() {
		t.Fatalf("unexpected Text trait set")
	}
	if KindNamespace.IsStructural() || !KindNamespace.IsNamed() || KindNamespace.IsValued() {
		t.Fatalf("unexpected Namespace trait set")
	}
}
