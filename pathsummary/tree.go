package pathsummary

import (
	"errors"
	"fmt"

	"sirixgo/node"
	"sirixgo/page"
	"sirixgo/pagetx"
)

// ErrNotFound is returned when a path node key does not resolve to a
// live path node.
var ErrNotFound = errors.New("pathsummary: not found")

// RootKey is the fixed key of the path-summary root, mirroring the
// document root's own fixed key (document_root / "/") — every other
// path node hangs off it (§4.10).
const RootKey node.Key = 1

// Operation names the three cases adapt_path_for_changed_node
// distinguishes (§4.10).
type Operation int

const (
	// SetName: the node kept its position but was renamed (element
	// qname changed, attribute/namespace renamed).
	SetName Operation = iota
	// Moved: the node was relocated to a different parent, possibly
	// at a different level.
	Moved
	// MovedSameLevel: the node was relocated but stayed at the same
	// tree level under a structurally-equivalent parent path (e.g.
	// reordered among siblings) — treated like an in-place rename.
	MovedSameLevel
)

// Tree wraps a pagetx.WriteTransaction to maintain the path-summary
// tree in the page.FamilyPathSummary family (index 0), the same
// staged-container machinery nodetx uses for document nodes (§4.7).
type Tree struct {
	pageTx *pagetx.WriteTransaction
}

// Open wraps pageTx and ensures the path-summary root node exists,
// creating it on first use of a fresh resource.
func Open(pageTx *pagetx.WriteTransaction) (*Tree, error) {
	t := &Tree{pageTx: pageTx}
	if _, err := t.get(RootKey); err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if _, err := t.pageTx.CreateEntry(page.FamilyPathSummary, 0, func(key node.Key) node.Record {
			return &PathNode{key: key, kind: node.KindDocumentRoot, level: 0, parentKey: node.NullKey}
		}); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Tree) get(key node.Key) (*PathNode, error) {
	rec, err := t.pageTx.GetRecord(key, page.FamilyPathSummary, 0)
	if err != nil {
		if errors.Is(err, pagetx.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p, ok := rec.(*PathNode)
	if !ok {
		return nil, fmt.Errorf("pathsummary: key %d is not a path node", key)
	}
	return p, nil
}

func (t *Tree) prepare(key node.Key) (*PathNode, error) {
	rec, err := t.pageTx.PrepareEntryForModification(key, page.FamilyPathSummary, 0)
	if err != nil {
		if errors.Is(err, pagetx.ErrRecordMissing) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec.(*PathNode), nil
}

// Get returns the path node stored at key.
func (t *Tree) Get(key node.Key) (*PathNode, error) { return t.get(key) }

// findChild searches parentKey's children for one matching (nameKey,
// uriKey, kind), the lookup both SETNAME and MOVED use to decide
// between merging into an existing sibling path and minting a new one.
func (t *Tree) findChild(parentKey node.Key, nameKey, uriKey int32, kind node.Kind) (*PathNode, error) {
	parent, err := t.get(parentKey)
	if err != nil {
		return nil, err
	}
	childKey := parent.FirstChildKey()
	for childKey != node.NullKey {
		child, err := t.get(childKey)
		if err != nil {
			return nil, err
		}
		if child.NameKey() == nameKey && child.URIKey() == uriKey && child.Kind() == kind {
			return child, nil
		}
		childKey = child.RightSiblingKey()
	}
	return nil, nil
}

// createChild mints a fresh path node under parentKey with a
// reference count of 1 and links it as parentKey's first child.
func (t *Tree) createChild(parentKey node.Key, nameKey, uriKey int32, kind node.Kind) (node.Key, error) {
	parent, err := t.get(parentKey)
	if err != nil {
		return 0, err
	}
	level := parent.Level() + 1
	oldFirst := parent.FirstChildKey()

	newKey, err := t.pageTx.CreateEntry(page.FamilyPathSummary, 0, func(key node.Key) node.Record {
		pn := NewPathNode(key, nameKey, uriKey, kind, level, parentKey)
		pn.SetRightSiblingKey(oldFirst)
		return pn
	})
	if err != nil {
		return 0, err
	}

	if oldFirst != node.NullKey {
		oldFirstNode, err := t.prepare(oldFirst)
		if err != nil {
			return 0, err
		}
		oldFirstNode.SetLeftSiblingKey(newKey)
	}
	parentMod, err := t.prepare(parentKey)
	if err != nil {
		return 0, err
	}
	parentMod.SetFirstChildKey(newKey)
	return newKey, nil
}

// GetOrCreatePath resolves the path node for nameKey/uriKey/kind under
// parentKey, creating (with reference count 1) or incrementing an
// existing one (§4.10: a path node is shared by every node whose path
// matches).
func (t *Tree) GetOrCreatePath(parentKey node.Key, nameKey, uriKey int32, kind node.Kind) (node.Key, error) {
	existing, err := t.findChild(parentKey, nameKey, uriKey, kind)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		mod, err := t.prepare(existing.RecordKey())
		if err != nil {
			return 0, err
		}
		mod.IncrementReferenceCount()
		return mod.RecordKey(), nil
	}
	return t.createChild(parentKey, nameKey, uriKey, kind)
}

// unlink removes key from its parent's child list, promoting its
// right sibling if it was the first child.
func (t *Tree) unlink(key node.Key) error {
	p, err := t.get(key)
	if err != nil {
		return err
	}
	left, right, parentKey := p.LeftSiblingKey(), p.RightSiblingKey(), p.ParentKey()

	if left != node.NullKey {
		leftMod, err := t.prepare(left)
		if err != nil {
			return err
		}
		leftMod.SetRightSiblingKey(right)
	} else if parentKey != node.NullKey {
		parentMod, err := t.prepare(parentKey)
		if err != nil {
			return err
		}
		parentMod.SetFirstChildKey(right)
	}
	if right != node.NullKey {
		rightMod, err := t.prepare(right)
		if err != nil {
			return err
		}
		rightMod.SetLeftSiblingKey(left)
	}
	return nil
}

// removeSubtree tombstones key and every descendant path node,
// regardless of their own reference counts — invoked only once a path
// node's count has dropped to zero, at which point no live document
// node can still reference anything beneath it either (§4.10: removing
// the last node bearing a path recursively removes the path subtree).
func (t *Tree) removeSubtree(key node.Key) error {
	p, err := t.get(key)
	if err != nil {
		return err
	}
	childKey := p.FirstChildKey()
	for childKey != node.NullKey {
		child, err := t.get(childKey)
		if err != nil {
			return err
		}
		next := child.RightSiblingKey()
		if err := t.removeSubtree(childKey); err != nil {
			return err
		}
		childKey = next
	}
	return t.pageTx.RemoveEntry(key, page.FamilyPathSummary, 0)
}

// Release decrements the path node at key's reference count, removing
// its whole subtree once the count reaches zero.
func (t *Tree) Release(key node.Key) error {
	mod, err := t.prepare(key)
	if err != nil {
		return err
	}
	if mod.DecrementReferenceCount() {
		if err := t.unlink(key); err != nil {
			return err
		}
		return t.removeSubtree(key)
	}
	return nil
}

// AdaptPathForChangedNode implements §4.10's adapt_path_for_changed_node:
// the changed document node currently resolves to pathNodeKey; it is
// now (re)named nameKey/uriKey of kind, and — for Moved — now sits
// under newParentPathKey. It returns the path node key the document
// node should resolve to afterwards.
func (t *Tree) AdaptPathForChangedNode(pathNodeKey node.Key, nameKey, uriKey int32, kind node.Kind, newParentPathKey node.Key, op Operation) (node.Key, error) {
	switch op {
	case SetName, MovedSameLevel:
		return t.adaptInPlace(pathNodeKey, nameKey, uriKey, kind)
	case Moved:
		return t.adaptMoved(pathNodeKey, nameKey, uriKey, kind, newParentPathKey)
	default:
		return 0, fmt.Errorf("pathsummary: unknown operation %d", op)
	}
}

// adaptInPlace covers SETNAME and MOVEDSAMELEVEL: if the current path
// node is solely referenced by this one document node, either rewrite
// it in place or, if a sibling path node already matches the new
// name, merge into that sibling and drop the now-unreferenced old
// path node. If the current path node is shared with other document
// nodes, it cannot be rewritten in place (that would retarget every
// other sharer too) — split off a path node of its own instead, by
// releasing the old reference and resolving/creating the new one
// under the same parent.
func (t *Tree) adaptInPlace(pathNodeKey node.Key, nameKey, uriKey int32, kind node.Kind) (node.Key, error) {
	cur, err := t.get(pathNodeKey)
	if err != nil {
		return 0, err
	}
	if cur.NameKey() == nameKey && cur.URIKey() == uriKey && cur.Kind() == kind {
		return pathNodeKey, nil
	}

	if cur.ReferenceCount() == 1 {
		sibling, err := t.findChild(cur.ParentKey(), nameKey, uriKey, kind)
		if err != nil {
			return 0, err
		}
		if sibling != nil && sibling.RecordKey() != pathNodeKey {
			siblingMod, err := t.prepare(sibling.RecordKey())
			if err != nil {
				return 0, err
			}
			siblingMod.IncrementReferenceCount()
			if err := t.unlink(pathNodeKey); err != nil {
				return 0, err
			}
			if err := t.removeSubtree(pathNodeKey); err != nil {
				return 0, err
			}
			return siblingMod.RecordKey(), nil
		}
		mod, err := t.prepare(pathNodeKey)
		if err != nil {
			return 0, err
		}
		mod.nameKey, mod.uriKey, mod.kind = nameKey, uriKey, kind
		return pathNodeKey, nil
	}

	parentKey := cur.ParentKey()
	if err := t.Release(pathNodeKey); err != nil {
		return 0, err
	}
	return t.GetOrCreatePath(parentKey, nameKey, uriKey, kind)
}

// adaptMoved covers MOVED: release the reference under the old parent
// (removing that path subtree if it was the last reference), then
// resolve or create the path node under the new parent at
// newParentPathKey's level+1 (§4.10). Descendants of a moved subtree
// are the caller's responsibility: nodetx re-resolves each named
// descendant's own path node key by walking the live document subtree
// and issuing one AdaptPathForChangedNode (Moved) call per descendant,
// which keeps this package ignorant of document-tree shape.
func (t *Tree) adaptMoved(pathNodeKey node.Key, nameKey, uriKey int32, kind node.Kind, newParentPathKey node.Key) (node.Key, error) {
	if err := t.Release(pathNodeKey); err != nil {
		return 0, err
	}
	return t.GetOrCreatePath(newParentPathKey, nameKey, uriKey, kind)
}
