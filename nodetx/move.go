package nodetx

import (
	"fmt"

	"sirixgo/axis"
	"sirixgo/node"
	"sirixgo/page"
	"sirixgo/pathsummary"
)

// isAncestor reports whether candidateKey is an ancestor of key (or
// equal to it), walking parent links.
func (tx *WriteTransaction) isAncestor(candidateKey, key node.Key) (bool, error) {
	cur := key
	for cur != node.NullKey {
		if cur == candidateKey {
			return true, nil
		}
		n, err := tx.getNode(cur)
		if err != nil {
			return false, err
		}
		cur = n.ParentKey()
	}
	return false, nil
}

// detach unlinks key from its current parent/sibling chain, closing
// the gap it leaves and merging the two text siblings left adjacent by
// the gap if both turn out to be Text (§3.1's coalescing invariant
// applies just as much to the position a moved or removed node leaves
// behind as to the position it's inserted at).
func (tx *WriteTransaction) detach(key node.Key) (node.Structural, error) {
	rec, err := tx.prepareNodeForModification(key)
	if err != nil {
		return nil, err
	}
	s, ok := rec.(node.Structural)
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot be moved as a subtree", ErrUsage, rec.Kind())
	}
	parentKey := rec.ParentKey()
	leftKey := s.LeftSiblingKey()
	rightKey := s.RightSiblingKey()

	if leftKey != node.NullKey {
		left, err := tx.prepareNodeForModification(leftKey)
		if err != nil {
			return nil, err
		}
		left.(node.Structural).SetRightSiblingKey(rightKey)
	} else if parentKey != node.NullKey {
		parent, err := tx.prepareNodeForModification(parentKey)
		if err != nil {
			return nil, err
		}
		parent.(node.Structural).SetFirstChildKey(rightKey)
	}
	if rightKey != node.NullKey {
		right, err := tx.prepareNodeForModification(rightKey)
		if err != nil {
			return nil, err
		}
		right.(node.Structural).SetLeftSiblingKey(leftKey)
	}
	if parentKey != node.NullKey {
		parent, err := tx.prepareNodeForModification(parentKey)
		if err != nil {
			return nil, err
		}
		parent.(node.Structural).DecrementChildCount()
		// The negated count wraps around, so adding it subtracts the
		// whole detached subtree from every ancestor.
		if err := tx.bumpDescendants(parentKey, -(1 + s.DescendantCount())); err != nil {
			return nil, err
		}
		if err := tx.afterRemove(rec, parentKey); err != nil {
			return nil, err
		}
	}

	s.SetParentKey(node.NullKey)
	s.SetLeftSiblingKey(node.NullKey)
	s.SetRightSiblingKey(node.NullKey)

	if leftKey != node.NullKey && rightKey != node.NullKey {
		if _, err := tx.coalesceGapIfBothText(leftKey, rightKey); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// coalesceGapIfBothText merges rightKey's value into leftKey, then
// unlinks rightKey from the sibling chain (updating its parent's counts
// and hashes) and removes its own record, if both close a just-opened
// gap as adjacent Text siblings.
func (tx *WriteTransaction) coalesceGapIfBothText(leftKey, rightKey node.Key) (bool, error) {
	left, err := tx.getNode(leftKey)
	if err != nil {
		return false, err
	}
	right, err := tx.getNode(rightKey)
	if err != nil {
		return false, err
	}
	if left.Kind() != node.KindText || right.Kind() != node.KindText {
		return false, nil
	}
	leftMod, err := tx.prepareNodeForModification(leftKey)
	if err != nil {
		return false, err
	}
	oldHash := leftMod.Hash()
	oldValue := append([]byte(nil), leftMod.(node.Valued).RawValue()...)
	lv := leftMod.(node.Valued)
	lv.SetRawValue(append(lv.RawValue(), right.(node.Valued).RawValue()...))
	leftMod.SetHash(contentHash(leftMod))
	if err := tx.reindexValue(leftMod, oldValue); err != nil {
		return false, err
	}
	if err := tx.unindexValue(right); err != nil {
		return false, err
	}
	if _, err := tx.detach(rightKey); err != nil {
		return false, err
	}
	if err := tx.pageTx.RemoveEntry(rightKey, page.FamilyRecord, 0); err != nil {
		return false, err
	}
	if err := tx.afterContentChange(leftMod, oldHash); err != nil {
		return false, err
	}
	return true, nil
}

// MoveSubtreeToFirstChild detaches fromKey's whole subtree and
// reattaches it as newParentKey's new first child. fromKey must not be
// newParentKey or one of its ancestors (§4.9 move_subtree_to_first_child).
func (tx *WriteTransaction) MoveSubtreeToFirstChild(fromKey, newParentKey node.Key) error {
	if ancestor, err := tx.isAncestor(fromKey, newParentKey); err != nil {
		return err
	} else if ancestor {
		return ErrCycleForbidden
	}
	s, err := tx.detach(fromKey)
	if err != nil {
		return err
	}
	if err := tx.attachFirstChild(newParentKey, fromKey, s); err != nil {
		return err
	}
	return tx.afterInsertMoved(s)
}

// MoveSubtreeToRightSibling detaches fromKey's whole subtree and
// reattaches it immediately to the right of toKey.
func (tx *WriteTransaction) MoveSubtreeToRightSibling(fromKey, toKey node.Key) error {
	if ancestor, err := tx.isAncestor(fromKey, toKey); err != nil {
		return err
	} else if ancestor {
		return ErrCycleForbidden
	}
	s, err := tx.detach(fromKey)
	if err != nil {
		return err
	}
	if err := tx.attachRightSibling(toKey, fromKey, s); err != nil {
		return err
	}
	return tx.afterInsertMoved(s)
}

// MoveSubtreeToLeftSibling detaches fromKey's whole subtree and
// reattaches it immediately to the left of toKey.
func (tx *WriteTransaction) MoveSubtreeToLeftSibling(fromKey, toKey node.Key) error {
	if ancestor, err := tx.isAncestor(fromKey, toKey); err != nil {
		return err
	} else if ancestor {
		return ErrCycleForbidden
	}
	s, err := tx.detach(fromKey)
	if err != nil {
		return err
	}
	if err := tx.attachLeftSibling(toKey, fromKey, s); err != nil {
		return err
	}
	return tx.afterInsertMoved(s)
}

// afterInsertMoved folds the moved subtree's root hash into its new
// ancestor chain, re-resolves every Named node in the moved subtree
// against its (possibly new) path-summary parent, and commits the
// mutation count, completing a move.
func (tx *WriteTransaction) afterInsertMoved(s node.Structural) error {
	if err := tx.adaptPathsForMove(s.RecordKey()); err != nil {
		return err
	}
	if err := tx.afterInsert(s); err != nil {
		return err
	}
	return tx.markDirty()
}

// adaptPathsForMove walks the subtree rooted at key — already
// relinked under its new parent by the time this runs, via
// axis.NewDescendantAxis (§4.11: "used by ... path maintenance") in
// pre-order so a parent's PathNodeKey is rebound before any child
// reads it back through parentPathKey — re-resolving every Named
// node's path-summary reference (§4.10 MOVED): each node's old path
// reference is released and a new one resolved/created under its new
// parent's path node, found by walking the live document tree rather
// than any path-summary-side subtree mirroring.
func (tx *WriteTransaction) adaptPathsForMove(key node.Key) error {
	if tx.paths == nil {
		return nil
	}
	if err := tx.adaptPathForMove(key); err != nil {
		return err
	}
	a, err := axis.NewDescendantAxis(tx, key, false)
	if err != nil {
		return err
	}
	for a.Valid() {
		if err := tx.adaptPathForMove(a.Key()); err != nil {
			return err
		}
		if err := a.Next(); err != nil {
			return err
		}
	}
	return nil
}

// adaptPathForMove rebinds one node's own PathNodeKey (and, for an
// Element, its attributes'/namespaces' — axis.Reader's structural walk
// does not reach those on its own).
func (tx *WriteTransaction) adaptPathForMove(key node.Key) error {
	n, err := tx.getNode(key)
	if err != nil {
		return err
	}
	if named, ok := n.(node.Named); ok && named.PathNodeKey() != node.NullKey {
		ppk, err := tx.parentPathKey(n.ParentKey())
		if err != nil {
			return err
		}
		newPathKey, err := tx.paths.AdaptPathForChangedNode(named.PathNodeKey(), named.NameKey(), named.URIKey(), n.Kind(), ppk, pathsummary.Moved)
		if err != nil {
			return err
		}
		mod, err := tx.prepareNodeForModification(key)
		if err != nil {
			return err
		}
		mod.(node.Named).SetPathNodeKey(newPathKey)
	}
	if el, ok := n.(*node.ElementNode); ok {
		for _, ak := range el.AttributeKeys() {
			if err := tx.adaptPathForMove(ak); err != nil {
				return err
			}
		}
		for _, nk := range el.NamespaceKeys() {
			if err := tx.adaptPathForMove(nk); err != nil {
				return err
			}
		}
	}
	return nil
}
