package nodetx

import (
	"fmt"

	"sirixgo/axis"
	"sirixgo/node"
	"sirixgo/page"
)

// Remove deletes key's whole subtree: every non-structural child
// (attributes, namespaces), every structural descendant (post-order,
// deepest first), then key itself, closing the gap it leaves behind
// and merging adjacent Text siblings if the gap creates one (§4.9
// remove). The DocumentRoot may not be removed.
func (tx *WriteTransaction) Remove(key node.Key) error {
	rec, err := tx.getNode(key)
	if err != nil {
		return err
	}
	if rec.Kind() == node.KindDocumentRoot {
		return fmt.Errorf("%w: the document root cannot be removed", ErrUsage)
	}

	if _, err := tx.detach(key); err != nil {
		return err
	}
	if err := tx.removeSubtreeRecords(key); err != nil {
		return err
	}
	return tx.markDirty()
}

// removeSubtreeRecords tombstones key and every structural descendant,
// walked via axis.NewPostOrderAxis (§4.11: "used by remove") so a
// parent's record page entry is never tombstoned while a child still
// references it for traversal; for each Element visited it also
// tombstones that element's non-structural attribute/namespace
// children, which the structural axis does not itself reach.
func (tx *WriteTransaction) removeSubtreeRecords(key node.Key) error {
	a, err := axis.NewPostOrderAxis(tx, key, true)
	if err != nil {
		return err
	}
	for a.Valid() {
		k := a.Key()
		rec, err := tx.getNode(k)
		if err != nil {
			return err
		}
		if el, ok := rec.(*node.ElementNode); ok {
			if err := tx.removeNonStructuralChild(el.AttributeKeys()); err != nil {
				return err
			}
			if err := tx.removeNonStructuralChild(el.NamespaceKeys()); err != nil {
				return err
			}
		}
		if err := tx.releasePath(rec); err != nil {
			return err
		}
		if err := tx.unindexValue(rec); err != nil {
			return err
		}
		if err := tx.pageTx.RemoveEntry(k, page.FamilyRecord, 0); err != nil {
			return err
		}
		if err := a.Next(); err != nil {
			return err
		}
	}
	return nil
}

// removeNonStructuralChild tombstones every key in keys — an Element's
// attributes or namespaces, neither of which axis.Reader's structural
// walk visits on its own.
func (tx *WriteTransaction) removeNonStructuralChild(keys []node.Key) error {
	for _, k := range keys {
		n, err := tx.getNode(k)
		if err != nil {
			return err
		}
		if err := tx.releasePath(n); err != nil {
			return err
		}
		if err := tx.unindexValue(n); err != nil {
			return err
		}
		if err := tx.pageTx.RemoveEntry(k, page.FamilyRecord, 0); err != nil {
			return err
		}
	}
	return nil
}
