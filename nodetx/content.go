package nodetx

import (
	"fmt"

	"sirixgo/node"
	"sirixgo/pathsummary"
)

// SetQName renames key's qualified name in place (§4.9 set_qname).
// Only Named node kinds (Element, Attribute, Namespace,
// ProcessingInstruction) carry a name.
func (tx *WriteTransaction) SetQName(key node.Key, nameKey, uriKey int32) error {
	rec, err := tx.prepareNodeForModification(key)
	if err != nil {
		return err
	}
	named, ok := rec.(node.Named)
	if !ok {
		return fmt.Errorf("%w: %s has no qualified name", ErrUsage, rec.Kind())
	}
	oldHash := rec.Hash()
	named.SetNameKey(nameKey)
	named.SetURIKey(uriKey)
	rec.SetHash(contentHash(rec))
	if tx.paths != nil && named.PathNodeKey() != node.NullKey {
		newPathKey, err := tx.paths.AdaptPathForChangedNode(named.PathNodeKey(), nameKey, uriKey, rec.Kind(), node.NullKey, pathsummary.SetName)
		if err != nil {
			return err
		}
		named.SetPathNodeKey(newPathKey)
	}
	if err := tx.afterContentChange(rec, oldHash); err != nil {
		return err
	}
	return tx.markDirty()
}

// SetValue overwrites key's raw value in place (§4.9 set_value). Only
// Valued node kinds (Text, Attribute, Comment, ProcessingInstruction)
// carry a value.
func (tx *WriteTransaction) SetValue(key node.Key, value []byte) error {
	rec, err := tx.prepareNodeForModification(key)
	if err != nil {
		return err
	}
	valued, ok := rec.(node.Valued)
	if !ok {
		return fmt.Errorf("%w: %s has no value", ErrUsage, rec.Kind())
	}
	oldHash := rec.Hash()
	oldValue := append([]byte(nil), valued.RawValue()...)
	valued.SetRawValue(value)
	rec.SetHash(contentHash(rec))
	if err := tx.reindexValue(rec, oldValue); err != nil {
		return err
	}
	if err := tx.afterContentChange(rec, oldHash); err != nil {
		return err
	}
	return tx.markDirty()
}
