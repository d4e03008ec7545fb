// Package valueindex maintains the value index (§3.6, §4.10): an
// ordered key-structure from TextValue to the set of node keys
// (TextReferences) carrying that value, stored as a binary search tree
// of Entry records in the page.FamilyCAS family.
package valueindex

import "sirixgo/node"

// rootKey is the fixed key of the index's root pointer, the one record
// every lookup starts from (the BST's own root entry moves around as
// deletions happen, so a stable indirection is needed).
const rootKey node.Key = 1

// rootPointer is the sole record at rootKey: it names which Entry is
// currently the tree's root, or node.NullKey for an empty index.
type rootPointer struct {
	key          node.Key
	rootEntryKey node.Key
}

func (r *rootPointer) RecordKey() node.Key { return r.key }

// Entry is one distinct TextValue node of the value-index BST, with
// the set of node keys currently carrying that value.
type Entry struct {
	key      node.Key
	value    []byte
	refs     []node.Key
	leftKey  node.Key
	rightKey node.Key
}

func newEntry(key node.Key, value []byte, firstRef node.Key) *Entry {
	return &Entry{key: key, value: append([]byte(nil), value...), refs: []node.Key{firstRef}, leftKey: node.NullKey, rightKey: node.NullKey}
}

func (e *Entry) RecordKey() node.Key  { return e.key }
func (e *Entry) Value() []byte       { return e.value }
func (e *Entry) References() []node.Key {
	return append([]node.Key(nil), e.refs...)
}
func (e *Entry) LeftKey() node.Key  { return e.leftKey }
func (e *Entry) RightKey() node.Key { return e.rightKey }

func (e *Entry) addRef(key node.Key) {
	for _, r := range e.refs {
		if r == key {
			return
		}
	}
	e.refs = append(e.refs, key)
}

func (e *Entry) removeRef(key node.Key) {
	for i, r := range e.refs {
		if r == key {
			e.refs = append(e.refs[:i], e.refs[i+1:]...)
			return
		}
	}
}

// Clone returns a deep copy suitable for staging a modifiable version
// (§4.1 prepare_for_modification, mirrored here as in pathsummary).
func (e *Entry) Clone() *Entry {
	c := *e
	c.value = append([]byte(nil), e.value...)
	c.refs = append([]node.Key(nil), e.refs...)
	return &c
}
