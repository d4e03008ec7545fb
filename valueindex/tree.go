package valueindex

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/emirpasic/gods/v2/trees/redblacktree"

	"sirixgo/node"
	"sirixgo/page"
	"sirixgo/pagetx"
)

// ErrNotFound is returned when a value has no entry in the index.
var ErrNotFound = errors.New("valueindex: not found")

// pendingKind distinguishes a buffered bulk-mode change.
type pendingKind int

const (
	pendingInsert pendingKind = iota
	pendingRemove
)

type pendingChange struct {
	kind    pendingKind
	nodeKey node.Key
}

// Tree wraps a pagetx.WriteTransaction to maintain the value index's
// on-disk binary search tree in the page.FamilyCAS family. In bulk
// mode it defers every change into an in-memory
// github.com/emirpasic/gods/v2 red-black tree keyed by value, applying
// them to the on-disk structure only once, in value order, at EndBulk
// — §4.10's "bulk inserts do not maintain the value index
// incrementally; an index rebuild is required at bulk end".
type Tree struct {
	pageTx *pagetx.WriteTransaction
	bulk   bool
	dirty  *redblacktree.Tree[string, []pendingChange]
}

// Open wraps pageTx and ensures the index's root pointer exists.
func Open(pageTx *pagetx.WriteTransaction) (*Tree, error) {
	t := &Tree{pageTx: pageTx}
	if _, err := t.getRootPointer(); err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if _, err := t.pageTx.CreateEntry(page.FamilyCAS, 0, func(key node.Key) node.Record {
			return &rootPointer{key: key, rootEntryKey: node.NullKey}
		}); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Tree) getRootPointer() (*rootPointer, error) {
	rec, err := t.pageTx.GetRecord(rootKey, page.FamilyCAS, 0)
	if err != nil {
		if errors.Is(err, pagetx.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec.(*rootPointer), nil
}

func (t *Tree) prepareRootPointer() (*rootPointer, error) {
	rec, err := t.pageTx.PrepareEntryForModification(rootKey, page.FamilyCAS, 0)
	if err != nil {
		return nil, err
	}
	return rec.(*rootPointer), nil
}

func (t *Tree) getEntry(key node.Key) (*Entry, error) {
	rec, err := t.pageTx.GetRecord(key, page.FamilyCAS, 0)
	if err != nil {
		if errors.Is(err, pagetx.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	e, ok := rec.(*Entry)
	if !ok {
		return nil, fmt.Errorf("valueindex: key %d is not an entry", key)
	}
	return e, nil
}

func (t *Tree) prepareEntry(key node.Key) (*Entry, error) {
	rec, err := t.pageTx.PrepareEntryForModification(key, page.FamilyCAS, 0)
	if err != nil {
		if errors.Is(err, pagetx.ErrRecordMissing) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec.(*Entry), nil
}

// BeginBulk switches the tree into bulk mode: further Insert/Remove
// calls are buffered in memory rather than applied to the on-disk BST.
func (t *Tree) BeginBulk() {
	t.bulk = true
	t.dirty = redblacktree.New[string, []pendingChange]()
}

// EndBulk applies every buffered change to the on-disk BST, in value
// order, and leaves the tree in normal (incrementally-maintained) mode.
func (t *Tree) EndBulk() error {
	if !t.bulk {
		return nil
	}
	for _, value := range t.dirty.Keys() {
		changes, _ := t.dirty.Get(value)
		for _, c := range changes {
			var err error
			switch c.kind {
			case pendingInsert:
				err = t.insertNow([]byte(value), c.nodeKey)
			case pendingRemove:
				err = t.removeNow([]byte(value), c.nodeKey)
			}
			if err != nil {
				return err
			}
		}
	}
	t.bulk = false
	t.dirty = nil
	return nil
}

// Insert records that nodeKey now carries value (§4.10: look up the
// existing TextValue entry, add the node key, or create both).
func (t *Tree) Insert(value []byte, nodeKey node.Key) error {
	if t.bulk {
		t.buffer(value, pendingChange{kind: pendingInsert, nodeKey: nodeKey})
		return nil
	}
	return t.insertNow(value, nodeKey)
}

// Remove records that nodeKey no longer carries value, pruning the
// entry if it becomes empty.
func (t *Tree) Remove(value []byte, nodeKey node.Key) error {
	if t.bulk {
		t.buffer(value, pendingChange{kind: pendingRemove, nodeKey: nodeKey})
		return nil
	}
	return t.removeNow(value, nodeKey)
}

func (t *Tree) buffer(value []byte, c pendingChange) {
	key := string(value)
	existing, _ := t.dirty.Get(key)
	t.dirty.Put(key, append(existing, c))
}

// Lookup returns every node key currently carrying value.
func (t *Tree) Lookup(value []byte) ([]node.Key, error) {
	root, err := t.getRootPointer()
	if err != nil {
		return nil, err
	}
	cur := root.rootEntryKey
	for cur != node.NullKey {
		e, err := t.getEntry(cur)
		if err != nil {
			return nil, err
		}
		switch c := bytes.Compare(value, e.value); {
		case c == 0:
			return e.References(), nil
		case c < 0:
			cur = e.leftKey
		default:
			cur = e.rightKey
		}
	}
	return nil, nil
}

func (t *Tree) insertNow(value []byte, nodeKey node.Key) error {
	root, err := t.getRootPointer()
	if err != nil {
		return err
	}
	if root.rootEntryKey == node.NullKey {
		key, err := t.pageTx.CreateEntry(page.FamilyCAS, 0, func(key node.Key) node.Record {
			return newEntry(key, value, nodeKey)
		})
		if err != nil {
			return err
		}
		rootMod, err := t.prepareRootPointer()
		if err != nil {
			return err
		}
		rootMod.rootEntryKey = key
		return nil
	}

	cur := root.rootEntryKey
	for {
		e, err := t.getEntry(cur)
		if err != nil {
			return err
		}
		switch c := bytes.Compare(value, e.value); {
		case c == 0:
			mod, err := t.prepareEntry(cur)
			if err != nil {
				return err
			}
			mod.addRef(nodeKey)
			return nil
		case c < 0:
			if e.leftKey == node.NullKey {
				return t.attachChild(cur, value, nodeKey, true)
			}
			cur = e.leftKey
		default:
			if e.rightKey == node.NullKey {
				return t.attachChild(cur, value, nodeKey, false)
			}
			cur = e.rightKey
		}
	}
}

func (t *Tree) attachChild(parentKey node.Key, value []byte, nodeKey node.Key, left bool) error {
	key, err := t.pageTx.CreateEntry(page.FamilyCAS, 0, func(key node.Key) node.Record {
		return newEntry(key, value, nodeKey)
	})
	if err != nil {
		return err
	}
	parent, err := t.prepareEntry(parentKey)
	if err != nil {
		return err
	}
	if left {
		parent.leftKey = key
	} else {
		parent.rightKey = key
	}
	return nil
}

// removeNow deletes nodeKey from value's entry, pruning the entry (and
// rewiring the BST around it via the standard 0/1/2-child deletion
// cases) once its reference set is empty.
func (t *Tree) removeNow(value []byte, nodeKey node.Key) error {
	root, err := t.getRootPointer()
	if err != nil {
		return err
	}
	var parentKey node.Key = node.NullKey
	leftChild := false
	cur := root.rootEntryKey
	for cur != node.NullKey {
		e, err := t.getEntry(cur)
		if err != nil {
			return err
		}
		c := bytes.Compare(value, e.value)
		if c == 0 {
			break
		}
		parentKey = cur
		if c < 0 {
			cur = e.leftKey
			leftChild = true
		} else {
			cur = e.rightKey
			leftChild = false
		}
	}
	if cur == node.NullKey {
		return nil
	}

	mod, err := t.prepareEntry(cur)
	if err != nil {
		return err
	}
	mod.removeRef(nodeKey)
	if len(mod.refs) > 0 {
		return nil
	}
	return t.deleteEntry(cur, parentKey, leftChild)
}

// deleteEntry removes the now-empty entry at key from the BST,
// promoting a child (or the in-order successor, for the two-child
// case) into its place.
func (t *Tree) deleteEntry(key, parentKey node.Key, leftChild bool) error {
	e, err := t.getEntry(key)
	if err != nil {
		return err
	}

	var replacement node.Key
	switch {
	case e.leftKey == node.NullKey && e.rightKey == node.NullKey:
		replacement = node.NullKey
	case e.leftKey == node.NullKey:
		replacement = e.rightKey
	case e.rightKey == node.NullKey:
		replacement = e.leftKey
	default:
		succParentKey := key
		succKey := e.rightKey
		succLeftChild := false
		for {
			succ, err := t.getEntry(succKey)
			if err != nil {
				return err
			}
			if succ.leftKey == node.NullKey {
				break
			}
			succParentKey = succKey
			succKey = succ.leftKey
			succLeftChild = true
		}
		succ, err := t.getEntry(succKey)
		if err != nil {
			return err
		}
		succMod, err := t.prepareEntry(key)
		if err != nil {
			return err
		}
		succMod.value = append([]byte(nil), succ.value...)
		succMod.refs = append([]node.Key(nil), succ.refs...)
		return t.deleteEntry(succKey, succParentKey, succLeftChild)
	}

	if parentKey == node.NullKey {
		rootMod, err := t.prepareRootPointer()
		if err != nil {
			return err
		}
		rootMod.rootEntryKey = replacement
	} else {
		parent, err := t.prepareEntry(parentKey)
		if err != nil {
			return err
		}
		if leftChild {
			parent.leftKey = replacement
		} else {
			parent.rightKey = replacement
		}
	}
	return t.pageTx.RemoveEntry(key, page.FamilyCAS, 0)
}
