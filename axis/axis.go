// Package axis implements §4.11's abstract node-key iterators: the
// supporting traversal primitives the core write transaction and
// path-summary maintenance walk the document tree with (ChildAxis,
// DescendantAxis, PostOrderAxis, LevelOrderAxis), plus FilterAxis and
// its predicates for composing a restricted view over any of them.
package axis

import "sirixgo/node"

// Reader is the narrow read capability every axis needs: resolving a
// node key to its node, whatever read-only or in-progress write view
// of the tree the caller holds.
type Reader interface {
	NodeAt(key node.Key) (node.Node, error)
}

// Axis is a finite, forward-only, deterministic sequence of node keys
// (§4.11). Valid reports whether Key is safe to read; Next advances
// to the following position. The idiom is:
//
//	for a.Valid() {
//	    k := a.Key()
//	    ...
//	    if err := a.Next(); err != nil { return err }
//	}
type Axis interface {
	Valid() bool
	Key() node.Key
	Next() error
}

// sliceAxis is the common implementation backing every concrete axis
// below: each builds its full key order up front (§4.11 only demands
// a finite, deterministic sequence, not that it be computed lazily),
// then walks it.
type sliceAxis struct {
	keys []node.Key
	pos  int
}

func newSliceAxis(keys []node.Key) *sliceAxis {
	return &sliceAxis{keys: keys}
}

func (a *sliceAxis) Valid() bool { return a.pos < len(a.keys) }

func (a *sliceAxis) Key() node.Key {
	if !a.Valid() {
		return node.NullKey
	}
	return a.keys[a.pos]
}

func (a *sliceAxis) Next() error {
	if a.Valid() {
		a.pos++
	}
	return nil
}

func structuralChildren(r Reader, key node.Key) ([]node.Key, error) {
	n, err := r.NodeAt(key)
	if err != nil {
		return nil, err
	}
	s, ok := n.(node.Structural)
	if !ok {
		return nil, nil
	}
	var children []node.Key
	childKey := s.FirstChildKey()
	for childKey != node.NullKey {
		children = append(children, childKey)
		child, err := r.NodeAt(childKey)
		if err != nil {
			return nil, err
		}
		cs, ok := child.(node.Structural)
		if !ok {
			break
		}
		childKey = cs.RightSiblingKey()
	}
	return children, nil
}
