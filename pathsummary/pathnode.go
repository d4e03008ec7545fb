// Package pathsummary maintains the path-summary tree (§3.6, §4.10): a
// structural tree of distinct root-to-node paths, kept coherent with
// every node rename/move so that every named, path-indexed node's
// path_node_key always resolves to a live path node.
package pathsummary

import "sirixgo/node"

// PathNode is the record stored in the page.FamilyPathSummary family
// (index 0): one distinct root-to-node path, with a reference count of
// how many live document nodes currently share it.
type PathNode struct {
	key       node.Key
	nameKey   int32
	uriKey    int32
	kind      node.Kind
	level     int
	parentKey node.Key

	firstChildKey   node.Key
	leftSiblingKey  node.Key
	rightSiblingKey node.Key

	referenceCount uint64
}

// NewPathNode constructs a fresh path node with a reference count of 1
// (the node that caused it to be created).
func NewPathNode(key node.Key, nameKey, uriKey int32, kind node.Kind, level int, parentKey node.Key) *PathNode {
	return &PathNode{
		key: key, nameKey: nameKey, uriKey: uriKey, kind: kind, level: level,
		parentKey: parentKey, referenceCount: 1,
	}
}

// RecordKey implements node.Record.
func (p *PathNode) RecordKey() node.Key { return p.key }

func (p *PathNode) NameKey() int32       { return p.nameKey }
func (p *PathNode) URIKey() int32        { return p.uriKey }
func (p *PathNode) Kind() node.Kind      { return p.kind }
func (p *PathNode) Level() int           { return p.level }
func (p *PathNode) ParentKey() node.Key  { return p.parentKey }

func (p *PathNode) FirstChildKey() node.Key     { return p.firstChildKey }
func (p *PathNode) SetFirstChildKey(k node.Key) { p.firstChildKey = k }
func (p *PathNode) LeftSiblingKey() node.Key     { return p.leftSiblingKey }
func (p *PathNode) SetLeftSiblingKey(k node.Key) { p.leftSiblingKey = k }
func (p *PathNode) RightSiblingKey() node.Key     { return p.rightSiblingKey }
func (p *PathNode) SetRightSiblingKey(k node.Key) { p.rightSiblingKey = k }

// ReferenceCount reports how many live document nodes currently share
// this path.
func (p *PathNode) ReferenceCount() uint64     { return p.referenceCount }
func (p *PathNode) IncrementReferenceCount()     { p.referenceCount++ }
func (p *PathNode) DecrementReferenceCount() bool {
	if p.referenceCount > 0 {
		p.referenceCount--
	}
	return p.referenceCount == 0
}

// Clone returns a deep copy suitable for staging a modifiable version
// (§4.1's prepare_for_modification discipline, mirrored here since
// path nodes are mutated through the same write-transaction machinery
// as document nodes).
func (p *PathNode) Clone() *PathNode {
	c := *p
	return &c
}
