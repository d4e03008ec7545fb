package nodetx

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"sirixgo/node"
)

// HashKind selects the node-content-hash maintenance strategy (§4.9).
type HashKind uint8

const (
	HashNone HashKind = iota
	HashRolling
	HashPostOrder
)

// hashMultiplier is the rolling-hash constant P from §4.9: a node's
// stored hash folds in each child's hash scaled by P per level, so a
// single delta at the mutation point propagates up as delta, delta*P,
// delta*P^2, ... one multiplication per ancestor hop.
const hashMultiplier uint64 = 77081

// contentHash hashes exactly the fields that make up a node's own
// identity — kind, name/uri, raw value — deliberately excluding
// structural link fields (parent/sibling/child keys, counts), which
// are layout, not content.
func contentHash(n node.Node) uint64 {
	var buf []byte
	buf = append(buf, byte(n.Kind()))
	if nm, ok := n.(node.Named); ok {
		var tmp [8]byte
		binary.BigEndian.PutUint32(tmp[0:4], uint32(nm.NameKey()))
		binary.BigEndian.PutUint32(tmp[4:8], uint32(nm.URIKey()))
		buf = append(buf, tmp[:]...)
	}
	if v, ok := n.(node.Valued); ok {
		buf = append(buf, v.RawValue()...)
	}
	return xxhash.Sum64(buf)
}

// childrenHashSum walks n's structural children (FirstChildKey,
// then RightSiblingKey chain), summing each child's stored hash
// scaled by hashMultiplier, plus — for an Element — its attribute and
// namespace nodes' hashes the same way: the full
// hash(n) = contentHash(n) + P*H(attrs) + P*H(namespaces) + P*H(children)
// from §4.9.
func (tx *WriteTransaction) childrenHashSum(n node.Structural) (uint64, error) {
	var sum uint64
	if e, ok := n.(*node.ElementNode); ok {
		for _, k := range e.AttributeKeys() {
			attr, err := tx.getNode(k)
			if err != nil {
				return 0, err
			}
			sum += attr.Hash() * hashMultiplier
		}
		for _, k := range e.NamespaceKeys() {
			ns, err := tx.getNode(k)
			if err != nil {
				return 0, err
			}
			sum += ns.Hash() * hashMultiplier
		}
	}
	childKey := n.FirstChildKey()
	for childKey != node.NullKey {
		child, err := tx.getNode(childKey)
		if err != nil {
			return 0, err
		}
		sum += child.Hash() * hashMultiplier
		cs, ok := child.(node.Structural)
		if !ok {
			break
		}
		childKey = cs.RightSiblingKey()
	}
	return sum, nil
}

// initNodeHash sets a freshly created node's own hash before it is
// linked into the tree (no children yet, so hash == contentHash).
func initNodeHash(n node.Node) {
	n.SetHash(contentHash(n))
}

// afterInsert updates ancestor hashes after n (with hash already set
// to contentHash(n)) has been linked in as a child of its parent.
func (tx *WriteTransaction) afterInsert(n node.Node) error {
	switch tx.hashKind {
	case HashRolling:
		return tx.propagateHashDelta(n.ParentKey(), n.Hash()*hashMultiplier)
	case HashPostOrder:
		return tx.recomputeAncestorsPostOrder(n.ParentKey())
	default:
		return nil
	}
}

// afterRemove updates ancestor hashes after n (still carrying its old
// hash) has been unlinked from parentKey.
func (tx *WriteTransaction) afterRemove(n node.Node, parentKey node.Key) error {
	switch tx.hashKind {
	case HashRolling:
		return tx.propagateHashDelta(parentKey, -(n.Hash() * hashMultiplier))
	case HashPostOrder:
		return tx.recomputeAncestorsPostOrder(parentKey)
	default:
		return nil
	}
}

// afterContentChange updates ancestor hashes after n's own content
// hash changed from oldHash to its current (already-set) hash — used
// by set_qname/set_value and attribute-value overwrite.
func (tx *WriteTransaction) afterContentChange(n node.Node, oldHash uint64) error {
	switch tx.hashKind {
	case HashRolling:
		delta := n.Hash()*hashMultiplier - oldHash*hashMultiplier
		return tx.propagateHashDelta(n.ParentKey(), delta)
	case HashPostOrder:
		return tx.recomputeAncestorsPostOrder(n.ParentKey())
	default:
		return nil
	}
}

// propagateHashDelta applies delta to every ancestor's stored hash
// starting at startKey, multiplying delta by the multiplier once more at
// each additional hop (§4.9's "ancestor.hash = ancestor.hash − old*P + new*P").
func (tx *WriteTransaction) propagateHashDelta(startKey node.Key, delta uint64) error {
	cur := startKey
	for cur != node.NullKey {
		n, err := tx.prepareNodeForModification(cur)
		if err != nil {
			return err
		}
		n.SetHash(n.Hash() + delta)
		delta *= hashMultiplier
		cur = n.ParentKey()
	}
	return nil
}

// recomputeAncestorsPostOrder recomputes every ancestor's hash from
// scratch (contentHash plus the current sum over its children),
// starting at startKey and walking to the root. Children already
// carry up-to-date hashes by the time their parent is reached since
// the walk proceeds strictly upward.
func (tx *WriteTransaction) recomputeAncestorsPostOrder(startKey node.Key) error {
	cur := startKey
	for cur != node.NullKey {
		n, err := tx.prepareNodeForModification(cur)
		if err != nil {
			return err
		}
		s, ok := n.(node.Structural)
		if !ok {
			return nil
		}
		sum, err := tx.childrenHashSum(s)
		if err != nil {
			return err
		}
		n.SetHash(contentHash(n) + sum)
		cur = n.ParentKey()
	}
	return nil
}
