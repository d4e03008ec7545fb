package nodetx

import (
	"bytes"
	"fmt"

	"sirixgo/node"
)

// forbiddenCommentSubstr and forbiddenPISubstr are the XML well-
// formedness constraints §4.9 carries over onto insert_comment_as_* and
// insert_pi_as_*: a comment body must never contain "--", and a
// processing instruction's content must never contain "?>-" (which
// would let its serialized form smuggle a premature close).
const (
	forbiddenCommentSubstr = "--"
	forbiddenPISubstr      = "?>-"
)

// bumpDescendants adds delta to the descendant count of fromKey and
// every ancestor above it.
func (tx *WriteTransaction) bumpDescendants(fromKey node.Key, delta uint64) error {
	cur := fromKey
	for cur != node.NullKey {
		n, err := tx.prepareNodeForModification(cur)
		if err != nil {
			return err
		}
		s, ok := n.(node.Structural)
		if !ok {
			return nil
		}
		s.IncrementDescendantCount(delta)
		cur = n.ParentKey()
	}
	return nil
}

// attachFirstChild links newKey in as parentKey's new first child, the
// previous first child (if any) sliding right.
func (tx *WriteTransaction) attachFirstChild(parentKey node.Key, newKey node.Key, newNode node.Structural) error {
	parent, err := tx.prepareNodeForModification(parentKey)
	if err != nil {
		return err
	}
	ps, ok := parent.(node.Structural)
	if !ok {
		return fmt.Errorf("%w: %s cannot hold children", ErrUsage, parent.Kind())
	}
	oldFirst := ps.FirstChildKey()
	newNode.SetParentKey(parentKey)
	newNode.SetLeftSiblingKey(node.NullKey)
	newNode.SetRightSiblingKey(oldFirst)
	if oldFirst != node.NullKey {
		old, err := tx.prepareNodeForModification(oldFirst)
		if err != nil {
			return err
		}
		old.(node.Structural).SetLeftSiblingKey(newKey)
	}
	ps.SetFirstChildKey(newKey)
	ps.IncrementChildCount()
	return tx.bumpDescendants(parentKey, 1+newNode.DescendantCount())
}

// attachRightSibling links newKey in immediately to the right of
// anchorKey.
func (tx *WriteTransaction) attachRightSibling(anchorKey node.Key, newKey node.Key, newNode node.Structural) error {
	anchorRec, err := tx.prepareNodeForModification(anchorKey)
	if err != nil {
		return err
	}
	anchor, ok := anchorRec.(node.Structural)
	if !ok {
		return fmt.Errorf("%w: %s has no siblings", ErrUsage, anchorRec.Kind())
	}
	parentKey := anchorRec.ParentKey()
	rightKey := anchor.RightSiblingKey()

	newNode.SetParentKey(parentKey)
	newNode.SetLeftSiblingKey(anchorKey)
	newNode.SetRightSiblingKey(rightKey)
	anchor.SetRightSiblingKey(newKey)
	if rightKey != node.NullKey {
		right, err := tx.prepareNodeForModification(rightKey)
		if err != nil {
			return err
		}
		right.(node.Structural).SetLeftSiblingKey(newKey)
	}
	if parentKey == node.NullKey {
		return nil
	}
	parent, err := tx.prepareNodeForModification(parentKey)
	if err != nil {
		return err
	}
	parent.(node.Structural).IncrementChildCount()
	return tx.bumpDescendants(parentKey, 1+newNode.DescendantCount())
}

// attachLeftSibling links newKey in immediately to the left of
// anchorKey, becoming the new first child if anchorKey was one.
func (tx *WriteTransaction) attachLeftSibling(anchorKey node.Key, newKey node.Key, newNode node.Structural) error {
	anchorRec, err := tx.prepareNodeForModification(anchorKey)
	if err != nil {
		return err
	}
	anchor, ok := anchorRec.(node.Structural)
	if !ok {
		return fmt.Errorf("%w: %s has no siblings", ErrUsage, anchorRec.Kind())
	}
	parentKey := anchorRec.ParentKey()
	leftKey := anchor.LeftSiblingKey()

	newNode.SetParentKey(parentKey)
	newNode.SetRightSiblingKey(anchorKey)
	newNode.SetLeftSiblingKey(leftKey)
	anchor.SetLeftSiblingKey(newKey)
	if leftKey != node.NullKey {
		left, err := tx.prepareNodeForModification(leftKey)
		if err != nil {
			return err
		}
		left.(node.Structural).SetRightSiblingKey(newKey)
	} else if parentKey != node.NullKey {
		parent, err := tx.prepareNodeForModification(parentKey)
		if err != nil {
			return err
		}
		parent.(node.Structural).SetFirstChildKey(newKey)
	}
	if parentKey == node.NullKey {
		return nil
	}
	parent, err := tx.prepareNodeForModification(parentKey)
	if err != nil {
		return err
	}
	parent.(node.Structural).IncrementChildCount()
	return tx.bumpDescendants(parentKey, 1+newNode.DescendantCount())
}

// coalesceLeft appends value into neighborKey's existing text if
// neighborKey names a TextNode, returning its key. The text-coalescing
// invariant (§3.1, §4.9) never lets two Text siblings coexist.
func (tx *WriteTransaction) coalesceLeft(neighborKey node.Key, value []byte) (node.Key, bool, error) {
	if neighborKey == node.NullKey {
		return 0, false, nil
	}
	existing, err := tx.getNode(neighborKey)
	if err != nil {
		return 0, false, err
	}
	if existing.Kind() != node.KindText {
		return 0, false, nil
	}
	n, err := tx.prepareNodeForModification(neighborKey)
	if err != nil {
		return 0, false, err
	}
	oldHash := n.Hash()
	v := n.(node.Valued)
	oldValue := append([]byte(nil), v.RawValue()...)
	v.SetRawValue(append(v.RawValue(), value...))
	n.SetHash(contentHash(n))
	if err := tx.reindexValue(n, oldValue); err != nil {
		return 0, false, err
	}
	if err := tx.afterContentChange(n, oldHash); err != nil {
		return 0, false, err
	}
	return neighborKey, true, nil
}

// coalesceRight prepends value onto neighborKey's existing text if
// neighborKey names a TextNode, returning its key.
func (tx *WriteTransaction) coalesceRight(neighborKey node.Key, value []byte) (node.Key, bool, error) {
	if neighborKey == node.NullKey {
		return 0, false, nil
	}
	existing, err := tx.getNode(neighborKey)
	if err != nil {
		return 0, false, err
	}
	if existing.Kind() != node.KindText {
		return 0, false, nil
	}
	n, err := tx.prepareNodeForModification(neighborKey)
	if err != nil {
		return 0, false, err
	}
	oldHash := n.Hash()
	v := n.(node.Valued)
	oldValue := append([]byte(nil), v.RawValue()...)
	merged := append(append([]byte(nil), value...), v.RawValue()...)
	v.SetRawValue(merged)
	n.SetHash(contentHash(n))
	if err := tx.reindexValue(n, oldValue); err != nil {
		return 0, false, err
	}
	if err := tx.afterContentChange(n, oldHash); err != nil {
		return 0, false, err
	}
	return neighborKey, true, nil
}

// InsertElementAsFirstChild inserts a fresh Element as parentKey's new
// first child.
func (tx *WriteTransaction) InsertElementAsFirstChild(parentKey node.Key, nameKey, uriKey int32) (node.Key, error) {
	var created *node.ElementNode
	key, err := tx.createNode(func(k node.Key) node.Record {
		e := node.NewElementNode(k, parentKey, nameKey, uriKey)
		initNodeHash(e)
		created = e
		return e
	})
	if err != nil {
		return 0, err
	}
	if err := tx.resolvePath(created, parentKey); err != nil {
		return 0, err
	}
	if err := tx.attachFirstChild(parentKey, key, created); err != nil {
		return 0, err
	}
	if err := tx.afterInsert(created); err != nil {
		return 0, err
	}
	return key, tx.markDirty()
}

// InsertElementAsRightSibling inserts a fresh Element immediately to
// the right of anchorKey.
func (tx *WriteTransaction) InsertElementAsRightSibling(anchorKey node.Key, nameKey, uriKey int32) (node.Key, error) {
	anchor, err := tx.getNode(anchorKey)
	if err != nil {
		return 0, err
	}
	var created *node.ElementNode
	key, err := tx.createNode(func(k node.Key) node.Record {
		e := node.NewElementNode(k, anchor.ParentKey(), nameKey, uriKey)
		initNodeHash(e)
		created = e
		return e
	})
	if err != nil {
		return 0, err
	}
	if err := tx.resolvePath(created, anchor.ParentKey()); err != nil {
		return 0, err
	}
	if err := tx.attachRightSibling(anchorKey, key, created); err != nil {
		return 0, err
	}
	if err := tx.afterInsert(created); err != nil {
		return 0, err
	}
	return key, tx.markDirty()
}

// InsertElementAsLeftSibling inserts a fresh Element immediately to the
// left of anchorKey.
func (tx *WriteTransaction) InsertElementAsLeftSibling(anchorKey node.Key, nameKey, uriKey int32) (node.Key, error) {
	anchor, err := tx.getNode(anchorKey)
	if err != nil {
		return 0, err
	}
	var created *node.ElementNode
	key, err := tx.createNode(func(k node.Key) node.Record {
		e := node.NewElementNode(k, anchor.ParentKey(), nameKey, uriKey)
		initNodeHash(e)
		created = e
		return e
	})
	if err != nil {
		return 0, err
	}
	if err := tx.resolvePath(created, anchor.ParentKey()); err != nil {
		return 0, err
	}
	if err := tx.attachLeftSibling(anchorKey, key, created); err != nil {
		return 0, err
	}
	if err := tx.afterInsert(created); err != nil {
		return 0, err
	}
	return key, tx.markDirty()
}

// InsertTextAsFirstChild inserts value as parentKey's new first child,
// merging into an already-text first child instead of creating a
// second Text sibling.
func (tx *WriteTransaction) InsertTextAsFirstChild(parentKey node.Key, value []byte) (node.Key, error) {
	if len(value) == 0 {
		return 0, ErrEmptyValue
	}
	parent, err := tx.getNode(parentKey)
	if err != nil {
		return 0, err
	}
	ps, ok := parent.(node.Structural)
	if !ok {
		return 0, fmt.Errorf("%w: %s cannot hold children", ErrUsage, parent.Kind())
	}
	if key, ok, err := tx.coalesceRight(ps.FirstChildKey(), value); ok || err != nil {
		if err != nil {
			return 0, err
		}
		return key, tx.markDirty()
	}
	return tx.createAndAttachText(parentKey, value, tx.attachFirstChild)
}

// InsertTextAsRightSibling inserts value immediately to the right of
// anchorKey, merging with an adjacent Text node on either side.
func (tx *WriteTransaction) InsertTextAsRightSibling(anchorKey node.Key, value []byte) (node.Key, error) {
	if len(value) == 0 {
		return 0, ErrEmptyValue
	}
	anchor, err := tx.getNode(anchorKey)
	if err != nil {
		return 0, err
	}
	as, ok := anchor.(node.Structural)
	if !ok {
		return 0, fmt.Errorf("%w: %s has no siblings", ErrUsage, anchor.Kind())
	}
	if key, ok, err := tx.coalesceRight(as.RightSiblingKey(), value); ok || err != nil {
		if err != nil {
			return 0, err
		}
		return key, tx.markDirty()
	}
	if key, ok, err := tx.coalesceLeft(anchorKey, value); ok || err != nil {
		if err != nil {
			return 0, err
		}
		return key, tx.markDirty()
	}
	return tx.createAndAttachTextSibling(anchorKey, value, tx.attachRightSibling)
}

// InsertTextAsLeftSibling inserts value immediately to the left of
// anchorKey, merging with an adjacent Text node on either side.
func (tx *WriteTransaction) InsertTextAsLeftSibling(anchorKey node.Key, value []byte) (node.Key, error) {
	if len(value) == 0 {
		return 0, ErrEmptyValue
	}
	anchor, err := tx.getNode(anchorKey)
	if err != nil {
		return 0, err
	}
	as, ok := anchor.(node.Structural)
	if !ok {
		return 0, fmt.Errorf("%w: %s has no siblings", ErrUsage, anchor.Kind())
	}
	if key, ok, err := tx.coalesceLeft(as.LeftSiblingKey(), value); ok || err != nil {
		if err != nil {
			return 0, err
		}
		return key, tx.markDirty()
	}
	if key, ok, err := tx.coalesceRight(anchorKey, value); ok || err != nil {
		if err != nil {
			return 0, err
		}
		return key, tx.markDirty()
	}
	return tx.createAndAttachTextSibling(anchorKey, value, tx.attachLeftSibling)
}

func (tx *WriteTransaction) createAndAttachText(parentKey node.Key, value []byte, attach func(node.Key, node.Key, node.Structural) error) (node.Key, error) {
	var created *node.TextNode
	key, err := tx.createNode(func(k node.Key) node.Record {
		t := node.NewTextNode(k, parentKey, value)
		initNodeHash(t)
		created = t
		return t
	})
	if err != nil {
		return 0, err
	}
	if err := tx.indexValue(created); err != nil {
		return 0, err
	}
	if err := attach(parentKey, key, created); err != nil {
		return 0, err
	}
	if err := tx.afterInsert(created); err != nil {
		return 0, err
	}
	return key, tx.markDirty()
}

func (tx *WriteTransaction) createAndAttachTextSibling(anchorKey node.Key, value []byte, attach func(node.Key, node.Key, node.Structural) error) (node.Key, error) {
	anchor, err := tx.getNode(anchorKey)
	if err != nil {
		return 0, err
	}
	var created *node.TextNode
	key, err := tx.createNode(func(k node.Key) node.Record {
		t := node.NewTextNode(k, anchor.ParentKey(), value)
		initNodeHash(t)
		created = t
		return t
	})
	if err != nil {
		return 0, err
	}
	if err := tx.indexValue(created); err != nil {
		return 0, err
	}
	if err := attach(anchorKey, key, created); err != nil {
		return 0, err
	}
	if err := tx.afterInsert(created); err != nil {
		return 0, err
	}
	return key, tx.markDirty()
}

// InsertCommentAsFirstChild inserts a Comment as parentKey's new first
// child. value must not contain "--" (XML well-formedness).
func (tx *WriteTransaction) InsertCommentAsFirstChild(parentKey node.Key, value []byte) (node.Key, error) {
	if bytes.Contains(value, []byte(forbiddenCommentSubstr)) {
		return 0, ErrInvalidContent
	}
	var created *node.CommentNode
	key, err := tx.createNode(func(k node.Key) node.Record {
		c := node.NewCommentNode(k, parentKey, value)
		initNodeHash(c)
		created = c
		return c
	})
	if err != nil {
		return 0, err
	}
	if err := tx.indexValue(created); err != nil {
		return 0, err
	}
	if err := tx.attachFirstChild(parentKey, key, created); err != nil {
		return 0, err
	}
	if err := tx.afterInsert(created); err != nil {
		return 0, err
	}
	return key, tx.markDirty()
}

// InsertCommentAsRightSibling inserts a Comment immediately to the
// right of anchorKey.
func (tx *WriteTransaction) InsertCommentAsRightSibling(anchorKey node.Key, value []byte) (node.Key, error) {
	if bytes.Contains(value, []byte(forbiddenCommentSubstr)) {
		return 0, ErrInvalidContent
	}
	anchor, err := tx.getNode(anchorKey)
	if err != nil {
		return 0, err
	}
	var created *node.CommentNode
	key, err := tx.createNode(func(k node.Key) node.Record {
		c := node.NewCommentNode(k, anchor.ParentKey(), value)
		initNodeHash(c)
		created = c
		return c
	})
	if err != nil {
		return 0, err
	}
	if err := tx.indexValue(created); err != nil {
		return 0, err
	}
	if err := tx.attachRightSibling(anchorKey, key, created); err != nil {
		return 0, err
	}
	if err := tx.afterInsert(created); err != nil {
		return 0, err
	}
	return key, tx.markDirty()
}

// InsertCommentAsLeftSibling inserts a Comment immediately to the left
// of anchorKey.
func (tx *WriteTransaction) InsertCommentAsLeftSibling(anchorKey node.Key, value []byte) (node.Key, error) {
	if bytes.Contains(value, []byte(forbiddenCommentSubstr)) {
		return 0, ErrInvalidContent
	}
	anchor, err := tx.getNode(anchorKey)
	if err != nil {
		return 0, err
	}
	var created *node.CommentNode
	key, err := tx.createNode(func(k node.Key) node.Record {
		c := node.NewCommentNode(k, anchor.ParentKey(), value)
		initNodeHash(c)
		created = c
		return c
	})
	if err != nil {
		return 0, err
	}
	if err := tx.indexValue(created); err != nil {
		return 0, err
	}
	if err := tx.attachLeftSibling(anchorKey, key, created); err != nil {
		return 0, err
	}
	if err := tx.afterInsert(created); err != nil {
		return 0, err
	}
	return key, tx.markDirty()
}

// InsertPIAsFirstChild inserts a ProcessingInstruction as parentKey's
// new first child. content must not contain "?>-".
func (tx *WriteTransaction) InsertPIAsFirstChild(parentKey node.Key, targetNameKey int32, content []byte) (node.Key, error) {
	if bytes.Contains(content, []byte(forbiddenPISubstr)) {
		return 0, ErrInvalidContent
	}
	var created *node.ProcessingInstructionNode
	key, err := tx.createNode(func(k node.Key) node.Record {
		p := node.NewProcessingInstructionNode(k, parentKey, targetNameKey, content)
		initNodeHash(p)
		created = p
		return p
	})
	if err != nil {
		return 0, err
	}
	if err := tx.resolvePath(created, parentKey); err != nil {
		return 0, err
	}
	if err := tx.indexValue(created); err != nil {
		return 0, err
	}
	if err := tx.attachFirstChild(parentKey, key, created); err != nil {
		return 0, err
	}
	if err := tx.afterInsert(created); err != nil {
		return 0, err
	}
	return key, tx.markDirty()
}

// InsertPIAsRightSibling inserts a ProcessingInstruction immediately to
// the right of anchorKey.
func (tx *WriteTransaction) InsertPIAsRightSibling(anchorKey node.Key, targetNameKey int32, content []byte) (node.Key, error) {
	if bytes.Contains(content, []byte(forbiddenPISubstr)) {
		return 0, ErrInvalidContent
	}
	anchor, err := tx.getNode(anchorKey)
	if err != nil {
		return 0, err
	}
	var created *node.ProcessingInstructionNode
	key, err := tx.createNode(func(k node.Key) node.Record {
		p := node.NewProcessingInstructionNode(k, anchor.ParentKey(), targetNameKey, content)
		initNodeHash(p)
		created = p
		return p
	})
	if err != nil {
		return 0, err
	}
	if err := tx.resolvePath(created, anchor.ParentKey()); err != nil {
		return 0, err
	}
	if err := tx.indexValue(created); err != nil {
		return 0, err
	}
	if err := tx.attachRightSibling(anchorKey, key, created); err != nil {
		return 0, err
	}
	if err := tx.afterInsert(created); err != nil {
		return 0, err
	}
	return key, tx.markDirty()
}

// InsertPIAsLeftSibling inserts a ProcessingInstruction immediately to
// the left of anchorKey.
func (tx *WriteTransaction) InsertPIAsLeftSibling(anchorKey node.Key, targetNameKey int32, content []byte) (node.Key, error) {
	if bytes.Contains(content, []byte(forbiddenPISubstr)) {
		return 0, ErrInvalidContent
	}
	anchor, err := tx.getNode(anchorKey)
	if err != nil {
		return 0, err
	}
	var created *node.ProcessingInstructionNode
	key, err := tx.createNode(func(k node.Key) node.Record {
		p := node.NewProcessingInstructionNode(k, anchor.ParentKey(), targetNameKey, content)
		initNodeHash(p)
		created = p
		return p
	})
	if err != nil {
		return 0, err
	}
	if err := tx.resolvePath(created, anchor.ParentKey()); err != nil {
		return 0, err
	}
	if err := tx.indexValue(created); err != nil {
		return 0, err
	}
	if err := tx.attachLeftSibling(anchorKey, key, created); err != nil {
		return 0, err
	}
	if err := tx.afterInsert(created); err != nil {
		return 0, err
	}
	return key, tx.markDirty()
}

// InsertAttribute adds or overwrites an attribute on elementKey (§4.9
// insert_attribute). Same name + identical value is a no-op error
// (ErrDuplicateAttribute); same name + a different value overwrites in
// place; a new name is appended.
func (tx *WriteTransaction) InsertAttribute(elementKey node.Key, nameKey, uriKey int32, value []byte) (node.Key, error) {
	elemRec, err := tx.getNode(elementKey)
	if err != nil {
		return 0, err
	}
	el, ok := elemRec.(*node.ElementNode)
	if !ok {
		return 0, fmt.Errorf("%w: attributes may only be inserted on an Element", ErrUsage)
	}
	for _, ak := range el.AttributeKeys() {
		attr, err := tx.getNode(ak)
		if err != nil {
			return 0, err
		}
		a := attr.(*node.AttributeNode)
		if a.NameKey() != nameKey || a.URIKey() != uriKey {
			continue
		}
		if bytes.Equal(a.RawValue(), value) {
			return 0, ErrDuplicateAttribute
		}
		oldValue := append([]byte(nil), a.RawValue()...)
		mod, err := tx.prepareNodeForModification(ak)
		if err != nil {
			return 0, err
		}
		oldHash := mod.Hash()
		mod.(node.Valued).SetRawValue(value)
		mod.SetHash(contentHash(mod))
		if err := tx.reindexValue(mod, oldValue); err != nil {
			return 0, err
		}
		if err := tx.afterContentChange(mod, oldHash); err != nil {
			return 0, err
		}
		return ak, tx.markDirty()
	}

	var created *node.AttributeNode
	key, err := tx.createNode(func(k node.Key) node.Record {
		a := node.NewAttributeNode(k, elementKey, nameKey, uriKey, value)
		initNodeHash(a)
		created = a
		return a
	})
	if err != nil {
		return 0, err
	}
	if err := tx.resolvePath(created, elementKey); err != nil {
		return 0, err
	}
	if err := tx.indexValue(created); err != nil {
		return 0, err
	}
	elMod, err := tx.prepareNodeForModification(elementKey)
	if err != nil {
		return 0, err
	}
	elMod.(*node.ElementNode).InsertAttributeKey(key)
	if err := tx.afterInsert(created); err != nil {
		return 0, err
	}
	return key, tx.markDirty()
}

// InsertNamespace adds a namespace declaration to elementKey. prefix
// uniqueness (one declaration per prefix name key per element) is
// enforced here (§4.9 insert_namespace).
func (tx *WriteTransaction) InsertNamespace(elementKey node.Key, nameKey, uriKey int32) (node.Key, error) {
	elemRec, err := tx.getNode(elementKey)
	if err != nil {
		return 0, err
	}
	el, ok := elemRec.(*node.ElementNode)
	if !ok {
		return 0, fmt.Errorf("%w: namespaces may only be inserted on an Element", ErrUsage)
	}
	for _, nk := range el.NamespaceKeys() {
		ns, err := tx.getNode(nk)
		if err != nil {
			return 0, err
		}
		if ns.(*node.NamespaceNode).NameKey() == nameKey {
			return 0, ErrDuplicateNamespace
		}
	}

	var created *node.NamespaceNode
	key, err := tx.createNode(func(k node.Key) node.Record {
		n := node.NewNamespaceNode(k, elementKey, nameKey, uriKey)
		initNodeHash(n)
		created = n
		return n
	})
	if err != nil {
		return 0, err
	}
	if err := tx.resolvePath(created, elementKey); err != nil {
		return 0, err
	}
	elMod, err := tx.prepareNodeForModification(elementKey)
	if err != nil {
		return 0, err
	}
	elMod.(*node.ElementNode).InsertNamespaceKey(key)
	if err := tx.afterInsert(created); err != nil {
		return 0, err
	}
	return key, tx.markDirty()
}

// Subtree is a bulk insertion spec for insert_subtree (§4.9): an
// in-memory description of a structural node and its non-structural
// and structural children, built by a caller (a parser, a copy
// operation) ahead of time and inserted as a unit.
type Subtree struct {
	Kind       node.Kind
	NameKey    int32
	URIKey     int32
	Value      []byte
	Attributes []SubtreeAttribute
	Namespaces []SubtreeNamespace
	Children   []Subtree
}

// SubtreeAttribute describes one attribute of a Subtree Element.
type SubtreeAttribute struct {
	NameKey int32
	URIKey  int32
	Value   []byte
}

// SubtreeNamespace describes one namespace declaration of a Subtree Element.
type SubtreeNamespace struct {
	NameKey int32
	URIKey  int32
}

// InsertSubtreeAsFirstChild inserts an entire Subtree as parentKey's
// new first child, recursively building every descendant, and returns
// the key of the subtree's own root node.
func (tx *WriteTransaction) InsertSubtreeAsFirstChild(parentKey node.Key, tree Subtree) (node.Key, error) {
	return tx.insertSubtree(tree, func(childKey node.Key) error {
		return tx.attachFirstChildRaw(parentKey, childKey)
	}, parentKey)
}

// InsertSubtreeAsRightSibling inserts an entire Subtree immediately to
// the right of anchorKey.
func (tx *WriteTransaction) InsertSubtreeAsRightSibling(anchorKey node.Key, tree Subtree) (node.Key, error) {
	anchor, err := tx.getNode(anchorKey)
	if err != nil {
		return 0, err
	}
	return tx.insertSubtree(tree, func(childKey node.Key) error {
		return tx.attachRightSiblingRaw(anchorKey, childKey)
	}, anchor.ParentKey())
}

// insertSubtree builds tree's root node (and recursively its
// children), then hands the fresh root key to attach for linking at
// the caller's chosen position, finally propagating the hash once at
// the root.
func (tx *WriteTransaction) insertSubtree(tree Subtree, attach func(node.Key) error, parentKey node.Key) (node.Key, error) {
	if tx.values != nil {
		tx.values.BeginBulk()
	}
	subtreeRootKey, subtreeRoot, err := tx.buildSubtreeNode(tree, parentKey)
	if err != nil {
		return 0, err
	}
	if err := attach(subtreeRootKey); err != nil {
		return 0, err
	}
	if tx.values != nil {
		if err := tx.values.EndBulk(); err != nil {
			return 0, err
		}
	}
	if err := tx.afterInsert(subtreeRoot); err != nil {
		return 0, err
	}
	return subtreeRootKey, tx.markDirty()
}

// buildSubtreeNode creates tree's node and every descendant, wiring
// sibling/child links directly (no auto-commit/hash-propagation checks
// mid-build — those run once, at the subtree's own root, in insertSubtree).
func (tx *WriteTransaction) buildSubtreeNode(tree Subtree, parentKey node.Key) (node.Key, node.Node, error) {
	switch tree.Kind {
	case node.KindElement:
		var created *node.ElementNode
		key, err := tx.createNode(func(k node.Key) node.Record {
			e := node.NewElementNode(k, parentKey, tree.NameKey, tree.URIKey)
			created = e
			return e
		})
		if err != nil {
			return 0, nil, err
		}
		if err := tx.resolvePath(created, parentKey); err != nil {
			return 0, nil, err
		}
		for _, ns := range tree.Namespaces {
			var nsNode *node.NamespaceNode
			nsKey, err := tx.createNode(func(k node.Key) node.Record {
				n := node.NewNamespaceNode(k, key, ns.NameKey, ns.URIKey)
				initNodeHash(n)
				nsNode = n
				return n
			})
			if err != nil {
				return 0, nil, err
			}
			if err := tx.resolvePath(nsNode, key); err != nil {
				return 0, nil, err
			}
			created.InsertNamespaceKey(nsKey)
		}
		for _, attr := range tree.Attributes {
			var attrNode *node.AttributeNode
			attrKey, err := tx.createNode(func(k node.Key) node.Record {
				a := node.NewAttributeNode(k, key, attr.NameKey, attr.URIKey, attr.Value)
				initNodeHash(a)
				attrNode = a
				return a
			})
			if err != nil {
				return 0, nil, err
			}
			if err := tx.resolvePath(attrNode, key); err != nil {
				return 0, nil, err
			}
			if err := tx.indexValue(attrNode); err != nil {
				return 0, nil, err
			}
			created.InsertAttributeKey(attrKey)
		}
		var prevChild node.Key
		for _, childSpec := range tree.Children {
			childKey, childNode, err := tx.buildSubtreeNode(childSpec, key)
			if err != nil {
				return 0, nil, err
			}
			if cs, ok := childNode.(node.Structural); ok {
				cs.SetLeftSiblingKey(prevChild)
			}
			if prevChild == node.NullKey {
				created.SetFirstChildKey(childKey)
			} else {
				prev, err := tx.prepareNodeForModification(prevChild)
				if err != nil {
					return 0, nil, err
				}
				prev.(node.Structural).SetRightSiblingKey(childKey)
			}
			created.IncrementChildCount()
			created.IncrementDescendantCount(1 + descendantCountOf(childNode))
			prevChild = childKey
		}
		// Post-order: every descendant's hash is already final by this
		// point (children are built depth-first, bottom child first), so
		// folding them in here gives created the full
		// contentHash + P*H(attrs) + P*H(namespaces) + P*H(children)
		// hash in one pass, matching §4.9's bulk-insert contract instead
		// of the content-only hash a leaf gets from initNodeHash.
		sum, err := tx.childrenHashSum(created)
		if err != nil {
			return 0, nil, err
		}
		created.SetHash(contentHash(created) + sum)
		return key, created, nil
	case node.KindText:
		var created *node.TextNode
		key, err := tx.createNode(func(k node.Key) node.Record {
			t := node.NewTextNode(k, parentKey, tree.Value)
			initNodeHash(t)
			created = t
			return t
		})
		if err != nil {
			return 0, nil, err
		}
		if err := tx.indexValue(created); err != nil {
			return 0, nil, err
		}
		return key, created, nil
	case node.KindComment:
		var created *node.CommentNode
		key, err := tx.createNode(func(k node.Key) node.Record {
			c := node.NewCommentNode(k, parentKey, tree.Value)
			initNodeHash(c)
			created = c
			return c
		})
		if err != nil {
			return 0, nil, err
		}
		if err := tx.indexValue(created); err != nil {
			return 0, nil, err
		}
		return key, created, nil
	case node.KindProcessingInstruction:
		var created *node.ProcessingInstructionNode
		key, err := tx.createNode(func(k node.Key) node.Record {
			p := node.NewProcessingInstructionNode(k, parentKey, tree.NameKey, tree.Value)
			initNodeHash(p)
			created = p
			return p
		})
		if err != nil {
			return 0, nil, err
		}
		if err := tx.resolvePath(created, parentKey); err != nil {
			return 0, nil, err
		}
		if err := tx.indexValue(created); err != nil {
			return 0, nil, err
		}
		return key, created, nil
	default:
		return 0, nil, fmt.Errorf("%w: cannot build a subtree node of kind %s", ErrUsage, tree.Kind)
	}
}

func descendantCountOf(n node.Node) uint64 {
	if s, ok := n.(node.Structural); ok {
		return s.DescendantCount()
	}
	return 0
}

func (tx *WriteTransaction) attachFirstChildRaw(parentKey, childKey node.Key) error {
	childRec, err := tx.getNode(childKey)
	if err != nil {
		return err
	}
	cs, ok := childRec.(node.Structural)
	if !ok {
		return fmt.Errorf("%w: subtree root has no structural links", ErrUsage)
	}
	return tx.attachFirstChild(parentKey, childKey, cs)
}

func (tx *WriteTransaction) attachRightSiblingRaw(anchorKey, childKey node.Key) error {
	childRec, err := tx.getNode(childKey)
	if err != nil {
		return err
	}
	cs, ok := childRec.(node.Structural)
	if !ok {
		return fmt.Errorf("%w: subtree root has no structural links", ErrUsage)
	}
	return tx.attachRightSibling(anchorKey, childKey, cs)
}
