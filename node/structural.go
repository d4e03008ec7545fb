package node

// DocumentRootNode is the single root of every revision's tree. It has
// no parent, no name, no value — only structural links to its children
// (none, for an empty document).
type DocumentRootNode struct {
	base
	structuralData
}

// NewDocumentRootNode constructs the root node for a fresh revision.
func NewDocumentRootNode(key Key) *DocumentRootNode {
	return &DocumentRootNode{
		base: base{key: key, kind: KindDocumentRoot, parentKey: NullKey},
	}
}

func (d *DocumentRootNode) Clone() Node {
	c := *d
	c.structuralData = d.structuralData.clone()
	return &c
}

// ElementNode is a Structural+Named node that additionally owns
// ordered lists of attribute and namespace node keys (§3.1).
type ElementNode struct {
	base
	structuralData
	namedData
	attributeKeys []Key
	namespaceKeys []Key
}

// NewElementNode constructs an element with the given qualified name keys.
func NewElementNode(key, parentKey Key, nameKey, uriKey int32) *ElementNode {
	return &ElementNode{
		base:      base{key: key, kind: KindElement, parentKey: parentKey},
		namedData: namedData{nameKey: nameKey, uriKey: uriKey, pathNodeKey: NullKey},
	}
}

func (e *ElementNode) Clone() Node {
	c := *e
	c.structuralData = e.structuralData.clone()
	c.namedData = e.namedData.clone()
	c.attributeKeys = append([]Key(nil), e.attributeKeys...)
	c.namespaceKeys = append([]Key(nil), e.namespaceKeys...)
	return &c
}

// AttributeKeys returns the ordered attribute node keys of this element.
func (e *ElementNode) AttributeKeys() []Key {
	out := make([]Key, len(e.attributeKeys))
	copy(out, e.attributeKeys)
	return out
}

// InsertAttributeKey appends an attribute node key.
func (e *ElementNode) InsertAttributeKey(k Key) {
	e.attributeKeys = append(e.attributeKeys, k)
}

// RemoveAttributeKey removes the given attribute node key, if present.
func (e *ElementNode) RemoveAttributeKey(k Key) {
	e.attributeKeys = removeKey(e.attributeKeys, k)
}

// NamespaceKeys returns the ordered namespace node keys of this element.
func (e *ElementNode) NamespaceKeys() []Key {
	out := make([]Key, len(e.namespaceKeys))
	copy(out, e.namespaceKeys)
	return out
}

// InsertNamespaceKey appends a namespace node key.
func (e *ElementNode) InsertNamespaceKey(k Key) {
	e.namespaceKeys = append(e.namespaceKeys, k)
}

// RemoveNamespaceKey removes the given namespace node key, if present.
func (e *ElementNode) RemoveNamespaceKey(k Key) {
	e.namespaceKeys = removeKey(e.namespaceKeys, k)
}

func removeKey(keys []Key, target Key) []Key {
	for i, k := range keys {
		if k == target {
			return append(keys[:i], keys[i+1:]...)
		}
	}
	return keys
}

// TextNode is a Structural+Valued node. Adjacent Text siblings are
// never allowed to coexist (§3.1) — callers merge in place instead of
// creating a second Text node.
type TextNode struct {
	base
	structuralData
	valuedData
}

// NewTextNode constructs a text node with the given value.
func NewTextNode(key, parentKey Key, value []byte) *TextNode {
	t := &TextNode{base: base{key: key, kind: KindText, parentKey: parentKey}}
	t.SetRawValue(value)
	return t
}

func (t *TextNode) Clone() Node {
	c := *t
	c.structuralData = t.structuralData.clone()
	c.valuedData = t.valuedData.clone()
	return &c
}

// CommentNode is a Structural+Valued node; its value must never
// contain "--" (§4.9 insert_comment_as_*).
type CommentNode struct {
	base
	structuralData
	valuedData
}

func NewCommentNode(key, parentKey Key, value []byte) *CommentNode {
	c := &CommentNode{base: base{key: key, kind: KindComment, parentKey: parentKey}}
	c.SetRawValue(value)
	return c
}

func (c *CommentNode) Clone() Node {
	out := *c
	out.structuralData = c.structuralData.clone()
	out.valuedData = c.valuedData.clone()
	return &out
}

// ProcessingInstructionNode is Structural+Named+Valued; its content
// must never contain "?>-" (§4.9 insert_pi_as_*).
type ProcessingInstructionNode struct {
	base
	structuralData
	namedData
	valuedData
}

func NewProcessingInstructionNode(key, parentKey Key, targetNameKey int32, content []byte) *ProcessingInstructionNode {
	p := &ProcessingInstructionNode{
		base:      base{key: key, kind: KindProcessingInstruction, parentKey: parentKey},
		namedData: namedData{nameKey: targetNameKey, pathNodeKey: NullKey},
	}
	p.SetRawValue(content)
	return p
}

func (p *ProcessingInstructionNode) Clone() Node {
	c := *p
	c.structuralData = p.structuralData.clone()
	c.namedData = p.namedData.clone()
	c.valuedData = p.valuedData.clone()
	return &c
}
