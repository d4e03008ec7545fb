// Package node defines the tagged node model of the versioned tree: a
// stable 64-bit node key, a kind tag, and the capability traits
// (Structural, Named, Valued) layered on top of it per kind.
package node

// Kind tags every node with its variant in the tree. DocumentRoot,
// Element, Text, Comment and ProcessingInstruction are Structural;
// Element, Attribute, Namespace and ProcessingInstruction are Named;
// Text, Attribute, Comment and ProcessingInstruction are Valued.
type Kind uint8

const (
	KindDocumentRoot Kind = iota
	KindElement
	KindText
	KindAttribute
	KindNamespace
	KindComment
	KindProcessingInstruction
	// KindDeleted tags a tombstone record; any lookup of a key that
	// resolves to a KindDeleted record must report the node as absent.
	KindDeleted
)

func (k Kind) String() string {
	switch k {
	case KindDocumentRoot:
		return "DocumentRoot"
	case KindElement:
		return "Element"
	case KindText:
		return "Text"
	case KindAttribute:
		return "Attribute"
	case KindNamespace:
		return "Namespace"
	case KindComment:
		return "Comment"
	case KindProcessingInstruction:
		return "ProcessingInstruction"
	case KindDeleted:
		return "Deleted"
	default:
		return "Unknown"
	}
}

// IsStructural reports whether nodes of this kind carry sibling/parent/
// child links (§3.1). Attributes and Namespaces are non-structural
// children of Elements.
func (k Kind) IsStructural() bool {
	switch k {
	case KindDocumentRoot, KindElement, KindText, KindComment, KindProcessingInstruction:
		return true
	default:
		return false
	}
}

// IsNamed reports whether nodes of this kind carry a name/uri/path-node key.
func (k Kind) IsNamed() bool {
	switch k {
	case KindElement, KindAttribute, KindNamespace, KindProcessingInstruction:
		return true
	default:
		return false
	}
}

// IsValued reports whether nodes of this kind carry a byte value.
func (k Kind) IsValued() bool {
	switch k {
	case KindText, KindAttribute, KindComment, KindProcessingInstruction:
		return true
	default:
		return false
	}
}

// Key identifies a node uniquely and stably across its lifetime.
type Key uint64

// NullKey marks the absence of a node reference (no parent, no sibling, ...).
const NullKey Key = 0
