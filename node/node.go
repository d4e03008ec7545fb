package node

// Record is the value type stored in a record page (§3.2): it is either
// a Node or a DeletedNode tombstone. Page families other than Record
// (PathSummary, Path, CAS, Name) store their own record shapes, which
// also satisfy Record by virtue of being any concrete Go value the
// family chooses — the record page itself stays unaware of content.
type Record interface {
	// RecordKey returns the key this record is stored under.
	RecordKey() Key
}

// Node is the capability every tree node supports regardless of kind:
// a stable key, a kind tag, a parent link and an incremental hash.
// Trait-qualified accessors (Structural, Named, Valued) are exposed by
// a type assertion against the concrete node, matching §4.1's
// "trait-qualified link accessors".
type Node interface {
	Record
	Kind() Kind
	ParentKey() Key
	SetParentKey(Key)
	Hash() uint64
	SetHash(uint64)
	// Clone returns a deep copy suitable for staging a modifiable
	// version of this node in a write-ahead log (§4.1 prepare_for_modification).
	Clone() Node
}

// Structural is the trait for nodes with sibling/parent/child links
// (§3.1). The first child of P is the unique structural child with
// LeftSiblingKey() == NullKey.
type Structural interface {
	Node
	FirstChildKey() Key
	SetFirstChildKey(Key)
	LeftSiblingKey() Key
	SetLeftSiblingKey(Key)
	RightSiblingKey() Key
	SetRightSiblingKey(Key)
	ChildCount() uint64
	SetChildCount(uint64)
	IncrementChildCount()
	DecrementChildCount()
	DescendantCount() uint64
	SetDescendantCount(uint64)
	IncrementDescendantCount(delta uint64)
	DecrementDescendantCount(delta uint64)
	HasFirstChild() bool
	HasLeftSibling() bool
	HasRightSibling() bool
}

// Named is the trait for nodes bearing a qualified name (§3.1):
// Element, Attribute, Namespace, ProcessingInstruction.
type Named interface {
	Node
	NameKey() int32
	SetNameKey(int32)
	URIKey() int32
	SetURIKey(int32)
	PathNodeKey() Key
	SetPathNodeKey(Key)
}

// Valued is the trait for nodes carrying a byte value (§3.1): Text,
// Attribute, Comment, ProcessingInstruction. Compression of the
// stored bytes (§6.5) is the concern of the storage layer, not of the
// node itself — RawValue always returns the logical, decompressed
// value.
type Valued interface {
	Node
	RawValue() []byte
	SetRawValue([]byte)
}

// base carries the fields every node variant shares.
type base struct {
	key       Key
	kind      Kind
	parentKey Key
	hash      uint64
}

func (b *base) RecordKey() Key     { return b.key }
func (b *base) Kind() Kind         { return b.kind }
func (b *base) ParentKey() Key     { return b.parentKey }
func (b *base) SetParentKey(k Key) { b.parentKey = k }
func (b *base) Hash() uint64       { return b.hash }
func (b *base) SetHash(h uint64)   { b.hash = h }

// structuralData implements the Structural trait fields; embedded by
// every structural node kind.
type structuralData struct {
	firstChildKey    Key
	leftSiblingKey   Key
	rightSiblingKey  Key
	childCount       uint64
	descendantCount  uint64
}

func (s *structuralData) FirstChildKey() Key        { return s.firstChildKey }
func (s *structuralData) SetFirstChildKey(k Key)     { s.firstChildKey = k }
func (s *structuralData) LeftSiblingKey() Key        { return s.leftSiblingKey }
func (s *structuralData) SetLeftSiblingKey(k Key)    { s.leftSiblingKey = k }
func (s *structuralData) RightSiblingKey() Key       { return s.rightSiblingKey }
func (s *structuralData) SetRightSiblingKey(k Key)   { s.rightSiblingKey = k }
func (s *structuralData) ChildCount() uint64         { return s.childCount }
func (s *structuralData) SetChildCount(c uint64)     { s.childCount = c }
func (s *structuralData) IncrementChildCount()       { s.childCount++ }
func (s *structuralData) DecrementChildCount() {
	if s.childCount > 0 {
		s.childCount--
	}
}
func (s *structuralData) DescendantCount() uint64     { return s.descendantCount }
func (s *structuralData) SetDescendantCount(c uint64) { s.descendantCount = c }
func (s *structuralData) IncrementDescendantCount(delta uint64) {
	s.descendantCount += delta
}
func (s *structuralData) DecrementDescendantCount(delta uint64) {
	if delta > s.descendantCount {
		s.descendantCount = 0
		return
	}
	s.descendantCount -= delta
}
func (s *structuralData) HasFirstChild() bool   { return s.firstChildKey != NullKey }
func (s *structuralData) HasLeftSibling() bool  { return s.leftSiblingKey != NullKey }
func (s *structuralData) HasRightSibling() bool { return s.rightSiblingKey != NullKey }

func (s structuralData) clone() structuralData { return s }

// namedData implements the Named trait fields; embedded by Element,
// Attribute, Namespace and ProcessingInstruction.
type namedData struct {
	nameKey     int32
	uriKey      int32
	pathNodeKey Key
}

func (n *namedData) NameKey() int32      { return n.nameKey }
func (n *namedData) SetNameKey(k int32)  { n.nameKey = k }
func (n *namedData) URIKey() int32       { return n.uriKey }
func (n *namedData) SetURIKey(k int32)   { n.uriKey = k }
func (n *namedData) PathNodeKey() Key    { return n.pathNodeKey }
func (n *namedData) SetPathNodeKey(k Key) { n.pathNodeKey = k }

func (n namedData) clone() namedData { return n }

// valuedData implements the Valued trait fields; embedded by Text,
// Attribute, Comment and ProcessingInstruction.
type valuedData struct {
	rawValue []byte
}

func (v *valuedData) RawValue() []byte {
	if v.rawValue == nil {
		return nil
	}
	out := make([]byte, len(v.rawValue))
	copy(out, v.rawValue)
	return out
}

func (v *valuedData) SetRawValue(val []byte) {
	v.rawValue = append([]byte(nil), val...)
}

func (v valuedData) clone() valuedData {
	return valuedData{rawValue: append([]byte(nil), v.rawValue...)}
}
