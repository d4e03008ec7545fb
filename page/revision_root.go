package page

// RevisionRootPage holds, for each page family/index, the root
// reference of that family's indirect-page tree, plus the running
// max_node_key and per-family max_key counters and a commit timestamp
// (§3.4).
type RevisionRootPage struct {
	Revision        uint64
	MaxNodeKey      uint64
	CommitTimestamp int64

	roots   map[FamilyIndex]*PageReference
	maxKeys map[FamilyIndex]uint64
}

func (p *RevisionRootPage) PageKind() Kind { return KindRevisionRootPage }

// NewRevisionRootPage allocates an empty revision-root page for the
// given revision number.
func NewRevisionRootPage(revision uint64) *RevisionRootPage {
	return &RevisionRootPage{
		Revision: revision,
		roots:    make(map[FamilyIndex]*PageReference),
		maxKeys:  make(map[FamilyIndex]uint64),
	}
}

// Root returns the family/index's indirect-tree root reference,
// creating an empty one on first access.
func (p *RevisionRootPage) Root(fi FamilyIndex) *PageReference {
	ref, ok := p.roots[fi]
	if !ok {
		ref = &PageReference{}
		p.roots[fi] = ref
	}
	return ref
}

// SetRoot replaces the family/index's indirect-tree root reference.
func (p *RevisionRootPage) SetRoot(fi FamilyIndex, ref *PageReference) {
	p.roots[fi] = ref
}

// MaxKey returns the current max-key counter for a family/index.
func (p *RevisionRootPage) MaxKey(fi FamilyIndex) uint64 {
	return p.maxKeys[fi]
}

// NextKey increments and returns the new max-key counter for a
// family/index — the atomic ++max_key of §4.7's create_entry.
func (p *RevisionRootPage) NextKey(fi FamilyIndex) uint64 {
	p.maxKeys[fi]++
	return p.maxKeys[fi]
}

// SetMaxKey forces the max-key counter for a family/index (used when
// carrying counters forward from the last committed root, §4.4).
func (p *RevisionRootPage) SetMaxKey(fi FamilyIndex, v uint64) {
	p.maxKeys[fi] = v
}

// NextNodeKey increments and returns the new max_node_key.
func (p *RevisionRootPage) NextNodeKey() uint64 {
	p.MaxNodeKey++
	return p.MaxNodeKey
}

// Clone produces a new revision-root page carrying forward this page's
// counters and root references (the references themselves are shared
// until a write touches them — see §4.4 prepare_previous_revision_root).
func (p *RevisionRootPage) Clone(newRevision uint64) *RevisionRootPage {
	c := NewRevisionRootPage(newRevision)
	c.MaxNodeKey = p.MaxNodeKey
	for fi, ref := range p.roots {
		c.roots[fi] = &PageReference{Key: ref.Key, Page: ref.Page, LogKey: ref.LogKey}
	}
	for fi, v := range p.maxKeys {
		c.maxKeys[fi] = v
	}
	return c
}

// Families reports every family/index that currently has a root
// reference, in a stable order — used when walking every staged
// reference during commit.
func (p *RevisionRootPage) Families() []FamilyIndex {
	out := make([]FamilyIndex, 0, len(p.roots))
	for fi := range p.roots {
		out = append(out, fi)
	}
	// stable order for deterministic commit traversal
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && less(out[j-1], out[j]); j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

func less(a, b FamilyIndex) bool {
	if a.Family != b.Family {
		return a.Family > b.Family
	}
	return a.Index > b.Index
}
