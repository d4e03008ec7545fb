package page

import "sirixgo/node"

// Kind tags the four concrete page shapes the layer above (the
// indirect-page tree, the revision root, the uber page) can address.
type Kind uint8

const (
	KindRecordPage Kind = iota
	KindIndirectPage
	KindRevisionRootPage
	KindUberPage
)

// Page is satisfied by every concrete page shape so a PageReference
// can hold any of them uniformly.
type Page interface {
	PageKind() Kind
}

// RecordPage is an ordered node_key -> record mapping of bounded
// capacity (§3.2), stamped with its page key, family and the revision
// it was produced for. PreviousVersion links to the prior physical
// version for differential/incremental/sliding reconstruction (§4.5).
type RecordPage struct {
	Family      Family
	Index       int
	PageKey     uint64
	Capacity    int
	Revision    uint64
	// PreviousVersion is the physical reference to the previous
	// version of this page, used by non-Full versioning policies.
	PreviousVersion *PageReference

	entries map[node.Key]node.Record
}

// NewRecordPage allocates an empty record page for the given coordinates.
func NewRecordPage(family Family, index int, pageKey uint64, capacity uint64, revision uint64) *RecordPage {
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	return &RecordPage{
		Family:   family,
		Index:    index,
		PageKey:  pageKey,
		Capacity: int(capacity),
		Revision: revision,
		entries:  make(map[node.Key]node.Record),
	}
}

func (p *RecordPage) PageKind() Kind { return KindRecordPage }

// Get returns the record stored under key, or (nil, false) if absent.
func (p *RecordPage) Get(key node.Key) (node.Record, bool) {
	r, ok := p.entries[key]
	return r, ok
}

// Put stores a record under key, overwriting any previous value.
func (p *RecordPage) Put(key node.Key, rec node.Record) {
	p.entries[key] = rec
}

// Delete removes the entry for key entirely (used when compacting a
// differential delta; callers wanting tombstone semantics should Put
// a node.DeletedNode instead).
func (p *RecordPage) Delete(key node.Key) {
	delete(p.entries, key)
}

// Len reports the number of entries currently stored.
func (p *RecordPage) Len() int { return len(p.entries) }

// Iter calls fn for every entry in key order. Iteration stops early if
// fn returns false.
func (p *RecordPage) Iter(fn func(node.Key, node.Record) bool) {
	keys := make([]node.Key, 0, len(p.entries))
	for k := range p.entries {
		keys = append(keys, k)
	}
	sortKeys(keys)
	for _, k := range keys {
		if !fn(k, p.entries[k]) {
			return
		}
	}
}

// Clone returns a page with its own entry map holding the same records
// as p (the records themselves are shared, not copied) — the base that
// MergeOlder overlays newer entries onto.
func (p *RecordPage) Clone() *RecordPage {
	c := &RecordPage{
		Family:          p.Family,
		Index:           p.Index,
		PageKey:         p.PageKey,
		Capacity:        p.Capacity,
		Revision:        p.Revision,
		PreviousVersion: p.PreviousVersion,
		entries:         make(map[node.Key]node.Record, len(p.entries)),
	}
	for k, v := range p.entries {
		c.entries[k] = v
	}
	return c
}

// MergeOlder overlays this page's entries on top of older, producing
// the union used to reconstruct a Full read: entries present in p win.
func (p *RecordPage) MergeOlder(older *RecordPage) *RecordPage {
	merged := older.Clone()
	merged.Revision = p.Revision
	merged.PreviousVersion = p.PreviousVersion
	for k, v := range p.entries {
		merged.entries[k] = v
	}
	return merged
}

func sortKeys(keys []node.Key) {
	// insertion sort: record pages hold at most DefaultCapacity entries,
	// so a quadratic sort never shows up on a profile.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
}
