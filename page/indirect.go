package page

import "fmt"

// Fanout is the fixed number of slots per indirect page (§3.3: "fixed
// fanout F (e.g. 128)").
const Fanout = 128

// fanoutShift is log2(Fanout); descending the tree peels off this many
// bits of the page key per level.
const fanoutShift = 7

// TreeHeight is the fixed height of every family's indirect-page tree
// (§3.3: "the tree height per family is fixed by the family's
// page-count exponents"). Five levels of 128-way fanout address
// 128^5 ≈ 3.4e10 record pages, far past any resource this engine will
// host, while keeping the arithmetic in §3.3 ("descending selects slot
// (k >> exp[L]) & (F-1) at level L") a single fixed shift table.
const TreeHeight = 5

// slotAt returns the slot index a pageKey occupies at tree level
// (0 = topmost, TreeHeight-1 = bottommost, adjacent to record pages).
func slotAt(pageKey uint64, level int) int {
	shift := uint(fanoutShift * (TreeHeight - 1 - level))
	return int((pageKey >> shift) & (Fanout - 1))
}

// IndirectPage is a fixed-fanout routing page: Fanout slots, each a
// PageReference to either another IndirectPage (non-bottom levels) or
// a RecordPage (bottom level) (§3.3, GLOSSARY "Indirect page").
type IndirectPage struct {
	Family Family
	Index  int
	Level  int
	Slots  [Fanout]PageReference
}

func (p *IndirectPage) PageKind() Kind { return KindIndirectPage }

// cloneFlat copies each slot's Key into a fresh slot array (a slot's
// in-memory Page pointer is not carried over; it starts out nil) — the
// copy-on-write clone used when a path first touches this page in a
// transaction, mirroring the Cloner.cloneFlat pattern used by
// copy-on-write tries.
func (p *IndirectPage) cloneFlat() *IndirectPage {
	c := &IndirectPage{Family: p.Family, Index: p.Index, Level: p.Level}
	for i := range p.Slots {
		c.Slots[i] = PageReference{Key: p.Slots[i].Key}
	}
	return c
}

// PageLoader resolves a persisted, non-staged page reference to its
// Page value — supplied by the page read transaction (C6), which
// consults the process-wide cache before falling back to the
// PageReader (§4.6).
type PageLoader interface {
	LoadIndirect(ref *PageReference, family Family, index, level int, offset uint64) (*IndirectPage, error)
}

// PageLog is the narrow slice of the write-ahead log (C8) the
// indirect-page tree needs: fetch a staged page by its log key, or
// stage one.
type PageLog interface {
	GetIndirect(key IndirectPageLogKey) (*IndirectPage, bool)
	PutIndirect(key IndirectPageLogKey, page *IndirectPage)
}

// PrepareLeaf descends the indirect-page tree from start, cloning
// every indirect page touched along the way into the page log
// (copy-on-write path, §3.3/§4.3) and returns the leaf-level
// PageReference — the slot that addresses (or will address) the
// record page for pageKey. On first visit along a path all touched
// indirect pages are cloned; subsequent visits in the same transaction
// reuse the already-staged clone.
func PrepareLeaf(start *PageReference, pageKey uint64, family Family, index int, log PageLog, loader PageLoader) (*PageReference, error) {
	cur := start
	for level := 0; level < TreeHeight; level++ {
		offset := pathOffset(pageKey, level)
		logKey := IndirectPageLogKey{Family: family, Index: index, Level: level, Offset: offset}

		staged, ok := log.GetIndirect(logKey)
		if !ok {
			var persisted *IndirectPage
			if !cur.IsNull() {
				if ip, ok := cur.Page.(*IndirectPage); ok {
					persisted = ip
				} else if loader != nil {
					loaded, err := loader.LoadIndirect(cur, family, index, level, offset)
					if err != nil {
						return nil, fmt.Errorf("page: load indirect page family=%s level=%d offset=%d: %w", family, level, offset, err)
					}
					persisted = loaded
				}
			}
			if persisted != nil {
				staged = persisted.cloneFlat()
			} else {
				staged = &IndirectPage{Family: family, Index: index, Level: level}
			}
			log.PutIndirect(logKey, staged)
		}

		slot := slotAt(pageKey, level)
		if level == TreeHeight-1 {
			return &staged.Slots[slot], nil
		}
		cur = &staged.Slots[slot]
	}
	panic("unreachable: TreeHeight must be > 0")
}

// Descend walks the indirect-page tree from start to the leaf slot
// addressing pageKey, without cloning or staging anything — the
// read-only counterpart to PrepareLeaf used by the page read
// transaction (C6). Returns a null reference if any page along the
// path does not exist yet.
func Descend(start *PageReference, pageKey uint64, family Family, index int, loader PageLoader) (*PageReference, error) {
	cur := start
	for level := 0; level < TreeHeight; level++ {
		if cur.IsNull() {
			return &PageReference{}, nil
		}
		var ip *IndirectPage
		if p, ok := cur.Page.(*IndirectPage); ok {
			ip = p
		} else if loader != nil {
			offset := pathOffset(pageKey, level)
			loaded, err := loader.LoadIndirect(cur, family, index, level, offset)
			if err != nil {
				return nil, fmt.Errorf("page: load indirect page family=%s level=%d offset=%d: %w", family, level, offset, err)
			}
			ip = loaded
		}
		if ip == nil {
			return &PageReference{}, nil
		}
		slot := slotAt(pageKey, level)
		if level == TreeHeight-1 {
			return &ip.Slots[slot], nil
		}
		cur = &ip.Slots[slot]
	}
	panic("unreachable: TreeHeight must be > 0")
}

// ParentOffset maps a level-L page's flattened offset to its parent's
// (level L-1) flattened offset — the inverse step of descending one
// level deeper. Exposed so the write transaction can re-derive a
// staged child page's parent page log key at commit time without
// re-deriving the fanout shift itself.
func ParentOffset(offset uint64) uint64 { return offset >> fanoutShift }

// SlotInParent returns the slot index within the parent page that a
// level-L page with the given flattened offset occupies.
func SlotInParent(offset uint64) int { return int(offset & (Fanout - 1)) }

// pathOffset flattens the slot path down to (and including) level into
// a single integer, used to key the page log uniquely per indirect
// page touched.
func pathOffset(pageKey uint64, level int) uint64 {
	shift := uint(fanoutShift * (TreeHeight - 1 - level))
	return pageKey >> shift
}
