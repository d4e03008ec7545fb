package page

// IndirectPageLogKey addresses a non-record page (indirect page,
// revision-root page, or uber page) staged in the page log during a
// write transaction (§3.5). Family/Index select the address space,
// Level is the depth in the indirect-page tree (0 for the
// revision-root/uber page themselves), and Offset is that page's slot
// path flattened to a single integer.
type IndirectPageLogKey struct {
	Family Family
	Index  int
	Level  int
	Offset uint64
}

// PageReference is a slot in an indirect page, a family root in a
// revision-root page, or a revision root in the uber page: a physical
// key once written, optionally an attached in-memory Page while a
// transaction still holds it, and the log key that located it in the
// page log (§3.3, GLOSSARY "Indirect page").
type PageReference struct {
	Key    uint64
	Page   Page
	LogKey *IndirectPageLogKey
}

// IsNull reports whether the reference points at nothing yet (no
// physical key, no attached page) — the NULL_ID case of §4.7's
// prepare_record_page.
func (r *PageReference) IsNull() bool {
	return r == nil || (r.Key == 0 && r.Page == nil)
}

// Clone returns a reference carrying the same physical key but no
// attached in-memory page and no log key — the copy made when an
// indirect page is cloned along a copy-on-write path and its slots are
// carried forward as not-yet-dereferenced pointers.
func (r *PageReference) Clone() *PageReference {
	if r == nil {
		return &PageReference{}
	}
	return &PageReference{Key: r.Key}
}
