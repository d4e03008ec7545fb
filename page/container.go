package page

import "sirixgo/node"

// Container pairs a record page's fully materialized pre-image
// (Complete, the union of historical versions as reconstructed by the
// active versioning policy) with the working delta being built by the
// current transaction (Modified). All writes land in Modified; Get
// checks Modified first, then falls back to Complete (§4.2, GLOSSARY
// "Container").
type Container struct {
	Complete *RecordPage
	Modified *RecordPage
}

// NewContainer builds a container from a reconstructed complete page,
// with an empty modified delta ready to receive writes.
func NewContainer(complete *RecordPage) *Container {
	modified := NewRecordPage(complete.Family, complete.Index, complete.PageKey, uint64(complete.Capacity), complete.Revision+1)
	return &Container{Complete: complete, Modified: modified}
}

// Get resolves key against Modified first, then Complete. A
// node.DeletedNode tombstone in either is reported as present (so
// callers can distinguish "absent" from "tombstoned") — translating a
// tombstone into "absent" is the record-level node.IsDeleted concern.
func (c *Container) Get(key node.Key) (node.Record, bool) {
	if r, ok := c.Modified.Get(key); ok {
		return r, true
	}
	return c.Complete.Get(key)
}

// EnsureModifiable copies key's record from Complete into Modified if
// it is not already staged there, returning the staged record. This is
// the "copy-up from complete if missing" step of
// prepare_entry_for_modification (§4.7).
func (c *Container) EnsureModifiable(key node.Key) (node.Record, bool) {
	if r, ok := c.Modified.Get(key); ok {
		return r, true
	}
	r, ok := c.Complete.Get(key)
	if !ok {
		return nil, false
	}
	staged := cloneRecord(r)
	c.Modified.Put(key, staged)
	return staged, true
}

// Put stages a record directly into Modified (used by create_entry and
// by callers replacing an already-cloned record in place).
func (c *Container) Put(key node.Key, rec node.Record) {
	c.Modified.Put(key, rec)
}

// Tombstone stages a node.DeletedNode for key in both Modified and
// Complete so that intra-transaction reads cannot resurrect it
// (§4.7 remove_entry).
func (c *Container) Tombstone(key node.Key) {
	tomb := node.NewDeletedNode(key)
	c.Modified.Put(key, tomb)
	c.Complete.Put(key, tomb)
}

func cloneRecord(r node.Record) node.Record {
	if n, ok := r.(node.Node); ok {
		return n.Clone()
	}
	return r
}
