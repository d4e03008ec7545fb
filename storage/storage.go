// Package storage defines the two narrow interfaces the core consumes
// for persistence (§6.1/§6.2) and bundles a local, mmap-backed
// reference implementation of both (§6.3) — grounded on the teacher's
// own mmap'd master-page discipline in filodb_storage.go, generalized
// from fixed 4KB BTree pages to this engine's variable-length,
// length-prefixed page records.
package storage

import "sirixgo/page"

// PageReader is consumed by the page read transaction (§6.1).
type PageReader interface {
	// ReadUberPageReference returns the reference to the current
	// uber-page, as last published by WriteUberPageReference.
	ReadUberPageReference() (*page.PageReference, error)
	// Read resolves a persisted page by its physical key, returning
	// the deserialized page of the appropriate kind.
	Read(ref *page.PageReference) (page.Page, error)
}

// PageWriter is consumed by the page write transaction's commit
// protocol (§6.2). Write must assign ref.Key on return.
// WriteUberPageReference must be atomic with respect to crash: a
// partial write must leave the previous uber-page discoverable.
type PageWriter interface {
	Write(ref *page.PageReference) error
	WriteUberPageReference(ref *page.PageReference) error
	Close() error
}
