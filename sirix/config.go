package sirix

import (
	"time"

	"sirixgo/nodetx"
	"sirixgo/versioning"
)

// IndexKind names one of the secondary index structures a resource can
// maintain alongside its document tree (§6.5 "indexes"). IndexValue is
// the only kind with a backing implementation today (valueindex,
// page.FamilyCAS); IndexPath and IndexName are accepted here for
// configuration-surface completeness — matching the page.FamilyPath
// and page.FamilyName families already reserved for them — but neither
// has an index structure built behind it yet. A config naming them is
// honored as a no-op rather than rejected.
type IndexKind int

const (
	IndexPath IndexKind = iota
	IndexValue
	IndexName
)

// ResourceConfig holds every option recognized at resource-open time
// (§6.5).
type ResourceConfig struct {
	// HashKind selects the node-content-hash maintenance strategy.
	HashKind nodetx.HashKind
	// Versioning selects the page-family history strategy.
	Versioning versioning.Kind
	// SlidingWindow bounds how many hops a Sliding-versioned read walks
	// back; ignored for every other Versioning kind.
	SlidingWindow int
	// RevisionsToRestore is the milestone stride: every Nth revision of
	// a page family is stored as a complete snapshot rather than a
	// delta, bounding how many hops a worst-case read has to replay.
	RevisionsToRestore uint64
	// MaxNodeCount is the node-count auto-commit threshold; 0 disables it.
	MaxNodeCount uint64
	// MaxTime is the wall-clock auto-commit threshold; 0 disables it.
	MaxTime time.Duration
	// Indexes lists which secondary indexes to maintain.
	Indexes []IndexKind
	// Compression enables zstd compression of Valued nodes' raw value
	// bytes at the storage layer.
	Compression bool
	// UsePathSummary enables path-summary maintenance.
	UsePathSummary bool
	// MaxReadTrx bounds how many read transactions may be open against
	// this resource concurrently. <= 0 defaults to 8.
	MaxReadTrx int64
}

func (c ResourceConfig) hasIndex(k IndexKind) bool {
	for _, i := range c.Indexes {
		if i == k {
			return true
		}
	}
	return false
}

// DefaultResourceConfig returns a conservative, fully-featured
// configuration: full versioning (no history loss), a rolling content
// hash, path-summary and value-index maintenance both on, no
// compression, no auto-commit.
func DefaultResourceConfig() ResourceConfig {
	return ResourceConfig{
		HashKind:           nodetx.HashRolling,
		Versioning:         versioning.Full,
		RevisionsToRestore: 1000,
		Indexes:            []IndexKind{IndexValue},
		UsePathSummary:     true,
		MaxReadTrx:         8,
	}
}
