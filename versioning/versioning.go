// Package versioning implements the policies that decide how a record
// page's history is folded into a readable page and how a new write is
// persisted (§4.5). A policy is purely a reconstruction/persistence
// strategy — it never touches storage itself; callers supply the
// version chain already fetched via the page read transaction.
package versioning

import (
	"fmt"

	"sirixgo/page"
)

// Kind names one of the four mandatory versioning strategies (§4.5).
type Kind uint8

const (
	Full Kind = iota
	Differential
	Incremental
	Sliding
)

func (k Kind) String() string {
	switch k {
	case Full:
		return "Full"
	case Differential:
		return "Differential"
	case Incremental:
		return "Incremental"
	case Sliding:
		return "Sliding"
	default:
		return "Unknown"
	}
}

// Chain is the result of walking a record page's PreviousVersion links
// back to (or toward) its last full dump: Versions holds the pages
// oldest-first, Root is the reference that addresses Versions[0] (nil
// if Versions[0] has never been persisted — the very first write), and
// Latest is the reference that addresses Versions[len-1], i.e. the leaf
// slot the caller already holds.
type Chain struct {
	Versions []*page.RecordPage
	Root     *page.PageReference
	Latest   *page.PageReference
}

// CollectVersions walks the PreviousVersion chain starting at latest
// (the most recent physical version at or before the target revision,
// as located via the indirect-page tree) and loads each ancestor via
// load, stopping at a page with no PreviousVersion (a full dump) or
// after maxHops pages, whichever comes first (maxHops<=0 means
// unbounded). This is the "get_snapshot_pages" step of §4.6: every
// non-Full policy needs exactly this walk, bounded only for Sliding.
func CollectVersions(latest *page.RecordPage, latestRef *page.PageReference, load func(*page.PageReference) (*page.RecordPage, error), maxHops int) (*Chain, error) {
	if latest == nil {
		return &Chain{}, nil
	}
	newestFirst := []*page.RecordPage{latest}
	root := latestRef
	cur := latest
	for hops := 0; cur.PreviousVersion != nil && !cur.PreviousVersion.IsNull(); hops++ {
		if maxHops > 0 && hops >= maxHops {
			break
		}
		prev, err := load(cur.PreviousVersion)
		if err != nil {
			return nil, fmt.Errorf("versioning: loading previous version: %w", err)
		}
		if prev == nil {
			break
		}
		root = cur.PreviousVersion
		newestFirst = append(newestFirst, prev)
		cur = prev
	}
	oldestFirst := make([]*page.RecordPage, len(newestFirst))
	for i, p := range newestFirst {
		oldestFirst[len(newestFirst)-1-i] = p
	}
	return &Chain{Versions: oldestFirst, Root: root, Latest: latestRef}, nil
}

// Policy reconstructs a record page's state at a revision from its
// stored version history, and decides the persisted form of a new
// write (§4.5).
type Policy interface {
	Kind() Kind

	// MaxHops bounds how far CollectVersions may walk back for a read
	// under this policy (0 means unbounded — walk to the full dump).
	MaxHops() int

	// CombineForRead folds a version chain into the single page that
	// represents the exact state as of the last commit at or before
	// the target revision.
	CombineForRead(chain *Chain) (*page.RecordPage, error)

	// CombineForModification reconstructs Complete from chain (as
	// CombineForRead) and returns a fresh Container with an empty
	// Modified delta ready to receive writes.
	CombineForModification(chain *Chain) (*page.Container, error)

	// IsMilestone reports whether targetRevision is a full-dump
	// revision under this policy. On milestone revisions, dirty-flag
	// skipping is disabled (§4.5): every touched page is persisted in
	// full even if its content is unchanged from the prior version.
	IsMilestone(targetRevision, milestoneStride uint64) bool

	// Finalize produces the RecordPage that should actually be handed
	// to the PageWriter for this container: a full dump on milestone
	// revisions (or always, for Full), otherwise a delta chained via
	// PreviousVersion to the appropriate ancestor (chain.Root for
	// Differential, chain.Latest for Incremental/Sliding).
	Finalize(c *page.Container, chain *Chain, milestone bool) *page.RecordPage
}

// New constructs the policy implementation for a configured kind.
// slidingWindow only applies to Sliding (defaulted to 3 if <= 0).
func New(k Kind, slidingWindow int) (Policy, error) {
	switch k {
	case Full:
		return fullPolicy{}, nil
	case Differential:
		return differentialPolicy{}, nil
	case Incremental:
		return incrementalPolicy{}, nil
	case Sliding:
		if slidingWindow <= 0 {
			slidingWindow = 3
		}
		return slidingPolicy{window: slidingWindow}, nil
	default:
		return nil, fmt.Errorf("versioning: unknown kind %d", k)
	}
}

var errNoVersions = fmt.Errorf("versioning: no versions in chain")

func foldOldestFirst(versions []*page.RecordPage) (*page.RecordPage, error) {
	if len(versions) == 0 {
		return nil, fmt.Errorf("versioning: no versions to combine")
	}
	acc := versions[0]
	for _, v := range versions[1:] {
		acc = v.MergeOlder(acc)
	}
	return acc, nil
}

// mergeForPersist flattens a container's Modified delta onto its
// Complete pre-image, producing the full-dump form written on
// milestone revisions (and on every write under the Full policy).
func mergeForPersist(c *page.Container) *page.RecordPage {
	full := c.Modified.MergeOlder(c.Complete)
	full.PreviousVersion = nil
	return full
}
