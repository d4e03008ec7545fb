package versioning

import "sirixgo/page"

// slidingPolicy is incrementalPolicy's write-side twin with a bounded
// read-side window: a delta chains against the immediately preceding
// version exactly like Incremental, but a read only ever walks back
// `window` hops (§4.5 "Sliding"). Configuring milestoneStride <= window
// guarantees every walk terminates at a real full dump rather than
// being truncated mid-chain; window defaults to 3 (see New).
type slidingPolicy struct {
	window int
}

func (slidingPolicy) Kind() Kind { return Sliding }

func (p slidingPolicy) MaxHops() int { return p.window }

func (slidingPolicy) CombineForRead(chain *Chain) (*page.RecordPage, error) {
	return foldOldestFirst(chain.Versions)
}

func (slidingPolicy) CombineForModification(chain *Chain) (*page.Container, error) {
	complete, err := foldOldestFirst(chain.Versions)
	if err != nil {
		return nil, err
	}
	return page.NewContainer(complete), nil
}

func (slidingPolicy) IsMilestone(targetRevision, milestoneStride uint64) bool {
	return milestoneStride == 0 || targetRevision%milestoneStride == 0
}

func (slidingPolicy) Finalize(c *page.Container, chain *Chain, milestone bool) *page.RecordPage {
	if milestone {
		return mergeForPersist(c)
	}
	delta := c.Modified
	delta.PreviousVersion = chain.Latest
	return delta
}
