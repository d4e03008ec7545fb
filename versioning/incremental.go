package versioning

import "sirixgo/page"

// incrementalPolicy stores each page as a delta against the
// immediately preceding physical version, chaining PreviousVersion
// links back to the last full dump. A read may need to walk the whole
// chain back to the milestone (§4.5 "Incremental").
type incrementalPolicy struct{}

func (incrementalPolicy) Kind() Kind { return Incremental }

func (incrementalPolicy) MaxHops() int { return 0 }

func (incrementalPolicy) CombineForRead(chain *Chain) (*page.RecordPage, error) {
	return foldOldestFirst(chain.Versions)
}

func (incrementalPolicy) CombineForModification(chain *Chain) (*page.Container, error) {
	complete, err := foldOldestFirst(chain.Versions)
	if err != nil {
		return nil, err
	}
	return page.NewContainer(complete), nil
}

func (incrementalPolicy) IsMilestone(targetRevision, milestoneStride uint64) bool {
	return milestoneStride == 0 || targetRevision%milestoneStride == 0
}

func (incrementalPolicy) Finalize(c *page.Container, chain *Chain, milestone bool) *page.RecordPage {
	if milestone {
		return mergeForPersist(c)
	}
	delta := c.Modified
	delta.PreviousVersion = chain.Latest
	return delta
}
