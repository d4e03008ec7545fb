package versioning

import "sirixgo/page"

// differentialPolicy stores each page as a delta against the last full
// dump (the milestone): PreviousVersion always points directly at the
// milestone, never at an intervening delta, so a read needs at most two
// physical versions (§4.5 "Differential").
type differentialPolicy struct{}

func (differentialPolicy) Kind() Kind { return Differential }

func (differentialPolicy) MaxHops() int { return 1 }

func (differentialPolicy) CombineForRead(chain *Chain) (*page.RecordPage, error) {
	return foldOldestFirst(chain.Versions)
}

func (differentialPolicy) CombineForModification(chain *Chain) (*page.Container, error) {
	complete, err := foldOldestFirst(chain.Versions)
	if err != nil {
		return nil, err
	}
	return page.NewContainer(complete), nil
}

func (differentialPolicy) IsMilestone(targetRevision, milestoneStride uint64) bool {
	return milestoneStride == 0 || targetRevision%milestoneStride == 0
}

func (differentialPolicy) Finalize(c *page.Container, chain *Chain, milestone bool) *page.RecordPage {
	if milestone {
		return mergeForPersist(c)
	}
	delta := c.Modified
	delta.PreviousVersion = chain.Root
	return delta
}
