package versioning

import "sirixgo/page"

// fullPolicy stores a complete page on every write (§4.5 "Full"): reads
// never need more than the single latest version, and every write is a
// full dump regardless of revision number.
type fullPolicy struct{}

func (fullPolicy) Kind() Kind { return Full }

func (fullPolicy) MaxHops() int { return 0 }

func (fullPolicy) CombineForRead(chain *Chain) (*page.RecordPage, error) {
	if len(chain.Versions) == 0 {
		return nil, errNoVersions
	}
	return chain.Versions[len(chain.Versions)-1], nil
}

func (fullPolicy) CombineForModification(chain *Chain) (*page.Container, error) {
	complete, err := fullPolicy{}.CombineForRead(chain)
	if err != nil {
		return nil, err
	}
	return page.NewContainer(complete), nil
}

func (fullPolicy) IsMilestone(targetRevision, milestoneStride uint64) bool { return true }

func (fullPolicy) Finalize(c *page.Container, chain *Chain, milestone bool) *page.RecordPage {
	return mergeForPersist(c)
}
