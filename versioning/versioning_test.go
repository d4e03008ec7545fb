package versioning

import (
	"testing"

	"sirixgo/node"
	"sirixgo/page"
)

func rp(rev uint64, prev *page.PageReference, entries map[node.Key]int) *page.RecordPage {
	p := page.NewRecordPage(page.FamilyRecord, 0, 0, page.DefaultCapacity, rev)
	p.PreviousVersion = prev
	for k, v := range entries {
		p.Put(k, node.NewElementNode(node.Key(v), 0, 1, 0))
	}
	return p
}

func TestFullPolicyReadIsLatestVerbatim(t *testing.T) {
	policy, err := New(Full, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	latest := rp(3, nil, map[node.Key]int{1: 1})
	chain := &Chain{Versions: []*page.RecordPage{latest}}

	got, err := policy.CombineForRead(chain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != latest {
		t.Fatalf("Full policy must return the latest page unchanged")
	}
	if !policy.IsMilestone(3, 10) {
		t.Fatalf("every revision is a milestone under Full")
	}
}

func TestDifferentialCombineForReadMergesDeltaOverMilestone(t *testing.T) {
	policy, err := New(Differential, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	milestone := rp(1, nil, map[node.Key]int{1: 1, 2: 2})
	delta := rp(2, &page.PageReference{Key: 50}, map[node.Key]int{2: 22, 3: 3})
	chain := &Chain{Versions: []*page.RecordPage{milestone, delta}, Root: &page.PageReference{Key: 50}}

	got, err := policy.CombineForRead(chain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Len() != 3 {
		t.Fatalf("expected 3 live entries after merge, got %d", got.Len())
	}
	e2, _ := got.Get(2)
	if e2.(*node.ElementNode).RecordKey() != 22 {
		t.Fatalf("delta entry must win over milestone entry for the same key")
	}
}

func TestDifferentialFinalizeDeltaChainsToMilestone(t *testing.T) {
	policy, err := New(Differential, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	milestoneRef := &page.PageReference{Key: 50}
	complete := rp(1, nil, map[node.Key]int{1: 1})
	chain := &Chain{Versions: []*page.RecordPage{complete}, Root: milestoneRef, Latest: milestoneRef}

	c, err := policy.CombineForModification(chain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Put(2, node.NewElementNode(2, 0, 1, 0))

	persisted := policy.Finalize(c, chain, false)
	if persisted.PreviousVersion != milestoneRef {
		t.Fatalf("non-milestone differential write must chain to the milestone reference")
	}
	if persisted.Len() != 1 {
		t.Fatalf("differential delta must carry only the newly modified entries, got %d", persisted.Len())
	}

	full := policy.Finalize(c, chain, true)
	if full.PreviousVersion != nil {
		t.Fatalf("milestone write must not chain to a previous version")
	}
	if full.Len() != 2 {
		t.Fatalf("milestone write must contain the full merged state, got %d", full.Len())
	}
}

func TestIncrementalFinalizeChainsToImmediatePredecessor(t *testing.T) {
	policy, err := New(Incremental, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	latestRef := &page.PageReference{Key: 77}
	complete := rp(4, nil, map[node.Key]int{1: 1})
	chain := &Chain{Versions: []*page.RecordPage{complete}, Root: &page.PageReference{Key: 1}, Latest: latestRef}

	c, err := policy.CombineForModification(chain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	persisted := policy.Finalize(c, chain, false)
	if persisted.PreviousVersion != latestRef {
		t.Fatalf("incremental delta must chain to the immediately preceding version, not the milestone")
	}
}

func TestCollectVersionsStopsAtFullDumpOrHopLimit(t *testing.T) {
	milestoneRef := &page.PageReference{Key: 1}
	deltaRef := &page.PageReference{Key: 2}
	milestone := rp(1, nil, nil)
	delta1 := rp(2, milestoneRef, nil)
	delta2 := rp(3, deltaRef, nil)

	store := map[*page.PageReference]*page.RecordPage{
		milestoneRef: milestone,
		deltaRef:     delta1,
	}
	load := func(ref *page.PageReference) (*page.RecordPage, error) {
		return store[ref], nil
	}

	chain, err := CollectVersions(delta2, deltaRef, load, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chain.Versions) != 3 {
		t.Fatalf("expected unbounded walk to reach the milestone, got %d versions", len(chain.Versions))
	}
	if chain.Versions[0] != milestone {
		t.Fatalf("expected the oldest entry to be the milestone")
	}

	bounded, err := CollectVersions(delta2, deltaRef, load, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bounded.Versions) != 2 {
		t.Fatalf("expected a 1-hop bound to stop after one ancestor, got %d versions", len(bounded.Versions))
	}
}
