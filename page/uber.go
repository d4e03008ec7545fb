package page

// familyUberRevisions is a sentinel family value, never part of the
// public Family enum, used only to key the uber page's own internal
// indirect-page tree (which addresses RevisionRootPage values keyed by
// revision number rather than record pages keyed by node key).
const familyUberRevisions Family = 0xff

// UberPage is the single top-level page whose write publishes a new
// revision (§3.4, GLOSSARY "Uber-page"): it holds the indirect tree of
// revision-root pages, the current revision number, and the bootstrap
// flag that marks a brand-new resource with no committed history yet.
type UberPage struct {
	CurrentRevision uint64
	Bootstrap       bool

	revisionRoot *PageReference // root of the revision-root indirect tree
}

func (p *UberPage) PageKind() Kind { return KindUberPage }

// NewUberPage constructs the bootstrap uber page for a brand-new
// resource at revision 0.
func NewUberPage() *UberPage {
	return &UberPage{
		Bootstrap:       true,
		revisionRoot:    &PageReference{},
	}
}

// RevisionRootTreeRoot returns the root reference of the indirect tree
// addressing revision-root pages.
func (p *UberPage) RevisionRootTreeRoot() *PageReference {
	if p.revisionRoot == nil {
		p.revisionRoot = &PageReference{}
	}
	return p.revisionRoot
}

// SetRevisionRootTreeRoot replaces the root reference.
func (p *UberPage) SetRevisionRootTreeRoot(ref *PageReference) {
	p.revisionRoot = ref
}

// PrepareRevisionRootLeaf descends the uber page's internal indirect
// tree to the leaf slot addressing the given revision number,
// cloning every touched indirect page into log (§4.4).
func PrepareRevisionRootLeaf(uber *UberPage, revision uint64, log PageLog, loader PageLoader) (*PageReference, error) {
	return PrepareLeaf(uber.RevisionRootTreeRoot(), revision, familyUberRevisions, 0, log, loader)
}

// DescendRevisionRootLeaf is the read-only counterpart of
// PrepareRevisionRootLeaf, used by the page read transaction (C6) to
// locate a committed revision's root page without staging anything.
func DescendRevisionRootLeaf(uber *UberPage, revision uint64, loader PageLoader) (*PageReference, error) {
	return Descend(uber.RevisionRootTreeRoot(), revision, familyUberRevisions, 0, loader)
}

// RevisionRootFamily exposes the sentinel family value used to key the
// uber page's own revision-root tree, so callers outside this package
// (the page write transaction, walking every staged indirect page at
// commit time) can recognize it without re-deriving IsDocumentFamily's
// complement.
func RevisionRootFamily() Family { return familyUberRevisions }
