package dataset

import (
	"fmt"
	"sort"
)

// Edge is one observed TCR:pMHC interaction.
type Edge struct {
	TCR  TCRKey
	PMHC PMHCKey
}

type refSet map[string]struct{}

func (s refSet) add(ref string) {
	if ref != "" {
		s[ref] = struct{}{}
	}
}

func (s refSet) sorted() []string {
	out := make([]string, 0, len(s))
	for ref := range s {
		out = append(out, ref)
	}
	sort.Strings(out)

	return out
}

// keySet is an insertion-ordered set.
type keySet[K comparable] struct {
	order []K
	seen  map[K]struct{}
}

func newKeySet[K comparable]() *keySet[K] {
	return &keySet[K]{seen: make(map[K]struct{})}
}

func (s *keySet[K]) add(k K) bool {
	if _, ok := s.seen[k]; ok {
		return false
	}
	s.seen[k] = struct{}{}
	s.order = append(s.order, k)

	return true
}

func (s *keySet[K]) has(k K) bool {
	_, ok := s.seen[k]
	return ok
}

func (s *keySet[K]) len() int {
	return len(s.order)
}

func (s *keySet[K]) keys() []K {
	out := make([]K, len(s.order))
	copy(out, s.order)
	return out
}

type tcrNode struct {
	tcr      *TCR
	partners *keySet[PMHCKey]
	refs     refSet
}

type pmhcNode struct {
	pmhc     *PMHC
	partners *keySet[TCRKey]
	refs     refSet
}

// Index is the bipartite interaction graph: canonical TCR and pMHC entities,
// the edges between them, and the references supporting each edge. An
// entity's partners and references are derived from its edges, so the two
// sides can never disagree.
type Index struct {
	tcrs  map[TCRKey]*tcrNode
	pmhcs map[PMHCKey]*pmhcNode
	edges map[Edge]refSet

	tcrOrder  []TCRKey
	pmhcOrder []PMHCKey
	edgeOrder []Edge

	memo *resolutionMemo
}

func newIndex(memo *resolutionMemo) *Index {
	return &Index{
		tcrs:  make(map[TCRKey]*tcrNode),
		pmhcs: make(map[PMHCKey]*pmhcNode),
		edges: make(map[Edge]refSet),
		memo:  memo,
	}
}

// add records that t binds p according to ref. Entities already present under
// the same key are reused, so the first record of an entity is canonical. It
// reports whether the edge was new.
func (ix *Index) add(t *TCR, p *PMHC, ref string) bool {
	tk, pk := t.Key(), p.Key()

	tn, ok := ix.tcrs[tk]
	if !ok {
		tn = &tcrNode{tcr: t, partners: newKeySet[PMHCKey](), refs: refSet{}}
		ix.tcrs[tk] = tn
		ix.tcrOrder = append(ix.tcrOrder, tk)
	}

	pn, ok := ix.pmhcs[pk]
	if !ok {
		pn = &pmhcNode{pmhc: p, partners: newKeySet[TCRKey](), refs: refSet{}}
		ix.pmhcs[pk] = pn
		ix.pmhcOrder = append(ix.pmhcOrder, pk)
	}

	e := Edge{TCR: tk, PMHC: pk}
	refs, seen := ix.edges[e]
	if !seen {
		refs = refSet{}
		ix.edges[e] = refs
		ix.edgeOrder = append(ix.edgeOrder, e)
	}

	tn.partners.add(pk)
	pn.partners.add(tk)
	refs.add(ref)
	tn.refs.add(ref)
	pn.refs.add(ref)

	return !seen
}

// addEdgeFrom copies edge e, with its references, from src. The canonical
// entity pointers of src are reused.
func (ix *Index) addEdgeFrom(src *Index, e Edge) {
	t := src.tcrs[e.TCR].tcr
	p := src.pmhcs[e.PMHC].pmhc

	refs := src.edges[e]
	if len(refs) == 0 {
		ix.add(t, p, "")
		return
	}
	for _, ref := range refs.sorted() {
		ix.add(t, p, ref)
	}
}

// subIndex builds an index over the given edges of ix. The result shares
// entity pointers and the resolution memo with ix.
func (ix *Index) subIndex(edges []Edge) *Index {
	out := newIndex(ix.memo)
	for _, e := range edges {
		out.addEdgeFrom(ix, e)
	}

	return out
}

func (ix *Index) NumTCRs() int  { return len(ix.tcrOrder) }
func (ix *Index) NumPMHCs() int { return len(ix.pmhcOrder) }
func (ix *Index) NumEdges() int { return len(ix.edgeOrder) }

// TCR returns the canonical TCR for k.
func (ix *Index) TCR(k TCRKey) (*TCR, bool) {
	n, ok := ix.tcrs[k]
	if !ok {
		return nil, false
	}
	return n.tcr, true
}

// PMHC returns the canonical pMHC for k.
func (ix *Index) PMHC(k PMHCKey) (*PMHC, bool) {
	n, ok := ix.pmhcs[k]
	if !ok {
		return nil, false
	}
	return n.pmhc, true
}

// TCRs lists the canonical TCRs in first-seen order.
func (ix *Index) TCRs() []*TCR {
	out := make([]*TCR, 0, len(ix.tcrOrder))
	for _, k := range ix.tcrOrder {
		out = append(out, ix.tcrs[k].tcr)
	}
	return out
}

// PMHCs lists the canonical pMHCs in first-seen order.
func (ix *Index) PMHCs() []*PMHC {
	out := make([]*PMHC, 0, len(ix.pmhcOrder))
	for _, k := range ix.pmhcOrder {
		out = append(out, ix.pmhcs[k].pmhc)
	}
	return out
}

// Edges lists every edge in first-seen order.
func (ix *Index) Edges() []Edge {
	out := make([]Edge, len(ix.edgeOrder))
	copy(out, ix.edgeOrder)
	return out
}

// HasEdge reports whether e was observed.
func (ix *Index) HasEdge(e Edge) bool {
	_, ok := ix.edges[e]
	return ok
}

// PMHCsOf lists the cognate pMHCs of a TCR in first-seen order.
func (ix *Index) PMHCsOf(k TCRKey) []PMHCKey {
	n, ok := ix.tcrs[k]
	if !ok {
		return nil
	}
	return n.partners.keys()
}

// TCRsOf lists the cognate TCRs of a pMHC in first-seen order.
func (ix *Index) TCRsOf(k PMHCKey) []TCRKey {
	n, ok := ix.pmhcs[k]
	if !ok {
		return nil
	}
	return n.partners.keys()
}

// TCRReferences lists, sorted, every reference supporting an edge of the TCR.
func (ix *Index) TCRReferences(k TCRKey) []string {
	n, ok := ix.tcrs[k]
	if !ok {
		return nil
	}
	return n.refs.sorted()
}

// PMHCReferences lists, sorted, every reference supporting an edge of the
// pMHC.
func (ix *Index) PMHCReferences(k PMHCKey) []string {
	n, ok := ix.pmhcs[k]
	if !ok {
		return nil
	}
	return n.refs.sorted()
}

// EdgeReferences lists, sorted, the references supporting e.
func (ix *Index) EdgeReferences(e Edge) []string {
	return ix.edges[e].sorted()
}

// CheckConsistency verifies that the partner sets of both families describe
// exactly the edge set, and that entity references are the union of the
// references of their edges.
func (ix *Index) CheckConsistency() error {
	tcrRefs := make(map[TCRKey]refSet)
	pmhcRefs := make(map[PMHCKey]refSet)

	for _, e := range ix.edgeOrder {
		tn, ok := ix.tcrs[e.TCR]
		if !ok {
			return fmt.Errorf("edge %v names unknown TCR", e)
		}
		pn, ok := ix.pmhcs[e.PMHC]
		if !ok {
			return fmt.Errorf("edge %v names unknown pMHC", e)
		}
		if !tn.partners.has(e.PMHC) || !pn.partners.has(e.TCR) {
			return fmt.Errorf("edge %v is not recorded on both sides", e)
		}

		if tcrRefs[e.TCR] == nil {
			tcrRefs[e.TCR] = refSet{}
		}
		if pmhcRefs[e.PMHC] == nil {
			pmhcRefs[e.PMHC] = refSet{}
		}
		for ref := range ix.edges[e] {
			tcrRefs[e.TCR].add(ref)
			pmhcRefs[e.PMHC].add(ref)
		}
	}

	for k, n := range ix.tcrs {
		for _, pk := range n.partners.order {
			if !ix.HasEdge(Edge{TCR: k, PMHC: pk}) {
				return fmt.Errorf("TCR %s lists partner %s without an edge", k, pk)
			}
		}
		if !sameRefs(n.refs, tcrRefs[k]) {
			return fmt.Errorf("TCR %s references disagree with its edges", k)
		}
	}
	for k, n := range ix.pmhcs {
		for _, tk := range n.partners.order {
			if !ix.HasEdge(Edge{TCR: tk, PMHC: k}) {
				return fmt.Errorf("pMHC %s lists partner %s without an edge", k, tk)
			}
		}
		if !sameRefs(n.refs, pmhcRefs[k]) {
			return fmt.Errorf("pMHC %s references disagree with its edges", k)
		}
	}

	return nil
}

func sameRefs(a, b refSet) bool {
	if len(a) != len(b) {
		return false
	}
	for ref := range a {
		if _, ok := b[ref]; !ok {
			return false
		}
	}
	return true
}
