package dataset

import (
	"fmt"
	"sort"
)

// Entity is one side of a Pair, together with its place in the graph.
type Entity interface {
	Family() Family
	Key() string
	Token() (string, error)
	References() []string
	Partners() []string
}

// TCREntry is a TCR as seen from a View.
type TCREntry struct {
	TCR   *TCR
	PMHCs []PMHCKey
	refs  []string
}

func (e TCREntry) Family() Family         { return TCRFamily }
func (e TCREntry) Key() string            { return e.TCR.Key().String() }
func (e TCREntry) Token() (string, error) { return e.TCR.Token(), nil }
func (e TCREntry) References() []string   { return e.refs }
func (e TCREntry) Partners() []string {
	out := make([]string, len(e.PMHCs))
	for i, k := range e.PMHCs {
		out[i] = k.String()
	}
	return out
}

// PMHCEntry is a pMHC as seen from a View.
type PMHCEntry struct {
	PMHC *PMHC
	TCRs []TCRKey
	refs []string
}

func (e PMHCEntry) Family() Family         { return PMHCFamily }
func (e PMHCEntry) Key() string            { return e.PMHC.Key().String() }
func (e PMHCEntry) Token() (string, error) { return e.PMHC.Token() }
func (e PMHCEntry) References() []string   { return e.refs }
func (e PMHCEntry) Partners() []string {
	out := make([]string, len(e.TCRs))
	for i, k := range e.TCRs {
		out[i] = k.String()
	}
	return out
}

// Pair is one position of a View: an observed interaction, oriented from
// Source to Target.
type Pair struct {
	Source Entity
	Target Entity

	// References supporting this particular interaction.
	References []string
}

// View is a read-only, oriented, positionally indexable dataset. Position i
// is the i-th distinct interaction when source entities are taken in
// first-seen order and, within each, their partners in first-seen order.
//
// Views share entities and the resolution memo with the dataset they were
// derived from. Reading a sequence attribute fills the memo, so concurrent
// readers must synchronize externally.
type View struct {
	index *Index
	cfg   Config
	edges []Edge
}

func newView(ix *Index, cfg Config) *View {
	v := &View{index: ix, cfg: cfg}

	if cfg.Source == PMHCFamily {
		for _, pk := range ix.pmhcOrder {
			for _, tk := range ix.pmhcs[pk].partners.order {
				v.edges = append(v.edges, Edge{TCR: tk, PMHC: pk})
			}
		}
		return v
	}

	for _, tk := range ix.tcrOrder {
		for _, pk := range ix.tcrs[tk].partners.order {
			v.edges = append(v.edges, Edge{TCR: tk, PMHC: pk})
		}
	}

	return v
}

// Len is the number of distinct interactions.
func (v *View) Len() int {
	return len(v.edges)
}

// At returns the interaction at position i, or an *IndexError.
func (v *View) At(i int) (Pair, error) {
	if i < 0 || i >= len(v.edges) {
		return Pair{}, &IndexError{Index: i, Len: len(v.edges)}
	}

	e := v.edges[i]
	tcr, pmhc := v.tcrEntry(e.TCR), v.pmhcEntry(e.PMHC)
	p := Pair{References: v.index.EdgeReferences(e)}
	if v.cfg.Source == PMHCFamily {
		p.Source, p.Target = pmhc, tcr
	} else {
		p.Source, p.Target = tcr, pmhc
	}

	return p, nil
}

// Edge returns the raw interaction at position i.
func (v *View) Edge(i int) (Edge, error) {
	if i < 0 || i >= len(v.edges) {
		return Edge{}, &IndexError{Index: i, Len: len(v.edges)}
	}
	return v.edges[i], nil
}

func (v *View) tcrEntry(k TCRKey) TCREntry {
	n := v.index.tcrs[k]
	return TCREntry{TCR: n.tcr, PMHCs: n.partners.keys(), refs: n.refs.sorted()}
}

func (v *View) pmhcEntry(k PMHCKey) PMHCEntry {
	n := v.index.pmhcs[k]
	return PMHCEntry{PMHC: n.pmhc, TCRs: n.partners.keys(), refs: n.refs.sorted()}
}

// Config returns the configuration the view was built with.
func (v *View) Config() Config {
	return v.cfg
}

// Index exposes the relational store behind the view.
func (v *View) Index() *Index {
	return v.index
}

// Sources lists the distinct source entities in view order.
func (v *View) Sources() []Entity {
	if v.cfg.Source == PMHCFamily {
		return v.pmhcEntities()
	}
	return v.tcrEntities()
}

// Targets lists the distinct target entities in first-seen order.
func (v *View) Targets() []Entity {
	if v.cfg.Target == PMHCFamily {
		return v.pmhcEntities()
	}
	return v.tcrEntities()
}

// NumSources is the number of distinct source entities.
func (v *View) NumSources() int {
	if v.cfg.Source == PMHCFamily {
		return v.index.NumPMHCs()
	}
	return v.index.NumTCRs()
}

// NumTargets is the number of distinct target entities.
func (v *View) NumTargets() int {
	if v.cfg.Target == PMHCFamily {
		return v.index.NumPMHCs()
	}
	return v.index.NumTCRs()
}

func (v *View) tcrEntities() []Entity {
	out := make([]Entity, 0, len(v.index.tcrOrder))
	for _, k := range v.index.tcrOrder {
		out = append(out, v.tcrEntry(k))
	}
	return out
}

func (v *View) pmhcEntities() []Entity {
	out := make([]Entity, 0, len(v.index.pmhcOrder))
	for _, k := range v.index.pmhcOrder {
		out = append(out, v.pmhcEntry(k))
	}
	return out
}

// ToMap maps each source token to the sorted, distinct tokens of its
// partners. Any resolution failure is returned.
func (v *View) ToMap() (map[string][]string, error) {
	sets := make(map[string]map[string]struct{})
	for i := range v.edges {
		p, err := v.At(i)
		if err != nil {
			return nil, err
		}
		src, err := p.Source.Token()
		if err != nil {
			return nil, err
		}
		trg, err := p.Target.Token()
		if err != nil {
			return nil, err
		}
		if sets[src] == nil {
			sets[src] = make(map[string]struct{})
		}
		sets[src][trg] = struct{}{}
	}

	out := make(map[string][]string, len(sets))
	for src, trgs := range sets {
		list := make([]string, 0, len(trgs))
		for t := range trgs {
			list = append(list, t)
		}
		sort.Strings(list)
		out[src] = list
	}

	return out, nil
}

// String summarizes the view, e.g.,
// "TCR:pMHC Dataset of N=6833. Mode:tcr -> pmhc."
func (v *View) String() string {
	return fmt.Sprintf("TCR:pMHC Dataset of N=%d. Mode:%s -> %s.", v.Len(), v.cfg.Source, v.cfg.Target)
}

// Summary is a longer, developer-facing description.
func (v *View) Summary() string {
	return fmt.Sprintf("TCRpMHCDataset(%s, tcrs=%d, pmhcs=%d, interactions=%d, resolved_alleles=%d)",
		v.cfg, v.index.NumTCRs(), v.index.NumPMHCs(), v.Len(), v.index.memo.len())
}
