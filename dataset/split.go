package dataset

import (
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/theodesp/unionfind"
)

// ComponentAttribute groups interactions by connected component of the
// interaction graph. No TCR or pMHC can then appear in both partitions.
const ComponentAttribute = "Component"

// GroupSeparator joins attribute values into a group key.
const GroupSeparator = "::"

var tcrAttributes = []string{"CDR3b", "CDR3a", "TRBV", "TRBJ", "TRBD", "TRAV", "TRAJ", "TRAD", "TRB_stitched", "TRA_stitched"}

var pmhcAttributes = []string{"Epitope", "Allele"}

// SplitOptions controls Split.
type SplitOptions struct {
	// TestSize is the target share of interactions placed in test. It must
	// lie strictly between 0 and 1.
	TestSize float64

	// BalanceOnAllele steers the test partition toward the allele
	// distribution of the whole dataset, and keeps alleles seen only once
	// in train.
	BalanceOnAllele bool

	// SplitOn names the attributes whose values may not be shared between
	// train and test. Empty means every interaction is its own group.
	SplitOn []string

	// Seed orders otherwise tied choices.
	Seed int64

	// KeepCrossEdges retains interactions of a secondary entity that end up
	// on both sides instead of dropping them from the minority side.
	KeepCrossEdges bool
}

// DefaultSplitOptions is an 80/20 allele-balanced split of interactions.
func DefaultSplitOptions() SplitOptions {
	return SplitOptions{
		TestSize:        0.2,
		BalanceOnAllele: true,
		SplitOn:         nil,
		Seed:            42,
		KeepCrossEdges:  false,
	}
}

// SplitReport describes how a split was achieved.
type SplitReport struct {
	Groups       int
	TestGroups   int
	PinnedGroups int

	TrainEdges int
	TestEdges  int

	// Dropped counts interactions removed because their secondary entity
	// was owned by the other partition. DroppedEdges lists them.
	Dropped      int
	DroppedEdges []Edge

	TargetTestEdges      float64
	AchievedTestFraction float64

	// AlleleL1 and Hellinger compare the allele distribution of test with
	// that of the whole dataset. BalanceP is the chi-square homogeneity
	// p-value of train versus test allele counts.
	AlleleL1  float64
	Hellinger float64
	BalanceP  float64

	// WorstAllele is the allele whose train/test proportions differ most by
	// Fisher's exact test, with WorstAlleleP its two-tailed p-value.
	WorstAllele  string
	WorstAlleleP float64

	// GroupSizes holds the interaction count of every group, in group order.
	GroupSizes      []float64
	MeanGroupSize   float64
	GroupSizeSD     float64
	MedianGroupSize float64
	MaxGroupSize    float64
}

func (r SplitReport) String() string {
	return fmt.Sprintf("groups=%d (test=%d, pinned=%d, mean size %.2f, sd %.2f) train=%d test=%d dropped=%d test_fraction=%.4f (target %.1f edges) allele_l1=%.4f hellinger=%.4f balance_p=%.4g worst_allele=%s (p=%.4g)",
		r.Groups, r.TestGroups, r.PinnedGroups, r.MeanGroupSize, r.GroupSizeSD, r.TrainEdges, r.TestEdges, r.Dropped,
		r.AchievedTestFraction, r.TargetTestEdges, r.AlleleL1, r.Hellinger, r.BalanceP, r.WorstAllele, r.WorstAlleleP)
}

// Split partitions v into train and test views such that no group of
// SplitOn values has interactions on both sides. Whole groups are moved to
// test, alone or together with every group sharing a TCR or pMHC outside the
// split key, choosing the move that most reduces the distance to the target
// test size (and, when balancing, to the target allele counts) counted over
// the interactions that survive dropping. A split that leaves test empty is
// a *ConfigurationError. The result does not depend on anything but v and
// opts.
func (v *View) Split(opts SplitOptions) (*View, *View, SplitReport, error) {
	return Split(v, opts)
}

// Split is the function form of View.Split.
func Split(v *View, opts SplitOptions) (*View, *View, SplitReport, error) {
	report := SplitReport{}

	if !(opts.TestSize > 0 && opts.TestSize < 1) {
		return nil, nil, report, configErrorf("test size must lie strictly between 0 and 1, got %v", opts.TestSize)
	}

	secondary, err := secondaryFamily(opts.SplitOn)
	if err != nil {
		return nil, nil, report, err
	}

	groups, err := v.groupEdges(opts.SplitOn)
	if err != nil {
		return nil, nil, report, err
	}
	report.Groups = len(groups)
	if len(groups) < 2 {
		return nil, nil, report, configErrorf("splitting on %v yields %d group(s); at least 2 are required", opts.SplitOn, len(groups))
	}

	alleles := newAlleleAxis(v, groups)

	pinned := make([]bool, len(groups))
	if opts.BalanceOnAllele {
		for gi, g := range groups {
			for _, ac := range g.alleles {
				if alleles.total[ac.idx] == 1 {
					pinned[gi] = true
					report.PinnedGroups++
					break
				}
			}
		}
	}
	if report.PinnedGroups == len(groups) {
		return nil, nil, report, configErrorf("every group carries an allele seen only once; nothing can be placed in test")
	}

	total := float64(len(v.edges))
	report.TargetTestEdges = opts.TestSize * total

	// Score moves by what survives ownership of the secondary family, unless
	// nothing will be dropped.
	scored := secondary
	if opts.KeepCrossEdges {
		scored = ""
	}
	nSecondary := attachParts(groups, alleles, scored)
	inTest := assignGroups(groups, pinned, nSecondary, scored != "", opts)

	var trainEdges, testEdges []Edge
	for gi, g := range groups {
		if inTest[gi] {
			report.TestGroups++
			testEdges = append(testEdges, g.edges...)
		} else {
			trainEdges = append(trainEdges, g.edges...)
		}
	}

	if secondary != "" && !opts.KeepCrossEdges {
		trainEdges, testEdges, report.DroppedEdges = dropCrossEdges(secondary, trainEdges, testEdges)
		report.Dropped = len(report.DroppedEdges)
		if report.Dropped > 0 {
			log.Printf("Dropped %d interactions whose %s also appears on the other side of the split\n", report.Dropped, secondary.Label())
		}
	}

	// Keep the parent's order within each partition
	trainEdges = v.inViewOrder(trainEdges)
	testEdges = v.inViewOrder(testEdges)

	train := newView(v.index.subIndex(trainEdges), v.cfg)
	test := newView(v.index.subIndex(testEdges), v.cfg)

	report.TrainEdges = train.Len()
	report.TestEdges = test.Len()
	if n := report.TrainEdges + report.TestEdges; n > 0 {
		report.AchievedTestFraction = float64(report.TestEdges) / float64(n)
	}
	if report.TestEdges == 0 {
		return nil, nil, report, configErrorf("splitting on %v left no interactions in test (%d groups, %d dropped)", opts.SplitOn, report.Groups, report.Dropped)
	}
	if math.Abs(report.AchievedTestFraction-opts.TestSize) > 0.05 {
		log.Printf("Achieved test fraction %.4f is far from the requested %.4f; groups on %v are coarse\n", report.AchievedTestFraction, opts.TestSize, opts.SplitOn)
	}

	fillBalance(&report, v, trainEdges, testEdges)
	fillGroupSizes(&report, groups)

	return train, test, report, nil
}

// edgeGroup is one leakage unit.
type edgeGroup struct {
	key     string
	edges   []Edge
	alleles []alleleCount
	parts   []groupPart
}

type alleleCount struct {
	idx int
	n   float64
}

// groupEdges buckets the view's interactions by the joined values of attrs.
// Groups are returned in order of first appearance.
func (v *View) groupEdges(attrs []string) ([]*edgeGroup, error) {
	var keyOf func(i int, e Edge) string

	switch {
	case len(attrs) == 0:
		keyOf = func(i int, _ Edge) string { return strconv.Itoa(i) }
	case len(attrs) == 1 && attrs[0] == ComponentAttribute:
		components := v.components()
		keyOf = func(_ int, e Edge) string { return strconv.Itoa(components[e.TCR]) }
	default:
		for _, attr := range attrs {
			if attr == ComponentAttribute {
				return nil, configErrorf("%s cannot be combined with other split attributes", ComponentAttribute)
			}
		}
		keyOf = func(_ int, e Edge) string {
			t := v.index.tcrs[e.TCR].tcr
			p := v.index.pmhcs[e.PMHC].pmhc
			values := make([]string, len(attrs))
			for i, attr := range attrs {
				if val, ok := t.attribute(attr); ok {
					values[i] = val
				} else {
					values[i], _ = p.attribute(attr)
				}
			}
			return strings.Join(values, GroupSeparator)
		}
	}

	byKey := make(map[string]*edgeGroup)
	var out []*edgeGroup
	for i, e := range v.edges {
		k := keyOf(i, e)
		g, ok := byKey[k]
		if !ok {
			g = &edgeGroup{key: k}
			byKey[k] = g
			out = append(out, g)
		}
		g.edges = append(g.edges, e)
	}

	return out, nil
}

// components labels every TCR with the connected component of the
// interaction graph it belongs to.
func (v *View) components() map[TCRKey]int {
	ix := v.index
	nT := len(ix.tcrOrder)

	tcrID := make(map[TCRKey]int, nT)
	for i, k := range ix.tcrOrder {
		tcrID[k] = i
	}
	pmhcID := make(map[PMHCKey]int, len(ix.pmhcOrder))
	for i, k := range ix.pmhcOrder {
		pmhcID[k] = nT + i
	}

	uf := unionfind.NewThreadSafeUnionFind(nT + len(ix.pmhcOrder))
	for _, e := range v.edges {
		uf.Union(tcrID[e.TCR], pmhcID[e.PMHC])
	}

	out := make(map[TCRKey]int, nT)
	for k, id := range tcrID {
		root := uf.Root(id)
		if root < 0 {
			root = id
		}
		out[k] = root
	}

	return out
}

// secondaryFamily is the family whose identity the split key does not cover,
// or "" when the key spans both families or none.
func secondaryFamily(attrs []string) (Family, error) {
	if len(attrs) == 0 {
		return "", nil
	}

	var tcr, pmhc bool
	for _, attr := range attrs {
		switch {
		case attr == ComponentAttribute:
		case contains(tcrAttributes, attr):
			tcr = true
		case contains(pmhcAttributes, attr):
			pmhc = true
		default:
			return "", configErrorf("cannot split on unknown attribute %q; expected one of %s, %s or %s",
				attr, strings.Join(tcrAttributes, ", "), strings.Join(pmhcAttributes, ", "), ComponentAttribute)
		}
	}

	switch {
	case tcr && !pmhc:
		return PMHCFamily, nil
	case pmhc && !tcr:
		return TCRFamily, nil
	}

	return "", nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// dropCrossEdges gives each entity of the secondary family to the partition
// holding most of its interactions (train on a tie) and removes its
// interactions from the other partition.
func dropCrossEdges(secondary Family, train, test []Edge) ([]Edge, []Edge, []Edge) {
	keyOf := func(e Edge) interface{} {
		if secondary == TCRFamily {
			return e.TCR
		}
		return e.PMHC
	}

	trainCount := make(map[interface{}]int)
	testCount := make(map[interface{}]int)
	for _, e := range train {
		trainCount[keyOf(e)]++
	}
	for _, e := range test {
		testCount[keyOf(e)]++
	}

	var dropped []Edge
	keepTrain := make([]Edge, 0, len(train))
	for _, e := range train {
		k := keyOf(e)
		if testCount[k] > trainCount[k] {
			dropped = append(dropped, e)
			continue
		}
		keepTrain = append(keepTrain, e)
	}
	keepTest := make([]Edge, 0, len(test))
	for _, e := range test {
		k := keyOf(e)
		if trainCount[k] > 0 && testCount[k] <= trainCount[k] {
			dropped = append(dropped, e)
			continue
		}
		keepTest = append(keepTest, e)
	}

	return keepTrain, keepTest, dropped
}

func (v *View) inViewOrder(edges []Edge) []Edge {
	pos := make(map[Edge]int, len(v.edges))
	for i, e := range v.edges {
		pos[e] = i
	}

	out := make([]Edge, len(edges))
	copy(out, edges)
	sort.Slice(out, func(i, j int) bool { return pos[out[i]] < pos[out[j]] })

	return out
}

// alleleAxis numbers the alleles of a view in first-seen order and counts
// interactions per allele.
type alleleAxis struct {
	names []string
	index map[string]int
	total []float64
	edges int
}

func newAlleleAxis(v *View, groups []*edgeGroup) *alleleAxis {
	ax := &alleleAxis{index: make(map[string]int), edges: len(v.edges)}

	for _, g := range groups {
		counts := make(map[int]float64)
		var seen []int
		for _, e := range g.edges {
			idx := ax.id(e.PMHC.Allele)
			ax.total[idx]++
			if _, ok := counts[idx]; !ok {
				seen = append(seen, idx)
			}
			counts[idx]++
		}
		for _, idx := range seen {
			g.alleles = append(g.alleles, alleleCount{idx: idx, n: counts[idx]})
		}
	}

	return ax
}

func (ax *alleleAxis) id(name string) int {
	if i, ok := ax.index[name]; ok {
		return i
	}
	i := len(ax.names)
	ax.index[name] = i
	ax.names = append(ax.names, name)
	ax.total = append(ax.total, 0)

	return i
}
