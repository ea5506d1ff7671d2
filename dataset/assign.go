package dataset

import (
	"math"
	"math/rand"
	"sort"
)

// groupPart is the share of a group's interactions that touch one secondary
// entity and carry one allele.
type groupPart struct {
	sid    int
	allele int
	n      float64
}

// secondaryTally counts, for one secondary entity, its interactions on each
// side by allele. The side holding more interactions owns the entity (train
// on a tie); the other side's interactions are dropped.
type secondaryTally struct {
	train, test   float64
	trainA, testA map[int]float64
}

func (s *secondaryTally) testOwns() bool {
	return s.test > s.train
}

// retained accumulates the interactions kept on each side after ownership is
// resolved, and the dropped remainder.
type retained struct {
	test, train, dropped float64
	aTest, aTrain        map[int]float64
}

func newRetained() retained {
	return retained{aTest: make(map[int]float64), aTrain: make(map[int]float64)}
}

func (r *retained) add(sign float64, s *secondaryTally) {
	if s.testOwns() {
		r.test += sign * s.test
		r.dropped += sign * s.train
		for a, n := range s.testA {
			r.aTest[a] += sign * n
		}
		return
	}

	r.train += sign * s.train
	r.dropped += sign * s.test
	for a, n := range s.trainA {
		r.aTrain[a] += sign * n
	}
}

// assignment is the state of the greedy search. Every group starts in train.
type assignment struct {
	testSize float64
	balance  bool

	groups []*edgeGroup
	inTest []bool
	sec    []*secondaryTally
	totals retained
}

func newAssignment(groups []*edgeGroup, nSecondary int, opts SplitOptions) *assignment {
	as := &assignment{
		testSize: opts.TestSize,
		balance:  opts.BalanceOnAllele,
		groups:   groups,
		inTest:   make([]bool, len(groups)),
		sec:      make([]*secondaryTally, nSecondary),
		totals:   newRetained(),
	}
	for i := range as.sec {
		as.sec[i] = &secondaryTally{trainA: make(map[int]float64), testA: make(map[int]float64)}
	}

	for _, g := range groups {
		for _, p := range g.parts {
			s := as.sec[p.sid]
			s.train += p.n
			s.trainA[p.allele] += p.n
		}
	}
	for _, s := range as.sec {
		as.totals.add(1, s)
	}

	return as
}

// cost is the objective the search minimizes: the distance of retained test
// interactions from their target share, plus every dropped interaction, plus
// (when balancing) the same distance for each allele.
func (as *assignment) cost(test, train, dropped float64, alleles []int, aTest, aTrain func(int) float64) float64 {
	c := math.Abs(test-as.testSize*(test+train)) + dropped
	if as.balance {
		for _, a := range alleles {
			te, tr := aTest(a), aTrain(a)
			c += math.Abs(te - as.testSize*(te+tr))
		}
	}

	return c
}

// delta reports how the cost changes if the groups in move go to test.
func (as *assignment) delta(move []int) float64 {
	added := make(map[int]*secondaryTally)
	var sids []int
	for _, gi := range move {
		for _, p := range as.groups[gi].parts {
			d, ok := added[p.sid]
			if !ok {
				d = &secondaryTally{trainA: make(map[int]float64)}
				added[p.sid] = d
				sids = append(sids, p.sid)
			}
			d.train += p.n
			d.trainA[p.allele] += p.n
		}
	}
	sort.Ints(sids)

	change := newRetained()
	for _, sid := range sids {
		before := as.sec[sid]
		after := before.moved(added[sid])
		change.add(-1, before)
		change.add(1, after)
	}

	var touched []int
	for a := range change.aTest {
		touched = append(touched, a)
	}
	for a := range change.aTrain {
		if _, ok := change.aTest[a]; !ok {
			touched = append(touched, a)
		}
	}
	sort.Ints(touched)

	t := as.totals
	old := as.cost(t.test, t.train, t.dropped, touched,
		func(a int) float64 { return t.aTest[a] },
		func(a int) float64 { return t.aTrain[a] })
	next := as.cost(t.test+change.test, t.train+change.train, t.dropped+change.dropped, touched,
		func(a int) float64 { return t.aTest[a] + change.aTest[a] },
		func(a int) float64 { return t.aTrain[a] + change.aTrain[a] })

	return next - old
}

// moved is s after the interactions counted in d switch from train to test.
func (s *secondaryTally) moved(d *secondaryTally) *secondaryTally {
	out := &secondaryTally{
		train:  s.train - d.train,
		test:   s.test + d.train,
		trainA: make(map[int]float64, len(s.trainA)),
		testA:  make(map[int]float64, len(s.testA)+len(d.trainA)),
	}
	for a, n := range s.trainA {
		if n -= d.trainA[a]; n != 0 {
			out.trainA[a] = n
		}
	}
	for a, n := range s.testA {
		out.testA[a] = n
	}
	for a, n := range d.trainA {
		out.testA[a] += n
	}

	return out
}

func (as *assignment) apply(move []int) {
	for _, gi := range move {
		as.inTest[gi] = true
		for _, p := range as.groups[gi].parts {
			s := as.sec[p.sid]
			as.totals.add(-1, s)
			s.train -= p.n
			s.test += p.n
			if s.trainA[p.allele] -= p.n; s.trainA[p.allele] == 0 {
				delete(s.trainA, p.allele)
			}
			s.testA[p.allele] += p.n
			as.totals.add(1, s)
		}
	}
}

// assignGroups greedily moves groups into test. A candidate move is either a
// single group or, when a secondary family is in play, every group touching
// one secondary entity. Each round applies the candidate that most reduces
// the cost; the search stops when none does. Candidates are scanned in a
// seeded shuffle and ties go to the earlier one.
func assignGroups(groups []*edgeGroup, pinned []bool, nSecondary int, bundles bool, opts SplitOptions) []bool {
	as := newAssignment(groups, nSecondary, opts)

	var candidates [][]int
	for gi := range groups {
		if !pinned[gi] {
			candidates = append(candidates, []int{gi})
		}
	}
	if bundles {
		bySecondary := make([][]int, nSecondary)
		for gi, g := range groups {
			if pinned[gi] {
				continue
			}
			for _, p := range g.parts {
				members := bySecondary[p.sid]
				if len(members) == 0 || members[len(members)-1] != gi {
					bySecondary[p.sid] = append(members, gi)
				}
			}
		}
		for _, members := range bySecondary {
			if len(members) > 1 {
				candidates = append(candidates, members)
			}
		}
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	rng.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })

	const eps = 1e-9
	for {
		var best []int
		bestDelta := -eps
		for _, c := range candidates {
			move := as.pending(c)
			if len(move) == 0 {
				continue
			}
			if d := as.delta(move); d < bestDelta {
				best, bestDelta = move, d
			}
		}
		if best == nil {
			break
		}
		as.apply(best)
	}

	return as.inTest
}

// pending drops the groups of c that are already in test.
func (as *assignment) pending(c []int) []int {
	var out []int
	for _, gi := range c {
		if !as.inTest[gi] {
			out = append(out, gi)
		}
	}

	return out
}

// attachParts fills in the parts of every group and returns the number of
// secondary entities. Without a secondary family each group stands for
// itself, so a move never drops anything.
func attachParts(groups []*edgeGroup, alleles *alleleAxis, secondary Family) int {
	sids := make(map[interface{}]int)
	sidOf := func(gi int, e Edge) int {
		var k interface{} = gi
		switch secondary {
		case TCRFamily:
			k = e.TCR
		case PMHCFamily:
			k = e.PMHC
		}
		id, ok := sids[k]
		if !ok {
			id = len(sids)
			sids[k] = id
		}
		return id
	}

	for gi, g := range groups {
		index := make(map[[2]int]int)
		g.parts = g.parts[:0]
		for _, e := range g.edges {
			key := [2]int{sidOf(gi, e), alleles.index[e.PMHC.Allele]}
			i, ok := index[key]
			if !ok {
				i = len(g.parts)
				index[key] = i
				g.parts = append(g.parts, groupPart{sid: key[0], allele: key[1]})
			}
			g.parts[i].n++
		}
	}

	return len(sids)
}
