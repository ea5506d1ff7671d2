package dataset

import (
	"github.com/carbocation/runningvariance"
	fet "github.com/glycerine/golang-fisher-exact"
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// fillBalance compares the allele make-up of the partitions with the whole
// view.
func fillBalance(r *SplitReport, v *View, train, test []Edge) {
	ax := &alleleAxis{index: make(map[string]int)}
	for _, e := range v.edges {
		idx := ax.id(e.PMHC.Allele)
		ax.total[idx]++
	}

	trainCounts := make([]float64, len(ax.names))
	for _, e := range train {
		trainCounts[ax.index[e.PMHC.Allele]]++
	}
	testCounts := make([]float64, len(ax.names))
	for _, e := range test {
		testCounts[ax.index[e.PMHC.Allele]]++
	}

	r.BalanceP = 1
	r.WorstAlleleP = 1
	if len(test) == 0 || len(v.edges) == 0 {
		return
	}

	all := make([]float64, len(ax.total))
	copy(all, ax.total)
	floats.Scale(1/floats.Sum(all), all)

	testFreq := make([]float64, len(testCounts))
	copy(testFreq, testCounts)
	floats.Scale(1/floats.Sum(testFreq), testFreq)

	r.AlleleL1 = floats.Distance(testFreq, all, 1)
	r.Hellinger = stat.Hellinger(testFreq, all)

	r.BalanceP = homogeneityP(trainCounts, testCounts)
	r.WorstAllele, r.WorstAlleleP = worstAllele(ax.names, trainCounts, testCounts)
}

// worstAllele runs a two-tailed Fisher exact test of each allele against all
// others, train versus test, and returns the allele with the smallest p-value.
func worstAllele(names []string, train, test []float64) (string, float64) {
	nTrain, nTest := int(floats.Sum(train)), int(floats.Sum(test))

	worst, worstP := "", 1.0
	for i, name := range names {
		a, b := int(test[i]), int(train[i])
		if a+b == 0 {
			continue
		}
		_, _, _, p := fet.FisherExactTest(a, nTest-a, b, nTrain-b)
		if p < worstP {
			worst, worstP = name, p
		}
	}

	return worst, worstP
}

// homogeneityP is the p-value of a chi-square test that a and b are drawn
// from the same categorical distribution. Categories empty in both are
// ignored.
func homogeneityP(a, b []float64) float64 {
	na, nb := floats.Sum(a), floats.Sum(b)
	if na == 0 || nb == 0 {
		return 1
	}
	n := na + nb

	var obs, exp []float64
	for i := range a {
		row := a[i] + b[i]
		if row == 0 {
			continue
		}
		obs = append(obs, a[i], b[i])
		exp = append(exp, row*na/n, row*nb/n)
	}

	df := float64(len(obs)/2 - 1)
	if df < 1 {
		return 1
	}

	x := stat.ChiSquare(obs, exp)

	return 1 - distuv.ChiSquared{K: df}.CDF(x)
}

func fillGroupSizes(r *SplitReport, groups []*edgeGroup) {
	rv := runningvariance.NewRunningStat()
	sizes := make(stats.Float64Data, 0, len(groups))
	for _, g := range groups {
		sizes = append(sizes, float64(len(g.edges)))
		rv.Push(float64(len(g.edges)))
	}
	r.GroupSizes = sizes
	r.MeanGroupSize = rv.Mean()
	r.GroupSizeSD = rv.StandardDeviation()

	if median, err := stats.Median(sizes); err == nil {
		r.MedianGroupSize = median
	}
	if max, err := stats.Max(sizes); err == nil {
		r.MaxGroupSize = max
	}
}
