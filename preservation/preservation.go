// Package preservation scores how well the modules of one network keep their
// co-expression structure in another set of samples, as density and
// connectivity Z statistics combined into a Z-summary.
package preservation

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/carbocation/multiwgcna"
	"github.com/carbocation/runningvariance"
	"github.com/montanaflynn/stats"
)

const (
	DefaultPermutations = 200
	DefaultMinSize      = 3
)

type Options struct {
	// Permutations is the number of random gene sets drawn per module to
	// build the null of each statistic.
	Permutations int

	// Adjacency used for meanAdj and the intramodular connectivities. Zero
	// values take the defaults of multiwgcna.DefaultNetworkParams.
	Power       float64
	NetworkType string

	Seed int64

	// Modules with fewer shared genes than this are degenerate.
	MinSize int
}

func (o Options) withDefaults() Options {
	def := multiwgcna.DefaultNetworkParams()
	if o.Permutations < 1 {
		o.Permutations = DefaultPermutations
	}
	if o.Power <= 0 {
		o.Power = def.Power
	}
	if o.NetworkType == "" {
		o.NetworkType = def.NetworkType
	}
	if o.MinSize < DefaultMinSize {
		o.MinSize = DefaultMinSize
	}
	return o
}

// Statistics are the module preservation statistics of one gene set. The
// first four measure density, the last three connectivity.
type Statistics struct {
	MeanSignAwareCorDat float64
	MeanAdj             float64
	PropVarExplained    float64
	MeanSignAwareKME    float64

	CorKIM float64
	CorKME float64
	CorCor float64
}

func (s Statistics) density() []float64 {
	return []float64{s.MeanSignAwareCorDat, s.MeanAdj, s.PropVarExplained, s.MeanSignAwareKME}
}

func (s Statistics) connectivity() []float64 {
	return []float64{s.CorKIM, s.CorKME, s.CorCor}
}

func (s Statistics) values() []float64 {
	return append(s.density(), s.connectivity()...)
}

func statisticsFrom(v []float64) Statistics {
	return Statistics{
		MeanSignAwareCorDat: v[0],
		MeanAdj:             v[1],
		PropVarExplained:    v[2],
		MeanSignAwareKME:    v[3],
		CorKIM:              v[4],
		CorKME:              v[5],
		CorCor:              v[6],
	}
}

func nanStatistics() Statistics {
	v := make([]float64, 7)
	for i := range v {
		v[i] = math.NaN()
	}
	return statisticsFrom(v)
}

// Score is the preservation of one query module.
type Score struct {
	Module string
	// Number of module genes present and variable in both data sets
	Size int

	ZSummary      float64
	ZDensity      float64
	ZConnectivity float64

	Observed Statistics
	Z        Statistics

	Degenerate bool
}

// Compute scores every assigned module of query in reference. The query
// network's own expression is the reference data of the module definitions,
// and reference supplies the test data. Only genes present in both, and
// variable in both, are used.
func Compute(query *multiwgcna.Network, reference *multiwgcna.Expression, opts Options) ([]Score, error) {
	qexpr := query.Expression()
	if qexpr == nil {
		return nil, fmt.Errorf("%w: network %s has no expression matrix", multiwgcna.ErrInvalidInput, query.Name)
	}
	if reference == nil {
		return nil, fmt.Errorf("%w: no reference expression for network %s", multiwgcna.ErrInvalidInput, query.Name)
	}
	opts = opts.withDefaults()

	u := newUniverse(qexpr, reference)
	if len(u.genes) == 0 {
		return nil, fmt.Errorf("%w: network %s shares no variable genes with the reference expression", multiwgcna.ErrInvalidInput, query.Name)
	}

	modules := query.AssignedModules()
	out := make([]Score, 0, len(modules))
	for k, label := range modules {
		members := make([]int, 0, query.Size(label))
		for _, g := range query.Genes(label) {
			if i, ok := u.index[g]; ok {
				members = append(members, i)
			}
		}

		rng := rand.New(rand.NewSource(opts.Seed + int64(k)))
		out = append(out, u.score(label, members, opts, rng))
	}

	return out, nil
}

// universe holds the standardized rows of the genes shared by both data sets.
type universe struct {
	genes []string
	index map[string]int
	ref   [][]float64
	test  [][]float64
}

func newUniverse(ref, test *multiwgcna.Expression) *universe {
	u := &universe{index: make(map[string]int)}

	for _, g := range ref.SharedGenes(test) {
		rv, _ := ref.GeneValues(g)
		tv, _ := test.GeneValues(g)

		rz := multiwgcna.Standardize(rv)
		tz := multiwgcna.Standardize(tv)
		if rz == nil || tz == nil {
			continue
		}

		u.index[g] = len(u.genes)
		u.genes = append(u.genes, g)
		u.ref = append(u.ref, rz)
		u.test = append(u.test, tz)
	}

	return u
}

func (u *universe) score(label string, members []int, opts Options, rng *rand.Rand) Score {
	s := Score{
		Module:        label,
		Size:          len(members),
		ZSummary:      math.NaN(),
		ZDensity:      math.NaN(),
		ZConnectivity: math.NaN(),
		Observed:      nanStatistics(),
		Z:             nanStatistics(),
		Degenerate:    true,
	}
	if len(members) < opts.MinSize || len(members) > len(u.genes) {
		return s
	}

	s.Observed = u.statistics(members, opts)
	observed := s.Observed.values()

	// Null of each statistic from random gene sets of the same size
	nulls := make([]*runningvariance.RunningStat, len(observed))
	counts := make([]int, len(observed))
	for i := range nulls {
		nulls[i] = runningvariance.NewRunningStat()
	}

	pool := make([]int, len(u.genes))
	for i := range pool {
		pool[i] = i
	}
	for b := 0; b < opts.Permutations; b++ {
		// Partial Fisher-Yates: the first len(members) entries are a
		// uniform random subset
		for i := 0; i < len(members); i++ {
			j := i + rng.Intn(len(pool)-i)
			pool[i], pool[j] = pool[j], pool[i]
		}

		for i, v := range u.statistics(pool[:len(members)], opts).values() {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			nulls[i].Push(v)
			counts[i]++
		}
	}

	z := make([]float64, len(observed))
	for i := range z {
		z[i] = math.NaN()
		if counts[i] < 2 || math.IsNaN(observed[i]) {
			continue
		}
		sd := nulls[i].StandardDeviation()
		if sd == 0 || math.IsNaN(sd) {
			continue
		}
		z[i] = (observed[i] - nulls[i].Mean()) / sd
	}
	s.Z = statisticsFrom(z)

	s.ZDensity = medianOf(s.Z.density())
	s.ZConnectivity = medianOf(s.Z.connectivity())

	switch {
	case math.IsNaN(s.ZDensity) && math.IsNaN(s.ZConnectivity):
		return s
	case math.IsNaN(s.ZDensity):
		s.ZSummary = s.ZConnectivity
	case math.IsNaN(s.ZConnectivity):
		s.ZSummary = s.ZDensity
	default:
		s.ZSummary = (s.ZDensity + s.ZConnectivity) / 2
	}
	s.Degenerate = false

	return s
}

// medianOf is the median of the finite values, or NaN if there are none.
func medianOf(x []float64) float64 {
	finite := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}

	m, err := stats.Median(finite)
	if err != nil {
		return math.NaN()
	}
	return m
}
