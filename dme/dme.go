// Package dme tests module eigengenes for differential expression across the
// levels of experimental factors (differential module expression).
package dme

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/carbocation/multiwgcna"
	"gonum.org/v1/gonum/stat"
)

// Significance methods for the test condition.
const (
	MethodANOVA       = "ANOVA"
	MethodPermutation = "PERMANOVA"
)

const defaultPermutations = 999

type Options struct {
	// RefCondition is a controlling covariate entered before the test
	// condition. It may be empty, in which case only TestCondition is modeled.
	RefCondition string

	// TestCondition is the factor of interest.
	TestCondition string

	// Correction is the multiple-testing correction applied across modules
	// for each term separately. Defaults to fdr.
	Correction string

	// Interaction adds the RefCondition x TestCondition term.
	Interaction bool

	// IncludeUnassigned also tests the eigengene of the unassigned genes.
	IncludeUnassigned bool

	// Method is MethodANOVA (default) or MethodPermutation. With
	// MethodPermutation the test-condition p-value is computed by permuting
	// eigengene values within RefCondition strata.
	Method       string
	Permutations int
	Seed         int64
}

// TermResult is the sequential ANOVA row of one term for one module.
type TermResult struct {
	Term     string
	DF       int
	SS       float64
	F        float64
	P        float64
	Adjusted float64
}

type ModuleResult struct {
	Module string
	N      int

	Terms      []TermResult
	ResidualDF int
	RSS        float64

	// Mean eigengene per level
	TestMeans map[string]float64
	RefMeans  map[string]float64

	// Degenerate is true when the eigengene has no variance; every p-value of
	// the module is then NaN.
	Degenerate bool
}

type Result struct {
	Network       string
	RefCondition  string
	TestCondition string
	Correction    string
	Method        string

	// Term names in model order
	Terms   []string
	Modules []ModuleResult

	// Number of module x term p-values that are undefined
	Undefined int
	// Number of modules with a degenerate eigengene
	DegenerateModules int
}

// InteractionTerm names the interaction of two factors.
func InteractionTerm(ref, test string) string { return ref + ":" + test }

// Run fits, for every module eigengene, a linear model against the reference
// and test conditions and tests each term by sequential ANOVA. P-values are
// then corrected across modules, separately for each term.
func Run(net *multiwgcna.Network, table *multiwgcna.SampleTable, opts Options) (*Result, error) {
	if net.Eigengenes() == nil {
		return nil, fmt.Errorf("%w: network %s has no eigengenes", multiwgcna.ErrInvalidInput, net.Name)
	}
	if opts.TestCondition == "" {
		return nil, fmt.Errorf("%w: a test condition is required", multiwgcna.ErrInvalidInput)
	}
	if opts.RefCondition == opts.TestCondition {
		return nil, fmt.Errorf("%w: reference and test conditions are both %q", multiwgcna.ErrInvalidInput, opts.TestCondition)
	}

	factors := []string{opts.TestCondition}
	if opts.RefCondition != "" {
		factors = append(factors, opts.RefCondition)
	}
	if err := table.RequireFactors(factors...); err != nil {
		return nil, err
	}
	if err := table.Validate(net); err != nil {
		return nil, err
	}

	if opts.Correction == "" {
		opts.Correction = CorrectionFDR
	}
	if _, err := Adjust(nil, opts.Correction); err != nil {
		return nil, err
	}
	switch strings.ToUpper(opts.Method) {
	case "", MethodANOVA:
		opts.Method = MethodANOVA
	case MethodPermutation, "PERMUTATION":
		opts.Method = MethodPermutation
		if opts.Permutations < 1 {
			opts.Permutations = defaultPermutations
		}
	default:
		return nil, fmt.Errorf("%w: unknown DME method %q", multiwgcna.ErrInvalidInput, opts.Method)
	}

	d := newDesign(net.Samples(), table, opts)

	res := &Result{
		Network:       net.Name,
		RefCondition:  opts.RefCondition,
		TestCondition: opts.TestCondition,
		Correction:    opts.Correction,
		Method:        opts.Method,
		Terms:         d.termNames(),
	}

	modules := net.AssignedModules()
	if opts.IncludeUnassigned {
		modules = net.Modules()
	}

	for k, label := range modules {
		eig, _ := net.Eigengene(label)
		mr := d.fit(label, eig)

		if opts.Method == MethodPermutation && !mr.Degenerate {
			rng := rand.New(rand.NewSource(opts.Seed + int64(k)))
			d.permute(&mr, eig, opts.Permutations, rng)
		}

		res.Modules = append(res.Modules, mr)
	}

	// Correct each term across modules
	for t := range res.Terms {
		raw := make([]float64, len(res.Modules))
		for m := range res.Modules {
			raw[m] = res.Modules[m].Terms[t].P
		}

		adj, err := Adjust(raw, opts.Correction)
		if err != nil {
			return nil, err
		}

		for m := range res.Modules {
			res.Modules[m].Terms[t].Adjusted = adj[m]
			if math.IsNaN(raw[m]) {
				res.Undefined++
			}
		}
	}

	for _, m := range res.Modules {
		if m.Degenerate {
			res.DegenerateModules++
		}
	}

	return res, nil
}

// Lookup returns the raw and adjusted p-values of a module for a term.
func (r *Result) Lookup(module, term string) (TermResult, bool) {
	for _, m := range r.Modules {
		if m.Module != module {
			continue
		}
		for _, t := range m.Terms {
			if t.Term == term {
				return t, true
			}
		}
	}
	return TermResult{}, false
}

// design holds the dummy-coded factors of the samples that have a level for
// every modeled factor.
type design struct {
	opts Options

	// index into the network's sample order of each modeled sample
	keep []int

	refLevels  []string
	testLevels []string
	ref        []string // per kept sample
	test       []string // per kept sample
}

func newDesign(samples []string, table *multiwgcna.SampleTable, opts Options) *design {
	d := &design{opts: opts}

	for i, s := range samples {
		testLevel, _ := table.Level(s, opts.TestCondition)
		if missingLevel(testLevel) {
			continue
		}

		refLevel := ""
		if opts.RefCondition != "" {
			refLevel, _ = table.Level(s, opts.RefCondition)
			if missingLevel(refLevel) {
				continue
			}
		}

		d.keep = append(d.keep, i)
		d.test = append(d.test, testLevel)
		d.ref = append(d.ref, refLevel)
	}

	d.testLevels = distinct(d.test)
	if opts.RefCondition != "" {
		d.refLevels = distinct(d.ref)
	}

	return d
}

func missingLevel(l string) bool {
	switch strings.ToUpper(strings.TrimSpace(l)) {
	case "", "NA":
		return true
	}
	return false
}

func (d *design) termNames() []string {
	out := make([]string, 0, 3)
	if d.opts.RefCondition != "" {
		out = append(out, d.opts.RefCondition)
	}
	out = append(out, d.opts.TestCondition)
	if d.opts.RefCondition != "" && d.opts.Interaction {
		out = append(out, InteractionTerm(d.opts.RefCondition, d.opts.TestCondition))
	}
	return out
}

// terms builds the dummy-coded design columns, with the first level of each
// factor as the baseline.
func (d *design) terms() []term {
	refCols := dummies(d.ref, d.refLevels)
	testCols := dummies(d.test, d.testLevels)

	out := make([]term, 0, 3)
	if d.opts.RefCondition != "" {
		out = append(out, term{name: d.opts.RefCondition, columns: refCols})
	}
	out = append(out, term{name: d.opts.TestCondition, columns: testCols})

	if d.opts.RefCondition != "" && d.opts.Interaction {
		inter := make([][]float64, 0, len(refCols)*len(testCols))
		for _, rc := range refCols {
			for _, tc := range testCols {
				col := make([]float64, len(rc))
				for i := range col {
					col[i] = rc[i] * tc[i]
				}
				inter = append(inter, col)
			}
		}
		out = append(out, term{name: InteractionTerm(d.opts.RefCondition, d.opts.TestCondition), columns: inter})
	}

	return out
}

func dummies(values, levels []string) [][]float64 {
	if len(levels) < 2 {
		return nil
	}

	out := make([][]float64, len(levels)-1)
	for k, level := range levels[1:] {
		col := make([]float64, len(values))
		for i, v := range values {
			if v == level {
				col[i] = 1
			}
		}
		out[k] = col
	}

	return out
}

func distinct(values []string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	multiwgcna.SortModules(out)
	return out
}

func (d *design) response(eigengene []float64) []float64 {
	y := make([]float64, len(d.keep))
	for k, i := range d.keep {
		y[k] = eigengene[i]
	}
	return y
}

// Variances at or below this are treated as a constant eigengene.
const zeroVariance = 1e-24

func (d *design) fit(module string, eigengene []float64) ModuleResult {
	y := d.response(eigengene)
	names := d.termNames()

	mr := ModuleResult{
		Module:    module,
		N:         len(y),
		TestMeans: groupMeans(y, d.test),
		Terms:     make([]TermResult, len(names)),
	}
	if d.opts.RefCondition != "" {
		mr.RefMeans = groupMeans(y, d.ref)
	}
	for t, name := range names {
		mr.Terms[t] = TermResult{Term: name, F: math.NaN(), P: math.NaN(), Adjusted: math.NaN()}
	}

	if len(y) < 2 || stat.Variance(y, nil) <= zeroVariance {
		mr.Degenerate = true
		mr.RSS = math.NaN()
		return mr
	}

	fits, rss, dfResid := sequentialANOVA(y, d.terms())
	mr.RSS = rss
	mr.ResidualDF = dfResid
	for t, fit := range fits {
		mr.Terms[t].DF = fit.df
		mr.Terms[t].SS = fit.ss
		mr.Terms[t].F, mr.Terms[t].P = fTest(fit, rss, dfResid)
	}

	return mr
}

// permute replaces the test-condition p-value with a permutation p-value:
// eigengene values are shuffled within reference strata and the sequential F
// of the test term recomputed.
func (d *design) permute(mr *ModuleResult, eigengene []float64, n int, rng *rand.Rand) {
	testIdx := 0
	if d.opts.RefCondition != "" {
		testIdx = 1
	}
	observed := mr.Terms[testIdx].F
	if math.IsNaN(observed) {
		return
	}

	strata := make(map[string][]int)
	for k, r := range d.ref {
		strata[r] = append(strata[r], k)
	}

	y := d.response(eigengene)
	perm := make([]float64, len(y))
	terms := d.terms()

	extreme := 0
	for b := 0; b < n; b++ {
		copy(perm, y)
		for _, members := range strata {
			rng.Shuffle(len(members), func(i, j int) {
				perm[members[i]], perm[members[j]] = perm[members[j]], perm[members[i]]
			})
		}

		fits, rss, dfResid := sequentialANOVA(perm, terms)
		f, _ := fTest(fits[testIdx], rss, dfResid)
		if f >= observed {
			extreme++
		}
	}

	mr.Terms[testIdx].P = float64(1+extreme) / float64(1+n)
}

func groupMeans(y []float64, groups []string) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for i, g := range groups {
		sums[g] += y[i]
		counts[g]++
	}

	out := make(map[string]float64, len(sums))
	for g, s := range sums {
		out[g] = s / float64(counts[g])
	}
	return out
}
