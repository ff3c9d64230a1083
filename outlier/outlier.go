// Package outlier flags modules whose co-expression is carried by one or a
// few extreme samples rather than by the population as a whole.
package outlier

import (
	"fmt"
	"math"

	"github.com/carbocation/multiwgcna"
	"gonum.org/v1/gonum/stat"
)

const (
	DefaultThreshold = 0.2

	// Below these, leave-one-out correlations are not meaningful and the
	// module is not evaluated.
	minGenes   = 3
	minSamples = 4
)

type Options struct {
	// A module is an outlier when leaving out a single sample moves its mean
	// intramodular correlation by more than Threshold.
	Threshold float64
}

// Module is the leave-one-out sensitivity of one module.
type Module struct {
	Module string
	Size   int

	// Genes with finite, non-constant values over all samples. Only these
	// enter the correlations.
	Scored int

	// Mean pairwise correlation of the module's genes over all samples
	MeanCorrelation float64

	// The largest absolute change in MeanCorrelation from dropping one
	// sample, and the sample responsible
	MaxShift        float64
	MostInfluential string

	Outlier bool

	// Evaluated is false when the module had too few scored genes or too
	// few samples to assess
	Evaluated bool
}

type Report struct {
	Network string
	Modules []Module

	// Modules that could not be assessed
	Unassessed int
}

// Outliers returns the labels of the flagged modules, in module order.
func (r *Report) Outliers() []string {
	out := make([]string, 0)
	for _, m := range r.Modules {
		if m.Outlier {
			out = append(out, m.Module)
		}
	}
	return out
}

// Detect runs the leave-one-out sensitivity analysis on every assigned module
// of a network and records the flagged modules on the network.
func Detect(net *multiwgcna.Network, opts Options) (*Report, error) {
	expr := net.Expression()
	if expr == nil {
		return nil, fmt.Errorf("%w: network %s has no expression data", multiwgcna.ErrInvalidInput, net.Name)
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}

	rep := &Report{Network: net.Name}
	for _, label := range net.AssignedModules() {
		rows := make([][]float64, 0, net.Size(label))
		for _, g := range net.Genes(label) {
			v, _ := expr.GeneValues(g)
			rows = append(rows, v)
		}

		m := Assess(rows, expr.Samples(), opts.Threshold)
		m.Module = label
		rep.Modules = append(rep.Modules, m)
		if !m.Evaluated {
			rep.Unassessed++
		}
	}

	net.SetOutliers(rep.Outliers())

	return rep, nil
}

// DetectOutliers is Detect reduced to the set of flagged module labels.
func DetectOutliers(net *multiwgcna.Network, threshold float64) (map[string]bool, error) {
	rep, err := Detect(net, Options{Threshold: threshold})
	if err != nil {
		return nil, err
	}

	out := make(map[string]bool)
	for _, m := range rep.Outliers() {
		out[m] = true
	}
	return out, nil
}

// Assess measures the leave-one-out sensitivity of the mean pairwise
// correlation of rows (genes x samples). Genes with a missing value or no
// variance are left out.
func Assess(rows [][]float64, samples []string, threshold float64) Module {
	m := Module{Size: len(rows), MeanCorrelation: math.NaN()}

	scored := make([][]float64, 0, len(rows))
	for _, row := range rows {
		if multiwgcna.Standardize(row) != nil {
			scored = append(scored, row)
		}
	}
	m.Scored = len(scored)

	if len(scored) < minGenes || len(samples) < minSamples {
		return m
	}
	rows = scored

	all := meanCorrelation(rows, -1)
	if math.IsNaN(all) {
		return m
	}
	m.MeanCorrelation = all
	m.Evaluated = true

	for s := range samples {
		without := meanCorrelation(rows, s)
		if math.IsNaN(without) {
			// Dropping the sample removes all variance from some gene,
			// which is the most extreme form of dependence on it.
			m.MaxShift = math.Inf(1)
			m.MostInfluential = samples[s]
			break
		}
		if shift := math.Abs(all - without); shift > m.MaxShift {
			m.MaxShift = shift
			m.MostInfluential = samples[s]
		}
	}

	m.Outlier = m.MaxShift > threshold

	return m
}

// meanCorrelation is the mean Pearson correlation over all gene pairs, with
// the sample at index skip left out (skip < 0 keeps every sample). It is NaN
// if some gene is constant once the sample is dropped.
func meanCorrelation(rows [][]float64, skip int) float64 {
	vecs := rows
	if skip >= 0 {
		vecs = make([][]float64, len(rows))
		for i, row := range rows {
			v := make([]float64, 0, len(row)-1)
			v = append(v, row[:skip]...)
			v = append(v, row[skip+1:]...)
			vecs[i] = v
		}
	}

	var sum float64
	var n int
	for i := range vecs {
		for j := i + 1; j < len(vecs); j++ {
			r := stat.Correlation(vecs[i], vecs[j], nil)
			if math.IsNaN(r) {
				return math.NaN()
			}
			sum += r
			n++
		}
	}

	return sum / float64(n)
}
