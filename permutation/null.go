package permutation

import (
	"math"
	"sort"

	"github.com/carbocation/multiwgcna"
	"github.com/carbocation/multiwgcna/outlier"
	"github.com/carbocation/multiwgcna/preservation"
	"github.com/carbocation/runningvariance"
)

// DefaultFraction is the default relative size window of SizeMatched.
const DefaultFraction = 0.1

// MatchOptions controls which null records count as the same size as a
// module of interest. A record matches when its size is within
// max(Window, Fraction*size) of size.
type MatchOptions struct {
	Window   int
	Fraction float64

	// IncludeOutliers keeps records from outlier-driven modules.
	IncludeOutliers bool
}

func DefaultMatchOptions() MatchOptions {
	return MatchOptions{Fraction: DefaultFraction}
}

// SizeMatched returns the scores of the null records whose size is close to
// size. Records of exactly that size are always included. Records flagged as
// outliers are excluded unless opts.IncludeOutliers is set.
func SizeMatched(null []NullRecord, size int, opts MatchOptions) []float64 {
	window := math.Max(float64(opts.Window), opts.Fraction*float64(size))

	out := make([]float64, 0)
	for _, rec := range null {
		if rec.IsOutlier && !opts.IncludeOutliers {
			continue
		}
		if math.IsNaN(rec.Score) {
			continue
		}
		if rec.Size != size && math.Abs(float64(rec.Size-size)) > window {
			continue
		}
		out = append(out, rec.Score)
	}

	return out
}

// EmpiricalP is the fraction of null scores at or below observed. It is NaN
// when null is empty or observed is NaN.
func EmpiricalP(null []float64, observed float64) float64 {
	if len(null) == 0 || math.IsNaN(observed) {
		return math.NaN()
	}

	below := 0
	for _, v := range null {
		if v <= observed {
			below++
		}
	}

	return float64(below) / float64(len(null))
}

// SizeSummary describes the null scores of one module size.
type SizeSummary struct {
	Size int
	N    int
	Mean float64
	SD   float64
	Min  float64
	Max  float64
}

// Summarize returns one summary per distinct size among the non-outlier
// records, in increasing size.
func Summarize(null []NullRecord) []SizeSummary {
	bySize := make(map[int]*runningvariance.RunningStat)
	counts := make(map[int]int)
	mins := make(map[int]float64)
	maxes := make(map[int]float64)

	for _, rec := range null {
		if rec.IsOutlier || math.IsNaN(rec.Score) {
			continue
		}

		rs, exists := bySize[rec.Size]
		if !exists {
			rs = runningvariance.NewRunningStat()
			bySize[rec.Size] = rs
			mins[rec.Size] = math.Inf(1)
			maxes[rec.Size] = math.Inf(-1)
		}
		rs.Push(rec.Score)
		counts[rec.Size]++
		mins[rec.Size] = math.Min(mins[rec.Size], rec.Score)
		maxes[rec.Size] = math.Max(maxes[rec.Size], rec.Score)
	}

	out := make([]SizeSummary, 0, len(bySize))
	for size, rs := range bySize {
		s := SizeSummary{
			Size: size,
			N:    counts[size],
			Mean: rs.Mean(),
			SD:   math.NaN(),
			Min:  mins[size],
			Max:  maxes[size],
		}
		if s.N > 1 {
			s.SD = rs.StandardDeviation()
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Size < out[j].Size })

	return out
}

// Observation is the real preservation of one module with its significance
// against the size-matched null.
type Observation struct {
	preservation.Score

	IsOutlier bool
	// Number of null scores the module was compared against
	NullSize int
	P        float64
}

// Observed builds the real construct-condition network and scores its
// modules against the real test-condition expression, using the same
// settings a replicate uses. If null is non-nil each score is also given an
// empirical p-value against its size-matched null.
func Observed(expr *multiwgcna.Expression, table *multiwgcna.SampleTable, builder multiwgcna.Builder, cfg Config, null []NullRecord, match MatchOptions) ([]Observation, error) {
	cfg = cfg.withDefaults()

	if err := table.RequireFactors(cfg.ConditionFactor); err != nil {
		return nil, err
	}

	constructExpr, err := conditionExpression(expr, table, cfg.ConditionFactor, cfg.ConstructIn)
	if err != nil {
		return nil, err
	}
	testExpr, err := conditionExpression(expr, table, cfg.ConditionFactor, cfg.TestIn)
	if err != nil {
		return nil, err
	}

	net, err := builder.Build(cfg.ConstructIn, constructExpr)
	if err != nil {
		return nil, err
	}
	if _, err := outlier.Detect(net, outlier.Options{Threshold: cfg.OutlierThreshold}); err != nil {
		return nil, err
	}

	presOpts := cfg.Preservation
	presOpts.Seed += cfg.Seed
	scores, err := preservation.Compute(net, testExpr, presOpts)
	if err != nil {
		return nil, err
	}

	out := make([]Observation, 0, len(scores))
	for _, s := range scores {
		o := Observation{Score: s, IsOutlier: net.IsOutlier(s.Module), P: math.NaN()}
		if null != nil && !s.Degenerate {
			matched := SizeMatched(null, s.Size, match)
			o.NullSize = len(matched)
			o.P = EmpiricalP(matched, s.ZSummary)
		}
		out = append(out, o)
	}

	return out, nil
}

func conditionExpression(expr *multiwgcna.Expression, table *multiwgcna.SampleTable, factor, level string) (*multiwgcna.Expression, error) {
	samples := make([]string, 0)
	for _, s := range expr.Samples() {
		if l, _ := table.Level(s, factor); l == level {
			samples = append(samples, s)
		}
	}

	return expr.SubsetSamples(samples)
}
