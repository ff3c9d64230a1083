package dme

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/carbocation/multiwgcna"
)

// Multiple-testing corrections, named as in R's p.adjust.
const (
	CorrectionFDR        = "fdr"
	CorrectionBH         = "BH"
	CorrectionBY         = "BY"
	CorrectionBonferroni = "bonferroni"
	CorrectionHolm       = "holm"
	CorrectionHochberg   = "hochberg"
	CorrectionNone       = "none"
)

// Adjust corrects p-values for multiple testing. NaN entries are left as NaN
// and do not count toward the number of tests. The output is in input order.
func Adjust(p []float64, method string) ([]float64, error) {
	out := make([]float64, len(p))

	order := make([]int, 0, len(p))
	for i, v := range p {
		out[i] = math.NaN()
		if !math.IsNaN(v) {
			order = append(order, i)
		}
	}
	// ascending p
	sort.SliceStable(order, func(a, b int) bool { return p[order[a]] < p[order[b]] })

	n := float64(len(order))

	switch strings.ToLower(method) {
	case "", strings.ToLower(CorrectionFDR), strings.ToLower(CorrectionBH):
		stepUp(p, order, out, func(rank int) float64 { return n / float64(rank) })

	case strings.ToLower(CorrectionBY):
		var q float64
		for i := 1; i <= len(order); i++ {
			q += 1 / float64(i)
		}
		stepUp(p, order, out, func(rank int) float64 { return n * q / float64(rank) })

	case strings.ToLower(CorrectionHochberg):
		stepUp(p, order, out, func(rank int) float64 { return n - float64(rank) + 1 })

	case strings.ToLower(CorrectionHolm):
		running := 0.0
		for k, i := range order {
			v := math.Min(1, (n-float64(k))*p[i])
			running = math.Max(running, v)
			out[i] = running
		}

	case strings.ToLower(CorrectionBonferroni):
		for _, i := range order {
			out[i] = math.Min(1, n*p[i])
		}

	case strings.ToLower(CorrectionNone):
		for _, i := range order {
			out[i] = p[i]
		}

	default:
		return nil, fmt.Errorf("%w: unknown multiple-testing correction %q", multiwgcna.ErrInvalidInput, method)
	}

	return out, nil
}

// stepUp applies the cumulative minimum, from the largest p downwards, of
// p * factor(rank), capped at 1. Ranks are 1-based in ascending p order.
func stepUp(p []float64, order []int, out []float64, factor func(rank int) float64) {
	running := 1.0
	for k := len(order) - 1; k >= 0; k-- {
		i := order[k]
		running = math.Min(running, p[i]*factor(k+1))
		out[i] = math.Min(1, running)
	}
}
