package dme

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Columns whose component orthogonal to the current basis is smaller than this
// fraction of their length are collinear and add no rank.
const rankTolerance = 1e-9

// basis is an orthonormal basis of the growing column space of a design
// matrix.
type basis struct {
	q [][]float64
}

// add orthogonalizes col against the basis and appends it if it is not
// collinear. It reports whether the rank grew.
func (b *basis) add(col []float64) bool {
	v := append([]float64(nil), col...)
	norm0 := floats.Norm(v, 2)
	if norm0 == 0 {
		return false
	}

	// Two passes of modified Gram-Schmidt keep the basis orthogonal to
	// working precision.
	for pass := 0; pass < 2; pass++ {
		for _, q := range b.q {
			floats.AddScaled(v, -floats.Dot(q, v), q)
		}
	}

	norm := floats.Norm(v, 2)
	if norm <= rankTolerance*norm0 {
		return false
	}
	floats.Scale(1/norm, v)
	b.q = append(b.q, v)

	return true
}

// term is a named block of design columns entered together.
type term struct {
	name    string
	columns [][]float64
}

// termFit is the sequential (type I) contribution of one term.
type termFit struct {
	df int
	ss float64
}

// sequentialANOVA enters the intercept and then each term in order, returning
// each term's degrees of freedom and sum of squares, the residual sum of
// squares, and the residual degrees of freedom.
func sequentialANOVA(y []float64, terms []term) (fits []termFit, rss float64, dfResid int) {
	n := len(y)
	b := &basis{}

	resid := append([]float64(nil), y...)
	project := func(q []float64) float64 {
		c := floats.Dot(q, resid)
		floats.AddScaled(resid, -c, q)
		return c * c
	}

	ones := make([]float64, n)
	for i := range ones {
		ones[i] = 1
	}
	if b.add(ones) {
		project(b.q[len(b.q)-1])
	}

	fits = make([]termFit, len(terms))
	for t, tm := range terms {
		for _, col := range tm.columns {
			if !b.add(col) {
				continue
			}
			fits[t].df++
			fits[t].ss += project(b.q[len(b.q)-1])
		}
	}

	rss = floats.Dot(resid, resid)
	dfResid = n - len(b.q)

	return fits, rss, dfResid
}

// fTest returns the F statistic and upper-tail p-value of a term. It returns
// NaN for both when the test is undefined.
func fTest(fit termFit, rss float64, dfResid int) (f, p float64) {
	if fit.df < 1 || dfResid < 1 {
		return math.NaN(), math.NaN()
	}

	if rss <= 0 {
		if fit.ss > 0 {
			return math.Inf(1), 0
		}
		return math.NaN(), math.NaN()
	}

	f = (fit.ss / float64(fit.df)) / (rss / float64(dfResid))
	if math.IsInf(f, 1) {
		return f, 0
	}

	dist := distuv.F{D1: float64(fit.df), D2: float64(dfResid)}

	return f, dist.Survival(f)
}
