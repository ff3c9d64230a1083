package multiwgcna

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ModuleEigengene computes the first principal component of a module's
// expression. Each element of rows holds one gene's values across the same
// samples. Genes are standardized before the decomposition; genes with zero
// variance carry no information and are skipped.
//
// The eigengene is scaled to unit variance and oriented so that it correlates
// positively with the module's average standardized expression. varExplained
// is the proportion of the standardized variance captured by the component.
// When no gene varies, or there are fewer than two samples, the eigengene is
// all zeros and varExplained is NaN.
func ModuleEigengene(rows [][]float64) (eigengene []float64, varExplained float64) {
	if len(rows) == 0 {
		return nil, math.NaN()
	}
	nSamples := len(rows[0])
	eigengene = make([]float64, nSamples)
	if nSamples < 2 {
		return eigengene, math.NaN()
	}

	scaled := make([][]float64, 0, len(rows))
	for _, row := range rows {
		if z := Standardize(row); z != nil {
			scaled = append(scaled, z)
		}
	}
	if len(scaled) == 0 {
		return eigengene, math.NaN()
	}

	// samples x genes
	x := mat.NewDense(nSamples, len(scaled), nil)
	for g, z := range scaled {
		x.SetCol(g, z)
	}

	var svd mat.SVD
	if ok := svd.Factorize(x, mat.SVDThin); !ok {
		return eigengene, math.NaN()
	}

	values := svd.Values(nil)
	var total float64
	for _, v := range values {
		total += v * v
	}
	if total == 0 || values[0] == 0 {
		return eigengene, math.NaN()
	}

	var u mat.Dense
	svd.UTo(&u)

	scale := math.Sqrt(float64(nSamples - 1))
	for i := range eigengene {
		eigengene[i] = u.At(i, 0) * scale
	}

	// Orient along the average expression of the module
	average := make([]float64, nSamples)
	for _, z := range scaled {
		for i, v := range z {
			average[i] += v
		}
	}
	if stat.Correlation(eigengene, average, nil) < 0 {
		for i := range eigengene {
			eigengene[i] = -eigengene[i]
		}
	}

	return eigengene, values[0] * values[0] / total
}

// Standardize returns (x - mean) / sd, or nil if x has no variance or
// contains a non-finite value.
func Standardize(x []float64) []float64 {
	if len(x) < 2 {
		return nil
	}
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
	}

	mean, sd := stat.MeanStdDev(x, nil)
	if sd == 0 || math.IsNaN(sd) {
		return nil
	}

	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = (v - mean) / sd
	}

	return out
}
