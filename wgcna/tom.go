package wgcna

import (
	"math"

	"github.com/carbocation/multiwgcna"
	"gonum.org/v1/gonum/mat"
)

// TOM computes the weighted topological overlap of an adjacency matrix:
//
//   k_i        = sum_u a_iu
//   numerator  = sum_{u != i,j} a_iu * a_uj + a_ij
//   denominator= min(k_i, k_j) + 1 - a_ij
//   TOM_ij     = numerator / denominator,  TOM_ii = 1
//
// With a signed TOM, the adjacencies entering the numerator carry the sign of
// the correlation and the absolute value of the ratio is taken. The diagonal
// of adj must be zero, which makes the u != i,j restriction implicit.
func TOM(adj, cor *mat.SymDense, tomType string) *mat.SymDense {
	n, _ := adj.Dims()

	k := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			k[i] += adj.At(i, j)
		}
	}

	s := adj
	if tomType == multiwgcna.NetworkSigned && cor != nil {
		s = mat.NewSymDense(n, nil)
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				v := adj.At(i, j)
				if cor.At(i, j) < 0 {
					v = -v
				}
				s.SetSym(i, j, v)
			}
		}
	}

	// sum_u s_iu * s_uj for every pair at once
	var shared mat.SymDense
	shared.SymOuterK(1, s)

	tom := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		tom.SetSym(i, i, 1)
		for j := i + 1; j < n; j++ {
			a := adj.At(i, j)
			numerator := shared.At(i, j) + s.At(i, j)
			denominator := math.Min(k[i], k[j]) + 1 - a

			v := 0.0
			if denominator > 0 {
				v = math.Abs(numerator) / denominator
			}
			if v > 1 {
				v = 1
			}
			tom.SetSym(i, j, v)
		}
	}

	return tom
}
