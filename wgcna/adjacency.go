package wgcna

import (
	"math"

	"github.com/carbocation/multiwgcna"
	"gonum.org/v1/gonum/mat"
)

// Correlation returns the gene x gene Pearson correlation of the rows of z,
// which must already be standardized (mean 0, sd 1, n samples).
func Correlation(z *mat.Dense) *mat.SymDense {
	_, n := z.Dims()

	var c mat.SymDense
	c.SymOuterK(1/float64(n-1), z)

	// Clamp rounding error so downstream powers stay in range
	r, _ := c.Dims()
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			v := c.At(i, j)
			if v > 1 {
				c.SetSym(i, j, 1)
			} else if v < -1 {
				c.SetSym(i, j, -1)
			}
		}
	}

	return &c
}

// Adjacency transforms a correlation into a network adjacency with soft
// thresholding power beta. The diagonal is zero.
//
//   unsigned:      |r|^beta
//   signed:        ((1+r)/2)^beta
//   signed hybrid: r^beta for r > 0, else 0
func Adjacency(cor *mat.SymDense, networkType string, beta float64) *mat.SymDense {
	n, _ := cor.Dims()
	adj := mat.NewSymDense(n, nil)

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			adj.SetSym(i, j, AdjacencyOf(cor.At(i, j), networkType, beta))
		}
	}

	return adj
}

// AdjacencyOf is the scalar form of Adjacency.
func AdjacencyOf(r float64, networkType string, beta float64) float64 {
	switch networkType {
	case multiwgcna.NetworkSigned:
		return math.Pow((1+r)/2, beta)
	case multiwgcna.NetworkSignedHybrid:
		if r <= 0 {
			return 0
		}
		return math.Pow(r, beta)
	}

	return math.Pow(math.Abs(r), beta)
}
