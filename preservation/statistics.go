package preservation

import (
	"math"

	"github.com/carbocation/multiwgcna"
	"github.com/carbocation/multiwgcna/wgcna"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// side is one data set restricted to a gene set.
type side struct {
	rows      [][]float64
	cor       [][]float64
	kIM       []float64
	kME       []float64
	eigengene []float64
	varExpl   float64
}

func newSide(rows [][]float64, opts Options) *side {
	n := len(rows)
	s := &side{rows: rows, cor: make([][]float64, n), kIM: make([]float64, n), kME: make([]float64, n)}

	samples := float64(len(rows[0]) - 1)
	for i := range s.cor {
		s.cor[i] = make([]float64, n)
		s.cor[i][i] = 1
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			r := floats.Dot(rows[i], rows[j]) / samples
			r = math.Max(-1, math.Min(1, r))
			s.cor[i][j], s.cor[j][i] = r, r

			a := wgcna.AdjacencyOf(r, opts.NetworkType, opts.Power)
			s.kIM[i] += a
			s.kIM[j] += a
		}
	}

	s.eigengene, s.varExpl = multiwgcna.ModuleEigengene(rows)
	for i, row := range rows {
		s.kME[i] = correlation(row, s.eigengene)
	}

	return s
}

// statistics computes the preservation statistics of the gene set members
// (indexes into the universe). The module is defined by its structure in the
// reference data and evaluated in the test data.
func (u *universe) statistics(members []int, opts Options) Statistics {
	refRows := make([][]float64, len(members))
	testRows := make([][]float64, len(members))
	for k, i := range members {
		refRows[k] = u.ref[i]
		testRows[k] = u.test[i]
	}

	ref := newSide(refRows, opts)
	test := newSide(testRows, opts)

	n := len(members)
	pairs := n * (n - 1) / 2
	refCor := make([]float64, 0, pairs)
	testCor := make([]float64, 0, pairs)

	var signCor, adj float64
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			rc, tc := ref.cor[i][j], test.cor[i][j]
			refCor = append(refCor, rc)
			testCor = append(testCor, tc)

			signCor += sign(rc) * tc
			adj += wgcna.AdjacencyOf(tc, opts.NetworkType, opts.Power)
		}
	}

	var signKME float64
	for i := range members {
		signKME += sign(ref.kME[i]) * test.kME[i]
	}

	return Statistics{
		MeanSignAwareCorDat: signCor / float64(pairs),
		MeanAdj:             adj / float64(pairs),
		PropVarExplained:    test.varExpl,
		MeanSignAwareKME:    signKME / float64(n),

		CorKIM: correlation(ref.kIM, test.kIM),
		CorKME: correlation(ref.kME, test.kME),
		CorCor: correlation(refCor, testCor),
	}
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

// correlation is the Pearson correlation, or NaN when either side is
// constant or contains NaN.
func correlation(x, y []float64) float64 {
	if len(x) < 2 {
		return math.NaN()
	}
	_, sx := stat.MeanStdDev(x, nil)
	_, sy := stat.MeanStdDev(y, nil)
	if !(sx > 0) || !(sy > 0) {
		return math.NaN()
	}
	return stat.Correlation(x, y, nil)
}
