package multiwgcna

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Expression is a genes x samples matrix of expression values with hash
// indexes for gene and sample lookups. Once constructed it is not modified,
// so it is safe to share between goroutines.
type Expression struct {
	genes     []string
	samples   []string
	values    *mat.Dense
	geneIdx   map[string]int
	sampleIdx map[string]int
}

// NewExpression wraps values (genes x samples). Gene and sample identifiers
// must be unique and match the matrix dimensions. The matrix is copied.
func NewExpression(genes, samples []string, values mat.Matrix) (*Expression, error) {
	r, c := values.Dims()
	if r != len(genes) || c != len(samples) {
		return nil, fmt.Errorf("%w: expression matrix is %dx%d but %d genes and %d samples were named", ErrInvalidInput, r, c, len(genes), len(samples))
	}

	e := &Expression{
		genes:     append([]string(nil), genes...),
		samples:   append([]string(nil), samples...),
		values:    mat.DenseCopyOf(values),
		geneIdx:   make(map[string]int, len(genes)),
		sampleIdx: make(map[string]int, len(samples)),
	}

	for i, g := range e.genes {
		if _, exists := e.geneIdx[g]; exists {
			return nil, fmt.Errorf("%w: gene %q appears more than once", ErrInvalidInput, g)
		}
		e.geneIdx[g] = i
	}
	for j, s := range e.samples {
		if _, exists := e.sampleIdx[s]; exists {
			return nil, fmt.Errorf("%w: sample %q appears more than once", ErrInvalidInput, s)
		}
		e.sampleIdx[s] = j
	}

	return e, nil
}

// NewExpressionFromRows builds an Expression from one slice per gene.
func NewExpressionFromRows(genes, samples []string, rows [][]float64) (*Expression, error) {
	if len(rows) != len(genes) {
		return nil, fmt.Errorf("%w: %d rows for %d genes", ErrInvalidInput, len(rows), len(genes))
	}
	if len(genes) == 0 || len(samples) == 0 {
		return nil, fmt.Errorf("%w: expression matrix is empty", ErrInvalidInput)
	}

	data := make([]float64, 0, len(genes)*len(samples))
	for i, row := range rows {
		if len(row) != len(samples) {
			return nil, fmt.Errorf("%w: gene %q has %d values for %d samples", ErrInvalidInput, genes[i], len(row), len(samples))
		}
		data = append(data, row...)
	}

	return NewExpression(genes, samples, mat.NewDense(len(genes), len(samples), data))
}

// Genes returns the gene identifiers in row order. The slice must not be
// modified.
func (e *Expression) Genes() []string { return e.genes }

// Samples returns the sample identifiers in column order. The slice must not
// be modified.
func (e *Expression) Samples() []string { return e.samples }

func (e *Expression) NGenes() int   { return len(e.genes) }
func (e *Expression) NSamples() int { return len(e.samples) }

func (e *Expression) GeneIndex(gene string) (int, bool) {
	i, ok := e.geneIdx[gene]
	return i, ok
}

func (e *Expression) SampleIndex(sample string) (int, bool) {
	j, ok := e.sampleIdx[sample]
	return j, ok
}

func (e *Expression) HasGene(gene string) bool {
	_, ok := e.geneIdx[gene]
	return ok
}

func (e *Expression) At(gene, sample int) float64 { return e.values.At(gene, sample) }

// Row returns a copy of the expression values of the gene at row i.
func (e *Expression) Row(i int) []float64 {
	return mat.Row(nil, i, e.values)
}

// GeneValues returns a copy of the expression values of a named gene.
func (e *Expression) GeneValues(gene string) ([]float64, bool) {
	i, ok := e.geneIdx[gene]
	if !ok {
		return nil, false
	}
	return e.Row(i), true
}

// Matrix exposes the underlying values read-only.
func (e *Expression) Matrix() mat.Matrix { return e.values }

// SubsetSamples returns a new Expression with only the named samples, in the
// order given.
func (e *Expression) SubsetSamples(samples []string) (*Expression, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no samples requested", ErrInvalidInput)
	}
	cols := make([]int, len(samples))
	for k, s := range samples {
		j, ok := e.sampleIdx[s]
		if !ok {
			return nil, fmt.Errorf("%w: sample %q is not in the expression matrix", ErrInvalidInput, s)
		}
		cols[k] = j
	}

	out := mat.NewDense(len(e.genes), len(samples), nil)
	for i := range e.genes {
		for k, j := range cols {
			out.Set(i, k, e.values.At(i, j))
		}
	}

	return NewExpression(e.genes, samples, out)
}

// SubsetGenes returns a new Expression with only the named genes, in the order
// given.
func (e *Expression) SubsetGenes(genes []string) (*Expression, error) {
	if len(genes) == 0 {
		return nil, fmt.Errorf("%w: no genes requested", ErrInvalidInput)
	}
	out := mat.NewDense(len(genes), len(e.samples), nil)
	for k, g := range genes {
		i, ok := e.geneIdx[g]
		if !ok {
			return nil, fmt.Errorf("%w: gene %q is not in the expression matrix", ErrInvalidInput, g)
		}
		out.SetRow(k, mat.Row(nil, i, e.values))
	}

	return NewExpression(genes, e.samples, out)
}

// SharedGenes returns the genes present in both e and other, in e's order.
func (e *Expression) SharedGenes(other *Expression) []string {
	out := make([]string, 0, len(e.genes))
	for _, g := range e.genes {
		if other.HasGene(g) {
			out = append(out, g)
		}
	}
	return out
}

// Finite reports whether every value of the gene at row i is finite.
func (e *Expression) Finite(i int) bool {
	for j := range e.samples {
		v := e.values.At(i, j)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
