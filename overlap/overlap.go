// Package overlap matches the modules of two co-expression networks by the
// hypergeometric significance of their shared genes.
package overlap

import (
	"fmt"

	"github.com/carbocation/multiwgcna"
	"gonum.org/v1/gonum/mat"
)

// Result holds the pairwise overlap statistics between every module of
// network A (rows) and every module of network B (columns).
type Result struct {
	NetworkA string
	NetworkB string

	ModulesA []string
	ModulesB []string

	// Sizes within the shared gene universe
	SizesA []int
	SizesB []int

	// Universe is the number of genes present in both networks
	Universe int

	P      *mat.Dense
	Counts [][]int

	// Degenerate modules (unassigned, or no genes in the universe) are kept
	// in the matrices with P = 1 but never take part in matching.
	DegenerateA []bool
	DegenerateB []bool
}

// Compute tests every module pair of a and b for enrichment of shared genes.
// The gene universe is the set of genes present in both networks; module
// sizes and overlaps are counted within it.
func Compute(a, b *multiwgcna.Network) (*Result, error) {
	universe := make(map[string]struct{})
	for _, g := range a.AllGenes() {
		if b.HasGene(g) {
			universe[g] = struct{}{}
		}
	}
	if len(universe) == 0 {
		return nil, fmt.Errorf("%w: networks %s and %s share no genes", multiwgcna.ErrInvalidInput, a.Name, b.Name)
	}

	res := &Result{
		NetworkA: a.Name,
		NetworkB: b.Name,
		ModulesA: append([]string(nil), a.Modules()...),
		ModulesB: append([]string(nil), b.Modules()...),
		Universe: len(universe),
	}

	colIdx := make(map[string]int, len(res.ModulesB))
	res.SizesB = make([]int, len(res.ModulesB))
	res.DegenerateB = make([]bool, len(res.ModulesB))
	for j, m := range res.ModulesB {
		colIdx[m] = j
		res.SizesB[j] = countIn(b.Genes(m), universe)
		res.DegenerateB[j] = m == multiwgcna.Unassigned || res.SizesB[j] == 0
	}

	res.SizesA = make([]int, len(res.ModulesA))
	res.DegenerateA = make([]bool, len(res.ModulesA))
	res.Counts = make([][]int, len(res.ModulesA))
	for i, m := range res.ModulesA {
		res.Counts[i] = make([]int, len(res.ModulesB))
		for _, g := range a.Genes(m) {
			if _, in := universe[g]; !in {
				continue
			}
			res.SizesA[i]++

			mb, _ := b.Module(g)
			res.Counts[i][colIdx[mb]]++
		}
		res.DegenerateA[i] = m == multiwgcna.Unassigned || res.SizesA[i] == 0
	}

	res.P = mat.NewDense(len(res.ModulesA), len(res.ModulesB), nil)
	for i := range res.ModulesA {
		for j := range res.ModulesB {
			p := 1.0
			if !res.DegenerateA[i] && !res.DegenerateB[j] {
				p = UpperTail(res.Counts[i][j], res.SizesA[i], res.SizesB[j], res.Universe)
			}
			res.P.Set(i, j, p)
		}
	}

	return res, nil
}

func countIn(genes []string, universe map[string]struct{}) int {
	n := 0
	for _, g := range genes {
		if _, in := universe[g]; in {
			n++
		}
	}
	return n
}

// Transpose returns the (B, A) view of r without recomputing any statistic.
func Transpose(r *Result) *Result {
	out := &Result{
		NetworkA:    r.NetworkB,
		NetworkB:    r.NetworkA,
		ModulesA:    r.ModulesB,
		ModulesB:    r.ModulesA,
		SizesA:      r.SizesB,
		SizesB:      r.SizesA,
		Universe:    r.Universe,
		DegenerateA: r.DegenerateB,
		DegenerateB: r.DegenerateA,
	}

	out.P = mat.DenseCopyOf(r.P.T())
	out.Counts = make([][]int, len(r.ModulesB))
	for j := range r.ModulesB {
		out.Counts[j] = make([]int, len(r.ModulesA))
		for i := range r.ModulesA {
			out.Counts[j][i] = r.Counts[i][j]
		}
	}

	return out
}

// Lookup returns the p-value and overlap count for a named module pair.
func (r *Result) Lookup(moduleA, moduleB string) (p float64, count int, ok bool) {
	i, j := indexOf(r.ModulesA, moduleA), indexOf(r.ModulesB, moduleB)
	if i < 0 || j < 0 {
		return 0, 0, false
	}
	return r.P.At(i, j), r.Counts[i][j], true
}

func indexOf(labels []string, label string) int {
	for i, l := range labels {
		if l == label {
			return i
		}
	}
	return -1
}
