package wgcna

import (
	"sort"
	"strconv"

	"github.com/carbocation/multiwgcna"
	"github.com/theodesp/unionfind"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// CutModules links every pair of genes whose topological overlap is at least
// minTOM and returns the connected components with at least minSize members,
// as lists of row indexes. Components are ordered by decreasing size, then by
// their smallest row index.
func CutModules(tom *mat.SymDense, minTOM float64, minSize int) [][]int {
	n, _ := tom.Dims()

	uf := unionfind.NewThreadSafeUnionFind(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if tom.At(i, j) >= minTOM {
				uf.Union(i, j)
			}
		}
	}

	components := make(map[int][]int)
	for i := 0; i < n; i++ {
		root := uf.Root(i)
		components[root] = append(components[root], i)
	}

	out := make([][]int, 0, len(components))
	for _, members := range components {
		if len(members) >= minSize {
			out = append(out, members)
		}
	}
	sortComponents(out)

	return out
}

func sortComponents(c [][]int) {
	for _, members := range c {
		sort.Ints(members)
	}
	sort.Slice(c, func(i, j int) bool {
		if len(c[i]) != len(c[j]) {
			return len(c[i]) > len(c[j])
		}
		return c[i][0] < c[j][0]
	})
}

// MergeCloseModules repeatedly merges the pair of modules whose eigengenes
// correlate most strongly, as long as that correlation is at least
// 1-cutHeight. rows holds the (standardized or raw) expression of every gene
// referenced by modules.
func MergeCloseModules(rows [][]float64, modules [][]int, cutHeight float64) [][]int {
	if len(modules) < 2 {
		return modules
	}

	eigengenes := make([][]float64, len(modules))
	for i, m := range modules {
		eigengenes[i] = eigengeneOf(rows, m)
	}

	for len(modules) > 1 {
		bestI, bestJ, best := -1, -1, 1-cutHeight
		for i := range modules {
			for j := i + 1; j < len(modules); j++ {
				r := stat.Correlation(eigengenes[i], eigengenes[j], nil)
				if r >= best {
					bestI, bestJ, best = i, j, r
				}
			}
		}
		if bestI < 0 {
			break
		}

		merged := append(append([]int{}, modules[bestI]...), modules[bestJ]...)
		modules[bestI] = merged
		eigengenes[bestI] = eigengeneOf(rows, merged)

		modules = append(modules[:bestJ], modules[bestJ+1:]...)
		eigengenes = append(eigengenes[:bestJ], eigengenes[bestJ+1:]...)
	}

	sortComponents(modules)

	return modules
}

func eigengeneOf(rows [][]float64, members []int) []float64 {
	sub := make([][]float64, len(members))
	for k, i := range members {
		sub[k] = rows[i]
	}
	eig, _ := multiwgcna.ModuleEigengene(sub)
	return eig
}

// Labels maps module components to "1".."k" in the order given.
func Labels(genes []string, modules [][]int) map[string]string {
	out := make(map[string]string)
	for k, members := range modules {
		label := strconv.Itoa(k + 1)
		for _, i := range members {
			out[genes[i]] = label
		}
	}
	return out
}
