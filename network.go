package multiwgcna

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// Unassigned is the reserved module label for genes that were not placed in
// any module.
const Unassigned = "grey"

// Network is the result of building a co-expression network on one set of
// samples: every gene's module label and every module's eigengene. The
// gene->module and module->genes indexes are built once at construction.
//
// A Network is immutable except for its outlier annotation, which may be set
// once the outlier detector has run.
type Network struct {
	Name string

	expr       *Expression
	assignment map[string]string
	modules    []string
	members    map[string][]string

	eigengenes   *mat.Dense // modules x samples, rows in modules order
	eigenRow     map[string]int
	varExplained map[string]float64

	mu       sync.RWMutex
	outliers map[string]bool
}

// NewNetwork indexes a module assignment over an expression matrix and
// computes the module eigengenes. Genes of expr that are absent from
// assignment are treated as unassigned. Assigned genes that are not in expr
// are an error.
func NewNetwork(name string, expr *Expression, assignment map[string]string) (*Network, error) {
	if expr == nil {
		return nil, fmt.Errorf("%w: network %s has no expression matrix", ErrInvalidInput, name)
	}

	full := make(map[string]string, expr.NGenes())
	for gene, label := range assignment {
		if !expr.HasGene(gene) {
			return nil, fmt.Errorf("%w: network %s assigns gene %q which is not in its expression matrix", ErrInvalidInput, name, gene)
		}
		if label == "" {
			label = Unassigned
		}
		full[gene] = label
	}
	for _, gene := range expr.Genes() {
		if _, exists := full[gene]; !exists {
			full[gene] = Unassigned
		}
	}

	n := newIndexedNetwork(name, full, expr.Genes())
	n.expr = expr
	n.computeEigengenes()

	return n, nil
}

// NewAssignmentNetwork indexes a module assignment without expression data.
// Such a network supports module overlap and tracing but has no eigengenes.
func NewAssignmentNetwork(name string, assignment map[string]string) (*Network, error) {
	if len(assignment) == 0 {
		return nil, fmt.Errorf("%w: network %s has no genes", ErrInvalidInput, name)
	}

	genes := make([]string, 0, len(assignment))
	full := make(map[string]string, len(assignment))
	for gene, label := range assignment {
		if label == "" {
			label = Unassigned
		}
		full[gene] = label
		genes = append(genes, gene)
	}
	sort.Strings(genes)

	return newIndexedNetwork(name, full, genes), nil
}

func newIndexedNetwork(name string, assignment map[string]string, geneOrder []string) *Network {
	n := &Network{
		Name:         name,
		assignment:   assignment,
		members:      make(map[string][]string),
		eigenRow:     make(map[string]int),
		varExplained: make(map[string]float64),
		outliers:     make(map[string]bool),
	}

	for _, gene := range geneOrder {
		label := assignment[gene]
		n.members[label] = append(n.members[label], gene)
	}

	n.modules = make([]string, 0, len(n.members))
	for label := range n.members {
		n.modules = append(n.modules, label)
	}
	SortModules(n.modules)

	return n
}

func (n *Network) computeEigengenes() {
	samples := n.expr.NSamples()
	n.eigengenes = mat.NewDense(len(n.modules), samples, nil)

	for r, label := range n.modules {
		genes := n.members[label]
		rows := make([][]float64, 0, len(genes))
		for _, g := range genes {
			v, _ := n.expr.GeneValues(g)
			rows = append(rows, v)
		}

		eig, ve := ModuleEigengene(rows)
		n.eigengenes.SetRow(r, eig)
		n.eigenRow[label] = r
		n.varExplained[label] = ve
	}
}

// Expression returns the expression matrix the network was built on, or nil
// for assignment-only networks.
func (n *Network) Expression() *Expression { return n.expr }

// Modules returns every module label, including Unassigned when present, in
// SortModules order. The slice must not be modified.
func (n *Network) Modules() []string { return n.modules }

// AssignedModules returns the module labels other than Unassigned.
func (n *Network) AssignedModules() []string {
	out := make([]string, 0, len(n.modules))
	for _, m := range n.modules {
		if m != Unassigned {
			out = append(out, m)
		}
	}
	return out
}

// Module returns the label of the module a gene belongs to.
func (n *Network) Module(gene string) (string, bool) {
	label, ok := n.assignment[gene]
	return label, ok
}

// Genes returns the genes of a module. The slice must not be modified.
func (n *Network) Genes(module string) []string { return n.members[module] }

func (n *Network) Size(module string) int { return len(n.members[module]) }

// AllGenes returns every gene in the network, in module order.
func (n *Network) AllGenes() []string {
	out := make([]string, 0, len(n.assignment))
	for _, m := range n.modules {
		out = append(out, n.members[m]...)
	}
	return out
}

func (n *Network) HasGene(gene string) bool {
	_, ok := n.assignment[gene]
	return ok
}

// Eigengene returns a copy of the eigengene of a module.
func (n *Network) Eigengene(module string) ([]float64, bool) {
	if n.eigengenes == nil {
		return nil, false
	}
	r, ok := n.eigenRow[module]
	if !ok {
		return nil, false
	}
	return mat.Row(nil, r, n.eigengenes), true
}

// Eigengenes returns the modules x samples eigengene matrix, with rows in
// Modules() order and columns in Samples() order. It is nil for
// assignment-only networks.
func (n *Network) Eigengenes() mat.Matrix {
	if n.eigengenes == nil {
		return nil
	}
	return n.eigengenes
}

// VarianceExplained returns the proportion of the module's standardized
// variance explained by its eigengene.
func (n *Network) VarianceExplained(module string) float64 {
	return n.varExplained[module]
}

// Samples returns the samples the network was built on.
func (n *Network) Samples() []string {
	if n.expr == nil {
		return nil
	}
	return n.expr.Samples()
}

// SetOutliers records the outlier annotation, replacing any previous one.
func (n *Network) SetOutliers(modules []string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.outliers = make(map[string]bool, len(modules))
	for _, m := range modules {
		n.outliers[m] = true
	}
}

func (n *Network) IsOutlier(module string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()

	return n.outliers[module]
}

// Outliers returns the annotated outlier modules in SortModules order.
func (n *Network) Outliers() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]string, 0, len(n.outliers))
	for m := range n.outliers {
		out = append(out, m)
	}
	SortModules(out)

	return out
}

// SortModules orders module labels numerically when both labels are integers
// and lexically otherwise, with integers first and Unassigned last.
func SortModules(labels []string) {
	sort.SliceStable(labels, func(i, j int) bool {
		return ModuleLess(labels[i], labels[j])
	})
}

// ModuleLess reports whether label a sorts before label b in SortModules order.
func ModuleLess(a, b string) bool {
	if a == Unassigned || b == Unassigned {
		return b == Unassigned && a != Unassigned
	}

	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)
	switch {
	case aErr == nil && bErr == nil:
		return ai < bi
	case aErr == nil:
		return true
	case bErr == nil:
		return false
	}

	return a < b
}
