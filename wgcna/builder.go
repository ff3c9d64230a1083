package wgcna

import (
	"errors"
	"fmt"

	"github.com/carbocation/multiwgcna"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrTooFewGenes   = errors.New("too few genes pass filtering")
	ErrTooFewSamples = errors.New("too few samples")
	ErrBlockTooLarge = errors.New("more genes than fit in one block")
)

// Per unit of deep split, the tree cut height is lowered by this much, which
// demands tighter overlap before genes are linked.
const deepSplitStep = 0.025

// Builder builds networks with fixed construction parameters. It holds no
// mutable state and is safe for concurrent use.
type Builder struct {
	Params multiwgcna.NetworkParams
}

func New(params multiwgcna.NetworkParams) (*Builder, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Builder{Params: params}, nil
}

// Build detects modules in expr. Genes that do not vary (or have missing
// values) in expr are left unassigned.
func (b *Builder) Build(name string, expr *multiwgcna.Expression) (*multiwgcna.Network, error) {
	p := b.Params

	if expr.NSamples() < 3 {
		return nil, fmt.Errorf("network %s: %w: %d samples", name, ErrTooFewSamples, expr.NSamples())
	}

	genes := make([]string, 0, expr.NGenes())
	rows := make([][]float64, 0, expr.NGenes())
	for i, g := range expr.Genes() {
		if !expr.Finite(i) {
			continue
		}
		z := multiwgcna.Standardize(expr.Row(i))
		if z == nil {
			continue
		}
		genes = append(genes, g)
		rows = append(rows, z)
	}

	if len(genes) < p.MinModuleSize {
		return nil, fmt.Errorf("network %s: %w: %d of %d genes remain, minimum module size is %d", name, ErrTooFewGenes, len(genes), expr.NGenes(), p.MinModuleSize)
	}
	if len(genes) > p.MaxBlockSize {
		return nil, fmt.Errorf("network %s: %w: %d genes, block size %d", name, ErrBlockTooLarge, len(genes), p.MaxBlockSize)
	}

	z := mat.NewDense(len(genes), expr.NSamples(), nil)
	for i, row := range rows {
		z.SetRow(i, row)
	}

	cor := Correlation(z)
	adj := Adjacency(cor, p.NetworkType, p.Power)
	tom := TOM(adj, cor, p.TOMType)

	height := p.TreeCutHeight - deepSplitStep*float64(p.DeepSplit)
	modules := CutModules(tom, 1-height, p.MinModuleSize)
	modules = MergeCloseModules(rows, modules, p.MergeCutHeight)

	return multiwgcna.NewNetwork(name, expr, Labels(genes, modules))
}
