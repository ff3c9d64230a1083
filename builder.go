package multiwgcna

import (
	"fmt"
)

// CombinedNetwork names the network built on every sample.
const CombinedNetwork = "combined"

// Builder constructs a co-expression network from an expression matrix. The
// module-detection algorithm is opaque to the rest of this package: all that
// is consumed is the resulting gene->module assignment and eigengenes.
//
// Implementations must be safe for concurrent use, since permutation replicates
// build networks in parallel.
type Builder interface {
	Build(name string, expr *Expression) (*Network, error)
}

// BuildNetworks builds the combined network on every sample of expr plus one
// network for each level of factor, using only the samples at that level.
// The returned map is keyed by network name: CombinedNetwork and the level
// names.
func BuildNetworks(b Builder, expr *Expression, table *SampleTable, factor string) (map[string]*Network, error) {
	if err := table.RequireFactors(factor); err != nil {
		return nil, err
	}

	for _, s := range expr.Samples() {
		if !table.HasSample(s) {
			return nil, fmt.Errorf("%w: expression sample %q is missing from the sample table", ErrInvalidInput, s)
		}
	}

	out := make(map[string]*Network)

	combined, err := b.Build(CombinedNetwork, expr)
	if err != nil {
		return nil, fmt.Errorf("building %s network: %w", CombinedNetwork, err)
	}
	out[CombinedNetwork] = combined

	for _, level := range table.Levels(factor) {
		samples := make([]string, 0)
		for _, s := range table.SamplesWhere(factor, level) {
			if _, ok := expr.SampleIndex(s); ok {
				samples = append(samples, s)
			}
		}
		if len(samples) == 0 {
			continue
		}

		sub, err := expr.SubsetSamples(samples)
		if err != nil {
			return nil, err
		}

		net, err := b.Build(level, sub)
		if err != nil {
			return nil, fmt.Errorf("building %s network: %w", level, err)
		}
		out[level] = net
	}

	return out, nil
}
