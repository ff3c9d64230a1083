package overlap

import (
	"fmt"
	"math"

	"github.com/carbocation/multiwgcna"
)

// ModuleRef names a module within a specific network, so that identically
// labelled modules of different networks are never confused.
type ModuleRef struct {
	Network string
	Module  string
}

func (m ModuleRef) String() string { return m.Network + ":" + m.Module }

// Match is one directed best match, with the overlap statistics that produced
// it.
type Match struct {
	From    ModuleRef
	To      ModuleRef
	P       float64
	Overlap int
}

// Correspondence is the module matching derived from one overlap Result.
type Correspondence struct {
	NetworkA string
	NetworkB string

	// Best maps each non-degenerate module of A to its best match in B.
	Best map[string]Match
	// Reverse maps each non-degenerate module of B to its best match in A.
	Reverse map[string]Match
	// Bidirectional holds the pairs that are each other's best match, in A's
	// module order, directed from A to B.
	Bidirectional []Match
}

// ResolveBestMatches finds, for every module of A, the module of B with the
// smallest overlap p-value, and vice versa. Ties are broken by the larger
// overlap, then the smaller partner module, then module order.
func ResolveBestMatches(r *Result) *Correspondence {
	c := &Correspondence{
		NetworkA: r.NetworkA,
		NetworkB: r.NetworkB,
		Best:     bestMatches(r),
	}

	c.Reverse = bestMatches(Transpose(r))

	for _, a := range r.ModulesA {
		m, ok := c.Best[a]
		if !ok {
			continue
		}
		if back, ok := c.Reverse[m.To.Module]; ok && back.To.Module == a {
			c.Bidirectional = append(c.Bidirectional, m)
		}
	}

	return c
}

func bestMatches(r *Result) map[string]Match {
	out := make(map[string]Match)

	for i, a := range r.ModulesA {
		if r.DegenerateA[i] {
			continue
		}

		best := -1
		for j := range r.ModulesB {
			if r.DegenerateB[j] {
				continue
			}
			if best < 0 || better(r, i, j, best) {
				best = j
			}
		}
		if best < 0 {
			continue
		}

		out[a] = Match{
			From:    ModuleRef{Network: r.NetworkA, Module: a},
			To:      ModuleRef{Network: r.NetworkB, Module: r.ModulesB[best]},
			P:       r.P.At(i, best),
			Overlap: r.Counts[i][best],
		}
	}

	return out
}

// better reports whether column j beats column k as the match for row i.
// Columns are visited in module order, so a full tie keeps the earlier one.
func better(r *Result, i, j, k int) bool {
	pj, pk := r.P.At(i, j), r.P.At(i, k)
	if pj != pk {
		return pj < pk
	}
	if r.Counts[i][j] != r.Counts[i][k] {
		return r.Counts[i][j] > r.Counts[i][k]
	}
	return r.SizesB[j] < r.SizesB[k]
}

// IsBidirectional reports whether moduleA of A and moduleB of B are each
// other's best match.
func (c *Correspondence) IsBidirectional(moduleA, moduleB string) bool {
	for _, m := range c.Bidirectional {
		if m.From.Module == moduleA && m.To.Module == moduleB {
			return true
		}
	}
	return false
}

// Trace is the best match of one module in another network. When the module
// has no match there, To names only the network and Found is false.
type Trace struct {
	Match
	Bidirectional bool
	Found         bool
}

// TraceModule follows a module of one network into each of the other
// networks, reporting its best match there and whether the match is mutual.
// The traces are in the order of others, one per network.
func TraceModule(from *multiwgcna.Network, module string, others ...*multiwgcna.Network) ([]Trace, error) {
	if from.Size(module) == 0 {
		return nil, fmt.Errorf("%w: network %s has no module %s", multiwgcna.ErrInvalidInput, from.Name, module)
	}

	out := make([]Trace, 0, len(others))
	for _, other := range others {
		r, err := Compute(from, other)
		if err != nil {
			return nil, err
		}

		c := ResolveBestMatches(r)
		m, ok := c.Best[module]
		if !ok {
			out = append(out, Trace{
				Match: Match{
					From: ModuleRef{Network: from.Name, Module: module},
					To:   ModuleRef{Network: other.Name},
					P:    math.NaN(),
				},
			})
			continue
		}

		out = append(out, Trace{
			Match:         m,
			Bidirectional: c.IsBidirectional(m.From.Module, m.To.Module),
			Found:         true,
		})
	}

	return out, nil
}
