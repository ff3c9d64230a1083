package multiwgcna

import (
	"fmt"
	"sort"
	"strings"
)

// SampleTable describes every sample with one level per categorical factor
// (e.g., disease status, brain region). The first column of the source table
// holds the sample identifier.
type SampleTable struct {
	IDColumn string
	factors  []string
	factorIx map[string]int
	samples  []string
	rowIx    map[string]int
	levels   [][]string // [sample][factor]
}

// NewSampleTable builds a SampleTable from a header and rows. header[0] names
// the sample identifier column; every row must have len(header) fields.
func NewSampleTable(header []string, rows [][]string) (*SampleTable, error) {
	if len(header) < 2 {
		return nil, fmt.Errorf("%w: sample table needs an identifier column and at least one factor, got %d columns", ErrInvalidInput, len(header))
	}

	t := &SampleTable{
		IDColumn: strings.TrimSpace(header[0]),
		factorIx: make(map[string]int),
		rowIx:    make(map[string]int),
	}

	for i, h := range header[1:] {
		h = strings.TrimSpace(h)
		if h == "" {
			return nil, fmt.Errorf("%w: sample table column %d has no name", ErrInvalidInput, i+2)
		}
		if _, exists := t.factorIx[h]; exists {
			return nil, fmt.Errorf("%w: sample table column %q appears more than once", ErrInvalidInput, h)
		}
		t.factorIx[h] = i
		t.factors = append(t.factors, h)
	}

	for lineNo, row := range rows {
		if len(row) != len(header) {
			return nil, fmt.Errorf("%w: sample table row %d has %d fields, expected %d", ErrInvalidInput, lineNo+1, len(row), len(header))
		}

		id := strings.TrimSpace(row[0])
		if id == "" {
			return nil, fmt.Errorf("%w: sample table row %d has no sample identifier", ErrInvalidInput, lineNo+1)
		}
		if _, exists := t.rowIx[id]; exists {
			return nil, fmt.Errorf("%w: sample %q appears more than once in the sample table", ErrInvalidInput, id)
		}

		levels := make([]string, len(t.factors))
		for j := range levels {
			levels[j] = strings.TrimSpace(row[j+1])
		}

		t.rowIx[id] = len(t.samples)
		t.samples = append(t.samples, id)
		t.levels = append(t.levels, levels)
	}

	return t, nil
}

// Factors returns the factor column names in table order.
func (t *SampleTable) Factors() []string { return t.factors }

// Samples returns the sample identifiers in table order.
func (t *SampleTable) Samples() []string { return t.samples }

func (t *SampleTable) HasFactor(factor string) bool {
	_, ok := t.factorIx[factor]
	return ok
}

func (t *SampleTable) HasSample(sample string) bool {
	_, ok := t.rowIx[sample]
	return ok
}

// RequireFactors returns an ErrInvalidInput error naming the first factor that
// is not a column of the table.
func (t *SampleTable) RequireFactors(factors ...string) error {
	for _, f := range factors {
		if !t.HasFactor(f) {
			return fmt.Errorf("%w: sample table has no column %q (columns: %s)", ErrInvalidInput, f, strings.Join(t.factors, ", "))
		}
	}
	return nil
}

// Level returns the level of factor for sample.
func (t *SampleTable) Level(sample, factor string) (string, bool) {
	r, ok := t.rowIx[sample]
	if !ok {
		return "", false
	}
	c, ok := t.factorIx[factor]
	if !ok {
		return "", false
	}
	return t.levels[r][c], true
}

// Levels returns the sorted distinct levels of factor.
func (t *SampleTable) Levels(factor string) []string {
	c, ok := t.factorIx[factor]
	if !ok {
		return nil
	}

	seen := make(map[string]struct{})
	for _, row := range t.levels {
		seen[row[c]] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Strings(out)

	return out
}

// SamplesWhere returns the samples whose factor equals level, in table order.
func (t *SampleTable) SamplesWhere(factor, level string) []string {
	c, ok := t.factorIx[factor]
	if !ok {
		return nil
	}

	out := make([]string, 0)
	for r, row := range t.levels {
		if row[c] == level {
			out = append(out, t.samples[r])
		}
	}

	return out
}

// Validate checks that every sample a network was built on is described by
// the table.
func (t *SampleTable) Validate(n *Network) error {
	for _, s := range n.Samples() {
		if !t.HasSample(s) {
			return fmt.Errorf("%w: sample %q of network %s is missing from the sample table", ErrInvalidInput, s, n.Name)
		}
	}
	return nil
}
