package permutation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/carbocation/multiwgcna"
	"github.com/carbocation/multiwgcna/preservation"
)

// prefixBuilder assigns genes to modules by the prefix before their
// underscore and fails for the replicates named in fail.
type prefixBuilder struct {
	fail  map[string]bool
	calls int64
}

func (b *prefixBuilder) Build(name string, expr *multiwgcna.Expression) (*multiwgcna.Network, error) {
	atomic.AddInt64(&b.calls, 1)
	if b.fail[name] {
		return nil, fmt.Errorf("too few genes pass filtering in %s", name)
	}

	assignment := make(map[string]string)
	for _, g := range expr.Genes() {
		prefix := strings.SplitN(g, "_", 2)[0]
		if prefix != "bg" {
			assignment[g] = prefix
		}
	}

	return multiwgcna.NewNetwork(name, expr, assignment)
}

// condition x region design with 6 samples per region
func permutationData(t *testing.T) (*multiwgcna.Expression, *multiwgcna.SampleTable) {
	t.Helper()

	rng := rand.New(rand.NewSource(2))

	samples := make([]string, 0)
	rows := make([][]string, 0)
	for _, region := range []string{"cortex", "spinal", "stem"} {
		for i := 0; i < 6; i++ {
			s := fmt.Sprintf("%s%d", region, i)
			cond := "EAE"
			if i%2 == 1 {
				cond = "WT"
			}
			samples = append(samples, s)
			rows = append(rows, []string{s, cond, region})
		}
	}

	table, err := multiwgcna.NewSampleTable([]string{"sample", "status", "region"}, rows)
	if err != nil {
		t.Fatal(err)
	}

	genes := make([]string, 0)
	values := make([][]float64, 0)
	for m := 1; m <= 3; m++ {
		f := make([]float64, len(samples))
		for j := range f {
			f[j] = rng.NormFloat64()
		}
		for g := 0; g < 8; g++ {
			row := make([]float64, len(samples))
			for j := range row {
				row[j] = f[j] + 0.4*rng.NormFloat64()
			}
			genes = append(genes, fmt.Sprintf("%d_%d", m, g))
			values = append(values, row)
		}
	}
	for g := 0; g < 20; g++ {
		row := make([]float64, len(samples))
		for j := range row {
			row[j] = rng.NormFloat64()
		}
		genes = append(genes, fmt.Sprintf("bg_%d", g))
		values = append(values, row)
	}

	expr, err := multiwgcna.NewExpressionFromRows(genes, samples, values)
	if err != nil {
		t.Fatal(err)
	}

	return expr, table
}

func testConfig() Config {
	return Config{
		ConditionFactor:  "status",
		ConstructIn:      "EAE",
		TestIn:           "WT",
		ConfoundFactor:   "region",
		Permutations:     10,
		PresPermutations: 20,
		Workers:          3,
		Seed:             42,
	}
}

func TestAllocateLargestRemainder(t *testing.T) {
	for _, v := range []struct {
		Sizes     map[string]int
		Seats     int
		Construct map[string]int
	}{
		{map[string]int{"a": 5, "b": 3, "c": 2}, 4, map[string]int{"a": 2, "b": 1, "c": 1}},
		{map[string]int{"a": 3, "b": 3}, 3, map[string]int{"a": 2, "b": 1}},
		{map[string]int{"a": 2, "b": 4}, 3, map[string]int{"a": 1, "b": 2}},
		{map[string]int{"a": 1, "b": 2, "c": 2}, 2, map[string]int{"a": 0, "b": 1, "c": 1}},
		{map[string]int{"x": 4, "y": 4, "z": 4}, 6, map[string]int{"x": 2, "y": 2, "z": 2}},
	} {
		strata := make([]Stratum, 0)
		for _, level := range []string{"a", "b", "c", "x", "y", "z"} {
			n, ok := v.Sizes[level]
			if !ok {
				continue
			}
			strata = append(strata, Stratum{Level: level, Samples: make([]string, n)})
		}

		allocateSeats(strata, v.Seats)

		total := 0
		for _, st := range strata {
			total += st.Construct
			if st.Construct != v.Construct[st.Level] {
				t.Fatalf("Sizes %v, %d seats: level %s got %d, expected %d", v.Sizes, v.Seats, st.Level, st.Construct, v.Construct[st.Level])
			}
		}
		if total != v.Seats {
			t.Fatalf("Allocated %d seats, expected %d", total, v.Seats)
		}
	}
}

func TestAllocateSplit(t *testing.T) {
	expr, table := permutationData(t)

	alloc, err := Allocate(expr, table, testConfig())
	if err != nil {
		t.Fatal(err)
	}
	if alloc.Construct != 9 || alloc.Test != 9 {
		t.Fatalf("Groups of %d and %d, expected 9 and 9", alloc.Construct, alloc.Test)
	}

	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 20; trial++ {
		construct, test := alloc.Split(rng)
		if len(construct) != 9 || len(test) != 9 {
			t.Fatalf("Split into %d and %d samples", len(construct), len(test))
		}

		perRegion := make(map[string]int)
		seen := make(map[string]bool)
		for _, s := range construct {
			region, _ := table.Level(s, "region")
			perRegion[region]++
			seen[s] = true
		}
		for _, s := range test {
			if seen[s] {
				t.Fatalf("Sample %s is in both groups", s)
			}
		}
		for region, n := range perRegion {
			if n != 3 {
				t.Fatalf("Region %s has %d construct samples, expected 3", region, n)
			}
		}
	}
}

func TestInsufficientSamples(t *testing.T) {
	expr, _ := permutationData(t)

	// One stem sample is the only one of its level
	rows := make([][]string, 0)
	for i, s := range expr.Samples() {
		region := "cortex"
		if i == 0 {
			region = "stem"
		}
		cond := "EAE"
		if i%2 == 1 {
			cond = "WT"
		}
		rows = append(rows, []string{s, cond, region})
	}
	table, err := multiwgcna.NewSampleTable([]string{"sample", "status", "region"}, rows)
	if err != nil {
		t.Fatal(err)
	}

	b := &prefixBuilder{}
	_, err = Run(context.Background(), expr, table, b, testConfig())
	if !errors.Is(err, multiwgcna.ErrInsufficientSamples) {
		t.Fatalf("Expected ErrInsufficientSamples, got %v", err)
	}
	if b.calls != 0 {
		t.Fatalf("Builder was called %d times before the error", b.calls)
	}
}

func TestRunMissingFactor(t *testing.T) {
	expr, table := permutationData(t)

	cfg := testConfig()
	cfg.ConfoundFactor = "batch"

	b := &prefixBuilder{}
	if _, err := Run(context.Background(), expr, table, b, cfg); !errors.Is(err, multiwgcna.ErrInvalidInput) {
		t.Fatalf("Expected ErrInvalidInput, got %v", err)
	}
	if b.calls != 0 {
		t.Fatalf("Builder was called %d times before the error", b.calls)
	}
}

func TestRun(t *testing.T) {
	expr, table := permutationData(t)

	b := &prefixBuilder{fail: map[string]bool{"EAE_replicate3": true, "WT_replicate7": true}}
	res, err := Run(context.Background(), expr, table, b, testConfig())
	if err != nil {
		t.Fatal(err)
	}

	if res.Succeeded != 8 || res.Dropped != 2 {
		t.Fatalf("%d succeeded and %d dropped, expected 8 and 2", res.Succeeded, res.Dropped)
	}
	if len(res.Failures) != 2 || res.Failures[0].Replicate != 3 || res.Failures[1].Replicate != 7 {
		t.Fatalf("Failures %+v, expected replicates 3 and 7", res.Failures)
	}
	for _, f := range res.Failures {
		if !errors.Is(f.Err, multiwgcna.ErrReplicateFailure) {
			t.Fatalf("Failure %v does not wrap ErrReplicateFailure", f.Err)
		}
	}

	if len(res.Null) == 0 {
		t.Fatalf("No null records")
	}
	if res.UnassessedModules != 0 {
		t.Fatalf("%d modules could not be assessed for outliers", res.UnassessedModules)
	}
	for i, rec := range res.Null {
		if rec.Replicate == 3 || rec.Replicate == 7 {
			t.Fatalf("Record from failed replicate %d", rec.Replicate)
		}
		if math.IsNaN(rec.Score) {
			t.Fatalf("Degenerate score recorded for replicate %d module %s", rec.Replicate, rec.Module)
		}
		if i > 0 && rec.Replicate < res.Null[i-1].Replicate {
			t.Fatalf("Null records are not sorted by replicate")
		}
	}

	// Scheduling does not change the records
	b2 := &prefixBuilder{fail: b.fail}
	cfg := testConfig()
	cfg.Workers = 1
	again, err := Run(context.Background(), expr, table, b2, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(again.Null) != len(res.Null) {
		t.Fatalf("%d records with 1 worker, %d with 3", len(again.Null), len(res.Null))
	}
	for i := range res.Null {
		if res.Null[i] != again.Null[i] {
			t.Fatalf("Record %d differs: %+v vs %+v", i, res.Null[i], again.Null[i])
		}
	}
}

func TestRunCancelled(t *testing.T) {
	expr, table := permutationData(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := &prefixBuilder{}
	res, err := Run(ctx, expr, table, b, testConfig())
	if err != nil {
		t.Fatal(err)
	}
	if res.Succeeded != 0 || res.Dropped != 10 {
		t.Fatalf("%d succeeded and %d dropped after cancellation, expected 0 and 10", res.Succeeded, res.Dropped)
	}
	if b.calls != 0 {
		t.Fatalf("Builder was called %d times after cancellation", b.calls)
	}
}

func TestObserved(t *testing.T) {
	expr, table := permutationData(t)

	null := []NullRecord{
		{Replicate: 0, Module: "1", Size: 8, Score: -1},
		{Replicate: 1, Module: "1", Size: 8, Score: 0},
		{Replicate: 2, Module: "1", Size: 8, Score: 1000},
	}

	obs, err := Observed(expr, table, &prefixBuilder{}, testConfig(), null, DefaultMatchOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(obs) != 3 {
		t.Fatalf("%d observations, expected 3", len(obs))
	}
	for _, o := range obs {
		if o.Size != 8 {
			t.Fatalf("Module %s scored on %d genes, expected 8", o.Module, o.Size)
		}
		if o.Degenerate {
			continue
		}
		if o.NullSize != 3 {
			t.Fatalf("Module %s compared against %d null scores, expected 3", o.Module, o.NullSize)
		}
		if o.P < 0 || o.P > 1 {
			t.Fatalf("Module %s has p %v", o.Module, o.P)
		}
	}
}

func TestPreservationOverride(t *testing.T) {
	cfg := Config{PresPermutations: 7, Preservation: preservation.Options{Permutations: 50}}.withDefaults()
	if cfg.Preservation.Permutations != 7 {
		t.Fatalf("Preservation permutations %d, expected 7", cfg.Preservation.Permutations)
	}
}
