package dme

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/carbocation/multiwgcna"
	"github.com/gocarina/gocsv"
)

var dmeSamples = []string{"s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8"}

// Module 1 separates the two status levels, module 2 repeats the same pattern
// in both, module 3 is constant.
func dmeNetwork(t *testing.T) *multiwgcna.Network {
	t.Helper()

	separated := []float64{-1.0, -1.01, -0.99, -1.005, 1.0, 1.01, 0.99, 1.005}
	repeated := []float64{1, 2, 3, 4, 1, 2, 3, 4}

	genes := make([]string, 0)
	rows := make([][]float64, 0)
	assignment := make(map[string]string)
	add := func(gene, module string, pattern []float64, scale, shift float64) {
		row := make([]float64, len(pattern))
		for i, v := range pattern {
			row[i] = scale*v + shift
		}
		genes = append(genes, gene)
		rows = append(rows, row)
		assignment[gene] = module
	}

	for k := 0; k < 4; k++ {
		add("sep"+string(rune('a'+k)), "1", separated, 1+float64(k), float64(k))
		add("rep"+string(rune('a'+k)), "2", repeated, 0.5+float64(k), -float64(k))
		add("flat"+string(rune('a'+k)), "3", repeated, 0, float64(k))
	}

	expr, err := multiwgcna.NewExpressionFromRows(genes, dmeSamples, rows)
	if err != nil {
		t.Fatal(err)
	}
	net, err := multiwgcna.NewNetwork("test", expr, assignment)
	if err != nil {
		t.Fatal(err)
	}

	return net
}

func dmeTable(t *testing.T) *multiwgcna.SampleTable {
	t.Helper()

	rows := [][]string{
		{"s1", "control", "r1"},
		{"s2", "control", "r2"},
		{"s3", "control", "r1"},
		{"s4", "control", "r2"},
		{"s5", "case", "r1"},
		{"s6", "case", "r2"},
		{"s7", "case", "r1"},
		{"s8", "case", "r2"},
	}
	table, err := multiwgcna.NewSampleTable([]string{"sample", "status", "region"}, rows)
	if err != nil {
		t.Fatal(err)
	}

	return table
}

func TestRunSeparation(t *testing.T) {
	res, err := Run(dmeNetwork(t), dmeTable(t), Options{RefCondition: "region", TestCondition: "status"})
	if err != nil {
		t.Fatal(err)
	}

	if got := strings.Join(res.Terms, ","); got != "region,status" {
		t.Fatalf("Terms %s, expected region,status", got)
	}

	sep, ok := res.Lookup("1", "status")
	if !ok {
		t.Fatalf("No status result for module 1")
	}
	if sep.P > 1e-6 {
		t.Fatalf("Perfectly separated module has p %v, expected ~0", sep.P)
	}

	same, ok := res.Lookup("2", "status")
	if !ok {
		t.Fatalf("No status result for module 2")
	}
	if same.P < 0.99 {
		t.Fatalf("Module with equal group means has p %v, expected ~1", same.P)
	}

	for _, term := range res.Terms {
		flat, _ := res.Lookup("3", term)
		if !math.IsNaN(flat.P) || !math.IsNaN(flat.Adjusted) {
			t.Fatalf("Constant module has p %v (adjusted %v) for %s, expected NaN", flat.P, flat.Adjusted, term)
		}
	}
	if res.DegenerateModules != 1 {
		t.Fatalf("%d degenerate modules, expected 1", res.DegenerateModules)
	}
	if res.Undefined != 2 {
		t.Fatalf("%d undefined p-values, expected 2", res.Undefined)
	}

	for _, m := range res.Modules {
		for _, term := range m.Terms {
			if math.IsNaN(term.P) {
				continue
			}
			if term.Adjusted < term.P {
				t.Fatalf("Module %s term %s: adjusted %v < raw %v", m.Module, term.Term, term.Adjusted, term.P)
			}
		}
	}
}

func TestRunGreyExcluded(t *testing.T) {
	net := dmeNetwork(t)
	res, err := Run(net, dmeTable(t), Options{TestCondition: "status"})
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range res.Modules {
		if m.Module == multiwgcna.Unassigned {
			t.Fatalf("Unassigned module was tested")
		}
	}
	if len(res.Modules) != 3 {
		t.Fatalf("%d modules tested, expected 3", len(res.Modules))
	}
}

func TestRunInteraction(t *testing.T) {
	res, err := Run(dmeNetwork(t), dmeTable(t), Options{RefCondition: "region", TestCondition: "status", Interaction: true})
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Terms) != 3 || res.Terms[2] != InteractionTerm("region", "status") {
		t.Fatalf("Terms %v, expected an interaction term last", res.Terms)
	}

	tr, _ := res.Lookup("1", "status")
	if tr.DF != 1 {
		t.Fatalf("Status term has %d df, expected 1", tr.DF)
	}
	inter, _ := res.Lookup("1", InteractionTerm("region", "status"))
	if inter.DF != 1 {
		t.Fatalf("Interaction term has %d df, expected 1", inter.DF)
	}
}

func TestRunPermutation(t *testing.T) {
	opts := Options{RefCondition: "region", TestCondition: "status", Method: "permutation", Permutations: 199, Seed: 3}
	res, err := Run(dmeNetwork(t), dmeTable(t), opts)
	if err != nil {
		t.Fatal(err)
	}

	sep, _ := res.Lookup("1", "status")
	// Within region strata the two status levels can be swapped 36 ways;
	// only the observed split and its mirror are as extreme.
	if sep.P > 0.2 {
		t.Fatalf("Permutation p of separated module is %v", sep.P)
	}
	if sep.P < 1.0/200 {
		t.Fatalf("Permutation p %v is below its lower bound", sep.P)
	}

	again, err := Run(dmeNetwork(t), dmeTable(t), opts)
	if err != nil {
		t.Fatal(err)
	}
	sep2, _ := again.Lookup("1", "status")
	if sep.P != sep2.P {
		t.Fatalf("Permutation p is not reproducible: %v vs %v", sep.P, sep2.P)
	}
}

func TestRunMissingFactor(t *testing.T) {
	_, err := Run(dmeNetwork(t), dmeTable(t), Options{RefCondition: "region", TestCondition: "diagnosis"})
	if !errors.Is(err, multiwgcna.ErrInvalidInput) {
		t.Fatalf("Expected ErrInvalidInput, got %v", err)
	}

	_, err = Run(dmeNetwork(t), dmeTable(t), Options{TestCondition: "status", Correction: "qvalue"})
	if !errors.Is(err, multiwgcna.ErrInvalidInput) {
		t.Fatalf("Expected ErrInvalidInput for an unknown correction, got %v", err)
	}
}

func TestRunMissingLevel(t *testing.T) {
	rows := [][]string{
		{"s1", "control"},
		{"s2", "control"},
		{"s3", "control"},
		{"s4", "NA"},
		{"s5", "case"},
		{"s6", "case"},
		{"s7", "case"},
		{"s8", ""},
	}
	table, err := multiwgcna.NewSampleTable([]string{"sample", "status"}, rows)
	if err != nil {
		t.Fatal(err)
	}

	res, err := Run(dmeNetwork(t), table, Options{TestCondition: "status"})
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range res.Modules {
		if m.N != 6 {
			t.Fatalf("Module %s used %d samples, expected 6", m.Module, m.N)
		}
	}
}

func TestWriteCSV(t *testing.T) {
	res, err := Run(dmeNetwork(t), dmeTable(t), Options{RefCondition: "region", TestCondition: "status"})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, res); err != nil {
		t.Fatal(err)
	}

	type row struct {
		Module string `csv:"module"`
		Term   string `csv:"term"`
		P      string `csv:"p"`
	}
	rows := make([]*row, 0)
	if err := gocsv.Unmarshal(&buf, &rows); err != nil {
		t.Fatal(err)
	}

	if len(rows) != len(res.Modules)*len(res.Terms) {
		t.Fatalf("%d rows written, expected %d", len(rows), len(res.Modules)*len(res.Terms))
	}
	for _, r := range rows {
		if r.Module == "3" && r.P != "" {
			t.Fatalf("Undefined p written as %q", r.P)
		}
		if r.Module == "1" && r.P == "" {
			t.Fatalf("Defined p written as an empty cell")
		}
	}
}
