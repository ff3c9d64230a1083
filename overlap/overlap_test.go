package overlap

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/carbocation/multiwgcna"
)

type tailExpectation struct {
	Overlap, SizeA, SizeB, Universe int

	P float64
}

// Truth values from the hypergeometric distribution, e.g. R's
// phyper(x-1, K, n-K, k, lower.tail=FALSE)
func TestUpperTail(t *testing.T) {
	for _, v := range []tailExpectation{
		{0, 10, 10, 100, 1},
		{1, 1, 1, 2, 0.5},
		{2, 2, 2, 4, 1.0 / 6},
		{1, 2, 2, 4, 5.0 / 6},
		{3, 3, 3, 3, 1},
		{5, 5, 5, 20, 1.0 / 15504},
	} {
		if p := UpperTail(v.Overlap, v.SizeA, v.SizeB, v.Universe); math.Abs(p-v.P) > 1e-9 {
			t.Fatalf("\nError with input: %+v\nP: %.12f\nExpected: %.12f\n", v, p, v.P)
		}
	}
}

func TestUpperTailBounds(t *testing.T) {
	for universe := 1; universe <= 30; universe += 7 {
		for a := 0; a <= universe; a += 3 {
			for b := 0; b <= universe; b += 4 {
				for x := 0; x <= a && x <= b; x++ {
					p := UpperTail(x, a, b, universe)
					if p < 0 || p > 1 || math.IsNaN(p) {
						t.Fatalf("UpperTail(%d, %d, %d, %d) = %v", x, a, b, universe, p)
					}
					if x == 0 && p != 1 {
						t.Fatalf("UpperTail at zero overlap is %v", p)
					}
				}
			}
		}
	}
}

// Two 80-gene networks: a1 (50 genes) shares 45 with b1 (48 genes) and a2
// (30 genes) shares 27 with b2 (32 genes).
func scenario(t *testing.T) (*multiwgcna.Network, *multiwgcna.Network) {
	t.Helper()

	gene := func(i int) string { return fmt.Sprintf("g%02d", i) }

	a := make(map[string]string)
	b := make(map[string]string)
	for i := 0; i < 80; i++ {
		if i < 50 {
			a[gene(i)] = "a1"
		} else {
			a[gene(i)] = "a2"
		}

		switch {
		case i < 45:
			b[gene(i)] = "b1"
		case i < 50:
			b[gene(i)] = "b2"
		case i < 53:
			b[gene(i)] = "b1"
		default:
			b[gene(i)] = "b2"
		}
	}

	na, err := multiwgcna.NewAssignmentNetwork("A", a)
	if err != nil {
		t.Fatal(err)
	}
	nb, err := multiwgcna.NewAssignmentNetwork("B", b)
	if err != nil {
		t.Fatal(err)
	}

	return na, nb
}

func TestComputeScenario(t *testing.T) {
	a, b := scenario(t)

	res, err := Compute(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if res.Universe != 80 {
		t.Fatalf("Universe of %d genes, expected 80", res.Universe)
	}

	p11, n11, _ := res.Lookup("a1", "b1")
	p12, n12, _ := res.Lookup("a1", "b2")
	p22, n22, _ := res.Lookup("a2", "b2")
	if n11 != 45 || n12 != 5 || n22 != 27 {
		t.Fatalf("Overlaps %d, %d, %d; expected 45, 5, 27", n11, n12, n22)
	}
	if !(p11 < 1e-10 && p12 > 0.5 && p11 < p12/1e6) {
		t.Fatalf("p(a1,b1) = %v, p(a1,b2) = %v", p11, p12)
	}
	if p22 > 1e-6 {
		t.Fatalf("p(a2,b2) = %v", p22)
	}

	for i := range res.ModulesA {
		for j := range res.ModulesB {
			if res.Counts[i][j] > res.SizesA[i] || res.Counts[i][j] > res.SizesB[j] {
				t.Fatalf("Overlap %d exceeds module sizes %d and %d", res.Counts[i][j], res.SizesA[i], res.SizesB[j])
			}
		}
	}

	c := ResolveBestMatches(res)
	if len(c.Bidirectional) != 2 || !c.IsBidirectional("a1", "b1") || !c.IsBidirectional("a2", "b2") {
		t.Fatalf("Bidirectional matches %+v, expected a1-b1 and a2-b2", c.Bidirectional)
	}
	if c.Best["a1"].To != (ModuleRef{Network: "B", Module: "b1"}) {
		t.Fatalf("Best match of a1 is %v", c.Best["a1"].To)
	}
}

func TestBidirectionalSymmetry(t *testing.T) {
	a, b := scenario(t)

	ab, err := Compute(a, b)
	if err != nil {
		t.Fatal(err)
	}
	ba, err := Compute(b, a)
	if err != nil {
		t.Fatal(err)
	}

	forward := ResolveBestMatches(ab)
	backward := ResolveBestMatches(ba)
	transposed := ResolveBestMatches(Transpose(ab))

	for _, m := range forward.Bidirectional {
		if !backward.IsBidirectional(m.To.Module, m.From.Module) {
			t.Fatalf("%v <-> %v is not bidirectional in the reverse direction", m.From, m.To)
		}
		if !transposed.IsBidirectional(m.To.Module, m.From.Module) {
			t.Fatalf("%v <-> %v is not bidirectional after transposing", m.From, m.To)
		}
	}
	if len(backward.Bidirectional) != len(forward.Bidirectional) {
		t.Fatalf("%d bidirectional matches forward, %d backward", len(forward.Bidirectional), len(backward.Bidirectional))
	}
}

func TestUnassignedExcluded(t *testing.T) {
	a, err := multiwgcna.NewAssignmentNetwork("A", map[string]string{
		"g1": "1", "g2": "1", "g3": "1", "g4": multiwgcna.Unassigned, "g5": multiwgcna.Unassigned,
	})
	if err != nil {
		t.Fatal(err)
	}
	b, err := multiwgcna.NewAssignmentNetwork("B", map[string]string{
		"g1": "x", "g2": "x", "g3": multiwgcna.Unassigned, "g4": multiwgcna.Unassigned, "g5": multiwgcna.Unassigned,
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := Compute(a, b)
	if err != nil {
		t.Fatal(err)
	}

	p, n, ok := res.Lookup(multiwgcna.Unassigned, multiwgcna.Unassigned)
	if !ok || p != 1 || n != 2 {
		t.Fatalf("Unassigned pair has p %v and overlap %d, expected p 1 and overlap 2", p, n)
	}

	c := ResolveBestMatches(res)
	if _, ok := c.Best[multiwgcna.Unassigned]; ok {
		t.Fatalf("Unassigned module was matched")
	}
	if m := c.Best["1"]; m.To.Module != "x" {
		t.Fatalf("Module 1 matched %v, expected x", m.To)
	}
}

func TestComputeDisjoint(t *testing.T) {
	a, _ := multiwgcna.NewAssignmentNetwork("A", map[string]string{"g1": "1"})
	b, _ := multiwgcna.NewAssignmentNetwork("B", map[string]string{"h1": "1"})

	if _, err := Compute(a, b); !errors.Is(err, multiwgcna.ErrInvalidInput) {
		t.Fatalf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestTraceModule(t *testing.T) {
	a, b := scenario(t)

	traces, err := TraceModule(a, "a2", b)
	if err != nil {
		t.Fatal(err)
	}
	if len(traces) != 1 {
		t.Fatalf("%d traces, expected 1", len(traces))
	}
	if traces[0].To.Module != "b2" || !traces[0].Bidirectional || !traces[0].Found {
		t.Fatalf("a2 traced to %v (bidirectional %v), expected b2", traces[0].To, traces[0].Bidirectional)
	}

	// A network with no assigned module still yields one trace
	allGrey := make(map[string]string)
	for _, g := range b.AllGenes() {
		allGrey[g] = multiwgcna.Unassigned
	}
	grey, err := multiwgcna.NewAssignmentNetwork("C", allGrey)
	if err != nil {
		t.Fatal(err)
	}

	traces, err = TraceModule(a, "a1", grey, b)
	if err != nil {
		t.Fatal(err)
	}
	if len(traces) != 2 {
		t.Fatalf("%d traces for 2 networks", len(traces))
	}
	if traces[0].Found || traces[0].To != (ModuleRef{Network: "C"}) || !math.IsNaN(traces[0].P) {
		t.Fatalf("Trace into an unassigned network: %+v", traces[0])
	}
	if !traces[1].Found || traces[1].To.Module != "b1" {
		t.Fatalf("a1 traced to %v, expected b1", traces[1].To)
	}

	if _, err := TraceModule(a, "a9", b); !errors.Is(err, multiwgcna.ErrInvalidInput) {
		t.Fatalf("Expected ErrInvalidInput for a missing module, got %v", err)
	}
}
