package multiwgcna

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestSampleTable(t *testing.T) {
	table, err := ReadSampleTable(strings.NewReader("sample\tstatus\tregion\ns1\tEAE\tcortex\ns2\tWT\tcortex\ns3\tEAE\tcord\n"))
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(table.Factors(), []string{"status", "region"}) {
		t.Fatalf("Factors %v", table.Factors())
	}
	if !reflect.DeepEqual(table.Levels("status"), []string{"EAE", "WT"}) {
		t.Fatalf("Levels %v", table.Levels("status"))
	}
	if !reflect.DeepEqual(table.SamplesWhere("status", "EAE"), []string{"s1", "s3"}) {
		t.Fatalf("EAE samples %v", table.SamplesWhere("status", "EAE"))
	}
	if err := table.RequireFactors("status", "region"); err != nil {
		t.Fatal(err)
	}
	if err := table.RequireFactors("batch"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("Expected ErrInvalidInput for a missing column, got %v", err)
	}
}

func TestSampleTableErrors(t *testing.T) {
	for _, v := range []struct {
		Header []string
		Rows   [][]string
	}{
		{[]string{"sample"}, nil},
		{[]string{"sample", "status", "status"}, nil},
		{[]string{"sample", "status"}, [][]string{{"s1", "EAE"}, {"s1", "WT"}}},
		{[]string{"sample", "status"}, [][]string{{"", "EAE"}}},
		{[]string{"sample", "status"}, [][]string{{"s1"}}},
	} {
		if _, err := NewSampleTable(v.Header, v.Rows); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%v %v: expected ErrInvalidInput, got %v", v.Header, v.Rows, err)
		}
	}
}

type constantBuilder struct{}

func (constantBuilder) Build(name string, expr *Expression) (*Network, error) {
	assignment := make(map[string]string)
	for _, g := range expr.Genes() {
		assignment[g] = "1"
	}
	return NewNetwork(name, expr, assignment)
}

func TestBuildNetworks(t *testing.T) {
	table, err := NewSampleTable([]string{"sample", "status"}, [][]string{{"s1", "EAE"}, {"s2", "WT"}, {"s3", "EAE"}, {"s4", "WT"}})
	if err != nil {
		t.Fatal(err)
	}
	expr, err := NewExpressionFromRows([]string{"a", "b"}, []string{"s1", "s2", "s3", "s4"}, [][]float64{{1, 2, 3, 4}, {2, 1, 4, 3}})
	if err != nil {
		t.Fatal(err)
	}

	nets, err := BuildNetworks(constantBuilder{}, expr, table, "status")
	if err != nil {
		t.Fatal(err)
	}
	if len(nets) != 3 {
		t.Fatalf("%d networks, expected combined, EAE and WT", len(nets))
	}
	if !reflect.DeepEqual(nets["EAE"].Samples(), []string{"s1", "s3"}) {
		t.Fatalf("EAE network has samples %v", nets["EAE"].Samples())
	}
	if len(nets[CombinedNetwork].Samples()) != 4 {
		t.Fatalf("Combined network has samples %v", nets[CombinedNetwork].Samples())
	}

	if _, err := BuildNetworks(constantBuilder{}, expr, table, "region"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("Expected ErrInvalidInput for a missing factor, got %v", err)
	}
}
