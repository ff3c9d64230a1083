package multiwgcna

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseParamsFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.json")
	if err := os.WriteFile(path, []byte(`{"power": 6, "min_module_size": 30, "network_type": "signed hybrid"}`), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := ParseParamsFromPath(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.Power != 6 || p.MinModuleSize != 30 || p.NetworkType != NetworkSignedHybrid {
		t.Fatalf("Parsed %+v", p)
	}

	// Absent fields keep their defaults
	def := DefaultNetworkParams()
	if p.MaxBlockSize != def.MaxBlockSize || p.DeepSplit != def.DeepSplit || p.TOMType != def.TOMType {
		t.Fatalf("Defaults were not kept: %+v", p)
	}
}

func TestValidateParams(t *testing.T) {
	for _, mutate := range []func(*NetworkParams){
		func(p *NetworkParams) { p.NetworkType = "weird" },
		func(p *NetworkParams) { p.TOMType = "signed hybrid" },
		func(p *NetworkParams) { p.Power = 0 },
		func(p *NetworkParams) { p.MinModuleSize = 1 },
		func(p *NetworkParams) { p.MaxBlockSize = 10 },
		func(p *NetworkParams) { p.DeepSplit = 5 },
		func(p *NetworkParams) { p.MergeCutHeight = 1.5 },
		func(p *NetworkParams) { p.TreeCutHeight = 0 },
	} {
		p := DefaultNetworkParams()
		mutate(&p)
		if err := p.Validate(); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%+v: expected ErrInvalidInput, got %v", p, err)
		}
	}

	if err := DefaultNetworkParams().Validate(); err != nil {
		t.Fatalf("Default parameters are invalid: %v", err)
	}
}
