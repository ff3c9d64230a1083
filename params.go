package multiwgcna

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/carbocation/pfx"
)

// Network types, following WGCNA's naming.
const (
	NetworkUnsigned     = "unsigned"
	NetworkSigned       = "signed"
	NetworkSignedHybrid = "signed hybrid"
)

// NetworkParams holds the network-construction parameters shared by every
// network of an analysis, including the networks rebuilt inside permutation
// replicates.
type NetworkParams struct {
	NetworkType    string  `json:"network_type"`
	TOMType        string  `json:"tom_type"`
	Power          float64 `json:"power"`
	MinModuleSize  int     `json:"min_module_size"`
	MaxBlockSize   int     `json:"max_block_size"`
	MergeCutHeight float64 `json:"merge_cut_height"`
	DeepSplit      int     `json:"deep_split"`
	TreeCutHeight  float64 `json:"tree_cut_height"`
}

// DefaultNetworkParams mirrors the defaults of a typical multiWGCNA analysis.
func DefaultNetworkParams() NetworkParams {
	return NetworkParams{
		NetworkType:    NetworkSigned,
		TOMType:        NetworkSigned,
		Power:          12,
		MinModuleSize:  50,
		MaxBlockSize:   25000,
		MergeCutHeight: 0.1,
		DeepSplit:      4,
		TreeCutHeight:  0.995,
	}
}

func (p NetworkParams) Validate() error {
	switch p.NetworkType {
	case NetworkUnsigned, NetworkSigned, NetworkSignedHybrid:
	default:
		return fmt.Errorf("%w: unknown network type %q", ErrInvalidInput, p.NetworkType)
	}
	switch p.TOMType {
	case NetworkUnsigned, NetworkSigned:
	default:
		return fmt.Errorf("%w: unknown TOM type %q", ErrInvalidInput, p.TOMType)
	}
	if p.Power <= 0 {
		return fmt.Errorf("%w: soft-thresholding power must be positive, got %v", ErrInvalidInput, p.Power)
	}
	if p.MinModuleSize < 2 {
		return fmt.Errorf("%w: minimum module size must be at least 2, got %d", ErrInvalidInput, p.MinModuleSize)
	}
	if p.MaxBlockSize < p.MinModuleSize {
		return fmt.Errorf("%w: max block size %d is below the minimum module size %d", ErrInvalidInput, p.MaxBlockSize, p.MinModuleSize)
	}
	if p.DeepSplit < 0 || p.DeepSplit > 4 {
		return fmt.Errorf("%w: deep split must be between 0 and 4, got %d", ErrInvalidInput, p.DeepSplit)
	}
	if p.MergeCutHeight < 0 || p.MergeCutHeight > 1 {
		return fmt.Errorf("%w: merge cut height must be within [0,1], got %v", ErrInvalidInput, p.MergeCutHeight)
	}
	if p.TreeCutHeight <= 0 || p.TreeCutHeight > 1 {
		return fmt.Errorf("%w: tree cut height must be within (0,1], got %v", ErrInvalidInput, p.TreeCutHeight)
	}

	return nil
}

// ParseParamsFromPath reads NetworkParams from a JSON file. Fields absent from
// the file keep their DefaultNetworkParams values.
func ParseParamsFromPath(path string) (NetworkParams, error) {
	out := DefaultNetworkParams()

	f, err := os.Open(ExpandHome(path))
	if err != nil {
		return out, pfx.Err(err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(&out); err != nil {
		if e, ok := err.(*json.SyntaxError); ok {
			log.Printf("syntax error in %s at byte offset %d", path, e.Offset)
		}
		return out, pfx.Err(err)
	}

	return out, out.Validate()
}

// ExpandHome expands a leading ~ to the current user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}

	usr, err := user.Current()
	if err != nil {
		return path
	}

	if path == "~" {
		return usr.HomeDir
	}

	return filepath.Join(usr.HomeDir, path[2:])
}
