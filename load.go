package multiwgcna

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
)

// LoadExpression opens and parses an expression matrix from a local or gs://
// path. Compressed files are decompressed.
func LoadExpression(ctx context.Context, path string, client *storage.Client) (*Expression, error) {
	f, err := Open(ctx, path, client)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	expr, err := ReadExpression(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return expr, nil
}

func LoadSampleTable(ctx context.Context, path string, client *storage.Client) (*SampleTable, error) {
	f, err := Open(ctx, path, client)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	table, err := ReadSampleTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return table, nil
}

// LoadAssignment reads a gene/module table. When expr is non-nil the network
// is indexed over it and gets eigengenes; otherwise it holds only the
// assignment.
func LoadAssignment(ctx context.Context, name, path string, client *storage.Client, expr *Expression) (*Network, error) {
	f, err := Open(ctx, path, client)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	assignment, err := ReadAssignment(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if expr == nil {
		return NewAssignmentNetwork(name, assignment)
	}

	return NewNetwork(name, expr, assignment)
}
