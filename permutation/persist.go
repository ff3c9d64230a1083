package permutation

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/carbocation/multiwgcna"
	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"
)

// WriteNull writes null records as a comma-delimited table with the header
// replicate,module,size,score,is_outlier.
func WriteNull(w io.Writer, null []NullRecord) error {
	rows := make([]*NullRecord, len(null))
	for i := range null {
		rows[i] = &null[i]
	}

	if err := gocsv.Marshal(&rows, w); err != nil {
		return pfx.Err(err)
	}

	return nil
}

// nullColumns is the header WriteNull produces. Every column is required when
// reading.
var nullColumns = []string{"replicate", "module", "size", "score", "is_outlier"}

// ReadNull parses a table written by WriteNull, or any delimited table with
// the same columns. A missing column is an ErrInvalidInput error.
func ReadNull(r io.Reader) ([]NullRecord, error) {
	table, err := multiwgcna.ReadRequiringColumns(r, nullColumns...)
	if err != nil {
		return nil, err
	}

	rows := make([]*NullRecord, 0)
	if err := gocsv.UnmarshalCSV(table, &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", multiwgcna.ErrInvalidInput, err)
	}

	out := make([]NullRecord, 0, len(rows))
	for i, rec := range rows {
		if rec.Size < 1 {
			return nil, fmt.Errorf("%w: null record %d has module size %d", multiwgcna.ErrInvalidInput, i+1, rec.Size)
		}
		out = append(out, *rec)
	}

	return out, nil
}

// OpenNull reads a null distribution from a local path or a gs:// URL,
// decompressing it if needed. client may be nil for local paths.
func OpenNull(ctx context.Context, path string, client *storage.Client) ([]NullRecord, error) {
	f, err := multiwgcna.Open(ctx, path, client)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	null, err := ReadNull(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return null, nil
}
