package multiwgcna

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
)

// Open opens a local path or, when client is non-nil, a gs://bucket/object
// path, and transparently decompresses it. Closing the returned ReadCloser
// closes the underlying file or object reader.
func Open(ctx context.Context, path string, client *storage.Client) (io.ReadCloser, error) {
	var raw io.ReadCloser

	if strings.HasPrefix(path, "gs://") {
		if client == nil {
			return nil, fmt.Errorf("%s is a Google Storage path but no storage client was provided", path)
		}

		pathParts := strings.SplitN(strings.TrimPrefix(path, "gs://"), "/", 2)
		if len(pathParts) != 2 {
			return nil, fmt.Errorf("Tried to split your google storage path into 2 parts, but got %d: %v", len(pathParts), pathParts)
		}

		rdr, err := client.Bucket(pathParts[0]).Object(pathParts[1]).NewReader(ctx)
		if err != nil {
			return nil, pfx.Err(fmt.Errorf("%s: %s", path, err))
		}
		raw = rdr
	} else {
		f, err := os.Open(ExpandHome(path))
		if err != nil {
			return nil, pfx.Err(err)
		}
		raw = f
	}

	dec, err := MaybeDecompress(raw)
	if err != nil {
		raw.Close()
		return nil, pfx.Err(fmt.Errorf("%s: %s", path, err))
	}

	return &decompressedReadCloser{Reader: dec, closer: raw}, nil
}

// NewStorageClientFor returns a Google Storage client if any of the paths
// points to Google Storage, and nil otherwise.
func NewStorageClientFor(ctx context.Context, paths ...string) (*storage.Client, error) {
	for _, p := range paths {
		if strings.HasPrefix(p, "gs://") {
			return storage.NewClient(ctx)
		}
	}
	return nil, nil
}

type decompressedReadCloser struct {
	io.Reader
	closer io.Closer
}

func (d *decompressedReadCloser) Close() error {
	if c, ok := d.Reader.(io.Closer); ok {
		c.Close()
	}
	return d.closer.Close()
}
