// Package snapshot loads and saves exported database images so a worker
// can be seeded on start and persisted on exit.
package snapshot

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v6/osfs"
)

// Store holds one database image. Load returns nil, without error, when no
// image has been saved yet.
type Store interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	fmt.Stringer
}

// Open returns the Store for location: s3://bucket/key selects S3, a
// file:// URL or plain path selects the local filesystem.
func Open(ctx context.Context, location string, opts ...Option) (Store, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	lower := strings.ToLower(location)
	switch {
	case location == "":
		return nil, fmt.Errorf("snapshot: empty location")
	case strings.HasPrefix(lower, "s3://"):
		store, err := NewS3Store(ctx, location, o.s3)
		if err != nil {
			return nil, err
		}
		return store, nil
	case strings.HasPrefix(lower, "file://"):
		location = location[len("file://"):]
	}
	path, err := filepath.Abs(location)
	if err != nil {
		return nil, err
	}
	return NewFileStore(osfs.New(filepath.Dir(path)), filepath.Base(path)), nil
}

// Option configures Open.
type Option func(*options)

type options struct {
	s3 S3Config
}

// WithS3 sets the S3 client configuration used for s3:// locations.
func WithS3(cfg S3Config) Option {
	return func(o *options) { o.s3 = cfg }
}
