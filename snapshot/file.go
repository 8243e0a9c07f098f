package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v6"
	"github.com/go-git/go-billy/v6/util"
)

// FileStore keeps the image as one file of a billy filesystem.
type FileStore struct {
	fs   billy.Filesystem
	name string
}

// NewFileStore returns a FileStore for name within fs.
func NewFileStore(fs billy.Filesystem, name string) *FileStore {
	return &FileStore{fs: fs, name: name}
}

func (s *FileStore) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := util.ReadFile(s.fs, s.name)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

// Save replaces the image through a temporary file so a failed write never
// leaves a truncated image behind.
func (s *FileStore) Save(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp := s.name + ".tmp"
	if err := util.WriteFile(s.fs, tmp, data, 0o600); err != nil {
		return err
	}
	if err := s.fs.Rename(tmp, s.name); err != nil {
		_ = s.fs.Remove(tmp)
		return err
	}
	return nil
}

func (s *FileStore) String() string {
	return filepath.Join(s.fs.Root(), s.name)
}
