package engine

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v6"
	"github.com/go-git/go-billy/v6/osfs"
	"github.com/go-git/go-billy/v6/util"
	"github.com/google/uuid"
)

// sidecars are the files the engine may create next to a database file.
var sidecars = []string{"-journal", "-wal", "-shm"}

// store is the uniquely named file backing one Database. It only lives for
// the lifetime of that Database.
type store struct {
	fs   billy.Filesystem
	name string
}

func newStore(dir string, data []byte) (*store, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	s := &store{fs: osfs.New(dir), name: "dbfile_" + uuid.NewString()}
	if data != nil {
		if err := util.WriteFile(s.fs, s.name, data, 0o600); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *store) path() string {
	return filepath.Join(s.fs.Root(), s.name)
}

func (s *store) read() ([]byte, error) {
	f, err := s.fs.Open(s.name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []byte{}, nil
		}
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *store) remove() error {
	var errs []error
	for _, name := range append([]string{s.name}, sidecarNames(s.name)...) {
		if err := s.fs.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func sidecarNames(name string) []string {
	out := make([]string, len(sidecars))
	for i, suffix := range sidecars {
		out[i] = name + suffix
	}
	return out
}
