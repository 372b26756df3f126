package store

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"ortho-annotator/internal/apperr"
	"ortho-annotator/internal/document"
	"ortho-annotator/internal/logging"
	"ortho-annotator/internal/sticker"
)

// FileStore keeps a case in a JSON file. Image references are stored
// relative to the file's directory.
type FileStore struct {
	Path string

	mu sync.Mutex
}

// NewFileStore creates a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) baseDir() string {
	abs, err := filepath.Abs(s.Path)
	if err != nil {
		return filepath.Dir(s.Path)
	}
	return filepath.Dir(abs)
}

// Load reads the case file. A missing file is a NotFound error.
func (s *FileStore) Load(ctx context.Context, r sticker.Resolver) (*document.Case, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.NewNotFound("load case", s.Path)
		}
		return nil, apperr.NewStorageFailed("load case", s.Path, err)
	}
	c, err := Decode(data, s.baseDir(), r)
	if err != nil {
		return nil, apperr.NewStorageFailed("load case", s.Path, err)
	}
	logging.For("store").Debug("case loaded", "path", s.Path, "documents", len(c.Documents))
	return c, nil
}

// Save writes the case to a temporary file and renames it into place.
func (s *FileStore) Save(ctx context.Context, c *document.Case) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := Encode(c, s.baseDir())
	if err != nil {
		return apperr.NewStorageFailed("save case", s.Path, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return apperr.NewStorageFailed("save case", s.Path, err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return apperr.NewStorageFailed("save case", s.Path, err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		os.Remove(tmp)
		return apperr.NewStorageFailed("save case", s.Path, err)
	}
	logging.For("store").Debug("case saved", "path", s.Path, "bytes", len(data))
	return nil
}

func (s *FileStore) Close() error { return nil }
