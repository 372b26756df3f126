// Package store persists cases. A case is saved as one JSON envelope; decoded
// bitmaps and sticker handles are never written, and documents come back
// with a fresh history and re-resolved stickers.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"ortho-annotator/internal/apperr"
	"ortho-annotator/internal/config"
	"ortho-annotator/internal/document"
	"ortho-annotator/internal/sticker"
)

// FormatVersion is written into every envelope.
const FormatVersion = 1

// Store loads and saves a single case.
type Store interface {
	Load(ctx context.Context, r sticker.Resolver) (*document.Case, error)
	Save(ctx context.Context, c *document.Case) error
	Close() error
}

// File is the persisted envelope.
type File struct {
	Version  int            `json:"version"`
	Modified time.Time      `json:"modified"`
	Case     *document.Case `json:"case"`
}

// Encode serialises c. When baseDir is set, absolute image references
// are stored relative to it.
func Encode(c *document.Case, baseDir string) ([]byte, error) {
	out := c.Snapshot()
	for _, d := range out.Documents {
		if baseDir != "" && filepath.IsAbs(d.ImageRef) {
			if rel, err := filepath.Rel(baseDir, d.ImageRef); err == nil {
				d.ImageRef = rel
			}
		}
	}

	data, err := json.MarshalIndent(File{Version: FormatVersion, Modified: time.Now(), Case: out}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode case: %w", err)
	}
	return data, nil
}

// Decode parses an envelope and restores the case. Relative image
// references are resolved against baseDir.
func Decode(data []byte, baseDir string, r sticker.Resolver) (*document.Case, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode case: %w", err)
	}
	if f.Version > FormatVersion {
		return nil, fmt.Errorf("case format version %d is newer than supported %d", f.Version, FormatVersion)
	}
	c := f.Case
	if c == nil {
		return nil, fmt.Errorf("case envelope has no case")
	}

	for _, d := range c.Documents {
		if baseDir != "" && d.ImageRef != "" && !filepath.IsAbs(d.ImageRef) {
			d.ImageRef = filepath.Join(baseDir, d.ImageRef)
		}
	}
	c.Restore(r)
	return c, nil
}

// Open returns the store selected by cfg.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StoreBackend {
	case config.BackendFile:
		return NewFileStore(cfg.StorePath), nil
	case config.BackendRedis:
		return NewRedisStore(ctx, cfg.RedisURL, cfg.RedisKey)
	}
	return nil, apperr.NewInvalid("open store", fmt.Sprintf("unknown backend %q", cfg.StoreBackend))
}
