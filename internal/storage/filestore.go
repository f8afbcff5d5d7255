// Package storage persists uploaded profile photos to local disk. It is a
// plain store-and-forward collaborator: the relay core never calls it.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// maxPhotoBytes caps one upload.
const maxPhotoBytes = 8 << 20

// PhotoStore writes uploaded photos under a single directory with generated
// names, so client-supplied filenames never touch the filesystem.
type PhotoStore struct {
	dir string
}

// NewPhotoStore creates the backing directory if needed.
func NewPhotoStore(dir string) (*PhotoStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}
	return &PhotoStore{dir: dir}, nil
}

// Dir returns the backing directory, for static file serving.
func (s *PhotoStore) Dir() string {
	return s.dir
}

// Save writes one photo and returns its generated filename. The extension is
// sniffed from the content, not taken from the client.
func (s *PhotoStore) Save(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxPhotoBytes+1))
	if err != nil {
		return "", fmt.Errorf("reading upload: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("empty upload")
	}
	if len(data) > maxPhotoBytes {
		return "", fmt.Errorf("upload exceeds %d bytes", maxPhotoBytes)
	}

	kind := mimetype.Detect(data)
	name := uuid.NewString() + kind.Extension()

	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("writing photo: %w", err)
	}
	return name, nil
}
