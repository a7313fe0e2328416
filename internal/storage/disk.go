// Package storage owns the file side of the media library: a flat
// directory of uploaded blobs keyed by generated filenames. Metadata
// lives in Postgres (repository.MediaRepository); the two are linked
// only by the key.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

type DiskStore struct {
	dir string
}

// NewDiskStore ensures dir exists and returns a store rooted there.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// unsafeChars matches everything we strip out of an original filename
// before it becomes part of a storage key.
var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// GenerateKey builds a collision-resistant storage key from the original
// filename: a random UUID prefix plus the sanitized basename. Two uploads
// of "promo.mp4" never collide, and the original name stays recognizable
// in the uploads directory.
func GenerateKey(original string) string {
	base := filepath.Base(original)
	base = unsafeChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		base = "upload"
	}
	return uuid.NewString() + "_" + base
}

// Path returns the absolute location of a key inside the store. The key
// is reduced to its basename first so a crafted key can never escape the
// upload directory.
func (s *DiskStore) Path(key string) string {
	return filepath.Join(s.dir, filepath.Base(key))
}

// Save writes the blob under key. The file must not already exist;
// keys are generated fresh per upload, so a collision means a bug.
func (s *DiskStore) Save(key string, r io.Reader) error {
	f, err := os.OpenFile(s.Path(key), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", key, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("close %s: %w", key, err)
	}
	return nil
}

// Open returns a reader over the stored blob. The caller closes it.
func (s *DiskStore) Open(key string) (*os.File, error) {
	return os.Open(s.Path(key))
}

// Remove deletes the blob. A missing file is not an error: deletion is
// best-effort and may race with another delete or a half-completed
// upload compensation.
func (s *DiskStore) Remove(key string) error {
	err := os.Remove(s.Path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}
