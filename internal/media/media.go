// Package media stores uploaded image bytes and hands back a relative reference.
package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidRef is returned for references that escape the media root.
var ErrInvalidRef = errors.New("invalid media reference")

// Store persists uploaded images.
type Store interface {
	// Save writes data and returns a slash-separated reference relative to the media root.
	Save(ctx context.Context, filename string, data []byte) (string, error)
	// Delete removes a previously saved image. Missing files are not an error.
	Delete(ctx context.Context, ref string) error
}

// DiskStore writes images under root/mango_images/YYYY/MM/DD/.
type DiskStore struct {
	root string
	now  func() time.Time
}

// NewDiskStore creates the root directory if needed.
func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating media root: %w", err)
	}
	return &DiskStore{root: root, now: time.Now}, nil
}

func (s *DiskStore) Save(ctx context.Context, filename string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ref := path.Join("mango_images", s.now().UTC().Format("2006/01/02"), uuid.NewString()+extension(filename))
	full := filepath.Join(s.root, filepath.FromSlash(ref))

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("creating media directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing image: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return "", fmt.Errorf("moving image into place: %w", err)
	}

	return ref, nil
}

func (s *DiskStore) Delete(_ context.Context, ref string) error {
	full, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing image: %w", err)
	}
	return nil
}

func (s *DiskStore) resolve(ref string) (string, error) {
	clean := path.Clean(ref)
	if ref == "" || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// extension keeps a known image suffix from the client filename, defaulting to .jpg.
func extension(filename string) string {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".jpg", ".jpeg", ".png":
		return ext
	default:
		return ".jpg"
	}
}

// Compile-time check that DiskStore implements Store.
var _ Store = (*DiskStore)(nil)
