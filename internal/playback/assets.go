package playback

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hammamikhairi/gatecaller/internal/domain"
	"github.com/hammamikhairi/gatecaller/internal/logger"
)

// Compile-time interface check.
var _ domain.AssetStore = (*FileStore)(nil)

// FileStore serves prerecorded announcements from a directory tree. Reads
// cannot escape the root.
type FileStore struct {
	root *os.Root
	dir  string
	log  *logger.Logger
}

// NewFileStore opens dir as the asset root.
func NewFileStore(dir string, log *logger.Logger) (*FileStore, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("opening asset dir %s: %w", dir, err)
	}
	log.Debug("asset store rooted at %s", dir)
	return &FileStore{root: root, dir: dir, log: log}, nil
}

// Read returns the raw bytes of the asset at the slash-separated path.
func (s *FileStore) Read(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := s.root.Open(filepath.FromSlash(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, domain.ErrNotFound)
		}
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// Exists reports whether an asset is present.
func (s *FileStore) Exists(path string) bool {
	_, err := s.root.Stat(filepath.FromSlash(path))
	return err == nil
}

// Dir returns the root directory.
func (s *FileStore) Dir() string { return s.dir }

// Close releases the root handle.
func (s *FileStore) Close() error {
	return s.root.Close()
}
