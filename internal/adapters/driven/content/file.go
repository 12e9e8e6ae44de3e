// Package content resolves document and resource references to raw
// bytes. Failures surface as I/O errors, never as validation errors.
package content

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/ports"
)

// FileLoader loads content from the filesystem. References may be raw
// paths, "file:" prefixed paths, or "classpath:" style references which
// are resolved against the configured base directory.
type FileLoader struct {
	baseDir string
}

// NewFileLoader creates a loader. Classpath-style references resolve
// against baseDir; an empty baseDir means the working directory.
func NewFileLoader(baseDir string) *FileLoader {
	return &FileLoader{baseDir: baseDir}
}

// Load resolves the reference and returns its bytes.
func (l *FileLoader) Load(reference string) ([]byte, error) {
	if reference == "" {
		return nil, fmt.Errorf("empty content reference")
	}
	path := reference
	switch {
	case strings.HasPrefix(reference, "classpath:"):
		path = filepath.Join(l.baseDir, strings.TrimPrefix(reference, "classpath:"))
	case strings.HasPrefix(reference, "file:"):
		path = strings.TrimPrefix(reference, "file:")
	default:
		if !filepath.IsAbs(path) && l.baseDir != "" {
			path = filepath.Join(l.baseDir, path)
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content %q: %w", reference, err)
	}
	return data, nil
}

var _ ports.ContentLoader = (*FileLoader)(nil)
