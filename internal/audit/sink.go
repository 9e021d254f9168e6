package audit

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DirSink stores export workbooks as files in one directory.
type DirSink struct {
	dir string
}

// NewDirSink creates the directory if needed.
func NewDirSink(dir string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir %s: %w", dir, err)
	}
	return &DirSink{dir: dir}, nil
}

// StoreDocument writes one export file, replacing any previous run for the
// same month.
func (s *DirSink) StoreDocument(_ context.Context, filename string, data io.Reader) error {
	path := filepath.Join(s.dir, filepath.Base(filename))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
