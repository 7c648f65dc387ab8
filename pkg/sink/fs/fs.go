// Package fs implements a sink writing to the local filesystem.
//
// Data is written to a temporary file next to the destination and renamed
// into place on Commit, so a partially fetched file never appears under the
// destination name.
package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/marmos91/nfsfetch/internal/logger"
	"github.com/marmos91/nfsfetch/pkg/sink"
)

// Config configures a filesystem sink.
type Config struct {
	// Path is the destination file.
	Path string `mapstructure:"path"`

	// DirMode is used when creating missing parent directories.
	// Zero selects 0755.
	DirMode os.FileMode `mapstructure:"dir_mode"`

	// FileMode is applied to the committed file. Zero selects 0644.
	FileMode os.FileMode `mapstructure:"file_mode"`
}

// Sink writes a file through a temporary name.
//
// Thread Safety:
// A Sink is driven by one fetch and is not safe for concurrent use.
type Sink struct {
	path      string
	fileMode  os.FileMode
	tmp       *os.File
	committed bool
	closed    bool
}

// New creates the parent directory if needed and opens a temporary file in
// it.
//
// Context Cancellation:
// This operation checks the context before touching the filesystem.
//
// Returns:
//   - *Sink: ready for writes
//   - error: if Path is empty, the directory cannot be created or the
//     temporary file cannot be opened
func New(ctx context.Context, cfg Config) (*Sink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("fs sink: path is required")
	}

	dirMode := cfg.DirMode
	if dirMode == 0 {
		dirMode = 0755
	}
	fileMode := cfg.FileMode
	if fileMode == 0 {
		fileMode = 0644
	}

	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(cfg.Path)+".*.part")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}

	return &Sink{
		path:     cfg.Path,
		fileMode: fileMode,
		tmp:      tmp,
	}, nil
}

// Path returns the destination path.
func (s *Sink) Path() string {
	return s.path
}

// WriteAt implements sink.Sink.
func (s *Sink) WriteAt(ctx context.Context, data []byte, offset uint64) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if _, err := s.tmp.WriteAt(data, int64(offset)); err != nil {
		return fmt.Errorf("failed to write at offset %d: %w", offset, err)
	}
	return nil
}

// Truncate implements sink.Sink.
func (s *Sink) Truncate(ctx context.Context, size uint64) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if err := s.tmp.Truncate(int64(size)); err != nil {
		return fmt.Errorf("failed to truncate to %d bytes: %w", size, err)
	}
	return nil
}

// Commit flushes the temporary file and renames it to the destination,
// replacing any existing file.
func (s *Sink) Commit(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	if err := s.tmp.Chmod(s.fileMode); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := s.tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync: %w", err)
	}
	if err := s.tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Rename(s.tmp.Name(), s.path); err != nil {
		_ = os.Remove(s.tmp.Name())
		s.closed = true
		return fmt.Errorf("failed to rename into %s: %w", s.path, err)
	}

	s.committed = true
	logger.Debug("fs sink: committed %s", s.path)
	return nil
}

// Close implements sink.Sink. An uncommitted temporary file is removed.
func (s *Sink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.committed {
		return nil
	}

	_ = s.tmp.Close()
	if err := os.Remove(s.tmp.Name()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove temporary file: %w", err)
	}
	return nil
}

func (s *Sink) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed {
		return sink.ErrClosed
	}
	if s.committed {
		return sink.ErrCommitted
	}
	return nil
}
