// Package memory implements an in-process sink.
package memory

import (
	"context"
	"fmt"
	"slices"

	"github.com/marmos91/nfsfetch/pkg/sink"
)

// Config configures a memory sink.
type Config struct {
	// MaxSize bounds the buffered file size in bytes. Zero means no limit.
	MaxSize uint64 `mapstructure:"max_size"`
}

// Sink buffers a file in memory.
//
// Characteristics:
//   - Fast: all operations are memory-speed
//   - Volatile: contents live as long as the Sink
//   - Memory-bound: use MaxSize to refuse files that would not fit
type Sink struct {
	data      []byte
	maxSize   uint64
	committed bool
	closed    bool
}

// New creates an empty memory sink.
func New(cfg Config) *Sink {
	return &Sink{maxSize: cfg.MaxSize}
}

// WriteAt implements sink.Sink.
func (s *Sink) WriteAt(ctx context.Context, data []byte, offset uint64) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	end := offset + uint64(len(data))
	if end < offset {
		return fmt.Errorf("%w: offset %d overflows", sink.ErrTooLarge, offset)
	}
	if err := s.resize(end, false); err != nil {
		return err
	}
	copy(s.data[offset:], data)
	return nil
}

// Truncate implements sink.Sink.
func (s *Sink) Truncate(ctx context.Context, size uint64) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.resize(size, true)
}

// Commit implements sink.Sink. The buffer stays readable through Bytes.
func (s *Sink) Commit(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	s.committed = true
	return nil
}

// Close implements sink.Sink. An uncommitted buffer is released.
func (s *Sink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if !s.committed {
		s.data = nil
	}
	return nil
}

// Bytes returns the buffered file. The slice aliases the sink.
func (s *Sink) Bytes() []byte {
	return s.data
}

// Size returns the current file size.
func (s *Sink) Size() uint64 {
	return uint64(len(s.data))
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

// resize grows the buffer to size, or sets it exactly when shrink is set.
func (s *Sink) resize(size uint64, shrink bool) error {
	if s.maxSize > 0 && size > s.maxSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", sink.ErrTooLarge, size, s.maxSize)
	}
	current := uint64(len(s.data))
	switch {
	case size > current:
		s.data = slices.Grow(s.data, int(size-current))[:size]
		clear(s.data[current:])
	case size < current && shrink:
		s.data = s.data[:size]
	}
	return nil
}
