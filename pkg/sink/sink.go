// Package sink defines the destination of fetched file data.
//
// A fetch writes into exactly one Sink. Data arrives as READ replies, each
// written at its file offset; replies of a pipelined READ loop may complete
// in any order, so a Sink must accept writes at arbitrary offsets. Once the
// server reports the file size, the fetcher calls Truncate so backends can
// preallocate. After the last byte has been written the fetcher calls
// Commit; Close is always called and discards uncommitted data.
//
// Backends:
//   - memory: in-process buffer (tests, small files)
//   - fs: local file, written to a temporary name and renamed on Commit
//   - s3: object uploaded on Commit
//   - badger: extents stored in a BadgerDB database
package sink

import (
	"context"
	"errors"
)

// Sink receives the contents of one file.
//
// Implementations are used from a single goroutine and need not be safe for
// concurrent use.
type Sink interface {
	// WriteAt stores data at offset. Writing past the current size extends
	// the file; gaps read back as zeros.
	WriteAt(ctx context.Context, data []byte, offset uint64) error

	// Truncate sets the file size, discarding or zero-extending as needed.
	Truncate(ctx context.Context, size uint64) error

	// Commit makes the written file visible at its destination.
	Commit(ctx context.Context) error

	// Close releases resources. Data not committed is discarded.
	// Close is idempotent.
	Close() error
}

var (
	// ErrClosed is returned by operations on a closed sink.
	ErrClosed = errors.New("sink: closed")

	// ErrCommitted is returned by writes after Commit.
	ErrCommitted = errors.New("sink: already committed")

	// ErrTooLarge is returned when a write or truncate exceeds the sink's
	// size limit.
	ErrTooLarge = errors.New("sink: size limit exceeded")
)
