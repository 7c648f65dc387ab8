// Package sinktest provides a reusable contract test suite for sink
// implementations.
package sinktest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/nfsfetch/pkg/sink"
)

// Suite tests the sink.Sink contract, not implementation details, making it
// reusable across backends.
//
// Usage:
//
//	func TestMySink(t *testing.T) {
//	    suite := &sinktest.Suite{
//	        New: func(t *testing.T) (sink.Sink, sinktest.ReadBack) {
//	            s := mysink.New()
//	            return s, s.ReadCommitted
//	        },
//	    }
//	    suite.Run(t)
//	}
type Suite struct {
	// New creates a fresh sink for each test, plus a function returning
	// what the sink's destination holds after Commit.
	New func(t *testing.T) (sink.Sink, ReadBack)
}

// ReadBack returns the committed file. It reports ok=false when nothing has
// been committed.
type ReadBack func(ctx context.Context) (data []byte, ok bool, err error)

// Run executes all tests in the suite.
func (suite *Suite) Run(t *testing.T) {
	t.Run("SequentialWrites", suite.testSequentialWrites)
	t.Run("OutOfOrderWrites", suite.testOutOfOrderWrites)
	t.Run("TruncateFirst", suite.testTruncateFirst)
	t.Run("TruncateShrinks", suite.testTruncateShrinks)
	t.Run("SparseGap", suite.testSparseGap)
	t.Run("EmptyFile", suite.testEmptyFile)
	t.Run("CloseWithoutCommit", suite.testCloseWithoutCommit)
	t.Run("WriteAfterCommit", suite.testWriteAfterCommit)
	t.Run("CancelledContext", suite.testCancelledContext)
}

func (suite *Suite) testSequentialWrites(t *testing.T) {
	s, read := suite.New(t)
	data := GenerateData(4000)

	for off := 0; off < len(data); off += 1300 {
		end := min(off+1300, len(data))
		mustWriteAt(t, s, data[off:end], uint64(off))
	}
	mustCommit(t, s)

	assertCommitted(t, read, data)
	require.NoError(t, s.Close())
}

func (suite *Suite) testOutOfOrderWrites(t *testing.T) {
	s, read := suite.New(t)
	data := GenerateData(3000)

	mustWriteAt(t, s, data[2000:], 2000)
	mustWriteAt(t, s, data[:1000], 0)
	mustWriteAt(t, s, data[1000:2000], 1000)
	mustCommit(t, s)

	assertCommitted(t, read, data)
	require.NoError(t, s.Close())
}

func (suite *Suite) testTruncateFirst(t *testing.T) {
	s, read := suite.New(t)
	data := GenerateData(2600)

	require.NoError(t, s.Truncate(context.Background(), uint64(len(data))))
	mustWriteAt(t, s, data[1300:], 1300)
	mustWriteAt(t, s, data[:1300], 0)
	mustCommit(t, s)

	assertCommitted(t, read, data)
	require.NoError(t, s.Close())
}

func (suite *Suite) testTruncateShrinks(t *testing.T) {
	s, read := suite.New(t)
	data := GenerateData(2000)

	mustWriteAt(t, s, data, 0)
	require.NoError(t, s.Truncate(context.Background(), 500))
	mustCommit(t, s)

	assertCommitted(t, read, data[:500])
	require.NoError(t, s.Close())
}

func (suite *Suite) testSparseGap(t *testing.T) {
	s, read := suite.New(t)

	mustWriteAt(t, s, []byte("tail"), 8)
	mustCommit(t, s)

	assertCommitted(t, read, []byte{0, 0, 0, 0, 0, 0, 0, 0, 't', 'a', 'i', 'l'})
	require.NoError(t, s.Close())
}

func (suite *Suite) testEmptyFile(t *testing.T) {
	s, read := suite.New(t)

	require.NoError(t, s.Truncate(context.Background(), 0))
	mustCommit(t, s)

	assertCommitted(t, read, []byte{})
	require.NoError(t, s.Close())
}

func (suite *Suite) testCloseWithoutCommit(t *testing.T) {
	s, read := suite.New(t)

	mustWriteAt(t, s, GenerateData(100), 0)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "Close should be idempotent")

	_, ok, err := read(context.Background())
	require.NoError(t, err)
	assert.False(t, ok, "uncommitted data must not reach the destination")

	assert.ErrorIs(t, s.WriteAt(context.Background(), []byte{1}, 0), sink.ErrClosed)
}

func (suite *Suite) testWriteAfterCommit(t *testing.T) {
	s, _ := suite.New(t)

	mustWriteAt(t, s, GenerateData(10), 0)
	mustCommit(t, s)

	assert.ErrorIs(t, s.WriteAt(context.Background(), []byte{1}, 0), sink.ErrCommitted)
	require.NoError(t, s.Close())
}

func (suite *Suite) testCancelledContext(t *testing.T) {
	s, _ := suite.New(t)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.WriteAt(ctx, []byte{1}, 0), context.Canceled)
	assert.ErrorIs(t, s.Truncate(ctx, 10), context.Canceled)
}

// ============================================================================
// Helpers
// ============================================================================

// GenerateData returns size bytes of a repeating pattern.
func GenerateData(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func mustWriteAt(t *testing.T, s sink.Sink, data []byte, offset uint64) {
	t.Helper()
	require.NoError(t, s.WriteAt(context.Background(), data, offset), "WriteAt should succeed")
}

func mustCommit(t *testing.T, s sink.Sink) {
	t.Helper()
	require.NoError(t, s.Commit(context.Background()), "Commit should succeed")
}

func assertCommitted(t *testing.T, read ReadBack, expected []byte) {
	t.Helper()
	data, ok, err := read(context.Background())
	require.NoError(t, err)
	require.True(t, ok, "file should be committed")
	if len(expected) == 0 {
		assert.Empty(t, data)
		return
	}
	assert.Equal(t, expected, data, "content mismatch")
}
