package badger

import (
	"context"
	"errors"
	"testing"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/nfsfetch/pkg/sink"
	"github.com/marmos91/nfsfetch/pkg/sink/sinktest"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := OpenDB(Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// TestBadgerSink runs the sink contract suite against the badger sink.
func TestBadgerSink(t *testing.T) {
	suite := &sinktest.Suite{
		New: func(t *testing.T) (sink.Sink, sinktest.ReadBack) {
			db := openTestDB(t)
			s, err := NewWithDB(db, "vmlinuz")
			require.NoError(t, err)

			return s, func(ctx context.Context) ([]byte, bool, error) {
				data, err := ReadFile(ctx, db, "vmlinuz")
				if errors.Is(err, ErrNotFound) {
					return nil, false, nil
				}
				return data, err == nil, err
			}
		},
	}

	suite.Run(t)
}

func TestBadgerSinkReplace(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	write := func(content string) {
		s, err := NewWithDB(db, "initrd")
		require.NoError(t, err)
		require.NoError(t, s.WriteAt(ctx, []byte(content), 0))
		require.NoError(t, s.Commit(ctx))
		require.NoError(t, s.Close())
	}

	write("first version")
	write("second")

	data, err := ReadFile(ctx, db, "initrd")
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestBadgerSinkUncommittedInvisible(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	committed, err := NewWithDB(db, "kernel")
	require.NoError(t, err)
	require.NoError(t, committed.WriteAt(ctx, []byte("stable"), 0))
	require.NoError(t, committed.Commit(ctx))
	require.NoError(t, committed.Close())

	pending, err := NewWithDB(db, "kernel")
	require.NoError(t, err)
	require.NoError(t, pending.WriteAt(ctx, []byte("half-fetched"), 0))

	data, err := ReadFile(ctx, db, "kernel")
	require.NoError(t, err)
	assert.Equal(t, "stable", string(data), "readers must not see an uncommitted upload")

	require.NoError(t, pending.Close())
	data, err = ReadFile(ctx, db, "kernel")
	require.NoError(t, err)
	assert.Equal(t, "stable", string(data))
}

func TestBadgerSinkOverlappingWrites(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	s, err := NewWithDB(db, "f")
	require.NoError(t, err)
	require.NoError(t, s.WriteAt(ctx, []byte("bbbbbb"), 2))
	require.NoError(t, s.WriteAt(ctx, []byte("aaaa"), 0))
	require.NoError(t, s.Commit(ctx))

	data, err := ReadFile(ctx, db, "f")
	require.NoError(t, err)
	assert.Equal(t, "aaaabbbb", string(data))
}

func TestBadgerSinkConfig(t *testing.T) {
	t.Run("NameRequired", func(t *testing.T) {
		_, err := NewWithDB(openTestDB(t), "")
		assert.Error(t, err)
	})

	t.Run("PathRequired", func(t *testing.T) {
		_, err := OpenDB(Config{})
		assert.Error(t, err)
	})

	t.Run("OnDisk", func(t *testing.T) {
		dir := t.TempDir()
		ctx := context.Background()

		s, err := New(ctx, Config{DBPath: dir, Name: "override"}, "ignored")
		require.NoError(t, err)
		assert.Equal(t, "override", s.Name())
		require.NoError(t, s.WriteAt(ctx, []byte("persisted"), 0))
		require.NoError(t, s.Commit(ctx))
		require.NoError(t, s.Close())

		db, err := OpenDB(Config{DBPath: dir})
		require.NoError(t, err)
		defer db.Close()

		data, err := ReadFile(ctx, db, "override")
		require.NoError(t, err)
		assert.Equal(t, "persisted", string(data))
	})
}
