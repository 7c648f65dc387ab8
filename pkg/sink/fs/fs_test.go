package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/nfsfetch/pkg/sink"
	"github.com/marmos91/nfsfetch/pkg/sink/sinktest"
)

// TestFSSink runs the sink contract suite against the filesystem sink.
func TestFSSink(t *testing.T) {
	suite := &sinktest.Suite{
		New: func(t *testing.T) (sink.Sink, sinktest.ReadBack) {
			path := filepath.Join(t.TempDir(), "boot", "vmlinuz")
			s, err := New(context.Background(), Config{Path: path})
			require.NoError(t, err)

			return s, func(context.Context) ([]byte, bool, error) {
				data, err := os.ReadFile(path)
				if os.IsNotExist(err) {
					return nil, false, nil
				}
				return data, err == nil, err
			}
		},
	}

	suite.Run(t)
}

func TestFSSinkTemporaryFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "initrd.img")

	t.Run("RemovedOnClose", func(t *testing.T) {
		s, err := New(context.Background(), Config{Path: path})
		require.NoError(t, err)
		require.NoError(t, s.WriteAt(context.Background(), []byte("partial"), 0))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 1, "temporary file should exist while writing")

		require.NoError(t, s.Close())

		entries, err = os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("ReplacesExisting", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("old contents"), 0600))

		s, err := New(context.Background(), Config{Path: path, FileMode: 0640})
		require.NoError(t, err)
		require.NoError(t, s.WriteAt(context.Background(), []byte("new"), 0))
		require.NoError(t, s.Commit(context.Background()))
		require.NoError(t, s.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "new", string(data))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0640), info.Mode().Perm())
	})

	t.Run("PathRequired", func(t *testing.T) {
		_, err := New(context.Background(), Config{})
		assert.Error(t, err)
	})
}
