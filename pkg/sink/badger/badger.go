// Package badger implements a sink storing fetched files in a BadgerDB
// database.
//
// Key Layout:
//
//	m:<name>                     manifest (XDR: upload id, size, commit time)
//	x:<upload>:<offset:be64>     extent (be64 sequence number + data)
//
// Every sink writes its extents under a fresh upload id. Commit points the
// manifest of <name> at that upload and drops the previous upload's extents,
// so readers see either the old file or the new one. Extents of an upload
// that is never committed are dropped on Close.
package badger

import (
	"cmp"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/google/uuid"

	"github.com/marmos91/nfsfetch/internal/logger"
	"github.com/marmos91/nfsfetch/internal/protocol/xdr"
	"github.com/marmos91/nfsfetch/pkg/sink"
)

// ErrNotFound is returned by ReadFile for a name with no committed file.
var ErrNotFound = errors.New("badger sink: file not found")

// Config configures a badger sink.
type Config struct {
	// DBPath is the database directory. Ignored when InMemory is set.
	DBPath string `mapstructure:"db_path"`

	// InMemory keeps the database in memory only.
	InMemory bool `mapstructure:"in_memory"`

	// Name is the key the file is stored under. When empty the fetched
	// file name is used.
	Name string `mapstructure:"name"`

	// BlockCacheSizeMB sizes the block cache. Zero selects 64.
	BlockCacheSizeMB int64 `mapstructure:"block_cache_size_mb"`
}

// OpenDB opens the database described by cfg.
func OpenDB(cfg Config) (*badger.DB, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.DBPath == "" {
			return nil, fmt.Errorf("badger sink: db_path is required")
		}
		opts = badger.DefaultOptions(cfg.DBPath)
	}

	blockCacheMB := cfg.BlockCacheSizeMB
	if blockCacheMB == 0 {
		blockCacheMB = 64
	}
	opts = opts.WithLoggingLevel(badger.WARNING)
	opts = opts.WithCompression(options.None) // boot images are mostly compressed already
	opts = opts.WithBlockCacheSize(blockCacheMB << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", cfg.DBPath, err)
	}
	return db, nil
}

// manifest records which upload holds the committed file.
type manifest struct {
	UploadID    string
	Size        uint64
	CommittedAt int64
}

// Sink writes one file into a BadgerDB database.
type Sink struct {
	db       *badger.DB
	ownsDB   bool
	name     string
	uploadID string
	size     uint64
	seq      uint64

	committed bool
	closed    bool
}

// New opens the database in cfg and returns a sink that closes it on Close.
func New(ctx context.Context, cfg Config, name string) (*Sink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db, err := OpenDB(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Name != "" {
		name = cfg.Name
	}
	s, err := NewWithDB(db, name)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// NewWithDB returns a sink writing name into an already open database. The
// database stays open after Close.
func NewWithDB(db *badger.DB, name string) (*Sink, error) {
	if name == "" {
		return nil, fmt.Errorf("badger sink: name is required")
	}
	return &Sink{
		db:       db,
		name:     name,
		uploadID: uuid.NewString(),
	}, nil
}

// Name returns the key the file is committed under.
func (s *Sink) Name() string {
	return s.name
}

func manifestKey(name string) []byte {
	return []byte("m:" + name)
}

func extentPrefix(uploadID string) []byte {
	return []byte("x:" + uploadID + ":")
}

func extentKey(uploadID string, offset uint64) []byte {
	return binary.BigEndian.AppendUint64(extentPrefix(uploadID), offset)
}

// WriteAt implements sink.Sink.
func (s *Sink) WriteAt(ctx context.Context, data []byte, offset uint64) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	s.seq++
	value := make([]byte, 8+len(data))
	binary.BigEndian.PutUint64(value, s.seq)
	copy(value[8:], data)

	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(extentKey(s.uploadID, offset), value)
	}); err != nil {
		return fmt.Errorf("failed to store extent at %d: %w", offset, err)
	}

	s.size = max(s.size, offset+uint64(len(data)))
	return nil
}

// Truncate implements sink.Sink. Shrinking trims or deletes extents past
// size so a later extending write reads back zeros there.
func (s *Sink) Truncate(ctx context.Context, size uint64) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if size < s.size {
		if err := s.trimExtents(size); err != nil {
			return err
		}
	}
	s.size = size
	return nil
}

func (s *Sink) trimExtents(size uint64) error {
	type change struct {
		key   []byte
		value []byte // nil deletes
	}
	var changes []change

	prefix := extentPrefix(s.uploadID)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			offset := binary.BigEndian.Uint64(key[len(prefix):])

			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			end := offset + uint64(len(value)-8)
			switch {
			case offset >= size:
				changes = append(changes, change{key: key})
			case end > size:
				changes = append(changes, change{key: key, value: value[:8+size-offset]})
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan extents: %w", err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, c := range changes {
		if c.value == nil {
			err = wb.Delete(c.key)
		} else {
			err = wb.Set(c.key, c.value)
		}
		if err != nil {
			return fmt.Errorf("failed to trim extents: %w", err)
		}
	}
	return wb.Flush()
}

// Commit points the manifest of the file at this upload.
func (s *Sink) Commit(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	b := xdr.NewBuffer(0, 64)
	if _, err := b.Marshal(&manifest{
		UploadID:    s.uploadID,
		Size:        s.size,
		CommittedAt: time.Now().UnixNano(),
	}); err != nil {
		return err
	}

	var previous string
	err := s.db.Update(func(txn *badger.Txn) error {
		old, err := getManifest(txn, s.name)
		switch {
		case err == nil:
			previous = old.UploadID
		case !errors.Is(err, ErrNotFound):
			return err
		}
		return txn.Set(manifestKey(s.name), b.Bytes())
	})
	if err != nil {
		return fmt.Errorf("failed to commit %s: %w", s.name, err)
	}
	s.committed = true

	if previous != "" && previous != s.uploadID {
		if err := s.db.DropPrefix(extentPrefix(previous)); err != nil {
			logger.Warn("badger sink: failed to drop old extents of %s: %v", s.name, err)
		}
	}

	logger.Debug("badger sink: committed %s (%d bytes, upload %s)", s.name, s.size, s.uploadID)
	return nil
}

// Close implements sink.Sink. Extents of an uncommitted upload are dropped.
func (s *Sink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if !s.committed {
		if dropErr := s.db.DropPrefix(extentPrefix(s.uploadID)); dropErr != nil {
			err = fmt.Errorf("failed to drop uncommitted extents: %w", dropErr)
		}
	}
	if s.ownsDB {
		if closeErr := s.db.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
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

func getManifest(txn *badger.Txn, name string) (*manifest, error) {
	item, err := txn.Get(manifestKey(name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}

	var m manifest
	if err := xdr.Wrap(data).Unmarshal(&m); err != nil {
		return nil, fmt.Errorf("corrupt manifest for %s: %w", name, err)
	}
	return &m, nil
}

// ReadFile assembles the committed file stored under name.
//
// Extents are applied in write order, so where writes overlapped the later
// one wins.
func ReadFile(ctx context.Context, db *badger.DB, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type extent struct {
		offset uint64
		seq    uint64
		data   []byte
	}

	var data []byte
	err := db.View(func(txn *badger.Txn) error {
		m, err := getManifest(txn, name)
		if err != nil {
			return err
		}

		var extents []extent
		prefix := extentPrefix(m.UploadID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			extents = append(extents, extent{
				offset: binary.BigEndian.Uint64(item.Key()[len(prefix):]),
				seq:    binary.BigEndian.Uint64(value),
				data:   value[8:],
			})
		}

		slices.SortFunc(extents, func(a, b extent) int { return cmp.Compare(a.seq, b.seq) })

		data = make([]byte, m.Size)
		for _, e := range extents {
			if e.offset < m.Size {
				copy(data[e.offset:], e.data)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
