// Package pebblestore provides a block storage backend on top of cockroachdb/pebble
package pebblestore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/oneconcern/nest/pkg/errors"
	"github.com/oneconcern/nest/pkg/storage"
	"github.com/oneconcern/nest/pkg/storage/status"
)

type (
	// Option configures the pebble store
	Option func(*options)

	options struct {
		inMemory bool
		sync     bool
	}

	// kvPebble provides a block store implementation based on cockroachdb/pebble
	kvPebble struct {
		*pebble.DB
		path  string
		write *pebble.WriteOptions
	}
)

// WithInMemory backs pebble with an in-memory virtual file system
func WithInMemory(enabled bool) Option {
	return func(o *options) {
		o.inMemory = enabled
	}
}

// WithSync waits for writes to be synced to disk
func WithSync(enabled bool) Option {
	return func(o *options) {
		o.sync = enabled
	}
}

func defaultOptions(opts []Option) *options {
	o := &options{}
	for _, apply := range opts {
		apply(o)
	}
	return o
}

// New opens a pebble database at pth and exposes it as a storage.Store.
//
// The returned closer must be called to release the database.
func New(pth string, opts ...Option) (storage.Store, io.Closer, error) {
	o := defaultOptions(opts)

	options := new(pebble.Options)
	options.EnsureDefaults()
	dirname := pth
	if o.inMemory {
		options.FS = vfs.NewMem()
		if dirname == "" {
			dirname = "blocks"
		}
	} else if err := os.MkdirAll(pth, 0700); err != nil {
		return nil, nil, fmt.Errorf("pebble store: mkdir: %w", err)
	}

	db, err := pebble.Open(dirname, options)
	if err != nil {
		return nil, nil, fmt.Errorf("pebble store: open: %w", err)
	}

	kv := &kvPebble{
		DB:    db,
		path:  pth,
		write: &pebble.WriteOptions{Sync: o.sync},
	}
	return kv, kv, nil
}

func (kv *kvPebble) String() string {
	if kv.path == "" {
		return "pebble@memory"
	}
	return "pebble@" + kv.path
}

func (kv *kvPebble) Has(_ context.Context, key string) (bool, error) {
	_, closer, err := kv.DB.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}

		return false, status.ErrStorageAPI.Wrap(err)
	}

	_ = closer.Close()

	return true, nil
}

func (kv *kvPebble) Get(_ context.Context, key string) (io.ReadCloser, error) {
	val, closer, err := kv.DB.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, status.ErrNotExists.WrapMessage("key %q", key)
		}
		return nil, status.ErrStorageAPI.Wrap(err)
	}
	defer func() {
		_ = closer.Close()
	}()

	dest := make([]byte, len(val))
	copy(dest, val)

	return io.NopCloser(bytes.NewReader(dest)), nil
}

func (kv *kvPebble) Put(ctx context.Context, key string, source io.Reader, exclusive bool) error {
	value, err := io.ReadAll(source)
	if err != nil {
		return err
	}

	if exclusive {
		found, err := kv.Has(ctx, key)
		if err != nil {
			return err
		}
		if found {
			return status.ErrExists.WrapMessage("key %q", key)
		}
	}

	return kv.DB.Set([]byte(key), value, kv.write)
}

func (kv *kvPebble) Delete(_ context.Context, key string) error {
	return kv.DB.Delete([]byte(key), kv.write)
}

func (kv *kvPebble) Keys(_ context.Context) ([]string, error) {
	iterator, err := kv.DB.NewIter(nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = iterator.Close()
	}()

	var keys []string
	for valid := iterator.First(); valid; valid = iterator.Next() {
		keys = append(keys, string(iterator.Key()))
	}

	return keys, iterator.Error()
}

func (kv *kvPebble) Clear(_ context.Context) error {
	iterator, err := kv.DB.NewIter(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = iterator.Close()
	}()

	if !iterator.First() {
		return nil
	}
	start := append([]byte(nil), iterator.Key()...)
	_ = iterator.Last()
	end := append([]byte(nil), iterator.Key()...)

	if err := kv.DB.DeleteRange(start, end, kv.write); err != nil {
		return err
	}

	// as DeleteRange excludes the upper bound
	if err := kv.DB.Delete(end, kv.write); err != nil && !errors.Is(err, pebble.ErrNotFound) {
		return err
	}

	return nil
}
