// Package badgerstore provides a block storage backend on top of dgraph-io/badger/v3
package badgerstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dgraph-io/badger/v3"
	badgeroptions "github.com/dgraph-io/badger/v3/options"
	"github.com/oneconcern/nest/pkg/errors"
	"github.com/oneconcern/nest/pkg/storage"
	"github.com/oneconcern/nest/pkg/storage/status"
	"go.uber.org/zap"
)

type (
	// Option configures the badger store
	Option func(*options)

	options struct {
		inMemory bool
		logger   *zap.Logger
		retry    time.Duration
	}

	kvBadger struct {
		*badger.DB
		path  string
		retry time.Duration
	}

	// zapAdapter sends badger logs to a zap logger
	zapAdapter struct {
		*zap.SugaredLogger
	}
)

// WithInMemory runs badger without any disk persistence
func WithInMemory(enabled bool) Option {
	return func(o *options) {
		o.inMemory = enabled
	}
}

// WithLogger sets a logger for badger's own logs
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRetryInterval sets the constant back-off applied to transaction conflicts
func WithRetryInterval(interval time.Duration) Option {
	return func(o *options) {
		if interval > 0 {
			o.retry = interval
		}
	}
}

func defaultOptions(opts []Option) *options {
	o := &options{
		logger: zap.NewNop(),
		retry:  10 * time.Millisecond,
	}
	for _, apply := range opts {
		apply(o)
	}
	return o
}

func (z zapAdapter) Warningf(format string, args ...interface{}) {
	z.SugaredLogger.Warnf(format, args...)
}

// New opens a badger database at pth and exposes it as a storage.Store.
//
// The returned closer must be called to release the database.
func New(pth string, opts ...Option) (storage.Store, io.Closer, error) {
	o := defaultOptions(opts)

	var bopts badger.Options
	if o.inMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(pth, 0700); err != nil {
			return nil, nil, fmt.Errorf("badger store: mkdir: %w", err)
		}
		bopts = badger.DefaultOptions(pth)
	}

	db, err := badger.Open(
		bopts.
			WithLogger(zapAdapter{SugaredLogger: o.logger.Sugar()}).
			WithLoggingLevel(badger.WARNING).
			WithCompression(badgeroptions.None), // encrypted and hashed blocks do not compress well
	)
	if err != nil {
		return nil, nil, fmt.Errorf("badger store: open: %w", err)
	}

	kv := &kvBadger{DB: db, path: pth, retry: o.retry}
	return kv, kv, nil
}

func (kv *kvBadger) String() string {
	if kv.path == "" {
		return "badger@memory"
	}
	return "badger@" + kv.path
}

func (kv *kvBadger) Has(_ context.Context, key string) (bool, error) {
	err := kv.DB.View(func(txn *badger.Txn) error {
		_, e := txn.Get([]byte(key))

		return e
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return false, nil
		}

		// some technical error occurred: interrupt
		return false, status.ErrStorageAPI.Wrap(err)
	}

	return true, nil
}

func (kv *kvBadger) Get(_ context.Context, key string) (io.ReadCloser, error) {
	var value []byte
	err := kv.DB.View(func(txn *badger.Txn) error {
		item, e := txn.Get([]byte(key))
		if e != nil {
			return e
		}
		value, e = item.ValueCopy(nil)

		return e
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, status.ErrNotExists.WrapMessage("key %q", key)
		}
		return nil, status.ErrStorageAPI.Wrap(err)
	}

	return io.NopCloser(bytes.NewReader(value)), nil
}

func (kv *kvBadger) Put(_ context.Context, key string, source io.Reader, exclusive bool) error {
	value, err := io.ReadAll(source)
	if err != nil {
		return err
	}

	return backoff.Retry(func() error {
		return kv.DB.Update(func(txn *badger.Txn) error {
			if exclusive {
				_, e := txn.Get([]byte(key))
				if e == nil {
					return backoff.Permanent(status.ErrExists.WrapMessage("key %q", key))
				}
				if !errors.Is(e, badger.ErrKeyNotFound) {
					return backoff.Permanent(e)
				}
			}

			e := txn.Set([]byte(key), value)
			if e != nil {
				if errors.Is(e, badger.ErrConflict) {
					return e // retry
				}

				return backoff.Permanent(e)
			}

			return nil
		})
	},
		backoff.NewConstantBackOff(kv.retry),
	)
}

func (kv *kvBadger) Delete(_ context.Context, key string) error {
	return backoff.Retry(func() error {
		err := kv.DB.Update(func(txn *badger.Txn) error {
			return txn.Delete([]byte(key))
		})
		if err != nil && !errors.Is(err, badger.ErrConflict) {
			return backoff.Permanent(err)
		}

		return err
	},
		backoff.NewConstantBackOff(kv.retry),
	)
}

func (kv *kvBadger) Keys(_ context.Context) ([]string, error) {
	var keys []string
	err := kv.DB.View(func(txn *badger.Txn) error {
		iterator := txn.NewIterator(badger.IteratorOptions{
			PrefetchValues: false,
		})
		defer iterator.Close()

		for iterator.Rewind(); iterator.Valid(); iterator.Next() {
			keys = append(keys, string(iterator.Item().KeyCopy(nil)))
		}

		return nil
	})

	return keys, err
}

func (kv *kvBadger) Clear(_ context.Context) error {
	return kv.DB.DropAll()
}
