// Copyright © 2018 One Concern

package cmd

import (
	"fmt"
	"io"

	"github.com/oneconcern/nest/pkg/blockstore"
	"github.com/oneconcern/nest/pkg/dlogger"
	"github.com/oneconcern/nest/pkg/storage"
	"github.com/oneconcern/nest/pkg/storage/badgerstore"
	"github.com/oneconcern/nest/pkg/storage/localfs"
	"github.com/oneconcern/nest/pkg/storage/pebblestore"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openLocalFS(pth string) (storage.Store, error) {
	if err := appFs.MkdirAll(pth, 0700); err != nil {
		return nil, err
	}
	return localfs.NewAtomic(afero.NewBasePathFs(appFs, pth))
}

func openStorage(c StoreConfig, logger *zap.Logger) (storage.Store, io.Closer, error) {
	switch c.Kind {
	case storeLocalFS:
		s, err := openLocalFS(c.Path)
		return s, nopCloser{}, err
	case storeBadger:
		return badgerstore.New(c.Path, badgerstore.WithLogger(logger))
	case storePebble:
		return pebblestore.New(c.Path, pebblestore.WithSync(true))
	default:
		return nil, nil, fmt.Errorf("unsupported store kind %q", c.Kind)
	}
}

// openBlockstore builds the block store described by the configuration.
func openBlockstore(c *CLIConfig, logger *zap.Logger) (blockstore.Store, io.Closer, error) {
	s, closer, err := openStorage(c.Store, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s store at %q: %w", c.Store.Kind, c.Store.Path, err)
	}

	if c.Store.Mirror != "" {
		mirror, err := openLocalFS(c.Store.Mirror)
		if err != nil {
			_ = closer.Close()
			return nil, nil, fmt.Errorf("opening mirror at %q: %w", c.Store.Mirror, err)
		}
		s = storage.NewMirror(s, storage.MultiStoreUnit{Store: mirror, TolerateFailure: true})
	}

	if c.LogLevel == dlogger.LogLevelDebug {
		s = storage.Instrument(logger, s)
	}

	return blockstore.NewAdapter(blockstore.NewStorageBacked(s)), closer, nil
}
