package blockstore

import (
	"bytes"
	"context"

	"github.com/ipfs/go-cid"
	"github.com/oneconcern/nest/pkg/errors"
	"github.com/oneconcern/nest/pkg/storage"
	"github.com/oneconcern/nest/pkg/storage/status"
	"golang.org/x/sync/errgroup"
)

const maxParallelGets = 8

type storageBacked struct {
	store storage.Store
}

// NewStorageBacked builds a block store over a storage backend.
//
// Blocks are stored under the string form of their CID, and verified on read.
func NewStorageBacked(store storage.Store) Blockstore {
	return &storageBacked{store: store}
}

func (s *storageBacked) Get(ctx context.Context, c cid.Cid) ([]byte, error) {
	data, err := storage.ReadAll(ctx, s.store, c.String())
	if err != nil {
		if errors.Is(err, status.ErrNotExists) {
			return nil, ErrBlockNotFound.Wrap(err)
		}
		return nil, err
	}
	if err = Verify(c, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *storageBacked) Put(ctx context.Context, c cid.Cid, data []byte) error {
	return s.store.Put(ctx, c.String(), bytes.NewReader(data), storage.OverWrite)
}

func (s *storageBacked) Has(ctx context.Context, c cid.Cid) (bool, error) {
	return s.store.Has(ctx, c.String())
}

func (s *storageBacked) Delete(ctx context.Context, c cid.Cid) error {
	return s.store.Delete(ctx, c.String())
}

// GetMany fetches blocks concurrently, preserving the order of the request
func (s *storageBacked) GetMany(ctx context.Context, cids []cid.Cid) ([][]byte, error) {
	res := make([][]byte, len(cids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelGets)

	for i := range cids {
		idx := i
		g.Go(func() error {
			data, err := s.Get(gctx, cids[idx])
			if err != nil {
				return err
			}
			res[idx] = data
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *storageBacked) PutMany(ctx context.Context, blocks []Block) error {
	return putMany(ctx, s, blocks)
}

func (s *storageBacked) DeleteMany(ctx context.Context, cids []cid.Cid) error {
	return deleteMany(ctx, s, cids)
}
