package blockstore

import (
	"context"
	"sync"

	"github.com/ipfs/go-cid"
)

type memory struct {
	mx     sync.RWMutex
	blocks map[string][]byte
}

// NewMemory builds an in-memory block store
func NewMemory() Blockstore {
	return &memory{blocks: make(map[string][]byte)}
}

func (m *memory) Get(_ context.Context, c cid.Cid) ([]byte, error) {
	m.mx.RLock()
	defer m.mx.RUnlock()

	data, ok := m.blocks[c.KeyString()]
	if !ok {
		return nil, ErrBlockNotFound.WrapMessage("cid %s", c)
	}
	return append([]byte(nil), data...), nil
}

func (m *memory) Put(_ context.Context, c cid.Cid, data []byte) error {
	m.mx.Lock()
	defer m.mx.Unlock()

	m.blocks[c.KeyString()] = append([]byte(nil), data...)
	return nil
}

func (m *memory) Has(_ context.Context, c cid.Cid) (bool, error) {
	m.mx.RLock()
	defer m.mx.RUnlock()

	_, ok := m.blocks[c.KeyString()]
	return ok, nil
}

func (m *memory) Delete(_ context.Context, c cid.Cid) error {
	m.mx.Lock()
	defer m.mx.Unlock()

	delete(m.blocks, c.KeyString())
	return nil
}

func (m *memory) GetMany(ctx context.Context, cids []cid.Cid) ([][]byte, error) {
	return getMany(ctx, m, cids)
}

func (m *memory) PutMany(ctx context.Context, blocks []Block) error {
	return putMany(ctx, m, blocks)
}

func (m *memory) DeleteMany(ctx context.Context, cids []cid.Cid) error {
	return deleteMany(ctx, m, cids)
}

func getMany(ctx context.Context, bs Blockstore, cids []cid.Cid) ([][]byte, error) {
	res := make([][]byte, 0, len(cids))
	for _, c := range cids {
		data, err := bs.Get(ctx, c)
		if err != nil {
			return nil, err
		}
		res = append(res, data)
	}
	return res, nil
}

func putMany(ctx context.Context, bs Blockstore, blocks []Block) error {
	for _, b := range blocks {
		if err := bs.Put(ctx, b.CID, b.Data); err != nil {
			return err
		}
	}
	return nil
}

func deleteMany(ctx context.Context, bs Blockstore, cids []cid.Cid) error {
	for _, c := range cids {
		if err := bs.Delete(ctx, c); err != nil {
			return err
		}
	}
	return nil
}
