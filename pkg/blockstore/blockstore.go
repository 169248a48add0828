// Package blockstore adapts a content-addressed block storage to the
// needs of the file system primitives.
//
// Blocks are keyed by CIDv1 identifiers built over a SHA2-256 multihash. The
// file system computes hashes itself before handing blocks over to a Blockstore.
package blockstore

import (
	"context"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/oneconcern/nest/pkg/errors"
)

// Codecs used by the file system
const (
	Raw         = cid.Raw
	DagProtobuf = cid.DagProtobuf
	DagCBOR     = cid.DagCBOR
)

// ErrBlockNotFound is returned when a block is missing from a Blockstore
var ErrBlockNotFound = errors.New("block not found")

// ErrCorruptedBlock is returned when the content of a block does not match its CID
var ErrCorruptedBlock = errors.New("block content does not match its identifier")

// Block is a CID and the bytes it addresses
type Block struct {
	CID  cid.Cid
	Data []byte
}

// Blockstore is the content-addressed storage capability consumed by the file system
type Blockstore interface {
	Get(context.Context, cid.Cid) ([]byte, error)
	Put(context.Context, cid.Cid, []byte) error
	Has(context.Context, cid.Cid) (bool, error)
	Delete(context.Context, cid.Cid) error
	GetMany(context.Context, []cid.Cid) ([][]byte, error)
	PutMany(context.Context, []Block) error
	DeleteMany(context.Context, []cid.Cid) error
}

// Store is the narrow storage capability the tree primitives work with:
// blocks are put as bytes and a codec, their CID is computed on the way in.
type Store interface {
	GetBlock(context.Context, cid.Cid) ([]byte, error)
	PutBlock(context.Context, []byte, uint64) (cid.Cid, error)
}

// Sum computes the CIDv1 of some data
func Sum(data []byte, codec uint64) (cid.Cid, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(codec, mh), nil
}

// PutBlock hashes then stores some data
func PutBlock(ctx context.Context, bs Blockstore, data []byte, codec uint64) (cid.Cid, error) {
	c, err := Sum(data, codec)
	if err != nil {
		return cid.Undef, err
	}
	if err = bs.Put(ctx, c, data); err != nil {
		return cid.Undef, err
	}
	return c, nil
}

// Verify checks that some data hashes to the given CID
func Verify(c cid.Cid, data []byte) error {
	sum, err := c.Prefix().Sum(data)
	if err != nil {
		return err
	}
	if !sum.Equals(c) {
		return ErrCorruptedBlock.WrapMessage("cid %s", c)
	}
	return nil
}

// Adapter exposes a Blockstore as a Store
type Adapter struct {
	bs Blockstore
}

var _ Store = &Adapter{}

// NewAdapter wraps a Blockstore
func NewAdapter(bs Blockstore) *Adapter {
	return &Adapter{bs: bs}
}

// Blockstore returns the wrapped block store
func (a *Adapter) Blockstore() Blockstore {
	return a.bs
}

// GetBlock fetches a block
func (a *Adapter) GetBlock(ctx context.Context, c cid.Cid) ([]byte, error) {
	return a.bs.Get(ctx, c)
}

// PutBlock hashes and stores a block
func (a *Adapter) PutBlock(ctx context.Context, data []byte, codec uint64) (cid.Cid, error) {
	return PutBlock(ctx, a.bs, data, codec)
}
