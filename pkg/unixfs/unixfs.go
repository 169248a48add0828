package unixfs

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/oneconcern/nest/pkg/blockstore"
	"github.com/oneconcern/nest/pkg/core/status"
	"github.com/oneconcern/nest/pkg/dagpb"
	"github.com/oneconcern/nest/pkg/fspath"
)

const (
	// ChunkSize is the size of file leaves
	ChunkSize = 256 * 1024

	// maxLinks is the width of balanced file trees
	maxLinks = 174
)

// CreateDirectory builds an empty UnixFS directory node
func CreateDirectory(now time.Time, links ...dagpb.Link) *dagpb.Node {
	mtime := time.Unix(now.Unix(), 0).UTC()
	data := &Data{Type: TDirectory, Mtime: &mtime}
	return &dagpb.Node{
		Data:  data.Marshal(),
		Links: append([]dagpb.Link(nil), links...),
	}
}

// Load a UnixFS node
func Load(ctx context.Context, store blockstore.Store, c cid.Cid) (*dagpb.Node, error) {
	b, err := store.GetBlock(ctx, c)
	if err != nil {
		return nil, err
	}
	return dagpb.Decode(b)
}

// Store a UnixFS node
func Store(ctx context.Context, store blockstore.Store, node *dagpb.Node) (cid.Cid, error) {
	return store.PutBlock(ctx, dagpb.Encode(node), blockstore.DagProtobuf)
}

// ImportFile chunks some bytes into a UnixFS file and returns its root CID.
//
// Leaves are raw blocks; a file that fits in a single chunk is that raw block.
func ImportFile(ctx context.Context, store blockstore.Store, data []byte) (cid.Cid, error) {
	if len(data) <= ChunkSize {
		return store.PutBlock(ctx, data, blockstore.Raw)
	}

	type entry struct {
		c     cid.Cid
		size  uint64
		tsize uint64
	}

	level := make([]entry, 0, len(data)/ChunkSize+1)
	for offset := 0; offset < len(data); offset += ChunkSize {
		end := offset + ChunkSize
		if end > len(data) {
			end = len(data)
		}
		c, err := store.PutBlock(ctx, data[offset:end], blockstore.Raw)
		if err != nil {
			return cid.Undef, err
		}
		size := uint64(end - offset)
		level = append(level, entry{c: c, size: size, tsize: size})
	}

	for len(level) > 1 {
		next := make([]entry, 0, len(level)/maxLinks+1)
		for i := 0; i < len(level); i += maxLinks {
			end := i + maxLinks
			if end > len(level) {
				end = len(level)
			}

			var total, tsize uint64
			d := &Data{Type: TFile}
			node := &dagpb.Node{}
			for _, child := range level[i:end] {
				total += child.size
				tsize += child.tsize
				d.BlockSizes = append(d.BlockSizes, child.size)
				node.Links = append(node.Links, dagpb.Link{Hash: child.c, Tsize: child.tsize})
			}
			d.FileSize = &total
			node.Data = d.Marshal()

			encoded := dagpb.Encode(node)
			c, err := store.PutBlock(ctx, encoded, blockstore.DagProtobuf)
			if err != nil {
				return cid.Undef, err
			}
			next = append(next, entry{c: c, size: total, tsize: tsize + uint64(len(encoded))})
		}
		level = next
	}

	return level[0].c, nil
}

// FileSize returns the byte size of a UnixFS file
func FileSize(ctx context.Context, store blockstore.Store, c cid.Cid) (uint64, error) {
	b, err := store.GetBlock(ctx, c)
	if err != nil {
		return 0, err
	}
	if c.Type() == blockstore.Raw {
		return uint64(len(b)), nil
	}

	_, d, err := decodeFile(c, b)
	if err != nil {
		return 0, err
	}
	if d.FileSize != nil {
		return *d.FileSize, nil
	}
	size := uint64(len(d.Data))
	for _, s := range d.BlockSizes {
		size += s
	}
	return size, nil
}

// ExportFile reads the bytes of a UnixFS file, starting at offset.
//
// A negative length reads up to the end of the file.
func ExportFile(ctx context.Context, store blockstore.Store, c cid.Cid, offset, length int64) ([]byte, error) {
	if offset < 0 {
		offset = 0
	}
	to := uint64(math.MaxUint64)
	if length >= 0 {
		to = uint64(offset) + uint64(length)
	}

	out := []byte{}
	if err := collect(ctx, store, c, uint64(offset), to, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeFile(c cid.Cid, b []byte) (*dagpb.Node, *Data, error) {
	if c.Type() != blockstore.DagProtobuf {
		return nil, nil, fmt.Errorf("unixfs: unsupported codec 0x%x (CID: %s)", c.Type(), c)
	}
	node, err := dagpb.Decode(b)
	if err != nil {
		return nil, nil, err
	}
	d, err := UnmarshalData(node.Data)
	if err != nil {
		return nil, nil, err
	}
	if d.Type != TFile && d.Type != TRaw {
		return nil, nil, status.ErrInvalidOperation.WrapMessage("expected a file, found type %d (CID: %s)", d.Type, c)
	}
	return node, d, nil
}

// collect appends the bytes in [from, to) of the node c
func collect(ctx context.Context, store blockstore.Store, c cid.Cid, from, to uint64, out *[]byte) error {
	b, err := store.GetBlock(ctx, c)
	if err != nil {
		return err
	}
	if c.Type() == blockstore.Raw {
		*out = append(*out, window(b, from, to)...)
		return nil
	}

	node, d, err := decodeFile(c, b)
	if err != nil {
		return err
	}

	*out = append(*out, window(d.Data, from, to)...)
	pos := uint64(len(d.Data))

	for i, link := range node.Links {
		if pos >= to {
			break
		}
		var size uint64
		if i < len(d.BlockSizes) {
			size = d.BlockSizes[i]
		} else {
			s, err := FileSize(ctx, store, link.Hash)
			if err != nil {
				return err
			}
			size = s
		}

		start, end := pos, pos+size
		pos = end
		if end <= from {
			continue
		}

		childFrom := uint64(0)
		if from > start {
			childFrom = from - start
		}
		childTo := size
		if to < end {
			childTo = to - start
		}
		if err := collect(ctx, store, link.Hash, childFrom, childTo, out); err != nil {
			return err
		}
	}
	return nil
}

func window(b []byte, from, to uint64) []byte {
	size := uint64(len(b))
	if from >= size {
		return nil
	}
	if to > size {
		to = size
	}
	return b[from:to]
}

// InsertNode inserts a node into a UnixFS tree, creating intermediate
// directories when needed and overwriting file content.
//
// Inserting a file requires its content CID. Inserting an existing directory is a no-op.
func InsertNode(ctx context.Context, store blockstore.Store, node *dagpb.Node, path fspath.Path, fileCID cid.Cid, now time.Time) (*dagpb.Node, error) {
	segments := path.Segments()
	if len(segments) == 0 {
		return node, nil
	}
	name := segments[0]
	idx := node.FindLink(name)

	if len(segments) > 1 {
		var dir *dagpb.Node
		if idx < 0 {
			dir = CreateDirectory(now)
		} else {
			loaded, err := Load(ctx, store, node.Links[idx].Hash)
			if err != nil {
				return nil, err
			}
			dir = loaded
		}

		rest, err := fspath.FromKind(path.Kind(), segments[1:]...)
		if err != nil {
			return nil, err
		}
		updated, err := InsertNode(ctx, store, dir, rest, fileCID, now)
		if err != nil {
			return nil, err
		}
		dirCID, err := Store(ctx, store, updated)
		if err != nil {
			return nil, err
		}
		return withLink(node, idx, name, dirCID), nil
	}

	if path.IsDirectory() {
		if idx >= 0 {
			return node, nil
		}
		dirCID, err := Store(ctx, store, CreateDirectory(now))
		if err != nil {
			return nil, err
		}
		return withLink(node, idx, name, dirCID), nil
	}

	if !fileCID.Defined() {
		return nil, status.ErrInvalidArgument.WrapMessage("need a file CID when adding a UnixFS file")
	}
	return withLink(node, idx, name, fileCID), nil
}

// RemoveNode removes a node from a UnixFS tree. Missing nodes are ignored.
func RemoveNode(ctx context.Context, store blockstore.Store, node *dagpb.Node, path fspath.Path) (*dagpb.Node, error) {
	segments := path.Segments()
	if len(segments) == 0 {
		return node, nil
	}
	name := segments[0]
	idx := node.FindLink(name)
	if idx < 0 {
		return node, nil
	}

	if len(segments) > 1 {
		dir, err := Load(ctx, store, node.Links[idx].Hash)
		if err != nil {
			return nil, err
		}
		rest, err := fspath.FromKind(path.Kind(), segments[1:]...)
		if err != nil {
			return nil, err
		}
		updated, err := RemoveNode(ctx, store, dir, rest)
		if err != nil {
			return nil, err
		}
		dirCID, err := Store(ctx, store, updated)
		if err != nil {
			return nil, err
		}
		return withLink(node, idx, name, dirCID), nil
	}

	res := node.Clone()
	res.Links = append(res.Links[:idx], res.Links[idx+1:]...)
	return res, nil
}

// Resolve follows named links from a UnixFS directory node
func Resolve(ctx context.Context, store blockstore.Store, root *dagpb.Node, segments []string) (cid.Cid, error) {
	if len(segments) == 0 {
		return Store(ctx, store, root)
	}

	node := root
	for i, name := range segments {
		idx := node.FindLink(name)
		if idx < 0 {
			return cid.Undef, status.ErrNotFound.WrapMessage("no link named %q", name)
		}
		link := node.Links[idx].Hash
		if i == len(segments)-1 {
			return link, nil
		}
		next, err := Load(ctx, store, link)
		if err != nil {
			return cid.Undef, err
		}
		node = next
	}
	return cid.Undef, nil
}

// withLink returns a copy of node where the link at idx points to c,
// or with a new sorted link when idx is negative
func withLink(node *dagpb.Node, idx int, name string, c cid.Cid) *dagpb.Node {
	res := node.Clone()
	if idx >= 0 {
		res.Links[idx].Hash = c
		return res
	}
	res.Links = append(res.Links, dagpb.Link{Name: name, Hash: c})
	dagpb.SortLinks(res.Links)
	return res
}
