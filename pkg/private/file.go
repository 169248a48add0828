package private

import (
	"context"
	"encoding/binary"
	"io"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/oneconcern/nest/pkg/blockstore"
	"github.com/oneconcern/nest/pkg/codec"
	"github.com/oneconcern/nest/pkg/core/status"
)

// ChunkSize is the plaintext size of an encrypted content block
const ChunkSize = 256 * 1024

// File is a private file node. Its content is split in chunks, each one
// sealed with a per-content random key.
type File struct {
	header
	metadata Metadata

	contentKey []byte
	chunks     []cid.Cid
	size       uint64
}

// NewFile builds a new file node holding the content
func NewFile(ctx context.Context, content []byte, now time.Time, rng io.Reader, store blockstore.Store) (*File, error) {
	h, err := newHeader(rng)
	if err != nil {
		return nil, err
	}
	f := &File{
		header:   h,
		metadata: Metadata{Created: now.Unix(), Modified: now.Unix()},
	}
	if err = f.setContent(ctx, content, rng, store); err != nil {
		return nil, err
	}
	return f, nil
}

// Metadata of the file
func (f *File) Metadata() Metadata { return f.metadata }

// Size of the content in bytes
func (f *File) Size() uint64 { return f.size }

func chunkAAD(index int) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(index))
	return b[:]
}

func (f *File) setContent(ctx context.Context, content []byte, rng io.Reader, store blockstore.Store) error {
	key, err := randomBytes(rng)
	if err != nil {
		return err
	}
	f.contentKey = key[:]
	f.size = uint64(len(content))
	f.chunks = nil

	for i := 0; i*ChunkSize < len(content); i++ {
		end := (i + 1) * ChunkSize
		if end > len(content) {
			end = len(content)
		}
		sealed, err := seal(f.contentKey, content[i*ChunkSize:end], chunkAAD(i))
		if err != nil {
			return err
		}
		c, err := store.PutBlock(ctx, sealed, blockstore.Raw)
		if err != nil {
			return err
		}
		f.chunks = append(f.chunks, c)
	}
	return nil
}

// withContent returns a modified copy of the file holding the new content
func (f *File) withContent(ctx context.Context, content []byte, now time.Time, rng io.Reader, store blockstore.Store) (*File, error) {
	updated := &File{
		header:   f.header,
		metadata: Metadata{Created: f.metadata.Created, Modified: now.Unix()},
	}
	updated.dirty = true
	if err := updated.setContent(ctx, content, rng, store); err != nil {
		return nil, err
	}
	return updated, nil
}

// Content returns the whole decrypted content
func (f *File) Content(ctx context.Context, store blockstore.Store) ([]byte, error) {
	return f.ReadAt(ctx, 0, -1, store)
}

// ReadAt returns length bytes of content from offset. A negative length
// reads up to the end.
func (f *File) ReadAt(ctx context.Context, offset, length int64, store blockstore.Store) ([]byte, error) {
	if offset < 0 {
		return nil, status.ErrInvalidArgument.WrapMessage("negative offset %d", offset)
	}
	size := int64(f.size)
	if offset > size {
		offset = size
	}
	end := size
	if length >= 0 && offset+length < size {
		end = offset + length
	}

	out := make([]byte, 0, end-offset)
	for i := offset / ChunkSize; i*ChunkSize < end; i++ {
		if int(i) >= len(f.chunks) {
			return nil, status.ErrInvalidOperation.WrapMessage("private file is missing chunk %d", i)
		}
		sealed, err := store.GetBlock(ctx, f.chunks[i])
		if err != nil {
			return nil, err
		}
		plain, err := open(f.contentKey, sealed, chunkAAD(int(i)))
		if err != nil {
			return nil, err
		}

		start := i * ChunkSize
		lo, hi := int64(0), int64(len(plain))
		if offset > start {
			lo = offset - start
		}
		if end < start+hi {
			hi = end - start
		}
		out = append(out, plain[lo:hi]...)
	}
	return out, nil
}

// Store seals the file into the forest
func (f *File) Store(ctx context.Context, forest *Forest, store blockstore.Store) (AccessKey, *Forest, *File, error) {
	if f.persisted && !f.dirty {
		return f.key(), forest, f, nil
	}

	w := wireNode{
		Kind:       kindFile,
		Metadata:   f.metadata,
		ContentKey: f.contentKey,
		Size:       f.size,
	}
	for _, c := range f.chunks {
		w.Chunks = append(w.Chunks, codec.CIDBytes(c))
	}

	key, next, err := fileRevision(ctx, forest, store, f.header, w)
	if err != nil {
		return AccessKey{}, nil, nil, err
	}

	stored := *f
	stored.header = header{name: key.Name, ratchet: key.Ratchet, persisted: true}
	return key, next, &stored, nil
}
