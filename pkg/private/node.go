// Package private implements the encrypted tree of the private partition.
//
// Every node has a random Name and a Ratchet. Each stored revision of a node
// is sealed with a key derived from its ratchet, and filed in a Forest under
// a label blinded from the name and the ratchet. Advancing the ratchet yields
// the next revision: holding the access key of a revision grants access to
// that revision and all later ones, never to earlier ones.
package private

import (
	"context"
	"fmt"
	"io"

	"github.com/ipfs/go-cid"
	"github.com/oneconcern/nest/pkg/blockstore"
	"github.com/oneconcern/nest/pkg/codec"
	"github.com/oneconcern/nest/pkg/core/status"
)

const (
	kindDirectory = "dir"
	kindFile      = "file"

	accessKeyVersion = 1
)

// Metadata of a node, in unix seconds
type Metadata struct {
	Created  int64 `cbor:"created"`
	Modified int64 `cbor:"modified"`
}

// DirectoryItem is a listing entry
type DirectoryItem struct {
	Metadata Metadata
	Name     string
}

// AccessKey points at one revision of a node, and grants access to it and
// all its later revisions
type AccessKey struct {
	Name    Name
	Ratchet Ratchet
}

type wireAccessKey struct {
	Version int    `cbor:"v"`
	Name    []byte `cbor:"name"`
	Ratchet []byte `cbor:"ratchet"`
}

func (k AccessKey) wire() wireAccessKey {
	return wireAccessKey{Version: accessKeyVersion, Name: k.Name[:], Ratchet: k.Ratchet[:]}
}

func (w wireAccessKey) accessKey() (AccessKey, error) {
	if w.Version != accessKeyVersion || len(w.Name) != KeySize || len(w.Ratchet) != KeySize {
		return AccessKey{}, status.ErrInvalidArgument.WrapMessage("malformed access key")
	}
	var k AccessKey
	copy(k.Name[:], w.Name)
	copy(k.Ratchet[:], w.Ratchet)
	return k, nil
}

// ToBytes serializes the access key
func (k AccessKey) ToBytes() []byte {
	b, err := codec.Marshal(k.wire())
	if err != nil {
		// fixed-size fields always encode
		panic(err)
	}
	return b
}

// AccessKeyFromBytes parses a serialized access key
func AccessKeyFromBytes(b []byte) (AccessKey, error) {
	var w wireAccessKey
	if err := codec.Unmarshal(b, &w); err != nil {
		return AccessKey{}, status.ErrInvalidArgument.Wrap(err)
	}
	return w.accessKey()
}

// header tracks the revision a node is based on
type header struct {
	name    Name
	ratchet Ratchet

	// persisted is set once the revision at ratchet exists in some forest
	persisted bool

	// dirty is set when the node differs from the revision at ratchet
	dirty bool
}

func newHeader(rng io.Reader) (header, error) {
	name, err := randomBytes(rng)
	if err != nil {
		return header{}, err
	}
	ratchet, err := randomBytes(rng)
	if err != nil {
		return header{}, err
	}
	return header{name: name, ratchet: ratchet, dirty: true}, nil
}

func (h header) key() AccessKey {
	return AccessKey{Name: h.name, Ratchet: h.ratchet}
}

// Node is either a directory or a file
type Node struct {
	dir  *Directory
	file *File
}

// NodeFromDirectory wraps a directory
func NodeFromDirectory(d *Directory) *Node { return &Node{dir: d} }

// NodeFromFile wraps a file
func NodeFromFile(f *File) *Node { return &Node{file: f} }

// IsDir tells if the node is a directory
func (n *Node) IsDir() bool { return n.dir != nil }

// IsFile tells if the node is a file
func (n *Node) IsFile() bool { return n.file != nil }

// AsDir returns the directory, or nil
func (n *Node) AsDir() *Directory { return n.dir }

// AsFile returns the file, or nil
func (n *Node) AsFile() *File { return n.file }

// Metadata of the node
func (n *Node) Metadata() Metadata {
	if n.dir != nil {
		return n.dir.metadata
	}
	return n.file.metadata
}

func (n *Node) header() header {
	if n.dir != nil {
		return n.dir.header
	}
	return n.file.header
}

// Stored tells if the node is unchanged since its last stored revision
func (n *Node) Stored() bool {
	h := n.header()
	return h.persisted && !h.dirty
}

// Store seals the node and its modified descendants into the forest.
//
// A stored, unmodified node returns its current access key and the forest
// unchanged. A modified node is filed under the first free revision after
// the one it is based on. It returns the access key, the new forest and the
// node rebased on the stored revision.
func (n *Node) Store(ctx context.Context, forest *Forest, store blockstore.Store) (AccessKey, *Forest, *Node, error) {
	if n.dir != nil {
		key, f, d, err := n.dir.Store(ctx, forest, store)
		if err != nil {
			return AccessKey{}, nil, nil, err
		}
		return key, f, &Node{dir: d}, nil
	}

	key, f, file, err := n.file.Store(ctx, forest, store)
	if err != nil {
		return AccessKey{}, nil, nil, err
	}
	return key, f, &Node{file: file}, nil
}

type wireNode struct {
	Kind       string                   `cbor:"kind"`
	Metadata   Metadata                 `cbor:"metadata"`
	Entries    map[string]wireAccessKey `cbor:"entries,omitempty"`
	ContentKey []byte                   `cbor:"contentKey,omitempty"`
	Chunks     [][]byte                 `cbor:"chunks,omitempty"`
	Size       uint64                   `cbor:"size,omitempty"`
}

// fileRevision seals a plaintext and files it under the first free revision.
//
// A revision is free when its label is absent from the forest, or when it
// already holds exactly this sealed block.
func fileRevision(ctx context.Context, forest *Forest, store blockstore.Store, h header, w wireNode) (AccessKey, *Forest, error) {
	plaintext, err := codec.Marshal(w)
	if err != nil {
		return AccessKey{}, nil, err
	}

	ratchet := h.ratchet
	if h.persisted {
		ratchet = ratchet.Next()
	}

	for {
		key, err := ratchet.contentKey(h.name)
		if err != nil {
			return AccessKey{}, nil, err
		}
		sealed, err := seal(key, plaintext, h.name[:])
		if err != nil {
			return AccessKey{}, nil, err
		}
		c, err := blockstore.Sum(sealed, blockstore.Raw)
		if err != nil {
			return AccessKey{}, nil, err
		}

		label := forest.Label(h.name, ratchet)
		existing, err := forest.Get(ctx, label, store)
		if err != nil {
			return AccessKey{}, nil, err
		}
		if len(existing) == 0 || containsCID(existing, c) {
			if _, err = store.PutBlock(ctx, sealed, blockstore.Raw); err != nil {
				return AccessKey{}, nil, err
			}
			next, err := forest.Put(ctx, label, c, store)
			if err != nil {
				return AccessKey{}, nil, err
			}
			return AccessKey{Name: h.name, Ratchet: ratchet}, next, nil
		}

		ratchet = ratchet.Next()
	}
}

func containsCID(cids []cid.Cid, c cid.Cid) bool {
	for _, existing := range cids {
		if existing.Equals(c) {
			return true
		}
	}
	return false
}

// Load a node from an access key.
//
// With searchLatest, the ratchet is advanced as long as later revisions
// exist in the forest.
func Load(ctx context.Context, key AccessKey, forest *Forest, store blockstore.Store, searchLatest bool) (*Node, error) {
	ratchet := key.Ratchet
	if searchLatest {
		for {
			next := ratchet.Next()
			has, err := forest.Has(ctx, forest.Label(key.Name, next), store)
			if err != nil {
				return nil, err
			}
			if !has {
				break
			}
			ratchet = next
		}
	}

	cids, err := forest.Get(ctx, forest.Label(key.Name, ratchet), store)
	if err != nil {
		return nil, err
	}
	if len(cids) == 0 {
		return nil, status.ErrNotFound.WrapMessage("no private node for this access key")
	}

	contentKey, err := ratchet.contentKey(key.Name)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, c := range cids {
		sealed, err := store.GetBlock(ctx, c)
		if err != nil {
			lastErr = err
			continue
		}
		plaintext, err := open(contentKey, sealed, key.Name[:])
		if err != nil {
			lastErr = err
			continue
		}
		var w wireNode
		if err = codec.Unmarshal(plaintext, &w); err != nil {
			lastErr = err
			continue
		}
		return nodeFromWire(header{name: key.Name, ratchet: ratchet, persisted: true}, w)
	}
	return nil, fmt.Errorf("loading private node: %w", lastErr)
}

func nodeFromWire(h header, w wireNode) (*Node, error) {
	switch w.Kind {
	case kindDirectory:
		d := &Directory{header: h, metadata: w.Metadata, entries: make(map[string]*entry, len(w.Entries))}
		for name, wk := range w.Entries {
			k, err := wk.accessKey()
			if err != nil {
				return nil, err
			}
			d.entries[name] = &entry{key: k}
		}
		return &Node{dir: d}, nil
	case kindFile:
		f := &File{header: h, metadata: w.Metadata, contentKey: w.ContentKey, size: w.Size}
		for _, raw := range w.Chunks {
			c, err := codec.CIDFromBytes(raw)
			if err != nil {
				return nil, err
			}
			f.chunks = append(f.chunks, c)
		}
		return &Node{file: f}, nil
	default:
		return nil, status.ErrInvalidOperation.WrapMessage("unknown private node kind %q", w.Kind)
	}
}
