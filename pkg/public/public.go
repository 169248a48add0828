// Package public implements the plain hash-linked directory tree of the
// public partition.
//
// Directories and files are immutable values: every mutation returns a new
// root and shares untouched subtrees with the previous one. Nodes are stored
// as deterministic CBOR blocks; a file node references the root CID of its
// UnixFS content.
package public

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/oneconcern/nest/pkg/blockstore"
	"github.com/oneconcern/nest/pkg/codec"
	"github.com/oneconcern/nest/pkg/core/status"
)

const (
	kindDirectory = "dir"
	kindFile      = "file"
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

type wireNode struct {
	Kind     string            `cbor:"kind"`
	Metadata Metadata          `cbor:"metadata"`
	Entries  map[string][]byte `cbor:"entries,omitempty"`
	Content  []byte            `cbor:"content,omitempty"`
}

// Node is either a directory or a file
type Node struct {
	dir  *Directory
	file *File
}

// IsDir tells if the node is a directory
func (n *Node) IsDir() bool { return n.dir != nil }

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

// Store persists the node
func (n *Node) Store(ctx context.Context, store blockstore.Store) (cid.Cid, error) {
	if n.dir != nil {
		return n.dir.Store(ctx, store)
	}
	return n.file.Store(ctx, store)
}

// entry is a child of a directory: loaded, or only known by its CID
type entry struct {
	c    cid.Cid
	node *Node
}

// File references UnixFS content
type File struct {
	metadata Metadata
	content  cid.Cid

	mx     sync.Mutex
	stored cid.Cid
}

// NewFile builds a file node
func NewFile(content cid.Cid, now time.Time) *File {
	return &File{
		metadata: Metadata{Created: now.Unix(), Modified: now.Unix()},
		content:  content,
	}
}

// ContentCID is the root CID of the UnixFS content
func (f *File) ContentCID() cid.Cid { return f.content }

// Metadata of the file
func (f *File) Metadata() Metadata { return f.metadata }

// Store persists the file node
func (f *File) Store(ctx context.Context, store blockstore.Store) (cid.Cid, error) {
	f.mx.Lock()
	defer f.mx.Unlock()
	if f.stored.Defined() {
		return f.stored, nil
	}

	b, err := codec.Marshal(wireNode{
		Kind:     kindFile,
		Metadata: f.metadata,
		Content:  codec.CIDBytes(f.content),
	})
	if err != nil {
		return cid.Undef, err
	}
	c, err := store.PutBlock(ctx, b, blockstore.DagCBOR)
	if err != nil {
		return cid.Undef, err
	}
	f.stored = c
	return c, nil
}

// Directory is a persistent directory node
type Directory struct {
	metadata Metadata
	entries  map[string]entry

	mx     sync.Mutex
	stored cid.Cid
}

// NewDirectory builds an empty directory
func NewDirectory(now time.Time) *Directory {
	return &Directory{
		metadata: Metadata{Created: now.Unix(), Modified: now.Unix()},
		entries:  map[string]entry{},
	}
}

// Metadata of the directory
func (d *Directory) Metadata() Metadata { return d.metadata }

func (d *Directory) clone(now *time.Time) *Directory {
	entries := make(map[string]entry, len(d.entries))
	for k, v := range d.entries {
		entries[k] = v
	}
	md := d.metadata
	if now != nil {
		md.Modified = now.Unix()
	}
	return &Directory{metadata: md, entries: entries}
}

// Names of the entries, sorted
func (d *Directory) Names() []string {
	names := make([]string, 0, len(d.entries))
	for name := range d.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupNode resolves a direct child, or returns nil if absent
func (d *Directory) LookupNode(ctx context.Context, name string, store blockstore.Store) (*Node, error) {
	e, ok := d.entries[name]
	if !ok {
		return nil, nil
	}
	if e.node != nil {
		return e.node, nil
	}
	return Load(ctx, e.c, store)
}

// GetNode resolves a node along a path, or returns nil if absent.
// An empty path resolves to the directory itself.
func (d *Directory) GetNode(ctx context.Context, segments []string, store blockstore.Store) (*Node, error) {
	current := &Node{dir: d}
	for _, name := range segments {
		if !current.IsDir() {
			return nil, nil
		}
		next, err := current.dir.LookupNode(ctx, name, store)
		if err != nil || next == nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}

// getDirectory resolves a directory along a path
func (d *Directory) getDirectory(ctx context.Context, segments []string, store blockstore.Store) (*Directory, error) {
	node, err := d.GetNode(ctx, segments, store)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, status.ErrNotFound.WrapMessage("no directory at %q", segments)
	}
	if !node.IsDir() {
		return nil, status.ErrInvalidOperation.WrapMessage("expected a directory at %q, found a file", segments)
	}
	return node.dir, nil
}

// Ls lists the directory at a path
func (d *Directory) Ls(ctx context.Context, segments []string, store blockstore.Store) ([]DirectoryItem, error) {
	dir, err := d.getDirectory(ctx, segments, store)
	if err != nil {
		return nil, err
	}

	names := dir.Names()
	items := make([]DirectoryItem, 0, len(names))
	for _, name := range names {
		node, err := dir.LookupNode(ctx, name, store)
		if err != nil {
			return nil, err
		}
		items = append(items, DirectoryItem{Name: name, Metadata: node.Metadata()})
	}
	return items, nil
}

// Read returns the content CID of the file at a path
func (d *Directory) Read(ctx context.Context, segments []string, store blockstore.Store) (cid.Cid, error) {
	node, err := d.GetNode(ctx, segments, store)
	if err != nil {
		return cid.Undef, err
	}
	if node == nil {
		return cid.Undef, status.ErrNotFound.WrapMessage("no file at %q", segments)
	}
	if node.IsDir() {
		return cid.Undef, status.ErrInvalidOperation.WrapMessage("expected a file at %q, found a directory", segments)
	}
	return node.file.content, nil
}

// Mkdir creates a directory and all missing intermediate directories
func (d *Directory) Mkdir(ctx context.Context, segments []string, now time.Time, store blockstore.Store) (*Directory, error) {
	return d.update(ctx, segments, now, store, func(existing *Node) (*Node, error) {
		if existing == nil {
			return &Node{dir: NewDirectory(now)}, nil
		}
		if !existing.IsDir() {
			return nil, status.ErrInvalidOperation.WrapMessage("a file exists at %q", segments)
		}
		return existing, nil
	})
}

// Write sets the content of a file, creating intermediate directories
func (d *Directory) Write(ctx context.Context, segments []string, content cid.Cid, now time.Time, store blockstore.Store) (*Directory, error) {
	if len(segments) == 0 {
		return nil, status.ErrInvalidOperation.WrapMessage("cannot write to the root directory")
	}
	return d.update(ctx, segments, now, store, func(existing *Node) (*Node, error) {
		if existing == nil {
			return &Node{file: NewFile(content, now)}, nil
		}
		if existing.IsDir() {
			return nil, status.ErrInvalidOperation.WrapMessage("a directory exists at %q", segments)
		}
		f := &File{
			metadata: Metadata{Created: existing.file.metadata.Created, Modified: now.Unix()},
			content:  content,
		}
		return &Node{file: f}, nil
	})
}

// Rm removes a node
func (d *Directory) Rm(ctx context.Context, segments []string, store blockstore.Store) (*Directory, error) {
	if len(segments) == 0 {
		return nil, status.ErrInvalidOperation.WrapMessage("cannot remove the root directory")
	}

	parent, err := d.getDirectory(ctx, segments[:len(segments)-1], store)
	if err != nil {
		return nil, err
	}
	name := segments[len(segments)-1]
	if _, ok := parent.entries[name]; !ok {
		return nil, status.ErrNotFound.WrapMessage("no node at %q", segments)
	}

	return d.update(ctx, segments[:len(segments)-1], time.Unix(d.metadata.Modified, 0), store, func(existing *Node) (*Node, error) {
		dir := existing.dir.clone(nil)
		delete(dir.entries, name)
		return &Node{dir: dir}, nil
	})
}

// update rewrites the path from d down to segments, replacing the node at
// segments with the result of fn. Intermediate directories are created.
func (d *Directory) update(ctx context.Context, segments []string, now time.Time, store blockstore.Store, fn func(*Node) (*Node, error)) (*Directory, error) {
	if len(segments) == 0 {
		replaced, err := fn(&Node{dir: d})
		if err != nil {
			return nil, err
		}
		return replaced.dir, nil
	}

	// walk down, remembering the directories to rewrite
	dirs := make([]*Directory, 0, len(segments))
	current := d
	for i, name := range segments[:len(segments)-1] {
		dirs = append(dirs, current)
		child, err := current.LookupNode(ctx, name, store)
		if err != nil {
			return nil, err
		}
		switch {
		case child == nil:
			current = NewDirectory(now)
		case child.IsDir():
			current = child.dir
		default:
			return nil, status.ErrInvalidOperation.WrapMessage("a file exists at %q", segments[:i+1])
		}
	}
	dirs = append(dirs, current)

	last := segments[len(segments)-1]
	existing, err := current.LookupNode(ctx, last, store)
	if err != nil {
		return nil, err
	}
	replaced, err := fn(existing)
	if err != nil {
		return nil, err
	}
	if replaced == existing {
		return d, nil
	}

	// rewrite bottom-up
	child := replaced
	for i := len(dirs) - 1; i >= 0; i-- {
		dir := dirs[i].clone(&now)
		dir.entries[segments[i]] = entry{node: child}
		child = &Node{dir: dir}
	}
	return child.dir, nil
}

// Store persists the directory and its modified descendants
func (d *Directory) Store(ctx context.Context, store blockstore.Store) (cid.Cid, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.stored.Defined() {
		return d.stored, nil
	}

	w := wireNode{
		Kind:     kindDirectory,
		Metadata: d.metadata,
		Entries:  make(map[string][]byte, len(d.entries)),
	}
	for name, e := range d.entries {
		c := e.c
		if e.node != nil {
			stored, err := e.node.Store(ctx, store)
			if err != nil {
				return cid.Undef, err
			}
			c = stored
		}
		w.Entries[name] = c.Bytes()
	}

	b, err := codec.Marshal(w)
	if err != nil {
		return cid.Undef, err
	}
	c, err := store.PutBlock(ctx, b, blockstore.DagCBOR)
	if err != nil {
		return cid.Undef, err
	}
	d.stored = c
	return c, nil
}

// Load a node
func Load(ctx context.Context, c cid.Cid, store blockstore.Store) (*Node, error) {
	b, err := store.GetBlock(ctx, c)
	if err != nil {
		return nil, err
	}

	var w wireNode
	if err = codec.Unmarshal(b, &w); err != nil {
		return nil, err
	}

	switch w.Kind {
	case kindDirectory:
		dir := &Directory{metadata: w.Metadata, entries: make(map[string]entry, len(w.Entries)), stored: c}
		for name, raw := range w.Entries {
			child, err := codec.CIDFromBytes(raw)
			if err != nil {
				return nil, err
			}
			dir.entries[name] = entry{c: child}
		}
		return &Node{dir: dir}, nil
	case kindFile:
		content, err := codec.CIDFromBytes(w.Content)
		if err != nil {
			return nil, err
		}
		return &Node{file: &File{metadata: w.Metadata, content: content, stored: c}}, nil
	default:
		return nil, status.ErrInvalidOperation.WrapMessage("unknown public node kind %q (CID: %s)", w.Kind, c)
	}
}

// LoadDirectory loads a directory node
func LoadDirectory(ctx context.Context, c cid.Cid, store blockstore.Store) (*Directory, error) {
	n, err := Load(ctx, c, store)
	if err != nil {
		return nil, err
	}
	if !n.IsDir() {
		return nil, status.ErrInvalidOperation.WrapMessage("expected a directory (CID: %s)", c)
	}
	return n.dir, nil
}

// LoadFile loads a file node
func LoadFile(ctx context.Context, c cid.Cid, store blockstore.Store) (*File, error) {
	n, err := Load(ctx, c, store)
	if err != nil {
		return nil, err
	}
	if n.IsDir() {
		return nil, status.ErrInvalidOperation.WrapMessage("expected a file (CID: %s)", c)
	}
	return n.file, nil
}
