package private

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/oneconcern/nest/pkg/blockstore"
	"github.com/oneconcern/nest/pkg/core/status"
)

// entry is a child of a directory: known by its access key, and possibly
// held in memory when it was loaded or modified
type entry struct {
	key  AccessKey
	node *Node
}

// Directory is a private directory node
type Directory struct {
	header
	metadata Metadata
	entries  map[string]*entry
}

// NewDirectory builds an empty directory with a fresh name and ratchet
func NewDirectory(now time.Time, rng io.Reader) (*Directory, error) {
	h, err := newHeader(rng)
	if err != nil {
		return nil, err
	}
	return &Directory{
		header:   h,
		metadata: Metadata{Created: now.Unix(), Modified: now.Unix()},
		entries:  map[string]*entry{},
	}, nil
}

// Metadata of the directory
func (d *Directory) Metadata() Metadata { return d.metadata }

// Names of the entries, sorted
func (d *Directory) Names() []string {
	names := make([]string, 0, len(d.entries))
	for name := range d.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (d *Directory) modified(now *time.Time) *Directory {
	entries := make(map[string]*entry, len(d.entries))
	for k, v := range d.entries {
		entries[k] = v
	}
	md := d.metadata
	if now != nil {
		md.Modified = now.Unix()
	}
	h := d.header
	h.dirty = true
	return &Directory{header: h, metadata: md, entries: entries}
}

// LookupNode resolves a direct child, or returns nil if absent
func (d *Directory) LookupNode(ctx context.Context, name string, searchLatest bool, forest *Forest, store blockstore.Store) (*Node, error) {
	e, ok := d.entries[name]
	if !ok {
		return nil, nil
	}
	if e.node != nil {
		return e.node, nil
	}
	return Load(ctx, e.key, forest, store, searchLatest)
}

// GetNode resolves a node along a path, or returns nil if absent.
// An empty path resolves to the directory itself.
func (d *Directory) GetNode(ctx context.Context, segments []string, searchLatest bool, forest *Forest, store blockstore.Store) (*Node, error) {
	current := &Node{dir: d}
	for _, name := range segments {
		if !current.IsDir() {
			return nil, nil
		}
		next, err := current.dir.LookupNode(ctx, name, searchLatest, forest, store)
		if err != nil || next == nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}

func (d *Directory) getDirectory(ctx context.Context, segments []string, searchLatest bool, forest *Forest, store blockstore.Store) (*Directory, error) {
	node, err := d.GetNode(ctx, segments, searchLatest, forest, store)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, status.ErrNotFound.WrapMessage("no directory at %q", segments)
	}
	if !node.IsDir() {
		return nil, status.ErrInvalidOperation.WrapMessage("cannot list a file at %q", segments)
	}
	return node.dir, nil
}

// Ls lists the directory at a path
func (d *Directory) Ls(ctx context.Context, segments []string, searchLatest bool, forest *Forest, store blockstore.Store) ([]DirectoryItem, error) {
	dir, err := d.getDirectory(ctx, segments, searchLatest, forest, store)
	if err != nil {
		return nil, err
	}

	names := dir.Names()
	items := make([]DirectoryItem, 0, len(names))
	for _, name := range names {
		node, err := dir.LookupNode(ctx, name, searchLatest, forest, store)
		if err != nil {
			return nil, err
		}
		items = append(items, DirectoryItem{Name: name, Metadata: node.Metadata()})
	}
	return items, nil
}

func (d *Directory) getFile(ctx context.Context, segments []string, searchLatest bool, forest *Forest, store blockstore.Store) (*File, error) {
	node, err := d.GetNode(ctx, segments, searchLatest, forest, store)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, status.ErrNotFound.WrapMessage("no file at %q", segments)
	}
	if node.IsDir() {
		return nil, status.ErrInvalidOperation.WrapMessage("expected a file at %q, found a directory", segments)
	}
	return node.file, nil
}

// Read returns the content of the file at a path
func (d *Directory) Read(ctx context.Context, segments []string, searchLatest bool, forest *Forest, store blockstore.Store) ([]byte, error) {
	f, err := d.getFile(ctx, segments, searchLatest, forest, store)
	if err != nil {
		return nil, err
	}
	return f.Content(ctx, store)
}

// ReadAt returns a byte range of the file at a path
func (d *Directory) ReadAt(ctx context.Context, segments []string, offset, length int64, searchLatest bool, forest *Forest, store blockstore.Store) ([]byte, error) {
	f, err := d.getFile(ctx, segments, searchLatest, forest, store)
	if err != nil {
		return nil, err
	}
	return f.ReadAt(ctx, offset, length, store)
}

// Mkdir creates a directory and all missing intermediate directories
func (d *Directory) Mkdir(ctx context.Context, segments []string, searchLatest bool, now time.Time, rng io.Reader, forest *Forest, store blockstore.Store) (*Directory, error) {
	return d.update(ctx, segments, searchLatest, now, rng, forest, store, func(existing *Node) (*Node, error) {
		if existing == nil {
			dir, err := NewDirectory(now, rng)
			if err != nil {
				return nil, err
			}
			return &Node{dir: dir}, nil
		}
		if !existing.IsDir() {
			return nil, status.ErrInvalidOperation.WrapMessage("cannot create a directory inside a file at %q", segments)
		}
		return existing, nil
	})
}

// Write sets the content of a file, creating intermediate directories
func (d *Directory) Write(ctx context.Context, segments []string, searchLatest bool, content []byte, now time.Time, rng io.Reader, forest *Forest, store blockstore.Store) (*Directory, error) {
	if len(segments) == 0 {
		return nil, status.ErrInvalidOperation.WrapMessage("cannot write to the root directory")
	}
	return d.update(ctx, segments, searchLatest, now, rng, forest, store, func(existing *Node) (*Node, error) {
		if existing == nil {
			f, err := NewFile(ctx, content, now, rng, store)
			if err != nil {
				return nil, err
			}
			return &Node{file: f}, nil
		}
		if existing.IsDir() {
			return nil, status.ErrInvalidOperation.WrapMessage("a directory exists at %q", segments)
		}
		f, err := existing.file.withContent(ctx, content, now, rng, store)
		if err != nil {
			return nil, err
		}
		return &Node{file: f}, nil
	})
}

// Rm removes a node
func (d *Directory) Rm(ctx context.Context, segments []string, searchLatest bool, now time.Time, forest *Forest, store blockstore.Store) (*Directory, error) {
	if len(segments) == 0 {
		return nil, status.ErrInvalidOperation.WrapMessage("cannot remove self")
	}

	parentSegments := segments[:len(segments)-1]
	parent, err := d.getDirectory(ctx, parentSegments, searchLatest, forest, store)
	if err != nil {
		return nil, err
	}
	name := segments[len(segments)-1]
	if _, ok := parent.entries[name]; !ok {
		return nil, status.ErrNotFound.WrapMessage("no node at %q", segments)
	}

	return d.update(ctx, parentSegments, searchLatest, now, nil, forest, store, func(existing *Node) (*Node, error) {
		dir := existing.dir.modified(&now)
		delete(dir.entries, name)
		return &Node{dir: dir}, nil
	})
}

// update rewrites the path from d down to segments, replacing the node at
// segments with the result of fn. Intermediate directories are created.
func (d *Directory) update(ctx context.Context, segments []string, searchLatest bool, now time.Time, rng io.Reader, forest *Forest, store blockstore.Store, fn func(*Node) (*Node, error)) (*Directory, error) {
	if len(segments) == 0 {
		replaced, err := fn(&Node{dir: d})
		if err != nil {
			return nil, err
		}
		return replaced.dir, nil
	}

	dirs := make([]*Directory, 0, len(segments))
	current := d
	for i, name := range segments[:len(segments)-1] {
		dirs = append(dirs, current)
		child, err := current.LookupNode(ctx, name, searchLatest, forest, store)
		if err != nil {
			return nil, err
		}
		switch {
		case child == nil:
			if rng == nil {
				return nil, status.ErrNotFound.WrapMessage("no directory at %q", segments[:i+1])
			}
			current, err = NewDirectory(now, rng)
			if err != nil {
				return nil, err
			}
		case child.IsDir():
			current = child.dir
		default:
			return nil, status.ErrInvalidOperation.WrapMessage("cannot create a directory inside a file at %q", segments[:i+1])
		}
	}
	dirs = append(dirs, current)

	last := segments[len(segments)-1]
	existing, err := current.LookupNode(ctx, last, searchLatest, forest, store)
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

	child := replaced
	for i := len(dirs) - 1; i >= 0; i-- {
		dir := dirs[i].modified(&now)
		dir.entries[segments[i]] = &entry{node: child}
		child = &Node{dir: dir}
	}
	return child.dir, nil
}

// Store seals the directory and its modified descendants into the forest
func (d *Directory) Store(ctx context.Context, forest *Forest, store blockstore.Store) (AccessKey, *Forest, *Directory, error) {
	if d.persisted && !d.dirty {
		return d.key(), forest, d, nil
	}

	stored := &Directory{metadata: d.metadata, entries: make(map[string]*entry, len(d.entries))}
	w := wireNode{
		Kind:     kindDirectory,
		Metadata: d.metadata,
		Entries:  make(map[string]wireAccessKey, len(d.entries)),
	}
	for _, name := range d.Names() {
		e := d.entries[name]
		if e.node == nil {
			stored.entries[name] = e
			w.Entries[name] = e.key.wire()
			continue
		}

		key, next, child, err := e.node.Store(ctx, forest, store)
		if err != nil {
			return AccessKey{}, nil, nil, err
		}
		forest = next
		stored.entries[name] = &entry{key: key, node: child}
		w.Entries[name] = key.wire()
	}

	key, next, err := fileRevision(ctx, forest, store, d.header, w)
	if err != nil {
		return AccessKey{}, nil, nil, err
	}
	stored.header = header{name: key.Name, ratchet: key.Ratchet, persisted: true}
	return key, next, stored, nil
}
