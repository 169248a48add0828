// Copyright © 2018 One Concern

// Package localfs stores blocks as files of a sharded directory.
//
// A block lives in a two-character shard directory taken from the next-to-last
// characters of its key, e.g. "bafkreiabc...xyz" goes to "xy/bafkreiabc...xyz".
// CIDs end with random-looking characters, so shards fill up evenly.
package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/oneconcern/nest/pkg/storage"
	"github.com/oneconcern/nest/pkg/storage/status"
	"github.com/spf13/afero"
)

const (
	shardPad = "_"

	// stagingDir holds partial writes, renamed into their shard once complete
	stagingDir = ".staging"
)

// DefaultPath of the block directory, relative to the working directory
var DefaultPath = filepath.Join(".nest", "blocks")

// New creates a block store writing files in place
func New(fs afero.Fs) storage.Store {
	return &localFS{fs: defaultFs(fs)}
}

// NewAtomic creates a block store staging every write before renaming it into
// place: readers never see a partially written block.
func NewAtomic(fs afero.Fs) (storage.Store, error) {
	fs = defaultFs(fs)
	if err := fs.MkdirAll(stagingDir, 0700); err != nil {
		return nil, fmt.Errorf("ensuring staging directory %q: %w", stagingDir, err)
	}
	return &localFS{fs: fs, atomic: true}, nil
}

func defaultFs(fs afero.Fs) afero.Fs {
	if fs == nil {
		return afero.NewBasePathFs(afero.NewOsFs(), DefaultPath)
	}
	return fs
}

type localFS struct {
	fs     afero.Fs
	atomic bool
}

func validateKey(key string) error {
	switch {
	case key == "":
		return status.ErrInvalidResource.WrapMessage("empty key")
	case strings.ContainsAny(key, `/\`):
		return status.ErrInvalidResource.WrapMessage("key %q contains a path separator", key)
	case strings.HasPrefix(key, "."):
		return status.ErrInvalidResource.WrapMessage("key %q starts with a dot", key)
	}
	return nil
}

func shard(key string) string {
	if n := 3 - len(key); n > 0 {
		key = strings.Repeat(shardPad, n) + key
	}
	return key[len(key)-3 : len(key)-1]
}

func blockPath(key string) string {
	return filepath.Join(shard(key), key)
}

func (l *localFS) Has(_ context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	fi, err := l.fs.Stat(blockPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !fi.IsDir(), nil
}

func (l *localFS) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	f, err := l.fs.Open(blockPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, status.ErrNotExists.WrapMessage("key %q", key)
		}
		return nil, err
	}
	return f, nil
}

func (l *localFS) Put(ctx context.Context, key string, source io.Reader, exclusive bool) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if exclusive {
		has, err := l.Has(ctx, key)
		if err != nil {
			return err
		}
		if has {
			return status.ErrExists.WrapMessage("key %q", key)
		}
	}

	target := blockPath(key)
	if err := l.fs.MkdirAll(filepath.Dir(target), 0700); err != nil {
		return fmt.Errorf("ensuring shard for %q: %w", key, err)
	}
	if !l.atomic {
		return l.write(target, source)
	}

	staged := filepath.Join(stagingDir, key)
	if err := l.write(staged, source); err != nil {
		return err
	}
	if err := l.fs.Rename(staged, target); err != nil {
		_ = l.fs.Remove(staged)
		return fmt.Errorf("moving %q into place: %w", key, err)
	}
	return nil
}

func (l *localFS) write(pth string, source io.Reader) error {
	f, err := l.fs.OpenFile(pth, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating %q: %w", pth, err)
	}
	if _, err = storage.PipeIO(f, source); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %q: %w", pth, err)
	}
	return f.Close()
}

func (l *localFS) Delete(_ context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := l.fs.Remove(blockPath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %q: %w", key, err)
	}
	return nil
}

// Keys lists the blocks of all shards. Staged writes are not listed.
func (l *localFS) Keys(_ context.Context) ([]string, error) {
	shards, err := afero.ReadDir(l.fs, ".")
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var keys []string
	for _, s := range shards {
		if !s.IsDir() || s.Name() == stagingDir {
			continue
		}
		entries, err := afero.ReadDir(l.fs, s.Name())
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir() && shard(e.Name()) == s.Name() {
				keys = append(keys, e.Name())
			}
		}
	}
	return keys, nil
}

func (l *localFS) Clear(_ context.Context) error {
	entries, err := afero.ReadDir(l.fs, ".")
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if err := l.fs.RemoveAll(entry.Name()); err != nil {
			return err
		}
	}
	if l.atomic {
		return l.fs.MkdirAll(stagingDir, 0700)
	}
	return nil
}

func (l *localFS) String() string {
	name := "localfs"
	if l.atomic {
		name = "localfs-atomic"
	}
	if bfs, ok := l.fs.(*afero.BasePathFs); ok {
		if pp, err := bfs.RealPath(""); err == nil {
			return name + "@" + pp
		}
	}
	return name
}
