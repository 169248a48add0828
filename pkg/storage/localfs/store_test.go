// Copyright © 2018 One Concern

package localfs

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"sort"
	"testing"

	"github.com/oneconcern/nest/pkg/errors"
	"github.com/oneconcern/nest/pkg/storage"
	"github.com/oneconcern/nest/pkg/storage/status"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sixteen   = "bafkreisixteentons"
	seventeen = "bafkreiseventeentons"
)

func setupStore(t testing.TB) (storage.Store, afero.Fs) {
	t.Helper()
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	bs := New(fs)

	require.NoError(t, bs.Put(ctx, sixteen, bytes.NewBufferString("this is the text"), storage.OverWrite))
	require.NoError(t, bs.Put(ctx, seventeen, bytes.NewBufferString("this is the text for another thing"), storage.OverWrite))
	return bs, fs
}

func TestShard(t *testing.T) {
	for _, toPin := range []struct {
		key, expected string
	}{
		{key: "bafkreiabcxyz", expected: "xy"},
		{key: "abc", expected: "ab"},
		{key: "ab", expected: "_a"},
		{key: "a", expected: "__"},
	} {
		fixture := toPin
		t.Run(fixture.key, func(t *testing.T) {
			assert.Equal(t, fixture.expected, shard(fixture.key))
		})
	}
}

func TestHas(t *testing.T) {
	bs, fs := setupStore(t)
	ctx := context.Background()

	has, err := bs.Has(ctx, sixteen)
	require.NoError(t, err)
	require.True(t, has)

	// blocks live in their shard
	exists, err := afero.Exists(fs, filepath.Join("on", sixteen))
	require.NoError(t, err)
	assert.True(t, exists)

	has, err = bs.Has(ctx, "bafkreififteentons")
	require.NoError(t, err)
	require.False(t, has)
}

func TestGet(t *testing.T) {
	bs, _ := setupStore(t)
	ctx := context.Background()

	rdr, err := bs.Get(ctx, seventeen)
	require.NoError(t, err)
	b, err := io.ReadAll(rdr)
	require.NoError(t, err)
	require.NoError(t, rdr.Close())
	assert.Equal(t, "this is the text for another thing", string(b))

	_, err = bs.Get(ctx, "bafkreififteentons")
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrNotExists))
}

func TestInvalidKeys(t *testing.T) {
	bs, _ := setupStore(t)
	ctx := context.Background()

	for _, key := range []string{"", "a/b", `a\b`, stagingDir, ".hidden"} {
		_, err := bs.Has(ctx, key)
		assert.Truef(t, errors.Is(err, status.ErrInvalidResource), "key %q", key)
	}
}

func TestKeysDeleteClear(t *testing.T) {
	bs, _ := setupStore(t)
	ctx := context.Background()

	keys, err := bs.Keys(ctx)
	require.NoError(t, err)
	sort.Strings(keys)
	require.Equal(t, []string{seventeen, sixteen}, keys)

	require.NoError(t, bs.Delete(ctx, seventeen))
	require.NoError(t, bs.Delete(ctx, seventeen))
	keys, _ = bs.Keys(ctx)
	assert.Len(t, keys, 1)

	require.NoError(t, bs.Clear(ctx))
	keys, _ = bs.Keys(ctx)
	require.Empty(t, keys)
}

func TestPut(t *testing.T) {
	bs, _ := setupStore(t)
	ctx := context.Background()
	key := "bafkreieighteentons"

	err := bs.Put(ctx, key, bytes.NewBufferString("here we go once again"), storage.NoOverWrite)
	require.NoError(t, err)

	b, err := storage.ReadAll(ctx, bs, key)
	require.NoError(t, err)
	assert.Equal(t, "here we go once again", string(b))

	err = bs.Put(ctx, key, bytes.NewBufferString("again"), storage.NoOverWrite)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrExists))

	require.NoError(t, bs.Put(ctx, key, bytes.NewBufferString("again"), storage.OverWrite))
	b, err = storage.ReadAll(ctx, bs, key)
	require.NoError(t, err)
	assert.Equal(t, "again", string(b))

	k, _ := bs.Keys(ctx)
	assert.Len(t, k, 3)
}

func TestAtomicPut(t *testing.T) {
	fs := afero.NewMemMapFs()
	bs, err := NewAtomic(fs)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, bs.Put(ctx, "ab", bytes.NewBufferString("content"), storage.NoOverWrite))
	err = bs.Put(ctx, "ab", bytes.NewBufferString("content"), storage.NoOverWrite)
	assert.True(t, errors.Is(err, status.ErrExists))

	b, err := storage.ReadAll(ctx, bs, "ab")
	require.NoError(t, err)
	assert.Equal(t, "content", string(b))

	keys, err := bs.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ab"}, keys)

	staged, err := afero.ReadDir(fs, stagingDir)
	require.NoError(t, err)
	assert.Empty(t, staged)

	require.NoError(t, bs.Clear(ctx))
	exists, err := afero.DirExists(fs, stagingDir)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "localfs-atomic", bs.String())
}
