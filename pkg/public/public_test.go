package public

import (
	"context"
	"testing"
	"time"

	"github.com/oneconcern/nest/pkg/blockstore"
	"github.com/oneconcern/nest/pkg/core/status"
	"github.com/oneconcern/nest/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t testing.TB) (context.Context, blockstore.Store, time.Time) {
	t.Helper()
	return context.Background(), blockstore.NewAdapter(blockstore.NewMemory()), time.Unix(1700000000, 0)
}

func TestMkdirWriteRead(t *testing.T) {
	ctx, store, now := setup(t)
	content, err := store.PutBlock(ctx, []byte("hello"), blockstore.Raw)
	require.NoError(t, err)

	root := NewDirectory(now)
	updated, err := root.Write(ctx, []string{"a", "b", "c.txt"}, content, now, store)
	require.NoError(t, err)

	// the previous root is untouched
	n, err := root.GetNode(ctx, []string{"a"}, store)
	require.NoError(t, err)
	assert.Nil(t, n)

	got, err := updated.Read(ctx, []string{"a", "b", "c.txt"}, store)
	require.NoError(t, err)
	assert.True(t, content.Equals(got))

	updated, err = updated.Mkdir(ctx, []string{"a", "d"}, now, store)
	require.NoError(t, err)
	again, err := updated.Mkdir(ctx, []string{"a", "d"}, now, store)
	require.NoError(t, err)
	assert.Same(t, updated, again)

	items, err := updated.Ls(ctx, []string{"a"}, store)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[0].Name)
	assert.Equal(t, "d", items[1].Name)
	assert.Equal(t, now.Unix(), items[0].Metadata.Created)

	_, err = updated.Mkdir(ctx, []string{"a", "b", "c.txt", "x"}, now, store)
	assert.True(t, errors.Is(err, status.ErrInvalidOperation))

	_, err = updated.Write(ctx, []string{"a", "d"}, content, now, store)
	assert.True(t, errors.Is(err, status.ErrInvalidOperation))

	_, err = updated.Read(ctx, []string{"a"}, store)
	assert.True(t, errors.Is(err, status.ErrInvalidOperation))

	_, err = updated.Read(ctx, []string{"nope"}, store)
	assert.True(t, errors.Is(err, status.ErrNotFound))

	_, err = updated.Ls(ctx, []string{"a", "b", "c.txt"}, store)
	assert.True(t, errors.Is(err, status.ErrInvalidOperation))
}

func TestRm(t *testing.T) {
	ctx, store, now := setup(t)
	content, err := store.PutBlock(ctx, []byte("x"), blockstore.Raw)
	require.NoError(t, err)

	root, err := NewDirectory(now).Write(ctx, []string{"a", "f"}, content, now, store)
	require.NoError(t, err)
	root, err = root.Write(ctx, []string{"g"}, content, now, store)
	require.NoError(t, err)

	removed, err := root.Rm(ctx, []string{"a", "f"}, store)
	require.NoError(t, err)
	items, err := removed.Ls(ctx, []string{"a"}, store)
	require.NoError(t, err)
	assert.Empty(t, items)

	removed, err = removed.Rm(ctx, []string{"g"}, store)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, removed.Names())

	_, err = removed.Rm(ctx, []string{"g"}, store)
	assert.True(t, errors.Is(err, status.ErrNotFound))
	_, err = removed.Rm(ctx, nil, store)
	assert.True(t, errors.Is(err, status.ErrInvalidOperation))

	// original is intact
	_, err = root.Read(ctx, []string{"a", "f"}, store)
	require.NoError(t, err)
}

func TestStoreLoad(t *testing.T) {
	ctx, store, now := setup(t)
	content, err := store.PutBlock(ctx, []byte("persisted"), blockstore.Raw)
	require.NoError(t, err)

	root, err := NewDirectory(now).Write(ctx, []string{"docs", "readme.md"}, content, now, store)
	require.NoError(t, err)
	root, err = root.Mkdir(ctx, []string{"empty"}, now, store)
	require.NoError(t, err)

	c, err := root.Store(ctx, store)
	require.NoError(t, err)
	again, err := root.Store(ctx, store)
	require.NoError(t, err)
	assert.True(t, c.Equals(again))

	loaded, err := LoadDirectory(ctx, c, store)
	require.NoError(t, err)
	assert.Equal(t, []string{"docs", "empty"}, loaded.Names())

	got, err := loaded.Read(ctx, []string{"docs", "readme.md"}, store)
	require.NoError(t, err)
	assert.True(t, content.Equals(got))

	// same logical tree, same CID
	reloadedCID, err := loaded.Store(ctx, store)
	require.NoError(t, err)
	assert.True(t, c.Equals(reloadedCID))

	node, err := loaded.GetNode(ctx, []string{"docs", "readme.md"}, store)
	require.NoError(t, err)
	require.NotNil(t, node)
	fileCID, err := node.Store(ctx, store)
	require.NoError(t, err)

	file, err := LoadFile(ctx, fileCID, store)
	require.NoError(t, err)
	assert.True(t, content.Equals(file.ContentCID()))

	_, err = LoadFile(ctx, c, store)
	assert.True(t, errors.Is(err, status.ErrInvalidOperation))
	_, err = LoadDirectory(ctx, fileCID, store)
	assert.True(t, errors.Is(err, status.ErrInvalidOperation))
}
