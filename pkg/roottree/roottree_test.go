package roottree

import (
	"context"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/oneconcern/nest/pkg/blockstore"
	"github.com/oneconcern/nest/pkg/core/status"
	"github.com/oneconcern/nest/pkg/dagpb"
	"github.com/oneconcern/nest/pkg/errors"
	"github.com/oneconcern/nest/pkg/fspath"
	"github.com/oneconcern/nest/pkg/unixfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	testclock "k8s.io/utils/clock/testing"
)

func testOptions() []Option {
	return []Option{
		WithLogger(zap.NewNop()),
		WithClock(testclock.NewFakePassiveClock(time.Unix(1700000000, 0))),
	}
}

func TestCreateStoreLoad(t *testing.T) {
	ctx := context.Background()
	store := blockstore.NewAdapter(blockstore.NewMemory())

	tree, err := Create(store, testOptions()...)
	require.NoError(t, err)

	content, err := unixfs.ImportFile(ctx, store, []byte("mirror me"))
	require.NoError(t, err)
	dir, err := tree.PublicRoot().Write(ctx, []string{"docs", "a.txt"}, content, time.Unix(1700000000, 0), store)
	require.NoError(t, err)

	updated, err := tree.ReplacePublicRoot(ctx, dir, []Change{
		{Path: fspath.MustFile("public", "docs", "a.txt"), Type: AddedOrUpdated},
	})
	require.NoError(t, err)
	assert.NotSame(t, tree.PublicRoot(), updated.PublicRoot())

	// the mirror holds the content CID of the file
	mirrored, err := unixfs.Resolve(ctx, store, updated.Unix(), []string{"docs", "a.txt"})
	require.NoError(t, err)
	assert.True(t, content.Equals(mirrored))

	root, err := updated.Store(ctx)
	require.NoError(t, err)
	again, err := updated.Store(ctx)
	require.NoError(t, err)
	assert.True(t, root.Equals(again))

	links, err := LinksFromCID(ctx, store, root)
	require.NoError(t, err)
	assert.Len(t, links, 5)
	for _, branch := range []fspath.RootBranch{
		fspath.BranchExchange, fspath.BranchPrivate, fspath.BranchPublic, fspath.BranchUnix, fspath.BranchVersion,
	} {
		assert.Contains(t, links, string(branch))
	}

	loaded, err := FromCID(ctx, store, root, testOptions()...)
	require.NoError(t, err)
	got, err := loaded.PublicRoot().Read(ctx, []string{"docs", "a.txt"}, store)
	require.NoError(t, err)
	assert.True(t, content.Equals(got))
	assert.Equal(t, "1.0.0", loaded.Version())

	reloadedRoot, err := loaded.Store(ctx)
	require.NoError(t, err)
	assert.True(t, root.Equals(reloadedRoot))

	// removals are mirrored
	removedDir, err := loaded.PublicRoot().Rm(ctx, []string{"docs", "a.txt"}, store)
	require.NoError(t, err)
	removed, err := loaded.ReplacePublicRoot(ctx, removedDir, []Change{
		{Path: fspath.MustFile("public", "docs", "a.txt"), Type: Removed},
	})
	require.NoError(t, err)
	_, err = unixfs.Resolve(ctx, store, removed.Unix(), []string{"docs", "a.txt"})
	assert.True(t, errors.Is(err, status.ErrNotFound))
}

func storeRoot(t testing.TB, store blockstore.Store, links ...dagpb.Link) cid.Cid {
	c, err := store.PutBlock(context.Background(), dagpb.Encode(&dagpb.Node{Data: rootData, Links: links}), blockstore.DagProtobuf)
	require.NoError(t, err)
	return c
}

func TestMissingLinks(t *testing.T) {
	ctx := context.Background()
	store := blockstore.NewAdapter(blockstore.NewMemory())

	v, err := store.PutBlock(ctx, []byte("1.0.0"), blockstore.Raw)
	require.NoError(t, err)
	root := storeRoot(t, store, dagpb.Link{Name: string(fspath.BranchVersion), Hash: v})

	core, logs := observer.New(zap.WarnLevel)
	tree, err := FromCID(ctx, store, root, append(testOptions(), WithLogger(zap.New(core)))...)
	require.NoError(t, err)

	assert.Equal(t, 4, logs.FilterMessage("missing link in the root tree, creating a new one").Len())
	assert.Empty(t, tree.PublicRoot().Names())
	assert.NotNil(t, tree.PrivateForest())
	assert.Empty(t, tree.Unix().Links)

	_, err = tree.Store(ctx)
	require.NoError(t, err)
}

func TestVersionMismatch(t *testing.T) {
	ctx := context.Background()
	store := blockstore.NewAdapter(blockstore.NewMemory())

	for _, toPin := range []string{"not-a-version", "2.0.0", "0.1.0"} {
		raw := toPin
		t.Run(raw, func(t *testing.T) {
			v, err := store.PutBlock(ctx, []byte(raw), blockstore.Raw)
			require.NoError(t, err)
			root := storeRoot(t, store, dagpb.Link{Name: string(fspath.BranchVersion), Hash: v})

			_, err = FromCID(ctx, store, root, testOptions()...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, status.ErrVersionMismatch))
		})
	}
}

func TestClone(t *testing.T) {
	store := blockstore.NewAdapter(blockstore.NewMemory())
	tree, err := Create(store, testOptions()...)
	require.NoError(t, err)

	clone := tree.Clone()
	assert.NotSame(t, tree, clone)
	assert.Same(t, tree.PublicRoot(), clone.PublicRoot())
	assert.Same(t, tree.PrivateForest(), clone.PrivateForest())

	other, err := Create(store, testOptions()...)
	require.NoError(t, err)
	replaced := tree.ReplacePrivateForest(other.PrivateForest(), nil)
	assert.Same(t, other.PrivateForest(), replaced.PrivateForest())
	assert.Same(t, tree.PublicRoot(), replaced.PublicRoot())
	assert.NotSame(t, other.PrivateForest(), tree.PrivateForest())
}
