// Copyright © 2018 One Concern

package storage_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/oneconcern/nest/pkg/storage"
	"github.com/oneconcern/nest/pkg/storage/localfs"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMirror(t *testing.T) {
	ctx := context.Background()
	primary := localfs.New(afero.NewMemMapFs())
	secondary := localfs.New(afero.NewMemMapFs())
	readOnly := localfs.New(afero.NewReadOnlyFs(afero.NewMemMapFs()))

	m := storage.NewMirror(primary,
		storage.MultiStoreUnit{Store: secondary},
		storage.MultiStoreUnit{Store: readOnly, TolerateFailure: true},
	)
	require.NoError(t, m.Put(ctx, "k", bytes.NewBufferString("v"), storage.OverWrite))

	for _, s := range []storage.Store{primary, secondary} {
		b, err := storage.ReadAll(ctx, s, "k")
		require.NoError(t, err)
		assert.Equal(t, "v", string(b))
	}

	// a key only present on a mirror is still found
	require.NoError(t, secondary.Put(ctx, "only-there", bytes.NewBufferString("w"), storage.OverWrite))
	has, err := m.Has(ctx, "only-there")
	require.NoError(t, err)
	assert.True(t, has)
	b, err := storage.ReadAll(ctx, m, "only-there")
	require.NoError(t, err)
	assert.Equal(t, "w", string(b))
	has, err = primary.Has(ctx, "only-there")
	require.NoError(t, err)
	assert.True(t, has)

	_, err = m.Get(ctx, "missing")
	require.Error(t, err)

	keys, err := m.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"k", "only-there"}, keys)

	require.NoError(t, m.Delete(ctx, "k"))
	has, err = secondary.Has(ctx, "k")
	require.NoError(t, err)
	assert.False(t, has)

	assert.Contains(t, m.String(), "mirror(localfs")
}

func TestMultiPutFailure(t *testing.T) {
	ctx := context.Background()
	readOnly := localfs.New(afero.NewReadOnlyFs(afero.NewMemMapFs()))

	err := storage.MultiPut(ctx, []storage.MultiStoreUnit{{Store: readOnly}}, "k", []byte("v"), storage.OverWrite)
	require.Error(t, err)

	err = storage.MultiPut(ctx, []storage.MultiStoreUnit{{Store: readOnly, TolerateFailure: true}}, "k", []byte("v"), storage.OverWrite)
	require.NoError(t, err)
}

func TestInstrument(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.DebugLevel)
	s := storage.Instrument(zap.New(core), localfs.New(afero.NewMemMapFs()))

	require.NoError(t, s.Put(ctx, "k", bytes.NewBufferString("v"), storage.OverWrite))
	_, err := storage.ReadTee(ctx, s, "k", s, "k2")
	require.NoError(t, err)
	_, err = s.Get(ctx, "missing")
	require.Error(t, err)

	assert.Equal(t, 2, logs.FilterMessage("storage put").Len())
	assert.Equal(t, 1, logs.FilterMessage("storage get failed").Len())
	assert.Equal(t, "localfs", s.String())
}
