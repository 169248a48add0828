package pebblestore

import (
	"bytes"
	"context"
	"testing"

	"github.com/oneconcern/nest/pkg/errors"
	"github.com/oneconcern/nest/pkg/storage"
	"github.com/oneconcern/nest/pkg/storage/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPebbleStore(t *testing.T) {
	fixtures := []struct {
		name string
		path func(testing.TB) string
		opts []Option
	}{
		{
			name: "in memory",
			path: func(testing.TB) string { return "" },
			opts: []Option{WithInMemory(true)},
		},
		{
			name: "on disk",
			path: func(tb testing.TB) string { return tb.TempDir() },
			opts: []Option{WithSync(true)},
		},
	}

	for _, toPin := range fixtures {
		fixture := toPin
		t.Run(fixture.name, func(t *testing.T) {
			ctx := context.Background()
			bs, closer, err := New(fixture.path(t), fixture.opts...)
			require.NoError(t, err)
			defer func() {
				require.NoError(t, closer.Close())
			}()

			has, err := bs.Has(ctx, "block")
			require.NoError(t, err)
			assert.False(t, has)

			_, err = bs.Get(ctx, "block")
			assert.True(t, errors.Is(err, status.ErrNotExists))

			require.NoError(t, bs.Put(ctx, "block", bytes.NewBufferString("sixteen tons"), storage.NoOverWrite))
			err = bs.Put(ctx, "block", bytes.NewBufferString("sixteen tons"), storage.NoOverWrite)
			assert.True(t, errors.Is(err, status.ErrExists))

			content, err := storage.ReadAll(ctx, bs, "block")
			require.NoError(t, err)
			assert.Equal(t, "sixteen tons", string(content))

			require.NoError(t, bs.Put(ctx, "other", bytes.NewBufferString("x"), storage.OverWrite))
			keys, err := bs.Keys(ctx)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"block", "other"}, keys)

			require.NoError(t, bs.Delete(ctx, "other"))
			has, err = bs.Has(ctx, "other")
			require.NoError(t, err)
			assert.False(t, has)

			require.NoError(t, bs.Clear(ctx))
			keys, err = bs.Keys(ctx)
			require.NoError(t, err)
			assert.Empty(t, keys)
		})
	}
}
