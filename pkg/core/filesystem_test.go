package core

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/oneconcern/nest/internal/rand"
	"github.com/oneconcern/nest/pkg/blockstore"
	"github.com/oneconcern/nest/pkg/core/status"
	"github.com/oneconcern/nest/pkg/errors"
	"github.com/oneconcern/nest/pkg/fspath"
	"github.com/oneconcern/nest/pkg/metrics"
	"github.com/oneconcern/nest/pkg/unixfs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	testclock "k8s.io/utils/clock/testing"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testFS struct {
	*FileSystem
	store blockstore.Store
	clock *testclock.FakeClock
}

func newTestFS(t testing.TB, opts ...Option) testFS {
	clk := testclock.NewFakeClock(time.Unix(1700000000, 0))
	store := blockstore.NewAdapter(blockstore.NewMemory())

	fs, err := Create(store, append([]Option{WithLogger(zap.NewNop()), WithClock(clk)}, opts...)...)
	require.NoError(t, err)

	_, err = fs.MountPrivateNode(context.Background(), MountRequest{Path: fspath.Root()})
	require.NoError(t, err)

	return testFS{FileSystem: fs, store: store, clock: clk}
}

func partitions() []fspath.Partition {
	return []fspath.Partition{fspath.Public, fspath.Private}
}

func TestReadWrite(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)

	for _, toPin := range partitions() {
		partition := toPin
		t.Run(string(partition), func(t *testing.T) {
			for _, data := range [][]byte{
				[]byte("hello nest"),
				{},
				rand.Bytes(600 * 1024),
			} {
				p := fspath.MustFile(string(partition), "docs", "file.bin")
				_, err := fs.Write(ctx, p, data)
				require.NoError(t, err)

				read, err := fs.Read(ctx, ByPath(p))
				require.NoError(t, err)
				assert.Equal(t, len(data), len(read))
				assert.True(t, bytes.Equal(data, read))

				size, err := fs.Size(ctx, p)
				require.NoError(t, err)
				assert.Equal(t, uint64(len(data)), size)
			}

			s := fspath.MustFile(string(partition), "notes", rand.LetterString(16)+".txt")
			content := rand.LetterString(64)
			_, err := fs.WriteUTF8(ctx, s, content)
			require.NoError(t, err)
			text, err := fs.ReadUTF8(ctx, ByPath(s))
			require.NoError(t, err)
			assert.Equal(t, content, text)

			j := fspath.MustFile(string(partition), "settings.json")
			_, err = fs.WriteJSON(ctx, j, map[string]int{"answer": 42})
			require.NoError(t, err)
			var decoded map[string]int
			require.NoError(t, fs.ReadJSON(ctx, ByPath(j), &decoded))
			assert.Equal(t, 42, decoded["answer"])
		})
	}
}

func TestPersistence(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)

	_, err := fs.Write(ctx, fspath.MustFile("public", "a", "public.txt"), []byte("public content"))
	require.NoError(t, err)
	_, err = fs.Write(ctx, fspath.MustFile("private", "b", "private.txt"), []byte("private content"))
	require.NoError(t, err)

	key, ok, err := fs.CapsuleKey(ctx, fspath.MustDirectory("private"))
	require.NoError(t, err)
	require.True(t, ok)

	dataRoot, err := fs.CalculateDataRoot(ctx)
	require.NoError(t, err)

	loaded, err := FromCID(ctx, fs.store, dataRoot, WithLogger(zap.NewNop()), WithClock(fs.clock))
	require.NoError(t, err)

	// private data needs a mount first
	_, err = loaded.Read(ctx, ByPath(fspath.MustFile("private", "b", "private.txt")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrNoAccess))

	mounted, err := loaded.MountPrivateNode(ctx, MountRequest{Path: fspath.Root(), CapsuleKey: key})
	require.NoError(t, err)
	assert.Equal(t, key, mounted.CapsuleKey)

	for _, p := range []fspath.Path{
		fspath.MustFile("public", "a", "public.txt"),
		fspath.MustFile("private", "b", "private.txt"),
	} {
		expected, err := fs.Read(ctx, ByPath(p))
		require.NoError(t, err)
		actual, err := loaded.Read(ctx, ByPath(p))
		require.NoError(t, err)
		assert.Equal(t, expected, actual)
	}

	again, err := loaded.CalculateDataRoot(ctx)
	require.NoError(t, err)
	assert.True(t, dataRoot.Equals(again))
}

func TestRemountFromOlderCapsuleKey(t *testing.T) {
	ctx := context.Background()
	clk := testclock.NewFakeClock(time.Unix(1700000000, 0))
	store := blockstore.NewAdapter(blockstore.NewMemory())

	fs, err := Create(store, WithLogger(zap.NewNop()), WithClock(clk))
	require.NoError(t, err)

	// a capsule key returned by the initial mount reaches later revisions
	mounted, err := fs.MountPrivateNode(ctx, MountRequest{Path: fspath.MustDirectory("vault")})
	require.NoError(t, err)

	p := fspath.MustFile("private", "vault", "secret.txt")
	result, err := fs.WriteUTF8(ctx, p, "v1")
	require.NoError(t, err)
	_, err = fs.WriteUTF8(ctx, p, "v2")
	require.NoError(t, err)
	dataRoot, err := fs.CalculateDataRoot(ctx)
	require.NoError(t, err)

	loaded, err := FromCID(ctx, store, dataRoot, WithLogger(zap.NewNop()), WithClock(clk))
	require.NoError(t, err)
	_, err = loaded.MountPrivateNode(ctx, MountRequest{Path: fspath.MustDirectory("vault"), CapsuleKey: mounted.CapsuleKey})
	require.NoError(t, err)

	text, err := loaded.ReadUTF8(ctx, ByPath(p))
	require.NoError(t, err)
	assert.Equal(t, "v2", text)

	// so does the capsule key of the first revision of the file
	text, err = loaded.ReadUTF8(ctx, ByCapsuleKey(result.CapsuleKey))
	require.NoError(t, err)
	assert.Equal(t, "v2", text)

	// a mount must match the kind of the node
	_, err = loaded.MountPrivateNode(ctx, MountRequest{Path: fspath.MustFile("vault"), CapsuleKey: mounted.CapsuleKey})
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrInvalidArgument))
}

func TestCreateFileAutoRename(t *testing.T) {
	ctx := context.Background()

	for _, toPin := range partitions() {
		partition := string(toPin)
		t.Run(partition, func(t *testing.T) {
			fs := newTestFS(t)

			for _, fixture := range []struct {
				base     string
				expected []string
				again    string
				next     string
			}{
				{base: "File", expected: []string{"File", "File (1)", "File (2)"}, again: "File (1)", next: "File (3)"},
				{base: "File.7z", expected: []string{"File.7z", "File (1).7z", "File (2).7z"}, again: "File (1).7z", next: "File (3).7z"},
			} {
				for _, name := range fixture.expected {
					result, err := fs.CreateFile(ctx, fspath.MustFile(partition, fixture.base), []byte(name))
					require.NoError(t, err)
					assert.Equal(t, fspath.ToPosix(fspath.MustFile(partition, name), false), fspath.ToPosix(result.Path, false))
				}

				result, err := fs.CreateFile(ctx, fspath.MustFile(partition, fixture.again), []byte("again"))
				require.NoError(t, err)
				assert.Equal(t, fspath.ToPosix(fspath.MustFile(partition, fixture.next), false), fspath.ToPosix(result.Path, false))
			}

			// never overwrites
			text, err := fs.ReadUTF8(ctx, ByPath(fspath.MustFile(partition, "File (1)")))
			require.NoError(t, err)
			assert.Equal(t, "File (1)", text)
		})
	}
}

func TestCreateDirectoryAutoRename(t *testing.T) {
	ctx := context.Background()

	for _, toPin := range partitions() {
		partition := string(toPin)
		t.Run(partition, func(t *testing.T) {
			fs := newTestFS(t)

			for _, name := range []string{"Directory", "Directory (1)", "Directory (2)"} {
				result, err := fs.CreateDirectory(ctx, fspath.MustDirectory(partition, "Directory"))
				require.NoError(t, err)
				assert.Equal(t, fspath.ToPosix(fspath.MustDirectory(partition, name), false), fspath.ToPosix(result.Path, false))
			}

			result, err := fs.CreateDirectory(ctx, fspath.MustDirectory(partition, "Directory (1)"))
			require.NoError(t, err)
			assert.Equal(t, fspath.ToPosix(fspath.MustDirectory(partition, "Directory (3)"), false), fspath.ToPosix(result.Path, false))

			items, err := fs.ListDirectory(ctx, fspath.MustDirectory(partition))
			require.NoError(t, err)
			assert.Len(t, items, 4)
		})
	}
}

func TestPartialReads(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)

	publicPath := fspath.MustFile("public", "bytes.bin")
	publicResult, err := fs.Write(ctx, publicPath, []byte{16, 24, 32})
	require.NoError(t, err)

	privatePath := fspath.MustFile("private", "bytes.bin")
	privateResult, err := fs.Write(ctx, privatePath, []byte{16, 24, 32})
	require.NoError(t, err)

	refs := map[string]Reference{
		"public path":  ByPath(publicPath),
		"content CID":  ByContentCID(publicResult.ContentCID),
		"capsule CID":  ByCapsuleCID(publicResult.CapsuleCID),
		"private path": ByPath(privatePath),
		"capsule key":  ByCapsuleKey(privateResult.CapsuleKey),
	}
	for name, toPin := range refs {
		ref := toPin
		t.Run(name, func(t *testing.T) {
			whole, err := fs.Read(ctx, ref)
			require.NoError(t, err)
			assert.Equal(t, []byte{16, 24, 32}, whole)

			tail, err := fs.Read(ctx, ref, WithOffset(1))
			require.NoError(t, err)
			assert.Equal(t, []byte{24, 32}, tail)

			middle, err := fs.Read(ctx, ref, WithOffset(1), WithLength(1))
			require.NoError(t, err)
			assert.Equal(t, []byte{24}, middle)

			past, err := fs.Read(ctx, ref, WithOffset(10))
			require.NoError(t, err)
			assert.Empty(t, past)
		})
	}

	publicText, err := fs.WriteUTF8(ctx, fspath.MustFile("public", "abc.txt"), "abc")
	require.NoError(t, err)
	privateText, err := fs.WriteUTF8(ctx, fspath.MustFile("private", "abc.txt"), "abc")
	require.NoError(t, err)

	for _, ref := range []Reference{
		ByPath(fspath.MustFile("public", "abc.txt")),
		ByContentCID(publicText.ContentCID),
		ByCapsuleCID(publicText.CapsuleCID),
		ByPath(fspath.MustFile("private", "abc.txt")),
		ByCapsuleKey(privateText.CapsuleKey),
	} {
		text, err := fs.ReadUTF8(ctx, ref, WithOffset(1), WithLength(1))
		require.NoError(t, err)
		assert.Equal(t, "b", text)
	}

	_, err = fs.Read(ctx, Reference{})
	assert.True(t, errors.Is(err, status.ErrInvalidArgument))
}

func TestEnsureDirectory(t *testing.T) {
	ctx := context.Background()

	for _, toPin := range partitions() {
		partition := string(toPin)
		t.Run(partition, func(t *testing.T) {
			fs := newTestFS(t)
			p := fspath.MustDirectory(partition, "a", "b")

			_, err := fs.EnsureDirectory(ctx, p)
			require.NoError(t, err)
			_, err = fs.Write(ctx, fspath.MustFile(partition, "a", "b", "keep.txt"), []byte("keep"))
			require.NoError(t, err)
			_, err = fs.EnsureDirectory(ctx, p)
			require.NoError(t, err)

			items, err := fs.ListDirectory(ctx, fspath.MustDirectory(partition, "a"))
			require.NoError(t, err)
			require.Len(t, items, 1)
			assert.Equal(t, "b", items[0].Name)

			kept, err := fs.ListDirectory(ctx, p)
			require.NoError(t, err)
			require.Len(t, kept, 1)
			assert.Equal(t, "keep.txt", kept[0].Name)
		})
	}
}

func TestMove(t *testing.T) {
	ctx := context.Background()

	for _, toPin := range []struct {
		from fspath.Partition
		to   fspath.Partition
	}{
		{from: fspath.Public, to: fspath.Public},
		{from: fspath.Public, to: fspath.Private},
		{from: fspath.Private, to: fspath.Public},
		{from: fspath.Private, to: fspath.Private},
	} {
		fixture := toPin
		t.Run(string(fixture.from)+" to "+string(fixture.to), func(t *testing.T) {
			fs := newTestFS(t)
			from := fspath.MustFile(string(fixture.from), "src", "file.txt")
			to := fspath.MustFile(string(fixture.to), "dst", "moved.txt")

			_, err := fs.WriteUTF8(ctx, from, "moving")
			require.NoError(t, err)

			result, err := fs.Move(ctx, from, to)
			require.NoError(t, err)
			assert.True(t, result.DataRoot.Defined())

			exists, err := fs.Exists(ctx, from)
			require.NoError(t, err)
			assert.False(t, exists)

			exists, err = fs.Exists(ctx, to)
			require.NoError(t, err)
			assert.True(t, exists)

			text, err := fs.ReadUTF8(ctx, ByPath(to))
			require.NoError(t, err)
			assert.Equal(t, "moving", text)

			// into a directory keeps the name
			_, err = fs.Move(ctx, to, fspath.MustDirectory(string(fixture.from), "back"))
			require.NoError(t, err)
			exists, err = fs.Exists(ctx, fspath.MustFile(string(fixture.from), "back", "moved.txt"))
			require.NoError(t, err)
			assert.True(t, exists)
		})
	}
}

func TestCopyAndMoveDirectories(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)

	for _, p := range []fspath.Path{
		fspath.MustFile("public", "docs", "a.txt"),
		fspath.MustFile("public", "docs", "sub", "b.txt"),
		fspath.MustFile("public", "docs", "sub", "deeper", "c.txt"),
	} {
		_, err := fs.WriteUTF8(ctx, p, fspath.ToPosix(p, false))
		require.NoError(t, err)
	}
	_, err := fs.EnsureDirectory(ctx, fspath.MustDirectory("public", "docs", "empty"))
	require.NoError(t, err)

	_, err = fs.Copy(ctx, fspath.MustDirectory("public", "docs"), fspath.MustDirectory("private", "backup"))
	require.NoError(t, err)

	text, err := fs.ReadUTF8(ctx, ByPath(fspath.MustFile("private", "backup", "sub", "deeper", "c.txt")))
	require.NoError(t, err)
	assert.Equal(t, "public/docs/sub/deeper/c.txt", text)

	items, err := fs.ListDirectoryWithKind(ctx, fspath.MustDirectory("private", "backup"))
	require.NoError(t, err)
	kinds := map[string]fspath.Kind{}
	for _, item := range items {
		kinds[fspath.ToPosix(item.Path, false)] = item.Kind
	}
	assert.Equal(t, map[string]fspath.Kind{
		"private/backup/a.txt":  fspath.KindFile,
		"private/backup/empty/": fspath.KindDirectory,
		"private/backup/sub/":   fspath.KindDirectory,
	}, kinds)

	// copying keeps the source
	exists, err := fs.Exists(ctx, fspath.MustFile("public", "docs", "a.txt"))
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = fs.Move(ctx, fspath.MustDirectory("private", "backup"), fspath.MustDirectory("public", "restored"))
	require.NoError(t, err)

	exists, err = fs.Exists(ctx, fspath.MustDirectory("private", "backup"))
	require.NoError(t, err)
	assert.False(t, exists)

	publicItems, err := fs.ListDirectoryWithKind(ctx, fspath.MustDirectory("public", "restored", "sub"))
	require.NoError(t, err)
	require.Len(t, publicItems, 2)
	assert.Equal(t, "b.txt", publicItems[0].Name)
	assert.Equal(t, fspath.KindFile, publicItems[0].Kind)
	assert.Equal(t, "deeper", publicItems[1].Name)
	assert.Equal(t, fspath.KindDirectory, publicItems[1].Kind)

	// invalid copies
	_, err = fs.Copy(ctx, fspath.MustDirectory("public", "docs"), fspath.MustDirectory("public", "docs", "sub", "nested"))
	assert.True(t, errors.Is(err, status.ErrInvalidArgument))
	_, err = fs.Copy(ctx, fspath.MustDirectory("public", "docs"), fspath.MustFile("public", "file"))
	assert.True(t, errors.Is(err, status.ErrInvalidArgument))
}

func TestRename(t *testing.T) {
	ctx := context.Background()

	for _, toPin := range partitions() {
		partition := string(toPin)
		t.Run(partition, func(t *testing.T) {
			fs := newTestFS(t)
			_, err := fs.WriteUTF8(ctx, fspath.MustFile(partition, "dir", "old.txt"), "renamed")
			require.NoError(t, err)

			result, err := fs.Rename(ctx, fspath.MustFile(partition, "dir", "old.txt"), "new.txt")
			require.NoError(t, err)
			assert.Equal(t, partition+"/dir/new.txt", fspath.ToPosix(result.Path, false))

			names, err := fs.ListDirectory(ctx, fspath.MustDirectory(partition, "dir"))
			require.NoError(t, err)
			require.Len(t, names, 1)
			assert.Equal(t, "new.txt", names[0].Name)

			_, err = fs.Rename(ctx, fspath.MustDirectory(partition, "dir"), "folder")
			require.NoError(t, err)
			text, err := fs.ReadUTF8(ctx, ByPath(fspath.MustFile(partition, "folder", "new.txt")))
			require.NoError(t, err)
			assert.Equal(t, "renamed", text)
		})
	}
}

func TestRemove(t *testing.T) {
	ctx := context.Background()

	for _, toPin := range partitions() {
		partition := string(toPin)
		t.Run(partition, func(t *testing.T) {
			fs := newTestFS(t)
			p := fspath.MustFile(partition, "gone.txt")
			written, err := fs.WriteUTF8(ctx, p, "bye")
			require.NoError(t, err)

			root, err := fs.Remove(ctx, p)
			require.NoError(t, err)
			assert.False(t, root.Equals(written.DataRoot))

			exists, err := fs.Exists(ctx, p)
			require.NoError(t, err)
			assert.False(t, exists)

			_, err = fs.Remove(ctx, p)
			assert.True(t, errors.Is(err, status.ErrNotFound))
		})
	}
}

func TestPublicReferences(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)

	p := fspath.MustFile("public", "docs", "ref.txt")
	result, err := fs.WriteUTF8(ctx, p, "referenced")
	require.NoError(t, err)

	content, ok, err := fs.ContentCID(ctx, p)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, content.Equals(result.ContentCID))

	capsule, ok, err := fs.CapsuleCID(ctx, p)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, capsule.Equals(result.CapsuleCID))
	assert.False(t, capsule.Equals(content))

	_, ok, err = fs.ContentCID(ctx, fspath.MustFile("public", "missing"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = fs.ContentCID(ctx, fspath.MustFile("private", "docs", "ref.txt"))
	assert.True(t, errors.Is(err, status.ErrInvalidPartition))

	// the unix mirror follows public writes
	mirrored, err := unixfs.Resolve(ctx, fs.store, fs.rootTree.Unix(), []string{"docs", "ref.txt"})
	require.NoError(t, err)
	assert.True(t, mirrored.Equals(content))

	dir, err := fs.EnsureDirectory(ctx, fspath.MustDirectory("public", "docs"))
	require.NoError(t, err)
	assert.True(t, dir.ContentCID.Equals(dir.CapsuleCID))
}

func TestCapsuleKey(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)

	_, ok, err := fs.CapsuleKey(ctx, fspath.MustFile("private", "missing.txt"))
	require.NoError(t, err)
	assert.False(t, ok)

	result, err := fs.WriteUTF8(ctx, fspath.MustFile("private", "docs", "key.txt"), "keyed")
	require.NoError(t, err)

	key, ok, err := fs.CapsuleKey(ctx, fspath.MustFile("private", "docs", "key.txt"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, result.CapsuleKey, key)

	fs.UnmountPrivateNode(fspath.Root())
	_, ok, err = fs.CapsuleKey(ctx, fspath.MustFile("private", "docs", "key.txt"))
	require.NoError(t, err)
	assert.False(t, ok)

	// still readable by key
	text, err := fs.ReadUTF8(ctx, ByCapsuleKey(key))
	require.NoError(t, err)
	assert.Equal(t, "keyed", text)
}

func TestErrors(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)

	_, err := fs.MountPrivateNode(ctx, MountRequest{Path: fspath.MustFile("mounted.txt")})
	require.NoError(t, err)
	_, err = fs.MountPrivateNode(ctx, MountRequest{Path: fspath.MustDirectory("mounted")})
	require.NoError(t, err)
	_, err = fs.EnsureDirectory(ctx, fspath.MustDirectory("public", "dir"))
	require.NoError(t, err)

	for _, toPin := range []struct {
		name     string
		fn       func() error
		expected error
	}{
		{
			name: "unknown partition",
			fn: func() error {
				_, err := fs.Write(ctx, fspath.MustFile("shared", "a.txt"), nil)
				return err
			},
			expected: status.ErrInvalidPartition,
		},
		{
			name: "partition root",
			fn: func() error {
				_, err := fs.Remove(ctx, fspath.MustDirectory("public"))
				return err
			},
			expected: status.ErrInvalidPath,
		},
		{
			name: "write to a directory path",
			fn: func() error {
				_, err := fs.Write(ctx, fspath.MustDirectory("public", "a"), nil)
				return err
			},
			expected: status.ErrInvalidPath,
		},
		{
			name: "write into a mounted file",
			fn: func() error {
				_, err := fs.Write(ctx, fspath.MustFile("private", "mounted.txt"), []byte("x"))
				return err
			},
			expected: status.ErrInvalidOperation,
		},
		{
			name: "remove a mount",
			fn: func() error {
				_, err := fs.Remove(ctx, fspath.MustDirectory("private", "mounted"))
				return err
			},
			expected: status.ErrInvalidOperation,
		},
		{
			name: "list a file",
			fn: func() error {
				_, err := fs.ListDirectory(ctx, fspath.MustDirectory("private", "mounted.txt"))
				return err
			},
			expected: status.ErrNotFound,
		},
		{
			name: "read a directory",
			fn: func() error {
				_, err := fs.Read(ctx, ByPath(fspath.MustFile("public", "dir")))
				return err
			},
			expected: status.ErrInvalidOperation,
		},
		{
			name: "read a missing file",
			fn: func() error {
				_, err := fs.Read(ctx, ByPath(fspath.MustFile("public", "missing")))
				return err
			},
			expected: status.ErrNotFound,
		},
		{
			name: "negative offset",
			fn: func() error {
				_, err := fs.Read(ctx, ByPath(fspath.MustFile("public", "missing")), WithOffset(-1))
				return err
			},
			expected: status.ErrInvalidArgument,
		},
		{
			name: "invalid capsule key",
			fn: func() error {
				_, err := fs.Read(ctx, ByCapsuleKey([]byte("not a key")))
				return err
			},
			expected: status.ErrInvalidArgument,
		},
	} {
		fixture := toPin
		t.Run(fixture.name, func(t *testing.T) {
			err := fixture.fn()
			require.Error(t, err)
			assert.Truef(t, errors.Is(err, fixture.expected), "unexpected error: %v", err)
		})
	}

	t.Run("no access", func(t *testing.T) {
		fs.UnmountPrivateNode(fspath.Root())
		_, err := fs.Write(ctx, fspath.MustFile("private", "elsewhere.txt"), []byte("x"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, status.ErrNoAccess))

		_, err = fs.Write(ctx, fspath.MustFile("private", "mounted", "inside.txt"), []byte("x"))
		assert.NoError(t, err)
	})
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	m, err := metrics.New(metrics.WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)

	reject := false
	fs := newTestFS(t,
		WithMetrics(m),
		WithCommitVerifier(func(context.Context, []Modification) (bool, error) { return !reject, nil }),
	)

	_, err = fs.WriteUTF8(ctx, fspath.MustFile("public", "a.txt"), "a")
	require.NoError(t, err)
	_, err = fs.WriteUTF8(ctx, fspath.MustFile("private", "a.txt"), "a")
	require.NoError(t, err)
	reject = true
	_, err = fs.WriteUTF8(ctx, fspath.MustFile("private", "b.txt"), "b")
	require.Error(t, err)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.Commits))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CommitsRejected))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Mutations.WithLabelValues("public")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Mutations.WithLabelValues("private")))

	fs.Close()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Publishes))
}

func TestDeterministicDataRoot(t *testing.T) {
	ctx := context.Background()

	build := func(seed int64) cid.Cid {
		fs := newTestFS(t, WithRandom(rand.Deterministic(seed)))
		_, err := fs.WriteUTF8(ctx, fspath.MustFile("public", "a.txt"), "a")
		require.NoError(t, err)
		_, err = fs.WriteUTF8(ctx, fspath.MustFile("private", "b", "c.txt"), "c")
		require.NoError(t, err)
		_, err = fs.Move(ctx, fspath.MustFile("public", "a.txt"), fspath.MustDirectory("private", "b"))
		require.NoError(t, err)

		dataRoot, err := fs.CalculateDataRoot(ctx)
		require.NoError(t, err)
		fs.Close()
		return dataRoot
	}

	// same key material, same clock, same operations
	assert.True(t, build(42).Equals(build(42)))
	assert.False(t, build(42).Equals(build(43)))
}
