package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/oneconcern/nest/pkg/core/status"
	"github.com/oneconcern/nest/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCLI(t *testing.T) {
	saved := appFs
	appFs = afero.NewMemMapFs()
	color.NoColor = true

	viper.Set("store.kind", storeLocalFS)
	viper.Set("store.path", "/nest/blocks")
	viper.Set("store.mirror", "")
	viper.Set("state", "/nest/state.yaml")
	viper.Set("log-level", "none")

	t.Cleanup(func() {
		appFs = saved
		viper.Reset()
	})
}

func runNest(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	nestFlags = flagsT{}

	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func mustRunNest(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	out, err := runNest(t, stdin, args...)
	require.NoError(t, err, "nest %s", strings.Join(args, " "))
	return out
}

func TestCLIReadWrite(t *testing.T) {
	setupCLI(t)

	dataRoot := strings.TrimSpace(mustRunNest(t, "", "init"))
	require.NotEmpty(t, dataRoot)
	assert.Equal(t, dataRoot+"\n", mustRunNest(t, "", "root"))

	_, err := runNest(t, "", "init")
	require.Error(t, err)
	assert.NotEqual(t, dataRoot+"\n", mustRunNest(t, "", "init", "--force"))

	out := mustRunNest(t, "hello nest", "write", "public/docs/hello.txt")
	assert.Contains(t, out, "public/docs/hello.txt")
	assert.Contains(t, out, "content ")
	out = mustRunNest(t, "s3cret", "write", "private/secret.txt")
	assert.Contains(t, out, "capsule key ")

	// every command starts over from the state file
	assert.Equal(t, "hello nest", mustRunNest(t, "", "read", "public/docs/hello.txt"))
	assert.Equal(t, "s3cret", mustRunNest(t, "", "read", "private/secret.txt"))
	assert.Equal(t, "nest", mustRunNest(t, "", "read", "--offset", "6", "public/docs/hello.txt"))
	assert.Equal(t, "s3", mustRunNest(t, "", "read", "--length", "2", "private/secret.txt"))

	_, err = runNest(t, "", "read", "--offset", "lots", "public/docs/hello.txt")
	require.Error(t, err)

	mustRunNest(t, "", "mkdir", "public/docs/sub")
	out = mustRunNest(t, "", "ls", "public/docs")
	assert.Contains(t, out, "hello.txt")
	assert.Contains(t, out, "10B")
	assert.Contains(t, out, "sub/")

	out = mustRunNest(t, "", "mkdir", "--create", "public/docs/sub")
	assert.Contains(t, out, "public/docs/sub (1)/")

	out = mustRunNest(t, "again", "write", "--create", "public/docs/hello.txt")
	assert.Contains(t, out, "public/docs/hello (1).txt")

	recorded := mustRunNest(t, "", "root")
	assert.Equal(t, recorded, mustRunNest(t, "", "root", "--verify"))
}

func TestCLICopyMoveRemove(t *testing.T) {
	setupCLI(t)
	mustRunNest(t, "", "init")
	mustRunNest(t, "content", "write", "public/docs/a.txt")

	mustRunNest(t, "", "cp", "public/docs/a.txt", "private/archive/")
	assert.Equal(t, "content", mustRunNest(t, "", "read", "private/archive/a.txt"))

	mustRunNest(t, "", "mv", "public/docs/a.txt", "public/moved.txt")
	_, err := runNest(t, "", "read", "public/docs/a.txt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrNotFound))

	out := mustRunNest(t, "", "rename", "public/moved.txt", "final.txt")
	assert.Contains(t, out, "public/final.txt")
	assert.Equal(t, "content", mustRunNest(t, "", "read", "public/final.txt"))

	mustRunNest(t, "", "rm", "private/archive/")
	_, err = runNest(t, "", "read", "private/archive/a.txt")
	require.Error(t, err)

	_, err = runNest(t, "", "rm", "private/archive/")
	require.Error(t, err)
}

func TestCLIMounts(t *testing.T) {
	setupCLI(t)
	mustRunNest(t, "", "init")

	key := strings.TrimSpace(mustRunNest(t, "", "mount", "/vault/"))
	require.NotEmpty(t, key)

	mustRunNest(t, "in the vault", "write", "private/vault/x.txt")
	assert.Equal(t, "in the vault", mustRunNest(t, "", "read", "private/vault/x.txt"))

	mustRunNest(t, "", "unmount", "/vault/")
	_, err := runNest(t, "", "read", "private/vault/x.txt")
	require.Error(t, err)
	_, err = runNest(t, "", "unmount", "/vault/")
	require.Error(t, err)

	// the key returned by the first mount reaches the latest revision
	mustRunNest(t, "", "mount", "--capsule-key", key, "/vault/")
	assert.Equal(t, "in the vault", mustRunNest(t, "", "read", "private/vault/x.txt"))

	_, err = runNest(t, "", "mount", "--capsule-key", "not base64!", "/other/")
	require.Error(t, err)
}

func TestCLIVersion(t *testing.T) {
	setupCLI(t)
	out := mustRunNest(t, "", "version")
	assert.Contains(t, out, "Version: dev")
	assert.Contains(t, out, "File system format: 1.0.0")
}

func TestConfig(t *testing.T) {
	setupCLI(t)

	c, err := newConfig()
	require.NoError(t, err)
	assert.Equal(t, storeLocalFS, c.Store.Kind)
	assert.Equal(t, "/nest/state.yaml", c.State)

	viper.Set("store.kind", "s3")
	_, err = newConfig()
	require.Error(t, err)
}

func TestMirroredStore(t *testing.T) {
	setupCLI(t)
	viper.Set("store.mirror", "/nest/mirror")

	mustRunNest(t, "", "init")
	mustRunNest(t, "mirrored", "write", "public/a.txt")

	// a block store made of the mirror alone holds the whole file system
	viper.Set("store.path", "/nest/mirror")
	viper.Set("store.mirror", "")
	assert.Equal(t, "mirrored", mustRunNest(t, "", "read", "public/a.txt"))
}
