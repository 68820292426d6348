package sockio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valkey-io/valkey-glide-sub007/internal/config"
)

func newTestProvider(t *testing.T) *UnixProvider {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.SocketDir = t.TempDir()
	return NewUnixProvider(cfg)
}

func TestCreateAndDestroy(t *testing.T) {
	p := newTestProvider(t)
	path := filepath.Join(p.dir, "test.sock")

	require.NoError(t, p.Create(path))

	stat, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, stat.Mode()&os.ModeSocket, "expected a socket file")

	require.NoError(t, p.Destroy(path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "socket file should be gone")
}

func TestCreateRemovesStaleFile(t *testing.T) {
	p := newTestProvider(t)
	path := filepath.Join(p.dir, "stale.sock")

	// Simulate a leftover from an unclean shutdown
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0600))

	require.NoError(t, p.Create(path))
	stat, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, stat.Mode()&os.ModeSocket)

	require.NoError(t, p.Destroy(path))
}

func TestCreateInvalidPath(t *testing.T) {
	p := newTestProvider(t)

	// A path whose parent cannot be created (under a regular file)
	blocker := filepath.Join(p.dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	err := p.Create(filepath.Join(blocker, "sub", "x.sock"))
	assert.Error(t, err)
}

func TestDestroyMissingFileIsNoop(t *testing.T) {
	p := newTestProvider(t)
	assert.NoError(t, p.Destroy(filepath.Join(p.dir, "never-existed.sock")))
}

func TestNewPathUnique(t *testing.T) {
	p := newTestProvider(t)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		path := p.NewPath()
		assert.True(t, strings.HasPrefix(path, p.dir))
		assert.True(t, strings.HasSuffix(path, ".sock"))
		assert.False(t, seen[path], "duplicate generated path: %s", path)
		seen[path] = true
	}
}

func TestProbe(t *testing.T) {
	p := newTestProvider(t)
	path := filepath.Join(p.dir, "probe.sock")

	assert.False(t, Probe(path, 100*time.Millisecond), "missing file")

	regular := filepath.Join(p.dir, "regular")
	require.NoError(t, os.WriteFile(regular, []byte("x"), 0600))
	assert.False(t, Probe(regular, 100*time.Millisecond), "regular file")

	require.NoError(t, p.Create(path))
	assert.True(t, Probe(path, time.Second), "live listener")

	require.NoError(t, p.Destroy(path))
	assert.False(t, Probe(path, 100*time.Millisecond), "destroyed socket")
}

func TestPathToken(t *testing.T) {
	a := PathToken("/tmp/glide/a.sock")
	b := PathToken("/tmp/glide/b.sock")

	assert.Len(t, a, 8)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, PathToken("/tmp/glide/a.sock"))
}
