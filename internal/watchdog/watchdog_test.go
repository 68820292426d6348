package watchdog

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) invalidate(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestRemovalTriggersInvalidate(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}

	w, err := New(dir, rec.invalidate)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	path := filepath.Join(dir, "a.sock")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))
	require.NoError(t, os.Remove(path))

	ok := waitFor(t, func() bool {
		for _, p := range rec.snapshot() {
			if p == path {
				return true
			}
		}
		return false
	})
	assert.True(t, ok, "expected invalidate callback for %s", path)
}

func TestRemovalDispatchesRegardlessOfName(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}

	w, err := New(dir, rec.invalidate)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	// Tracked paths carry no mandated naming scheme, so dispatch must not
	// key on the file name; the callback filters against its own table.
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))
	require.NoError(t, os.Remove(path))

	ok := waitFor(t, func() bool {
		for _, p := range rec.snapshot() {
			if p == path {
				return true
			}
		}
		return false
	})
	assert.True(t, ok, "expected invalidate callback for %s", path)
}

func TestStartCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub", "sockets")
	rec := &recorder{}

	w, err := New(dir, rec.invalidate)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	_, err = os.Stat(dir)
	assert.NoError(t, err)
}

func TestStopIsIdempotent(t *testing.T) {
	w, err := New(t.TempDir(), func(string) {})
	require.NoError(t, err)
	require.NoError(t, w.Start())

	w.Stop()
	w.Stop()
}
