// Package sockio materializes and removes the OS-level Unix domain socket
// resources managed by the registry. It owns the listeners backing each
// socket file; the wire protocol spoken over them belongs to the core
// process and is out of scope here.
package sockio

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/valkey-io/valkey-glide-sub007/internal/config"
	"github.com/valkey-io/valkey-glide-sub007/internal/logger"
)

// UnixProvider materializes socket resources as Unix domain listeners. The
// registry serializes Create/Destroy calls per path.
type UnixProvider struct {
	mu        sync.Mutex
	listeners map[string]*net.UnixListener

	dir  string
	mode os.FileMode
	log  *logger.Logger
}

// NewUnixProvider creates a provider placing generated sockets under the
// configured socket directory.
func NewUnixProvider(cfg *config.Config) *UnixProvider {
	return &UnixProvider{
		listeners: make(map[string]*net.UnixListener),
		dir:       cfg.SocketDir,
		mode:      cfg.FileMode(),
		log:       logger.Global().WithPrefix("sockio"),
	}
}

// NewPath generates a fresh socket path under the provider's directory.
// PID plus a random token keeps paths unique across restarts of the same
// process; the token is kept short because Unix socket paths are limited
// to roughly a hundred bytes.
func (p *UnixProvider) NewPath() string {
	return filepath.Join(p.dir, fmt.Sprintf("glide-%d-%s.sock", os.Getpid(), uuid.New().String()[:8]))
}

// Create binds a Unix domain listener at path, creating the backing file.
// A pre-existing file at path is treated as a leftover from an unclean
// shutdown and removed first.
func (p *UnixProvider) Create(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve socket path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale socket file: %w", err)
	}

	addr, err := net.ResolveUnixAddr("unix", absPath)
	if err != nil {
		return fmt.Errorf("invalid socket address %s: %w", absPath, err)
	}

	listener, err := net.ListenUnix("unix", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", absPath, err)
	}

	if err := os.Chmod(absPath, p.mode); err != nil {
		p.log.Warn("Failed to set socket permissions on %s: %v", absPath, err)
	}

	p.mu.Lock()
	p.listeners[path] = listener
	p.mu.Unlock()

	p.log.Info("Socket created: %s [%s]", absPath, PathToken(path))
	return nil
}

// Destroy closes the listener for path, if any, and removes the backing
// file. Removal of an already-missing file is not an error.
func (p *UnixProvider) Destroy(path string) error {
	p.mu.Lock()
	listener, ok := p.listeners[path]
	delete(p.listeners, path)
	p.mu.Unlock()

	if ok {
		// Closing a Go unix listener unlinks the file as well; the
		// explicit remove below covers externally created leftovers.
		if err := listener.Close(); err != nil {
			p.log.Warn("Error closing listener for %s: %v", path, err)
		}
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove socket file %s: %w", path, err)
	}

	p.log.Info("Socket destroyed: %s [%s]", path, PathToken(path))
	return nil
}

// PathToken returns a short stable digest of a socket path, used to
// correlate log lines and CLI output without repeating long paths.
func PathToken(path string) string {
	return fmt.Sprintf("%08x", uint32(xxhash.Sum64String(path)))
}
