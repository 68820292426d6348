package sockreg

import (
	"os"
	"sync"

	"github.com/valkey-io/valkey-glide-sub007/internal/config"
	"github.com/valkey-io/valkey-glide-sub007/internal/logger"
	"github.com/valkey-io/valkey-glide-sub007/internal/sockio"
	"github.com/valkey-io/valkey-glide-sub007/internal/watchdog"
)

// Provider is the collaborator that performs the actual OS-level socket
// work. Create and Destroy may block on I/O; the registry never calls them
// while holding its lock.
type Provider interface {
	// Create materializes the socket and its backing file at path
	Create(path string) error
	// NewPath returns a fresh, collision-free socket path
	NewPath() string
	// Destroy tears down the socket and removes the backing file
	Destroy(path string) error
}

type entryState int

const (
	// stateCreating: first-time creation in flight; settled channel set
	stateCreating entryState = iota
	// stateReady: entry holds live references
	stateReady
	// stateDestroying: last reference released, teardown in flight
	stateDestroying
)

// entry is the per-path bookkeeping record. All fields are guarded by the
// owning registry's mutex; handles hold a shared pointer but read through
// the registry.
type entry struct {
	path     string
	state    entryState
	refcount int
	// active is true while the OS resource exists. Forced cleanup flips it
	// to false ahead of eviction, which is how lingering handles learn the
	// resource is gone.
	active bool
	// settled is closed when an in-flight creation or destruction finishes;
	// concurrent acquirers block on it outside the lock
	settled chan struct{}
}

// Registry is the process-wide table of path -> entry. It owns all refcount
// mutation and orchestrates creation and destruction through the provider.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry

	provider Provider
	watcher  *watchdog.Watchdog
	log      *logger.Logger
	closed   bool
}

// New creates a registry backed by the given provider.
func New(provider Provider) *Registry {
	return &Registry{
		entries:  make(map[string]*entry),
		provider: provider,
		log:      logger.Global().WithPrefix("sockreg"),
	}
}

var (
	defaultRegistry *Registry
	defaultOnce     sync.Once
)

// Default returns the process-wide registry, initializing it on first use
// from the default configuration.
func Default() *Registry {
	defaultOnce.Do(func() {
		cfg := config.DefaultConfig()
		defaultRegistry = New(sockio.NewUnixProvider(cfg))
		if cfg.WatchdogEnabled {
			if err := defaultRegistry.EnableWatchdog(cfg.SocketDir); err != nil {
				logger.Warn("Socket watchdog unavailable: %v", err)
			}
		}
	})
	return defaultRegistry
}

// Acquire returns a handle for path, creating the underlying socket on the
// first reference. Concurrent first-time acquirers of the same path are
// deduplicated so exactly one creation occurs.
func (r *Registry) Acquire(path string) (*Handle, error) {
	return r.acquire(path)
}

// AcquireFresh acquires a handle for a newly generated, collision-free path.
func (r *Registry) AcquireFresh() (*Handle, error) {
	return r.acquire(r.provider.NewPath())
}

func (r *Registry) acquire(path string) (*Handle, error) {
	for {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return nil, ErrRegistryClosed
		}

		e, ok := r.entries[path]
		if !ok {
			return r.createLocked(path)
		}

		switch e.state {
		case stateReady:
			e.refcount++
			h := newHandle(r, e)
			r.mu.Unlock()
			return h, nil

		default:
			// Creation or destruction in flight. Wait for it to settle,
			// then start over: a settled creation is joined normally, a
			// settled destruction (or failed creation) means the entry is
			// gone and must be recreated.
			settled := e.settled
			r.mu.Unlock()
			<-settled
		}
	}
}

// createLocked inserts a creating entry for path, materializes the resource
// outside the lock, and settles the entry. Called with r.mu held; returns
// with it released.
func (r *Registry) createLocked(path string) (*Handle, error) {
	e := &entry{
		path:    path,
		state:   stateCreating,
		settled: make(chan struct{}),
	}
	r.entries[path] = e
	r.mu.Unlock()

	err := r.provider.Create(path)

	r.mu.Lock()
	if err != nil {
		// Full rollback: no residual entry, no refcount, waiters retry
		delete(r.entries, path)
		close(e.settled)
		r.mu.Unlock()
		r.log.Error("Socket creation failed for %s: %v", path, err)
		return nil, &CreationError{Path: path, Err: err}
	}

	if r.closed {
		// Registry shut down mid-creation: do not hand out a handle to a
		// resource nothing will ever tear down.
		delete(r.entries, path)
		close(e.settled)
		r.mu.Unlock()
		if derr := r.provider.Destroy(path); derr != nil {
			r.log.Warn("Socket removal failed for %s after close: %v", path, derr)
		}
		return nil, ErrRegistryClosed
	}

	e.state = stateReady
	e.active = true
	e.refcount = 1
	close(e.settled)
	e.settled = nil
	h := newHandle(r, e)
	r.mu.Unlock()

	r.log.Debug("Socket registered: %s [%s]", path, sockio.PathToken(path))
	return h, nil
}

// Release decrements the reference count of the current entry for path.
// Releasing an untracked path is a no-op. Reaching zero destroys the
// resource and evicts the entry before any waiting acquire proceeds.
func (r *Registry) Release(path string) {
	r.mu.Lock()
	e, ok := r.entries[path]
	r.mu.Unlock()
	if !ok {
		return
	}
	r.release(e)
}

// release decrements against a specific entry. Stale entries (detached by
// forced cleanup, CleanupAll, or an earlier eviction) are ignored, which is
// what makes handle releases unconditionally safe.
func (r *Registry) release(e *entry) {
	r.mu.Lock()
	cur, ok := r.entries[e.path]
	if !ok || cur != e || e.state != stateReady || e.refcount == 0 {
		r.mu.Unlock()
		return
	}

	e.refcount--
	if e.refcount > 0 {
		r.mu.Unlock()
		return
	}

	// Last reference gone: destroy synchronously. The entry stays in the
	// table as destroying so a concurrent acquire waits instead of reviving
	// a half-destroyed resource.
	e.state = stateDestroying
	e.active = false
	e.settled = make(chan struct{})
	r.mu.Unlock()

	if err := r.provider.Destroy(e.path); err != nil {
		// Best effort: bookkeeping still finalizes
		r.log.Warn("Socket removal failed for %s: %v", e.path, err)
	}

	r.mu.Lock()
	delete(r.entries, e.path)
	close(e.settled)
	r.mu.Unlock()

	r.log.Debug("Socket released and destroyed: %s [%s]", e.path, sockio.PathToken(e.path))
}

// IsActive reports whether path currently has a live socket resource.
func (r *Registry) IsActive(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[path]
	return ok && e.state == stateReady && e.active
}

// ActiveCount returns the number of distinct paths with a live resource,
// independent of how many handles reference each.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, e := range r.entries {
		if e.state == stateReady && e.active {
			count++
		}
	}
	return count
}

// ForceCleanup destroys the resource for path regardless of its reference
// count. The entry is detached from the table; lingering handles keep their
// pointer into it and observe IsActive() == false with the reference count
// frozen at its last value, and their eventual releases are no-ops. Unknown
// and settling paths are ignored.
//
// Destruction happens under the registry lock so that a concurrent acquire
// cannot recreate the path while its old resource is being torn down.
func (r *Registry) ForceCleanup(path string) {
	r.mu.Lock()
	e, ok := r.entries[path]
	if !ok || e.state != stateReady {
		r.mu.Unlock()
		return
	}
	outstanding := r.forceCleanupLocked(e)
	r.mu.Unlock()

	r.log.Info("Forced cleanup of socket %s [%s] with %d outstanding reference(s)",
		path, sockio.PathToken(path), outstanding)
}

// forceCleanupLocked detaches a ready entry and destroys its resource.
// Caller holds r.mu; returns the reference count at detach time.
func (r *Registry) forceCleanupLocked(e *entry) int {
	e.active = false
	delete(r.entries, e.path)
	outstanding := e.refcount
	if err := r.provider.Destroy(e.path); err != nil {
		r.log.Warn("Socket removal failed during forced cleanup of %s: %v", e.path, err)
	}
	return outstanding
}

// handleRemoval is the watchdog callback. Watcher events can arrive after
// the resource they describe is gone and the path has been recreated, so
// the entry is invalidated only if the socket file is really missing at
// dispatch time. The stat runs under the lock: a ready entry cannot be
// destroyed or recreated concurrently, so what the stat sees is what the
// entry owns.
func (r *Registry) handleRemoval(path string) {
	r.mu.Lock()
	e, ok := r.entries[path]
	if !ok || e.state != stateReady {
		r.mu.Unlock()
		return
	}
	if stat, err := os.Stat(path); err == nil && stat.Mode()&os.ModeSocket != 0 {
		// Stale event: the current incarnation of the socket is alive
		r.mu.Unlock()
		return
	}
	outstanding := r.forceCleanupLocked(e)
	r.mu.Unlock()

	r.log.Info("Socket file for %s [%s] removed out-of-band; invalidated %d outstanding reference(s)",
		path, sockio.PathToken(path), outstanding)
}

// CleanupAll synchronously force-destroys every tracked entry; used for
// abnormal-termination recovery. Afterwards ActiveCount() is zero and every
// previously tracked path reports inactive. Outstanding handles become
// stale and release as no-ops.
func (r *Registry) CleanupAll() {
	r.mu.Lock()
	destroyed := 0
	for path, e := range r.entries {
		if e.state != stateReady {
			// In-flight creations and destructions settle on their own
			continue
		}
		e.active = false
		delete(r.entries, path)
		if err := r.provider.Destroy(path); err != nil {
			r.log.Warn("Socket removal failed during global cleanup of %s: %v", path, err)
		}
		destroyed++
	}
	r.mu.Unlock()

	if destroyed > 0 {
		r.log.Info("Global cleanup destroyed %d socket(s)", destroyed)
	}
}

// EnableWatchdog starts a filesystem watcher over dir that force-cleans
// any tracked socket whose backing file is removed out-of-band (for
// example, when the peer process dies and unlinks it). Stopped by Close.
func (r *Registry) EnableWatchdog(dir string) error {
	w, err := watchdog.New(dir, r.handleRemoval)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}

	r.mu.Lock()
	r.watcher = w
	r.mu.Unlock()
	return nil
}

// Close cleans up every tracked socket and rejects further acquires.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	w := r.watcher
	r.watcher = nil
	r.mu.Unlock()

	if w != nil {
		w.Stop()
	}
	r.CleanupAll()
}
