package sockreg

import (
	"runtime"
	"sync/atomic"
)

// Handle is the caller-facing capability representing one reference to a
// shared socket resource. Path, IsActive and RefCount are live reads of the
// shared entry, not snapshots. A handle releases its reference exactly
// once: explicitly via Release, or through a runtime finalizer when the
// handle becomes unreachable.
type Handle struct {
	reg      *Registry
	ent      *entry
	released atomic.Bool
}

// newHandle is called with the registry lock held, after the refcount has
// been incremented on the caller's behalf.
func newHandle(r *Registry, e *entry) *Handle {
	h := &Handle{reg: r, ent: e}
	runtime.SetFinalizer(h, func(h *Handle) { h.Release() })
	return h
}

// Path returns the socket path this handle is bound to. The path never
// changes, even after forced cleanup.
func (h *Handle) Path() string {
	return h.ent.path
}

// IsActive reports whether the underlying socket resource still exists.
// False after the last release, a forced cleanup, or a global cleanup.
func (h *Handle) IsActive() bool {
	h.reg.mu.Lock()
	defer h.reg.mu.Unlock()
	return h.ent.state == stateReady && h.ent.active
}

// RefCount returns the entry's current reference count. After the entry has
// been evicted the value freezes at its last state.
func (h *Handle) RefCount() int {
	h.reg.mu.Lock()
	defer h.reg.mu.Unlock()
	return h.ent.refcount
}

// Release gives up this handle's reference. Safe to call any number of
// times from any goroutine; only the first call decrements.
func (h *Handle) Release() {
	if !h.released.CompareAndSwap(false, true) {
		return
	}
	runtime.SetFinalizer(h, nil)
	h.reg.release(h.ent)
}
