// Package sockreg implements the reference-counted socket registry: a
// process-wide table that lets many independent handles share one Unix
// domain socket per path and tears the OS resource down exactly when the
// last handle is gone.
//
// Callers obtain a *Handle via Acquire or AcquireFresh. Handles are released
// explicitly, or by the runtime when a handle becomes unreachable; both
// paths converge on the same idempotent decrement. Administrative operations
// (ForceCleanup, CleanupAll) destroy resources irrespective of outstanding
// references, leaving lingering handles stale but safe.
package sockreg
