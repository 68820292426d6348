package sockreg

import (
	"errors"
	"fmt"
)

// ErrRegistryClosed is returned by Acquire after the registry has been
// closed.
var ErrRegistryClosed = errors.New("socket registry is closed")

// CreationError reports a failure to materialize the socket resource for a
// path. It is the only caller-visible error class: everything downstream of
// a successful acquire is safe to release unconditionally.
type CreationError struct {
	Path string
	Err  error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("failed to create socket %s: %v", e.Path, e.Err)
}

func (e *CreationError) Unwrap() error {
	return e.Err
}
