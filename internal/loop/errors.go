package loop

import "errors"

var (
	// ErrDisposed indicates the controller has been disposed.
	ErrDisposed = errors.New("controller disposed")

	// ErrMissingDependency indicates a required collaborator was not provided.
	ErrMissingDependency = errors.New("missing dependency")
)
