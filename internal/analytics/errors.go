package analytics

import "errors"

var (
	// ErrValidation marks a malformed submission or query.
	ErrValidation = errors.New("validation failed")
	// ErrStorage marks a failed append or aggregate write.
	ErrStorage = errors.New("storage failure")
	// ErrNotFound is returned by repositories for unknown keys.
	ErrNotFound = errors.New("not found")
)
