package store

import "github.com/pagetune/pagetune-server/internal/errors"

// Sentinel errors returned by every backend. They carry domain codes, so
// errors.Is(err, errors.ErrNotFound) also matches.
var (
	ErrNotFound      = errors.NotFound("resource not found")
	ErrAlreadyExists = errors.Conflict("resource already exists")
	ErrInvalidInput  = errors.Validation("invalid input")
)
