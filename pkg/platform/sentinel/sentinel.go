package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Registries, adapters and the kernel
// return these (optionally wrapped) so callers can branch with errors.Is.
//
// These represent factual states about resources, not business failures:
// - ErrNotFound: no resource, constructor or handler under the requested name
// - ErrTypeMismatch: a resource exists but is not of the requested Go type
// - ErrInvalidArgument: caller passed an empty key, relative root path, etc.
// - ErrUnavailable: backing service temporarily unreachable
// - ErrClosed: collaborator already shut down
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrTypeMismatch    = errors.New("type mismatch")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnavailable     = errors.New("unavailable")
	ErrClosed          = errors.New("closed")
)
