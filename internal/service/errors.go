package service

import "errors"

// Error classes. Handlers map them to HTTP statuses with errors.Is; a
// returned error may wrap more than one class.
var (
	ErrBadRequest          = errors.New("bad request")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrForbidden           = errors.New("forbidden")
	ErrNotFound            = errors.New("not found")
	ErrInvalidState        = errors.New("invalid state")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrVerificationFailed  = errors.New("payment verification failed")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrConfiguration       = errors.New("configuration error")
	ErrAnomaly             = errors.New("anomaly")
	ErrInternal            = errors.New("internal error")
)

// errConcurrentUpdate means a conditional write lost to another writer and
// the whole reconciliation should be retried.
var errConcurrentUpdate = errors.New("order changed concurrently")
