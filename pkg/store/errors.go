package store

import "errors"

// Errors
var (
	ErrClosed        = errors.New("store connection closed")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrNotFound      = errors.New("row not found")
	ErrTimeout       = errors.New("request timed out")
	ErrIDInUse       = errors.New("request id already in use")
	ErrNoEndpoint    = errors.New("endpoint not set")
	ErrNoIdentity    = errors.New("no authenticated identity")
	ErrInvalidOp     = errors.New("invalid write operation")
	ErrRemoteFailure = errors.New("remote store failure")
)
