package service

import "errors"

// Client-facing outcomes. Internal causes (expired vs forged token, wrong code
// vs undecryptable secret) collapse into one of these before leaving the
// service layer.
var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not_found")
	ErrBadRequest         = errors.New("bad_request")

	// ErrUpstream marks a failed call to an external collaborator. Callers see
	// a generic failure; the cause is only logged.
	ErrUpstream = errors.New("upstream_failure")
)
