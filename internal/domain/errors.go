package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	// ErrAlreadyProcessed marks reuse of a single-use token. Callers turn it
	// into an informational outcome rather than a failure.
	ErrAlreadyProcessed = errors.New("already processed")
	// ErrInvalidTransition is returned when a status change is not an edge of
	// the verification state machine.
	ErrInvalidTransition = errors.New("invalid transition")
	ErrTokenExpired      = errors.New("token expired")
	ErrQuotaExceeded     = errors.New("quota exceeded")
	// ErrChannelDispatch means a phone or email attempt could not be started.
	ErrChannelDispatch = errors.New("channel dispatch failed")
	ErrExternalService = errors.New("external service failure")
)
