package domain

import "errors"

// Sentinel errors shared by the chat pipeline and the registration ledger.
var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidMessage    = errors.New("invalid message")
	ErrAlreadyRegistered = errors.New("already registered for this event")
	ErrEventFull         = errors.New("event is full")
	// ErrStorageFailure marks an unavailable or failing store. It is surfaced, never retried here.
	ErrStorageFailure = errors.New("storage failure")
	// ErrCacheMiss is returned by a HistoryCache that holds no page for the query.
	ErrCacheMiss = errors.New("cache miss")
)
