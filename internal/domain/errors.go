package domain

import "errors"

var (
	// ErrNetwork marks a catalog or dataset document that could not be retrieved.
	ErrNetwork = errors.New("network error")

	// ErrMalformedDocument marks XML that is not well-formed or lacks a required block.
	ErrMalformedDocument = errors.New("malformed document")

	// ErrCacheMiss marks an absent or unreadable snapshot.
	ErrCacheMiss = errors.New("cache miss")

	// ErrCancelled is reported for jobs skipped after cancellation was requested.
	ErrCancelled = errors.New("cancellation requested")

	// ErrNotFound is returned by lookups that match nothing.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument marks a malformed invocation.
	ErrInvalidArgument = errors.New("invalid argument")
)
