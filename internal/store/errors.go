package store

import "errors"

var (
	// ErrConfiguration is returned for a malformed location or version binding.
	ErrConfiguration = errors.New("configuration error")

	// ErrNotInitialized is returned when the store lacks committed length metadata.
	ErrNotInitialized = errors.New("database not initialized")

	// ErrRemoteInitialization is returned when a destructive or write operation
	// targets a remote store.
	ErrRemoteInitialization = errors.New("cannot initialize a remote database")

	// ErrInvalidArgument is returned for malformed query input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotConfirmed is returned when initialization was not confirmed.
	ErrNotConfirmed = errors.New("initialization not confirmed")
)
