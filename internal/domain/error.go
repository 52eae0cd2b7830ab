package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound          = errors.New("entity not found")
	ErrAlreadyExists     = errors.New("entity already exists")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrEmptyMessage      = errors.New("message is empty")
	ErrJobAlreadyRunning = errors.New("organize job already running")
	ErrUnknownTable      = errors.New("unknown table name")
	ErrProviderDown      = errors.New("ai provider unavailable")
)
