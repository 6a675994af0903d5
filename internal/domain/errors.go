package domain

import "errors"

// Sentinel errors for the messaging core. Handlers and the session
// gateway map these onto transport-level responses.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized access")
	ErrConflict     = errors.New("resource already exists")
	ErrInvalidInput = errors.New("invalid input")
	ErrStore        = errors.New("store failure")
)
