package services

import "errors"

// Error taxonomy surfaced to the HTTP layer. Callers match with errors.Is.
var (
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("not authorized")
	ErrValidation     = errors.New("invalid input")
	ErrConflict       = errors.New("already exists")
	ErrUnauthorized   = errors.New("invalid credentials")
	ErrInfrastructure = errors.New("storage failure")
)
