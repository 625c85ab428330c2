// Package apperr defines the sentinel errors shared across the knowledge base packages.
package apperr

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrAmbiguous        = errors.New("ambiguous match")
	ErrMalformed        = errors.New("malformed document")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrAlreadyExists    = errors.New("already exists")
	ErrValidationFailed = errors.New("validation failed")
)
