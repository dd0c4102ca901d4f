package domain

import "errors"

var (
	// ErrValidation marks malformed or missing construction input. Callers
	// match it with errors.Is; the wrapped message names the offending field.
	ErrValidation = errors.New("validation failed")

	ErrDuplicateLogin   = errors.New("a user with this login already exists")
	ErrPasswordMismatch = errors.New("the entered password does not match the current password")
	ErrNoAccessCode     = errors.New("identity has no access code")
)
