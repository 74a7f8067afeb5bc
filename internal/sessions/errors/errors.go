package errors

import "errors"

var (
	ErrNotFound = errors.New("session not found")

	ErrInvalidID = errors.New("invalid session ID format")

	ErrNotPublished = errors.New("session is not published")

	ErrRegistrationClosed = errors.New("registration window is closed")
)
