package errors

import "errors"

var (
	ErrNotFound = errors.New("registration not found")

	ErrInvalidID = errors.New("invalid registration ID format")

	ErrNoSeats = errors.New("no seats available")

	ErrAlreadyRegistered = errors.New("student already registered for this session")

	ErrSessionLocked = errors.New("session is being modified by another request")

	ErrInvalidTransition = errors.New("status transition not allowed")
)
