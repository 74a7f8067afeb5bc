package errors

import "errors"

var (
	ErrNotFound = errors.New("student not found")

	ErrInvalidID = errors.New("invalid student ID format")

	ErrDuplicateContact = errors.New("another student already uses this contact")
)
