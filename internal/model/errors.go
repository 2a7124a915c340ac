package model

import "errors"

// ErrMalformedDocument marks a stored document that fails its schema.
var ErrMalformedDocument = errors.New("malformed document")

// MalformedDataError is returned when user-entered structured data
// (marking scheme, marks) cannot be parsed. No write is attempted.
type MalformedDataError struct {
	Field string
	Err   error
}

func (e *MalformedDataError) Error() string {
	return e.Field + " is not valid JSON."
}

func (e *MalformedDataError) Unwrap() error {
	return e.Err
}

// Field labels used in MalformedDataError
const (
	FieldMarkingScheme = "Marking Scheme"
	FieldMarks         = "Marks data"
)
