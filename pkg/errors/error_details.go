package errors

import stderrors "errors"

// ErrorDetails represents detailed information about an error.
type ErrorDetails struct {
	// Message (required) is the user-defined error message.
	// E.g. "frame is not valid JSON".
	Message string

	// Code (required) is one of the ErrorCode values of this package.
	// E.g. "stream_malformed_frame".
	Code string

	// Field (optional) is the related field the error occurred on, if any.
	Field string

	// Object (optional) is the related object the error occured on, if any.
	Object interface{}

	// Cause (optional) is the underlying error reported by a driver or parser.
	Cause error
}

// NewErrorDetails creates a new ErrorDetails struct with the given parameters.
func NewErrorDetails(message, code, field string) *ErrorDetails {
	return &ErrorDetails{
		Message: message,
		Code:    code,
		Field:   field,
	}
}

// NewErrorDetailsWithCause creates a new ErrorDetails struct wrapping the underlying cause.
func NewErrorDetailsWithCause(message, code, field string, cause error) *ErrorDetails {
	return &ErrorDetails{
		Message: message,
		Code:    code,
		Field:   field,
		Cause:   cause,
	}
}

// Error() is used to implement the Golang `error` interface.
func (e *ErrorDetails) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *ErrorDetails) Unwrap() error {
	return e.Cause
}

// ErrorCodeEquals checks whether a given `error`, or any error it wraps, carries a specific code.
func ErrorCodeEquals(err error, code string) bool {
	var errDetails *ErrorDetails
	if !stderrors.As(err, &errDetails) {
		return false
	}

	return errDetails.Code == code
}
