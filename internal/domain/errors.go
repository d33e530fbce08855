package domain

import "fmt"

// CodedError carries a machine-readable code used for error classification.
type CodedError struct {
	Code    string
	Message string
	Err     error
}

// NewCodedError creates a CodedError wrapping err.
func NewCodedError(code, message string, err error) *CodedError {
	return &CodedError{Code: code, Message: message, Err: err}
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

// ErrorCode returns the classification code.
func (e *CodedError) ErrorCode() string {
	return e.Code
}

// Unwrap returns the underlying error.
func (e *CodedError) Unwrap() error {
	return e.Err
}
