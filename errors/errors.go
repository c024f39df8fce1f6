package errors

import (
	"errors"
	"fmt"
)

// Error codes for programmatic handling.
const (
	CodeNotConfigured     = "NOT_CONFIGURED"
	CodeAPIKeyMissing     = "API_KEY_MISSING"
	CodeInvalidRole       = "INVALID_ROLE"
	CodeEmptyContent      = "EMPTY_CONTENT"
	CodeRemoteError       = "REMOTE_ERROR"
	CodeSessionInitFailed = "SESSION_INIT_FAILED"
)

// BridgeError is a structured error with a code and actionable suggestion.
type BridgeError struct {
	Code       string // machine-readable code (e.g. INVALID_ROLE)
	Message    string // human-readable description
	Suggestion string // actionable fix
	Err        error  // wrapped underlying error
}

// Error implements the error interface.
func (e *BridgeError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap supports errors.Is / errors.As.
func (e *BridgeError) Unwrap() error {
	return e.Err
}

// New creates a BridgeError with the given code and message.
func New(code, message string) *BridgeError {
	return &BridgeError{Code: code, Message: message}
}

// Wrap creates a BridgeError wrapping an existing error.
func Wrap(code, message string, err error) *BridgeError {
	return &BridgeError{Code: code, Message: message, Err: err}
}

// WithSuggestion returns a copy with the suggestion set.
func (e *BridgeError) WithSuggestion(suggestion string) *BridgeError {
	e.Suggestion = suggestion
	return e
}

// Is checks whether target matches this error's code.
func (e *BridgeError) Is(target error) bool {
	var be *BridgeError
	if errors.As(target, &be) {
		return e.Code == be.Code
	}
	return false
}

// AsCode extracts the BridgeError code from an error, or "" if not a BridgeError.
func AsCode(err error) string {
	var be *BridgeError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// Suggestion extracts the suggestion from an error, or "" if not a BridgeError.
func Suggestion(err error) string {
	var be *BridgeError
	if errors.As(err, &be) {
		return be.Suggestion
	}
	return ""
}
