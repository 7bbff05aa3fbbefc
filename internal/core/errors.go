package core

import (
	"errors"
	"fmt"

	"github.com/vovakirdan/formsync/internal/store"
)

// Error codes for domain errors.
const (
	ErrCodeFormNotFound     = "form_not_found"
	ErrCodeResponseNotFound = "response_not_found"
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternal         = "internal"
)

var (
	// ErrHubStopped is returned by Do once Run has returned.
	ErrHubStopped = errors.New("hub stopped")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// BadRequest builds a bad_request error.
func BadRequest(format string, args ...any) *CoreError {
	return coreError(ErrCodeBadRequest, fmt.Sprintf(format, args...))
}

// AsCoreError maps err to a CoreError, classifying store errors.
func AsCoreError(err error) *CoreError {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce
	}
	if errors.Is(err, store.ErrNotFound) {
		return coreError(ErrCodeFormNotFound, err.Error())
	}
	return coreError(ErrCodeInternal, "internal error")
}
