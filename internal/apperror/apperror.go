// Package apperror defines the error taxonomy shared by every layer of the client.
//
// ERROR KINDS:
// Each AppError wraps one sentinel so callers can branch with errors.Is:
//
//	ErrNetwork     - the request never produced an HTTP response (transport failure)
//	ErrRejected    - the remote answered with a non-2xx status
//	ErrDecode      - the response arrived but could not be decoded
//	ErrNotFound    - a local cache miss on update/delete
//	ErrStaleScope  - a response settled after its scope stopped being current
//	ErrValidation  - input rejected before any request was sent
//	ErrNoSession   - no usable bearer credential
//	ErrUnsupported - the operation has no defined behaviour for this entity or variant
//	ErrConflict    - the remote reported a concurrent modification (409)
//
// StaleScope is the only kind that is never shown to the user. Everything else is
// turned into a message with UserMessage at the operation boundary.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNetwork     = errors.New("network failure")
	ErrRejected    = errors.New("request rejected")
	ErrDecode      = errors.New("decode failure")
	ErrNotFound    = errors.New("not found")
	ErrStaleScope  = errors.New("stale scope")
	ErrValidation  = errors.New("validation error")
	ErrNoSession   = errors.New("no session")
	ErrUnsupported = errors.New("unsupported")
	ErrConflict    = errors.New("conflict")
)

type AppError struct {
	Err     error  // sentinel kind
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Status  int    // HTTP status for ErrRejected / ErrConflict, 0 otherwise
	cause   error
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the underlying cause, so errors.Is works
// against either (e.g. ErrNetwork and context.Canceled).
func (e *AppError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.cause}
}

func NetworkFailure(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrNetwork,
		Message: fmt.Sprintf("%s: network failure", op),
		cause:   cause,
	}
}

// RequestRejected builds the error for a non-success HTTP status. A 409 is
// classified as ErrConflict so the concurrent-edit case is distinguishable.
func RequestRejected(status int, message string) *AppError {
	if message == "" {
		message = http.StatusText(status)
	}
	kind := ErrRejected
	if status == http.StatusConflict {
		kind = ErrConflict
	}
	return &AppError{
		Err:     kind,
		Message: message,
		Status:  status,
	}
}

func DecodeFailure(what string, cause error) *AppError {
	return &AppError{
		Err:     ErrDecode,
		Message: fmt.Sprintf("malformed %s", what),
		cause:   cause,
	}
}

func NotFound(resource string, id int64) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %d", resource, id),
	}
}

func StaleScope(kind string, scope int64) *AppError {
	return &AppError{
		Err:     ErrStaleScope,
		Message: fmt.Sprintf("%s response for scope %d discarded", kind, scope),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func NoSession() *AppError {
	return &AppError{
		Err:     ErrNoSession,
		Message: "not signed in",
	}
}

func Unsupported(message string) *AppError {
	return &AppError{
		Err:     ErrUnsupported,
		Message: message,
	}
}

// IsStale reports whether err is a discarded stale-scope response.
func IsStale(err error) bool {
	return errors.Is(err, ErrStaleScope)
}

// UserMessage converts any error into the text shown to the user.
// Returns "" for nil and for stale-scope errors, which are never surfaced.
func UserMessage(err error) string {
	if err == nil || IsStale(err) {
		return ""
	}

	var appErr *AppError
	if !errors.As(err, &appErr) {
		return "Something went wrong. Please try again."
	}

	switch {
	case errors.Is(err, ErrNetwork):
		return "Could not reach the server. Check your connection and try again."
	case errors.Is(err, ErrNoSession):
		return "You are not signed in."
	case errors.Is(err, ErrConflict):
		return "This item was changed by someone else. Reload and try again."
	case errors.Is(err, ErrRejected):
		switch appErr.Status {
		case http.StatusUnauthorized:
			return "Your session has expired. Please sign in again."
		case http.StatusForbidden:
			return "You do not have permission to do that: " + appErr.Message
		}
		return fmt.Sprintf("Request failed (%d): %s", appErr.Status, appErr.Message)
	case errors.Is(err, ErrDecode):
		return "The server sent data that could not be read: " + appErr.Message
	}
	return appErr.Message
}
