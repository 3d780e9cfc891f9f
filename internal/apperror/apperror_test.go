package apperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TABLE-DRIVEN TESTS:
// One slice of cases, one assertion loop. Each case shows up by name in -v output.

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("card", 42),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("title", "title is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "RequestRejected wraps ErrRejected",
			err:       RequestRejected(http.StatusBadRequest, "bad"),
			target:    ErrRejected,
			wantMatch: true,
		},
		{
			name:      "409 is a conflict, not a plain rejection",
			err:       RequestRejected(http.StatusConflict, ""),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "NetworkFailure exposes its cause",
			err:       NetworkFailure("GET /decks/", context.Canceled),
			target:    context.Canceled,
			wantMatch: true,
		},
		{
			name:      "wrapped StaleScope still matches",
			err:       fmt.Errorf("listing modules: %w", StaleScope("module", 7)),
			target:    ErrStaleScope,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("deck", 1),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "DecodeFailure does NOT match ErrNetwork",
			err:       DecodeFailure("question options", errors.New("bad json")),
			target:    ErrNetwork,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("module", 12),
			wantMessage: "module not found with id 12",
		},
		{
			name:        "RequestRejected falls back to status text",
			err:         RequestRejected(http.StatusNotFound, ""),
			wantMessage: "Not Found",
		},
		{
			name:        "StaleScope names kind and scope",
			err:         StaleScope("card", 3),
			wantMessage: "card response for scope 3 discarded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "stale is never surfaced", err: StaleScope("module", 1), want: ""},
		{
			name: "network",
			err:  NetworkFailure("GET /decks/", errors.New("dial tcp: refused")),
			want: "Could not reach the server. Check your connection and try again.",
		},
		{
			name: "rejected with detail",
			err:  RequestRejected(http.StatusBadRequest, "User is already a collaborator"),
			want: "Request failed (400): User is already a collaborator",
		},
		{
			name: "unauthorized",
			err:  RequestRejected(http.StatusUnauthorized, "Could not validate credentials"),
			want: "Your session has expired. Please sign in again.",
		},
		{
			name: "validation uses its own message",
			err:  fmt.Errorf("creating deck: %w", ValidationFailed("title", "deck title is required")),
			want: "deck title is required",
		},
		{
			name: "foreign error",
			err:  errors.New("boom"),
			want: "Something went wrong. Please try again.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("url", "a YouTube url is required")

	if err.Field != "url" {
		t.Errorf("Field = %q, want %q", err.Field, "url")
	}
}

func TestRequestRejectedStatus(t *testing.T) {
	err := RequestRejected(http.StatusForbidden, "Only deck owners can add collaborators")

	assert.Equal(t, http.StatusForbidden, err.Status)
	assert.True(t, errors.Is(err, ErrRejected))
	assert.False(t, errors.Is(err, ErrConflict))
}
