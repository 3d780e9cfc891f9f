package fakeremote

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// errorBody is the error shape of every non-2xx response.
type errorBody struct {
	Detail string `json:"detail"`
}

// messageBody is returned by successful deletes.
type messageBody struct {
	Message string `json:"message"`
}

// statusError carries the HTTP status a handler wants to answer with.
type statusError struct {
	status int
	detail string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%d %s", e.status, e.detail)
}

func fail(status int, detail string) error {
	return &statusError{status: status, detail: detail}
}

func invalid(detail string) error {
	return fail(http.StatusUnprocessableEntity, detail)
}

// writeJSON sets headers and status before the body; anything set after the first
// Write is ignored.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError answers with the status carried by err. Anything else is a 500 whose
// details stay in the log.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var se *statusError
	if errors.As(err, &se) {
		s.writeJSON(w, se.status, errorBody{Detail: se.detail})
		return
	}

	s.logger.Error("unhandled error", slog.String("error", err.Error()))
	s.writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "Internal server error"})
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBytes)).Decode(v); err != nil {
		return invalid("request body is not valid JSON")
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, invalid(fmt.Sprintf("%s must be a positive integer, got %q", name, raw))
	}
	return id, nil
}

// queryInt reads a non-negative integer query parameter.
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, invalid(fmt.Sprintf("%s must be a non-negative integer", name))
	}
	return n, nil
}
