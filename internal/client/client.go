// Package client is the typed request layer every remote operation goes through.
//
// CONTRACT:
// Do(ctx, Request) either returns a 2xx Response or an *apperror.AppError:
//
//	ErrNoSession  - no bearer credential; nothing was sent
//	ErrNetwork    - the transport failed (includes context cancellation)
//	ErrRejected   - non-2xx status (ErrConflict for 409), Status + server message
//	ErrDecode     - JSON helpers could not decode a 2xx body
//
// Nothing panics or escapes this boundary untyped.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/xid"
	"golang.org/x/oauth2"

	"github.com/sakif/studydeck/internal/apperror"
)

const (
	// MaxBodyBytes caps how much of any response body is read.
	MaxBodyBytes = 64 << 20
	// maxErrorBytes caps how much of an error body is read for its message.
	maxErrorBytes = 64 << 10

	RequestIDHeader = "X-Request-Id"
)

// Client issues authenticated requests against the remote resource service.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	tokens  oauth2.TokenSource
	logger  *slog.Logger
}

type Option func(*Client)

// WithHTTPClient uses a copy of hc as the underlying *http.Client (tests pass
// httptest clients). hc itself is never modified.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		cp := *hc
		c.http = &cp
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// New creates a Client. baseURL must be absolute; paths passed to Do are resolved
// against it.
func New(baseURL string, tokens oauth2.TokenSource, logger *slog.Logger, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || !u.IsAbs() {
		return nil, fmt.Errorf("client: base URL must be absolute, got %q", baseURL)
	}
	if tokens == nil {
		return nil, errors.New("client: token source is required")
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 15 * time.Second},
		tokens:  tokens,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http.Transport = &loggingTransport{next: c.http.Transport, logger: logger}
	return c, nil
}

// Request describes one call. Body and Multipart are mutually exclusive: a non-nil
// Body is sent as JSON, a non-nil Multipart as multipart/form-data.
type Request struct {
	Method    string
	Path      string
	Body      any
	Multipart *Multipart
}

// Multipart is a binary upload body.
type Multipart struct {
	FileField string
	Filename  string
	Data      []byte
	Fields    map[string]string
}

// Response is a successful (2xx) reply.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// Do sends req and returns the 2xx response or a typed error.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	op := req.Method + " " + req.Path

	tok, err := c.tokens.Token()
	if err != nil {
		if errors.Is(err, apperror.ErrNoSession) {
			return nil, err
		}
		return nil, fmt.Errorf("client: %s: obtaining credential: %w", op, err)
	}

	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, fmt.Errorf("client: %s: encoding body: %w", op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.resolve(req.Path), body)
	if err != nil {
		return nil, fmt.Errorf("client: %s: building request: %w", op, err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(RequestIDHeader, xid.New().String())
	tok.SetAuthHeader(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Error("request failed",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		return nil, apperror.NetworkFailure(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := errorMessage(io.LimitReader(resp.Body, maxErrorBytes))
		c.logger.Warn("request rejected",
			slog.String("op", op),
			slog.Int("status", resp.StatusCode),
			slog.String("message", msg),
		)
		return nil, apperror.RequestRejected(resp.StatusCode, msg)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes+1))
	if err != nil {
		return nil, apperror.NetworkFailure(op, err)
	}
	if len(data) > MaxBodyBytes {
		return nil, apperror.DecodeFailure(fmt.Sprintf("response to %s (larger than %d bytes)", op, MaxBodyBytes), nil)
	}

	return &Response{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}

// JSON sends req and decodes the response body into out. A nil out discards the body.
func (c *Client) JSON(ctx context.Context, req Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return apperror.DecodeFailure(fmt.Sprintf("response to %s %s", req.Method, req.Path), err)
	}
	return nil
}

// Bytes GETs path and returns the raw body.
func (c *Client) Bytes(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, Path: path})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) resolve(path string) string {
	u := *c.baseURL
	p, query, _ := strings.Cut(path, "?")
	u.Path = c.baseURL.Path + "/" + strings.TrimLeft(p, "/")
	u.RawQuery = query
	return u.String()
}

func encodeBody(req Request) (io.Reader, string, error) {
	switch {
	case req.Body != nil && req.Multipart != nil:
		return nil, "", errors.New("request has both a JSON body and a multipart body")
	case req.Multipart != nil:
		return encodeMultipart(req.Multipart)
	case req.Body != nil:
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	}
	return nil, "", nil
}

func encodeMultipart(m *Multipart) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for name, value := range m.Fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", err
		}
	}

	field := m.FileField
	if field == "" {
		field = "file"
	}
	part, err := w.CreateFormFile(field, m.Filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(m.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// errorMessage extracts a human-readable message from an error body. It understands
// {"detail": "..."} and {"error": "...", "message": "..."}; anything else yields "".
func errorMessage(r io.Reader) string {
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}

	var body struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}

	if len(body.Detail) > 0 {
		var s string
		if json.Unmarshal(body.Detail, &s) == nil {
			return s
		}
		// Validation errors carry a list of objects; show it as-is.
		return string(body.Detail)
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}
