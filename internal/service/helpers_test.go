package service

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/sakif/studydeck/internal/auth"
	"github.com/sakif/studydeck/internal/client"
	"github.com/sakif/studydeck/internal/fakeremote"
	"github.com/sakif/studydeck/internal/repository/remote"
	"github.com/sakif/studydeck/internal/transient"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

const testTimeout = 5 * time.Second

// hold parks the next GET of one path until release is closed.
type hold struct {
	arrived chan struct{}
	release chan struct{}
	once    sync.Once
}

func (h *hold) Release() { h.once.Do(func() { close(h.release) }) }

// interceptor sits in front of the fake remote so tests can delay or fail
// individual requests.
type interceptor struct {
	next http.Handler

	mu    sync.Mutex
	holds map[string]*hold
	fails map[string]int
}

func (in *interceptor) Hold(path string) *hold {
	h := &hold{arrived: make(chan struct{}), release: make(chan struct{})}
	in.mu.Lock()
	in.holds[path] = h
	in.mu.Unlock()
	return h
}

// Fail answers every GET of path with status until cleared with status 0.
func (in *interceptor) Fail(path string, status int) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if status == 0 {
		delete(in.fails, path)
		return
	}
	in.fails[path] = status
}

func (in *interceptor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		in.mu.Lock()
		h := in.holds[r.URL.Path]
		delete(in.holds, r.URL.Path)
		status := in.fails[r.URL.Path]
		in.mu.Unlock()

		if h != nil {
			close(h.arrived)
			<-h.release
		}
		if status != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			w.Write([]byte(`{"detail":"injected failure"}`))
			return
		}
	}
	in.next.ServeHTTP(w, r)
}

type env struct {
	ctrl    *Controller
	remote  *fakeremote.Server
	net     *interceptor
	handles *transient.Manager
	userID  int64
}

// newEnv runs a controller against the in-memory remote service over real HTTP,
// signed in as ada@example.com.
func newEnv(t *testing.T, opts ...Option) *env {
	t.Helper()

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	require.NoError(t, err)
	fr := fakeremote.New(tokens, testLogger)
	tok, userID, err := fr.Token("ada@example.com", time.Hour)
	require.NoError(t, err)

	in := &interceptor{next: fr, holds: map[string]*hold{}, fails: map[string]int{}}
	srv := httptest.NewServer(in)

	api, err := client.New(srv.URL, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: tok}), testLogger)
	require.NoError(t, err)
	rb := remote.New(api, testLogger)

	handles := transient.New(t.TempDir(), testLogger)
	ctrl := NewController(Backends{
		Decks:         rb.Decks,
		Cards:         rb.Cards,
		Collaborators: rb.Collaborators,
		Modules:       rb.Modules,
		Contents:      rb.Contents,
		Questions:     rb.Questions,
		Previews:      rb.Contents,
	}, handles, testLogger, opts...)

	t.Cleanup(func() {
		in.mu.Lock()
		for _, h := range in.holds {
			h.Release()
		}
		in.mu.Unlock()
		ctrl.Close()
		srv.Close()
	})

	return &env{ctrl: ctrl, remote: fr, net: in, handles: handles, userID: userID}
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func timeoutC() <-chan time.Time { return time.After(testTimeout) }
