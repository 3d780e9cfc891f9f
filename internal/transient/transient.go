// Package transient owns the locally materialized copy of a previewed binary.
//
// A Manager belongs to one preview session and holds at most one live Handle:
//
//	Materialize(data)  releases the current handle, then writes data to a new one
//	Release(h)         deletes h's file; no-op if h is not the live handle
//	Close()            releases whatever is live (session end)
//
// All three run under one mutex, so no caller can observe two live handles.
package transient

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/rs/xid"

	"github.com/sakif/studydeck/internal/pdfinfo"
)

// Handle is a renderable local copy of fetched bytes.
type Handle struct {
	ID    string
	Path  string
	Size  int
	Pages int // 0 when the bytes are not a readable PDF
}

// IsZero reports whether h was never materialized.
func (h Handle) IsZero() bool { return h.ID == "" }

type Manager struct {
	dir    string
	logger *slog.Logger

	mu       sync.Mutex
	live     *Handle
	created  int
	released int
}

// New returns a Manager that writes handle files under dir ("" means os.TempDir()).
func New(dir string, logger *slog.Logger) *Manager {
	return &Manager{dir: dir, logger: logger}
}

// Materialize writes data to a fresh handle. The previous handle, if any, is
// released first. On failure no handle is live.
func (m *Manager) Materialize(data []byte) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.releaseLocked()

	if m.dir != "" {
		if err := os.MkdirAll(m.dir, 0o700); err != nil {
			return Handle{}, fmt.Errorf("transient: creating preview dir: %w", err)
		}
	}

	id := xid.New().String()
	f, err := os.CreateTemp(m.dir, "preview-"+id+"-*.pdf")
	if err != nil {
		return Handle{}, fmt.Errorf("transient: creating handle file: %w", err)
	}
	path := f.Name()

	_, werr := f.Write(data)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(path)
		return Handle{}, fmt.Errorf("transient: writing handle file: %w", err)
	}

	h := Handle{ID: id, Path: path, Size: len(data)}
	if info, err := pdfinfo.Inspect(data); err == nil {
		h.Pages = info.Pages
	} else {
		m.logger.Warn("preview is not a readable pdf",
			slog.String("handle", id),
			slog.String("error", err.Error()),
		)
	}

	m.live = &h
	m.created++
	m.logger.Debug("handle materialized",
		slog.String("handle", id),
		slog.Int("bytes", h.Size),
		slog.Int("pages", h.Pages),
	)
	return h, nil
}

// Release frees h. Releasing a handle that is not live is a no-op.
func (m *Manager) Release(h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.live == nil || h.IsZero() || m.live.ID != h.ID {
		return
	}
	m.releaseLocked()
}

// Close releases the live handle, if any.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked()
	return nil
}

// Current returns the live handle.
func (m *Manager) Current() (Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.live == nil {
		return Handle{}, false
	}
	return *m.live, true
}

// Live returns the number of live handles: 0 or 1.
func (m *Manager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created - m.released
}

func (m *Manager) releaseLocked() {
	if m.live == nil {
		return
	}
	h := *m.live
	m.live = nil
	m.released++

	if err := os.Remove(h.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		m.logger.Error("removing handle file",
			slog.String("handle", h.ID),
			slog.String("path", h.Path),
			slog.String("error", err.Error()),
		)
		return
	}
	m.logger.Debug("handle released", slog.String("handle", h.ID))
}
