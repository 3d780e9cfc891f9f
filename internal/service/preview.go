package service

import (
	"context"
	"log/slog"

	"github.com/sakif/studydeck/internal/apperror"
	"github.com/sakif/studydeck/internal/model"
	"github.com/sakif/studydeck/internal/transient"
)

// Preview is the open preview session. Handle is set only for pdf content.
type Preview struct {
	ContentID int64
	Kind      model.PreviewKind
	Text      string
	URL       string
	Filename  string
	Handle    transient.Handle
}

// OpenPreview replaces the current preview with one for contentID of the open
// module. For pdf content the bytes are fetched and materialized as a transient
// handle. A preview that was superseded or closed while loading is discarded and
// its handle is never kept.
func (c *Controller) OpenPreview(ctx context.Context, contentID int64) (Preview, error) {
	c.mu.Lock()
	if c.module == nil {
		c.mu.Unlock()
		return Preview{}, apperror.ValidationFailed("module", "open a module first")
	}
	if _, ok := c.Contents.Get(contentID); !ok {
		c.mu.Unlock()
		return Preview{}, apperror.NotFound(KindContent, contentID)
	}
	moduleID := c.module.ID
	c.closePreviewLocked()
	seq := c.previewSeq
	c.previewing = contentID
	c.mu.Unlock()

	desc, err := c.previews.Preview(ctx, moduleID, contentID)
	if err != nil {
		return Preview{}, c.previewErr(seq, moduleID, err)
	}
	p := Preview{
		ContentID: contentID,
		Kind:      desc.Kind,
		Text:      desc.Text,
		URL:       desc.URL,
		Filename:  desc.Filename,
	}

	var data []byte
	if p.Kind == model.PreviewPDF {
		if data, err = c.previews.Binary(ctx, moduleID, contentID); err != nil {
			return Preview{}, c.previewErr(seq, moduleID, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.previewSeq != seq {
		return Preview{}, c.stalePreview(moduleID)
	}
	if p.Kind == model.PreviewPDF {
		h, err := c.handles.Materialize(data)
		if err != nil {
			c.previewing = 0
			return Preview{}, err
		}
		p.Handle = h
	}
	c.preview = &p

	c.logger.Info("preview opened",
		slog.Int64("moduleID", moduleID),
		slog.Int64("contentID", contentID),
		slog.String("kind", string(p.Kind)),
	)
	return p, nil
}

// previewErr turns a failed fetch into StaleScope when the preview moved on.
func (c *Controller) previewErr(seq uint64, moduleID int64, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.previewSeq != seq {
		return c.stalePreview(moduleID)
	}
	c.previewing = 0
	return err
}

func (c *Controller) stalePreview(moduleID int64) error {
	c.logger.Warn("discarding stale preview", slog.Int64("moduleID", moduleID))
	return apperror.StaleScope("preview", moduleID)
}

// CurrentPreview returns the open preview.
func (c *Controller) CurrentPreview() (Preview, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.preview == nil {
		return Preview{}, false
	}
	return *c.preview, true
}

// ClosePreview ends the preview session and releases every transient handle.
func (c *Controller) ClosePreview() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closePreviewLocked()
	c.handles.Close()
}

// closePreviewLocked invalidates any preview in flight and releases the open one.
func (c *Controller) closePreviewLocked() {
	c.previewSeq++
	c.previewing = 0
	if c.preview == nil {
		return
	}
	c.handles.Release(c.preview.Handle)
	c.preview = nil
}

// Close ends the session: the preview is closed and its handles released.
func (c *Controller) Close() error {
	c.ClosePreview()
	return nil
}
