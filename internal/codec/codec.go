// Package codec turns Content drafts into wire requests and stored Content back into
// editable drafts.
//
// REQUEST SHAPE PER VARIANT:
//
//	Text     POST /modules/{m}/contents          JSON {type, payload: "<body>", order}
//	YouTube  POST /modules/{m}/contents          JSON {type, payload: {url}, order}
//	Pdf      POST /modules/{m}/contents/upload   multipart (file + order)    File != nil
//	Pdf      POST /modules/{m}/contents/convert  JSON {text, filename, order} File == nil
//
// Updates are a PUT carrying the full payload. A Pdf cannot be edited in place: its
// bytes only travel through the upload endpoint, so Update and EditFields reject it.
//
// Order is passed through untouched. Duplicates and gaps are the caller's business.
package codec

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sakif/studydeck/internal/apperror"
	"github.com/sakif/studydeck/internal/client"
	"github.com/sakif/studydeck/internal/model"
	"github.com/sakif/studydeck/internal/pdfinfo"
)

// Requester is the part of *client.Client the codec needs.
type Requester interface {
	JSON(ctx context.Context, req client.Request, out any) error
}

type Codec struct {
	api    Requester
	logger *slog.Logger
}

func New(api Requester, logger *slog.Logger) *Codec {
	return &Codec{api: api, logger: logger}
}

// ContentsPath is the content collection of a module.
func ContentsPath(moduleID int64) string {
	return fmt.Sprintf("/modules/%d/contents", moduleID)
}

// ContentPath addresses one content item.
func ContentPath(moduleID, contentID int64) string {
	return fmt.Sprintf("/modules/%d/contents/%d", moduleID, contentID)
}

// jsonBody is the JSON create/update body for Text and YouTube content.
type jsonBody struct {
	Type    model.ContentType `json:"type"`
	Payload any               `json:"payload"`
	Order   int               `json:"order"`
}

type convertBody struct {
	Text     string `json:"text"`
	Filename string `json:"filename"`
	Order    int    `json:"order"`
}

// Create sends d to the endpoint its variant requires and returns the stored Content.
func (c *Codec) Create(ctx context.Context, moduleID int64, d model.ContentDraft) (model.Content, error) {
	switch d.Type {
	case model.ContentText, model.ContentYouTube:
		body, err := EncodeDraft(d)
		if err != nil {
			return model.Content{}, err
		}
		return c.send(ctx, client.Request{Method: http.MethodPost, Path: ContentsPath(moduleID), Body: body}, d.Type)

	case model.ContentPDF:
		if d.File != nil {
			return c.upload(ctx, moduleID, d)
		}
		return c.convert(ctx, moduleID, d)

	default:
		return model.Content{}, apperror.ValidationFailed("type", fmt.Sprintf("unknown content type %q", d.Type))
	}
}

// Update replaces the payload of content id with d. Changing the variant is allowed
// as long as the new variant is JSON-representable.
func (c *Codec) Update(ctx context.Context, moduleID, id int64, d model.ContentDraft) (model.Content, error) {
	if d.Type == model.ContentPDF {
		return model.Content{}, apperror.Unsupported("pdf content cannot be edited in place; delete it and upload a new file")
	}
	body, err := EncodeDraft(d)
	if err != nil {
		return model.Content{}, err
	}
	return c.send(ctx, client.Request{Method: http.MethodPut, Path: ContentPath(moduleID, id), Body: body}, d.Type)
}

func (c *Codec) upload(ctx context.Context, moduleID int64, d model.ContentDraft) (model.Content, error) {
	f := d.File
	if strings.TrimSpace(f.Filename) == "" {
		return model.Content{}, apperror.ValidationFailed("file", "file name is required")
	}
	info, err := pdfinfo.Inspect(f.Data)
	if err != nil {
		return model.Content{}, err
	}
	c.logger.Info("uploading pdf",
		slog.Int64("moduleID", moduleID),
		slog.String("filename", f.Filename),
		slog.Int("bytes", len(f.Data)),
		slog.Int("pages", info.Pages),
	)

	return c.send(ctx, client.Request{
		Method: http.MethodPost,
		Path:   ContentsPath(moduleID) + "/upload",
		Multipart: &client.Multipart{
			Filename: f.Filename,
			Data:     f.Data,
			Fields:   map[string]string{"order": strconv.Itoa(d.Order)},
		},
	}, model.ContentPDF)
}

func (c *Codec) convert(ctx context.Context, moduleID int64, d model.ContentDraft) (model.Content, error) {
	if strings.TrimSpace(d.Text) == "" {
		return model.Content{}, apperror.ValidationFailed("text", "text to convert is required")
	}
	return c.send(ctx, client.Request{
		Method: http.MethodPost,
		Path:   ContentsPath(moduleID) + "/convert",
		Body: convertBody{
			Text:     d.Text,
			Filename: PDFFilename(d.Filename),
			Order:    d.Order,
		},
	}, model.ContentPDF)
}

// send issues req and checks the returned record carries the variant that was asked for.
func (c *Codec) send(ctx context.Context, req client.Request, want model.ContentType) (model.Content, error) {
	var out model.Content
	if err := c.api.JSON(ctx, req, &out); err != nil {
		return model.Content{}, err
	}
	if out.Type != want {
		return model.Content{}, apperror.DecodeFailure(
			fmt.Sprintf("content: expected %s, server returned %s", want, out.Type), nil)
	}
	return out, nil
}

// EncodeDraft builds the JSON body for a Text or YouTube draft.
func EncodeDraft(d model.ContentDraft) (any, error) {
	p, err := PayloadFor(d)
	if err != nil {
		return nil, err
	}
	raw, err := model.MarshalPayload(p)
	if err != nil {
		return nil, fmt.Errorf("codec: encoding payload: %w", err)
	}
	return jsonBody{Type: p.ContentType(), Payload: raw, Order: d.Order}, nil
}

// PayloadFor validates d and returns the payload it describes. Pdf drafts have no
// JSON payload and are rejected.
func PayloadFor(d model.ContentDraft) (model.Payload, error) {
	switch d.Type {
	case model.ContentText:
		if strings.TrimSpace(d.Text) == "" {
			return nil, apperror.ValidationFailed("text", "text is required")
		}
		return model.TextPayload{Body: d.Text}, nil
	case model.ContentYouTube:
		u := strings.TrimSpace(d.URL)
		if err := validateURL(u); err != nil {
			return nil, err
		}
		return model.YouTubePayload{URL: u}, nil
	case model.ContentPDF:
		return nil, apperror.Unsupported("pdf content is sent as an upload, not as JSON")
	default:
		return nil, apperror.ValidationFailed("type", fmt.Sprintf("unknown content type %q", d.Type))
	}
}

// EditFields pre-populates an edit form from stored content. Text fills Text,
// YouTube fills URL. Pdf has no editable field.
func EditFields(c model.Content) (model.ContentDraft, error) {
	d := model.ContentDraft{Type: c.Type, Order: c.Order}
	switch p := c.Payload.(type) {
	case model.TextPayload:
		d.Text = p.Body
	case model.YouTubePayload:
		d.URL = p.URL
	case model.PDFPayload:
		return model.ContentDraft{}, apperror.Unsupported(
			fmt.Sprintf("%s cannot be edited in place; delete it and upload a new file", p.Filename))
	default:
		return model.ContentDraft{}, apperror.Unsupported(fmt.Sprintf("content %d has no editable payload", c.ID))
	}
	return d, nil
}

// PDFFilename returns name with a .pdf extension, or "notes.pdf" when name is blank.
func PDFFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "notes.pdf"
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	return name
}

func validateURL(raw string) error {
	if raw == "" {
		return apperror.ValidationFailed("url", "url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperror.ValidationFailed("url", fmt.Sprintf("%q is not an http(s) url", raw))
	}
	return nil
}
