package codec

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/sakif/studydeck/internal/apperror"
	"github.com/sakif/studydeck/internal/client"
	"github.com/sakif/studydeck/internal/model"
	"github.com/sakif/studydeck/internal/pdfinfo"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// echoAPI records requests and answers JSON requests by echoing the body back as a
// stored Content with id 42.
type echoAPI struct {
	reqs []client.Request
	resp string // fixed response; empty means echo
	err  error
}

func (f *echoAPI) JSON(_ context.Context, req client.Request, out any) error {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return f.err
	}
	if f.resp != "" {
		return json.Unmarshal([]byte(f.resp), out)
	}

	data, err := json.Marshal(req.Body)
	if err != nil {
		return err
	}
	var wire map[string]any
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	wire["id"] = 42
	wire["module_id"] = 7
	data, _ = json.Marshal(wire)
	return json.Unmarshal(data, out)
}

func (f *echoAPI) last() client.Request { return f.reqs[len(f.reqs)-1] }

func TestCreate_JSONVariants(t *testing.T) {
	tests := []struct {
		name        string
		draft       model.ContentDraft
		wantPayload string
	}{
		{
			name:        "text is a bare string",
			draft:       model.ContentDraft{Type: model.ContentText, Text: "Mitochondria", Order: 2},
			wantPayload: `"Mitochondria"`,
		},
		{
			name:        "youtube is an object",
			draft:       model.ContentDraft{Type: model.ContentYouTube, URL: "https://youtube.com/watch?v=X", Order: 0},
			wantPayload: `{"url":"https://youtube.com/watch?v=X"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &echoAPI{}
			c := New(api, testLogger)

			got, err := c.Create(context.Background(), 7, tt.draft)
			require.NoError(t, err)
			assert.Equal(t, tt.draft.Type, got.Type)
			assert.Equal(t, tt.draft.Order, got.Order)

			req := api.last()
			assert.Equal(t, http.MethodPost, req.Method)
			assert.Equal(t, "/modules/7/contents", req.Path)
			assert.Nil(t, req.Multipart)

			body, err := json.Marshal(req.Body)
			require.NoError(t, err)
			var wire struct {
				Type    string          `json:"type"`
				Payload json.RawMessage `json:"payload"`
			}
			require.NoError(t, json.Unmarshal(body, &wire))
			assert.Equal(t, string(tt.draft.Type), wire.Type)
			assert.JSONEq(t, tt.wantPayload, string(wire.Payload))
		})
	}
}

func TestYouTubeRoundTrip_EditFields(t *testing.T) {
	const link = "https://youtube.com/watch?v=X"
	c := New(&echoAPI{}, testLogger)

	created, err := c.Create(context.Background(), 7, model.ContentDraft{Type: model.ContentYouTube, URL: link})
	require.NoError(t, err)

	d, err := EditFields(created)
	require.NoError(t, err)
	assert.Equal(t, model.ContentYouTube, d.Type)
	assert.Equal(t, link, d.URL)
}

func TestEditFields(t *testing.T) {
	d, err := EditFields(model.Content{Type: model.ContentText, Order: 3, Payload: model.TextPayload{Body: "chlorophyll"}})
	require.NoError(t, err)
	assert.Equal(t, "chlorophyll", d.Text)
	assert.Equal(t, 3, d.Order)

	_, err = EditFields(model.Content{Type: model.ContentPDF, Payload: model.PDFPayload{Filename: "a.pdf"}})
	assert.True(t, errors.Is(err, apperror.ErrUnsupported))

	_, err = EditFields(model.Content{ID: 9})
	assert.True(t, errors.Is(err, apperror.ErrUnsupported))
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name      string
		draft     model.ContentDraft
		wantField string
	}{
		{"empty text", model.ContentDraft{Type: model.ContentText, Text: "  "}, "text"},
		{"missing url", model.ContentDraft{Type: model.ContentYouTube}, "url"},
		{"relative url", model.ContentDraft{Type: model.ContentYouTube, URL: "watch?v=X"}, "url"},
		{"ftp url", model.ContentDraft{Type: model.ContentYouTube, URL: "ftp://youtube.com/x"}, "url"},
		{"unknown type", model.ContentDraft{Type: "Audio"}, "type"},
		{"convert without text", model.ContentDraft{Type: model.ContentPDF}, "text"},
		{"upload not a pdf", model.ContentDraft{Type: model.ContentPDF, File: &model.Upload{Filename: "a.pdf", Data: []byte("hi")}}, "file"},
		{"upload without name", model.ContentDraft{Type: model.ContentPDF, File: &model.Upload{Data: newPDF(t, "x")}}, "file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &echoAPI{}
			_, err := New(api, testLogger).Create(context.Background(), 1, tt.draft)
			require.Error(t, err)

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.True(t, errors.Is(err, apperror.ErrValidation))
			assert.Equal(t, tt.wantField, appErr.Field)
			assert.Empty(t, api.reqs, "nothing is sent for invalid input")
		})
	}
}

func TestCreate_Convert(t *testing.T) {
	api := &echoAPI{resp: `{"id":5,"module_id":7,"type":"Pdf","order":1,"payload":{"filename":"lecture.pdf","size_bytes":900}}`}

	got, err := New(api, testLogger).Create(context.Background(), 7, model.ContentDraft{
		Type: model.ContentPDF, Text: "Newton's laws", Filename: "lecture", Order: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, model.PDFPayload{Filename: "lecture.pdf", SizeBytes: 900}, got.Payload)

	req := api.last()
	assert.Equal(t, "/modules/7/contents/convert", req.Path)
	assert.Equal(t, convertBody{Text: "Newton's laws", Filename: "lecture.pdf", Order: 1}, req.Body)
}

func TestCreate_ResponseVariantMismatch(t *testing.T) {
	api := &echoAPI{resp: `{"id":5,"module_id":7,"type":"Text","order":1,"payload":"oops"}`}

	_, err := New(api, testLogger).Create(context.Background(), 7, model.ContentDraft{Type: model.ContentPDF, Text: "x"})
	assert.True(t, errors.Is(err, apperror.ErrDecode))
}

func TestCreate_PropagatesRequestError(t *testing.T) {
	api := &echoAPI{err: apperror.RequestRejected(http.StatusForbidden, "not a collaborator")}

	_, err := New(api, testLogger).Create(context.Background(), 7, model.ContentDraft{Type: model.ContentText, Text: "x"})
	assert.True(t, errors.Is(err, apperror.ErrRejected))
}

func TestUpload_SendsMultipart(t *testing.T) {
	doc := newPDF(t, "Chapter 1")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/modules/3/contents/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, doc, data)
		assert.Equal(t, "4", r.FormValue("order"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id": 11, "module_id": 3, "type": "Pdf", "order": 4,
			"payload": map[string]any{"filename": hdr.Filename, "size_bytes": len(data)},
		})
	}))
	defer srv.Close()

	api, err := client.New(srv.URL, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "t"}), testLogger)
	require.NoError(t, err)

	got, err := New(api, testLogger).Create(context.Background(), 3, model.ContentDraft{
		Type:  model.ContentPDF,
		Order: 4,
		File:  &model.Upload{Filename: "chapter1.pdf", Data: doc},
	})
	require.NoError(t, err)
	assert.Equal(t, model.PDFPayload{Filename: "chapter1.pdf", SizeBytes: int64(len(doc))}, got.Payload)
}

func TestUpdate(t *testing.T) {
	api := &echoAPI{}
	c := New(api, testLogger)

	got, err := c.Update(context.Background(), 7, 42, model.ContentDraft{Type: model.ContentText, Text: "v2", Order: 9})
	require.NoError(t, err)
	assert.Equal(t, model.TextPayload{Body: "v2"}, got.Payload)
	assert.Equal(t, http.MethodPut, api.last().Method)
	assert.Equal(t, "/modules/7/contents/42", api.last().Path)

	_, err = c.Update(context.Background(), 7, 42, model.ContentDraft{Type: model.ContentPDF, Text: "x"})
	assert.True(t, errors.Is(err, apperror.ErrUnsupported))
	assert.Len(t, api.reqs, 1)
}

func TestPDFFilename(t *testing.T) {
	assert.Equal(t, "notes.pdf", PDFFilename(" "))
	assert.Equal(t, "week1.pdf", PDFFilename("week1"))
	assert.Equal(t, "Week1.PDF", PDFFilename("Week1.PDF"))
}

// newPDF renders text into a real PDF document.
func newPDF(t *testing.T, text string) []byte {
	t.Helper()
	data, err := pdfinfo.FromText(text)
	require.NoError(t, err)
	return data
}
