package fakeremote

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/sakif/studydeck/internal/codec"
	"github.com/sakif/studydeck/internal/model"
	"github.com/sakif/studydeck/internal/pdfinfo"
)

// =========================================================================
// CONTENTS
// =========================================================================

type contentBody struct {
	Type    model.ContentType `json:"type"`
	Payload json.RawMessage   `json:"payload"`
	Order   int               `json:"order"`
}

// payload decodes the JSON variants. Pdf bytes only arrive through upload or convert.
func (b contentBody) payload() (model.Payload, error) {
	switch b.Type {
	case model.ContentText, model.ContentYouTube:
	case model.ContentPDF:
		return nil, fail(http.StatusBadRequest, "Pdf content must be uploaded or converted")
	default:
		return nil, invalid(fmt.Sprintf("unknown content type %q", b.Type))
	}
	p, err := model.UnmarshalPayload(b.Type, b.Payload)
	if err != nil {
		return nil, invalid(err.Error())
	}
	return p, nil
}

type convertBody struct {
	Text     string `json:"text"`
	Filename string `json:"filename"`
	Order    int    `json:"order"`
}

type contentList []storedContent

func (l contentList) index(moduleID, contentID int64) int {
	return slices.IndexFunc(l, func(c storedContent) bool { return c.ID == contentID && c.ModuleID == moduleID })
}

func (s *Server) listContents(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mod, err := s.scopedModuleLocked(r, readAccess)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := []model.Content{}
	for _, c := range s.contents {
		if c.ModuleID == mod.ID {
			out = append(out, c.Content)
		}
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) createContent(w http.ResponseWriter, r *http.Request) {
	var body contentBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	p, err := body.payload()
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mod, err := s.scopedModuleLocked(r, writeAccess)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.addContentLocked(mod.ID, body.Order, p, nil))
}

// uploadContent accepts a multipart form with a "file" part and an optional
// "order" field.
func (s *Server) uploadContent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, invalid("request must be multipart/form-data"))
		return
	}
	order, err := formOrder(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, invalid("file is required"))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		s.writeError(w, fmt.Errorf("reading upload: %w", err))
		return
	}
	if pdfinfo.Validate(data) != nil {
		s.writeError(w, fail(http.StatusBadRequest, "Only PDF files are accepted"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mod, err := s.scopedModuleLocked(r, writeAccess)
	if err != nil {
		s.writeError(w, err)
		return
	}
	p := model.PDFPayload{Filename: hdr.Filename, SizeBytes: int64(len(data))}
	s.writeJSON(w, http.StatusOK, s.addContentLocked(mod.ID, order, p, data))
}

// convertContent renders plain text into a PDF and stores it as Pdf content.
func (s *Server) convertContent(w http.ResponseWriter, r *http.Request) {
	var body convertBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		s.writeError(w, invalid("text is required"))
		return
	}

	data, err := pdfinfo.FromText(body.Text)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mod, err := s.scopedModuleLocked(r, writeAccess)
	if err != nil {
		s.writeError(w, err)
		return
	}
	p := model.PDFPayload{Filename: codec.PDFFilename(body.Filename), SizeBytes: int64(len(data))}
	s.writeJSON(w, http.StatusOK, s.addContentLocked(mod.ID, body.Order, p, data))
}

func (s *Server) addContentLocked(moduleID int64, order int, p model.Payload, data []byte) model.Content {
	c := model.Content{
		ID:       s.nextID("content"),
		ModuleID: moduleID,
		Type:     p.ContentType(),
		Order:    order,
		Payload:  p,
	}
	s.contents = append(s.contents, storedContent{Content: c, data: data})
	return c
}

// updateContent replaces the payload. A Pdf may be replaced by a JSON variant, which
// drops its bytes.
func (s *Server) updateContent(w http.ResponseWriter, r *http.Request) {
	var body contentBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	p, err := body.payload()
	if err != nil {
		s.writeError(w, err)
		return
	}
	contentID, err := pathID(r, "contentID")
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mod, err := s.scopedModuleLocked(r, writeAccess)
	if err != nil {
		s.writeError(w, err)
		return
	}
	i := contentList(s.contents).index(mod.ID, contentID)
	if i < 0 {
		s.writeError(w, fail(http.StatusNotFound, "Content not found"))
		return
	}

	c := &s.contents[i]
	c.Type = p.ContentType()
	c.Order = body.Order
	c.Payload = p
	c.data = nil
	s.writeJSON(w, http.StatusOK, c.Content)
}

func (s *Server) deleteContent(w http.ResponseWriter, r *http.Request) {
	contentID, err := pathID(r, "contentID")
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mod, err := s.scopedModuleLocked(r, writeAccess)
	if err != nil {
		s.writeError(w, err)
		return
	}
	i := contentList(s.contents).index(mod.ID, contentID)
	if i < 0 {
		s.writeError(w, fail(http.StatusNotFound, "Content not found"))
		return
	}
	s.contents = slices.Delete(s.contents, i, i+1)
	s.writeJSON(w, http.StatusOK, messageBody{Message: "Content deleted successfully"})
}

// findContentLocked resolves the module and content of the request for reading.
func (s *Server) findContentLocked(r *http.Request) (storedContent, error) {
	contentID, err := pathID(r, "contentID")
	if err != nil {
		return storedContent{}, err
	}
	mod, err := s.scopedModuleLocked(r, readAccess)
	if err != nil {
		return storedContent{}, err
	}
	i := contentList(s.contents).index(mod.ID, contentID)
	if i < 0 {
		return storedContent{}, fail(http.StatusNotFound, "Content not found")
	}
	return s.contents[i], nil
}

func (s *Server) contentBinary(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	c, err := s.findContentLocked(r)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if len(c.data) == 0 {
		s.writeError(w, fail(http.StatusNotFound, "Content has no binary data"))
		return
	}

	filename := "content.pdf"
	if p, ok := c.Payload.(model.PDFPayload); ok && p.Filename != "" {
		filename = p.Filename
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Length", strconv.Itoa(len(c.data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	io.Copy(w, bytes.NewReader(c.data))
}

func (s *Server) contentPreview(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	c, err := s.findContentLocked(r)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, err)
		return
	}

	d := model.PreviewDescriptor{ContentID: c.ID}
	switch p := c.Payload.(type) {
	case model.TextPayload:
		d.Kind = model.PreviewText
		d.Text = p.Body
	case model.PDFPayload:
		d.Kind = model.PreviewPDF
		d.Filename = p.Filename
	case model.YouTubePayload:
		d.Kind = model.PreviewYouTube
		d.URL = p.URL
	default:
		s.writeError(w, fmt.Errorf("content %d has payload %T", c.ID, c.Payload))
		return
	}
	s.writeJSON(w, http.StatusOK, d)
}

func formOrder(r *http.Request) (int, error) {
	raw := r.FormValue("order")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalid("order must be an integer")
	}
	return n, nil
}

// =========================================================================
// QUESTIONS
// =========================================================================

type questionBody struct {
	Type          model.QuestionType `json:"type"`
	Text          string             `json:"text"`
	Options       json.RawMessage    `json:"options"`
	CorrectAnswer json.RawMessage    `json:"correct_answer"`
	Order         int                `json:"order"`
}

func (b questionBody) validate() error {
	if !b.Type.Valid() {
		return invalid(fmt.Sprintf("unknown question type %q", b.Type))
	}
	if strings.TrimSpace(b.Text) == "" {
		return invalid("text is required")
	}
	return nil
}

// textColumn stores arrays and objects the way a TEXT column hands them back: as a
// JSON string holding the encoded value. Clients decode it again. Scalars are kept.
func textColumn(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if !json.Valid(trimmed) {
		return nil, errors.New("not valid JSON")
	}
	if trimmed[0] != '[' && trimmed[0] != '{' {
		return trimmed, nil
	}
	return json.Marshal(string(trimmed))
}

func (b questionBody) apply(q *model.Question) error {
	opts, err := textColumn(b.Options)
	if err != nil {
		return invalid("options: " + err.Error())
	}
	answer, err := textColumn(b.CorrectAnswer)
	if err != nil {
		return invalid("correct_answer: " + err.Error())
	}
	q.Type = b.Type
	q.Text = b.Text
	q.Options = opts
	q.CorrectAnswer = answer
	q.Order = b.Order
	return nil
}

func (s *Server) listQuestions(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mod, err := s.scopedModuleLocked(r, readAccess)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := []model.Question{}
	for _, q := range s.questions {
		if q.ModuleID == mod.ID {
			out = append(out, q)
		}
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) createQuestion(w http.ResponseWriter, r *http.Request) {
	var body questionBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if err := body.validate(); err != nil {
		s.writeError(w, err)
		return
	}
	var q model.Question
	if err := body.apply(&q); err != nil {
		s.writeError(w, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mod, err := s.scopedModuleLocked(r, writeAccess)
	if err != nil {
		s.writeError(w, err)
		return
	}
	q.ID = s.nextID("question")
	q.ModuleID = mod.ID
	s.questions = append(s.questions, q)
	s.writeJSON(w, http.StatusOK, q)
}

func (s *Server) updateQuestion(w http.ResponseWriter, r *http.Request) {
	var body questionBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if err := body.validate(); err != nil {
		s.writeError(w, err)
		return
	}
	questionID, err := pathID(r, "questionID")
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mod, err := s.scopedModuleLocked(r, writeAccess)
	if err != nil {
		s.writeError(w, err)
		return
	}
	i := slices.IndexFunc(s.questions, func(q model.Question) bool { return q.ID == questionID && q.ModuleID == mod.ID })
	if i < 0 {
		s.writeError(w, fail(http.StatusNotFound, "Question not found"))
		return
	}
	if err := body.apply(&s.questions[i]); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.questions[i])
}

func (s *Server) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	questionID, err := pathID(r, "questionID")
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mod, err := s.scopedModuleLocked(r, writeAccess)
	if err != nil {
		s.writeError(w, err)
		return
	}
	i := slices.IndexFunc(s.questions, func(q model.Question) bool { return q.ID == questionID && q.ModuleID == mod.ID })
	if i < 0 {
		s.writeError(w, fail(http.StatusNotFound, "Question not found"))
		return
	}
	s.questions = slices.Delete(s.questions, i, i+1)
	s.writeJSON(w, http.StatusOK, messageBody{Message: "Question deleted successfully"})
}
