package model

import (
	"encoding/json"
	"fmt"
)

// ContentType names a Content variant. It never changes after creation.
type ContentType string

const (
	ContentText    ContentType = "Text"
	ContentPDF     ContentType = "Pdf"
	ContentYouTube ContentType = "YouTube"
)

// Payload is the tagged union carried by a Content. The set of implementations is
// closed (TextPayload, PDFPayload, YouTubePayload); consumers switch on the concrete
// type and treat anything else as an error.
type Payload interface {
	ContentType() ContentType
	isPayload()
}

// TextPayload is a raw text body.
type TextPayload struct {
	Body string
}

// PDFPayload is metadata only; the bytes are fetched separately by content id.
type PDFPayload struct {
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
}

type YouTubePayload struct {
	URL string `json:"url"`
}

func (TextPayload) ContentType() ContentType    { return ContentText }
func (PDFPayload) ContentType() ContentType     { return ContentPDF }
func (YouTubePayload) ContentType() ContentType { return ContentYouTube }

func (TextPayload) isPayload()    {}
func (PDFPayload) isPayload()     {}
func (YouTubePayload) isPayload() {}

// Content is one ordered item of a Module.
//
// Order is user supplied; duplicates and gaps are allowed.
type Content struct {
	ID       int64
	ModuleID int64
	Type     ContentType
	Order    int
	Payload  Payload
}

func (c Content) EntityID() int64 { return c.ID }

// wireContent is the JSON shape of a Content record.
type wireContent struct {
	ID       int64           `json:"id"`
	ModuleID int64           `json:"module_id"`
	Type     ContentType     `json:"type"`
	Order    int             `json:"order"`
	Payload  json.RawMessage `json:"payload"`
}

// MarshalPayload encodes p in its wire form: a JSON string for Text, an object for
// Pdf and YouTube.
func MarshalPayload(p Payload) (json.RawMessage, error) {
	switch v := p.(type) {
	case TextPayload:
		return json.Marshal(v.Body)
	case PDFPayload:
		return json.Marshal(v)
	case YouTubePayload:
		return json.Marshal(v)
	case nil:
		return nil, fmt.Errorf("content payload is missing")
	default:
		return nil, fmt.Errorf("unknown content payload %T", p)
	}
}

// UnmarshalPayload decodes raw according to t.
func UnmarshalPayload(t ContentType, raw json.RawMessage) (Payload, error) {
	switch t {
	case ContentText:
		var body string
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("text payload: %w", err)
		}
		return TextPayload{Body: body}, nil
	case ContentPDF:
		var p PDFPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("pdf payload: %w", err)
		}
		return p, nil
	case ContentYouTube:
		var p YouTubePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("youtube payload: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown content type %q", t)
	}
}

func (c Content) MarshalJSON() ([]byte, error) {
	raw, err := MarshalPayload(c.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireContent{
		ID:       c.ID,
		ModuleID: c.ModuleID,
		Type:     c.Payload.ContentType(),
		Order:    c.Order,
		Payload:  raw,
	})
}

func (c *Content) UnmarshalJSON(data []byte) error {
	var w wireContent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	p, err := UnmarshalPayload(w.Type, w.Payload)
	if err != nil {
		return err
	}
	*c = Content{
		ID:       w.ID,
		ModuleID: w.ModuleID,
		Type:     w.Type,
		Order:    w.Order,
		Payload:  p,
	}
	return nil
}

// Upload is a user-selected file destined for the multipart upload endpoint.
type Upload struct {
	Filename string
	Data     []byte
}

// ContentDraft is the user input for creating or replacing a Content.
//
// Which fields matter depends on Type:
//
//	Text     Text
//	YouTube  URL
//	Pdf      File (binary upload) or, when File is nil, Text and Filename
//	         (server-side conversion)
type ContentDraft struct {
	Type     ContentType
	Order    int
	Text     string
	URL      string
	Filename string
	File     *Upload
}
