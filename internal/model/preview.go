package model

import "encoding/json"

// PreviewKind is how a Content should be shown in a preview session.
type PreviewKind string

const (
	PreviewText    PreviewKind = "text"
	PreviewPDF     PreviewKind = "pdf"
	PreviewYouTube PreviewKind = "youtube"
	PreviewUnknown PreviewKind = "unknown"
)

// PreviewDescriptor is returned by the preview endpoint. For pdf the bytes are
// fetched by a second request.
type PreviewDescriptor struct {
	ContentID int64       `json:"content_id"`
	Kind      PreviewKind `json:"kind"`
	Text      string      `json:"text,omitempty"`
	URL       string      `json:"url,omitempty"`
	Filename  string      `json:"filename,omitempty"`
}

// UnmarshalJSON maps any kind the client does not know to PreviewUnknown.
func (d *PreviewDescriptor) UnmarshalJSON(data []byte) error {
	type plain PreviewDescriptor
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	switch p.Kind {
	case PreviewText, PreviewPDF, PreviewYouTube:
	default:
		p.Kind = PreviewUnknown
	}
	*d = PreviewDescriptor(p)
	return nil
}
