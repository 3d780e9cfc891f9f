package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sakif/studydeck/internal/apperror"
	"github.com/sakif/studydeck/internal/model"
)

// NormalizeQuestion decodes the structured fields of a stored question. The remote
// may send options and correct_answer either as JSON or as a string holding JSON;
// a string that opens with '[' or '{' must parse, any other string is kept as a
// plain JSON string value.
func NormalizeQuestion(q model.Question) (model.Question, error) {
	var err error
	if q.Options, err = structured(q.Options); err != nil {
		return model.Question{}, apperror.DecodeFailure(fmt.Sprintf("options of question %d", q.ID), err)
	}
	if q.CorrectAnswer, err = structured(q.CorrectAnswer); err != nil {
		return model.Question{}, apperror.DecodeFailure(fmt.Sprintf("correct_answer of question %d", q.ID), err)
	}
	return q, nil
}

// ValidateQuestionDraft checks a draft before it is sent.
func ValidateQuestionDraft(d model.QuestionDraft) error {
	if !d.Type.Valid() {
		return apperror.ValidationFailed("type", fmt.Sprintf("unknown question type %q", d.Type))
	}
	if strings.TrimSpace(d.Text) == "" {
		return apperror.ValidationFailed("text", "question text is required")
	}
	if _, err := structured(d.Options); err != nil {
		return apperror.ValidationFailed("options", fmt.Sprintf("options are not valid JSON: %v", err))
	}
	if _, err := structured(d.CorrectAnswer); err != nil {
		return apperror.ValidationFailed("correct_answer", fmt.Sprintf("correct answer is not valid JSON: %v", err))
	}
	return nil
}

func structured(raw json.RawMessage) (json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("invalid JSON %q", truncate(raw))
	}
	if raw[0] != '"' {
		return raw, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	inner := strings.TrimSpace(s)
	if inner == "" {
		return nil, nil
	}
	if inner[0] != '[' && inner[0] != '{' {
		return raw, nil
	}
	if !json.Valid([]byte(inner)) {
		return nil, fmt.Errorf("invalid JSON %q", truncate([]byte(inner)))
	}
	return json.RawMessage(inner), nil
}

func truncate(b []byte) string {
	const max = 40
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}
