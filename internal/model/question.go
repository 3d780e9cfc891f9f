package model

import "encoding/json"

type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "MultipleChoice"
	QuestionFillBlank      QuestionType = "FillBlank"
	QuestionFlashcard      QuestionType = "Flashcard"
	QuestionMatchFollowing QuestionType = "MatchFollowing"
)

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionMultipleChoice, QuestionFillBlank, QuestionFlashcard, QuestionMatchFollowing:
		return true
	}
	return false
}

// Question is one ordered question of a Module. Options and CorrectAnswer hold
// structured JSON or are nil.
type Question struct {
	ID            int64           `json:"id"`
	ModuleID      int64           `json:"module_id"`
	Type          QuestionType    `json:"type"`
	Text          string          `json:"text"`
	Options       json.RawMessage `json:"options"`
	CorrectAnswer json.RawMessage `json:"correct_answer"`
	Order         int             `json:"order"`
}

func (q Question) EntityID() int64 { return q.ID }

type QuestionDraft struct {
	Type          QuestionType    `json:"type"`
	Text          string          `json:"text"`
	Options       json.RawMessage `json:"options"`
	CorrectAnswer json.RawMessage `json:"correct_answer"`
	Order         int             `json:"order"`
}
