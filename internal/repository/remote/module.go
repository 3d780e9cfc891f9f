package remote

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sakif/studydeck/internal/codec"
	"github.com/sakif/studydeck/internal/model"
)

// Contents delegates create and update to the codec.
type Contents struct {
	api   API
	codec *codec.Codec
}

func (c *Contents) List(ctx context.Context, moduleID int64) ([]model.Content, error) {
	return list[model.Content](ctx, c.api, codec.ContentsPath(moduleID))
}

func (c *Contents) Create(ctx context.Context, moduleID int64, draft model.ContentDraft) (model.Content, error) {
	return c.codec.Create(ctx, moduleID, draft)
}

func (c *Contents) Update(ctx context.Context, moduleID, id int64, patch model.ContentDraft) (model.Content, error) {
	return c.codec.Update(ctx, moduleID, id, patch)
}

func (c *Contents) Delete(ctx context.Context, moduleID int64, content model.Content) error {
	return del(ctx, c.api, codec.ContentPath(moduleID, content.ID))
}

func (c *Contents) Preview(ctx context.Context, moduleID, contentID int64) (model.PreviewDescriptor, error) {
	return send[model.PreviewDescriptor](ctx, c.api, http.MethodGet, codec.ContentPath(moduleID, contentID)+"/preview", nil)
}

func (c *Contents) Binary(ctx context.Context, moduleID, contentID int64) ([]byte, error) {
	return c.api.Bytes(ctx, codec.ContentPath(moduleID, contentID)+"/binary")
}

// Questions decodes structured option and answer fields on every read.
type Questions struct{ api API }

func questionsPath(moduleID int64) string { return modulePath(moduleID) + "/questions" }

func (q *Questions) List(ctx context.Context, moduleID int64) ([]model.Question, error) {
	items, err := list[model.Question](ctx, q.api, questionsPath(moduleID))
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i], err = codec.NormalizeQuestion(items[i]); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (q *Questions) Create(ctx context.Context, moduleID int64, draft model.QuestionDraft) (model.Question, error) {
	if err := codec.ValidateQuestionDraft(draft); err != nil {
		return model.Question{}, err
	}
	out, err := send[model.Question](ctx, q.api, http.MethodPost, questionsPath(moduleID), draft)
	if err != nil {
		return model.Question{}, err
	}
	return codec.NormalizeQuestion(out)
}

func (q *Questions) Update(ctx context.Context, moduleID, id int64, patch model.QuestionDraft) (model.Question, error) {
	if err := codec.ValidateQuestionDraft(patch); err != nil {
		return model.Question{}, err
	}
	out, err := send[model.Question](ctx, q.api, http.MethodPut, fmt.Sprintf("%s/%d", questionsPath(moduleID), id), patch)
	if err != nil {
		return model.Question{}, err
	}
	return codec.NormalizeQuestion(out)
}

func (q *Questions) Delete(ctx context.Context, moduleID int64, question model.Question) error {
	return del(ctx, q.api, fmt.Sprintf("%s/%d", questionsPath(moduleID), question.ID))
}
