package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/studydeck/internal/apperror"
	"github.com/sakif/studydeck/internal/client"
	"github.com/sakif/studydeck/internal/model"
)

// fakeAPI answers every request with resp and records what was asked.
type fakeAPI struct {
	reqs  []client.Request
	paths []string
	resp  string
	bytes []byte
}

func (f *fakeAPI) JSON(_ context.Context, req client.Request, out any) error {
	f.reqs = append(f.reqs, req)
	if out == nil || f.resp == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(f.resp), out); err != nil {
		return apperror.DecodeFailure("response", err)
	}
	return nil
}

func (f *fakeAPI) Bytes(_ context.Context, path string) ([]byte, error) {
	f.paths = append(f.paths, path)
	return f.bytes, nil
}

func (f *fakeAPI) last() client.Request { return f.reqs[len(f.reqs)-1] }

func newBackends(api *fakeAPI) *Backends {
	return New(api, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPaths(t *testing.T) {
	api := &fakeAPI{resp: `{}`}
	b := newBackends(api)
	ctx := context.Background()

	tests := []struct {
		name   string
		call   func() error
		method string
		path   string
	}{
		{"list decks", func() error { _, err := b.Decks.List(ctx, 0); return err }, http.MethodGet, "/decks/"},
		{"get deck", func() error { _, err := b.Decks.Get(ctx, 4); return err }, http.MethodGet, "/decks/4"},
		{"delete deck", func() error { return b.Decks.Delete(ctx, 0, model.Deck{ID: 4}) }, http.MethodDelete, "/decks/4"},
		{"update card", func() error {
			_, err := b.Cards.Update(ctx, 4, 9, model.CardDraft{FrontContent: "f", BackContent: "b"})
			return err
		}, http.MethodPut, "/decks/4/cards/9"},
		{"remove collaborator by user id", func() error {
			return b.Collaborators.Delete(ctx, 4, model.Collaborator{ID: 1, UserID: 77})
		}, http.MethodDelete, "/decks/4/collaborators/77"},
		{"create module", func() error { _, err := b.Modules.Create(ctx, 4, model.ModuleDraft{Title: "Ch 1"}); return err }, http.MethodPost, "/decks/4/modules"},
		{"delete content", func() error { return b.Contents.Delete(ctx, 6, model.Content{ID: 2}) }, http.MethodDelete, "/modules/6/contents/2"},
		{"preview", func() error { _, err := b.Contents.Preview(ctx, 6, 2); return err }, http.MethodGet, "/modules/6/contents/2/preview"},
		{"delete question", func() error { return b.Questions.Delete(ctx, 6, model.Question{ID: 3}) }, http.MethodDelete, "/modules/6/questions/3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api.resp = `{}`
			if tt.name == "list decks" {
				api.resp = `[]`
			}
			require.NoError(t, tt.call())
			assert.Equal(t, tt.method, api.last().Method)
			assert.Equal(t, tt.path, api.last().Path)
		})
	}
}

func TestBinaryPath(t *testing.T) {
	api := &fakeAPI{bytes: []byte("%PDF")}
	data, err := newBackends(api).Contents.Binary(context.Background(), 6, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), data)
	assert.Equal(t, []string{"/modules/6/contents/2/binary"}, api.paths)
}

func TestList_NullIsEmpty(t *testing.T) {
	api := &fakeAPI{resp: `null`}
	cards, err := newBackends(api).Cards.List(context.Background(), 1)
	require.NoError(t, err)
	assert.NotNil(t, cards)
	assert.Empty(t, cards)
}

func TestDeckDraft_DefaultsAndValidation(t *testing.T) {
	api := &fakeAPI{resp: `{"id":1,"title":"Algebra","visibility":"private"}`}
	b := newBackends(api)

	_, err := b.Decks.Create(context.Background(), 0, model.DeckDraft{Title: "  Algebra "})
	require.NoError(t, err)
	sent := api.last().Body.(model.DeckDraft)
	assert.Equal(t, "Algebra", sent.Title)
	assert.Equal(t, model.VisibilityPrivate, sent.Visibility)

	n := len(api.reqs)
	_, err = b.Decks.Create(context.Background(), 0, model.DeckDraft{Title: "x", Visibility: "secret"})
	assert.True(t, errors.Is(err, apperror.ErrValidation))
	_, err = b.Decks.Update(context.Background(), 0, 1, model.DeckDraft{})
	assert.True(t, errors.Is(err, apperror.ErrValidation))
	assert.Len(t, api.reqs, n, "invalid drafts are not sent")
}

func TestCollaborators(t *testing.T) {
	api := &fakeAPI{resp: `{"id":3,"deck_id":4,"user_id":77}`}
	b := newBackends(api)

	c, err := b.Collaborators.Create(context.Background(), 4, model.CollaboratorDraft{UserID: 77})
	require.NoError(t, err)
	assert.Equal(t, int64(77), c.UserID)
	assert.Equal(t, model.CollaboratorDraft{DeckID: 4, UserID: 77}, api.last().Body)

	_, err = b.Collaborators.Create(context.Background(), 4, model.CollaboratorDraft{})
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	_, err = b.Collaborators.Update(context.Background(), 4, 3, model.CollaboratorDraft{UserID: 1})
	assert.True(t, errors.Is(err, apperror.ErrUnsupported))
}

func TestQuestions_DecodeStructuredFields(t *testing.T) {
	api := &fakeAPI{resp: `[
		{"id":1,"module_id":6,"type":"MultipleChoice","text":"2+2?","options":"[\"3\",\"4\"]","correct_answer":"\"4\"","order":0},
		{"id":2,"module_id":6,"type":"Flashcard","text":"H2O","options":null,"correct_answer":null,"order":1}
	]`}

	qs, err := newBackends(api).Questions.List(context.Background(), 6)
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.JSONEq(t, `["3","4"]`, string(qs[0].Options))
	assert.Nil(t, qs[1].Options)
}

func TestQuestions_InvalidStructuredFieldIsDecodeFailure(t *testing.T) {
	api := &fakeAPI{resp: `[{"id":1,"type":"MatchFollowing","text":"pair","options":"{\"a\":","order":0}]`}

	_, err := newBackends(api).Questions.List(context.Background(), 6)
	assert.True(t, errors.Is(err, apperror.ErrDecode))
}
