// Package remote implements repository.Collection for each entity kind on top of the
// REST resource service.
//
// Drafts are validated here, before any request is sent. Content goes through the
// codec because its request shape depends on the variant.
package remote

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sakif/studydeck/internal/client"
	"github.com/sakif/studydeck/internal/codec"
	"github.com/sakif/studydeck/internal/model"
	"github.com/sakif/studydeck/internal/repository"
)

// API is the part of *client.Client the collections use.
type API interface {
	JSON(ctx context.Context, req client.Request, out any) error
	Bytes(ctx context.Context, path string) ([]byte, error)
}

// Backends groups one collection per entity kind.
type Backends struct {
	Decks         *Decks
	Cards         *Cards
	Collaborators *Collaborators
	Modules       *Modules
	Contents      *Contents
	Questions     *Questions
}

func New(api API, logger *slog.Logger) *Backends {
	return &Backends{
		Decks:         &Decks{api: api},
		Cards:         &Cards{api: api},
		Collaborators: &Collaborators{api: api},
		Modules:       &Modules{api: api},
		Contents:      &Contents{api: api, codec: codec.New(api, logger)},
		Questions:     &Questions{api: api},
	}
}

var (
	_ repository.Collection[model.Deck, model.DeckDraft]                 = (*Decks)(nil)
	_ repository.Collection[model.Card, model.CardDraft]                 = (*Cards)(nil)
	_ repository.Collection[model.Collaborator, model.CollaboratorDraft] = (*Collaborators)(nil)
	_ repository.Collection[model.Module, model.ModuleDraft]             = (*Modules)(nil)
	_ repository.Collection[model.Content, model.ContentDraft]           = (*Contents)(nil)
	_ repository.Collection[model.Question, model.QuestionDraft]         = (*Questions)(nil)
	_ repository.Previewer                                               = (*Contents)(nil)
)

// list GETs path and decodes a JSON array. A null body is an empty list.
func list[T any](ctx context.Context, api API, path string) ([]T, error) {
	var out []T
	if err := api.JSON(ctx, client.Request{Method: http.MethodGet, Path: path}, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func send[T any](ctx context.Context, api API, method, path string, body any) (T, error) {
	var out T
	err := api.JSON(ctx, client.Request{Method: method, Path: path, Body: body}, &out)
	return out, err
}

func del(ctx context.Context, api API, path string) error {
	return api.JSON(ctx, client.Request{Method: http.MethodDelete, Path: path}, nil)
}

func deckPath(id int64) string { return fmt.Sprintf("/decks/%d", id) }

func modulePath(id int64) string { return fmt.Sprintf("/modules/%d", id) }
