package remote

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sakif/studydeck/internal/apperror"
	"github.com/sakif/studydeck/internal/model"
)

// Decks is the root collection. The scope argument is ignored.
type Decks struct{ api API }

func (d *Decks) List(ctx context.Context, _ int64) ([]model.Deck, error) {
	return list[model.Deck](ctx, d.api, "/decks/")
}

// Get fetches one deck.
func (d *Decks) Get(ctx context.Context, id int64) (model.Deck, error) {
	return send[model.Deck](ctx, d.api, http.MethodGet, deckPath(id), nil)
}

func (d *Decks) Create(ctx context.Context, _ int64, draft model.DeckDraft) (model.Deck, error) {
	draft, err := normalizeDeckDraft(draft)
	if err != nil {
		return model.Deck{}, err
	}
	return send[model.Deck](ctx, d.api, http.MethodPost, "/decks/", draft)
}

func (d *Decks) Update(ctx context.Context, _ int64, id int64, patch model.DeckDraft) (model.Deck, error) {
	patch, err := normalizeDeckDraft(patch)
	if err != nil {
		return model.Deck{}, err
	}
	return send[model.Deck](ctx, d.api, http.MethodPut, deckPath(id), patch)
}

func (d *Decks) Delete(ctx context.Context, _ int64, deck model.Deck) error {
	return del(ctx, d.api, deckPath(deck.ID))
}

// normalizeDeckDraft trims the title and defaults visibility to private.
func normalizeDeckDraft(d model.DeckDraft) (model.DeckDraft, error) {
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		return d, apperror.ValidationFailed("title", "deck title is required")
	}
	if d.Visibility == "" {
		d.Visibility = model.VisibilityPrivate
	}
	if !d.Visibility.Valid() {
		return d, apperror.ValidationFailed("visibility",
			fmt.Sprintf("visibility must be %q or %q", model.VisibilityPrivate, model.VisibilityPublic))
	}
	return d, nil
}

type Cards struct{ api API }

func cardsPath(deckID int64) string { return deckPath(deckID) + "/cards" }

func (c *Cards) List(ctx context.Context, deckID int64) ([]model.Card, error) {
	return list[model.Card](ctx, c.api, cardsPath(deckID))
}

func (c *Cards) Create(ctx context.Context, deckID int64, draft model.CardDraft) (model.Card, error) {
	if err := validateCard(draft); err != nil {
		return model.Card{}, err
	}
	return send[model.Card](ctx, c.api, http.MethodPost, cardsPath(deckID), draft)
}

func (c *Cards) Update(ctx context.Context, deckID, id int64, patch model.CardDraft) (model.Card, error) {
	if err := validateCard(patch); err != nil {
		return model.Card{}, err
	}
	return send[model.Card](ctx, c.api, http.MethodPut, fmt.Sprintf("%s/%d", cardsPath(deckID), id), patch)
}

func (c *Cards) Delete(ctx context.Context, deckID int64, card model.Card) error {
	return del(ctx, c.api, fmt.Sprintf("%s/%d", cardsPath(deckID), card.ID))
}

func validateCard(d model.CardDraft) error {
	if strings.TrimSpace(d.FrontContent) == "" {
		return apperror.ValidationFailed("front_content", "card front is required")
	}
	if strings.TrimSpace(d.BackContent) == "" {
		return apperror.ValidationFailed("back_content", "card back is required")
	}
	return nil
}

// Collaborators has no update; removal is addressed by user id.
type Collaborators struct{ api API }

func collaboratorsPath(deckID int64) string { return deckPath(deckID) + "/collaborators" }

func (c *Collaborators) List(ctx context.Context, deckID int64) ([]model.Collaborator, error) {
	return list[model.Collaborator](ctx, c.api, collaboratorsPath(deckID))
}

func (c *Collaborators) Create(ctx context.Context, deckID int64, draft model.CollaboratorDraft) (model.Collaborator, error) {
	if draft.UserID <= 0 {
		return model.Collaborator{}, apperror.ValidationFailed("user_id", "a user id is required")
	}
	draft.DeckID = deckID
	return send[model.Collaborator](ctx, c.api, http.MethodPost, collaboratorsPath(deckID), draft)
}

func (c *Collaborators) Update(context.Context, int64, int64, model.CollaboratorDraft) (model.Collaborator, error) {
	return model.Collaborator{}, apperror.Unsupported("collaborators cannot be edited; remove and add them instead")
}

func (c *Collaborators) Delete(ctx context.Context, deckID int64, collab model.Collaborator) error {
	return del(ctx, c.api, fmt.Sprintf("%s/%d", collaboratorsPath(deckID), collab.UserID))
}

type Modules struct{ api API }

func modulesPath(deckID int64) string { return deckPath(deckID) + "/modules" }

func (m *Modules) List(ctx context.Context, deckID int64) ([]model.Module, error) {
	return list[model.Module](ctx, m.api, modulesPath(deckID))
}

func (m *Modules) Create(ctx context.Context, deckID int64, draft model.ModuleDraft) (model.Module, error) {
	draft.Title = strings.TrimSpace(draft.Title)
	if draft.Title == "" {
		return model.Module{}, apperror.ValidationFailed("title", "module title is required")
	}
	return send[model.Module](ctx, m.api, http.MethodPost, modulesPath(deckID), draft)
}

func (m *Modules) Update(ctx context.Context, deckID, id int64, patch model.ModuleDraft) (model.Module, error) {
	patch.Title = strings.TrimSpace(patch.Title)
	if patch.Title == "" {
		return model.Module{}, apperror.ValidationFailed("title", "module title is required")
	}
	return send[model.Module](ctx, m.api, http.MethodPut, fmt.Sprintf("%s/%d", modulesPath(deckID), id), patch)
}

func (m *Modules) Delete(ctx context.Context, deckID int64, mod model.Module) error {
	return del(ctx, m.api, fmt.Sprintf("%s/%d", modulesPath(deckID), mod.ID))
}
