package service

import (
	"context"

	"github.com/sakif/studydeck/internal/apperror"
	"github.com/sakif/studydeck/internal/codec"
	"github.com/sakif/studydeck/internal/model"
	"github.com/sakif/studydeck/internal/repository"
)

func (c *Controller) deckScope() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deck == nil {
		return 0, apperror.ValidationFailed("deck", "select a deck first")
	}
	return c.deck.ID, nil
}

func (c *Controller) moduleScope() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.module == nil {
		return 0, apperror.ValidationFailed("module", "open a module first")
	}
	return c.module.ID, nil
}

// =========================================================================
// DECKS
// =========================================================================

func (c *Controller) CreateDeck(ctx context.Context, d model.DeckDraft) (model.Deck, error) {
	return c.Decks.Create(ctx, repository.RootScope, d)
}

func (c *Controller) UpdateDeck(ctx context.Context, id int64, d model.DeckDraft) (model.Deck, error) {
	deck, err := c.Decks.Update(ctx, id, d)
	if err != nil {
		return model.Deck{}, err
	}
	c.mu.Lock()
	if c.deck != nil && c.deck.ID == id {
		c.deck = &deck
	}
	c.mu.Unlock()
	return deck, nil
}

// RefreshDeck re-reads the selected deck from the remote.
func (c *Controller) RefreshDeck(ctx context.Context) (model.Deck, error) {
	id, err := c.deckScope()
	if err != nil {
		return model.Deck{}, err
	}
	deck, err := c.decks.Get(ctx, id)
	if err != nil {
		return model.Deck{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deck == nil || c.deck.ID != id {
		return model.Deck{}, apperror.StaleScope(KindDeck, id)
	}
	c.deck = &deck
	return deck, nil
}

// DeleteDeck deletes deck id. Deleting the selected deck leaves it.
func (c *Controller) DeleteDeck(ctx context.Context, id int64) error {
	if err := c.Decks.Delete(ctx, id); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deck != nil && c.deck.ID == id {
		c.clearDeckLocked()
	}
	return nil
}

// =========================================================================
// DECK CHILDREN
// =========================================================================

func (c *Controller) AddCard(ctx context.Context, d model.CardDraft) (model.Card, error) {
	scope, err := c.deckScope()
	if err != nil {
		return model.Card{}, err
	}
	return c.Cards.Create(ctx, scope, d)
}

func (c *Controller) UpdateCard(ctx context.Context, id int64, d model.CardDraft) (model.Card, error) {
	return c.Cards.Update(ctx, id, d)
}

func (c *Controller) DeleteCard(ctx context.Context, id int64) error {
	return c.Cards.Delete(ctx, id)
}

func (c *Controller) AddCollaborator(ctx context.Context, userID int64) (model.Collaborator, error) {
	scope, err := c.deckScope()
	if err != nil {
		return model.Collaborator{}, err
	}
	return c.Collaborators.Create(ctx, scope, model.CollaboratorDraft{DeckID: scope, UserID: userID})
}

// RemoveCollaborator removes the collaborator entry of userID from the selected deck.
func (c *Controller) RemoveCollaborator(ctx context.Context, userID int64) error {
	for _, collab := range c.Collaborators.Items() {
		if collab.UserID == userID {
			return c.Collaborators.Delete(ctx, collab.ID)
		}
	}
	return apperror.NotFound("collaborator with user", userID)
}

func (c *Controller) AddModule(ctx context.Context, d model.ModuleDraft) (model.Module, error) {
	scope, err := c.deckScope()
	if err != nil {
		return model.Module{}, err
	}
	return c.Modules.Create(ctx, scope, d)
}

func (c *Controller) UpdateModule(ctx context.Context, id int64, d model.ModuleDraft) (model.Module, error) {
	mod, err := c.Modules.Update(ctx, id, d)
	if err != nil {
		return model.Module{}, err
	}
	c.mu.Lock()
	if c.module != nil && c.module.ID == id {
		c.module = &mod
	}
	c.mu.Unlock()
	return mod, nil
}

// DeleteModule deletes module id. Deleting the open module closes it.
func (c *Controller) DeleteModule(ctx context.Context, id int64) error {
	if err := c.Modules.Delete(ctx, id); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.module != nil && c.module.ID == id {
		c.clearModuleLocked()
	}
	return nil
}

// =========================================================================
// MODULE CHILDREN
// =========================================================================

func (c *Controller) AddContent(ctx context.Context, d model.ContentDraft) (model.Content, error) {
	scope, err := c.moduleScope()
	if err != nil {
		return model.Content{}, err
	}
	return c.Contents.Create(ctx, scope, d)
}

func (c *Controller) UpdateContent(ctx context.Context, id int64, d model.ContentDraft) (model.Content, error) {
	return c.Contents.Update(ctx, id, d)
}

// DeleteContent deletes content id and closes its preview, whether it is open or
// still loading.
func (c *Controller) DeleteContent(ctx context.Context, id int64) error {
	if err := c.Contents.Delete(ctx, id); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.previewing == id {
		c.closePreviewLocked()
	}
	return nil
}

// EditContent returns a draft pre-populated from cached content id.
func (c *Controller) EditContent(id int64) (model.ContentDraft, error) {
	content, ok := c.Contents.Get(id)
	if !ok {
		return model.ContentDraft{}, apperror.NotFound(KindContent, id)
	}
	return codec.EditFields(content)
}

func (c *Controller) AddQuestion(ctx context.Context, d model.QuestionDraft) (model.Question, error) {
	scope, err := c.moduleScope()
	if err != nil {
		return model.Question{}, err
	}
	return c.Questions.Create(ctx, scope, d)
}

func (c *Controller) UpdateQuestion(ctx context.Context, id int64, d model.QuestionDraft) (model.Question, error) {
	return c.Questions.Update(ctx, id, d)
}

func (c *Controller) DeleteQuestion(ctx context.Context, id int64) error {
	return c.Questions.Delete(ctx, id)
}

// SortedContents is the open module's content in display order.
func (c *Controller) SortedContents() []model.Content {
	return c.Contents.Sorted(func(x model.Content) int { return x.Order })
}

// SortedQuestions is the open module's questions in display order.
func (c *Controller) SortedQuestions() []model.Question {
	return c.Questions.Sorted(func(q model.Question) int { return q.Order })
}
