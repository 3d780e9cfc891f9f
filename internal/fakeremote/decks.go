package fakeremote

import (
	"net/http"
	"slices"
	"strings"

	"github.com/sakif/studydeck/internal/model"
)

// =========================================================================
// DECKS
// =========================================================================

type deckBody struct {
	Title       string           `json:"title"`
	Description *string          `json:"description"`
	Visibility  model.Visibility `json:"visibility"`
}

func (b *deckBody) validate() error {
	if strings.TrimSpace(b.Title) == "" {
		return invalid("title is required")
	}
	if b.Visibility == "" {
		b.Visibility = model.VisibilityPrivate
	}
	if !b.Visibility.Valid() {
		return invalid("visibility must be private or public")
	}
	return nil
}

// listDecks returns the caller's own decks, honouring skip and limit.
func (s *Server) listDecks(w http.ResponseWriter, r *http.Request) {
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		s.writeError(w, err)
		return
	}
	limit, err := queryInt(r, "limit", 100)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	userID, err := s.currentUserLocked(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := []model.Deck{}
	for _, d := range s.decks {
		if d.OwnerID == userID {
			out = append(out, d)
		}
	}
	out = out[min(skip, len(out)):]
	out = out[:min(limit, len(out))]
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) createDeck(w http.ResponseWriter, r *http.Request) {
	var body deckBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if err := body.validate(); err != nil {
		s.writeError(w, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	userID, err := s.currentUserLocked(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	deck := model.Deck{
		ID:          s.nextID("deck"),
		Title:       body.Title,
		Description: body.Description,
		Visibility:  body.Visibility,
		OwnerID:     userID,
		CreatedAt:   s.now(),
	}
	s.decks = append(s.decks, deck)
	s.writeJSON(w, http.StatusOK, deck)
}

func (s *Server) getDeck(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, deck, err := s.scopedDeckLocked(r, readAccess, "Not enough permissions to access this deck")
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, deck)
}

func (s *Server) updateDeck(w http.ResponseWriter, r *http.Request) {
	var body deckBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if err := body.validate(); err != nil {
		s.writeError(w, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, deck, err := s.scopedDeckLocked(r, ownerAccess, "Not enough permissions to update this deck")
	if err != nil {
		s.writeError(w, err)
		return
	}

	now := s.now()
	deck.Title = body.Title
	deck.Description = body.Description
	deck.Visibility = body.Visibility
	deck.UpdatedAt = &now
	s.writeJSON(w, http.StatusOK, deck)
}

// deleteDeck removes the deck and everything that hangs off it.
func (s *Server) deleteDeck(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, deck, err := s.scopedDeckLocked(r, ownerAccess, "Not enough permissions to delete this deck")
	if err != nil {
		s.writeError(w, err)
		return
	}

	deckID := deck.ID
	s.cards = slices.DeleteFunc(s.cards, func(c model.Card) bool { return c.DeckID == deckID })
	s.collaborators = slices.DeleteFunc(s.collaborators, func(c model.Collaborator) bool { return c.DeckID == deckID })
	for _, m := range s.modules {
		if m.DeckID == deckID {
			s.deleteModuleChildrenLocked(m.ID)
		}
	}
	s.modules = slices.DeleteFunc(s.modules, func(m model.Module) bool { return m.DeckID == deckID })
	s.decks = slices.DeleteFunc(s.decks, func(d model.Deck) bool { return d.ID == deckID })

	s.writeJSON(w, http.StatusOK, messageBody{Message: "Deck deleted successfully"})
}

// =========================================================================
// CARDS
// =========================================================================

type cardBody struct {
	FrontContent string `json:"front_content"`
	BackContent  string `json:"back_content"`
}

func (b cardBody) validate() error {
	if strings.TrimSpace(b.FrontContent) == "" || strings.TrimSpace(b.BackContent) == "" {
		return invalid("front_content and back_content are required")
	}
	return nil
}

func (s *Server) listCards(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, deck, err := s.scopedDeckLocked(r, readAccess, "Not enough permissions to access this deck")
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := []model.Card{}
	for _, c := range s.cards {
		if c.DeckID == deck.ID {
			out = append(out, c)
		}
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) createCard(w http.ResponseWriter, r *http.Request) {
	var body cardBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if err := body.validate(); err != nil {
		s.writeError(w, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, deck, err := s.scopedDeckLocked(r, writeAccess, "Not enough permissions to add cards to this deck")
	if err != nil {
		s.writeError(w, err)
		return
	}

	now := s.now()
	card := model.Card{
		ID:           s.nextID("card"),
		DeckID:       deck.ID,
		FrontContent: body.FrontContent,
		BackContent:  body.BackContent,
		CreatedAt:    now,
		UpdatedAt:    &now,
	}
	s.cards = append(s.cards, card)
	s.writeJSON(w, http.StatusOK, card)
}

func (s *Server) updateCard(w http.ResponseWriter, r *http.Request) {
	var body cardBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if err := body.validate(); err != nil {
		s.writeError(w, err)
		return
	}
	cardID, err := pathID(r, "cardID")
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, deck, err := s.scopedDeckLocked(r, writeAccess, "Not enough permissions to update cards in this deck")
	if err != nil {
		s.writeError(w, err)
		return
	}

	i := slices.IndexFunc(s.cards, func(c model.Card) bool { return c.ID == cardID && c.DeckID == deck.ID })
	if i < 0 {
		s.writeError(w, fail(http.StatusNotFound, "Card not found"))
		return
	}
	now := s.now()
	s.cards[i].FrontContent = body.FrontContent
	s.cards[i].BackContent = body.BackContent
	s.cards[i].UpdatedAt = &now
	s.writeJSON(w, http.StatusOK, s.cards[i])
}

func (s *Server) deleteCard(w http.ResponseWriter, r *http.Request) {
	cardID, err := pathID(r, "cardID")
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, deck, err := s.scopedDeckLocked(r, writeAccess, "Not enough permissions to delete cards from this deck")
	if err != nil {
		s.writeError(w, err)
		return
	}

	i := slices.IndexFunc(s.cards, func(c model.Card) bool { return c.ID == cardID && c.DeckID == deck.ID })
	if i < 0 {
		s.writeError(w, fail(http.StatusNotFound, "Card not found"))
		return
	}
	s.cards = slices.Delete(s.cards, i, i+1)
	s.writeJSON(w, http.StatusOK, messageBody{Message: "Card deleted successfully"})
}

// =========================================================================
// COLLABORATORS
// =========================================================================

func (s *Server) listCollaborators(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, deck, err := s.scopedDeckLocked(r, writeAccess, "Not enough permissions to access this deck")
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := []model.Collaborator{}
	for _, c := range s.collaborators {
		if c.DeckID == deck.ID {
			out = append(out, c)
		}
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) addCollaborator(w http.ResponseWriter, r *http.Request) {
	var body model.CollaboratorDraft
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, deck, err := s.scopedDeckLocked(r, ownerAccess, "Only deck owners can add collaborators")
	if err != nil {
		s.writeError(w, err)
		return
	}
	if body.DeckID != 0 && body.DeckID != deck.ID {
		s.writeError(w, invalid("deck_id does not match the deck in the path"))
		return
	}
	if !s.userExistsLocked(body.UserID) {
		s.writeError(w, fail(http.StatusNotFound, "User not found"))
		return
	}
	if s.isCollaboratorLocked(deck.ID, body.UserID) {
		s.writeError(w, fail(http.StatusBadRequest, "User is already a collaborator"))
		return
	}

	c := model.Collaborator{
		ID:        s.nextID("collaborator"),
		DeckID:    deck.ID,
		UserID:    body.UserID,
		CreatedAt: s.now(),
	}
	s.collaborators = append(s.collaborators, c)
	s.writeJSON(w, http.StatusOK, c)
}

func (s *Server) removeCollaborator(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, deck, err := s.scopedDeckLocked(r, ownerAccess, "Only deck owners can remove collaborators")
	if err != nil {
		s.writeError(w, err)
		return
	}

	i := slices.IndexFunc(s.collaborators, func(c model.Collaborator) bool {
		return c.DeckID == deck.ID && c.UserID == userID
	})
	if i < 0 {
		s.writeError(w, fail(http.StatusNotFound, "Collaborator not found"))
		return
	}
	s.collaborators = slices.Delete(s.collaborators, i, i+1)
	s.writeJSON(w, http.StatusOK, messageBody{Message: "Collaborator removed successfully"})
}

func (s *Server) userExistsLocked(id int64) bool {
	for _, uid := range s.users {
		if uid == id {
			return true
		}
	}
	return false
}

// =========================================================================
// MODULES
// =========================================================================

type moduleBody struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
}

func (s *Server) listModules(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, deck, err := s.scopedDeckLocked(r, readAccess, "Not enough permissions to access this deck")
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := []model.Module{}
	for _, m := range s.modules {
		if m.DeckID == deck.ID {
			out = append(out, m)
		}
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) createModule(w http.ResponseWriter, r *http.Request) {
	var body moduleBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if strings.TrimSpace(body.Title) == "" {
		s.writeError(w, invalid("title is required"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, deck, err := s.scopedDeckLocked(r, writeAccess, "Not enough permissions to add modules to this deck")
	if err != nil {
		s.writeError(w, err)
		return
	}

	m := model.Module{
		ID:          s.nextID("module"),
		DeckID:      deck.ID,
		Title:       body.Title,
		Description: body.Description,
	}
	s.modules = append(s.modules, m)
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) updateModule(w http.ResponseWriter, r *http.Request) {
	var body moduleBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if strings.TrimSpace(body.Title) == "" {
		s.writeError(w, invalid("title is required"))
		return
	}
	moduleID, err := pathID(r, "moduleID")
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, deck, err := s.scopedDeckLocked(r, writeAccess, "Not enough permissions to update modules in this deck")
	if err != nil {
		s.writeError(w, err)
		return
	}

	i := slices.IndexFunc(s.modules, func(m model.Module) bool { return m.ID == moduleID && m.DeckID == deck.ID })
	if i < 0 {
		s.writeError(w, fail(http.StatusNotFound, "Module not found"))
		return
	}
	s.modules[i].Title = body.Title
	s.modules[i].Description = body.Description
	s.writeJSON(w, http.StatusOK, s.modules[i])
}

func (s *Server) deleteModule(w http.ResponseWriter, r *http.Request) {
	moduleID, err := pathID(r, "moduleID")
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, deck, err := s.scopedDeckLocked(r, writeAccess, "Not enough permissions to delete modules from this deck")
	if err != nil {
		s.writeError(w, err)
		return
	}

	i := slices.IndexFunc(s.modules, func(m model.Module) bool { return m.ID == moduleID && m.DeckID == deck.ID })
	if i < 0 {
		s.writeError(w, fail(http.StatusNotFound, "Module not found"))
		return
	}
	s.deleteModuleChildrenLocked(moduleID)
	s.modules = slices.Delete(s.modules, i, i+1)
	s.writeJSON(w, http.StatusOK, messageBody{Message: "Module deleted successfully"})
}

func (s *Server) deleteModuleChildrenLocked(moduleID int64) {
	s.contents = slices.DeleteFunc(s.contents, func(c storedContent) bool { return c.ModuleID == moduleID })
	s.questions = slices.DeleteFunc(s.questions, func(q model.Question) bool { return q.ModuleID == moduleID })
}
