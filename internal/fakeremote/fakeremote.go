// Package fakeremote is an in-memory implementation of the study-content REST service.
//
// It backs cmd/devserver and the cross-package integration tests. Behaviour follows
// the production service closely enough for the client to be exercised end to end:
//
//   - every route needs "Authorization: Bearer <token>"; the token subject is an email
//     that must belong to a registered user
//   - errors are {"detail": "..."} bodies
//   - the owner and collaborators may read and write a deck's children; anyone may
//     read a public deck; only the owner may change or delete the deck itself or
//     manage its collaborators
//   - deleting a deck or module deletes everything below it
//
// State lives in memory and is lost on restart.
package fakeremote

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/studydeck/internal/auth"
	"github.com/sakif/studydeck/internal/middleware"
	"github.com/sakif/studydeck/internal/model"
)

const (
	maxJSONBytes   = 1 << 20
	maxUploadBytes = 32 << 20
)

// Server implements http.Handler.
type Server struct {
	router chi.Router
	tokens *auth.TokenService
	logger *slog.Logger
	now    func() time.Time

	mu            sync.Mutex
	seq           map[string]int64
	users         map[string]int64 // email -> user id
	decks         []model.Deck
	cards         []model.Card
	collaborators []model.Collaborator
	modules       []model.Module
	contents      []storedContent
	questions     []model.Question
}

// storedContent keeps the bytes of Pdf content next to its record.
type storedContent struct {
	model.Content
	data []byte
}

// New builds a Server with no users. Register users with AddUser before issuing
// tokens for them.
func New(tokens *auth.TokenService, logger *slog.Logger) *Server {
	s := &Server{
		tokens: tokens,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		seq:    make(map[string]int64),
		users:  make(map[string]int64),
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// AddUser registers email and returns its user id. Registering an existing email
// returns the id it already has.
func (s *Server) AddUser(email string) int64 {
	email = strings.ToLower(strings.TrimSpace(email))

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.users[email]; ok {
		return id
	}
	id := s.nextID("user")
	s.users[email] = id
	s.logger.Info("user registered", slog.String("email", email), slog.Int64("userID", id))
	return id
}

// Token registers email if needed and issues a bearer token for it.
func (s *Server) Token(email string, ttl time.Duration) (string, int64, error) {
	id := s.AddUser(email)
	tok, err := s.tokens.GenerateWithDuration(strings.ToLower(strings.TrimSpace(email)), ttl)
	if err != nil {
		return "", 0, err
	}
	return tok, id, nil
}

// routes wires every endpoint.
//
// MIDDLEWARE ORDER:
// RequestID first so the logger sees it (a client-sent X-Request-Id is kept), then
// the logger, then Recoverer so panics are logged as 500s, then bearer auth for the
// API group.
func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireBearer(s.tokens))

		r.Route("/decks", func(r chi.Router) {
			r.Get("/", s.listDecks)
			r.Post("/", s.createDeck)

			r.Route("/{deckID}", func(r chi.Router) {
				r.Get("/", s.getDeck)
				r.Put("/", s.updateDeck)
				r.Delete("/", s.deleteDeck)

				r.Get("/cards", s.listCards)
				r.Post("/cards", s.createCard)
				r.Put("/cards/{cardID}", s.updateCard)
				r.Delete("/cards/{cardID}", s.deleteCard)

				r.Get("/collaborators", s.listCollaborators)
				r.Post("/collaborators", s.addCollaborator)
				r.Delete("/collaborators/{userID}", s.removeCollaborator)

				r.Get("/modules", s.listModules)
				r.Post("/modules", s.createModule)
				r.Put("/modules/{moduleID}", s.updateModule)
				r.Delete("/modules/{moduleID}", s.deleteModule)
			})
		})

		r.Route("/modules/{moduleID}", func(r chi.Router) {
			r.Get("/contents", s.listContents)
			r.Post("/contents", s.createContent)
			r.Post("/contents/upload", s.uploadContent)
			r.Post("/contents/convert", s.convertContent)
			r.Put("/contents/{contentID}", s.updateContent)
			r.Delete("/contents/{contentID}", s.deleteContent)
			r.Get("/contents/{contentID}/binary", s.contentBinary)
			r.Get("/contents/{contentID}/preview", s.contentPreview)

			r.Get("/questions", s.listQuestions)
			r.Post("/questions", s.createQuestion)
			r.Put("/questions/{questionID}", s.updateQuestion)
			r.Delete("/questions/{questionID}", s.deleteQuestion)
		})
	})

	s.router = r
}

// nextID must be called with s.mu held.
func (s *Server) nextID(kind string) int64 {
	s.seq[kind]++
	return s.seq[kind]
}

// currentUserLocked resolves the authenticated email to a user id.
func (s *Server) currentUserLocked(r *http.Request) (int64, error) {
	email, ok := auth.EmailFromContext(r.Context())
	if !ok {
		return 0, fail(http.StatusUnauthorized, "Could not validate credentials")
	}
	id, ok := s.users[strings.ToLower(email)]
	if !ok {
		return 0, fail(http.StatusNotFound, "User not found")
	}
	return id, nil
}

type access int

const (
	readAccess  access = iota // owner, collaborator, or public deck
	writeAccess               // owner or collaborator
	ownerAccess               // owner only
)

// deckLocked finds deckID and checks userID has access a to it. denied is the 403
// detail.
func (s *Server) deckLocked(userID, deckID int64, a access, denied string) (*model.Deck, error) {
	var deck *model.Deck
	for i := range s.decks {
		if s.decks[i].ID == deckID {
			deck = &s.decks[i]
			break
		}
	}
	if deck == nil {
		return nil, fail(http.StatusNotFound, "Deck not found")
	}
	if deck.OwnerID == userID {
		return deck, nil
	}
	if a != ownerAccess && s.isCollaboratorLocked(deckID, userID) {
		return deck, nil
	}
	if a == readAccess && deck.Visibility == model.VisibilityPublic {
		return deck, nil
	}
	return nil, fail(http.StatusForbidden, denied)
}

func (s *Server) isCollaboratorLocked(deckID, userID int64) bool {
	for _, c := range s.collaborators {
		if c.DeckID == deckID && c.UserID == userID {
			return true
		}
	}
	return false
}

// moduleLocked finds moduleID and checks access through its deck.
func (s *Server) moduleLocked(userID, moduleID int64, a access) (*model.Module, error) {
	var mod *model.Module
	for i := range s.modules {
		if s.modules[i].ID == moduleID {
			mod = &s.modules[i]
			break
		}
	}
	if mod == nil {
		return nil, fail(http.StatusNotFound, "Module not found")
	}
	denied := "Not enough permissions to access this module"
	if a != readAccess {
		denied = "Not enough permissions to modify this module"
	}
	if _, err := s.deckLocked(userID, mod.DeckID, a, denied); err != nil {
		return nil, err
	}
	return mod, nil
}

// scopedDeckLocked resolves the caller and the path's deck in one step; most deck handlers
// start with it.
func (s *Server) scopedDeckLocked(r *http.Request, a access, denied string) (int64, *model.Deck, error) {
	userID, err := s.currentUserLocked(r)
	if err != nil {
		return 0, nil, err
	}
	deckID, err := pathID(r, "deckID")
	if err != nil {
		return 0, nil, err
	}
	deck, err := s.deckLocked(userID, deckID, a, denied)
	if err != nil {
		return 0, nil, err
	}
	return userID, deck, nil
}

func (s *Server) scopedModuleLocked(r *http.Request, a access) (*model.Module, error) {
	userID, err := s.currentUserLocked(r)
	if err != nil {
		return nil, err
	}
	moduleID, err := pathID(r, "moduleID")
	if err != nil {
		return nil, err
	}
	return s.moduleLocked(userID, moduleID, a)
}
