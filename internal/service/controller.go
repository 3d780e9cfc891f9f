// Package service orchestrates the entity stores across the deck/module hierarchy.
//
// SELECTION STATE MACHINE:
//
//	Unselected ──SelectDeck──▶ DeckSelected ──SelectModule──▶ ModuleSelected
//	     ▲                        │    ▲                            │
//	     └──────BackToDecks───────┘    └────────CloseModule─────────┘
//
// Entering a state resets the stores scoped under it and fetches them in parallel.
// Leaving a state clears exactly the stores scoped under the departed selection.
// Deleting the selected deck or module leaves its state the same way.
//
// Selection changes happen under one lock together with the store resets, so a
// reader never sees a child list that belongs to a different parent. Fetches run
// outside the lock; the stores discard responses that settle for an old scope.
package service

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/sakif/studydeck/internal/apperror"
	"github.com/sakif/studydeck/internal/model"
	"github.com/sakif/studydeck/internal/repository"
	"github.com/sakif/studydeck/internal/store"
	"github.com/sakif/studydeck/internal/transient"
)

// Entity kind names, used in fetch reports, logs and snapshots.
const (
	KindDeck         = "deck"
	KindCard         = "card"
	KindCollaborator = "collaborator"
	KindModule       = "module"
	KindContent      = "content"
	KindQuestion     = "question"
)

type State int

const (
	Unselected State = iota
	DeckSelected
	ModuleSelected
)

func (s State) String() string {
	switch s {
	case Unselected:
		return "unselected"
	case DeckSelected:
		return "deck selected"
	case ModuleSelected:
		return "module selected"
	}
	return "unknown"
}

// DeckCollection is the deck collection plus single-deck lookup.
type DeckCollection interface {
	repository.Collection[model.Deck, model.DeckDraft]
	Get(ctx context.Context, id int64) (model.Deck, error)
}

// Backends are the remote collections the controller drives.
type Backends struct {
	Decks         DeckCollection
	Cards         repository.Collection[model.Card, model.CardDraft]
	Collaborators repository.Collection[model.Collaborator, model.CollaboratorDraft]
	Modules       repository.Collection[model.Module, model.ModuleDraft]
	Contents      repository.Collection[model.Content, model.ContentDraft]
	Questions     repository.Collection[model.Question, model.QuestionDraft]
	Previews      repository.Previewer
}

type Option func(*settings)

type settings struct {
	snapshots repository.Snapshotter
}

// WithSnapshots mirrors every settled store change into snap.
func WithSnapshots(snap repository.Snapshotter) Option {
	return func(s *settings) { s.snapshots = snap }
}

// FetchReport holds the outcome of each fetch a selection triggered, keyed by kind.
// A nil value means the store synced. Fetches discarded as stale are left out.
type FetchReport map[string]error

// Err joins the failures, or returns nil.
func (r FetchReport) Err() error {
	var errs []error
	for _, kind := range slices.Sorted(maps.Keys(r)) {
		if r[kind] != nil {
			errs = append(errs, r[kind])
		}
	}
	return errors.Join(errs...)
}

// Failed lists the kinds whose fetch failed, sorted.
func (r FetchReport) Failed() []string {
	var kinds []string
	for kind, err := range r {
		if err != nil {
			kinds = append(kinds, kind)
		}
	}
	slices.Sort(kinds)
	return kinds
}

// Controller is the NestedResourceController. The stores are exported for reading;
// mutations that affect selection must go through the controller.
type Controller struct {
	Decks         *store.Store[model.Deck, model.DeckDraft]
	Cards         *store.Store[model.Card, model.CardDraft]
	Collaborators *store.Store[model.Collaborator, model.CollaboratorDraft]
	Modules       *store.Store[model.Module, model.ModuleDraft]
	Contents      *store.Store[model.Content, model.ContentDraft]
	Questions     *store.Store[model.Question, model.QuestionDraft]

	decks    DeckCollection
	previews repository.Previewer
	handles  *transient.Manager
	logger   *slog.Logger

	mu         sync.Mutex
	deck       *model.Deck
	module     *model.Module
	preview    *Preview
	previewSeq uint64
	previewing int64 // content of the preview loading or open, 0 for none
}

func newStore[T repository.Entity, D any](kind string, remote repository.Collection[T, D], logger *slog.Logger, s settings) *store.Store[T, D] {
	var opts []store.Option[T]
	if s.snapshots != nil {
		opts = append(opts, store.WithMirror(store.SnapshotMirror[T](s.snapshots, kind, logger)))
	}
	return store.New(kind, remote, logger, opts...)
}

// NewController wires one store per kind. handles owns the preview session's
// transient files.
func NewController(b Backends, handles *transient.Manager, logger *slog.Logger, opts ...Option) *Controller {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	c := &Controller{
		Decks:         newStore(KindDeck, repository.Collection[model.Deck, model.DeckDraft](b.Decks), logger, s),
		Cards:         newStore(KindCard, b.Cards, logger, s),
		Collaborators: newStore(KindCollaborator, b.Collaborators, logger, s),
		Modules:       newStore(KindModule, b.Modules, logger, s),
		Contents:      newStore(KindContent, b.Contents, logger, s),
		Questions:     newStore(KindQuestion, b.Questions, logger, s),
		decks:         b.Decks,
		previews:      b.Previews,
		handles:       handles,
		logger:        logger,
	}
	c.Decks.Reset(repository.RootScope)
	return c
}

// State reports the current selection depth.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	switch {
	case c.module != nil:
		return ModuleSelected
	case c.deck != nil:
		return DeckSelected
	}
	return Unselected
}

func (c *Controller) CurrentDeck() (model.Deck, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deck == nil {
		return model.Deck{}, false
	}
	return *c.deck, true
}

func (c *Controller) CurrentModule() (model.Module, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.module == nil {
		return model.Module{}, false
	}
	return *c.module, true
}

// =========================================================================
// SELECTION
// =========================================================================

// LoadDecks resyncs the deck list.
func (c *Controller) LoadDecks(ctx context.Context) error {
	_, err := c.Decks.List(ctx, repository.RootScope)
	return err
}

// SelectDeck makes deck id current and fetches its cards, modules and
// collaborators in parallel. The deck must be in the loaded deck list. Each fetch
// reports independently; one failing does not stop the others.
func (c *Controller) SelectDeck(ctx context.Context, id int64) (FetchReport, error) {
	deck, ok := c.Decks.Get(id)
	if !ok {
		return nil, apperror.NotFound(KindDeck, id)
	}

	c.mu.Lock()
	c.closePreviewLocked()
	c.clearModuleLocked()
	c.deck = &deck
	c.Cards.Reset(id)
	c.Modules.Reset(id)
	c.Collaborators.Reset(id)
	c.mu.Unlock()

	c.logger.Info("deck selected", slog.Int64("deckID", id))

	return fetchAll(ctx, id, map[string]listFunc{
		KindCard:         listOf(c.Cards),
		KindModule:       listOf(c.Modules),
		KindCollaborator: listOf(c.Collaborators),
	}), nil
}

// SelectModule makes module id of the current deck current and fetches its
// contents and questions in parallel.
func (c *Controller) SelectModule(ctx context.Context, id int64) (FetchReport, error) {
	c.mu.Lock()
	if c.deck == nil {
		c.mu.Unlock()
		return nil, apperror.ValidationFailed("deck", "select a deck first")
	}
	mod, ok := c.Modules.Get(id)
	if !ok {
		c.mu.Unlock()
		return nil, apperror.NotFound(KindModule, id)
	}
	c.closePreviewLocked()
	c.module = &mod
	c.Contents.Reset(id)
	c.Questions.Reset(id)
	c.mu.Unlock()

	c.logger.Info("module selected", slog.Int64("deckID", mod.DeckID), slog.Int64("moduleID", id))

	return fetchAll(ctx, id, map[string]listFunc{
		KindContent:  listOf(c.Contents),
		KindQuestion: listOf(c.Questions),
	}), nil
}

// BackToDecks leaves the deck: the deck's and module's stores are cleared, the
// deck list is kept.
func (c *Controller) BackToDecks() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearDeckLocked()
}

// CloseModule leaves the module. The deck's stores are kept.
func (c *Controller) CloseModule() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearModuleLocked()
}

func (c *Controller) clearDeckLocked() {
	c.clearModuleLocked()
	if c.deck != nil {
		c.logger.Info("deck closed", slog.Int64("deckID", c.deck.ID))
	}
	c.deck = nil
	c.Cards.Clear()
	c.Modules.Clear()
	c.Collaborators.Clear()
}

func (c *Controller) clearModuleLocked() {
	c.closePreviewLocked()
	if c.module != nil {
		c.logger.Info("module closed", slog.Int64("moduleID", c.module.ID))
	}
	c.module = nil
	c.Contents.Clear()
	c.Questions.Clear()
}

type listFunc func(ctx context.Context, scope int64) error

func listOf[T repository.Entity, D any](s *store.Store[T, D]) listFunc {
	return func(ctx context.Context, scope int64) error {
		_, err := s.List(ctx, scope)
		return err
	}
}

// fetchAll lists every store under scope concurrently and waits for all of them.
func fetchAll(ctx context.Context, scope int64, stores map[string]listFunc) FetchReport {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		report = FetchReport{}
	)
	for kind, list := range stores {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := list(ctx, scope)
			if apperror.IsStale(err) {
				return
			}
			mu.Lock()
			report[kind] = err
			mu.Unlock()
		}()
	}
	wg.Wait()
	return report
}
