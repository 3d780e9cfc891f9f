package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/studydeck/internal/apperror"
	"github.com/sakif/studydeck/internal/model"
	"github.com/sakif/studydeck/internal/repository"
	"github.com/sakif/studydeck/internal/repository/sqlite"
)

// selectNewDeck creates a deck, loads the list and selects it.
func selectNewDeck(t *testing.T, e *env, title string) model.Deck {
	t.Helper()
	ctx := context.Background()
	deck, err := e.ctrl.CreateDeck(ctx, model.DeckDraft{Title: title})
	require.NoError(t, err)
	report, err := e.ctrl.SelectDeck(ctx, deck.ID)
	require.NoError(t, err)
	require.NoError(t, report.Err())
	return deck
}

func openNewModule(t *testing.T, e *env, title string) model.Module {
	t.Helper()
	ctx := context.Background()
	mod, err := e.ctrl.AddModule(ctx, model.ModuleDraft{Title: title})
	require.NoError(t, err)
	report, err := e.ctrl.SelectModule(ctx, mod.ID)
	require.NoError(t, err)
	require.NoError(t, report.Err())
	return mod
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "unselected", Unselected.String())
	assert.Equal(t, "deck selected", DeckSelected.String())
	assert.Equal(t, "module selected", ModuleSelected.String())
	assert.Equal(t, "unknown", State(9).String())
}

func TestFetchReport(t *testing.T) {
	boom := errors.New("boom")
	r := FetchReport{KindCard: nil, KindModule: boom, KindCollaborator: nil}
	assert.Equal(t, []string{KindModule}, r.Failed())
	assert.ErrorIs(t, r.Err(), boom)
	assert.NoError(t, FetchReport{KindCard: nil}.Err())
}

// The algebra walk-through: create, list, add a card, delete the deck.
func TestAlgebraScenario(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	deck, err := e.ctrl.CreateDeck(ctx, model.DeckDraft{Title: "Algebra", Visibility: model.VisibilityPrivate})
	require.NoError(t, err)

	require.NoError(t, e.ctrl.LoadDecks(ctx))
	decks := e.ctrl.Decks.Items()
	require.Len(t, decks, 1)
	assert.Equal(t, "Algebra", decks[0].Title)
	assert.Equal(t, e.userID, decks[0].OwnerID)

	report, err := e.ctrl.SelectDeck(ctx, deck.ID)
	require.NoError(t, err)
	assert.Equal(t, FetchReport{KindCard: nil, KindModule: nil, KindCollaborator: nil}, report)
	assert.Equal(t, DeckSelected, e.ctrl.State())
	assert.Zero(t, e.ctrl.Cards.Len())
	assert.Zero(t, e.ctrl.Modules.Len())
	assert.Zero(t, e.ctrl.Collaborators.Len())

	card, err := e.ctrl.AddCard(ctx, model.CardDraft{FrontContent: "2+2", BackContent: "4"})
	require.NoError(t, err)
	assert.Equal(t, deck.ID, card.DeckID)
	assert.Equal(t, 1, e.ctrl.Cards.Len())

	require.NoError(t, e.ctrl.DeleteDeck(ctx, deck.ID))
	assert.Equal(t, Unselected, e.ctrl.State())
	assert.Zero(t, e.ctrl.Cards.Len(), "card cache cleared with the deck")
	assert.Zero(t, e.ctrl.Decks.Len())

	_, ok := e.ctrl.Cards.Scope()
	assert.False(t, ok)
}

func TestSelectDeck_RequiresLoadedDeck(t *testing.T) {
	e := newEnv(t)
	_, err := e.ctrl.SelectDeck(context.Background(), 42)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Equal(t, Unselected, e.ctrl.State())
}

func TestChildOperations_RequireSelection(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.ctrl.AddCard(ctx, model.CardDraft{FrontContent: "a", BackContent: "b"})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = e.ctrl.SelectModule(ctx, 1)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	selectNewDeck(t, e, "Algebra")
	_, err = e.ctrl.AddContent(ctx, model.ContentDraft{Type: model.ContentText, Text: "x"})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = e.ctrl.SelectModule(ctx, 999)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestDeleteActiveModule_ClearsSelection(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	selectNewDeck(t, e, "Algebra")
	mod := openNewModule(t, e, "Linear equations")

	_, err := e.ctrl.AddContent(ctx, model.ContentDraft{Type: model.ContentText, Text: "y = mx + b", Order: 1})
	require.NoError(t, err)
	_, err = e.ctrl.AddQuestion(ctx, model.QuestionDraft{Type: model.QuestionFlashcard, Text: "slope?"})
	require.NoError(t, err)
	require.Equal(t, ModuleSelected, e.ctrl.State())

	require.NoError(t, e.ctrl.DeleteModule(ctx, mod.ID))

	_, ok := e.ctrl.CurrentModule()
	assert.False(t, ok)
	assert.Equal(t, DeckSelected, e.ctrl.State())
	assert.Zero(t, e.ctrl.Contents.Len())
	assert.Zero(t, e.ctrl.Questions.Len())
	assert.Zero(t, e.ctrl.Modules.Len())
}

func TestLeavingSelection_ClearsOnlyChildren(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	selectNewDeck(t, e, "Algebra")
	_, err := e.ctrl.AddCard(ctx, model.CardDraft{FrontContent: "2+2", BackContent: "4"})
	require.NoError(t, err)
	openNewModule(t, e, "Linear")
	_, err = e.ctrl.AddContent(ctx, model.ContentDraft{Type: model.ContentText, Text: "x"})
	require.NoError(t, err)

	e.ctrl.CloseModule()
	assert.Equal(t, DeckSelected, e.ctrl.State())
	assert.Zero(t, e.ctrl.Contents.Len())
	assert.Equal(t, 1, e.ctrl.Cards.Len(), "the deck's stores survive closing the module")
	assert.Equal(t, 1, e.ctrl.Modules.Len())

	e.ctrl.BackToDecks()
	assert.Equal(t, Unselected, e.ctrl.State())
	assert.Zero(t, e.ctrl.Cards.Len())
	assert.Zero(t, e.ctrl.Modules.Len())
	assert.Equal(t, 1, e.ctrl.Decks.Len(), "the deck list survives")
}

// A modules fetch for deck A that settles after deck B was selected must not touch
// deck B's modules.
func TestStaleModulesFetch_IsDiscarded(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	deckA := selectNewDeck(t, e, "A")
	_, err := e.ctrl.AddModule(ctx, model.ModuleDraft{Title: "A module"})
	require.NoError(t, err)
	deckB := selectNewDeck(t, e, "B")
	modB, err := e.ctrl.AddModule(ctx, model.ModuleDraft{Title: "B module"})
	require.NoError(t, err)

	h := e.net.Hold(fmt.Sprintf("/decks/%d/modules", deckA.ID))
	defer h.Release()

	type result struct {
		report FetchReport
		err    error
	}
	done := make(chan result, 1)
	go func() {
		r, err := e.ctrl.SelectDeck(ctx, deckA.ID)
		done <- result{r, err}
	}()
	waitFor(t, h.arrived, "deck A modules request")

	report, err := e.ctrl.SelectDeck(ctx, deckB.ID)
	require.NoError(t, err)
	require.NoError(t, report.Err())

	h.Release()
	var resA result
	select {
	case resA = <-done:
	case <-timeoutC():
		t.Fatal("SelectDeck(A) did not return")
	}
	require.NoError(t, resA.err)
	_, reported := resA.report[KindModule]
	assert.False(t, reported, "the stale modules fetch is not reported")

	got := e.ctrl.Modules.Items()
	require.Len(t, got, 1)
	assert.Equal(t, modB.ID, got[0].ID)
	scope, _ := e.ctrl.Modules.Scope()
	assert.Equal(t, deckB.ID, scope)

	cur, _ := e.ctrl.CurrentDeck()
	assert.Equal(t, deckB.ID, cur.ID)
}

func TestSelectDeck_PartialFailure(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	deck := selectNewDeck(t, e, "Algebra")
	_, err := e.ctrl.AddCard(ctx, model.CardDraft{FrontContent: "2+2", BackContent: "4"})
	require.NoError(t, err)

	e.net.Fail(fmt.Sprintf("/decks/%d/collaborators", deck.ID), http.StatusInternalServerError)

	report, err := e.ctrl.SelectDeck(ctx, deck.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{KindCollaborator}, report.Failed())
	assert.ErrorIs(t, report[KindCollaborator], apperror.ErrRejected)
	assert.NoError(t, report[KindCard])
	assert.NoError(t, report[KindModule])

	assert.Equal(t, 1, e.ctrl.Cards.Len(), "cards synced despite the collaborator failure")
	assert.NotEmpty(t, e.ctrl.Collaborators.ErrMessage())
	assert.Empty(t, e.ctrl.Cards.ErrMessage())
}

func TestCollaborators(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	graceID := e.remote.AddUser("grace@example.com")

	selectNewDeck(t, e, "Algebra")

	collab, err := e.ctrl.AddCollaborator(ctx, graceID)
	require.NoError(t, err)
	assert.Equal(t, graceID, collab.UserID)
	assert.Equal(t, 1, e.ctrl.Collaborators.Len())

	_, err = e.ctrl.AddCollaborator(ctx, graceID)
	require.Error(t, err)
	assert.Equal(t, "Request failed (400): User is already a collaborator", apperror.UserMessage(err))
	assert.Equal(t, 1, e.ctrl.Collaborators.Len(), "failure leaves the cache unchanged")

	_, err = e.ctrl.Collaborators.Update(ctx, collab.ID, model.CollaboratorDraft{UserID: graceID})
	assert.ErrorIs(t, err, apperror.ErrUnsupported)

	require.NoError(t, e.ctrl.RemoveCollaborator(ctx, graceID))
	assert.Zero(t, e.ctrl.Collaborators.Len())

	err = e.ctrl.RemoveCollaborator(ctx, graceID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUpdates_ReplaceInPlace(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	deck := selectNewDeck(t, e, "Algebra")
	first, err := e.ctrl.AddCard(ctx, model.CardDraft{FrontContent: "1", BackContent: "1"})
	require.NoError(t, err)
	_, err = e.ctrl.AddCard(ctx, model.CardDraft{FrontContent: "2", BackContent: "2"})
	require.NoError(t, err)

	_, err = e.ctrl.UpdateCard(ctx, first.ID, model.CardDraft{FrontContent: "one", BackContent: "1"})
	require.NoError(t, err)
	cards := e.ctrl.Cards.Items()
	require.Len(t, cards, 2)
	assert.Equal(t, "one", cards[0].FrontContent, "position preserved")

	_, err = e.ctrl.UpdateCard(ctx, 999, model.CardDraft{FrontContent: "x", BackContent: "y"})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	updated, err := e.ctrl.UpdateDeck(ctx, deck.ID, model.DeckDraft{Title: "Algebra II"})
	require.NoError(t, err)
	assert.Equal(t, model.VisibilityPrivate, updated.Visibility)
	cur, _ := e.ctrl.CurrentDeck()
	assert.Equal(t, "Algebra II", cur.Title)

	refreshed, err := e.ctrl.RefreshDeck(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Algebra II", refreshed.Title)

	mod := openNewModule(t, e, "Linear")
	_, err = e.ctrl.UpdateModule(ctx, mod.ID, model.ModuleDraft{Title: "Quadratics"})
	require.NoError(t, err)
	curMod, _ := e.ctrl.CurrentModule()
	assert.Equal(t, "Quadratics", curMod.Title)
}

// After every successful mutation the cache equals a fresh fetch.
func TestCacheMatchesRemote(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	deck := selectNewDeck(t, e, "Algebra")

	check := func(step string) {
		t.Helper()
		cached := e.ctrl.Cards.Items()
		report, err := e.ctrl.SelectDeck(ctx, deck.ID)
		require.NoError(t, err)
		require.NoError(t, report.Err())
		assert.Equal(t, cached, e.ctrl.Cards.Items(), step)
	}

	var ids []int64
	for i := range 4 {
		c, err := e.ctrl.AddCard(ctx, model.CardDraft{FrontContent: fmt.Sprint(i), BackContent: "x"})
		require.NoError(t, err)
		ids = append(ids, c.ID)
		check(fmt.Sprintf("after create %d", i))
	}
	_, err := e.ctrl.UpdateCard(ctx, ids[1], model.CardDraft{FrontContent: "changed", BackContent: "x"})
	require.NoError(t, err)
	check("after update")

	require.NoError(t, e.ctrl.DeleteCard(ctx, ids[2]))
	check("after delete")
}

func TestContentVariants(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	selectNewDeck(t, e, "Algebra")
	openNewModule(t, e, "Linear")

	video, err := e.ctrl.AddContent(ctx, model.ContentDraft{
		Type:  model.ContentYouTube,
		URL:   "https://youtube.com/watch?v=X",
		Order: 2,
	})
	require.NoError(t, err)

	draft, err := e.ctrl.EditContent(video.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://youtube.com/watch?v=X", draft.URL)
	assert.Equal(t, model.ContentYouTube, draft.Type)

	text, err := e.ctrl.AddContent(ctx, model.ContentDraft{Type: model.ContentText, Text: "slope", Order: 1})
	require.NoError(t, err)
	pdf, err := e.ctrl.AddContent(ctx, model.ContentDraft{Type: model.ContentPDF, Text: "converted", Filename: "notes", Order: 1})
	require.NoError(t, err)
	p, ok := pdf.Payload.(model.PDFPayload)
	require.True(t, ok, "payload %T", pdf.Payload)
	assert.Equal(t, "notes.pdf", p.Filename)
	assert.Positive(t, p.SizeBytes)

	_, err = e.ctrl.EditContent(pdf.ID)
	assert.ErrorIs(t, err, apperror.ErrUnsupported)

	var order []int64
	for _, c := range e.ctrl.SortedContents() {
		order = append(order, c.ID)
	}
	assert.Equal(t, []int64{text.ID, pdf.ID, video.ID}, order, "ascending order, ties by creation")

	updated, err := e.ctrl.UpdateContent(ctx, text.ID, model.ContentDraft{Type: model.ContentText, Text: "rise over run", Order: 1})
	require.NoError(t, err)
	assert.Equal(t, model.TextPayload{Body: "rise over run"}, updated.Payload)

	_, err = e.ctrl.AddContent(ctx, model.ContentDraft{Type: model.ContentPDF, File: &model.Upload{Filename: "x.pdf", Data: []byte("nope")}})
	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.Equal(t, 3, e.ctrl.Contents.Len())
}

func TestQuestions_DecodeStructuredFields(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	selectNewDeck(t, e, "Algebra")
	mod := openNewModule(t, e, "Linear")

	q, err := e.ctrl.AddQuestion(ctx, model.QuestionDraft{
		Type:          model.QuestionMultipleChoice,
		Text:          "2+2?",
		Options:       json.RawMessage(`["3","4"]`),
		CorrectAnswer: json.RawMessage(`"4"`),
		Order:         2,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `["3","4"]`, string(q.Options))
	assert.JSONEq(t, `"4"`, string(q.CorrectAnswer))

	_, err = e.ctrl.AddQuestion(ctx, model.QuestionDraft{Type: model.QuestionFlashcard, Text: "define slope", Order: 1})
	require.NoError(t, err)

	// A fresh fetch decodes the stringified options the same way.
	e.ctrl.CloseModule()
	report, err := e.ctrl.SelectModule(ctx, mod.ID)
	require.NoError(t, err)
	require.NoError(t, report.Err())

	sorted := e.ctrl.SortedQuestions()
	require.Len(t, sorted, 2)
	assert.Equal(t, model.QuestionFlashcard, sorted[0].Type)
	assert.JSONEq(t, `["3","4"]`, string(sorted[1].Options))

	require.NoError(t, e.ctrl.DeleteQuestion(ctx, q.ID))
	assert.Equal(t, 1, e.ctrl.Questions.Len())
}

func TestSnapshots(t *testing.T) {
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	e := newEnv(t, WithSnapshots(db))
	ctx := context.Background()
	deck := selectNewDeck(t, e, "Algebra")
	_, err = e.ctrl.AddCard(ctx, model.CardDraft{FrontContent: "2+2", BackContent: "4"})
	require.NoError(t, err)

	var decks []model.Deck
	require.NoError(t, db.LoadSnapshot(ctx, KindDeck, repository.RootScope, &decks))
	require.Len(t, decks, 1)
	assert.Equal(t, "Algebra", decks[0].Title)

	var cards []model.Card
	require.NoError(t, db.LoadSnapshot(ctx, KindCard, deck.ID, &cards))
	require.Len(t, cards, 1)
	assert.Equal(t, "2+2", cards[0].FrontContent)
}

func TestRejectedRequest_SurfacesMessage(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	deck := selectNewDeck(t, e, "Algebra")

	e.net.Fail(fmt.Sprintf("/decks/%d/cards", deck.ID), http.StatusForbidden)
	report, err := e.ctrl.SelectDeck(ctx, deck.ID)
	require.NoError(t, err)
	assert.Equal(t, "You do not have permission to do that: injected failure", e.ctrl.Cards.ErrMessage())
	assert.ErrorIs(t, report.Err(), apperror.ErrRejected)
}
