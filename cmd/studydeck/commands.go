package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sakif/studydeck/internal/apperror"
	"github.com/sakif/studydeck/internal/model"
	"github.com/sakif/studydeck/internal/repository"
	"github.com/sakif/studydeck/internal/service"
	"github.com/sakif/studydeck/internal/session"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{}

func register(name, summary string, run func(ctx context.Context, a *app, args []string) error) {
	commands[name] = command{name: name, summary: summary, run: run}
}

func init() {
	register("help", "show this list", nil)

	register("login", "save a bearer token: login <token>", runLogin)
	register("logout", "forget the saved token", runLogout)
	register("whoami", "show the signed-in user", runWhoami)
	register("snapshots", "list locally synced snapshots", runSnapshots)

	register("decks", "list your decks", runDecks)
	register("deck create", "create a deck", runDeckCreate)
	register("deck show", "show a deck with its cards, modules and collaborators", runDeckShow)
	register("deck update", "replace a deck's fields", runDeckUpdate)
	register("deck delete", "delete a deck and everything under it", runDeckDelete)

	register("card add", "add a card to a deck", runCardAdd)
	register("card update", "replace a card's faces", runCardUpdate)
	register("card delete", "delete a card", runCardDelete)

	register("collaborator add", "grant a user access to a deck", runCollaboratorAdd)
	register("collaborator remove", "revoke a user's access to a deck", runCollaboratorRemove)

	register("module add", "add a module to a deck", runModuleAdd)
	register("module show", "show a module's contents and questions", runModuleShow)
	register("module update", "replace a module's fields", runModuleUpdate)
	register("module delete", "delete a module", runModuleDelete)

	register("content add-text", "add text content", runContentAddText)
	register("content add-youtube", "add a YouTube link", runContentAddYouTube)
	register("content upload-pdf", "upload a PDF file", runContentUploadPDF)
	register("content convert", "convert text to a PDF on the server", runContentConvert)
	register("content update", "replace text or YouTube content", runContentUpdate)
	register("content edit-fields", "print the editable fields of content", runContentEditFields)
	register("content delete", "delete content", runContentDelete)

	register("question add", "add a question", runQuestionAdd)
	register("question update", "replace a question", runQuestionUpdate)
	register("question delete", "delete a question", runQuestionDelete)

	register("preview", "preview content", runPreview)
}

func newFlags(a *app, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

// target is the -deck/-module/-id triple most commands address.
type target struct {
	deck, module, id int64
}

func (t *target) bind(fs *flag.FlagSet, deck, module, id bool) {
	if deck {
		fs.Int64Var(&t.deck, "deck", 0, "deck id")
	}
	if module {
		fs.Int64Var(&t.module, "module", 0, "module id")
	}
	if id {
		fs.Int64Var(&t.id, "id", 0, "item id")
	}
}

// parse parses args and checks that every bound id was given.
func (t *target) parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	var missing []string
	fs.VisitAll(func(f *flag.Flag) {
		switch f.Name {
		case "deck", "module", "id":
			if f.Value.String() == "0" {
				missing = append(missing, "-"+f.Name)
			}
		}
	})
	if len(missing) > 0 {
		fmt.Fprintf(fs.Output(), "%s: missing %s\n", fs.Name(), strings.Join(missing, ", "))
		return errUsage
	}
	return nil
}

func runLogin(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(a.errOut, "usage: studydeck login <token>")
		return errUsage
	}
	c, err := session.SignIn(ctx, a.db, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Signed in as %s until %s\n", c.Subject, c.ExpiresAt.Local().Format(timeLayout))
	return nil
}

func runLogout(ctx context.Context, a *app, _ []string) error {
	if err := session.SignOut(ctx, a.db); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out")
	return nil
}

func runWhoami(ctx context.Context, a *app, _ []string) error {
	c, ok, err := session.Restore(ctx, a.db)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(a.out, "Not signed in")
		return nil
	}
	fmt.Fprintf(a.out, "%s (until %s)\n", c.Subject, c.ExpiresAt.Local().Format(timeLayout))
	return nil
}

func runSnapshots(ctx context.Context, a *app, _ []string) error {
	infos, err := a.db.Snapshots(ctx)
	if err != nil {
		return err
	}
	printSnapshots(a.out, infos)
	return nil
}

func runDecks(ctx context.Context, a *app, _ []string) error {
	if a.offline {
		var decks []model.Deck
		if err := a.db.LoadSnapshot(ctx, service.KindDeck, repository.RootScope, &decks); err != nil {
			return err
		}
		printDecks(a.out, decks)
		return nil
	}
	if err := a.connect(ctx); err != nil {
		return err
	}
	if err := a.ctrl.LoadDecks(ctx); err != nil {
		return err
	}
	printDecks(a.out, a.ctrl.Decks.Items())
	return nil
}

// deckFields binds the fields shared by deck create and update.
func deckFields(fs *flag.FlagSet) (title, description *string, public *bool) {
	return fs.String("title", "", "deck title"),
		fs.String("description", "", "deck description"),
		fs.Bool("public", false, "make the deck readable by everyone")
}

func deckDraft(title, description string, public bool) model.DeckDraft {
	d := model.DeckDraft{
		Title:       title,
		Description: model.StringPtr(description),
		Visibility:  model.VisibilityPrivate,
	}
	if public {
		d.Visibility = model.VisibilityPublic
	}
	return d
}

func runDeckCreate(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "deck create")
	title, description, public := deckFields(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.connect(ctx); err != nil {
		return err
	}
	if err := a.ctrl.LoadDecks(ctx); err != nil {
		return err
	}
	d, err := a.ctrl.CreateDeck(ctx, deckDraft(*title, *description, *public))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Created deck %d\n", d.ID)
	return nil
}

func runDeckShow(ctx context.Context, a *app, args []string) error {
	var t target
	fs := newFlags(a, "deck show")
	t.bind(fs, false, false, true)
	if err := t.parse(fs, args); err != nil {
		return err
	}
	if a.offline {
		return showDeckOffline(ctx, a, t.id)
	}
	if err := a.openDeck(ctx, t.id); err != nil {
		return err
	}
	deck, _ := a.ctrl.CurrentDeck()
	printDeck(a.out, deck, a.ctrl.Cards.Items(), a.ctrl.Modules.Items(), a.ctrl.Collaborators.Items())
	return nil
}

func showDeckOffline(ctx context.Context, a *app, id int64) error {
	var decks []model.Deck
	if err := a.db.LoadSnapshot(ctx, service.KindDeck, repository.RootScope, &decks); err != nil {
		return err
	}
	for _, deck := range decks {
		if deck.ID != id {
			continue
		}
		var (
			cards         []model.Card
			modules       []model.Module
			collaborators []model.Collaborator
		)
		for kind, out := range map[string]any{
			service.KindCard:         &cards,
			service.KindModule:       &modules,
			service.KindCollaborator: &collaborators,
		} {
			if err := a.db.LoadSnapshot(ctx, kind, id, out); err != nil && !errors.Is(err, apperror.ErrNotFound) {
				return err
			}
		}
		printDeck(a.out, deck, cards, modules, collaborators)
		return nil
	}
	return apperror.NotFound(service.KindDeck, id)
}

func runDeckUpdate(ctx context.Context, a *app, args []string) error {
	var t target
	fs := newFlags(a, "deck update")
	t.bind(fs, false, false, true)
	title, description, public := deckFields(fs)
	if err := t.parse(fs, args); err != nil {
		return err
	}
	if err := a.connect(ctx); err != nil {
		return err
	}
	if err := a.ctrl.LoadDecks(ctx); err != nil {
		return err
	}
	d, err := a.ctrl.UpdateDeck(ctx, t.id, deckDraft(*title, *description, *public))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated deck %d\n", d.ID)
	return nil
}

func runDeckDelete(ctx context.Context, a *app, args []string) error {
	var t target
	fs := newFlags(a, "deck delete")
	t.bind(fs, false, false, true)
	if err := t.parse(fs, args); err != nil {
		return err
	}
	if err := a.connect(ctx); err != nil {
		return err
	}
	if err := a.ctrl.LoadDecks(ctx); err != nil {
		return err
	}
	if err := a.ctrl.DeleteDeck(ctx, t.id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted deck %d\n", t.id)
	return nil
}

func runCardAdd(ctx context.Context, a *app, args []string) error {
	var t target
	fs := newFlags(a, "card add")
	t.bind(fs, true, false, false)
	front := fs.String("front", "", "front face")
	back := fs.String("back", "", "back face")
	if err := t.parse(fs, args); err != nil {
		return err
	}
	if err := a.openDeck(ctx, t.deck); err != nil {
		return err
	}
	c, err := a.ctrl.AddCard(ctx, model.CardDraft{FrontContent: *front, BackContent: *back})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added card %d\n", c.ID)
	return nil
}

func runCardUpdate(ctx context.Context, a *app, args []string) error {
	var t target
	fs := newFlags(a, "card update")
	t.bind(fs, true, false, true)
	front := fs.String("front", "", "front face")
	back := fs.String("back", "", "back face")
	if err := t.parse(fs, args); err != nil {
		return err
	}
	if err := a.openDeck(ctx, t.deck); err != nil {
		return err
	}
	if _, err := a.ctrl.UpdateCard(ctx, t.id, model.CardDraft{FrontContent: *front, BackContent: *back}); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated card %d\n", t.id)
	return nil
}

func runCardDelete(ctx context.Context, a *app, args []string) error {
	var t target
	fs := newFlags(a, "card delete")
	t.bind(fs, true, false, true)
	if err := t.parse(fs, args); err != nil {
		return err
	}
	if err := a.openDeck(ctx, t.deck); err != nil {
		return err
	}
	if err := a.ctrl.DeleteCard(ctx, t.id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted card %d\n", t.id)
	return nil
}

func runCollaboratorAdd(ctx context.Context, a *app, args []string) error {
	var t target
	fs := newFlags(a, "collaborator add")
	t.bind(fs, true, false, false)
	user := fs.Int64("user", 0, "user id")
	if err := t.parse(fs, args); err != nil {
		return err
	}
	if err := a.openDeck(ctx, t.deck); err != nil {
		return err
	}
	c, err := a.ctrl.AddCollaborator(ctx, *user)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "User %d can now edit deck %d\n", c.UserID, c.DeckID)
	return nil
}

func runCollaboratorRemove(ctx context.Context, a *app, args []string) error {
	var t target
	fs := newFlags(a, "collaborator remove")
	t.bind(fs, true, false, false)
	user := fs.Int64("user", 0, "user id")
	if err := t.parse(fs, args); err != nil {
		return err
	}
	if err := a.openDeck(ctx, t.deck); err != nil {
		return err
	}
	if err := a.ctrl.RemoveCollaborator(ctx, *user); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Removed user %d from deck %d\n", *user, t.deck)
	return nil
}

func moduleFields(fs *flag.FlagSet) (title, description *string) {
	return fs.String("title", "", "module title"), fs.String("description", "", "module description")
}

func runModuleAdd(ctx context.Context, a *app, args []string) error {
	var t target
	fs := newFlags(a, "module add")
	t.bind(fs, true, false, false)
	title, description := moduleFields(fs)
	if err := t.parse(fs, args); err != nil {
		return err
	}
	if err := a.openDeck(ctx, t.deck); err != nil {
		return err
	}
	m, err := a.ctrl.AddModule(ctx, model.ModuleDraft{Title: *title, Description: model.StringPtr(*description)})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added module %d\n", m.ID)
	return nil
}

func runModuleShow(ctx context.Context, a *app, args []string) error {
	var t target
	fs := newFlags(a, "module show")
	t.bind(fs, true, false, true)
	if err := t.parse(fs, args); err != nil {
		return err
	}
	if a.offline {
		return showModuleOffline(ctx, a, t.deck, t.id)
	}
	if err := a.openModule(ctx, t.deck, t.id); err != nil {
		return err
	}
	m, _ := a.ctrl.CurrentModule()
	printModule(a.out, m, a.ctrl.SortedContents(), a.ctrl.SortedQuestions())
	return nil
}

func showModuleOffline(ctx context.Context, a *app, deckID, id int64) error {
	var modules []model.Module
	if err := a.db.LoadSnapshot(ctx, service.KindModule, deckID, &modules); err != nil {
		return err
	}
	for _, m := range modules {
		if m.ID != id {
			continue
		}
		var (
			contents  []model.Content
			questions []model.Question
		)
		if err := a.db.LoadSnapshot(ctx, service.KindContent, id, &contents); err != nil && !errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		if err := a.db.LoadSnapshot(ctx, service.KindQuestion, id, &questions); err != nil && !errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		printModule(a.out, m, sortByOrder(contents, func(c model.Content) int { return c.Order }),
			sortByOrder(questions, func(q model.Question) int { return q.Order }))
		return nil
	}
	return apperror.NotFound(service.KindModule, id)
}

func runModuleUpdate(ctx context.Context, a *app, args []string) error {
	var t target
	fs := newFlags(a, "module update")
	t.bind(fs, true, false, true)
	title, description := moduleFields(fs)
	if err := t.parse(fs, args); err != nil {
		return err
	}
	if err := a.openDeck(ctx, t.deck); err != nil {
		return err
	}
	if _, err := a.ctrl.UpdateModule(ctx, t.id, model.ModuleDraft{Title: *title, Description: model.StringPtr(*description)}); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated module %d\n", t.id)
	return nil
}

func runModuleDelete(ctx context.Context, a *app, args []string) error {
	var t target
	fs := newFlags(a, "module delete")
	t.bind(fs, true, false, true)
	if err := t.parse(fs, args); err != nil {
		return err
	}
	if err := a.openDeck(ctx, t.deck); err != nil {
		return err
	}
	if err := a.ctrl.DeleteModule(ctx, t.id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted module %d\n", t.id)
	return nil
}

// addContent opens the module and adds the draft built by the caller.
func addContent(ctx context.Context, a *app, t target, d model.ContentDraft) error {
	if err := a.openModule(ctx, t.deck, t.module); err != nil {
		return err
	}
	c, err := a.ctrl.AddContent(ctx, d)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added %s content %d\n", c.Type, c.ID)
	return nil
}

func runContentAddText(ctx context.Context, a *app, args []string) error {
	var t target
	fs := newFlags(a, "content add-text")
	t.bind(fs, true, true, false)
	text := fs.String("text", "", "text body")
	order := fs.Int("order", 0, "position in the module")
	if err := t.parse(fs, args); err != nil {
		return err
	}
	return addContent(ctx, a, t, model.ContentDraft{Type: model.ContentText, Text: *text, Order: *order})
}

func runContentAddYouTube(ctx context.Context, a *app, args []string) error {
	var t target
	fs := newFlags(a, "content add-youtube")
	t.bind(fs, true, true, false)
	url := fs.String("url", "", "video url")
	order := fs.Int("order", 0, "position in the module")
	if err := t.parse(fs, args); err != nil {
		return err
	}
	return addContent(ctx, a, t, model.ContentDraft{Type: model.ContentYouTube, URL: *url, Order: *order})
}

func runContentUploadPDF(ctx context.Context, a *app, args []string) error {
	var t target
	fs := newFlags(a, "content upload-pdf")
	t.bind(fs, true, true, false)
	file := fs.String("file", "", "path of the PDF to upload")
	order := fs.Int("order", 0, "position in the module")
	if err := t.parse(fs, args); err != nil {
		return err
	}
	if *file == "" {
		return apperror.ValidationFailed("file", "-file is required")
	}
	data, err := os.ReadFile(filepath.Clean(*file))
	if err != nil {
		return fmt.Errorf("reading %s: %w", *file, err)
	}
	return addContent(ctx, a, t, model.ContentDraft{
		Type:  model.ContentPDF,
		Order: *order,
		File:  &model.Upload{Filename: filepath.Base(*file), Data: data},
	})
}

func runContentConvert(ctx context.Context, a *app, args []string) error {
	var t target
	fs := newFlags(a, "content convert")
	t.bind(fs, true, true, false)
	text := fs.String("text", "", "text to convert")
	textFile := fs.String("text-file", "", "read the text to convert from this file")
	filename := fs.String("filename", "", "name of the generated PDF")
	order := fs.Int("order", 0, "position in the module")
	if err := t.parse(fs, args); err != nil {
		return err
	}
	body := *text
	if *textFile != "" {
		data, err := os.ReadFile(filepath.Clean(*textFile))
		if err != nil {
			return fmt.Errorf("reading %s: %w", *textFile, err)
		}
		body = string(data)
	}
	return addContent(ctx, a, t, model.ContentDraft{
		Type:     model.ContentPDF,
		Order:    *order,
		Text:     body,
		Filename: *filename,
	})
}

func runContentUpdate(ctx context.Context, a *app, args []string) error {
	var t target
	fs := newFlags(a, "content update")
	t.bind(fs, true, true, true)
	text := fs.String("text", "", "new text body")
	url := fs.String("url", "", "new video url")
	order := fs.Int("order", -1, "new position; keeps the current one when negative")
	if err := t.parse(fs, args); err != nil {
		return err
	}
	if err := a.openModule(ctx, t.deck, t.module); err != nil {
		return err
	}
	d, err := a.ctrl.EditContent(t.id)
	if err != nil {
		return err
	}
	if *text != "" {
		d.Text = *text
	}
	if *url != "" {
		d.URL = *url
	}
	if *order >= 0 {
		d.Order = *order
	}
	if _, err := a.ctrl.UpdateContent(ctx, t.id, d); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated content %d\n", t.id)
	return nil
}

func runContentEditFields(ctx context.Context, a *app, args []string) error {
	var t target
	fs := newFlags(a, "content edit-fields")
	t.bind(fs, true, true, true)
	if err := t.parse(fs, args); err != nil {
		return err
	}
	if err := a.openModule(ctx, t.deck, t.module); err != nil {
		return err
	}
	d, err := a.ctrl.EditContent(t.id)
	if err != nil {
		return err
	}
	printDraft(a.out, d)
	return nil
}

func runContentDelete(ctx context.Context, a *app, args []string) error {
	var t target
	fs := newFlags(a, "content delete")
	t.bind(fs, true, true, true)
	if err := t.parse(fs, args); err != nil {
		return err
	}
	if err := a.openModule(ctx, t.deck, t.module); err != nil {
		return err
	}
	if err := a.ctrl.DeleteContent(ctx, t.id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted content %d\n", t.id)
	return nil
}

// questionFields binds the fields of a question draft. -options and -answer take
// JSON; anything that is not valid JSON is sent as a string.
func questionFields(fs *flag.FlagSet) func() model.QuestionDraft {
	typ := fs.String("type", string(model.QuestionMultipleChoice), "MultipleChoice, FillBlank, Flashcard or MatchFollowing")
	text := fs.String("text", "", "question text")
	options := fs.String("options", "", "options as JSON")
	answer := fs.String("answer", "", "correct answer as JSON")
	order := fs.Int("order", 0, "position in the module")
	return func() model.QuestionDraft {
		return model.QuestionDraft{
			Type:          model.QuestionType(*typ),
			Text:          *text,
			Options:       jsonArg(*options),
			CorrectAnswer: jsonArg(*answer),
			Order:         *order,
		}
	}
}

func jsonArg(s string) json.RawMessage {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	quoted, _ := json.Marshal(s)
	return quoted
}

func runQuestionAdd(ctx context.Context, a *app, args []string) error {
	var t target
	fs := newFlags(a, "question add")
	t.bind(fs, true, true, false)
	draft := questionFields(fs)
	if err := t.parse(fs, args); err != nil {
		return err
	}
	if err := a.openModule(ctx, t.deck, t.module); err != nil {
		return err
	}
	q, err := a.ctrl.AddQuestion(ctx, draft())
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added question %d\n", q.ID)
	return nil
}

func runQuestionUpdate(ctx context.Context, a *app, args []string) error {
	var t target
	fs := newFlags(a, "question update")
	t.bind(fs, true, true, true)
	draft := questionFields(fs)
	if err := t.parse(fs, args); err != nil {
		return err
	}
	if err := a.openModule(ctx, t.deck, t.module); err != nil {
		return err
	}
	if _, err := a.ctrl.UpdateQuestion(ctx, t.id, draft()); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated question %d\n", t.id)
	return nil
}

func runQuestionDelete(ctx context.Context, a *app, args []string) error {
	var t target
	fs := newFlags(a, "question delete")
	t.bind(fs, true, true, true)
	if err := t.parse(fs, args); err != nil {
		return err
	}
	if err := a.openModule(ctx, t.deck, t.module); err != nil {
		return err
	}
	if err := a.ctrl.DeleteQuestion(ctx, t.id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted question %d\n", t.id)
	return nil
}

// runPreview opens a preview. A pdf preview lives in a temporary file that is
// removed when the command exits; -hold keeps it until Enter is pressed.
func runPreview(ctx context.Context, a *app, args []string) error {
	var t target
	fs := newFlags(a, "preview")
	t.bind(fs, true, true, true)
	hold := fs.Bool("hold", false, "keep a pdf preview file until Enter is pressed")
	if err := t.parse(fs, args); err != nil {
		return err
	}
	if err := a.openModule(ctx, t.deck, t.module); err != nil {
		return err
	}
	p, err := a.ctrl.OpenPreview(ctx, t.id)
	if err != nil {
		return err
	}
	printPreview(a.out, p)
	if *hold && !p.Handle.IsZero() {
		fmt.Fprint(a.out, "Press Enter to close the preview")
		_, _ = bufio.NewReader(a.stdin).ReadString('\n')
	}
	a.ctrl.ClosePreview()
	return nil
}
