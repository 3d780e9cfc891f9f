package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/sakif/studydeck/internal/apperror"
	"github.com/sakif/studydeck/internal/client"
	"github.com/sakif/studydeck/internal/config"
	"github.com/sakif/studydeck/internal/repository/remote"
	"github.com/sakif/studydeck/internal/repository/sqlite"
	"github.com/sakif/studydeck/internal/service"
	"github.com/sakif/studydeck/internal/session"
	"github.com/sakif/studydeck/internal/transient"
)

// app holds what one invocation needs. ctrl is nil until connect.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	db      *sqlite.DB
	offline bool

	stdin  io.Reader
	out    io.Writer
	errOut io.Writer

	ctrl *service.Controller
}

// connect restores the saved session and builds the controller on top of it.
func (a *app) connect(ctx context.Context) error {
	if a.ctrl != nil {
		return nil
	}
	if _, ok, err := session.Restore(ctx, a.db); err != nil {
		return err
	} else if !ok {
		return apperror.NoSession()
	}

	api, err := client.New(a.cfg.APIURL, session.Source{}, a.logger, client.WithTimeout(a.cfg.Timeout))
	if err != nil {
		return err
	}
	rb := remote.New(api, a.logger)
	a.ctrl = service.NewController(service.Backends{
		Decks:         rb.Decks,
		Cards:         rb.Cards,
		Collaborators: rb.Collaborators,
		Modules:       rb.Modules,
		Contents:      rb.Contents,
		Questions:     rb.Questions,
		Previews:      rb.Contents,
	}, transient.New(a.cfg.PreviewDir, a.logger), a.logger, service.WithSnapshots(a.db))
	return nil
}

// openDeck loads the deck list and selects deckID.
func (a *app) openDeck(ctx context.Context, deckID int64) error {
	if err := a.connect(ctx); err != nil {
		return err
	}
	if err := a.ctrl.LoadDecks(ctx); err != nil {
		return err
	}
	report, err := a.ctrl.SelectDeck(ctx, deckID)
	if err != nil {
		return err
	}
	a.warn(report)
	return nil
}

// openModule selects deckID and then moduleID.
func (a *app) openModule(ctx context.Context, deckID, moduleID int64) error {
	if err := a.openDeck(ctx, deckID); err != nil {
		return err
	}
	report, err := a.ctrl.SelectModule(ctx, moduleID)
	if err != nil {
		return err
	}
	a.warn(report)
	return nil
}

// warn prints the lists that could not be fetched. The rest of the view is still
// usable.
func (a *app) warn(report service.FetchReport) {
	for _, kind := range report.Failed() {
		fmt.Fprintf(a.errOut, "warning: could not load %ss: %s\n", kind, message(report[kind]))
	}
}

func (a *app) close() {
	if a.ctrl != nil {
		if err := a.ctrl.Close(); err != nil {
			a.logger.Warn("closing controller", slog.String("error", err.Error()))
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("closing database", slog.String("error", err.Error()))
	}
	session.Teardown()
}
