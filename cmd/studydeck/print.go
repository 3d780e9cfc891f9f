package main

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/sakif/studydeck/internal/model"
	"github.com/sakif/studydeck/internal/repository/sqlite"
	"github.com/sakif/studydeck/internal/service"
)

const timeLayout = "2006-01-02 15:04"

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func printDecks(w io.Writer, decks []model.Deck) {
	if len(decks) == 0 {
		fmt.Fprintln(w, "No decks")
		return
	}
	tw := table(w)
	fmt.Fprintln(tw, "ID\tTITLE\tVISIBILITY\tCREATED")
	for _, d := range decks {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", d.ID, d.Title, d.Visibility, d.CreatedAt.Local().Format(timeLayout))
	}
	tw.Flush()
}

func printDeck(w io.Writer, d model.Deck, cards []model.Card, modules []model.Module, collaborators []model.Collaborator) {
	fmt.Fprintf(w, "Deck %d: %s (%s)\n", d.ID, d.Title, d.Visibility)
	if d.Description != nil {
		fmt.Fprintf(w, "  %s\n", *d.Description)
	}

	fmt.Fprintf(w, "\nCards (%d)\n", len(cards))
	if len(cards) > 0 {
		tw := table(w)
		fmt.Fprintln(tw, "ID\tFRONT\tBACK")
		for _, c := range cards {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", c.ID, clip(c.FrontContent), clip(c.BackContent))
		}
		tw.Flush()
	}

	fmt.Fprintf(w, "\nModules (%d)\n", len(modules))
	if len(modules) > 0 {
		tw := table(w)
		fmt.Fprintln(tw, "ID\tTITLE")
		for _, m := range modules {
			fmt.Fprintf(tw, "%d\t%s\n", m.ID, m.Title)
		}
		tw.Flush()
	}

	fmt.Fprintf(w, "\nCollaborators (%d)\n", len(collaborators))
	for _, c := range collaborators {
		fmt.Fprintf(w, "  user %d\n", c.UserID)
	}
}

func printModule(w io.Writer, m model.Module, contents []model.Content, questions []model.Question) {
	fmt.Fprintf(w, "Module %d: %s\n", m.ID, m.Title)
	if m.Description != nil {
		fmt.Fprintf(w, "  %s\n", *m.Description)
	}

	fmt.Fprintf(w, "\nContents (%d)\n", len(contents))
	if len(contents) > 0 {
		tw := table(w)
		fmt.Fprintln(tw, "ID\tORDER\tTYPE\tSUMMARY")
		for _, c := range contents {
			fmt.Fprintf(tw, "%d\t%d\t%s\t%s\n", c.ID, c.Order, c.Type, describe(c.Payload))
		}
		tw.Flush()
	}

	fmt.Fprintf(w, "\nQuestions (%d)\n", len(questions))
	if len(questions) > 0 {
		tw := table(w)
		fmt.Fprintln(tw, "ID\tORDER\tTYPE\tTEXT\tANSWER")
		for _, q := range questions {
			fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n", q.ID, q.Order, q.Type, clip(q.Text), clip(string(q.CorrectAnswer)))
		}
		tw.Flush()
	}
}

func describe(p model.Payload) string {
	switch p := p.(type) {
	case model.TextPayload:
		return clip(p.Body)
	case model.PDFPayload:
		return fmt.Sprintf("%s (%d bytes)", p.Filename, p.SizeBytes)
	case model.YouTubePayload:
		return p.URL
	}
	return "?"
}

func printDraft(w io.Writer, d model.ContentDraft) {
	fmt.Fprintf(w, "type:  %s\norder: %d\n", d.Type, d.Order)
	switch d.Type {
	case model.ContentText:
		fmt.Fprintf(w, "text:  %s\n", d.Text)
	case model.ContentYouTube:
		fmt.Fprintf(w, "url:   %s\n", d.URL)
	}
}

func printPreview(w io.Writer, p service.Preview) {
	switch p.Kind {
	case model.PreviewText:
		fmt.Fprintln(w, p.Text)
	case model.PreviewYouTube:
		fmt.Fprintf(w, "YouTube: %s\n", p.URL)
	case model.PreviewPDF:
		fmt.Fprintf(w, "%s: %d pages, %d bytes\n%s\n", p.Filename, p.Handle.Pages, p.Handle.Size, p.Handle.Path)
	default:
		fmt.Fprintf(w, "Content %d cannot be previewed\n", p.ContentID)
	}
}

func printSnapshots(w io.Writer, infos []sqlite.SnapshotInfo) {
	if len(infos) == 0 {
		fmt.Fprintln(w, "No snapshots")
		return
	}
	tw := table(w)
	fmt.Fprintln(tw, "KIND\tSCOPE\tITEMS\tSYNCED")
	for _, s := range infos {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", s.Kind, s.Scope, s.ItemCount, s.SyncedAt.Local().Format(timeLayout))
	}
	tw.Flush()
}

// clip keeps table cells on one line.
func clip(s string) string {
	const max = 48
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > max {
		return string(r[:max-3]) + "..."
	}
	return s
}

func sortByOrder[T any](items []T, order func(T) int) []T {
	return slices.SortedStableFunc(slices.Values(items), func(a, b T) int { return order(a) - order(b) })
}
