// Package model defines the entities of the study-content tree.
//
// OWNERSHIP:
//
//	Deck ─┬─ Card          (exclusively owned, scoped by deck id)
//	      ├─ Collaborator  (exclusively owned, append-only locally)
//	      └─ Module ─┬─ Content   (scoped by module id)
//	                 └─ Question  (scoped by module id)
//
// Every entity here is a cache of a remote-authoritative record. Ids are assigned by
// the remote service and never invented locally. JSON tags match the remote wire
// format (snake_case).
package model

import "time"

// Visibility controls whether non-collaborators can read a deck.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// Valid reports whether v is one of the known visibilities.
func (v Visibility) Valid() bool {
	return v == VisibilityPrivate || v == VisibilityPublic
}

// Deck is the root of the tree. Cards, Modules and Collaborators reference it by id;
// they are never embedded.
type Deck struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Visibility  Visibility `json:"visibility"`
	OwnerID     int64      `json:"owner_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

func (d Deck) EntityID() int64 { return d.ID }

// DeckDraft is the create/update body for a deck.
// An empty Visibility is sent as private.
type DeckDraft struct {
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Visibility  Visibility `json:"visibility"`
}

type Card struct {
	ID           int64      `json:"id"`
	DeckID       int64      `json:"deck_id"`
	FrontContent string     `json:"front_content"`
	BackContent  string     `json:"back_content"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

func (c Card) EntityID() int64 { return c.ID }

type CardDraft struct {
	FrontContent string `json:"front_content"`
	BackContent  string `json:"back_content"`
}

// Collaborator grants a user access to a deck. The remote addresses removal by
// UserID, not by ID.
type Collaborator struct {
	ID        int64     `json:"id"`
	DeckID    int64     `json:"deck_id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (c Collaborator) EntityID() int64 { return c.ID }

type CollaboratorDraft struct {
	DeckID int64 `json:"deck_id"`
	UserID int64 `json:"user_id"`
}

type Module struct {
	ID          int64   `json:"id"`
	DeckID      int64   `json:"deck_id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
}

func (m Module) EntityID() int64 { return m.ID }

type ModuleDraft struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
}

// StringPtr returns nil for an empty string, otherwise a pointer to s.
// Optional text fields use it so "" is sent as JSON null.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
