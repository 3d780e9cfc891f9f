// Package repository defines the contract between the entity stores and whatever
// holds the authoritative records.
//
// Every child collection is addressed by a scope: the id of its parent (deck id for
// cards, collaborators and modules; module id for contents and questions). Decks are
// the root and use scope 0.
package repository

import (
	"context"

	"github.com/sakif/studydeck/internal/model"
)

// RootScope is the scope of the top-level deck collection.
const RootScope int64 = 0

// Entity is anything with a remote-assigned id.
type Entity interface {
	EntityID() int64
}

// Collection is the remote side of one entity kind. T is the stored record, D the
// draft used to create and update it.
//
// Delete receives the whole item because some kinds are not addressed by their own
// id (collaborators are removed by user id).
type Collection[T Entity, D any] interface {
	List(ctx context.Context, scope int64) ([]T, error)
	Create(ctx context.Context, scope int64, draft D) (T, error)
	Update(ctx context.Context, scope, id int64, patch D) (T, error)
	Delete(ctx context.Context, scope int64, item T) error
}

// Previewer fetches preview descriptors and raw bytes of module content.
type Previewer interface {
	Preview(ctx context.Context, moduleID, contentID int64) (model.PreviewDescriptor, error)
	Binary(ctx context.Context, moduleID, contentID int64) ([]byte, error)
}

// Snapshotter keeps the last synced copy of each collection.
type Snapshotter interface {
	SaveSnapshot(ctx context.Context, kind string, scope int64, items any) error
	LoadSnapshot(ctx context.Context, kind string, scope int64, out any) error
}
