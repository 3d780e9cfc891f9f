// Package store holds the in-memory cache of one entity kind.
//
// A Store[T, D] caches the items of T under one scope (the parent id) and keeps them
// in sync with a repository.Collection:
//
//	List     full resync: the settled list replaces the cache wholesale
//	Create   appends the new item at the end and clears the draft
//	Update   replaces the item in place, keeping its position
//	Delete   removes the item
//
// STALE RESPONSES:
// Requests run without holding the lock. Each one is tagged with the scope generation
// it started under; Reset and Clear bump the generation. A response that settles
// under an older generation is discarded and the call returns an ErrStaleScope error,
// which callers drop silently. List responses are additionally ordered: only the
// most recently started List may apply, and a List that settles after a successful
// Create, Update or Delete refetches instead of replacing the cache with older state.
//
// A failed request leaves the cache as it was and records the error for display.
package store

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/sakif/studydeck/internal/apperror"
	"github.com/sakif/studydeck/internal/repository"
)

// MirrorFunc receives the cache contents after every settled change.
type MirrorFunc[T any] func(ctx context.Context, scope int64, items []T)

type Option[T any] func(*options[T])

type options[T any] struct {
	mirror MirrorFunc[T]
}

// WithMirror registers fn to run after every settled change.
func WithMirror[T any](fn MirrorFunc[T]) Option[T] {
	return func(o *options[T]) { o.mirror = fn }
}

type Store[T repository.Entity, D any] struct {
	kind   string
	remote repository.Collection[T, D]
	logger *slog.Logger
	mirror MirrorFunc[T]

	mu      sync.Mutex
	active  bool
	scope   int64
	gen     uint64
	listSeq uint64
	edits   uint64 // successful mutations, checked by List
	loading bool
	items   []T
	err     error
	draft   D
}

// New returns an inactive store. Call Reset or List to give it a scope.
func New[T repository.Entity, D any](kind string, remote repository.Collection[T, D], logger *slog.Logger, opts ...Option[T]) *Store[T, D] {
	var o options[T]
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[T, D]{
		kind:   kind,
		remote: remote,
		logger: logger.With(slog.String("kind", kind)),
		mirror: o.mirror,
	}
}

// Kind is the entity kind name used in logs and snapshots.
func (s *Store[T, D]) Kind() string { return s.kind }

// Reset moves the store to scope with an empty cache. In-flight responses for the
// previous scope become stale.
func (s *Store[T, D]) Reset(scope int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked(scope)
}

// Clear empties the store and leaves it without a scope.
func (s *Store[T, D]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked(0)
	s.active = false
}

func (s *Store[T, D]) resetLocked(scope int64) {
	s.active = true
	s.scope = scope
	s.gen++
	s.loading = false
	s.items = nil
	s.err = nil
	var zero D
	s.draft = zero
}

// ticket identifies the scope generation a request started under.
type ticket struct {
	scope int64
	gen   uint64
}

func (s *Store[T, D]) currentLocked(t ticket) bool {
	return s.active && s.scope == t.scope && s.gen == t.gen
}

func (s *Store[T, D]) stale(op string, t ticket) error {
	s.logger.Warn("discarding stale response",
		slog.String("op", op),
		slog.Int64("scope", t.scope),
	)
	return apperror.StaleScope(s.kind, t.scope)
}

// maxListAttempts bounds how often List refetches when mutations keep settling
// while it is in flight.
const maxListAttempts = 3

// List fetches every item under scope and replaces the cache with it. Listing a
// scope other than the current one resets the store first.
func (s *Store[T, D]) List(ctx context.Context, scope int64) ([]T, error) {
	s.mu.Lock()
	if !s.active || s.scope != scope {
		s.resetLocked(scope)
	}
	s.listSeq++
	seq := s.listSeq
	t := ticket{scope: scope, gen: s.gen}
	s.loading = true
	s.mu.Unlock()

	for attempt := 1; ; attempt++ {
		s.mu.Lock()
		edits := s.edits
		s.mu.Unlock()

		items, err := s.remote.List(ctx, scope)

		s.mu.Lock()
		if !s.currentLocked(t) || s.listSeq != seq {
			s.mu.Unlock()
			return nil, s.stale("list", t)
		}
		if err == nil && s.edits != edits {
			if attempt < maxListAttempts {
				s.mu.Unlock()
				s.logger.Debug("list overtaken by a change, refetching",
					slog.Int64("scope", scope),
					slog.Int("attempt", attempt),
				)
				continue
			}
			s.loading = false
			s.mu.Unlock()
			return nil, s.stale("list", t)
		}
		s.loading = false
		if err != nil {
			s.err = err
			s.mu.Unlock()
			s.logger.Warn("list failed", slog.Int64("scope", scope), slog.String("error", err.Error()))
			return nil, err
		}
		s.items = slices.Clone(items)
		s.err = nil
		snapshot := slices.Clone(s.items)
		s.mu.Unlock()

		s.logger.Info("list synced", slog.Int64("scope", scope), slog.Int("count", len(snapshot)))
		s.mirrorState(ctx, scope, snapshot)
		return slices.Clone(snapshot), nil
	}
}

// Create sends draft under scope and appends the result. scope must be the store's
// current scope.
func (s *Store[T, D]) Create(ctx context.Context, scope int64, draft D) (T, error) {
	var zero T

	s.mu.Lock()
	t := ticket{scope: scope, gen: s.gen}
	if !s.currentLocked(t) {
		s.mu.Unlock()
		return zero, s.stale("create", t)
	}
	s.mu.Unlock()

	item, err := s.remote.Create(ctx, scope, draft)

	s.mu.Lock()
	if !s.currentLocked(t) {
		s.mu.Unlock()
		return zero, s.stale("create", t)
	}
	if err != nil {
		s.err = err
		s.mu.Unlock()
		s.logger.Warn("create failed", slog.Int64("scope", scope), slog.String("error", err.Error()))
		return zero, err
	}
	// A List that settled first may already hold the new item.
	if i := s.indexLocked(item.EntityID()); i >= 0 {
		s.items[i] = item
	} else {
		s.items = append(s.items, item)
	}
	s.edits++
	s.err = nil
	var empty D
	s.draft = empty
	snapshot := slices.Clone(s.items)
	s.mu.Unlock()

	s.logger.Info("created", slog.Int64("scope", scope), slog.Int64("id", item.EntityID()))
	s.mirrorState(ctx, scope, snapshot)
	return item, nil
}

// Submit creates an item from the pending draft in the current scope.
func (s *Store[T, D]) Submit(ctx context.Context) (T, error) {
	s.mu.Lock()
	scope, active, draft := s.scope, s.active, s.draft
	s.mu.Unlock()

	if !active {
		var zero T
		return zero, apperror.ValidationFailed("scope", "nothing is selected to add "+s.kind+" to")
	}
	return s.Create(ctx, scope, draft)
}

// Update replaces item id with the remote result. It fails with ErrNotFound without
// sending anything when id is not cached.
func (s *Store[T, D]) Update(ctx context.Context, id int64, patch D) (T, error) {
	var zero T

	s.mu.Lock()
	t := ticket{scope: s.scope, gen: s.gen}
	if !s.active || s.indexLocked(id) < 0 {
		s.mu.Unlock()
		return zero, apperror.NotFound(s.kind, id)
	}
	s.mu.Unlock()

	item, err := s.remote.Update(ctx, t.scope, id, patch)

	s.mu.Lock()
	if !s.currentLocked(t) {
		s.mu.Unlock()
		return zero, s.stale("update", t)
	}
	if err != nil {
		s.err = err
		s.mu.Unlock()
		s.logger.Warn("update failed", slog.Int64("id", id), slog.String("error", err.Error()))
		return zero, err
	}
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return zero, apperror.NotFound(s.kind, id)
	}
	s.items[i] = item
	s.edits++
	s.err = nil
	snapshot := slices.Clone(s.items)
	s.mu.Unlock()

	s.logger.Info("updated", slog.Int64("scope", t.scope), slog.Int64("id", id))
	s.mirrorState(ctx, t.scope, snapshot)
	return item, nil
}

// Delete removes item id remotely and from the cache. It fails with ErrNotFound
// without sending anything when id is not cached.
func (s *Store[T, D]) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	t := ticket{scope: s.scope, gen: s.gen}
	i := -1
	if s.active {
		i = s.indexLocked(id)
	}
	if i < 0 {
		s.mu.Unlock()
		return apperror.NotFound(s.kind, id)
	}
	item := s.items[i]
	s.mu.Unlock()

	err := s.remote.Delete(ctx, t.scope, item)

	s.mu.Lock()
	if !s.currentLocked(t) {
		s.mu.Unlock()
		return s.stale("delete", t)
	}
	if err != nil {
		s.err = err
		s.mu.Unlock()
		s.logger.Warn("delete failed", slog.Int64("id", id), slog.String("error", err.Error()))
		return err
	}
	if i := s.indexLocked(id); i >= 0 {
		s.items = slices.Delete(s.items, i, i+1)
	}
	s.edits++
	s.err = nil
	snapshot := slices.Clone(s.items)
	s.mu.Unlock()

	s.logger.Info("deleted", slog.Int64("scope", t.scope), slog.Int64("id", id))
	s.mirrorState(ctx, t.scope, snapshot)
	return nil
}

func (s *Store[T, D]) indexLocked(id int64) int {
	return slices.IndexFunc(s.items, func(item T) bool { return item.EntityID() == id })
}

func (s *Store[T, D]) mirrorState(ctx context.Context, scope int64, items []T) {
	if s.mirror != nil {
		s.mirror(ctx, scope, items)
	}
}

// Items returns a copy of the cache in local order.
func (s *Store[T, D]) Items() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

// Sorted returns a copy of the cache ordered by key ascending. Ties keep local
// order, which is creation order for items appended by Create.
func (s *Store[T, D]) Sorted(key func(T) int) []T {
	items := s.Items()
	slices.SortStableFunc(items, func(a, b T) int { return cmp.Compare(key(a), key(b)) })
	return items
}

// Get returns the cached item with id.
func (s *Store[T, D]) Get(id int64) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.items[i], true
	}
	var zero T
	return zero, false
}

func (s *Store[T, D]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Scope returns the current scope and whether the store has one.
func (s *Store[T, D]) Scope() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope, s.active
}

// Loading reports whether a List is in flight for the current scope.
func (s *Store[T, D]) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err is the error of the last failed operation in this scope, nil after a success.
func (s *Store[T, D]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// ErrMessage is Err as shown to the user.
func (s *Store[T, D]) ErrMessage() string {
	return apperror.UserMessage(s.Err())
}

func (s *Store[T, D]) SetDraft(d D) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = d
}

func (s *Store[T, D]) Draft() D {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// SnapshotMirror returns a MirrorFunc that saves each settled list under kind.
// Save failures are logged; the remote operation already succeeded.
func SnapshotMirror[T any](snap repository.Snapshotter, kind string, logger *slog.Logger) MirrorFunc[T] {
	return func(ctx context.Context, scope int64, items []T) {
		if items == nil {
			items = []T{}
		}
		if err := snap.SaveSnapshot(ctx, kind, scope, items); err != nil {
			logger.Warn("snapshot not saved",
				slog.String("kind", kind),
				slog.Int64("scope", scope),
				slog.String("error", err.Error()),
			)
		}
	}
}
