// Package cache holds the most recent list fetch of every entity kind.
//
// A Snapshot is immutable once built; refreshing a kind builds a new one and
// swaps it in whole, so readers never see a mix of two fetches. A failed
// fetch leaves the previous snapshot in place.
package cache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/smileynet/xiuxian/internal/api"
	"github.com/smileynet/xiuxian/internal/game"
)

// ErrUnknownKind is returned for a kind with no descriptor.
var ErrUnknownKind = errors.New("cache: unknown entity kind")

// Caller is the gateway surface the cache needs.
type Caller interface {
	Call(ctx context.Context, method, endpoint string, body any) (*api.Response, error)
}

// Snapshot is the complete result of one list fetch.
type Snapshot struct {
	Kind      game.Kind
	Order     []int
	ByID      map[int]game.Entity
	FetchedAt time.Time
}

// NewSnapshot builds a snapshot from entities in server order. A repeated
// id keeps its first position and its last value.
func NewSnapshot(kind game.Kind, entities []game.Entity) *Snapshot {
	s := &Snapshot{
		Kind:      kind,
		Order:     make([]int, 0, len(entities)),
		ByID:      make(map[int]game.Entity, len(entities)),
		FetchedAt: time.Now(),
	}
	for _, e := range entities {
		id := e.EntityID()
		if _, seen := s.ByID[id]; !seen {
			s.Order = append(s.Order, id)
		}
		s.ByID[id] = e
	}
	return s
}

// Get looks up one entity.
func (s *Snapshot) Get(id int) (game.Entity, bool) {
	if s == nil {
		return nil, false
	}
	e, ok := s.ByID[id]
	return e, ok
}

// List returns entities in server order.
func (s *Snapshot) List() []game.Entity {
	if s == nil {
		return nil
	}
	out := make([]game.Entity, 0, len(s.Order))
	for _, id := range s.Order {
		out = append(out, s.ByID[id])
	}
	return out
}

// Len returns the number of entities.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Order)
}

// Set is one cache per entity kind. It is safe for concurrent use; the TUI
// still confines Install to its update loop so completion order decides
// which fetch wins.
type Set struct {
	api Caller

	mu    sync.RWMutex
	snaps map[game.Kind]*Snapshot
}

// New creates an empty cache set fetching through c.
func New(c Caller) *Set {
	return &Set{api: c, snaps: make(map[game.Kind]*Snapshot)}
}

// Fetch calls the list endpoint for kind and decodes a new snapshot without
// installing it. Non-success answers come back as wrapped *api.Error.
func (s *Set) Fetch(ctx context.Context, kind game.Kind) (*Snapshot, error) {
	d, ok := game.Describe(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	resp, err := s.api.Call(ctx, http.MethodGet, d.ListPath, nil)
	if err != nil {
		return nil, fmt.Errorf("cache: fetching %s: %w", kind, err)
	}
	if err := resp.Err(); err != nil {
		return nil, fmt.Errorf("cache: fetching %s: %w", kind, err)
	}
	entities, err := d.Decode(resp.Payload)
	if err != nil {
		return nil, fmt.Errorf("cache: fetching %s: %w", kind, err)
	}
	return NewSnapshot(kind, entities), nil
}

// Install replaces the snapshot for snap.Kind wholesale.
func (s *Set) Install(snap *Snapshot) {
	if snap == nil {
		return
	}
	s.mu.Lock()
	s.snaps[snap.Kind] = snap
	s.mu.Unlock()
}

// Refresh fetches and installs kind, returning the new list. On error the
// previous snapshot is untouched.
func (s *Set) Refresh(ctx context.Context, kind game.Kind) ([]game.Entity, error) {
	snap, err := s.Fetch(ctx, kind)
	if err != nil {
		return nil, err
	}
	s.Install(snap)
	return snap.List(), nil
}

// Snapshot returns the current snapshot for kind, or nil before the first
// successful fetch.
func (s *Set) Snapshot(kind game.Kind) *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snaps[kind]
}

// Loaded reports whether kind has been fetched at least once.
func (s *Set) Loaded(kind game.Kind) bool {
	return s.Snapshot(kind) != nil
}

// Get is a pure lookup; it never fetches.
func (s *Set) Get(kind game.Kind, id int) (game.Entity, bool) {
	return s.Snapshot(kind).Get(id)
}

// List returns the cached entities of kind in server order.
func (s *Set) List(kind game.Kind) []game.Entity {
	return s.Snapshot(kind).List()
}

// Label resolves a cross-kind reference to a display name, falling back to
// placeholder when the id is nil or not cached.
func (s *Set) Label(kind game.Kind, id *int, placeholder string) string {
	if id == nil {
		return placeholder
	}
	e, ok := s.Get(kind, *id)
	if !ok {
		return placeholder
	}
	return e.DisplayName()
}

// Lookup is Get with a type assertion to the concrete entity type.
func Lookup[T game.Entity](s *Set, kind game.Kind, id int) (T, bool) {
	var zero T
	e, ok := s.Get(kind, id)
	if !ok {
		return zero, false
	}
	t, ok := e.(T)
	return t, ok
}

// All returns every cached entity of kind asserted to T, skipping any
// entity of another type.
func All[T game.Entity](s *Set, kind game.Kind) []T {
	list := s.List(kind)
	out := make([]T, 0, len(list))
	for _, e := range list {
		if t, ok := e.(T); ok {
			out = append(out, t)
		}
	}
	return out
}
