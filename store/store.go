package store

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/amase-cc/apremind/types"
)

var tracer = otel.Tracer("store")

// ErrNotFound is returned when no activity is recorded under a URI.
var ErrNotFound = errors.New("activity not found")

// Store is the process-wide table of activities this actor has
// produced, keyed by their canonical URI. Entries are immutable once
// written and live for the life of the process; there is no durable
// backend, so a restart starts empty.
type Store struct {
	mu         sync.RWMutex
	activities map[string]types.ApObject
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		activities: make(map[string]types.ApObject),
	}
}

// Put records an activity under its URI. URIs are minted fresh per
// activity, so re-insertion is indistinguishable from first insertion.
func (s *Store) Put(ctx context.Context, uri string, activity types.ApObject) {
	_, span := tracer.Start(ctx, "Store.Put")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.activities[uri] = activity
}

// Get returns the activity recorded under uri, or ErrNotFound.
func (s *Store) Get(ctx context.Context, uri string) (types.ApObject, error) {
	_, span := tracer.Start(ctx, "Store.Get")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()
	activity, ok := s.activities[uri]
	if !ok {
		return types.ApObject{}, ErrNotFound
	}
	return activity, nil
}
