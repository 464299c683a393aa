package triage

import (
	"context"
	"errors"
	"time"

	cache "github.com/patrickmn/go-cache"
)

// ErrSessionNotFound maps to HTTP 404 at the transport layer.
var ErrSessionNotFound = errors.New("session not found")

// Store owns every IntakeRecord. The Service is the only writer of
// Status, Specialty, GuidanceNote and History appends; it receives a
// record from Get for the duration of one request and commits it back
// with Save.
type Store interface {
	Create(ctx context.Context, rec *IntakeRecord) error
	Get(ctx context.Context, sessionID string) (*IntakeRecord, error)
	Save(ctx context.Context, rec *IntakeRecord) error
}

// memoryStore is the default backend: a process-wide cache with no
// expiration, so records live for the life of the process. Mutations are
// in-place on the stored record.
type memoryStore struct {
	cache *cache.Cache
}

// NewMemoryStore builds the in-memory store.
func NewMemoryStore() Store {
	return &memoryStore{cache: cache.New(cache.NoExpiration, 0)}
}

func (s *memoryStore) Create(ctx context.Context, rec *IntakeRecord) error {
	s.cache.Set(rec.ID.String(), rec, cache.NoExpiration)
	return nil
}

func (s *memoryStore) Get(ctx context.Context, sessionID string) (*IntakeRecord, error) {
	if x, found := s.cache.Get(sessionID); found {
		return x.(*IntakeRecord), nil
	}
	return nil, ErrSessionNotFound
}

func (s *memoryStore) Save(ctx context.Context, rec *IntakeRecord) error {
	rec.UpdatedAt = time.Now()
	s.cache.Set(rec.ID.String(), rec, cache.NoExpiration)
	return nil
}
