package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"ticketapp/internal/kvstore"
	"ticketapp/internal/models"
)

const sessionKey = "ticketapp_session"

// Store holds the current authenticated identity. At most one session exists
// at a time; presence of the persisted value is the authentication signal.
type Store struct {
	mu sync.Mutex
	kv kvstore.KV
}

func NewStore(kv kvstore.KV) *Store {
	return &Store{kv: kv}
}

func (s *Store) IsAuthenticated(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok, err := s.kv.Get(ctx, sessionKey)
	return ok, err
}

func (s *Store) Get(ctx context.Context) (models.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok, err := s.kv.Get(ctx, sessionKey)
	if err != nil || !ok {
		return models.Session{}, false, err
	}
	var session models.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return models.Session{}, false, fmt.Errorf("%w: %s: %v", kvstore.ErrCorrupt, sessionKey, err)
	}
	return session, true, nil
}

// Set overwrites any prior session unconditionally.
func (s *Store) Set(ctx context.Context, session models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, sessionKey, string(data))
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Delete(ctx, sessionKey)
}
