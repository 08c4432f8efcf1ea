package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	domainerrors "cratewatch/contexts/integrations/provider-gateway/domain/errors"
	"cratewatch/contexts/integrations/provider-gateway/ports"
)

// Store is the in-memory adapter set used by tests and local bootstrap.
type Store struct {
	mu       sync.Mutex
	links    map[string]ports.AccountLink
	requests []ports.RequestLog
}

func NewStore() *Store {
	return &Store{links: make(map[string]ports.AccountLink)}
}

func linkKey(userID string, provider string) string {
	return userID + "|" + provider
}

func (s *Store) GetLink(_ context.Context, userID string, provider string) (ports.AccountLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[linkKey(userID, provider)]
	if !ok {
		return ports.AccountLink{}, domainerrors.ErrLinkNotFound
	}
	return link, nil
}

func (s *Store) SaveLink(_ context.Context, link ports.AccountLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := linkKey(link.UserID, link.Provider)
	if existing, ok := s.links[key]; ok {
		link.LinkID = existing.LinkID
		link.CreatedAt = existing.CreatedAt
	}
	s.links[key] = link
	return nil
}

func (s *Store) UpdateTokens(_ context.Context, linkID string, accessToken string, refreshToken string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, link := range s.links {
		if link.LinkID == linkID {
			link.AccessToken = accessToken
			link.RefreshToken = refreshToken
			link.UpdatedAt = updatedAt
			s.links[key] = link
			return nil
		}
	}
	return domainerrors.ErrLinkNotFound
}

func (s *Store) Record(_ context.Context, entry ports.RequestLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, entry)
	return nil
}

// Requests returns a copy of the recorded request rows.
func (s *Store) Requests() []ports.RequestLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.RequestLog, len(s.requests))
	copy(out, s.requests)
	return out
}

type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock { return &Clock{now: now} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) SetNow(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

type IDGenerator struct {
	mu   sync.Mutex
	next int
}

func (g *IDGenerator) NewID(_ context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("id-%04d", g.next), nil
}

var (
	_ ports.AccountLinkRepository = (*Store)(nil)
	_ ports.RequestLogSink        = (*Store)(nil)
	_ ports.Clock                 = (*Clock)(nil)
	_ ports.IDGenerator           = (*IDGenerator)(nil)
)
