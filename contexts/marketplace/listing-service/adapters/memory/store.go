package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cratewatch/contexts/marketplace/listing-service/domain/entities"
	domainerrors "cratewatch/contexts/marketplace/listing-service/domain/errors"
	"cratewatch/contexts/marketplace/listing-service/domain/services"
	"cratewatch/contexts/marketplace/listing-service/ports"
)

// Store is the in-memory adapter set used by tests and local bootstrap.
// It also implements the rule and release directories so the ingest pipeline
// can run without the other contexts wired in.
type Store struct {
	mu         sync.Mutex
	listings   map[string]entities.Listing
	byProvider map[string]string
	snapshots  map[string][]entities.PriceSnapshot
	matches    map[string]entities.WatchMatch
	matchKeys  map[string]struct{}
	clicks     []entities.OutboundClick
	filters    map[string][]services.RuleFilter
	candidates map[string][]services.ReleaseCandidate
	now        time.Time
	nextID     int
}

func NewStore() *Store {
	return &Store{
		listings:   make(map[string]entities.Listing),
		byProvider: make(map[string]string),
		snapshots:  make(map[string][]entities.PriceSnapshot),
		matches:    make(map[string]entities.WatchMatch),
		matchKeys:  make(map[string]struct{}),
		filters:    make(map[string][]services.RuleFilter),
		candidates: make(map[string][]services.ReleaseCandidate),
		now:        time.Now().UTC(),
	}
}

func providerKey(provider string, externalID string) string {
	return provider + "|" + externalID
}

func (s *Store) FindByProviderExternalID(_ context.Context, provider string, externalID string) (entities.Listing, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	listingID, ok := s.byProvider[providerKey(provider, externalID)]
	if !ok {
		return entities.Listing{}, false, nil
	}
	return s.listings[listingID], true, nil
}

func (s *Store) GetListing(_ context.Context, listingID string) (entities.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	listing, ok := s.listings[listingID]
	if !ok {
		return entities.Listing{}, domainerrors.ErrListingNotFound
	}
	return listing, nil
}

func (s *Store) CreateListing(_ context.Context, listing entities.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings[listing.ListingID] = listing
	s.byProvider[providerKey(listing.Provider, listing.ExternalID)] = listing.ListingID
	return nil
}

func (s *Store) UpdateListing(_ context.Context, listing entities.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.listings[listing.ListingID]; !ok {
		return domainerrors.ErrListingNotFound
	}
	s.listings[listing.ListingID] = listing
	return nil
}

func (s *Store) AddSnapshot(_ context.Context, snapshot entities.PriceSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshot.ListingID] = append(s.snapshots[snapshot.ListingID], snapshot)
	return nil
}

func (s *Store) ListSnapshots(_ context.Context, listingID string) ([]entities.PriceSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshots := make([]entities.PriceSnapshot, len(s.snapshots[listingID]))
	copy(snapshots, s.snapshots[listingID])
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].RecordedAt.Before(snapshots[j].RecordedAt)
	})
	return snapshots, nil
}

func (s *Store) CreateMatch(_ context.Context, match entities.WatchMatch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := match.RuleID + "|" + match.ListingID
	if _, exists := s.matchKeys[key]; exists {
		return false, nil
	}
	s.matchKeys[key] = struct{}{}
	s.matches[match.MatchID] = match
	return true, nil
}

func (s *Store) DeleteMatch(_ context.Context, matchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	match, ok := s.matches[matchID]
	if !ok {
		return nil
	}
	delete(s.matchKeys, match.RuleID+"|"+match.ListingID)
	delete(s.matches, matchID)
	return nil
}

func (s *Store) ListMatchesByRule(_ context.Context, ruleID string, limit int) ([]entities.WatchMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collectMatches(limit, func(match entities.WatchMatch) bool {
		return match.RuleID == ruleID
	}), nil
}

func (s *Store) ListMatchesByUser(_ context.Context, userID string, limit int) ([]entities.WatchMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collectMatches(limit, func(match entities.WatchMatch) bool {
		return match.UserID == userID
	}), nil
}

func (s *Store) collectMatches(limit int, keep func(entities.WatchMatch) bool) []entities.WatchMatch {
	matches := make([]entities.WatchMatch, 0)
	for _, match := range s.matches {
		if keep(match) {
			matches = append(matches, match)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].MatchedAt.After(matches[j].MatchedAt)
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func (s *Store) CreateClick(_ context.Context, click entities.OutboundClick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clicks = append(s.clicks, click)
	return nil
}

// Clicks returns a copy of the recorded outbound clicks.
func (s *Store) Clicks() []entities.OutboundClick {
	s.mu.Lock()
	defer s.mu.Unlock()
	clicks := make([]entities.OutboundClick, len(s.clicks))
	copy(clicks, s.clicks)
	return clicks
}

func (s *Store) ActiveFilters(_ context.Context, userID string) ([]services.RuleFilter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	filters := make([]services.RuleFilter, len(s.filters[userID]))
	copy(filters, s.filters[userID])
	return filters, nil
}

func (s *Store) SetFilters(userID string, filters []services.RuleFilter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters[userID] = filters
}

func (s *Store) ActiveCandidates(_ context.Context, userID string) ([]services.ReleaseCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	candidates := make([]services.ReleaseCandidate, len(s.candidates[userID]))
	copy(candidates, s.candidates[userID])
	return candidates, nil
}

func (s *Store) SetCandidates(userID string, candidates []services.ReleaseCandidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidates[userID] = candidates
}

func (s *Store) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *Store) SetNow(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) NewID(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return fmt.Sprintf("id-%04d", s.nextID), nil
}

var (
	_ ports.ListingRepository = (*Store)(nil)
	_ ports.MatchRepository   = (*Store)(nil)
	_ ports.ClickRepository   = (*Store)(nil)
	_ ports.RuleDirectory     = (*Store)(nil)
	_ ports.ReleaseDirectory  = (*Store)(nil)
	_ ports.Clock             = (*Store)(nil)
	_ ports.IDGenerator       = (*Store)(nil)
)
