package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cratewatch/contexts/watching/rule-service/domain/entities"
	domainerrors "cratewatch/contexts/watching/rule-service/domain/errors"
	"cratewatch/contexts/watching/rule-service/ports"
)

// Store is the in-memory rule repository. Claims are a mutex-guarded map of
// rule id to claim instant, the best-effort branch of the scheduler's claim
// contract.
type Store struct {
	mu      sync.Mutex
	rules   map[string]entities.WatchRule
	claimed map[string]time.Time
	now     time.Time
	nextID  int
}

func NewStore() *Store {
	return &Store{
		rules:   make(map[string]entities.WatchRule),
		claimed: make(map[string]time.Time),
		now:     time.Now().UTC(),
	}
}

func (s *Store) CreateRule(_ context.Context, rule entities.WatchRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[rule.RuleID] = rule
	return nil
}

func (s *Store) GetRule(_ context.Context, userID string, ruleID string) (entities.WatchRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.rules[ruleID]
	if !ok || rule.UserID != userID {
		return entities.WatchRule{}, domainerrors.ErrRuleNotFound
	}
	return rule, nil
}

func (s *Store) GetRuleByID(_ context.Context, ruleID string) (entities.WatchRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.rules[ruleID]
	if !ok {
		return entities.WatchRule{}, domainerrors.ErrRuleNotFound
	}
	return rule, nil
}

func (s *Store) UpdateRule(_ context.Context, rule entities.WatchRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.rules[rule.RuleID]
	if !ok || existing.UserID != rule.UserID {
		return domainerrors.ErrRuleNotFound
	}
	s.rules[rule.RuleID] = rule
	return nil
}

func (s *Store) DeleteRule(_ context.Context, userID string, ruleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.rules[ruleID]
	if !ok || rule.UserID != userID {
		return domainerrors.ErrRuleNotFound
	}
	delete(s.rules, ruleID)
	delete(s.claimed, ruleID)
	return nil
}

func (s *Store) ListRulesByUser(_ context.Context, userID string, limit int) ([]entities.WatchRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rules := s.collect(func(rule entities.WatchRule) bool { return rule.UserID == userID })
	sort.Slice(rules, func(i, j int) bool { return rules[i].CreatedAt.After(rules[j].CreatedAt) })
	if limit > 0 && len(rules) > limit {
		rules = rules[:limit]
	}
	return rules, nil
}

func (s *Store) ListActiveRulesByUser(_ context.Context, userID string) ([]entities.WatchRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rules := s.collect(func(rule entities.WatchRule) bool { return rule.UserID == userID && rule.IsActive })
	sort.Slice(rules, func(i, j int) bool { return rules[i].CreatedAt.Before(rules[j].CreatedAt) })
	return rules, nil
}

func (s *Store) ClaimDueRules(_ context.Context, now time.Time, limit int) ([]entities.WatchRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	due := s.collect(func(rule entities.WatchRule) bool {
		if !rule.IsActive {
			return false
		}
		if _, taken := s.claimed[rule.RuleID]; taken {
			return false
		}
		return rule.NextRunAt == nil || !rule.NextRunAt.After(now)
	})
	sort.Slice(due, func(i, j int) bool {
		a, b := due[i], due[j]
		switch {
		case a.NextRunAt == nil && b.NextRunAt != nil:
			return true
		case a.NextRunAt != nil && b.NextRunAt == nil:
			return false
		case a.NextRunAt != nil && b.NextRunAt != nil && !a.NextRunAt.Equal(*b.NextRunAt):
			return a.NextRunAt.Before(*b.NextRunAt)
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	for _, rule := range due {
		s.claimed[rule.RuleID] = now
	}
	return due, nil
}

func (s *Store) ReleaseExpiredClaims(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var released int64
	for ruleID, claimedAt := range s.claimed {
		if claimedAt.Before(cutoff) {
			delete(s.claimed, ruleID)
			released++
		}
	}
	return released, nil
}

func (s *Store) RecordRunResult(_ context.Context, ruleID string, lastRunAt *time.Time, nextRunAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.rules[ruleID]
	if !ok {
		return domainerrors.ErrRuleNotFound
	}
	if lastRunAt != nil {
		utc := lastRunAt.UTC()
		rule.LastRunAt = &utc
		rule.UpdatedAt = utc
	}
	next := nextRunAt.UTC()
	rule.NextRunAt = &next
	s.rules[ruleID] = rule
	delete(s.claimed, ruleID)
	return nil
}

func (s *Store) DisableRulesForUser(_ context.Context, userID string, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var flipped int64
	for ruleID, rule := range s.rules {
		if rule.UserID == userID && rule.IsActive {
			rule.IsActive = false
			rule.UpdatedAt = now
			s.rules[ruleID] = rule
			flipped++
		}
	}
	return flipped, nil
}

func (s *Store) collect(keep func(entities.WatchRule) bool) []entities.WatchRule {
	rules := make([]entities.WatchRule, 0)
	for _, rule := range s.rules {
		if keep(rule) {
			rules = append(rules, rule)
		}
	}
	return rules
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
	return fmt.Sprintf("rule-%04d", s.nextID), nil
}

var (
	_ ports.RuleRepository = (*Store)(nil)
	_ ports.Clock          = (*Store)(nil)
	_ ports.IDGenerator    = (*Store)(nil)
)
