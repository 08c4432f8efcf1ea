package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cratewatch/contexts/watching/release-service/domain/entities"
	domainerrors "cratewatch/contexts/watching/release-service/domain/errors"
	"cratewatch/contexts/watching/release-service/ports"
)

// Store is the in-memory watch release repository.
type Store struct {
	mu       sync.Mutex
	releases map[string]entities.WatchRelease
	now      time.Time
	nextID   int
}

func NewStore() *Store {
	return &Store{
		releases: make(map[string]entities.WatchRelease),
		now:      time.Now().UTC(),
	}
}

func (s *Store) CreateRelease(_ context.Context, release entities.WatchRelease) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.releases {
		if existing.UserID != release.UserID {
			continue
		}
		if duplicate(existing, release) {
			return domainerrors.ErrDuplicateRelease
		}
	}
	s.releases[release.WatchReleaseID] = release
	return nil
}

// duplicate mirrors the partial unique indexes: exact_release rows collide on
// discogs_release_id, master_release rows on discogs_master_id.
func duplicate(existing entities.WatchRelease, candidate entities.WatchRelease) bool {
	if existing.MatchMode != candidate.MatchMode {
		return false
	}
	if candidate.MatchMode == entities.MatchModeMasterRelease {
		return existing.DiscogsMasterID == candidate.DiscogsMasterID
	}
	return existing.DiscogsReleaseID == candidate.DiscogsReleaseID
}

func (s *Store) GetRelease(_ context.Context, userID string, watchReleaseID string) (entities.WatchRelease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	release, ok := s.releases[watchReleaseID]
	if !ok || release.UserID != userID {
		return entities.WatchRelease{}, domainerrors.ErrReleaseNotFound
	}
	return release, nil
}

func (s *Store) UpdateRelease(_ context.Context, release entities.WatchRelease) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.releases[release.WatchReleaseID]
	if !ok || existing.UserID != release.UserID {
		return domainerrors.ErrReleaseNotFound
	}
	s.releases[release.WatchReleaseID] = release
	return nil
}

func (s *Store) DeleteRelease(_ context.Context, userID string, watchReleaseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	release, ok := s.releases[watchReleaseID]
	if !ok || release.UserID != userID {
		return domainerrors.ErrReleaseNotFound
	}
	delete(s.releases, watchReleaseID)
	return nil
}

func (s *Store) ListReleasesByUser(_ context.Context, userID string, limit int) ([]entities.WatchRelease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	releases := s.collect(func(release entities.WatchRelease) bool { return release.UserID == userID })
	sort.Slice(releases, func(i, j int) bool { return releases[i].CreatedAt.After(releases[j].CreatedAt) })
	if limit > 0 && len(releases) > limit {
		releases = releases[:limit]
	}
	return releases, nil
}

func (s *Store) ListActiveReleasesByUser(_ context.Context, userID string) ([]entities.WatchRelease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	releases := s.collect(func(release entities.WatchRelease) bool { return release.UserID == userID && release.IsActive })
	sort.Slice(releases, func(i, j int) bool { return releases[i].CreatedAt.Before(releases[j].CreatedAt) })
	return releases, nil
}

func (s *Store) FindByDiscogsRelease(_ context.Context, userID string, discogsReleaseID int64) (entities.WatchRelease, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, release := range s.releases {
		if release.UserID == userID &&
			release.MatchMode == entities.MatchModeExactRelease &&
			release.DiscogsReleaseID == discogsReleaseID {
			return release, true, nil
		}
	}
	return entities.WatchRelease{}, false, nil
}

func (s *Store) FindByDiscogsMaster(_ context.Context, userID string, discogsMasterID int64) (entities.WatchRelease, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, release := range s.releases {
		if release.UserID == userID &&
			release.MatchMode == entities.MatchModeMasterRelease &&
			release.DiscogsMasterID == discogsMasterID {
			return release, true, nil
		}
	}
	return entities.WatchRelease{}, false, nil
}

func (s *Store) collect(keep func(entities.WatchRelease) bool) []entities.WatchRelease {
	releases := make([]entities.WatchRelease, 0)
	for _, release := range s.releases {
		if keep(release) {
			releases = append(releases, release)
		}
	}
	return releases
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
	return fmt.Sprintf("wr-%04d", s.nextID), nil
}

var (
	_ ports.ReleaseRepository = (*Store)(nil)
	_ ports.Clock             = (*Store)(nil)
	_ ports.IDGenerator       = (*Store)(nil)
)
