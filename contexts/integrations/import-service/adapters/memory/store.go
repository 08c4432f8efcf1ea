package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cratewatch/contexts/integrations/import-service/domain/entities"
	domainerrors "cratewatch/contexts/integrations/import-service/domain/errors"
	"cratewatch/contexts/integrations/import-service/ports"
)

// Store is the in-memory import job repository. CreateJob enforces the
// in-flight single-flight constraint under the lock.
type Store struct {
	mu     sync.Mutex
	jobs   map[string]entities.ImportJob
	now    time.Time
	nextID int
}

func NewStore() *Store {
	return &Store{
		jobs: make(map[string]entities.ImportJob),
		now:  time.Now().UTC(),
	}
}

func (s *Store) CreateJob(_ context.Context, job entities.ImportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.jobs {
		if existing.UserID == job.UserID &&
			existing.Provider == job.Provider &&
			existing.Scope == job.Scope &&
			existing.Status.InFlight() {
			return domainerrors.ErrJobInFlight
		}
	}
	s.jobs[job.JobID] = job
	return nil
}

func (s *Store) GetJob(_ context.Context, jobID string) (entities.ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return entities.ImportJob{}, domainerrors.ErrJobNotFound
	}
	return job, nil
}

func (s *Store) UpdateJob(_ context.Context, job entities.ImportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.JobID]; !ok {
		return domainerrors.ErrJobNotFound
	}
	s.jobs[job.JobID] = job
	return nil
}

func (s *Store) FindInFlightJob(_ context.Context, userID string, provider string, scope entities.ImportScope) (entities.ImportJob, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if job.UserID == userID && job.Provider == provider && job.Scope == scope && job.Status.InFlight() {
			return job, true, nil
		}
	}
	return entities.ImportJob{}, false, nil
}

func (s *Store) FindRecentCompletedJob(_ context.Context, userID string, provider string, scope entities.ImportScope, cutoff time.Time) (entities.ImportJob, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var newest entities.ImportJob
	found := false
	for _, job := range s.jobs {
		if job.UserID != userID || job.Provider != provider || job.Scope != scope {
			continue
		}
		if job.Status != entities.JobCompleted || job.CompletedAt == nil || job.CompletedAt.Before(cutoff) {
			continue
		}
		if !found || job.CompletedAt.After(*newest.CompletedAt) {
			newest = job
			found = true
		}
	}
	return newest, found, nil
}

func (s *Store) ListJobsByUser(_ context.Context, userID string, limit int) ([]entities.ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := make([]entities.ImportJob, 0)
	for _, job := range s.jobs {
		if job.UserID == userID {
			jobs = append(jobs, job)
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
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
	return fmt.Sprintf("job-%04d", s.nextID), nil
}

var (
	_ ports.ImportJobRepository = (*Store)(nil)
	_ ports.Clock               = (*Store)(nil)
	_ ports.IDGenerator         = (*Store)(nil)
)
