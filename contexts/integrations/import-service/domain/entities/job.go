package entities

import "time"

// ImportScope selects which Discogs lists a job ingests.
type ImportScope string

const (
	ScopeWantlist   ImportScope = "wantlist"
	ScopeCollection ImportScope = "collection"
	ScopeBoth       ImportScope = "both"
)

func ValidScope(scope ImportScope) bool {
	switch scope {
	case ScopeWantlist, ScopeCollection, ScopeBoth:
		return true
	default:
		return false
	}
}

// JobStatus is the import job state machine: pending -> running ->
// {completed, failed}. Terminal rows are never mutated again.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

func (s JobStatus) InFlight() bool {
	return s == JobPending || s == JobRunning
}

// ImportJob is one paginated external-list ingestion. At most one in-flight
// job exists per (user, provider, scope).
type ImportJob struct {
	JobID          string
	UserID         string
	AccountLinkID  string
	Provider       string
	Scope          ImportScope
	Status         JobStatus
	Cursor         string
	Page           int
	ProcessedCount int
	ImportedCount  int
	CreatedCount   int
	UpdatedCount   int
	ErrorCount     int
	Errors         []string
	StartedAt      *time.Time
	CompletedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
