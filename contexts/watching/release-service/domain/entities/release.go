package entities

import "time"

// MatchMode decides which Discogs identifier a watch release is keyed on.
type MatchMode string

const (
	MatchModeExactRelease  MatchMode = "exact_release"
	MatchModeMasterRelease MatchMode = "master_release"
)

func ValidMatchMode(mode MatchMode) bool {
	switch mode {
	case MatchModeExactRelease, MatchModeMasterRelease:
		return true
	default:
		return false
	}
}

// WatchRelease is a specific record a user tracks. Uniqueness is partial:
// (user_id, discogs_release_id) for exact_release rows and
// (user_id, discogs_master_id) for master_release rows.
type WatchRelease struct {
	WatchReleaseID         string
	UserID                 string
	DiscogsReleaseID       int64
	DiscogsMasterID        int64
	MatchMode              MatchMode
	Title                  string
	Artist                 string
	Year                   int
	TargetPrice            *float64
	Currency               string
	MinCondition           string
	IsActive               bool
	ImportedFromWantlist   bool
	ImportedFromCollection bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}
