package entities

import "time"

type ListingStatus string

const (
	ListingStatusActive  ListingStatus = "active"
	ListingStatusEnded   ListingStatus = "ended"
	ListingStatusUnknown ListingStatus = "unknown"
)

// Listing is a canonical marketplace offer, unique by (provider, external_id)
// and shared across users.
type Listing struct {
	ListingID        string
	Provider         string
	ExternalID       string
	URL              string
	Title            string
	NormalizedTitle  string
	Price            float64
	Currency         string
	Condition        string
	Seller           string
	Location         string
	Status           ListingStatus
	DiscogsReleaseID int64
	DiscogsMasterID  int64
	FirstSeenAt      time.Time
	LastSeenAt       time.Time
	Raw              map[string]any
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PriceSnapshot is one historical price observation. Append-only.
type PriceSnapshot struct {
	SnapshotID string
	ListingID  string
	Price      float64
	Currency   string
	RecordedAt time.Time
}

// WatchMatch joins a listing to a rule whose predicate it satisfied.
// Unique by (rule_id, listing_id).
type WatchMatch struct {
	MatchID      string
	RuleID       string
	UserID       string
	ListingID    string
	MatchedAt    time.Time
	MatchContext map[string]any
}

// OutboundClick records a user following a listing link off-site.
type OutboundClick struct {
	ClickID   string
	UserID    string
	ListingID string
	Provider  string
	Referrer  string
	CreatedAt time.Time
}
