package ports

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// Provider names are stable identifiers shared with listings and rules.
const (
	ProviderDiscogs = "discogs"
	ProviderEbay    = "ebay"
	ProviderMock    = "mock"
)

func ValidProvider(name string) bool {
	switch name {
	case ProviderDiscogs, ProviderEbay, ProviderMock:
		return true
	default:
		return false
	}
}

// SearchQuery carries the normalized rule query handed to a provider client.
// Seed keeps the mock provider deterministic per rule.
type SearchQuery struct {
	Keywords []string
	Seed     string
}

// Listing is the provider-normalized search result.
// Discogs search results carry price 0 (the search API has no price).
type Listing struct {
	Provider         string
	ExternalID       string
	URL              string
	Title            string
	Price            float64
	Currency         string
	Condition        string
	Seller           string
	Location         string
	DiscogsReleaseID int64
	Raw              map[string]any
}

// ProviderError is the typed failure surfaced after retries are exhausted or
// a permanent upstream error occurs.
type ProviderError struct {
	Provider   string
	Message    string
	StatusCode int
	Endpoint   string
	Method     string
	DurationMS int64
	Meta       map[string]any
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s provider error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s provider error: %s", e.Provider, e.Message)
}

// SearchClient is the normalized provider contract.
type SearchClient interface {
	Provider() string
	Search(ctx context.Context, query SearchQuery, limit int) ([]Listing, error)
}

// RequestLog is one outbound provider call attempt (auth calls included).
type RequestLog struct {
	UserID     string
	Provider   string
	Endpoint   string
	Method     string
	StatusCode int
	DurationMS int64
	Error      string
	Meta       map[string]any
}

// RequestLogSink receives per-attempt request diagnostics. Sink failures must
// not break the provider call; clients drop the error after logging it.
type RequestLogSink interface {
	Record(ctx context.Context, entry RequestLog) error
}

// CountingSink decorates a sink so callers can tell whether the provider
// client logged at least one attempt; zero rows means the caller emits a
// synthetic fallback row.
type CountingSink struct {
	Sink  RequestLogSink
	count int64
}

func (c *CountingSink) Record(ctx context.Context, entry RequestLog) error {
	atomic.AddInt64(&c.count, 1)
	if c.Sink == nil {
		return nil
	}
	return c.Sink.Record(ctx, entry)
}

func (c *CountingSink) Count() int64 {
	return atomic.LoadInt64(&c.count)
}

// AccountLink ties a user to an external provider account. AccessToken and
// RefreshToken are stored as vault envelopes, never plaintext.
type AccountLink struct {
	LinkID               string
	UserID               string
	Provider             string
	ExternalUserID       string
	AccessToken          string
	RefreshToken         string
	AccessTokenExpiresAt *time.Time
	TokenType            string
	Scopes               string
	ConnectedAt          time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// AccountLinkRepository owns (user, provider)-unique account links.
type AccountLinkRepository interface {
	GetLink(ctx context.Context, userID string, provider string) (AccountLink, error)
	SaveLink(ctx context.Context, link AccountLink) error
	// UpdateTokens rewrites the stored token envelopes, used by the lazy
	// plaintext migration and OAuth refresh.
	UpdateTokens(ctx context.Context, linkID string, accessToken string, refreshToken string, updatedAt time.Time) error
}

// TokenCipher is the vault surface the gateway needs.
type TokenCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(stored string) (plaintext string, requiresMigration bool, err error)
}

// ListPage is one page of a user's Discogs wantlist or collection.
type ListPage struct {
	Releases []ListRelease
	Page     int
	Pages    int
}

// ListRelease is the per-release shape extracted from basic_information.
type ListRelease struct {
	ReleaseID int64
	MasterID  int64
	Title     string
	Artist    string
	Year      int
}

// DiscogsListClient pages through wantlist/collection endpoints with a
// user-scoped access token.
type DiscogsListClient interface {
	FetchWantlistPage(ctx context.Context, token string, username string, page int) (ListPage, error)
	FetchCollectionPage(ctx context.Context, token string, username string, page int) (ListPage, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
