package discogs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cratewatch/contexts/integrations/provider-gateway/adapters/shared"
	domainerrors "cratewatch/contexts/integrations/provider-gateway/domain/errors"
	"cratewatch/contexts/integrations/provider-gateway/ports"
)

const (
	defaultBaseURL   = "https://api.discogs.com"
	publicSiteURL    = "https://www.discogs.com"
	searchEndpoint   = "/database/search"
	maxSearchPerPage = 50
)

// Options configures one user-bound Discogs search client.
type Options struct {
	BaseURL    string
	Token      string
	UserAgent  string
	UserID     string
	HTTPClient *http.Client
	Retry      shared.RetryPolicy
	Sink       ports.RequestLogSink
	Logger     *slog.Logger
}

// SearchClient queries the Discogs database search API. Search results are
// release-level and carry price 0; Discogs search has no pricing.
type SearchClient struct {
	opts   Options
	client *http.Client
	logger *slog.Logger
}

func NewSearchClient(opts Options) *SearchClient {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchClient{opts: opts, client: client, logger: logger}
}

func (c *SearchClient) Provider() string { return ports.ProviderDiscogs }

type searchResponse struct {
	Pagination struct {
		Page  int `json:"page"`
		Pages int `json:"pages"`
	} `json:"pagination"`
	Results []searchResult `json:"results"`
}

type searchResult struct {
	ID          int64  `json:"id"`
	MasterID    int64  `json:"master_id"`
	Title       string `json:"title"`
	URI         string `json:"uri"`
	ResourceURL string `json:"resource_url"`
	Year        string `json:"year"`
	Country     string `json:"country"`
}

func (c *SearchClient) Search(ctx context.Context, query ports.SearchQuery, limit int) ([]ports.Listing, error) {
	terms := joinKeywords(query.Keywords)
	if terms == "" {
		return nil, domainerrors.ErrInvalidSearchTerm
	}
	if c.opts.Token == "" {
		return nil, domainerrors.ErrProviderDisabled
	}

	perPage := limit
	if perPage <= 0 || perPage > maxSearchPerPage {
		perPage = maxSearchPerPage
	}

	base := c.opts.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	params := url.Values{}
	params.Set("q", terms)
	params.Set("type", "release")
	params.Set("per_page", strconv.Itoa(perPage))
	requestURL := base + searchEndpoint + "?" + params.Encode()

	maxAttempts := c.opts.Retry.Attempts()
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		listings, retryAfter, provErr := c.attempt(ctx, requestURL, attempt, maxAttempts)
		if provErr == nil {
			return listings, nil
		}
		if !provErr.retryable || attempt == maxAttempts {
			return nil, provErr.err
		}
		if err := shared.Sleep(ctx, c.opts.Retry.Backoff(attempt, retryAfter)); err != nil {
			return nil, err
		}
	}
	return nil, &ports.ProviderError{Provider: ports.ProviderDiscogs, Message: "retries exhausted", Endpoint: searchEndpoint, Method: http.MethodGet}
}

type attemptFailure struct {
	err       error
	retryable bool
}

func (c *SearchClient) attempt(ctx context.Context, requestURL string, attempt int, maxAttempts int) ([]ports.Listing, string, *attemptFailure) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, "", &attemptFailure{err: err}
	}
	req.Header.Set("Authorization", "Discogs token="+c.opts.Token)
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	durationMS := time.Since(start).Milliseconds()

	meta := map[string]any{
		"attempt":      attempt,
		"max_attempts": maxAttempts,
	}

	if err != nil {
		message := shared.TruncateError(shared.Redact(err.Error(), c.opts.Token))
		c.record(ctx, ports.RequestLog{
			UserID:     c.opts.UserID,
			Provider:   ports.ProviderDiscogs,
			Endpoint:   searchEndpoint,
			Method:     http.MethodGet,
			DurationMS: durationMS,
			Error:      message,
			Meta:       meta,
		})
		return nil, "", &attemptFailure{
			err: &ports.ProviderError{
				Provider:   ports.ProviderDiscogs,
				Message:    message,
				Endpoint:   searchEndpoint,
				Method:     http.MethodGet,
				DurationMS: durationMS,
				Meta:       meta,
			},
			retryable: true,
		}
	}
	defer resp.Body.Close()

	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter != "" {
		meta["retry_after"] = retryAfter
	}

	if resp.StatusCode == http.StatusOK {
		var decoded searchResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			message := shared.TruncateError("decode search response: " + err.Error())
			c.record(ctx, ports.RequestLog{
				UserID:     c.opts.UserID,
				Provider:   ports.ProviderDiscogs,
				Endpoint:   searchEndpoint,
				Method:     http.MethodGet,
				StatusCode: resp.StatusCode,
				DurationMS: durationMS,
				Error:      message,
				Meta:       meta,
			})
			return nil, "", &attemptFailure{err: &ports.ProviderError{
				Provider:   ports.ProviderDiscogs,
				Message:    message,
				StatusCode: resp.StatusCode,
				Endpoint:   searchEndpoint,
				Method:     http.MethodGet,
				DurationMS: durationMS,
				Meta:       meta,
			}}
		}

		c.record(ctx, ports.RequestLog{
			UserID:     c.opts.UserID,
			Provider:   ports.ProviderDiscogs,
			Endpoint:   searchEndpoint,
			Method:     http.MethodGet,
			StatusCode: resp.StatusCode,
			DurationMS: durationMS,
			Meta:       meta,
		})
		return mapResults(decoded.Results), retryAfter, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	message := shared.TruncateError(shared.Redact(fmt.Sprintf("discogs search returned %d: %s", resp.StatusCode, string(body)), c.opts.Token))
	c.record(ctx, ports.RequestLog{
		UserID:     c.opts.UserID,
		Provider:   ports.ProviderDiscogs,
		Endpoint:   searchEndpoint,
		Method:     http.MethodGet,
		StatusCode: resp.StatusCode,
		DurationMS: durationMS,
		Error:      message,
		Meta:       meta,
	})
	return nil, retryAfter, &attemptFailure{
		err: &ports.ProviderError{
			Provider:   ports.ProviderDiscogs,
			Message:    message,
			StatusCode: resp.StatusCode,
			Endpoint:   searchEndpoint,
			Method:     http.MethodGet,
			DurationMS: durationMS,
			Meta:       meta,
		},
		retryable: shared.RetryableStatus(resp.StatusCode),
	}
}

func (c *SearchClient) record(ctx context.Context, entry ports.RequestLog) {
	if c.opts.Sink == nil {
		return
	}
	if err := c.opts.Sink.Record(ctx, entry); err != nil {
		c.logger.Warn("request log sink failed",
			"event", "provider_request_log_failed",
			"module", "integrations/provider-gateway",
			"layer", "adapter",
			"provider", ports.ProviderDiscogs,
			"error", err.Error(),
		)
	}
}

func mapResults(results []searchResult) []ports.Listing {
	listings := make([]ports.Listing, 0, len(results))
	for _, result := range results {
		if result.ID == 0 || strings.TrimSpace(result.Title) == "" {
			continue
		}
		listingURL := result.ResourceURL
		if result.URI != "" {
			listingURL = publicSiteURL + result.URI
		}
		listings = append(listings, ports.Listing{
			Provider:         ports.ProviderDiscogs,
			ExternalID:       strconv.FormatInt(result.ID, 10),
			URL:              listingURL,
			Title:            result.Title,
			Price:            0,
			Currency:         "USD",
			DiscogsReleaseID: result.ID,
			Raw: map[string]any{
				"id":        result.ID,
				"master_id": result.MasterID,
				"title":     result.Title,
				"year":      result.Year,
				"country":   result.Country,
			},
		})
	}
	return listings
}

func joinKeywords(keywords []string) string {
	parts := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		keyword = strings.TrimSpace(keyword)
		if keyword != "" {
			parts = append(parts, keyword)
		}
	}
	return strings.Join(parts, " ")
}
