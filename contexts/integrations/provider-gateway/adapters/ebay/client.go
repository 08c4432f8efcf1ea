package ebay

import (
	"context"
	"encoding/base64"
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
	defaultAPIBase   = "https://api.ebay.com"
	tokenEndpoint    = "/identity/v1/oauth2/token"
	searchEndpoint   = "/buy/browse/v1/item_summary/search"
	defaultScope     = "https://api.ebay.com/oauth/api_scope"
	maxSearchLimit   = 200
	headerRateLimit  = "x-ebay-c-remaining-request-limit"
	headerRequestID  = "x-ebay-c-request-id"
)

// Options configures one user-bound eBay Browse client.
type Options struct {
	BaseURL       string
	ClientID      string
	ClientSecret  string
	MarketplaceID string
	Scope         string
	UserID        string
	HTTPClient    *http.Client
	Retry         shared.RetryPolicy
	Sink          ports.RequestLogSink
	Logger        *slog.Logger
}

// Client performs the two-phase eBay Browse search: a client-credentials
// OAuth exchange followed by the item summary search, both request-logged
// per attempt.
type Client struct {
	opts   Options
	client *http.Client
	logger *slog.Logger
}

func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{opts: opts, client: client, logger: logger}
}

func (c *Client) Provider() string { return ports.ProviderEbay }

func (c *Client) Search(ctx context.Context, query ports.SearchQuery, limit int) ([]ports.Listing, error) {
	terms := joinKeywords(query.Keywords)
	if terms == "" {
		return nil, domainerrors.ErrInvalidSearchTerm
	}
	if c.opts.ClientID == "" || c.opts.ClientSecret == "" {
		return nil, domainerrors.ErrProviderDisabled
	}

	token, err := c.fetchToken(ctx)
	if err != nil {
		return nil, err
	}

	if limit <= 0 || limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	params := url.Values{}
	params.Set("q", terms)
	params.Set("limit", strconv.Itoa(limit))
	requestURL := c.base() + searchEndpoint + "?" + params.Encode()

	maxAttempts := c.opts.Retry.Attempts()
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		listings, retryAfter, retryable, attemptErr := c.searchAttempt(ctx, requestURL, token, attempt, maxAttempts)
		if attemptErr == nil {
			return listings, nil
		}
		if !retryable || attempt == maxAttempts {
			return nil, attemptErr
		}
		if err := shared.Sleep(ctx, c.opts.Retry.Backoff(attempt, retryAfter)); err != nil {
			return nil, err
		}
	}
	return nil, &ports.ProviderError{Provider: ports.ProviderEbay, Message: "retries exhausted", Endpoint: searchEndpoint, Method: http.MethodGet}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// fetchToken performs the client-credentials grant. The auth call is logged
// to the request sink like any other outbound attempt, with credentials
// redacted from error text.
func (c *Client) fetchToken(ctx context.Context) (string, error) {
	scope := c.opts.Scope
	if scope == "" {
		scope = defaultScope
	}
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", scope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base()+tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.opts.ClientID + ":" + c.opts.ClientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.client.Do(req)
	durationMS := time.Since(start).Milliseconds()
	meta := map[string]any{"grant_type": "client_credentials"}

	if err != nil {
		message := shared.TruncateError(shared.Redact(err.Error(), c.opts.ClientSecret, basic))
		c.record(ctx, ports.RequestLog{
			UserID:     c.opts.UserID,
			Provider:   ports.ProviderEbay,
			Endpoint:   tokenEndpoint,
			Method:     http.MethodPost,
			DurationMS: durationMS,
			Error:      message,
			Meta:       meta,
		})
		return "", &ports.ProviderError{
			Provider:   ports.ProviderEbay,
			Message:    message,
			Endpoint:   tokenEndpoint,
			Method:     http.MethodPost,
			DurationMS: durationMS,
			Meta:       meta,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		message := shared.TruncateError(shared.Redact(
			fmt.Sprintf("ebay oauth returned %d: %s", resp.StatusCode, string(body)), c.opts.ClientSecret, basic))
		c.record(ctx, ports.RequestLog{
			UserID:     c.opts.UserID,
			Provider:   ports.ProviderEbay,
			Endpoint:   tokenEndpoint,
			Method:     http.MethodPost,
			StatusCode: resp.StatusCode,
			DurationMS: durationMS,
			Error:      message,
			Meta:       meta,
		})
		return "", &ports.ProviderError{
			Provider:   ports.ProviderEbay,
			Message:    message,
			StatusCode: resp.StatusCode,
			Endpoint:   tokenEndpoint,
			Method:     http.MethodPost,
			DurationMS: durationMS,
			Meta:       meta,
		}
	}

	var decoded tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil || decoded.AccessToken == "" {
		message := "ebay oauth response missing access_token"
		c.record(ctx, ports.RequestLog{
			UserID:     c.opts.UserID,
			Provider:   ports.ProviderEbay,
			Endpoint:   tokenEndpoint,
			Method:     http.MethodPost,
			StatusCode: resp.StatusCode,
			DurationMS: durationMS,
			Error:      message,
			Meta:       meta,
		})
		return "", &ports.ProviderError{
			Provider:   ports.ProviderEbay,
			Message:    message,
			StatusCode: resp.StatusCode,
			Endpoint:   tokenEndpoint,
			Method:     http.MethodPost,
			DurationMS: durationMS,
			Meta:       meta,
		}
	}

	c.record(ctx, ports.RequestLog{
		UserID:     c.opts.UserID,
		Provider:   ports.ProviderEbay,
		Endpoint:   tokenEndpoint,
		Method:     http.MethodPost,
		StatusCode: resp.StatusCode,
		DurationMS: durationMS,
		Meta:       meta,
	})
	return decoded.AccessToken, nil
}

type browseResponse struct {
	ItemSummaries []itemSummary `json:"itemSummaries"`
}

type itemSummary struct {
	ItemID     string `json:"itemId"`
	Title      string `json:"title"`
	ItemWebURL string `json:"itemWebUrl"`
	Condition  string `json:"condition"`
	Price      struct {
		Value    string `json:"value"`
		Currency string `json:"currency"`
	} `json:"price"`
	Seller struct {
		Username string `json:"username"`
	} `json:"seller"`
	ItemLocation struct {
		Country string `json:"country"`
	} `json:"itemLocation"`
}

func (c *Client) searchAttempt(
	ctx context.Context,
	requestURL string,
	token string,
	attempt int,
	maxAttempts int,
) ([]ports.Listing, string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, "", false, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if c.opts.MarketplaceID != "" {
		req.Header.Set("X-EBAY-C-MARKETPLACE-ID", c.opts.MarketplaceID)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	durationMS := time.Since(start).Milliseconds()
	meta := map[string]any{"attempt": attempt, "max_attempts": maxAttempts}

	if err != nil {
		message := shared.TruncateError(shared.Redact(err.Error(), token))
		c.record(ctx, ports.RequestLog{
			UserID:     c.opts.UserID,
			Provider:   ports.ProviderEbay,
			Endpoint:   searchEndpoint,
			Method:     http.MethodGet,
			DurationMS: durationMS,
			Error:      message,
			Meta:       meta,
		})
		return nil, "", true, &ports.ProviderError{
			Provider:   ports.ProviderEbay,
			Message:    message,
			Endpoint:   searchEndpoint,
			Method:     http.MethodGet,
			DurationMS: durationMS,
			Meta:       meta,
		}
	}
	defer resp.Body.Close()

	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter != "" {
		meta["retry_after"] = retryAfter
	}
	if remaining := resp.Header.Get(headerRateLimit); remaining != "" {
		meta["rate_limit_remaining"] = remaining
	}
	if requestID := resp.Header.Get(headerRequestID); requestID != "" {
		meta["upstream_request_id"] = requestID
	}

	if resp.StatusCode == http.StatusOK {
		var decoded browseResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			message := shared.TruncateError("decode browse response: " + err.Error())
			c.record(ctx, ports.RequestLog{
				UserID:     c.opts.UserID,
				Provider:   ports.ProviderEbay,
				Endpoint:   searchEndpoint,
				Method:     http.MethodGet,
				StatusCode: resp.StatusCode,
				DurationMS: durationMS,
				Error:      message,
				Meta:       meta,
			})
			return nil, retryAfter, false, &ports.ProviderError{
				Provider:   ports.ProviderEbay,
				Message:    message,
				StatusCode: resp.StatusCode,
				Endpoint:   searchEndpoint,
				Method:     http.MethodGet,
				DurationMS: durationMS,
				Meta:       meta,
			}
		}

		c.record(ctx, ports.RequestLog{
			UserID:     c.opts.UserID,
			Provider:   ports.ProviderEbay,
			Endpoint:   searchEndpoint,
			Method:     http.MethodGet,
			StatusCode: resp.StatusCode,
			DurationMS: durationMS,
			Meta:       meta,
		})
		return mapSummaries(decoded.ItemSummaries), retryAfter, false, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	message := shared.TruncateError(shared.Redact(
		fmt.Sprintf("ebay browse returned %d: %s", resp.StatusCode, string(body)), token))
	c.record(ctx, ports.RequestLog{
		UserID:     c.opts.UserID,
		Provider:   ports.ProviderEbay,
		Endpoint:   searchEndpoint,
		Method:     http.MethodGet,
		StatusCode: resp.StatusCode,
		DurationMS: durationMS,
		Error:      message,
		Meta:       meta,
	})
	return nil, retryAfter, shared.RetryableStatus(resp.StatusCode), &ports.ProviderError{
		Provider:   ports.ProviderEbay,
		Message:    message,
		StatusCode: resp.StatusCode,
		Endpoint:   searchEndpoint,
		Method:     http.MethodGet,
		DurationMS: durationMS,
		Meta:       meta,
	}
}

// mapSummaries drops entries missing id, title, url or a parseable price.
func mapSummaries(summaries []itemSummary) []ports.Listing {
	listings := make([]ports.Listing, 0, len(summaries))
	for _, summary := range summaries {
		if summary.ItemID == "" || strings.TrimSpace(summary.Title) == "" || summary.ItemWebURL == "" {
			continue
		}
		price, err := strconv.ParseFloat(summary.Price.Value, 64)
		if err != nil || price < 0 {
			continue
		}
		currency := summary.Price.Currency
		if currency == "" {
			continue
		}
		listings = append(listings, ports.Listing{
			Provider:   ports.ProviderEbay,
			ExternalID: summary.ItemID,
			URL:        summary.ItemWebURL,
			Title:      summary.Title,
			Price:      price,
			Currency:   currency,
			Condition:  summary.Condition,
			Seller:     summary.Seller.Username,
			Location:   summary.ItemLocation.Country,
			Raw: map[string]any{
				"itemId":     summary.ItemID,
				"title":      summary.Title,
				"itemWebUrl": summary.ItemWebURL,
				"price":      summary.Price.Value,
				"currency":   summary.Price.Currency,
				"condition":  summary.Condition,
			},
		})
	}
	return listings
}

func (c *Client) base() string {
	if c.opts.BaseURL != "" {
		return c.opts.BaseURL
	}
	return defaultAPIBase
}

func (c *Client) record(ctx context.Context, entry ports.RequestLog) {
	if c.opts.Sink == nil {
		return
	}
	if err := c.opts.Sink.Record(ctx, entry); err != nil {
		c.logger.Warn("request log sink failed",
			"event", "provider_request_log_failed",
			"module", "integrations/provider-gateway",
			"layer", "adapter",
			"provider", ports.ProviderEbay,
			"error", err.Error(),
		)
	}
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
