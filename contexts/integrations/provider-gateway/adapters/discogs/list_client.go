package discogs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cratewatch/contexts/integrations/provider-gateway/adapters/shared"
	"cratewatch/contexts/integrations/provider-gateway/ports"
)

const listPerPage = 100

// ListClient pages through a user's wantlist and collection with their own
// access token. Used by the import engine.
type ListClient struct {
	BaseURL    string
	UserAgent  string
	UserID     string
	HTTPClient *http.Client
	Retry      shared.RetryPolicy
	Sink       ports.RequestLogSink
	Logger     *slog.Logger
}

type wantlistResponse struct {
	Pagination pagination `json:"pagination"`
	Wants      []listItem `json:"wants"`
}

type collectionResponse struct {
	Pagination pagination `json:"pagination"`
	Releases   []listItem `json:"releases"`
}

type pagination struct {
	Page  int `json:"page"`
	Pages int `json:"pages"`
}

type listItem struct {
	BasicInformation struct {
		ID       int64  `json:"id"`
		MasterID int64  `json:"master_id"`
		Title    string `json:"title"`
		Year     int    `json:"year"`
		Artists  []struct {
			Name string `json:"name"`
		} `json:"artists"`
	} `json:"basic_information"`
}

func (c *ListClient) FetchWantlistPage(ctx context.Context, token string, username string, page int) (ports.ListPage, error) {
	endpoint := fmt.Sprintf("/users/%s/wants", username)
	body, err := c.fetch(ctx, token, endpoint, page)
	if err != nil {
		return ports.ListPage{}, err
	}

	var decoded wantlistResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return ports.ListPage{}, fmt.Errorf("decode wantlist page: %w", err)
	}
	return ports.ListPage{
		Releases: mapListItems(decoded.Wants),
		Page:     decoded.Pagination.Page,
		Pages:    decoded.Pagination.Pages,
	}, nil
}

func (c *ListClient) FetchCollectionPage(ctx context.Context, token string, username string, page int) (ports.ListPage, error) {
	endpoint := fmt.Sprintf("/users/%s/collection/folders/0/releases", username)
	body, err := c.fetch(ctx, token, endpoint, page)
	if err != nil {
		return ports.ListPage{}, err
	}

	var decoded collectionResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return ports.ListPage{}, fmt.Errorf("decode collection page: %w", err)
	}
	return ports.ListPage{
		Releases: mapListItems(decoded.Releases),
		Page:     decoded.Pagination.Page,
		Pages:    decoded.Pagination.Pages,
	}, nil
}

func (c *ListClient) fetch(ctx context.Context, token string, endpoint string, page int) ([]byte, error) {
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	base := c.BaseURL
	if base == "" {
		base = defaultBaseURL
	}

	requestURL := fmt.Sprintf("%s%s?page=%d&per_page=%d", base, endpoint, page, listPerPage)
	maxAttempts := c.Retry.Attempts()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Discogs token="+token)
		if c.UserAgent != "" {
			req.Header.Set("User-Agent", c.UserAgent)
		}

		start := time.Now()
		resp, err := client.Do(req)
		durationMS := time.Since(start).Milliseconds()
		meta := map[string]any{"attempt": attempt, "max_attempts": maxAttempts, "page": page}

		if err != nil {
			message := shared.TruncateError(shared.Redact(err.Error(), token))
			c.record(ctx, logger, ports.RequestLog{
				UserID:     c.UserID,
				Provider:   ports.ProviderDiscogs,
				Endpoint:   endpoint,
				Method:     http.MethodGet,
				DurationMS: durationMS,
				Error:      message,
				Meta:       meta,
			})
			if attempt == maxAttempts {
				return nil, &ports.ProviderError{
					Provider:   ports.ProviderDiscogs,
					Message:    message,
					Endpoint:   endpoint,
					Method:     http.MethodGet,
					DurationMS: durationMS,
					Meta:       meta,
				}
			}
			if err := shared.Sleep(ctx, c.Retry.Backoff(attempt, "")); err != nil {
				return nil, err
			}
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		resp.Body.Close()
		retryAfter := resp.Header.Get("Retry-After")
		if retryAfter != "" {
			meta["retry_after"] = retryAfter
		}

		if resp.StatusCode == http.StatusOK && readErr == nil {
			c.record(ctx, logger, ports.RequestLog{
				UserID:     c.UserID,
				Provider:   ports.ProviderDiscogs,
				Endpoint:   endpoint,
				Method:     http.MethodGet,
				StatusCode: resp.StatusCode,
				DurationMS: durationMS,
				Meta:       meta,
			})
			return body, nil
		}

		message := shared.TruncateError(shared.Redact(
			fmt.Sprintf("discogs list returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), token))
		c.record(ctx, logger, ports.RequestLog{
			UserID:     c.UserID,
			Provider:   ports.ProviderDiscogs,
			Endpoint:   endpoint,
			Method:     http.MethodGet,
			StatusCode: resp.StatusCode,
			DurationMS: durationMS,
			Error:      message,
			Meta:       meta,
		})

		failure := &ports.ProviderError{
			Provider:   ports.ProviderDiscogs,
			Message:    message,
			StatusCode: resp.StatusCode,
			Endpoint:   endpoint,
			Method:     http.MethodGet,
			DurationMS: durationMS,
			Meta:       meta,
		}
		if !shared.RetryableStatus(resp.StatusCode) || attempt == maxAttempts {
			return nil, failure
		}
		if err := shared.Sleep(ctx, c.Retry.Backoff(attempt, retryAfter)); err != nil {
			return nil, err
		}
	}
	return nil, &ports.ProviderError{Provider: ports.ProviderDiscogs, Message: "retries exhausted", Endpoint: endpoint, Method: http.MethodGet}
}

func (c *ListClient) record(ctx context.Context, logger *slog.Logger, entry ports.RequestLog) {
	if c.Sink == nil {
		return
	}
	if err := c.Sink.Record(ctx, entry); err != nil {
		logger.Warn("request log sink failed",
			"event", "provider_request_log_failed",
			"module", "integrations/provider-gateway",
			"layer", "adapter",
			"provider", ports.ProviderDiscogs,
			"error", err.Error(),
		)
	}
}

func mapListItems(items []listItem) []ports.ListRelease {
	releases := make([]ports.ListRelease, 0, len(items))
	for _, item := range items {
		info := item.BasicInformation
		if info.ID == 0 || strings.TrimSpace(info.Title) == "" {
			continue
		}
		artist := ""
		if len(info.Artists) > 0 {
			artist = info.Artists[0].Name
		}
		releases = append(releases, ports.ListRelease{
			ReleaseID: info.ID,
			MasterID:  info.MasterID,
			Title:     info.Title,
			Artist:    artist,
			Year:      info.Year,
		})
	}
	return releases
}

var _ ports.DiscogsListClient = (*ListClient)(nil)
