package discogs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"cratewatch/contexts/integrations/provider-gateway/adapters/shared"
	domainerrors "cratewatch/contexts/integrations/provider-gateway/domain/errors"
	"cratewatch/contexts/integrations/provider-gateway/ports"
)

type recordingSink struct {
	entries []ports.RequestLog
}

func (s *recordingSink) Record(_ context.Context, entry ports.RequestLog) error {
	s.entries = append(s.entries, entry)
	return nil
}

func fastRetry() shared.RetryPolicy {
	return shared.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestSearchRetriesRateLimitThenSucceeds(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"pagination":{"page":1,"pages":1},"results":[
			{"id":123,"master_id":9,"title":"Radiohead - Kid A","uri":"/release/123","year":"2000"},
			{"id":0,"title":"dropped"},
			{"id":456,"title":"  "}
		]}`))
	}))
	defer server.Close()

	sink := &recordingSink{}
	client := NewSearchClient(Options{
		BaseURL: server.URL,
		Token:   "secret-token",
		UserID:  "user-1",
		Retry:   fastRetry(),
		Sink:    sink,
	})

	listings, err := client.Search(context.Background(), ports.SearchQuery{Keywords: []string{"radiohead", "kid a"}}, 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(listings) != 1 {
		t.Fatalf("expected 1 listing after dropping invalid results, got %d", len(listings))
	}
	if listings[0].ExternalID != "123" || listings[0].DiscogsReleaseID != 123 {
		t.Fatalf("unexpected listing mapping: %+v", listings[0])
	}
	if listings[0].URL != "https://www.discogs.com/release/123" {
		t.Fatalf("unexpected listing url %q", listings[0].URL)
	}

	if len(sink.entries) != 2 {
		t.Fatalf("expected one log row per attempt, got %d", len(sink.entries))
	}
	if sink.entries[0].StatusCode != http.StatusTooManyRequests || sink.entries[0].Error == "" {
		t.Fatalf("first attempt row should record the 429: %+v", sink.entries[0])
	}
	if sink.entries[1].StatusCode != http.StatusOK || sink.entries[1].Error != "" {
		t.Fatalf("second attempt row should record success: %+v", sink.entries[1])
	}
}

func TestSearchPermanentFailureDoesNotRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"invalid token secret-token"}`))
	}))
	defer server.Close()

	sink := &recordingSink{}
	client := NewSearchClient(Options{
		BaseURL: server.URL,
		Token:   "secret-token",
		Retry:   fastRetry(),
		Sink:    sink,
	})

	_, err := client.Search(context.Background(), ports.SearchQuery{Keywords: []string{"beatles"}}, 10)
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	var provErr *ports.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %T", err)
	}
	if provErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected status %d", provErr.StatusCode)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("401 must not be retried, got %d calls", calls)
	}
	if strings.Contains(provErr.Message, "secret-token") {
		t.Fatal("token must be redacted from stored error text")
	}
	if len(sink.entries) != 1 || strings.Contains(sink.entries[0].Error, "secret-token") {
		t.Fatalf("log row must carry redacted error: %+v", sink.entries)
	}
}

func TestSearchExhaustsRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewSearchClient(Options{
		BaseURL: server.URL,
		Token:   "t",
		Retry:   fastRetry(),
		Sink:    &recordingSink{},
	})

	_, err := client.Search(context.Background(), ports.SearchQuery{Keywords: []string{"nirvana"}}, 10)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestSearchRejectsBlankKeywords(t *testing.T) {
	client := NewSearchClient(Options{Token: "t"})
	_, err := client.Search(context.Background(), ports.SearchQuery{Keywords: []string{"  ", ""}}, 10)
	if !errors.Is(err, domainerrors.ErrInvalidSearchTerm) {
		t.Fatalf("expected ErrInvalidSearchTerm, got %v", err)
	}
}

func TestSearchWithoutTokenIsDisabled(t *testing.T) {
	client := NewSearchClient(Options{})
	_, err := client.Search(context.Background(), ports.SearchQuery{Keywords: []string{"can"}}, 10)
	if !errors.Is(err, domainerrors.ErrProviderDisabled) {
		t.Fatalf("expected ErrProviderDisabled, got %v", err)
	}
}
