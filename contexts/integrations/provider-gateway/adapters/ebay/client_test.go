package ebay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"cratewatch/contexts/integrations/provider-gateway/adapters/shared"
	"cratewatch/contexts/integrations/provider-gateway/ports"
)

type recordingSink struct {
	entries []ports.RequestLog
}

func (s *recordingSink) Record(_ context.Context, entry ports.RequestLog) error {
	s.entries = append(s.entries, entry)
	return nil
}

func browseServer(t *testing.T, searchHandler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(tokenEndpoint, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Basic ") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"access_token":"oauth-token-xyz","expires_in":7200,"token_type":"Application Access Token"}`))
	})
	mux.HandleFunc(searchEndpoint, searchHandler)
	return httptest.NewServer(mux)
}

func TestSearchMapsAndDropsIncompleteItems(t *testing.T) {
	server := browseServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer oauth-token-xyz" {
			t.Errorf("unexpected authorization header %q", got)
		}
		if got := r.Header.Get("X-EBAY-C-MARKETPLACE-ID"); got != "EBAY_US" {
			t.Errorf("unexpected marketplace header %q", got)
		}
		w.Header().Set(headerRateLimit, "4991")
		w.Write([]byte(`{"itemSummaries":[
			{"itemId":"v1|111|0","title":"Aphex Twin SAW 85-92 2LP","itemWebUrl":"https://www.ebay.com/itm/111",
			 "price":{"value":"34.99","currency":"USD"},"condition":"Used",
			 "seller":{"username":"wax_stax"},"itemLocation":{"country":"US"}},
			{"itemId":"v1|222|0","title":"no url item","price":{"value":"10.00","currency":"USD"}},
			{"itemId":"v1|333|0","title":"bad price","itemWebUrl":"https://www.ebay.com/itm/333",
			 "price":{"value":"n/a","currency":"USD"}}
		]}`))
	})
	defer server.Close()

	sink := &recordingSink{}
	client := NewClient(Options{
		BaseURL:       server.URL,
		ClientID:      "cid",
		ClientSecret:  "csecret",
		MarketplaceID: "EBAY_US",
		UserID:        "user-1",
		Retry:         shared.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond},
		Sink:          sink,
	})

	listings, err := client.Search(context.Background(), ports.SearchQuery{Keywords: []string{"aphex twin"}}, 50)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(listings) != 1 {
		t.Fatalf("expected 1 usable listing, got %d", len(listings))
	}
	got := listings[0]
	if got.ExternalID != "v1|111|0" || got.Price != 34.99 || got.Currency != "USD" || got.Seller != "wax_stax" {
		t.Fatalf("unexpected listing mapping: %+v", got)
	}

	// One row for the oauth exchange, one for the search attempt.
	if len(sink.entries) != 2 {
		t.Fatalf("expected 2 log rows, got %d", len(sink.entries))
	}
	if sink.entries[0].Endpoint != tokenEndpoint || sink.entries[0].Method != http.MethodPost {
		t.Fatalf("first row should be the token exchange: %+v", sink.entries[0])
	}
	if sink.entries[1].Meta["rate_limit_remaining"] != "4991" {
		t.Fatalf("rate limit header should be captured in meta: %+v", sink.entries[1].Meta)
	}
}

func TestSearchRetriesServerError(t *testing.T) {
	var calls int32
	server := browseServer(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"itemSummaries":[{"itemId":"v1|1|0","title":"LP","itemWebUrl":"https://www.ebay.com/itm/1","price":{"value":"5.00","currency":"GBP"}}]}`))
	})
	defer server.Close()

	client := NewClient(Options{
		BaseURL:      server.URL,
		ClientID:     "cid",
		ClientSecret: "csecret",
		Retry:        shared.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
		Sink:         &recordingSink{},
	})

	listings, err := client.Search(context.Background(), ports.SearchQuery{Keywords: []string{"lp"}}, 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(listings) != 1 || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected success on second attempt, listings=%d calls=%d", len(listings), calls)
	}
}

func TestOAuthFailureRedactsSecret(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(tokenEndpoint, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_client csecret"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	sink := &recordingSink{}
	client := NewClient(Options{
		BaseURL:      server.URL,
		ClientID:     "cid",
		ClientSecret: "csecret",
		Sink:         sink,
	})

	_, err := client.Search(context.Background(), ports.SearchQuery{Keywords: []string{"lp"}}, 10)
	if err == nil {
		t.Fatal("expected oauth failure")
	}
	if strings.Contains(err.Error(), "csecret") {
		t.Fatal("client secret must be redacted from error text")
	}
	if len(sink.entries) != 1 || strings.Contains(sink.entries[0].Error, "csecret") {
		t.Fatalf("log row must carry redacted error: %+v", sink.entries)
	}
}

func TestAffiliateURL(t *testing.T) {
	decorated := AffiliateURL("https://www.ebay.com/itm/12345?hash=abc", "5338-1234", "rule-7")
	for _, want := range []string{"mkevt=1", "mkcid=1", "mkrid=711-53200-19255-0", "campid=5338-1234", "toolid=10001", "customid=rule-7", "hash=abc"} {
		if !strings.Contains(decorated, want) {
			t.Fatalf("decorated url missing %q: %s", want, decorated)
		}
	}

	plain := "https://www.ebay.com/itm/12345"
	if got := AffiliateURL(plain, "", "x"); got != plain {
		t.Fatalf("missing campaign id should leave url unchanged, got %s", got)
	}
	if got := AffiliateURL("::not-a-url", "5338-1234", ""); got != "::not-a-url" {
		t.Fatalf("unparseable url should pass through, got %s", got)
	}
}
