package mock

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand"
	"strings"

	domainerrors "cratewatch/contexts/integrations/provider-gateway/domain/errors"
	"cratewatch/contexts/integrations/provider-gateway/ports"
)

var conditions = []string{"Mint (M)", "Near Mint (NM or M-)", "Very Good Plus (VG+)", "Very Good (VG)", "Good (G)"}

var currencies = []string{"USD", "EUR", "GBP"}

// Client fabricates deterministic listings for local development and tests.
// The same keywords and seed always produce the same result set.
type Client struct{}

func NewClient() *Client { return &Client{} }

func (c *Client) Provider() string { return ports.ProviderMock }

func (c *Client) Search(ctx context.Context, query ports.SearchQuery, limit int) ([]ports.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := make([]string, 0, len(query.Keywords))
	for _, keyword := range query.Keywords {
		keyword = strings.TrimSpace(keyword)
		if keyword != "" {
			terms = append(terms, keyword)
		}
	}
	if len(terms) == 0 {
		return nil, domainerrors.ErrInvalidSearchTerm
	}
	if limit <= 0 || limit > 25 {
		limit = 25
	}

	seedMaterial := strings.ToLower(strings.Join(terms, " ")) + "|" + query.Seed
	digest := sha256.Sum256([]byte(seedMaterial))
	rng := rand.New(rand.NewSource(int64(binary.BigEndian.Uint64(digest[:8]))))

	count := 3 + rng.Intn(limit)
	if count > limit {
		count = limit
	}

	listings := make([]ports.Listing, 0, count)
	for i := 0; i < count; i++ {
		externalID := fmt.Sprintf("mock-%x-%d", digest[:4], i)
		price := float64(500+rng.Intn(14500)) / 100
		listings = append(listings, ports.Listing{
			Provider:   ports.ProviderMock,
			ExternalID: externalID,
			URL:        "https://mock.example/listings/" + externalID,
			Title:      strings.Join(terms, " ") + fmt.Sprintf(" (pressing %d)", i+1),
			Price:      price,
			Currency:   currencies[rng.Intn(len(currencies))],
			Condition:  conditions[rng.Intn(len(conditions))],
			Seller:     fmt.Sprintf("mock_seller_%d", rng.Intn(40)),
			Location:   "US",
			Raw:        map[string]any{"seed": query.Seed, "index": i},
		})
	}
	return listings, nil
}

var _ ports.SearchClient = (*Client)(nil)
