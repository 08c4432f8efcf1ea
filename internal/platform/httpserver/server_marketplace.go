package httpserver

import (
	"net/http"
	"time"

	"cratewatch/contexts/integrations/provider-gateway/adapters/ebay"
	gatewayports "cratewatch/contexts/integrations/provider-gateway/ports"
	listingentities "cratewatch/contexts/marketplace/listing-service/domain/entities"
)

type listingResponse struct {
	ListingID        string    `json:"listing_id"`
	Provider         string    `json:"provider"`
	ExternalID       string    `json:"external_id"`
	URL              string    `json:"url"`
	Title            string    `json:"title"`
	Price            float64   `json:"price"`
	Currency         string    `json:"currency"`
	Condition        string    `json:"condition,omitempty"`
	Seller           string    `json:"seller,omitempty"`
	Location         string    `json:"location,omitempty"`
	Status           string    `json:"status"`
	DiscogsReleaseID int64     `json:"discogs_release_id,omitempty"`
	DiscogsMasterID  int64     `json:"discogs_master_id,omitempty"`
	FirstSeenAt      time.Time `json:"first_seen_at"`
	LastSeenAt       time.Time `json:"last_seen_at"`
}

func toListingResponse(listing listingentities.Listing) listingResponse {
	return listingResponse{
		ListingID:        listing.ListingID,
		Provider:         listing.Provider,
		ExternalID:       listing.ExternalID,
		URL:              listing.URL,
		Title:            listing.Title,
		Price:            listing.Price,
		Currency:         listing.Currency,
		Condition:        listing.Condition,
		Seller:           listing.Seller,
		Location:         listing.Location,
		Status:           string(listing.Status),
		DiscogsReleaseID: listing.DiscogsReleaseID,
		DiscogsMasterID:  listing.DiscogsMasterID,
		FirstSeenAt:      listing.FirstSeenAt,
		LastSeenAt:       listing.LastSeenAt,
	}
}

type priceSnapshotResponse struct {
	Price      float64   `json:"price"`
	Currency   string    `json:"currency"`
	RecordedAt time.Time `json:"recorded_at"`
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	result, err := s.listings.GetListing.Execute(r.Context(), r.PathValue("listing_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	history := make([]priceSnapshotResponse, 0, len(result.Snapshots))
	for _, snapshot := range result.Snapshots {
		history = append(history, priceSnapshotResponse{
			Price:      snapshot.Price,
			Currency:   snapshot.Currency,
			RecordedAt: snapshot.RecordedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"listing":       toListingResponse(result.Listing),
		"price_history": history,
	})
}

type matchResponse struct {
	MatchID      string         `json:"match_id"`
	RuleID       string         `json:"rule_id"`
	ListingID    string         `json:"listing_id"`
	MatchedAt    time.Time      `json:"matched_at"`
	MatchContext map[string]any `json:"match_context,omitempty"`
}

func toMatchResponses(matches []listingentities.WatchMatch) []matchResponse {
	out := make([]matchResponse, 0, len(matches))
	for _, match := range matches {
		out = append(out, matchResponse{
			MatchID:      match.MatchID,
			RuleID:       match.RuleID,
			ListingID:    match.ListingID,
			MatchedAt:    match.MatchedAt,
			MatchContext: match.MatchContext,
		})
	}
	return out
}

func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	limit, ok := parseLimit(r, w)
	if !ok {
		return
	}

	matches, err := s.listings.ListMatches.ByUser(r.Context(), userID, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": toMatchResponses(matches)})
}

func (s *Server) handleListRuleMatches(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	limit, ok := parseLimit(r, w)
	if !ok {
		return
	}

	// Ownership check: the rule must belong to the caller.
	if _, err := s.rules.GetRule.Execute(r.Context(), userID, r.PathValue("rule_id")); err != nil {
		writeDomainError(w, err)
		return
	}
	matches, err := s.listings.ListMatches.ByRule(r.Context(), r.PathValue("rule_id"), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": toMatchResponses(matches)})
}

// handleOutboundClick records the click and redirects to the marketplace.
// eBay links pick up EPN affiliate parameters when a campaign is configured.
func (s *Server) handleOutboundClick(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	listing, err := s.listings.RecordClick.Execute(r.Context(), userID, r.PathValue("listing_id"), r.Referer())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	target := listing.URL
	if listing.Provider == gatewayports.ProviderEbay {
		target = ebay.AffiliateURL(target, s.ebayCampaignID, userID)
	}
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}
