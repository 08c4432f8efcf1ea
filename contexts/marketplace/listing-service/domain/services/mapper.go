package services

import (
	"math"
	"sort"
)

const (
	mapperAcceptThreshold = 0.82
	mapperMarginThreshold = 0.10
	titleWeight           = 0.8
	artistWeight          = 0.2
)

// ReleaseCandidate is one of a user's active watch releases offered to the
// mapper.
type ReleaseCandidate struct {
	WatchReleaseID   string
	DiscogsReleaseID int64
	DiscogsMasterID  int64
	Title            string
	Artist           string
}

// MappingScore is the per-candidate breakdown kept in the decision record.
type MappingScore struct {
	WatchReleaseID string  `json:"watch_release_id"`
	TitleOverlap   float64 `json:"title_overlap"`
	ArtistOverlap  float64 `json:"artist_overlap"`
	Confidence     float64 `json:"confidence"`
}

// MappingDecision is persisted into listing.raw under matching.discogs_mapping
// so mapping behavior stays auditable per listing.
type MappingDecision struct {
	Matched          bool           `json:"matched"`
	WatchReleaseID   string         `json:"watch_release_id,omitempty"`
	DiscogsReleaseID int64          `json:"discogs_release_id,omitempty"`
	DiscogsMasterID  int64          `json:"discogs_master_id,omitempty"`
	Confidence       float64        `json:"confidence"`
	Margin           float64        `json:"margin"`
	AcceptThreshold  float64        `json:"accept_threshold"`
	MarginThreshold  float64        `json:"margin_threshold"`
	ListingTokens    []string       `json:"listing_tokens"`
	Scores           []MappingScore `json:"scores"`
}

// MapToRelease scores a listing title against the user's watch releases using
// weighted token overlap. The top candidate is accepted only when its
// confidence clears the absolute threshold and beats the runner-up by the
// margin threshold.
func MapToRelease(listingTitle string, candidates []ReleaseCandidate) MappingDecision {
	listingTokens := Tokenize(listingTitle)
	decision := MappingDecision{
		AcceptThreshold: mapperAcceptThreshold,
		MarginThreshold: mapperMarginThreshold,
		ListingTokens:   sortedTokens(listingTokens),
	}
	if len(candidates) == 0 || len(listingTokens) == 0 {
		return decision
	}

	scores := make([]MappingScore, 0, len(candidates))
	for _, candidate := range candidates {
		titleOverlap := overlap(Tokenize(candidate.Title), listingTokens)
		artistOverlap := overlap(Tokenize(candidate.Artist), listingTokens)
		confidence := round4(titleWeight*titleOverlap + artistWeight*artistOverlap)
		scores = append(scores, MappingScore{
			WatchReleaseID: candidate.WatchReleaseID,
			TitleOverlap:   round4(titleOverlap),
			ArtistOverlap:  round4(artistOverlap),
			Confidence:     confidence,
		})
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Confidence > scores[j].Confidence
	})
	decision.Scores = scores

	top := scores[0]
	decision.Confidence = top.Confidence
	margin := top.Confidence
	if len(scores) > 1 {
		margin = round4(top.Confidence - scores[1].Confidence)
	}
	decision.Margin = margin

	if top.Confidence < mapperAcceptThreshold || margin < mapperMarginThreshold {
		return decision
	}

	for _, candidate := range candidates {
		if candidate.WatchReleaseID == top.WatchReleaseID {
			decision.Matched = true
			decision.WatchReleaseID = candidate.WatchReleaseID
			decision.DiscogsReleaseID = candidate.DiscogsReleaseID
			decision.DiscogsMasterID = candidate.DiscogsMasterID
			break
		}
	}
	return decision
}

// overlap = |candidate ∩ listing| / |candidate|.
func overlap(candidate map[string]struct{}, listing map[string]struct{}) float64 {
	if len(candidate) == 0 {
		return 0
	}
	shared := 0
	for token := range candidate {
		if _, ok := listing[token]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(candidate))
}

func round4(value float64) float64 {
	return math.Round(value*10000) / 10000
}

func sortedTokens(tokens map[string]struct{}) []string {
	out := make([]string, 0, len(tokens))
	for token := range tokens {
		out = append(out, token)
	}
	sort.Strings(out)
	return out
}
