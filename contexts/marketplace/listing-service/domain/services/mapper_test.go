package services

import "testing"

func TestMapperAcceptsClearWinner(t *testing.T) {
	candidates := []ReleaseCandidate{
		{WatchReleaseID: "wr-1", DiscogsReleaseID: 100, DiscogsMasterID: 10, Title: "Sailing the Seas of Cheese", Artist: "Primus"},
		{WatchReleaseID: "wr-2", DiscogsReleaseID: 200, Title: "Kid A", Artist: "Radiohead"},
	}

	decision := MapToRelease("Primus - Sailing the Seas of Cheese (Vinyl LP)", candidates)
	if !decision.Matched {
		t.Fatalf("expected accept, got %+v", decision)
	}
	if decision.WatchReleaseID != "wr-1" || decision.DiscogsReleaseID != 100 || decision.DiscogsMasterID != 10 {
		t.Fatalf("unexpected winner: %+v", decision)
	}
	if decision.Confidence < 0.82 {
		t.Fatalf("winner confidence below threshold: %v", decision.Confidence)
	}
	if len(decision.Scores) != 2 || len(decision.ListingTokens) == 0 {
		t.Fatalf("decision record incomplete: %+v", decision)
	}
}

func TestMapperRejectsLowConfidence(t *testing.T) {
	candidates := []ReleaseCandidate{
		{WatchReleaseID: "wr-1", DiscogsReleaseID: 100, Title: "Sailing the Seas of Cheese Deluxe Anniversary Box", Artist: "Primus"},
	}
	decision := MapToRelease("Completely Unrelated Jazz Compilation", candidates)
	if decision.Matched {
		t.Fatalf("expected reject, got %+v", decision)
	}
}

func TestMapperRejectsNarrowMargin(t *testing.T) {
	// Two near-identical candidates: the winner cannot clear the margin.
	candidates := []ReleaseCandidate{
		{WatchReleaseID: "wr-1", DiscogsReleaseID: 100, Title: "Selected Ambient Works", Artist: "Aphex Twin"},
		{WatchReleaseID: "wr-2", DiscogsReleaseID: 200, Title: "Selected Ambient Works", Artist: "Aphex Twin"},
	}
	decision := MapToRelease("Aphex Twin - Selected Ambient Works", candidates)
	if decision.Matched {
		t.Fatalf("ambiguous candidates must not be accepted: %+v", decision)
	}
	if decision.Margin >= 0.10 {
		t.Fatalf("expected margin below threshold, got %v", decision.Margin)
	}
}

func TestMapperEmptyInputs(t *testing.T) {
	if decision := MapToRelease("Primus LP", nil); decision.Matched {
		t.Fatal("no candidates must not match")
	}
	candidates := []ReleaseCandidate{{WatchReleaseID: "wr-1", Title: "Something"}}
	if decision := MapToRelease("", candidates); decision.Matched {
		t.Fatal("empty listing title must not match")
	}
}

func TestMapperStopWordsIgnored(t *testing.T) {
	candidates := []ReleaseCandidate{
		{WatchReleaseID: "wr-1", DiscogsReleaseID: 100, Title: "Seas of Cheese", Artist: "Primus"},
	}
	with := MapToRelease("Primus Seas of Cheese Vinyl LP Record", candidates)
	without := MapToRelease("Primus Seas of Cheese", candidates)
	if with.Confidence != without.Confidence {
		t.Fatalf("stop words should not affect confidence: %v vs %v", with.Confidence, without.Confidence)
	}
}
