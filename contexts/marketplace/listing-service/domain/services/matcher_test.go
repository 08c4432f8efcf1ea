package services

import "testing"

func floatPtr(v float64) *float64 { return &v }

func TestNormalizeTitle(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Primus - Sailing the Seas of Cheese (Vinyl)", "primus sailing the seas of cheese vinyl"},
		{"  Boards of Canada -- MHTRTC  ", "boards of canada mhtrtc"},
		{"!!!", ""},
		{"", ""},
		{"AC/DC: Back In Black [LP, 1980]", "ac dc back in black lp 1980"},
	}
	for _, tc := range cases {
		if got := NormalizeTitle(tc.in); got != tc.want {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMatcherKeywordsAndSources(t *testing.T) {
	filter := RuleFilter{
		RuleID:   "rule-1",
		Sources:  []string{"discogs"},
		Keywords: []string{"primus", "vinyl"},
	}

	title := NormalizeTitle("Primus - Sailing the Seas of Cheese (Vinyl)")
	if !filter.Matches("discogs", title, 50, "USD", "USD") {
		t.Fatal("expected match for satisfying listing")
	}
	if filter.Matches("ebay", title, 50, "USD", "USD") {
		t.Fatal("provider outside sources must not match")
	}
	if filter.Matches("discogs", NormalizeTitle("Primus - Pork Soda CD"), 50, "USD", "USD") {
		t.Fatal("missing keyword must not match")
	}
}

func TestMatcherMaxPriceAndCurrency(t *testing.T) {
	filter := RuleFilter{
		Sources:  []string{"discogs"},
		Keywords: []string{"primus"},
		MaxPrice: floatPtr(70),
		Currency: "USD",
	}
	title := NormalizeTitle("Primus LP")

	if !filter.Matches("discogs", title, 70, "USD", "USD") {
		t.Fatal("price at the cap should match")
	}
	if filter.Matches("discogs", title, 70.01, "USD", "USD") {
		t.Fatal("price above cap must not match")
	}
	if filter.Matches("discogs", title, 10, "EUR", "USD") {
		t.Fatal("currency mismatch must never match, no conversion")
	}

	// With no rule currency the user currency decides.
	fallback := RuleFilter{Sources: []string{"discogs"}, Keywords: []string{"primus"}, MaxPrice: floatPtr(70)}
	if !fallback.Matches("discogs", title, 50, "EUR", "EUR") {
		t.Fatal("user currency fallback should match")
	}
	if fallback.Matches("discogs", title, 50, "EUR", "USD") {
		t.Fatal("user currency mismatch must not match")
	}
}

func TestMatcherBlankKeywordsNeverMatch(t *testing.T) {
	filter := RuleFilter{
		Sources:  []string{"discogs"},
		Keywords: []string{"", "   "},
	}
	if filter.Matches("discogs", NormalizeTitle("anything at all"), 10, "USD", "USD") {
		t.Fatal("all-blank keywords must never match any listing")
	}
}
