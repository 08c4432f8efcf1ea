package services

import "strings"

// RuleFilter is the evaluated shape of a watch rule's structured query.
// The rule service converts its stored query into this before handing
// listings to the matcher.
type RuleFilter struct {
	RuleID   string
	UserID   string
	Sources  []string
	Keywords []string
	MaxPrice *float64
	Currency string
}

// Matches evaluates the rule predicate against an ingested listing.
// All clauses AND together:
//   - the listing's provider must be one of the rule's sources;
//   - with a max_price, the listing currency must equal the rule currency
//     (falling back to the user's currency) and the price must not exceed it;
//     a currency mismatch is never a match, there is no conversion;
//   - every non-blank keyword must appear as a substring of the normalized
//     title.
func (f RuleFilter) Matches(provider string, normalizedTitle string, price float64, currency string, userCurrency string) bool {
	if !containsFold(f.Sources, provider) {
		return false
	}

	if f.MaxPrice != nil {
		ruleCurrency := f.Currency
		if ruleCurrency == "" {
			ruleCurrency = userCurrency
		}
		if !strings.EqualFold(ruleCurrency, currency) {
			return false
		}
		if price > *f.MaxPrice {
			return false
		}
	}

	matched := false
	for _, keyword := range f.Keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" {
			continue
		}
		if !strings.Contains(normalizedTitle, keyword) {
			return false
		}
		matched = true
	}
	// A rule whose keywords are all blank matches nothing.
	if len(f.Keywords) > 0 && !matched {
		return false
	}
	return true
}

func containsFold(values []string, target string) bool {
	for _, value := range values {
		if strings.EqualFold(value, target) {
			return true
		}
	}
	return false
}
