package entities

import (
	"strings"
	"time"

	gatewayports "cratewatch/contexts/integrations/provider-gateway/ports"
	domainerrors "cratewatch/contexts/watching/rule-service/domain/errors"
)

const (
	MinPollIntervalSeconds = 30
	MaxPollIntervalSeconds = 86400
)

// RuleQuery is the structured filter of a watch rule. Stored as JSON but
// validated strictly at the boundary.
type RuleQuery struct {
	Keywords     []string `json:"keywords"`
	Sources      []string `json:"sources"`
	MaxPrice     *float64 `json:"max_price,omitempty"`
	MinCondition string   `json:"min_condition,omitempty"`
	Currency     string   `json:"currency,omitempty"`
}

// Validate enforces the creation invariants: at least one valid provider
// source, at least one keyword that survives trimming, a non-negative price
// cap, and normalizes sources to deduped lower case.
func (q *RuleQuery) Validate() error {
	if len(q.Sources) == 0 {
		return domainerrors.ErrNoSources
	}
	seen := make(map[string]struct{}, len(q.Sources))
	normalized := make([]string, 0, len(q.Sources))
	for _, source := range q.Sources {
		source = strings.ToLower(strings.TrimSpace(source))
		if !gatewayports.ValidProvider(source) {
			return domainerrors.ErrUnknownSource
		}
		if _, dup := seen[source]; dup {
			continue
		}
		seen[source] = struct{}{}
		normalized = append(normalized, source)
	}
	q.Sources = normalized

	usable := false
	for _, keyword := range q.Keywords {
		if strings.TrimSpace(keyword) != "" {
			usable = true
			break
		}
	}
	if !usable {
		return domainerrors.ErrBlankKeywords
	}

	if q.MaxPrice != nil && *q.MaxPrice < 0 {
		return domainerrors.ErrNegativeMaxPrice
	}
	return nil
}

// WatchRule is a user's persistent saved search with its polling cadence.
type WatchRule struct {
	RuleID              string
	UserID              string
	Name                string
	Query               RuleQuery
	IsActive            bool
	PollIntervalSeconds int
	LastRunAt           *time.Time
	NextRunAt           *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func ValidPollInterval(seconds int) bool {
	return seconds >= MinPollIntervalSeconds && seconds <= MaxPollIntervalSeconds
}
