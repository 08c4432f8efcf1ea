package entities

import "time"

// EventType values are stable wire strings shared with the API layer.
type EventType string

const (
	EventRuleCreated  EventType = "RULE_CREATED"
	EventRuleUpdated  EventType = "RULE_UPDATED"
	EventRuleDisabled EventType = "RULE_DISABLED"
	EventRuleEnabled  EventType = "RULE_ENABLED"
	EventRuleDeleted  EventType = "RULE_DELETED"

	EventWatchReleaseCreated  EventType = "WATCH_RELEASE_CREATED"
	EventWatchReleaseUpdated  EventType = "WATCH_RELEASE_UPDATED"
	EventWatchReleaseDisabled EventType = "WATCH_RELEASE_DISABLED"
	EventWatchReleaseEnabled  EventType = "WATCH_RELEASE_ENABLED"

	EventListingFirstSeen EventType = "LISTING_FIRST_SEEN"
	EventListingPriceDrop EventType = "LISTING_PRICE_DROP"
	EventListingPriceRise EventType = "LISTING_PRICE_RISE"
	EventListingEnded     EventType = "LISTING_ENDED"

	EventNewMatch EventType = "NEW_MATCH"

	EventImportStarted   EventType = "IMPORT_STARTED"
	EventImportCompleted EventType = "IMPORT_COMPLETED"
	EventImportFailed    EventType = "IMPORT_FAILED"
)

// userVisible marks event types that materialize into notifications.
// Rule/release lifecycle events stay in the event log only; the user performed
// those actions themselves.
var userVisible = map[EventType]struct{}{
	EventListingFirstSeen: {},
	EventListingPriceDrop: {},
	EventListingPriceRise: {},
	EventListingEnded:     {},
	EventNewMatch:         {},
	EventImportCompleted:  {},
	EventImportFailed:     {},
}

func (t EventType) UserVisible() bool {
	_, ok := userVisible[t]
	return ok
}

func (t EventType) Valid() bool {
	switch t {
	case EventRuleCreated, EventRuleUpdated, EventRuleDisabled, EventRuleEnabled, EventRuleDeleted,
		EventWatchReleaseCreated, EventWatchReleaseUpdated, EventWatchReleaseDisabled, EventWatchReleaseEnabled,
		EventListingFirstSeen, EventListingPriceDrop, EventListingPriceRise, EventListingEnded,
		EventNewMatch, EventImportStarted, EventImportCompleted, EventImportFailed:
		return true
	default:
		return false
	}
}

// Event is an append-only, user-scoped log entry.
// NEW_MATCH events are additionally unique per
// (user_id, type, watch_release_id, listing_id) when both references are set.
type Event struct {
	EventID        string
	UserID         string
	Type           EventType
	WatchReleaseID string
	RuleID         string
	ListingID      string
	Payload        map[string]any
	CreatedAt      time.Time
}
