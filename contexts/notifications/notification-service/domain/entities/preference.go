package entities

type DeliveryFrequency string

const (
	FrequencyInstant DeliveryFrequency = "instant"
	FrequencyHourly  DeliveryFrequency = "hourly"
	FrequencyDaily   DeliveryFrequency = "daily"
)

// Preference gates fan-out and delivery timing per user.
// Quiet hours are local-time hour boundaries in the user's timezone
// (TimezoneOverride wins over the account timezone).
type Preference struct {
	UserID           string
	EmailEnabled     bool
	RealtimeEnabled  bool
	QuietHoursStart  *int
	QuietHoursEnd    *int
	EventToggles     map[EventType]bool
	TimezoneOverride string
	Frequency        DeliveryFrequency
}

// DefaultPreference is the lazy default: all channels on, all event types on,
// instant delivery.
func DefaultPreference(userID string) Preference {
	return Preference{
		UserID:          userID,
		EmailEnabled:    true,
		RealtimeEnabled: true,
		Frequency:       FrequencyInstant,
	}
}

// Allows reports whether the event type passes the per-type toggles.
// A nil toggle map means everything is enabled.
func (p Preference) Allows(t EventType) bool {
	if p.EventToggles == nil {
		return true
	}
	enabled, ok := p.EventToggles[t]
	if !ok {
		return true
	}
	return enabled
}

// Channels returns the channel-level enabled targets.
func (p Preference) Channels() []Channel {
	channels := make([]Channel, 0, 2)
	if p.EmailEnabled {
		channels = append(channels, ChannelEmail)
	}
	if p.RealtimeEnabled {
		channels = append(channels, ChannelRealtime)
	}
	return channels
}
