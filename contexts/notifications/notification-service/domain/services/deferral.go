package services

import (
	"time"

	"cratewatch/contexts/notifications/notification-service/domain/entities"
)

// DeferSeconds computes how long a pending delivery must wait before dispatch:
// quiet hours push delivery to the end of the quiet window, and non-instant
// frequencies hold delivery until the bucket boundary after the notification
// was created. The larger deferral wins. A zero return means deliver now.
func DeferSeconds(pref entities.Preference, accountTimezone string, createdAt time.Time, now time.Time) int64 {
	loc := resolveLocation(pref.TimezoneOverride, accountTimezone)
	local := now.In(loc)

	deferral := quietHoursDeferral(pref, local)
	if bucket := frequencyDeferral(pref.Frequency, createdAt.In(loc), local); bucket > deferral {
		deferral = bucket
	}
	return int64(deferral / time.Second)
}

func resolveLocation(override string, accountTimezone string) *time.Location {
	for _, name := range []string{override, accountTimezone} {
		if name == "" {
			continue
		}
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.UTC
}

func quietHoursDeferral(pref entities.Preference, local time.Time) time.Duration {
	if pref.QuietHoursStart == nil || pref.QuietHoursEnd == nil {
		return 0
	}
	start, end := *pref.QuietHoursStart, *pref.QuietHoursEnd
	if start < 0 || start > 23 || end < 0 || end > 23 || start == end {
		return 0
	}

	hour := local.Hour()
	inWindow := false
	if start < end {
		inWindow = hour >= start && hour < end
	} else {
		// Window wraps midnight, e.g. 22 -> 7.
		inWindow = hour >= start || hour < end
	}
	if !inWindow {
		return 0
	}

	windowEnd := time.Date(local.Year(), local.Month(), local.Day(), end, 0, 0, 0, local.Location())
	if !windowEnd.After(local) {
		windowEnd = windowEnd.Add(24 * time.Hour)
	}
	return windowEnd.Sub(local)
}

// frequencyDeferral anchors the bucket to the notification's creation
// instant: delivery waits for the boundary that follows createdAt and is
// free once that boundary has passed. Anchoring to the current instant
// instead would always land strictly inside the next bucket, so a
// rescheduled task would chase the boundary forever.
func frequencyDeferral(frequency entities.DeliveryFrequency, created, local time.Time) time.Duration {
	var boundary time.Time
	switch frequency {
	case entities.FrequencyHourly:
		boundary = time.Date(created.Year(), created.Month(), created.Day(), created.Hour(), 0, 0, 0, created.Location()).Add(time.Hour)
	case entities.FrequencyDaily:
		boundary = time.Date(created.Year(), created.Month(), created.Day(), 0, 0, 0, 0, created.Location()).Add(24 * time.Hour)
	default:
		return 0
	}
	if !local.Before(boundary) {
		return 0
	}
	return boundary.Sub(local)
}
