package httpserver

import (
	"fmt"
	"net/http"
	"time"

	notifcommands "cratewatch/contexts/notifications/notification-service/application/commands"
	notifentities "cratewatch/contexts/notifications/notification-service/domain/entities"
)

type notificationResponse struct {
	NotificationID string     `json:"notification_id"`
	EventID        string     `json:"event_id"`
	EventType      string     `json:"event_type"`
	Channel        string     `json:"channel"`
	Status         string     `json:"status"`
	IsRead         bool       `json:"is_read"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	limit, ok := parseLimit(r, w)
	if !ok {
		return
	}

	notifications, err := s.notifications.ListNotifications.Execute(r.Context(), userID, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]notificationResponse, 0, len(notifications))
	for _, n := range notifications {
		out = append(out, notificationResponse{
			NotificationID: n.NotificationID,
			EventID:        n.EventID,
			EventType:      string(n.EventType),
			Channel:        string(n.Channel),
			Status:         string(n.Status),
			IsRead:         n.IsRead,
			DeliveredAt:    n.DeliveredAt,
			ReadAt:         n.ReadAt,
			CreatedAt:      n.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": out})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := s.notifications.MarkRead.Execute(r.Context(), userID, r.PathValue("notification_id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type preferenceRequest struct {
	EmailEnabled     bool            `json:"email_enabled"`
	RealtimeEnabled  bool            `json:"realtime_enabled"`
	QuietHoursStart  *int            `json:"quiet_hours_start"`
	QuietHoursEnd    *int            `json:"quiet_hours_end"`
	EventToggles     map[string]bool `json:"event_toggles"`
	TimezoneOverride string          `json:"timezone_override"`
	Frequency        string          `json:"frequency"`
}

type preferenceResponse struct {
	EmailEnabled     bool            `json:"email_enabled"`
	RealtimeEnabled  bool            `json:"realtime_enabled"`
	QuietHoursStart  *int            `json:"quiet_hours_start,omitempty"`
	QuietHoursEnd    *int            `json:"quiet_hours_end,omitempty"`
	EventToggles     map[string]bool `json:"event_toggles,omitempty"`
	TimezoneOverride string          `json:"timezone_override,omitempty"`
	Frequency        string          `json:"frequency"`
}

func (s *Server) handleUpdatePreference(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req preferenceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	toggles := make(map[notifentities.EventType]bool, len(req.EventToggles))
	for name, enabled := range req.EventToggles {
		toggles[notifentities.EventType(name)] = enabled
	}

	preference, err := s.notifications.UpdatePreference.Execute(r.Context(), notifcommands.UpdatePreferenceCommand{
		UserID:           userID,
		EmailEnabled:     req.EmailEnabled,
		RealtimeEnabled:  req.RealtimeEnabled,
		QuietHoursStart:  req.QuietHoursStart,
		QuietHoursEnd:    req.QuietHoursEnd,
		EventToggles:     toggles,
		TimezoneOverride: req.TimezoneOverride,
		Frequency:        notifentities.DeliveryFrequency(req.Frequency),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	outToggles := make(map[string]bool, len(preference.EventToggles))
	for name, enabled := range preference.EventToggles {
		outToggles[string(name)] = enabled
	}
	writeJSON(w, http.StatusOK, preferenceResponse{
		EmailEnabled:     preference.EmailEnabled,
		RealtimeEnabled:  preference.RealtimeEnabled,
		QuietHoursStart:  preference.QuietHoursStart,
		QuietHoursEnd:    preference.QuietHoursEnd,
		EventToggles:     outToggles,
		TimezoneOverride: preference.TimezoneOverride,
		Frequency:        string(preference.Frequency),
	})
}

type eventResponse struct {
	EventID        string         `json:"event_id"`
	Type           string         `json:"type"`
	WatchReleaseID string         `json:"watch_release_id,omitempty"`
	RuleID         string         `json:"rule_id,omitempty"`
	ListingID      string         `json:"listing_id,omitempty"`
	Payload        map[string]any `json:"payload,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	limit, ok := parseLimit(r, w)
	if !ok {
		return
	}

	events, err := s.notifications.ListEvents.Execute(r.Context(), userID, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]eventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, eventResponse{
			EventID:        event.EventID,
			Type:           string(event.Type),
			WatchReleaseID: event.WatchReleaseID,
			RuleID:         event.RuleID,
			ListingID:      event.ListingID,
			Payload:        event.Payload,
			CreatedAt:      event.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

const streamPingInterval = 15 * time.Second

// handleStream serves the realtime notification feed over server-sent
// events. Comment pings keep intermediaries from closing the idle socket.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if s.stream == nil {
		writeError(w, http.StatusServiceUnavailable, "stream_unavailable", "realtime stream is not configured")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "stream_unsupported", "response writer does not support streaming")
		return
	}

	payloads, cancel := s.stream.Subscribe(userID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case payload := <-payloads:
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
