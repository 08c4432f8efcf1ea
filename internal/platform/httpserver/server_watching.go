package httpserver

import (
	"net/http"
	"time"

	releasecommands "cratewatch/contexts/watching/release-service/application/commands"
	releaseentities "cratewatch/contexts/watching/release-service/domain/entities"
	rulecommands "cratewatch/contexts/watching/rule-service/application/commands"
	ruleentities "cratewatch/contexts/watching/rule-service/domain/entities"
)

type ruleResponse struct {
	RuleID              string                 `json:"rule_id"`
	Name                string                 `json:"name"`
	Query               ruleentities.RuleQuery `json:"query"`
	IsActive            bool                   `json:"is_active"`
	PollIntervalSeconds int                    `json:"poll_interval_seconds"`
	LastRunAt           *time.Time             `json:"last_run_at,omitempty"`
	NextRunAt           *time.Time             `json:"next_run_at,omitempty"`
	CreatedAt           time.Time              `json:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at"`
}

func toRuleResponse(rule ruleentities.WatchRule) ruleResponse {
	return ruleResponse{
		RuleID:              rule.RuleID,
		Name:                rule.Name,
		Query:               rule.Query,
		IsActive:            rule.IsActive,
		PollIntervalSeconds: rule.PollIntervalSeconds,
		LastRunAt:           rule.LastRunAt,
		NextRunAt:           rule.NextRunAt,
		CreatedAt:           rule.CreatedAt,
		UpdatedAt:           rule.UpdatedAt,
	}
}

func toRuleResponses(rules []ruleentities.WatchRule) []ruleResponse {
	out := make([]ruleResponse, 0, len(rules))
	for _, rule := range rules {
		out = append(out, toRuleResponse(rule))
	}
	return out
}

type createRuleRequest struct {
	Name                string                 `json:"name"`
	Query               ruleentities.RuleQuery `json:"query"`
	PollIntervalSeconds int                    `json:"poll_interval_seconds"`
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req createRuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rule, err := s.rules.CreateRule.Execute(r.Context(), rulecommands.CreateRuleCommand{
		UserID:              userID,
		Name:                req.Name,
		Query:               req.Query,
		PollIntervalSeconds: req.PollIntervalSeconds,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRuleResponse(rule))
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	limit, ok := parseLimit(r, w)
	if !ok {
		return
	}

	rules, err := s.rules.ListRules.Execute(r.Context(), userID, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": toRuleResponses(rules)})
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	rule, err := s.rules.GetRule.Execute(r.Context(), userID, r.PathValue("rule_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleResponse(rule))
}

type updateRuleRequest struct {
	Name                *string                 `json:"name"`
	Query               *ruleentities.RuleQuery `json:"query"`
	PollIntervalSeconds *int                    `json:"poll_interval_seconds"`
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req updateRuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rule, err := s.rules.UpdateRule.Execute(r.Context(), rulecommands.UpdateRuleCommand{
		UserID:              userID,
		RuleID:              r.PathValue("rule_id"),
		Name:                req.Name,
		Query:               req.Query,
		PollIntervalSeconds: req.PollIntervalSeconds,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleResponse(rule))
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := s.rules.DeleteRule.Execute(r.Context(), userID, r.PathValue("rule_id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEnableRule(w http.ResponseWriter, r *http.Request) {
	s.setRuleActive(w, r, true)
}

func (s *Server) handleDisableRule(w http.ResponseWriter, r *http.Request) {
	s.setRuleActive(w, r, false)
}

func (s *Server) setRuleActive(w http.ResponseWriter, r *http.Request, active bool) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	rule, err := s.rules.SetRuleActive.Execute(r.Context(), userID, r.PathValue("rule_id"), active)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleResponse(rule))
}

type releaseResponse struct {
	WatchReleaseID         string    `json:"watch_release_id"`
	DiscogsReleaseID       int64     `json:"discogs_release_id"`
	DiscogsMasterID        int64     `json:"discogs_master_id,omitempty"`
	MatchMode              string    `json:"match_mode"`
	Title                  string    `json:"title"`
	Artist                 string    `json:"artist,omitempty"`
	Year                   int       `json:"year,omitempty"`
	TargetPrice            *float64  `json:"target_price,omitempty"`
	Currency               string    `json:"currency"`
	MinCondition           string    `json:"min_condition,omitempty"`
	IsActive               bool      `json:"is_active"`
	ImportedFromWantlist   bool      `json:"imported_from_wantlist"`
	ImportedFromCollection bool      `json:"imported_from_collection"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

func toReleaseResponse(release releaseentities.WatchRelease) releaseResponse {
	return releaseResponse{
		WatchReleaseID:         release.WatchReleaseID,
		DiscogsReleaseID:       release.DiscogsReleaseID,
		DiscogsMasterID:        release.DiscogsMasterID,
		MatchMode:              string(release.MatchMode),
		Title:                  release.Title,
		Artist:                 release.Artist,
		Year:                   release.Year,
		TargetPrice:            release.TargetPrice,
		Currency:               release.Currency,
		MinCondition:           release.MinCondition,
		IsActive:               release.IsActive,
		ImportedFromWantlist:   release.ImportedFromWantlist,
		ImportedFromCollection: release.ImportedFromCollection,
		CreatedAt:              release.CreatedAt,
		UpdatedAt:              release.UpdatedAt,
	}
}

type createReleaseRequest struct {
	DiscogsReleaseID int64    `json:"discogs_release_id"`
	DiscogsMasterID  int64    `json:"discogs_master_id"`
	MatchMode        string   `json:"match_mode"`
	Title            string   `json:"title"`
	Artist           string   `json:"artist"`
	Year             int      `json:"year"`
	TargetPrice      *float64 `json:"target_price"`
	Currency         string   `json:"currency"`
	MinCondition     string   `json:"min_condition"`
}

func (s *Server) handleCreateRelease(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req createReleaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	release, err := s.releases.CreateRelease.Execute(r.Context(), releasecommands.CreateReleaseCommand{
		UserID:           userID,
		DiscogsReleaseID: req.DiscogsReleaseID,
		DiscogsMasterID:  req.DiscogsMasterID,
		MatchMode:        releaseentities.MatchMode(req.MatchMode),
		Title:            req.Title,
		Artist:           req.Artist,
		Year:             req.Year,
		TargetPrice:      req.TargetPrice,
		Currency:         req.Currency,
		MinCondition:     req.MinCondition,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReleaseResponse(release))
}

func (s *Server) handleListReleases(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	limit, ok := parseLimit(r, w)
	if !ok {
		return
	}

	releases, err := s.releases.ListReleases.Execute(r.Context(), userID, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]releaseResponse, 0, len(releases))
	for _, release := range releases {
		out = append(out, toReleaseResponse(release))
	}
	writeJSON(w, http.StatusOK, map[string]any{"releases": out})
}

func (s *Server) handleGetRelease(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	release, err := s.releases.GetRelease.Execute(r.Context(), userID, r.PathValue("watch_release_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReleaseResponse(release))
}

type updateReleaseRequest struct {
	Title        *string  `json:"title"`
	Artist       *string  `json:"artist"`
	Year         *int     `json:"year"`
	TargetPrice  *float64 `json:"target_price"`
	Currency     *string  `json:"currency"`
	MinCondition *string  `json:"min_condition"`
}

func (s *Server) handleUpdateRelease(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req updateReleaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	release, err := s.releases.UpdateRelease.Execute(r.Context(), releasecommands.UpdateReleaseCommand{
		UserID:         userID,
		WatchReleaseID: r.PathValue("watch_release_id"),
		Title:          req.Title,
		Artist:         req.Artist,
		Year:           req.Year,
		TargetPrice:    req.TargetPrice,
		Currency:       req.Currency,
		MinCondition:   req.MinCondition,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReleaseResponse(release))
}

func (s *Server) handleDeleteRelease(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := s.releases.DeleteRelease.Execute(r.Context(), userID, r.PathValue("watch_release_id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEnableRelease(w http.ResponseWriter, r *http.Request) {
	s.setReleaseActive(w, r, true)
}

func (s *Server) handleDisableRelease(w http.ResponseWriter, r *http.Request) {
	s.setReleaseActive(w, r, false)
}

func (s *Server) setReleaseActive(w http.ResponseWriter, r *http.Request, active bool) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	release, err := s.releases.SetReleaseActive.Execute(r.Context(), userID, r.PathValue("watch_release_id"), active)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReleaseResponse(release))
}
