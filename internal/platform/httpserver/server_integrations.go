package httpserver

import (
	"context"
	"net/http"
	"time"

	importcommands "cratewatch/contexts/integrations/import-service/application/commands"
	importentities "cratewatch/contexts/integrations/import-service/domain/entities"
	gatewaycommands "cratewatch/contexts/integrations/provider-gateway/application/commands"
)

type accountLinkResponse struct {
	LinkID         string    `json:"link_id"`
	Provider       string    `json:"provider"`
	ExternalUserID string    `json:"external_user_id"`
	Scopes         string    `json:"scopes,omitempty"`
	ConnectedAt    time.Time `json:"connected_at"`
}

type linkAccountRequest struct {
	Provider             string     `json:"provider"`
	ExternalUserID       string     `json:"external_user_id"`
	AccessToken          string     `json:"access_token"`
	RefreshToken         string     `json:"refresh_token"`
	AccessTokenExpiresAt *time.Time `json:"access_token_expires_at"`
	TokenType            string     `json:"token_type"`
	Scopes               string     `json:"scopes"`
}

// handleLinkAccount stores provider OAuth credentials. Tokens never appear in
// the response.
func (s *Server) handleLinkAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req linkAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	link, err := s.gateway.LinkAccount.Execute(r.Context(), gatewaycommands.LinkAccountCommand{
		UserID:               userID,
		Provider:             req.Provider,
		ExternalUserID:       req.ExternalUserID,
		AccessToken:          req.AccessToken,
		RefreshToken:         req.RefreshToken,
		AccessTokenExpiresAt: req.AccessTokenExpiresAt,
		TokenType:            req.TokenType,
		Scopes:               req.Scopes,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, accountLinkResponse{
		LinkID:         link.LinkID,
		Provider:       link.Provider,
		ExternalUserID: link.ExternalUserID,
		Scopes:         link.Scopes,
		ConnectedAt:    link.ConnectedAt,
	})
}

type importJobResponse struct {
	JobID          string     `json:"job_id"`
	Provider       string     `json:"provider"`
	Scope          string     `json:"scope"`
	Status         string     `json:"status"`
	Cursor         string     `json:"cursor,omitempty"`
	ProcessedCount int        `json:"processed_count"`
	ImportedCount  int        `json:"imported_count"`
	CreatedCount   int        `json:"created_count"`
	UpdatedCount   int        `json:"updated_count"`
	ErrorCount     int        `json:"error_count"`
	Errors         []string   `json:"errors,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toImportJobResponse(job importentities.ImportJob) importJobResponse {
	return importJobResponse{
		JobID:          job.JobID,
		Provider:       job.Provider,
		Scope:          string(job.Scope),
		Status:         string(job.Status),
		Cursor:         job.Cursor,
		ProcessedCount: job.ProcessedCount,
		ImportedCount:  job.ImportedCount,
		CreatedCount:   job.CreatedCount,
		UpdatedCount:   job.UpdatedCount,
		ErrorCount:     job.ErrorCount,
		Errors:         job.Errors,
		StartedAt:      job.StartedAt,
		CompletedAt:    job.CompletedAt,
		CreatedAt:      job.CreatedAt,
	}
}

type startImportRequest struct {
	Provider string `json:"provider"`
	Scope    string `json:"scope"`
}

// handleStartImport admits at most one in-flight job per (user, provider,
// scope) and runs fresh jobs in the background. The response always carries
// the authoritative job, whether fresh, already running, or inside cooldown.
func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req startImportRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	job, created, err := s.imports.EnsureJob.Execute(r.Context(), importcommands.EnsureImportJobCommand{
		UserID:          userID,
		Provider:        req.Provider,
		Scope:           importentities.ImportScope(req.Scope),
		CooldownSeconds: s.importCooldown,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if created {
		execute := s.imports.ExecuteJob
		jobID := job.JobID
		go func() {
			if _, err := execute.Execute(context.WithoutCancel(r.Context()), jobID); err != nil {
				s.logger.Error("background import failed",
					"event", "http_import_background_failed",
					"module", "internal/platform/httpserver",
					"layer", "platform",
					"job_id", jobID,
					"error", err.Error(),
				)
			}
		}()
	}

	status := http.StatusOK
	if created {
		status = http.StatusAccepted
	}
	writeJSON(w, status, map[string]any{
		"job":     toImportJobResponse(job),
		"created": created,
	})
}

func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	limit, ok := parseLimit(r, w)
	if !ok {
		return
	}

	jobs, err := s.imports.ListJobs.Execute(r.Context(), userID, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]importJobResponse, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, toImportJobResponse(job))
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": out})
}

func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	job, err := s.imports.GetJob.Execute(r.Context(), userID, r.PathValue("job_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toImportJobResponse(job))
}
