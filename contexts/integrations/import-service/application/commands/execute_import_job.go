package commands

import (
	"context"
	"fmt"
	"log/slog"

	"cratewatch/contexts/integrations/import-service/domain/entities"
	domainerrors "cratewatch/contexts/integrations/import-service/domain/errors"
	"cratewatch/contexts/integrations/import-service/ports"
	"cratewatch/contexts/integrations/provider-gateway/adapters/shared"
	gatewayports "cratewatch/contexts/integrations/provider-gateway/ports"
	notifentities "cratewatch/contexts/notifications/notification-service/domain/entities"
	notifports "cratewatch/contexts/notifications/notification-service/ports"
	releasecommands "cratewatch/contexts/watching/release-service/application/commands"
)

// ExecuteImportJobUseCase drains one pending import job: resolve the user's
// Discogs token, walk every page of the selected lists, and upsert each
// release into the watch releases. Any failure flips the job to failed with a
// redacted error string; the job row is the report either way.
type ExecuteImportJobUseCase struct {
	Jobs     ports.ImportJobRepository
	Tokens   ports.TokenResolver
	Lists    gatewayports.DiscogsListClient
	Releases ports.ReleaseUpserter
	Events   notifports.EventRecorder
	Clock    ports.Clock
	Logger   *slog.Logger
}

func (uc ExecuteImportJobUseCase) Execute(ctx context.Context, jobID string) (entities.ImportJob, error) {
	job, err := uc.Jobs.GetJob(ctx, jobID)
	if err != nil {
		return entities.ImportJob{}, err
	}
	if job.Status.Terminal() {
		return job, domainerrors.ErrJobTerminal
	}

	now := uc.Clock.Now()
	job.Status = entities.JobRunning
	job.StartedAt = &now
	job.UpdatedAt = now
	if err := uc.Jobs.UpdateJob(ctx, job); err != nil {
		return entities.ImportJob{}, err
	}

	resolved, err := uc.Tokens.Execute(ctx, job.UserID, job.Provider)
	if err != nil {
		return uc.failJob(ctx, job, err, "")
	}
	job.AccountLinkID = resolved.Link.LinkID
	username := resolved.Link.ExternalUserID
	if username == "" {
		return uc.failJob(ctx, job, fmt.Errorf("account link has no provider username"), resolved.AccessToken)
	}

	for _, source := range sourcesFor(job.Scope) {
		if err := uc.importList(ctx, &job, resolved.AccessToken, username, source); err != nil {
			return uc.failJob(ctx, job, err, resolved.AccessToken)
		}
	}

	finished := uc.Clock.Now()
	job.Status = entities.JobCompleted
	job.CompletedAt = &finished
	job.UpdatedAt = finished
	if err := uc.Jobs.UpdateJob(ctx, job); err != nil {
		return entities.ImportJob{}, err
	}

	recordImportEvent(ctx, uc.Events, uc.Logger, notifentities.EventImportCompleted, job, map[string]any{
		"job_id":    job.JobID,
		"provider":  job.Provider,
		"scope":     string(job.Scope),
		"processed": job.ProcessedCount,
		"imported":  job.ImportedCount,
		"created":   job.CreatedCount,
		"updated":   job.UpdatedCount,
	})
	uc.logger().Info("import job completed",
		"event", "import_job_completed",
		"module", "integrations/import-service",
		"layer", "application",
		"job_id", job.JobID,
		"processed", job.ProcessedCount,
		"created", job.CreatedCount,
		"updated", job.UpdatedCount,
	)
	return job, nil
}

func (uc ExecuteImportJobUseCase) importList(ctx context.Context, job *entities.ImportJob, token string, username string, source releasecommands.ImportSource) error {
	page := 1
	for {
		listPage, err := uc.fetchPage(ctx, token, username, source, page)
		if err != nil {
			return err
		}

		for _, release := range listPage.Releases {
			job.ProcessedCount++
			_, created, err := uc.Releases.Execute(ctx, job.UserID, source, releasecommands.ImportedRelease{
				DiscogsReleaseID: release.ReleaseID,
				DiscogsMasterID:  release.MasterID,
				Title:            release.Title,
				Artist:           release.Artist,
				Year:             release.Year,
			})
			if err != nil {
				return fmt.Errorf("upsert release %d: %w", release.ReleaseID, err)
			}
			job.ImportedCount++
			if created {
				job.CreatedCount++
			} else {
				job.UpdatedCount++
			}
		}

		// Persist per-page progress so a crashed job shows where it stopped.
		job.Page = page
		job.Cursor = fmt.Sprintf("%s:%d/%d", source, page, listPage.Pages)
		job.UpdatedAt = uc.Clock.Now()
		if err := uc.Jobs.UpdateJob(ctx, *job); err != nil {
			return err
		}

		if listPage.Pages == 0 || page >= listPage.Pages {
			return nil
		}
		page++
	}
}

func (uc ExecuteImportJobUseCase) fetchPage(ctx context.Context, token string, username string, source releasecommands.ImportSource, page int) (gatewayports.ListPage, error) {
	if source == releasecommands.ImportSourceCollection {
		return uc.Lists.FetchCollectionPage(ctx, token, username, page)
	}
	return uc.Lists.FetchWantlistPage(ctx, token, username, page)
}

// failJob flips the job to failed, keeping a redacted error string so stored
// job rows never carry the access token.
func (uc ExecuteImportJobUseCase) failJob(ctx context.Context, job entities.ImportJob, cause error, token string) (entities.ImportJob, error) {
	message := shared.TruncateError(cause.Error())
	if token != "" {
		message = shared.Redact(message, token)
	}

	now := uc.Clock.Now()
	job.Status = entities.JobFailed
	job.ErrorCount++
	job.Errors = append(job.Errors, message)
	job.CompletedAt = &now
	job.UpdatedAt = now
	if err := uc.Jobs.UpdateJob(ctx, job); err != nil {
		return entities.ImportJob{}, err
	}

	recordImportEvent(ctx, uc.Events, uc.Logger, notifentities.EventImportFailed, job, map[string]any{
		"job_id":   job.JobID,
		"provider": job.Provider,
		"scope":    string(job.Scope),
		"error":    message,
	})
	uc.logger().Warn("import job failed",
		"event", "import_job_failed",
		"module", "integrations/import-service",
		"layer", "application",
		"job_id", job.JobID,
		"error", message,
	)
	return job, nil
}

func sourcesFor(scope entities.ImportScope) []releasecommands.ImportSource {
	switch scope {
	case entities.ScopeWantlist:
		return []releasecommands.ImportSource{releasecommands.ImportSourceWantlist}
	case entities.ScopeCollection:
		return []releasecommands.ImportSource{releasecommands.ImportSourceCollection}
	default:
		return []releasecommands.ImportSource{releasecommands.ImportSourceWantlist, releasecommands.ImportSourceCollection}
	}
}

func (uc ExecuteImportJobUseCase) logger() *slog.Logger {
	if uc.Logger != nil {
		return uc.Logger
	}
	return slog.Default()
}
