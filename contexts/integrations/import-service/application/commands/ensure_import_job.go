package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"cratewatch/contexts/integrations/import-service/domain/entities"
	domainerrors "cratewatch/contexts/integrations/import-service/domain/errors"
	"cratewatch/contexts/integrations/import-service/ports"
	gatewayerrors "cratewatch/contexts/integrations/provider-gateway/domain/errors"
	gatewayports "cratewatch/contexts/integrations/provider-gateway/ports"
	notifentities "cratewatch/contexts/notifications/notification-service/domain/entities"
	notifports "cratewatch/contexts/notifications/notification-service/ports"
)

type EnsureImportJobCommand struct {
	UserID          string
	Provider        string
	Scope           entities.ImportScope
	CooldownSeconds int
}

// EnsureImportJobUseCase is the single-flight admission gate. A job is only
// inserted when no in-flight job exists for (user, provider, scope) and no
// completed job finished inside the cooldown window. IMPORT_STARTED fires
// once per fresh insertion.
type EnsureImportJobUseCase struct {
	Jobs        ports.ImportJobRepository
	Events      notifports.EventRecorder
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func (uc EnsureImportJobUseCase) Execute(ctx context.Context, cmd EnsureImportJobCommand) (entities.ImportJob, bool, error) {
	if !entities.ValidScope(cmd.Scope) {
		return entities.ImportJob{}, false, domainerrors.ErrInvalidScope
	}
	if cmd.Provider == "" {
		cmd.Provider = gatewayports.ProviderDiscogs
	}
	if !gatewayports.ValidProvider(cmd.Provider) {
		return entities.ImportJob{}, false, gatewayerrors.ErrUnknownProvider
	}

	if job, found, err := uc.Jobs.FindInFlightJob(ctx, cmd.UserID, cmd.Provider, cmd.Scope); err != nil {
		return entities.ImportJob{}, false, err
	} else if found {
		return job, false, nil
	}

	now := uc.Clock.Now()
	if cmd.CooldownSeconds > 0 {
		cutoff := now.Add(-time.Duration(cmd.CooldownSeconds) * time.Second)
		if job, found, err := uc.Jobs.FindRecentCompletedJob(ctx, cmd.UserID, cmd.Provider, cmd.Scope, cutoff); err != nil {
			return entities.ImportJob{}, false, err
		} else if found {
			return job, false, nil
		}
	}

	jobID, err := uc.IDGenerator.NewID(ctx)
	if err != nil {
		return entities.ImportJob{}, false, err
	}
	job := entities.ImportJob{
		JobID:     jobID,
		UserID:    cmd.UserID,
		Provider:  cmd.Provider,
		Scope:     cmd.Scope,
		Status:    entities.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.Jobs.CreateJob(ctx, job); err != nil {
		// Lost the insert race: another caller got the partial-unique slot.
		if errors.Is(err, domainerrors.ErrJobInFlight) {
			if existing, found, findErr := uc.Jobs.FindInFlightJob(ctx, cmd.UserID, cmd.Provider, cmd.Scope); findErr == nil && found {
				return existing, false, nil
			}
		}
		return entities.ImportJob{}, false, err
	}

	recordImportEvent(ctx, uc.Events, uc.Logger, notifentities.EventImportStarted, job, map[string]any{
		"job_id":   job.JobID,
		"provider": job.Provider,
		"scope":    string(job.Scope),
	})
	return job, true, nil
}

func recordImportEvent(ctx context.Context, events notifports.EventRecorder, logger *slog.Logger, eventType notifentities.EventType, job entities.ImportJob, payload map[string]any) {
	if events == nil {
		return
	}
	_, _, err := events.Record(ctx, notifports.EventRecord{
		UserID:  job.UserID,
		Type:    eventType,
		Payload: payload,
	})
	if err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("event record failed",
			"event", "import_event_record_failed",
			"module", "integrations/import-service",
			"layer", "application",
			"event_type", string(eventType),
			"job_id", job.JobID,
			"error", err.Error(),
		)
	}
}
