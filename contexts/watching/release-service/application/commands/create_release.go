package commands

import (
	"context"
	"log/slog"
	"strings"

	notifentities "cratewatch/contexts/notifications/notification-service/domain/entities"
	notifports "cratewatch/contexts/notifications/notification-service/ports"
	"cratewatch/contexts/watching/release-service/domain/entities"
	domainerrors "cratewatch/contexts/watching/release-service/domain/errors"
	"cratewatch/contexts/watching/release-service/ports"
)

type CreateReleaseCommand struct {
	UserID           string
	DiscogsReleaseID int64
	DiscogsMasterID  int64
	MatchMode        entities.MatchMode
	Title            string
	Artist           string
	Year             int
	TargetPrice      *float64
	Currency         string
	MinCondition     string
}

type CreateReleaseUseCase struct {
	Releases    ports.ReleaseRepository
	Events      notifports.EventRecorder
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func (uc CreateReleaseUseCase) Execute(ctx context.Context, cmd CreateReleaseCommand) (entities.WatchRelease, error) {
	if err := validateCommand(cmd); err != nil {
		return entities.WatchRelease{}, err
	}
	if err := uc.checkDuplicate(ctx, cmd); err != nil {
		return entities.WatchRelease{}, err
	}

	watchReleaseID, err := uc.IDGenerator.NewID(ctx)
	if err != nil {
		return entities.WatchRelease{}, err
	}
	now := uc.Clock.Now()

	release := entities.WatchRelease{
		WatchReleaseID:   watchReleaseID,
		UserID:           cmd.UserID,
		DiscogsReleaseID: cmd.DiscogsReleaseID,
		DiscogsMasterID:  cmd.DiscogsMasterID,
		MatchMode:        cmd.MatchMode,
		Title:            strings.TrimSpace(cmd.Title),
		Artist:           strings.TrimSpace(cmd.Artist),
		Year:             cmd.Year,
		TargetPrice:      cmd.TargetPrice,
		Currency:         normalizeCurrency(cmd.Currency),
		MinCondition:     cmd.MinCondition,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := uc.Releases.CreateRelease(ctx, release); err != nil {
		return entities.WatchRelease{}, err
	}

	recordReleaseEvent(ctx, uc.Events, uc.Logger, notifentities.EventWatchReleaseCreated, release)
	return release, nil
}

func (uc CreateReleaseUseCase) checkDuplicate(ctx context.Context, cmd CreateReleaseCommand) error {
	switch cmd.MatchMode {
	case entities.MatchModeMasterRelease:
		if _, found, err := uc.Releases.FindByDiscogsMaster(ctx, cmd.UserID, cmd.DiscogsMasterID); err != nil {
			return err
		} else if found {
			return domainerrors.ErrDuplicateRelease
		}
	default:
		if _, found, err := uc.Releases.FindByDiscogsRelease(ctx, cmd.UserID, cmd.DiscogsReleaseID); err != nil {
			return err
		} else if found {
			return domainerrors.ErrDuplicateRelease
		}
	}
	return nil
}

func validateCommand(cmd CreateReleaseCommand) error {
	if !entities.ValidMatchMode(cmd.MatchMode) {
		return domainerrors.ErrInvalidMatchMode
	}
	if cmd.DiscogsReleaseID <= 0 {
		return domainerrors.ErrMissingReleaseID
	}
	if cmd.MatchMode == entities.MatchModeMasterRelease && cmd.DiscogsMasterID <= 0 {
		return domainerrors.ErrMissingMasterID
	}
	if strings.TrimSpace(cmd.Title) == "" {
		return domainerrors.ErrInvalidTitle
	}
	if cmd.TargetPrice != nil && *cmd.TargetPrice < 0 {
		return domainerrors.ErrNegativeTargetPrice
	}
	return nil
}

func normalizeCurrency(currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return "USD"
	}
	return currency
}

func recordReleaseEvent(ctx context.Context, events notifports.EventRecorder, logger *slog.Logger, eventType notifentities.EventType, release entities.WatchRelease) {
	if events == nil {
		return
	}
	_, _, err := events.Record(ctx, notifports.EventRecord{
		UserID:         release.UserID,
		Type:           eventType,
		WatchReleaseID: release.WatchReleaseID,
		Payload: map[string]any{
			"watch_release_id":   release.WatchReleaseID,
			"discogs_release_id": release.DiscogsReleaseID,
			"title":              release.Title,
			"match_mode":         string(release.MatchMode),
			"is_active":          release.IsActive,
		},
	})
	if err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("event record failed",
			"event", "release_event_record_failed",
			"module", "watching/release-service",
			"layer", "application",
			"event_type", string(eventType),
			"watch_release_id", release.WatchReleaseID,
			"error", err.Error(),
		)
	}
}
