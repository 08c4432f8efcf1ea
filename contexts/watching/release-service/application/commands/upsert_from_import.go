package commands

import (
	"context"
	"log/slog"
	"strings"

	"cratewatch/contexts/watching/release-service/domain/entities"
	"cratewatch/contexts/watching/release-service/ports"
)

// ImportSource names which Discogs list a release arrived from.
type ImportSource string

const (
	ImportSourceWantlist   ImportSource = "wantlist"
	ImportSourceCollection ImportSource = "collection"
)

// ImportedRelease is the per-release shape the import engine extracts from
// Discogs basic_information.
type ImportedRelease struct {
	DiscogsReleaseID int64
	DiscogsMasterID  int64
	Title            string
	Artist           string
	Year             int
}

// UpsertFromImportUseCase folds an imported release into the user's watch
// releases, keyed by (user, discogs_release_id). Existing rows get refreshed
// display fields; imported_from_* flags are set-on-write and never cleared,
// so a release seen in both lists keeps both flags. No lifecycle events are
// emitted here; the import job reports in aggregate.
type UpsertFromImportUseCase struct {
	Releases    ports.ReleaseRepository
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func (uc UpsertFromImportUseCase) Execute(ctx context.Context, userID string, source ImportSource, imported ImportedRelease) (entities.WatchRelease, bool, error) {
	now := uc.Clock.Now()

	release, found, err := uc.Releases.FindByDiscogsRelease(ctx, userID, imported.DiscogsReleaseID)
	if err != nil {
		return entities.WatchRelease{}, false, err
	}

	if found {
		release.Title = pickTitle(imported.Title, release.Title)
		if artist := strings.TrimSpace(imported.Artist); artist != "" {
			release.Artist = artist
		}
		if imported.Year > 0 {
			release.Year = imported.Year
		}
		if imported.DiscogsMasterID > 0 {
			release.DiscogsMasterID = imported.DiscogsMasterID
		}
		markSource(&release, source)
		release.UpdatedAt = now
		if err := uc.Releases.UpdateRelease(ctx, release); err != nil {
			return entities.WatchRelease{}, false, err
		}
		return release, false, nil
	}

	watchReleaseID, err := uc.IDGenerator.NewID(ctx)
	if err != nil {
		return entities.WatchRelease{}, false, err
	}
	release = entities.WatchRelease{
		WatchReleaseID:   watchReleaseID,
		UserID:           userID,
		DiscogsReleaseID: imported.DiscogsReleaseID,
		DiscogsMasterID:  imported.DiscogsMasterID,
		MatchMode:        entities.MatchModeExactRelease,
		Title:            pickTitle(imported.Title, "(untitled)"),
		Artist:           strings.TrimSpace(imported.Artist),
		Year:             imported.Year,
		Currency:         "USD",
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	markSource(&release, source)

	if err := uc.Releases.CreateRelease(ctx, release); err != nil {
		return entities.WatchRelease{}, false, err
	}
	return release, true, nil
}

func markSource(release *entities.WatchRelease, source ImportSource) {
	switch source {
	case ImportSourceCollection:
		release.ImportedFromCollection = true
	default:
		release.ImportedFromWantlist = true
	}
}

func pickTitle(imported string, current string) string {
	if title := strings.TrimSpace(imported); title != "" {
		return title
	}
	return current
}
