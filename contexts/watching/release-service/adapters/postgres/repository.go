package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"cratewatch/contexts/watching/release-service/domain/entities"
	domainerrors "cratewatch/contexts/watching/release-service/domain/errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: db, logger: logger}
}

// Uniqueness is partial: exact_release rows are unique per
// (user_id, discogs_release_id), master_release rows per
// (user_id, discogs_master_id). The matching partial indexes live in the
// migration; gorm tags only cover the lookup indexes.
type watchReleaseModel struct {
	WatchReleaseID         string    `gorm:"column:watch_release_id;primaryKey"`
	UserID                 string    `gorm:"column:user_id;index:watch_releases_user"`
	DiscogsReleaseID       int64     `gorm:"column:discogs_release_id;index:watch_releases_discogs_release"`
	DiscogsMasterID        int64     `gorm:"column:discogs_master_id;index:watch_releases_discogs_master"`
	MatchMode              string    `gorm:"column:match_mode"`
	Title                  string    `gorm:"column:title"`
	Artist                 string    `gorm:"column:artist"`
	Year                   int       `gorm:"column:year"`
	TargetPrice            *float64  `gorm:"column:target_price"`
	Currency               string    `gorm:"column:currency"`
	MinCondition           string    `gorm:"column:min_condition"`
	IsActive               bool      `gorm:"column:is_active"`
	ImportedFromWantlist   bool      `gorm:"column:imported_from_wantlist"`
	ImportedFromCollection bool      `gorm:"column:imported_from_collection"`
	CreatedAt              time.Time `gorm:"column:created_at"`
	UpdatedAt              time.Time `gorm:"column:updated_at"`
}

func (watchReleaseModel) TableName() string { return "watch_releases" }

func (r *Repository) CreateRelease(ctx context.Context, release entities.WatchRelease) error {
	row := toModel(release)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrDuplicateRelease
		}
		return err
	}
	return nil
}

func (r *Repository) GetRelease(ctx context.Context, userID string, watchReleaseID string) (entities.WatchRelease, error) {
	var row watchReleaseModel
	err := r.db.WithContext(ctx).
		Where("watch_release_id = ? AND user_id = ?", watchReleaseID, userID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.WatchRelease{}, domainerrors.ErrReleaseNotFound
		}
		return entities.WatchRelease{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) UpdateRelease(ctx context.Context, release entities.WatchRelease) error {
	row := toModel(release)
	result := r.db.WithContext(ctx).
		Model(&watchReleaseModel{}).
		Where("watch_release_id = ? AND user_id = ?", release.WatchReleaseID, release.UserID).
		Updates(map[string]any{
			"discogs_master_id":        row.DiscogsMasterID,
			"title":                    row.Title,
			"artist":                   row.Artist,
			"year":                     row.Year,
			"target_price":             row.TargetPrice,
			"currency":                 row.Currency,
			"min_condition":            row.MinCondition,
			"is_active":                row.IsActive,
			"imported_from_wantlist":   row.ImportedFromWantlist,
			"imported_from_collection": row.ImportedFromCollection,
			"updated_at":               row.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrReleaseNotFound
	}
	return nil
}

func (r *Repository) DeleteRelease(ctx context.Context, userID string, watchReleaseID string) error {
	result := r.db.WithContext(ctx).
		Where("watch_release_id = ? AND user_id = ?", watchReleaseID, userID).
		Delete(&watchReleaseModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrReleaseNotFound
	}
	return nil
}

func (r *Repository) ListReleasesByUser(ctx context.Context, userID string, limit int) ([]entities.WatchRelease, error) {
	var rows []watchReleaseModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	return toEntities(rows), nil
}

func (r *Repository) ListActiveReleasesByUser(ctx context.Context, userID string) ([]entities.WatchRelease, error) {
	var rows []watchReleaseModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active", userID).
		Order("created_at ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	return toEntities(rows), nil
}

func (r *Repository) FindByDiscogsRelease(ctx context.Context, userID string, discogsReleaseID int64) (entities.WatchRelease, bool, error) {
	return r.findOne(ctx, "user_id = ? AND discogs_release_id = ? AND match_mode = ?",
		userID, discogsReleaseID, string(entities.MatchModeExactRelease))
}

func (r *Repository) FindByDiscogsMaster(ctx context.Context, userID string, discogsMasterID int64) (entities.WatchRelease, bool, error) {
	return r.findOne(ctx, "user_id = ? AND discogs_master_id = ? AND match_mode = ?",
		userID, discogsMasterID, string(entities.MatchModeMasterRelease))
}

func (r *Repository) findOne(ctx context.Context, query string, args ...any) (entities.WatchRelease, bool, error) {
	var row watchReleaseModel
	err := r.db.WithContext(ctx).Where(query, args...).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.WatchRelease{}, false, nil
		}
		return entities.WatchRelease{}, false, err
	}
	return row.toEntity(), true, nil
}

func toModel(release entities.WatchRelease) watchReleaseModel {
	return watchReleaseModel{
		WatchReleaseID:         release.WatchReleaseID,
		UserID:                 release.UserID,
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
		CreatedAt:              release.CreatedAt.UTC(),
		UpdatedAt:              release.UpdatedAt.UTC(),
	}
}

func (m watchReleaseModel) toEntity() entities.WatchRelease {
	return entities.WatchRelease{
		WatchReleaseID:         m.WatchReleaseID,
		UserID:                 m.UserID,
		DiscogsReleaseID:       m.DiscogsReleaseID,
		DiscogsMasterID:        m.DiscogsMasterID,
		MatchMode:              entities.MatchMode(m.MatchMode),
		Title:                  m.Title,
		Artist:                 m.Artist,
		Year:                   m.Year,
		TargetPrice:            m.TargetPrice,
		Currency:               m.Currency,
		MinCondition:           m.MinCondition,
		IsActive:               m.IsActive,
		ImportedFromWantlist:   m.ImportedFromWantlist,
		ImportedFromCollection: m.ImportedFromCollection,
		CreatedAt:              m.CreatedAt,
		UpdatedAt:              m.UpdatedAt,
	}
}

func toEntities(rows []watchReleaseModel) []entities.WatchRelease {
	releases := make([]entities.WatchRelease, 0, len(rows))
	for _, row := range rows {
		releases = append(releases, row.toEntity())
	}
	return releases
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
