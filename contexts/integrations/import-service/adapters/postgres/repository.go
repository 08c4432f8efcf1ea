package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"cratewatch/contexts/integrations/import-service/domain/entities"
	domainerrors "cratewatch/contexts/integrations/import-service/domain/errors"

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

// The single-flight guarantee rides a partial unique index in the migration:
// UNIQUE (user_id, provider, import_scope) WHERE status IN ('pending','running').
type importJobModel struct {
	JobID          string     `gorm:"column:job_id;primaryKey"`
	UserID         string     `gorm:"column:user_id;index:import_jobs_user"`
	AccountLinkID  string     `gorm:"column:account_link_id"`
	Provider       string     `gorm:"column:provider"`
	ImportScope    string     `gorm:"column:import_scope"`
	Status         string     `gorm:"column:status;index:import_jobs_status"`
	Cursor         string     `gorm:"column:cursor"`
	Page           int        `gorm:"column:page"`
	ProcessedCount int        `gorm:"column:processed_count"`
	ImportedCount  int        `gorm:"column:imported_count"`
	CreatedCount   int        `gorm:"column:created_count"`
	UpdatedCount   int        `gorm:"column:updated_count"`
	ErrorCount     int        `gorm:"column:error_count"`
	Errors         []byte     `gorm:"column:errors"`
	StartedAt      *time.Time `gorm:"column:started_at"`
	CompletedAt    *time.Time `gorm:"column:completed_at"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
}

func (importJobModel) TableName() string { return "import_jobs" }

func (r *Repository) CreateJob(ctx context.Context, job entities.ImportJob) error {
	row, err := toModel(job)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrJobInFlight
		}
		return err
	}
	return nil
}

func (r *Repository) GetJob(ctx context.Context, jobID string) (entities.ImportJob, error) {
	var row importJobModel
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.ImportJob{}, domainerrors.ErrJobNotFound
		}
		return entities.ImportJob{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) UpdateJob(ctx context.Context, job entities.ImportJob) error {
	row, err := toModel(job)
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).
		Model(&importJobModel{}).
		Where("job_id = ?", job.JobID).
		Updates(map[string]any{
			"account_link_id": row.AccountLinkID,
			"status":          row.Status,
			"cursor":          row.Cursor,
			"page":            row.Page,
			"processed_count": row.ProcessedCount,
			"imported_count":  row.ImportedCount,
			"created_count":   row.CreatedCount,
			"updated_count":   row.UpdatedCount,
			"error_count":     row.ErrorCount,
			"errors":          row.Errors,
			"started_at":      row.StartedAt,
			"completed_at":    row.CompletedAt,
			"updated_at":      row.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrJobNotFound
	}
	return nil
}

func (r *Repository) FindInFlightJob(ctx context.Context, userID string, provider string, scope entities.ImportScope) (entities.ImportJob, bool, error) {
	var row importJobModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND provider = ? AND import_scope = ? AND status IN ?",
			userID, provider, string(scope), []string{string(entities.JobPending), string(entities.JobRunning)}).
		Order("created_at DESC").
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.ImportJob{}, false, nil
		}
		return entities.ImportJob{}, false, err
	}
	return row.toEntity(), true, nil
}

func (r *Repository) FindRecentCompletedJob(ctx context.Context, userID string, provider string, scope entities.ImportScope, cutoff time.Time) (entities.ImportJob, bool, error) {
	var row importJobModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND provider = ? AND import_scope = ? AND status = ? AND completed_at >= ?",
			userID, provider, string(scope), string(entities.JobCompleted), cutoff.UTC()).
		Order("completed_at DESC").
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.ImportJob{}, false, nil
		}
		return entities.ImportJob{}, false, err
	}
	return row.toEntity(), true, nil
}

func (r *Repository) ListJobsByUser(ctx context.Context, userID string, limit int) ([]entities.ImportJob, error) {
	var rows []importJobModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	jobs := make([]entities.ImportJob, 0, len(rows))
	for _, row := range rows {
		jobs = append(jobs, row.toEntity())
	}
	return jobs, nil
}

func toModel(job entities.ImportJob) (importJobModel, error) {
	var jobErrors []byte
	if len(job.Errors) > 0 {
		var err error
		jobErrors, err = json.Marshal(job.Errors)
		if err != nil {
			return importJobModel{}, err
		}
	}
	return importJobModel{
		JobID:          job.JobID,
		UserID:         job.UserID,
		AccountLinkID:  job.AccountLinkID,
		Provider:       job.Provider,
		ImportScope:    string(job.Scope),
		Status:         string(job.Status),
		Cursor:         job.Cursor,
		Page:           job.Page,
		ProcessedCount: job.ProcessedCount,
		ImportedCount:  job.ImportedCount,
		CreatedCount:   job.CreatedCount,
		UpdatedCount:   job.UpdatedCount,
		ErrorCount:     job.ErrorCount,
		Errors:         jobErrors,
		StartedAt:      job.StartedAt,
		CompletedAt:    job.CompletedAt,
		CreatedAt:      job.CreatedAt.UTC(),
		UpdatedAt:      job.UpdatedAt.UTC(),
	}, nil
}

func (m importJobModel) toEntity() entities.ImportJob {
	var jobErrors []string
	if len(m.Errors) > 0 {
		_ = json.Unmarshal(m.Errors, &jobErrors)
	}
	return entities.ImportJob{
		JobID:          m.JobID,
		UserID:         m.UserID,
		AccountLinkID:  m.AccountLinkID,
		Provider:       m.Provider,
		Scope:          entities.ImportScope(m.ImportScope),
		Status:         entities.JobStatus(m.Status),
		Cursor:         m.Cursor,
		Page:           m.Page,
		ProcessedCount: m.ProcessedCount,
		ImportedCount:  m.ImportedCount,
		CreatedCount:   m.CreatedCount,
		UpdatedCount:   m.UpdatedCount,
		ErrorCount:     m.ErrorCount,
		Errors:         jobErrors,
		StartedAt:      m.StartedAt,
		CompletedAt:    m.CompletedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
