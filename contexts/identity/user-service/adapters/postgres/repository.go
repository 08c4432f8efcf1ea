package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"cratewatch/contexts/identity/user-service/application/commands"
	"cratewatch/contexts/identity/user-service/domain/entities"
	domainerrors "cratewatch/contexts/identity/user-service/domain/errors"

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

// Email is lowercased before it reaches this layer, so the plain unique
// index behaves case-insensitively.
type userModel struct {
	UserID      string    `gorm:"column:user_id;primaryKey"`
	Email       string    `gorm:"column:email;uniqueIndex:users_email"`
	DisplayName string    `gorm:"column:display_name"`
	Timezone    string    `gorm:"column:timezone"`
	Currency    string    `gorm:"column:currency"`
	IsActive    bool      `gorm:"column:is_active"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (userModel) TableName() string { return "users" }

func (r *Repository) CreateUser(ctx context.Context, user entities.User) error {
	row := toModel(user)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (r *Repository) GetUser(ctx context.Context, userID string) (entities.User, error) {
	var row userModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.User{}, domainerrors.ErrUserNotFound
		}
		return entities.User{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (entities.User, error) {
	var row userModel
	err := r.db.WithContext(ctx).
		Where("email = ?", commands.NormalizeEmail(email)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.User{}, domainerrors.ErrUserNotFound
		}
		return entities.User{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) UpdateUser(ctx context.Context, user entities.User) error {
	row := toModel(user)
	result := r.db.WithContext(ctx).
		Model(&userModel{}).
		Where("user_id = ?", user.UserID).
		Updates(map[string]any{
			"display_name": row.DisplayName,
			"timezone":     row.Timezone,
			"currency":     row.Currency,
			"is_active":    row.IsActive,
			"updated_at":   row.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrUserNotFound
	}
	return nil
}

func toModel(user entities.User) userModel {
	return userModel{
		UserID:      user.UserID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Timezone:    user.Timezone,
		Currency:    user.Currency,
		IsActive:    user.IsActive,
		CreatedAt:   user.CreatedAt.UTC(),
		UpdatedAt:   user.UpdatedAt.UTC(),
	}
}

func (m userModel) toEntity() entities.User {
	return entities.User{
		UserID:      m.UserID,
		Email:       m.Email,
		DisplayName: m.DisplayName,
		Timezone:    m.Timezone,
		Currency:    m.Currency,
		IsActive:    m.IsActive,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
