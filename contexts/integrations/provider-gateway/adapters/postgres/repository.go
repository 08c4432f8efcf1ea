package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	domainerrors "cratewatch/contexts/integrations/provider-gateway/domain/errors"
	"cratewatch/contexts/integrations/provider-gateway/ports"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
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

type accountLinkModel struct {
	LinkID               string     `gorm:"column:link_id;primaryKey"`
	UserID               string     `gorm:"column:user_id;uniqueIndex:external_account_links_user_provider"`
	Provider             string     `gorm:"column:provider;uniqueIndex:external_account_links_user_provider"`
	ExternalUserID       string     `gorm:"column:external_user_id"`
	AccessToken          string     `gorm:"column:access_token"`
	RefreshToken         string     `gorm:"column:refresh_token"`
	AccessTokenExpiresAt *time.Time `gorm:"column:access_token_expires_at"`
	TokenType            string     `gorm:"column:token_type"`
	Scopes               string     `gorm:"column:scopes"`
	ConnectedAt          time.Time  `gorm:"column:connected_at"`
	CreatedAt            time.Time  `gorm:"column:created_at"`
	UpdatedAt            time.Time  `gorm:"column:updated_at"`
}

func (accountLinkModel) TableName() string { return "external_account_links" }

type providerRequestModel struct {
	RequestID  string    `gorm:"column:request_id;primaryKey"`
	UserID     string    `gorm:"column:user_id;index"`
	Provider   string    `gorm:"column:provider"`
	Endpoint   string    `gorm:"column:endpoint"`
	Method     string    `gorm:"column:method"`
	StatusCode int       `gorm:"column:status_code"`
	DurationMS int64     `gorm:"column:duration_ms"`
	Error      string    `gorm:"column:error"`
	Meta       []byte    `gorm:"column:meta"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (providerRequestModel) TableName() string { return "provider_requests" }

func (r *Repository) GetLink(ctx context.Context, userID string, provider string) (ports.AccountLink, error) {
	var row accountLinkModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, provider).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.AccountLink{}, domainerrors.ErrLinkNotFound
		}
		return ports.AccountLink{}, err
	}
	return row.toPort(), nil
}

func (r *Repository) SaveLink(ctx context.Context, link ports.AccountLink) error {
	row := accountLinkModel{
		LinkID:               link.LinkID,
		UserID:               link.UserID,
		Provider:             link.Provider,
		ExternalUserID:       link.ExternalUserID,
		AccessToken:          link.AccessToken,
		RefreshToken:         link.RefreshToken,
		AccessTokenExpiresAt: link.AccessTokenExpiresAt,
		TokenType:            link.TokenType,
		Scopes:               link.Scopes,
		ConnectedAt:          link.ConnectedAt.UTC(),
		CreatedAt:            link.CreatedAt.UTC(),
		UpdatedAt:            link.UpdatedAt.UTC(),
	}
	// Relinking replaces tokens and identity but keeps the original row.
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "provider"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"external_user_id", "access_token", "refresh_token",
				"access_token_expires_at", "token_type", "scopes",
				"connected_at", "updated_at",
			}),
		}).
		Create(&row).
		Error
}

func (r *Repository) UpdateTokens(ctx context.Context, linkID string, accessToken string, refreshToken string, updatedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&accountLinkModel{}).
		Where("link_id = ?", linkID).
		Updates(map[string]any{
			"access_token":  accessToken,
			"refresh_token": refreshToken,
			"updated_at":    updatedAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrLinkNotFound
	}
	return nil
}

// RequestSink appends one provider_requests row per outbound attempt.
// The table is append-only diagnostics; rows are never updated.
type RequestSink struct {
	db     *gorm.DB
	ids    ports.IDGenerator
	clock  ports.Clock
	logger *slog.Logger
}

func NewRequestSink(db *gorm.DB, ids ports.IDGenerator, clock ports.Clock, logger *slog.Logger) *RequestSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &RequestSink{db: db, ids: ids, clock: clock, logger: logger}
}

func (s *RequestSink) Record(ctx context.Context, entry ports.RequestLog) error {
	requestID, err := s.ids.NewID(ctx)
	if err != nil {
		return err
	}

	var meta []byte
	if len(entry.Meta) > 0 {
		meta, err = json.Marshal(entry.Meta)
		if err != nil {
			return err
		}
	}

	row := providerRequestModel{
		RequestID:  requestID,
		UserID:     entry.UserID,
		Provider:   entry.Provider,
		Endpoint:   entry.Endpoint,
		Method:     entry.Method,
		StatusCode: entry.StatusCode,
		DurationMS: entry.DurationMS,
		Error:      entry.Error,
		Meta:       meta,
		CreatedAt:  s.clock.Now().UTC(),
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (m accountLinkModel) toPort() ports.AccountLink {
	return ports.AccountLink{
		LinkID:               m.LinkID,
		UserID:               m.UserID,
		Provider:             m.Provider,
		ExternalUserID:       m.ExternalUserID,
		AccessToken:          m.AccessToken,
		RefreshToken:         m.RefreshToken,
		AccessTokenExpiresAt: m.AccessTokenExpiresAt,
		TokenType:            m.TokenType,
		Scopes:               m.Scopes,
		ConnectedAt:          m.ConnectedAt,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}

var (
	_ ports.AccountLinkRepository = (*Repository)(nil)
	_ ports.RequestLogSink        = (*RequestSink)(nil)
)
