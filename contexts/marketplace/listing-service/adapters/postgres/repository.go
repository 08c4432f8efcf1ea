package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"cratewatch/contexts/marketplace/listing-service/domain/entities"
	domainerrors "cratewatch/contexts/marketplace/listing-service/domain/errors"

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

type listingModel struct {
	ListingID        string    `gorm:"column:listing_id;primaryKey"`
	Provider         string    `gorm:"column:provider;uniqueIndex:listings_provider_external"`
	ExternalID       string    `gorm:"column:external_id;uniqueIndex:listings_provider_external"`
	URL              string    `gorm:"column:url"`
	Title            string    `gorm:"column:title"`
	NormalizedTitle  string    `gorm:"column:normalized_title;index"`
	Price            float64   `gorm:"column:price"`
	Currency         string    `gorm:"column:currency"`
	Condition        string    `gorm:"column:condition"`
	Seller           string    `gorm:"column:seller"`
	Location         string    `gorm:"column:location"`
	Status           string    `gorm:"column:status"`
	DiscogsReleaseID int64     `gorm:"column:discogs_release_id"`
	DiscogsMasterID  int64     `gorm:"column:discogs_master_id"`
	FirstSeenAt      time.Time `gorm:"column:first_seen_at"`
	LastSeenAt       time.Time `gorm:"column:last_seen_at"`
	Raw              []byte    `gorm:"column:raw"`
	CreatedAt        time.Time `gorm:"column:created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at"`
}

func (listingModel) TableName() string { return "listings" }

type priceSnapshotModel struct {
	SnapshotID string    `gorm:"column:snapshot_id;primaryKey"`
	ListingID  string    `gorm:"column:listing_id;index"`
	Price      float64   `gorm:"column:price"`
	Currency   string    `gorm:"column:currency"`
	RecordedAt time.Time `gorm:"column:recorded_at"`
}

func (priceSnapshotModel) TableName() string { return "price_snapshots" }

type watchMatchModel struct {
	MatchID      string    `gorm:"column:match_id;primaryKey"`
	RuleID       string    `gorm:"column:rule_id;uniqueIndex:watch_matches_rule_listing"`
	UserID       string    `gorm:"column:user_id;index"`
	ListingID    string    `gorm:"column:listing_id;uniqueIndex:watch_matches_rule_listing"`
	MatchedAt    time.Time `gorm:"column:matched_at"`
	MatchContext []byte    `gorm:"column:match_context"`
}

func (watchMatchModel) TableName() string { return "watch_matches" }

type outboundClickModel struct {
	ClickID   string    `gorm:"column:click_id;primaryKey"`
	UserID    string    `gorm:"column:user_id;index"`
	ListingID string    `gorm:"column:listing_id"`
	Provider  string    `gorm:"column:provider"`
	Referrer  string    `gorm:"column:referrer"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (outboundClickModel) TableName() string { return "outbound_clicks" }

func (r *Repository) FindByProviderExternalID(ctx context.Context, provider string, externalID string) (entities.Listing, bool, error) {
	var row listingModel
	err := r.db.WithContext(ctx).
		Where("provider = ? AND external_id = ?", provider, externalID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Listing{}, false, nil
		}
		return entities.Listing{}, false, err
	}
	return row.toEntity(), true, nil
}

func (r *Repository) GetListing(ctx context.Context, listingID string) (entities.Listing, error) {
	var row listingModel
	err := r.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Listing{}, domainerrors.ErrListingNotFound
		}
		return entities.Listing{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) CreateListing(ctx context.Context, listing entities.Listing) error {
	row, err := toModel(listing)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *Repository) UpdateListing(ctx context.Context, listing entities.Listing) error {
	row, err := toModel(listing)
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).
		Model(&listingModel{}).
		Where("listing_id = ?", listing.ListingID).
		Updates(map[string]any{
			"url":                row.URL,
			"title":              row.Title,
			"normalized_title":   row.NormalizedTitle,
			"price":              row.Price,
			"currency":           row.Currency,
			"condition":          row.Condition,
			"seller":             row.Seller,
			"location":           row.Location,
			"status":             row.Status,
			"discogs_release_id": row.DiscogsReleaseID,
			"discogs_master_id":  row.DiscogsMasterID,
			"last_seen_at":       row.LastSeenAt,
			"raw":                row.Raw,
			"updated_at":         row.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrListingNotFound
	}
	return nil
}

func (r *Repository) AddSnapshot(ctx context.Context, snapshot entities.PriceSnapshot) error {
	row := priceSnapshotModel{
		SnapshotID: snapshot.SnapshotID,
		ListingID:  snapshot.ListingID,
		Price:      snapshot.Price,
		Currency:   snapshot.Currency,
		RecordedAt: snapshot.RecordedAt.UTC(),
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *Repository) ListSnapshots(ctx context.Context, listingID string) ([]entities.PriceSnapshot, error) {
	var rows []priceSnapshotModel
	if err := r.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("recorded_at ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	snapshots := make([]entities.PriceSnapshot, 0, len(rows))
	for _, row := range rows {
		snapshots = append(snapshots, entities.PriceSnapshot{
			SnapshotID: row.SnapshotID,
			ListingID:  row.ListingID,
			Price:      row.Price,
			Currency:   row.Currency,
			RecordedAt: row.RecordedAt,
		})
	}
	return snapshots, nil
}

func (r *Repository) CreateMatch(ctx context.Context, match entities.WatchMatch) (bool, error) {
	matchContext, err := json.Marshal(match.MatchContext)
	if err != nil {
		return false, err
	}
	if match.MatchContext == nil {
		matchContext = nil
	}

	row := watchMatchModel{
		MatchID:      match.MatchID,
		RuleID:       match.RuleID,
		UserID:       match.UserID,
		ListingID:    match.ListingID,
		MatchedAt:    match.MatchedAt.UTC(),
		MatchContext: matchContext,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		// watch_matches_rule_listing guards concurrent creation.
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *Repository) DeleteMatch(ctx context.Context, matchID string) error {
	return r.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Delete(&watchMatchModel{}).
		Error
}

func (r *Repository) ListMatchesByRule(ctx context.Context, ruleID string, limit int) ([]entities.WatchMatch, error) {
	var rows []watchMatchModel
	if err := r.db.WithContext(ctx).
		Where("rule_id = ?", ruleID).
		Order("matched_at DESC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	return matchesToEntities(rows), nil
}

func (r *Repository) ListMatchesByUser(ctx context.Context, userID string, limit int) ([]entities.WatchMatch, error) {
	var rows []watchMatchModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("matched_at DESC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	return matchesToEntities(rows), nil
}

func (r *Repository) CreateClick(ctx context.Context, click entities.OutboundClick) error {
	row := outboundClickModel{
		ClickID:   click.ClickID,
		UserID:    click.UserID,
		ListingID: click.ListingID,
		Provider:  click.Provider,
		Referrer:  click.Referrer,
		CreatedAt: click.CreatedAt.UTC(),
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func toModel(listing entities.Listing) (listingModel, error) {
	var raw []byte
	if len(listing.Raw) > 0 {
		var err error
		raw, err = json.Marshal(listing.Raw)
		if err != nil {
			return listingModel{}, err
		}
	}
	return listingModel{
		ListingID:        listing.ListingID,
		Provider:         listing.Provider,
		ExternalID:       listing.ExternalID,
		URL:              listing.URL,
		Title:            listing.Title,
		NormalizedTitle:  listing.NormalizedTitle,
		Price:            listing.Price,
		Currency:         listing.Currency,
		Condition:        listing.Condition,
		Seller:           listing.Seller,
		Location:         listing.Location,
		Status:           string(listing.Status),
		DiscogsReleaseID: listing.DiscogsReleaseID,
		DiscogsMasterID:  listing.DiscogsMasterID,
		FirstSeenAt:      listing.FirstSeenAt.UTC(),
		LastSeenAt:       listing.LastSeenAt.UTC(),
		Raw:              raw,
		CreatedAt:        listing.CreatedAt.UTC(),
		UpdatedAt:        listing.UpdatedAt.UTC(),
	}, nil
}

func (m listingModel) toEntity() entities.Listing {
	var raw map[string]any
	if len(m.Raw) > 0 {
		_ = json.Unmarshal(m.Raw, &raw)
	}
	return entities.Listing{
		ListingID:        m.ListingID,
		Provider:         m.Provider,
		ExternalID:       m.ExternalID,
		URL:              m.URL,
		Title:            m.Title,
		NormalizedTitle:  m.NormalizedTitle,
		Price:            m.Price,
		Currency:         m.Currency,
		Condition:        m.Condition,
		Seller:           m.Seller,
		Location:         m.Location,
		Status:           entities.ListingStatus(m.Status),
		DiscogsReleaseID: m.DiscogsReleaseID,
		DiscogsMasterID:  m.DiscogsMasterID,
		FirstSeenAt:      m.FirstSeenAt,
		LastSeenAt:       m.LastSeenAt,
		Raw:              raw,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func matchesToEntities(rows []watchMatchModel) []entities.WatchMatch {
	matches := make([]entities.WatchMatch, 0, len(rows))
	for _, row := range rows {
		var matchContext map[string]any
		if len(row.MatchContext) > 0 {
			_ = json.Unmarshal(row.MatchContext, &matchContext)
		}
		matches = append(matches, entities.WatchMatch{
			MatchID:      row.MatchID,
			RuleID:       row.RuleID,
			UserID:       row.UserID,
			ListingID:    row.ListingID,
			MatchedAt:    row.MatchedAt,
			MatchContext: matchContext,
		})
	}
	return matches
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
