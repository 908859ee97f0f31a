package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"water-quality-api/apperrors"
	"water-quality-api/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// API sort field names mapped to their columns. Anything else is rejected.
var sortColumns = map[string]string{
	"createdAt":       "created_at",
	"predictionLabel": "prediction_label",
	"confidence":      "confidence",
	"resultText":      "result_text",
}

// SortColumn reports whether field is an allowed sort key.
func SortColumn(field string) (string, bool) {
	col, ok := sortColumns[field]
	return col, ok
}

const (
	MinPageSize = 1
	MaxPageSize = 100
)

type OwnerStats struct {
	Total         int64
	SafeCount     int64
	UnsafeCount   int64
	AvgConfidence float64
	MinConfidence float64
	MaxConfidence float64
	LastCreatedAt *time.Time
}

type GlobalStats struct {
	OwnerStats
	TotalUsers int64
}

// PredictionStore is the persistence contract for prediction records. Every
// read and delete is scoped by owner; a record under another owner is
// indistinguishable from a missing one.
type PredictionStore interface {
	Create(ctx context.Context, p *models.WaterPrediction) error
	FindByID(ctx context.Context, id string, ownerID uint) (*models.WaterPrediction, error)
	DeleteByID(ctx context.Context, id string, ownerID uint) (bool, error)
	ListByOwner(ctx context.Context, ownerID uint, page, pageSize int, sortField, sortOrder string) ([]models.WaterPrediction, int64, error)
	AggregateByOwner(ctx context.Context, ownerID uint) (*OwnerStats, error)
	AggregateGlobal(ctx context.Context) (*GlobalStats, error)
	UpdateMetadata(ctx context.Context, id string, ownerID uint, location, notes *string) (*models.WaterPrediction, error)
}

type GormPredictionStore struct {
	db *gorm.DB
}

func NewGormPredictionStore(db *gorm.DB) *GormPredictionStore {
	return &GormPredictionStore{db: db}
}

func (s *GormPredictionStore) Create(ctx context.Context, p *models.WaterPrediction) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return &apperrors.StorageError{Op: "create", Err: err}
	}
	return nil
}

func (s *GormPredictionStore) FindByID(ctx context.Context, id string, ownerID uint) (*models.WaterPrediction, error) {
	var p models.WaterPrediction
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, ownerID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &apperrors.NotFoundError{Resource: "prediction"}
	}
	if err != nil {
		return nil, &apperrors.StorageError{Op: "find", Err: err}
	}
	return &p, nil
}

func (s *GormPredictionStore) DeleteByID(ctx context.Context, id string, ownerID uint) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, ownerID).
		Delete(&models.WaterPrediction{})
	if res.Error != nil {
		return false, &apperrors.StorageError{Op: "delete", Err: res.Error}
	}
	return res.RowsAffected > 0, nil
}

func (s *GormPredictionStore) ListByOwner(ctx context.Context, ownerID uint, page, pageSize int, sortField, sortOrder string) ([]models.WaterPrediction, int64, error) {
	col, ok := sortColumns[sortField]
	if !ok {
		return nil, 0, &apperrors.ValidationError{Fields: []apperrors.FieldError{
			{Field: "sort_by", Message: fmt.Sprintf("unsupported sort field %q", sortField)},
		}}
	}
	var dir string
	switch strings.ToLower(sortOrder) {
	case "asc":
		dir = "ASC"
	case "desc":
		dir = "DESC"
	default:
		return nil, 0, &apperrors.ValidationError{Fields: []apperrors.FieldError{
			{Field: "sort_order", Message: "must be asc or desc"},
		}}
	}
	if page < 1 || pageSize < MinPageSize || pageSize > MaxPageSize {
		return nil, 0, &apperrors.ValidationError{Fields: []apperrors.FieldError{
			{Field: "page", Message: "page must be >= 1 and limit between 1 and 100"},
		}}
	}

	// Count and page read share one transaction so the envelope total and
	// the rows come from a single point-in-time view of the owner's data.
	var total int64
	var rows []models.WaterPrediction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Model(&models.WaterPrediction{}).
			Where("user_id = ?", ownerID).
			Count(&total).Error; err != nil {
			return err
		}
		// Secondary order on id keeps pages stable under equal sort keys.
		return tx.
			Where("user_id = ?", ownerID).
			Order(fmt.Sprintf("%s %s, id ASC", col, dir)).
			Offset((page - 1) * pageSize).
			Limit(pageSize).
			Find(&rows).Error
	})
	if err != nil {
		return nil, 0, &apperrors.StorageError{Op: "list", Err: err}
	}
	return rows, total, nil
}

type aggRow struct {
	Total         int64      `gorm:"column:total"`
	SafeCount     int64      `gorm:"column:safe_count"`
	AvgConfidence *float64   `gorm:"column:avg_confidence"`
	MinConfidence *float64   `gorm:"column:min_confidence"`
	MaxConfidence *float64   `gorm:"column:max_confidence"`
	LastCreatedAt *time.Time `gorm:"column:last_created_at"`
	TotalUsers    int64      `gorm:"column:total_users"`
}

const aggSelect = "COUNT(*) AS total, " +
	"COALESCE(SUM(CASE WHEN prediction_label = 1 THEN 1 ELSE 0 END), 0) AS safe_count, " +
	"AVG(confidence) AS avg_confidence, " +
	"MIN(confidence) AS min_confidence, " +
	"MAX(confidence) AS max_confidence, " +
	"MAX(created_at) AS last_created_at"

func (r aggRow) toOwnerStats() OwnerStats {
	stats := OwnerStats{
		Total:         r.Total,
		SafeCount:     r.SafeCount,
		UnsafeCount:   r.Total - r.SafeCount,
		LastCreatedAt: r.LastCreatedAt,
	}
	// NULL aggregates mean no rows; zero values stand in.
	if r.AvgConfidence != nil {
		stats.AvgConfidence = *r.AvgConfidence
	}
	if r.MinConfidence != nil {
		stats.MinConfidence = *r.MinConfidence
	}
	if r.MaxConfidence != nil {
		stats.MaxConfidence = *r.MaxConfidence
	}
	return stats
}

func (s *GormPredictionStore) AggregateByOwner(ctx context.Context, ownerID uint) (*OwnerStats, error) {
	var row aggRow
	err := s.db.WithContext(ctx).
		Model(&models.WaterPrediction{}).
		Select(aggSelect).
		Where("user_id = ?", ownerID).
		Scan(&row).Error
	if err != nil {
		return nil, &apperrors.StorageError{Op: "aggregate", Err: err}
	}
	stats := row.toOwnerStats()
	return &stats, nil
}

func (s *GormPredictionStore) AggregateGlobal(ctx context.Context) (*GlobalStats, error) {
	var row aggRow
	err := s.db.WithContext(ctx).
		Model(&models.WaterPrediction{}).
		Select(aggSelect + ", COUNT(DISTINCT user_id) AS total_users").
		Scan(&row).Error
	if err != nil {
		return nil, &apperrors.StorageError{Op: "aggregate_global", Err: err}
	}
	return &GlobalStats{OwnerStats: row.toOwnerStats(), TotalUsers: row.TotalUsers}, nil
}

// UpdateMetadata touches location/notes only; prediction columns stay as
// written at creation.
func (s *GormPredictionStore) UpdateMetadata(ctx context.Context, id string, ownerID uint, location, notes *string) (*models.WaterPrediction, error) {
	updates := map[string]interface{}{
		"updated_at": time.Now().UTC(),
	}
	if location != nil {
		updates["location"] = *location
	}
	if notes != nil {
		updates["notes"] = *notes
	}

	res := s.db.WithContext(ctx).
		Model(&models.WaterPrediction{}).
		Where("id = ? AND user_id = ?", id, ownerID).
		Updates(updates)
	if res.Error != nil {
		return nil, &apperrors.StorageError{Op: "update_metadata", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return nil, &apperrors.NotFoundError{Resource: "prediction"}
	}
	return s.FindByID(ctx, id, ownerID)
}
