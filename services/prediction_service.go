package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"water-quality-api/apperrors"
	"water-quality-api/models"
	"water-quality-api/store"
	"water-quality-api/validation"
)

const DefaultPageSize = 10

// WaterInput is one set of submitted measurements plus optional metadata.
type WaterInput struct {
	PH              float64
	Hardness        float64
	Solids          float64
	Chloramines     float64
	Sulfate         float64
	Conductivity    float64
	OrganicCarbon   float64
	Trihalomethanes float64
	Turbidity       float64
	Location        string
	Notes           string
}

// Features returns the measurements in the order the ML model expects.
func (in WaterInput) Features() [9]float64 {
	return [9]float64{
		in.PH, in.Hardness, in.Solids, in.Chloramines, in.Sulfate,
		in.Conductivity, in.OrganicCarbon, in.Trihalomethanes, in.Turbidity,
	}
}

type Pagination struct {
	Total   int64 `json:"total"`
	Page    int   `json:"page"`
	Pages   int   `json:"pages"`
	Limit   int   `json:"limit"`
	HasNext bool  `json:"has_next"`
	HasPrev bool  `json:"has_prev"`
}

type HistoryPage struct {
	Data       []models.WaterPrediction `json:"data"`
	Pagination Pagination               `json:"pagination"`
}

type StatsSummary struct {
	Total            int64      `json:"total"`
	SafeCount        int64      `json:"safe_count"`
	UnsafeCount      int64      `json:"unsafe_count"`
	SafePercentage   float64    `json:"safe_percentage"`
	UnsafePercentage float64    `json:"unsafe_percentage"`
	AvgConfidence    float64    `json:"avg_confidence"`
	MinConfidence    float64    `json:"min_confidence"`
	MaxConfidence    float64    `json:"max_confidence"`
	LastPrediction   *time.Time `json:"last_prediction"`
}

type GlobalStatsSummary struct {
	StatsSummary
	TotalUsers int64 `json:"total_users"`
}

// PredictionService owns the record lifecycle: save after inference, paginated
// history, ownership-scoped reads/deletes and stats aggregation.
type PredictionService struct {
	store store.PredictionStore
}

func NewPredictionService(st store.PredictionStore) *PredictionService {
	return &PredictionService{store: st}
}

// SavePrediction merges the submitted input with the inference result,
// validates the whole record and persists it. Nothing is written when
// validation fails.
func (s *PredictionService) SavePrediction(ctx context.Context, ownerID uint, in WaterInput, res InferenceResult) (*models.WaterPrediction, error) {
	rec := &models.WaterPrediction{
		UserID:          ownerID,
		PH:              in.PH,
		Hardness:        in.Hardness,
		Solids:          in.Solids,
		Chloramines:     in.Chloramines,
		Sulfate:         in.Sulfate,
		Conductivity:    in.Conductivity,
		OrganicCarbon:   in.OrganicCarbon,
		Trihalomethanes: in.Trihalomethanes,
		Turbidity:       in.Turbidity,
		PredictionLabel: res.Label,
		Probability:     res.Probability,
		Confidence:      res.Confidence,
		ResultText:      res.ResultText,
		Location:        in.Location,
		Notes:           in.Notes,
	}
	if err := validation.ValidateRecord(rec); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// GetHistory validates the paging and sort parameters, then returns one page
// of the owner's records with the pagination envelope. Unknown sort fields are
// an error, never a silent default.
func (s *PredictionService) GetHistory(ctx context.Context, ownerID uint, page, limit int, sortBy, sortOrder string) (*HistoryPage, error) {
	var fields []apperrors.FieldError
	if page < 1 {
		fields = append(fields, apperrors.FieldError{Field: "page", Message: "must be at least 1"})
	}
	if limit < store.MinPageSize || limit > store.MaxPageSize {
		fields = append(fields, apperrors.FieldError{
			Field:   "limit",
			Message: fmt.Sprintf("must be between %d and %d", store.MinPageSize, store.MaxPageSize),
		})
	}
	if _, ok := store.SortColumn(sortBy); !ok {
		fields = append(fields, apperrors.FieldError{
			Field:   "sort_by",
			Message: "must be one of createdAt, predictionLabel, confidence, resultText",
		})
	}
	if sortOrder != "asc" && sortOrder != "desc" {
		fields = append(fields, apperrors.FieldError{Field: "sort_order", Message: "must be asc or desc"})
	}
	if len(fields) > 0 {
		return nil, &apperrors.ValidationError{Fields: fields}
	}

	records, total, err := s.store.ListByOwner(ctx, ownerID, page, limit, sortBy, sortOrder)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []models.WaterPrediction{}
	}

	pages := int((total + int64(limit) - 1) / int64(limit))
	return &HistoryPage{
		Data: records,
		Pagination: Pagination{
			Total:   total,
			Page:    page,
			Pages:   pages,
			Limit:   limit,
			HasNext: page < pages,
			HasPrev: page > 1,
		},
	}, nil
}

// GetStats aggregates the owner's records. An owner with no records gets a
// zero-valued summary, not an error.
func (s *PredictionService) GetStats(ctx context.Context, ownerID uint) (*StatsSummary, error) {
	agg, err := s.store.AggregateByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return summarize(agg), nil
}

// GetGlobalStats aggregates across all owners.
func (s *PredictionService) GetGlobalStats(ctx context.Context) (*GlobalStatsSummary, error) {
	agg, err := s.store.AggregateGlobal(ctx)
	if err != nil {
		return nil, err
	}
	return &GlobalStatsSummary{
		StatsSummary: *summarize(&agg.OwnerStats),
		TotalUsers:   agg.TotalUsers,
	}, nil
}

func (s *PredictionService) GetByID(ctx context.Context, ownerID uint, id string) (*models.WaterPrediction, error) {
	return s.store.FindByID(ctx, id, ownerID)
}

// DeleteByID reports whether an owned record was deleted. A second call for
// the same id returns false without error.
func (s *PredictionService) DeleteByID(ctx context.Context, ownerID uint, id string) (bool, error) {
	return s.store.DeleteByID(ctx, id, ownerID)
}

// UpdateMetadata changes location/notes on an owned record. Nil fields are
// left untouched; prediction fields are never updatable.
func (s *PredictionService) UpdateMetadata(ctx context.Context, ownerID uint, id string, location, notes *string) (*models.WaterPrediction, error) {
	if location == nil && notes == nil {
		return nil, &apperrors.ValidationError{Fields: []apperrors.FieldError{
			{Field: "body", Message: "at least one of location, notes is required"},
		}}
	}
	return s.store.UpdateMetadata(ctx, id, ownerID, location, notes)
}

func summarize(agg *store.OwnerStats) *StatsSummary {
	sum := &StatsSummary{
		Total:          agg.Total,
		SafeCount:      agg.SafeCount,
		UnsafeCount:    agg.UnsafeCount,
		AvgConfidence:  agg.AvgConfidence,
		MinConfidence:  agg.MinConfidence,
		MaxConfidence:  agg.MaxConfidence,
		LastPrediction: agg.LastCreatedAt,
	}
	if agg.Total > 0 {
		sum.SafePercentage = round2(float64(agg.SafeCount) / float64(agg.Total) * 100)
		sum.UnsafePercentage = round2(float64(agg.UnsafeCount) / float64(agg.Total) * 100)
	}
	return sum
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
