package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"water-quality-api/apperrors"
	"water-quality-api/metrics"
	"water-quality-api/middleware"
	"water-quality-api/services"

	"github.com/gin-gonic/gin"
)

type PredictionHandler struct {
	svc       *services.PredictionService
	inference *services.InferenceClient
	cache     *services.CacheService
}

func NewPredictionHandler(svc *services.PredictionService, inference *services.InferenceClient, cache *services.CacheService) *PredictionHandler {
	return &PredictionHandler{svc: svc, inference: inference, cache: cache}
}

// PredictRequest uses pointers so that a legitimate zero (e.g. ph=0) is
// distinguishable from a missing field.
type PredictRequest struct {
	PH              *float64 `json:"ph" binding:"required"`
	Hardness        *float64 `json:"hardness" binding:"required"`
	Solids          *float64 `json:"solids" binding:"required"`
	Chloramines     *float64 `json:"chloramines" binding:"required"`
	Sulfate         *float64 `json:"sulfate" binding:"required"`
	Conductivity    *float64 `json:"conductivity" binding:"required"`
	OrganicCarbon   *float64 `json:"organic_carbon" binding:"required"`
	Trihalomethanes *float64 `json:"trihalomethanes" binding:"required"`
	Turbidity       *float64 `json:"turbidity" binding:"required"`
	Location        string   `json:"location"`
	Notes           string   `json:"notes"`
}

func (r *PredictRequest) toInput() services.WaterInput {
	return services.WaterInput{
		PH:              *r.PH,
		Hardness:        *r.Hardness,
		Solids:          *r.Solids,
		Chloramines:     *r.Chloramines,
		Sulfate:         *r.Sulfate,
		Conductivity:    *r.Conductivity,
		OrganicCarbon:   *r.OrganicCarbon,
		Trihalomethanes: *r.Trihalomethanes,
		Turbidity:       *r.Turbidity,
		Location:        r.Location,
		Notes:           r.Notes,
	}
}

// Predict classifies a sample via the ML service and persists the result for
// the caller. Nothing is stored when inference fails.
func (h *PredictionHandler) Predict(c *gin.Context) {
	userID := currentUserID(c)

	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "detail": err.Error()})
		return
	}
	in := req.toInput()

	result, err := h.inference.Predict(c.Request.Context(), in.Features())
	if err != nil {
		metrics.PredictionsFailed.Inc()
		renderError(c, err)
		return
	}

	rec, err := h.svc.SavePrediction(c.Request.Context(), userID, in, *result)
	if err != nil {
		metrics.PredictionsFailed.Inc()
		renderError(c, err)
		return
	}
	metrics.PredictionsSaved.Inc()

	go h.afterWrite(userID, rec)

	c.JSON(http.StatusCreated, gin.H{"data": rec})
}

// afterWrite publishes the new record for websocket listeners and drops the
// now-stale stats cache entries.
func (h *PredictionHandler) afterWrite(userID uint, rec interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if rec != nil {
		if err := h.cache.Publish(ctx, services.PredictionsChannel, rec); err != nil {
			log.Printf("publish prediction failed: %v", err)
		}
	}
	if err := h.cache.Delete(ctx, services.StatsCacheKey(userID), services.GlobalStatsCacheKey); err != nil {
		log.Printf("stats cache invalidation failed: %v", err)
	}
}

// GetHistory returns one page of the caller's predictions.
func (h *PredictionHandler) GetHistory(c *gin.Context) {
	userID := currentUserID(c)

	page, err := intQuery(c, "page", 1)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page parameter, must be an integer"})
		return
	}
	limit, err := intQuery(c, "limit", services.DefaultPageSize)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit parameter, must be an integer"})
		return
	}
	sortBy := c.DefaultQuery("sort_by", "createdAt")
	sortOrder := c.DefaultQuery("sort_order", "desc")

	history, err := h.svc.GetHistory(c.Request.Context(), userID, page, limit, sortBy, sortOrder)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

// GetStats returns the caller's aggregate summary, cache-aside.
func (h *PredictionHandler) GetStats(c *gin.Context) {
	userID := currentUserID(c)
	cacheKey := services.StatsCacheKey(userID)

	var cached struct {
		Data *services.StatsSummary `json:"data"`
	}
	if err := h.cache.Get(c.Request.Context(), cacheKey, &cached); err == nil && cached.Data != nil {
		c.JSON(http.StatusOK, cached)
		return
	}

	stats, err := h.svc.GetStats(c.Request.Context(), userID)
	if err != nil {
		renderError(c, err)
		return
	}

	resp := gin.H{"data": stats}
	go h.cache.Set(context.Background(), cacheKey, resp, 30*time.Second)

	c.JSON(http.StatusOK, resp)
}

// GetGlobalStats returns the cross-owner aggregate.
func (h *PredictionHandler) GetGlobalStats(c *gin.Context) {
	var cached struct {
		Data *services.GlobalStatsSummary `json:"data"`
	}
	if err := h.cache.Get(c.Request.Context(), services.GlobalStatsCacheKey, &cached); err == nil && cached.Data != nil {
		c.JSON(http.StatusOK, cached)
		return
	}

	stats, err := h.svc.GetGlobalStats(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}

	resp := gin.H{"data": stats}
	go h.cache.Set(context.Background(), services.GlobalStatsCacheKey, resp, 60*time.Second)

	c.JSON(http.StatusOK, resp)
}

func (h *PredictionHandler) GetByID(c *gin.Context) {
	userID := currentUserID(c)

	rec, err := h.svc.GetByID(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rec})
}

func (h *PredictionHandler) DeleteByID(c *gin.Context) {
	userID := currentUserID(c)

	deleted, err := h.svc.DeleteByID(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "prediction not found"})
		return
	}

	go h.afterWrite(userID, nil)

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

type MetadataRequest struct {
	Location *string `json:"location"`
	Notes    *string `json:"notes"`
}

// UpdateMetadata changes location/notes on an owned record. The prediction
// itself is immutable.
func (h *PredictionHandler) UpdateMetadata(c *gin.Context) {
	userID := currentUserID(c)

	var req MetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "detail": err.Error()})
		return
	}

	rec, err := h.svc.UpdateMetadata(c.Request.Context(), userID, c.Param("id"), req.Location, req.Notes)
	if err != nil {
		renderError(c, err)
		return
	}

	go h.afterWrite(userID, nil)

	c.JSON(http.StatusOK, gin.H{"data": rec})
}

func currentUserID(c *gin.Context) uint {
	return c.GetUint(middleware.UserIDKey)
}

func intQuery(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

// renderError maps the error taxonomy onto HTTP statuses. Validation gets the
// full field report; everything infrastructural stays opaque.
func renderError(c *gin.Context, err error) {
	var verr *apperrors.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": verr.Fields})
		return
	}

	var nferr *apperrors.NotFoundError
	if errors.As(err, &nferr) {
		c.JSON(http.StatusNotFound, gin.H{"error": nferr.Error()})
		return
	}

	var inferr *apperrors.InferenceError
	if errors.As(err, &inferr) {
		log.Printf("inference unavailable: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "prediction service unavailable, try again later"})
		return
	}

	log.Printf("internal error: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
