package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-consultation-api/internal/dto"
	"github.com/noah-isme/sma-consultation-api/internal/models"
	"github.com/noah-isme/sma-consultation-api/internal/service"
	appErrors "github.com/noah-isme/sma-consultation-api/pkg/errors"
	"github.com/noah-isme/sma-consultation-api/pkg/response"
)

type availabilityService interface {
	GetAvailability(ctx context.Context, teacherID string) ([]models.AvailabilityWindow, error)
	ReplaceAvailability(ctx context.Context, teacherID string, req dto.ReplaceAvailabilityRequest) ([]models.AvailabilityWindow, error)
	AvailableSlots(ctx context.Context, teacherID, rawDate string) (*service.SlotQueryResult, error)
}

// AvailabilityHandler serves weekly schedules and the slot query.
type AvailabilityHandler struct {
	service availabilityService
}

// NewAvailabilityHandler constructs an AvailabilityHandler.
func NewAvailabilityHandler(svc availabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: svc}
}

// Get godoc
// @Summary Weekly availability
// @Description List a teacher's recurring availability windows ordered by weekday and start time
// @Tags Availability
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /teachers/{id}/availability [get]
func (h *AvailabilityHandler) Get(c *gin.Context) {
	windows, err := h.service.GetAvailability(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, windows, nil)
}

// Replace godoc
// @Summary Replace weekly availability
// @Description Atomically replace every availability window of a teacher
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param payload body dto.ReplaceAvailabilityRequest true "Windows"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /teachers/{id}/availability [put]
func (h *AvailabilityHandler) Replace(c *gin.Context) {
	var req dto.ReplaceAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid availability payload"))
		return
	}
	windows, err := h.service.ReplaceAvailability(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, windows, nil)
}

// Slots godoc
// @Summary Free slots for a date
// @Description Compute the free 30-minute slots of a teacher on a date (YYYY-MM-DD or RFC3339, resolved in the institution timezone)
// @Tags Availability
// @Produce json
// @Param id path string true "Teacher ID"
// @Param date query string true "Date"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /teachers/{id}/slots [get]
func (h *AvailabilityHandler) Slots(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date is required"))
		return
	}
	result, err := h.service.AvailableSlots(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result.Slots, nil, map[string]interface{}{
		"date":      result.Date,
		"day":       result.Day,
		"cache_hit": result.CacheHit,
	})
}
