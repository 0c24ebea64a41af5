package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-consultation-api/internal/dto"
	"github.com/noah-isme/sma-consultation-api/internal/models"
	"github.com/noah-isme/sma-consultation-api/internal/service"
	"github.com/noah-isme/sma-consultation-api/pkg/response"
)

type consultationService interface {
	Request(ctx context.Context, student models.Actor, req dto.CreateConsultationRequest) (*service.BookingResult, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.ConsultationDetail, error)
	List(ctx context.Context, actor models.Actor, query dto.ConsultationQuery) ([]models.ConsultationDetail, *models.Pagination, error)
	UpdateStatus(ctx context.Context, actor models.Actor, id string, action dto.StatusAction, req dto.StatusActionRequest) (*models.Consultation, error)
}

// ConsultationHandler exposes booking endpoints.
type ConsultationHandler struct {
	service consultationService
}

// NewConsultationHandler constructs a ConsultationHandler.
func NewConsultationHandler(svc consultationService) *ConsultationHandler {
	return &ConsultationHandler{service: svc}
}

// Create godoc
// @Summary Request a consultation
// @Description Book a slot with a teacher. With autoReschedule the next free slot of the same day is taken when the requested one is gone.
// @Tags Consultations
// @Accept json
// @Produce json
// @Param payload body dto.CreateConsultationRequest true "Booking"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Security BearerAuth
// @Router /consultations [post]
func (h *ConsultationHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid consultation payload"))
		return
	}
	result, err := h.service.Request(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, result.Consultation, nil, map[string]interface{}{"rescheduled": result.Rescheduled})
}

// List godoc
// @Summary List consultations
// @Description Students and teachers see their own consultations, admins see all
// @Tags Consultations
// @Produce json
// @Param status query string false "pending, approved, rejected or cancelled"
// @Param teacherId query string false "Teacher ID"
// @Param studentId query string false "Student ID"
// @Param dateFrom query string false "Earliest date (YYYY-MM-DD)"
// @Param dateTo query string false "Latest date (YYYY-MM-DD)"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Param sortOrder query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /consultations [get]
func (h *ConsultationHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var query dto.ConsultationQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid query parameters"))
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Consultation detail
// @Tags Consultations
// @Produce json
// @Param id path string true "Consultation ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /consultations/{id} [get]
func (h *ConsultationHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	item, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Approve godoc
// @Summary Approve a pending consultation
// @Tags Consultations
// @Accept json
// @Produce json
// @Param id path string true "Consultation ID"
// @Param payload body dto.StatusActionRequest false "Optional note"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /consultations/{id}/approve [post]
func (h *ConsultationHandler) Approve(c *gin.Context) {
	h.transition(c, dto.ActionApprove)
}

// Reject godoc
// @Summary Reject a consultation
// @Tags Consultations
// @Accept json
// @Produce json
// @Param id path string true "Consultation ID"
// @Param payload body dto.StatusActionRequest false "Optional note"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /consultations/{id}/reject [post]
func (h *ConsultationHandler) Reject(c *gin.Context) {
	h.transition(c, dto.ActionReject)
}

// Cancel godoc
// @Summary Cancel own consultation
// @Tags Consultations
// @Accept json
// @Produce json
// @Param id path string true "Consultation ID"
// @Param payload body dto.StatusActionRequest false "Optional note"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /consultations/{id}/cancel [post]
func (h *ConsultationHandler) Cancel(c *gin.Context) {
	h.transition(c, dto.ActionCancel)
}

func (h *ConsultationHandler) transition(c *gin.Context, action dto.StatusAction) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.StatusActionRequest
	// The note is optional, so an empty body is fine.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			response.Error(c, bindError(err, "invalid status payload"))
			return
		}
	}
	updated, err := h.service.UpdateStatus(c.Request.Context(), actor, c.Param("id"), action, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated, nil)
}
