package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-consultation-api/internal/dto"
	"github.com/noah-isme/sma-consultation-api/internal/models"
	"github.com/noah-isme/sma-consultation-api/internal/service"
	"github.com/noah-isme/sma-consultation-api/pkg/response"
)

type reportService interface {
	ExportConsultations(ctx context.Context, actor models.Actor, query dto.ConsultationQuery, format string) (*service.Report, error)
}

// ReportHandler serves consultation exports.
type ReportHandler struct {
	reports reportService
}

// NewReportHandler constructs a ReportHandler.
func NewReportHandler(reports reportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Consultations godoc
// @Summary Export consultations
// @Description Render consultations matching the filters as CSV or PDF
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Param status query string false "Status filter"
// @Param teacherId query string false "Teacher ID"
// @Param dateFrom query string false "Earliest date (YYYY-MM-DD)"
// @Param dateTo query string false "Latest date (YYYY-MM-DD)"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/consultations [get]
func (h *ReportHandler) Consultations(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var query dto.ConsultationQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid query parameters"))
		return
	}
	report, err := h.reports.ExportConsultations(c.Request.Context(), actor, query, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Download(c, report.Filename, report.ContentType, report.Data)
}
