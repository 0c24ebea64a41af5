package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-consultation-api/internal/dto"
	"github.com/noah-isme/sma-consultation-api/internal/models"
	appErrors "github.com/noah-isme/sma-consultation-api/pkg/errors"
	"github.com/noah-isme/sma-consultation-api/pkg/export"
)

// Report formats.
const (
	ReportFormatCSV = "csv"
	ReportFormatPDF = "pdf"
)

type consultationExportReader interface {
	ListForExport(ctx context.Context, filter models.ConsultationFilter) ([]models.ConsultationDetail, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// Report is a rendered download.
type Report struct {
	Filename    string
	ContentType string
	Data        []byte
	Rows        int
}

var consultationReportColumns = []export.Column{
	{Key: "date", Title: "Date", Width: 1.2},
	{Key: "day", Title: "Day", Width: 1.1},
	{Key: "start", Title: "Start", Width: 0.8},
	{Key: "end", Title: "End", Width: 0.8},
	{Key: "teacher", Title: "Teacher", Width: 2},
	{Key: "student", Title: "Student", Width: 2},
	{Key: "status", Title: "Status", Width: 1},
	{Key: "purpose", Title: "Purpose", Width: 3.5},
}

// ReportService renders consultation exports.
type ReportService struct {
	repo      consultationExportReader
	renderers map[string]datasetRenderer
	location  *time.Location
	logger    *zap.Logger
	now       func() time.Time
}

// NewReportService constructs the service.
func NewReportService(repo consultationExportReader, location *time.Location, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	return &ReportService{
		repo: repo,
		renderers: map[string]datasetRenderer{
			ReportFormatCSV: export.NewCSVExporter(),
			ReportFormatPDF: export.NewPDFExporter(),
		},
		location: location,
		logger:   logger,
		now:      time.Now,
	}
}

// ExportConsultations renders the consultations visible to actor that match
// query. Teachers only ever export their own consultations.
func (s *ReportService) ExportConsultations(ctx context.Context, actor models.Actor, query dto.ConsultationQuery, format string) (*Report, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ReportFormatCSV
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", format))
	}

	filter, err := BuildConsultationFilter(actor, query, s.location)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListForExport(ctx, filter)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load consultations")
	}

	generatedAt := s.now().In(s.location)
	dataset := export.Dataset{
		Title:       "Consultation Report",
		Columns:     consultationReportColumns,
		Rows:        make([]map[string]string, 0, len(items)),
		GeneratedAt: generatedAt,
	}
	for _, item := range items {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"date":    item.Date.String(),
			"day":     string(item.Date.Weekday()),
			"start":   item.StartTime.Short(),
			"end":     item.EndTime.Short(),
			"teacher": item.TeacherName,
			"student": item.StudentName,
			"status":  string(item.Status),
			"purpose": item.Purpose,
		})
	}

	payload, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}
	s.logger.Info("consultation report exported", zap.String("actor_id", actor.ID), zap.String("format", format), zap.Int("rows", len(items)))

	return &Report{
		Filename:    fmt.Sprintf("consultations-%s.%s", generatedAt.Format("20060102-150405"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Data:        payload,
		Rows:        len(items),
	}, nil
}
