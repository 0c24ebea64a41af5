package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-consultation-api/internal/dto"
	"github.com/noah-isme/sma-consultation-api/internal/models"
	appErrors "github.com/noah-isme/sma-consultation-api/pkg/errors"
)

type stubExportRepo struct {
	items  []models.ConsultationDetail
	err    error
	filter models.ConsultationFilter
}

func (s *stubExportRepo) ListForExport(ctx context.Context, filter models.ConsultationFilter) ([]models.ConsultationDetail, error) {
	s.filter = filter
	return s.items, s.err
}

func exportFixture() *stubExportRepo {
	return &stubExportRepo{items: []models.ConsultationDetail{{
		Consultation: models.Consultation{
			ID:        "c1",
			TeacherID: "t1",
			StudentID: "s1",
			Date:      models.NewDate(2024, time.January, 1),
			StartTime: models.NewClockTime(8, 0, 0),
			EndTime:   models.NewClockTime(8, 30, 0),
			Purpose:   "Thesis, chapter 2",
			Status:    models.ConsultationApproved,
		},
		TeacherName: "Sari Dewi",
		StudentName: "Andi",
	}}}
}

func TestExportConsultationsCSV(t *testing.T) {
	repo := exportFixture()
	svc := NewReportService(repo, wib, nil)
	svc.now = func() time.Time { return time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC) }

	report, err := svc.ExportConsultations(context.Background(), teacher1, dto.ConsultationQuery{TeacherID: "t2"}, "")
	require.NoError(t, err)
	assert.Equal(t, "t1", repo.filter.TeacherID)
	assert.Equal(t, "consultations-20240102-100405.csv", report.Filename)
	assert.Equal(t, 1, report.Rows)

	records, err := csv.NewReader(bytes.NewReader(report.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"Date", "Day", "Start", "End", "Teacher", "Student", "Status", "Purpose"}, records[0])
	assert.Equal(t, []string{"2024-01-01", "Monday", "08:00", "08:30", "Sari Dewi", "Andi", "approved", "Thesis, chapter 2"}, records[1])
}

func TestExportConsultationsPDF(t *testing.T) {
	svc := NewReportService(exportFixture(), wib, nil)
	report, err := svc.ExportConsultations(context.Background(), admin, dto.ConsultationQuery{}, "PDF")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", report.ContentType)
	assert.True(t, bytes.HasPrefix(report.Data, []byte("%PDF-")))
}

func TestExportConsultationsErrors(t *testing.T) {
	svc := NewReportService(exportFixture(), wib, nil)
	_, err := svc.ExportConsultations(context.Background(), admin, dto.ConsultationQuery{}, "xlsx")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	failing := NewReportService(&stubExportRepo{err: errors.New("boom")}, wib, nil)
	_, err = failing.ExportConsultations(context.Background(), admin, dto.ConsultationQuery{}, "csv")
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}
