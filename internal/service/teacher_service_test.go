package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-consultation-api/internal/models"
	appErrors "github.com/noah-isme/sma-consultation-api/pkg/errors"
)

type stubTeacherRepo struct {
	teachers []models.Teacher
	filter   models.TeacherFilter
}

func (s *stubTeacherRepo) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error) {
	s.filter = filter
	return s.teachers, len(s.teachers), nil
}

func (s *stubTeacherRepo) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	for _, t := range s.teachers {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, sql.ErrNoRows
}

func TestTeacherServiceList(t *testing.T) {
	repo := &stubTeacherRepo{teachers: []models.Teacher{{ID: "t1", FullName: "Sari"}}}
	svc := NewTeacherService(repo, nil)

	teachers, pagination, err := svc.List(context.Background(), models.TeacherFilter{Search: "  sari ", PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, teachers, 1)
	assert.Equal(t, "sari", repo.filter.Search)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 1, pagination.TotalCount)
}

func TestTeacherServiceGet(t *testing.T) {
	svc := NewTeacherService(&stubTeacherRepo{teachers: []models.Teacher{{ID: "t1"}}}, nil)

	teacher, err := svc.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", teacher.ID)

	_, err = svc.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
