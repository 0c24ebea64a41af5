package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-consultation-api/internal/models"
)

func TestTeacherListWithSearch(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	rows := sqlmock.NewRows([]string{"id", "email", "full_name", "active"}).
		AddRow("t1", "sari@school.id", "Sari Dewi", true)
	mock.ExpectQuery("SELECT id, email, full_name, active FROM users WHERE role = \\$1 AND active = TRUE AND \\(LOWER\\(full_name\\) LIKE \\$2").
		WithArgs("TEACHER", "%sari%").
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM users").
		WithArgs("TEACHER", "%sari%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	teachers, total, err := repo.List(context.Background(), models.TeacherFilter{Search: " Sari "})
	require.NoError(t, err)
	assert.Len(t, teachers, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherFindByIDRequiresRole(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	mock.ExpectQuery("FROM users WHERE id = \\$1 AND role = \\$2").
		WithArgs("t1", "TEACHER").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "full_name", "active"}).AddRow("t1", "a@b.c", "A", true))

	teacher, err := repo.FindByID(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "A", teacher.FullName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
