package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-consultation-api/internal/models"
)

var windowColumns = []string{"id", "teacher_id", "day_of_week", "start_time", "end_time", "created_at"}

func TestAvailabilityListByTeacherDay(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(windowColumns).
		AddRow("w1", "t1", "Monday", "08:00:00", "10:00:00", now).
		AddRow("w2", "t1", "Monday", []byte("13:00:00"), []byte("14:30:00"), now)
	mock.ExpectQuery("FROM availability_windows WHERE teacher_id = \\$1 AND day_of_week = \\$2").
		WithArgs("t1", "Monday").
		WillReturnRows(rows)

	windows, err := repo.ListByTeacherDay(context.Background(), "t1", models.Monday)
	require.NoError(t, err)
	require.Len(t, windows, 2)
	assert.Equal(t, models.NewClockTime(8, 0, 0), windows[0].StartTime)
	assert.Equal(t, models.NewClockTime(14, 30, 0), windows[1].EndTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityListByTeacherOrdersByWeekday(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(windowColumns).
		AddRow("w1", "t1", "Wednesday", "08:00:00", "09:00:00", now).
		AddRow("w2", "t1", "Monday", "09:00:00", "10:00:00", now).
		AddRow("w3", "t1", "Monday", "11:00:00", "12:00:00", now)
	mock.ExpectQuery("FROM availability_windows WHERE teacher_id = \\$1 ORDER BY").
		WithArgs("t1").
		WillReturnRows(rows)

	windows, err := repo.ListByTeacher(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, windows, 3)
	assert.Equal(t, []string{"w2", "w3", "w1"}, []string{windows[0].ID, windows[1].ID, windows[2].ID})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityListRejectsUnknownWeekday(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	rows := sqlmock.NewRows(windowColumns).AddRow("w1", "t1", "Funday", "08:00:00", "09:00:00", time.Now())
	mock.ExpectQuery("FROM availability_windows").WillReturnRows(rows)

	_, err := repo.ListByTeacherDay(context.Background(), "t1", models.Monday)
	require.Error(t, err)
}

func TestAvailabilityReplace(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs("availability:t1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM availability_windows WHERE teacher_id = \\$1").WithArgs("t1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO availability_windows").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO availability_windows").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	windows := []models.AvailabilityWindow{
		{DayOfWeek: models.Monday, StartTime: models.NewClockTime(8, 0, 0), EndTime: models.NewClockTime(10, 0, 0)},
		{DayOfWeek: models.Friday, StartTime: models.NewClockTime(13, 0, 0), EndTime: models.NewClockTime(15, 0, 0)},
	}
	err := repo.Replace(context.Background(), "t1", windows)
	require.NoError(t, err)
	for _, w := range windows {
		assert.NotEmpty(t, w.ID)
		assert.Equal(t, "t1", w.TeacherID)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityReplaceRollsBackOnInsertFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM availability_windows").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO availability_windows").WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err := repo.Replace(context.Background(), "t1", []models.AvailabilityWindow{
		{DayOfWeek: models.Monday, StartTime: models.NewClockTime(8, 0, 0), EndTime: models.NewClockTime(9, 0, 0)},
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
