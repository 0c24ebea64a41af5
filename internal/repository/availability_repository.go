package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-consultation-api/internal/models"
	"github.com/noah-isme/sma-consultation-api/pkg/database"
)

// AvailabilityRepository persists teachers' weekly availability windows.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs the repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// ListByTeacher returns every window of a teacher ordered by weekday then start.
func (r *AvailabilityRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.AvailabilityWindow, error) {
	const query = `SELECT id, teacher_id, day_of_week, start_time, end_time, created_at
FROM availability_windows WHERE teacher_id = $1 ORDER BY start_time ASC, end_time ASC`
	var windows []models.AvailabilityWindow
	if err := r.db.SelectContext(ctx, &windows, query, teacherID); err != nil {
		return nil, fmt.Errorf("list availability windows: %w", err)
	}
	sort.SliceStable(windows, func(i, j int) bool {
		return windows[i].DayOfWeek.Index() < windows[j].DayOfWeek.Index()
	})
	return windows, nil
}

// ListByTeacherDay returns the windows of a teacher recurring on day.
func (r *AvailabilityRepository) ListByTeacherDay(ctx context.Context, teacherID string, day models.Weekday) ([]models.AvailabilityWindow, error) {
	const query = `SELECT id, teacher_id, day_of_week, start_time, end_time, created_at
FROM availability_windows WHERE teacher_id = $1 AND day_of_week = $2 ORDER BY start_time ASC, end_time ASC`
	var windows []models.AvailabilityWindow
	if err := r.db.SelectContext(ctx, &windows, query, teacherID, day); err != nil {
		return nil, fmt.Errorf("list availability windows for %s: %w", day, err)
	}
	return windows, nil
}

// Replace swaps a teacher's whole schedule inside one transaction. Concurrent
// replacements of the same teacher are serialised with an advisory lock so their
// deletes and inserts never interleave.
func (r *AvailabilityRepository) Replace(ctx context.Context, teacherID string, windows []models.AvailabilityWindow) error {
	now := time.Now().UTC()
	for i := range windows {
		w := &windows[i]
		w.TeacherID = teacherID
		if w.ID == "" {
			w.ID = uuid.NewString()
		}
		if w.CreatedAt.IsZero() {
			w.CreatedAt = now
		}
	}

	return database.WithTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "availability:"+teacherID); err != nil {
			return fmt.Errorf("lock availability: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM availability_windows WHERE teacher_id = $1`, teacherID); err != nil {
			return fmt.Errorf("delete availability windows: %w", err)
		}
		const insertQuery = `INSERT INTO availability_windows (id, teacher_id, day_of_week, start_time, end_time, created_at)
VALUES (:id, :teacher_id, :day_of_week, :start_time, :end_time, :created_at)`
		for i := range windows {
			if _, err := sqlx.NamedExecContext(ctx, tx, insertQuery, &windows[i]); err != nil {
				return fmt.Errorf("insert availability window: %w", err)
			}
		}
		return nil
	})
}
