package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-consultation-api/internal/models"
	"github.com/noah-isme/sma-consultation-api/pkg/database"
)

const consultationColumns = `c.id, c.teacher_id, c.student_id, c.date, c.start_time, c.end_time, c.purpose, c.status, c.note, c.created_at, c.updated_at`

const consultationDetailFrom = `FROM consultations c
JOIN users t ON t.id = c.teacher_id
JOIN users s ON s.id = c.student_id`

// ExportLimit caps the number of rows rendered into a single report.
const ExportLimit = 5000

// ConsultationRepository persists consultation bookings.
type ConsultationRepository struct {
	db *sqlx.DB
}

// NewConsultationRepository constructs the repository.
func NewConsultationRepository(db *sqlx.DB) *ConsultationRepository {
	return &ConsultationRepository{db: db}
}

// ListBookedIntervals returns the intervals a teacher has claimed on date by
// consultations in one of statuses.
func (r *ConsultationRepository) ListBookedIntervals(ctx context.Context, teacherID string, date models.Date, statuses []models.ConsultationStatus) ([]models.BookedInterval, error) {
	const query = `SELECT teacher_id, date, start_time, end_time FROM consultations
WHERE teacher_id = $1 AND date = $2 AND status = ANY($3) ORDER BY start_time ASC`
	var intervals []models.BookedInterval
	if err := r.db.SelectContext(ctx, &intervals, query, teacherID, date, pq.Array(statusStrings(statuses))); err != nil {
		return nil, fmt.Errorf("list booked intervals: %w", err)
	}
	return intervals, nil
}

// CreateIfFree inserts the consultation only when its interval does not overlap an
// active booking of the same teacher on the same date. The overlap check and the
// insert run in one transaction holding an advisory lock on (teacher, date), so two
// concurrent requests for the same interval cannot both pass the check. Returns
// ErrIntervalTaken when the interval is already claimed.
func (r *ConsultationRepository) CreateIfFree(ctx context.Context, consultation *models.Consultation) error {
	if consultation.ID == "" {
		consultation.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if consultation.CreatedAt.IsZero() {
		consultation.CreatedAt = now
	}
	consultation.UpdatedAt = now

	err := database.WithTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		lockKey := fmt.Sprintf("consultation:%s:%s", consultation.TeacherID, consultation.Date.String())
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
			return fmt.Errorf("lock booking interval: %w", err)
		}

		const overlapQuery = `SELECT EXISTS (SELECT 1 FROM consultations
WHERE teacher_id = $1 AND date = $2 AND status = ANY($3) AND start_time < $5 AND $4 < end_time)`
		var taken bool
		if err := tx.GetContext(ctx, &taken, overlapQuery,
			consultation.TeacherID,
			consultation.Date,
			pq.Array(statusStrings(models.ActiveConsultationStatuses)),
			consultation.StartTime,
			consultation.EndTime,
		); err != nil {
			return fmt.Errorf("check booking overlap: %w", err)
		}
		if taken {
			return ErrIntervalTaken
		}

		const insertQuery = `INSERT INTO consultations (id, teacher_id, student_id, date, start_time, end_time, purpose, status, note, created_at, updated_at)
VALUES (:id, :teacher_id, :student_id, :date, :start_time, :end_time, :purpose, :status, :note, :created_at, :updated_at)`
		if _, err := sqlx.NamedExecContext(ctx, tx, insertQuery, consultation); err != nil {
			if isExclusionViolation(err) {
				return ErrIntervalTaken
			}
			return fmt.Errorf("insert consultation: %w", err)
		}
		return nil
	})
	if err != nil && isExclusionViolation(err) {
		// A DEFERRABLE exclusion constraint reports the violation at commit.
		return ErrIntervalTaken
	}
	return err
}

// FindByID returns a consultation with participant names.
func (r *ConsultationRepository) FindByID(ctx context.Context, id string) (*models.ConsultationDetail, error) {
	query := fmt.Sprintf(`SELECT %s, t.full_name AS teacher_name, s.full_name AS student_name %s WHERE c.id = $1 LIMIT 1`,
		consultationColumns, consultationDetailFrom)
	var detail models.ConsultationDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find consultation: %w", err)
	}
	return &detail, nil
}

// List returns a page of consultations matching filter with the total count.
func (r *ConsultationRepository) List(ctx context.Context, filter models.ConsultationFilter) ([]models.ConsultationDetail, int, error) {
	where, args := buildConsultationWhere(filter)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`SELECT %s, t.full_name AS teacher_name, s.full_name AS student_name %s %s ORDER BY c.date %s, c.start_time %s LIMIT %d OFFSET %d`,
		consultationColumns, consultationDetailFrom, where, sortDirection(filter.SortOrder), sortDirection(filter.SortOrder), pageSize, offset)

	var items []models.ConsultationDetail
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list consultations: %w", err)
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) %s %s`, consultationDetailFrom, where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count consultations: %w", err)
	}

	return items, total, nil
}

// ListForExport returns up to ExportLimit consultations matching filter ordered
// chronologically. Pagination fields on filter are ignored.
func (r *ConsultationRepository) ListForExport(ctx context.Context, filter models.ConsultationFilter) ([]models.ConsultationDetail, error) {
	where, args := buildConsultationWhere(filter)
	query := fmt.Sprintf(`SELECT %s, t.full_name AS teacher_name, s.full_name AS student_name %s %s ORDER BY c.date ASC, c.start_time ASC LIMIT %d`,
		consultationColumns, consultationDetailFrom, where, ExportLimit)

	var items []models.ConsultationDetail
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list consultations for export: %w", err)
	}
	return items, nil
}

// TransitionStatus moves a consultation to status when its current status is one
// of from. sql.ErrNoRows is returned when the id is unknown or the current status
// does not allow the transition.
func (r *ConsultationRepository) TransitionStatus(ctx context.Context, id string, from []models.ConsultationStatus, to models.ConsultationStatus, note *string) (*models.Consultation, error) {
	const query = `UPDATE consultations SET status = $2, note = COALESCE($3, note), updated_at = $4
WHERE id = $1 AND status = ANY($5)
RETURNING id, teacher_id, student_id, date, start_time, end_time, purpose, status, note, created_at, updated_at`
	var updated models.Consultation
	if err := r.db.GetContext(ctx, &updated, query, id, to, note, time.Now().UTC(), pq.Array(statusStrings(from))); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("transition consultation status: %w", err)
	}
	return &updated, nil
}

func buildConsultationWhere(filter models.ConsultationFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		conditions = append(conditions, fmt.Sprintf("c.teacher_id = $%d", len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("c.student_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("c.status = $%d", len(args)))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		conditions = append(conditions, fmt.Sprintf("c.date >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		conditions = append(conditions, fmt.Sprintf("c.date <= $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "WHERE 1=1", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

func sortDirection(order string) string {
	if strings.EqualFold(order, "ASC") {
		return "ASC"
	}
	return "DESC"
}

func statusStrings(statuses []models.ConsultationStatus) []string {
	out := make([]string, len(statuses))
	for i, status := range statuses {
		out[i] = string(status)
	}
	return out
}
