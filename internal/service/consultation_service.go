package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-consultation-api/internal/dto"
	"github.com/noah-isme/sma-consultation-api/internal/models"
	"github.com/noah-isme/sma-consultation-api/internal/repository"
	appErrors "github.com/noah-isme/sma-consultation-api/pkg/errors"
	"github.com/noah-isme/sma-consultation-api/pkg/events"
)

type consultationRepository interface {
	CreateIfFree(ctx context.Context, consultation *models.Consultation) error
	FindByID(ctx context.Context, id string) (*models.ConsultationDetail, error)
	List(ctx context.Context, filter models.ConsultationFilter) ([]models.ConsultationDetail, int, error)
	TransitionStatus(ctx context.Context, id string, from []models.ConsultationStatus, to models.ConsultationStatus, note *string) (*models.Consultation, error)
}

type slotAvailability interface {
	Location() *time.Location
	WindowsOn(ctx context.Context, teacherID string, date models.Date) ([]models.AvailabilityWindow, error)
	FreeSlots(ctx context.Context, teacherID string, date models.Date) ([]models.Slot, error)
	InvalidateSlots(ctx context.Context, teacherID string, date models.Date)
}

type eventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// transition describes which statuses an action may leave and where it lands.
type transition struct {
	from []models.ConsultationStatus
	to   models.ConsultationStatus
	// owner is the non-admin role allowed to perform the action on its own
	// consultations.
	owner models.UserRole
}

var transitions = map[dto.StatusAction]transition{
	dto.ActionApprove: {from: []models.ConsultationStatus{models.ConsultationPending}, to: models.ConsultationApproved, owner: models.RoleTeacher},
	dto.ActionReject:  {from: models.ActiveConsultationStatuses, to: models.ConsultationRejected, owner: models.RoleTeacher},
	dto.ActionCancel:  {from: models.ActiveConsultationStatuses, to: models.ConsultationCancelled, owner: models.RoleStudent},
}

// BookingResult reports a created consultation and whether it was moved to
// another slot than the one requested.
type BookingResult struct {
	Consultation *models.Consultation `json:"consultation"`
	Rescheduled  bool                 `json:"rescheduled"`
}

// ConsultationEvent is the payload of consultation events.
type ConsultationEvent struct {
	Consultation   *models.Consultation       `json:"consultation"`
	PreviousStatus *models.ConsultationStatus `json:"previousStatus,omitempty"`
	ActorID        string                     `json:"actorId"`
}

// ConsultationService books consultations and drives their lifecycle.
type ConsultationService struct {
	repo         consultationRepository
	availability slotAvailability
	teachers     teacherReader
	events       eventPublisher
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	now          func() time.Time
}

// NewConsultationService constructs the service. publisher and metrics may be nil.
func NewConsultationService(repo consultationRepository, availability slotAvailability, teachers teacherReader, publisher eventPublisher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ConsultationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &ConsultationService{
		repo:         repo,
		availability: availability,
		teachers:     teachers,
		events:       publisher,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		now:          time.Now,
	}
}

// Request books the requested interval for the student in pending state. When
// the interval was taken concurrently and AutoReschedule is set, one retry is
// made with the first free slot of the same date starting at or after the
// requested start (or the first free slot of the day). Returns CONFLICT when
// the interval, and any retry, is taken.
func (s *ConsultationService) Request(ctx context.Context, student models.Actor, req dto.CreateConsultationRequest) (*BookingResult, error) {
	consultation, err := s.prepare(ctx, student, req)
	if err != nil {
		if errors.Is(err, appErrors.ErrValidation) {
			s.metrics.RecordBooking(BookingOutcomeInvalid)
		}
		return nil, err
	}

	result := &BookingResult{Consultation: consultation}
	err = s.repo.CreateIfFree(ctx, consultation)
	if errors.Is(err, repository.ErrIntervalTaken) && req.AutoReschedule {
		result.Rescheduled = true
		err = s.reschedule(ctx, consultation)
	}
	if err != nil {
		if errors.Is(err, repository.ErrIntervalTaken) {
			s.metrics.RecordBooking(BookingOutcomeConflict)
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "the requested slot is no longer available")
		}
		s.metrics.RecordBooking(BookingOutcomeError)
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Storage(err, "failed to create consultation")
	}

	if result.Rescheduled {
		s.metrics.RecordBooking(BookingOutcomeRescheduled)
	} else {
		s.metrics.RecordBooking(BookingOutcomeCreated)
	}
	s.logger.Info("consultation requested",
		zap.String("consultation_id", consultation.ID),
		zap.String("teacher_id", consultation.TeacherID),
		zap.String("student_id", consultation.StudentID),
		zap.String("date", consultation.Date.String()),
		zap.String("start", consultation.StartTime.Short()),
		zap.Bool("rescheduled", result.Rescheduled),
	)

	s.availability.InvalidateSlots(ctx, consultation.TeacherID, consultation.Date)
	s.publish(ctx, events.SubjectConsultationRequested, ConsultationEvent{Consultation: consultation, ActorID: student.ID})
	return result, nil
}

func (s *ConsultationService) prepare(ctx context.Context, student models.Actor, req dto.CreateConsultationRequest) (*models.Consultation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid consultation payload")
	}
	purpose := strings.TrimSpace(req.Purpose)
	if purpose == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "purpose is required")
	}

	loc := s.availability.Location()
	date, err := ResolveDate(req.Date, loc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	start, err := models.ParseClockTime(req.StartTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid startTime")
	}
	end, err := models.ParseClockTime(req.EndTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid endTime")
	}
	if start >= end {
		return nil, appErrors.Clone(appErrors.ErrValidation, "startTime must be before endTime")
	}
	today := models.DateIn(s.now(), loc)
	if date.Before(today.Date) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must not be in the past")
	}

	if _, err := s.teachers.FindByID(ctx, req.TeacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Storage(err, "failed to load teacher")
	}

	windows, err := s.availability.WindowsOn(ctx, req.TeacherID, date)
	if err != nil {
		return nil, err
	}
	contained := false
	for _, w := range windows {
		if w.Contains(start, end) {
			contained = true
			break
		}
	}
	if !contained {
		msg := fmt.Sprintf("%s-%s on %s is outside the teacher's availability", start.Short(), end.Short(), date.Weekday())
		return nil, appErrors.Clone(appErrors.ErrValidation, msg)
	}

	return &models.Consultation{
		TeacherID: req.TeacherID,
		StudentID: student.ID,
		Date:      date,
		StartTime: start,
		EndTime:   end,
		Purpose:   purpose,
		Status:    models.ConsultationPending,
	}, nil
}

func (s *ConsultationService) reschedule(ctx context.Context, consultation *models.Consultation) error {
	slots, err := s.availability.FreeSlots(ctx, consultation.TeacherID, consultation.Date)
	if err != nil {
		return err
	}
	slot, ok := pickAlternative(slots, consultation.StartTime)
	if !ok {
		return repository.ErrIntervalTaken
	}
	s.logger.Info("rescheduling consultation request",
		zap.String("teacher_id", consultation.TeacherID),
		zap.String("from", consultation.StartTime.Short()),
		zap.String("to", slot.StartTime.Short()),
	)
	consultation.StartTime = slot.StartTime
	consultation.EndTime = slot.EndTime
	return s.repo.CreateIfFree(ctx, consultation)
}

// pickAlternative prefers the first slot starting at or after from and falls back
// to the first slot of the day. slots must be ordered by start.
func pickAlternative(slots []models.Slot, from models.ClockTime) (models.Slot, bool) {
	if len(slots) == 0 {
		return models.Slot{}, false
	}
	for _, slot := range slots {
		if slot.StartTime >= from {
			return slot, true
		}
	}
	return slots[0], true
}

// Get returns a consultation visible to actor.
func (s *ConsultationService) Get(ctx context.Context, actor models.Actor, id string) (*models.ConsultationDetail, error) {
	detail, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, detail.Consultation) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "consultation belongs to another user")
	}
	return detail, nil
}

// List returns the consultations visible to actor. Teachers and students are
// always scoped to their own consultations.
func (s *ConsultationService) List(ctx context.Context, actor models.Actor, query dto.ConsultationQuery) ([]models.ConsultationDetail, *models.Pagination, error) {
	filter, err := BuildConsultationFilter(actor, query, s.availability.Location())
	if err != nil {
		return nil, nil, err
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Storage(err, "failed to list consultations")
	}
	if items == nil {
		items = []models.ConsultationDetail{}
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// UpdateStatus applies action to the consultation. Teachers approve and reject
// their own consultations, students cancel their own, admins may do anything.
// Transitions not allowed from the current status fail with CONFLICT.
func (s *ConsultationService) UpdateStatus(ctx context.Context, actor models.Actor, id string, action dto.StatusAction, req dto.StatusActionRequest) (*models.Consultation, error) {
	rule, ok := transitions[action]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown action %q", action))
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}

	current, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canAct(actor, rule.owner, current.Consultation) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("not allowed to %s this consultation", action))
	}
	if !containsStatus(rule.from, current.Status) {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("cannot %s a %s consultation", action, current.Status))
	}

	var note *string
	if req.Note != nil {
		trimmed := strings.TrimSpace(*req.Note)
		note = &trimmed
	}
	updated, err := s.repo.TransitionStatus(ctx, id, rule.from, rule.to, note)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "consultation status changed concurrently")
		}
		return nil, appErrors.Storage(err, "failed to update consultation")
	}

	s.metrics.RecordStatusChange(string(updated.Status))
	s.logger.Info("consultation status changed",
		zap.String("consultation_id", id),
		zap.String("from", string(current.Status)),
		zap.String("to", string(updated.Status)),
		zap.String("actor_id", actor.ID),
	)

	s.availability.InvalidateSlots(ctx, updated.TeacherID, updated.Date)
	previous := current.Status
	s.publish(ctx, events.SubjectConsultationStatusChanged, ConsultationEvent{Consultation: updated, PreviousStatus: &previous, ActorID: actor.ID})
	return updated, nil
}

func (s *ConsultationService) find(ctx context.Context, id string) (*models.ConsultationDetail, error) {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "consultation not found")
		}
		return nil, appErrors.Storage(err, "failed to load consultation")
	}
	return detail, nil
}

func (s *ConsultationService) publish(ctx context.Context, subject string, payload ConsultationEvent) {
	if err := s.events.Publish(ctx, events.New(subject, payload)); err != nil {
		s.logger.Warn("consultation event not published", zap.String("subject", subject), zap.Error(err))
	}
}

// BuildConsultationFilter turns query parameters into a repository filter scoped
// to what actor may see.
func BuildConsultationFilter(actor models.Actor, query dto.ConsultationQuery, loc *time.Location) (models.ConsultationFilter, error) {
	filter := models.ConsultationFilter{
		TeacherID: strings.TrimSpace(query.TeacherID),
		StudentID: strings.TrimSpace(query.StudentID),
		Page:      query.Page,
		PageSize:  query.PageSize,
		SortOrder: query.SortOrder,
	}

	if raw := strings.TrimSpace(query.Status); raw != "" {
		status := models.ConsultationStatus(strings.ToLower(raw))
		if !status.Valid() {
			return filter, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid status %q", raw))
		}
		filter.Status = &status
	}
	if raw := strings.TrimSpace(query.DateFrom); raw != "" {
		d, err := ResolveDate(raw, loc)
		if err != nil {
			return filter, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid dateFrom")
		}
		filter.DateFrom = &d
	}
	if raw := strings.TrimSpace(query.DateTo); raw != "" {
		d, err := ResolveDate(raw, loc)
		if err != nil {
			return filter, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid dateTo")
		}
		filter.DateTo = &d
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateTo.Before(filter.DateFrom.Date) {
		return filter, appErrors.Clone(appErrors.ErrValidation, "dateTo must not be before dateFrom")
	}

	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleTeacher:
		filter.TeacherID = actor.ID
	case models.RoleStudent:
		filter.StudentID = actor.ID
	default:
		return filter, appErrors.ErrForbidden
	}
	return filter, nil
}

func canView(actor models.Actor, c models.Consultation) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleTeacher:
		return c.TeacherID == actor.ID
	case models.RoleStudent:
		return c.StudentID == actor.ID
	default:
		return false
	}
}

func canAct(actor models.Actor, owner models.UserRole, c models.Consultation) bool {
	if actor.IsAdmin() {
		return true
	}
	if actor.Role != owner {
		return false
	}
	if owner == models.RoleTeacher {
		return c.TeacherID == actor.ID
	}
	return c.StudentID == actor.ID
}

func containsStatus(statuses []models.ConsultationStatus, status models.ConsultationStatus) bool {
	for _, candidate := range statuses {
		if candidate == status {
			return true
		}
	}
	return false
}
