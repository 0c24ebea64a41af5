package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-consultation-api/internal/dto"
	"github.com/noah-isme/sma-consultation-api/internal/models"
	appErrors "github.com/noah-isme/sma-consultation-api/pkg/errors"
)

type availabilityRepository interface {
	ListByTeacher(ctx context.Context, teacherID string) ([]models.AvailabilityWindow, error)
	ListByTeacherDay(ctx context.Context, teacherID string, day models.Weekday) ([]models.AvailabilityWindow, error)
	Replace(ctx context.Context, teacherID string, windows []models.AvailabilityWindow) error
}

type bookedIntervalReader interface {
	ListBookedIntervals(ctx context.Context, teacherID string, date models.Date, statuses []models.ConsultationStatus) ([]models.BookedInterval, error)
}

type teacherReader interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

// SlotQueryResult is the outcome of AvailableSlots.
type SlotQueryResult struct {
	Date     models.Date
	Day      models.Weekday
	Slots    []models.Slot
	CacheHit bool
}

// AvailabilityService owns teachers' weekly schedules and derives bookable slots.
type AvailabilityService struct {
	windows    availabilityRepository
	bookings   bookedIntervalReader
	teachers   teacherReader
	cache      *CacheService
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	location   *time.Location
	cacheTTL   time.Duration
	versionTTL time.Duration
}

// AvailabilityConfig tunes slot resolution and caching.
type AvailabilityConfig struct {
	Location *time.Location
	CacheTTL time.Duration
}

// NewAvailabilityService constructs the service. cache and metrics may be nil.
func NewAvailabilityService(windows availabilityRepository, bookings bookedIntervalReader, teachers teacherReader, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg AvailabilityConfig) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	svc := &AvailabilityService{
		windows:   windows,
		bookings:  bookings,
		teachers:  teachers,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		location:  cfg.Location,
		cacheTTL:  cfg.CacheTTL,
	}
	if cfg.CacheTTL > 0 {
		svc.versionTTL = versionTTL(cfg.CacheTTL)
	}
	return svc
}

// Location returns the institution timezone used to resolve dates.
func (s *AvailabilityService) Location() *time.Location {
	return s.location
}

// AvailableSlots lists the free slots of a teacher on the civil date named by
// rawDate. A teacher without windows on that weekday gets an empty list.
func (s *AvailabilityService) AvailableSlots(ctx context.Context, teacherID, rawDate string) (*SlotQueryResult, error) {
	date, err := ResolveDate(rawDate, s.location)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if err := s.ensureTeacher(ctx, teacherID); err != nil {
		return nil, err
	}

	result := &SlotQueryResult{Date: date, Day: date.Weekday()}

	// The version is read before the store so a write committed afterwards
	// bumps it, and this computation lands under a key nobody reads again.
	version, cacheable := s.slotVersion(ctx, teacherID, date)
	key := SlotCacheKey(teacherID, date, version)

	if cacheable {
		var cached []models.Slot
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			result.Slots = cached
			result.CacheHit = true
			return result, nil
		}
	}

	slots, err := s.FreeSlots(ctx, teacherID, date)
	if err != nil {
		return nil, err
	}
	if cacheable {
		_ = s.cache.Set(ctx, key, slots, s.cacheTTL)
	}

	result.Slots = slots
	return result, nil
}

// FreeSlots computes the slots of date straight from the store, bypassing the
// cache.
func (s *AvailabilityService) FreeSlots(ctx context.Context, teacherID string, date models.Date) ([]models.Slot, error) {
	start := time.Now()
	day := date.Weekday()

	queryStart := time.Now()
	windows, err := s.windows.ListByTeacherDay(ctx, teacherID, day)
	s.metrics.ObserveDBQuery("availability_windows_by_day", time.Since(queryStart))
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load availability")
	}
	if len(windows) == 0 {
		s.metrics.ObserveSlotComputation(time.Since(start), 0)
		return []models.Slot{}, nil
	}

	queryStart = time.Now()
	booked, err := s.bookings.ListBookedIntervals(ctx, teacherID, date, models.ActiveConsultationStatuses)
	s.metrics.ObserveDBQuery("booked_intervals", time.Since(queryStart))
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load booked consultations")
	}

	slots := ComputeSlots(day, windows, booked)
	s.metrics.ObserveSlotComputation(time.Since(start), len(slots))
	return slots, nil
}

// WindowsOn returns the teacher's windows recurring on the weekday of date.
func (s *AvailabilityService) WindowsOn(ctx context.Context, teacherID string, date models.Date) ([]models.AvailabilityWindow, error) {
	windows, err := s.windows.ListByTeacherDay(ctx, teacherID, date.Weekday())
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load availability")
	}
	return windows, nil
}

// GetAvailability lists a teacher's weekly schedule.
func (s *AvailabilityService) GetAvailability(ctx context.Context, teacherID string) ([]models.AvailabilityWindow, error) {
	if err := s.ensureTeacher(ctx, teacherID); err != nil {
		return nil, err
	}
	windows, err := s.windows.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load availability")
	}
	if windows == nil {
		windows = []models.AvailabilityWindow{}
	}
	return windows, nil
}

// ReplaceAvailability swaps the teacher's whole schedule for the submitted one
// and returns the stored set. Overlapping windows are accepted.
func (s *AvailabilityService) ReplaceAvailability(ctx context.Context, teacherID string, req dto.ReplaceAvailabilityRequest) ([]models.AvailabilityWindow, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}

	windows := make([]models.AvailabilityWindow, 0, len(req.Windows))
	for i, input := range req.Windows {
		window, err := parseWindow(input)
		if err != nil {
			msg := fmt.Sprintf("windows[%d]: %s", i, err.Error())
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, msg)
		}
		windows = append(windows, window)
	}

	if err := s.ensureTeacher(ctx, teacherID); err != nil {
		return nil, err
	}

	if err := s.windows.Replace(ctx, teacherID, windows); err != nil {
		return nil, appErrors.Storage(err, "failed to replace availability")
	}
	s.logger.Info("availability replaced", zap.String("teacher_id", teacherID), zap.Int("windows", len(windows)))

	if err := s.cache.Bump(ctx, TeacherVersionKey(teacherID), s.versionTTL); err != nil {
		s.logger.Warn("slot cache not invalidated after availability change", zap.String("teacher_id", teacherID), zap.Error(err))
	} else {
		// Entries under the retired version are unreachable; reclaim them early.
		_ = s.cache.Invalidate(ctx, SlotCachePattern(teacherID))
	}

	return s.GetAvailability(ctx, teacherID)
}

// InvalidateSlots retires the cached slots of one date by bumping its version.
func (s *AvailabilityService) InvalidateSlots(ctx context.Context, teacherID string, date models.Date) {
	previous, known := s.slotVersion(ctx, teacherID, date)
	if err := s.cache.Bump(ctx, DateVersionKey(teacherID, date), s.versionTTL); err != nil {
		s.logger.Warn("slot cache not invalidated", zap.String("teacher_id", teacherID), zap.String("date", date.String()), zap.Error(err))
		return
	}
	if known {
		_ = s.cache.Delete(ctx, SlotCacheKey(teacherID, date, previous))
	}
}

// slotVersion combines the teacher and date versions. cacheable is false when
// either could not be read, in which case the cache is bypassed.
func (s *AvailabilityService) slotVersion(ctx context.Context, teacherID string, date models.Date) (version string, cacheable bool) {
	teacherVersion, err := s.cache.Version(ctx, TeacherVersionKey(teacherID))
	if err != nil {
		return "", false
	}
	dateVersion, err := s.cache.Version(ctx, DateVersionKey(teacherID, date))
	if err != nil {
		return "", false
	}
	return teacherVersion + "." + dateVersion, true
}

func (s *AvailabilityService) ensureTeacher(ctx context.Context, teacherID string) error {
	if teacherID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "teacher id is required")
	}
	if _, err := s.teachers.FindByID(ctx, teacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Storage(err, "failed to load teacher")
	}
	return nil
}

func parseWindow(input dto.AvailabilityWindowInput) (models.AvailabilityWindow, error) {
	day, err := models.ParseWeekday(input.DayOfWeek)
	if err != nil {
		return models.AvailabilityWindow{}, err
	}
	start, err := models.ParseClockTime(input.StartTime)
	if err != nil {
		return models.AvailabilityWindow{}, err
	}
	end, err := models.ParseClockTime(input.EndTime)
	if err != nil {
		return models.AvailabilityWindow{}, err
	}
	window := models.AvailabilityWindow{DayOfWeek: day, StartTime: start, EndTime: end}
	if err := window.Validate(); err != nil {
		return models.AvailabilityWindow{}, err
	}
	return window, nil
}
