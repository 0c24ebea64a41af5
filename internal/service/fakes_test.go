package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/sma-consultation-api/internal/models"
	"github.com/noah-isme/sma-consultation-api/internal/repository"
	appErrors "github.com/noah-isme/sma-consultation-api/pkg/errors"
	"github.com/noah-isme/sma-consultation-api/pkg/events"
)

// memoryStore is an in-memory stand-in for the availability, consultation and
// teacher repositories. CreateIfFree serialises check-then-insert under a mutex
// the way the SQL implementation does with an advisory lock.
type memoryStore struct {
	mu            sync.Mutex
	teachers      map[string]models.Teacher
	windows       map[string][]models.AvailabilityWindow
	consultations map[string]*models.Consultation

	listErr   error
	createErr error
	creates   int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		teachers:      map[string]models.Teacher{},
		windows:       map[string][]models.AvailabilityWindow{},
		consultations: map[string]*models.Consultation{},
	}
}

func (m *memoryStore) addTeacher(id string) {
	m.teachers[id] = models.Teacher{ID: id, FullName: "Teacher " + id, Active: true}
}

func (m *memoryStore) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teachers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &t, nil
}

func (m *memoryStore) ListByTeacher(ctx context.Context, teacherID string) ([]models.AvailabilityWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := append([]models.AvailabilityWindow(nil), m.windows[teacherID]...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DayOfWeek.Index() != out[j].DayOfWeek.Index() {
			return out[i].DayOfWeek.Index() < out[j].DayOfWeek.Index()
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, nil
}

func (m *memoryStore) ListByTeacherDay(ctx context.Context, teacherID string, day models.Weekday) ([]models.AvailabilityWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []models.AvailabilityWindow
	for _, w := range m.windows[teacherID] {
		if w.DayOfWeek == day {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *memoryStore) Replace(ctx context.Context, teacherID string, windows []models.AvailabilityWindow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]models.AvailabilityWindow, len(windows))
	for i, w := range windows {
		w.ID = uuid.NewString()
		w.TeacherID = teacherID
		stored[i] = w
	}
	m.windows[teacherID] = stored
	return nil
}

func (m *memoryStore) ListBookedIntervals(ctx context.Context, teacherID string, date models.Date, statuses []models.ConsultationStatus) ([]models.BookedInterval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bookedLocked(teacherID, date, statuses), nil
}

func (m *memoryStore) bookedLocked(teacherID string, date models.Date, statuses []models.ConsultationStatus) []models.BookedInterval {
	var out []models.BookedInterval
	for _, c := range m.consultations {
		if c.TeacherID == teacherID && c.Date == date && containsStatus(statuses, c.Status) {
			out = append(out, c.Interval())
		}
	}
	return out
}

func (m *memoryStore) CreateIfFree(ctx context.Context, consultation *models.Consultation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.createErr != nil {
		return m.createErr
	}
	for _, b := range m.bookedLocked(consultation.TeacherID, consultation.Date, models.ActiveConsultationStatuses) {
		if b.Overlaps(consultation.StartTime, consultation.EndTime) {
			return repository.ErrIntervalTaken
		}
	}
	consultation.ID = uuid.NewString()
	consultation.CreatedAt = time.Now().UTC()
	consultation.UpdatedAt = consultation.CreatedAt
	stored := *consultation
	m.consultations[stored.ID] = &stored
	return nil
}

func (m *memoryStore) FindConsultation(id string) *models.Consultation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consultations[id]
}

type consultationRepoAdapter struct{ *memoryStore }

func (a consultationRepoAdapter) FindByID(ctx context.Context, id string) (*models.ConsultationDetail, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.consultations[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.ConsultationDetail{Consultation: *c, TeacherName: "Teacher " + c.TeacherID, StudentName: "Student " + c.StudentID}, nil
}

func (a consultationRepoAdapter) List(ctx context.Context, filter models.ConsultationFilter) ([]models.ConsultationDetail, int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []models.ConsultationDetail
	for _, c := range a.consultations {
		if filter.TeacherID != "" && c.TeacherID != filter.TeacherID {
			continue
		}
		if filter.StudentID != "" && c.StudentID != filter.StudentID {
			continue
		}
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		out = append(out, models.ConsultationDetail{Consultation: *c})
	}
	return out, len(out), nil
}

func (a consultationRepoAdapter) ListForExport(ctx context.Context, filter models.ConsultationFilter) ([]models.ConsultationDetail, error) {
	items, _, err := a.List(ctx, filter)
	return items, err
}

func (a consultationRepoAdapter) TransitionStatus(ctx context.Context, id string, from []models.ConsultationStatus, to models.ConsultationStatus, note *string) (*models.Consultation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.consultations[id]
	if !ok || !containsStatus(from, c.Status) {
		return nil, sql.ErrNoRows
	}
	c.Status = to
	if note != nil {
		c.Note = note
	}
	c.UpdatedAt = time.Now().UTC()
	updated := *c
	return &updated, nil
}

// memoryCache implements CacheRepository with JSON round-trips.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte

	// beforeSet runs ahead of every write, outside the lock.
	beforeSet func(key string)
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.beforeSet != nil {
		c.beforeSet(key)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = raw
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
	return nil
}

func (c *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(c.entries, key)
		}
	}
	return nil
}

func (c *memoryCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

type recordingEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingEvents) Publish(ctx context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingEvents) subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Subject
	}
	return out
}
