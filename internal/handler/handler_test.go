package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-consultation-api/internal/dto"
	"github.com/noah-isme/sma-consultation-api/internal/middleware"
	"github.com/noah-isme/sma-consultation-api/internal/models"
	"github.com/noah-isme/sma-consultation-api/internal/service"
	appErrors "github.com/noah-isme/sma-consultation-api/pkg/errors"
)

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func asUser(c *gin.Context, id string, role models.UserRole) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: id, Role: role})
}

type envelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *appErrors.Error       `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

type availabilityServiceMock struct {
	slots      *service.SlotQueryResult
	err        error
	replaced   dto.ReplaceAvailabilityRequest
	replacedID string
	rawDate    string
}

func (m *availabilityServiceMock) GetAvailability(ctx context.Context, teacherID string) ([]models.AvailabilityWindow, error) {
	return []models.AvailabilityWindow{{ID: "w1", TeacherID: teacherID, DayOfWeek: models.Monday, StartTime: models.NewClockTime(8, 0, 0), EndTime: models.NewClockTime(9, 0, 0)}}, m.err
}

func (m *availabilityServiceMock) ReplaceAvailability(ctx context.Context, teacherID string, req dto.ReplaceAvailabilityRequest) ([]models.AvailabilityWindow, error) {
	m.replacedID = teacherID
	m.replaced = req
	return []models.AvailabilityWindow{}, m.err
}

func (m *availabilityServiceMock) AvailableSlots(ctx context.Context, teacherID, rawDate string) (*service.SlotQueryResult, error) {
	m.rawDate = rawDate
	return m.slots, m.err
}

func TestAvailabilityHandlerSlots(t *testing.T) {
	mockSvc := &availabilityServiceMock{slots: &service.SlotQueryResult{
		Date:     models.NewDate(2024, 1, 1),
		Day:      models.Monday,
		Slots:    []models.Slot{{Day: models.Monday, StartTime: models.NewClockTime(8, 0, 0), EndTime: models.NewClockTime(8, 30, 0)}},
		CacheHit: true,
	}}
	h := NewAvailabilityHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/teachers/t1/slots?date=2024-01-01", nil)
	c.Params = gin.Params{{Key: "id", Value: "t1"}}
	h.Slots(c)

	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.JSONEq(t, `[{"day":"Monday","startTime":"08:00","endTime":"08:30"}]`, string(env.Data))
	assert.Equal(t, true, env.Meta["cache_hit"])
	assert.Equal(t, "2024-01-01", env.Meta["date"])
	assert.Equal(t, "2024-01-01", mockSvc.rawDate)
}

func TestAvailabilityHandlerSlotsRequiresDate(t *testing.T) {
	h := NewAvailabilityHandler(&availabilityServiceMock{})
	c, w := newGinContext(http.MethodGet, "/teachers/t1/slots", nil)
	c.Params = gin.Params{{Key: "id", Value: "t1"}}
	h.Slots(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decode(t, w).Error.Code)
}

func TestAvailabilityHandlerSlotsNotFound(t *testing.T) {
	h := NewAvailabilityHandler(&availabilityServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "teacher not found")})
	c, w := newGinContext(http.MethodGet, "/teachers/nope/slots?date=2024-01-01", nil)
	c.Params = gin.Params{{Key: "id", Value: "nope"}}
	h.Slots(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAvailabilityHandlerReplace(t *testing.T) {
	mockSvc := &availabilityServiceMock{}
	h := NewAvailabilityHandler(mockSvc)

	body := []byte(`{"windows":[{"dayOfWeek":"Monday","startTime":"08:00","endTime":"10:00"}]}`)
	c, w := newGinContext(http.MethodPut, "/teachers/t1/availability", body)
	c.Params = gin.Params{{Key: "id", Value: "t1"}}
	h.Replace(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "t1", mockSvc.replacedID)
	require.Len(t, mockSvc.replaced.Windows, 1)
	assert.Equal(t, "Monday", mockSvc.replaced.Windows[0].DayOfWeek)

	c, w = newGinContext(http.MethodPut, "/teachers/t1/availability", []byte(`{"windows":`))
	c.Params = gin.Params{{Key: "id", Value: "t1"}}
	h.Replace(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type consultationServiceMock struct {
	result     *service.BookingResult
	err        error
	actor      models.Actor
	action     dto.StatusAction
	statusReq  dto.StatusActionRequest
	createReq  dto.CreateConsultationRequest
	listQuery  dto.ConsultationQuery
	pagination *models.Pagination
}

func (m *consultationServiceMock) Request(ctx context.Context, student models.Actor, req dto.CreateConsultationRequest) (*service.BookingResult, error) {
	m.actor = student
	m.createReq = req
	return m.result, m.err
}

func (m *consultationServiceMock) Get(ctx context.Context, actor models.Actor, id string) (*models.ConsultationDetail, error) {
	m.actor = actor
	if m.err != nil {
		return nil, m.err
	}
	return &models.ConsultationDetail{Consultation: models.Consultation{ID: id}}, nil
}

func (m *consultationServiceMock) List(ctx context.Context, actor models.Actor, query dto.ConsultationQuery) ([]models.ConsultationDetail, *models.Pagination, error) {
	m.actor = actor
	m.listQuery = query
	return []models.ConsultationDetail{}, m.pagination, m.err
}

func (m *consultationServiceMock) UpdateStatus(ctx context.Context, actor models.Actor, id string, action dto.StatusAction, req dto.StatusActionRequest) (*models.Consultation, error) {
	m.actor = actor
	m.action = action
	m.statusReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &models.Consultation{ID: id, Status: models.ConsultationApproved}, nil
}

func TestConsultationHandlerCreate(t *testing.T) {
	mockSvc := &consultationServiceMock{result: &service.BookingResult{
		Consultation: &models.Consultation{ID: "c1", Status: models.ConsultationPending},
		Rescheduled:  true,
	}}
	h := NewConsultationHandler(mockSvc)

	body := []byte(`{"teacherId":"t1","date":"2024-01-01","startTime":"08:00","endTime":"08:30","purpose":"grades","autoReschedule":true}`)
	c, w := newGinContext(http.MethodPost, "/consultations", body)
	asUser(c, "s1", models.RoleStudent)
	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	env := decode(t, w)
	assert.Equal(t, true, env.Meta["rescheduled"])
	assert.Equal(t, "s1", mockSvc.actor.ID)
	assert.True(t, mockSvc.createReq.AutoReschedule)
	assert.Equal(t, "08:30", mockSvc.createReq.EndTime)
}

func TestConsultationHandlerCreateConflict(t *testing.T) {
	h := NewConsultationHandler(&consultationServiceMock{err: appErrors.Clone(appErrors.ErrConflict, "slot is no longer available")})

	body := []byte(`{"teacherId":"t1","date":"2024-01-01","startTime":"08:00","endTime":"08:30","purpose":"x"}`)
	c, w := newGinContext(http.MethodPost, "/consultations", body)
	asUser(c, "s1", models.RoleStudent)
	h.Create(c)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, appErrors.ErrConflict.Code, decode(t, w).Error.Code)
}

func TestConsultationHandlerRequiresCaller(t *testing.T) {
	h := NewConsultationHandler(&consultationServiceMock{})
	c, w := newGinContext(http.MethodGet, "/consultations", nil)
	h.List(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestConsultationHandlerList(t *testing.T) {
	mockSvc := &consultationServiceMock{pagination: &models.Pagination{Page: 2, PageSize: 10, TotalCount: 11}}
	h := NewConsultationHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/consultations?status=pending&dateFrom=2024-01-01&page=2&pageSize=10", nil)
	asUser(c, "t1", models.RoleTeacher)
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pending", mockSvc.listQuery.Status)
	assert.Equal(t, "2024-01-01", mockSvc.listQuery.DateFrom)
	assert.Equal(t, 2, mockSvc.listQuery.Page)
	assert.Equal(t, 11, decode(t, w).Pagination.TotalCount)
}

func TestConsultationHandlerTransitions(t *testing.T) {
	mockSvc := &consultationServiceMock{}
	h := NewConsultationHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/consultations/c1/approve", nil)
	c.Params = gin.Params{{Key: "id", Value: "c1"}}
	asUser(c, "t1", models.RoleTeacher)
	h.Approve(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.ActionApprove, mockSvc.action)
	assert.Nil(t, mockSvc.statusReq.Note)

	c, w = newGinContext(http.MethodPost, "/consultations/c1/reject", []byte(`{"note":"not available"}`))
	c.Params = gin.Params{{Key: "id", Value: "c1"}}
	asUser(c, "t1", models.RoleTeacher)
	h.Reject(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.ActionReject, mockSvc.action)
	require.NotNil(t, mockSvc.statusReq.Note)
	assert.Equal(t, "not available", *mockSvc.statusReq.Note)

	mockSvc.err = appErrors.Clone(appErrors.ErrForbidden, "only the student may cancel")
	c, w = newGinContext(http.MethodPost, "/consultations/c1/cancel", nil)
	c.Params = gin.Params{{Key: "id", Value: "c1"}}
	asUser(c, "s2", models.RoleStudent)
	h.Cancel(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, dto.ActionCancel, mockSvc.action)
}

type reportServiceMock struct {
	report *service.Report
	err    error
	format string
	actor  models.Actor
}

func (m *reportServiceMock) ExportConsultations(ctx context.Context, actor models.Actor, query dto.ConsultationQuery, format string) (*service.Report, error) {
	m.actor = actor
	m.format = format
	return m.report, m.err
}

func TestReportHandlerConsultations(t *testing.T) {
	mockSvc := &reportServiceMock{report: &service.Report{
		Filename:    "consultations-20240101-080000.csv",
		ContentType: "text/csv",
		Data:        []byte("Date,Day\n"),
	}}
	h := NewReportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/reports/consultations?format=csv", nil)
	asUser(c, "t1", models.RoleTeacher)
	h.Consultations(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "csv", mockSvc.format)
	assert.Equal(t, "t1", mockSvc.actor.ID)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "consultations-20240101-080000.csv")
	assert.Equal(t, "Date,Day\n", w.Body.String())
}

func TestReportHandlerInvalidFormat(t *testing.T) {
	h := NewReportHandler(&reportServiceMock{err: appErrors.Clone(appErrors.ErrValidation, "unsupported format")})

	c, w := newGinContext(http.MethodGet, "/reports/consultations?format=xls", nil)
	asUser(c, "a1", models.RoleAdmin)
	h.Consultations(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type authServiceMock struct {
	logoutUser  string
	logoutToken string
}

func (m *authServiceMock) Login(ctx context.Context, req models.LoginRequest) (*models.TokenPair, error) {
	if req.Password != "password" {
		return nil, appErrors.ErrInvalidCredentials
	}
	return &models.TokenPair{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (m *authServiceMock) RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.TokenPair, error) {
	return &models.TokenPair{AccessToken: "access2", RefreshToken: "refresh2"}, nil
}

func (m *authServiceMock) Logout(ctx context.Context, userID, refreshToken string) error {
	m.logoutUser = userID
	m.logoutToken = refreshToken
	return nil
}

func (m *authServiceMock) Me(ctx context.Context, userID string) (*models.UserInfo, error) {
	return &models.UserInfo{ID: userID}, nil
}

func TestAuthHandlerLogin(t *testing.T) {
	h := NewAuthHandler(&authServiceMock{})

	c, w := newGinContext(http.MethodPost, "/auth/login", []byte(`{"email":"a@b.c","password":"password"}`))
	h.Login(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"access_token":"access","refresh_token":"refresh","expires_in":0,"issued_at":"0001-01-01T00:00:00Z"}`, string(decode(t, w).Data))

	c, w = newGinContext(http.MethodPost, "/auth/login", []byte(`{"email":"a@b.c","password":"nope"}`))
	h.Login(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerLogout(t *testing.T) {
	mockSvc := &authServiceMock{}
	h := NewAuthHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/auth/logout", []byte(`{"refresh_token":"refresh"}`))
	asUser(c, "u1", models.RoleStudent)
	h.Logout(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "u1", mockSvc.logoutUser)
	assert.Equal(t, "refresh", mockSvc.logoutToken)

	c, w = newGinContext(http.MethodPost, "/auth/logout", []byte(`{}`))
	asUser(c, "u1", models.RoleStudent)
	h.Logout(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type teacherDirectoryMock struct{}

func (teacherDirectoryMock) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, *models.Pagination, error) {
	return []models.Teacher{{ID: "t1", FullName: filter.Search}}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: 1}, nil
}

func (teacherDirectoryMock) Get(ctx context.Context, id string) (*models.Teacher, error) {
	if id != "t1" {
		return nil, appErrors.ErrNotFound
	}
	return &models.Teacher{ID: id}, nil
}

func TestTeacherHandler(t *testing.T) {
	h := NewTeacherHandler(teacherDirectoryMock{})

	c, w := newGinContext(http.MethodGet, "/teachers?search=sari&page=2&limit=5", nil)
	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.Equal(t, 5, env.Pagination.PageSize)
	assert.JSONEq(t, `[{"id":"t1","email":"","full_name":"sari","active":false}]`, string(env.Data))

	c, w = newGinContext(http.MethodGet, "/teachers/x", nil)
	c.Params = gin.Params{{Key: "id", Value: "x"}}
	h.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsHandlerReady(t *testing.T) {
	h := NewMetricsHandler(nil, map[string]Pinger{
		"postgres": PingFunc(func(ctx context.Context) error { return nil }),
		"redis":    PingFunc(func(ctx context.Context) error { return errors.New("connection refused") }),
	})

	c, w := newGinContext(http.MethodGet, "/ready", nil)
	h.Ready(c)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "ok", body.Checks["postgres"])

	c, w = newGinContext(http.MethodGet, "/metrics", nil)
	h.Prometheus(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
