package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-consultation-api/internal/models"
	appErrors "github.com/noah-isme/sma-consultation-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubValidator struct {
	claims *models.JWTClaims
}

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return s.claims, nil
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func protectedRouter(claims *models.JWTClaims, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{JWT(stubValidator{claims: claims})}, extra...)
	handlers = append(handlers, func(c *gin.Context) { c.Status(http.StatusOK) })
	r.PUT("/teachers/:id/availability", handlers...)
	return r
}

func TestJWTRequiresBearerToken(t *testing.T) {
	r := protectedRouter(&models.JWTClaims{UserID: "t1", Role: models.RoleTeacher})

	cases := map[string]string{"": "UNAUTHORIZED", "Basic abc": "UNAUTHORIZED", "Bearer bad": "UNAUTHORIZED"}
	for header, code := range cases {
		req := httptest.NewRequest(http.MethodPut, "/teachers/t1/availability", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
		assert.Equal(t, code, errorCode(t, rec))
	}

	req := httptest.NewRequest(http.MethodPut, "/teachers/t1/availability", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRBACAllowsSelfAndRoles(t *testing.T) {
	tests := []struct {
		name   string
		claims *models.JWTClaims
		path   string
		status int
	}{
		{"self", &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}, "/teachers/t1/availability", http.StatusOK},
		{"other teacher", &models.JWTClaims{UserID: "t2", Role: models.RoleTeacher}, "/teachers/t1/availability", http.StatusForbidden},
		{"admin", &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin}, "/teachers/t1/availability", http.StatusOK},
		{"student", &models.JWTClaims{UserID: "s1", Role: models.RoleStudent}, "/teachers/t1/availability", http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := protectedRouter(tc.claims, RBAC(string(models.RoleAdmin), Self))
			req := httptest.NewRequest(http.MethodPut, tc.path, nil)
			req.Header.Set("Authorization", "Bearer good")
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestRequireRolesWithoutClaims(t *testing.T) {
	r := gin.New()
	r.GET("/x", RequireRoles(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimiterPerUser(t *testing.T) {
	limiter := NewRateLimiter(1, 2, nil)
	clock := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return clock }

	r := gin.New()
	r.POST("/consultations", func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: c.GetHeader("X-User")})
		c.Next()
	}, limiter.Middleware(), func(c *gin.Context) { c.Status(http.StatusCreated) })

	send := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/consultations", nil)
		req.Header.Set("X-User", user)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusCreated, send("s1").Code)
	assert.Equal(t, http.StatusCreated, send("s1").Code)

	rec := send("s1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", errorCode(t, rec))
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusCreated, send("s2").Code)

	clock = clock.Add(time.Minute)
	assert.Equal(t, http.StatusCreated, send("s1").Code)
}

func TestRateLimiterSweepsIdleCallersOncePerTTL(t *testing.T) {
	limiter := NewRateLimiter(10, 3, nil)
	start := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	clock := start
	limiter.now = func() time.Time { return clock }
	at := func(offset time.Duration, key string) {
		clock = start.Add(offset)
		limiter.get(key)
	}

	at(0, "user:x")
	at(time.Minute, "user:a")
	at(10*time.Minute, "user:b")
	assert.Len(t, limiter.limiters, 3)
	assert.Equal(t, start.Add(10*time.Minute), limiter.lastSweep)

	// x and a are idle past the TTL, but the last sweep ran nine minutes ago.
	at(19*time.Minute, "user:b")
	assert.Len(t, limiter.limiters, 3)

	at(20*time.Minute, "user:b")
	assert.Len(t, limiter.limiters, 1)
	assert.Contains(t, limiter.limiters, "user:b")
}
