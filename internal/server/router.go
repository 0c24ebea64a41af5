// Package server assembles the gin engine: global middleware, routes and the
// role requirements of each route.
package server

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-consultation-api/internal/handler"
	"github.com/noah-isme/sma-consultation-api/internal/middleware"
	"github.com/noah-isme/sma-consultation-api/internal/models"
	"github.com/noah-isme/sma-consultation-api/internal/service"
	"github.com/noah-isme/sma-consultation-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-consultation-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-consultation-api/pkg/middleware/requestid"
)

// Handlers groups the HTTP handlers served by the router.
type Handlers struct {
	Auth          *handler.AuthHandler
	Teachers      *handler.TeacherHandler
	Availability  *handler.AvailabilityHandler
	Consultations *handler.ConsultationHandler
	Reports       *handler.ReportHandler
	Metrics       *handler.MetricsHandler
}

// Options configures NewRouter.
type Options struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool
	Logger         *zap.Logger
	Metrics        *service.MetricsService
	Tokens         middleware.TokenValidator
	BookingLimiter *middleware.RateLimiter
}

// NewRouter builds the gin engine.
func NewRouter(h Handlers, opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.APIPrefix == "" {
		opts.APIPrefix = "/api/v1"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(middleware.Metrics(opts.Metrics))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	if opts.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(opts.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)

	secured := api.Group("")
	secured.Use(middleware.JWT(opts.Tokens))

	secured.POST("/auth/logout", h.Auth.Logout)
	secured.GET("/auth/me", h.Auth.Me)

	teachers := secured.Group("/teachers")
	teachers.GET("", h.Teachers.List)
	teachers.GET("/:id", h.Teachers.Get)
	teachers.GET("/:id/availability", h.Availability.Get)
	teachers.PUT("/:id/availability", middleware.RBAC(string(models.RoleAdmin), middleware.Self), h.Availability.Replace)
	teachers.GET("/:id/slots", h.Availability.Slots)

	consultations := secured.Group("/consultations")
	createChain := []gin.HandlerFunc{middleware.RequireRoles(models.RoleStudent)}
	if opts.BookingLimiter != nil {
		createChain = append(createChain, opts.BookingLimiter.Middleware())
	}
	consultations.POST("", append(createChain, h.Consultations.Create)...)
	consultations.GET("", h.Consultations.List)
	consultations.GET("/:id", h.Consultations.Get)
	consultations.POST("/:id/approve", middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin), h.Consultations.Approve)
	consultations.POST("/:id/reject", middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin), h.Consultations.Reject)
	consultations.POST("/:id/cancel", middleware.RequireRoles(models.RoleStudent, models.RoleAdmin), h.Consultations.Cancel)

	reports := secured.Group("/reports")
	reports.Use(middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin))
	reports.GET("/consultations", h.Reports.Consultations)

	return r
}
