package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-consultation-api/api/swagger"
	"github.com/noah-isme/sma-consultation-api/internal/handler"
	"github.com/noah-isme/sma-consultation-api/internal/middleware"
	"github.com/noah-isme/sma-consultation-api/internal/repository"
	"github.com/noah-isme/sma-consultation-api/internal/server"
	"github.com/noah-isme/sma-consultation-api/internal/service"
	"github.com/noah-isme/sma-consultation-api/migrations"
	"github.com/noah-isme/sma-consultation-api/pkg/cache"
	"github.com/noah-isme/sma-consultation-api/pkg/config"
	"github.com/noah-isme/sma-consultation-api/pkg/database"
	"github.com/noah-isme/sma-consultation-api/pkg/events"
	"github.com/noah-isme/sma-consultation-api/pkg/logger"
)

// @title SMA Consultation API
// @version 1.0.0
// @description Teacher availability, free slot lookup and consultation booking
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	if cfg.RunMigrations {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := migrations.Up(ctx, db.DB, logr)
		cancel()
		if err != nil {
			logr.Sugar().Fatalw("failed to run migrations", "error", err)
		}
	}

	// The slot cache is optional; without Redis every query computes slots.
	var redisClient *redis.Client
	if cfg.Consultations.SlotCacheEnabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, slot cache disabled", zap.Error(err))
			redisClient = nil
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Consultations.SlotCacheTTL, logr, redisClient != nil)

	var bus events.Publisher = events.NoopPublisher{}
	var natsPublisher *events.NATSPublisher
	if cfg.Events.NATSURL != "" {
		natsPublisher, err = events.NewNATSPublisher(cfg.Events.NATSURL, "sma-consultation-api", logr)
		if err != nil {
			logr.Warn("nats unavailable, consultation events disabled", zap.Error(err))
		} else {
			bus = natsPublisher
		}
	}
	publisher := events.NewAsyncPublisher(bus, events.AsyncConfig{
		Workers: cfg.Events.Workers,
		Retries: cfg.Events.Retries,
		Logger:  logr,
	})
	// Dispatch outlives the signal context so Close can drain pending events.
	publisher.Start(context.Background())

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	consultationRepo := repository.NewConsultationRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "sma-consultation-api",
	})
	teacherSvc := service.NewTeacherService(teacherRepo, logr)
	availabilitySvc := service.NewAvailabilityService(availabilityRepo, consultationRepo, teacherRepo, cacheSvc, metricsSvc, validate, logr, service.AvailabilityConfig{
		Location: cfg.Consultations.Location,
		CacheTTL: cfg.Consultations.SlotCacheTTL,
	})
	consultationSvc := service.NewConsultationService(consultationRepo, availabilitySvc, teacherRepo, publisher, metricsSvc, validate, logr)
	reportSvc := service.NewReportService(consultationRepo, cfg.Consultations.Location, logr)

	readiness := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		readiness["redis"] = handler.PingFunc(cacheRepo.Ping)
	}
	if natsPublisher != nil {
		readiness["nats"] = handler.PingFunc(func(context.Context) error {
			if !natsPublisher.Connected() {
				return errors.New("not connected")
			}
			return nil
		})
	}

	router := server.NewRouter(server.Handlers{
		Auth:          handler.NewAuthHandler(authSvc),
		Teachers:      handler.NewTeacherHandler(teacherSvc),
		Availability:  handler.NewAvailabilityHandler(availabilitySvc),
		Consultations: handler.NewConsultationHandler(consultationSvc),
		Reports:       handler.NewReportHandler(reportSvc),
		Metrics:       handler.NewMetricsHandler(metricsSvc, readiness),
	}, server.Options{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
		Logger:         logr,
		Metrics:        metricsSvc,
		Tokens:         authSvc,
		BookingLimiter: middleware.NewRateLimiter(cfg.Consultations.BookingRatePerMin, cfg.Consultations.BookingRateBurst, logr),
	})

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "timezone", cfg.Consultations.Timezone)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	logr.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("forced shutdown", zap.Error(err))
	}
	if err := publisher.Close(); err != nil {
		logr.Warn("failed to close event publisher", zap.Error(err))
	}
	logr.Info("server stopped")
}
