package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-consultation-api/internal/models"
	appErrors "github.com/noah-isme/sma-consultation-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// minVersionTTL keeps version tokens alive well past the entries built on them.
const minVersionTTL = 24 * time.Hour

// SlotCacheKey addresses the computed slots of a teacher on one date, as seen
// under version.
func SlotCacheKey(teacherID string, date models.Date, version string) string {
	return fmt.Sprintf("slots:%s:%s:%s", teacherID, date.String(), version)
}

// TeacherVersionKey holds the token bumped whenever a teacher's schedule changes.
func TeacherVersionKey(teacherID string) string {
	return fmt.Sprintf("slotver:%s", teacherID)
}

// DateVersionKey holds the token bumped whenever bookings of one date change.
func DateVersionKey(teacherID string, date models.Date) string {
	return fmt.Sprintf("slotver:%s:%s", teacherID, date.String())
}

// SlotCachePattern matches every cached date of a teacher.
func SlotCachePattern(teacherID string) string {
	return fmt.Sprintf("slots:%s:*", teacherID)
}

// CacheService orchestrates cache operations and related metrics. A nil or
// disabled service turns every call into a no-op miss.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get attempts to retrieve a cached entry. It returns true when the cache was hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	duration := time.Since(start)
	if err != nil {
		s.metrics.RecordCacheOperation(false, duration)
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return false, nil
		}
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	s.metrics.RecordCacheOperation(true, duration)
	return true, nil
}

// Set stores the value in cache.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Delete removes specific keys.
func (s *CacheService) Delete(ctx context.Context, keys ...string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.Delete(ctx, keys...); err != nil {
		s.logger.Warn("cache delete failed", zap.Strings("keys", keys), zap.Error(err))
		return err
	}
	return nil
}

// Invalidate removes cached values for the provided pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	return nil
}

// Version returns the token stored at key, or "0" when none was written yet.
// Version reads do not count towards the hit ratio.
func (s *CacheService) Version(ctx context.Context, key string) (string, error) {
	if !s.Enabled() {
		return "0", nil
	}
	var token string
	if err := s.repo.Get(ctx, key, &token); err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return "0", nil
		}
		s.logger.Warn("cache version read failed", zap.String("key", key), zap.Error(err))
		return "", err
	}
	return token, nil
}

// Bump stores a fresh token at key. Entries addressed with an older token are
// never read again and age out with their own TTL.
func (s *CacheService) Bump(ctx context.Context, key string, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = versionTTL(s.defaultTTL)
	}
	if err := s.repo.Set(ctx, key, uuid.NewString(), ttl); err != nil {
		s.logger.Warn("cache version bump failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

func versionTTL(entryTTL time.Duration) time.Duration {
	if 2*entryTTL > minVersionTTL {
		return 2 * entryTTL
	}
	return minVersionTTL
}
