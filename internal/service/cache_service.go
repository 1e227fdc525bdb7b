package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/campus-noticeboard/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type cacheMetrics interface {
	RecordCacheOperation(hit bool, duration time.Duration)
	ObserveCacheWrite(duration time.Duration)
}

const noticeCachePattern = "notices:*"

// CacheService wraps listing cache reads and writes with metrics. Errors never reach callers
// as failures of the surrounding request.
type CacheService struct {
	repo       CacheRepository
	metrics    cacheMetrics
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
	// generation advances on every invalidation.
	generation atomic.Uint64
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics cacheMetrics, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
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

// Get loads key into dest and reports whether it was a hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	hit := err == nil
	if s.metrics != nil {
		s.metrics.RecordCacheOperation(hit, time.Since(start))
	}
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	}
	return hit
}

// Set stores value, falling back to the default TTL.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if !s.Enabled() {
		return
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	if s.metrics != nil {
		s.metrics.ObserveCacheWrite(time.Since(start))
	}
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Generation returns the current invalidation generation. Read it before loading a
// listing and pass it to SetIfGeneration.
func (s *CacheService) Generation() uint64 {
	if s == nil {
		return 0
	}
	return s.generation.Load()
}

// SetIfGeneration stores value only when no invalidation happened since generation was read,
// so a listing loaded before a write is not cached after that write.
func (s *CacheService) SetIfGeneration(ctx context.Context, generation uint64, key string, value interface{}, ttl time.Duration) {
	if !s.Enabled() || s.generation.Load() != generation {
		return
	}
	s.Set(ctx, key, value, ttl)
}

// InvalidateNotices drops every cached notice listing.
func (s *CacheService) InvalidateNotices(ctx context.Context) {
	if !s.Enabled() {
		return
	}
	s.generation.Add(1)
	if err := s.repo.DeleteByPattern(ctx, noticeCachePattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", noticeCachePattern), zap.Error(err))
	}
}

// listingKey derives a stable key from the listing scope and its parameters.
func listingKey(scope string, parts ...interface{}) string {
	raw := make([]string, len(parts))
	for i, p := range parts {
		raw[i] = fmt.Sprint(p)
	}
	sum := sha1.Sum([]byte(strings.Join(raw, "|")))
	return "notices:" + scope + ":" + hex.EncodeToString(sum[:8])
}
