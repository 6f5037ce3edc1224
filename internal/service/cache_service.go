package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/repository"
)

type cacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type cacheObserver interface {
	ObserveCache(result string)
}

// CacheService fronts read-only listings. Cache failures are logged and treated
// as misses; workflow decisions never read from it.
type CacheService struct {
	store   cacheStore
	metrics cacheObserver
	ttl     time.Duration
	logger  *zap.Logger
}

// NewCacheService constructs a cache service. A nil store disables caching.
func NewCacheService(store cacheStore, metrics cacheObserver, ttl time.Duration, logger *zap.Logger) *CacheService {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{store: store, metrics: metrics, ttl: ttl, logger: logger}
}

// Enabled reports whether a backing store is configured.
func (s *CacheService) Enabled() bool {
	return s != nil && s.store != nil
}

// Get loads key into dest and reports a hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}
	err := s.store.Get(ctx, key, dest)
	switch {
	case err == nil:
		s.observe("hit")
		return true
	case errors.Is(err, repository.ErrCacheMiss):
		s.observe("miss")
	default:
		s.observe("error")
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	}
	return false
}

// Set stores value under key with the configured TTL.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}) {
	if !s.Enabled() {
		return
	}
	if err := s.store.Set(ctx, key, value, s.ttl); err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate drops every key matching pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) {
	if !s.Enabled() {
		return
	}
	if err := s.store.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
	}
}

func (s *CacheService) observe(result string) {
	if s.metrics != nil {
		s.metrics.ObserveCache(result)
	}
}
