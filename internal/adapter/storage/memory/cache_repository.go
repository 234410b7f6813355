package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"rpc-scanner/internal/config"
	"rpc-scanner/internal/domain"
	"rpc-scanner/internal/domain/entity"
	domainRepo "rpc-scanner/internal/domain/repository"
)

// Compile-time check
var _ domainRepo.ReportCache = (*CacheRepository)(nil)

// Cache keys
const (
	fleetReportKey = "fleet_report_v1"
	nodeKeyPrefix  = "node_report_v1_"
)

// CacheRepository implements domainRepo.ReportCache using the go-cache in-memory library.
type CacheRepository struct {
	cache      *cache.Cache
	logger     *zap.Logger
	defaultTTL time.Duration
}

// NewCacheRepository creates a new in-memory report cache.
func NewCacheRepository(cfg config.CacheConfig, logger *zap.Logger) *CacheRepository {
	defaultExpiration := cfg.GetTTL()
	cleanupInterval := cfg.GetCleanupInterval()

	c := cache.New(defaultExpiration, cleanupInterval)
	logger.Info(
		"Initialized go-cache for memory storage",
		zap.Duration("defaultExpiration", defaultExpiration),
		zap.Duration("cleanupInterval", cleanupInterval),
	)

	return &CacheRepository{
		cache:      c,
		logger:     logger.Named("MemoryCacheStorage"),
		defaultTTL: defaultExpiration,
	}
}

// GetFleet retrieves the cached fleet report, returning found status.
func (r *CacheRepository) GetFleet(_ context.Context) ([]entity.ClassifiedResult, bool, error) {
	x, found := r.cache.Get(fleetReportKey)
	if !found {
		r.logger.Debug("Memory cache miss", zap.String("key", fleetReportKey))
		return nil, false, nil
	}
	results, ok := x.([]entity.ClassifiedResult)
	if !ok {
		return nil, false, r.typeMismatch(fleetReportKey, x)
	}
	r.logger.Debug("Memory cache hit", zap.String("key", fleetReportKey))
	out := make([]entity.ClassifiedResult, len(results))
	copy(out, results)
	return out, true, nil
}

// SetFleet caches the fleet report with a given TTL.
func (r *CacheRepository) SetFleet(_ context.Context, results []entity.ClassifiedResult, ttl time.Duration) error {
	stored := make([]entity.ClassifiedResult, len(results))
	copy(stored, results)
	ttl = r.ttlOrDefault(ttl)
	r.cache.Set(fleetReportKey, stored, ttl)
	r.logger.Debug("Memory cache set", zap.String("key", fleetReportKey), zap.Duration("ttl", ttl))
	return nil
}

// GetNode retrieves the cached result of one endpoint, returning found status.
func (r *CacheRepository) GetNode(_ context.Context, endpoint entity.Endpoint) (entity.ClassifiedResult, bool, error) {
	key := nodeKey(endpoint)
	x, found := r.cache.Get(key)
	if !found {
		r.logger.Debug("Memory cache miss", zap.String("key", key))
		return entity.ClassifiedResult{}, false, nil
	}
	result, ok := x.(entity.ClassifiedResult)
	if !ok {
		return entity.ClassifiedResult{}, false, r.typeMismatch(key, x)
	}
	r.logger.Debug("Memory cache hit", zap.String("key", key))
	return result, true, nil
}

// SetNode caches the result of one endpoint with a given TTL.
func (r *CacheRepository) SetNode(_ context.Context, result entity.ClassifiedResult, ttl time.Duration) error {
	key := nodeKey(result.Endpoint)
	ttl = r.ttlOrDefault(ttl)
	r.cache.Set(key, result, ttl)
	r.logger.Debug("Memory cache set", zap.String("key", key), zap.Duration("ttl", ttl))
	return nil
}

func (r *CacheRepository) ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	if r.defaultTTL > 0 {
		return r.defaultTTL
	}
	return cache.DefaultExpiration
}

func (r *CacheRepository) typeMismatch(key string, x interface{}) error {
	r.logger.Warn(
		"Memory cache data type mismatch for key",
		zap.String("key", key), zap.String("type", fmt.Sprintf("%T", x)),
	)
	return fmt.Errorf("%w: unexpected %T under %s", domain.ErrCacheFailure, x, key)
}

func nodeKey(endpoint entity.Endpoint) string {
	return nodeKeyPrefix + endpoint.String()
}
