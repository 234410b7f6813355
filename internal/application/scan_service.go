package application

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"rpc-scanner/internal/application/port"
	"rpc-scanner/internal/config"
	"rpc-scanner/internal/domain"
	"rpc-scanner/internal/domain/entity"
	domainRepo "rpc-scanner/internal/domain/repository"
)

// Compile-time check to ensure scanService implements ScanService
var _ port.ScanService = (*scanService)(nil)

// scanService implements port.ScanService over a FleetScanner and a report cache.
type scanService struct {
	nodeRepo   domainRepo.NodeRepository
	cacheRepo  domainRepo.ReportCache
	fleet      *FleetScanner
	logger     *zap.Logger
	cfg        config.CacheConfig
	rootCtx    context.Context
	isScanning *atomic.Bool
}

// NewScanService creates the service and starts the background refresher when configured.
func NewScanService(
	rootCtx context.Context,
	nodeRepo domainRepo.NodeRepository,
	cacheRepo domainRepo.ReportCache,
	fleet *FleetScanner,
	logger *zap.Logger,
	cfg config.CacheConfig,
) port.ScanService {
	svc := &scanService{
		nodeRepo:   nodeRepo,
		cacheRepo:  cacheRepo,
		fleet:      fleet,
		logger:     logger.Named("ScanService"),
		cfg:        cfg,
		rootCtx:    rootCtx,
		isScanning: new(atomic.Bool),
	}

	go svc.startBackgroundRefresher()

	return svc
}

// FleetReport returns the cached fleet report. On a miss it starts a background scan and
// reports domain.ErrScanInProgress.
func (s *scanService) FleetReport(ctx context.Context) ([]entity.ClassifiedResult, error) {
	cached, found, err := s.cacheRepo.GetFleet(ctx)
	if err != nil {
		s.logger.Warn("Cache error when getting fleet report", zap.Error(err))
	}
	if found {
		s.logger.Debug("Cache hit for fleet report")
		return cached, nil
	}

	endpoints, err := s.nodeRepo.ListEndpoints(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list endpoints: %w", err)
	}
	if len(endpoints) == 0 {
		return nil, domain.ErrNoEndpoints
	}

	s.triggerScan(endpoints)
	return nil, fmt.Errorf("%w: scanning %d endpoints", domain.ErrScanInProgress, len(endpoints))
}

// ScanNode scans a single endpoint, using the per-node cache when fresh.
func (s *scanService) ScanNode(ctx context.Context, endpoint entity.Endpoint) (entity.ClassifiedResult, error) {
	cached, found, err := s.cacheRepo.GetNode(ctx, endpoint)
	if err != nil {
		s.logger.Warn("Cache error when getting node result", zap.Stringer("endpoint", endpoint), zap.Error(err))
	}
	if found {
		s.logger.Debug("Cache hit for node", zap.Stringer("endpoint", endpoint))
		return cached, nil
	}

	result := s.fleet.ScanOne(ctx, endpoint)
	if ctx.Err() != nil {
		return result, fmt.Errorf("scan of %s interrupted: %w", endpoint, ctx.Err())
	}

	if err := s.cacheRepo.SetNode(ctx, result, s.cfg.GetTTL()); err != nil {
		s.logger.Error("Failed to cache node result", zap.Stringer("endpoint", endpoint), zap.Error(err))
	}
	return result, nil
}

// triggerScan starts a background fleet scan unless one is already running.
func (s *scanService) triggerScan(endpoints []entity.Endpoint) {
	if !s.isScanning.CompareAndSwap(false, true) {
		s.logger.Debug("Fleet scan already in progress, skipping new scan start")
		return
	}
	s.logger.Info("Starting background fleet scan", zap.Int("endpoints", len(endpoints)))
	go func() {
		defer s.isScanning.Store(false)
		s.scanAndUpdateCache(s.rootCtx, endpoints)
	}()
}

// scanAndUpdateCache scans the fleet and stores the report plus every node result.
func (s *scanService) scanAndUpdateCache(ctx context.Context, endpoints []entity.Endpoint) {
	results := s.fleet.Scan(ctx, endpoints)

	if ctx.Err() != nil {
		s.logger.Warn("Context cancelled before caching results in background task, cache not updated.",
			zap.Error(ctx.Err()),
		)
		return
	}

	ttl := s.cfg.GetTTL()
	if err := s.cacheRepo.SetFleet(ctx, results, ttl); err != nil {
		s.logger.Error("Failed to cache fleet report", zap.Error(err))
	} else {
		s.logger.Info("Cached fleet report", zap.Int("count", len(results)))
	}

	for _, result := range results {
		if err := s.cacheRepo.SetNode(ctx, result, ttl); err != nil {
			s.logger.Warn("Failed to cache node result in background task",
				zap.Stringer("endpoint", result.Endpoint), zap.Error(err),
			)
		}
	}
}

// startBackgroundRefresher rescans the node list on a ticker.
func (s *scanService) startBackgroundRefresher() {
	interval := s.cfg.GetRefreshInterval()
	if interval <= 0 {
		s.logger.Info("Background refresher disabled (interval <= 0)")
		return
	}

	s.logger.Info("Starting background refresher", zap.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			endpoints, err := s.nodeRepo.ListEndpoints(s.rootCtx)
			if err != nil {
				if s.rootCtx.Err() != nil {
					s.logger.Warn("Periodic refresh cancelled due to application shutdown")
				} else {
					s.logger.Error("Error listing endpoints during periodic refresh", zap.Error(err))
				}
				continue
			}
			s.triggerScan(endpoints)

		case <-s.rootCtx.Done():
			s.logger.Info("Background refresher stopping due to context cancellation.")
			return
		}
	}
}
