package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"rpc-scanner/internal/domain/entity"
	"rpc-scanner/internal/domain/scoring"
	"rpc-scanner/internal/pkg/apperrors"
)

// EndpointScanner scans a single endpoint.
type EndpointScanner interface {
	Scan(ctx context.Context, endpoint entity.Endpoint) entity.ScanResult
}

// Compile-time check
var _ EndpointScanner = (*NodeScanner)(nil)

// FleetScanner runs an EndpointScanner over many endpoints with bounded concurrency.
type FleetScanner struct {
	scanner    EndpointScanner
	scorer     *scoring.Scorer
	maxWorkers int
	logger     *zap.Logger
	metrics    MetricsRecorder
}

// NewFleetScanner creates a fleet scanner. maxWorkers below one is treated as one.
func NewFleetScanner(
	scanner EndpointScanner,
	scorer *scoring.Scorer,
	maxWorkers int,
	logger *zap.Logger,
	metrics MetricsRecorder,
) *FleetScanner {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	return &FleetScanner{
		scanner:    scanner,
		scorer:     scorer,
		maxWorkers: maxWorkers,
		logger:     logger.Named("FleetScanner"),
		metrics:    recorderOrNop(metrics),
	}
}

// Scan scans every endpoint and returns classified results in input order.
// Endpoints never reached because ctx was cancelled are reported as DEAD.
func (f *FleetScanner) Scan(ctx context.Context, endpoints []entity.Endpoint) []entity.ClassifiedResult {
	if len(endpoints) == 0 {
		return nil
	}

	results := make([]entity.ClassifiedResult, len(endpoints))
	for i, endpoint := range endpoints {
		skipped := entity.NewScanResult(endpoint)
		skipped.ErrReason = "scan cancelled"
		results[i] = entity.ClassifiedResult{ScanResult: skipped, Classification: f.scorer.Classify(skipped)}
	}

	numWorkers := f.maxWorkers
	if len(endpoints) < numWorkers {
		numWorkers = len(endpoints)
	}

	jobChan := make(chan int, len(endpoints))
	var wg sync.WaitGroup

	f.logger.Info("Starting fleet scan", zap.Int("endpoints", len(endpoints)), zap.Int("workers", numWorkers))

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			f.logger.Debug("Starting scan worker", zap.Int("workerID", workerID))
			for index := range jobChan {
				select {
				case <-ctx.Done():
					f.logger.Debug("Context cancelled, scan worker shutting down", zap.Int("workerID", workerID))
					return
				default:
				}
				results[index] = f.ScanOne(ctx, endpoints[index])
			}
			f.logger.Debug("Scan worker finished", zap.Int("workerID", workerID))
		}(w)
	}

	for i := range endpoints {
		jobChan <- i
	}
	close(jobChan)

	wg.Wait()

	f.logger.Info("Fleet scan finished", zap.Int("endpoints", len(endpoints)))
	return results
}

// ScanOne scans and classifies a single endpoint. A panic inside the scan yields an ERROR result.
func (f *FleetScanner) ScanOne(ctx context.Context, endpoint entity.Endpoint) (classified entity.ClassifiedResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("Panic while scanning endpoint",
				zap.Stringer("endpoint", endpoint), zap.Any("panic", r), zap.Stack("stack"),
			)
			failed := entity.NewScanResult(endpoint)
			failed.ScannedAt = start.UTC()
			failed.ErrReason = fmt.Sprintf("%v: %v", apperrors.ErrInternal, r)
			classified = entity.ClassifiedResult{
				ScanResult:     failed,
				Classification: entity.Classification{Score: 0, Status: entity.StatusError},
			}
		}
		f.metrics.ObserveScan(string(classified.Status), classified.Score, time.Since(start))
	}()

	result := f.scanner.Scan(ctx, endpoint)
	classification := f.scorer.Classify(result)

	f.logger.Debug("Endpoint classified",
		zap.Stringer("endpoint", endpoint),
		zap.String("status", string(classification.Status)),
		zap.Int("score", classification.Score),
	)
	return entity.ClassifiedResult{ScanResult: result, Classification: classification}
}
