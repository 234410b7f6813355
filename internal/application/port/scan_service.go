package port

import (
	"context"

	"rpc-scanner/internal/domain/entity"
)

// ScanService defines the API facing operations over scan reports.
type ScanService interface {
	// FleetReport returns the classified report of the configured node list, from cache when fresh.
	FleetReport(ctx context.Context) ([]entity.ClassifiedResult, error)

	// ScanNode scans one endpoint, returning a cached result when fresh.
	ScanNode(ctx context.Context, endpoint entity.Endpoint) (entity.ClassifiedResult, error)
}
