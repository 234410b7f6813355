package repository

import (
	"context"
	"time"

	"rpc-scanner/internal/domain/entity"
)

// ReportCache keeps recent classified results in memory for the API.
type ReportCache interface {
	// GetFleet retrieves the cached report of the whole node list.
	GetFleet(ctx context.Context) ([]entity.ClassifiedResult, bool, error)

	// SetFleet stores the report of the whole node list with a TTL.
	SetFleet(ctx context.Context, results []entity.ClassifiedResult, ttl time.Duration) error

	// GetNode retrieves the cached result of a single endpoint.
	GetNode(ctx context.Context, endpoint entity.Endpoint) (entity.ClassifiedResult, bool, error)

	// SetNode stores the result of a single endpoint with a TTL.
	SetNode(ctx context.Context, result entity.ClassifiedResult, ttl time.Duration) error
}
