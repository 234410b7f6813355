package repository

import (
	"context"

	"rpc-scanner/internal/domain/entity"
)

// NodeRepository provides the list of endpoints to scan.
type NodeRepository interface {
	// ListEndpoints returns endpoints in the order they were configured.
	ListEndpoints(ctx context.Context) ([]entity.Endpoint, error)
}
