package service

import (
	"context"
	"encoding/json"

	"rpc-scanner/internal/domain/entity"
)

// ProbeClient issues single RPC calls against an endpoint. It never retries.
// Every failure it returns is an *entity.ProbeError.
type ProbeClient interface {
	// Call performs one JSON-RPC request and returns the raw "result" member.
	Call(ctx context.Context, endpoint entity.Endpoint, method string, params json.RawMessage) (json.RawMessage, error)

	// Identify issues the "is this an RPC endpoint at all" request and reports what kind of server answered.
	Identify(ctx context.Context, endpoint entity.Endpoint) (entity.Identity, error)
}
