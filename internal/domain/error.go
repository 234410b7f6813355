package domain

import "errors"

var (
	// ErrNoEndpoints means the node list contained no usable endpoint.
	ErrNoEndpoints = errors.New("no endpoints to scan")

	// ErrNodeListUnavailable means the node list could not be read.
	ErrNodeListUnavailable = errors.New("node list unavailable")

	// ErrScanInProgress means a fleet scan is already running and no cached report exists yet.
	ErrScanInProgress = errors.New("scan in progress")

	// ErrCacheFailure means an internal error occurred while interacting with the cache (not a cache miss).
	ErrCacheFailure = errors.New("cache operation failed")
)
