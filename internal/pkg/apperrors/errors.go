package apperrors

import "errors"

// Standard application errors
var (
	// ErrInvalidInput is returned when configuration or a user supplied value is invalid.
	ErrInvalidInput = errors.New("invalid input provided")

	// ErrExternalServiceFailure is returned when the transport to an RPC endpoint fails.
	ErrExternalServiceFailure = errors.New("external service interaction failed")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("operation timed out")

	// ErrMalformedResponse is returned when an endpoint answers with something that is not a JSON-RPC response.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrRPC is returned when an endpoint answers with a JSON-RPC error object.
	ErrRPC = errors.New("rpc error response")

	// ErrValidation is returned when a response is well formed but fails a capability check.
	ErrValidation = errors.New("response validation failed")

	// ErrInternal is returned for unexpected internal system errors.
	ErrInternal = errors.New("internal system error")
)
