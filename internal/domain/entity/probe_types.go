package entity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"rpc-scanner/internal/pkg/apperrors"
)

// FailureKind classifies why a single probe call failed.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureConnectionRefused
	FailureTimeout
	FailureTransport
	FailureMalformedResponse
	FailureRPCError
)

var failureKindNames = map[FailureKind]string{
	FailureNone:              "NONE",
	FailureConnectionRefused: "CONNECTION_REFUSED",
	FailureTimeout:           "TIMEOUT",
	FailureTransport:         "TRANSPORT_ERROR",
	FailureMalformedResponse: "MALFORMED_RESPONSE",
	FailureRPCError:          "RPC_ERROR",
}

func (k FailureKind) String() string {
	if name, ok := failureKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("FailureKind(%d)", int(k))
}

// MarshalText lets reports render the kind by name.
func (k FailureKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Retryable reports whether a failure of this kind may succeed on another attempt.
// RPC errors are authoritative answers from the endpoint and are never retried.
func (k FailureKind) Retryable() bool {
	return k != FailureNone && k != FailureRPCError
}

// RPCErrorClass sub-classifies JSON-RPC error objects returned by graphene based nodes.
type RPCErrorClass string

const (
	RPCErrorGeneric             RPCErrorClass = "generic"
	RPCErrorMethodNotSupported  RPCErrorClass = "method_not_supported"
	RPCErrorInvalidArguments    RPCErrorClass = "invalid_arguments"
	RPCErrorInvalidArgumentType RPCErrorClass = "invalid_argument_type"
)

// ClassifyRPCMessage maps a node error message onto an RPCErrorClass.
func ClassifyRPCMessage(msg string) RPCErrorClass {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "method not found"):
		return RPCErrorMethodNotSupported
	case strings.Contains(m, "invalid cast from"), strings.Contains(m, "bad cast:"):
		return RPCErrorInvalidArgumentType
	case strings.Contains(m, "invalid parameters"),
		strings.Contains(m, "expected #s argument"),
		strings.Contains(m, "assert exception:args.size()"):
		return RPCErrorInvalidArguments
	default:
		return RPCErrorGeneric
	}
}

// ProbeError is the typed failure returned by a ProbeClient.
type ProbeError struct {
	Kind       FailureKind
	Endpoint   Endpoint
	Method     string
	HTTPStatus int
	RPCCode    int
	RPCMessage string
	RPCClass   RPCErrorClass
	Err        error
}

func (e *ProbeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s calling %s on %s", e.Kind, e.Method, e.Endpoint)
	if e.HTTPStatus != 0 {
		fmt.Fprintf(&b, " (http %d)", e.HTTPStatus)
	}
	if e.Kind == FailureRPCError {
		fmt.Fprintf(&b, ": server error code %d: %s", e.RPCCode, e.RPCMessage)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// KindOf extracts the FailureKind carried by err. Errors that are not ProbeErrors count as transport failures.
func KindOf(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	var pe *ProbeError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, apperrors.ErrTimeout) {
		return FailureTimeout
	}
	return FailureTransport
}

// ProbeOutcome is the result of one RetryingProbe execution.
type ProbeOutcome struct {
	Name     string        `json:"name" yaml:"name"`
	Kind     FailureKind   `json:"kind" yaml:"kind"`
	Attempts int           `json:"attempts" yaml:"attempts"`
	Elapsed  time.Duration `json:"elapsed" yaml:"elapsed"`
	Err      error         `json:"-" yaml:"-"`
}

// Succeeded reports whether the probe got a usable answer.
func (o ProbeOutcome) Succeeded() bool {
	return o.Kind == FailureNone
}

// Responded reports whether the endpoint answered at all, including with an RPC error.
func (o ProbeOutcome) Responded() bool {
	return o.Kind == FailureNone || o.Kind == FailureRPCError
}

// Retries is the number of attempts beyond the first.
func (o ProbeOutcome) Retries() int {
	if o.Attempts <= 1 {
		return 0
	}
	return o.Attempts - 1
}

// ErrorString returns the failure message or an empty string.
func (o ProbeOutcome) ErrorString() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
