package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"rpc-scanner/internal/domain/entity"
	domainService "rpc-scanner/internal/domain/service"
	"rpc-scanner/internal/pkg/apperrors"
)

// Compile-time check
var _ domainService.ProbeClient = (*Client)(nil)

const userAgent = "rpc-scanner/1.0"

// Client implements domainService.ProbeClient over fasthttp.
type Client struct {
	client  *fasthttp.Client
	timeout time.Duration
	logger  *zap.Logger
	nextID  atomic.Uint64
}

// NewClient creates a ProbeClient whose calls are abandoned after timeout.
func NewClient(timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		client: &fasthttp.Client{
			Name:                userAgent,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: 30 * time.Second,
		},
		timeout: timeout,
		logger:  logger.Named("RPCClient"),
	}
}

// jsonRPCRequest is the envelope of one call.
type jsonRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// JSONRPCResponse defines the basic structure for a JSON-RPC response.
type JSONRPCResponse struct {
	ID      interface{}     `json:"id"`
	Jsonrpc string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError defines the structure for a JSON-RPC error.
type JSONRPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Call performs one JSON-RPC POST against endpoint.
func (c *Client) Call(
	ctx context.Context,
	endpoint entity.Endpoint,
	method string,
	params json.RawMessage,
) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, contextFailure(endpoint, method, err)
	}

	if len(params) == 0 {
		params = json.RawMessage("[]")
	}
	payload, err := json.Marshal(jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, &entity.ProbeError{
			Kind:     entity.FailureTransport,
			Endpoint: endpoint,
			Method:   method,
			Err:      fmt.Errorf("%w: encode request: %v", apperrors.ErrInvalidInput, err),
		}
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(endpoint.String())
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(payload)

	if err := c.do(ctx, req, resp); err != nil {
		c.logger.Debug("RPC request failed",
			zap.Stringer("endpoint", endpoint),
			zap.String("method", method),
			zap.Error(err),
		)
		return nil, transportFailure(endpoint, method, err)
	}

	return decodeResponse(endpoint, method, resp.StatusCode(), resp.Body())
}

// do sends req with the client timeout, shortened to the context deadline when that comes first.
func (c *Client) do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		requestTimeout := time.Until(deadline)
		if requestTimeout <= 0 {
			return fmt.Errorf("%w: %v", apperrors.ErrTimeout, context.DeadlineExceeded)
		}
		if timeout <= 0 || requestTimeout < timeout {
			timeout = requestTimeout
		}
	}

	if timeout <= 0 {
		c.logger.Warn("No effective timeout specified for fasthttp request, using default Do",
			zap.ByteString("url", req.RequestURI()),
		)
		return c.client.Do(req, resp)
	}
	return c.client.DoTimeout(req, resp, timeout)
}

// decodeResponse turns an HTTP answer into a result or a typed failure.
func decodeResponse(endpoint entity.Endpoint, method string, status int, body []byte) (json.RawMessage, error) {
	var rpcResp JSONRPCResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		kind := entity.FailureMalformedResponse
		if status < 200 || status > 299 {
			kind = entity.FailureTransport
		}
		return nil, &entity.ProbeError{
			Kind:       kind,
			Endpoint:   endpoint,
			Method:     method,
			HTTPStatus: status,
			Err:        fmt.Errorf("%w: %v (body: %s)", apperrors.ErrMalformedResponse, err, snippet(body)),
		}
	}

	if rpcResp.Error != nil {
		return nil, &entity.ProbeError{
			Kind:       entity.FailureRPCError,
			Endpoint:   endpoint,
			Method:     method,
			HTTPStatus: status,
			RPCCode:    rpcResp.Error.Code,
			RPCMessage: rpcResp.Error.Message,
			RPCClass:   entity.ClassifyRPCMessage(rpcResp.Error.Message),
			Err:        apperrors.ErrRPC,
		}
	}

	if status < 200 || status > 299 {
		return nil, &entity.ProbeError{
			Kind:       entity.FailureTransport,
			Endpoint:   endpoint,
			Method:     method,
			HTTPStatus: status,
			Err:        fmt.Errorf("%w: non-OK http status", apperrors.ErrExternalServiceFailure),
		}
	}

	if rpcResp.Result == nil {
		return nil, &entity.ProbeError{
			Kind:       entity.FailureMalformedResponse,
			Endpoint:   endpoint,
			Method:     method,
			HTTPStatus: status,
			Err:        fmt.Errorf("%w: response has neither result nor error", apperrors.ErrMalformedResponse),
		}
	}

	return rpcResp.Result, nil
}

// transportFailure classifies an error returned by fasthttp.
func transportFailure(endpoint entity.Endpoint, method string, err error) *entity.ProbeError {
	pe := &entity.ProbeError{Endpoint: endpoint, Method: method}

	var netErr net.Error
	switch {
	case errors.Is(err, fasthttp.ErrTimeout),
		errors.Is(err, fasthttp.ErrDialTimeout),
		errors.Is(err, apperrors.ErrTimeout),
		errors.As(err, &netErr) && netErr.Timeout():
		pe.Kind = entity.FailureTimeout
		pe.Err = fmt.Errorf("%w: %v", apperrors.ErrTimeout, err)
	case errors.Is(err, syscall.ECONNREFUSED),
		strings.Contains(strings.ToLower(err.Error()), "connection refused"):
		pe.Kind = entity.FailureConnectionRefused
		pe.Err = fmt.Errorf("%w: %v", apperrors.ErrExternalServiceFailure, err)
	default:
		pe.Kind = entity.FailureTransport
		pe.Err = fmt.Errorf("%w: %v", apperrors.ErrExternalServiceFailure, err)
	}
	return pe
}

// contextFailure reports a call that was not attempted because ctx was already done.
func contextFailure(endpoint entity.Endpoint, method string, err error) *entity.ProbeError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &entity.ProbeError{
			Kind:     entity.FailureTimeout,
			Endpoint: endpoint,
			Method:   method,
			Err:      fmt.Errorf("%w: %v", apperrors.ErrTimeout, err),
		}
	}
	return &entity.ProbeError{
		Kind:     entity.FailureTransport,
		Endpoint: endpoint,
		Method:   method,
		Err:      err,
	}
}

func snippet(body []byte) string {
	const limit = 120
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
