package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"rpc-scanner/internal/domain/entity"
	"rpc-scanner/internal/pkg/apperrors"
)

// IdentifyMethod is the name ProbeOutcomes of the connectivity probe carry.
const IdentifyMethod = "identify"

// fallbackMethod is posted when a GET on the base URL answers with something unrecognisable.
const fallbackMethod = "condenser_api.get_version"

var (
	markerJussi   = []byte("jussi_num")
	markerAppbase = []byte("end of file:stringstream")
	markerLegacy  = []byte("could not call api")
)

// Identify sends a GET to the endpoint base URL and classifies what answered.
// Raw appbase nodes reply with a JSON-RPC parse error, jussi gateways with a status object carrying
// jussi_num, legacy nodes with a "could not call api" page. An HTTP 426 reply triggers a websocket probe.
func (c *Client) Identify(ctx context.Context, endpoint entity.Endpoint) (entity.Identity, error) {
	if err := ctx.Err(); err != nil {
		return entity.Identity{}, contextFailure(endpoint, IdentifyMethod, err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(endpoint.String())
	req.Header.SetMethod(fasthttp.MethodGet)

	if err := c.do(ctx, req, resp); err != nil {
		c.logger.Debug("Identify request failed", zap.Stringer("endpoint", endpoint), zap.Error(err))
		return entity.Identity{}, transportFailure(endpoint, IdentifyMethod, err)
	}

	status := resp.StatusCode()
	if status == fasthttp.StatusUpgradeRequired {
		c.logger.Debug("Endpoint requires upgrade, trying websocket", zap.Stringer("endpoint", endpoint))
		if err := c.checkWebsocket(ctx, endpoint); err != nil {
			return entity.Identity{}, err
		}
		return entity.Identity{ServerType: entity.ServerUnknown, WebsocketOnly: true}, nil
	}

	if serverType, ok := classifyServer(&resp.Header, resp.Body()); ok {
		c.logger.Debug("Identified server",
			zap.Stringer("endpoint", endpoint),
			zap.String("serverType", string(serverType)),
			zap.Int("statusCode", status),
		)
		return entity.Identity{ServerType: serverType}, nil
	}

	// Some deployments reject GET outright; a POST tells whether JSON-RPC is spoken at all.
	if _, err := c.Call(ctx, endpoint, fallbackMethod, nil); err != nil && entity.KindOf(err) != entity.FailureRPCError {
		c.logger.Debug("Identify fallback call failed", zap.Stringer("endpoint", endpoint), zap.Error(err))
		var pe *entity.ProbeError
		if errors.As(err, &pe) {
			pe.Method = IdentifyMethod
		}
		return entity.Identity{}, err
	}
	return entity.Identity{ServerType: entity.ServerUnknown}, nil
}

// classifyServer applies the header and body heuristics. ok is false when nothing matched.
func classifyServer(header *fasthttp.ResponseHeader, body []byte) (entity.ServerType, bool) {
	jussiHeader := false
	header.VisitAll(func(key, _ []byte) {
		if bytes.HasPrefix(bytes.ToLower(key), []byte("x-jussi")) {
			jussiHeader = true
		}
	})

	lower := bytes.ToLower(body)
	switch {
	case jussiHeader, bytes.Contains(body, markerJussi):
		return entity.ServerJussi, true
	case bytes.Contains(lower, markerAppbase):
		return entity.ServerAppbase, true
	case bytes.Contains(lower, markerLegacy):
		return entity.ServerLegacy, true
	default:
		return "", false
	}
}

// checkWebsocket confirms that the ws(s) form of endpoint answers JSON-RPC.
func (c *Client) checkWebsocket(ctx context.Context, endpoint entity.Endpoint) error {
	wsURL := endpoint.WebsocketURL()
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < timeout || timeout <= 0 {
			timeout = until
		}
	}
	if timeout <= 0 {
		return contextFailure(endpoint, IdentifyMethod, context.DeadlineExceeded)
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, _, err := dialer.DialContext(dialCtx, wsURL, nil)
	if err != nil {
		c.logger.Debug("WSS dial failed", zap.String("url", wsURL), zap.Error(err))
		return wsFailure(dialCtx, endpoint, err)
	}
	defer conn.Close()

	payload, err := json.Marshal(jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  fallbackMethod,
		Params:  json.RawMessage("[]"),
	})
	if err != nil {
		return &entity.ProbeError{Kind: entity.FailureTransport, Endpoint: endpoint, Method: IdentifyMethod, Err: err}
	}

	_ = conn.SetWriteDeadline(time.Now().Add(timeout))
	_ = conn.SetReadDeadline(time.Now().Add(timeout))

	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.logger.Debug("WSS write message failed", zap.String("url", wsURL), zap.Error(err))
		return wsFailure(dialCtx, endpoint, err)
	}

	_, message, err := conn.ReadMessage()
	if err != nil {
		c.logger.Debug("WSS read message failed", zap.String("url", wsURL), zap.Error(err))
		return wsFailure(dialCtx, endpoint, err)
	}

	c.logger.Debug("WSS received response", zap.String("url", wsURL), zap.ByteString("body", message))

	var rpcResp JSONRPCResponse
	if err := json.Unmarshal(message, &rpcResp); err != nil || (rpcResp.Result == nil && rpcResp.Error == nil) {
		return &entity.ProbeError{
			Kind:       entity.FailureMalformedResponse,
			Endpoint:   endpoint,
			Method:     IdentifyMethod,
			HTTPStatus: fasthttp.StatusUpgradeRequired,
			Err:        fmt.Errorf("%w: websocket answer is not JSON-RPC: %s", apperrors.ErrMalformedResponse, snippet(message)),
		}
	}
	return nil
}

func wsFailure(ctx context.Context, endpoint entity.Endpoint, err error) *entity.ProbeError {
	pe := &entity.ProbeError{
		Endpoint:   endpoint,
		Method:     IdentifyMethod,
		HTTPStatus: fasthttp.StatusUpgradeRequired,
	}
	var netErr interface{ Timeout() bool }
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		pe.Kind = entity.FailureTimeout
		pe.Err = fmt.Errorf("%w: websocket: %v", apperrors.ErrTimeout, err)
	case strings.Contains(strings.ToLower(err.Error()), "connection refused"):
		pe.Kind = entity.FailureConnectionRefused
		pe.Err = fmt.Errorf("%w: websocket: %v", apperrors.ErrExternalServiceFailure, err)
	default:
		pe.Kind = entity.FailureTransport
		pe.Err = fmt.Errorf("%w: websocket: %v", apperrors.ErrExternalServiceFailure, err)
	}
	return pe
}
