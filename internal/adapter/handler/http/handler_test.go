package http

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"rpc-scanner/internal/adapter/report"
	"rpc-scanner/internal/domain"
	"rpc-scanner/internal/domain/entity"
)

type stubService struct {
	fleet    []entity.ClassifiedResult
	fleetErr error
	scanned  entity.Endpoint
	scanErr  error
}

func (s *stubService) FleetReport(context.Context) ([]entity.ClassifiedResult, error) {
	return s.fleet, s.fleetErr
}

func (s *stubService) ScanNode(_ context.Context, endpoint entity.Endpoint) (entity.ClassifiedResult, error) {
	s.scanned = endpoint
	r := entity.NewScanResult(endpoint)
	r.Connected = true
	return entity.ClassifiedResult{
		ScanResult:     r,
		Classification: entity.Classification{Score: 45, Status: entity.StatusGood},
	}, s.scanErr
}

func classified(url string, score int, status entity.Status) entity.ClassifiedResult {
	return entity.ClassifiedResult{
		ScanResult:     entity.NewScanResult(entity.MustEndpoint(url)),
		Classification: entity.Classification{Score: score, Status: status},
	}
}

func request(uri string) *fasthttp.RequestCtx {
	var ctx fasthttp.RequestCtx
	ctx.Request.SetRequestURI(uri)
	return &ctx
}

func TestGetNodes(t *testing.T) {
	svc := &stubService{fleet: []entity.ClassifiedResult{
		classified("https://low.example.com", 5, entity.StatusBad),
		classified("https://high.example.com", 50, entity.StatusPerfect),
		classified("https://mid.example.com", 30, entity.StatusUnstable),
	}}
	h := NewScanHandler(svc, 50, zap.NewNop())

	ctx := request("/nodes?min_score=10")
	h.GetNodes(ctx)

	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	var got []report.NodeReport
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "https://high.example.com", got[0].Node)
	assert.Equal(t, "https://mid.example.com", got[1].Node)
	assert.Equal(t, 50, got[0].MaxScore)
}

func TestGetNodesErrors(t *testing.T) {
	tests := []struct {
		name   string
		uri    string
		err    error
		status int
	}{
		{"scan in progress", "/nodes", fmt.Errorf("%w: scanning 3 endpoints", domain.ErrScanInProgress), fasthttp.StatusAccepted},
		{"empty list", "/nodes", domain.ErrNoEndpoints, fasthttp.StatusNotFound},
		{"list failure", "/nodes", domain.ErrNodeListUnavailable, fasthttp.StatusInternalServerError},
		{"bad sort", "/nodes?sort=colour", nil, fasthttp.StatusBadRequest},
		{"bad min score", "/nodes?min_score=lots", nil, fasthttp.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewScanHandler(&stubService{fleetErr: tt.err}, 50, zap.NewNop())
			ctx := request(tt.uri)
			h.GetNodes(ctx)
			assert.Equal(t, tt.status, ctx.Response.StatusCode())
			assert.Equal(t, "application/json", string(ctx.Response.Header.ContentType()))
		})
	}
}

func TestScanNode(t *testing.T) {
	svc := &stubService{}
	h := NewScanHandler(svc, 50, zap.NewNop())

	ctx := request("/nodes/scan?node=https://api.example.com/")
	h.ScanNode(ctx)

	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, entity.Endpoint("https://api.example.com"), svc.scanned)
	assert.Equal(t, "GOOD", string(ctx.Response.Header.Peek("X-Node-Status")))

	var got report.NodeReport
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &got))
	assert.Equal(t, 45, got.Score)
}

func TestScanNodeRejectsBadInput(t *testing.T) {
	svc := &stubService{}
	h := NewScanHandler(svc, 50, zap.NewNop())

	for _, uri := range []string{"/nodes/scan", "/nodes/scan?node=ftp://x.example.com"} {
		ctx := request(uri)
		h.ScanNode(ctx)
		assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode(), uri)
	}
	assert.Empty(t, svc.scanned)

	svc.scanErr = context.DeadlineExceeded
	ctx := request("/nodes/scan?node=https://api.example.com")
	h.ScanNode(ctx)
	assert.Equal(t, fasthttp.StatusServiceUnavailable, ctx.Response.StatusCode())
}
