package http

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"rpc-scanner/internal/adapter/report"
	"rpc-scanner/internal/application/port"
	"rpc-scanner/internal/domain"
	"rpc-scanner/internal/domain/entity"
	"rpc-scanner/internal/pkg/apperrors"
)

// ScanHandler serves fleet and single node reports.
type ScanHandler struct {
	service  port.ScanService
	maxScore int
	logger   *zap.Logger
}

// NewScanHandler creates a handler over the scan service. maxScore is echoed in reports.
func NewScanHandler(svc port.ScanService, maxScore int, logger *zap.Logger) *ScanHandler {
	return &ScanHandler{
		service:  svc,
		maxScore: maxScore,
		logger:   logger.Named("ScanHandler"),
	}
}

// GetNodes handles requests for the fleet report.
// Query: sort (any --sort value), reverse (bool), min_score (int).
func (h *ScanHandler) GetNodes(ctx *fasthttp.RequestCtx) {
	args := ctx.QueryArgs()

	ordering, err := report.ParseOrdering(string(args.Peek("sort")))
	if err != nil {
		h.writeError(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}
	minScore := 0
	if raw := args.Peek("min_score"); len(raw) > 0 {
		minScore, err = strconv.Atoi(string(raw))
		if err != nil {
			h.writeError(ctx, fasthttp.StatusBadRequest, "Bad Request: Invalid min_score")
			return
		}
	}

	results, err := h.service.FleetReport(ctx)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrScanInProgress):
			h.logger.Debug("Fleet report not ready", zap.Error(err))
			h.writeJSON(ctx, fasthttp.StatusAccepted, map[string]string{"status": "scanning"})
		case errors.Is(err, domain.ErrNoEndpoints):
			h.writeError(ctx, fasthttp.StatusNotFound, "Not Found: node list is empty")
		default:
			h.logger.Error("Failed to get fleet report", zap.Error(err))
			h.writeError(ctx, fasthttp.StatusInternalServerError, "Internal Server Error")
		}
		return
	}

	sorted := report.Sort(results, ordering, args.GetBool("reverse"))
	out := make([]report.NodeReport, 0, len(sorted))
	for _, r := range sorted {
		if r.Score < minScore {
			continue
		}
		out = append(out, report.NewNodeReport(r, h.maxScore))
	}
	h.writeJSON(ctx, fasthttp.StatusOK, out)
}

// ScanNode handles requests for a single node scan: /nodes/scan?node=<url>.
func (h *ScanHandler) ScanNode(ctx *fasthttp.RequestCtx) {
	endpoint, err := entity.NewEndpoint(string(ctx.QueryArgs().Peek("node")))
	if err != nil {
		h.logger.Debug("Rejected node parameter", zap.Error(err))
		h.writeError(ctx, fasthttp.StatusBadRequest, "Bad Request: "+err.Error())
		return
	}

	result, err := h.service.ScanNode(ctx, endpoint)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidInput) {
			h.writeError(ctx, fasthttp.StatusBadRequest, "Bad Request: "+err.Error())
			return
		}
		h.logger.Error("Failed to scan node", zap.Stringer("endpoint", endpoint), zap.Error(err))
		h.writeError(ctx, fasthttp.StatusServiceUnavailable, "Service Unavailable")
		return
	}

	ctx.Response.Header.Set("X-Node-Status", string(result.Status))
	h.writeJSON(ctx, fasthttp.StatusOK, report.NewNodeReport(result, h.maxScore))
}

// Health reports that the API process is up.
func (h *ScanHandler) Health(ctx *fasthttp.RequestCtx) {
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBodyString("OK")
}

func (h *ScanHandler) writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	if err := json.NewEncoder(ctx).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
		// Response already started, can't set error code
	}
}

func (h *ScanHandler) writeError(ctx *fasthttp.RequestCtx, status int, msg string) {
	h.writeJSON(ctx, status, map[string]string{"error": msg})
}
