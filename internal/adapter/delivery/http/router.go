package http

import (
	"time"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	handler "rpc-scanner/internal/adapter/handler/http"
)

// NewRouter sets up the scan API routes and the metrics endpoint.
func NewRouter(h *handler.ScanHandler, metrics fasthttp.RequestHandler, logger *zap.Logger) *router.Router {
	r := router.New()

	logger.Info("Setting up application-specific routes...")
	r.GET("/nodes", h.GetNodes)
	r.GET("/nodes/scan", h.ScanNode)

	logger.Info("Setting up health check route...")
	r.GET("/health", h.Health)

	if metrics != nil {
		r.GET("/metrics", metrics)
	}

	logger.Info("All routes registered.")
	return r
}

// LoggingMiddleware logs each request with its status and duration.
func LoggingMiddleware(next fasthttp.RequestHandler, logger *zap.Logger) fasthttp.RequestHandler {
	logger = logger.Named("HTTP")
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		next(ctx)
		logger.Info("Request handled",
			zap.ByteString("method", ctx.Method()),
			zap.ByteString("uri", ctx.RequestURI()),
			zap.Int("status", ctx.Response.StatusCode()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
