// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/vessel-monitor/backend/internal/export"
	"github.com/vessel-monitor/backend/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	BaseContext  context.Context
	Reader       FleetReader
	Pipeline     Ingestor
	Params       ParamsFunc
	Store        storage.Store
	CSV          *export.CSVSink
	Metrics      http.Handler
	PushInterval time.Duration
	Version      string
	Log          *zap.Logger
}

// Handlers holds all handler instances
type Handlers struct {
	Health  HealthHandler
	Vessels VesselHandler
	Ingest  IngestHandler
	Export  ExportHandler
	Push    PushHandler
	Metrics http.Handler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	ctx := deps.BaseContext
	if ctx == nil {
		ctx = context.Background()
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	return &Handlers{
		Health:  NewHealthHandler(deps.Version, deps.Pipeline.State),
		Vessels: NewVesselHandler(deps.Reader),
		Ingest:  NewIngestHandler(ctx, deps.Pipeline, deps.Params, log.With(zap.String("component", "api"))),
		Export:  NewExportHandler(deps.Store, deps.CSV, deps.Reader),
		Push:    NewWebSocketHandler(deps.Reader, deps.Pipeline.State, deps.PushInterval, log.With(zap.String("component", "push"))),
		Metrics: deps.Metrics,
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	apiGroup := e.Group("/api")

	// Health check
	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// Fleet snapshot
	apiGroup.GET("/vessels", handlers.Vessels.HandleListVessels)
	apiGroup.GET("/vessels/msgpack", handlers.Vessels.HandleListVesselsMsgpack)
	apiGroup.GET("/vessels/:id", handlers.Vessels.HandleGetVessel)

	// Ingestion control
	apiGroup.GET("/stats", handlers.Ingest.HandleStats)
	apiGroup.POST("/ingest/start", handlers.Ingest.HandleStart)
	apiGroup.POST("/ingest/stop", handlers.Ingest.HandleStop)

	// Exports
	apiGroup.GET("/exports", handlers.Export.HandleListExports)
	apiGroup.POST("/exports", handlers.Export.HandleCreateExport)
	apiGroup.GET("/exports/:id/download", handlers.Export.HandleDownloadExport)

	// WebSocket push
	apiGroup.GET("/ws/vessels", handlers.Push.HandleWebSocket)

	if handlers.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(handlers.Metrics))
	}
}

// MiddlewareOptions configures SetupMiddleware
type MiddlewareOptions struct {
	RequestLogging bool
	EnableCORS     bool
	AllowOrigins   string
	BodyLimit      string
	ExposeDetails  bool
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, opts MiddlewareOptions) {
	// Use custom error handler
	e.HTTPErrorHandler = ErrorHandler
	exposeDetails = opts.ExposeDetails

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !opts.RequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return path == "/api/health" || path == "/metrics" || strings.HasPrefix(path, "/api/ws/")
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	if opts.BodyLimit != "" {
		e.Use(middleware.BodyLimit(opts.BodyLimit))
	}

	if opts.EnableCORS {
		origins := strings.Split(opts.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}
}
