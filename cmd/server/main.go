package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vessel-monitor/backend/internal/api"
	"github.com/vessel-monitor/backend/internal/config"
	"github.com/vessel-monitor/backend/internal/export"
	"github.com/vessel-monitor/backend/internal/fleet"
	"github.com/vessel-monitor/backend/internal/ingest"
	"github.com/vessel-monitor/backend/internal/logging"
	"github.com/vessel-monitor/backend/internal/metrics"
	"github.com/vessel-monitor/backend/internal/storage"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Get the executable's directory for config resolution
	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}
	exeDir := filepath.Dir(exePath)

	configPath := flag.String("config", filepath.Join(exeDir, "config.yaml"), "path to the YAML config file")
	flag.Parse()

	if err := config.LoadEnvFiles(".env", filepath.Join(exeDir, ".env")); err != nil {
		fmt.Printf("Failed to load env file: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Advanced.LogLevel, cfg.Advanced.LogFormat)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, *configPath, log); err != nil {
		log.Error("server exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, configPath string, log *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()
	state := fleet.New()
	pipeline := ingest.New(state,
		ingest.WithLogger(logging.Component(log, "ingest")),
		ingest.WithMetrics(m),
	)

	params := func() (ingest.Params, error) {
		key, err := cfg.ResolveAPIKey()
		if err != nil {
			return ingest.Params{}, err
		}
		return cfg.IngestParams(key), nil
	}

	if cfg.Feed.AutoStart {
		p, err := params()
		switch {
		case errors.Is(err, config.ErrNoAPIKey):
			log.Warn("no feed API key configured; ingestion waits for POST /api/ingest/start",
				zap.String("env", cfg.Feed.APIKeyEnv), zap.String("file", cfg.Feed.APIKeyFile))
		case err != nil:
			return err
		default:
			if err := pipeline.Start(ctx, p); err != nil {
				return fmt.Errorf("starting ingestion: %w", err)
			}
		}
	}

	// Initialize storage and exports
	store, err := storage.NewLocalStore(cfg.GetExportDir())
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	var sinks []export.Sink
	var csvSink *export.CSVSink
	if cfg.Export.CSV {
		csvSink = export.NewCSVSink(store, cfg.Export.KeepFiles, logging.Component(log, "export"))
		sinks = append(sinks, csvSink)
	}
	if cfg.Export.DuckDB {
		duck, err := export.NewDuckDBSink(cfg.Export.DuckDBPath, logging.Component(log, "export"))
		if err != nil {
			return fmt.Errorf("opening duckdb: %w", err)
		}
		defer duck.Close()
		sinks = append(sinks, duck)
	}
	if !cfg.Export.Enabled {
		sinks = nil
	}
	scheduler := export.NewScheduler(pipeline.Reader(), cfg.GetExportInterval(), logging.Component(log, "export"), m, sinks...)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	api.SetupMiddleware(e, api.MiddlewareOptions{
		RequestLogging: cfg.Advanced.EnableRequestLogging,
		EnableCORS:     cfg.Server.EnableCORS,
		AllowOrigins:   cfg.Server.AllowOrigins,
		BodyLimit:      cfg.Server.BodyLimit,
		ExposeDetails:  Version == "dev",
	})

	handlers := api.NewHandlers(&api.Dependencies{
		BaseContext:  ctx,
		Reader:       pipeline.Reader(),
		Pipeline:     pipeline,
		Params:       params,
		Store:        store,
		CSV:          csvSink,
		Metrics:      m.Handler(),
		PushInterval: cfg.GetPushInterval(),
		Version:      Version,
		Log:          log,
	})
	api.RegisterRoutes(e, handlers)

	// Configure server with settings from the YAML config
	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(cfg, configPath)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return scheduler.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if pipeline.Status().Started {
			pipeline.Stop()
			if err := pipeline.Wait(shutdownCtx); err != nil {
				log.Warn("ingestion did not stop in time", zap.Error(err))
			}
		}
		return e.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func printBanner(cfg *config.AppConfig, configPath string) {
	exports := "disabled"
	if cfg.Export.Enabled {
		exports = fmt.Sprintf("every %s (csv=%t, duckdb=%t)", cfg.GetExportInterval(), cfg.Export.CSV, cfg.Export.DuckDB)
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Vessel Monitor Server                           ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Feed:      %-46s║\n", cfg.Feed.URL)
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.GetDataDir())
	fmt.Printf("║  Exports:   %-46s║\n", exports)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
}
