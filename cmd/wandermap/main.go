package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"wandermap/internal/api"
	"wandermap/pkg/cache"
	"wandermap/pkg/config"
	"wandermap/pkg/db"
	"wandermap/pkg/db/maintenance"
	"wandermap/pkg/geometry"
	"wandermap/pkg/logging"
	"wandermap/pkg/probe"
	"wandermap/pkg/request"
	"wandermap/pkg/session"
	"wandermap/pkg/tracker"
	"wandermap/pkg/version"
)

const defaultConfigPath = "configs/wandermap.yaml"

var (
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
	configPath = flag.String("config", defaultConfigPath, "Path to config file")
)

func main() {
	flag.Parse()
	_ = godotenv.Load(".env")

	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated:", *configPath)
		return
	}

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("WanderMap Started", "version", version.Version, "source", appCfg.Geometry.Source)

	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbConn.Close()

	maintenance.Run(ctx, dbConn, appCfg.DB.CacheMaxAge.D())

	tr := tracker.New()
	reqClient := request.New(cache.NewSQLiteCache(dbConn), tr, appCfg.Request)

	src, err := geometry.NewSource(appCfg.Geometry, reqClient)
	if err != nil {
		return fmt.Errorf("failed to configure geometry source: %w", err)
	}
	src = geometry.Recorded(src, dbConn)

	results := probe.Run(ctx, startupProbes(dbConn, src))
	if err := probe.AnalyzeResults(results); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	opts := session.OptionsFromConfig(appCfg, src)
	opts.Trace = logging.TraceDefault
	mgr := session.NewManager(ctx, opts, appCfg.Server.SessionTTL.D(), appCfg.Server.MaxSessions)
	defer mgr.CloseAll()
	go mgr.Run(ctx, time.Minute)

	return runServer(ctx, appCfg, mgr, tr, dbConn)
}

// startupProbes checks the database and warms the geometry cache. A
// geometry failure is not fatal: sessions render the error message instead.
func startupProbes(d *db.DB, src geometry.Source) []probe.Probe {
	return []probe.Probe{
		{
			Name:     "Database",
			Check:    d.PingContext,
			Critical: true,
		},
		{
			Name:    "Geometry (" + src.Name() + ")",
			Timeout: 2 * time.Minute,
			Check: func(ctx context.Context) error {
				_, err := src.Load(ctx)
				return err
			},
		},
	}
}

func runServer(ctx context.Context, cfg *config.Config, mgr *session.Manager, tr *tracker.Tracker, history api.LoadHistory) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	sessionH := api.NewSessionHandler(mgr, cfg.Export)
	handler := api.NewRouter(api.Handlers{
		Sessions:  sessionH,
		Stream:    api.NewStreamHandler(sessionH),
		Stats:     api.NewStatsHandler(tr, mgr, history),
		Countries: api.NewCountryHandler(cfg.Visits.SearchLimit),
		Shutdown:  shutdownFunc,
	})

	srv := api.NewServer(cfg.Server, handler)
	return runServerLifecycle(ctx, srv, quit)
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
