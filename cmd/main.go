package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/caredash/kpiengine/internal/adapters/http/api"
	"github.com/caredash/kpiengine/internal/adapters/http/swagger"
	"github.com/caredash/kpiengine/internal/adapters/repository"
	"github.com/caredash/kpiengine/internal/adapters/source"
	app "github.com/caredash/kpiengine/internal/app"
	"github.com/caredash/kpiengine/internal/config"
	"github.com/caredash/kpiengine/pkg/logger"
	"github.com/caredash/kpiengine/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 10 * time.Minute
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
	nsPerMillisecond      = 1e6
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// Source and persistence stores share one database.
	src, err := source.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Error(ctx, "failed to open source store", logger.Error(err))
		return
	}
	defer func() { _ = src.Close() }()

	store, err := repository.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Error(ctx, "failed to open repository", logger.Error(err))
		return
	}
	defer func() { _ = store.Close() }()

	day := 24 * time.Hour
	svc := app.New(
		app.WithLogger(log.Named("refresh")),
		app.WithSource(src),
		app.WithStore(store),
		app.WithWeights(cfg.Weights),
		app.WithThresholdRules(cfg.ThresholdRules()),
		app.WithWindows(app.Windows{
			Survey:      time.Duration(cfg.SurveyWindowDays) * day,
			Wait:        time.Duration(cfg.WaitWindowDays) * day,
			NoShow:      time.Duration(cfg.NoShowWindowDays) * day,
			Followup:    time.Duration(cfg.FollowupWindowDays) * day,
			Readmission: time.Duration(cfg.ReadmissionWindowDays) * day,
		}),
		app.WithCycleDeadline(time.Duration(cfg.CycleDeadlineSec)*time.Second),
		app.WithCronSchedule(cfg.CronSchedule),
	)
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	// Background system metrics updater.
	go startSystemMetricsUpdater(ctx)

	// HTTP mux and routes.
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)

	apiServer := api.NewServer(svc, cfg.MaxListLimit)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}

// startSystemMetricsUpdater updates process-level metrics on a ticker.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
