// IDRO backend: the alert, camp and analytics API used by the responder
// console, backed by SQLite.
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

	"github.com/idro/idro/internal/config"
	"github.com/idro/idro/internal/database"
	"github.com/idro/idro/internal/database/seed"
	"github.com/idro/idro/internal/server"
	"github.com/idro/idro/internal/services/demand"
)

// Build information (set via ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		migrateOnly = flag.Bool("migrate-only", false, "Run migrations and exit")
		seedData    = flag.Bool("seed", false, "Generate demo alerts and camps, then exit")
		showVersion = flag.Bool("version", false, "Show version and exit")
		debugMode   = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("IDRO backend version %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *migrateOnly, *seedData, *debugMode); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, migrateOnly, seedData, debugMode bool) error {
	cfg, cfgPath, err := config.Load(configPath, true)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logLevel := slog.LevelInfo
	if debugMode {
		logLevel = slog.LevelDebug
	} else {
		switch cfg.Logging.Level {
		case config.LogLevelDebug:
			logLevel = slog.LevelDebug
		case config.LogLevelWarn:
			logLevel = slog.LevelWarn
		case config.LogLevelError:
			logLevel = slog.LevelError
		}
	}

	// The backend logs to stderr; the file is reserved for the console.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	logger.Info("IDRO backend starting",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cfgPath,
	)

	dbPath, err := config.EnsureDataDir(cfg)
	if err != nil {
		return fmt.Errorf("ensuring data directory: %w", err)
	}

	backupDir, err := config.BackupDir(cfg)
	if err != nil {
		logger.Warn("failed to create backup directory", "error", err)
		backupDir = ""
	}

	report, err := database.AttemptRecovery(ctx, dbPath, backupDir, logger)
	if err != nil {
		return fmt.Errorf("database recovery failed after %d steps: %w", len(report.Steps), err)
	}
	if report.Result == database.RecoveryFromBackup {
		logger.Warn("database restored from backup", "backup", report.BackupUsed)
	}

	db, err := database.Open(dbPath, cfg.Database, backupDir, logger)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		logger.Info("closing database")
		if err := db.Close(); err != nil {
			logger.Error("error closing database", "error", err)
		}
	}()

	result, err := database.Migrate(ctx, db)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	if len(result.Applied) > 0 {
		logger.Info("applied migrations",
			"count", len(result.Applied),
			"to_version", result.TargetVersion,
		)
	}

	if migrateOnly {
		logger.Info("migrations complete, exiting")
		return nil
	}

	if seedData {
		var count int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM alerts").Scan(&count); err == nil && count > 0 {
			logger.Warn("database already contains alerts, skipping seed generation", "count", count)
			return nil
		}
		if _, err := seed.NewGenerator(db.DB, seed.DefaultConfig(), logger).Generate(ctx); err != nil {
			return fmt.Errorf("generating seed data: %w", err)
		}
		return nil
	}

	var ml demand.Predictor
	if cfg.ML.Enabled {
		ml = demand.NewMLClient(cfg.ML.URL, cfg.ML.Timeout.Duration)
	}
	estimator := demand.NewEstimator(cfg.Estimator, ml, logger)

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           server.New(db, estimator, cfg.Server, logger).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}

	logger.Info("IDRO backend shutdown complete")
	return nil
}
