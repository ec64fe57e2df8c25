package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"sweeper/internal/api"
	"sweeper/internal/config"
	"sweeper/internal/daemon"
	"sweeper/internal/events"
	"sweeper/internal/immich"
	"sweeper/internal/logging"
	"sweeper/internal/notifications"
	"sweeper/internal/preflight"
	"sweeper/internal/results"
)

// Version is reported in the Immich User-Agent header.
var Version = "0.1.0"

const eventBufferSize = 1024

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the sweeper daemon and blocks until ctx ends or a termination
// signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", cfg.LogPath()},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := cfg.MergeSavedConnection(); err != nil {
		logging.WarnWithContext(logger, "saved immich connection unreadable", "connection_load_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+cfg.ConnectionPath()+" and configure again"),
			logging.String(logging.FieldImpact, "daemon starts unconfigured"),
		)
	}
	logStartupSnapshot(logger, cfg)
	logPreflight(signalCtx, logger, cfg)

	pidPath := filepath.Join(cfg.Paths.DataDir, "sweeper.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := results.Open(cfg)
	if err != nil {
		logger.Error("open result store", logging.Error(err))
		return err
	}
	defer store.Close()

	svc, err := api.NewService(cfg, store,
		api.WithHub(events.NewHub(eventBufferSize)),
		api.WithNotifier(notifications.NewService(cfg)),
		api.WithLogger(logger),
		api.WithClientOptions(immich.WithUserAgent("sweeper/"+Version)),
	)
	if err != nil {
		return fmt.Errorf("create api service: %w", err)
	}

	d, err := daemon.New(cfg, svc, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check for another sweeper process and that api_bind is free"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("sweeper daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logStartupSnapshot(logger *slog.Logger, cfg *config.Config) {
	logger.Info("startup snapshot",
		logging.String(logging.FieldEventType, "startup_snapshot"),
		logging.Bool("immich_configured", cfg.IsConfigured()),
		logging.String("immich_url", cfg.Immich.URL),
		logging.String("database", cfg.DatabasePath()),
		logging.String("api_bind", cfg.Paths.APIBind),
		logging.Bool("api_token_set", cfg.Paths.APIToken != ""),
		logging.Bool("skip_analyzed", cfg.Scan.SkipAnalyzed),
		logging.Float64("confidence_floor", cfg.Scan.ConfidenceFloor),
		logging.Bool("visual_inspection", cfg.Scan.VisualInspection),
		logging.Bool("ntfy_enabled", cfg.Notifications.NtfyTopic != ""),
	)
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, r := range preflight.Failed(preflight.RunAll(ctx, cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldImpact, "scans may fail until resolved"),
		)
	}
}
