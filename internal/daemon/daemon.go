package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gofrs/flock"

	"sweeper/internal/api"
	"sweeper/internal/config"
	"sweeper/internal/logging"
)

// ErrAlreadyRunning reports that another sweeper process holds the lock.
var ErrAlreadyRunning = errors.New("another sweeper instance is already running")

// Daemon serves the dashboard API and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	svc    *api.Service
	server *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool          `json:"running"`
	Address      string        `json:"address,omitempty"`
	DatabasePath string        `json:"database_path"`
	LockFilePath string        `json:"lock_file_path"`
	Run          api.RunStatus `json:"run"`
}

// New constructs a daemon around the dashboard service.
func New(cfg *config.Config, svc *api.Service, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || svc == nil {
		return nil, errors.New("daemon requires config and api service")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	server, err := newAPIServer(cfg, svc, logger)
	if err != nil {
		return nil, err
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		svc:      svc,
		server:   server,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// AcquireLock takes the single-instance lock at path without serving. The
// returned release func must be called when done.
func AcquireLock(path string) (func(), error) {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}
	return func() { _ = lock.Unlock() }, nil
}

// Start acquires the daemon lock and starts the API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.server.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("sweeper daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.server.addr()),
		logging.Bool("configured", d.svc.Handle() != nil),
	)
	return nil
}

// Stop stops an active scan, shuts down the API server, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.svc.Shutdown()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.server.stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "next start may report another instance"),
		)
	}
	d.running.Store(false)
	d.logger.Info("sweeper daemon stopped")
}

// Close releases resources held by the daemon. The result store is owned by
// the caller.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Addr returns the bound API address, or "" when not serving.
func (d *Daemon) Addr() string {
	return d.server.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		Address:      d.server.addr(),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		Run:          d.svc.Status(),
	}
}
