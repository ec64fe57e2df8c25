package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"sweeper/internal/classify"
	"sweeper/internal/events"
	"sweeper/internal/immich"
	"sweeper/internal/logging"
	"sweeper/internal/notifications"
	"sweeper/internal/results"
	"sweeper/internal/services"
)

var (
	// ErrAlreadyRunning rejects a start while a run is active.
	ErrAlreadyRunning = errors.New("scan already running")
	// ErrNotRunning rejects a stop while idle.
	ErrNotRunning = errors.New("scan not running")
)

// Source pages through the remote library.
type Source interface {
	ListAssets(ctx context.Context, cursor string, size int) (immich.Page, error)
	CountAssets(ctx context.Context) (int, error)
}

// Classifier scores one asset.
type Classifier interface {
	Classify(ctx context.Context, asset immich.Asset) classify.Verdict
}

// Store persists verdicts and the analysis ledger.
type Store interface {
	Upsert(ctx context.Context, v classify.Verdict, opts ...results.UpsertOption) error
	RecordAnalyzed(ctx context.Context, id string, confidence float64, at time.Time) error
	Analyzed(ctx context.Context, id string) (bool, error)
	Remove(ctx context.Context, ids []string) (int64, error)
}

// Sink receives progress events.
type Sink interface {
	Publish(evt events.Event)
}

var (
	_ Source     = (*immich.Client)(nil)
	_ Classifier = (*classify.Evaluator)(nil)
	_ Store      = (*results.Store)(nil)
	_ Sink       = (*events.Hub)(nil)
)

const notifyTimeout = 15 * time.Second

// Coordinator runs library scans one at a time.
type Coordinator struct {
	source     Source
	classifier Classifier
	store      Store
	sink       Sink
	notifier   notifications.Service
	logger     *slog.Logger
	opts       Options
	now        func() time.Time

	mu     sync.RWMutex
	state  RunState
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures optional Coordinator collaborators.
type Option func(*Coordinator)

// WithSink publishes progress events to sink.
func WithSink(sink Sink) Option {
	return func(c *Coordinator) {
		c.sink = sink
	}
}

// WithNotifier sends run summaries through notifier.
func WithNotifier(notifier notifications.Service) Option {
	return func(c *Coordinator) {
		if notifier != nil {
			c.notifier = notifier
		}
	}
}

// WithLogger sets the coordinator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCoordinator wires a coordinator with its collaborators.
func NewCoordinator(source Source, classifier Classifier, store Store, opts Options, extra ...Option) *Coordinator {
	c := &Coordinator{
		source:     source,
		classifier: classifier,
		store:      store,
		notifier:   notifications.NewService(nil),
		logger:     logging.NewNop(),
		opts:       opts.normalized(),
		now:        time.Now,
		state:      RunState{Status: StatusIdle},
	}
	for _, opt := range extra {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "scan")
	return c
}

// Options returns the options in effect.
func (c *Coordinator) Options() Options {
	return c.opts
}

// Status returns a copy of the current run state.
func (c *Coordinator) Status() RunState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Start launches a run in the background and returns immediately.
func (c *Coordinator) Start(ctx context.Context) (RunState, error) {
	runCtx, snapshot, err := c.begin(ctx)
	if err != nil {
		return snapshot, err
	}
	go func() {
		_ = c.execute(runCtx)
	}()
	return snapshot, nil
}

// Run performs a run synchronously and returns its final state. Only a failed
// listing produces an error; cancellation yields the stopped status.
func (c *Coordinator) Run(ctx context.Context) (RunState, error) {
	runCtx, snapshot, err := c.begin(ctx)
	if err != nil {
		return snapshot, err
	}
	runErr := c.execute(runCtx)
	return c.Status(), runErr
}

// Stop cancels the active run. It does not wait for the worker to exit.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.Running || c.cancel == nil {
		return ErrNotRunning
	}
	c.cancel()
	return nil
}

// Wait blocks until the active run, if any, has finished.
func (c *Coordinator) Wait() RunState {
	c.mu.RLock()
	done := c.done
	c.mu.RUnlock()
	if done != nil {
		<-done
	}
	return c.Status()
}

func (c *Coordinator) begin(ctx context.Context) (context.Context, RunState, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Running {
		return nil, c.state, ErrAlreadyRunning
	}
	started := c.now().UTC()
	runID := uuid.NewString()
	runCtx, cancel := context.WithCancel(services.WithRunID(ctx, runID))
	c.cancel = cancel
	c.done = make(chan struct{})
	c.state = RunState{
		RunID:     runID,
		Status:    StatusRunning,
		Running:   true,
		StartedAt: &started,
	}
	return runCtx, c.state, nil
}

func (c *Coordinator) update(fn func(*RunState)) RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.state)
	return c.state
}

func (c *Coordinator) execute(ctx context.Context) (runErr error) {
	snapshot := c.Status()
	logger := c.logger.With(logging.String(logging.FieldRunID, snapshot.RunID))
	sampler := logging.NewProgressSampler(10, 500)

	status := StatusCompleted
	defer func() {
		c.finish(logger, status, runErr)
	}()

	logger.Info("scan started",
		logging.Bool("skip_analyzed", c.opts.SkipAnalyzed),
		logging.Float64("confidence_floor", c.opts.ConfidenceFloor),
		logging.Int("page_size", c.opts.PageSize),
	)
	c.publish(events.RunStarted, snapshot, "scan started")
	c.estimateTotal(ctx, logger)

	cursor := ""
	for {
		if ctx.Err() != nil {
			status = StatusStopped
			return nil
		}
		page, err := c.source.ListAssets(ctx, cursor, c.opts.PageSize)
		if err != nil {
			if ctx.Err() != nil {
				status = StatusStopped
				return nil
			}
			status = StatusError
			logging.ErrorWithContext(logger, "asset listing failed", "scan_list_failed",
				logging.String("cursor", cursor),
				logging.String("error_kind", services.Kind(err)),
				logging.String(logging.FieldErrorHint, "check Immich reachability and the API key"),
				logging.Error(err),
			)
			return fmt.Errorf("list assets: %w", err)
		}
		if ctx.Err() != nil {
			status = StatusStopped
			return nil
		}
		c.update(func(s *RunState) {
			s.Page++
			s.Cursor = cursor
		})

		for _, asset := range page.Assets {
			if ctx.Err() != nil {
				status = StatusStopped
				return nil
			}
			state := c.processAsset(ctx, logger, asset)
			if state.Processed > 0 && state.Processed%c.opts.ProgressEvery == 0 {
				c.publish(events.Progress, state, "")
			}
			if sampler.ShouldLog(state.Percent(), state.Processed) {
				logger.Info("scan progress",
					logging.Int("processed", state.Processed),
					logging.Int("total", state.Total),
					logging.Int("found", state.CandidatesFound),
					logging.Float64("percent", state.Percent()),
				)
			}
			if !c.pause(ctx) {
				status = StatusStopped
				return nil
			}
		}
		c.publish(events.Progress, c.Status(), fmt.Sprintf("page %d done", c.Status().Page))

		next := strings.TrimSpace(page.NextCursor)
		if next == "" {
			return nil
		}
		if next == cursor {
			logging.WarnWithContext(logger, "listing returned the same cursor; ending scan", "scan_cursor_repeat",
				logging.String("cursor", cursor),
				logging.String(logging.FieldImpact, "remaining pages were not scanned"),
			)
			return nil
		}
		cursor = next
	}
}

func (c *Coordinator) estimateTotal(ctx context.Context, logger *slog.Logger) {
	total, err := c.source.CountAssets(ctx)
	if err != nil || total <= 0 {
		if err != nil && ctx.Err() == nil {
			logging.WarnWithContext(logger, "library total unavailable", "scan_total_unknown",
				logging.Error(err),
				logging.String(logging.FieldImpact, "progress percentage is not reported"),
			)
		}
		return
	}
	c.update(func(s *RunState) {
		s.Total = total
		s.TotalKnown = true
	})
}

func (c *Coordinator) processAsset(ctx context.Context, logger *slog.Logger, asset immich.Asset) RunState {
	assetLogger := logger.With(logging.String(logging.FieldAssetID, asset.ID))
	c.update(func(s *RunState) {
		s.CurrentFile = asset.OriginalFileName
	})
	if strings.TrimSpace(asset.ID) == "" {
		return c.count(func(s *RunState) { s.Failed++ })
	}
	if !asset.IsImage() {
		assetLogger.Debug("non-image asset skipped", logging.String("type", asset.Type))
		return c.count(func(s *RunState) { s.Skipped++ })
	}

	if c.opts.SkipAnalyzed {
		seen, err := c.store.Analyzed(ctx, asset.ID)
		if err != nil {
			logging.WarnWithContext(assetLogger, "analysis ledger lookup failed", "scan_ledger_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "asset analyzed again"),
			)
		}
		if seen {
			return c.count(func(s *RunState) { s.Skipped++ })
		}
	}

	verdict := c.classifier.Classify(services.WithAssetID(ctx, asset.ID), asset)
	if ctx.Err() != nil {
		return c.Status()
	}

	belowFloor := verdict.Confidence < c.opts.ConfidenceFloor
	if belowFloor && !c.opts.SkipAnalyzed {
		// A rescan that drops below the floor retires the earlier candidate record.
		if _, err := c.store.Remove(ctx, []string{asset.ID}); err != nil {
			logging.WarnWithContext(assetLogger, "stale candidate removal failed", "scan_store_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "previous verdict remains listed"),
			)
		}
	}
	if err := c.store.RecordAnalyzed(ctx, asset.ID, verdict.Confidence, verdict.AnalyzedAt); err != nil {
		logging.WarnWithContext(assetLogger, "analysis ledger write failed", "scan_ledger_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "asset may be analyzed again next scan"),
		)
	}
	if belowFloor {
		return c.count(nil)
	}
	if err := c.store.Upsert(ctx, verdict); err != nil {
		logging.WarnWithContext(assetLogger, "verdict write failed", "scan_store_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the sweeper database"),
			logging.String(logging.FieldImpact, "candidate not recorded"),
		)
		return c.count(func(s *RunState) { s.Failed++ })
	}
	assetLogger.Debug("candidate recorded",
		logging.String("category", string(verdict.Category)),
		logging.Float64("confidence", verdict.Confidence),
	)
	return c.count(func(s *RunState) { s.CandidatesFound++ })
}

// count records one visited asset and grows the total when it was underestimated.
func (c *Coordinator) count(fn func(*RunState)) RunState {
	return c.update(func(s *RunState) {
		s.Processed++
		if fn != nil {
			fn(s)
		}
		if s.TotalKnown && s.Processed > s.Total {
			s.Total = s.Processed
		}
	})
}

func (c *Coordinator) pause(ctx context.Context) bool {
	if c.opts.ItemDelay <= 0 {
		return true
	}
	timer := time.NewTimer(c.opts.ItemDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Coordinator) finish(logger *slog.Logger, status Status, runErr error) {
	finished := c.now().UTC()
	c.mu.Lock()
	c.state.Running = false
	c.state.Status = status
	c.state.FinishedAt = &finished
	c.state.CurrentFile = ""
	if runErr != nil {
		c.state.Error = runErr.Error()
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	final := c.state
	done := c.done
	c.mu.Unlock()

	elapsed := final.Elapsed()
	switch status {
	case StatusError:
		c.publish(events.RunError, final, final.Error)
	case StatusStopped:
		logger.Info("scan stopped", logging.Int("processed", final.Processed), logging.Int("found", final.CandidatesFound))
		c.publish(events.RunStopped, final, "scan stopped")
	default:
		logger.Info("scan completed",
			logging.Int("processed", final.Processed),
			logging.Int("skipped", final.Skipped),
			logging.Int("failed", final.Failed),
			logging.Int("found", final.CandidatesFound),
			logging.Duration("elapsed", elapsed),
		)
		c.publish(events.RunCompleted, final, "scan completed")
	}
	c.notify(logger, final, elapsed)

	if done != nil {
		close(done)
	}
}

func (c *Coordinator) notify(logger *slog.Logger, final RunState, elapsed time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	event := notifications.EventRunCompleted
	payload := notifications.Payload{
		"status":    string(final.Status),
		"processed": final.Processed,
		"found":     final.CandidatesFound,
		"failed":    final.Failed,
		"duration":  elapsed,
	}
	if final.Status == StatusError {
		event = notifications.EventRunFailed
		payload["error"] = final.Error
	}
	if err := c.notifier.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(logger, "scan notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the ntfy topic"),
			logging.String(logging.FieldImpact, "no push notification delivered"),
		)
	}
}

func (c *Coordinator) publish(typ events.Type, state RunState, message string) {
	if c.sink == nil {
		return
	}
	c.sink.Publish(events.Event{
		Timestamp: c.now().UTC(),
		Type:      typ,
		RunID:     state.RunID,
		Processed: state.Processed,
		Total:     state.Total,
		Found:     state.CandidatesFound,
		Failed:    state.Failed,
		Current:   state.CurrentFile,
		Percent:   state.Percent(),
		Message:   message,
	})
}
