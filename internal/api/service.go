package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"sweeper/internal/classify"
	"sweeper/internal/config"
	"sweeper/internal/events"
	"sweeper/internal/immich"
	"sweeper/internal/logging"
	"sweeper/internal/notifications"
	"sweeper/internal/results"
	"sweeper/internal/scan"
	"sweeper/internal/services"
)

var (
	// ErrNotConfigured rejects operations that need an Immich connection.
	ErrNotConfigured = errors.New("immich connection not configured")
	// ErrRemoteDelete reports that Immich refused or failed a delete.
	ErrRemoteDelete = errors.New("remote delete failed")
)

// Handle is the configured client, coordinator, and store triple.
type Handle struct {
	Client      *immich.Client
	Coordinator *scan.Coordinator
	Store       *results.Store
}

// Service implements the dashboard operations.
type Service struct {
	store      *results.Store
	hub        *events.Hub
	notifier   notifications.Service
	logger     *slog.Logger
	clientOpts []immich.Option

	mu     sync.RWMutex
	cfg    config.Config
	handle *Handle
}

// Option configures optional Service collaborators.
type Option func(*Service)

// WithHub sets the progress event hub shared with the coordinator.
func WithHub(hub *events.Hub) Option {
	return func(s *Service) {
		if hub != nil {
			s.hub = hub
		}
	}
}

// WithNotifier sets the push notification service.
func WithNotifier(notifier notifications.Service) Option {
	return func(s *Service) {
		if notifier != nil {
			s.notifier = notifier
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClientOptions adds options applied to every Immich client the service builds.
func WithClientOptions(opts ...immich.Option) Option {
	return func(s *Service) {
		s.clientOpts = append(s.clientOpts, opts...)
	}
}

// NewService constructs a Service. When cfg already carries an Immich
// connection the Handle is built immediately without contacting the server.
func NewService(cfg *config.Config, store *results.Store, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("api service: %w", services.ErrConfiguration)
	}
	if store == nil {
		return nil, errors.New("api service: result store is required")
	}
	s := &Service{
		store:    store,
		hub:      events.NewHub(0),
		notifier: notifications.NewService(nil),
		logger:   logging.NewNop(),
		cfg:      *cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "api")

	if s.cfg.IsConfigured() {
		handle, err := s.buildHandle(s.cfg)
		if err != nil {
			logging.WarnWithContext(s.logger, "configured immich connection rejected", "immich_config_invalid",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "fix [immich] in config.toml or configure through the dashboard"),
				logging.String(logging.FieldImpact, "scans disabled until configured"),
			)
		} else {
			s.handle = handle
		}
	}
	return s, nil
}

// Hub returns the progress event hub.
func (s *Service) Hub() *events.Hub {
	return s.hub
}

// Store returns the result store.
func (s *Service) Store() *results.Store {
	return s.store
}

// Handle returns the configured handle, or nil.
func (s *Service) Handle() *Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handle
}

// Connection reports the configured Immich address without the key.
func (s *Service) Connection() ConnectionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ConnectionStatus{
		Configured: s.handle != nil,
		ImmichURL:  s.cfg.Immich.URL,
		APIKeySet:  s.cfg.Immich.APIKey != "",
	}
}

// Configure validates the connection against Immich, persists it, and
// replaces the Handle. It is rejected while a run is active.
func (s *Service) Configure(ctx context.Context, req ConnectionRequest) (ConnectionStatus, error) {
	conn := config.Connection{
		URL:    config.NormalizeImmichURL(req.ImmichURL),
		APIKey: strings.TrimSpace(req.APIKey),
	}
	if err := config.ValidateImmichURL(conn.URL); err != nil {
		return ConnectionStatus{}, services.Wrap(services.ErrValidation, "api", "configure", "invalid immich url", err)
	}
	if conn.APIKey == "" {
		return ConnectionStatus{}, services.Wrap(services.ErrValidation, "api", "configure", "api key is required", nil)
	}
	if s.running() {
		return ConnectionStatus{}, scan.ErrAlreadyRunning
	}

	client, err := immich.New(conn.URL, conn.APIKey, s.clientOpts...)
	if err != nil {
		return ConnectionStatus{}, err
	}
	if err := client.ValidateCredentials(ctx); err != nil {
		return ConnectionStatus{}, fmt.Errorf("validate immich connection: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil && s.handle.Coordinator.Status().Running {
		return ConnectionStatus{}, scan.ErrAlreadyRunning
	}
	next := s.cfg
	next.ApplyConnection(conn)
	handle, err := s.buildHandle(next)
	if err != nil {
		return ConnectionStatus{}, err
	}
	if err := next.SaveConnection(conn); err != nil {
		return ConnectionStatus{}, fmt.Errorf("persist connection: %w", err)
	}
	s.cfg = next
	s.handle = handle
	s.logger.Info("immich connection configured", logging.String("immich_url", conn.URL))
	return ConnectionStatus{Configured: true, ImmichURL: conn.URL, APIKeySet: true}, nil
}

// Shutdown stops an active run and waits for it to finish.
func (s *Service) Shutdown() {
	h := s.Handle()
	if h == nil {
		return
	}
	if err := h.Coordinator.Stop(); err == nil {
		h.Coordinator.Wait()
	}
}

func (s *Service) buildHandle(cfg config.Config) (*Handle, error) {
	opts := append([]immich.Option{immich.WithThumbnailLimit(cfg.Scan.ThumbnailMaxBytes)}, s.clientOpts...)
	client, err := immich.New(cfg.Immich.URL, cfg.Immich.APIKey, opts...)
	if err != nil {
		return nil, err
	}
	evaluator := classify.NewEvaluator(
		classify.RulesFromConfig(&cfg),
		classify.WithInspector(client),
		classify.WithVisualInspection(cfg.Scan.VisualInspection),
		classify.WithLogger(s.logger),
	)
	coordinator := scan.NewCoordinator(client, evaluator, s.store, scan.OptionsFromConfig(&cfg),
		scan.WithSink(s.hub),
		scan.WithNotifier(s.notifier),
		scan.WithLogger(s.logger),
	)
	return &Handle{Client: client, Coordinator: coordinator, Store: s.store}, nil
}

func (s *Service) running() bool {
	h := s.Handle()
	return h != nil && h.Coordinator.Status().Running
}

func (s *Service) config() config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}
