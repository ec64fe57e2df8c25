package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"sweeper/internal/api"
	"sweeper/internal/config"
	"sweeper/internal/logging"
)

const maxRequestBody = 1 << 20

type apiServer struct {
	bind   string
	logger *slog.Logger
	svc    *api.Service

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, svc *api.Service, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || svc == nil {
		return nil, errors.New("api server requires config and service")
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		svc:    svc,
	}
	srv.server = &http.Server{
		Handler:           srv.handler(cfg.Paths.APIToken),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

// handler builds the routed and wrapped handler.
func (s *apiServer) handler(token string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/scan/start", s.handleScanStart)
	mux.HandleFunc("POST /api/scan/stop", s.handleScanStop)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/results", s.handleResults)
	mux.HandleFunc("GET /api/statistics", s.handleStatistics)
	mux.HandleFunc("POST /api/mark", s.handleMark)
	mux.HandleFunc("POST /api/delete", s.handleDelete)
	mux.HandleFunc("POST /api/results/clear", s.handleClear)
	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("GET /api/export/script", s.handleScript)
	mux.HandleFunc("GET /api/config", s.handleConfigGet)
	mux.HandleFunc("POST /api/config", s.handleConfigPost)
	mux.HandleFunc("GET /api/events", s.handleEvents)

	mw := &middlewareSystem{}
	mw.Use(requestIDMiddleware)
	mw.Use(loggerMiddleware(s.logger))
	mw.Use(authMiddleware(token, "/health"))
	return mw.Apply(mux)
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writeActionError keeps the success/message shape mutating endpoints share
// and adds the error field.
func (s *apiServer) writeActionError(w http.ResponseWriter, r *http.Request, resp api.ActionResponse, err error) {
	status := statusFor(err)
	if resp.Message == "" {
		resp.Message = err.Error()
	}
	s.logFailure(r, status, err)
	s.writeJSON(w, status, struct {
		api.ActionResponse
		Error string `json:"error"`
	}{resp, err.Error()})
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	s.logFailure(r, status, err)
	s.writeError(w, status, err.Error())
}

func (s *apiServer) logFailure(r *http.Request, status int, err error) {
	if status < http.StatusInternalServerError && status != http.StatusBadGateway {
		return
	}
	logging.WarnWithContext(logging.WithContext(r.Context(), s.logger), "request failed", "api_request_failed",
		logging.String("path", r.URL.Path),
		logging.Int("status", status),
		logging.Error(err),
		logging.String(logging.FieldImpact, "dashboard action not completed"),
	)
}
