package daemon

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"sweeper/internal/logging"
	"sweeper/internal/services"
)

const requestIDHeader = "X-Request-ID"

// middlewareSystem manages an ordered stack of HTTP middleware. The first
// middleware added is the outermost.
type middlewareSystem struct {
	stack []func(http.Handler) http.Handler
}

func (m *middlewareSystem) Use(fn func(http.Handler) http.Handler) {
	m.stack = append(m.stack, fn)
}

func (m *middlewareSystem) Apply(handler http.Handler) http.Handler {
	for i := len(m.stack) - 1; i >= 0; i-- {
		handler = m.stack[i](handler)
	}
	return handler
}

// requestIDMiddleware assigns a correlation ID, honouring a caller-supplied one.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// loggerMiddleware logs each request's method, URI, status, and duration.
// Health probes and event polling log at debug.
func loggerMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			if rec.status == 0 {
				rec.status = http.StatusOK
			}

			level := slog.LevelInfo
			switch {
			case rec.status >= http.StatusInternalServerError:
				level = slog.LevelWarn
			case r.URL.Path == "/health" || r.URL.Path == "/api/events" || r.URL.Path == "/api/status":
				level = slog.LevelDebug
			}
			logging.WithContext(r.Context(), logger).Log(r.Context(), level, "request",
				logging.Args(
					logging.String("method", r.Method),
					logging.String("uri", r.URL.RequestURI()),
					logging.String("addr", r.RemoteAddr),
					logging.Int("status", rec.status),
					logging.Int("bytes", rec.bytes),
					logging.Duration("duration", time.Since(start)),
				)...,
			)
		})
	}
}
