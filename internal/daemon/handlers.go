package daemon

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sweeper/internal/api"
	"sweeper/internal/logging"
	"sweeper/internal/scan"
	"sweeper/internal/services"
)

const (
	eventsWait         = 25 * time.Second
	defaultEventsLimit = 200
)

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, scan.ErrAlreadyRunning), errors.Is(err, scan.ErrNotRunning):
		return http.StatusConflict
	case errors.Is(err, api.ErrNotConfigured):
		return http.StatusPreconditionFailed
	case errors.Is(err, api.ErrRemoteDelete):
		return http.StatusBadGateway
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrTransient), errors.Is(err, services.ErrTimeout):
		return http.StatusBadGateway
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"configured": s.svc.Handle() != nil,
	})
}

func (s *apiServer) handleScanStart(w http.ResponseWriter, r *http.Request) {
	resp, err := s.svc.Start(r.Context())
	if err != nil {
		s.writeActionError(w, r, resp, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, resp)
}

func (s *apiServer) handleScanStop(w http.ResponseWriter, r *http.Request) {
	resp, err := s.svc.Stop()
	if err != nil {
		s.writeActionError(w, r, resp, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, resp)
}

func (s *apiServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.svc.Status())
}

func (s *apiServer) handleResults(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := api.ResultsQuery{
		Category:   strings.TrimSpace(query.Get("category")),
		MarkedOnly: truthy(query.Get("marked")),
	}
	var err error
	if q.MinConfidence, err = parseFloat(query.Get("min_confidence")); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid min_confidence")
		return
	}
	if q.Limit, err = parseInt(query.Get("limit")); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if q.Offset, err = parseInt(query.Get("offset")); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	resp, err := s.svc.Results(r.Context(), q)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleStatistics(w http.ResponseWriter, r *http.Request) {
	resp, err := s.svc.Statistics(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleMark(w http.ResponseWriter, r *http.Request) {
	var req api.MarkRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.svc.Mark(r.Context(), req)
	if err != nil {
		s.writeActionError(w, r, resp, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req api.DeleteRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.svc.Delete(r.Context(), req)
	if err != nil {
		s.writeActionError(w, r, resp, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleClear(w http.ResponseWriter, r *http.Request) {
	resp, err := s.svc.ClearResults(r.Context())
	if err != nil {
		s.writeActionError(w, r, resp, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.svc.Export(r.Context(), &buf); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeAttachment(w, "text/csv; charset=utf-8", "sweeper-results.csv", buf.Bytes())
}

func (s *apiServer) handleScript(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.svc.Script(r.Context(), &buf); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeAttachment(w, "text/x-shellscript; charset=utf-8", "sweeper-delete.sh", buf.Bytes())
}

func (s *apiServer) writeAttachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		s.logger.Debug("attachment write failed", logging.Error(err))
	}
}

func (s *apiServer) handleConfigGet(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.svc.Connection())
}

func (s *apiServer) handleConfigPost(w http.ResponseWriter, r *http.Request) {
	var req api.ConnectionRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	status, err := s.svc.Configure(r.Context(), req)
	if err != nil {
		s.writeActionError(w, r, api.ActionResponse{}, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		api.ActionResponse
		api.ConnectionStatus
	}{
		api.ActionResponse{Success: true, Message: "immich connection configured"},
		status,
	})
}

func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	since, err := strconv.ParseUint(strings.TrimSpace(query.Get("since")), 10, 64)
	if err != nil && strings.TrimSpace(query.Get("since")) != "" {
		s.writeError(w, http.StatusBadRequest, "invalid since")
		return
	}
	limit, err := parseInt(query.Get("limit"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if limit <= 0 {
		limit = defaultEventsLimit
	}
	follow := truthy(query.Get("follow"))

	ctx := r.Context()
	if follow {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, eventsWait)
		defer cancel()
	}
	resp, err := s.svc.Events(ctx, since, limit, follow)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func truthy(value string) bool {
	value = strings.TrimSpace(value)
	return value == "1" || strings.EqualFold(value, "true") || strings.EqualFold(value, "yes")
}

func parseInt(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}

func parseFloat(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	return strconv.ParseFloat(value, 64)
}
