package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// FakeAsset describes one asset served by ImmichServer.
type FakeAsset struct {
	ID       string
	Type     string
	FileName string
	Path     string
	Width    int
	Height   int
	Size     int64
	Make     string
	Model    string
}

func (a FakeAsset) kind() string {
	if a.Type == "" {
		return "IMAGE"
	}
	return a.Type
}

// ImmichServer is an httptest server speaking the subset of the Immich API
// that sweeper consumes.
type ImmichServer struct {
	*httptest.Server
	APIKey string

	mu         sync.Mutex
	assets     []FakeAsset
	deleted    []string
	failDelete bool
	listCalls  int
}

// NewImmichServer starts a fake Immich server and registers cleanup.
func NewImmichServer(t testing.TB, apiKey string, assets ...FakeAsset) *ImmichServer {
	t.Helper()

	s := &ImmichServer{APIKey: apiKey, assets: assets}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/server/ping", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]string{"res": "pong"})
	})
	mux.HandleFunc("GET /api/users/me", s.authed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]string{"id": "user-1", "email": "owner@example.com"})
	}))
	mux.HandleFunc("POST /api/search/metadata", s.authed(s.handleSearch))
	mux.HandleFunc("GET /api/assets/statistics", s.authed(func(w http.ResponseWriter, _ *http.Request) {
		s.mu.Lock()
		n := len(s.assets)
		s.mu.Unlock()
		writeJSON(w, map[string]int{"images": n, "videos": 0, "total": n})
	}))
	mux.HandleFunc("GET /api/faces", s.authed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, []any{})
	}))
	mux.HandleFunc("GET /api/assets/{id}/metadata", s.authed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, []any{})
	}))
	mux.HandleFunc("GET /api/assets/{id}/thumbnail", s.authed(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	mux.HandleFunc("DELETE /api/assets", s.authed(s.handleDelete))

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Server.Close)
	return s
}

// Deleted returns the IDs received by the delete endpoint.
func (s *ImmichServer) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

// ListCalls reports how many listing requests were served.
func (s *ImmichServer) ListCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls
}

// FailDeletes makes the delete endpoint answer 500.
func (s *ImmichServer) FailDeletes(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failDelete = fail
}

func (s *ImmichServer) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != s.APIKey {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Invalid API key"}`))
			return
		}
		next(w, r)
	}
}

func (s *ImmichServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Page int    `json:"page"`
		Size int    `json:"size"`
		Type string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Size <= 0 {
		req.Size = 250
	}

	s.mu.Lock()
	s.listCalls++
	matching := make([]FakeAsset, 0, len(s.assets))
	for _, a := range s.assets {
		if req.Type == "" || strings.EqualFold(a.kind(), req.Type) {
			matching = append(matching, a)
		}
	}
	s.mu.Unlock()
	start := min((req.Page-1)*req.Size, len(matching))
	end := min(start+req.Size, len(matching))
	page := matching[start:end]
	more := end < len(matching)

	items := make([]map[string]any, 0, len(page))
	for _, a := range page {
		items = append(items, map[string]any{
			"id":               a.ID,
			"type":             a.kind(),
			"originalFileName": a.FileName,
			"originalPath":     a.Path,
			"originalMimeType": "image/png",
			"exifInfo": map[string]any{
				"exifImageWidth":  a.Width,
				"exifImageHeight": a.Height,
				"fileSizeInByte":  a.Size,
				"make":            a.Make,
				"model":           a.Model,
			},
		})
	}
	var next any
	if more {
		next = strconv.Itoa(req.Page + 1)
	}
	writeJSON(w, map[string]any{"assets": map[string]any{"items": items, "nextPage": next}})
}

func (s *ImmichServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs   []string `json:"ids"`
		Force bool     `json:"force"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDelete {
		http.Error(w, "delete failed", http.StatusInternalServerError)
		return
	}
	s.deleted = append(s.deleted, req.IDs...)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
