package daemon

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"sweeper/internal/api"
	"sweeper/internal/config"
	"sweeper/internal/testsupport"
)

const (
	testToken = "dash-token"
	immichKey = "immich-key"
)

func newTestHandler(t *testing.T, cfg *config.Config) (http.Handler, *api.Service) {
	t.Helper()
	store := testsupport.MustOpenStore(t, cfg)
	svc, err := api.NewService(cfg, store)
	if err != nil {
		t.Fatalf("api.NewService: %v", err)
	}
	srv, err := newAPIServer(cfg, svc, nil)
	if err != nil {
		t.Fatalf("newAPIServer: %v", err)
	}
	return srv.server.Handler, svc
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("Authorization", "Bearer "+testToken)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestAuthMiddlewareGuardsAPIButNotHealth(t *testing.T) {
	h, _ := newTestHandler(t, testsupport.NewConfig(t, testsupport.WithAPIToken(testToken)))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected health without auth to pass, got %d", w.Code)
	}

	for _, auth := range []string{"", "Bearer wrong", "Basic " + testToken} {
		req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("auth %q: expected 401, got %d", auth, w.Code)
		}
	}

	w = do(t, h, http.MethodGet, "/api/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Fatal("expected a request id header")
	}
	status := decode[api.RunStatus](t, w)
	if status.Configured || status.Status != "idle" {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestRequestIDIsHonoured(t *testing.T) {
	h, _ := newTestHandler(t, testsupport.NewConfig(t))
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get(requestIDHeader); got != "abc-123" {
		t.Fatalf("expected caller request id, got %q", got)
	}
}

func TestRejectionStatusCodes(t *testing.T) {
	h, _ := newTestHandler(t, testsupport.NewConfig(t, testsupport.WithAPIToken(testToken)))

	cases := []struct {
		method, target, body string
		want                 int
	}{
		{http.MethodPost, "/api/scan/start", "", http.StatusPreconditionFailed},
		{http.MethodPost, "/api/scan/stop", "", http.StatusConflict},
		{http.MethodPost, "/api/delete", `{"ids":["a"]}`, http.StatusPreconditionFailed},
		{http.MethodGet, "/api/export/script", "", http.StatusPreconditionFailed},
		{http.MethodGet, "/api/results?min_confidence=abc", "", http.StatusBadRequest},
		{http.MethodGet, "/api/results?category=selfies", "", http.StatusBadRequest},
		{http.MethodGet, "/api/results?limit=x", "", http.StatusBadRequest},
		{http.MethodPost, "/api/mark", `{"ids":[]}`, http.StatusBadRequest},
		{http.MethodPost, "/api/mark", `not json`, http.StatusBadRequest},
		{http.MethodPost, "/api/config", `{"immich_url":"ftp://x","api_key":"k"}`, http.StatusBadRequest},
		{http.MethodGet, "/api/events?since=-1", "", http.StatusBadRequest},
		{http.MethodGet, "/api/scan/start", "", http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		w := do(t, h, tc.method, tc.target, tc.body)
		if w.Code != tc.want {
			t.Fatalf("%s %s: expected %d, got %d (%s)", tc.method, tc.target, tc.want, w.Code, w.Body.String())
		}
	}

	w := do(t, h, http.MethodPost, "/api/scan/start", "")
	body := decode[map[string]any](t, w)
	if body["success"] != false || body["error"] == "" || body["message"] == "" {
		t.Fatalf("expected success/message/error shape, got %v", body)
	}
}

func TestDashboardFlowOverHTTP(t *testing.T) {
	immich := testsupport.NewImmichServer(t, immichKey,
		testsupport.FakeAsset{ID: "shot-1", FileName: "Screenshot_1.png", Path: "/u/Screenshot_1.png", Width: 1170, Height: 2532, Size: 900_000},
		testsupport.FakeAsset{ID: "shot-2", FileName: "Screenshot_2.png", Path: "/u/Screenshot_2.png", Width: 1920, Height: 1080, Size: 700_000},
		testsupport.FakeAsset{ID: "photo", FileName: "IMG_0001.JPG", Path: "/u/IMG_0001.JPG", Width: 4032, Height: 3024, Size: 4_000_000, Make: "Apple", Model: "iPhone 15"},
	)
	h, svc := newTestHandler(t, testsupport.NewConfig(t, testsupport.WithAPIToken(testToken)))

	w := do(t, h, http.MethodPost, "/api/config", `{"immich_url":"`+immich.URL+`","api_key":"`+immichKey+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("configure: %d %s", w.Code, w.Body.String())
	}
	conn := decode[api.ConnectionStatus](t, do(t, h, http.MethodGet, "/api/config", ""))
	if !conn.Configured || conn.ImmichURL != immich.URL {
		t.Fatalf("unexpected connection %+v", conn)
	}
	if strings.Contains(do(t, h, http.MethodGet, "/api/config", "").Body.String(), immichKey) {
		t.Fatal("config endpoint must not reveal the api key")
	}

	w = do(t, h, http.MethodPost, "/api/scan/start", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("start: %d %s", w.Code, w.Body.String())
	}
	svc.Handle().Coordinator.Wait()

	status := decode[api.RunStatus](t, do(t, h, http.MethodGet, "/api/status", ""))
	if status.Status != "completed" || status.CandidatesFound != 2 {
		t.Fatalf("unexpected status %+v", status)
	}

	res := decode[api.ResultsResponse](t, do(t, h, http.MethodGet, "/api/results?category=all&min_confidence=0.5", ""))
	if res.Count != 2 {
		t.Fatalf("expected 2 results, got %+v", res)
	}

	w = do(t, h, http.MethodPost, "/api/mark", `{"ids":["shot-1"],"marked":true}`)
	if mark := decode[api.ActionResponse](t, w); !mark.Success || mark.Count != 1 {
		t.Fatalf("unexpected mark response %+v", mark)
	}
	marked := decode[api.ResultsResponse](t, do(t, h, http.MethodGet, "/api/results?marked=1", ""))
	if marked.Count != 1 || marked.Items[0].AssetID != "shot-1" {
		t.Fatalf("unexpected marked results %+v", marked)
	}

	stats := decode[api.StatisticsResponse](t, do(t, h, http.MethodGet, "/api/statistics", ""))
	if stats.MarkedCount != 1 || stats.MarkedBytes != 900_000 || stats.TotalAnalyzed != 3 {
		t.Fatalf("unexpected statistics %+v", stats)
	}

	w = do(t, h, http.MethodGet, "/api/export", "")
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("unexpected export response %d %q", w.Code, w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "sweeper-results.csv") {
		t.Fatalf("unexpected disposition %q", w.Header().Get("Content-Disposition"))
	}
	w = do(t, h, http.MethodGet, "/api/export/script", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "shot-1") {
		t.Fatalf("unexpected script response %d %s", w.Code, w.Body.String())
	}

	immich.FailDeletes(true)
	w = do(t, h, http.MethodPost, "/api/delete", `{"marked":true}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 on remote failure, got %d", w.Code)
	}
	immich.FailDeletes(false)
	w = do(t, h, http.MethodPost, "/api/delete", `{"marked":true}`)
	if del := decode[api.ActionResponse](t, w); w.Code != http.StatusOK || del.Count != 1 {
		t.Fatalf("unexpected delete response %d %+v", w.Code, del)
	}

	w = do(t, h, http.MethodPost, "/api/results/clear", "")
	if cleared := decode[api.ActionResponse](t, w); w.Code != http.StatusOK || !cleared.Success {
		t.Fatalf("unexpected clear response %d %+v", w.Code, cleared)
	}
	if after := decode[api.StatisticsResponse](t, do(t, h, http.MethodGet, "/api/statistics", "")); after.TotalCandidates != 0 || after.TotalAnalyzed != 0 {
		t.Fatalf("expected empty store after clear, got %+v", after)
	}

	evts := decode[api.EventsResponse](t, do(t, h, http.MethodGet, "/api/events?since=0", ""))
	if len(evts.Events) == 0 || evts.Next == 0 {
		t.Fatalf("expected run events, got %+v", evts)
	}
	last := decode[api.EventsResponse](t, do(t, h, http.MethodGet, "/api/events?since=0&limit=1", ""))
	if len(last.Events) != 1 || last.Events[0].Sequence != 1 {
		t.Fatalf("expected the first event only, got %+v", last.Events)
	}
}
