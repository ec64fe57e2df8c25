package immich_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"sweeper/internal/immich"
	"sweeper/internal/services"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...immich.Option) *immich.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := immich.New(srv.URL+"/api/", "secret", opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestNewRequiresURLAndKey(t *testing.T) {
	if _, err := immich.New("", "key"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for empty url, got %v", err)
	}
	if _, err := immich.New("ftp://photos", "key"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for bad scheme, got %v", err)
	}
	if _, err := immich.New("http://photos:2283", " "); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for empty key, got %v", err)
	}
	client, err := immich.New("http://photos:2283/api", "key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if client.BaseURL() != "http://photos:2283" {
		t.Fatalf("unexpected base url %q", client.BaseURL())
	}
}

func TestListAssetsPaginates(t *testing.T) {
	var pages []int
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/search/metadata" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "secret" {
			t.Fatalf("missing api key header, got %q", got)
		}
		var body struct {
			Page     int    `json:"page"`
			Size     int    `json:"size"`
			Type     string `json:"type"`
			WithExif bool   `json:"withExif"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Size != 2 || !body.WithExif || body.Type != "IMAGE" {
			t.Fatalf("unexpected body %+v", body)
		}
		pages = append(pages, body.Page)
		w.Header().Set("Content-Type", "application/json")
		if body.Page == 1 {
			_, _ = io.WriteString(w, `{"assets":{"items":[
				{"id":"a1","type":"IMAGE","originalFileName":"Screenshot_1.png","originalPath":"/lib/Screenshot_1.png","fileCreatedAt":"2024-03-01T10:00:00.000Z",
				 "exifInfo":{"exifImageWidth":1170,"exifImageHeight":2532,"make":"","software":"iOS","fileSizeInByte":240000}},
				{"id":"","originalFileName":"skip.jpg"}
			],"nextPage":"2"}}`)
			return
		}
		_, _ = io.WriteString(w, `{"assets":{"items":[{"id":"a2","originalFileName":"IMG_4321.heic"}],"nextPage":null}}`)
	})

	first, err := client.ListAssets(context.Background(), "", 2)
	if err != nil {
		t.Fatalf("ListAssets: %v", err)
	}
	if len(first.Assets) != 1 || first.NextCursor != "2" {
		t.Fatalf("unexpected first page %+v", first)
	}
	asset := first.Assets[0]
	if w, h := asset.Dimensions(); w != 1170 || h != 2532 {
		t.Fatalf("unexpected dimensions %dx%d", w, h)
	}
	if asset.Size() != 240000 || asset.Exif.Software != "iOS" || asset.CreatedAt == nil {
		t.Fatalf("unexpected asset %+v exif %+v", asset, asset.Exif)
	}

	second, err := client.ListAssets(context.Background(), first.NextCursor, 2)
	if err != nil {
		t.Fatalf("ListAssets page 2: %v", err)
	}
	if second.NextCursor != "" || len(second.Assets) != 1 || second.Assets[0].Exif != nil {
		t.Fatalf("unexpected second page %+v", second)
	}
	if len(pages) != 2 || pages[0] != 1 || pages[1] != 2 {
		t.Fatalf("unexpected pages requested %v", pages)
	}
}

func TestListAssetsRejectsBadCursor(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("no request expected")
	})
	if _, err := client.ListAssets(context.Background(), "abc", 10); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStatusErrorsAreClassified(t *testing.T) {
	cases := []struct {
		status int
		marker error
	}{
		{http.StatusUnauthorized, services.ErrConfiguration},
		{http.StatusForbidden, services.ErrConfiguration},
		{http.StatusNotFound, services.ErrNotFound},
		{http.StatusInternalServerError, services.ErrTransient},
	}
	for _, tc := range cases {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tc.status)
		})
		_, err := client.ListAssets(context.Background(), "", 10)
		if !errors.Is(err, tc.marker) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.marker, err)
		}
		var statusErr *immich.StatusError
		if !errors.As(err, &statusErr) || statusErr.StatusCode != tc.status {
			t.Fatalf("status %d: expected StatusError, got %v", tc.status, err)
		}
		if !strings.Contains(statusErr.Body, "nope") {
			t.Fatalf("expected body snippet, got %q", statusErr.Body)
		}
	}
}

func TestFacesMetadataAndCount(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/faces":
			if r.URL.Query().Get("id") != "a1" {
				t.Fatalf("unexpected faces query %q", r.URL.RawQuery)
			}
			_, _ = io.WriteString(w, `[{"id":"f1","imageWidth":100,"imageHeight":100,"person":{"id":"p1","name":"Ana"}}]`)
		case "/api/assets/a1/metadata":
			_, _ = io.WriteString(w, `[{"key":"mobile-app","value":{"albums":["x"]}}]`)
		case "/api/assets/a2/metadata":
			http.NotFound(w, r)
		case "/api/assets/statistics":
			_, _ = io.WriteString(w, `{"images":7,"videos":3,"total":10}`)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})
	ctx := context.Background()

	faces, err := client.GetFaces(ctx, "a1")
	if err != nil || len(faces) != 1 || faces[0].Person == nil || faces[0].Person.Name != "Ana" {
		t.Fatalf("GetFaces = %+v, %v", faces, err)
	}
	entries, err := client.GetMLMetadata(ctx, "a1")
	if err != nil || len(entries) != 1 || entries[0].Key != "mobile-app" {
		t.Fatalf("GetMLMetadata = %+v, %v", entries, err)
	}
	entries, err = client.GetMLMetadata(ctx, "a2")
	if err != nil || entries != nil {
		t.Fatalf("expected empty metadata on 404, got %+v, %v", entries, err)
	}
	total, err := client.CountAssets(ctx)
	if err != nil || total != 7 {
		t.Fatalf("CountAssets = %d, %v", total, err)
	}
}

func TestDownloadThumbnailHonoursLimit(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("size") != "thumbnail" {
			t.Fatalf("expected size=thumbnail, got %q", r.URL.RawQuery)
		}
		switch r.URL.Path {
		case "/api/assets/small/thumbnail":
			_, _ = w.Write([]byte("12345"))
		case "/api/assets/big/thumbnail":
			_, _ = w.Write([]byte(strings.Repeat("x", 64)))
		default:
			http.NotFound(w, r)
		}
	}, immich.WithThumbnailLimit(16))
	ctx := context.Background()

	data, err := client.DownloadThumbnail(ctx, "small")
	if err != nil || string(data) != "12345" {
		t.Fatalf("DownloadThumbnail small = %q, %v", data, err)
	}
	if _, err := client.DownloadThumbnail(ctx, "big"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected size limit error, got %v", err)
	}
	if _, err := client.DownloadThumbnail(ctx, "missing"); !errors.Is(err, immich.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteSendsIDsAndForce(t *testing.T) {
	var got struct {
		IDs   []string `json:"ids"`
		Force bool     `json:"force"`
	}
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Method != http.MethodDelete || r.URL.Path != "/api/assets" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	})
	if err := client.Delete(context.Background(), nil, true); err != nil || calls != 0 {
		t.Fatalf("empty delete should be a no-op, calls=%d err=%v", calls, err)
	}
	if err := client.Delete(context.Background(), []string{"a", "b"}, true); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(got.IDs) != 2 || !got.Force {
		t.Fatalf("unexpected delete payload %+v", got)
	}
}

func TestValidateCredentials(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/server/ping":
			_, _ = io.WriteString(w, `{"res":"pong"}`)
		case "/api/users/me":
			if r.Header.Get("x-api-key") != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = io.WriteString(w, `{"id":"u1","email":"me@example.com"}`)
		}
	})
	if err := client.ValidateCredentials(context.Background()); err != nil {
		t.Fatalf("ValidateCredentials: %v", err)
	}

	rejecting := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/server/ping" {
			_, _ = io.WriteString(w, `{"res":"pong"}`)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	})
	if err := rejecting.ValidateCredentials(context.Background()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
