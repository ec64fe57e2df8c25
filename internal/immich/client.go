package immich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sweeper/internal/services"
)

const (
	controlTimeout = 10 * time.Second
	listingTimeout = 30 * time.Second

	// DefaultThumbnailLimit caps thumbnail downloads when no limit is configured.
	DefaultThumbnailLimit int64 = 4 << 20

	component = "immich"
)

// ErrNotFound reports a 404 from the server.
var ErrNotFound = services.ErrNotFound

// HTTPDoer executes HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError carries a non-2xx response.
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// Client talks to a single Immich server.
type Client struct {
	baseURL        string
	apiKey         string
	control        HTTPDoer
	listing        HTTPDoer
	thumbnailLimit int64
	userAgent      string
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for every call.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.control = client
			c.listing = client
		}
	}
}

// WithListClient overrides only the HTTP client used for asset listing.
func WithListClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.listing = client
		}
	}
}

// WithThumbnailLimit caps the number of bytes read from a thumbnail response.
func WithThumbnailLimit(limit int64) Option {
	return func(c *Client) {
		if limit > 0 {
			c.thumbnailLimit = limit
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(agent string) Option {
	return func(c *Client) {
		c.userAgent = strings.TrimSpace(agent)
	}
}

// New constructs an Immich client. The base URL may include or omit the /api suffix.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	base = strings.TrimSuffix(base, "/api")
	if base == "" {
		return nil, services.Wrap(services.ErrConfiguration, component, "new client", "server url required", nil)
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, services.Wrap(services.ErrConfiguration, component, "new client", fmt.Sprintf("invalid server url %q", baseURL), err)
	}
	key := strings.TrimSpace(apiKey)
	if key == "" {
		return nil, services.Wrap(services.ErrConfiguration, component, "new client", "api key required", nil)
	}
	c := &Client{
		baseURL:        base,
		apiKey:         key,
		control:        &http.Client{Timeout: controlTimeout},
		listing:        &http.Client{Timeout: listingTimeout},
		thumbnailLimit: DefaultThumbnailLimit,
		userAgent:      "sweeper",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized server root without the /api suffix.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListAssets returns one page of the library. An empty cursor requests the first page.
func (c *Client) ListAssets(ctx context.Context, cursor string, size int) (Page, error) {
	page := 1
	if cursor = strings.TrimSpace(cursor); cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 1 {
			return Page{}, services.Wrap(services.ErrValidation, component, "list assets", fmt.Sprintf("invalid cursor %q", cursor), err)
		}
		page = n
	}
	if size <= 0 {
		size = 250
	}
	payload := map[string]any{"page": page, "size": size, "type": "IMAGE", "withExif": true}

	var resp searchResponse
	if err := c.doJSON(ctx, c.listing, "list assets", http.MethodPost, "/api/search/metadata", payload, &resp, listingTimeout); err != nil {
		return Page{}, err
	}
	out := Page{Assets: make([]Asset, 0, len(resp.Assets.Items)), NextCursor: string(resp.Assets.NextPage)}
	for _, item := range resp.Assets.Items {
		if strings.TrimSpace(item.ID) == "" {
			continue
		}
		out.Assets = append(out.Assets, item.toAsset())
	}
	return out, nil
}

// CountAssets reports the number of images from the statistics endpoint,
// falling back to the library total when the server omits the breakdown.
func (c *Client) CountAssets(ctx context.Context) (int, error) {
	var stats Statistics
	if err := c.doJSON(ctx, c.control, "asset statistics", http.MethodGet, "/api/assets/statistics", nil, &stats, controlTimeout); err != nil {
		return 0, err
	}
	if stats.Images > 0 || stats.Videos > 0 {
		return stats.Images, nil
	}
	return stats.Total, nil
}

// GetFaces lists the face annotations for an asset.
func (c *Client) GetFaces(ctx context.Context, id string) ([]Face, error) {
	var faces []Face
	path := "/api/faces?id=" + url.QueryEscape(id)
	if err := c.doJSON(ctx, c.control, "get faces", http.MethodGet, path, nil, &faces, controlTimeout); err != nil {
		return nil, err
	}
	return faces, nil
}

// GetMLMetadata lists the key/value annotations attached to an asset. A 404
// yields an empty list.
func (c *Client) GetMLMetadata(ctx context.Context, id string) ([]MetadataEntry, error) {
	var entries []MetadataEntry
	path := "/api/assets/" + url.PathEscape(id) + "/metadata"
	if err := c.doJSON(ctx, c.control, "get metadata", http.MethodGet, path, nil, &entries, controlTimeout); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return entries, nil
}

// DownloadThumbnail returns the raw thumbnail bytes for an asset.
func (c *Client) DownloadThumbnail(ctx context.Context, id string) ([]byte, error) {
	const op = "download thumbnail"
	path := "/api/assets/" + url.PathEscape(id) + "/thumbnail?size=thumbnail"
	ctx, cancel := context.WithTimeout(ctx, controlTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, component, op, "build request", err)
	}
	req.Header.Set("Accept", "image/*")
	resp, err := c.control.Do(req)
	if err != nil {
		return nil, transportError(op, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(op, resp); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.thumbnailLimit+1))
	if err != nil {
		return nil, transportError(op, err)
	}
	if int64(len(data)) > c.thumbnailLimit {
		return nil, services.Wrap(services.ErrValidation, component, op, fmt.Sprintf("thumbnail exceeds %d bytes", c.thumbnailLimit), nil)
	}
	return data, nil
}

// Delete removes assets from the server. force bypasses the server trash.
func (c *Client) Delete(ctx context.Context, ids []string, force bool) error {
	if len(ids) == 0 {
		return nil
	}
	payload := map[string]any{"ids": ids, "force": force}
	return c.doJSON(ctx, c.control, "delete assets", http.MethodDelete, "/api/assets", payload, nil, controlTimeout)
}

// Ping checks that the server is reachable and answering.
func (c *Client) Ping(ctx context.Context) error {
	var body struct {
		Res string `json:"res"`
	}
	if err := c.doJSON(ctx, c.control, "ping", http.MethodGet, "/api/server/ping", nil, &body, controlTimeout); err != nil {
		return err
	}
	if !strings.EqualFold(body.Res, "pong") {
		return services.Wrap(services.ErrTransient, component, "ping", fmt.Sprintf("unexpected response %q", body.Res), nil)
	}
	return nil
}

// ValidateCredentials checks reachability and that the API key is accepted.
func (c *Client) ValidateCredentials(ctx context.Context) error {
	if err := c.Ping(ctx); err != nil {
		return err
	}
	var me struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	return c.doJSON(ctx, c.control, "validate credentials", http.MethodGet, "/api/users/me", nil, &me, controlTimeout)
}

func (c *Client) doJSON(ctx context.Context, doer HTTPDoer, op, method, path string, payload, out any, timeout time.Duration) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return services.Wrap(services.ErrValidation, component, op, "encode request", err)
		}
		body = bytes.NewReader(data)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return services.Wrap(services.ErrValidation, component, op, "build request", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := doer.Do(req)
	if err != nil {
		return transportError(op, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(op, resp); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return services.Wrap(services.ErrTransient, component, op, "decode response", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return req, nil
}

func checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	statusErr := &StatusError{Operation: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	marker := services.ErrTransient
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		marker = services.ErrConfiguration
	case http.StatusNotFound:
		marker = services.ErrNotFound
	}
	return services.Wrap(marker, component, op, "", statusErr)
}

func transportError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return services.Wrap(services.ErrTimeout, component, op, "request timed out", err)
	}
	return services.Wrap(services.ErrTransient, component, op, "request failed", err)
}
