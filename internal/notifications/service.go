package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sweeper/internal/config"
)

const userAgent = "sweeper/0.1.0"

// Event identifies the kind of notification being published.
type Event string

const (
	EventRunCompleted    Event = "run_completed"
	EventRunFailed       Event = "run_failed"
	EventDeleteCompleted Event = "delete_completed"
	EventTest            Event = "test"
)

// Payload carries event-specific values.
type Payload map[string]any

func (p Payload) text(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (p Payload) count(key string) int {
	if p == nil {
		return 0
	}
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func (p Payload) duration(key string) time.Duration {
	if p == nil {
		return 0
	}
	if d, ok := p[key].(time.Duration); ok {
		return d
	}
	return 0
}

// Service publishes notifications.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventRunCompleted:    cfg.Notifications.RunCompleted,
			EventDeleteCompleted: cfg.Notifications.RunCompleted,
			EventRunFailed:       cfg.Notifications.Errors,
			EventTest:            true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || n.client == nil {
		return nil
	}
	if !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return fmt.Errorf("unknown notification event %q", event)
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventRunCompleted:
		processed := payload.count("processed")
		found := payload.count("found")
		elapsed := formatDuration(payload.duration("duration"))
		if payload.text("status") == "stopped" {
			return message{
				title: "Sweeper - Scan Stopped",
				body:  fmt.Sprintf("Scan stopped after %d assets, %d candidates found in %s", processed, found, elapsed),
				tags:  []string{"sweeper", "scan", "stopped"},
			}, true
		}
		body := fmt.Sprintf("Scan complete: %d assets analyzed, %d candidates found in %s", processed, found, elapsed)
		if failed := payload.count("failed"); failed > 0 {
			body = fmt.Sprintf("%s (%d failed)", body, failed)
		}
		return message{
			title: "Sweeper - Scan Complete",
			body:  body,
			tags:  []string{"sweeper", "scan", "completed"},
		}, true
	case EventRunFailed:
		detail := payload.text("error")
		if detail == "" {
			detail = "unknown"
		}
		return message{
			title:    "Sweeper - Scan Failed",
			body:     fmt.Sprintf("Scan failed after %d assets: %s", payload.count("processed"), detail),
			tags:     []string{"sweeper", "scan", "error"},
			priority: "high",
		}, true
	case EventDeleteCompleted:
		return message{
			title: "Sweeper - Assets Deleted",
			body:  fmt.Sprintf("Deleted %d assets from Immich", payload.count("count")),
			tags:  []string{"sweeper", "delete"},
		}, true
	case EventTest:
		return message{
			title:    "Sweeper - Test",
			body:     "Notification system test",
			tags:     []string{"sweeper", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
