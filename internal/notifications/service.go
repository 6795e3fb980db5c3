package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"scribe/internal/config"
)

const userAgent = "Scribe-Go/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyPipelineStarted(ctx context.Context, mode string) error
	NotifyItemProcessed(ctx context.Context, locator, backend string) error
	NotifyItemFailed(ctx context.Context, locator string, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		processed: cfg.Notifications.Processed,
		errors:    cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	processed bool
	errors    bool
}

func (n *ntfyService) NotifyPipelineStarted(ctx context.Context, mode string) error {
	mode = strings.TrimSpace(mode)
	if mode == "" {
		mode = "unknown"
	}
	data := payload{
		title:   "Scribe - Started",
		message: fmt.Sprintf("Pipeline running in %s mode", mode),
		tags:    []string{"scribe", "pipeline", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyItemProcessed(ctx context.Context, locator, backend string) error {
	if !n.processed {
		return nil
	}
	locator = strings.TrimSpace(locator)
	backend = strings.TrimSpace(backend)
	if backend == "" {
		backend = "unknown"
	}
	data := payload{
		title:   "Scribe - Processed",
		message: fmt.Sprintf("Transcribed with %s: %s", backend, locator),
		tags:    []string{"scribe", "item", "processed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyItemFailed(ctx context.Context, locator string, err error) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Failed: ")
	builder.WriteString(strings.TrimSpace(locator))
	builder.WriteString("\n")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown error")
	}
	data := payload{
		title:    "Scribe - Error",
		message:  builder.String(),
		tags:     []string{"scribe", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Scribe - Test",
		message:  "Notification system test",
		tags:     []string{"scribe", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
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

func (noopService) NotifyPipelineStarted(context.Context, string) error       { return nil }
func (noopService) NotifyItemProcessed(context.Context, string, string) error { return nil }
func (noopService) NotifyItemFailed(context.Context, string, error) error     { return nil }
func (noopService) TestNotification(context.Context) error                    { return nil }
