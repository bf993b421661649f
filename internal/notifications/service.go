package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"libconv/internal/config"
)

const userAgent = "libconv/0.1.0"

// RunSummary is the end-of-run report sent after a batch finishes.
type RunSummary struct {
	RunID      string
	Execute    bool
	Cancelled  bool
	Accepted   int
	Reverted   int
	Failed     int
	Skipped    int
	Planned    int
	BytesSaved int64
	Duration   time.Duration
}

// Service defines the notification surface used by the orchestrator and CLI.
type Service interface {
	NotifyRunStarted(ctx context.Context, runID string, count int, execute bool) error
	NotifyRunCompleted(ctx context.Context, summary RunSummary) error
	NotifyPublishCompleted(ctx context.Context, directories int) error
	NotifyError(ctx context.Context, err error, context string) error
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
		endpoint:     topic,
		client:       &http.Client{Timeout: timeout},
		runStarted:   cfg.Notifications.RunStarted,
		runCompleted: cfg.Notifications.RunCompleted,
		errors:       cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client

	runStarted   bool
	runCompleted bool
	errors       bool
}

func (n *ntfyService) NotifyRunStarted(ctx context.Context, runID string, count int, execute bool) error {
	if !n.runStarted {
		return nil
	}
	mode := "plan-only"
	if execute {
		mode = "conversion"
	}
	data := payload{
		title:   "libconv - Run Started",
		message: fmt.Sprintf("Started %s run %s with %d files", mode, shortID(runID), count),
		tags:    []string{"libconv", "run", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, summary RunSummary) error {
	if !n.runCompleted {
		return nil
	}
	p := message.NewPrinter(language.English)
	duration := summary.Duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	title := "libconv - Run Complete"
	tags := []string{"libconv", "run", "completed"}
	priority := ""
	switch {
	case summary.Cancelled:
		title = "libconv - Run Cancelled"
		tags = []string{"libconv", "run", "cancelled"}
	case summary.Failed > 0:
		title = "libconv - Run Complete (with errors)"
		priority = "high"
	}

	var msg string
	if summary.Execute {
		msg = p.Sprintf("%d accepted, %d reverted, %d failed, %d skipped in %s\n%d bytes saved",
			summary.Accepted, summary.Reverted, summary.Failed, summary.Skipped, duration, summary.BytesSaved)
	} else {
		msg = p.Sprintf("%d files planned in %s", summary.Planned, duration)
	}

	data := payload{
		title:    title,
		message:  msg,
		tags:     tags,
		priority: priority,
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyPublishCompleted(ctx context.Context, directories int) error {
	if !n.runCompleted {
		return nil
	}
	data := payload{
		title:   "libconv - Published",
		message: fmt.Sprintf("Synced %d directories to production", directories),
		tags:    []string{"libconv", "publish", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "libconv - Error",
		message:  builder.String(),
		tags:     []string{"libconv", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "libconv - Test",
		message:  "Notification system test",
		tags:     []string{"libconv", "test"},
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

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

type noopService struct{}

func (noopService) NotifyRunStarted(context.Context, string, int, bool) error { return nil }
func (noopService) NotifyRunCompleted(context.Context, RunSummary) error     { return nil }
func (noopService) NotifyPublishCompleted(context.Context, int) error        { return nil }
func (noopService) NotifyError(context.Context, error, string) error         { return nil }
func (noopService) TestNotification(context.Context) error                   { return nil }
