package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"streamwatch/internal/config"
)

const userAgent = "Streamwatch/0.1.0"

// Service defines the notification surface exposed to the monitor.
type Service interface {
	NotifyMonitorStarted(ctx context.Context, accounts int) error
	NotifyMonitorStopped(ctx context.Context, reason string) error
	NotifyRecordingStarted(ctx context.Context, username string) error
	NotifyRecordingFinished(ctx context.Context, username, reason string, duration time.Duration, events int) error
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
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		recordings: cfg.Notifications.Recordings,
		errors:     cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	recordings bool
	errors     bool
}

func (n *ntfyService) NotifyMonitorStarted(ctx context.Context, accounts int) error {
	data := payload{
		title:   "Streamwatch - Started",
		message: fmt.Sprintf("Monitoring %d streamers", accounts),
		tags:    []string{"streamwatch", "monitor", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyMonitorStopped(ctx context.Context, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "shutdown"
	}
	data := payload{
		title:   "Streamwatch - Stopped",
		message: fmt.Sprintf("Monitor stopped: %s", reason),
		tags:    []string{"streamwatch", "monitor", "stopped"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRecordingStarted(ctx context.Context, username string) error {
	if !n.recordings {
		return nil
	}
	data := payload{
		title:   "Streamwatch - Recording",
		message: fmt.Sprintf("%s went live, recording started", strings.TrimSpace(username)),
		tags:    []string{"streamwatch", "recording", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRecordingFinished(ctx context.Context, username, reason string, duration time.Duration, events int) error {
	if !n.recordings {
		return nil
	}
	data := payload{
		title: "Streamwatch - Recording Finished",
		message: fmt.Sprintf("%s: %s after %s, %d events captured",
			strings.TrimSpace(username), reason, duration.Round(time.Second), events),
		tags: []string{"streamwatch", "recording", "finished"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, context string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if context = strings.TrimSpace(context); context != "" {
		builder.WriteString(" in ")
		builder.WriteString(context)
	}
	if err != nil {
		builder.WriteString(": ")
		builder.WriteString(err.Error())
	}
	data := payload{
		title:    "Streamwatch - Error",
		message:  builder.String(),
		tags:     []string{"streamwatch", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Streamwatch - Test",
		message:  "Notification system test",
		tags:     []string{"streamwatch", "test"},
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

func (noopService) NotifyMonitorStarted(context.Context, int) error { return nil }
func (noopService) NotifyMonitorStopped(context.Context, string) error {
	return nil
}
func (noopService) NotifyRecordingStarted(context.Context, string) error { return nil }
func (noopService) NotifyRecordingFinished(context.Context, string, string, time.Duration, int) error {
	return nil
}
func (noopService) NotifyError(context.Context, error, string) error { return nil }
func (noopService) TestNotification(context.Context) error           { return nil }
