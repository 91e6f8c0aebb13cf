package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"streamwatch/internal/notifications"
	"streamwatch/internal/testsupport"
)

type capturedRequest struct {
	title    string
	tags     string
	priority string
	body     string
}

func newCaptureServer(t *testing.T, sink *[]capturedRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		*sink = append(*sink, capturedRequest{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		w.WriteHeader(http.StatusOK)
	}))
}

func TestNoopWhenTopicUnset(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	service := notifications.NewService(cfg)

	if err := service.NotifyMonitorStarted(context.Background(), 3); err != nil {
		t.Fatalf("noop service errored: %v", err)
	}
	if err := service.TestNotification(context.Background()); err != nil {
		t.Fatalf("noop service errored: %v", err)
	}
}

func TestRecordingNotificationsCarryHeaders(t *testing.T) {
	var requests []capturedRequest
	server := newCaptureServer(t, &requests)
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithNtfyTopic(server.URL+"/streamwatch"))
	service := notifications.NewService(cfg)

	ctx := context.Background()
	if err := service.NotifyRecordingStarted(ctx, "@alpha"); err != nil {
		t.Fatalf("NotifyRecordingStarted: %v", err)
	}
	if err := service.NotifyRecordingFinished(ctx, "@alpha", "stream_ended", 42*time.Minute, 120); err != nil {
		t.Fatalf("NotifyRecordingFinished: %v", err)
	}

	if len(requests) != 2 {
		t.Fatalf("requests = %d", len(requests))
	}
	if requests[0].title == "" || !strings.Contains(requests[0].body, "@alpha") {
		t.Fatalf("started request = %+v", requests[0])
	}
	if !strings.Contains(requests[1].body, "stream_ended") {
		t.Fatalf("finished request = %+v", requests[1])
	}
}

func TestRecordingNotificationsRespectToggle(t *testing.T) {
	var requests []capturedRequest
	server := newCaptureServer(t, &requests)
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithNtfyTopic(server.URL+"/streamwatch"))
	cfg.Notifications.Recordings = false
	service := notifications.NewService(cfg)

	if err := service.NotifyRecordingStarted(context.Background(), "@alpha"); err != nil {
		t.Fatalf("NotifyRecordingStarted: %v", err)
	}
	if len(requests) != 0 {
		t.Fatalf("recording notification sent despite toggle: %+v", requests)
	}

	// Lifecycle notifications are not covered by the recordings toggle.
	if err := service.NotifyMonitorStarted(context.Background(), 1); err != nil {
		t.Fatalf("NotifyMonitorStarted: %v", err)
	}
	if len(requests) != 1 {
		t.Fatalf("monitor notification missing: %+v", requests)
	}
}

func TestSendSurfacesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithNtfyTopic(server.URL+"/streamwatch"))
	service := notifications.NewService(cfg)

	err := service.TestNotification(context.Background())
	if err == nil {
		t.Fatal("expected error from 429 response")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Fatalf("error does not mention status: %v", err)
	}
}
