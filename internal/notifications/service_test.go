package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"scribe/internal/notifications"
	"scribe/internal/testsupport"
)

type captured struct {
	title    string
	message  string
	tags     string
	priority string
}

func newCapturingServer(t *testing.T) (*httptest.Server, *[]captured) {
	t.Helper()
	var requests []captured
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		requests = append(requests, captured{
			title:    r.Header.Get("Title"),
			message:  string(body),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
		})
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(cfg)
	if err := svc.NotifyItemFailed(context.Background(), "/inbox/a.mp3", errors.New("boom")); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsMessages(t *testing.T) {
	server, requests := newCapturingServer(t)
	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Processed = true
	cfg.Notifications.Errors = true
	svc := notifications.NewService(cfg)
	ctx := context.Background()

	if err := svc.NotifyPipelineStarted(ctx, "watch"); err != nil {
		t.Fatalf("NotifyPipelineStarted: %v", err)
	}
	if err := svc.NotifyItemProcessed(ctx, "/inbox/a.mp3", "whisper"); err != nil {
		t.Fatalf("NotifyItemProcessed: %v", err)
	}
	if err := svc.NotifyItemFailed(ctx, "/inbox/b.mp3", errors.New("backend exploded")); err != nil {
		t.Fatalf("NotifyItemFailed: %v", err)
	}

	got := *requests
	if len(got) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(got))
	}
	if got[0].title != "Scribe - Started" || !strings.Contains(got[0].message, "watch mode") {
		t.Fatalf("unexpected start notification: %+v", got[0])
	}
	if got[1].title != "Scribe - Processed" || !strings.Contains(got[1].message, "whisper") {
		t.Fatalf("unexpected processed notification: %+v", got[1])
	}
	if got[2].title != "Scribe - Error" || got[2].priority != "high" {
		t.Fatalf("unexpected error notification: %+v", got[2])
	}
	if !strings.Contains(got[2].message, "backend exploded") {
		t.Fatalf("error notification missing cause: %+v", got[2])
	}
}

func TestNtfyServiceHonorsPerEventGates(t *testing.T) {
	server, requests := newCapturingServer(t)
	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Processed = false
	cfg.Notifications.Errors = false
	svc := notifications.NewService(cfg)
	ctx := context.Background()

	if err := svc.NotifyItemProcessed(ctx, "/inbox/a.mp3", "ort"); err != nil {
		t.Fatalf("NotifyItemProcessed: %v", err)
	}
	if err := svc.NotifyItemFailed(ctx, "/inbox/b.mp3", errors.New("x")); err != nil {
		t.Fatalf("NotifyItemFailed: %v", err)
	}
	if len(*requests) != 0 {
		t.Fatalf("expected gated notifications to send nothing, got %d requests", len(*requests))
	}
}

func TestNtfyServiceSurfacesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic quota exceeded", http.StatusTooManyRequests)
	}))
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(cfg)

	err := svc.TestNotification(context.Background())
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status code in error, got %v", err)
	}
}
