package backend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"scribe/internal/backend"
	"scribe/internal/media"
	"scribe/internal/testsupport"
)

func TestOpenAITranscribeParsesVerboseJSON(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("expected whisper-1 model, got %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"text":     "hello world",
			"language": "en",
			"duration": 1.5,
		})
	}))
	defer server.Close()

	audioPath := testsupport.WriteFile(t, t.TempDir(), "sample.mp3", "fake-audio-bytes")
	b := backend.NewOpenAI("sk-test", backend.WithOpenAIBaseURL(server.URL))

	content, err := b.Process(context.Background(), audioPath, media.KindAudio)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if content.Text != "hello world" || content.Language != "en" {
		t.Fatalf("unexpected content: %+v", content)
	}
	if content.DurationMS != 1500 {
		t.Fatalf("expected duration 1500ms, got %d", content.DurationMS)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("expected bearer auth, got %q", gotAuth)
	}
}

func TestOpenAIDescribeSendsDataURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Content []struct {
					Type     string `json:"type"`
					ImageURL *struct {
						URL string `json:"url"`
					} `json:"image_url"`
				} `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		found := false
		for _, part := range req.Messages[0].Content {
			if part.Type == "image_url" && part.ImageURL != nil && len(part.ImageURL.URL) > len("data:image/png;base64,") {
				found = true
			}
		}
		if !found {
			t.Error("expected base64 data URL in request")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "a red square"}},
			},
		})
	}))
	defer server.Close()

	imagePath := testsupport.WriteFile(t, t.TempDir(), "square.png", "fake-png-bytes")
	b := backend.NewOpenAI("sk-test", backend.WithOpenAIBaseURL(server.URL))

	content, err := b.Process(context.Background(), imagePath, media.KindImage)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if content.Description != "a red square" {
		t.Fatalf("unexpected description: %+v", content)
	}
}

func TestOpenAISurfacesAPIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	audioPath := testsupport.WriteFile(t, t.TempDir(), "sample.mp3", "fake-audio-bytes")
	b := backend.NewOpenAI("sk-test", backend.WithOpenAIBaseURL(server.URL))

	if _, err := b.Process(context.Background(), audioPath, media.KindAudio); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
