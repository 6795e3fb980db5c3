package sink_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"scribe/internal/backend"
	"scribe/internal/extract"
	"scribe/internal/media"
	"scribe/internal/sink"
	"scribe/internal/testsupport"
)

func audioResult(t *testing.T, dir string) sink.Result {
	t.Helper()
	source := testsupport.WriteFile(t, dir, "standup-notes.mp3", "fake-audio")
	return sink.Result{
		Item: extract.Item{
			SourceID: source,
			Kind:     media.KindAudio,
			Locator:  source,
		},
		Backend: "whisper",
		Content: &backend.Content{
			Text:       "we shipped the importer yesterday",
			Language:   "english",
			DurationMS: 95000,
		},
		ProducedAt: time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC),
	}
}

func TestLocalSinkWritesJSONSidecar(t *testing.T) {
	dir := t.TempDir()
	result := audioResult(t, dir)
	s := sink.NewLocalSink(nil, false)

	if err := s.Emit(context.Background(), result); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	sidecarPath := sink.SidecarPath(result.Item.Locator)
	if filepath.Base(sidecarPath) != "standup-notes-scribe.json" {
		t.Fatalf("unexpected sidecar name %s", sidecarPath)
	}
	payload, err := os.ReadFile(sidecarPath)
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	var doc sink.Sidecar
	if err := json.Unmarshal(payload, &doc); err != nil {
		t.Fatalf("unmarshal sidecar: %v", err)
	}
	if doc.FilePath != result.Item.Locator || doc.FileType != "audio" || doc.BackendUsed != "whisper" {
		t.Fatalf("unexpected sidecar header: %+v", doc)
	}
	if doc.Content.Text != result.Content.Text {
		t.Fatalf("unexpected content text %q", doc.Content.Text)
	}
	if doc.Content.Language != "en" {
		t.Fatalf("expected normalized language code, got %q", doc.Content.Language)
	}
	if !doc.Timestamp.Equal(result.ProducedAt) {
		t.Fatalf("unexpected timestamp %s", doc.Timestamp)
	}
}

func TestLocalSinkWritesMarkdownCompanion(t *testing.T) {
	dir := t.TempDir()
	result := audioResult(t, dir)
	s := sink.NewLocalSink(nil, true)

	if err := s.Emit(context.Background(), result); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	payload, err := os.ReadFile(sink.MarkdownPath(result.Item.Locator))
	if err != nil {
		t.Fatalf("read markdown: %v", err)
	}
	text := string(payload)
	for _, want := range []string{
		"# Standup Notes",
		"- **Backend:** whisper",
		"- **Language:** English",
		"## Transcript",
		"we shipped the importer yesterday",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("markdown missing %q:\n%s", want, text)
		}
	}
}

func TestLocalSinkLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	result := audioResult(t, dir)
	s := sink.NewLocalSink(nil, true)

	if err := s.Emit(context.Background(), result); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, entry := range entries {
		if strings.Contains(entry.Name(), ".tmp-") {
			t.Fatalf("temp file left behind: %s", entry.Name())
		}
	}
	if len(entries) != 3 {
		t.Fatalf("expected source + json + md, got %d entries", len(entries))
	}
}

func TestLocalSinkReplacesExistingSidecar(t *testing.T) {
	dir := t.TempDir()
	result := audioResult(t, dir)
	s := sink.NewLocalSink(nil, false)

	stale := sink.SidecarPath(result.Item.Locator)
	if err := os.WriteFile(stale, []byte("{stale}"), 0o644); err != nil {
		t.Fatalf("seed stale sidecar: %v", err)
	}

	if err := s.Emit(context.Background(), result); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	payload, err := os.ReadFile(stale)
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	var doc sink.Sidecar
	if err := json.Unmarshal(payload, &doc); err != nil {
		t.Fatalf("stale sidecar was not replaced with valid JSON: %v", err)
	}
}

func TestLocalSinkRejectsRemoteLocators(t *testing.T) {
	s := sink.NewLocalSink(nil, false)
	result := sink.Result{
		Item: extract.Item{
			SourceID: "evt-1",
			Kind:     media.KindAudio,
			Locator:  "https://cdn.example.com/a.mp3",
		},
		Backend:    "ort",
		Content:    &backend.Content{Text: "x"},
		ProducedAt: time.Now().UTC(),
	}
	if err := s.Emit(context.Background(), result); err == nil {
		t.Fatal("expected error for remote locator")
	}
}

func TestImageSidecarRendersDescriptionAndTags(t *testing.T) {
	dir := t.TempDir()
	source := testsupport.WriteFile(t, dir, "whiteboard.png", "fake-png")
	result := sink.Result{
		Item: extract.Item{
			SourceID: source,
			Kind:     media.KindImage,
			Locator:  source,
		},
		Backend: "vision",
		Content: &backend.Content{
			Description: "a whiteboard covered in boxes and arrows",
			Tags:        []string{"whiteboard", "diagram"},
		},
		ProducedAt: time.Now().UTC(),
	}
	s := sink.NewLocalSink(nil, true)
	if err := s.Emit(context.Background(), result); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	payload, err := os.ReadFile(sink.MarkdownPath(source))
	if err != nil {
		t.Fatalf("read markdown: %v", err)
	}
	text := string(payload)
	if !strings.Contains(text, "## Description") {
		t.Errorf("markdown missing description section:\n%s", text)
	}
	if !strings.Contains(text, "**Tags:** whiteboard, diagram") {
		t.Errorf("markdown missing tags line:\n%s", text)
	}
}
