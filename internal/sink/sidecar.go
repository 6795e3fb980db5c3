package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"scribe/internal/backend"
	"scribe/internal/extract"
	"scribe/internal/language"
	"scribe/internal/logging"
	"scribe/internal/media"
	"scribe/internal/services"
	"scribe/internal/textutil"
)

// Sidecar is the JSON document written next to a processed file.
type Sidecar struct {
	FilePath    string           `json:"file_path"`
	FileType    string           `json:"file_type"`
	BackendUsed string           `json:"backend_used"`
	Timestamp   time.Time        `json:"timestamp"`
	Content     *backend.Content `json:"content"`
}

// SidecarPath returns the JSON sidecar path for a source file:
// "<stem>-scribe.json" in the same directory.
func SidecarPath(source string) string {
	return sidecarStem(source) + ".json"
}

// MarkdownPath returns the markdown companion path for a source file.
func MarkdownPath(source string) string {
	return sidecarStem(source) + ".md"
}

func sidecarStem(source string) string {
	return strings.TrimSuffix(source, filepath.Ext(source)) + extract.OutputSuffix
}

// LocalSink writes results as sidecar files next to their source. Writes
// are atomic per file: content lands in a temp file in the target directory
// and is renamed into place, so readers never observe a partial sidecar.
type LocalSink struct {
	logger   *slog.Logger
	markdown bool
}

// NewLocalSink constructs a sidecar writer. When markdown is set, a
// human-readable "<stem>-scribe.md" is written alongside the JSON sidecar.
func NewLocalSink(logger *slog.Logger, markdown bool) *LocalSink {
	return &LocalSink{
		logger:   logging.NewComponentLogger(logger, "sink"),
		markdown: markdown,
	}
}

func (s *LocalSink) Emit(_ context.Context, result Result) error {
	localPath, err := localizeLocator(result.Item.Locator)
	if err != nil {
		return err
	}

	content := *result.Content
	content.Language = language.Normalize(content.Language)
	doc := Sidecar{
		FilePath:    localPath,
		FileType:    result.Item.Kind.String(),
		BackendUsed: result.Backend,
		Timestamp:   result.ProducedAt.UTC(),
		Content:     &content,
	}

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrValidation, "sink", "emit", "marshal sidecar", err)
	}
	payload = append(payload, '\n')

	jsonPath := SidecarPath(localPath)
	if err := writeAtomic(jsonPath, payload); err != nil {
		return err
	}
	s.logger.Info("sidecar written",
		logging.String("path", jsonPath),
		logging.String(logging.FieldBackend, result.Backend))

	if s.markdown {
		mdPath := MarkdownPath(localPath)
		if err := writeAtomic(mdPath, []byte(renderMarkdown(localPath, doc))); err != nil {
			return err
		}
		s.logger.Info("markdown written", logging.String("path", mdPath))
	}
	return nil
}

// localizeLocator resolves a locator to a local filesystem path. The local
// sink only ever sees items from filesystem ingestion, so URL locators are
// a configuration error rather than a download request.
func localizeLocator(locator string) (string, error) {
	switch {
	case strings.HasPrefix(locator, "file://"):
		return strings.TrimPrefix(locator, "file://"), nil
	case strings.HasPrefix(locator, "http://"), strings.HasPrefix(locator, "https://"):
		return "", services.Wrap(services.ErrValidation, "sink", "emit",
			fmt.Sprintf("cannot write a sidecar for remote locator %s", locator), nil)
	default:
		return locator, nil
	}
}

func writeAtomic(path string, payload []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return services.Wrap(services.ErrTransient, "sink", "write", "create temp file", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return services.Wrap(services.ErrTransient, "sink", "write", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return services.Wrap(services.ErrTransient, "sink", "write", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return services.Wrap(services.ErrTransient, "sink", "write", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return services.Wrap(services.ErrTransient, "sink", "write", path, err)
	}
	return nil
}

func renderMarkdown(localPath string, doc Sidecar) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", textutil.Titleize(localPath))
	fmt.Fprintf(&b, "- **Source:** %s\n", localPath)
	fmt.Fprintf(&b, "- **Type:** %s\n", doc.FileType)
	fmt.Fprintf(&b, "- **Backend:** %s\n", doc.BackendUsed)
	fmt.Fprintf(&b, "- **Processed:** %s\n", doc.Timestamp.Format(time.RFC3339))
	if doc.Content.Language != "" {
		fmt.Fprintf(&b, "- **Language:** %s\n", language.DisplayName(doc.Content.Language))
	}
	if doc.Content.DurationMS > 0 {
		duration := time.Duration(doc.Content.DurationMS) * time.Millisecond
		fmt.Fprintf(&b, "- **Duration:** %s\n", duration.Round(time.Millisecond))
	}

	if doc.Content.Text != "" {
		heading := "Transcript"
		if doc.FileType == media.KindImage.String() {
			heading = "Extracted Text"
		}
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", heading, strings.TrimSpace(doc.Content.Text))
	}
	if doc.Content.Description != "" {
		fmt.Fprintf(&b, "\n## Description\n\n%s\n", strings.TrimSpace(doc.Content.Description))
	}
	if len(doc.Content.Tags) > 0 {
		fmt.Fprintf(&b, "\n**Tags:** %s\n", strings.Join(doc.Content.Tags, ", "))
	}
	return b.String()
}
