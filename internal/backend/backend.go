package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"scribe/internal/media"
	"scribe/internal/services"
)

// Content is the output of a backend: a transcript for audio/video or a
// description for images. Empty fields are omitted from serialized output.
type Content struct {
	Text        string   `json:"text,omitempty"`
	Language    string   `json:"language,omitempty"`
	DurationMS  int64    `json:"duration_ms,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Processor is the capability boundary the pipeline requires from a backend.
// Implementations must honor ctx cancellation; the worker applies the
// per-item timeout through it.
type Processor interface {
	Process(ctx context.Context, locator string, kind media.Kind) (*Content, error)
	Name() string
}

// fetchLocator reads the payload bytes behind a locator: an http(s) URL, a
// file:// URL, or a plain filesystem path.
func fetchLocator(ctx context.Context, client *http.Client, locator string) ([]byte, error) {
	switch {
	case strings.HasPrefix(locator, "http://"), strings.HasPrefix(locator, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "backend", "fetch", "build request", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "backend", "fetch", locator, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, services.Wrap(services.ErrTransient, "backend", "fetch",
				fmt.Sprintf("%s returned status %d", locator, resp.StatusCode), nil)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "backend", "fetch", "read body", err)
		}
		return data, nil
	case strings.HasPrefix(locator, "file://"):
		return readLocalFile(strings.TrimPrefix(locator, "file://"))
	default:
		return readLocalFile(locator)
	}
}

func readLocalFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "backend", "fetch", path, err)
	}
	return data, nil
}

// filenameFromLocator extracts the trailing path segment for upload naming.
func filenameFromLocator(locator string) string {
	trimmed := locator
	if idx := strings.IndexAny(trimmed, "?#"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	if trimmed == "" {
		return "payload"
	}
	return trimmed
}

func mimeTypeFromLocator(locator string) string {
	name := strings.ToLower(filenameFromLocator(locator))
	switch {
	case strings.HasSuffix(name, ".png"):
		return "image/png"
	case strings.HasSuffix(name, ".gif"):
		return "image/gif"
	case strings.HasSuffix(name, ".webp"):
		return "image/webp"
	case strings.HasSuffix(name, ".bmp"):
		return "image/bmp"
	case strings.HasSuffix(name, ".svg"):
		return "image/svg+xml"
	default:
		return "image/jpeg"
	}
}
