package backend

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"scribe/internal/media"
	"scribe/internal/services"
)

// WhisperBackend transcribes audio/video with a local whisper.cpp-style
// binary. Remote locators are fetched to a temp file first since the binary
// only reads local paths.
type WhisperBackend struct {
	binary    string
	modelPath string
	client    *http.Client
}

// NewWhisper constructs the local transcription backend.
func NewWhisper(binary, modelPath string) *WhisperBackend {
	if binary == "" {
		binary = "whisper-cli"
	}
	return &WhisperBackend{binary: binary, modelPath: modelPath, client: &http.Client{}}
}

func (b *WhisperBackend) Name() string { return "whisper" }

func (b *WhisperBackend) Process(ctx context.Context, locator string, kind media.Kind) (*Content, error) {
	if kind != media.KindAudio && kind != media.KindVideo {
		return nil, services.Wrap(services.ErrValidation, "whisper", "process",
			fmt.Sprintf("whisper backend only handles audio/video, got %s", kind), nil)
	}
	if b.modelPath == "" {
		return nil, services.Wrap(services.ErrConfiguration, "whisper", "process",
			"model_path is required for the whisper backend", nil)
	}

	localPath, cleanup, err := b.materialize(ctx, locator)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	args := []string{"-m", b.modelPath, "-f", localPath, "--no-timestamps"}
	cmd := exec.CommandContext(ctx, b.binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, services.Wrap(services.ErrTimeout, "whisper", "transcribe", locator, ctx.Err())
		}
		return nil, services.Wrap(services.ErrExternalTool, "whisper", "transcribe",
			truncate(strings.TrimSpace(stderr.String()), 200), err)
	}

	text := strings.TrimSpace(stdout.String())
	if text == "" {
		return nil, services.Wrap(services.ErrExternalTool, "whisper", "transcribe",
			"binary produced no transcript", nil)
	}
	return &Content{Text: text}, nil
}

// materialize returns a local path for the locator, downloading to a temp
// file when needed. cleanup removes any temp file.
func (b *WhisperBackend) materialize(ctx context.Context, locator string) (string, func(), error) {
	noop := func() {}
	switch {
	case strings.HasPrefix(locator, "file://"):
		return strings.TrimPrefix(locator, "file://"), noop, nil
	case strings.HasPrefix(locator, "http://"), strings.HasPrefix(locator, "https://"):
		payload, err := fetchLocator(ctx, b.client, locator)
		if err != nil {
			return "", noop, err
		}
		tmp, err := os.CreateTemp("", "scribe-whisper-*"+filepath.Ext(filenameFromLocator(locator)))
		if err != nil {
			return "", noop, services.Wrap(services.ErrTransient, "whisper", "materialize", "create temp file", err)
		}
		if _, err := tmp.Write(payload); err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return "", noop, services.Wrap(services.ErrTransient, "whisper", "materialize", "write temp file", err)
		}
		if err := tmp.Close(); err != nil {
			os.Remove(tmp.Name())
			return "", noop, services.Wrap(services.ErrTransient, "whisper", "materialize", "close temp file", err)
		}
		path := tmp.Name()
		return path, func() { os.Remove(path) }, nil
	default:
		return locator, noop, nil
	}
}
