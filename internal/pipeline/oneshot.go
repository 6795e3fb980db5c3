package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"scribe/internal/backend"
	"scribe/internal/config"
	"scribe/internal/extract"
	"scribe/internal/media"
	"scribe/internal/services"
	"scribe/internal/sink"
)

// ProcessFile transcribes one local file outside the daemon flow: no ledger,
// no queue, no dedup. The sidecar is written next to the file; the sidecar
// path and produced content are returned for the one-shot command to print.
func ProcessFile(ctx context.Context, cfg *config.Config, path string, logger *slog.Logger) (string, *backend.Content, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", nil, services.Wrap(services.ErrValidation, "pipeline", "process-file", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", nil, services.Wrap(services.ErrValidation, "pipeline", "process-file", abs, err)
	}
	if info.IsDir() {
		return "", nil, services.Wrap(services.ErrValidation, "pipeline", "process-file",
			fmt.Sprintf("%s is a directory", abs), nil)
	}

	table := media.NewTable(
		cfg.FileTypes.AudioExtensions,
		cfg.FileTypes.VideoExtensions,
		cfg.FileTypes.ImageExtensions,
	)
	item, ok := extract.New(table).FromPath(abs)
	if !ok {
		return "", nil, services.Wrap(services.ErrValidation, "pipeline", "process-file",
			fmt.Sprintf("%s is not a supported media file", abs), nil)
	}

	selection, err := backend.Resolve(cfg, logger)
	if err != nil {
		return "", nil, err
	}
	proc, err := selection.For(item.Kind)
	if err != nil {
		return "", nil, err
	}

	procCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Backend.TimeoutSeconds)*time.Second)
	defer cancel()
	content, err := proc.Process(procCtx, item.Locator, item.Kind)
	if err != nil {
		if errors.Is(procCtx.Err(), context.DeadlineExceeded) {
			return "", nil, services.Wrap(services.ErrTimeout, "pipeline", "process-file", item.Locator, err)
		}
		return "", nil, err
	}

	result := sink.Result{
		Item:       item,
		Backend:    proc.Name(),
		Content:    content,
		ProducedAt: time.Now().UTC(),
	}
	if err := sink.NewLocalSink(logger, true).Emit(ctx, result); err != nil {
		return "", nil, err
	}
	return sink.SidecarPath(abs), content, nil
}
