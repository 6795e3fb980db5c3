package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"scribe/internal/backend"
	"scribe/internal/config"
	"scribe/internal/ledger"
	"scribe/internal/logging"
	"scribe/internal/notifications"
	"scribe/internal/pipeline"
	"scribe/internal/relay"
	"scribe/internal/sink"
	"scribe/internal/watcher"
)

// Mode selects the ingestion source for a daemon run.
type Mode string

const (
	// ModeWatch ingests from the configured watch directory.
	ModeWatch Mode = "watch"
	// ModeListen ingests from the configured relay subscription.
	ModeListen Mode = "listen"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the scribe daemon loop in the given mode and blocks until the
// process receives SIGINT/SIGTERM or the ingestion source fails. In-flight
// items are drained before the ledger closes.
func Run(cmdCtx context.Context, cfg *config.Config, mode Mode, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	lock := flock.New(filepath.Join(cfg.Paths.StateDir, "scribe.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another scribe instance is already running (lock: %s)", lock.Path())
	}
	defer lock.Unlock()

	runStamp := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("scribe-%s.log", runStamp))
	logger, err := logging.New(logging.Options{
		Level:            firstNonEmpty(opts.LogLevel, cfg.Logging.Level),
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger = logger.With(logging.String(logging.FieldRunID, uuid.NewString()))
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update scribe.log link: %v\n", err)
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "scribe.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := ledger.Open(cfg, logger)
	if err != nil {
		logger.Error("open ledger", logging.Error(err))
		return err
	}
	defer store.Close()

	selection, err := backend.Resolve(cfg, logger)
	if err != nil {
		logger.Error("resolve backend", logging.Error(err))
		return err
	}

	notifier := notifications.NewService(cfg)

	var (
		resultSink  sink.Sink
		relayClient *relay.Client
	)
	switch mode {
	case ModeWatch:
		if cfg.Paths.WatchDir == "" {
			return fmt.Errorf("paths.watch_dir is required for watch mode")
		}
		if err := os.MkdirAll(cfg.Paths.WatchDir, 0o755); err != nil {
			return fmt.Errorf("create watch directory: %w", err)
		}
		resultSink = sink.NewLocalSink(logger, true)
	case ModeListen:
		if cfg.Relay.URL == "" {
			return fmt.Errorf("relay.url is required for listen mode")
		}
		maxBackoff := time.Duration(cfg.Relay.ReconnectMaxSeconds) * time.Second
		relayClient = relay.New(cfg.Relay.URL, maxBackoff, logger)
		if cfg.Relay.PublishResults {
			resultSink = sink.NewRelaySink(relayClient, logger)
		} else {
			resultSink = sink.Discard
		}
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}

	pl := pipeline.New(cfg, store, selection, resultSink, notifier, logger)
	pl.Start(signalCtx)

	logger.Info("scribe daemon started",
		logging.String("mode", string(mode)),
		logging.String("ledger", store.Path()))
	if err := notifier.NotifyPipelineStarted(signalCtx, string(mode)); err != nil {
		logger.Debug("start notification failed", logging.Error(err))
	}

	sourceErr := make(chan error, 1)
	switch mode {
	case ModeWatch:
		w := watcher.New(cfg.Paths.WatchDir, func(path string) {
			if err := pl.IngestPath(signalCtx, path); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("ingestion failed",
					logging.String(logging.FieldLocator, path), logging.Error(err))
			}
		}, logger)
		go func() { sourceErr <- w.Run(signalCtx) }()
	case ModeListen:
		go func() {
			sourceErr <- relayClient.Subscribe(signalCtx, func(event relay.Event) {
				refs := event.RefValues(relay.RefLocator)
				if err := pl.IngestMessage(signalCtx, event.ID, event.Content, refs); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("ingestion failed",
						logging.String(logging.FieldSource, event.ID), logging.Error(err))
				}
			})
		}()
	}

	var runErr error
	select {
	case <-signalCtx.Done():
		logger.Info("shutdown signal received")
		<-sourceErr
	case runErr = <-sourceErr:
		if runErr != nil && !errors.Is(runErr, context.Canceled) {
			logger.Error("ingestion source failed", logging.Error(runErr))
		} else {
			runErr = nil
		}
		cancel()
	}

	pl.Stop()
	logger.Info("scribe daemon stopped")
	return runErr
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "scribe.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
