package testsupport

import (
	"path/filepath"
	"testing"

	"scribe/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WatchDir = filepath.Join(base, "inbox")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Backend.Name = "ort"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithWorkers overrides the worker pool size on the test config.
func WithWorkers(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pipeline.Workers = n
	}
}

// WithQueueCapacity overrides the dispatch queue capacity on the test config.
func WithQueueCapacity(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pipeline.QueueCapacity = n
	}
}

// WithBackendTimeout overrides the per-item timeout in seconds.
func WithBackendTimeout(seconds int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Backend.TimeoutSeconds = seconds
	}
}
