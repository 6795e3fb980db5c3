package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WatchDir string `toml:"watch_dir"`
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Backend selects and configures the processing backend.
type Backend struct {
	// Name is one of "auto", "openai", "whisper", "ort", "vision".
	Name           string `toml:"name"`
	APIKey         string `toml:"api_key"`
	ModelPath      string `toml:"model_path"`
	WhisperBinary  string `toml:"whisper_binary"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Vision configures an OpenAI-compatible vision endpoint for image description.
type Vision struct {
	APIKey string `toml:"api_key"`
	APIURL string `toml:"api_url"`
	Model  string `toml:"model"`
}

// Relay configures the pubsub event listener and publisher.
type Relay struct {
	URL                 string `toml:"url"`
	PublishResults      bool   `toml:"publish_results"`
	ReconnectMaxSeconds int    `toml:"reconnect_max_seconds"`
}

// Pipeline contains queue and worker pool sizing.
type Pipeline struct {
	Workers       int `toml:"workers"`
	QueueCapacity int `toml:"queue_capacity"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Processed      bool   `toml:"processed"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// FileTypes overrides the extension allow-lists used for media classification.
type FileTypes struct {
	AudioExtensions []string `toml:"audio_extensions"`
	VideoExtensions []string `toml:"video_extensions"`
	ImageExtensions []string `toml:"image_extensions"`
}

// Config encapsulates all configuration values for scribe.
//
// Configuration sections by subsystem:
//   - Paths: watched directory, ledger/state directory, log directory
//   - Backend: processing backend selection, credentials, per-item timeout
//   - Vision: OpenAI-compatible vision endpoint for image description
//   - Relay: pubsub listener URL and result publication
//   - Pipeline: worker count and queue capacity
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
//   - FileTypes: media extension allow-lists
type Config struct {
	Paths         Paths         `toml:"paths"`
	Backend       Backend       `toml:"backend"`
	Vision        Vision        `toml:"vision"`
	Relay         Relay         `toml:"relay"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
	FileTypes     FileTypes     `toml:"file_types"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/scribe/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. Secrets may also be
// supplied via environment variables, which take precedence over the file.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("scribe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

func (c *Config) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		c.Backend.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("VISION_API_KEY")); v != "" {
		c.Vision.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("VISION_API_URL")); v != "" {
		c.Vision.APIURL = v
	}
	if v := strings.TrimSpace(os.Getenv("VISION_MODEL")); v != "" {
		c.Vision.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("SCRIBE_NTFY_TOPIC")); v != "" {
		c.Notifications.NtfyTopic = v
	}
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.WatchDir, err = expandOptionalPath(c.Paths.WatchDir); err != nil {
		return err
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Backend.ModelPath, err = expandOptionalPath(c.Backend.ModelPath); err != nil {
		return err
	}
	c.Backend.Name = strings.ToLower(strings.TrimSpace(c.Backend.Name))
	if c.Backend.Name == "" {
		c.Backend.Name = "auto"
	}
	return nil
}

// Validate checks configuration invariants that do not depend on runtime mode.
func (c *Config) Validate() error {
	switch c.Backend.Name {
	case "auto", "openai", "whisper", "ort", "vision":
	default:
		return fmt.Errorf("backend.name: unsupported value %q (expected auto, openai, whisper, ort, or vision)", c.Backend.Name)
	}
	if c.Backend.TimeoutSeconds <= 0 {
		return fmt.Errorf("backend.timeout_seconds must be positive, got %d", c.Backend.TimeoutSeconds)
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be positive, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.QueueCapacity <= 0 {
		return fmt.Errorf("pipeline.queue_capacity must be positive, got %d", c.Pipeline.QueueCapacity)
	}
	if c.Relay.ReconnectMaxSeconds <= 0 {
		return fmt.Errorf("relay.reconnect_max_seconds must be positive, got %d", c.Relay.ReconnectMaxSeconds)
	}
	return nil
}

// EnsureDirectories creates the state and log directories when missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// BackendTimeout returns the configured per-item processing timeout.
func (c *Config) BackendTimeout() int {
	return c.Backend.TimeoutSeconds
}

// SampleConfig returns the embedded annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// WriteSample writes the sample configuration to path, refusing to overwrite.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists: %s", expanded)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("path is empty")
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path %s: %w", path, err)
	}
	return abs, nil
}

func expandOptionalPath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", nil
	}
	return expandPath(path)
}
