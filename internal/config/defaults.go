package config

const (
	defaultStateDir            = "~/.local/share/scribe"
	defaultLogDir              = "~/.local/share/scribe/logs"
	defaultBackendName         = "auto"
	defaultBackendTimeout      = 300
	defaultWhisperBinary       = "whisper-cli"
	defaultVisionModel         = "gpt-4o-mini"
	defaultWorkers             = 4
	defaultQueueCapacity       = 100
	defaultReconnectMaxSeconds = 60
	defaultNotifyTimeout       = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Backend: Backend{
			Name:           defaultBackendName,
			WhisperBinary:  defaultWhisperBinary,
			TimeoutSeconds: defaultBackendTimeout,
		},
		Vision: Vision{
			Model: defaultVisionModel,
		},
		Relay: Relay{
			PublishResults:      true,
			ReconnectMaxSeconds: defaultReconnectMaxSeconds,
		},
		Pipeline: Pipeline{
			Workers:       defaultWorkers,
			QueueCapacity: defaultQueueCapacity,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Processed:      true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
