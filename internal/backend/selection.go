package backend

import (
	"fmt"
	"log/slog"
	"os"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/media"
	"scribe/internal/services"
)

// Selection maps each media kind to the backend chosen for it. It is built
// once at startup and shared read-only by all workers, so one run never
// mixes backend choices mid-stream.
type Selection struct {
	audio Processor
	video Processor
	image Processor
}

// NewSelection builds a selection with an explicit backend per kind.
func NewSelection(audio, video, image Processor) *Selection {
	return &Selection{audio: audio, video: video, image: image}
}

// For returns the backend responsible for the given media kind.
func (s *Selection) For(kind media.Kind) (Processor, error) {
	switch kind {
	case media.KindAudio:
		return s.audio, nil
	case media.KindVideo:
		return s.video, nil
	case media.KindImage:
		return s.image, nil
	default:
		return nil, services.Wrap(services.ErrValidation, "backend", "select",
			fmt.Sprintf("no backend for media kind %s", kind), nil)
	}
}

// Describe returns the backend name per kind for startup logging.
func (s *Selection) Describe() map[media.Kind]string {
	return map[media.Kind]string{
		media.KindAudio: s.audio.Name(),
		media.KindVideo: s.video.Name(),
		media.KindImage: s.image.Name(),
	}
}

// Resolve builds the process-wide backend selection from configuration. The
// "auto" policy inspects available credentials and model files here, at
// startup only.
func Resolve(cfg *config.Config, logger *slog.Logger) (*Selection, error) {
	log := logging.NewComponentLogger(logger, "backend")

	if cfg.Backend.Name != "auto" {
		proc, err := build(cfg.Backend.Name, cfg)
		if err != nil {
			return nil, err
		}
		log.Info("backend selected explicitly", logging.String(logging.FieldBackend, proc.Name()))
		return &Selection{audio: proc, video: proc, image: proc}, nil
	}

	var transcriber Processor
	switch {
	case cfg.Backend.APIKey != "":
		transcriber = NewOpenAI(cfg.Backend.APIKey)
	case modelFileExists(cfg.Backend.ModelPath):
		transcriber = NewWhisper(cfg.Backend.WhisperBinary, cfg.Backend.ModelPath)
	default:
		transcriber = NewOrt()
	}

	var describer Processor
	switch {
	case cfg.Vision.APIKey != "" && cfg.Vision.APIURL != "":
		describer = NewVision(cfg.Vision.APIKey, cfg.Vision.APIURL, cfg.Vision.Model)
	case cfg.Backend.APIKey != "":
		describer = NewOpenAI(cfg.Backend.APIKey)
	default:
		describer = NewOrt()
	}

	selection := &Selection{audio: transcriber, video: transcriber, image: describer}
	for kind, name := range selection.Describe() {
		log.Info("backend resolved",
			logging.String(logging.FieldKind, string(kind)),
			logging.String(logging.FieldBackend, name))
	}
	return selection, nil
}

func build(name string, cfg *config.Config) (Processor, error) {
	switch name {
	case "openai":
		if cfg.Backend.APIKey == "" {
			return nil, services.Wrap(services.ErrConfiguration, "backend", "resolve",
				"openai backend requires an API key (set OPENAI_API_KEY or backend.api_key)", nil)
		}
		return NewOpenAI(cfg.Backend.APIKey), nil
	case "whisper":
		return NewWhisper(cfg.Backend.WhisperBinary, cfg.Backend.ModelPath), nil
	case "ort":
		return NewOrt(), nil
	case "vision":
		if cfg.Vision.APIKey == "" || cfg.Vision.APIURL == "" {
			return nil, services.Wrap(services.ErrConfiguration, "backend", "resolve",
				"vision backend requires vision.api_key and vision.api_url", nil)
		}
		return NewVision(cfg.Vision.APIKey, cfg.Vision.APIURL, cfg.Vision.Model), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "backend", "resolve",
			fmt.Sprintf("unknown backend %q (available: openai, whisper, ort, vision)", name), nil)
	}
}

func modelFileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
