package backend

import (
	"context"
	"fmt"

	"scribe/internal/media"
	"scribe/internal/services"
)

// OrtBackend is the ONNX Runtime placeholder. It produces canned content so
// the pipeline can run end to end without credentials or local models.
type OrtBackend struct{}

// NewOrt constructs the placeholder backend.
func NewOrt() *OrtBackend {
	return &OrtBackend{}
}

func (b *OrtBackend) Name() string { return "ort" }

func (b *OrtBackend) Process(_ context.Context, locator string, kind media.Kind) (*Content, error) {
	switch kind {
	case media.KindAudio, media.KindVideo:
		return &Content{
			Text:     fmt.Sprintf("ORT backend placeholder - would process audio/video: %s", locator),
			Language: "unknown",
		}, nil
	case media.KindImage:
		return &Content{
			Description: fmt.Sprintf("ORT backend placeholder - would process image: %s", locator),
			Tags:        []string{"ort", "placeholder"},
		}, nil
	default:
		return nil, services.Wrap(services.ErrValidation, "ort", "process",
			fmt.Sprintf("unsupported media kind %s", kind), nil)
	}
}
