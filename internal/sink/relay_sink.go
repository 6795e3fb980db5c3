package sink

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"scribe/internal/logging"
	"scribe/internal/media"
	"scribe/internal/relay"
)

// Publisher sends one outbound event. Satisfied by *relay.Client.
type Publisher interface {
	Publish(ctx context.Context, event relay.Event) error
}

// RelaySink publishes results as events referencing the event that carried
// the media. Publish failures surface to the caller for logging only; the
// ledger has already recorded the work as done by the time emission runs.
type RelaySink struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewRelaySink constructs a sink over a relay publisher.
func NewRelaySink(publisher Publisher, logger *slog.Logger) *RelaySink {
	return &RelaySink{
		publisher: publisher,
		logger:    logging.NewComponentLogger(logger, "sink"),
	}
}

func (s *RelaySink) Emit(ctx context.Context, result Result) error {
	event := relay.Event{
		ID:        uuid.NewString(),
		Kind:      eventKind(result.Item.Kind),
		Content:   renderBody(result),
		CreatedAt: result.ProducedAt.UTC(),
		Refs: []relay.Ref{
			{Type: relay.RefEvent, Value: result.Item.SourceID},
			{Type: relay.RefLocator, Value: result.Item.Locator},
			{Type: relay.RefProcessor, Value: result.Backend},
		},
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		return err
	}
	s.logger.Info("result published",
		logging.String("event_id", event.ID),
		logging.String(logging.FieldSource, result.Item.SourceID),
		logging.String(logging.FieldBackend, result.Backend))
	return nil
}

func eventKind(kind media.Kind) string {
	if kind == media.KindImage {
		return "description"
	}
	return "transcription"
}

func renderBody(result Result) string {
	verb := "Transcription"
	if result.Item.Kind == media.KindImage {
		verb = "Description"
	}
	content := result.Content
	parts := make([]string, 0, 4)
	parts = append(parts, fmt.Sprintf("%s of %s (%s):", verb, result.Item.Locator, result.Backend))
	if content.Text != "" {
		parts = append(parts, strings.TrimSpace(content.Text))
	}
	if content.Description != "" {
		parts = append(parts, strings.TrimSpace(content.Description))
	}
	if len(content.Tags) > 0 {
		parts = append(parts, fmt.Sprintf("Tags: %s", strings.Join(content.Tags, ", ")))
	}
	return strings.Join(parts, "\n\n")
}
