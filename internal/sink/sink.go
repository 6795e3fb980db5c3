package sink

import (
	"context"
	"time"

	"scribe/internal/backend"
	"scribe/internal/extract"
)

// Result is one successfully processed work item together with the content
// the backend produced for it.
type Result struct {
	Item       extract.Item
	Backend    string
	Content    *backend.Content
	ProducedAt time.Time
}

// Sink delivers results to their destination. Emission is at-least-once
// attempted: a sink error is logged by the caller but never unwinds the
// ledger's done mark.
type Sink interface {
	Emit(ctx context.Context, result Result) error
}

// Discard drops results. Used when result publication is disabled; the
// ledger and logs remain the only record of completed work.
var Discard Sink = discardSink{}

type discardSink struct{}

func (discardSink) Emit(context.Context, Result) error { return nil }
