package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"scribe/internal/backend"
	"scribe/internal/config"
	"scribe/internal/extract"
	"scribe/internal/ledger"
	"scribe/internal/logging"
	"scribe/internal/media"
	"scribe/internal/notifications"
	"scribe/internal/services"
	"scribe/internal/sink"
)

// Pipeline connects ingestion to backend execution: items are deduplicated
// against the ledger, queued with bounded capacity, and processed by a fixed
// worker pool. One pipeline serves one run; construct, Start, ingest, Stop.
type Pipeline struct {
	cfg       *config.Config
	ledger    *ledger.Store
	selection *backend.Selection
	sink      sink.Sink
	notifier  notifications.Service
	extractor *extract.Extractor
	logger    *slog.Logger

	itemTimeout time.Duration

	queue chan extract.Item
	wg    sync.WaitGroup

	mu        sync.RWMutex
	closed    bool
	startOnce sync.Once
	stopOnce  sync.Once
}

// New assembles a pipeline from its collaborators. The media classification
// table honors the config's file_types overrides.
func New(cfg *config.Config, store *ledger.Store, selection *backend.Selection, snk sink.Sink, notifier notifications.Service, logger *slog.Logger) *Pipeline {
	table := media.NewTable(
		cfg.FileTypes.AudioExtensions,
		cfg.FileTypes.VideoExtensions,
		cfg.FileTypes.ImageExtensions,
	)
	return &Pipeline{
		cfg:         cfg,
		ledger:      store,
		selection:   selection,
		sink:        snk,
		notifier:    notifier,
		extractor:   extract.New(table),
		logger:      logging.NewComponentLogger(logger, "pipeline"),
		itemTimeout: time.Duration(cfg.Backend.TimeoutSeconds) * time.Second,
		queue:       make(chan extract.Item, cfg.Pipeline.QueueCapacity),
	}
}

// Start launches the worker pool. Workers keep draining the queue after ctx
// is canceled; cancellation stops ingestion while Stop bounds the drain.
func (p *Pipeline) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		for i := 0; i < p.cfg.Pipeline.Workers; i++ {
			p.wg.Add(1)
			go p.worker(ctx, i)
		}
		p.logger.Info("pipeline started",
			logging.Int("workers", p.cfg.Pipeline.Workers),
			logging.Int("queue_capacity", p.cfg.Pipeline.QueueCapacity),
			logging.Duration("item_timeout", p.itemTimeout))
	})
}

// Stop closes intake and waits for in-flight items to finish. Each worker's
// current item is still bounded by the per-item timeout, so shutdown cannot
// hang on a stuck backend.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()
	})
	p.wg.Wait()
	p.logger.Info("pipeline stopped")
}

// IngestPath feeds one filesystem path through extraction and dispatch.
// Unsupported files, scribe's own outputs, and files that already have a
// sidecar are dropped silently; a ledger error blocks dispatch and surfaces
// to the caller.
func (p *Pipeline) IngestPath(ctx context.Context, path string) error {
	item, ok := p.extractor.FromPath(path)
	if !ok {
		p.logger.Debug("ignoring unsupported file", logging.String(logging.FieldLocator, path))
		return nil
	}
	// Pre-ledger check: a sidecar next to the file means it was processed,
	// even if the ledger has since been wiped.
	if _, err := os.Stat(sink.SidecarPath(path)); err == nil {
		p.logger.Debug("sidecar already present, skipping",
			logging.String(logging.FieldLocator, path))
		return nil
	}
	return p.dispatch(ctx, item)
}

// IngestMessage feeds one pubsub message through extraction and dispatch.
// Each recognized locator becomes an independent work item; a failure to
// dispatch one does not stop the others.
func (p *Pipeline) IngestMessage(ctx context.Context, sourceID, content string, refs []string) error {
	items := p.extractor.FromMessage(sourceID, content, refs)
	if len(items) == 0 {
		p.logger.Debug("message carried no media references",
			logging.String(logging.FieldSource, sourceID))
		return nil
	}
	var errs []error
	for _, item := range items {
		if err := p.dispatch(ctx, item); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// QueueDepth reports how many admitted items are waiting for a worker.
func (p *Pipeline) QueueDepth() int {
	return len(p.queue)
}

func (p *Pipeline) dispatch(ctx context.Context, item extract.Item) error {
	decision, err := p.ledger.CheckAndReserve(ctx, item)
	if err != nil {
		p.logger.Error("ledger reservation failed, item not dispatched",
			logging.String(logging.FieldKey, item.Key()),
			logging.String(logging.FieldLocator, item.Locator),
			logging.Error(err))
		return err
	}
	if decision != ledger.Admitted {
		p.logger.Debug("item skipped",
			logging.String(logging.FieldKey, item.Key()),
			logging.String(logging.FieldLocator, item.Locator),
			logging.String("decision", decision.String()))
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		// The reservation stays pending; recovery re-admits it next run.
		p.logger.Warn("pipeline stopped before item could be queued",
			logging.String(logging.FieldKey, item.Key()))
		return services.Wrap(services.ErrValidation, "pipeline", "dispatch", "pipeline stopped", nil)
	}
	select {
	case p.queue <- item:
		p.logger.Info("item admitted",
			logging.String(logging.FieldKey, item.Key()),
			logging.String(logging.FieldLocator, item.Locator),
			logging.String(logging.FieldKind, item.Kind.String()))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipeline) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for item := range p.queue {
		p.process(ctx, id, item)
	}
}

func (p *Pipeline) process(ctx context.Context, workerID int, item extract.Item) {
	logger := p.logger.With(
		logging.Int(logging.FieldWorker, workerID),
		logging.String(logging.FieldKey, item.Key()),
		logging.String(logging.FieldLocator, item.Locator))

	// Bookkeeping must outlive shutdown cancellation; the per-item timeout
	// bounds processing instead.
	base := context.WithoutCancel(ctx)

	proc, err := p.selection.For(item.Kind)
	if err != nil {
		p.fail(base, logger, item, err)
		return
	}

	procCtx, cancel := context.WithTimeout(base, p.itemTimeout)
	defer cancel()

	started := time.Now()
	content, err := proc.Process(procCtx, item.Locator, item.Kind)
	if err != nil {
		if errors.Is(procCtx.Err(), context.DeadlineExceeded) {
			err = services.Wrap(services.ErrTimeout, "pipeline", "process", item.Locator, err)
		}
		p.fail(base, logger, item, err)
		return
	}

	if err := p.ledger.MarkDone(base, item.Key()); err != nil {
		logger.Error("failed to record completion", logging.Error(err))
	}

	result := sink.Result{
		Item:       item,
		Backend:    proc.Name(),
		Content:    content,
		ProducedAt: time.Now().UTC(),
	}
	if err := p.sink.Emit(base, result); err != nil {
		// Emission is at-least-once attempted; a failed emit never undoes
		// the completion record.
		logger.Warn("result emission failed", logging.Error(err))
	}

	logger.Info("item processed",
		logging.String(logging.FieldBackend, proc.Name()),
		logging.Duration("elapsed", time.Since(started).Round(time.Millisecond)))
	if p.notifier != nil {
		if err := p.notifier.NotifyItemProcessed(base, item.Locator, proc.Name()); err != nil {
			logger.Debug("processed notification failed", logging.Error(err))
		}
	}
}

func (p *Pipeline) fail(ctx context.Context, logger *slog.Logger, item extract.Item, cause error) {
	if err := p.ledger.MarkFailed(ctx, item.Key(), cause); err != nil {
		logger.Error("failed to record failure", logging.Error(err))
	}
	logger.Error("item failed",
		logging.Bool("timeout", services.IsTimeout(cause)),
		logging.Error(cause))
	if p.notifier != nil {
		if err := p.notifier.NotifyItemFailed(ctx, item.Locator, cause); err != nil {
			logger.Debug("failure notification failed", logging.Error(err))
		}
	}
}
