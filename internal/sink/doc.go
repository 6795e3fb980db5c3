// Package sink emits processed results. Filesystem ingestion writes JSON
// (and optionally markdown) sidecars next to the source file; pubsub
// ingestion publishes result events back through the relay. Both paths run
// after the ledger marks an item done, so emission is at-least-once
// attempted and never retried by the pipeline.
package sink
