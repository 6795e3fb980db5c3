// Package pipeline is the dispatch core: ingestion funnels work items
// through the ledger's atomic reservation into a bounded queue drained by a
// fixed worker pool. Admission is exactly-once per item identity, enqueue
// blocks when the queue is full, and a failed backend call marks the item
// failed without in-process retry.
package pipeline
