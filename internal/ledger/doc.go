// Package ledger persists dedup state for processed media references in
// SQLite and exposes the atomic operations the pipeline needs.
//
// The Store is the single writer of ledger state. CheckAndReserve is the
// admission gate: for any key, at most one concurrent caller is admitted,
// and a key that reached done is never admitted again. Records left pending
// by a crashed run are re-admitted at startup; failed records re-admit at
// most once per process lifetime so a restart loop cannot amplify retries
// against a remote backend.
//
// Every mutation is durable before the operation returns (WAL with full
// synchronous mode). If a reservation cannot be recorded the caller must not
// dispatch the item.
package ledger
