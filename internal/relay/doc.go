// Package relay speaks the pubsub side of ingestion and emission: a
// websocket client that subscribes to inbound events carrying media
// references and publishes result events back.
//
// The relay connection is best-effort. Subscribe reconnects forever with
// capped backoff and the relay may replay events across reconnects; the
// ledger's dedup makes redelivery harmless. Publish only ever uses the
// current connection and fails fast when there is none, because a result
// that cannot be emitted now is still recorded in the ledger.
package relay
