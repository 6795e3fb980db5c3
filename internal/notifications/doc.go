// Package notifications delivers pipeline events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Per-item notifications are gated individually so a busy watch
// directory does not flood the topic.
//
// Extend this package if you need alternative transports; pipeline code
// depends only on the simple Service interface.
package notifications
