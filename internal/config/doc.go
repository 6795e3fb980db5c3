// Package config loads, validates, and normalizes the TOML configuration
// consumed by every scribe subsystem.
//
// Configuration resolution order: explicit --config path, then
// ~/.config/scribe/config.toml, then ./scribe.toml, then built-in defaults.
// Secrets (API keys, vision endpoint) may be supplied via environment
// variables which override file values. All filesystem paths are expanded
// (~ and relative) before the config is handed to callers.
package config
