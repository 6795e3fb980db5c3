// Package logs reads the daemon's run log for the CLI: last-N display and
// a polling follow that survives log rotation.
package logs
