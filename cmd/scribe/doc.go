// Package main hosts the scribe CLI entrypoint and command graph.
//
// The Cobra-based command tree surfaces the two daemon modes (watch,
// listen), one-shot file processing, ledger inspection and maintenance,
// configuration scaffolding, and a notification test. It centralizes
// configuration resolution so subcommands can focus on user experience.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
