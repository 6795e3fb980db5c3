// Package watcher feeds the pipeline from a watched directory tree. It
// settles files before ingesting them, follows newly created
// subdirectories, and scans existing files at startup. Classification and
// dedup happen downstream; the watcher reports every settled regular file.
package watcher
