// Package backend implements the processing capability boundary: pluggable
// transcription/description providers behind a single Processor interface.
//
// Four providers exist: openai (Whisper API + vision chat completions),
// vision (any OpenAI-compatible vision endpoint), whisper (local binary with
// a model file), and ort (placeholder). Resolve builds the process-wide
// Selection once at startup; the "auto" policy inspects credentials and
// model files at that point only and is never re-evaluated per item.
package backend
