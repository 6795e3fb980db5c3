// Package language normalizes the language identifiers transcription
// backends report. Whisper-style tools emit full words ("english"), the
// OpenAI API emits ISO codes, and sidecars should store one canonical form.
package language
