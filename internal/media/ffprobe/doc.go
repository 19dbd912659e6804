// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Prober: measures playable duration of narration audio
//
// Durations are read from the container first and fall back to the first
// audio stream, which covers MP3 files written without a header duration.
package ffprobe
