// Package services defines shared utilities consumed by the batch runner and
// its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, run IDs, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     as per-job, data, or configuration problems.
//
// Use these helpers when wiring new batch logic so operational behaviour
// stays uniform across the pipeline.
package services
