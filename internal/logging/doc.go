// Package logging assembles structured slog loggers and formatting helpers used
// across manimate.
//
// It owns the console/JSON handlers, mirrors every record into a JSON
// application log under the configured log directory, and exposes
// context-aware helpers so batch code can tag log lines with job IDs, run IDs,
// and stages. The package also provides a no-op logger for tests.
package logging
