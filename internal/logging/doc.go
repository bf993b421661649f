// Package logging assembles structured slog loggers and formatting helpers used
// across libconv.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so conversion code can tag log
// lines with file IDs, stages, and run IDs automatically. Every run also gets
// a JSON log file in the configured log directory; old run logs are pruned by
// CleanupOldLogs. The package provides a no-op logger for tests and wiring code
// that cannot fail.
package logging
