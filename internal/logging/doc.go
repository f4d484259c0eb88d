// Package logging assembles structured slog loggers used across reelpipe.
//
// It owns the console (tint) and JSON handlers, fans output out to the
// terminal and the daemon log file, and exposes context-aware helpers so
// pipeline code can automatically tag log lines with job IDs, step names,
// scan IDs, and correlation IDs. The package also provides a no-op logger for
// tests and wiring code that cannot fail.
package logging
