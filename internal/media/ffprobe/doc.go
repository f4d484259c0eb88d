// Package ffprobe provides a typed wrapper around ffprobe JSON output and the
// duration reader used when fitting renders to a size budget.
//
// Primary entry points:
//   - Inspect: executes ffprobe and returns parsed Result
//   - Prober: bounded-timeout duration lookups
package ffprobe
