// Package services defines shared utilities consumed by the pipeline steps and
// external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, step names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so step failures carry a
//     consistent kind, step, and operation into the job's stored error.
//
// Use these helpers when wiring new step logic so operational behaviour (error
// handling, observability) stays uniform across the pipeline.
package services
