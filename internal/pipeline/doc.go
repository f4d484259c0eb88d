// Package pipeline drives source videos through the publish chain.
//
// The Orchestrator owns the job store and the external adapters. Scan lists
// the watched folder, creates one job per unseen item, downloads it, and
// runs the step chain (analyze, captions, render, publish). Each step either
// completes and advances the job's status or short-circuits the chain and
// marks the job failed with the error recorded; a failed job never affects
// the other items of the same scan. Retry is the only way back into the
// chain after a failure.
//
// The scheduler fires Scan on a fixed interval and skips a tick while the
// previous one is still running. Manual triggers and retries run as
// background work. A job is never processed by two goroutines at once.
package pipeline
