// Package daemon owns the long-running reelpipe process: it enforces a single
// instance with a file lock, logs preflight results, runs the pipeline
// scheduler, and serves the job API until stopped.
package daemon
