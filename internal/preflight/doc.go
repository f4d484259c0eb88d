// Package preflight provides readiness checks for the filesystem, external
// binaries, and credentials that reelpipe depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll and CheckSystemDeps at startup and logs every
//     failed check as a warning; nothing is fatal because each job records
//     its own failure and stays retryable.
//   - The CLI "reelpipe status" command renders the same results as a table.
package preflight
