// Package jobs persists pipeline jobs in SQLite.
//
// A Job tracks one source video from discovery through analysis, captioning,
// rendering, and publication. The Store exposes whole-record writes keyed by
// the internal id plus lookup by the external source id, which is unique so a
// source item can never produce two jobs. Schema creation is embedded and
// versioned; a mismatched database is rejected rather than migrated.
package jobs
