// Package captions converts transcript segments into SRT subtitle files and
// shifts existing SRT timing.
//
// Timestamps are handled as whole milliseconds: formatting truncates the
// fractional part of a seconds value, and parsing a formatted timestamp
// yields a value that formats back to the identical string.
package captions
