// Package render turns an analysis result into a finished short-form video.
//
// BuildPlan composes the ffmpeg filter chain (caption burn-in plus a hook
// text overlay for the first three seconds of the trimmed output) and the
// argument list that trims and re-encodes the source. FitToSizeBudget
// re-encodes an oversized output once at a bitrate derived from the size
// budget and the probed duration.
package render
