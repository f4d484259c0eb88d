// Package deps checks that the external binaries the renderer shells out to
// (ffmpeg, ffprobe) can be resolved before work starts.
package deps
