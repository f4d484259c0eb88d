package render

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
)

const (
	bytesPerMB        = 1024 * 1024
	compressedSuffix  = "_compressed"
	compressedAudioBR = "96k"
)

// TargetBitrateKbps returns floor(maxMB*8*1024/durationSeconds), the video
// bitrate that fits maxMB megabytes over the given duration. Never below 1.
func TargetBitrateKbps(maxMB int, durationSeconds float64) int {
	if durationSeconds <= 0 {
		return 1
	}
	kbps := int(math.Floor(float64(maxMB) * 8 * 1024 / durationSeconds))
	if kbps < 1 {
		return 1
	}
	return kbps
}

// CompressedPath is where the size-fitted copy of path is written.
func CompressedPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + compressedSuffix + ext
}

// CompressArgs returns the ffmpeg arguments for the size-fitting re-encode.
func CompressArgs(input, output string, kbps int) []string {
	return []string{
		"-y",
		"-i", input,
		"-b:v", fmt.Sprintf("%dk", kbps),
		"-maxrate", fmt.Sprintf("%dk", kbps),
		"-bufsize", fmt.Sprintf("%dk", kbps*2),
		"-c:a", "aac",
		"-b:a", compressedAudioBR,
		output,
	}
}

// FitToSizeBudget re-encodes outputPath once when it exceeds maxMB and
// returns the path of the file to keep. The oversized original is removed
// after a successful re-encode; on failure the original is left in place.
// One pass only: the result may still exceed the budget.
func FitToSizeBudget(ctx context.Context, outputPath string, maxMB int, prober DurationProber, transcoder Transcoder) (string, error) {
	info, err := os.Stat(outputPath)
	if err != nil {
		return "", fmt.Errorf("stat output: %w", err)
	}
	if maxMB <= 0 || info.Size() <= int64(maxMB)*bytesPerMB {
		return outputPath, nil
	}
	if prober == nil || transcoder == nil {
		return "", errors.New("size fitting requires a prober and a transcoder")
	}

	duration, err := prober.Duration(ctx, outputPath)
	if err != nil {
		return "", fmt.Errorf("read output duration: %w", err)
	}
	kbps := TargetBitrateKbps(maxMB, duration)
	compressed := CompressedPath(outputPath)
	if err := transcoder.Transcode(ctx, CompressArgs(outputPath, compressed, kbps)); err != nil {
		_ = os.Remove(compressed)
		return "", fmt.Errorf("compress output: %w", err)
	}
	if _, err := os.Stat(compressed); err != nil {
		return "", fmt.Errorf("compressed output missing: %w", err)
	}
	if err := os.Remove(outputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("remove oversized output: %w", err)
	}
	return compressed, nil
}
