package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// stderrTail is how much ffmpeg stderr is kept in error messages.
const stderrTail = 500

// Transcoder runs one transcode invocation.
type Transcoder interface {
	Transcode(ctx context.Context, args []string) error
}

// DurationProber reports a media file's playback duration in seconds.
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// FFmpeg executes ffmpeg with an upper-bound timeout.
type FFmpeg struct {
	Binary  string
	Timeout time.Duration
}

// Transcode runs ffmpeg with args. A timeout or non-zero exit is an error
// carrying the tail of stderr.
func (f FFmpeg) Transcode(ctx context.Context, args []string) error {
	binary := strings.TrimSpace(f.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.WaitDelay = time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("ffmpeg timed out after %s: %w", f.Timeout, context.DeadlineExceeded)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("ffmpeg: %w", ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("ffmpeg failed (code %d): %s", exitErr.ExitCode(), tail(stderr.String(), stderrTail))
	}
	return fmt.Errorf("ffmpeg: %w", err)
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
