package render

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reelpipe/internal/analysis"
	"reelpipe/internal/testsupport"
)

const writeLastArgScript = "#!/bin/sh\nfor last; do :; done\nprintf 'rendered' > \"$last\"\n"

func TestFFmpegTranscodeSuccess(t *testing.T) {
	testsupport.WriteStub(t, t.TempDir(), "ffmpeg", writeLastArgScript)
	out := filepath.Join(t.TempDir(), "out.mp4")

	if err := (FFmpeg{Timeout: 5 * time.Second}).Transcode(context.Background(), []string{"-y", out}); err != nil {
		t.Fatalf("Transcode: %v", err)
	}
	if data, err := os.ReadFile(out); err != nil || string(data) != "rendered" {
		t.Fatalf("output = %q (%v)", data, err)
	}
}

func TestFFmpegTranscodeFailureKeepsStderrTail(t *testing.T) {
	script := "#!/bin/sh\nprintf '%0600d' 0 >&2\necho 'Invalid filter graph' >&2\nexit 3\n"
	testsupport.WriteStub(t, t.TempDir(), "ffmpeg", script)

	err := (FFmpeg{}).Transcode(context.Background(), []string{"-y", "out.mp4"})
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "code 3") || !strings.HasSuffix(msg, "Invalid filter graph") {
		t.Fatalf("unexpected error %q", msg)
	}
	if len(msg) > stderrTail+64 {
		t.Fatalf("stderr not truncated: %d bytes", len(msg))
	}
}

func TestFFmpegTranscodeTimeout(t *testing.T) {
	testsupport.WriteStub(t, t.TempDir(), "ffmpeg", "#!/bin/sh\nexec sleep 5\n")

	start := time.Now()
	err := (FFmpeg{Timeout: 100 * time.Millisecond}).Transcode(context.Background(), nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Fatal("timeout did not stop ffmpeg promptly")
	}
}

func TestRendererRender(t *testing.T) {
	testsupport.WriteStub(t, t.TempDir(), "ffmpeg", writeLastArgScript)
	dir := t.TempDir()
	in := filepath.Join(dir, "clip.mp4")
	out := filepath.Join(dir, "clip_edited.mp4")
	testsupport.WriteFile(t, in, 64)

	r := Renderer{
		Planner:     Planner{FontFile: "/fonts/Bold.ttf"},
		Transcoder:  FFmpeg{Timeout: 5 * time.Second},
		Prober:      fakeProber{duration: 30},
		MaxOutputMB: 95,
	}
	got, err := r.Render(context.Background(), in, analysis.Result{TrimStart: 1, TrimEnd: 20, HookText: "GO"}, "", out)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != out {
		t.Fatalf("final path = %q, want %q", got, out)
	}
}

func TestRendererRenderMissingOutput(t *testing.T) {
	testsupport.WriteStub(t, t.TempDir(), "ffmpeg", "#!/bin/sh\nexit 0\n")
	dir := t.TempDir()

	r := Renderer{Transcoder: FFmpeg{}, MaxOutputMB: 95}
	if _, err := r.Render(context.Background(), "in.mp4", analysis.Result{TrimEnd: 10}, "", filepath.Join(dir, "out.mp4")); err == nil {
		t.Fatal("expected error when ffmpeg produces nothing")
	}
}
