package render

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"reelpipe/internal/testsupport"
)

type fakeProber struct {
	duration float64
	err      error
}

func (f fakeProber) Duration(context.Context, string) (float64, error) {
	return f.duration, f.err
}

type fakeTranscoder struct {
	calls [][]string
	err   error
}

func (f *fakeTranscoder) Transcode(_ context.Context, args []string) error {
	f.calls = append(f.calls, args)
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(args[len(args)-1], []byte("smaller"), 0o644)
}

func TestTargetBitrateKbps(t *testing.T) {
	if got := TargetBitrateKbps(10, 80); got != 1024 {
		t.Fatalf("TargetBitrateKbps(10, 80) = %d, want 1024", got)
	}
	if got := TargetBitrateKbps(95, 61.3); got != 12695 {
		t.Fatalf("TargetBitrateKbps(95, 61.3) = %d, want 12695", got)
	}
	if got := TargetBitrateKbps(1, 0); got != 1 {
		t.Fatalf("zero duration = %d, want 1", got)
	}
}

func TestCompressedPath(t *testing.T) {
	if got := CompressedPath("/out/clip_edited.mp4"); got != "/out/clip_edited_compressed.mp4" {
		t.Fatalf("CompressedPath = %q", got)
	}
}

func TestFitToSizeBudgetUnderBudgetIsNoop(t *testing.T) {
	out := filepath.Join(t.TempDir(), "clip_edited.mp4")
	testsupport.WriteFile(t, out, 512*1024)
	tr := &fakeTranscoder{}

	got, err := FitToSizeBudget(context.Background(), out, 1, fakeProber{duration: 10}, tr)
	if err != nil {
		t.Fatalf("FitToSizeBudget: %v", err)
	}
	if got != out || len(tr.calls) != 0 {
		t.Fatalf("expected untouched output, got %q with %d calls", got, len(tr.calls))
	}
}

func TestFitToSizeBudgetReencodesOnce(t *testing.T) {
	out := filepath.Join(t.TempDir(), "clip_edited.mp4")
	testsupport.WriteFile(t, out, 2*1024*1024)
	tr := &fakeTranscoder{}

	got, err := FitToSizeBudget(context.Background(), out, 1, fakeProber{duration: 8}, tr)
	if err != nil {
		t.Fatalf("FitToSizeBudget: %v", err)
	}
	if got != CompressedPath(out) {
		t.Fatalf("path = %q", got)
	}
	if len(tr.calls) != 1 {
		t.Fatalf("transcode calls = %d, want 1", len(tr.calls))
	}
	args := tr.calls[0]
	for flag, want := range map[string]string{"-b:v": "1024k", "-maxrate": "1024k", "-bufsize": "2048k", "-b:a": "96k"} {
		idx := slices.Index(args, flag)
		if idx < 0 || args[idx+1] != want {
			t.Fatalf("%s = %v, want %s", flag, args, want)
		}
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("expected oversized original removed, stat err = %v", err)
	}
}

func TestFitToSizeBudgetKeepsOriginalOnFailure(t *testing.T) {
	out := filepath.Join(t.TempDir(), "clip_edited.mp4")
	testsupport.WriteFile(t, out, 2*1024*1024)

	_, err := FitToSizeBudget(context.Background(), out, 1, fakeProber{duration: 8}, &fakeTranscoder{err: errors.New("boom")})
	if err == nil {
		t.Fatal("expected error")
	}
	if _, statErr := os.Stat(out); statErr != nil {
		t.Fatalf("original should remain: %v", statErr)
	}

	_, err = FitToSizeBudget(context.Background(), out, 1, fakeProber{err: errors.New("no duration")}, &fakeTranscoder{})
	if err == nil {
		t.Fatal("expected duration error to surface")
	}
}
