package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"reelpipe/internal/analysis"
	"reelpipe/internal/captions"
	"reelpipe/internal/config"
	"reelpipe/internal/drive"
	"reelpipe/internal/events"
	"reelpipe/internal/jobs"
	"reelpipe/internal/notifications"
	"reelpipe/internal/testsupport"
)

type fakeSource struct {
	mu        sync.Mutex
	dir       string
	items     []drive.File
	listErr   error
	listGate  chan struct{}
	listCalls int
	downloads map[string]int
}

func (f *fakeSource) ListNewItems(ctx context.Context) ([]drive.File, error) {
	f.mu.Lock()
	f.listCalls++
	gate := f.listGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]drive.File(nil), f.items...), nil
}

func (f *fakeSource) Download(_ context.Context, fileID, localName string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.downloads == nil {
		f.downloads = make(map[string]int)
	}
	f.downloads[fileID]++
	path := filepath.Join(f.dir, localName)
	if err := os.WriteFile(path, []byte("source-"+fileID), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (f *fakeSource) downloadCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.downloads[id]
}

func (f *fakeSource) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

type fakeAnalyzer struct {
	mu      sync.Mutex
	results map[string]analysis.Result
	errs    map[string]error
	calls   int
}

func (f *fakeAnalyzer) Analyze(_ context.Context, localPath string) (analysis.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	name := sourceName(localPath)
	if err := f.errs[name]; err != nil {
		return analysis.Result{}, err
	}
	if result, ok := f.results[name]; ok {
		return result, nil
	}
	return defaultResult(), nil
}

// sourceName maps a downloaded path such as "clip-1.mp4" back to the listed
// source name "clip.mp4".
func sourceName(localPath string) string {
	base := filepath.Base(localPath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if i := strings.LastIndex(stem, "-"); i > 0 {
		stem = stem[:i]
	}
	return stem + ext
}

func defaultResult() analysis.Result {
	return analysis.Result{
		TrimStart:        5,
		TrimEnd:          35,
		SourceDuration:   60,
		HookText:         "WATCH THIS",
		CaptionStyle:     analysis.StyleBold,
		SuggestedCaption: "A caption.",
		Hashtags:         []string{"reels"},
		Transcript: []captions.Segment{
			{Start: 1, End: 4, Text: "Before the trim"},
			{Start: 5, End: 7.5, Text: "Trimmed start"},
			{Start: 8, End: 10, Text: "Later words"},
		},
	}
}

type renderCall struct {
	input       string
	result      analysis.Result
	captionPath string
	output      string
}

type fakeRenderer struct {
	mu    sync.Mutex
	calls []renderCall
	err   error
}

func (f *fakeRenderer) Render(_ context.Context, input string, result analysis.Result, captionPath, output string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, renderCall{input: input, result: result, captionPath: captionPath, output: output})
	if f.err != nil {
		return "", f.err
	}
	return output, os.WriteFile(output, []byte("edited"), 0o644)
}

func (f *fakeRenderer) last() renderCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type fakePublisher struct {
	mu    sync.Mutex
	err   error
	posts []string
}

func (f *fakePublisher) Publish(_ context.Context, renderedPath, caption string, hashtags []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.posts = append(f.posts, renderedPath)
	return "post-" + filepath.Base(renderedPath), nil
}

type recordingEvents struct {
	mu     sync.Mutex
	events []events.JobEvent
}

func (r *recordingEvents) Publish(_ context.Context, event events.JobEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingEvents) Close() error { return nil }

func (r *recordingEvents) statuses(jobID int64) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.JobID == jobID {
			out = append(out, e.Status)
		}
	}
	return out
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingNotifier) count(event notifications.Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

type harness struct {
	cfg       *config.Config
	store     *jobs.Store
	source    *fakeSource
	analyzer  *fakeAnalyzer
	renderer  *fakeRenderer
	publisher *fakePublisher
	events    *recordingEvents
	notifier  *recordingNotifier
	orch      *Orchestrator
}

type harnessOption func(*Dependencies)

func withRenderer(r Renderer) harnessOption {
	return func(deps *Dependencies) {
		deps.Renderer = r
	}
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	h := &harness{
		cfg:       cfg,
		store:     testsupport.MustOpenStore(t, cfg),
		source:    &fakeSource{dir: t.TempDir()},
		analyzer:  &fakeAnalyzer{results: map[string]analysis.Result{}, errs: map[string]error{}},
		renderer:  &fakeRenderer{},
		publisher: &fakePublisher{},
		events:    &recordingEvents{},
		notifier:  &recordingNotifier{},
	}
	deps := Dependencies{
		Store:     h.store,
		Source:    h.source,
		Analyzer:  h.analyzer,
		Renderer:  h.renderer,
		Publisher: h.publisher,
		Notifier:  h.notifier,
		Events:    h.events,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	orch, err := New(cfg, deps, WithTickInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.orch = orch
	return h
}

func (h *harness) jobFor(t *testing.T, sourceID string) *jobs.Job {
	t.Helper()
	job, err := h.store.FindBySourceID(context.Background(), sourceID)
	if err != nil {
		t.Fatalf("FindBySourceID: %v", err)
	}
	if job == nil {
		t.Fatalf("no job for %s", sourceID)
	}
	return job
}

var errBoom = errors.New("boom")
