package daemon_test

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"reelpipe/internal/daemon"
	"reelpipe/internal/logging"
	"reelpipe/internal/testsupport"
)

type fakePipeline struct {
	mu       sync.Mutex
	running  bool
	starts   int
	stops    int
	triggers int
}

func (f *fakePipeline) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = true
	f.starts++
	return nil
}

func (f *fakePipeline) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
	f.stops++
}

func (f *fakePipeline) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakePipeline) LastError() string { return "" }

func (f *fakePipeline) Trigger(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers++
	return true
}

func (f *fakePipeline) RetryAsync(context.Context, int64) error { return nil }

func newDaemon(t *testing.T) (*daemon.Daemon, *fakePipeline) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	pipe := &fakePipeline{}
	d, err := daemon.New(cfg, store, pipe, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)
	return d, pipe
}

func TestDaemonStartStop(t *testing.T) {
	d, pipe := newDaemon(t)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running || !status.Scheduler {
		t.Fatalf("expected daemon and scheduler running, got %+v", status)
	}
	if len(status.Dependencies) != 2 {
		t.Fatalf("expected 2 dependency statuses, got %d", len(status.Dependencies))
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	status = d.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
	if pipe.starts != 1 || pipe.stops != 1 {
		t.Fatalf("unexpected pipeline lifecycle: starts=%d stops=%d", pipe.starts, pipe.stops)
	}
}

func TestDaemonServesAPI(t *testing.T) {
	d, pipe := newDaemon(t)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	resp, err := http.Get("http://" + d.APIAddress() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["service"] != "reelpipe" {
		t.Fatalf("unexpected health body %v", body)
	}

	trigger, err := http.Post("http://"+d.APIAddress()+"/trigger", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /trigger: %v", err)
	}
	trigger.Body.Close()
	if trigger.StatusCode != http.StatusAccepted {
		t.Fatalf("unexpected trigger status %d", trigger.StatusCode)
	}
	pipe.mu.Lock()
	triggers := pipe.triggers
	pipe.mu.Unlock()
	if triggers != 1 {
		t.Fatalf("expected one trigger, got %d", triggers)
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)

	first, err := daemon.New(cfg, store, &fakePipeline{}, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(first.Stop)
	second, err := daemon.New(cfg, store, &fakePipeline{}, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("expected lock contention error")
	}

	first.Stop()
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("second Start after release: %v", err)
	}
	second.Stop()
}
