package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"reelpipe/internal/analysis"
	"reelpipe/internal/config"
	"reelpipe/internal/drive"
	"reelpipe/internal/events"
	"reelpipe/internal/jobs"
	"reelpipe/internal/logging"
	"reelpipe/internal/notifications"
	"reelpipe/internal/publish"
	"reelpipe/internal/services"
)

var (
	// ErrNotRetryable is returned by Retry when the job is not failed.
	ErrNotRetryable = errors.New("job not retryable")
	// ErrJobBusy is returned when the job is already being processed.
	ErrJobBusy = errors.New("job already in progress")
)

// SourceWatcher lists and downloads source items. Download stores the file
// under localName and must be idempotent for a given file id.
type SourceWatcher interface {
	ListNewItems(ctx context.Context) ([]drive.File, error)
	Download(ctx context.Context, fileID, localName string) (string, error)
}

// Renderer produces the edited video and returns its final path.
type Renderer interface {
	Render(ctx context.Context, inputPath string, result analysis.Result, captionPath, outputPath string) (string, error)
}

// Dependencies are the collaborators the Orchestrator composes.
type Dependencies struct {
	Store     *jobs.Store
	Source    SourceWatcher
	Analyzer  analysis.Analyzer
	Renderer  Renderer
	Publisher publish.Publisher
	Notifier  notifications.Service
	Events    events.Publisher
	Logger    *slog.Logger
}

// Option customizes the Orchestrator.
type Option func(*Orchestrator)

// WithTickInterval overrides the scheduler interval from config.
func WithTickInterval(interval time.Duration) Option {
	return func(o *Orchestrator) {
		if interval > 0 {
			o.interval = interval
		}
	}
}

// Orchestrator runs jobs through the pipeline.
type Orchestrator struct {
	cfg       *config.Config
	store     *jobs.Store
	source    SourceWatcher
	analyzer  analysis.Analyzer
	renderer  Renderer
	publisher publish.Publisher
	notifier  notifications.Service
	events    events.Publisher
	logger    *slog.Logger
	timeouts  config.StepTimeouts
	interval  time.Duration

	scanMu sync.Mutex

	inflightMu sync.Mutex
	inflight   map[int64]struct{}

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	loopWG  sync.WaitGroup
	tickWG  sync.WaitGroup
	bgWG    sync.WaitGroup
	ticking atomic.Bool
	lastErr atomic.Value
}

// New constructs an Orchestrator. Store, Source, Analyzer, Renderer, and
// Publisher are required; notifier and events default to no-ops.
func New(cfg *config.Config, deps Dependencies, opts ...Option) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	switch {
	case deps.Store == nil:
		return nil, errors.New("job store is required")
	case deps.Source == nil:
		return nil, errors.New("source watcher is required")
	case deps.Analyzer == nil:
		return nil, errors.New("analyzer is required")
	case deps.Renderer == nil:
		return nil, errors.New("renderer is required")
	case deps.Publisher == nil:
		return nil, errors.New("publisher is required")
	}
	o := &Orchestrator{
		cfg:       cfg,
		store:     deps.Store,
		source:    deps.Source,
		analyzer:  deps.Analyzer,
		renderer:  deps.Renderer,
		publisher: deps.Publisher,
		notifier:  deps.Notifier,
		events:    deps.Events,
		logger:    deps.Logger,
		timeouts:  cfg.Timeouts(),
		interval:  cfg.PollInterval(),
		inflight:  make(map[int64]struct{}),
	}
	if o.notifier == nil {
		o.notifier = notifications.NewService(nil)
	}
	if o.events == nil {
		o.events = events.Noop{}
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}
	o.logger = logging.NewComponentLogger(o.logger, "pipeline")
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Process runs the step chain for an existing job. Step failures are
// recorded on the job rather than returned; the error covers lookup,
// concurrency, and store failures only.
func (o *Orchestrator) Process(ctx context.Context, id int64) (*jobs.Job, error) {
	if !o.acquire(id) {
		return nil, fmt.Errorf("%w: job %d", ErrJobBusy, id)
	}
	defer o.release(id)

	job, err := o.load(ctx, id)
	if err != nil {
		return nil, err
	}
	run := o.newRun(ctx, job)
	run.process()
	return job, run.storeErr
}

func (o *Orchestrator) load(ctx context.Context, id int64) (*jobs.Job, error) {
	job, err := o.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load job %d: %w", id, err)
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "", "load job", fmt.Sprintf("job %d", id), nil)
	}
	return job, nil
}

func (o *Orchestrator) acquire(id int64) bool {
	o.inflightMu.Lock()
	defer o.inflightMu.Unlock()
	if _, busy := o.inflight[id]; busy {
		return false
	}
	o.inflight[id] = struct{}{}
	return true
}

func (o *Orchestrator) release(id int64) {
	o.inflightMu.Lock()
	delete(o.inflight, id)
	o.inflightMu.Unlock()
}

// InFlight reports whether the job is currently being processed.
func (o *Orchestrator) InFlight(id int64) bool {
	o.inflightMu.Lock()
	defer o.inflightMu.Unlock()
	_, busy := o.inflight[id]
	return busy
}

func (o *Orchestrator) setLastError(err error) {
	if err != nil {
		o.lastErr.Store(err.Error())
	}
}

// LastError returns the most recent scan-level error message.
func (o *Orchestrator) LastError() string {
	value, _ := o.lastErr.Load().(string)
	return value
}
