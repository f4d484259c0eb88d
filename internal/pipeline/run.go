package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"reelpipe/internal/analysis"
	"reelpipe/internal/captions"
	"reelpipe/internal/events"
	"reelpipe/internal/jobs"
	"reelpipe/internal/logging"
	"reelpipe/internal/notifications"
	"reelpipe/internal/services"
)

const (
	StepDownload = "download"
	StepAnalyze  = "analyze"
	StepCaptions = "captions"
	StepRender   = "render"
	StepPublish  = "publish"
)

// StepResult is the outcome of a chain of steps: the zero value is success,
// otherwise Step names the step that failed with Err.
type StepResult struct {
	Step string
	Err  error
}

// Failed reports whether a step failed.
func (r StepResult) Failed() bool {
	return r.Err != nil
}

type step struct {
	name string
	run  func(*jobRun) error
}

// jobRun carries one pass of a job through the chain. Its context ignores
// cancellation: once started, a step runs to completion or its timeout.
type jobRun struct {
	o             *Orchestrator
	ctx           context.Context
	job           *jobs.Job
	logger        *slog.Logger
	correlationID string
	storeErr      error
}

func (o *Orchestrator) newRun(ctx context.Context, job *jobs.Job) *jobRun {
	correlationID := uuid.NewString()
	ctx = context.WithoutCancel(ctx)
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithRequestID(ctx, correlationID)
	return &jobRun{
		o:             o,
		ctx:           ctx,
		job:           job,
		logger:        logging.WithContext(ctx, o.logger).With(logging.String("file", job.FileName)),
		correlationID: correlationID,
	}
}

var (
	downloadStep = step{name: StepDownload, run: (*jobRun).download}
	processSteps = []step{
		{name: StepAnalyze, run: (*jobRun).analyze},
		{name: StepCaptions, run: (*jobRun).buildCaptions},
		{name: StepRender, run: (*jobRun).render},
		{name: StepPublish, run: (*jobRun).publish},
	}
)

// process runs analyze through publish.
func (r *jobRun) process() StepResult {
	return r.execute(processSteps...)
}

// ingest downloads the source and then processes it.
func (r *jobRun) ingest() StepResult {
	return r.execute(append([]step{downloadStep}, processSteps...)...)
}

func (r *jobRun) execute(steps ...step) StepResult {
	result := r.chain(steps...)
	if result.Failed() {
		r.fail(result)
	} else {
		r.complete()
	}
	return result
}

func (r *jobRun) chain(steps ...step) StepResult {
	for _, s := range steps {
		r.logger.Debug("step started", logging.String(logging.FieldStep, s.name))
		if err := s.run(r); err != nil {
			return StepResult{Step: s.name, Err: err}
		}
	}
	return StepResult{}
}

func (r *jobRun) stepContext(name string, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx := services.WithStep(r.ctx, name)
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *jobRun) download() error {
	if err := r.transition(jobs.StatusDownloading); err != nil {
		return err
	}
	ctx, cancel := r.stepContext(StepDownload, r.o.timeouts.Download)
	defer cancel()
	path, err := r.o.source.Download(ctx, r.job.SourceID, r.job.LocalFileName())
	if err != nil {
		return services.Wrap(services.ErrTransient, StepDownload, "download source", "", err)
	}
	r.job.LocalPath = path
	return r.transition(jobs.StatusDownloaded)
}

func (r *jobRun) analyze() error {
	if err := r.transition(jobs.StatusAnalyzing); err != nil {
		return err
	}
	ctx, cancel := r.stepContext(StepAnalyze, r.o.timeouts.Analyze)
	defer cancel()
	result, err := r.o.analyzer.Analyze(ctx, r.job.LocalPath)
	if err != nil {
		return services.Wrap(services.ErrTransient, StepAnalyze, "analyze video", "", err)
	}
	applyAnalysis(r.job, result.Normalize(), time.Now().UTC())
	r.logger.Info("analysis complete",
		logging.String(logging.FieldEventType, "analysis_complete"),
		logging.Float64("trim_start", r.job.TrimStart),
		logging.Float64("trim_end", r.job.TrimEnd),
		logging.Int("segments", len(r.job.Transcript)),
	)
	return r.persist()
}

// buildCaptions runs under the analyzing status; it has no status of its own.
func (r *jobRun) buildCaptions() error {
	dir := r.o.cfg.CaptionsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrTransient, StepCaptions, "create captions dir", "", err)
	}
	segments := captions.ShiftSegments(r.job.Transcript, r.job.TrimStart)
	path, ok, err := captions.WriteFile(segments, filepath.Join(dir, r.job.Stem()+".srt"))
	if err != nil {
		return services.Wrap(services.ErrTransient, StepCaptions, "write caption file", "", err)
	}
	if ok {
		r.job.CaptionsPath = path
	} else {
		r.job.CaptionsPath = ""
		r.logger.Info("no captions for trimmed window", logging.String(logging.FieldEventType, "captions_empty"))
	}
	return r.persist()
}

func (r *jobRun) render() error {
	if err := r.transition(jobs.StatusEditing); err != nil {
		return err
	}
	dir := r.o.cfg.OutputDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrTransient, StepRender, "create output dir", "", err)
	}
	// Render plus one size-fitting pass (measure duration and re-encode).
	timeout := 2*r.o.timeouts.Render + r.o.timeouts.Probe
	ctx, cancel := r.stepContext(StepRender, timeout)
	defer cancel()
	output := filepath.Join(dir, r.job.Stem()+"_edited.mp4")
	final, err := r.o.renderer.Render(ctx, r.job.LocalPath, analysisFromJob(r.job), r.job.CaptionsPath, output)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, StepRender, "render video", "", err)
	}
	r.job.OutputPath = final
	return r.persist()
}

func (r *jobRun) publish() error {
	if err := r.transition(jobs.StatusPosting); err != nil {
		return err
	}
	ctx, cancel := r.stepContext(StepPublish, r.o.timeouts.Publish)
	defer cancel()
	postID, err := r.o.publisher.Publish(ctx, r.job.OutputPath, r.job.SuggestedCaption, r.job.Hashtags)
	if err != nil {
		marker := services.ErrTransient
		if errors.Is(err, services.ErrConfiguration) {
			marker = services.ErrConfiguration
		}
		return services.Wrap(marker, StepPublish, "publish video", "", err)
	}
	r.job.PostID = postID
	r.job.ErrorMessage = ""
	return r.transition(jobs.StatusDone)
}

// transition advances the status, persists, and announces the change.
func (r *jobRun) transition(status jobs.Status) error {
	r.job.SetStatus(status)
	if err := r.persist(); err != nil {
		return err
	}
	r.logger.Info("job status changed", logging.String("status", string(status)))
	r.emit()
	return nil
}

func (r *jobRun) persist() error {
	if err := r.o.store.Update(r.ctx, r.job); err != nil {
		return fmt.Errorf("persist job %d: %w", r.job.ID, err)
	}
	return nil
}

func (r *jobRun) fail(result StepResult) {
	r.job.SetFailed(result.Err.Error())
	if err := r.persist(); err != nil {
		r.storeErr = err
		r.logger.Error("failed to persist job failure",
			logging.Error(err),
			logging.String(logging.FieldEventType, "persist_failed"),
			logging.String(logging.FieldErrorHint, "check database access; the job may show a stale status"),
		)
	} else {
		r.emit()
	}

	details := services.Details(result.Err)
	r.logger.Error("job step failed",
		logging.String(logging.FieldStep, result.Step),
		logging.String("resolved_status", string(jobs.StatusFailed)),
		logging.String("error_kind", details.Kind),
		logging.String("error_message", r.job.ErrorMessage),
		logging.String(logging.FieldErrorHint, services.Hint(result.Err)),
		logging.String(logging.FieldEventType, "step_failure"),
		logging.Error(result.Err),
	)
	r.notify(notifications.EventJobFailed, notifications.Payload{
		"fileName": r.job.FileName,
		"step":     result.Step,
		"error":    r.job.ErrorMessage,
	})
}

func (r *jobRun) complete() {
	r.logger.Info("job published",
		logging.String(logging.FieldEventType, "job_completed"),
		logging.String("post_id", r.job.PostID),
		logging.String("output", r.job.OutputPath),
	)
	r.notify(notifications.EventJobCompleted, notifications.Payload{
		"fileName": r.job.FileName,
		"postID":   r.job.PostID,
	})
}

func (r *jobRun) emit() {
	event := events.JobEvent{
		JobID:         r.job.ID,
		SourceID:      r.job.SourceID,
		FileName:      r.job.FileName,
		Status:        string(r.job.Status),
		Error:         r.job.ErrorMessage,
		PostID:        r.job.PostID,
		CorrelationID: r.correlationID,
		At:            time.Now().UTC(),
	}
	if err := r.o.events.Publish(r.ctx, event); err != nil {
		r.logger.Warn("job event publish failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "event_publish_failed"),
			logging.String(logging.FieldErrorHint, "check events.amqp_url and broker health"),
			logging.String("impact", "subscribers miss this status change"),
		)
	}
}

func (r *jobRun) notify(event notifications.Event, payload notifications.Payload) {
	if err := r.o.notifier.Publish(r.ctx, event, payload); err != nil {
		r.logger.Warn("notification failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "notification_failed"),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String("impact", "operator not alerted for this job"),
		)
	}
}

func applyAnalysis(job *jobs.Job, result analysis.Result, at time.Time) {
	job.TrimStart = result.TrimStart
	job.TrimEnd = result.TrimEnd
	job.SourceDuration = result.SourceDuration
	job.HookText = result.HookText
	job.SuggestedCaption = result.SuggestedCaption
	job.CaptionStyle = result.CaptionStyle
	job.Hashtags = result.Hashtags
	job.Transcript = result.Transcript
	job.AnalyzedAt = &at
}

func analysisFromJob(job *jobs.Job) analysis.Result {
	return analysis.Result{
		TrimStart:        job.TrimStart,
		TrimEnd:          job.TrimEnd,
		SourceDuration:   job.SourceDuration,
		HookText:         job.HookText,
		SuggestedCaption: job.SuggestedCaption,
		CaptionStyle:     job.CaptionStyle,
		Hashtags:         job.Hashtags,
		Transcript:       job.Transcript,
	}
}
