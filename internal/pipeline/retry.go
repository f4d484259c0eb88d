package pipeline

import (
	"context"
	"fmt"
	"os"

	"reelpipe/internal/jobs"
	"reelpipe/internal/logging"
)

// Retry re-enters the chain for a failed job. It clears the stored error,
// re-downloads the source only when the local file is gone, then runs
// analyze through publish again. A job that is not failed is left untouched
// and ErrNotRetryable is returned.
func (o *Orchestrator) Retry(ctx context.Context, id int64) (*jobs.Job, error) {
	if !o.acquire(id) {
		return nil, fmt.Errorf("%w: job %d", ErrJobBusy, id)
	}
	defer o.release(id)

	job, err := o.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != jobs.StatusFailed {
		return job, fmt.Errorf("%w: job %d is %s", ErrNotRetryable, id, job.Status)
	}

	run := o.newRun(ctx, job)
	job.ErrorMessage = ""
	if err := run.persist(); err != nil {
		return job, err
	}
	run.logger.Info("retrying job",
		logging.String(logging.FieldEventType, "job_retry"),
		logging.Bool("redownload", needsDownload(job)),
	)
	if needsDownload(job) {
		run.ingest()
	} else {
		run.process()
	}
	return job, run.storeErr
}

// CheckRetryable validates the retry preconditions without changing anything.
func (o *Orchestrator) CheckRetryable(ctx context.Context, id int64) (*jobs.Job, error) {
	job, err := o.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.InFlight(id) {
		return job, fmt.Errorf("%w: job %d", ErrJobBusy, id)
	}
	if job.Status != jobs.StatusFailed {
		return job, fmt.Errorf("%w: job %d is %s", ErrNotRetryable, id, job.Status)
	}
	return job, nil
}

func needsDownload(job *jobs.Job) bool {
	if job.LocalPath == "" {
		return true
	}
	info, err := os.Stat(job.LocalPath)
	return err != nil || info.IsDir()
}
