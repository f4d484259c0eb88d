package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	"reelpipe/internal/jobs"
	"reelpipe/internal/logging"
	"reelpipe/internal/notifications"
	"reelpipe/internal/services"
)

// ScanSummary reports what one Scan did.
type ScanSummary struct {
	ScanID     string
	Listed     int
	Discovered int
	Skipped    int
	Succeeded  int
	Failed     int
	Duration   time.Duration
}

// Scan lists the source folder, creates a job for every item without one,
// and runs each new job through download and the step chain in listing order.
// A listing failure aborts the scan before any job is touched and is
// returned as an ErrDiscovery error; per-job failures are recorded on the
// job and never returned. Concurrent scans are serialized.
func (o *Orchestrator) Scan(ctx context.Context) (ScanSummary, error) {
	o.scanMu.Lock()
	defer o.scanMu.Unlock()

	started := time.Now()
	summary := ScanSummary{ScanID: ulid.Make().String()}
	ctx = services.WithScanID(ctx, summary.ScanID)
	logger := logging.WithContext(ctx, o.logger)

	listCtx, cancel := context.WithTimeout(ctx, o.timeouts.Download)
	items, err := o.source.ListNewItems(listCtx)
	cancel()
	if err != nil {
		wrapped := services.Wrap(services.ErrDiscovery, "scan", "list source items", "", err)
		o.setLastError(wrapped)
		logger.Error("scan aborted",
			logging.Error(err),
			logging.String(logging.FieldEventType, "scan_aborted"),
			logging.String(logging.FieldErrorHint, services.Hint(wrapped)),
		)
		return summary, wrapped
	}
	summary.Listed = len(items)

	for i, item := range items {
		if ctx.Err() != nil {
			logger.Info("scan interrupted", logging.Int("remaining", len(items)-i))
			break
		}
		existing, err := o.store.FindBySourceID(ctx, item.ID)
		if err != nil {
			logging.ErrorWithContext(logger, "lookup by source id failed", "store_lookup_failed",
				logging.String("source_id", item.ID),
				logging.Error(err),
			)
			continue
		}
		if existing != nil {
			summary.Skipped++
			continue
		}
		job, err := o.store.Create(ctx, item.ID, item.Name)
		if errors.Is(err, jobs.ErrDuplicateSource) {
			summary.Skipped++
			continue
		}
		if err != nil {
			logging.ErrorWithContext(logger, "create job failed", "job_create_failed",
				logging.String("source_id", item.ID),
				logging.Error(err),
			)
			continue
		}
		summary.Discovered++
		logger.Info("new source item",
			logging.String(logging.FieldEventType, "job_created"),
			logging.Int64(logging.FieldJobID, job.ID),
			logging.String("source_id", item.ID),
			logging.String("file", item.Name),
		)

		if o.ingest(ctx, job).Status == jobs.StatusDone {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}

	summary.Duration = time.Since(started)
	logger.Info("scan complete",
		logging.String(logging.FieldEventType, "scan_complete"),
		logging.Int("listed", summary.Listed),
		logging.Int("discovered", summary.Discovered),
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed),
		logging.Duration("duration", summary.Duration),
	)
	if summary.Discovered > 0 {
		payload := notifications.Payload{
			"discovered": summary.Discovered,
			"succeeded":  summary.Succeeded,
			"failed":     summary.Failed,
		}
		if err := o.notifier.Publish(ctx, notifications.EventScanSummary, payload); err != nil {
			logging.WarnWithContext(logger, "scan summary notification failed", "notification_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			)
		}
	}
	return summary, nil
}

// ingest downloads and processes a freshly created job.
func (o *Orchestrator) ingest(ctx context.Context, job *jobs.Job) *jobs.Job {
	if !o.acquire(job.ID) {
		return job
	}
	defer o.release(job.ID)
	o.newRun(ctx, job).ingest()
	return job
}
