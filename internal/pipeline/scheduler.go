package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"reelpipe/internal/logging"
)

// Start begins scanning on the configured interval. The first scan fires one
// interval after Start.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return errors.New("pipeline already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.running = true
	o.loopWG.Add(1)
	go o.loop(runCtx)
	o.logger.Info("scheduler started", logging.Duration("interval", o.interval))
	return nil
}

// Stop halts the scheduler and waits for the in-flight tick and background
// work to finish.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	cancel := o.cancel
	o.running = false
	o.cancel = nil
	o.mu.Unlock()

	cancel()
	o.loopWG.Wait()
	o.tickWG.Wait()
	o.bgWG.Wait()
	o.logger.Info("scheduler stopped")
}

// Running reports whether the scheduler is active.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

func (o *Orchestrator) loop(ctx context.Context) {
	defer o.loopWG.Done()
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.tick(ctx)
		}
	}
}

// tick starts a scan unless a scheduled or triggered scan is still pending.
func (o *Orchestrator) tick(ctx context.Context) {
	if !o.startScan(ctx, &o.tickWG) {
		o.logger.Debug("previous scan still running; skipping tick")
	}
}

// Trigger starts a background scan and reports whether one was started. A
// trigger arriving while a scheduled or triggered scan is running or waiting
// to run is absorbed by that scan.
func (o *Orchestrator) Trigger(ctx context.Context) bool {
	if !o.startScan(ctx, &o.bgWG) {
		o.logger.Debug("scan already pending; trigger absorbed",
			logging.String(logging.FieldEventType, "trigger_absorbed"),
		)
		return false
	}
	return true
}

func (o *Orchestrator) startScan(ctx context.Context, wg *sync.WaitGroup) bool {
	if !o.ticking.CompareAndSwap(false, true) {
		return false
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer o.ticking.Store(false)
		_, _ = o.Scan(context.WithoutCancel(ctx))
	}()
	return true
}

// RetryAsync validates the retry preconditions and runs Retry in the
// background. Precondition failures are returned immediately.
func (o *Orchestrator) RetryAsync(ctx context.Context, id int64) error {
	if _, err := o.CheckRetryable(ctx, id); err != nil {
		return err
	}
	o.bgWG.Add(1)
	go func() {
		defer o.bgWG.Done()
		if _, err := o.Retry(context.WithoutCancel(ctx), id); err != nil {
			o.logger.Warn("background retry did not run",
				logging.Int64(logging.FieldJobID, id),
				logging.Error(err),
				logging.String(logging.FieldEventType, "retry_skipped"),
			)
		}
	}()
	return nil
}

// Wait blocks until background triggers and retries finish.
func (o *Orchestrator) Wait() {
	o.bgWG.Wait()
}
