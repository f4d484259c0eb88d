package main

import (
	"errors"
	"fmt"
	"log/slog"

	"reelpipe/internal/analysis"
	"reelpipe/internal/config"
	"reelpipe/internal/drive"
	"reelpipe/internal/events"
	"reelpipe/internal/jobs"
	"reelpipe/internal/logging"
	"reelpipe/internal/media/ffprobe"
	"reelpipe/internal/notifications"
	"reelpipe/internal/pipeline"
	"reelpipe/internal/publish"
	"reelpipe/internal/render"
)

// runtime holds the wired pipeline and the resources to release with it.
type runtime struct {
	orchestrator *pipeline.Orchestrator
	events       events.Publisher
}

func (r *runtime) Close() error {
	if r == nil || r.events == nil {
		return nil
	}
	return r.events.Close()
}

// buildRuntime wires the adapters, renderer, and notifiers into an orchestrator.
func buildRuntime(cfg *config.Config, store *jobs.Store, logger *slog.Logger) (*runtime, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("config and store are required")
	}
	timeouts := cfg.Timeouts()

	source, err := drive.NewClient(cfg, drive.WithLogger(logging.NewComponentLogger(logger, "drive")))
	if err != nil {
		return nil, fmt.Errorf("drive client: %w", err)
	}
	analyzer := analysis.NewGeminiClient(analysis.GeminiConfig{
		APIKey:       cfg.Gemini.APIKey,
		BaseURL:      cfg.Gemini.BaseURL,
		Model:        cfg.Gemini.Model,
		PollInterval: cfg.GeminiPollInterval(),
	}, analysis.WithLogger(logging.NewComponentLogger(logger, "gemini")))
	renderer := render.Renderer{
		Planner:     render.Planner{FontFile: cfg.Render.FontFile},
		Transcoder:  render.FFmpeg{Binary: cfg.Render.FFmpegBinary, Timeout: timeouts.Render},
		Prober:      ffprobe.Prober{Binary: cfg.Render.FFprobeBinary, Timeout: timeouts.Probe},
		MaxOutputMB: cfg.Pipeline.MaxOutputSizeMB,
		Logger:      logging.NewComponentLogger(logger, "render"),
	}
	publisher := publish.NewPostizClient(cfg, publish.WithLogger(logging.NewComponentLogger(logger, "postiz")))

	eventPublisher, err := events.New(cfg)
	if err != nil {
		logger.Warn("job events disabled",
			logging.Error(err),
			logging.String(logging.FieldEventType, "events_unavailable"),
			logging.String(logging.FieldErrorHint, "check events.amqp_url"),
			logging.String("impact", "status changes are not published to the exchange"),
		)
		eventPublisher = events.Noop{}
	}

	orch, err := pipeline.New(cfg, pipeline.Dependencies{
		Store:     store,
		Source:    source,
		Analyzer:  analyzer,
		Renderer:  renderer,
		Publisher: publisher,
		Notifier:  notifications.NewService(cfg),
		Events:    eventPublisher,
		Logger:    logger,
	})
	if err != nil {
		_ = eventPublisher.Close()
		return nil, err
	}
	return &runtime{orchestrator: orch, events: eventPublisher}, nil
}
