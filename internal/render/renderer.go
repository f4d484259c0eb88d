package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"reelpipe/internal/analysis"
	"reelpipe/internal/logging"
)

// Renderer runs a plan through a transcoder and enforces the size budget.
type Renderer struct {
	Planner     Planner
	Transcoder  Transcoder
	Prober      DurationProber
	MaxOutputMB int
	Logger      *slog.Logger
}

// Render produces the edited video at outputPath and returns the final path,
// which differs from outputPath when the size budget forced a re-encode.
func (r Renderer) Render(ctx context.Context, inputPath string, result analysis.Result, captionPath, outputPath string) (string, error) {
	if r.Transcoder == nil {
		return "", errors.New("renderer has no transcoder")
	}
	logger := r.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	plan := r.Planner.BuildPlan(result, captionPath)
	logger.Info("rendering video",
		logging.String(logging.FieldEventType, "render_start"),
		logging.Float64("trim_start", plan.TrimStart),
		logging.Float64("trim_end", plan.TrimEnd),
		logging.Bool("captions", plan.HasCaptions()),
		logging.String("caption_style", plan.CaptionStyle),
	)
	logger.Debug("render filter", logging.String("vf", plan.VideoFilter()))

	if err := r.Transcoder.Transcode(ctx, plan.Args(inputPath, outputPath)); err != nil {
		return "", err
	}
	info, err := os.Stat(outputPath)
	if err != nil {
		return "", fmt.Errorf("render produced no output: %w", err)
	}
	logger.Info("render complete",
		logging.String("output", outputPath),
		logging.Float64("size_mb", float64(info.Size())/bytesPerMB),
	)

	final, err := FitToSizeBudget(ctx, outputPath, r.MaxOutputMB, r.Prober, r.Transcoder)
	if err != nil {
		return "", err
	}
	if final != outputPath {
		logger.Warn("output exceeded size budget; re-encoded",
			logging.String(logging.FieldEventType, "render_compressed"),
			logging.String("output", final),
			logging.Int("max_mb", r.MaxOutputMB),
			logging.String(logging.FieldErrorHint, "raise pipeline.max_output_size_mb to keep full quality"),
			logging.String("impact", "published video uses a reduced bitrate"),
		)
	}
	return final, nil
}
