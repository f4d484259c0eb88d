package analysis

import (
	"context"
	"fmt"
	"math"
	"strings"

	"reelpipe/internal/captions"
	"reelpipe/internal/textutil"
)

const (
	StyleBold    = "bold"
	StyleMinimal = "minimal"

	// DefaultHookText is used when the model returns no hook.
	DefaultHookText = "WATCH THIS"
	// MinWindowSeconds is the shortest trim window accepted as-is.
	MinWindowSeconds = 5.0
	// FallbackWindowSeconds caps the substitute window used for short trims.
	FallbackWindowSeconds = 60.0
	// UnknownDurationSeconds stands in for a missing source duration.
	UnknownDurationSeconds = 999.0
)

// Analyzer produces a structured analysis of a local media file.
type Analyzer interface {
	Analyze(ctx context.Context, localPath string) (Result, error)
}

// Result is the normalized analysis of one source video. Times are seconds
// relative to the untrimmed source.
type Result struct {
	TrimStart        float64
	TrimEnd          float64
	HookText         string
	CaptionStyle     string
	Transcript       []captions.Segment
	SuggestedCaption string
	Hashtags         []string
	SourceDuration   float64
}

// Window returns the trim window length in seconds.
func (r Result) Window() float64 {
	return r.TrimEnd - r.TrimStart
}

// Normalize applies defaults and clamps. It is idempotent.
//
// The source duration falls back to UnknownDurationSeconds when missing; the
// trim start clamps to >= 0 and the end to <= duration; a window shorter than
// MinWindowSeconds becomes [0, min(duration, FallbackWindowSeconds)].
func (r Result) Normalize() Result {
	out := r
	if !finitePositive(out.SourceDuration) {
		out.SourceDuration = UnknownDurationSeconds
	}
	if !finite(out.TrimStart) || out.TrimStart < 0 {
		out.TrimStart = 0
	}
	if !finite(out.TrimEnd) || out.TrimEnd > out.SourceDuration {
		out.TrimEnd = out.SourceDuration
	}
	if out.Window() < MinWindowSeconds {
		out.TrimStart = 0
		out.TrimEnd = math.Min(out.SourceDuration, FallbackWindowSeconds)
	}

	out.HookText = strings.TrimSpace(out.HookText)
	if out.HookText == "" {
		out.HookText = DefaultHookText
	}
	out.CaptionStyle = NormalizeStyle(out.CaptionStyle)
	out.SuggestedCaption = strings.TrimSpace(out.SuggestedCaption)
	out.Hashtags = textutil.NormalizeHashtags(out.Hashtags)

	transcript := make([]captions.Segment, 0, len(out.Transcript))
	for _, seg := range out.Transcript {
		if !finite(seg.Start) || !finite(seg.End) {
			continue
		}
		transcript = append(transcript, seg)
	}
	out.Transcript = transcript
	return out
}

// NormalizeStyle maps a style tag onto a known preset, defaulting to bold.
func NormalizeStyle(style string) string {
	switch strings.ToLower(strings.TrimSpace(style)) {
	case StyleMinimal:
		return StyleMinimal
	default:
		return StyleBold
	}
}

// payload mirrors the JSON object the model is asked to return.
type payload struct {
	TrimStartSec     *float64         `json:"trim_start_sec"`
	TrimEndSec       *float64         `json:"trim_end_sec"`
	HookText         *string          `json:"hook_text"`
	CaptionStyle     *string          `json:"caption_style"`
	Transcript       []payloadSegment `json:"transcript"`
	SuggestedCaption *string          `json:"suggested_caption"`
	Hashtags         []string         `json:"hashtags"`
	RawDurationSec   *float64         `json:"raw_duration_sec"`
}

type payloadSegment struct {
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
	Text  string   `json:"text"`
}

// DecodePayload parses a model response into a normalized Result. Code fences
// and leading prose around the JSON object are tolerated.
func DecodePayload(content string) (Result, error) {
	var raw payload
	if err := decodeModelJSON(content, &raw); err != nil {
		return Result{}, fmt.Errorf("decode analysis payload: %w", err)
	}

	duration := UnknownDurationSeconds
	if raw.RawDurationSec != nil {
		duration = *raw.RawDurationSec
	}
	result := Result{
		SourceDuration: duration,
		TrimEnd:        duration,
		Hashtags:       raw.Hashtags,
	}
	if raw.TrimStartSec != nil {
		result.TrimStart = *raw.TrimStartSec
	}
	if raw.TrimEndSec != nil {
		result.TrimEnd = *raw.TrimEndSec
	}
	if raw.HookText != nil {
		result.HookText = *raw.HookText
	}
	if raw.CaptionStyle != nil {
		result.CaptionStyle = *raw.CaptionStyle
	}
	if raw.SuggestedCaption != nil {
		result.SuggestedCaption = *raw.SuggestedCaption
	}
	for _, seg := range raw.Transcript {
		start := 0.0
		if seg.Start != nil {
			start = *seg.Start
		}
		end := start + 2
		if seg.End != nil {
			end = *seg.End
		}
		result.Transcript = append(result.Transcript, captions.Segment{Start: start, End: end, Text: seg.Text})
	}
	return result.Normalize(), nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finitePositive(v float64) bool {
	return finite(v) && v > 0
}
