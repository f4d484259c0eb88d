package render

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"reelpipe/internal/analysis"
)

const (
	// HookSeconds is how long the hook overlay stays on screen.
	HookSeconds = 3
	// minCaptionBytes is the size a caption file must exceed to be burned in.
	minCaptionBytes = 10

	hookFontSize   = 48
	hookBorderPx   = 3
	hookYFraction  = "0.12"
	subtitleFont   = "Arial"
	subtitleMargin = 40
)

type captionPreset struct {
	fontSize int
	bold     bool
	outline  int
}

var captionPresets = map[string]captionPreset{
	analysis.StyleBold:    {fontSize: 14, bold: true, outline: 2},
	analysis.StyleMinimal: {fontSize: 12, bold: false, outline: 1},
}

// filterEscaper escapes characters with meaning in ffmpeg filter syntax.
// Backslash comes first so later escapes are not doubled.
var filterEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`:`, `\:`,
	`,`, `\,`,
	`[`, `\[`,
	`]`, `\]`,
)

// EscapeFilterText escapes a free-text value for embedding in a filter.
func EscapeFilterText(text string) string {
	return filterEscaper.Replace(text)
}

// EscapeFilterPath escapes a file path for embedding in a filter. Windows
// separators are normalized to forward slashes first.
func EscapeFilterPath(path string) string {
	return EscapeFilterText(strings.ReplaceAll(path, `\`, "/"))
}

// Plan is a composed render: the trim window plus the ordered video filters.
type Plan struct {
	TrimStart    float64
	TrimEnd      float64
	CaptionPath  string
	CaptionStyle string
	HookText     string
	Filters      []string
}

// Duration is the length of the trimmed output in seconds.
func (p Plan) Duration() float64 {
	return p.TrimEnd - p.TrimStart
}

// HasCaptions reports whether the plan burns in a caption layer.
func (p Plan) HasCaptions() bool {
	return p.CaptionPath != ""
}

// VideoFilter joins the filters in composition order.
func (p Plan) VideoFilter() string {
	return strings.Join(p.Filters, ",")
}

// Args returns the ffmpeg arguments that render input to output.
func (p Plan) Args(input, output string) []string {
	return []string{
		"-y",
		"-ss", formatSeconds(p.TrimStart),
		"-t", formatSeconds(p.Duration()),
		"-i", input,
		"-vf", p.VideoFilter(),
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		"-pix_fmt", "yuv420p",
		output,
	}
}

// Planner builds render plans.
type Planner struct {
	FontFile string
}

// BuildPlan composes the plan for result. The caption layer is included only
// when captionPath names an existing file larger than a few bytes; the hook
// overlay is always last so it draws above the captions.
func (p Planner) BuildPlan(result analysis.Result, captionPath string) Plan {
	plan := Plan{
		TrimStart:    result.TrimStart,
		TrimEnd:      result.TrimEnd,
		CaptionStyle: analysis.NormalizeStyle(result.CaptionStyle),
		HookText:     result.HookText,
	}
	if usableCaptionFile(captionPath) {
		plan.CaptionPath = captionPath
		plan.Filters = append(plan.Filters, subtitleFilter(captionPath, plan.CaptionStyle))
	}
	plan.Filters = append(plan.Filters, p.hookFilter(result.HookText))
	return plan
}

func (p Planner) hookFilter(text string) string {
	return fmt.Sprintf(
		"drawtext=text='%s':fontfile=%s:fontsize=%d:fontcolor=white:borderw=%d:bordercolor=black:x=(w-text_w)/2:y=h*%s:enable='between(t,0,%d)'",
		EscapeFilterText(text), EscapeFilterPath(p.FontFile), hookFontSize, hookBorderPx, hookYFraction, HookSeconds,
	)
}

func subtitleFilter(path, style string) string {
	return fmt.Sprintf("subtitles='%s':force_style='%s'", EscapeFilterPath(path), forceStyle(style))
}

// forceStyle renders the ASS style override for a caption preset.
func forceStyle(style string) string {
	preset, ok := captionPresets[style]
	if !ok {
		preset = captionPresets[analysis.StyleBold]
	}
	bold := 0
	if preset.bold {
		bold = 1
	}
	return fmt.Sprintf(
		"Fontname=%s,Fontsize=%d,Bold=%d,PrimaryColour=&HFFFFFF,OutlineColour=&H000000,BorderStyle=1,Outline=%d,Alignment=2,MarginV=%d",
		subtitleFont, preset.fontSize, bold, preset.outline, subtitleMargin,
	)
}

func usableCaptionFile(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Size() > minCaptionBytes
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
