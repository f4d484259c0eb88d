package captions

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// MinCueSeconds is the duration forced onto a segment whose end does not come
// after its start.
const MinCueSeconds = 1.5

const arrow = " --> "

var timingLine = regexp.MustCompile(`^\s*(\d{2,}:\d{2}:\d{2}[,.]\d{3})\s*-->\s*(\d{2,}:\d{2}:\d{2}[,.]\d{3})(.*)$`)

// Segment is one transcript entry with times in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Render formats segments as SRT text. Segments with blank text are dropped
// and cue indexes count only emitted blocks. The second return value reports
// how many cues were written.
func Render(segments []Segment) (string, int) {
	lines := make([]string, 0, len(segments)*4)
	index := 0
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		end := seg.End
		if end <= seg.Start {
			end = seg.Start + MinCueSeconds
		}
		index++
		lines = append(lines,
			strconv.Itoa(index),
			FormatTimestamp(seg.Start)+arrow+FormatTimestamp(end),
			text,
			"",
		)
	}
	if index == 0 {
		return "", 0
	}
	return strings.Join(lines, "\n"), index
}

// WriteFile writes segments to outputPath in SRT format. It returns ok=false
// and writes nothing when there is nothing to caption; that is not an error.
func WriteFile(segments []Segment, outputPath string) (string, bool, error) {
	if len(segments) == 0 {
		return "", false, nil
	}
	content, cues := Render(segments)
	if cues == 0 {
		return "", false, nil
	}
	if err := os.WriteFile(outputPath, []byte(content), 0o644); err != nil {
		return "", false, fmt.Errorf("write srt: %w", err)
	}
	return outputPath, true, nil
}

// ShiftFile subtracts offsetSeconds from every timing line of the SRT file at
// path, clamping at zero, and rewrites it in place. Other lines, including
// their line endings, are preserved. A zero offset leaves the file untouched.
func ShiftFile(path string, offsetSeconds float64) (string, error) {
	if offsetSeconds == 0 {
		return path, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read srt: %w", err)
	}
	shifted, err := ShiftText(string(data), offsetSeconds)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat srt: %w", err)
	}
	if err := os.WriteFile(path, []byte(shifted), info.Mode().Perm()); err != nil {
		return "", fmt.Errorf("write srt: %w", err)
	}
	return path, nil
}

// ShiftText applies the ShiftFile transformation to SRT content.
func ShiftText(content string, offsetSeconds float64) (string, error) {
	if offsetSeconds == 0 {
		return content, nil
	}
	offsetMS := Millis(offsetSeconds)
	if offsetSeconds < 0 {
		offsetMS = -Millis(-offsetSeconds)
	}
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		body, cr := strings.CutSuffix(line, "\r")
		match := timingLine.FindStringSubmatch(body)
		if match == nil {
			continue
		}
		start, err := parseMillis(match[1])
		if err != nil {
			return "", fmt.Errorf("line %d: %w", i+1, err)
		}
		end, err := parseMillis(match[2])
		if err != nil {
			return "", fmt.Errorf("line %d: %w", i+1, err)
		}
		rewritten := formatMillis(max(0, start-offsetMS)) + arrow + formatMillis(max(0, end-offsetMS)) + match[3]
		if cr {
			rewritten += "\r"
		}
		lines[i] = rewritten
	}
	return strings.Join(lines, "\n"), nil
}

func formatMillis(ms int64) string {
	return FormatTimestamp(float64(ms) / 1000)
}
