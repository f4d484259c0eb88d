package captions_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelpipe/internal/captions"
)

func TestFormatTimestampTruncates(t *testing.T) {
	cases := map[float64]string{
		0:         "00:00:00,000",
		1.5:       "00:00:01,500",
		61.25:     "00:01:01,250",
		3661.1:    "01:01:01,100",
		2.9999:    "00:00:02,999",
		0.0005:    "00:00:00,000",
		-3:        "00:00:00,000",
		359999.99: "99:59:59,990",
	}
	for in, want := range cases {
		if got := captions.FormatTimestamp(in); got != want {
			t.Fatalf("FormatTimestamp(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestTimestampRoundTripIsExact(t *testing.T) {
	for ms := int64(0); ms < 7_300_000; ms += 977 {
		formatted := captions.FormatTimestamp(float64(ms) / 1000)
		parsed, err := captions.ParseTimestamp(formatted)
		if err != nil {
			t.Fatalf("ParseTimestamp(%q): %v", formatted, err)
		}
		if again := captions.FormatTimestamp(parsed); again != formatted {
			t.Fatalf("round trip drifted: %q -> %v -> %q", formatted, parsed, again)
		}
		if captions.Millis(parsed) != ms {
			t.Fatalf("round trip changed value: %d -> %d", ms, captions.Millis(parsed))
		}
	}
}

func TestParseTimestampRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "00:00:01", "00:61:00,000", "aa:00:00,000", "00:00:00,5"} {
		if _, err := captions.ParseTimestamp(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
	if v, err := captions.ParseTimestamp("00:01:01.250"); err != nil || v != 61.25 {
		t.Fatalf("expected period separator to parse, got %v %v", v, err)
	}
}

func TestWriteFileProducesSequentialBlocks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.srt")
	segments := []captions.Segment{
		{Start: 0.0, End: 2.5, Text: "Hello world"},
		{Start: 2.5, End: 5.0, Text: "This is a test"},
	}
	got, ok, err := captions.WriteFile(segments, path)
	if err != nil || !ok || got != path {
		t.Fatalf("WriteFile = %q %v %v", got, ok, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read srt: %v", err)
	}
	want := "1\n00:00:00,000 --> 00:00:02,500\nHello world\n\n2\n00:00:02,500 --> 00:00:05,000\nThis is a test\n"
	if string(data) != want {
		t.Fatalf("unexpected srt content:\n%q\nwant\n%q", data, want)
	}
}

func TestWriteFileFixesDegenerateEndAndDropsBlankText(t *testing.T) {
	content, cues := captions.Render([]captions.Segment{
		{Start: 1, End: 1, Text: "same"},
		{Start: 2, End: 3, Text: "   "},
		{Start: 4, End: 3, Text: " backwards "},
	})
	if cues != 2 {
		t.Fatalf("expected 2 cues, got %d", cues)
	}
	for _, fragment := range []string{
		"1\n00:00:01,000 --> 00:00:02,500\nsame\n",
		"2\n00:00:04,000 --> 00:00:05,500\nbackwards\n",
	} {
		if !strings.Contains(content, fragment) {
			t.Fatalf("expected %q in %q", fragment, content)
		}
	}
}

func TestWriteFileEmptyWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.srt")
	got, ok, err := captions.WriteFile(nil, path)
	if err != nil || ok || got != "" {
		t.Fatalf("expected no caption file, got %q %v %v", got, ok, err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no file on disk, stat err=%v", err)
	}
	if _, ok, _ := captions.WriteFile([]captions.Segment{{Start: 0, End: 1, Text: " "}}, path); ok {
		t.Fatal("expected all-blank transcript to produce no file")
	}
}

func TestShiftFileMovesTimingAndClamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shift.srt")
	if _, _, err := captions.WriteFile([]captions.Segment{
		{Start: 2.0, End: 4.0, Text: "before --> trim"},
		{Start: 5.0, End: 7.5, Text: "Trimmed start"},
	}, path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := captions.ShiftFile(path, 5.0); err != nil {
		t.Fatalf("ShiftFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read srt: %v", err)
	}
	want := "1\n00:00:00,000 --> 00:00:00,000\nbefore --> trim\n\n2\n00:00:00,000 --> 00:00:02,500\nTrimmed start\n"
	if string(data) != want {
		t.Fatalf("unexpected shifted content:\n%q\nwant\n%q", data, want)
	}
}

func TestShiftFileZeroOffsetLeavesBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zero.srt")
	original := "1\r\n00:00:05,000 --> 00:00:07,500\r\nkeep me\r\n"
	if err := os.WriteFile(path, []byte(original), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := captions.ShiftFile(path, 0)
	if err != nil || got != path {
		t.Fatalf("ShiftFile = %q %v", got, err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != original {
		t.Fatalf("zero offset modified file: %q", data)
	}
}

func TestShiftTextPreservesLineEndings(t *testing.T) {
	shifted, err := captions.ShiftText("1\r\n00:00:05,000 --> 00:00:07,500\r\nkeep me\r\n", 1)
	if err != nil {
		t.Fatalf("ShiftText: %v", err)
	}
	if shifted != "1\r\n00:00:04,000 --> 00:00:06,500\r\nkeep me\r\n" {
		t.Fatalf("unexpected shifted text: %q", shifted)
	}
}

func TestShiftSegmentsDropsAndClamps(t *testing.T) {
	got := captions.ShiftSegments([]captions.Segment{
		{Start: 0, End: 4, Text: "gone"},
		{Start: 3, End: 6, Text: "straddles"},
		{Start: 5, End: 7.5, Text: "Trimmed start"},
	}, 5)
	if len(got) != 2 {
		t.Fatalf("expected 2 segments, got %+v", got)
	}
	if got[0].Start != 0 || got[0].End != 1 || got[0].Text != "straddles" {
		t.Fatalf("unexpected straddling segment: %+v", got[0])
	}
	if got[1].Start != 0 || got[1].End != 2.5 {
		t.Fatalf("unexpected shifted segment: %+v", got[1])
	}
}
