package analysis

import (
	"math"
	"testing"

	"reelpipe/internal/captions"
)

func TestNormalizeSubstitutesShortWindow(t *testing.T) {
	got := Result{TrimStart: 58, TrimEnd: 60, SourceDuration: 120, HookText: "GO"}.Normalize()
	if got.TrimStart != 0 || got.TrimEnd != 60 {
		t.Fatalf("window = [%v,%v], want [0,60]", got.TrimStart, got.TrimEnd)
	}
}

func TestNormalizeShortSourceUsesWholeDuration(t *testing.T) {
	got := Result{TrimStart: 1, TrimEnd: 3, SourceDuration: 4}.Normalize()
	if got.TrimStart != 0 || got.TrimEnd != 4 {
		t.Fatalf("window = [%v,%v], want [0,4]", got.TrimStart, got.TrimEnd)
	}
}

func TestNormalizeClampsBounds(t *testing.T) {
	got := Result{TrimStart: -3, TrimEnd: 500, SourceDuration: 90}.Normalize()
	if got.TrimStart != 0 || got.TrimEnd != 90 {
		t.Fatalf("window = [%v,%v], want [0,90]", got.TrimStart, got.TrimEnd)
	}
}

func TestNormalizeDefaults(t *testing.T) {
	got := Result{
		TrimStart:    2,
		TrimEnd:      30,
		HookText:     "   ",
		CaptionStyle: "Neon",
		Hashtags:     []string{"#Go", "go", " shorts "},
		Transcript: []captions.Segment{
			{Start: 1, End: 2, Text: "ok"},
			{Start: math.NaN(), End: 3, Text: "bad"},
		},
	}.Normalize()

	if got.SourceDuration != UnknownDurationSeconds {
		t.Fatalf("duration = %v, want %v", got.SourceDuration, UnknownDurationSeconds)
	}
	if got.HookText != DefaultHookText {
		t.Fatalf("hook = %q", got.HookText)
	}
	if got.CaptionStyle != StyleBold {
		t.Fatalf("style = %q", got.CaptionStyle)
	}
	if len(got.Hashtags) != 2 || got.Hashtags[0] != "Go" || got.Hashtags[1] != "shorts" {
		t.Fatalf("hashtags = %v", got.Hashtags)
	}
	if len(got.Transcript) != 1 {
		t.Fatalf("transcript = %v", got.Transcript)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	once := Result{TrimStart: 10, TrimEnd: 12, SourceDuration: 45, CaptionStyle: "MINIMAL"}.Normalize()
	twice := once.Normalize()
	if once.TrimStart != twice.TrimStart || once.TrimEnd != twice.TrimEnd || once.CaptionStyle != twice.CaptionStyle || once.HookText != twice.HookText {
		t.Fatalf("normalize not idempotent: %+v vs %+v", once, twice)
	}
	if once.CaptionStyle != StyleMinimal {
		t.Fatalf("style = %q, want minimal", once.CaptionStyle)
	}
}

func TestDecodePayloadFencedJSON(t *testing.T) {
	content := "Here you go:\n```json\n" + `{
  "trim_start_sec": 4.5,
  "trim_end_sec": 40,
  "hook_text": "YOU WON'T BELIEVE THIS",
  "caption_style": "minimal",
  "transcript": [{"start": 5, "end": 6.5, "text": "hello there"}, {"start": 7, "text": "no end"}],
  "suggested_caption": "A quick one.",
  "hashtags": ["reels", "#fyp"],
  "raw_duration_sec": 52
}` + "\n```"

	got, err := DecodePayload(content)
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if got.TrimStart != 4.5 || got.TrimEnd != 40 || got.SourceDuration != 52 {
		t.Fatalf("unexpected window: %+v", got)
	}
	if got.CaptionStyle != StyleMinimal || got.HookText != "YOU WON'T BELIEVE THIS" {
		t.Fatalf("unexpected overlay fields: %+v", got)
	}
	if len(got.Transcript) != 2 || got.Transcript[1].End != 9 {
		t.Fatalf("transcript = %+v", got.Transcript)
	}
	if len(got.Hashtags) != 2 || got.Hashtags[1] != "fyp" {
		t.Fatalf("hashtags = %v", got.Hashtags)
	}
}

func TestDecodePayloadMissingFields(t *testing.T) {
	got, err := DecodePayload(`{"trim_start_sec": 3}`)
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if got.SourceDuration != UnknownDurationSeconds || got.TrimEnd != UnknownDurationSeconds {
		t.Fatalf("unexpected defaults: %+v", got)
	}
	if got.HookText != DefaultHookText || got.CaptionStyle != StyleBold {
		t.Fatalf("unexpected overlay defaults: %+v", got)
	}
}

func TestDecodePayloadRejectsGarbage(t *testing.T) {
	if _, err := DecodePayload("not json at all"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := DecodePayload("  "); err == nil {
		t.Fatal("expected error for empty payload")
	}
}
