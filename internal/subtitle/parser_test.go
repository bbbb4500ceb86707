package subtitle

import (
	"strings"
	"testing"

	"adpipeline/internal/domain"
)

const sampleSRT = `1
00:00:01,000 --> 00:00:03,500
Hello there.

2
00:00:03,500 --> 00:00:06,000
General Kenobi.

3
00:00:10,000 --> 00:00:12,000
<i>You are a bold one.</i>
`

const sampleVTT = `WEBVTT

1
00:00:01.000 --> 00:00:03.500
Hello there.

2
00:00:03.500 --> 00:00:06.000
General Kenobi.

3
00:00:10.000 --> 00:00:12.000
You are a bold one.
`

func TestParseSRT(t *testing.T) {
	p := New()
	cues, err := p.Parse("sample.srt", sampleSRT)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cues) != 3 {
		t.Fatalf("expected 3 cues, got %d", len(cues))
	}
	if cues[0].Text != "Hello there." {
		t.Fatalf("unexpected text: %q", cues[0].Text)
	}
	if cues[2].Text != "You are a bold one." {
		t.Fatalf("expected tags stripped, got %q", cues[2].Text)
	}
}

func TestParseVTTAndSRTAgree(t *testing.T) {
	p := New()
	srtCues, err := p.Parse("sample.srt", sampleSRT)
	if err != nil {
		t.Fatalf("srt parse error: %v", err)
	}
	vttCues, err := p.Parse("sample.vtt", sampleVTT)
	if err != nil {
		t.Fatalf("vtt parse error: %v", err)
	}
	if len(srtCues) != len(vttCues) {
		t.Fatalf("cue count mismatch: srt=%d vtt=%d", len(srtCues), len(vttCues))
	}
	for i := range srtCues {
		if srtCues[i].Start != vttCues[i].Start || srtCues[i].End != vttCues[i].End || srtCues[i].Text != vttCues[i].Text {
			t.Fatalf("cue %d mismatch: srt=%+v vtt=%+v", i, srtCues[i], vttCues[i])
		}
	}
}

func TestParseEmptyFails(t *testing.T) {
	p := New()
	if _, err := p.Parse("empty.srt", ""); err == nil {
		t.Fatal("expected error for empty content")
	}
}

func TestParseSkipsMalformedBlock(t *testing.T) {
	p := New()
	content := "not-a-number\n00:00:01,000 --> 00:00:02,000\nbroken\n\n2\n00:00:05,000 --> 00:00:06,000\nOK cue.\n"
	cues, err := p.Parse("sample.srt", content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cues) != 1 {
		t.Fatalf("expected 1 surviving cue, got %d", len(cues))
	}
	if cues[0].Text != "OK cue." {
		t.Fatalf("unexpected cue text: %q", cues[0].Text)
	}
}

func TestFindGaps(t *testing.T) {
	p := New()
	cues, err := p.Parse("sample.srt", sampleSRT)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gaps := p.FindGaps(cues, 1.5)
	if len(gaps) != 1 {
		t.Fatalf("expected 1 gap >= 1.5s, got %d", len(gaps))
	}
	g := gaps[0]
	if g.Start != 6.0 || g.End != 10.0 {
		t.Fatalf("unexpected gap bounds: %+v", g)
	}
	if g.Duration != 4.0 {
		t.Fatalf("expected duration 4.0, got %f", g.Duration)
	}
	if !strings.Contains(g.ContextBefore, "Kenobi") {
		t.Fatalf("expected context_before to include preceding cue, got %q", g.ContextBefore)
	}
	if !strings.Contains(g.ContextAfter, "bold one") {
		t.Fatalf("expected context_after to include following cue, got %q", g.ContextAfter)
	}
}

func TestFindGapsOrderedByDurationDescending(t *testing.T) {
	p := New()
	content := `1
00:00:00,000 --> 00:00:01,000
a

2
00:00:03,000 --> 00:00:04,000
b

3
00:00:10,000 --> 00:00:11,000
c
`
	cues, err := p.Parse("sample.srt", content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gaps := p.FindGaps(cues, 0.5)
	if len(gaps) != 2 {
		t.Fatalf("expected 2 gaps, got %d", len(gaps))
	}
	if gaps[0].Duration < gaps[1].Duration {
		t.Fatalf("expected descending duration order, got %v then %v", gaps[0].Duration, gaps[1].Duration)
	}
}

func TestTranscriptSummarySamplesEvenly(t *testing.T) {
	p := New()
	cues := make([]domain.Cue, 0, 200)
	for i := 0; i < 200; i++ {
		cues = append(cues, domain.Cue{Index: i + 1, Start: float64(i), End: float64(i) + 1, Text: "line"})
	}
	summary := p.TranscriptSummary(cues, 50)
	lines := strings.Split(summary, "\n")
	if len(lines) > 50 {
		t.Fatalf("expected at most 50 sampled lines, got %d", len(lines))
	}
	if len(lines) == 0 {
		t.Fatal("expected non-empty summary")
	}
}

func TestTranscriptSummaryUnderCapReturnsAll(t *testing.T) {
	p := New()
	cues, err := p.Parse("sample.srt", sampleSRT)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	summary := p.TranscriptSummary(cues, 100)
	if len(strings.Split(summary, "\n")) != len(cues) {
		t.Fatalf("expected one line per cue when under cap")
	}
}

func TestParseSRTTimeAcceptsAllFormats(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"00:01:02.500", 62.5},
		{"00:01:02", 62.0},
		{"01:02", 62.0},
		{"62.5", 62.5},
	}
	for _, tt := range tests {
		got, err := parseSRTTime(tt.in)
		if err != nil {
			t.Fatalf("parseSRTTime(%q) error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("parseSRTTime(%q) = %f, want %f", tt.in, got, tt.want)
		}
	}
}

func TestParseVTTTimeAcceptsAllFormats(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"00:01:02.500", 62.5},
		{"01:02.500", 62.5},
		{"01:02", 62.0},
		{"62.5", 62.5},
	}
	for _, tt := range tests {
		got, err := parseVTTTime(tt.in)
		if err != nil {
			t.Fatalf("parseVTTTime(%q) error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("parseVTTTime(%q) = %f, want %f", tt.in, got, tt.want)
		}
	}
}

func TestSecondsToTimestampRoundTrip(t *testing.T) {
	tests := []float64{0, 1.5, 59.999, 3661.25, 7325.0}
	for _, s := range tests {
		ts := SecondsToTimestamp(s)
		back, err := TimestampToSeconds(ts)
		if err != nil {
			t.Fatalf("TimestampToSeconds(%q) error: %v", ts, err)
		}
		if diff := back - s; diff > 0.002 || diff < -0.002 {
			t.Fatalf("round trip mismatch: %f -> %q -> %f", s, ts, back)
		}
	}
}
