// Package subtitle parses SRT and VTT timed-text files into cues, detects
// dialogue gaps suitable for ad placement, and produces a sampled
// transcript summary for oracle prompting.
package subtitle

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"adpipeline/internal/domain"
)

const DefaultMinGap = 1.5

var (
	blockSplitRE   = regexp.MustCompile(`\n\s*\n`)
	srtTimeLineRE  = regexp.MustCompile(`(\d{1,2}:\d{2}:\d{2}[,.]\d{3})\s*-->\s*(\d{1,2}:\d{2}:\d{2}[,.]\d{3})`)
	vttTimeLineRE  = regexp.MustCompile(`([\d:.]+)\s*-->\s*([\d:.]+)`)
	srtTimeFullRE  = regexp.MustCompile(`^(\d{1,2}):(\d{2}):(\d{2})\.(\d{3})`)
	srtTimeShortRE = regexp.MustCompile(`^(\d{1,2}):(\d{2}):(\d{2})$`)
	timeMMSSRE     = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	timePlainSecRE = regexp.MustCompile(`^(\d+(?:\.\d+)?)$`)
	vttTimeFullRE  = regexp.MustCompile(`^(\d{1,2}):(\d{2}):(\d{2})\.(\d{3})$`)
	vttTimeMMSSRE  = regexp.MustCompile(`^(\d{1,2}):(\d{2})\.(\d{3})$`)
	tagRE          = regexp.MustCompile(`<[^>]+>`)
	webvttHeaderRE = regexp.MustCompile(`(?s)^WEBVTT.*?\n\n`)
)

// Parser parses SRT/VTT files into cues. The zero value is ready to use.
type Parser struct{}

func New() *Parser { return &Parser{} }

// ParseFile reads a subtitle file from disk and parses it, dispatching on
// file extension or a leading WEBVTT header marker.
func (p *Parser) ParseFile(path string) ([]domain.Cue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewStageError(domain.ErrorKindInvalidSubtitles, "read subtitle file", err)
	}
	return p.Parse(path, string(data))
}

// Parse parses subtitle content already read into memory. path is used only
// to pick the format when the content has no WEBVTT header.
func (p *Parser) Parse(path, content string) ([]domain.Cue, error) {
	var cues []domain.Cue
	var err error
	if strings.HasSuffix(strings.ToLower(path), ".vtt") || strings.HasPrefix(content, "WEBVTT") {
		cues, err = parseVTT(content)
	} else {
		cues, err = parseSRT(content)
	}
	if err != nil {
		return nil, err
	}
	if len(cues) == 0 {
		return nil, domain.NewStageError(domain.ErrorKindInvalidSubtitles, "no subtitle entries found", nil)
	}
	sort.SliceStable(cues, func(i, j int) bool { return cues[i].Start < cues[j].Start })
	return cues, nil
}

func parseSRT(content string) ([]domain.Cue, error) {
	var cues []domain.Cue
	blocks := blockSplitRE.Split(strings.TrimSpace(content), -1)
	for _, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 3 {
			continue
		}
		index, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		if err != nil {
			continue
		}
		m := srtTimeLineRE.FindStringSubmatch(strings.TrimSpace(lines[1]))
		if m == nil {
			continue
		}
		start, err1 := parseSRTTime(m[1])
		end, err2 := parseSRTTime(m[2])
		if err1 != nil || err2 != nil {
			continue
		}
		text := cleanText(strings.Join(lines[2:], " "))
		cues = append(cues, domain.Cue{Index: index, Start: start, End: end, Text: text})
	}
	return cues, nil
}

func parseVTT(content string) ([]domain.Cue, error) {
	content = webvttHeaderRE.ReplaceAllString(content, "")
	var cues []domain.Cue
	blocks := blockSplitRE.Split(strings.TrimSpace(content), -1)
	index := 0
	for _, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) == 0 {
			continue
		}
		timeLineIdx := -1
		for i, line := range lines {
			if strings.Contains(line, "-->") {
				timeLineIdx = i
				break
			}
		}
		if timeLineIdx == -1 {
			continue
		}
		m := vttTimeLineRE.FindStringSubmatch(strings.TrimSpace(lines[timeLineIdx]))
		if m == nil {
			continue
		}
		start, err1 := parseVTTTime(m[1])
		end, err2 := parseVTTTime(m[2])
		if err1 != nil || err2 != nil {
			continue
		}
		text := cleanText(strings.Join(lines[timeLineIdx+1:], " "))
		index++
		cues = append(cues, domain.Cue{Index: index, Start: start, End: end, Text: text})
	}
	return cues, nil
}

func cleanText(text string) string {
	text = tagRE.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "\n", " ")
	return strings.TrimSpace(text)
}

// parseSRTTime parses HH:MM:SS,mmm, HH:MM:SS.mmm (or without ms), bare
// MM:SS, or plain floating-point seconds.
func parseSRTTime(s string) (float64, error) {
	s = strings.ReplaceAll(s, ",", ".")
	if m := srtTimeFullRE.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		mi, _ := strconv.Atoi(m[2])
		sec, _ := strconv.Atoi(m[3])
		ms, _ := strconv.Atoi(m[4])
		return float64(h*3600+mi*60+sec) + float64(ms)/1000, nil
	}
	if m := srtTimeShortRE.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		mi, _ := strconv.Atoi(m[2])
		sec, _ := strconv.Atoi(m[3])
		return float64(h*3600 + mi*60 + sec), nil
	}
	if m := timeMMSSRE.FindStringSubmatch(s); m != nil {
		mi, _ := strconv.Atoi(m[1])
		sec, _ := strconv.Atoi(m[2])
		return float64(mi*60 + sec), nil
	}
	if m := timePlainSecRE.FindStringSubmatch(s); m != nil {
		sec, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return sec, nil
		}
	}
	return 0, fmt.Errorf("unable to parse time: %s", s)
}

// parseVTTTime parses HH:MM:SS.mmm, MM:SS.mmm, bare MM:SS, or plain
// floating-point seconds.
func parseVTTTime(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if m := vttTimeFullRE.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		mi, _ := strconv.Atoi(m[2])
		sec, _ := strconv.Atoi(m[3])
		ms, _ := strconv.Atoi(m[4])
		return float64(h*3600+mi*60+sec) + float64(ms)/1000, nil
	}
	if m := vttTimeMMSSRE.FindStringSubmatch(s); m != nil {
		mi, _ := strconv.Atoi(m[1])
		sec, _ := strconv.Atoi(m[2])
		ms, _ := strconv.Atoi(m[3])
		return float64(mi*60+sec) + float64(ms)/1000, nil
	}
	if m := timeMMSSRE.FindStringSubmatch(s); m != nil {
		mi, _ := strconv.Atoi(m[1])
		sec, _ := strconv.Atoi(m[2])
		return float64(mi*60 + sec), nil
	}
	if m := timePlainSecRE.FindStringSubmatch(s); m != nil {
		sec, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return sec, nil
		}
	}
	return 0, fmt.Errorf("unable to parse VTT time: %s", s)
}

// FindGaps returns gaps between adjacent cues with duration >= minGap,
// ordered by duration descending. Context windows sample up to 3 cue texts
// on each side of the gap.
func (p *Parser) FindGaps(cues []domain.Cue, minGap float64) []domain.Gap {
	if minGap <= 0 {
		minGap = DefaultMinGap
	}
	var gaps []domain.Gap
	for i := 0; i < len(cues)-1; i++ {
		cur, next := cues[i], cues[i+1]
		dur := next.Start - cur.End
		if dur < minGap {
			continue
		}
		before := cues[max(0, i-2) : i+1]
		afterEnd := min(len(cues), i+4)
		after := cues[i+1 : afterEnd]
		gaps = append(gaps, domain.Gap{
			Start:         cur.End,
			End:           next.Start,
			Duration:      dur,
			ContextBefore: joinText(before),
			ContextAfter:  joinText(after),
		})
	}
	sort.SliceStable(gaps, func(i, j int) bool { return gaps[i].Duration > gaps[j].Duration })
	return gaps
}

func joinText(cues []domain.Cue) string {
	parts := make([]string, len(cues))
	for i, c := range cues {
		parts[i] = c.Text
	}
	return strings.Join(parts, " ")
}

// TranscriptSummary renders cues as "[HH:MM:SS,mmm] text" lines, sampling
// evenly across the video when the cue count exceeds maxEntries.
func (p *Parser) TranscriptSummary(cues []domain.Cue, maxEntries int) string {
	if maxEntries <= 0 {
		maxEntries = 100
	}
	sample := cues
	if len(cues) > maxEntries {
		step := len(cues) / maxEntries
		if step < 1 {
			step = 1
		}
		sample = make([]domain.Cue, 0, maxEntries)
		for i := 0; i < len(cues) && len(sample) < maxEntries; i += step {
			sample = append(sample, cues[i])
		}
	}
	lines := make([]string, len(sample))
	for i, c := range sample {
		lines[i] = fmt.Sprintf("[%s] %s", SecondsToTimestamp(c.Start), c.Text)
	}
	return strings.Join(lines, "\n")
}

// ContextWindow summarizes dialogue immediately before t0 and immediately
// after t1, for use as a placement's summary_before/summary_after when the
// selection came from the multipass (candidates+vision) path rather than
// the single-pass oracle (which returns summaries directly).
func ContextWindow(cues []domain.Cue, t0, t1 float64) (before, after string) {
	var beforeCues, afterCues []domain.Cue
	for _, c := range cues {
		if c.End <= t0 {
			beforeCues = append(beforeCues, c)
		}
		if c.Start >= t1 {
			afterCues = append(afterCues, c)
		}
	}
	if n := len(beforeCues); n > 3 {
		beforeCues = beforeCues[n-3:]
	}
	if len(afterCues) > 3 {
		afterCues = afterCues[:3]
	}
	return joinText(beforeCues), joinText(afterCues)
}

// SecondsToTimestamp formats seconds as HH:MM:SS,mmm.
func SecondsToTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := int(seconds) / 3600
	mi := (int(seconds) % 3600) / 60
	sec := int(seconds) % 60
	ms := int((seconds - float64(int(seconds))) * 1000)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, mi, sec, ms)
}

// TimestampToSeconds parses HH:MM:SS,mmm or HH:MM:SS back to seconds.
func TimestampToSeconds(ts string) (float64, error) {
	ts = strings.ReplaceAll(ts, ",", ".")
	re := regexp.MustCompile(`^(\d{1,2}):(\d{2}):(\d{2})\.?(\d{3})?$`)
	m := re.FindStringSubmatch(ts)
	if m == nil {
		return 0, fmt.Errorf("unable to parse timestamp: %s", ts)
	}
	h, _ := strconv.Atoi(m[1])
	mi, _ := strconv.Atoi(m[2])
	sec, _ := strconv.Atoi(m[3])
	ms := 0
	if m[4] != "" {
		ms, _ = strconv.Atoi(m[4])
	}
	return float64(h*3600+mi*60+sec) + float64(ms)/1000, nil
}
