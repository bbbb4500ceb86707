// Package hls parses and emits VOD HLS playlists and implements the segment
// splice operation used to graft regenerated segments into an original
// segment set.
package hls

import (
	"fmt"
	"math"
	"path"
	"regexp"
	"strconv"
	"strings"

	"adpipeline/internal/domain"
)

const DefaultTargetSegmentSeconds = 10.0

var extinfRE = regexp.MustCompile(`^#EXTINF:\s*([0-9.]+)\s*,`)

// Parse reads raw m3u8 text and extracts the segment list plus metadata.
// Parsing is forgiving: #EXTINF, #EXT-X-TARGETDURATION,
// #EXT-X-MEDIA-SEQUENCE and #EXT-X-ENDLIST are read and any other "#" line
// is skipped; any non-empty non-"#" line is a segment URI, resolved against
// dir when relative.
func Parse(content, dir string) (domain.Playlist, error) {
	var pl domain.Playlist
	lines := strings.Split(content, "\n")
	var pendingDuration float64
	haveDuration := false
	idx := 0
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#EXT-X-TARGETDURATION:") {
			v, _ := strconv.Atoi(strings.TrimPrefix(line, "#EXT-X-TARGETDURATION:"))
			pl.TargetDuration = v
			continue
		}
		if strings.HasPrefix(line, "#EXT-X-MEDIA-SEQUENCE:") {
			v, _ := strconv.Atoi(strings.TrimPrefix(line, "#EXT-X-MEDIA-SEQUENCE:"))
			pl.MediaSequence = v
			continue
		}
		if line == "#EXT-X-ENDLIST" {
			pl.EndList = true
			continue
		}
		if m := extinfRE.FindStringSubmatch(line); m != nil {
			d, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				return domain.Playlist{}, fmt.Errorf("invalid EXTINF duration %q: %w", m[1], err)
			}
			pendingDuration = d
			haveDuration = true
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue // unknown tag or comment line: skipped
		}
		// Segment URI line.
		uri := line
		if dir != "" && !strings.Contains(uri, "://") && !path.IsAbs(uri) {
			uri = path.Join(dir, uri)
		}
		dur := pendingDuration
		if !haveDuration {
			dur = 0
		}
		pl.Segments = append(pl.Segments, domain.Segment{Index: idx, Path: uri, DurationS: dur})
		idx++
		haveDuration = false
	}
	return pl, nil
}

// Emit renders a Playlist to the canonical HLS v3 VOD template. urlFor maps
// a segment to the URI written into the playlist (nil uses segment.Path).
func Emit(pl domain.Playlist, urlFor func(domain.Segment) string) string {
	if urlFor == nil {
		urlFor = func(s domain.Segment) string { return s.Path }
	}
	target := pl.TargetDuration
	if target == 0 {
		target = int(math.Ceil(maxDuration(pl.Segments)))
	}
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")
	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n", target)
	fmt.Fprintf(&b, "#EXT-X-MEDIA-SEQUENCE:%d\n", pl.MediaSequence)
	for _, seg := range pl.Segments {
		fmt.Fprintf(&b, "#EXTINF:%.3f,\n", seg.DurationS)
		b.WriteString(urlFor(seg))
		b.WriteString("\n")
	}
	if pl.EndList {
		b.WriteString("#EXT-X-ENDLIST\n")
	}
	return b.String()
}

func maxDuration(segs []domain.Segment) float64 {
	var m float64
	for _, s := range segs {
		if s.DurationS > m {
			m = s.DurationS
		}
	}
	return m
}

// Splice replaces original[a:b) with edited, renumbering the merged set
// sequentially (segment000.ts, segment001.ts, ...). naming builds the
// renumbered file name for a merged index. The merged count is always
// a + len(edited) + (len(original) - b).
func Splice(original, edited []domain.Segment, a, b int, naming func(mergedIndex int) string) []domain.Segment {
	if naming == nil {
		naming = DefaultSegmentName
	}
	if a < 0 {
		a = 0
	}
	if b > len(original) {
		b = len(original)
	}
	if b < a {
		b = a
	}
	merged := make([]domain.Segment, 0, a+len(edited)+(len(original)-b))
	for i := 0; i < a; i++ {
		merged = append(merged, original[i])
	}
	merged = append(merged, edited...)
	for i := b; i < len(original); i++ {
		merged = append(merged, original[i])
	}
	for i := range merged {
		merged[i].Index = i
		merged[i].Path = naming(i)
	}
	return merged
}

// DefaultSegmentName renders the canonical segmentNNN.ts filename.
func DefaultSegmentName(index int) string {
	return fmt.Sprintf("segment%03d.ts", index)
}

// SegmentRangeForWindow finds the [startSeg, endSeg) index range whose
// cumulative durations cover [t0, t1), reading actual segment durations
// from the playlist rather than assuming a uniform nominal length.
func SegmentRangeForWindow(segs []domain.Segment, t0, t1 float64) (start, end int) {
	var cursor float64
	start, end = -1, len(segs)
	for i, s := range segs {
		segStart := cursor
		segEnd := cursor + s.DurationS
		if start == -1 && segEnd > t0 {
			start = i
		}
		if segStart < t1 {
			end = i + 1
		}
		cursor = segEnd
	}
	if start == -1 {
		start = 0
	}
	if end < start {
		end = start
	}
	return start, end
}
