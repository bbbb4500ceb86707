// Package media wraps the ffmpeg/ffprobe toolchain for probing, clip
// extraction, HLS segmentation, normalized concatenation, and frame grabs.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"adpipeline/internal/domain"
)

// Prober runs ffprobe and parses its JSON output into a domain.MediaInfo.
type Prober struct {
	binary string
}

func NewProber(binary string) *Prober {
	bin := strings.TrimSpace(binary)
	if bin == "" {
		bin = "ffprobe"
	}
	return &Prober{binary: bin}
}

func (p *Prober) Probe(ctx context.Context, filePath string) (domain.MediaInfo, error) {
	path := strings.TrimSpace(filePath)
	if path == "" {
		return domain.MediaInfo{}, errors.New("file path is required")
	}

	return p.runProbe(ctx, []string{
		"-v", "quiet",
		"-probesize", "100M",
		"-analyzeduration", "100M",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	})
}

const maxProbeTimeout = 30 * time.Second

func (p *Prober) runProbe(ctx context.Context, args []string) (domain.MediaInfo, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, maxProbeTimeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, p.binary, args...)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	info, parseErr := parseProbeOutput(stdout.Bytes())
	if parseErr != nil {
		if runErr != nil {
			return domain.MediaInfo{}, stageErr("ffprobe failed", runErr, stderr.String())
		}
		return domain.MediaInfo{}, stageErr("ffprobe output parse failed", parseErr, "")
	}

	if runErr != nil && len(info.Tracks) == 0 {
		return domain.MediaInfo{}, stageErr("ffprobe failed", runErr, stderr.String())
	}

	return info, nil
}

func stageErr(msg string, cause error, stderr string) error {
	stderr = strings.TrimSpace(stderr)
	if stderr != "" {
		cause = fmt.Errorf("%w: %s", cause, stderr)
	}
	return domain.NewStageError(domain.ErrorKindIncompatibleStreams, msg, cause)
}

type probePayload struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	CodecType   string            `json:"codec_type"`
	CodecName   string            `json:"codec_name"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	RFrameRate  string            `json:"r_frame_rate"`
	Channels    int               `json:"channels"`
	Tags        map[string]string `json:"tags"`
	Disposition struct {
		Default int `json:"default"`
	} `json:"disposition"`
}

type probeFormat struct {
	Duration  string `json:"duration"`
	StartTime string `json:"start_time"`
}

func parseProbeOutput(data []byte) (domain.MediaInfo, error) {
	var payload probePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return domain.MediaInfo{}, err
	}

	tracks := make([]domain.MediaTrack, 0, len(payload.Streams))
	videoIndex, audioIndex, subtitleIndex := 0, 0, 0

	for _, stream := range payload.Streams {
		switch stream.CodecType {
		case "video":
			tracks = append(tracks, domain.MediaTrack{
				Index:    videoIndex,
				Type:     "video",
				Codec:    stream.CodecName,
				Language: strings.TrimSpace(getTag(stream.Tags, "language")),
				Title:    strings.TrimSpace(getTag(stream.Tags, "title")),
				Default:  stream.Disposition.Default == 1,
				Width:    stream.Width,
				Height:   stream.Height,
				FPS:      parseFrameRate(stream.RFrameRate),
			})
			videoIndex++
		case "audio":
			tracks = append(tracks, domain.MediaTrack{
				Index:    audioIndex,
				Type:     "audio",
				Codec:    stream.CodecName,
				Language: strings.TrimSpace(getTag(stream.Tags, "language")),
				Title:    strings.TrimSpace(getTag(stream.Tags, "title")),
				Default:  stream.Disposition.Default == 1,
				Channels: stream.Channels,
			})
			audioIndex++
		case "subtitle":
			tracks = append(tracks, domain.MediaTrack{
				Index:    subtitleIndex,
				Type:     "subtitle",
				Codec:    stream.CodecName,
				Language: strings.TrimSpace(getTag(stream.Tags, "language")),
				Title:    strings.TrimSpace(getTag(stream.Tags, "title")),
				Default:  stream.Disposition.Default == 1,
			})
			subtitleIndex++
		}
	}

	var duration float64
	if payload.Format.Duration != "" {
		if d, err := strconv.ParseFloat(payload.Format.Duration, 64); err == nil && d > 0 {
			duration = d
		}
	}

	var startTime float64
	if payload.Format.StartTime != "" {
		if st, err := strconv.ParseFloat(payload.Format.StartTime, 64); err == nil && st > 0 {
			startTime = st
		}
	}

	return domain.MediaInfo{Tracks: tracks, Duration: duration, StartTime: startTime}, nil
}

func parseFrameRate(s string) float64 {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return v
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

func getTag(tags map[string]string, key string) string {
	if len(tags) == 0 {
		return ""
	}
	if value, ok := tags[key]; ok {
		return value
	}
	if value, ok := tags[strings.ToUpper(key)]; ok {
		return value
	}
	if value, ok := tags[strings.ToLower(key)]; ok {
		return value
	}
	return ""
}
