package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"adpipeline/internal/domain"
	"adpipeline/internal/hls"
)

// Normalization constants match the fixed output profile the ad-insertion
// pipeline targets regardless of source footage: 1080p24 video, 48kHz AAC
// audio. Concat fails (rather than best-effort) if sources can't be forced
// into this profile.
const (
	normWidth     = 1920
	normHeight    = 1080
	normFPSNum    = 24000
	normFPSDen    = 1001
	normAudioRate = 48000
	videoBitrate  = "8M"
	audioBitrate  = "256k"
	ffmpegTimeout = 20 * time.Minute

	// extractCopyTolerance bounds how far a stream-copied extract's actual
	// duration may fall short of the requested [t0, t1) window before it's
	// rejected in favor of a re-encode. A keyframe-aligned copy only ever
	// grows the window (cuts land at or outside t0/t1), so a shortfall past
	// this means the copy didn't take and the file is likely truncated.
	extractCopyTolerance = 0.25

	// hlsCompatibleVideoCodecs and hlsCompatibleAudioCodecs list the codecs
	// that MPEG-TS HLS segmentation can stream-copy directly. Anything else
	// needs a re-encode pass before segmenting.
)

var (
	hlsCompatibleVideoCodecs = map[string]bool{"h264": true, "hevc": true}
	hlsCompatibleAudioCodecs = map[string]bool{"aac": true, "mp3": true}
)

// Operator drives ffmpeg/ffprobe binaries to implement ports.MediaOperator.
type Operator struct {
	*Prober
	ffmpegBinary string
}

func NewOperator(ffmpegBinary, ffprobeBinary string) *Operator {
	bin := strings.TrimSpace(ffmpegBinary)
	if bin == "" {
		bin = "ffmpeg"
	}
	return &Operator{Prober: NewProber(ffprobeBinary), ffmpegBinary: bin}
}

func (o *Operator) run(ctx context.Context, args []string) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ffmpegTimeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, o.ffmpegBinary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return domain.NewStageError(domain.ErrorKindIncompatibleStreams, "ffmpeg failed", fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String())))
	}
	return nil
}

// Extract cuts src to [t0, t1) into dstPath. It first attempts a lossless
// stream copy, which ffmpeg snaps to the nearest keyframes at or outside
// t0/t1, and accepts that copy when its resulting duration covers the
// requested window. When the copy falls short (no keyframe nearby, or the
// container can't be copied at all) it falls back to a precise re-encode.
func (o *Operator) Extract(ctx context.Context, src string, t0, t1 float64, dstPath string) error {
	if t1 <= t0 {
		return domain.NewStageError(domain.ErrorKindInvalidInput, "extract end must be greater than start", nil)
	}

	if err := o.run(ctx, extractCopyArgs(src, t0, t1, dstPath)); err == nil {
		if info, perr := o.Probe(ctx, dstPath); perr == nil && info.Duration >= (t1-t0)-extractCopyTolerance {
			return nil
		}
	}

	return o.run(ctx, extractReencodeArgs(src, t0, t1, dstPath))
}

func extractCopyArgs(src string, t0, t1 float64, dstPath string) []string {
	return []string{
		"-y",
		"-ss", fmt.Sprintf("%.3f", t0),
		"-i", src,
		"-t", fmt.Sprintf("%.3f", t1-t0),
		"-c", "copy",
		"-movflags", "+faststart",
		dstPath,
	}
}

func extractReencodeArgs(src string, t0, t1 float64, dstPath string) []string {
	return []string{
		"-y",
		"-ss", fmt.Sprintf("%.3f", t0),
		"-i", src,
		"-t", fmt.Sprintf("%.3f", t1-t0),
		"-c:v", "libx264",
		"-preset", "fast",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-movflags", "+faststart",
		dstPath,
	}
}

// SegmentHLS segments src into dir at the given nominal target duration
// (ffmpeg still cuts on keyframes, so actual segment durations vary; the
// returned Playlist reflects the emitted #EXTINF values, not targetSeg). It
// probes src first and only stream-copies when both its video and audio
// codecs are directly playable from an MPEG-TS segment; otherwise it
// re-encodes to the normalized profile before segmenting.
func (o *Operator) SegmentHLS(ctx context.Context, src, dir string, targetSeg float64) (domain.Playlist, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return domain.Playlist{}, domain.NewStageError(domain.ErrorKindInternal, "create HLS output dir", err)
	}

	info, err := o.Probe(ctx, src)
	if err != nil {
		return domain.Playlist{}, err
	}

	playlistPath := filepath.Join(dir, "playlist.m3u8")
	segPattern := filepath.Join(dir, "segment%03d.ts")
	codecArgs := []string{"-c", "copy"}
	if !hlsStreamCopyable(info) {
		codecArgs = []string{
			"-c:v", "libx264",
			"-preset", "fast",
			"-pix_fmt", "yuv420p",
			"-c:a", "aac",
		}
	}
	args := append([]string{"-y", "-i", src}, codecArgs...)
	args = append(args,
		"-f", "hls",
		"-hls_time", fmt.Sprintf("%d", int(targetSeg)),
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", segPattern,
		"-hls_flags", "independent_segments",
		playlistPath,
	)
	if err := o.run(ctx, args); err != nil {
		return domain.Playlist{}, err
	}
	raw, err := os.ReadFile(playlistPath)
	if err != nil {
		return domain.Playlist{}, domain.NewStageError(domain.ErrorKindInternal, "read generated playlist", err)
	}
	pl, err := hls.Parse(string(raw), "")
	if err != nil {
		return domain.Playlist{}, domain.NewStageError(domain.ErrorKindInternal, "parse generated playlist", err)
	}
	sort.Slice(pl.Segments, func(i, j int) bool { return pl.Segments[i].Index < pl.Segments[j].Index })
	return pl, nil
}

// hlsStreamCopyable reports whether every video/audio track in info is a
// codec that can be segmented into MPEG-TS HLS without re-encoding.
func hlsStreamCopyable(info domain.MediaInfo) bool {
	sawVideo, sawAudio := false, false
	for _, track := range info.Tracks {
		switch track.Type {
		case "video":
			sawVideo = true
			if !hlsCompatibleVideoCodecs[track.Codec] {
				return false
			}
		case "audio":
			sawAudio = true
			if !hlsCompatibleAudioCodecs[track.Codec] {
				return false
			}
		}
	}
	return sawVideo || sawAudio
}

// Concat joins a, b, c back-to-back into dstPath, normalizing resolution,
// frame rate, sample rate, and channel layout across all three inputs so
// the generated clip (b) seams cleanly into the surrounding original
// footage regardless of its native encode.
func (o *Operator) Concat(ctx context.Context, a, b, c, dstPath string) error {
	filterComplex := fmt.Sprintf(
		"[0:v]scale=%d:%d,setsar=1,fps=%d/%d,setpts=PTS-STARTPTS[v0];"+
			"[0:a]aresample=%d,asetpts=PTS-STARTPTS[a0];"+
			"[1:v]scale=%d:%d,setsar=1,fps=%d/%d,setpts=PTS-STARTPTS[v1];"+
			"[1:a]aresample=%d,asetpts=PTS-STARTPTS[a1];"+
			"[2:v]scale=%d:%d,setsar=1,fps=%d/%d,setpts=PTS-STARTPTS[v2];"+
			"[2:a]aresample=%d,asetpts=PTS-STARTPTS[a2];"+
			"[v0][a0][v1][a1][v2][a2]concat=n=3:v=1:a=1[outv][outa]",
		normWidth, normHeight, normFPSNum, normFPSDen, normAudioRate,
		normWidth, normHeight, normFPSNum, normFPSDen, normAudioRate,
		normWidth, normHeight, normFPSNum, normFPSDen, normAudioRate,
	)
	args := []string{
		"-y",
		"-i", a,
		"-i", b,
		"-i", c,
		"-filter_complex", filterComplex,
		"-map", "[outv]",
		"-map", "[outa]",
		"-c:v", "libx264",
		"-b:v", videoBitrate,
		"-c:a", "aac", "-b:a", audioBitrate,
		"-movflags", "+faststart",
		dstPath,
	}
	return o.run(ctx, args)
}

// GrabFrame extracts a single JPEG frame at timestamp t, clamping into the
// probed duration the same way the frame extractor script does (duration
// minus a tenth of a second) rather than failing on an out-of-range seek.
func (o *Operator) GrabFrame(ctx context.Context, src string, t float64) ([]byte, error) {
	info, err := o.Probe(ctx, src)
	if err != nil {
		return nil, err
	}
	if info.Duration > 0 && t > info.Duration-0.1 {
		t = info.Duration - 0.1
	}
	if t < 0 {
		t = 0
	}

	tmpFile, err := os.CreateTemp("", "frame-*.jpg")
	if err != nil {
		return nil, domain.NewStageError(domain.ErrorKindInternal, "create temp frame file", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	args := []string{
		"-y",
		"-ss", fmt.Sprintf("%.3f", t),
		"-i", src,
		"-frames:v", "1",
		"-q:v", "2",
		tmpPath,
	}
	if err := o.run(ctx, args); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, domain.NewStageError(domain.ErrorKindInternal, "read extracted frame", err)
	}
	return data, nil
}
