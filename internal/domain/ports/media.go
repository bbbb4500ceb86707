package ports

import (
	"context"

	"adpipeline/internal/domain"
)

// MediaOperator wraps the external media toolchain (ffmpeg/ffprobe) used for
// extraction, concatenation, HLS segmentation, and frame grabs.
type MediaOperator interface {
	Probe(ctx context.Context, path string) (domain.MediaInfo, error)

	// Extract cuts src to [t0, t1) into a new clip at dstPath, stream-copying
	// at keyframe boundaries when possible and re-encoding otherwise.
	Extract(ctx context.Context, src string, t0, t1 float64, dstPath string) error

	// SegmentHLS segments src into dir at the given target segment
	// duration, stream-copying when the source codecs allow it and
	// re-encoding otherwise, and returns the resulting playlist.
	SegmentHLS(ctx context.Context, src, dir string, targetSeg float64) (domain.Playlist, error)

	// Concat joins three clips back-to-back into dstPath, normalizing
	// resolution/frame-rate/sample-rate/channel-layout across them.
	Concat(ctx context.Context, a, b, c, dstPath string) error

	// GrabFrame extracts a single JPEG frame at timestamp t (clamped to
	// duration-0.1) and returns the raw JPEG bytes.
	GrabFrame(ctx context.Context, src string, t float64) ([]byte, error)
}
