package media

import (
	"strings"
	"testing"

	"adpipeline/internal/domain"
)

func TestHLSStreamCopyable(t *testing.T) {
	tests := []struct {
		name string
		info domain.MediaInfo
		want bool
	}{
		{
			"h264+aac copyable",
			domain.MediaInfo{Tracks: []domain.MediaTrack{{Type: "video", Codec: "h264"}, {Type: "audio", Codec: "aac"}}},
			true,
		},
		{
			"hevc+mp3 copyable",
			domain.MediaInfo{Tracks: []domain.MediaTrack{{Type: "video", Codec: "hevc"}, {Type: "audio", Codec: "mp3"}}},
			true,
		},
		{
			"vp9 video needs reencode",
			domain.MediaInfo{Tracks: []domain.MediaTrack{{Type: "video", Codec: "vp9"}, {Type: "audio", Codec: "aac"}}},
			false,
		},
		{
			"opus audio needs reencode",
			domain.MediaInfo{Tracks: []domain.MediaTrack{{Type: "video", Codec: "h264"}, {Type: "audio", Codec: "opus"}}},
			false,
		},
		{
			"no tracks",
			domain.MediaInfo{},
			false,
		},
		{
			"audio only, compatible",
			domain.MediaInfo{Tracks: []domain.MediaTrack{{Type: "audio", Codec: "aac"}}},
			true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := hlsStreamCopyable(tc.info); got != tc.want {
				t.Fatalf("hlsStreamCopyable(%+v) = %v, want %v", tc.info, got, tc.want)
			}
		})
	}
}

func TestExtractCopyArgsUsesStreamCopy(t *testing.T) {
	args := extractCopyArgs("src.mp4", 1.5, 4.5, "out.mp4")
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-c copy") {
		t.Fatalf("expected stream copy args, got %q", joined)
	}
	if !strings.Contains(joined, "-t 3.000") {
		t.Fatalf("expected duration 3.000, got %q", joined)
	}
}

func TestExtractReencodeArgsIncludesPixFmt(t *testing.T) {
	args := extractReencodeArgs("src.mp4", 1.5, 4.5, "out.mp4")
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-pix_fmt yuv420p") {
		t.Fatalf("expected -pix_fmt yuv420p in reencode args, got %q", joined)
	}
	if !strings.Contains(joined, "libx264") {
		t.Fatalf("expected libx264 in reencode args, got %q", joined)
	}
}
