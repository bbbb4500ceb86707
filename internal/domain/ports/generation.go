package ports

import (
	"context"
	"io"

	"adpipeline/internal/domain"
)

// GenerationClient submits a clip for AI video-to-video regeneration,
// polls for completion, and downloads the result.
type GenerationClient interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error)
	Download(ctx context.Context, url, dstPath string) error
}

// UploadHost publishes a local file to a publicly downloadable HTTPS URL.
// Implementations are composed in fallback order by the generation client.
type UploadHost interface {
	Name() string
	Upload(ctx context.Context, r io.Reader, size int64, filename string) (string, error)
}

// Uploader publishes a clip to a temporary public URL, trying a
// fallback-ordered set of hosts internally and surfacing only the first
// success or a combined upload-failed error.
type Uploader interface {
	Upload(ctx context.Context, data []byte, filename string) (string, error)
}
