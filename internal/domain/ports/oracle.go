package ports

import (
	"context"

	"adpipeline/internal/domain"
)

// Oracle is the LLM-based reasoning service used for placement decisions
// and viewer-profile inference. Each method corresponds to one OracleTask
// variant; all are dispatched over the same underlying HTTP transport.
type Oracle interface {
	Analyze(ctx context.Context, req domain.AnalyzeRequest) (domain.Placement, error)
	Candidates(ctx context.Context, req domain.CandidatesRequest) ([]domain.Candidate, error)
	VisionSelect(ctx context.Context, req domain.VisionSelectRequest) (domain.VisionSelectResult, error)
	ProfileInfer(ctx context.Context, data domain.PlatformData) (domain.ProfileInferResult, error)
	ProductMatch(ctx context.Context, profile domain.ProfileInferResult) (domain.ProductMatchResult, error)
}
