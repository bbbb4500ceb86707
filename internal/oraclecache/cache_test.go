package oraclecache

import (
	"context"
	"testing"

	"adpipeline/internal/domain"
)

type countingOracle struct {
	analyzeCalls   int
	candidateCalls int
	visionCalls    int
	placement      domain.Placement
	candidates     []domain.Candidate
}

func (o *countingOracle) Analyze(ctx context.Context, req domain.AnalyzeRequest) (domain.Placement, error) {
	o.analyzeCalls++
	return o.placement, nil
}

func (o *countingOracle) Candidates(ctx context.Context, req domain.CandidatesRequest) ([]domain.Candidate, error) {
	o.candidateCalls++
	return o.candidates, nil
}

func (o *countingOracle) VisionSelect(ctx context.Context, req domain.VisionSelectRequest) (domain.VisionSelectResult, error) {
	o.visionCalls++
	return domain.VisionSelectResult{}, nil
}

func (o *countingOracle) ProfileInfer(ctx context.Context, data domain.PlatformData) (domain.ProfileInferResult, error) {
	return domain.ProfileInferResult{}, nil
}

func (o *countingOracle) ProductMatch(ctx context.Context, profile domain.ProfileInferResult) (domain.ProductMatchResult, error) {
	return domain.ProductMatchResult{}, nil
}

func TestWithoutRedisClientAlwaysDelegatesToInner(t *testing.T) {
	inner := &countingOracle{placement: domain.Placement{Reason: "x"}}
	cached := New(inner, nil, 0)

	req := domain.AnalyzeRequest{TranscriptSummary: "same request"}
	for i := 0; i < 3; i++ {
		if _, err := cached.Analyze(context.Background(), req); err != nil {
			t.Fatalf("Analyze: %v", err)
		}
	}
	if inner.analyzeCalls != 3 {
		t.Fatalf("expected every call to miss without a redis client, got %d calls", inner.analyzeCalls)
	}
}

func TestVisionSelectAlwaysPassesThroughUncached(t *testing.T) {
	inner := &countingOracle{}
	cached := New(inner, nil, 0)

	for i := 0; i < 2; i++ {
		if _, err := cached.VisionSelect(context.Background(), domain.VisionSelectRequest{}); err != nil {
			t.Fatalf("VisionSelect: %v", err)
		}
	}
	if inner.visionCalls != 2 {
		t.Fatalf("expected VisionSelect to never be cached, got %d calls", inner.visionCalls)
	}
}

func TestCacheKeyIsDeterministicAndRequestSensitive(t *testing.T) {
	reqA := domain.AnalyzeRequest{TranscriptSummary: "a", Product: domain.Product{Product: "Widget"}}
	reqB := domain.AnalyzeRequest{TranscriptSummary: "b", Product: domain.Product{Product: "Widget"}}

	k1 := cacheKey(analyzeKind, reqA)
	k2 := cacheKey(analyzeKind, reqA)
	k3 := cacheKey(analyzeKind, reqB)

	if k1 != k2 {
		t.Fatalf("expected identical requests to hash to the same key: %q != %q", k1, k2)
	}
	if k1 == k3 {
		t.Fatal("expected different requests to hash to different keys")
	}
	if cacheKey(candidateKind, reqA) == k1 {
		t.Fatal("expected different operation kinds to hash to different keys even for the same request")
	}
}
