// Package oraclecache wraps a ports.Oracle with an optional Redis-backed
// response cache, keyed on the reasoning request's content, to avoid
// redundant LLM spend when a submission is retried with identical inputs.
package oraclecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"adpipeline/internal/domain"
	"adpipeline/internal/domain/ports"
	"adpipeline/internal/metrics"
)

const (
	keyPrefix     = "adpipeline:oracle:"
	defaultTTL    = 24 * time.Hour
	analyzeKind   = "analyze"
	candidateKind = "candidates"
)

// CachedOracle decorates a ports.Oracle, caching the two cacheable,
// content-addressable operations (Analyze, Candidates). VisionSelect,
// ProfileInfer, and ProductMatch pass through uncached: vision selection
// depends on freshly grabbed frames and the profile endpoints are
// low-volume enough that caching buys nothing.
type CachedOracle struct {
	inner  ports.Oracle
	client *redis.Client
	ttl    time.Duration
}

func New(inner ports.Oracle, client *redis.Client, ttl time.Duration) *CachedOracle {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &CachedOracle{inner: inner, client: client, ttl: ttl}
}

func (c *CachedOracle) Analyze(ctx context.Context, req domain.AnalyzeRequest) (domain.Placement, error) {
	key := cacheKey(analyzeKind, req)
	var cached domain.Placement
	if hit, err := c.get(ctx, key, &cached); err == nil && hit {
		metrics.OracleCacheHitsTotal.WithLabelValues(analyzeKind).Inc()
		return cached, nil
	}

	result, err := c.inner.Analyze(ctx, req)
	if err != nil {
		return domain.Placement{}, err
	}
	c.set(ctx, key, result)
	return result, nil
}

func (c *CachedOracle) Candidates(ctx context.Context, req domain.CandidatesRequest) ([]domain.Candidate, error) {
	key := cacheKey(candidateKind, req)
	var cached []domain.Candidate
	if hit, err := c.get(ctx, key, &cached); err == nil && hit {
		metrics.OracleCacheHitsTotal.WithLabelValues(candidateKind).Inc()
		return cached, nil
	}

	result, err := c.inner.Candidates(ctx, req)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, result)
	return result, nil
}

func (c *CachedOracle) VisionSelect(ctx context.Context, req domain.VisionSelectRequest) (domain.VisionSelectResult, error) {
	return c.inner.VisionSelect(ctx, req)
}

func (c *CachedOracle) ProfileInfer(ctx context.Context, data domain.PlatformData) (domain.ProfileInferResult, error) {
	return c.inner.ProfileInfer(ctx, data)
}

func (c *CachedOracle) ProductMatch(ctx context.Context, profile domain.ProfileInferResult) (domain.ProductMatchResult, error) {
	return c.inner.ProductMatch(ctx, profile)
}

func (c *CachedOracle) get(ctx context.Context, key string, dst any) (bool, error) {
	if c.client == nil {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (c *CachedOracle) set(ctx context.Context, key string, value any) {
	if c.client == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.client.Set(ctx, key, data, c.ttl)
}

// cacheKey hashes the request's JSON encoding so cache keys stay a fixed
// short length regardless of transcript size.
func cacheKey(kind string, req any) string {
	data, _ := json.Marshal(req)
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%s%s:%s", keyPrefix, kind, hex.EncodeToString(sum[:]))
}
