package oracle

import (
	"context"
	"fmt"
	"strings"

	"adpipeline/internal/domain"
)

// ProfileInfer and ProductMatch follow the same chat/JSON-recovery shape as
// the candidates and vision passes above: a platform-data payload in, a
// demographic segment out, then a product recommendation for that segment.

const profileInferSystemPrompt = `You are a viewer demographics analyst. Given a viewer's platform activity, infer their likely demographic segment, interests, and content preferences.

IMPORTANT: You must respond with valid JSON only.`

type profileInferResponse struct {
	Segment      string            `json:"segment"`
	Interests    []string          `json:"interests"`
	Demographics map[string]string `json:"demographics"`
}

func (c *Client) ProfileInfer(ctx context.Context, data domain.PlatformData) (domain.ProfileInferResult, error) {
	prompt := fmt.Sprintf(`Analyze this viewer's platform activity and infer their demographic profile.

## Shows Watched
%s

## Browsing History
%s

Respond with this exact JSON structure:
{
    "segment": "a short label for this viewer's demographic segment",
    "interests": ["interest1", "interest2"],
    "demographics": {"age_range": "...", "likely_gender": "...", "income_bracket": "..."}
}`, strings.Join(data.ShowsWatched, ", "), strings.Join(data.BrowsingHistory, ", "))

	messages := []chatMessage{
		{Role: "system", Content: profileInferSystemPrompt},
		{Role: "user", Content: prompt},
	}

	raw, err := c.chat(ctx, "profile_infer", c.chatModel, messages, temperatureProfileInfer, true)
	if err != nil {
		return domain.ProfileInferResult{}, err
	}

	var parsed profileInferResponse
	if err := parseJSONWithRecovery(raw, &parsed); err != nil {
		return domain.ProfileInferResult{}, err
	}
	return domain.ProfileInferResult{
		Segment:      parsed.Segment,
		Interests:    parsed.Interests,
		Demographics: parsed.Demographics,
	}, nil
}

const productMatchSystemPrompt = `You are an ad-sales strategist. Given a viewer's inferred demographic segment, recommend the single best-fit product category and example product to advertise to them.

IMPORTANT: You must respond with valid JSON only.`

type productMatchResponse struct {
	Company  string `json:"company"`
	Product  string `json:"product"`
	Category string `json:"category"`
	Reason   string `json:"reason"`
}

func (c *Client) ProductMatch(ctx context.Context, profile domain.ProfileInferResult) (domain.ProductMatchResult, error) {
	prompt := fmt.Sprintf(`This viewer's inferred segment: %s
Interests: %s
Demographics: %v

Recommend the single best-fit product to advertise to this viewer.

Respond with this exact JSON structure:
{
    "company": "...",
    "product": "...",
    "category": "...",
    "reason": "why this product fits this viewer's segment"
}`, profile.Segment, strings.Join(profile.Interests, ", "), profile.Demographics)

	messages := []chatMessage{
		{Role: "system", Content: productMatchSystemPrompt},
		{Role: "user", Content: prompt},
	}

	raw, err := c.chat(ctx, "product_match", c.chatModel, messages, temperatureProductMatch, true)
	if err != nil {
		return domain.ProductMatchResult{}, err
	}

	var parsed productMatchResponse
	if err := parseJSONWithRecovery(raw, &parsed); err != nil {
		return domain.ProductMatchResult{}, err
	}
	return domain.ProductMatchResult{
		Product: domain.Product{Company: parsed.Company, Product: parsed.Product, Category: parsed.Category},
		Reason:  parsed.Reason,
	}, nil
}
