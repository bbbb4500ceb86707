package oracle

import (
	"context"
	"fmt"

	"adpipeline/internal/domain"
	"adpipeline/internal/subtitle"
)

const candidatesSystemPrompt = `You are an expert ad placement analyst. Your job is to find the best moments in video content to insert advertisements.

You will analyze transcript content and dialogue gaps to find MULTIPLE candidate timestamps where an ad could naturally fit.

IMPORTANT: You must respond with valid JSON only.`

type candidatesResponse struct {
	Candidates []struct {
		Rank              int    `json:"rank"`
		InsertionPoint    string `json:"insertion_point"`
		BufferStart       string `json:"buffer_start"`
		BufferEnd         string `json:"buffer_end"`
		Reason            string `json:"reason"`
		TranscriptContext string `json:"transcript_context"`
	} `json:"candidates"`
	OverallAnalysis string `json:"overall_analysis"`
}

// Candidates runs PASS 1: transcript-reasoned candidate generation.
func (c *Client) Candidates(ctx context.Context, req domain.CandidatesRequest) ([]domain.Candidate, error) {
	numCandidates := req.MaxCandidates
	if numCandidates <= 0 {
		numCandidates = defaultNumCandidates
	}

	prompt := fmt.Sprintf(`Analyze this video content and find the %d BEST candidate timestamps for ad placement.

## Product to Advertise
Company: %s
Product: %s
Category: %s

## User Preferences
Interests: %s

## Detected Dialogue Gaps (potential ad slots)
%s

## Transcript Summary
%s

## Instructions
Find %d candidate timestamps ranked by quality. Consider:
1. Natural pauses in dialogue (gaps)
2. Scene transitions or topic changes
3. Contextual relevance to %s
4. Emotional pacing - avoid tense moments

Respond with this exact JSON structure:
{
    "candidates": [
        {
            "rank": 1,
            "insertion_point": "HH:MM:SS,mmm",
            "buffer_start": "HH:MM:SS,mmm",
            "buffer_end": "HH:MM:SS,mmm",
            "reason": "Why this spot is good based on TRANSCRIPT context",
            "transcript_context": "What is being said/happening according to transcript"
        }
    ],
    "overall_analysis": "A short narrative summarizing the full set of candidates and why they were chosen together"
}`,
		numCandidates, req.Product.Company, req.Product.Product, req.Product.Category,
		joinInterests(req.Profile.Interests), formatGaps(req.Gaps), req.TranscriptSummary,
		numCandidates, req.Product.Product)

	messages := []chatMessage{
		{Role: "system", Content: candidatesSystemPrompt},
		{Role: "user", Content: prompt},
	}

	raw, err := c.chat(ctx, "candidates", c.chatModel, messages, temperatureAnalytical, true)
	if err != nil {
		return nil, err
	}

	var parsed candidatesResponse
	if err := parseJSONWithRecovery(raw, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Candidates) == 0 {
		return nil, domain.NewStageError(domain.ErrorKindNoCandidates, "oracle returned no candidates", nil)
	}

	out := make([]domain.Candidate, 0, len(parsed.Candidates))
	for _, cd := range parsed.Candidates {
		insertion, err := subtitle.TimestampToSeconds(cd.InsertionPoint)
		if err != nil {
			continue
		}
		bufStart, err := subtitle.TimestampToSeconds(cd.BufferStart)
		if err != nil {
			bufStart = insertion - req.BufferBefore
		}
		bufEnd, err := subtitle.TimestampToSeconds(cd.BufferEnd)
		if err != nil {
			bufEnd = insertion + req.BufferAfter
		}
		out = append(out, domain.Candidate{
			Rank:             cd.Rank,
			InsertionPoint:   insertion,
			BufferStart:      bufStart,
			BufferEnd:        bufEnd,
			TranscriptReason: cd.Reason,
			OverallAnalysis:  parsed.OverallAnalysis,
		})
	}
	if len(out) == 0 {
		return nil, domain.NewStageError(domain.ErrorKindNoCandidates, "no candidate timestamps survived parsing", nil)
	}
	return out, nil
}

// Analyze is the legacy single-pass path: request exactly one candidate
// from the transcript pass and report it directly as a Placement, skipping
// the vision pass. Kept for callers that don't need visual confirmation.
func (c *Client) Analyze(ctx context.Context, req domain.AnalyzeRequest) (domain.Placement, error) {
	candidates, err := c.Candidates(ctx, domain.CandidatesRequest{
		TranscriptSummary: req.TranscriptSummary,
		Gaps:              req.Gaps,
		Product:           req.Product,
		Profile:           req.Profile,
		BufferBefore:      req.BufferBefore,
		BufferAfter:       req.BufferAfter,
		MaxCandidates:     1,
	})
	if err != nil {
		return domain.Placement{}, err
	}
	top := candidates[0]
	return domain.Placement{
		InsertionPoint:  top.InsertionPoint,
		BufferStart:     top.BufferStart,
		BufferEnd:       top.BufferEnd,
		Confidence:      0.8,
		Reason:          top.TranscriptReason,
		OverallAnalysis: top.OverallAnalysis,
	}, nil
}
