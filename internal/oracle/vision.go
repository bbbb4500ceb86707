package oracle

import (
	"context"
	"fmt"

	"adpipeline/internal/domain"
	"adpipeline/internal/subtitle"
)

type visionResponse struct {
	SelectedIndex     int    `json:"selected_index"`
	Timestamp         string `json:"timestamp"`
	VisualDescription string `json:"visual_description"`
	HasPeople         bool   `json:"has_people"`
	IsTransitionShot  bool   `json:"is_transition_shot"`
	HowProductFits    string `json:"how_product_fits"`
	WhySelected       string `json:"why_selected"`
	WhyOthersRejected string `json:"why_others_rejected"`
}

// VisionSelect runs PASS 2: vision-based selection among candidate frames.
func (c *Client) VisionSelect(ctx context.Context, req domain.VisionSelectRequest) (domain.VisionSelectResult, error) {
	if len(req.Frames) == 0 {
		return domain.VisionSelectResult{}, domain.NewStageError(domain.ErrorKindNoCandidates, "no candidate frames to select from", nil)
	}

	content := make([]any, 0, len(req.Frames)*2+2)
	content = append(content, textContent{
		Type: "text",
		Text: fmt.Sprintf(`You are selecting the BEST ad placement for %s by %s.

Product Category: %s

I'm showing you %d candidate frames from a video. Each frame is a potential spot to insert an ad.

## YOUR TASK:
Think about HOW this specific product (%s) would naturally appear in a video scene. Then pick the frame where it would look MOST NATURAL and LEAST FORCED.

## KEY QUESTIONS FOR EACH FRAME:

1. **Could this product realistically appear here?**
   - Think about what this product IS and how people USE it
   - A wearable needs someone to wear it
   - A drink needs someone to drink it
   - A car needs a road or parking area
   - etc.

2. **Is there something/someone in the frame to INTERACT with the product?**
   - Empty scenes are BAD - there's nothing for the product to relate to
   - Scenes with PEOPLE are usually BETTER - products are made for people

3. **Is this a TRANSITION/ESTABLISHING shot?**
   - Exterior building shots, cityscapes, aerial views = REJECT THESE
   - These have no interaction context - product would just float awkwardly

4. **Would the product placement look NATURAL or FORCED?**
   - Natural: Product fits the scene's context and mood
   - Forced: Product appears randomly with no logical reason to be there

Here are the candidates:
`, req.Product.Product, req.Product.Company, req.Product.Category, len(req.Frames), req.Product.Product),
	})

	for i, frame := range req.Frames {
		content = append(content, textContent{
			Type: "text",
			Text: fmt.Sprintf("\n--- Candidate %d (Timestamp: %s) ---\nTranscript reason: %s\n",
				i+1, subtitle.SecondsToTimestamp(frame.Candidate.InsertionPoint), frame.Candidate.TranscriptReason),
		})
		content = append(content, imageContent{
			Type:     "image_url",
			ImageURL: imageContentURL{URL: "data:image/jpeg;base64," + frame.JPEGBase64},
		})
	}

	content = append(content, textContent{
		Type: "text",
		Text: fmt.Sprintf(`

Now select the SINGLE BEST candidate for a %s ad.

Think: "Where would %s appear MOST NATURALLY in this video?"

Respond with JSON:
{
    "selected_index": <0-based index of best candidate>,
    "timestamp": "<timestamp of selected candidate>",
    "visual_description": "What you see in the selected frame",
    "has_people": true/false,
    "is_transition_shot": true/false,
    "how_product_fits": "How would %s naturally appear in this scene?",
    "why_selected": "Why this is the best frame for %s",
    "why_others_rejected": "Why the other frames were worse choices"
}`, req.Product.Product, req.Product.Product, req.Product.Product, req.Product.Product),
	})

	messages := []chatMessage{{Role: "user", Content: content}}

	raw, err := c.chat(ctx, "vision_select", c.visionModel, messages, temperatureAnalytical, false)
	if err != nil {
		return domain.VisionSelectResult{}, err
	}

	var parsed visionResponse
	if err := parseJSONWithRecovery(raw, &parsed); err != nil {
		return domain.VisionSelectResult{}, err
	}
	selectedIndex := parsed.SelectedIndex
	if selectedIndex < 0 || selectedIndex >= len(req.Frames) {
		selectedIndex = 0
	}

	return domain.VisionSelectResult{
		SelectedIndex:     selectedIndex,
		VisualDescription: parsed.VisualDescription,
		HasPeople:         parsed.HasPeople,
		IsTransitionShot:  parsed.IsTransitionShot,
		HowProductFits:    parsed.HowProductFits,
		WhySelected:       parsed.WhySelected,
		WhyOthersRejected: parsed.WhyOthersRejected,
	}, nil
}
