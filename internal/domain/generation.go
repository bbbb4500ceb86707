package domain

// GenerationPromptContext carries the template substitutions for building
// the generation prompt, per the {company, product_name, product_category,
// summary_before, summary_after, user_interests, user_demographics,
// content_type, content_genre, clip_duration} template contract.
type GenerationPromptContext struct {
	Product       Product
	SummaryBefore string
	SummaryAfter  string
	Profile       ViewerProfile
	ContentType   string
	ContentGenre  string
	ClipDurationS float64
}

// GenerationRequest submits a clip for v2v regeneration.
type GenerationRequest struct {
	VideoURL              string
	Prompt                string
	Resolution            string
	NegativePrompt        string
	EnablePromptExpansion bool
	Seed                  int
}

// GenerationResult is the completed generation task's outcome.
type GenerationResult struct {
	OutputURL string
	RequestID string
	ElapsedS  float64
}
