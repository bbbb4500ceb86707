package generation

import (
	"fmt"
	"os"
	"strings"

	"adpipeline/internal/domain"
)

const fallbackPromptTemplate = "Seamlessly integrate {{product_name}} by {{company}} into this video scene. {{summary_before}} The product should appear naturally. {{summary_after}}"

// PromptBuilder renders the generation prompt from a template file, falling
// back to a minimal inline template when the file doesn't exist.
type PromptBuilder struct {
	template string
}

// NewPromptBuilder loads templatePath if present, else uses the fallback
// template baked into the client.
func NewPromptBuilder(templatePath string) *PromptBuilder {
	if templatePath != "" {
		if data, err := os.ReadFile(templatePath); err == nil {
			return &PromptBuilder{template: string(data)}
		}
	}
	return &PromptBuilder{template: fallbackPromptTemplate}
}

// Build substitutes GenerationPromptContext fields into the template.
func (b *PromptBuilder) Build(ctx domain.GenerationPromptContext) string {
	contentType := ctx.ContentType
	if contentType == "" {
		contentType = "TV Show"
	}
	contentGenre := ctx.ContentGenre
	if contentGenre == "" {
		contentGenre = "Comedy"
	}
	summaryBefore := ctx.SummaryBefore
	if summaryBefore == "" {
		summaryBefore = "Scene in progress."
	}
	summaryAfter := ctx.SummaryAfter
	if summaryAfter == "" {
		summaryAfter = "Scene continues."
	}
	interests := strings.Join(ctx.Profile.Interests, ", ")
	if interests == "" {
		interests = "general audience"
	}

	replacer := strings.NewReplacer(
		"{{content_type}}", contentType,
		"{{content_genre}}", contentGenre,
		"{{clip_duration}}", fmt.Sprintf("%.1f", ctx.ClipDurationS),
		"{{summary_before}}", summaryBefore,
		"{{summary_after}}", summaryAfter,
		"{{company}}", orDefault(ctx.Product.Company, "the brand"),
		"{{product_name}}", orDefault(ctx.Product.Product, "the product"),
		"{{product_category}}", orDefault(ctx.Product.Category, "consumer product"),
		"{{user_interests}}", interests,
		"{{user_demographics}}", formatDemographics(ctx.Profile.Demographics),
	)
	return replacer.Replace(b.template)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func formatDemographics(d map[string]string) string {
	if len(d) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(d))
	for k, v := range d {
		parts = append(parts, fmt.Sprintf("%q: %q", k, v))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
