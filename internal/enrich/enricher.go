package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docuview/docuview/internal/llm"
)

// MinDetailTextLen is the minimum text length for detail extraction and
// cover generation. Shorter text is not worth an AI call.
const MinDetailTextLen = 50

// coverPromptChars caps how much document text seeds the cover prompt.
const coverPromptChars = 300

// Details is the output of detail extraction. Fields stay nil unless the
// model confidently identified them.
type Details struct {
	Author  *string `json:"author"`
	Source  *string `json:"source"`
	Edition *string `json:"edition"`
}

// Enricher runs the optional AI sub-operations on a document: detail
// extraction, cover image generation, and summarization. Detail and cover
// calls are fail-soft and never return an error past the pipeline boundary.
type Enricher struct {
	gateway llm.Gateway
	images  *ImageGenerator
	model   string
}

func NewEnricher(gw llm.Gateway, images *ImageGenerator, model string) *Enricher {
	return &Enricher{gateway: gw, images: images, model: model}
}

const detailsSystemPrompt = `You extract bibliographic details from document text. Focus on the beginning, end, headers, and footers.
Identify:
1. author - the primary individual author's name only (patterns like "By X", "Author: X").
2. source - the specific publication, magazine, journal, or organization name only. For URLs keep just the domain. Never include edition, date, volume, article titles, or generic origins like "File Upload".
3. edition - the specific edition, issue, volume, or publication date only (e.g. "May 2025", "Vol. 3, Issue 2").
Respond with a single JSON object {"author": ..., "source": ..., "edition": ...} using null for any field not clearly identifiable. Be strict: when in doubt, use null.`

// ExtractDetails asks the LLM for author/source/edition. Any provider error
// or malformed response yields all-absent output.
func (e *Enricher) ExtractDetails(ctx context.Context, text string) Details {
	if len(text) < MinDetailTextLen {
		return Details{}
	}

	resp, err := e.gateway.Chat(ctx, llm.ChatRequest{
		Model: e.model,
		Messages: []llm.Message{
			{Role: "system", Content: detailsSystemPrompt},
			{Role: "user", Content: "Document text:\n\n" + text},
		},
		Temperature: 0,
		MaxTokens:   200,
	})
	if err != nil {
		slog.Warn("detail extraction failed", "error", err)
		return Details{}
	}

	details, err := parseDetails(resp.Content)
	if err != nil {
		slog.Warn("detail extraction returned malformed response", "error", err)
		return Details{}
	}
	return details
}

// parseDetails tolerates models that wrap the JSON object in prose or code
// fences by slicing from the first '{' to the last '}'.
func parseDetails(content string) (Details, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return Details{}, fmt.Errorf("no JSON object in response")
	}

	var d Details
	if err := json.Unmarshal([]byte(content[start:end+1]), &d); err != nil {
		return Details{}, fmt.Errorf("decode details: %w", err)
	}

	// Empty strings count as absent.
	if d.Author != nil && strings.TrimSpace(*d.Author) == "" {
		d.Author = nil
	}
	if d.Source != nil && strings.TrimSpace(*d.Source) == "" {
		d.Source = nil
	}
	if d.Edition != nil && strings.TrimSpace(*d.Edition) == "" {
		d.Edition = nil
	}
	return d, nil
}

const coverPromptTemplate = `Create a purely visual, abstract, and symbolic graphical image inspired by the thematic essence of the provided text.
CRITICAL: absolutely no text characters, letters, words, or numbers may appear anywhere in the image. The image must be entirely graphical: colors, shapes, textures, and symbolic representations only.
Style: abstract, symbolic, minimalist.
Material to inspire the image:
"%s"`

// GenerateCover produces a symbolic cover image from the opening of the
// document text. Failure leaves the document without a cover.
func (e *Enricher) GenerateCover(ctx context.Context, text string) (string, error) {
	if e.images == nil {
		return "", fmt.Errorf("image generation not configured")
	}
	if len(text) > coverPromptChars {
		text = text[:coverPromptChars]
	}
	return e.images.GenerateDataURI(ctx, fmt.Sprintf(coverPromptTemplate, text))
}

// Summarize produces a concise summary of the text.
func (e *Enricher) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no text provided for summarization")
	}

	resp, err := e.gateway.Chat(ctx, llm.ChatRequest{
		Model: e.model,
		Messages: []llm.Message{
			{Role: "user", Content: "Please provide a concise summary of the following text. Focus on the main points and key information:\n\n" + text},
		},
		Temperature: 0,
		MaxTokens:   300,
	})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}

	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return "", fmt.Errorf("no summary generated")
	}
	return summary, nil
}
