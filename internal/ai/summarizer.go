package ai

import (
	"context"
	"strings"
	"unicode/utf8"
)

const (
	summarySystemPrompt = "You are a technical documentation expert. Provide concise 2-3 sentence summaries."
	summaryInputLimit   = 2000
	summaryMaxTokens    = 100
	summaryTemperature  = 0.3

	// fallback preview lengths, in words
	previewWordsNoClient = 50
	previewWordsOnError  = 30
)

// Summarizer produces a short synopsis of a manual page. It never fails:
// without a client, or when the service errors, it returns a preview-style
// fallback built from the page text itself.
type Summarizer struct {
	client *Client
}

// NewSummarizer wraps an optional client. A nil client means fallback-only.
func NewSummarizer(client *Client) *Summarizer {
	return &Summarizer{client: client}
}

// Summarize returns a 2-3 sentence summary of text.
func (s *Summarizer) Summarize(ctx context.Context, text string) string {
	if s.client == nil {
		return previewSummary(text, previewWordsNoClient)
	}

	excerpt := truncateExcerpt(text, summaryInputLimit)

	out, err := s.client.Complete(ctx, summarySystemPrompt,
		"Summarize this technical documentation page in 2-3 sentences:\n\n"+excerpt,
		summaryMaxTokens, summaryTemperature)
	if err != nil || strings.TrimSpace(out) == "" {
		return previewSummary(text, previewWordsOnError)
	}
	return strings.TrimSpace(out)
}

// previewSummary builds the degraded summary from the first words of the page.
func previewSummary(text string, words int) string {
	fields := strings.Fields(text)
	if len(fields) > words {
		fields = fields[:words]
	}
	return "Page contains technical content. Preview: " + strings.Join(fields, " ") + "..."
}

// truncateExcerpt bounds service input at limit bytes, backing off to the
// previous rune boundary so a multi-byte character is never split.
func truncateExcerpt(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
