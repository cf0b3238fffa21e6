package ai

import (
	"context"
	"strings"
)

const (
	tagSystemPrompt = "You are a technical documentation tagger. Return only comma-separated single-word tags."
	tagInputLimit   = 1000
	tagMaxTokens    = 30
	tagTemperature  = 0.3

	minTags = 3
	maxTags = 5
)

// padTags top up heuristic results so every page carries at least minTags.
var padTags = []string{"reference", "technical", "documentation"}

// tagTrigger maps a content condition to the tag it implies. Checked in order.
type tagTrigger struct {
	tag   string
	match func(lower string) bool
}

var tagTriggers = []tagTrigger{
	{"diagram", func(s string) bool { return strings.Contains(s, "diagram") || strings.Contains(s, "figure") }},
	{"table", func(s string) bool { return strings.Contains(s, "table") || strings.Contains(s, "|") }},
	{"installation", func(s string) bool { return strings.Contains(s, "install") }},
	{"warnings", func(s string) bool { return strings.Contains(s, "warning") || strings.Contains(s, "caution") }},
	{"specifications", func(s string) bool { return strings.Contains(s, "specification") || strings.Contains(s, "spec") }},
	{"troubleshooting", func(s string) bool { return strings.Contains(s, "troubleshoot") || strings.Contains(s, "error") }},
	{"parts-list", func(s string) bool {
		return strings.Contains(s, "part") && (strings.Contains(s, "number") || strings.Contains(s, "#"))
	}},
}

// Tagger assigns 3-5 lowercase single-word tags to a manual page. Like the
// Summarizer it never fails: service errors and unusable responses fall back
// to the keyword heuristics.
type Tagger struct {
	client *Client
}

// NewTagger wraps an optional client. A nil client means heuristics-only.
func NewTagger(client *Client) *Tagger {
	return &Tagger{client: client}
}

// Tag returns between 3 and 5 tags for text.
func (t *Tagger) Tag(ctx context.Context, text string) []string {
	if t.client != nil {
		excerpt := truncateExcerpt(text, tagInputLimit)

		out, err := t.client.Complete(ctx, tagSystemPrompt,
			"Generate 4-5 single-word tags for this technical content, covering content type "+
				"(diagram, table, text), equipment or components mentioned, actions "+
				"(installation, maintenance, troubleshooting), and safety aspects. "+
				"Return only the tags, comma-separated:\n\n"+excerpt,
			tagMaxTokens, tagTemperature)
		if err == nil {
			if tags := parseTags(out); len(tags) >= minTags {
				return tags
			}
		}
	}
	return heuristicTags(text)
}

// parseTags normalizes a comma-separated service response. Each piece is
// trimmed, lowercased and reduced to its first whitespace token; at most
// maxTags survive. A short result signals an unusable response and the caller
// falls back to heuristics.
func parseTags(raw string) []string {
	var tags []string
	for _, part := range strings.Split(raw, ",") {
		fields := strings.Fields(strings.ToLower(strings.TrimSpace(part)))
		if len(fields) == 0 {
			continue
		}
		tags = append(tags, fields[0])
		if len(tags) == maxTags {
			break
		}
	}
	return tags
}

// heuristicTags derives tags from content keywords. A result below minTags
// gets all of padTags appended before the maxTags cap, so a two-trigger page
// ends up with five tags, not three.
func heuristicTags(text string) []string {
	lower := strings.ToLower(text)

	var tags []string
	for _, trigger := range tagTriggers {
		if trigger.match(lower) {
			tags = append(tags, trigger.tag)
		}
	}

	if len(tags) < minTags {
		tags = append(tags, padTags...)
	}
	if len(tags) > maxTags {
		tags = tags[:maxTags]
	}
	return tags
}
