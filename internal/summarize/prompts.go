package summarize

import (
	"fmt"
	"strings"
)

// DetailLevel selects which prompt template the summarizer uses.
type DetailLevel string

const (
	DetailShort    DetailLevel = "short"
	DetailNormal   DetailLevel = "normal"
	DetailDetailed DetailLevel = "detailed"
)

// ParseDetailLevel normalizes a configured level, falling back to
// normal for anything unrecognized.
func ParseDetailLevel(s string) DetailLevel {
	switch DetailLevel(strings.ToLower(strings.TrimSpace(s))) {
	case DetailShort:
		return DetailShort
	case DetailDetailed:
		return DetailDetailed
	default:
		return DetailNormal
	}
}

const promptHeader = `You are an assistant that summarizes academic papers and technical documents.
Keep technical terms, proper nouns and abbreviations exactly as they appear in the source.
Respond in Markdown. Do not include any preamble or explanation outside the summary itself.`

const shortTemplate = `%s

Summarize the following document in at most five sentences:
- One sentence on what the document is about.
- What was done and what was found.
- Why it matters.

Document:
%s`

const normalTemplate = `%s

Summarize the following document using these sections:
- *Title / Authors* (if identifiable)
- *Background*: the problem being addressed and why
- *Methods*: the approach taken
- *Results*: the main findings
- *Conclusion*: what the findings mean
- *Key Terms*: up to five important terms with one-line definitions

Document:
%s`

const detailedTemplate = `%s

Write a thorough summary of the following document using these sections:
- *Title / Authors* (if identifiable)
- *Background*: the problem, prior work, and motivation
- *Methods*: the approach, datasets, and experimental setup
- *Results*: quantitative findings, comparisons, and notable figures
- *Discussion*: limitations and open questions raised by the authors
- *Conclusion*: what the findings mean and possible follow-up work
- *Key Terms*: up to ten important terms with one-line definitions

Document:
%s`

// buildPrompt renders the template for the given level around the
// document text.
func buildPrompt(level DetailLevel, text string) string {
	switch level {
	case DetailShort:
		return fmt.Sprintf(shortTemplate, promptHeader, text)
	case DetailDetailed:
		return fmt.Sprintf(detailedTemplate, promptHeader, text)
	default:
		return fmt.Sprintf(normalTemplate, promptHeader, text)
	}
}
