package slack

import "strings"

// Slack rejects section blocks over 3000 characters; stay under it.
const maxBlockChars = 2900

// Block is a Block Kit layout block.
type Block struct {
	Type     string       `json:"type"`
	Text     *TextObject  `json:"text,omitempty"`
	Elements []TextObject `json:"elements,omitempty"`
}

// TextObject is a Block Kit text composition object.
type TextObject struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

// FormatSummaryBlocks renders a summary as Block Kit blocks: a header
// with the filename, the summary body split into sections under the
// block size limit, and a provenance footer.
func FormatSummaryBlocks(summary, filename string) []Block {
	title := filename
	if len(title) > 50 {
		title = title[:50] + "..."
	}
	blocks := []Block{
		{Type: "header", Text: &TextObject{Type: "plain_text", Text: "Paper summary: " + title, Emoji: true}},
		{Type: "divider"},
	}
	for _, chunk := range splitBlocks(summary) {
		blocks = append(blocks, Block{
			Type: "section",
			Text: &TextObject{Type: "mrkdwn", Text: chunk},
		})
	}
	blocks = append(blocks,
		Block{Type: "divider"},
		Block{Type: "context", Elements: []TextObject{{
			Type: "mrkdwn",
			Text: "_This summary was generated automatically. Check the original paper before relying on it._",
		}}},
	)
	return blocks
}

// splitBlocks breaks text into chunks on paragraph boundaries so each
// chunk fits in one section block.
func splitBlocks(text string) []string {
	if len(text) <= maxBlockChars {
		return []string{text}
	}
	var chunks []string
	var current strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		if current.Len() > 0 && current.Len()+len(para)+2 > maxBlockChars {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		// A single oversized paragraph is split mid-text.
		for len(para) > maxBlockChars {
			chunks = append(chunks, para[:maxBlockChars])
			para = para[maxBlockChars:]
		}
		if para != "" {
			current.WriteString(para)
			current.WriteString("\n\n")
		}
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	return chunks
}
