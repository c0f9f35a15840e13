// Package summarize turns extracted document text into a model-written
// summary at a configured detail level.
package summarize

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"paperbot/internal/retry"
)

// Generator produces text from a prompt. Implemented by GeminiClient.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Result is a completed summarization.
type Result struct {
	Summary   string
	Model     string
	Truncated bool // input was cut to the character budget
}

// Summarizer drives the generator with a bounded retry policy.
type Summarizer struct {
	gen           Generator
	maxInputChars int
	policy        retry.Policy
	logger        *log.Logger
}

// New creates a Summarizer. maxInputChars bounds how much document
// text goes into the prompt; longer inputs keep their head.
func New(gen Generator, maxInputChars int, policy retry.Policy, logger *log.Logger) *Summarizer {
	if maxInputChars <= 0 {
		maxInputChars = 900000
	}
	return &Summarizer{gen: gen, maxInputChars: maxInputChars, policy: policy, logger: logger}
}

// Summarize produces a summary of text at the given level. Transient
// provider failures are retried per the policy; anything still failing
// after the last attempt is returned as-is.
func (s *Summarizer) Summarize(ctx context.Context, text string, level DetailLevel) (Result, error) {
	truncated := false
	if len(text) > s.maxInputChars {
		text = truncateRunes(text, s.maxInputChars)
		truncated = true
		s.logger.Printf("input truncated to %d chars before prompting", len(text))
	}

	prompt := buildPrompt(level, text)

	var summary string
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		out, err := s.gen.Generate(ctx, prompt)
		if err != nil {
			return err
		}
		summary = out
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("summarize (%s): %w", level, err)
	}

	summary = strings.TrimSpace(summary)
	if summary == "" {
		return Result{}, fmt.Errorf("summarize (%s): model returned empty output", level)
	}
	return Result{Summary: summary, Model: s.gen.Model(), Truncated: truncated}, nil
}

// truncateRunes cuts s to at most n bytes without splitting a UTF-8
// sequence.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
