// Package publish posts pipeline outcomes back into the Slack thread
// where the file was shared, with bounded retries on rate limits.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log"

	"paperbot/internal/pipeline"
	"paperbot/internal/retry"
	"paperbot/internal/slack"
)

// Messenger is the subset of the Slack client the publisher needs.
type Messenger interface {
	PostMessage(ctx context.Context, channel, threadTS, text string, blocks []slack.Block) (string, error)
	UpdateMessage(ctx context.Context, channel, ts, text string) error
	DeleteMessage(ctx context.Context, channel, ts string) error
	AddReaction(ctx context.Context, channel, ts, name string) error
}

// Publisher delivers summaries and failure notices as threaded
// replies.
type Publisher struct {
	msgr   Messenger
	policy retry.Policy
	logger *log.Logger
}

// New creates a Publisher sharing the summarizer's retry policy.
func New(msgr Messenger, policy retry.Policy, logger *log.Logger) *Publisher {
	return &Publisher{msgr: msgr, policy: policy, logger: logger}
}

// PublishSummary posts the summary as a threaded reply under the
// message that shared the file.
func (p *Publisher) PublishSummary(ctx context.Context, channel, threadTS, filename string, out pipeline.Outcome) error {
	text := out.Summary
	if out.Truncated {
		text += "\n\n_Note: the document was too long, so only the beginning was summarized._"
	}
	blocks := slack.FormatSummaryBlocks(text, filename)
	return p.post(ctx, channel, threadTS, "Summary of "+filename, blocks)
}

// failureNotices maps a pipeline failure to the message left in the
// thread. Unknown failures get the generic notice.
var failureNotices = map[pipeline.Failure]string{
	pipeline.FailureDownloadDenied: "I couldn't download that file. I may be missing access to it.",
	pipeline.FailureDownload:       "Downloading the file failed. Please try sharing it again.",
	pipeline.FailureUnreadable:     "I couldn't read that PDF. It may be corrupted or image-only.",
	pipeline.FailureNoText:         "That PDF has no extractable text, so there is nothing to summarize.",
	pipeline.FailureRateLimited:    "The summarization service is rate limiting me right now. Please share the file again in a few minutes.",
	pipeline.FailureFatalProvider:  "The summarization service rejected the request, so I couldn't summarize this file.",
}

// Notice returns the thread-facing message for a failure class.
func Notice(failure pipeline.Failure) string {
	if notice, ok := failureNotices[failure]; ok {
		return notice
	}
	return "Something went wrong while processing the file."
}

// PublishFailure reports why no summary was produced. When statusTS
// points at an existing status message the notice replaces it in
// place; otherwise a new threaded reply is posted.
func (p *Publisher) PublishFailure(ctx context.Context, channel, threadTS, statusTS string, failure pipeline.Failure) error {
	notice := Notice(failure)
	if statusTS != "" {
		if err := p.msgr.UpdateMessage(ctx, channel, statusTS, notice); err == nil {
			return nil
		}
		// Fall through to a fresh reply if the rewrite failed.
	}
	return p.post(ctx, channel, threadTS, notice, nil)
}

// PostStatus posts a placeholder message and returns its timestamp so
// it can be updated or removed once processing finishes.
func (p *Publisher) PostStatus(ctx context.Context, channel, threadTS, text string) (string, error) {
	var ts string
	err := p.policy.Do(ctx, func(ctx context.Context) error {
		var err error
		ts, err = p.msgr.PostMessage(ctx, channel, threadTS, text, nil)
		return classify(err)
	})
	return ts, err
}

// ClearStatus removes a previously posted status message. Best effort:
// a stale status is cosmetic, so failures are only logged.
func (p *Publisher) ClearStatus(ctx context.Context, channel, ts string) {
	if ts == "" {
		return
	}
	if err := p.msgr.DeleteMessage(ctx, channel, ts); err != nil {
		p.logger.Printf("[PUBLISH] failed to remove status message: %v", err)
	}
}

// UpdateStatus rewrites the status message text, falling back to a log
// line on failure.
func (p *Publisher) UpdateStatus(ctx context.Context, channel, ts, text string) {
	if ts == "" {
		return
	}
	if err := p.msgr.UpdateMessage(ctx, channel, ts, text); err != nil {
		p.logger.Printf("[PUBLISH] failed to update status message: %v", err)
	}
}

// React adds an emoji reaction to the sharing message. Best effort.
func (p *Publisher) React(ctx context.Context, channel, ts, name string) {
	if ts == "" {
		return
	}
	if err := p.msgr.AddReaction(ctx, channel, ts, name); err != nil {
		p.logger.Printf("[PUBLISH] failed to add reaction %q: %v", name, err)
	}
}

func (p *Publisher) post(ctx context.Context, channel, threadTS, text string, blocks []slack.Block) error {
	err := p.policy.Do(ctx, func(ctx context.Context) error {
		_, err := p.msgr.PostMessage(ctx, channel, threadTS, text, blocks)
		return classify(err)
	})
	if err != nil {
		return fmt.Errorf("post reply: %w", err)
	}
	repliesTotal.Inc()
	return nil
}

// classify wraps rate limits in retry.Retryable, carrying the delay
// the server asked for. Fatal API errors pass through untouched so the
// policy stops immediately.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var rl *slack.RateLimitedError
	if errors.As(err, &rl) {
		return &retry.Retryable{Err: err, RetryAfter: rl.RetryAfter}
	}
	var apiErr *slack.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Fatal() {
			// Rejections like not_in_channel do not resolve on their own.
			return err
		}
		return &retry.Retryable{Err: err}
	}
	// Network-level failures are worth another attempt.
	return &retry.Retryable{Err: err}
}
