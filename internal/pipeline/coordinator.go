package pipeline

import (
	"context"
	"errors"
	"log"
	"time"

	"paperbot/internal/extract"
	"paperbot/internal/retry"
	"paperbot/internal/slack"
	"paperbot/internal/store"
	"paperbot/internal/summarize"
)

// SummaryCache is the persistent first-write-wins cache.
type SummaryCache interface {
	GetSummary(ctx context.Context, fingerprint, detailLevel string) (store.SummaryRecord, bool, error)
	InsertSummary(ctx context.Context, rec store.SummaryRecord) (bool, error)
}

// Extractor turns a file URL into document text.
type Extractor interface {
	Extract(ctx context.Context, fileURL string) (extract.Result, error)
}

// Summarizer turns document text into a summary.
type Summarizer interface {
	Summarize(ctx context.Context, text string, level summarize.DetailLevel) (summarize.Result, error)
}

// Failure classifies why processing did not produce a summary.
type Failure string

const (
	FailureNone           Failure = ""
	FailureDownloadDenied Failure = "download_denied"
	FailureDownload       Failure = "download_failed"
	FailureUnreadable     Failure = "unreadable"
	FailureNoText         Failure = "no_text"
	FailureRateLimited    Failure = "summarizer_rate_limited"
	FailureFatalProvider  Failure = "summarizer_fatal"
	FailureCanceled       Failure = "canceled"
)

// Outcome is the result of processing one shared file. Failed
// outcomes are never written to the cache, so a later share of the
// same file gets a fresh attempt.
type Outcome struct {
	Summary   string
	Model     string
	Truncated bool
	FromCache bool
	Collapsed bool // attached to another delivery's in-flight work
	Failure   Failure
	Err       error
}

// OK reports whether a summary was produced.
func (o Outcome) OK() bool { return o.Failure == FailureNone }

// Coordinator runs the summarization flow for shared files.
type Coordinator struct {
	cache        SummaryCache
	cacheEnabled bool
	extractor    Extractor
	summarizer   Summarizer
	level        summarize.DetailLevel
	reg          *registry
	logger       *log.Logger
}

// NewCoordinator wires the pipeline stages together. cache may be nil
// only when cacheEnabled is false.
func NewCoordinator(cache SummaryCache, cacheEnabled bool, ex Extractor, sum Summarizer, level summarize.DetailLevel, logger *log.Logger) *Coordinator {
	return &Coordinator{
		cache:        cache,
		cacheEnabled: cacheEnabled,
		extractor:    ex,
		summarizer:   sum,
		level:        level,
		reg:          newRegistry(),
		logger:       logger,
	}
}

// Process produces a summary for the file, serving from cache when
// possible and collapsing onto concurrent work for the same file.
func (c *Coordinator) Process(ctx context.Context, file slack.File) Outcome {
	fp := Fingerprint(file.ID)
	key := fp + ":" + string(c.level)

	if c.cacheEnabled {
		rec, found, err := c.cache.GetSummary(ctx, fp, string(c.level))
		if err != nil {
			c.logger.Printf("[PIPELINE] cache lookup failed for %s: %v", file.ID, err)
		} else if found {
			cacheHitsTotal.Inc()
			processedTotal.WithLabelValues("cache_hit").Inc()
			return Outcome{Summary: rec.Summary, Model: rec.Model, Truncated: rec.Truncated, FromCache: true}
		}
	}

	fl, leader := c.reg.claim(key)
	if !leader {
		collapsedTotal.Inc()
		select {
		case <-fl.done:
			out := fl.outcome
			out.Collapsed = true
			return out
		case <-ctx.Done():
			return Outcome{Failure: FailureCanceled, Err: ctx.Err()}
		}
	}

	out := c.run(ctx, fp, file)
	c.reg.complete(key, out)
	if out.OK() {
		processedTotal.WithLabelValues("summarized").Inc()
	} else {
		processedTotal.WithLabelValues(string(out.Failure)).Inc()
	}
	return out
}

func (c *Coordinator) run(ctx context.Context, fingerprint string, file slack.File) Outcome {
	started := time.Now()
	defer func() { processDuration.Observe(time.Since(started).Seconds()) }()

	doc, err := c.extractor.Extract(ctx, file.URLPrivate)
	if err != nil {
		c.logger.Printf("[PIPELINE] extraction failed for %s: %v", file.ID, err)
		return Outcome{Failure: classifyExtract(err), Err: err}
	}
	c.logger.Printf("[PIPELINE] extracted %d/%d pages from %s", doc.Pages, doc.TotalPages, file.Name)

	sum, err := c.summarizer.Summarize(ctx, doc.Text, c.level)
	if err != nil {
		c.logger.Printf("[PIPELINE] summarization failed for %s: %v", file.ID, err)
		return Outcome{Failure: classifySummarize(err), Err: err}
	}

	out := Outcome{
		Summary:   sum.Summary,
		Model:     sum.Model,
		Truncated: doc.Truncated || sum.Truncated,
	}

	if c.cacheEnabled {
		rec := store.SummaryRecord{
			Fingerprint: fingerprint,
			DetailLevel: string(c.level),
			Summary:     out.Summary,
			Model:       out.Model,
			Truncated:   out.Truncated,
		}
		inserted, err := c.cache.InsertSummary(ctx, rec)
		if err != nil {
			c.logger.Printf("[PIPELINE] cache write failed for %s: %v", file.ID, err)
		} else if !inserted {
			// Another worker won the race; serve the canonical entry.
			if existing, found, err := c.cache.GetSummary(ctx, fingerprint, string(c.level)); err == nil && found {
				return Outcome{Summary: existing.Summary, Model: existing.Model, Truncated: existing.Truncated, FromCache: true}
			}
		}
	}
	return out
}

// classifySummarize separates exhausted rate limits from provider
// errors that were never worth retrying. The retry policy keeps the
// Retryable marker on the last error for exactly this purpose.
func classifySummarize(err error) Failure {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return FailureCanceled
	default:
		var re *retry.Retryable
		if errors.As(err, &re) {
			return FailureRateLimited
		}
		return FailureFatalProvider
	}
}

func classifyExtract(err error) Failure {
	switch {
	case errors.Is(err, extract.ErrDownloadDenied):
		return FailureDownloadDenied
	case errors.Is(err, extract.ErrDownload):
		return FailureDownload
	case errors.Is(err, extract.ErrNoText):
		return FailureNoText
	case errors.Is(err, extract.ErrUnreadable):
		return FailureUnreadable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return FailureCanceled
	default:
		return FailureUnreadable
	}
}
