// Package extract turns a shared PDF into plain text, bounded by page
// and byte limits.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/ledongthuc/pdf"

	"paperbot/internal/slack"
)

// Extraction failure classes. Callers branch on these to decide what
// to report back to the thread.
var (
	ErrDownloadDenied = errors.New("document download denied")
	ErrDownload       = errors.New("document download failed")
	ErrUnreadable     = errors.New("document could not be parsed")
	ErrNoText         = errors.New("no extractable text in document")
)

// Downloader fetches a document by its private URL.
type Downloader interface {
	Download(ctx context.Context, fileURL string, maxBytes int64) ([]byte, error)
}

// Result is the outcome of a successful extraction.
type Result struct {
	Text       string
	Pages      int // pages actually extracted
	TotalPages int
	Truncated  bool
}

// Extractor downloads and parses PDFs.
type Extractor struct {
	dl        Downloader
	pageLimit int
	maxBytes  int64
	logger    *log.Logger

	parse func(data []byte, limit int) ([]string, int, error) // test hook
}

// New creates an Extractor. pageLimit caps how many pages are read;
// documents beyond the cap are truncated, not rejected.
func New(dl Downloader, pageLimit int, maxBytes int64, logger *log.Logger) *Extractor {
	if pageLimit <= 0 {
		pageLimit = 50
	}
	e := &Extractor{dl: dl, pageLimit: pageLimit, maxBytes: maxBytes, logger: logger}
	e.parse = parsePDFPages
	return e
}

// Extract downloads the document and returns its text up to the page
// limit. Transient download failures are retried once; permission
// failures are not.
func (e *Extractor) Extract(ctx context.Context, fileURL string) (Result, error) {
	data, err := e.download(ctx, fileURL)
	if err != nil {
		return Result{}, err
	}

	pages, total, err := e.parse(data, e.pageLimit)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	truncated := total > e.pageLimit
	if truncated {
		e.logger.Printf("document has %d pages, extracting first %d", total, len(pages))
	}

	var texts []string
	for _, pageText := range pages {
		if t := strings.TrimSpace(pageText); t != "" {
			texts = append(texts, t)
		}
	}
	if len(texts) == 0 {
		return Result{}, ErrNoText
	}
	return Result{
		Text:       strings.Join(texts, "\n\n"),
		Pages:      len(pages),
		TotalPages: total,
		Truncated:  truncated,
	}, nil
}

func (e *Extractor) download(ctx context.Context, fileURL string) ([]byte, error) {
	data, err := e.dl.Download(ctx, fileURL, e.maxBytes)
	if err == nil {
		return data, nil
	}
	var dlErr *slack.DownloadError
	if errors.As(err, &dlErr) && dlErr.Permanent() {
		return nil, fmt.Errorf("%w: %v", ErrDownloadDenied, err)
	}
	// One retry for server-side or network failures.
	e.logger.Printf("download failed, retrying once: %v", err)
	data, err = e.dl.Download(ctx, fileURL, e.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	return data, nil
}

// parsePDFPages returns plain text for at most limit pages along with
// the document's total page count. Text past the limit is never
// extracted. The pdf package panics on some malformed inputs, so
// parsing is fenced with a recover.
func parsePDFPages(data []byte, limit int) (pages []string, total int, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, total, err = nil, 0, fmt.Errorf("pdf parse panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, 0, err
	}
	total = reader.NumPage()
	stop := total
	if limit > 0 && stop > limit {
		stop = limit
	}
	for i := 1; i <= stop; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, total, nil
}
