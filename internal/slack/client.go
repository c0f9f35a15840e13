package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// APIError is a Slack Web API error response (ok=false).
type APIError struct {
	Code string // e.g. "not_in_channel"
}

func (e *APIError) Error() string { return "slack: " + e.Code }

// Fatal reports whether the error cannot be resolved by retrying.
func (e *APIError) Fatal() bool {
	switch e.Code {
	case "channel_not_found", "not_in_channel", "is_archived", "msg_too_long", "invalid_auth", "account_inactive", "token_revoked":
		return true
	}
	return false
}

// RateLimitedError is returned for HTTP 429 responses.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("slack: rate limited, retry after %s", e.RetryAfter)
}

// DownloadError classifies a failed file download by HTTP status.
type DownloadError struct {
	StatusCode int
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("slack: download failed with status %d", e.StatusCode)
}

// Permanent reports whether the download can never succeed (permission
// or missing file) as opposed to a transient server-side failure.
func (e *DownloadError) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// Client is a minimal Slack Web API client. Each call is a single
// attempt; retry policy belongs to the callers (see internal/publish).
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a Slack Web API client.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://slack.com/api"
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	TS    string `json:"ts,omitempty"`
	File  *File  `json:"file,omitempty"`
}

func (c *Client) call(ctx context.Context, method string, payload interface{}) (apiResponse, error) {
	var out apiResponse
	body, err := json.Marshal(payload)
	if err != nil {
		return out, fmt.Errorf("marshal %s request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewBuffer(body))
	if err != nil {
		return out, fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return out, fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return out, &RateLimitedError{RetryAfter: retryAfter(resp)}
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode %s response: %w", method, err)
	}
	if !out.OK {
		return out, &APIError{Code: out.Error}
	}
	return out, nil
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Second
}

// FileInfo fetches metadata for an uploaded file.
func (c *Client) FileInfo(ctx context.Context, fileID string) (File, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/files.info?file="+url.QueryEscape(fileID), nil)
	if err != nil {
		return File{}, fmt.Errorf("build files.info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return File{}, fmt.Errorf("files.info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return File{}, &RateLimitedError{RetryAfter: retryAfter(resp)}
	}
	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return File{}, fmt.Errorf("decode files.info response: %w", err)
	}
	if !out.OK {
		return File{}, &APIError{Code: out.Error}
	}
	if out.File == nil {
		return File{}, &APIError{Code: "file_not_found"}
	}
	return *out.File, nil
}

// PostMessage posts a message, optionally as a threaded reply when
// threadTS is non-empty. Returns the posted message timestamp.
func (c *Client) PostMessage(ctx context.Context, channel, threadTS, text string, blocks []Block) (string, error) {
	payload := map[string]interface{}{
		"channel":      channel,
		"text":         text,
		"unfurl_links": false,
		"unfurl_media": false,
	}
	if threadTS != "" {
		payload["thread_ts"] = threadTS
	}
	if len(blocks) > 0 {
		payload["blocks"] = blocks
	}
	out, err := c.call(ctx, "chat.postMessage", payload)
	if err != nil {
		return "", err
	}
	return out.TS, nil
}

// UpdateMessage replaces the text of a previously posted message.
func (c *Client) UpdateMessage(ctx context.Context, channel, ts, text string) error {
	_, err := c.call(ctx, "chat.update", map[string]interface{}{
		"channel": channel,
		"ts":      ts,
		"text":    text,
	})
	return err
}

// DeleteMessage removes a previously posted message.
func (c *Client) DeleteMessage(ctx context.Context, channel, ts string) error {
	_, err := c.call(ctx, "chat.delete", map[string]interface{}{
		"channel": channel,
		"ts":      ts,
	})
	return err
}

// AddReaction adds an emoji reaction; reacting twice is not an error.
func (c *Client) AddReaction(ctx context.Context, channel, ts, name string) error {
	_, err := c.call(ctx, "reactions.add", map[string]interface{}{
		"channel":   channel,
		"timestamp": ts,
		"name":      name,
	})
	var apiErr *APIError
	if err != nil && errors.As(err, &apiErr) && apiErr.Code == "already_reacted" {
		return nil
	}
	return err
}

// Download fetches a private file URL with bot authorization, refusing
// bodies larger than maxBytes.
func (c *Client) Download(ctx context.Context, fileURL string, maxBytes int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &DownloadError{StatusCode: resp.StatusCode}
	}
	if maxBytes <= 0 {
		maxBytes = 50 * 1024 * 1024
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read download body: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("download exceeds %d byte limit", maxBytes)
	}
	return data, nil
}
