// Package gate decides whether a webhook delivery is admitted for
// processing: signature check, event filtering and delivery dedup, in
// that order.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"paperbot/internal/dedup"
	"paperbot/internal/slack"
)

// Slack request headers carrying the signature material.
const (
	HeaderTimestamp = "X-Slack-Request-Timestamp"
	HeaderSignature = "X-Slack-Signature"
)

var (
	// ErrIgnored marks deliveries that verified fine but carry nothing
	// to process (wrong event type, filtered channel).
	ErrIgnored = errors.New("delivery ignored")

	// ErrDuplicate marks a redelivery of an already-admitted event.
	ErrDuplicate = errors.New("duplicate delivery")
)

// Kind says what an admitted delivery asks for.
type Kind int

const (
	KindChallenge Kind = iota
	KindFileShared
)

// Admission is a delivery that passed all gate checks.
type Admission struct {
	Kind      Kind
	Challenge string // set for KindChallenge
	EventID   string
	Event     slack.InnerEvent
}

// Gate screens incoming webhook deliveries.
type Gate struct {
	verifier *slack.Verifier
	dedup    dedup.Store
	channels map[string]struct{}
	logger   *log.Logger
}

// New creates a Gate. An empty channel list admits events from any
// channel.
func New(verifier *slack.Verifier, dedupStore dedup.Store, channelIDs []string, logger *log.Logger) *Gate {
	var channels map[string]struct{}
	if len(channelIDs) > 0 {
		channels = make(map[string]struct{}, len(channelIDs))
		for _, id := range channelIDs {
			channels[id] = struct{}{}
		}
	}
	return &Gate{verifier: verifier, dedup: dedupStore, channels: channels, logger: logger}
}

// Admit verifies and classifies one delivery. The dedup record is
// written before Admit returns, so the caller can acknowledge the
// webhook immediately and process in the background.
func (g *Gate) Admit(ctx context.Context, header http.Header, body []byte) (Admission, error) {
	if err := g.verifier.Verify(header.Get(HeaderTimestamp), body, header.Get(HeaderSignature)); err != nil {
		return Admission{}, err
	}

	payload, err := slack.ParseEventsPayload(body)
	if err != nil {
		return Admission{}, fmt.Errorf("parse events payload: %w", err)
	}

	switch payload.Type {
	case slack.PayloadTypeURLVerification:
		return Admission{Kind: KindChallenge, Challenge: payload.Challenge}, nil
	case slack.PayloadTypeEventCallback:
	default:
		return Admission{}, ErrIgnored
	}

	ev := payload.Event
	if ev.Type != slack.EventTypeFileShared || ev.FileID == "" {
		return Admission{}, ErrIgnored
	}
	if g.channels != nil {
		if _, ok := g.channels[ev.ChannelID]; !ok {
			return Admission{}, ErrIgnored
		}
	}

	if payload.EventID != "" {
		first, err := g.dedup.Seen(ctx, payload.EventID)
		if err != nil {
			// Fail open: better to risk a duplicate summary than to
			// drop a delivery while the dedup store is down.
			g.logger.Printf("[GATE] dedup check failed for %s: %v", payload.EventID, err)
		} else if !first {
			return Admission{}, ErrDuplicate
		}
	}

	return Admission{Kind: KindFileShared, EventID: payload.EventID, Event: ev}, nil
}
