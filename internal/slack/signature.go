package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrInvalidSignature is the only error surfaced for any verification
// failure so callers cannot distinguish why a request was rejected.
var ErrInvalidSignature = errors.New("invalid request signature")

const signatureVersion = "v0"

// Verifier checks Slack request signatures.
// https://api.slack.com/authentication/verifying-requests-from-slack
type Verifier struct {
	Secret  string
	MaxSkew time.Duration

	now func() time.Time // test hook
}

// NewVerifier returns a Verifier with the standard 5 minute replay window.
func NewVerifier(secret string) *Verifier {
	return &Verifier{Secret: secret, MaxSkew: 5 * time.Minute}
}

// Sign computes the expected signature header value for a request.
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s:%s:%s", signatureVersion, timestamp, body)
	return signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks the timestamp window and the HMAC over the raw body.
func (v *Verifier) Verify(timestamp string, body []byte, signature string) error {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	now := time.Now()
	if v.now != nil {
		now = v.now()
	}
	skew := now.Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	maxSkew := v.MaxSkew
	if maxSkew == 0 {
		maxSkew = 5 * time.Minute
	}
	if skew > maxSkew {
		return ErrInvalidSignature
	}
	expected := Sign(v.Secret, timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}
