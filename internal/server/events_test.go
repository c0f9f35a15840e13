package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"paperbot/internal/dedup"
	"paperbot/internal/gate"
	"paperbot/internal/pipeline"
	"paperbot/internal/publish"
	"paperbot/internal/retry"
	"paperbot/internal/slack"
)

const signingSecret = "8f742231b10e8888abcd99yyyzzz85a5"

type fakeLookup struct {
	file slack.File
	err  error
}

func (f *fakeLookup) FileInfo(ctx context.Context, fileID string) (slack.File, error) {
	return f.file, f.err
}

type fakeProcessor struct {
	mu    sync.Mutex
	calls int
	out   pipeline.Outcome
}

func (f *fakeProcessor) Process(ctx context.Context, file slack.File) pipeline.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.out
}

func (f *fakeProcessor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordedPost struct {
	threadTS string
	text     string
	blocks   []slack.Block
}

type fakeMessenger struct {
	mu      sync.Mutex
	posts   []recordedPost
	updated []string
	deleted []string
	reacted []string
}

func (f *fakeMessenger) PostMessage(ctx context.Context, channel, threadTS, text string, blocks []slack.Block) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, recordedPost{threadTS, text, blocks})
	return "1700000000.000200", nil
}

func (f *fakeMessenger) UpdateMessage(ctx context.Context, channel, ts, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, text)
	return nil
}

func (f *fakeMessenger) DeleteMessage(ctx context.Context, channel, ts string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ts)
	return nil
}

func (f *fakeMessenger) AddReaction(ctx context.Context, channel, ts, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reacted = append(f.reacted, name)
	return nil
}

func sharedPDF() slack.File {
	return slack.File{
		ID:         "F1",
		Name:       "attention.pdf",
		Filetype:   "pdf",
		URLPrivate: "https://files.example/F1",
		Shares:     slack.Shares{Public: map[string][]slack.ShareRef{"C1": {{TS: "1700000000.000100"}}}},
	}
}

func newTestHandler(t *testing.T, lookup FileLookup, proc Processor) (*Handler, *fakeMessenger) {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	m := &fakeMessenger{}
	pub := publish.New(m, retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, Multiplier: 1.0}, logger)
	g := gate.New(slack.NewVerifier(signingSecret), dedup.NewMemoryStore(time.Hour), []string{"C1"}, logger)
	return NewHandler(g, lookup, proc, pub, time.Minute, logger), m
}

func deliver(t *testing.T, h *Handler, body []byte, sign bool) *httptest.ResponseRecorder {
	t.Helper()
	e := newEcho([]string{"C1"})
	e.POST("/slack/events", h.HandleEvents)

	req := httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader(string(body)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	req.Header.Set(gate.HeaderTimestamp, ts)
	if sign {
		req.Header.Set(gate.HeaderSignature, slack.Sign(signingSecret, ts, body))
	} else {
		req.Header.Set(gate.HeaderSignature, "v0=0000000000000000000000000000000000000000000000000000000000000000")
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func fileSharedBody(eventID string) []byte {
	return []byte(fmt.Sprintf(`{
		"type": "event_callback",
		"event_id": %q,
		"event": {"type": "file_shared", "file_id": "F1", "channel_id": "C1", "event_ts": "1700000000.000100"}
	}`, eventID))
}

func TestChallengeEchoedBack(t *testing.T) {
	h, _ := newTestHandler(t, &fakeLookup{}, &fakeProcessor{})
	body := []byte(`{"type": "url_verification", "challenge": "ch-abc"}`)

	rec := deliver(t, h, body, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["challenge"] != "ch-abc" {
		t.Fatalf("challenge not echoed: %v", resp)
	}
}

func TestUnsignedDeliveryRejected(t *testing.T) {
	proc := &fakeProcessor{}
	h, _ := newTestHandler(t, &fakeLookup{file: sharedPDF()}, proc)

	rec := deliver(t, h, fileSharedBody("Ev1"), false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	h.Wait()
	if proc.callCount() != 0 {
		t.Fatalf("rejected delivery was processed")
	}
}

func TestAdmittedDeliveryProcessedInBackground(t *testing.T) {
	proc := &fakeProcessor{out: pipeline.Outcome{Summary: "summary text", Model: "m"}}
	h, m := newTestHandler(t, &fakeLookup{file: sharedPDF()}, proc)

	rec := deliver(t, h, fileSharedBody("Ev1"), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	h.Wait()

	if proc.callCount() != 1 {
		t.Fatalf("processor calls = %d", proc.callCount())
	}
	// Status message, then the summary; status removed afterwards.
	if len(m.posts) != 2 {
		t.Fatalf("posts = %d, want status + summary", len(m.posts))
	}
	summaryPost := m.posts[1]
	if summaryPost.threadTS != "1700000000.000100" {
		t.Fatalf("summary not threaded under share: %q", summaryPost.threadTS)
	}
	if len(summaryPost.blocks) == 0 {
		t.Fatalf("summary posted without blocks")
	}
	if len(m.deleted) != 1 {
		t.Fatalf("status message not cleaned up")
	}
	want := []string{"eyes", "white_check_mark"}
	if len(m.reacted) != 2 || m.reacted[0] != want[0] || m.reacted[1] != want[1] {
		t.Fatalf("reactions = %v, want %v", m.reacted, want)
	}
}

func TestDuplicateDeliveryDropped(t *testing.T) {
	proc := &fakeProcessor{out: pipeline.Outcome{Summary: "s"}}
	h, _ := newTestHandler(t, &fakeLookup{file: sharedPDF()}, proc)

	if rec := deliver(t, h, fileSharedBody("Ev-dup"), true); rec.Code != http.StatusOK {
		t.Fatalf("first delivery status = %d", rec.Code)
	}
	if rec := deliver(t, h, fileSharedBody("Ev-dup"), true); rec.Code != http.StatusOK {
		t.Fatalf("duplicate delivery status = %d", rec.Code)
	}
	h.Wait()
	if proc.callCount() != 1 {
		t.Fatalf("duplicate was processed: %d calls", proc.callCount())
	}
}

func TestNonPDFFileSkipped(t *testing.T) {
	proc := &fakeProcessor{}
	file := sharedPDF()
	file.Name = "notes.txt"
	file.Filetype = "text"
	h, m := newTestHandler(t, &fakeLookup{file: file}, proc)

	deliver(t, h, fileSharedBody("Ev1"), true)
	h.Wait()

	if proc.callCount() != 0 {
		t.Fatalf("non-PDF file was processed")
	}
	if len(m.posts) != 0 {
		t.Fatalf("non-PDF file produced replies: %d", len(m.posts))
	}
}

func TestFailureOutcomePostsNotice(t *testing.T) {
	proc := &fakeProcessor{out: pipeline.Outcome{Failure: pipeline.FailureNoText}}
	h, m := newTestHandler(t, &fakeLookup{file: sharedPDF()}, proc)

	deliver(t, h, fileSharedBody("Ev1"), true)
	h.Wait()

	// Only the status message is posted; the notice rewrites it.
	if len(m.posts) != 1 {
		t.Fatalf("posts = %d", len(m.posts))
	}
	if len(m.updated) != 1 || !strings.Contains(m.updated[0], "no extractable text") {
		t.Fatalf("status not rewritten with notice: %v", m.updated)
	}
	if len(m.deleted) != 0 {
		t.Fatalf("status deleted instead of rewritten")
	}
	if m.reacted[len(m.reacted)-1] != "x" {
		t.Fatalf("failure reaction missing: %v", m.reacted)
	}
}

func TestIgnoredEventStillAcknowledged(t *testing.T) {
	proc := &fakeProcessor{}
	h, _ := newTestHandler(t, &fakeLookup{}, proc)
	body := []byte(`{"type": "event_callback", "event_id": "Ev1", "event": {"type": "message", "channel_id": "C1"}}`)

	rec := deliver(t, h, body, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	h.Wait()
	if proc.callCount() != 0 {
		t.Fatalf("ignored event was processed")
	}
}
