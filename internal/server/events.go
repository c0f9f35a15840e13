package server

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"paperbot/internal/gate"
	"paperbot/internal/pipeline"
	"paperbot/internal/publish"
	"paperbot/internal/slack"
)

// Processor produces an outcome for a shared file.
type Processor interface {
	Process(ctx context.Context, file slack.File) pipeline.Outcome
}

// FileLookup resolves a file id to its metadata.
type FileLookup interface {
	FileInfo(ctx context.Context, fileID string) (slack.File, error)
}

// Handler serves the Slack events endpoint. Deliveries are
// acknowledged immediately; the pipeline runs in the background so
// Slack does not redeliver slow work.
type Handler struct {
	gate    *gate.Gate
	files   FileLookup
	proc    Processor
	pub     *publish.Publisher
	timeout time.Duration
	logger  *log.Logger

	wg sync.WaitGroup
}

// NewHandler wires the events endpoint.
func NewHandler(g *gate.Gate, files FileLookup, proc Processor, pub *publish.Publisher, timeout time.Duration, logger *log.Logger) *Handler {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Handler{gate: g, files: files, proc: proc, pub: pub, timeout: timeout, logger: logger}
}

// HandleEvents receives one Events API delivery.
func (h *Handler) HandleEvents(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}

	adm, err := h.gate.Admit(c.Request().Context(), c.Request().Header, body)
	switch {
	case errors.Is(err, slack.ErrInvalidSignature):
		eventsTotal.WithLabelValues("rejected").Inc()
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
	case errors.Is(err, gate.ErrIgnored):
		eventsTotal.WithLabelValues("ignored").Inc()
		return c.NoContent(http.StatusOK)
	case errors.Is(err, gate.ErrDuplicate):
		eventsTotal.WithLabelValues("duplicate").Inc()
		h.logger.Printf("dropped duplicate delivery")
		return c.NoContent(http.StatusOK)
	case err != nil:
		eventsTotal.WithLabelValues("malformed").Inc()
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if adm.Kind == gate.KindChallenge {
		eventsTotal.WithLabelValues("challenge").Inc()
		return c.JSON(http.StatusOK, map[string]string{"challenge": adm.Challenge})
	}

	eventsTotal.WithLabelValues("admitted").Inc()
	h.wg.Add(1)
	go h.process(adm)
	return c.NoContent(http.StatusOK)
}

// Wait blocks until all background work spawned by the handler has
// finished. Used on shutdown and in tests.
func (h *Handler) Wait() { h.wg.Wait() }

func (h *Handler) process(adm gate.Admission) {
	defer h.wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	job := uuid.NewString()[:8]
	ev := adm.Event
	file, err := h.files.FileInfo(ctx, ev.FileID)
	if err != nil {
		h.logger.Printf("[%s] files.info failed for %s: %v", job, ev.FileID, err)
		return
	}
	if !file.IsPDF() {
		h.logger.Printf("[%s] skipping non-PDF file %s (%s)", job, file.ID, file.Name)
		return
	}

	threadTS := file.ThreadTS(ev.ChannelID)
	if threadTS == "" {
		threadTS = ev.EventTS
	}

	h.pub.React(ctx, ev.ChannelID, threadTS, "eyes")
	statusTS, err := h.pub.PostStatus(ctx, ev.ChannelID, threadTS, "Reading the paper, back with a summary shortly…")
	if err != nil {
		h.logger.Printf("[%s] status message failed for %s: %v", job, file.ID, err)
	}

	out := h.proc.Process(ctx, file)

	switch {
	case out.OK():
		h.pub.ClearStatus(ctx, ev.ChannelID, statusTS)
		if err := h.pub.PublishSummary(ctx, ev.ChannelID, threadTS, file.Name, out); err != nil {
			h.logger.Printf("[%s] publishing summary for %s failed: %v", job, file.ID, err)
			return
		}
		h.pub.React(ctx, ev.ChannelID, threadTS, "white_check_mark")
		h.logger.Printf("[%s] summarized %s (cache=%v collapsed=%v)", job, file.Name, out.FromCache, out.Collapsed)
	case out.Failure == pipeline.FailureCanceled:
		h.pub.ClearStatus(ctx, ev.ChannelID, statusTS)
		h.logger.Printf("[%s] processing %s canceled: %v", job, file.ID, out.Err)
	default:
		if err := h.pub.PublishFailure(ctx, ev.ChannelID, threadTS, statusTS, out.Failure); err != nil {
			h.logger.Printf("[%s] publishing failure notice for %s failed: %v", job, file.ID, err)
		}
		h.pub.React(ctx, ev.ChannelID, threadTS, "x")
		h.logger.Printf("[%s] processing %s failed (%s): %v", job, file.ID, out.Failure, out.Err)
	}
}
