// Package server exposes the webhook endpoint and wires the pipeline
// together.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	appconfig "paperbot/config"
	"paperbot/internal/dedup"
	"paperbot/internal/extract"
	"paperbot/internal/gate"
	"paperbot/internal/pipeline"
	"paperbot/internal/publish"
	"paperbot/internal/retry"
	"paperbot/internal/slack"
	"paperbot/internal/store"
	"paperbot/internal/summarize"
)

// Run loads configuration, applies migrations, builds the pipeline and
// serves until the listener fails.
func Run(cfgPath string) error {
	cfg := appconfig.LoadConfig(cfgPath)

	if err := Migrate("file://migrations", cfg.Storage.Postgres.DSN(), "up", 0); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	st, err := store.NewWithDSN(context.Background(), cfg.Storage.Postgres.DSN())
	if err != nil {
		return fmt.Errorf("open summary store: %w", err)
	}
	defer st.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Storage.Redis.Host + ":" + cfg.Storage.Redis.Port,
		Password: cfg.Storage.Redis.Password,
		DB:       cfg.Storage.Redis.DB,
	})
	defer rdb.Close()

	policy := retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		Multiplier:  cfg.Retry.Multiplier,
	}

	slackClient := slack.NewClient(cfg.Slack.APIBaseURL, cfg.Slack.BotToken, cfg.Slack.Timeout)

	extractLogger := log.New(log.Writer(), "[EXTRACT] ", log.LstdFlags)
	extractor := extract.New(slackClient, cfg.Summary.MaxPages, cfg.Summary.MaxFileBytes, extractLogger)

	gemini := summarize.NewGeminiClient(
		cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.BaseURL,
		cfg.Gemini.Temperature, cfg.Gemini.MaxTokens, cfg.Gemini.Timeout,
	)
	sumLogger := log.New(log.Writer(), "[SUMMARIZE] ", log.LstdFlags)
	summarizer := summarize.New(gemini, cfg.Summary.MaxInputChars, policy, sumLogger)

	pipeLogger := log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags)
	coordinator := pipeline.NewCoordinator(
		st, cfg.Summary.CacheEnabled, extractor, summarizer,
		summarize.ParseDetailLevel(cfg.Summary.DetailLevel), pipeLogger,
	)

	pubLogger := log.New(log.Writer(), "[PUBLISH] ", log.LstdFlags)
	publisher := publish.New(slackClient, policy, pubLogger)

	gateLogger := log.New(log.Writer(), "[GATE] ", log.LstdFlags)
	admitGate := gate.New(
		slack.NewVerifier(cfg.Slack.SigningSecret),
		dedup.NewRedisStore(rdb, cfg.Storage.Redis.DedupWindow),
		cfg.Slack.ChannelIDs,
		gateLogger,
	)

	handler := NewHandler(admitGate, slackClient, coordinator, publisher, cfg.General.ProcessTimeout,
		log.New(log.Writer(), "[EVENTS] ", log.LstdFlags))

	e := newEcho(cfg.Slack.ChannelIDs)
	e.POST("/slack/events", handler.HandleEvents)

	return e.Start(cfg.General.Listen)
}

// newEcho builds the echo instance with recovery, error logging and
// the operational endpoints.
func newEcho(channels []string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(200, map[string]interface{}{"status": "ok", "channels": channels})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	return e
}
