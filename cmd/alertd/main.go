package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	channeladapter "github.com/couchcryptid/storm-alert-dispatch/internal/adapter/channel"
	httpadapter "github.com/couchcryptid/storm-alert-dispatch/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/storm-alert-dispatch/internal/adapter/kafka"
	"github.com/couchcryptid/storm-alert-dispatch/internal/adapter/sqlite"
	"github.com/couchcryptid/storm-alert-dispatch/internal/adapter/tts"
	"github.com/couchcryptid/storm-alert-dispatch/internal/config"
	"github.com/couchcryptid/storm-alert-dispatch/internal/describe"
	"github.com/couchcryptid/storm-alert-dispatch/internal/dispatch"
	"github.com/couchcryptid/storm-alert-dispatch/internal/domain"
	"github.com/couchcryptid/storm-alert-dispatch/internal/feed"
	"github.com/couchcryptid/storm-alert-dispatch/internal/lifecycle"
	"github.com/couchcryptid/storm-alert-dispatch/internal/observability"
	"github.com/couchcryptid/storm-alert-dispatch/internal/pipeline"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	store, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		logger.Error("failed to open store", "path", cfg.SQLitePath, "error", err)
		os.Exit(1)
	}

	client := feed.NewClient(cfg.NWSBaseURL, cfg.NWSUserAgent, cfg.FetchTimeout, cfg.FetchMaxRetries, logger)
	manager := lifecycle.NewManager(cfg.RetentionPeriod, clock, logger)

	// Notification channels. Webhook is always available; email and push are
	// feature-flagged via SMTP_HOST/SMTP_FROM and PUSH_APP_TOKEN.
	adapters := map[domain.Channel]dispatch.Adapter{
		domain.ChannelWebhook: channeladapter.NewWebhook(cfg.DeliveryTimeout),
	}
	if cfg.SMTPEnabled() {
		adapters[domain.ChannelEmail] = channeladapter.NewEmail(
			cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
		logger.Info("email channel enabled", "host", cfg.SMTPHost, "from", cfg.SMTPFrom)
	} else {
		logger.Info("email channel disabled")
	}
	if cfg.PushEnabled() {
		adapters[domain.ChannelPush] = channeladapter.NewPush(cfg.PushAPIURL, cfg.PushAppToken, cfg.DeliveryTimeout, clock)
		logger.Info("push channel enabled")
	} else {
		logger.Info("push channel disabled")
	}

	limiter := dispatch.NewRateLimiter(clock)
	dispatcher := dispatch.New(store, adapters, limiter,
		cfg.DispatchWorkers, cfg.DispatchMaxRetries, clock, logger, metrics)

	// Optional transition event stream (feature-flagged via KAFKA_ENABLED).
	var events pipeline.EventPublisher
	var publisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		publisher = kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTransitionsTopic, logger)
		events = publisher
		logger.Info("transition event stream enabled", "topic", cfg.KafkaTransitionsTopic)
	} else {
		logger.Info("transition event stream disabled")
	}

	p := pipeline.New(client, manager, store, dispatcher, events,
		cfg.Zones, cfg.PollInterval, cfg.CycleTimeout, clock, logger, metrics)

	// Speech synthesis (feature-flagged via TTS_COMMAND).
	var synth describe.Synthesizer
	if cfg.TTSCommand != "" {
		cmdSynth, err := tts.NewCommand(cfg.TTSCommand, cfg.AudioDir)
		if err != nil {
			logger.Error("failed to set up speech synthesis", "error", err)
			os.Exit(1)
		}
		synth = cmdSynth
		logger.Info("speech synthesis enabled", "audio_dir", cfg.AudioDir, "cache_size", cfg.AudioCacheSize)
	} else {
		logger.Info("speech synthesis disabled")
	}
	describer := describe.NewService(p, synth, cfg.AudioCacheSize, clock, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, describer, store, store, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start cycle loop.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	dispatcher.Drain(shutdownCtx)
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}
	if err := store.Close(); err != nil {
		logger.Error("store close error", "error", err)
	}

	logger.Info("shutdown complete")
}
