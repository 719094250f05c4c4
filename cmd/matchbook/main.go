package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/efreitasn/matchbook/internal/config"
	"github.com/efreitasn/matchbook/internal/engine"
	"github.com/efreitasn/matchbook/internal/handler"
	"github.com/efreitasn/matchbook/internal/metrics"
	"github.com/efreitasn/matchbook/internal/relay"
	"github.com/efreitasn/matchbook/internal/service"
	"github.com/efreitasn/matchbook/internal/store"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	m := metrics.New()

	// Instantiate stores.
	tradeStore := store.NewTradeStore(cfg.TradeHistory)
	subscriptionStore := store.NewSubscriptionStore()

	// Event sinks. Kafka and NATS are optional.
	enc := relay.Encoder{Scale: cfg.PriceScale}
	feed := relay.NewFeed()
	webhooks := relay.NewWebhookSink(subscriptionStore, cfg.WebhookTimeout, enc, logger, m)
	sinks := []relay.Sink{webhooks, relay.NewHubSink(feed, enc)}

	var kafkaSink *relay.KafkaSink
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink = relay.NewKafkaSink(relay.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic), enc)
		sinks = append(sinks, kafkaSink)
		logger.Info("kafka sink enabled",
			slog.String("brokers", strings.Join(cfg.KafkaBrokers, ",")),
			slog.String("topic", cfg.KafkaTopic),
		)
	}

	if cfg.NATSURL != "" {
		nc, err := relay.ConnectNATS(cfg.NATSURL)
		if err != nil {
			logger.Error("failed to connect to nats", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer func() {
			if err := nc.Drain(); err != nil {
				logger.Error("nats drain error", slog.String("error", err.Error()))
			}
		}()
		sinks = append(sinks, relay.NewNATSSink(nc, cfg.NATSSubjectPrefix, enc))
		logger.Info("nats sink enabled", slog.String("subject_prefix", cfg.NATSSubjectPrefix))
	}

	events := relay.New(logger, m, cfg.RelayBuffer, cfg.WebhookTimeout, sinks...)

	// Engine. Trades and metrics are recorded on the sequencer goroutine so
	// reads after a command see its trades; everything else goes through
	// the relay.
	markets := engine.NewManager(cfg.QueueSize, logger, m, relay.Chain(
		relay.NewTradeRecorder(tradeStore).Record,
		m.Record,
		events.Handle,
	))

	// Services.
	orderSvc := service.NewOrderService(markets, cfg.PriceScale)
	marketSvc := service.NewMarketService(markets, tradeStore, cfg.VWAPWindow, cfg.MaxDepth)
	subscriptionSvc := service.NewSubscriptionService(subscriptionStore)

	// Router.
	router := handler.NewRouter(orderSvc, marketSvc, subscriptionSvc, feed, cfg.WSBuffer, m.Handler(), cfg.PriceScale, logger)

	// Configure HTTP server.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start HTTP server in a goroutine.
	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	// Graceful shutdown: stop HTTP server, then stop the markets so no new
	// events are produced, then drain the relay and its sinks.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	feed.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	markets.Close()
	events.Close()
	webhooks.Wait()
	if kafkaSink != nil {
		if err := kafkaSink.Close(); err != nil {
			logger.Error("kafka writer close error", slog.String("error", err.Error()))
		}
	}

	logger.Info("server stopped")
}
