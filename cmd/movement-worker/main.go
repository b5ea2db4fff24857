package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/funnelworks/movement-engine/internal/adapter"
	"github.com/funnelworks/movement-engine/internal/bridge"
	"github.com/funnelworks/movement-engine/internal/config"
	"github.com/funnelworks/movement-engine/internal/logger"
	"github.com/funnelworks/movement-engine/internal/notify"
	"github.com/funnelworks/movement-engine/internal/orchestrator"
	"github.com/funnelworks/movement-engine/internal/providers/jetstream"
	"github.com/funnelworks/movement-engine/internal/rules"
	"github.com/funnelworks/movement-engine/internal/scoring"
	"github.com/funnelworks/movement-engine/internal/store"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadMovementWorkerConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "movement-worker",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Movement Worker")

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err), zap.String("dsn", cfg.Database.DSN()))
	}

	// Configure connection pool
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database",
		zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.Database.MaxIdleConns),
	)

	// Initialize store
	dataStore := store.NewPGStore(db)

	// Initialize adapters
	clock := adapter.NewClock()
	jsonAdapter := adapter.NewJSON()

	// Initialize rule evaluator and scoring engine
	evaluator := rules.NewEvaluator(cfg.Rules)
	scorer := scoring.NewEngine(dataStore, clock)

	// Connect transition publisher to NATS JetStream
	publisher, err := jetstream.NewPublisher(jetstream.Config{
		URL:            cfg.NATS.URL,
		StreamName:     cfg.NATS.StreamName,
		MaxReconnects:  cfg.NATS.MaxReconnects,
		ReconnectWait:  cfg.NATS.ReconnectWait,
		ConnectionName: cfg.NATS.ConnectionName + "-pub",
	}, adapter.NewNatsJetStream(), jsonAdapter)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to NATS", zap.Error(err), zap.String("url", cfg.NATS.URL))
	}
	defer publisher.Close()

	// Assemble notification sinks
	sinks := []notify.Sink{notify.NewLogSink()}
	if cfg.Notify.Webhook.URL != "" {
		webhookSink := notify.NewWebhookSink(notify.WebhookConfig{
			URL:    cfg.Notify.Webhook.URL,
			Secret: cfg.Notify.Webhook.Secret,
		}, adapter.NewHTTPClient(10*time.Second), clock)
		sinks = append(sinks, webhookSink)
		logger.InfoCtx(ctx, "Webhook notifications enabled", zap.String("url", cfg.Notify.Webhook.URL))
	}
	if cfg.Notify.NATSEnabled {
		nc, js, err := adapter.NewNatsJetStream().Connect(cfg.NATS.URL,
			nats.Name(cfg.NATS.ConnectionName+"-notify"),
			nats.MaxReconnects(cfg.NATS.MaxReconnects),
			nats.ReconnectWait(cfg.NATS.ReconnectWait),
		)
		if err != nil {
			logger.FatalCtx(ctx, "Failed to connect notification sink to NATS", zap.Error(err))
		}
		defer nc.Close()
		sinks = append(sinks, notify.NewNATSSink(js, jsonAdapter))
		logger.InfoCtx(ctx, "NATS notifications enabled")
	}
	notifier := notify.NewNotifier(sinks...)

	// Create the orchestrator
	orch := orchestrator.New(orchestrator.Config{
		Shards:             cfg.Orchestrator.Shards,
		AccumulationWindow: cfg.Orchestrator.AccumulationWindow,
		Cooldown:           cfg.Orchestrator.Cooldown,
		PromotionLock:      cfg.Orchestrator.PromotionLock,
		DemotionLock:       cfg.Orchestrator.DemotionLock,
		RequeueDelay:       cfg.Orchestrator.RequeueDelay,
		MaxRequeues:        cfg.Orchestrator.MaxRequeues,
		PersistMaxElapsed:  cfg.Orchestrator.PersistMaxElapsed,
	}, evaluator, dataStore, scorer, clock, notifier, publisher)

	if err := orch.Start(ctx); err != nil {
		logger.FatalCtx(ctx, "Failed to start orchestrator", zap.Error(err))
	}
	defer orch.Stop()
	logger.InfoCtx(ctx, "Orchestrator started",
		zap.Int("shards", cfg.Orchestrator.Shards),
		zap.Duration("accumulation_window", cfg.Orchestrator.AccumulationWindow),
	)

	// Create the broker bridge feeding the orchestrator
	eventBridge, err := bridge.NewBridge(
		bridge.Config{
			URL:            cfg.NATS.URL,
			StreamName:     cfg.NATS.StreamName,
			ConsumerName:   cfg.NATS.ConsumerName,
			MaxReconnects:  cfg.NATS.MaxReconnects,
			ReconnectWait:  cfg.NATS.ReconnectWait,
			ConnectionName: cfg.NATS.ConnectionName,
			AckWaitTimeout: cfg.NATS.AckWait,
			MaxDeliver:     cfg.NATS.MaxDeliver,
		},
		adapter.NewNatsJetStream(),
		orch,
		jsonAdapter,
	)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create event bridge", zap.Error(err))
	}
	defer eventBridge.Close()
	logger.InfoCtx(ctx, "Event bridge created",
		zap.String("stream", cfg.NATS.StreamName),
		zap.String("consumer", cfg.NATS.ConsumerName),
	)

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel for bridge errors
	errCh := make(chan error, 1)

	// Start the bridge
	go func() {
		if err := eventBridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "bridge"))
		cancel()
	}

	// Give some time for graceful shutdown
	time.Sleep(time.Second)

	logger.Info("Movement Worker stopped")
}
