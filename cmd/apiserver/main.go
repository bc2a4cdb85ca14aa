package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"devotion-go/internal/config"
	"devotion-go/internal/handlers/apiserver"
	appKafka "devotion-go/internal/kafka"
	"devotion-go/internal/logger"
	"devotion-go/internal/realtime"
	"devotion-go/internal/services"
	"devotion-go/internal/sideeffect"
	"devotion-go/internal/storage"
	ws "devotion-go/internal/websocket"
)

func main() {
	// 1. Configuration and logging
	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Env, cfg.LogLevel)
	logger.Info().Str("app", cfg.AppName).Str("version", cfg.AppVersion).Msg("configuration loaded")

	// 2. Database
	db, err := storage.InitDB(cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database")
	}
	if err := storage.AutoMigrateTables(db); err != nil {
		logger.Warn().Err(err).Msg("database migration may have failed")
	}

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()
	var background sync.WaitGroup

	// 3. Kafka producer, shared by the change broker and side effects when enabled
	var producer appKafka.MessageProducer
	if cfg.Realtime.Driver == "kafka" || cfg.Functions.Driver == "kafka" {
		producer, err = appKafka.NewConfluentKafkaProducer(cfg.Kafka)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create kafka producer")
		}
		defer producer.Close()
	}

	// 4. Change broker
	var broker storage.Broker
	switch cfg.Realtime.Driver {
	case "memory", "":
		mem := realtime.NewMemoryBroker(cfg.Realtime.BufferSize)
		background.Add(1)
		go func() {
			defer background.Done()
			mem.Run(rootCtx)
		}()
		broker = mem
	case "redis":
		client, err := realtime.NewRedisClient(rootCtx, cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer client.Close()
		broker = realtime.NewRedisBroker(client, cfg.Realtime.ChannelPrefix)
	case "kafka":
		// Live changes only; a restarted instance does not replay history.
		consumer, err := appKafka.NewConfluentKafkaConsumer(cfg.Kafka, appKafka.WithOffsetReset("latest"))
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create kafka consumer")
		}
		defer consumer.Close()
		kb := realtime.NewKafkaBroker(producer, consumer, cfg.Kafka.ChangesTopic, cfg.Kafka.ConsumerGroup, cfg.Realtime.BufferSize)
		background.Add(1)
		go func() {
			defer background.Done()
			if err := kb.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("kafka change consumer stopped")
			}
		}()
		broker = kb
	default:
		logger.Fatal().Str("driver", cfg.Realtime.Driver).Msg("unsupported realtime driver")
	}
	logger.Info().Str("driver", cfg.Realtime.Driver).Msg("change broker ready")

	gateway := storage.NewGormGateway(db, broker)

	// 5. Side effects
	httpInvoker := sideeffect.NewHTTPInvoker(cfg.Functions.BaseURL, cfg.Functions.APIKey, cfg.Functions.Timeout)
	var invoker sideeffect.Invoker = httpInvoker
	switch cfg.Functions.Driver {
	case "http", "":
	case "kafka":
		// Completions need a reply and stay on HTTP.
		invoker = sideeffect.Router{
			FireAndForget: sideeffect.NewKafkaInvoker(producer, cfg.Kafka.SideEffectsTopic),
			RequestReply:  httpInvoker,
		}
	default:
		logger.Fatal().Str("driver", cfg.Functions.Driver).Msg("unsupported functions driver")
	}

	// 6. Push hub and sessions
	hub := ws.NewHub()
	background.Add(1)
	go func() {
		defer background.Done()
		hub.Run(rootCtx)
	}()

	sessions := services.NewSessionManager(gateway, invoker, services.SessionOptions{
		InviteTTL:   cfg.Community.InviteTTL,
		IdleTimeout: cfg.Session.IdleTimeout,
	}, hub)
	defer sessions.Close()
	background.Add(1)
	go func() {
		defer background.Done()
		sessions.Run(rootCtx, cfg.Session.SweepInterval)
	}()

	assistant := services.NewAssistant(invoker)

	// 7. HTTP server with graceful shutdown
	router := apiserver.NewRouter(cfg, sessions, assistant, hub)
	serverAddr := fmt.Sprintf("%s:%s", cfg.APIServer.Host, cfg.APIServer.Port)
	srv := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", serverAddr).Msg("API server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("API server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutdown signal received, stopping API server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Error().Err(err).Msg("API server forced to shut down")
	}

	sessions.Close()
	cancelRoot()
	background.Wait()
	logger.Info().Msg("API server stopped")
}
