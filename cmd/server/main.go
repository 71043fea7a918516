package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizlock/internal/config"
	"github.com/stemsi/quizlock/internal/database"
	"github.com/stemsi/quizlock/internal/event"
	"github.com/stemsi/quizlock/internal/handler"
	"github.com/stemsi/quizlock/internal/logger"
	"github.com/stemsi/quizlock/internal/middleware"
	"github.com/stemsi/quizlock/internal/question"
	"github.com/stemsi/quizlock/internal/repository"
	"github.com/stemsi/quizlock/internal/router"
	"github.com/stemsi/quizlock/internal/service"
	"github.com/stemsi/quizlock/internal/validator"
	"github.com/stemsi/quizlock/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting quizlock")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to Redis (optional) ───────────────────────────────────
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		client, err := database.NewRedisClient(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer client.Close()
		rdb = client
	}

	// ─── Connect to PostgreSQL (optional) ──────────────────────────────
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		p, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer p.Close()
		pool = p
	}

	// ─── Event Publishers ──────────────────────────────────────────────
	var publishers []event.Publisher
	if rdb != nil {
		publishers = append(publishers, event.NewRedisPublisher(rdb))
	}
	if cfg.AMQPURL != "" {
		amqpPub, err := event.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to AMQP broker")
		}
		log.Info().Str("exchange", cfg.AMQPExchange).Msg("AMQP publisher ready")
		publishers = append(publishers, amqpPub)
	}
	publisher := event.NewMulti(log, publishers...)
	defer publisher.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	var acquisitionRepo repository.AcquisitionRepository
	if pool != nil {
		acquisitionRepo = repository.NewAcquisitionRepository(pool)
	}

	// ─── Question Source ───────────────────────────────────────────────
	sourceOpts := []question.Option{}
	if cfg.GeminiAPIKey != "" {
		gen, err := question.NewGeminiGenerator(ctx, question.GeminiConfig{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			BaseURL: cfg.GeminiBaseURL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Gemini client")
		}
		sourceOpts = append(sourceOpts, question.WithGenerator(gen))
		log.Info().Str("model", cfg.GeminiModel).Msg("Remote question generator enabled")
	} else {
		log.Warn().Msg("No API key configured, every round uses the fallback questions")
	}
	source := question.NewService(question.Config{
		APIKey:  cfg.GeminiAPIKey,
		Count:   cfg.QuestionCount,
		Timeout: cfg.GeminiTimeout,
	}, log, sourceOpts...)

	// ─── Initialize Services ──────────────────────────────────────────
	sessionOpts := []service.SessionOption{service.WithPublisher(publisher)}
	if rdb != nil && pool != nil {
		sessionOpts = append(sessionOpts, service.WithAuditSink(event.NewRedisAuditQueue(rdb)))
	}
	sessionService := service.NewSessionService(source, service.SessionConfig{
		TTL:          cfg.SessionTTL,
		MaxSessions:  cfg.MaxSessions,
		AdvanceDelay: cfg.AdvanceDelay,
		SkipDelay:    cfg.SkipDelay,
		RewardURL:    cfg.RewardURL,
	}, log, sessionOpts...)
	operatorService := service.NewOperatorService(cfg)
	if !operatorService.Enabled() {
		log.Warn().Msg("OPERATOR_PASSPHRASE_HASH not set, operator skip is disabled")
	}

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Game:     handler.NewGameHandler(sessionService, log),
		Operator: handler.NewOperatorHandler(operatorService, acquisitionRepo, log),
		WS:       handler.NewWSHandler(sessionService, log, cfg.AllowedOrigins),
		System:   handler.NewSystemHandler(sessionService, rdb, pool, cfg.GeminiAPIKey != "", log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		sessionService.Start(workerCtx)
	}()

	if rdb != nil && acquisitionRepo != nil {
		auditWorker := worker.NewAuditWorker(acquisitionRepo, rdb, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			auditWorker.Start(workerCtx)
		}()
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	startLimiter := middleware.NewRateLimiter(ctx, cfg.StartRate, time.Minute)
	r := router.SetupRouter(operatorService, startLimiter, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests. Start requests may wait on the
	// generator, so allow for its timeout.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.GeminiTimeout+5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop sessions and workers, then wait for queued events to drain.
	workerCancel()
	wg.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
