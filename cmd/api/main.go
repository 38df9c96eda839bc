package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/insurelab/termlife-ai-platform/internal/api/router"
	appconfig "github.com/insurelab/termlife-ai-platform/internal/config"
	"github.com/insurelab/termlife-ai-platform/internal/conversation"
	"github.com/insurelab/termlife-ai-platform/internal/decision"
	"github.com/insurelab/termlife-ai-platform/internal/observability/metrics"
	"github.com/insurelab/termlife-ai-platform/internal/payments"
	"github.com/insurelab/termlife-ai-platform/internal/quote"
	"github.com/insurelab/termlife-ai-platform/internal/session"
	"github.com/insurelab/termlife-ai-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg, err := appconfig.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting termlife-ai-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"session_store", cfg.SessionStore,
	)

	store, err := buildSessionStore(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize session store", "error", err)
		os.Exit(1)
	}

	flowPolicy := session.DefaultFlowPolicy()
	flowPolicy.AutoAdvanceThreshold = cfg.AutoAdvanceThreshold
	machine := session.NewMachine(flowPolicy)

	quoteCfg := quote.DefaultConfig()
	if cfg.QuoteRatesPath != "" {
		quoteCfg, err = quote.LoadConfig(cfg.QuoteRatesPath)
		if err != nil {
			logger.Error("failed to load rate tables", "path", cfg.QuoteRatesPath, "error", err)
			os.Exit(1)
		}
	}
	calculator := quote.NewCalculator(quoteCfg, logger)

	llmClient := decision.NewOpenAIClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, logger,
		decision.WithTimeout(cfg.LLMTimeout),
		decision.WithMaxRetries(cfg.LLMMaxRetries),
	)
	decider := decision.NewDecider(llmClient, logger)

	paymentMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)
	simulator := payments.NewSimulator(cfg.GatewayBaseURL, logger,
		payments.WithSuccessRate(cfg.PaymentSuccessRate),
		payments.WithSettlementDelays(cfg.PaymentProcessWait, cfg.PaymentSettleWait),
		payments.WithWebhook(func(p payments.Payment) {
			paymentMetrics.PaymentEvent(string(p.Status))
			if p.Status == payments.StatusSuccess {
				paymentMetrics.ObserveAmount(p.Amount)
			}
		}),
	)

	convMetrics := metrics.NewConversationMetrics(prometheus.DefaultRegisterer)

	orchestratorOpts := []conversation.OrchestratorOption{
		conversation.WithMetrics(convMetrics),
	}
	if turnLog, closeFn, err := buildTurnLog(cfg, logger); err != nil {
		logger.Error("failed to initialize turn log", "error", err)
		os.Exit(1)
	} else if turnLog != nil {
		orchestratorOpts = append(orchestratorOpts, conversation.WithTurnLog(turnLog))
		defer closeFn()
	}

	service := conversation.NewOrchestrator(store, machine, decider, calculator, simulator, logger, orchestratorOpts...)

	routerCfg := &router.Config{
		Logger:              logger,
		ConversationHandler: conversation.NewHandler(service, logger),
		PaymentsHandler:     payments.NewHandler(simulator, logger),
		MetricsHandler:      promhttp.Handler(),
		AdminAuthSecret:     cfg.AdminJWTSecret,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitPerSecond:  cfg.RateLimitPerSecond,
		RateLimitBurst:      cfg.RateLimitBurst,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router.New(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func buildSessionStore(cfg *appconfig.Config, logger *logging.Logger) (session.Store, error) {
	switch cfg.SessionStore {
	case "file":
		return session.NewFileStore(cfg.SessionsDir, cfg.SessionCap)
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return session.NewRedisStore(client, cfg.SessionTTL), nil
	default:
		logger.Info("using in-memory session store", "cap", cfg.SessionCap)
		return session.NewMemoryStore(cfg.SessionCap), nil
	}
}

// buildTurnLog selects the durable turn log: SQL when a database is
// configured, otherwise the JSONL file, otherwise none.
func buildTurnLog(cfg *appconfig.Config, logger *logging.Logger) (conversation.TurnLog, func(), error) {
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		turnLog := conversation.NewSQLTurnLog(db)
		if err := turnLog.EnsureSchema(context.Background()); err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("turn log backed by database")
		return turnLog, func() { db.Close() }, nil
	}
	if cfg.TurnLogPath != "" {
		fileLog, err := conversation.NewFileTurnLog(cfg.TurnLogPath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("turn log backed by file", "path", cfg.TurnLogPath)
		return fileLog, func() { _ = fileLog.Close() }, nil
	}
	return nil, func() {}, nil
}
