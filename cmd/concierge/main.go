// cmd/concierge/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"property-concierge/internal/common/config"
	"property-concierge/internal/common/database"
	"property-concierge/internal/common/logger"
	"property-concierge/internal/common/observability"
	"property-concierge/internal/intent"
	"property-concierge/internal/llm"
	"property-concierge/internal/responder"
	"property-concierge/internal/server"
	"property-concierge/internal/session"
	"property-concierge/internal/store"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting property concierge...",
		zap.String("environment", cfg.App.Environment),
		zap.String("addr", cfg.Server.Addr()),
	)

	obs := observability.New("property-concierge").
		WithTracing("property-concierge", os.Getenv("JAEGER_ENDPOINT"))
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return pg.Ping(pingCtx)
	}, 10, 2*time.Second, zapLog, "PostgreSQL initialization")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis (optional; the property cache degrades without it) ---
	var redisClient *database.RedisClient
	if cfg.Database.Redis.Address != "" {
		redisClient, _ = database.NewRedis(cfg.Database.Redis)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = redisClient.Ping(pingCtx)
		cancel()
		if err != nil {
			zapLog.Warn("redis unavailable, property cache disabled", zap.Error(err))
			redisClient.Close()
			redisClient = nil
		} else {
			defer redisClient.Close()
			zapLog.Info("Redis connected successfully")
		}
	} else {
		zapLog.Warn("redis not configured, property cache disabled")
	}

	// --- Wire components ---
	llmClient := llm.NewClient(&llm.Config{
		BaseURL:    cfg.APIs.Groq.BaseURL,
		APIKey:     cfg.APIs.Groq.APIKey,
		Model:      cfg.APIs.Groq.Model,
		Timeout:    config.GetDuration(cfg.APIs.Groq.Timeout),
		MaxRetries: cfg.APIs.Groq.MaxRetries,
	}, &llmLoggerAdapter{log})

	if !llmClient.Configured() {
		zapLog.Warn("GROQ_API_KEY not set; classification degrades to general and conversational replies fail")
	}

	propertyStore := store.NewPropertyStore(pg.GetDB(), &storeLoggerAdapter{log})
	conversationStore := store.NewConversationStore(pg.GetDB(), &storeLoggerAdapter{log})
	messageStore := store.NewMessageStore(pg.GetDB(), &storeLoggerAdapter{log})

	var rawRedis = redisRawClient(redisClient)
	propertyCache := store.NewPropertyCache(
		propertyStore,
		rawRedis,
		time.Duration(cfg.Chat.PropertyCacheTTL)*time.Second,
		cfg.Chat.PropertyListLimit,
		&storeLoggerAdapter{log},
	)

	sessions := session.NewManager(conversationStore, propertyStore, messageStore, &sessionLoggerAdapter{log})
	router := intent.NewRouter(llmClient, &intentLoggerAdapter{log})
	resp := responder.New(llmClient, &responderLoggerAdapter{log})

	srv := server.New(cfg, router, resp, sessions, propertyCache, llmClient, obs, log)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      srv.Handler(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	zapLog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(ctx, config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("shutdown incomplete", zap.Error(err))
	}
	zapLog.Info("Shutdown complete")
}
