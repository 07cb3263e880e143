// cmd/concierge/loggers.go
package main

import (
	"github.com/redis/go-redis/v9"

	"property-concierge/internal/common/database"
	"property-concierge/internal/common/logger"
	"property-concierge/internal/intent"
	"property-concierge/internal/llm"
	"property-concierge/internal/responder"
	"property-concierge/internal/session"
	"property-concierge/internal/store"
)

// Logger adapters for packages that declare their own Logger interfaces.
type llmLoggerAdapter struct {
	logger.Logger
}

func (a *llmLoggerAdapter) With(fields map[string]interface{}) llm.Logger {
	return &llmLoggerAdapter{a.Logger.With(fields)}
}

type intentLoggerAdapter struct {
	logger.Logger
}

func (a *intentLoggerAdapter) With(fields map[string]interface{}) intent.Logger {
	return &intentLoggerAdapter{a.Logger.With(fields)}
}

type responderLoggerAdapter struct {
	logger.Logger
}

func (a *responderLoggerAdapter) With(fields map[string]interface{}) responder.Logger {
	return &responderLoggerAdapter{a.Logger.With(fields)}
}

type storeLoggerAdapter struct {
	logger.Logger
}

func (a *storeLoggerAdapter) With(fields map[string]interface{}) store.Logger {
	return &storeLoggerAdapter{a.Logger.With(fields)}
}

type sessionLoggerAdapter struct {
	logger.Logger
}

func (a *sessionLoggerAdapter) With(fields map[string]interface{}) session.Logger {
	return &sessionLoggerAdapter{a.Logger.With(fields)}
}

func redisRawClient(c *database.RedisClient) *redis.Client {
	if c == nil {
		return nil
	}
	return c.GetClient()
}
