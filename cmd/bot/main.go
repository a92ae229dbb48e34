package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/example/braincheck/internal/bot"
	"github.com/example/braincheck/internal/classifier"
	"github.com/example/braincheck/internal/config"
	"github.com/example/braincheck/internal/logging"
	"github.com/example/braincheck/internal/preprocess"
	"github.com/example/braincheck/internal/screening"
)

func main() {
	logger, err := logging.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	if cfg.TelegramToken == "" {
		logger.Fatal("TELEGRAM_TOKEN is required")
	}

	model, err := classifier.Load(cfg.ModelPath, cfg.MetadataPath)
	if err != nil {
		logger.Fatal("failed to load model artifact", zap.Error(err),
			zap.String("model_path", cfg.ModelPath))
	}
	defer model.Close()

	svc := screening.New(preprocess.New(model.Metadata()), model, initCache(cfg, logger), logger, cfg.CacheTTL)

	b, err := bot.New(cfg.TelegramToken, svc, logger)
	if err != nil {
		logger.Fatal("failed to start bot", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := b.Run(ctx); err != nil {
		logger.Fatal("bot failed", zap.Error(err))
	}
	logger.Info("bot stopped")
}

// initCache mirrors the server binary: Redis when configured, no-op otherwise.
func initCache(cfg *config.Config, logger *zap.Logger) screening.Cache {
	if cfg.RedisAddr == "" {
		logger.Info("no redis address configured, result cache disabled")
		return screening.NopCache{}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal("redis connection failed", zap.Error(err), zap.String("addr", cfg.RedisAddr))
	}
	return screening.NewRedisCache(client)
}
