package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/cubelab/maple-proxy/internal/config"
	"github.com/cubelab/maple-proxy/internal/server"
	"github.com/cubelab/maple-proxy/pkg/logging"
	"github.com/cubelab/maple-proxy/pkg/pipeline"
	"github.com/cubelab/maple-proxy/pkg/ratelimit"
	"github.com/cubelab/maple-proxy/pkg/store"
	"github.com/cubelab/maple-proxy/pkg/timeutil"
	"github.com/cubelab/maple-proxy/pkg/upstream"
)

func main() {
	cfg := config.Load()

	logger := logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	db, err := store.Open(cfg.DB)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open database")
	}
	st, err := store.New(db)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to migrate database")
	}

	client, err := upstream.New(upstream.Config{
		BaseURL:        cfg.UpstreamBaseURL,
		APIKey:         cfg.UpstreamAPIKey,
		ConnectTimeout: cfg.ConnectTimeout,
		RequestTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create upstream client")
	}

	norm, err := timeutil.New(cfg.Timezone, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load server timezone")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var limiter ratelimit.Limiter
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()
		limiter = ratelimit.NewRedisBucket(redisClient, cfg.RateCapacity, cfg.RatePeriod.Milliseconds(), logger)
		logger.Info().Str("addr", cfg.RedisAddr).Msg("Using shared Redis rate limit bucket")
	} else {
		limiter = ratelimit.NewBucket(cfg.RateCapacity, cfg.RatePeriod)
	}

	pipe := pipeline.New(st, client, limiter, norm, pipeline.Config{
		DefaultWindow: cfg.Freshness,
		KindWindows:   cfg.KindFreshness,
	})

	srv := server.New(pipe)

	logger.Info().
		Str("timezone", cfg.Timezone).
		Int("rate_capacity", cfg.RateCapacity).
		Dur("rate_period", cfg.RatePeriod).
		Dur("freshness", cfg.Freshness).
		Str("db_type", cfg.DB.Type).
		Msg("Starting maple-proxy")

	if err := srv.Run(ctx, cfg.ListenAddr); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
	logger.Info().Msg("Shutdown complete")
}
