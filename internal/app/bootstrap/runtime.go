package bootstrap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/lead-intake/internal/config"
	"github.com/wolfman30/lead-intake/internal/observability/metrics"
	"github.com/wolfman30/lead-intake/internal/ratelimit"
	"github.com/wolfman30/lead-intake/pkg/logging"
)

const rateLimitKeyPrefix = "leadintake:ratelimit:"

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildLimiter selects the rate limit backend. The in-memory limiter evicts
// expired windows until ctx is done.
func BuildLimiter(ctx context.Context, cfg *appconfig.Config, redisClient *redis.Client) (ratelimit.Limiter, error) {
	rlCfg := ratelimit.Config{
		MaxRequests: cfg.RateLimitMaxRequests,
		Window:      cfg.RateLimitWindow,
	}
	switch cfg.RateLimitBackend {
	case appconfig.BackendRedis:
		if redisClient == nil {
			return nil, errors.New("bootstrap: redis rate limiter requires a reachable REDIS_ADDR")
		}
		return ratelimit.NewRedisLimiter(redisClient, rlCfg, rateLimitKeyPrefix)
	case appconfig.BackendMemory, "":
		limiter, err := ratelimit.NewMemoryLimiter(rlCfg)
		if err != nil {
			return nil, err
		}
		limiter.StartJanitor(ctx.Done(), cfg.RateLimitJanitorEvery)
		return limiter, nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown rate limit backend %q", cfg.RateLimitBackend)
	}
}

// BuildMetrics registers the intake collectors on a private registry and
// returns the handler that exposes it.
func BuildMetrics() (http.Handler, *metrics.IntakeMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewIntakeMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}), m
}
