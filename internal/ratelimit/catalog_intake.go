package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/kitstock/internal/config"
	"github.com/smallbiznis/kitstock/internal/observability/metrics"
	"go.uber.org/zap"
)

const (
	keyCatalogOrg    = "catalog:intake:org:%s"
	keyCatalogClient = "catalog:intake:client:%s:%s"
	keyCatalogLock   = "catalog:intake:lock:%s:%s"

	catalogEndpoint = "catalog_order"
	submitLockTTL   = 10 * time.Second
)

type bucket interface {
	Allow(ctx context.Context, key string, rate float64, burst int) (*RateLimitResult, error)
}

type locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

// Decision is the outcome of a catalog intake check.
type Decision struct {
	Allowed    bool
	Reason     string
	RetryAfter time.Duration
}

// CatalogIntakeLimiter throttles public catalog orders per organization and
// per client, and blocks duplicate submissions for the same customer while
// one is in flight.
type CatalogIntakeLimiter struct {
	bucket  bucket
	locker  locker
	metrics *metrics.Metrics
	log     *zap.Logger

	rate  float64
	burst int
}

func NewRedisClient(cfg config.Config) *redis.Client {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})
}

func NewCatalogIntakeLimiter(cfg config.Config, client *redis.Client, m *metrics.Metrics, log *zap.Logger) *CatalogIntakeLimiter {
	limiter := &CatalogIntakeLimiter{
		metrics: m,
		log:     log.Named("ratelimit.catalog"),
		rate:    float64(cfg.CatalogRateLimit),
		burst:   int(cfg.CatalogRateBurst),
	}
	if client == nil || limiter.rate <= 0 || limiter.burst <= 0 {
		limiter.log.Info("catalog intake rate limiting disabled")
		return limiter
	}
	limiter.bucket = NewTokenBucket(client)
	limiter.locker = NewLocker(client)
	return limiter
}

func (l *CatalogIntakeLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow checks the organization bucket first, then the client bucket.
// Redis failures fail open so the catalog stays reachable.
func (l *CatalogIntakeLimiter) Allow(ctx context.Context, orgID, clientKey string) Decision {
	if !l.Enabled() {
		return Decision{Allowed: true}
	}
	orgID = strings.TrimSpace(orgID)

	checks := []struct {
		key    string
		rate   float64
		burst  int
		reason string
	}{
		{fmt.Sprintf(keyCatalogOrg, orgID), l.rate * 4, l.burst * 4, "org_limit"},
		{fmt.Sprintf(keyCatalogClient, orgID, strings.TrimSpace(clientKey)), l.rate, l.burst, "client_limit"},
	}
	for _, check := range checks {
		res, err := l.bucket.Allow(ctx, check.key, check.rate, check.burst)
		if err != nil {
			l.log.Warn("rate limit check failed", zap.String("reason", check.reason), zap.Error(err))
			continue
		}
		if !res.Allowed {
			l.metrics.RecordRateLimitDenied(ctx, orgID, catalogEndpoint, check.reason)
			return Decision{Allowed: false, Reason: check.reason, RetryAfter: res.RetryAfter}
		}
	}

	l.metrics.RecordRateLimitAllowed(ctx, orgID, catalogEndpoint)
	return Decision{Allowed: true}
}

// LockSubmission guards a customer's catalog submission. The returned release
// func is always safe to call.
func (l *CatalogIntakeLimiter) LockSubmission(ctx context.Context, orgID, customerDocument string) (func(), bool) {
	noop := func() {}
	if !l.Enabled() || l.locker == nil || strings.TrimSpace(customerDocument) == "" {
		return noop, true
	}

	key := fmt.Sprintf(keyCatalogLock, strings.TrimSpace(orgID), strings.TrimSpace(customerDocument))
	token, ok, err := l.locker.TryLock(ctx, key, submitLockTTL)
	if err != nil {
		l.log.Warn("submission lock failed", zap.Error(err))
		return noop, true
	}
	if !ok {
		l.metrics.RecordRateLimitDenied(ctx, orgID, catalogEndpoint, "duplicate_submission")
		return noop, false
	}
	return func() {
		if err := l.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			l.log.Warn("submission lock release failed", zap.Error(err))
		}
	}, true
}
