package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/kitstock/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeBucket struct {
	deny map[string]bool
	err  error
	keys []string
}

func (f *fakeBucket) Allow(_ context.Context, key string, _ float64, _ int) (*RateLimitResult, error) {
	f.keys = append(f.keys, key)
	if f.err != nil {
		return nil, f.err
	}
	if f.deny[key] {
		return &RateLimitResult{Allowed: false, RetryAfter: time.Second}, nil
	}
	return &RateLimitResult{Allowed: true}, nil
}

type fakeLocker struct {
	held     map[string]string
	released []string
}

func (f *fakeLocker) TryLock(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	if _, ok := f.held[key]; ok {
		return "", false, nil
	}
	f.held[key] = "token-" + key
	return f.held[key], true, nil
}

func (f *fakeLocker) Release(_ context.Context, key, token string) error {
	if f.held[key] == token {
		delete(f.held, key)
		f.released = append(f.released, key)
	}
	return nil
}

func newLimiter(b bucket, l locker) *CatalogIntakeLimiter {
	return &CatalogIntakeLimiter{bucket: b, locker: l, log: zap.NewNop(), rate: 1, burst: 2}
}

func TestCatalogLimiterDisabledWithoutRedis(t *testing.T) {
	limiter := NewCatalogIntakeLimiter(config.Config{CatalogRateLimit: 10, CatalogRateBurst: 20}, nil, nil, zap.NewNop())
	assert.False(t, limiter.Enabled())
	assert.True(t, limiter.Allow(context.Background(), "1", "1.2.3.4").Allowed)

	release, ok := limiter.LockSubmission(context.Background(), "1", "123")
	assert.True(t, ok)
	release()
}

func TestCatalogLimiterDeniesClient(t *testing.T) {
	b := &fakeBucket{deny: map[string]bool{"catalog:intake:client:1:1.2.3.4": true}}
	decision := newLimiter(b, nil).Allow(context.Background(), "1", "1.2.3.4")

	assert.False(t, decision.Allowed)
	assert.Equal(t, "client_limit", decision.Reason)
	assert.Equal(t, time.Second, decision.RetryAfter)
	assert.Equal(t, []string{"catalog:intake:org:1", "catalog:intake:client:1:1.2.3.4"}, b.keys)
}

func TestCatalogLimiterFailsOpen(t *testing.T) {
	b := &fakeBucket{err: errors.New("redis down")}
	assert.True(t, newLimiter(b, nil).Allow(context.Background(), "1", "ip").Allowed)
}

func TestLockSubmissionBlocksDuplicates(t *testing.T) {
	l := &fakeLocker{held: map[string]string{}}
	limiter := newLimiter(&fakeBucket{}, l)

	release, ok := limiter.LockSubmission(context.Background(), "1", "12345678901")
	assert.True(t, ok)

	_, ok = limiter.LockSubmission(context.Background(), "1", "12345678901")
	assert.False(t, ok)

	release()
	assert.Equal(t, []string{"catalog:intake:lock:1:12345678901"}, l.released)

	_, ok = limiter.LockSubmission(context.Background(), "1", "12345678901")
	assert.True(t, ok)
}

func TestBuildResultRetryAfter(t *testing.T) {
	res := buildResult(false, 0, 1000, 2, 5)
	assert.Equal(t, 500*time.Millisecond, res.RetryAfter)
	assert.Equal(t, 5, res.Limit)
}
