package ratelimit

import (
	"context"
	"strings"
	"time"

	"github.com/smallbiznis/fieldops/internal/clock"
	"github.com/smallbiznis/fieldops/internal/config"
	obsmetrics "github.com/smallbiznis/fieldops/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// PolicySource yields the current limits. config.RateLimitHolder satisfies it
// and swaps the policy on file reload.
type PolicySource interface {
	Get() config.RateLimitPolicy
}

type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

type Params struct {
	fx.In

	Config  config.Config
	Store   Store
	Policy  PolicySource
	Clock   clock.Clock
	Log     *zap.Logger
	Metrics *obsmetrics.Metrics `optional:"true"`
}

// Limiter applies fixed-window limits keyed by client IP and endpoint.
type Limiter struct {
	enabled bool
	store   Store
	policy  PolicySource
	clock   clock.Clock
	log     *zap.Logger
	metrics *obsmetrics.Metrics
}

func NewLimiter(p Params) *Limiter {
	return &Limiter{
		enabled: p.Config.RateLimit.Enabled,
		store:   p.Store,
		policy:  p.Policy,
		clock:   p.Clock,
		log:     p.Log.Named("ratelimit"),
		metrics: p.Metrics,
	}
}

func (l *Limiter) Enabled() bool {
	return l != nil && l.enabled && l.store != nil && l.policy != nil
}

// Allow counts one request from ip against endpoint. The request that makes
// the count exceed the limit is the first one denied. Store failures admit
// the request and are returned so the caller can log them.
func (l *Limiter) Allow(ctx context.Context, ip, endpoint string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}

	limit := l.policy.Get().For(endpoint)
	w, err := l.store.Hit(ctx, Key(ip, endpoint), limit.Window)
	if err != nil {
		l.metrics.RecordRateLimitDenied(ctx, endpoint, "store_error")
		return &RateLimitResult{Allowed: true, Limit: limit.MaxRequests}, err
	}

	result := &RateLimitResult{
		Allowed:   w.Count <= int64(limit.MaxRequests),
		Limit:     limit.MaxRequests,
		Remaining: max(0, limit.MaxRequests-int(w.Count)),
		ResetTime: w.ResetAt,
	}
	if !result.Allowed {
		result.RetryAfter = max(0, w.ResetAt.Sub(l.clock.Now()))
		l.metrics.RecordRateLimitDenied(ctx, endpoint, "limit_exceeded")
		return result, nil
	}
	l.metrics.RecordRateLimitAllowed(ctx, endpoint)
	return result, nil
}

// Key is the window key for an (ip, endpoint) pair.
func Key(ip, endpoint string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		ip = "unknown"
	}
	return ip + "|" + strings.TrimSpace(endpoint)
}
