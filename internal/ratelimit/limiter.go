// Package ratelimit implements a sliding-window request limiter over a shared log of
// allowed requests, so every instance of the service sees the same counts.
package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// Store keeps one entry per allowed request. Timestamps are unix seconds.
type Store interface {
	// Expire removes entries for (key, identity) older than before.
	Expire(ctx context.Context, key, identity string, before int64) error
	// Window counts entries for (key, identity) with timestamp >= since and returns the oldest of them.
	Window(ctx context.Context, key, identity string, since int64) (count int, oldest int64, err error)
	// Record appends an entry. window is a hint for stores that can expire keys themselves.
	Record(ctx context.Context, key, identity string, at int64, window time.Duration) error
}

// AtomicStore counts and records in one step. Check prefers it when the store provides it.
type AtomicStore interface {
	// Take counts entries for (key, identity) with timestamp >= since and, if the count is below
	// limit, records one at at. count and oldest describe the window before the new entry.
	Take(ctx context.Context, key, identity string, since, at int64, limit int, window time.Duration) (allowed bool, count int, oldest int64, err error)
}

// Policy names one endpoint's budget.
type Policy struct {
	Key    string
	Limit  int
	Window time.Duration
}

type Result struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"-"`
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"resetTime"`
}

type Limiter struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func New(store Store, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{store: store, logger: logger.With("component", "ratelimit"), now: time.Now}
}

// Allow is Check with a Policy.
func (l *Limiter) Allow(ctx context.Context, p Policy, identity string) Result {
	return l.Check(ctx, p.Key, identity, p.Limit, p.Window)
}

// Check counts the requests identity made against key in the trailing window and, if the
// count is below limit, records this one. Storage failures let the request through.
// With a plain Store the count and the insert are separate steps, so a concurrent burst from one
// identity can overshoot limit by a few requests; an AtomicStore holds the bound exactly.
func (l *Limiter) Check(ctx context.Context, key, identity string, limit int, window time.Duration) Result {
	now := l.now()
	nowUnix := now.Unix()
	windowStart := nowUnix - int64(window/time.Second)

	if as, ok := l.store.(AtomicStore); ok {
		allowed, count, oldest, err := as.Take(ctx, key, identity, windowStart, nowUnix, limit, window)
		if err != nil {
			l.logger.Warn("rate limit store unavailable, allowing request", "key", key, "identity", identity, "error", err)
			return l.failOpen(now, limit, window)
		}
		return windowResult(now, limit, window, allowed, count, oldest)
	}

	// 过期记录清理失败不影响计数
	if err := l.store.Expire(ctx, key, identity, windowStart); err != nil {
		l.logger.Warn("rate limit cleanup failed", "key", key, "error", err)
	}

	count, oldest, err := l.store.Window(ctx, key, identity, windowStart)
	if err != nil {
		l.logger.Warn("rate limit store unavailable, allowing request", "key", key, "identity", identity, "error", err)
		return l.failOpen(now, limit, window)
	}

	if count >= limit {
		return windowResult(now, limit, window, false, count, oldest)
	}

	if err := l.store.Record(ctx, key, identity, nowUnix, window); err != nil {
		l.logger.Warn("rate limit record failed, allowing request", "key", key, "identity", identity, "error", err)
		return l.failOpen(now, limit, window)
	}

	return windowResult(now, limit, window, true, count, oldest)
}

// windowResult builds the Result from the window as it was before this request.
func windowResult(now time.Time, limit int, window time.Duration, allowed bool, count int, oldest int64) Result {
	reset := now.Add(window)
	if count > 0 {
		reset = time.Unix(oldest, 0).Add(window)
	}
	if !allowed {
		return Result{Allowed: false, Limit: limit, Remaining: 0, ResetTime: reset}
	}
	return Result{Allowed: true, Limit: limit, Remaining: max(limit-count-1, 0), ResetTime: reset}
}

func (l *Limiter) failOpen(now time.Time, limit int, window time.Duration) Result {
	remaining := limit - 1
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: true, Limit: limit, Remaining: remaining, ResetTime: now.Add(window)}
}
