package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"storycast/domain/model"
	"storycast/infrastructure/logger"
)

// RequestCounter coordinates per-minute publish counts across instances
// (backed by Redis in production). The in-memory window is the fallback.
type RequestCounter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

type rateWindow struct {
	start   time.Time
	count   int
	limiter *rate.Limiter
}

// RateLimiter tracks publish attempts per platform+account in one-minute
// windows. It is an injected component with a bounded lifecycle, never
// process-global state, so tests can construct isolated instances.
type RateLimiter struct {
	mu        sync.Mutex
	perMinute int
	windows   map[string]*rateWindow
	counter   RequestCounter
	now       func() time.Time
}

func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 10
	}
	return &RateLimiter{
		perMinute: perMinute,
		windows:   make(map[string]*rateWindow),
		now:       time.Now,
	}
}

// WithCounter attaches a shared counter (Redis) so concurrent instances see
// each other's publishes.
func (r *RateLimiter) WithCounter(c RequestCounter) *RateLimiter {
	r.counter = c
	return r
}

func rateKey(platform model.Platform, accountID string) string {
	return fmt.Sprintf("publish:%s:%s", platform, accountID)
}

// Allow records one attempt and reports whether it may proceed within the
// account's per-minute window.
func (r *RateLimiter) Allow(ctx context.Context, platform model.Platform, accountID string) bool {
	key := rateKey(platform, accountID)

	r.mu.Lock()
	w := r.window(key)
	w.count++
	count := w.count
	lim := w.limiter
	r.mu.Unlock()

	if r.counter != nil {
		if shared, err := r.counter.Incr(ctx, key, time.Minute); err == nil {
			if int(shared) > count {
				r.mu.Lock()
				w.count = int(shared)
				count = w.count
				r.mu.Unlock()
			}
		} else {
			logger.GetLogger().WithField("key", key).WithField("error", err).Warn("shared rate counter unavailable, using local window")
		}
	}

	return count <= r.perMinute && lim.Allow()
}

// Overage reports how many attempts the current window sits above the limit.
func (r *RateLimiter) Overage(platform model.Platform, accountID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[rateKey(platform, accountID)]
	if !ok || r.now().Sub(w.start) >= time.Minute {
		return 0
	}
	if over := w.count - r.perMinute; over > 0 {
		return over
	}
	return 0
}

// Reset drops all tracked windows.
func (r *RateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.windows = make(map[string]*rateWindow)
}

// window returns the live window for key, rotating it when a minute elapsed.
// Caller holds r.mu.
func (r *RateLimiter) window(key string) *rateWindow {
	now := r.now()
	w, ok := r.windows[key]
	if !ok || now.Sub(w.start) >= time.Minute {
		w = &rateWindow{
			start:   now,
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(r.perMinute)), r.perMinute),
		}
		r.windows[key] = w
	}
	return w
}
