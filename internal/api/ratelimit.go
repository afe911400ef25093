package api

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type memberLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter applies a per-member token bucket to authenticated requests.
type RateLimiter struct {
	limit rate.Limit
	burst int
	ttl   time.Duration

	mu       sync.Mutex
	limiters map[string]*memberLimiter

	stopCh chan struct{}
}

// NewRateLimiter allows perMinute requests per member per minute, with the
// same burst. Idle members are forgotten after ttl.
func NewRateLimiter(perMinute int, ttl time.Duration) *RateLimiter {
	rl := &RateLimiter{
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    perMinute,
		ttl:      ttl,
		limiters: make(map[string]*memberLimiter),
		stopCh:   make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop ends the background cleanup.
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// Middleware must run after AuthMiddleware.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := GetClaims(r.Context())
		if claims == nil {
			jsonError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		if !rl.get(claims.UserID()).Allow() {
			slog.Warn("rate limit exceeded", "user_id", claims.UserID())
			retryAfter := max(int(math.Ceil(1/float64(rl.limit))), 1)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			jsonError(w, http.StatusTooManyRequests, "too many requests, please slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) get(userID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	ml, ok := rl.limiters[userID]
	if !ok {
		ml = &memberLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[userID] = ml
	}
	ml.lastAccess = time.Now()
	return ml.limiter
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for id, ml := range rl.limiters {
		if now.Sub(ml.lastAccess) > rl.ttl {
			delete(rl.limiters, id)
		}
	}
}
