package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"studybuddy-backend/internal/shared/server/respond"
)

const defaultSweepInterval = time.Minute

// ThrottleRule is a token bucket holding Burst tokens, refilled at PerSecond.
type ThrottleRule struct {
	PerSecond float64
	Burst     int
}

func (r ThrottleRule) enabled() bool {
	return r.PerSecond > 0 && r.Burst > 0
}

// refillTime is how long an empty bucket takes to fill up again. A bucket that
// has been idle this long is equivalent to a fresh one.
func (r ThrottleRule) refillTime() time.Duration {
	return time.Duration(float64(r.Burst) / r.PerSecond * float64(time.Second))
}

// ThrottleConfig maps route groups to rules. Classify names the group for a
// request; an empty or unknown group is not throttled.
type ThrottleConfig struct {
	Rules    map[string]ThrottleRule
	Classify func(*gin.Context) string
	Limiter  *Limiter
}

// Limiter keeps one bucket per caller and group. Buckets idle for longer than
// their refill time are swept so the map stays bounded by active callers.
type Limiter struct {
	mu            sync.Mutex
	buckets       map[string]*bucket
	now           func() time.Time
	sweepInterval time.Duration
	lastSweep     time.Time
}

type bucket struct {
	tokens float64
	seen   time.Time
	idle   time.Duration
}

// NewLimiter returns an empty limiter. A nil clock means time.Now.
func NewLimiter(now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		buckets:       make(map[string]*bucket),
		now:           now,
		sweepInterval: defaultSweepInterval,
		lastSweep:     now(),
	}
}

// Throttle rejects requests that exceed their group's rule with 429 and a
// Retry-After header. Callers are keyed by user id, falling back to client IP.
func Throttle(cfg ThrottleConfig) gin.HandlerFunc {
	if cfg.Limiter == nil {
		cfg.Limiter = NewLimiter(nil)
	}
	return func(c *gin.Context) {
		if cfg.Classify == nil {
			c.Next()
			return
		}
		group := strings.TrimSpace(cfg.Classify(c))
		rule, ok := cfg.Rules[group]
		if group == "" || !ok {
			c.Next()
			return
		}

		caller := strings.TrimSpace(UserIDFromContext(c))
		if caller == "" {
			caller = "ip:" + c.ClientIP()
		}
		wait, ok := cfg.Limiter.Take(group+"|"+caller, rule)
		if ok {
			c.Next()
			return
		}

		waitMs := wait.Milliseconds()
		if waitMs <= 0 {
			waitMs = 1
		}
		c.Header("Retry-After", strconv.FormatInt(int64(math.Ceil(float64(waitMs)/1000)), 10))
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", "too many requests, retry later",
			gin.H{"group": group, "retryAfterMs": waitMs})
	}
}

// Take spends one token from key's bucket. When none is left it reports how
// long until the next token arrives. A nil limiter allows everything.
func (l *Limiter) Take(key string, rule ThrottleRule) (time.Duration, bool) {
	if l == nil || !rule.enabled() {
		return 0, true
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.sweepInterval {
		l.sweepLocked(now)
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(rule.Burst), seen: now}
		l.buckets[key] = b
	}
	b.idle = rule.refillTime()
	if dt := now.Sub(b.seen); dt > 0 {
		b.tokens = math.Min(float64(rule.Burst), b.tokens+dt.Seconds()*rule.PerSecond)
		b.seen = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return 0, true
	}
	missing := (1 - b.tokens) / rule.PerSecond
	return time.Duration(math.Ceil(missing*1000)) * time.Millisecond, false
}

// Len reports how many buckets are tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) sweepLocked(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.seen) >= b.idle {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}
