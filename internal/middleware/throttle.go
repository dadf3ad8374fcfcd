package middleware

import (
	"context"
	"sync"
	"time"

	"reviewhub/internal/response"
	"reviewhub/internal/utils"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPThrottle is a process-local token bucket per client IP. It only shields one
// instance from bursts; the shared per-endpoint limits live in ratelimit.
type IPThrottle struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	rps      rate.Limit
	burst    int
}

func NewIPThrottle(rps float64, burst int) *IPThrottle {
	return &IPThrottle{
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (t *IPThrottle) limiter(ip string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(t.rps, t.burst)}
		t.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

// Cleanup forgets visitors idle for longer than idle.
func (t *IPThrottle) Cleanup(idle time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for ip, v := range t.visitors {
		if time.Since(v.lastSeen) > idle {
			delete(t.visitors, ip)
		}
	}
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (t *IPThrottle) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Cleanup(interval)
		}
	}
}

func (t *IPThrottle) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !t.limiter(c.ClientIP()).Allow() {
			response.Fail(c, utils.NewRateLimitedError(time.Now().Add(time.Second)))
			return
		}
		c.Next()
	}
}
