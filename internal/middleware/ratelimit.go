package middleware

import (
	"strconv"

	"reviewhub/internal/ratelimit"
	"reviewhub/internal/response"
	"reviewhub/internal/utils"

	"github.com/gin-gonic/gin"
)

const RateLimitKey = "rate_limit"

// RateLimit enforces policy per caller: the user id when authenticated, the client IP
// otherwise. It must run after LoadUser.
func RateLimit(limiter *ratelimit.Limiter, policy ratelimit.Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := "ip:" + c.ClientIP()
		if id := CurrentUserID(c); id > 0 {
			identity = "user:" + strconv.FormatUint(uint64(id), 10)
		}

		res := limiter.Allow(c.Request.Context(), policy, identity)
		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetTime.Unix(), 10))
		c.Set(RateLimitKey, res)

		if !res.Allowed {
			response.Fail(c, utils.NewRateLimitedError(res.ResetTime))
			return
		}
		c.Next()
	}
}

// RateLimitResult returns the result recorded by RateLimit for this request.
func RateLimitResult(c *gin.Context) (ratelimit.Result, bool) {
	v, ok := c.Get(RateLimitKey)
	if !ok {
		return ratelimit.Result{}, false
	}
	res, ok := v.(ratelimit.Result)
	return res, ok
}
