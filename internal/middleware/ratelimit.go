package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimit allows at most limit requests per caller in each fixed window.
// Callers are identified by user id, falling back to client IP. Redis
// failures let the request through.
func RateLimit(rdb *redis.Client, scope string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := CurrentUserID(c)
		if caller == "" {
			caller = c.ClientIP()
		}
		if caller == "" || limit <= 0 {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		slot := time.Now().UnixNano() / int64(window)
		key := fmt.Sprintf("cf:rate_limit:%s:%s:%d", scope, caller, slot)

		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			c.Next()
			return
		}
		if count == 1 {
			rdb.PExpire(ctx, key, window+time.Second)
		}
		if count > int64(limit) {
			c.Header("Retry-After", strconv.Itoa(max(int(window/time.Second), 1)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"ok":      0,
				"code":    http.StatusTooManyRequests,
				"message": "too many requests",
			})
			return
		}
		c.Next()
	}
}
