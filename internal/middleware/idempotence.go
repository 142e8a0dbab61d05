package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	idempotenceHeader = "X-Idempotency-Key"
	idempotenceTTL    = 60 * time.Second
	idempotencePrefix = "cf:idempotence:"
)

// Idempotence rejects a repeated POST/PUT while the first one is in flight
// and for idempotenceTTL after it succeeded. Failed requests release the key
// so they can be retried. Requests are keyed by the idempotency header, or by
// a hash of method, URL, body and caller.
func Idempotence(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut {
			c.Next()
			return
		}
		key, err := resolveIdempotenceKey(c)
		if err != nil || key == "" {
			c.Next()
			return
		}

		redisKey := idempotencePrefix + key
		ctx := c.Request.Context()

		acquired, err := rdb.SetNX(ctx, redisKey, "0", idempotenceTTL).Result()
		if err != nil {
			c.Next()
			return
		}
		if !acquired {
			msg := "identical request already succeeded, retry later"
			if val, getErr := rdb.Get(ctx, redisKey).Result(); getErr == nil && val == "0" {
				msg = "identical request is still being processed"
			} else if getErr != nil && !errors.Is(getErr, redis.Nil) {
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"ok":      0,
				"code":    http.StatusConflict,
				"message": msg,
			})
			return
		}

		c.Next()

		if status := c.Writer.Status(); status >= 200 && status < 300 {
			rdb.Set(ctx, redisKey, "1", redis.KeepTTL)
		} else {
			rdb.Del(ctx, redisKey)
		}
	}
}

func resolveIdempotenceKey(c *gin.Context) (string, error) {
	if hdr := c.GetHeader(idempotenceHeader); hdr != "" {
		return hdr, nil
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", err
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	caller := CurrentUserID(c)
	if caller == "" {
		caller = c.ClientIP()
	}
	raw := c.Request.Method + "|" + c.Request.URL.String() + "|" + string(body) + "|" + caller
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:]), nil
}
