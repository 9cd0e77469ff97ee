package http_handler

import (
	"fmt"
	"strconv"
	"time"

	sdklogger "github.com/anthanhphan/gosdk/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window request counter per client IP kept in Redis,
// so limits hold across gateway instances.
type RateLimiter struct {
	client redis.UniversalClient
	prefix string
	max    int
	window time.Duration
	now    func() time.Time
}

func NewRateLimiter(client redis.UniversalClient, prefix string, limit int, window time.Duration) *RateLimiter {
	if window < time.Second {
		window = time.Minute
	}
	return &RateLimiter{client: client, prefix: prefix, max: limit, window: window, now: time.Now}
}

// Handler counts the request and answers 429 with Retry-After once the window is used up.
// Redis failures let the request through.
func (l *RateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		now := l.now()
		windowSecs := int64(l.window / time.Second)
		bucket := now.Unix() / windowSecs
		key := fmt.Sprintf("%s:%s:%d", l.prefix, c.IP(), bucket)

		pipe := l.client.TxPipeline()
		incr := pipe.Incr(c.Context(), key)
		pipe.Expire(c.Context(), key, l.window)
		if _, err := pipe.Exec(c.Context()); err != nil {
			sdklogger.Warnw("Rate limiter unavailable, allowing request", "limiter", l.prefix, "error", err.Error())
			return c.Next()
		}

		count := int(incr.Val())
		c.Set("RateLimit-Limit", strconv.Itoa(l.max))
		c.Set("RateLimit-Remaining", strconv.Itoa(max(l.max-count, 0)))

		if count > l.max {
			retryAfter := (bucket+1)*windowSecs - now.Unix()
			c.Set(fiber.HeaderRetryAfter, strconv.FormatInt(retryAfter, 10))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		}
		return c.Next()
	}
}
