package httpmiddleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"presencegate/internal/apperr"
)

// Limiter decides whether one more request for key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// SimpleTokenBucket is an in-memory rate limiter, used alone in dev and as the Redis fallback.
type SimpleTokenBucket struct {
	capacity int
	rate     int
	mu       sync.Mutex
	state    map[string]*bucket
	now      func() time.Time
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewSimpleTokenBucket creates limiter with capacity tokens and rate per minute.
func NewSimpleTokenBucket(capacity, perMinute int) *SimpleTokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	return &SimpleTokenBucket{
		capacity: capacity,
		rate:     perMinute,
		state:    make(map[string]*bucket),
		now:      time.Now,
	}
}

// Allow never fails.
func (l *SimpleTokenBucket) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.state[key]
	now := l.now()
	if !ok {
		b = &bucket{tokens: l.capacity - 1, last: now}
		l.state[key] = b
		return true, nil
	}
	elapsed := now.Sub(b.last).Minutes()
	refill := int(elapsed * float64(l.rate))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens <= 0 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

// RedisWindow is a fixed-window counter shared by every API instance.
type RedisWindow struct {
	client *redis.Client
	limit  int64
	window time.Duration
	prefix string
}

// NewRedisWindow allows perMinute requests per key per minute.
func NewRedisWindow(client *redis.Client, perMinute int) *RedisWindow {
	return &RedisWindow{client: client, limit: int64(perMinute), window: time.Minute, prefix: "presencegate:rl:"}
}

// Allow increments the key's counter for the current window.
func (l *RedisWindow) Allow(ctx context.Context, key string) (bool, error) {
	slot := time.Now().UnixNano() / int64(l.window)
	k := l.prefix + key + ":" + strconv.FormatInt(slot, 10)

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.Expire(ctx, k, l.window)
		return nil
	})
	if err != nil {
		return false, err
	}
	return incr.Val() <= l.limit, nil
}

// RateLimit enforces per-IP limits. When primary errors the request is judged by fallback.
func RateLimit(primary, fallback Limiter, onReject func(), logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		ok, err := primary.Allow(c.Request.Context(), ip)
		if err != nil && fallback != nil {
			logger.Warn("rate limiter unavailable, using fallback", zap.Error(err))
			ok, err = fallback.Allow(c.Request.Context(), ip)
		}
		if err != nil {
			// Fail open.
			c.Next()
			return
		}
		if !ok {
			if onReject != nil {
				onReject()
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded", "reason": apperr.ReasonRateLimited})
			return
		}
		c.Next()
	}
}
