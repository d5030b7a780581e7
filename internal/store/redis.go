package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the client shared by the event queue and the rate limiter.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to addr, either host:port or a redis:// URL, and pings it.
func NewRedis(ctx context.Context, addr string) (*Redis, error) {
	opts, err := redisOptions(addr)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return &Redis{Client: client}, nil
}

func redisOptions(addr string) (*redis.Options, error) {
	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis URL: %w", err)
		}
		opts = parsed
	}
	opts.DialTimeout = 2 * time.Second
	// BRPOP in the queue blocks for 5s.
	opts.ReadTimeout = 6 * time.Second
	opts.WriteTimeout = time.Second
	return opts, nil
}

// Healthy verifies redis connectivity.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
