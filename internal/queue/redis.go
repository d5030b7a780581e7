package queue

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisQueue implements a Redis list-backed queue.
type RedisQueue struct {
	client *redis.Client
	key    string
	logger *zap.Logger
}

// NewRedisQueue builds a queue using LPUSH/BRPOP semantics.
func NewRedisQueue(client *redis.Client, key string, logger *zap.Logger) *RedisQueue {
	if key == "" {
		key = "presencegate:events"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisQueue{client: client, key: key, logger: logger}
}

// Publish enqueues a message.
func (q *RedisQueue) Publish(ctx context.Context, msg Message) error {
	raw, err := encode(msg)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, raw).Err()
}

// Consume streams messages using BRPOP.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				q.logger.Warn("redis queue pop failed", zap.Error(err))
				time.Sleep(time.Second)
				continue
			}
			if len(res) != 2 {
				continue
			}
			msg, err := decode([]byte(res[1]))
			if err != nil {
				q.logger.Warn("dropping malformed queue message", zap.Error(err))
				continue
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
