package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisOptions(t *testing.T) {
	opts, err := redisOptions("localhost:6379")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 6*time.Second, opts.ReadTimeout)

	opts, err = redisOptions("redis://:secret@cache:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 2*time.Second, opts.DialTimeout)

	_, err = redisOptions("redis://cache:6380/not-a-db")
	assert.Error(t, err)
}

func TestNilRedisIsUnhealthy(t *testing.T) {
	var r *Redis
	assert.False(t, r.Healthy(context.Background()))
	assert.NoError(t, r.Close())
}
