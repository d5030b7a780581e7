package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presencegate/internal/audit"
	"presencegate/internal/config"
	"presencegate/internal/queue"
)

func TestMemoryQueueIsDrainedInProcess(t *testing.T) {
	auditStore := audit.NewMemoryStore()
	q, closeQueue, err := newQueue(context.Background(), config.App{QueueBackend: "memory"}, nil, auditStore, nil)
	require.NoError(t, err)

	// Well past the buffer size; none of these may block.
	for i := 0; i < 600; i++ {
		msg, err := queue.NewMessage(queue.TypeAttendanceMarked, "21CS001", map[string]int{"n": i})
		require.NoError(t, err)
		pubCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		err = q.Publish(pubCtx, msg)
		cancel()
		if err != nil {
			require.ErrorIs(t, err, queue.ErrQueueFull)
		}
	}

	assert.Eventually(t, func() bool { return len(auditStore.Entries()) > 0 }, 2*time.Second, 10*time.Millisecond)
	closeQueue()
}
