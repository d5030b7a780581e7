package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	msg, err := NewMessage(TypeAttendanceMarked, "21CS042", map[string]string{"event_id": "e1"})
	require.NoError(t, err)
	require.NoError(t, q.Publish(ctx, msg))

	ch, err := q.Consume(ctx)
	require.NoError(t, err)

	select {
	case got := <-ch:
		assert.Equal(t, TypeAttendanceMarked, got.Type)
		assert.Equal(t, "21CS042", got.Key)
		var body map[string]string
		require.NoError(t, json.Unmarshal(got.Body, &body))
		assert.Equal(t, "e1", body["event_id"])
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel closes with the context")
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestInMemoryPublishDoesNotBlockWhenFull(t *testing.T) {
	q := NewInMemory(1)
	require.NoError(t, q.Publish(context.Background(), Message{Type: "x"}))

	done := make(chan error, 1)
	go func() { done <- q.Publish(context.Background(), Message{Type: "y"}) }()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrQueueFull)
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full buffer")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewInMemory(1).Publish(ctx, Message{Type: "z"}), context.Canceled)
}

func TestWireFormat(t *testing.T) {
	msg, err := NewMessage(TypeUserRegistered, "21EC007", map[string]any{"department": "ECE"})
	require.NoError(t, err)

	raw, err := encode(msg)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"user.registered"`)
	assert.Contains(t, string(raw), `"body":{"department":"ECE"}`)

	back, err := decode(raw)
	require.NoError(t, err)
	assert.Equal(t, msg.Type, back.Type)
	assert.JSONEq(t, string(msg.Body), string(back.Body))

	_, err = decode([]byte("attendance|legacy"))
	assert.Error(t, err)
}
