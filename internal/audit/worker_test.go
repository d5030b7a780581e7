package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presencegate/internal/queue"
)

type failingStore struct{ calls int }

func (f *failingStore) Append(context.Context, Entry) error {
	f.calls++
	return errors.New("audit_events: connection reset")
}

func TestWorkerRecordsKnownTypes(t *testing.T) {
	store := NewMemoryStore()
	w := NewWorker(store, nil)

	inbox := make(chan queue.Message, 3)
	marked, err := queue.NewMessage(queue.TypeAttendanceMarked, "21CS042", map[string]string{"event_id": "e1"})
	require.NoError(t, err)
	inbox <- marked
	inbox <- queue.Message{Type: "checkin", Body: []byte(`"legacy"`)}
	inbox <- queue.Message{Type: queue.TypeAccountDeleted, Key: "21CS042"}
	close(inbox)

	require.NoError(t, w.Run(context.Background(), inbox))

	entries := store.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, queue.TypeAttendanceMarked, entries[0].Type)
	assert.JSONEq(t, `{"event_id":"e1"}`, string(entries[0].Payload))
	assert.Equal(t, "21CS042", entries[1].Key)
	assert.JSONEq(t, `{}`, string(entries[1].Payload))
	assert.False(t, entries[1].OccurredAt.IsZero())
}

func TestWorkerSurvivesStoreErrors(t *testing.T) {
	store := &failingStore{}
	w := NewWorker(store, nil)

	inbox := make(chan queue.Message, 2)
	inbox <- queue.Message{Type: queue.TypeUserRegistered}
	inbox <- queue.Message{Type: queue.TypeDeviceRegistered}
	close(inbox)

	require.NoError(t, w.Run(context.Background(), inbox))
	assert.Equal(t, 2, store.calls)
}

func TestWorkerStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := NewWorker(NewMemoryStore(), nil).Run(ctx, make(chan queue.Message))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
