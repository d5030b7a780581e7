package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrQueueFull is returned by InMemory.Publish when the buffer has no room.
var ErrQueueFull = errors.New("queue full")

// Domain event types.
const (
	TypeAttendanceMarked = "attendance.marked"
	TypeUserRegistered   = "user.registered"
	TypeDeviceRegistered = "device.registered"
	TypeAccountDeleted   = "account.deleted"
)

// Message is a domain event. Key groups related events (the roll number) so ordered
// backends keep them in sequence.
type Message struct {
	Type       string          `json:"type"`
	Key        string          `json:"key,omitempty"`
	Body       json.RawMessage `json:"body"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewMessage encodes payload as the message body.
func NewMessage(typ, key string, payload any) (Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: typ, Key: key, Body: body, OccurredAt: time.Now().UTC()}, nil
}

// Queue is the abstraction over different backends.
type Queue interface {
	Publish(ctx context.Context, msg Message) error
	Consume(ctx context.Context) (<-chan Message, error)
}

// InMemory is a minimal channel-backed queue for dev/testing.
type InMemory struct {
	ch chan Message
}

// NewInMemory creates a bounded in-memory queue.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan Message, size)}
}

// Publish enqueues a message without waiting for a consumer.
func (q *InMemory) Publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case q.ch <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Consume returns a channel for workers. It closes when ctx is done.
func (q *InMemory) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			select {
			case msg := <-q.ch:
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func encode(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

func decode(raw []byte) (Message, error) {
	var msg Message
	err := json.Unmarshal(raw, &msg)
	return msg, err
}
