package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaQueue publishes to and consumes from a single topic.
type KafkaQueue struct {
	writer     *kafka.Writer
	brokers    []string
	topic      string
	groupID    string
	retryDelay time.Duration
	logger     *zap.Logger
}

// groupReader is the part of *kafka.Reader the consume loop needs.
type groupReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaQueue creates a producer for topic. Consumers join groupID.
func NewKafkaQueue(brokers []string, topic, groupID string, logger *zap.Logger) *KafkaQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaQueue{writer: writer, brokers: brokers, topic: topic, groupID: groupID, retryDelay: time.Second, logger: logger}
}

// Publish writes msg keyed by msg.Key so one identity's events land on one partition.
func (q *KafkaQueue) Publish(ctx context.Context, msg Message) error {
	raw, err := encode(msg)
	if err != nil {
		return err
	}
	err = q.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(msg.Key),
		Value:   raw,
		Headers: []kafka.Header{{Key: "type", Value: []byte(msg.Type)}},
	})
	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}
	return nil
}

// Consume reads the topic as part of the consumer group. Offsets are committed after the
// message has been handed to the receiver.
func (q *KafkaQueue) Consume(ctx context.Context) (<-chan Message, error) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        q.brokers,
		Topic:          q.topic,
		GroupID:        q.groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		StartOffset:    kafka.FirstOffset,
		MaxWait:        5 * time.Second,
		ReadBackoffMin: 100 * time.Millisecond,
		ReadBackoffMax: time.Second,
	})

	out := make(chan Message)
	go q.consume(ctx, reader, out)
	return out, nil
}

func (q *KafkaQueue) consume(ctx context.Context, reader groupReader, out chan<- Message) {
	defer close(out)
	defer reader.Close()
	for {
		km, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			q.logger.Warn("kafka fetch failed", zap.Error(err))
			select {
			case <-time.After(q.retryDelay):
			case <-ctx.Done():
				return
			}
			continue
		}
		msg, err := decode(km.Value)
		if err != nil {
			q.logger.Warn("dropping malformed kafka message",
				zap.Error(err), zap.Int("partition", km.Partition), zap.Int64("offset", km.Offset))
		} else {
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
		if err := reader.CommitMessages(ctx, km); err != nil && ctx.Err() == nil {
			q.logger.Warn("kafka commit failed", zap.Error(err))
		}
	}
}

// Close flushes and closes the producer.
func (q *KafkaQueue) Close() error {
	return q.writer.Close()
}
