package audit

import (
	"context"

	"go.uber.org/zap"

	"presencegate/internal/queue"
)

// Worker drains a queue into the audit store.
type Worker struct {
	store  Store
	logger *zap.Logger
	known  map[string]struct{}
}

func NewWorker(store Store, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		store:  store,
		logger: logger,
		known: map[string]struct{}{
			queue.TypeAttendanceMarked: {},
			queue.TypeUserRegistered:   {},
			queue.TypeDeviceRegistered: {},
			queue.TypeAccountDeleted:   {},
		},
	}
}

// Run consumes until ctx is done or the inbox closes. A failed append is logged and the
// message dropped; the worker keeps going.
func (w *Worker) Run(ctx context.Context, inbox <-chan queue.Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-inbox:
			if !ok {
				return nil
			}
			w.handle(ctx, msg)
		}
	}
}

func (w *Worker) handle(ctx context.Context, msg queue.Message) {
	if _, ok := w.known[msg.Type]; !ok {
		w.logger.Debug("skipping unknown message type", zap.String("type", msg.Type))
		return
	}
	entry := FromMessage(msg)
	if err := w.store.Append(ctx, entry); err != nil {
		w.logger.Error("audit append failed",
			zap.String("type", msg.Type), zap.String("key", msg.Key), zap.Error(err))
		return
	}
	w.logger.Info("audit event recorded", zap.String("type", msg.Type), zap.String("key", msg.Key))
}
