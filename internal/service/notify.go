package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/iliyamo/tire-storage-bonus/internal/model"
)

// Notifier delivers a chat message to one user.  Implementations may
// fail; callers never roll back state because of it.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// ReceiptRequester queues the rendering of a storage receipt.
type ReceiptRequester interface {
	RequestReceipt(ctx context.Context, job model.ReceiptJob) error
}

// deliver sends msg and only logs a failure.
func deliver(ctx context.Context, n Notifier, log *zap.Logger, msg model.Notification) {
	if n == nil || msg.Recipient == "" {
		return
	}
	if err := n.Notify(ctx, msg); err != nil {
		log.Warn("notification not delivered",
			zap.String("recipient", msg.Recipient),
			zap.String("kind", string(msg.Kind)),
			zap.Error(err))
	}
}

func orNop(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}
