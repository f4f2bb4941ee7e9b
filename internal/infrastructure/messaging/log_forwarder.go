package messaging

import (
	"context"

	"go.uber.org/zap"

	"github.com/printhub/fulfillment/internal/application/supplysync"
)

// LogStatusForwarder writes status updates to the log. Used when Kafka is not configured.
type LogStatusForwarder struct {
	logger *zap.Logger
}

var _ supplysync.StatusForwarder = (*LogStatusForwarder)(nil)

// NewLogStatusForwarder creates a LogStatusForwarder
func NewLogStatusForwarder(logger *zap.Logger) *LogStatusForwarder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogStatusForwarder{logger: logger}
}

// Forward logs the event and never fails
func (f *LogStatusForwarder) Forward(_ context.Context, event supplysync.OrderStatusEvent) error {
	f.logger.Info("Order status update received",
		zap.String("event_id", event.EventID),
		zap.String("supplier_id", event.SupplierID.String()),
		zap.Time("received_at", event.ReceivedAt),
		zap.ByteString("payload", event.Payload),
	)
	return nil
}

// Close is a no-op
func (f *LogStatusForwarder) Close() error {
	return nil
}
