// Package messaging hands supplier order status updates to the order-status subsystem.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/printhub/fulfillment/internal/application/supplysync"
)

// Message headers set on every forwarded status update
const (
	HeaderEventID    = "event-id"
	HeaderEventType  = "event-type"
	HeaderSupplierID = "supplier-id"
)

// messageWriter is the part of *kafka.Writer the forwarder uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaForwarderConfig configures KafkaStatusForwarder
type KafkaForwarderConfig struct {
	Brokers      []string
	Topic        string
	ClientID     string
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	MaxAttempts  int
}

// Validate checks required fields and fills defaults
func (c *KafkaForwarderConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("kafka: at least one broker required")
	}
	if c.Topic == "" {
		return errors.New("kafka: topic required")
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = 50 * time.Millisecond
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	return nil
}

// KafkaStatusForwarder publishes order_status_updated payloads to a topic.
// Messages are keyed by supplier ID so one supplier's updates stay ordered.
type KafkaStatusForwarder struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

var _ supplysync.StatusForwarder = (*KafkaStatusForwarder)(nil)

// NewKafkaStatusForwarder creates a forwarder with a synchronous kafka-go writer
func NewKafkaStatusForwarder(cfg KafkaForwarderConfig, logger *zap.Logger) (*KafkaStatusForwarder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxAttempts:  cfg.MaxAttempts,
		RequiredAcks: kafka.RequireAll,
		Transport: &kafka.Transport{
			ClientID: cfg.ClientID,
		},
	}

	return newKafkaStatusForwarder(w, cfg.Topic, logger), nil
}

func newKafkaStatusForwarder(w messageWriter, topic string, logger *zap.Logger) *KafkaStatusForwarder {
	return &KafkaStatusForwarder{
		writer: w,
		topic:  topic,
		logger: logger,
	}
}

// Forward writes one message and waits for the broker acknowledgement
func (f *KafkaStatusForwarder) Forward(ctx context.Context, event supplysync.OrderStatusEvent) error {
	msg, err := statusMessage(event)
	if err != nil {
		return err
	}

	if err := f.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: forward order status %s to %s: %w", event.EventID, f.topic, err)
	}

	f.logger.Debug("Order status forwarded",
		zap.String("topic", f.topic),
		zap.String("event_id", event.EventID),
		zap.String("supplier_id", event.SupplierID.String()),
	)
	return nil
}

// Close flushes pending writes and releases connections
func (f *KafkaStatusForwarder) Close() error {
	if f == nil || f.writer == nil {
		return nil
	}
	return f.writer.Close()
}

func statusMessage(event supplysync.OrderStatusEvent) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("kafka: encode order status %s: %w", event.EventID, err)
	}

	ts := event.ReceivedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	return kafka.Message{
		Key:   []byte(event.SupplierID.String()),
		Value: value,
		Time:  ts.UTC(),
		Headers: []kafka.Header{
			{Key: HeaderEventID, Value: []byte(event.EventID)},
			{Key: HeaderEventType, Value: []byte(supplysync.EventOrderStatusUpdated)},
			{Key: HeaderSupplierID, Value: []byte(event.SupplierID.String())},
		},
	}, nil
}
