package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/printhub/fulfillment/internal/application/supplysync"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func sampleEvent() supplysync.OrderStatusEvent {
	return supplysync.OrderStatusEvent{
		EventID:    "evt-42",
		SupplierID: uuid.MustParse("2b0d7b3c-1f6e-4e2a-9d7c-5a1e0f3b9c11"),
		ReceivedAt: time.Date(2024, 6, 11, 9, 30, 0, 0, time.UTC),
		Payload:    json.RawMessage(`{"order_id":"PF-1001","status":"fulfilled"}`),
	}
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestKafkaForwarderConfig_Validate(t *testing.T) {
	t.Run("requires brokers", func(t *testing.T) {
		cfg := KafkaForwarderConfig{Topic: "status"}
		assert.Error(t, cfg.Validate())
	})

	t.Run("requires topic", func(t *testing.T) {
		cfg := KafkaForwarderConfig{Brokers: []string{"localhost:9092"}}
		assert.Error(t, cfg.Validate())
	})

	t.Run("fills defaults", func(t *testing.T) {
		cfg := KafkaForwarderConfig{Brokers: []string{"localhost:9092"}, Topic: "status"}
		require.NoError(t, cfg.Validate())
		assert.Equal(t, 50*time.Millisecond, cfg.BatchTimeout)
		assert.Equal(t, 10*time.Second, cfg.WriteTimeout)
		assert.Equal(t, 3, cfg.MaxAttempts)
	})
}

func TestNewKafkaStatusForwarder(t *testing.T) {
	f, err := NewKafkaStatusForwarder(KafkaForwarderConfig{
		Brokers: []string{"localhost:9092"},
		Topic:   "fulfillment.order-status",
	}, nil)
	require.NoError(t, err)

	w, ok := f.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "fulfillment.order-status", w.Topic)
	assert.Equal(t, kafka.RequireAll, w.RequiredAcks)
	assert.NoError(t, f.Close())
}

func TestKafkaStatusForwarder_Forward(t *testing.T) {
	w := &fakeWriter{}
	f := newKafkaStatusForwarder(w, "fulfillment.order-status", zap.NewNop())
	event := sampleEvent()

	require.NoError(t, f.Forward(context.Background(), event))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, event.SupplierID.String(), string(msg.Key))
	assert.Equal(t, event.ReceivedAt, msg.Time)
	assert.Equal(t, "evt-42", headerValue(msg, HeaderEventID))
	assert.Equal(t, supplysync.EventOrderStatusUpdated, headerValue(msg, HeaderEventType))
	assert.Equal(t, event.SupplierID.String(), headerValue(msg, HeaderSupplierID))

	var decoded supplysync.OrderStatusEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.EventID, decoded.EventID)
	assert.JSONEq(t, string(event.Payload), string(decoded.Payload))
}

func TestKafkaStatusForwarder_ForwardError(t *testing.T) {
	brokerErr := errors.New("leader not available")
	f := newKafkaStatusForwarder(&fakeWriter{err: brokerErr}, "status", zap.NewNop())

	err := f.Forward(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.ErrorIs(t, err, brokerErr)
	assert.Contains(t, err.Error(), "evt-42")
}

func TestKafkaStatusForwarder_Close(t *testing.T) {
	w := &fakeWriter{}
	f := newKafkaStatusForwarder(w, "status", zap.NewNop())
	require.NoError(t, f.Close())
	assert.True(t, w.closed)

	var nilForwarder *KafkaStatusForwarder
	assert.NoError(t, nilForwarder.Close())
}

func TestLogStatusForwarder_Forward(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	f := NewLogStatusForwarder(zap.New(core))

	require.NoError(t, f.Forward(context.Background(), sampleEvent()))
	require.Equal(t, 1, logs.Len())

	entry := logs.All()[0]
	assert.Equal(t, "Order status update received", entry.Message)
	assert.Equal(t, "evt-42", entry.ContextMap()["event_id"])
	assert.NoError(t, f.Close())
}
