package telemetry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type recordingProcessor struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (p *recordingProcessor) OnEmit(_ context.Context, r *sdklog.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, r.Clone())
	return nil
}

func (p *recordingProcessor) Enabled(context.Context, sdklog.EnabledParameters) bool { return true }

func (p *recordingProcessor) Shutdown(context.Context) error   { return nil }
func (p *recordingProcessor) ForceFlush(context.Context) error { return nil }

func (p *recordingProcessor) all() []sdklog.Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]sdklog.Record(nil), p.records...)
}

func TestNewLoggerProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	lp, err := NewLoggerProvider(ctx, Config{}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, lp.IsEnabled())
	assert.NoError(t, lp.ForceFlush(ctx))
	assert.NoError(t, lp.Shutdown(ctx))
}

func TestLoggerProvider_Bridge(t *testing.T) {
	core, local := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	proc := &recordingProcessor{}
	lp := NewLoggerProviderWithProcessor("fulfillment", proc, zap.NewNop())
	log := lp.Bridge(base)

	log.Debug("below base level")
	log.Info("Order routed", zap.String("sku", "TEE-BLK-M"))
	log.With(zap.String("supplier", "printful")).Warn("Offer sync failed")

	assert.Equal(t, 2, local.Len(), "base core still receives entries")

	records := proc.all()
	require.Len(t, records, 2)
	assert.Equal(t, "Order routed", records[0].Body().AsString())
	assert.Equal(t, otellog.SeverityInfo, records[0].Severity())
	assert.Equal(t, otellog.SeverityWarn, records[1].Severity())
}

func TestBridge_NilProvider(t *testing.T) {
	base := zaptest.NewLogger(t)
	var lp *LoggerProvider
	assert.Same(t, base, lp.Bridge(base))
}

func TestLevelFilterCore(t *testing.T) {
	inner, logs := observer.New(zapcore.DebugLevel)
	core := &levelFilterCore{Core: inner, minLevel: zapcore.WarnLevel}

	assert.False(t, core.Enabled(zapcore.InfoLevel))
	assert.True(t, core.Enabled(zapcore.ErrorLevel))

	log := zap.New(core.With([]zapcore.Field{zap.String("job", "inventory")}))
	log.Info("dropped")
	log.Error("kept")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "inventory", logs.All()[0].ContextMap()["job"])
}
