package logger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func sqlFunc(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestGormLogger_Options(t *testing.T) {
	gl := NewGormLogger(zap.NewNop(), gormlogger.Warn, WithSlowThreshold(time.Second), WithFullSQL(true))
	assert.Equal(t, time.Second, gl.slowThreshold)
	assert.True(t, gl.logFullSQL)

	clone := gl.LogMode(gormlogger.Info).(*GormLogger)
	assert.Equal(t, gormlogger.Info, clone.logLevel)
	assert.Equal(t, gormlogger.Warn, gl.logLevel)
}

func TestGormLogger_Trace(t *testing.T) {
	t.Run("logs errors with request id", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		gl := NewGormLogger(zap.NewNop(), gormlogger.Warn)
		gl.logger = zap.New(core)
		ctx := WithRequestID(context.Background(), zap.NewNop(), "req-9")

		gl.Trace(ctx, time.Now(), sqlFunc("SELECT 1 FOR UPDATE", 0), errors.New("canceling statement due to lock timeout"))

		require.Equal(t, 1, logs.Len())
		entry := logs.All()[0]
		assert.Equal(t, "SQL error", entry.Message)
		assert.Equal(t, "req-9", entry.ContextMap()["request_id"])
	})

	t.Run("skips record not found", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		gl := NewGormLogger(zap.NewNop(), gormlogger.Warn)
		gl.logger = zap.New(core)

		gl.Trace(context.Background(), time.Now(), sqlFunc("SELECT 1", 0), gormlogger.ErrRecordNotFound)
		assert.Equal(t, 0, logs.Len())
	})

	t.Run("warns on slow query", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		gl := NewGormLogger(zap.NewNop(), gormlogger.Warn, WithSlowThreshold(time.Millisecond))
		gl.logger = zap.New(core)

		gl.Trace(context.Background(), time.Now().Add(-time.Second), sqlFunc("SELECT 1", 1), nil)
		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "Slow SQL", logs.All()[0].Message)
	})

	t.Run("truncates long statements", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		gl := NewGormLogger(zap.NewNop(), gormlogger.Info, WithSlowThreshold(0))
		gl.logger = zap.New(core)

		gl.Trace(context.Background(), time.Now(), sqlFunc(strings.Repeat("x", 600), 1), nil)
		require.Equal(t, 1, logs.Len())
		logged := logs.All()[0].ContextMap()["sql"].(string)
		assert.Len(t, logged, 515)
	})

	t.Run("demotes expected contention", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		lockTimeout := errors.New("canceling statement due to lock timeout")
		gl := NewGormLogger(zap.NewNop(), gormlogger.Warn,
			WithExpectedErrors(func(err error) bool { return errors.Is(err, lockTimeout) }))
		gl.logger = zap.New(core)

		gl.Trace(context.Background(), time.Now(), sqlFunc("SELECT * FROM reservation_bounds FOR UPDATE", 0), lockTimeout)

		require.Equal(t, 1, logs.Len())
		entry := logs.All()[0]
		assert.Equal(t, "SQL contention", entry.Message)
		assert.Equal(t, zapcore.DebugLevel, entry.Level)
	})

	t.Run("silent logs nothing", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		gl := NewGormLogger(zap.NewNop(), gormlogger.Silent)
		gl.logger = zap.New(core)

		gl.Trace(context.Background(), time.Now(), sqlFunc("SELECT 1", 1), errors.New("x"))
		assert.Equal(t, 0, logs.Len())
	})
}

func TestGormLogger_Printf(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	gl := NewGormLogger(zap.NewNop(), gormlogger.Warn)
	gl.logger = zap.New(core)
	ctx := WithRequestID(context.Background(), zap.NewNop(), "req-3")

	gl.Info(ctx, "migrating %s", "offers")
	gl.Warn(ctx, "slow callback %d", 3)
	gl.Error(ctx, "failed: %v", "boom")

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "slow callback 3", logs.All()[0].Message)
	assert.Equal(t, zapcore.ErrorLevel, logs.All()[1].Level)
	assert.Equal(t, "req-3", logs.All()[1].ContextMap()["request_id"])
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("anything"))
}
