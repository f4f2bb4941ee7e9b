package reservation

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printhub/fulfillment/internal/domain/shared"
)

func TestNewBoundedRecord(t *testing.T) {
	rec, err := NewBoundedRecord(KindCredit, "cust-1", decimal.NewFromInt(6000), "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, StateReserved, rec.State)
	assert.Equal(t, StrategyBounded, rec.Strategy)
	assert.False(t, rec.CountsAgainstBound())

	require.NoError(t, rec.Commit())
	assert.True(t, rec.CountsAgainstBound())

	require.NoError(t, rec.Release())
	assert.Equal(t, StateReleased, rec.State)
	assert.NotNil(t, rec.ReleasedAt)
	assert.False(t, rec.CountsAgainstBound())
	assert.ErrorIs(t, rec.Release(), ErrInvalidTransition)
}

func TestNewBoundedRecord_Validation(t *testing.T) {
	tests := []struct {
		name       string
		kind       Kind
		resourceID string
		amount     decimal.Decimal
		wantErr    error
	}{
		{"empty kind", "", "cust-1", decimal.NewFromInt(1), ErrInvalidKind},
		{"padded kind", " credit", "cust-1", decimal.NewFromInt(1), ErrInvalidKind},
		{"empty resource", KindCredit, "  ", decimal.NewFromInt(1), ErrInvalidResourceID},
		{"zero amount", KindCredit, "cust-1", decimal.Zero, ErrInvalidAmount},
		{"negative amount", KindStock, "offer-1", decimal.NewFromInt(-4), ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBoundedRecord(tt.kind, tt.resourceID, tt.amount, "")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestSequenceRecord(t *testing.T) {
	rec, err := NewSequenceRecord(KindAssetVersion, "asset-1", 7, "")
	require.NoError(t, err)
	assert.Equal(t, int64(7), rec.Sequence())
	assert.Equal(t, StrategySequence, rec.Strategy)
	assert.False(t, rec.CountsAgainstBound())

	rec.Fail()
	assert.Equal(t, StateFailed, rec.State)
	assert.ErrorIs(t, rec.Commit(), ErrInvalidTransition)
}

func TestDecide(t *testing.T) {
	d := func(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

	t.Run("Within bound", func(t *testing.T) {
		got := Decide(d(10000), d(0), d(6000), false)
		assert.True(t, got.Allowed)
		assert.True(t, got.Available.Equal(d(10000)))
		assert.True(t, got.Shortfall.IsZero())
	})

	t.Run("Exactly at bound", func(t *testing.T) {
		got := Decide(d(20000), d(15000), d(5000), false)
		assert.True(t, got.Allowed)
	})

	t.Run("Over bound reports shortfall", func(t *testing.T) {
		got := Decide(d(10000), d(6000), d(6000), false)
		assert.False(t, got.Allowed)
		assert.True(t, got.Shortfall.Equal(d(2000)))
		assert.True(t, got.Available.Equal(d(4000)))
	})

	t.Run("Blocked is never allowed", func(t *testing.T) {
		got := Decide(d(10000), d(0), d(1), true)
		assert.False(t, got.Allowed)
		assert.True(t, got.Blocked)
	})

	t.Run("Committed above bound floors availability", func(t *testing.T) {
		got := Decide(d(100), d(150), d(1), false)
		assert.False(t, got.Allowed)
		assert.True(t, got.Available.IsZero())
	})
}

func TestConcurrencyErrorsWrapShared(t *testing.T) {
	assert.True(t, errors.Is(ErrRetryable, shared.ErrConcurrencyConflict))
	assert.True(t, errors.Is(ErrConcurrencyExhausted, shared.ErrConcurrencyConflict))
	assert.False(t, IsValidationError(ErrRetryable))
}

func TestHistoryFilter_Normalize(t *testing.T) {
	day := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	f, err := HistoryFilter{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, DefaultHistoryLimit, f.Limit)

	f, err = HistoryFilter{Limit: 5000, State: StateReleased, From: day, To: day.Add(time.Hour)}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, MaxHistoryLimit, f.Limit)

	invalid := []HistoryFilter{
		{State: StateReserved},
		{State: "paid"},
		{From: day, To: day},
		{From: day.Add(time.Hour), To: day},
		{Offset: -1},
		{Limit: -1},
	}
	for _, in := range invalid {
		_, err := in.Normalize()
		assert.ErrorIs(t, err, ErrInvalidHistoryFilter, "%+v", in)
		assert.True(t, IsValidationError(err))
	}
}
