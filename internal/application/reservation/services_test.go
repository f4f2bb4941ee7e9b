package reservation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/printhub/fulfillment/internal/domain/reservation"
	"github.com/printhub/fulfillment/internal/domain/shared"
)

func TestCreditService_Lifecycle(t *testing.T) {
	store := newMemStore()
	credit := NewCreditService(newTestLedger(store), store, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, credit.SetLimit(ctx, "cust-1", decimal.NewFromInt(10000)))

	check, err := credit.CheckCredit(ctx, "cust-1", decimal.NewFromInt(6000))
	require.NoError(t, err)
	assert.True(t, check.Allowed)

	d, err := credit.ReserveCredit(ctx, "cust-1", decimal.NewFromInt(6000), "ORD-1")
	require.NoError(t, err)
	require.True(t, d.Allowed)

	denied, err := credit.ReserveCredit(ctx, "cust-1", decimal.NewFromInt(6000), "ORD-2")
	require.NoError(t, err)
	assert.False(t, denied.Allowed)
	assert.True(t, denied.Shortfall.Equal(decimal.NewFromInt(2000)))

	status, err := credit.Status(ctx, "cust-1")
	require.NoError(t, err)
	assert.True(t, status.Outstanding.Equal(decimal.NewFromInt(6000)))
	assert.True(t, status.Available.Equal(decimal.NewFromInt(4000)))

	_, err = credit.RecordPayment(ctx, d.Record.ID)
	require.NoError(t, err)

	status, err = credit.Status(ctx, "cust-1")
	require.NoError(t, err)
	assert.True(t, status.Outstanding.IsZero())
}

func TestCreditService_History(t *testing.T) {
	store := newMemStore()
	credit := NewCreditService(newTestLedger(store), store, zap.NewNop())
	ctx := context.Background()
	require.NoError(t, credit.SetLimit(ctx, "cust-1", decimal.NewFromInt(10000)))

	day := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	ids := make([]uuid.UUID, 3)
	for i, ref := range []string{"ORD-1", "ORD-2", "ORD-3"} {
		d, err := credit.ReserveCredit(ctx, "cust-1", decimal.NewFromInt(int64(100*(i+1))), ref)
		require.NoError(t, err)
		require.True(t, d.Allowed)
		ids[i] = d.Record.ID
		store.records[d.Record.ID].CreatedAt = day.AddDate(0, 0, i)
	}
	_, err := credit.RecordPayment(ctx, ids[0])
	require.NoError(t, err)

	all, total, err := credit.History(ctx, "cust-1", reservation.HistoryFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"ORD-3", "ORD-2", "ORD-1"}, []string{all[0].Reference, all[1].Reference, all[2].Reference})

	paid, total, err := credit.History(ctx, "cust-1", reservation.HistoryFilter{State: reservation.StateReleased})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, ids[0], paid[0].ID)

	page, total, err := credit.History(ctx, "cust-1", reservation.HistoryFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 1)
	assert.Equal(t, "ORD-2", page[0].Reference)

	window, _, err := credit.History(ctx, "cust-1", reservation.HistoryFilter{From: day.AddDate(0, 0, 1), To: day.AddDate(0, 0, 2)})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, "ORD-2", window[0].Reference)

	_, _, err = credit.History(ctx, " ", reservation.HistoryFilter{})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, _, err = credit.History(ctx, "cust-1", reservation.HistoryFilter{State: reservation.StateFailed})
	assert.ErrorIs(t, err, reservation.ErrInvalidHistoryFilter)
}

func TestCreditService_BlockAndUnblock(t *testing.T) {
	store := newMemStore()
	credit := NewCreditService(newTestLedger(store), store, zap.NewNop())
	ctx := context.Background()
	require.NoError(t, credit.SetLimit(ctx, "cust-2", decimal.NewFromInt(100)))

	require.NoError(t, credit.Block(ctx, "cust-2"))
	d, err := credit.ReserveCredit(ctx, "cust-2", decimal.NewFromInt(1), "")
	require.NoError(t, err)
	assert.True(t, d.Blocked)
	assert.False(t, d.Allowed)

	require.NoError(t, credit.Unblock(ctx, "cust-2"))
	d, err = credit.ReserveCredit(ctx, "cust-2", decimal.NewFromInt(1), "")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestCreditService_Validation(t *testing.T) {
	store := newMemStore()
	credit := NewCreditService(newTestLedger(store), store, nil)
	ctx := context.Background()

	assert.ErrorIs(t, credit.SetLimit(ctx, "", decimal.NewFromInt(1)), shared.ErrValidation)
	assert.ErrorIs(t, credit.SetLimit(ctx, "cust", decimal.NewFromInt(-1)), shared.ErrValidation)
	assert.ErrorIs(t, credit.Block(ctx, " "), shared.ErrValidation)
}

func TestCreditService_RecordPaymentRejectsOtherKinds(t *testing.T) {
	store := newMemStore()
	ledger := newTestLedger(store)
	credit := NewCreditService(ledger, store, zap.NewNop())

	rec, err := ledger.AssignSequence(context.Background(), reservation.KindAssetVersion, "asset", "")
	require.NoError(t, err)

	_, err = credit.RecordPayment(context.Background(), rec.ID)
	assert.ErrorIs(t, err, reservation.ErrInvalidTransition)
}

func TestStockService_ReserveAndRelease(t *testing.T) {
	store := newMemStore()
	offerID := uuid.New()
	store.stock[offerID.String()] = 10
	stock := NewStockService(newTestLedger(store))
	ctx := context.Background()

	d, err := stock.ReserveOffer(ctx, offerID, 8, "ORD-1")
	require.NoError(t, err)
	require.True(t, d.Allowed)
	assert.Equal(t, 2, store.stock[offerID.String()])

	d2, err := stock.ReserveOffer(ctx, offerID, 3, "ORD-2")
	require.NoError(t, err)
	assert.False(t, d2.Allowed)

	_, err = stock.Release(ctx, d.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, store.stock[offerID.String()])

	_, err = stock.ReserveOffer(ctx, offerID, 0, "")
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestVersionService_NextVersion(t *testing.T) {
	versions := NewVersionService(newTestLedger(newMemStore()))
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := versions.NextVersion(ctx, "design-42", "")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	other, err := versions.NextVersion(ctx, "design-43", "")
	require.NoError(t, err)
	assert.EqualValues(t, 1, other)
}
