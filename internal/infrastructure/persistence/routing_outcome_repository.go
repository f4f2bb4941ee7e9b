package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printhub/fulfillment/internal/domain/routing"
	"github.com/printhub/fulfillment/internal/infrastructure/persistence/models"
)

const outcomeBatchSize = 100

// GormRoutingOutcomeRepository implements routing.OutcomeRepository using GORM
type GormRoutingOutcomeRepository struct {
	db *gorm.DB
}

// NewGormRoutingOutcomeRepository creates a new GormRoutingOutcomeRepository
func NewGormRoutingOutcomeRepository(db *gorm.DB) *GormRoutingOutcomeRepository {
	return &GormRoutingOutcomeRepository{db: db}
}

// SaveBatch inserts outcomes in batches
func (r *GormRoutingOutcomeRepository) SaveBatch(ctx context.Context, outcomes []routing.Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	rows := make([]models.RoutingOutcomeModel, len(outcomes))
	for i, o := range outcomes {
		rows[i] = models.RoutingOutcomeModelFromDomain(o)
	}
	return r.db.WithContext(ctx).CreateInBatches(rows, outcomeBatchSize).Error
}

// Aggregate rolls up outcomes created in [from, to)
func (r *GormRoutingOutcomeRepository) Aggregate(ctx context.Context, from, to time.Time) (*routing.OutcomeAggregate, error) {
	window := func() *gorm.DB {
		return r.db.WithContext(ctx).
			Model(&models.RoutingOutcomeModel{}).
			Where("created_at >= ? AND created_at < ?", from, to)
	}

	var totals struct {
		Requests   int64
		Lines      int64
		Successful int64
	}
	if err := window().
		Select("COUNT(DISTINCT reference) AS requests, COUNT(*) AS lines, " +
			"COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0) AS successful").
		Scan(&totals).Error; err != nil {
		return nil, err
	}

	var supplierRows []struct {
		SupplierID uuid.UUID
		Routed     int64
		Failed     int64
	}
	if err := window().
		Select("supplier_id, " +
			"SUM(CASE WHEN success THEN 1 ELSE 0 END) AS routed, " +
			"SUM(CASE WHEN success THEN 0 ELSE 1 END) AS failed").
		Where("supplier_id IS NOT NULL").
		Group("supplier_id").
		Order("routed DESC, supplier_id ASC").
		Scan(&supplierRows).Error; err != nil {
		return nil, err
	}

	var reasonRows []struct {
		Reason routing.Reason
		Count  int64
	}
	if err := window().
		Select("reason, COUNT(*) AS count").
		Where("success = ?", false).
		Group("reason").
		Scan(&reasonRows).Error; err != nil {
		return nil, err
	}

	agg := &routing.OutcomeAggregate{
		Requests:   totals.Requests,
		Lines:      totals.Lines,
		Successful: totals.Successful,
		Failed:     totals.Lines - totals.Successful,
		Suppliers:  make([]routing.SupplierTally, len(supplierRows)),
		Reasons:    make(map[routing.Reason]int64, len(reasonRows)),
	}
	for i, row := range supplierRows {
		agg.Suppliers[i] = routing.SupplierTally{SupplierID: row.SupplierID, Routed: row.Routed, Failed: row.Failed}
	}
	for _, row := range reasonRows {
		agg.Reasons[row.Reason] = row.Count
	}
	return agg, nil
}

// Ensure GormRoutingOutcomeRepository implements OutcomeRepository
var _ routing.OutcomeRepository = (*GormRoutingOutcomeRepository)(nil)
