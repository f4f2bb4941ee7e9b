package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/printhub/fulfillment/internal/domain/reservation"
	"github.com/printhub/fulfillment/internal/infrastructure/persistence/models"
)

// DefaultLockTimeout bounds how long a bounded reservation waits for its counter row
const DefaultLockTimeout = 2 * time.Second

// GormReservationStore implements reservation.Store and reservation.BoundRepository.
//
// Bounded reservations lock the counter row (reservation_bounds, or the
// supplier_offers row for stock) with SELECT ... FOR UPDATE under a
// transaction-local lock_timeout, so concurrent writers on the same counter
// serialize and a stuck lock surfaces as reservation.ErrRetryable.
// Sequence reservations rely on the uq_reservation_sequence partial index.
type GormReservationStore struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

// ReservationStoreOption configures a GormReservationStore
type ReservationStoreOption func(*GormReservationStore)

// WithLockTimeout overrides DefaultLockTimeout
func WithLockTimeout(d time.Duration) ReservationStoreOption {
	return func(s *GormReservationStore) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// NewGormReservationStore creates a new GormReservationStore
func NewGormReservationStore(db *gorm.DB, opts ...ReservationStoreOption) *GormReservationStore {
	s := &GormReservationStore{db: db, lockTimeout: DefaultLockTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ---------------------------------------------------------------------------
// Bounded strategy
// ---------------------------------------------------------------------------

// ReserveWithinBound locks the counter, re-reads the committed total and
// persists rec as committed only when the bound holds.
func (s *GormReservationStore) ReserveWithinBound(ctx context.Context, rec *reservation.Record) (*reservation.Decision, error) {
	if rec.Strategy != reservation.StrategyBounded {
		return nil, fmt.Errorf("reserve within bound: %w", reservation.ErrInvalidTransition)
	}
	if rec.Kind == reservation.KindStock && !rec.Amount.IsInteger() {
		return nil, reservation.ErrInvalidAmount
	}

	var decision *reservation.Decision
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.setLockTimeout(tx); err != nil {
			return err
		}

		var err error
		if rec.Kind == reservation.KindStock {
			decision, err = s.decideStock(tx, rec.ResourceID, rec.Amount, true)
		} else {
			decision, err = s.decideBound(tx, rec.Kind, rec.ResourceID, rec.Amount, true)
		}
		if err != nil || !decision.Allowed {
			return err
		}

		if rec.Kind == reservation.KindStock {
			if err := tx.Model(&models.OfferModel{}).
				Where("id = ?", rec.ResourceID).
				Updates(map[string]any{
					"stock_quantity": gorm.Expr("stock_quantity - ?", rec.Amount.IntPart()),
					"updated_at":     time.Now(),
				}).Error; err != nil {
				return err
			}
		}

		model := models.ReservationRecordModelFromDomain(rec)
		model.State = reservation.StateCommitted
		return tx.Create(model).Error
	})
	if err != nil {
		return nil, classifyStoreError(err)
	}

	if decision.Allowed {
		if err := rec.Commit(); err != nil {
			return nil, err
		}
		decision.Record = rec
	}
	return decision, nil
}

// CheckWithinBound computes the decision from current values without locking or writing
func (s *GormReservationStore) CheckWithinBound(ctx context.Context, kind reservation.Kind, resourceID string, amount decimal.Decimal) (*reservation.Decision, error) {
	tx := s.db.WithContext(ctx)
	var (
		decision *reservation.Decision
		err      error
	)
	if kind == reservation.KindStock {
		decision, err = s.decideStock(tx, resourceID, amount, false)
	} else {
		decision, err = s.decideBound(tx, kind, resourceID, amount, false)
	}
	if err != nil {
		return nil, classifyStoreError(err)
	}
	return decision, nil
}

// CommittedTotal sums committed bounded records for a counter
func (s *GormReservationStore) CommittedTotal(ctx context.Context, kind reservation.Kind, resourceID string) (decimal.Decimal, error) {
	return committedTotal(s.db.WithContext(ctx), kind, resourceID)
}

func (s *GormReservationStore) setLockTimeout(tx *gorm.DB) error {
	// SET does not accept bind parameters
	return tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())).Error
}

func (s *GormReservationStore) decideBound(tx *gorm.DB, kind reservation.Kind, resourceID string, amount decimal.Decimal, lock bool) (*reservation.Decision, error) {
	q := tx
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var bound models.ReservationBoundModel
	if err := q.Where("kind = ? AND resource_id = ?", kind, resourceID).First(&bound).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, reservation.ErrUnknownResource
		}
		return nil, err
	}

	committed, err := committedTotal(tx, kind, resourceID)
	if err != nil {
		return nil, err
	}
	return reservation.Decide(bound.Limit, committed, amount, bound.Blocked), nil
}

// decideStock treats the offer's remaining stock as the bound.
// An unavailable offer is reported as blocked.
func (s *GormReservationStore) decideStock(tx *gorm.DB, resourceID string, amount decimal.Decimal, lock bool) (*reservation.Decision, error) {
	offerID, err := uuid.Parse(resourceID)
	if err != nil {
		return nil, reservation.ErrUnknownResource
	}
	q := tx
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var offer models.OfferModel
	if err := q.Select("id", "stock_quantity", "is_available").
		Where("id = ?", offerID).
		First(&offer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, reservation.ErrUnknownResource
		}
		return nil, err
	}
	return reservation.Decide(decimal.NewFromInt(int64(offer.StockQuantity)), decimal.Zero, amount, !offer.IsAvailable), nil
}

func committedTotal(tx *gorm.DB, kind reservation.Kind, resourceID string) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := tx.Model(&models.ReservationRecordModel{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("kind = ? AND resource_id = ? AND strategy = ? AND state = ?",
			kind, resourceID, reservation.StrategyBounded, reservation.StateCommitted).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// ---------------------------------------------------------------------------
// Sequence strategy
// ---------------------------------------------------------------------------

// MaxSequence returns the highest sequence ever assigned, including released ones
func (s *GormReservationStore) MaxSequence(ctx context.Context, kind reservation.Kind, resourceID string) (int64, error) {
	var result struct {
		MaxSeq decimal.Decimal
	}
	if err := s.db.WithContext(ctx).
		Model(&models.ReservationRecordModel{}).
		Select("COALESCE(MAX(amount), 0) AS max_seq").
		Where("kind = ? AND resource_id = ? AND strategy = ?", kind, resourceID, reservation.StrategySequence).
		Scan(&result).Error; err != nil {
		return 0, err
	}
	return result.MaxSeq.IntPart(), nil
}

// InsertSequence persists rec as committed unless its number is already taken
func (s *GormReservationStore) InsertSequence(ctx context.Context, rec *reservation.Record) error {
	if rec.Strategy != reservation.StrategySequence {
		return fmt.Errorf("insert sequence: %w", reservation.ErrInvalidTransition)
	}
	model := models.ReservationRecordModelFromDomain(rec)
	model.State = reservation.StateCommitted
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return reservation.ErrDuplicateSequence
		}
		return classifyStoreError(err)
	}
	return rec.Commit()
}

// ---------------------------------------------------------------------------
// Records
// ---------------------------------------------------------------------------

// FindByID finds a record by ID
func (s *GormReservationStore) FindByID(ctx context.Context, id uuid.UUID) (*reservation.Record, error) {
	var model models.ReservationRecordModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, reservation.ErrRecordNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// History pages through a counter's records, newest first
func (s *GormReservationStore) History(ctx context.Context, kind reservation.Kind, resourceID string, filter reservation.HistoryFilter) ([]reservation.Record, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Model(&models.ReservationRecordModel{}).
			Where("kind = ? AND resource_id = ?", kind, resourceID)
		if filter.State != "" {
			db = db.Where("state = ?", filter.State)
		}
		if !filter.From.IsZero() {
			db = db.Where("created_at >= ?", filter.From)
		}
		if !filter.To.IsZero() {
			db = db.Where("created_at < ?", filter.To)
		}
		return db
	}

	var total int64
	if err := s.db.WithContext(ctx).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []reservation.Record{}, 0, nil
	}

	query := s.db.WithContext(ctx).Scopes(scope).Order("created_at DESC").Order("id")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	var recordModels []models.ReservationRecordModel
	if err := query.Find(&recordModels).Error; err != nil {
		return nil, 0, err
	}

	records := make([]reservation.Record, len(recordModels))
	for i := range recordModels {
		records[i] = *recordModels[i].ToDomain()
	}
	return records, total, nil
}

// Release moves a committed record to released. Releasing a stock record
// returns its units to the offer in the same transaction.
func (s *GormReservationStore) Release(ctx context.Context, id uuid.UUID) (*reservation.Record, error) {
	var rec *reservation.Record
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.setLockTimeout(tx); err != nil {
			return err
		}
		var model models.ReservationRecordModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return reservation.ErrRecordNotFound
			}
			return err
		}

		rec = model.ToDomain()
		if err := rec.Release(); err != nil {
			return err
		}
		if err := tx.Model(&models.ReservationRecordModel{}).
			Where("id = ?", rec.ID).
			Updates(map[string]any{
				"state":       rec.State,
				"released_at": rec.ReleasedAt,
				"updated_at":  rec.UpdatedAt,
			}).Error; err != nil {
			return err
		}

		if rec.Kind == reservation.KindStock && rec.Strategy == reservation.StrategyBounded {
			return tx.Model(&models.OfferModel{}).
				Where("id = ?", rec.ResourceID).
				Updates(map[string]any{
					"stock_quantity": gorm.Expr("stock_quantity + ?", rec.Amount.IntPart()),
					"updated_at":     time.Now(),
				}).Error
		}
		return nil
	})
	if err != nil {
		return nil, classifyStoreError(err)
	}
	return rec, nil
}

// ---------------------------------------------------------------------------
// Bounds
// ---------------------------------------------------------------------------

// FindBound returns the configured limit of a counter
func (s *GormReservationStore) FindBound(ctx context.Context, kind reservation.Kind, resourceID string) (*reservation.Bound, error) {
	var model models.ReservationBoundModel
	if err := s.db.WithContext(ctx).
		Where("kind = ? AND resource_id = ?", kind, resourceID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, reservation.ErrUnknownResource
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// SetLimit creates the counter or replaces its limit
func (s *GormReservationStore) SetLimit(ctx context.Context, kind reservation.Kind, resourceID string, limit decimal.Decimal) error {
	if limit.IsNegative() {
		return reservation.ErrInvalidAmount
	}
	return s.upsertBound(ctx, &models.ReservationBoundModel{
		Kind:       kind,
		ResourceID: resourceID,
		Limit:      limit,
		UpdatedAt:  time.Now(),
	}, "bound_limit")
}

// SetBlocked creates the counter or toggles its blocked flag
func (s *GormReservationStore) SetBlocked(ctx context.Context, kind reservation.Kind, resourceID string, blocked bool) error {
	return s.upsertBound(ctx, &models.ReservationBoundModel{
		Kind:       kind,
		ResourceID: resourceID,
		Limit:      decimal.Zero,
		Blocked:    blocked,
		UpdatedAt:  time.Now(),
	}, "blocked")
}

func (s *GormReservationStore) upsertBound(ctx context.Context, model *models.ReservationBoundModel, column string) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kind"}, {Name: "resource_id"}},
		DoUpdates: clause.AssignmentColumns([]string{column, "updated_at"}),
	}).Create(model).Error
}

// classifyStoreError keeps domain errors intact and maps transient lock
// failures to reservation.ErrRetryable.
func classifyStoreError(err error) error {
	switch {
	case errors.Is(err, reservation.ErrUnknownResource),
		errors.Is(err, reservation.ErrRecordNotFound),
		errors.Is(err, reservation.ErrInvalidTransition),
		errors.Is(err, reservation.ErrDuplicateSequence):
		return err
	case isTransientLockError(err), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", reservation.ErrRetryable, err)
	default:
		return err
	}
}

// Ensure GormReservationStore implements the ledger ports
var (
	_ reservation.Store           = (*GormReservationStore)(nil)
	_ reservation.BoundRepository = (*GormReservationStore)(nil)
)
