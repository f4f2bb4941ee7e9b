package reservation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/printhub/fulfillment/internal/domain/reservation"
	"github.com/printhub/fulfillment/internal/domain/shared"
)

// ---------------------------------------------------------------------------
// Credit
// ---------------------------------------------------------------------------

// CreditStatus is a customer's credit position
type CreditStatus struct {
	CustomerID  string          `json:"customer_id"`
	Limit       decimal.Decimal `json:"limit"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Available   decimal.Decimal `json:"available"`
	Blocked     bool            `json:"blocked"`
}

// CreditService manages customer credit limits on top of the ledger
type CreditService struct {
	ledger *Ledger
	bounds reservation.BoundRepository
	logger *zap.Logger
}

// NewCreditService creates a new CreditService
func NewCreditService(ledger *Ledger, bounds reservation.BoundRepository, logger *zap.Logger) *CreditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CreditService{ledger: ledger, bounds: bounds, logger: logger.Named("credit")}
}

// SetLimit sets a customer's credit limit. Lowering it below the outstanding
// debt is allowed; further reservations are then denied until payments arrive.
func (s *CreditService) SetLimit(ctx context.Context, customerID string, limit decimal.Decimal) error {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return shared.NewValidationError("customer ID is required")
	}
	if limit.IsNegative() {
		return shared.NewValidationError("credit limit cannot be negative")
	}
	if err := s.bounds.SetLimit(ctx, reservation.KindCredit, customerID, limit); err != nil {
		return err
	}
	s.logger.Info("Credit limit set",
		zap.String("customer_id", customerID),
		zap.String("limit", limit.String()),
	)
	return nil
}

// Block stops every new credit reservation for a customer
func (s *CreditService) Block(ctx context.Context, customerID string) error {
	return s.setBlocked(ctx, customerID, true)
}

// Unblock re-enables credit reservations for a customer
func (s *CreditService) Unblock(ctx context.Context, customerID string) error {
	return s.setBlocked(ctx, customerID, false)
}

func (s *CreditService) setBlocked(ctx context.Context, customerID string, blocked bool) error {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return shared.NewValidationError("customer ID is required")
	}
	if err := s.bounds.SetBlocked(ctx, reservation.KindCredit, customerID, blocked); err != nil {
		return err
	}
	s.logger.Info("Credit block changed",
		zap.String("customer_id", customerID),
		zap.Bool("blocked", blocked),
	)
	return nil
}

// CheckCredit reports whether amount could be reserved now
func (s *CreditService) CheckCredit(ctx context.Context, customerID string, amount decimal.Decimal) (*reservation.Decision, error) {
	return s.ledger.Check(ctx, reservation.KindCredit, customerID, amount)
}

// ReserveCredit adds amount to a customer's outstanding debt if the limit allows it
func (s *CreditService) ReserveCredit(ctx context.Context, customerID string, amount decimal.Decimal, reference string) (*reservation.Decision, error) {
	return s.ledger.Reserve(ctx, ReserveInput{
		Kind:       reservation.KindCredit,
		ResourceID: customerID,
		Amount:     amount,
		Reference:  reference,
	})
}

// RecordPayment settles a credit reservation, freeing its amount
func (s *CreditService) RecordPayment(ctx context.Context, recordID uuid.UUID) (*reservation.Record, error) {
	rec, err := s.ledger.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec.Kind != reservation.KindCredit {
		return nil, fmt.Errorf("record %s is a %s reservation: %w", recordID, rec.Kind, reservation.ErrInvalidTransition)
	}
	return s.ledger.Release(ctx, recordID)
}

// Status returns the customer's limit, outstanding debt and block flag
func (s *CreditService) Status(ctx context.Context, customerID string) (*CreditStatus, error) {
	customerID = strings.TrimSpace(customerID)
	bound, err := s.bounds.FindBound(ctx, reservation.KindCredit, customerID)
	if err != nil {
		return nil, err
	}
	outstanding, err := s.ledger.Outstanding(ctx, reservation.KindCredit, customerID)
	if err != nil {
		return nil, err
	}
	available := bound.Limit.Sub(outstanding)
	if available.IsNegative() {
		available = decimal.Zero
	}
	return &CreditStatus{
		CustomerID:  customerID,
		Limit:       bound.Limit,
		Outstanding: outstanding,
		Available:   available,
		Blocked:     bound.Blocked,
	}, nil
}

// History lists a customer's credit reservations and payments, newest first.
// Filter by StateCommitted for open debt or StateReleased for paid amounts.
func (s *CreditService) History(ctx context.Context, customerID string, filter reservation.HistoryFilter) ([]reservation.Record, int64, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, 0, shared.NewValidationError("customer ID is required")
	}
	records, total, err := s.ledger.History(ctx, reservation.KindCredit, customerID, filter)
	if err != nil {
		return nil, 0, err
	}
	s.logger.Debug("Credit history read",
		zap.String("customer_id", customerID),
		zap.Int("returned", len(records)),
		zap.Int64("total", total),
	)
	return records, total, nil
}

// ---------------------------------------------------------------------------
// Stock
// ---------------------------------------------------------------------------

// StockService claims supplier offer stock. It satisfies the routing engine's
// StockReserver port.
type StockService struct {
	ledger *Ledger
}

// NewStockService creates a new StockService
func NewStockService(ledger *Ledger) *StockService {
	return &StockService{ledger: ledger}
}

// ReserveOffer takes quantity units from an offer's remaining stock
func (s *StockService) ReserveOffer(ctx context.Context, offerID uuid.UUID, quantity int, reference string) (*reservation.Decision, error) {
	if quantity <= 0 {
		return nil, shared.NewValidationError("quantity must be positive")
	}
	return s.ledger.Reserve(ctx, ReserveInput{
		Kind:       reservation.KindStock,
		ResourceID: offerID.String(),
		Amount:     decimal.NewFromInt(int64(quantity)),
		Reference:  reference,
	})
}

// Release returns a stock reservation's units to its offer
func (s *StockService) Release(ctx context.Context, recordID uuid.UUID) (*reservation.Record, error) {
	return s.ledger.Release(ctx, recordID)
}

// ---------------------------------------------------------------------------
// Versions
// ---------------------------------------------------------------------------

// VersionService hands out gap-free version numbers per resource
type VersionService struct {
	ledger *Ledger
}

// NewVersionService creates a new VersionService
func NewVersionService(ledger *Ledger) *VersionService {
	return &VersionService{ledger: ledger}
}

// NextVersion assigns the next version of resourceID
func (s *VersionService) NextVersion(ctx context.Context, resourceID, reference string) (int64, error) {
	rec, err := s.ledger.AssignSequence(ctx, reservation.KindAssetVersion, resourceID, reference)
	if err != nil {
		return 0, err
	}
	return rec.Sequence(), nil
}
