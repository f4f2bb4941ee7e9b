package supplysync

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/printhub/fulfillment/internal/domain/shared"
	"github.com/printhub/fulfillment/internal/domain/supplier"
)

// RegisterOfferInput maps an internal SKU to a supplier SKU with its terms
type RegisterOfferInput struct {
	SKU           string            `json:"sku" validate:"required,max=100"`
	SupplierID    uuid.UUID         `json:"supplier_id" validate:"required"`
	SupplierSKU   string            `json:"supplier_sku" validate:"required,max=100"`
	Cost          decimal.Decimal   `json:"cost"`
	StockQuantity int               `json:"stock_quantity" validate:"gte=0"`
	IsAvailable   bool              `json:"is_available"`
	IsPreferred   bool              `json:"is_preferred"`
	Priority      int               `json:"priority"`
	MOQ           int               `json:"moq" validate:"gte=0"`
	LeadTime      supplier.LeadTime `json:"lead_time"`
}

// RegisterOffer creates an offer for an existing supplier. Later syncs keep
// its supplier-owned columns current.
func (s *Service) RegisterOffer(ctx context.Context, input RegisterOfferInput) (*supplier.Offer, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, shared.NewValidationError(err.Error())
	}

	if _, err := s.suppliers.FindByID(ctx, input.SupplierID); err != nil {
		if errors.Is(err, supplier.ErrSupplierNotFound) {
			return nil, shared.NewValidationError(fmt.Sprintf("unknown supplier %s", input.SupplierID))
		}
		return nil, err
	}

	offer, err := supplier.NewOffer(input.SKU, input.SupplierID, input.SupplierSKU, supplier.OfferTerms{
		Cost:          input.Cost,
		StockQuantity: input.StockQuantity,
		IsAvailable:   input.IsAvailable,
		IsPreferred:   input.IsPreferred,
		Priority:      input.Priority,
		MOQ:           input.MOQ,
		LeadTime:      input.LeadTime,
	})
	if err != nil {
		return nil, shared.NewValidationError(err.Error())
	}

	if err := s.offers.Create(ctx, offer); err != nil {
		if errors.Is(err, supplier.ErrOfferAlreadyExists) {
			return nil, shared.NewDomainError(shared.ErrAlreadyExists.Code, err.Error())
		}
		return nil, err
	}

	s.logger.Info("Offer registered",
		zap.String("offer_id", offer.ID.String()),
		zap.String("sku", offer.SKU),
		zap.String("supplier_id", offer.SupplierID.String()),
		zap.String("supplier_sku", offer.SupplierSKU),
	)
	return offer, nil
}
