package routing

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/printhub/fulfillment/internal/domain/shared"
	"github.com/printhub/fulfillment/internal/domain/supplier"
	"github.com/printhub/fulfillment/internal/infrastructure/telemetry"
)

// SupplierInventory is one supplier's live answer for a SKU
type SupplierInventory struct {
	SupplierID   uuid.UUID         `json:"supplier_id"`
	SupplierName string            `json:"supplier_name"`
	OfferID      uuid.UUID         `json:"offer_id"`
	Available    bool              `json:"available"`
	Quantity     int               `json:"quantity"`
	LeadTime     supplier.LeadTime `json:"lead_time"`
}

// InventoryFailure is a supplier that could not be queried
type InventoryFailure struct {
	SupplierID uuid.UUID `json:"supplier_id"`
	Error      string    `json:"error"`
}

// InventorySummary aggregates live inventory across every active offer for a SKU
type InventorySummary struct {
	SKU            string              `json:"sku"`
	TotalAvailable int                 `json:"total_available"`
	Suppliers      []SupplierInventory `json:"suppliers"`
	Failed         []InventoryFailure  `json:"failed"`
}

// CheckInventoryAcrossSuppliers asks every supplier with an active offer for
// sku about live stock. Calls run concurrently under a per-call timeout; a
// failing supplier is logged and reported in Failed without failing the call.
func (e *Engine) CheckInventoryAcrossSuppliers(ctx context.Context, sku string) (*InventorySummary, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, shared.NewValidationError("sku is required")
	}
	if e.adapters == nil {
		return nil, supplier.ErrAdapterNotConfigured
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "routing", "check_inventory",
		telemetry.WithAttribute("sku", sku))
	defer span.End()

	offers, err := e.loadOffers(ctx, sku)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	summary := &InventorySummary{
		SKU:       sku,
		Suppliers: make([]SupplierInventory, 0, len(offers)),
		Failed:    make([]InventoryFailure, 0),
	}
	if len(offers) == 0 {
		telemetry.SetOK(span)
		return summary, nil
	}

	ids := make([]uuid.UUID, 0, len(offers))
	for _, o := range offers {
		ids = append(ids, o.SupplierID)
	}
	suppliers, err := e.suppliers.FindByIDs(ctx, ids)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	// slots keep results in offer order regardless of completion order;
	// each branch writes only its own index
	slots := make([]*SupplierInventory, len(offers))
	failures := make([]*InventoryFailure, len(offers))

	// errgroup for SetLimit only: branches record failures in place and always return nil
	g := new(errgroup.Group)
	g.SetLimit(max(e.cfg.InventoryConcurrency, 1))
	for i := range offers {
		offer := offers[i]
		g.Go(func() error {
			inv, err := e.checkOne(ctx, suppliers[offer.SupplierID], &offer)
			if err != nil {
				e.logger.Warn("Supplier inventory check failed",
					zap.String("sku", sku),
					zap.String("supplier_id", offer.SupplierID.String()),
					zap.Error(err),
				)
				failures[i] = &InventoryFailure{SupplierID: offer.SupplierID, Error: err.Error()}
				return nil
			}
			slots[i] = inv
			return nil
		})
	}
	_ = g.Wait()

	for i := range offers {
		if f := failures[i]; f != nil {
			summary.Failed = append(summary.Failed, *f)
			continue
		}
		inv := slots[i]
		summary.Suppliers = append(summary.Suppliers, *inv)
		if inv.Available {
			summary.TotalAvailable += inv.Quantity
		}
	}
	telemetry.SetOK(span)
	return summary, nil
}

func (e *Engine) checkOne(ctx context.Context, s *supplier.Supplier, offer *supplier.Offer) (*SupplierInventory, error) {
	if s == nil {
		return nil, supplier.ErrSupplierNotFound
	}
	adapter, err := e.adapters.AdapterFor(s)
	if err != nil {
		return nil, err
	}

	callCtx := ctx
	if e.cfg.InventoryTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.cfg.InventoryTimeout)
		defer cancel()
	}

	status, err := adapter.CheckInventory(callCtx, offer.SupplierSKU)
	if err != nil {
		return nil, err
	}
	if status == nil {
		return nil, fmt.Errorf("%w: no inventory status for %s", supplier.ErrAdapterInvalidResponse, offer.SupplierSKU)
	}
	return &SupplierInventory{
		SupplierID:   s.ID,
		SupplierName: s.Name,
		OfferID:      offer.ID,
		Available:    status.Available,
		Quantity:     status.Quantity,
		LeadTime:     status.LeadTime,
	}, nil
}
