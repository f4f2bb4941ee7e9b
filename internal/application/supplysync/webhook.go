package supplysync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/printhub/fulfillment/internal/domain/shared"
	"github.com/printhub/fulfillment/internal/domain/supplier"
	"github.com/printhub/fulfillment/internal/infrastructure/telemetry"
)

// Webhook event types
const (
	EventInventoryUpdated   = "inventory_updated"
	EventPriceUpdated       = "price_updated"
	EventOrderStatusUpdated = "order_status_updated"
)

// Webhook outcomes reported to metrics and callers
const (
	OutcomeApplied   = "applied"
	OutcomeDuplicate = "duplicate"
	OutcomeUnmapped  = "unmapped"
	OutcomeIgnored   = "ignored"
	OutcomeForwarded = "forwarded"
)

// WebhookEvent is one delivery from a supplier
type WebhookEvent struct {
	ID         string          `json:"id"`
	SupplierID uuid.UUID       `json:"supplier_id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
}

// InventoryPayload is the body of inventory_updated
type InventoryPayload struct {
	SKU       string `json:"sku" validate:"required"`
	Available bool   `json:"available"`
	Quantity  int    `json:"quantity" validate:"gte=0"`
}

// PricePayload is the body of price_updated
type PricePayload struct {
	SKU  string          `json:"sku" validate:"required"`
	Cost decimal.Decimal `json:"cost"`
}

// OrderStatusEvent is an order_status_updated delivery passed on untouched
type OrderStatusEvent struct {
	EventID    string          `json:"event_id"`
	SupplierID uuid.UUID       `json:"supplier_id"`
	ReceivedAt time.Time       `json:"received_at"`
	Payload    json.RawMessage `json:"payload"`
}

// StatusForwarder hands order status updates to the order-status subsystem
type StatusForwarder interface {
	Forward(ctx context.Context, event OrderStatusEvent) error
}

// HandleWebhook applies a supplier webhook. Inventory and price updates are
// last-write-wins keyed by (supplier, supplier SKU), so a redelivered payload
// leaves the same state. Unmapped SKUs and unknown event types are logged and
// acknowledged. The returned string is the outcome.
func (s *Service) HandleWebhook(ctx context.Context, event WebhookEvent) (string, error) {
	if event.SupplierID == uuid.Nil || event.Type == "" {
		return "", shared.NewValidationError("webhook requires supplier and event type")
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "supplysync", "handle_webhook",
		telemetry.WithAttribute("webhook.type", event.Type),
		telemetry.WithAttribute("webhook.id", event.ID),
	)
	defer span.End()

	marked := false
	if event.ID != "" && s.idempotency != nil {
		isNew, err := s.idempotency.MarkProcessed(ctx, s.idempotencyKey(event), s.cfg.IdempotencyTTL)
		marked = err == nil && isNew
		switch {
		case err != nil:
			s.logger.Warn("Failed to check webhook idempotency, processing anyway",
				zap.String("event_id", event.ID),
				zap.Error(err),
			)
		case !isNew:
			s.logger.Debug("Duplicate webhook delivery skipped", zap.String("event_id", event.ID))
			s.metrics.RecordWebhookEvent(ctx, event.Type, OutcomeDuplicate)
			telemetry.SetOK(span)
			return OutcomeDuplicate, nil
		}
	}

	var (
		outcome string
		err     error
	)
	switch event.Type {
	case EventInventoryUpdated:
		outcome, err = s.applyInventoryUpdate(ctx, event)
	case EventPriceUpdated:
		outcome, err = s.applyPriceUpdate(ctx, event)
	case EventOrderStatusUpdated:
		outcome, err = s.forwardOrderStatus(ctx, event)
	default:
		s.logger.Warn("Unknown webhook event type",
			zap.String("type", event.Type),
			zap.String("supplier_id", event.SupplierID.String()),
		)
		outcome = OutcomeIgnored
	}
	if err != nil {
		if marked {
			// a redelivery must be able to apply the event
			if ferr := s.idempotency.Forget(context.WithoutCancel(ctx), s.idempotencyKey(event)); ferr != nil {
				s.logger.Warn("Failed to clear webhook idempotency key",
					zap.String("event_id", event.ID),
					zap.Error(ferr),
				)
			}
		}
		s.metrics.RecordWebhookEvent(ctx, event.Type, "failed")
		telemetry.RecordError(span, err)
		return "", err
	}

	s.metrics.RecordWebhookEvent(ctx, event.Type, outcome)
	telemetry.SetOK(span)
	return outcome, nil
}

func (s *Service) idempotencyKey(event WebhookEvent) string {
	return "supplier-webhook:" + event.SupplierID.String() + ":" + event.ID
}

func (s *Service) applyInventoryUpdate(ctx context.Context, event WebhookEvent) (string, error) {
	var p InventoryPayload
	if err := s.decode(event.Payload, &p); err != nil {
		return "", err
	}
	offer, err := s.mappedOffer(ctx, event.SupplierID, p.SKU)
	if err != nil || offer == nil {
		return OutcomeUnmapped, err
	}
	if err := offer.ApplyInventory(p.Available, p.Quantity); err != nil {
		return "", shared.NewValidationError(err.Error())
	}
	offer.MarkSynced(s.now())
	if err := s.offers.UpdateInventory(ctx, offer); err != nil {
		return "", err
	}
	s.logger.Info("Inventory updated from webhook",
		zap.String("sku", offer.SKU),
		zap.Bool("available", p.Available),
		zap.Int("quantity", p.Quantity),
	)
	return OutcomeApplied, nil
}

func (s *Service) applyPriceUpdate(ctx context.Context, event WebhookEvent) (string, error) {
	var p PricePayload
	if err := s.decode(event.Payload, &p); err != nil {
		return "", err
	}
	offer, err := s.mappedOffer(ctx, event.SupplierID, p.SKU)
	if err != nil || offer == nil {
		return OutcomeUnmapped, err
	}
	oldCost := offer.Cost
	if err := offer.ApplyCost(p.Cost); err != nil {
		return "", shared.NewValidationError(err.Error())
	}
	offer.MarkSynced(s.now())
	if err := s.offers.UpdateCost(ctx, offer); err != nil {
		return "", err
	}
	s.logger.Info("Price updated from webhook",
		zap.String("sku", offer.SKU),
		zap.String("old_cost", oldCost.String()),
		zap.String("new_cost", p.Cost.String()),
	)
	return OutcomeApplied, nil
}

func (s *Service) forwardOrderStatus(ctx context.Context, event WebhookEvent) (string, error) {
	if s.forwarder == nil {
		s.logger.Info("Order status update received with no forwarder configured",
			zap.String("event_id", event.ID),
			zap.ByteString("payload", event.Payload),
		)
		return OutcomeIgnored, nil
	}
	err := s.forwarder.Forward(ctx, OrderStatusEvent{
		EventID:    event.ID,
		SupplierID: event.SupplierID,
		ReceivedAt: s.now(),
		Payload:    event.Payload,
	})
	if err != nil {
		return "", fmt.Errorf("forward order status: %w", err)
	}
	return OutcomeForwarded, nil
}

// mappedOffer returns nil without error when the supplier SKU has no offer yet
func (s *Service) mappedOffer(ctx context.Context, supplierID uuid.UUID, supplierSKU string) (*supplier.Offer, error) {
	offer, err := s.offers.FindBySupplierSKU(ctx, supplierID, supplierSKU)
	if errors.Is(err, supplier.ErrOfferNotFound) {
		s.logger.Warn("Webhook for unmapped supplier SKU",
			zap.String("supplier_id", supplierID.String()),
			zap.String("supplier_sku", supplierSKU),
		)
		return nil, nil
	}
	return offer, err
}

func (s *Service) decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return shared.NewValidationError("webhook payload is empty")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return shared.NewValidationError("malformed webhook payload: " + err.Error())
	}
	if err := s.validate.Struct(v); err != nil {
		return shared.NewValidationError("invalid webhook payload: " + err.Error())
	}
	return nil
}
