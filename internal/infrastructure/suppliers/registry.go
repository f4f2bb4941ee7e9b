package suppliers

import (
	"fmt"
	"sync"

	"github.com/printhub/fulfillment/internal/domain/supplier"
)

// Registry resolves the adapter bound to a supplier.
// API adapters are registered per supplier code; a supplier of type printful
// without its own registration falls back to the default Printful adapter.
// Manual suppliers are served from the offer catalog.
type Registry struct {
	mu              sync.RWMutex
	byCode          map[string]supplier.Adapter
	defaultPrintful supplier.Adapter
	offers          supplier.OfferReader
}

// NewRegistry creates an adapter registry. offers backs manual suppliers and may be nil
// when none are configured.
func NewRegistry(offers supplier.OfferReader) *Registry {
	return &Registry{
		byCode: make(map[string]supplier.Adapter),
		offers: offers,
	}
}

// Register binds an adapter to a supplier code, replacing any previous binding
func (r *Registry) Register(code string, adapter supplier.Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byCode[code] = adapter
}

// SetDefaultPrintful sets the adapter used by printful suppliers without their own binding
func (r *Registry) SetDefaultPrintful(adapter supplier.Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultPrintful = adapter
}

// AdapterFor implements supplier.AdapterResolver
func (r *Registry) AdapterFor(s *supplier.Supplier) (supplier.Adapter, error) {
	if s == nil {
		return nil, supplier.ErrSupplierNotFound
	}

	r.mu.RLock()
	adapter, ok := r.byCode[s.Code]
	fallback := r.defaultPrintful
	r.mu.RUnlock()

	if ok {
		if adapter.Type() != s.Type {
			return nil, fmt.Errorf("%w: supplier %s is %s but adapter is %s",
				supplier.ErrAdapterNotConfigured, s.Code, s.Type, adapter.Type())
		}
		return adapter, nil
	}

	switch s.Type {
	case supplier.AdapterTypePrintful:
		if fallback != nil {
			return fallback, nil
		}
	case supplier.AdapterTypeManual:
		if r.offers != nil {
			return NewManualAdapter(r.offers, s.ID), nil
		}
	}
	return nil, fmt.Errorf("%w: supplier %s (%s)", supplier.ErrAdapterNotConfigured, s.Code, s.Type)
}

var _ supplier.AdapterResolver = (*Registry)(nil)
