// Package supplier contains the supplier catalog bounded context.
//
// Key concepts:
//   - Supplier: an external fulfillment partner resolved through a keyed lookup
//   - Offer: one supplier's terms (cost, stock, MOQ, lead time, preference) for one internal SKU
//   - Adapter: port for talking to a supplier's API (catalog, inventory, orders)
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package supplier
