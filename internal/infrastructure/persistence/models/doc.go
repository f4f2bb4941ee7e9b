// Package models holds the GORM row types behind the fulfillment tables.
//
// Domain entities carry no ORM tags. Each model converts to and from its
// entity with ToDomain and FromDomain:
//
//   - supplier.go: suppliers and supplier_offers
//   - reservation.go: reservation_bounds and reservation_records
//   - routing.go: routing_outcomes
//
// The schema itself is owned by the SQL migrations; tags here only describe
// the columns GORM reads and writes.
package models
