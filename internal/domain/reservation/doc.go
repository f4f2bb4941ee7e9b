// Package reservation contains the bounded-counter ledger context.
//
// A Record is one claim against a shared counter: a customer's credit limit,
// an offer's stock level, or a per-resource sequence (for example asset versions).
// Two contention strategies share the Record type:
//   - bounded: a transactional check-and-reserve against a limit (BoundedStore)
//   - sequence: optimistic max+1 assignment guarded by a unique index (SequenceStore)
//
// Atomicity is provided by the store implementation, never by in-process locks.
package reservation
