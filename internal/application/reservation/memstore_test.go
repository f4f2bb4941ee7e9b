package reservation

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/printhub/fulfillment/internal/domain/reservation"
)

type counterKey struct {
	kind       reservation.Kind
	resourceID string
}

// memStore is an in-process reservation.Store. A single mutex stands in for the
// row lock of the SQL store; sequence inserts check uniqueness the way the
// partial unique index does, with MaxSequence deliberately outside the lock.
type memStore struct {
	mu      sync.Mutex
	bounds  map[counterKey]*reservation.Bound
	stock   map[string]int
	records map[uuid.UUID]*reservation.Record
	seqs    map[counterKey]map[int64]bool

	// hooks for failure injection
	reserveErr error
	insertErr  func(rec *reservation.Record) error
}

func newMemStore() *memStore {
	return &memStore{
		bounds:  make(map[counterKey]*reservation.Bound),
		stock:   make(map[string]int),
		records: make(map[uuid.UUID]*reservation.Record),
		seqs:    make(map[counterKey]map[int64]bool),
	}
}

func (s *memStore) decide(kind reservation.Kind, resourceID string, amount decimal.Decimal) (*reservation.Decision, error) {
	if kind == reservation.KindStock {
		qty, ok := s.stock[resourceID]
		if !ok {
			return nil, reservation.ErrUnknownResource
		}
		return reservation.Decide(decimal.NewFromInt(int64(qty)), decimal.Zero, amount, false), nil
	}
	key := counterKey{kind, resourceID}
	b, ok := s.bounds[key]
	if !ok {
		return nil, reservation.ErrUnknownResource
	}
	return reservation.Decide(b.Limit, s.committed(key), amount, b.Blocked), nil
}

func (s *memStore) committed(key counterKey) decimal.Decimal {
	total := decimal.Zero
	for _, r := range s.records {
		if r.Kind == key.kind && r.ResourceID == key.resourceID && r.CountsAgainstBound() {
			total = total.Add(r.Amount)
		}
	}
	return total
}

func (s *memStore) ReserveWithinBound(_ context.Context, rec *reservation.Record) (*reservation.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reserveErr != nil {
		return nil, s.reserveErr
	}
	d, err := s.decide(rec.Kind, rec.ResourceID, rec.Amount)
	if err != nil || !d.Allowed {
		return d, err
	}
	if rec.Kind == reservation.KindStock {
		s.stock[rec.ResourceID] -= int(rec.Amount.IntPart())
	}
	if err := rec.Commit(); err != nil {
		return nil, err
	}
	cp := *rec
	s.records[rec.ID] = &cp
	d.Record = rec
	return d, nil
}

func (s *memStore) CheckWithinBound(_ context.Context, kind reservation.Kind, resourceID string, amount decimal.Decimal) (*reservation.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decide(kind, resourceID, amount)
}

func (s *memStore) CommittedTotal(_ context.Context, kind reservation.Kind, resourceID string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed(counterKey{kind, resourceID}), nil
}

func (s *memStore) MaxSequence(_ context.Context, kind reservation.Kind, resourceID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var highest int64
	for n := range s.seqs[counterKey{kind, resourceID}] {
		highest = max(highest, n)
	}
	return highest, nil
}

func (s *memStore) InsertSequence(_ context.Context, rec *reservation.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		if err := s.insertErr(rec); err != nil {
			return err
		}
	}
	key := counterKey{rec.Kind, rec.ResourceID}
	if s.seqs[key] == nil {
		s.seqs[key] = make(map[int64]bool)
	}
	if s.seqs[key][rec.Sequence()] {
		return reservation.ErrDuplicateSequence
	}
	if err := rec.Commit(); err != nil {
		return err
	}
	s.seqs[key][rec.Sequence()] = true
	cp := *rec
	s.records[rec.ID] = &cp
	return nil
}

func (s *memStore) FindByID(_ context.Context, id uuid.UUID) (*reservation.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, reservation.ErrRecordNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) History(_ context.Context, kind reservation.Kind, resourceID string, filter reservation.HistoryFilter) ([]reservation.Record, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []reservation.Record
	for _, r := range s.records {
		switch {
		case r.Kind != kind || r.ResourceID != resourceID,
			filter.State != "" && r.State != filter.State,
			!filter.From.IsZero() && r.CreatedAt.Before(filter.From),
			!filter.To.IsZero() && !r.CreatedAt.Before(filter.To):
			continue
		}
		matched = append(matched, *r)
	}
	slices.SortFunc(matched, func(a, b reservation.Record) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	total := int64(len(matched))
	start := min(filter.Offset, len(matched))
	end := len(matched)
	if filter.Limit > 0 {
		end = min(start+filter.Limit, end)
	}
	return matched[start:end], total, nil
}

func (s *memStore) Release(_ context.Context, id uuid.UUID) (*reservation.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, reservation.ErrRecordNotFound
	}
	if err := r.Release(); err != nil {
		return nil, err
	}
	if r.Kind == reservation.KindStock && r.Strategy == reservation.StrategyBounded {
		s.stock[r.ResourceID] += int(r.Amount.IntPart())
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) FindBound(_ context.Context, kind reservation.Kind, resourceID string) (*reservation.Bound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bounds[counterKey{kind, resourceID}]
	if !ok {
		return nil, reservation.ErrUnknownResource
	}
	cp := *b
	return &cp, nil
}

func (s *memStore) SetLimit(_ context.Context, kind reservation.Kind, resourceID string, limit decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := counterKey{kind, resourceID}
	if b, ok := s.bounds[key]; ok {
		b.Limit = limit
		return nil
	}
	s.bounds[key] = &reservation.Bound{Kind: kind, ResourceID: resourceID, Limit: limit}
	return nil
}

func (s *memStore) SetBlocked(_ context.Context, kind reservation.Kind, resourceID string, blocked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := counterKey{kind, resourceID}
	b, ok := s.bounds[key]
	if !ok {
		b = &reservation.Bound{Kind: kind, ResourceID: resourceID}
		s.bounds[key] = b
	}
	b.Blocked = blocked
	return nil
}

var (
	_ reservation.Store           = (*memStore)(nil)
	_ reservation.BoundRepository = (*memStore)(nil)
)
