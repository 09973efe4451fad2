package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Domenick1991/flightdesk/internal/domain"
)

// MemoryBookingRepository keeps bookings in process memory with the same
// version semantics as the Postgres store.
type MemoryBookingRepository struct {
	mu       sync.RWMutex
	seq      int64
	bookings map[string]*domain.Booking
	byOrder  map[string]string
}

func NewMemoryBookingRepository() *MemoryBookingRepository {
	return &MemoryBookingRepository{
		bookings: make(map[string]*domain.Booking),
		byOrder:  make(map[string]string),
	}
}

func (r *MemoryBookingRepository) NextSequence(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return r.seq, nil
}

func (r *MemoryBookingRepository) Create(_ context.Context, b *domain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bookings[b.ID]; ok {
		return &domain.PersistenceError{Op: "create", Err: fmt.Errorf("booking %s already exists", b.ID)}
	}
	if err := r.indexOrder(b); err != nil {
		return err
	}
	r.bookings[b.ID] = b.Clone()
	return nil
}

func (r *MemoryBookingRepository) GetByID(_ context.Context, id string) (*domain.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, fmt.Errorf("booking %s: %w", id, domain.ErrNotFound)
	}
	return b.Clone(), nil
}

func (r *MemoryBookingRepository) GetBySupplierOrderID(ctx context.Context, orderID string) (*domain.Booking, error) {
	r.mu.RLock()
	id, ok := r.byOrder[orderID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	return r.GetByID(ctx, id)
}

func (r *MemoryBookingRepository) Update(_ context.Context, b *domain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.bookings[b.ID]
	if !ok {
		return fmt.Errorf("booking %s: %w", b.ID, domain.ErrNotFound)
	}
	if current.Version != b.Version {
		return fmt.Errorf("booking %s version %d: %w", b.ID, b.Version, domain.ErrConcurrencyConflict)
	}
	if err := r.indexOrder(b); err != nil {
		return err
	}
	b.Version++
	r.bookings[b.ID] = b.Clone()
	return nil
}

func (r *MemoryBookingRepository) indexOrder(b *domain.Booking) error {
	if b.SupplierOrderID == "" {
		return nil
	}
	if owner, ok := r.byOrder[b.SupplierOrderID]; ok && owner != b.ID {
		return &domain.PersistenceError{Op: "update", Err: fmt.Errorf("order %s already belongs to %s", b.SupplierOrderID, owner)}
	}
	r.byOrder[b.SupplierOrderID] = b.ID
	return nil
}

func (r *MemoryBookingRepository) ListIssuanceCandidates(_ context.Context, limit int) ([]domain.Booking, error) {
	return r.list(limit, func(b *domain.Booking) bool { return b.NeedsIssuance() }, func(b *domain.Booking) time.Time { return b.UpdatedAt }), nil
}

func (r *MemoryBookingRepository) ListExpirable(_ context.Context, createdBefore time.Time, limit int) ([]domain.Booking, error) {
	return r.list(limit, func(b *domain.Booking) bool {
		if b.PaymentStatus != domain.PaymentStatusUnpaid || b.CreatedAt.After(createdBefore) {
			return false
		}
		switch b.SupplierStatus {
		case domain.SupplierStatusIssued, domain.SupplierStatusCancelled, domain.SupplierStatusExpired:
			return false
		}
		return true
	}, func(b *domain.Booking) time.Time { return b.CreatedAt }), nil
}

func (r *MemoryBookingRepository) list(limit int, keep func(*domain.Booking) bool, orderBy func(*domain.Booking) time.Time) []domain.Booking {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Booking
	for _, b := range r.bookings {
		if keep(b) {
			out = append(out, *b.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := orderBy(&out[i]), orderBy(&out[j])
		if ti.Equal(tj) {
			return out[i].ID < out[j].ID
		}
		return ti.Before(tj)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

var _ BookingRepository = (*MemoryBookingRepository)(nil)
