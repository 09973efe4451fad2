package repository

import (
	"context"
	"testing"
	"time"

	"github.com/Domenick1991/flightdesk/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBookingRepository(t *testing.T) {
	pool := &pgxpool.Pool{}
	repo := NewBookingRepository(pool)
	assert.NotNil(t, repo)
}

func TestEncode_RoundTripsDocumentColumns(t *testing.T) {
	b := &domain.Booking{
		ID:         "BK1",
		Contact:    domain.Contact{Name: "Ann", Email: "ann@example.com"},
		Passengers: nil,
		Ticket:     &domain.Ticket{Number: "555-1", RecordLocator: "ABC123"},
	}

	doc, err := encode(b)

	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(doc.passengers))
	assert.Contains(t, string(doc.ticket), `"record_locator":"ABC123"`)
	assert.Contains(t, string(doc.contact), `"email":"ann@example.com"`)
}

func newBooking(id string, created time.Time) *domain.Booking {
	return &domain.Booking{
		ID:             id,
		Status:         domain.BookingStatusPending,
		SupplierStatus: domain.SupplierStatusPending,
		PaymentStatus:  domain.PaymentStatusUnpaid,
		CreatedAt:      created,
		UpdatedAt:      created,
	}
}

func TestMemoryRepository_UpdateIsCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryBookingRepository()
	require.NoError(t, repo.Create(ctx, newBooking("BK1", time.Now())))

	first, err := repo.GetByID(ctx, "BK1")
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, "BK1")
	require.NoError(t, err)

	first.LastError = "first"
	require.NoError(t, repo.Update(ctx, first))
	assert.Equal(t, int64(1), first.Version)

	second.LastError = "second"
	err = repo.Update(ctx, second)
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)

	stored, err := repo.GetByID(ctx, "BK1")
	require.NoError(t, err)
	assert.Equal(t, "first", stored.LastError)
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryBookingRepository()
	require.NoError(t, repo.Create(ctx, newBooking("BK1", time.Now())))

	got, err := repo.GetByID(ctx, "BK1")
	require.NoError(t, err)
	got.Status = domain.BookingStatusIssued

	again, err := repo.GetByID(ctx, "BK1")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusPending, again.Status)
}

func TestMemoryRepository_LookupByOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryBookingRepository()
	b := newBooking("BK1", time.Now())
	require.NoError(t, repo.Create(ctx, b))

	_, err := repo.GetBySupplierOrderID(ctx, "ORD-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	b.SupplierOrderID = "ORD-1"
	b.SupplierStatus = domain.SupplierStatusNew
	require.NoError(t, repo.Update(ctx, b))

	got, err := repo.GetBySupplierOrderID(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, "BK1", got.ID)

	other := newBooking("BK2", time.Now())
	require.NoError(t, repo.Create(ctx, other))
	other.SupplierOrderID = "ORD-1"
	assert.Error(t, repo.Update(ctx, other))
}

func TestMemoryRepository_Listings(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryBookingRepository()
	base := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

	paid := newBooking("BK1", base)
	paid.PaymentStatus = domain.PaymentStatusPaid
	paid.SupplierOrderID = "ORD-1"
	paid.SupplierStatus = domain.SupplierStatusSavedNotIssued
	require.NoError(t, repo.Create(ctx, paid))

	issued := newBooking("BK2", base)
	issued.PaymentStatus = domain.PaymentStatusPaid
	issued.SupplierOrderID = "ORD-2"
	issued.SupplierStatus = domain.SupplierStatusIssued
	require.NoError(t, repo.Create(ctx, issued))

	stale := newBooking("BK3", base.Add(-2*time.Hour))
	require.NoError(t, repo.Create(ctx, stale))

	fresh := newBooking("BK4", base)
	require.NoError(t, repo.Create(ctx, fresh))

	candidates, err := repo.ListIssuanceCandidates(ctx, 10)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "BK1", candidates[0].ID)

	expirable, err := repo.ListExpirable(ctx, base.Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, expirable, 1)
	assert.Equal(t, "BK3", expirable[0].ID)

	seq1, _ := repo.NextSequence(ctx)
	seq2, _ := repo.NextSequence(ctx)
	assert.Equal(t, seq1+1, seq2)
}
