package monitor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Domenick1991/flightdesk/internal/cache"
	"github.com/Domenick1991/flightdesk/internal/domain"
	"github.com/Domenick1991/flightdesk/internal/repository"
	"github.com/Domenick1991/flightdesk/internal/service/booking"
	"github.com/Domenick1991/flightdesk/internal/supplier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockIssuer struct {
	mock.Mock
}

func (m *MockIssuer) RetryIssuance(ctx context.Context, id string, trigger booking.Trigger) (*domain.Booking, error) {
	args := m.Called(ctx, id, trigger)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

type MockCandidates struct {
	mock.Mock
}

func (m *MockCandidates) ListIssuanceCandidates(ctx context.Context, limit int) ([]domain.Booking, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

// MockSupplier backs a real booking service for the end-to-end sweep.
type MockSupplier struct {
	mock.Mock
}

func (m *MockSupplier) CheckFare(ctx context.Context, req supplier.FareCheckRequest) (supplier.FareCheckResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(supplier.FareCheckResult), args.Error(1)
}

func (m *MockSupplier) SaveOrder(ctx context.Context, req supplier.SaveOrderRequest) (supplier.Order, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(supplier.Order), args.Error(1)
}

func (m *MockSupplier) IssueOrder(ctx context.Context, orderID string) (supplier.Order, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(supplier.Order), args.Error(1)
}

func (m *MockSupplier) CancelOrder(ctx context.Context, orderID string) (supplier.Order, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(supplier.Order), args.Error(1)
}

func (m *MockSupplier) GetOrder(ctx context.Context, orderID string) (supplier.Order, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(supplier.Order), args.Error(1)
}

func (m *MockSupplier) GetTicket(ctx context.Context, number string) (supplier.TicketInfo, error) {
	args := m.Called(ctx, number)
	return args.Get(0).(supplier.TicketInfo), args.Error(1)
}

func (m *MockSupplier) RefundTicket(ctx context.Context, number string) (supplier.TicketOperation, error) {
	args := m.Called(ctx, number)
	return args.Get(0).(supplier.TicketOperation), args.Error(1)
}

func (m *MockSupplier) VoidTicket(ctx context.Context, number string) (supplier.TicketOperation, error) {
	args := m.Called(ctx, number)
	return args.Get(0).(supplier.TicketOperation), args.Error(1)
}

func TestMonitor_SweepCountsOutcomes(t *testing.T) {
	candidates := &MockCandidates{}
	issuer := &MockIssuer{}
	candidates.On("ListIssuanceCandidates", mock.Anything, 10).
		Return([]domain.Booking{{ID: "BK1"}, {ID: "BK2"}, {ID: "BK3"}}, nil).Once()
	issuer.On("RetryIssuance", mock.Anything, "BK1", booking.TriggerMonitor).
		Return(&domain.Booking{ID: "BK1", SupplierStatus: domain.SupplierStatusIssued}, nil).Once()
	issuer.On("RetryIssuance", mock.Anything, "BK2", booking.TriggerMonitor).
		Return(&domain.Booking{ID: "BK2", SupplierStatus: domain.SupplierStatusSavedNotIssued}, &domain.TransportError{Op: "issue_order", Timeout: true}).Once()
	issuer.On("RetryIssuance", mock.Anything, "BK3", booking.TriggerMonitor).
		Return(nil, domain.ErrConcurrencyConflict).Once()

	m := New(candidates, issuer, Options{Batch: 10, Parallelism: 2}, zap.NewNop())
	stats, err := m.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, Stats{Checked: 3, Issued: 1, Errors: 2}, stats)
	issuer.AssertExpectations(t)
}

func TestMonitor_SweepListError(t *testing.T) {
	candidates := &MockCandidates{}
	candidates.On("ListIssuanceCandidates", mock.Anything, 10).
		Return([]domain.Booking(nil), &domain.PersistenceError{Op: "list", Err: assert.AnError}).Once()

	m := New(candidates, &MockIssuer{}, Options{}, zap.NewNop())
	_, err := m.Sweep(context.Background())

	assert.ErrorIs(t, err, assert.AnError)
}

func TestMonitor_RecoversLostIssuanceResponse(t *testing.T) {
	repo := repository.NewMemoryBookingRepository()
	sup := &MockSupplier{}
	svc := booking.NewBookingService(repo, sup, cache.NewLocalLocker(time.Second), nil, zap.NewNop())
	ctx := context.Background()

	sup.On("CheckFare", mock.Anything, mock.Anything).
		Return(supplier.FareCheckResult{Available: true, Total: 500}, nil).Once()
	b, err := svc.CreateBooking(ctx, booking.CreateBookingInput{
		Itinerary:  domain.Itinerary{ID: "OF-1", FareKey: "FK-1", TotalPrice: 500, Currency: "USD"},
		Passengers: domain.PassengerCounts{Adults: 1},
	})
	require.NoError(t, err)

	sup.On("SaveOrder", mock.Anything, mock.Anything).Return(supplier.Order{OrderID: "ORD-1"}, nil).Once()
	_, err = svc.SavePassengers(ctx, b.ID, booking.SavePassengersInput{
		Contact: domain.Contact{Name: "Dana", Email: "dana@example.com", Phone: "+77010000001"},
		Passengers: []domain.Passenger{{
			Type: domain.PassengerAdult, FirstName: "DANA", LastName: "ABENOVA", Gender: "F",
			BirthDate: "1992-02-02", Citizenship: "KZ", DocumentType: "passport",
			DocumentNumber: "N7654321", DocumentExpiry: "2030-01-01",
		}},
	})
	require.NoError(t, err)

	// The supplier issues the ticket but the response is lost, and no webhook arrives.
	sup.On("IssueOrder", mock.Anything, "ORD-1").
		Return(supplier.Order{}, &domain.TransportError{Op: "issue_order", Timeout: true}).Once()
	paid, err := svc.ConfirmPayment(ctx, booking.PaymentInput{BookingID: b.ID, TransactionID: "TX-1", Amount: 500})
	require.NoError(t, err)
	require.Equal(t, domain.SupplierStatusSavedNotIssued, paid.SupplierStatus)

	sup.On("IssueOrder", mock.Anything, "ORD-1").
		Return(supplier.Order{}, &domain.RejectedError{Op: "issue_order", Code: supplier.CodeAlreadyIssued}).Once()
	sup.On("GetOrder", mock.Anything, "ORD-1").
		Return(supplier.Order{OrderID: "ORD-1", Status: "issued", Tickets: []string{"555-0009"}, RecordLocator: "XYZ789"}, nil).Once()

	m := New(repo, svc, Options{Batch: 10, Parallelism: 4}, zap.NewNop())
	stats, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Issued)

	got, err := svc.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SupplierStatusIssued, got.SupplierStatus)
	assert.Equal(t, domain.BookingStatusIssued, got.Status)
	assert.Equal(t, "555-0009", got.Ticket.Number)

	// Issued bookings drop out of the candidate list.
	stats, err = m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}

func TestMonitor_StartStop(t *testing.T) {
	var sweeps atomic.Int32
	candidates := &MockCandidates{}
	candidates.On("ListIssuanceCandidates", mock.Anything, 10).
		Run(func(mock.Arguments) { sweeps.Add(1) }).
		Return([]domain.Booking(nil), nil)

	m := New(candidates, &MockIssuer{}, Options{Interval: 10 * time.Millisecond}, zap.NewNop())
	require.NoError(t, m.Start(context.Background()))
	assert.ErrorIs(t, m.Start(context.Background()), ErrAlreadyRunning)

	assert.Eventually(t, func() bool {
		return sweeps.Load() >= 2
	}, time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Stop(stopCtx))
	assert.False(t, m.Running())
	assert.NoError(t, m.Stop(stopCtx))
}
