package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Domenick1991/flightdesk/internal/domain"
	"github.com/Domenick1991/flightdesk/internal/service/booking"
	"github.com/Domenick1991/flightdesk/internal/supplier"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockBookingUseCase is a mock implementation of booking.BookingUseCase
type MockBookingUseCase struct {
	mock.Mock
}

func (m *MockBookingUseCase) result(args mock.Arguments) (*domain.Booking, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) CreateBooking(ctx context.Context, input booking.CreateBookingInput) (*domain.Booking, error) {
	return m.result(m.Called(ctx, input))
}

func (m *MockBookingUseCase) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	return m.result(m.Called(ctx, id))
}

func (m *MockBookingUseCase) CheckFare(ctx context.Context, id string) (*domain.Booking, error) {
	return m.result(m.Called(ctx, id))
}

func (m *MockBookingUseCase) SavePassengers(ctx context.Context, id string, input booking.SavePassengersInput) (*domain.Booking, error) {
	return m.result(m.Called(ctx, id, input))
}

func (m *MockBookingUseCase) ConfirmPayment(ctx context.Context, input booking.PaymentInput) (*domain.Booking, error) {
	return m.result(m.Called(ctx, input))
}

func (m *MockBookingUseCase) RetryIssuance(ctx context.Context, id string, trigger booking.Trigger) (*domain.Booking, error) {
	return m.result(m.Called(ctx, id, trigger))
}

func (m *MockBookingUseCase) ApplySupplierEvent(ctx context.Context, event booking.SupplierEvent) (*domain.Booking, error) {
	return m.result(m.Called(ctx, event))
}

func (m *MockBookingUseCase) CancelBooking(ctx context.Context, id string) (*domain.Booking, error) {
	return m.result(m.Called(ctx, id))
}

func (m *MockBookingUseCase) RefundBooking(ctx context.Context, id string) (*domain.Booking, error) {
	return m.result(m.Called(ctx, id))
}

func (m *MockBookingUseCase) CompleteBooking(ctx context.Context, id string) (*domain.Booking, error) {
	return m.result(m.Called(ctx, id))
}

func (m *MockBookingUseCase) TicketDetails(ctx context.Context, id string) (supplier.TicketInfo, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(supplier.TicketInfo), args.Error(1)
}

func (m *MockBookingUseCase) ExpireStaleBookings(ctx context.Context) ([]domain.Booking, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func newTestContext(method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func sampleBooking() *domain.Booking {
	return &domain.Booking{
		ID:             "BK20261019000001",
		Status:         domain.BookingStatusPending,
		SupplierStatus: domain.SupplierStatusInitiated,
		PaymentStatus:  domain.PaymentStatusUnpaid,
		Flight: domain.FlightSnapshot{
			Itinerary: domain.Itinerary{ID: "OF-1", TotalPrice: 1000, Currency: "USD"},
		},
	}
}

func TestBookingHandler_create(t *testing.T) {
	mockService := &MockBookingUseCase{}
	mockSearches := &MockSearchUseCase{}
	handler := NewBookingHandler(mockService, mockSearches)

	body, _ := json.Marshal(createBookingRequest{SearchID: "S1", SegmentIndex: 0, ItineraryID: "OF-1", OwnerID: "user-1"})
	c, w := newTestContext("POST", "/api/v1/bookings", body)

	itinerary := domain.Itinerary{ID: "OF-1", FareKey: "FK-1", TotalPrice: 1000, Currency: "USD"}
	pax := domain.PassengerCounts{Adults: 2}
	mockSearches.On("FindItinerary", c.Request.Context(), "S1", 0, "OF-1").Return(itinerary, pax, nil)
	mockService.On("CreateBooking", c.Request.Context(), booking.CreateBookingInput{
		OwnerID:    "user-1",
		SearchID:   "S1",
		Itinerary:  itinerary,
		Passengers: pax,
	}).Return(sampleBooking(), nil)

	handler.create(c)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response bookingResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "BK20261019000001", response.ID)
	assert.Equal(t, string(domain.SupplierStatusInitiated), response.SupplierStatus)
	assert.Equal(t, 1000.0, response.Total)

	mockService.AssertExpectations(t)
	mockSearches.AssertExpectations(t)
}

func TestBookingHandler_create_UnknownItinerary(t *testing.T) {
	mockService := &MockBookingUseCase{}
	mockSearches := &MockSearchUseCase{}
	handler := NewBookingHandler(mockService, mockSearches)

	body, _ := json.Marshal(createBookingRequest{SearchID: "S1", ItineraryID: "nope"})
	c, w := newTestContext("POST", "/api/v1/bookings", body)
	mockSearches.On("FindItinerary", c.Request.Context(), "S1", 0, "nope").
		Return(domain.Itinerary{}, domain.PassengerCounts{}, domain.ErrNotFound)

	handler.create(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockService.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
}

func TestBookingHandler_savePassengers(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService, &MockSearchUseCase{})

	input := booking.SavePassengersInput{
		Contact: domain.Contact{Name: "Aigerim", Email: "a@example.com", Phone: "+77010000000"},
		Passengers: []domain.Passenger{{
			Type: domain.PassengerAdult, FirstName: "AIGERIM", LastName: "SULTANOVA", Gender: "F",
			BirthDate: "1990-05-01", Citizenship: "KZ", DocumentType: "passport",
			DocumentNumber: "N1", DocumentExpiry: "2031-01-01",
		}},
	}
	body, _ := json.Marshal(input)
	c, w := newTestContext("PUT", "/api/v1/bookings/BK1/passengers", body)
	c.Params = gin.Params{{Key: "id", Value: "BK1"}}

	saved := sampleBooking()
	saved.SupplierOrderID = "ORD-1"
	saved.SupplierStatus = domain.SupplierStatusNew
	mockService.On("SavePassengers", c.Request.Context(), "BK1", input).Return(saved, nil)

	handler.savePassengers(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response bookingResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "ORD-1", response.OrderID)
	mockService.AssertExpectations(t)
}

func TestBookingHandler_issue(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService, &MockSearchUseCase{})

	c, w := newTestContext("POST", "/api/v1/bookings/BK1/issue", nil)
	c.Params = gin.Params{{Key: "id", Value: "BK1"}}

	issued := sampleBooking()
	issued.Status = domain.BookingStatusIssued
	issued.SupplierStatus = domain.SupplierStatusIssued
	issued.Ticket = &domain.Ticket{Number: "555-0001", RecordLocator: "ABC123"}
	mockService.On("RetryIssuance", c.Request.Context(), "BK1", booking.TriggerUser).Return(issued, nil)

	handler.issue(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response bookingResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	if assert.NotNil(t, response.Ticket) {
		assert.Equal(t, "555-0001", response.Ticket.Number)
	}
}

func TestBookingHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &domain.ValidationError{Field: "contact.email", Reason: "invalid email format"}, http.StatusBadRequest},
		{"not found", domain.ErrNotFound, http.StatusNotFound},
		{"conflict", domain.ErrConcurrencyConflict, http.StatusConflict},
		{"invalid transition", domain.ErrInvalidTransition, http.StatusConflict},
		{"rejected", &domain.RejectedError{Op: "void_ticket", Code: supplier.CodeNotVoidable}, http.StatusUnprocessableEntity},
		{"transport", &domain.TransportError{Op: "cancel_order", Timeout: true}, http.StatusServiceUnavailable},
		{"disabled", domain.ErrIntegrationDisabled, http.StatusServiceUnavailable},
		{"unexpected", assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockBookingUseCase{}
			handler := NewBookingHandler(mockService, &MockSearchUseCase{})

			c, w := newTestContext("DELETE", "/api/v1/bookings/BK1", nil)
			c.Params = gin.Params{{Key: "id", Value: "BK1"}}
			mockService.On("CancelBooking", c.Request.Context(), "BK1").Return(nil, tt.err)

			handler.cancel(c)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestBookingHandler_get(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService, &MockSearchUseCase{})

	c, w := newTestContext("GET", "/api/v1/bookings/BK1", nil)
	c.Params = gin.Params{{Key: "id", Value: "BK1"}}
	mockService.On("GetBooking", c.Request.Context(), "BK1").Return(sampleBooking(), nil)

	handler.get(c)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}
