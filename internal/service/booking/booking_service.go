package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/flightdesk/internal/domain"
	"github.com/Domenick1991/flightdesk/internal/kafka"
	"github.com/Domenick1991/flightdesk/internal/normalize"
	"github.com/Domenick1991/flightdesk/internal/repository"
	"github.com/Domenick1991/flightdesk/internal/supplier"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type BookingUseCase interface {
	CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error)
	GetBooking(ctx context.Context, id string) (*domain.Booking, error)
	CheckFare(ctx context.Context, id string) (*domain.Booking, error)
	SavePassengers(ctx context.Context, id string, input SavePassengersInput) (*domain.Booking, error)
	ConfirmPayment(ctx context.Context, input PaymentInput) (*domain.Booking, error)
	RetryIssuance(ctx context.Context, id string, trigger Trigger) (*domain.Booking, error)
	ApplySupplierEvent(ctx context.Context, event SupplierEvent) (*domain.Booking, error)
	CancelBooking(ctx context.Context, id string) (*domain.Booking, error)
	RefundBooking(ctx context.Context, id string) (*domain.Booking, error)
	CompleteBooking(ctx context.Context, id string) (*domain.Booking, error)
	TicketDetails(ctx context.Context, id string) (supplier.TicketInfo, error)
	ExpireStaleBookings(ctx context.Context) ([]domain.Booking, error)
}

type Supplier interface {
	CheckFare(ctx context.Context, req supplier.FareCheckRequest) (supplier.FareCheckResult, error)
	SaveOrder(ctx context.Context, req supplier.SaveOrderRequest) (supplier.Order, error)
	IssueOrder(ctx context.Context, orderID string) (supplier.Order, error)
	CancelOrder(ctx context.Context, orderID string) (supplier.Order, error)
	GetOrder(ctx context.Context, orderID string) (supplier.Order, error)
	GetTicket(ctx context.Context, number string) (supplier.TicketInfo, error)
	RefundTicket(ctx context.Context, number string) (supplier.TicketOperation, error)
	VoidTicket(ctx context.Context, number string) (supplier.TicketOperation, error)
}

type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type Trigger string

const (
	TriggerUser    Trigger = "user"
	TriggerAdmin   Trigger = "admin"
	TriggerMonitor Trigger = "monitor"
)

type CreateBookingInput struct {
	OwnerID    string                 `json:"owner_id"`
	Contact    domain.Contact         `json:"contact"`
	SearchID   string                 `json:"search_id"`
	Itinerary  domain.Itinerary       `json:"itinerary"`
	Passengers domain.PassengerCounts `json:"passengers"`
}

type SavePassengersInput struct {
	Contact    domain.Contact     `json:"contact" validate:"required"`
	Passengers []domain.Passenger `json:"passengers" validate:"required,min=1,dive"`
}

type PaymentInput struct {
	BookingID     string  `json:"order_ref"`
	TransactionID string  `json:"transaction_id"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
}

// SupplierEvent is a decoded supplier webhook.
type SupplierEvent struct {
	Event         string   `json:"event"`
	OrderID       string   `json:"order_id"`
	BookingID     string   `json:"booking_id,omitempty"`
	Status        string   `json:"status,omitempty"`
	Tickets       []string `json:"tickets,omitempty"`
	RecordLocator string   `json:"record_locator,omitempty"`
	DocumentURL   string   `json:"document_url,omitempty"`
	ErrorMessage  string   `json:"error_message,omitempty"`
}

const (
	EventOrderCreated   = "order.created"
	EventOrderConfirmed = "order.confirmed"
	EventTicketIssued   = "ticket.issued"
	EventTicketFailed   = "ticket.failed"
	EventOrderCancelled = "order.cancelled"
	EventOrderExpired   = "order.expired"
)

var eventStatus = map[string]domain.SupplierStatus{
	EventOrderCreated:   domain.SupplierStatusNew,
	EventOrderConfirmed: domain.SupplierStatusConfirmed,
	EventTicketIssued:   domain.SupplierStatusIssued,
	EventTicketFailed:   domain.SupplierStatusFailed,
	EventOrderCancelled: domain.SupplierStatusCancelled,
	EventOrderExpired:   domain.SupplierStatusExpired,
}

// EventTarget is the supplier status an event moves a booking to.
func EventTarget(event string) (domain.SupplierStatus, bool) {
	next, ok := eventStatus[event]
	return next, ok
}

type BookingService struct {
	bookings           repository.BookingRepository
	client             Supplier
	locker             Locker
	producer           Producer
	log                *zap.Logger
	notificationsTopic string
	enabled            func() bool
	now                func() time.Time
	holdTTL            time.Duration
	lockTTL            time.Duration
	maxIssueAttempts   int
	expireBatch        int
}

type BookingServiceOption func(*BookingService)

func WithNotificationsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.notificationsTopic = topic
	}
}

// WithIntegrationToggle is consulted at the start of every supplier-facing operation.
func WithIntegrationToggle(enabled func() bool) BookingServiceOption {
	return func(s *BookingService) {
		s.enabled = enabled
	}
}

func WithClock(now func() time.Time) BookingServiceOption {
	return func(s *BookingService) {
		s.now = now
	}
}

func WithHoldTTL(ttl time.Duration) BookingServiceOption {
	return func(s *BookingService) {
		s.holdTTL = ttl
	}
}

func WithLockTTL(ttl time.Duration) BookingServiceOption {
	return func(s *BookingService) {
		s.lockTTL = ttl
	}
}

func WithMaxIssueAttempts(n int) BookingServiceOption {
	return func(s *BookingService) {
		s.maxIssueAttempts = n
	}
}

func NewBookingService(
	bookings repository.BookingRepository,
	client Supplier,
	locker Locker,
	producer Producer,
	log *zap.Logger,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		bookings:         bookings,
		client:           client,
		locker:           locker,
		producer:         producer,
		log:              log.With(zap.String("service", "booking")),
		enabled:          func() bool { return true },
		now:              time.Now,
		holdTTL:          time.Hour,
		lockTTL:          time.Minute,
		maxIssueAttempts: 5,
		expireBatch:      100,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// txn is the mutable view handed to a transition.
type txn struct {
	b      *domain.Booking
	events []string
}

func (t *txn) emit(eventType string) {
	t.events = append(t.events, eventType)
}

// mutate loads the booking under its lock, runs fn and persists the result when fn
// reports a change. fn may return both a change and an error, e.g. an annotated
// supplier failure; the change is persisted and the error returned with the booking.
func (s *BookingService) mutate(ctx context.Context, id string, fn func(t *txn) (bool, error)) (*domain.Booking, error) {
	release, err := s.locker.Acquire(ctx, "booking:"+id, s.lockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	t := &txn{b: current.Clone()}
	changed, fnErr := fn(t)
	if !changed {
		return current, fnErr
	}

	t.b.ProjectStatus()
	t.b.UpdatedAt = s.now()
	if err := s.bookings.Update(ctx, t.b); err != nil {
		s.log.Error("persist booking transition", zap.String("booking_id", id), zap.Error(err))
		return nil, err
	}
	for _, eventType := range t.events {
		s.notify(ctx, eventType, t.b)
	}
	return t.b, fnErr
}

func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error) {
	if input.Itinerary.ID == "" {
		return nil, &domain.ValidationError{Field: "itinerary", Reason: "is required"}
	}
	if input.Passengers.Adults < 1 {
		return nil, &domain.ValidationError{Field: "passengers.adults", Reason: "at least one adult"}
	}

	seq, err := s.bookings.NextSequence(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	raw, _ := json.Marshal(input.Itinerary)

	booking := &domain.Booking{
		ID:      GenerateBookingID(now, seq),
		OwnerID: input.OwnerID,
		Contact: input.Contact,
		Flight: domain.FlightSnapshot{
			SearchID:   input.SearchID,
			Itinerary:  input.Itinerary,
			FareKey:    input.Itinerary.FareKey,
			Passengers: input.Passengers,
			Raw:        raw,
		},
		Status:         domain.BookingStatusPending,
		SupplierStatus: domain.SupplierStatusPending,
		PaymentStatus:  domain.PaymentStatusUnpaid,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, err
	}
	s.log.Info("booking created", zap.String("booking_id", booking.ID), zap.String("itinerary_id", input.Itinerary.ID))

	// Fare check is best effort: a failure is annotated on the booking and never blocks checkout.
	checked, err := s.CheckFare(ctx, booking.ID)
	if err != nil {
		s.log.Warn("fare check failed", zap.String("booking_id", booking.ID), zap.Error(err))
		if current, getErr := s.bookings.GetByID(ctx, booking.ID); getErr == nil {
			return current, nil
		}
		return booking, nil
	}
	return checked, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	return s.bookings.GetByID(ctx, id)
}

func (s *BookingService) CheckFare(ctx context.Context, id string) (*domain.Booking, error) {
	if !s.enabled() {
		return nil, domain.ErrIntegrationDisabled
	}
	return s.mutate(ctx, id, func(t *txn) (bool, error) {
		b := t.b
		if b.SupplierStatus.HasOrder() {
			return false, nil
		}
		if b.Flight.FareKey == "" {
			b.LastError = "fare key missing"
			return true, &domain.ValidationError{Field: "fare_key", Reason: "is required"}
		}

		res, err := s.client.CheckFare(ctx, supplier.FareCheckRequest{
			FareKey:  b.Flight.FareKey,
			Adults:   b.Flight.Passengers.Adults,
			Children: b.Flight.Passengers.Children,
			Infants:  b.Flight.Passengers.Infants,
		})
		if err == nil && !res.Available {
			err = &domain.RejectedError{Op: "check_fare", Code: supplier.CodeFareUnavailable, Message: "fare is no longer available"}
		}
		if err != nil {
			b.LastError = err.Error()
			return true, err
		}

		if res.FareKey != "" {
			b.Flight.FareKey = res.FareKey
		}
		if total := normalize.RoundMoney(res.Total.Float64()); total > 0 && total != b.Flight.Itinerary.TotalPrice {
			s.log.Info("fare repriced",
				zap.String("booking_id", b.ID),
				zap.Float64("old_total", b.Flight.Itinerary.TotalPrice),
				zap.Float64("new_total", total),
			)
			b.Flight.Itinerary.TotalPrice = total
		}
		b.SupplierStatus = domain.SupplierStatusInitiated
		b.Timestamps.FareCheckedAt = ptr(s.now())
		b.LastError = ""
		return true, nil
	})
}

func (s *BookingService) SavePassengers(ctx context.Context, id string, input SavePassengersInput) (*domain.Booking, error) {
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	if !s.enabled() {
		return nil, domain.ErrIntegrationDisabled
	}

	return s.mutate(ctx, id, func(t *txn) (bool, error) {
		b := t.b
		// At most one supplier order per booking.
		if b.SupplierOrderID != "" {
			return false, nil
		}
		if b.SupplierStatus == domain.SupplierStatusCancelled || b.SupplierStatus == domain.SupplierStatusExpired {
			return false, fmt.Errorf("booking %s is %s: %w", b.ID, b.SupplierStatus, domain.ErrInvalidTransition)
		}
		if err := checkPassengerMix(input.Passengers, b.Flight.Passengers); err != nil {
			return false, err
		}
		if b.Flight.FareKey == "" {
			b.LastError = "fare key missing; run a fare check first"
			return true, &domain.ValidationError{Field: "fare_key", Reason: "is required"}
		}

		order, err := s.client.SaveOrder(ctx, supplier.SaveOrderRequest{
			ClientRef:  b.ID,
			FareKey:    b.Flight.FareKey,
			Contact:    supplier.Contact(input.Contact),
			Passengers: toSupplierPassengers(input.Passengers),
		})
		if err == nil && order.OrderID == "" {
			err = &domain.TransportError{Op: "save_order", Err: errors.New("empty order id")}
		}
		if err != nil {
			b.LastError = err.Error()
			return true, err
		}

		b.Contact = input.Contact
		b.Passengers = input.Passengers
		b.SupplierOrderID = order.OrderID
		b.SupplierStatus = domain.SupplierStatusNew
		if strings.EqualFold(order.Status, string(domain.SupplierStatusSaved)) {
			b.SupplierStatus = domain.SupplierStatusSaved
		}
		b.Timestamps.SavedAt = ptr(s.now())
		b.LastError = ""
		t.emit(kafka.EventOrderCreated)
		s.log.Info("supplier order saved", zap.String("booking_id", b.ID), zap.String("order_id", order.OrderID))
		return true, nil
	})
}

// ConfirmPayment records a verified payment and, when an order exists, issues the ticket.
// A failed issuance leaves the booking in saved_not_issued for the monitor.
func (s *BookingService) ConfirmPayment(ctx context.Context, input PaymentInput) (*domain.Booking, error) {
	return s.mutate(ctx, input.BookingID, func(t *txn) (bool, error) {
		b := t.b
		if b.PaymentStatus == domain.PaymentStatusPaid {
			return false, nil
		}
		if b.SupplierStatus == domain.SupplierStatusCancelled || b.SupplierStatus == domain.SupplierStatusExpired {
			return false, fmt.Errorf("booking %s is %s: %w", b.ID, b.SupplierStatus, domain.ErrInvalidTransition)
		}
		if normalize.RoundMoney(input.Amount) != normalize.RoundMoney(b.Total()) {
			return false, &domain.ValidationError{
				Field:  "amount",
				Reason: fmt.Sprintf("paid %.2f, booking total is %.2f", input.Amount, b.Total()),
			}
		}
		if cur := b.Flight.Itinerary.Currency; input.Currency != "" && cur != "" && !strings.EqualFold(input.Currency, cur) {
			return false, &domain.ValidationError{Field: "currency", Reason: "does not match booking currency " + cur}
		}

		b.PaymentStatus = domain.PaymentStatusPaid
		b.PaymentRef = input.TransactionID
		b.PaidAmount = normalize.RoundMoney(input.Amount)
		b.Timestamps.PaidAt = ptr(s.now())
		s.log.Info("payment recorded", zap.String("booking_id", b.ID), zap.String("transaction_id", input.TransactionID))

		if b.SupplierOrderID == "" {
			return true, nil
		}
		if b.SupplierStatus == domain.SupplierStatusNew || b.SupplierStatus == domain.SupplierStatusSaved {
			b.SupplierStatus = domain.SupplierStatusConfirmed
		}
		if !s.enabled() {
			b.LastError = domain.ErrIntegrationDisabled.Error()
			return true, nil
		}
		if !b.SupplierStatus.Issuable() {
			return true, nil
		}

		if err := s.issue(ctx, t); err != nil {
			b.SupplierStatus = domain.SupplierStatusSavedNotIssued
			s.log.Warn("issuance after payment failed", zap.String("booking_id", b.ID), zap.Error(err))
		}
		return true, nil
	})
}

func (s *BookingService) RetryIssuance(ctx context.Context, id string, trigger Trigger) (*domain.Booking, error) {
	if !s.enabled() {
		return nil, domain.ErrIntegrationDisabled
	}
	return s.mutate(ctx, id, func(t *txn) (bool, error) {
		b := t.b
		switch {
		case b.SupplierStatus == domain.SupplierStatusIssued:
			return false, nil
		case b.SupplierStatus == domain.SupplierStatusCancelled, b.SupplierStatus == domain.SupplierStatusExpired:
			return false, fmt.Errorf("booking %s is %s: %w", b.ID, b.SupplierStatus, domain.ErrInvalidTransition)
		case b.PaymentStatus != domain.PaymentStatusPaid:
			return false, fmt.Errorf("booking %s is not paid: %w", b.ID, domain.ErrInvalidTransition)
		case b.SupplierOrderID == "":
			return false, fmt.Errorf("booking %s has no supplier order: %w", b.ID, domain.ErrInvalidTransition)
		case trigger == TriggerMonitor && !b.NeedsIssuance():
			return false, nil
		}

		err := s.issue(ctx, t)
		if err == nil {
			return true, nil
		}

		if trigger == TriggerMonitor && b.IssueAttempts >= s.maxIssueAttempts {
			b.SupplierStatus = domain.SupplierStatusFailed
			b.Timestamps.FailedAt = ptr(s.now())
			t.emit(kafka.EventTicketFailed)
			s.log.Error("issuance gave up", zap.String("booking_id", b.ID), zap.Int("attempts", b.IssueAttempts), zap.Error(err))
		} else if b.SupplierStatus != domain.SupplierStatusFailed {
			b.SupplierStatus = domain.SupplierStatusSavedNotIssued
		}
		return true, err
	})
}

// issue calls the supplier and, on success, moves the booking to issued.
// A supplier "already issued" rejection is reconciled through an order lookup.
func (s *BookingService) issue(ctx context.Context, t *txn) error {
	b := t.b
	b.IssueAttempts++

	order, err := s.client.IssueOrder(ctx, b.SupplierOrderID)
	if err != nil && domain.RejectionCode(err) == supplier.CodeAlreadyIssued {
		s.log.Info("supplier reports order already issued, reconciling", zap.String("booking_id", b.ID))
		order, err = s.client.GetOrder(ctx, b.SupplierOrderID)
	}
	if err == nil && (!strings.EqualFold(order.Status, string(domain.SupplierStatusIssued)) || len(order.Tickets) == 0) {
		err = &domain.TransportError{Op: "issue_order", Err: fmt.Errorf("order %s is %q without ticket", b.SupplierOrderID, order.Status)}
	}
	if err != nil {
		b.LastError = err.Error()
		return err
	}

	s.markIssued(t, order.Tickets, order.RecordLocator, order.DocumentURL)
	return nil
}

func (s *BookingService) markIssued(t *txn, tickets []string, locator, document string) {
	b := t.b
	b.SupplierStatus = domain.SupplierStatusIssued
	b.Ticket = &domain.Ticket{
		Number:        tickets[0],
		Numbers:       append([]string(nil), tickets...),
		RecordLocator: locator,
		DocumentPath:  document,
	}
	b.Timestamps.IssuedAt = ptr(s.now())
	b.LastError = ""
	t.emit(kafka.EventTicketIssued)
	s.log.Info("ticket issued", zap.String("booking_id", b.ID), zap.String("ticket", tickets[0]))
}

// ApplySupplierEvent applies a webhook idempotently. Stale or duplicate events are
// no-ops; terminal statuses are only left along CanBecome.
func (s *BookingService) ApplySupplierEvent(ctx context.Context, event SupplierEvent) (*domain.Booking, error) {
	next, ok := eventStatus[event.Event]
	if !ok {
		return nil, &domain.ValidationError{Field: "event", Reason: "unknown event " + event.Event}
	}
	if event.OrderID == "" {
		return nil, &domain.ValidationError{Field: "order_id", Reason: "is required"}
	}

	id, err := s.resolveBookingID(ctx, event)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, id, func(t *txn) (bool, error) {
		b := t.b
		attach := false
		switch {
		case b.SupplierOrderID == "":
			attach = true
		case b.SupplierOrderID != event.OrderID:
			return false, fmt.Errorf("event order %s does not match booking order %s: %w", event.OrderID, b.SupplierOrderID, domain.ErrInvalidTransition)
		}

		if !b.SupplierStatus.CanBecome(next) {
			s.log.Info("stale supplier event ignored",
				zap.String("booking_id", b.ID),
				zap.String("event", event.Event),
				zap.String("current", string(b.SupplierStatus)),
			)
			return false, nil
		}
		if b.SupplierStatus == next && !(next == domain.SupplierStatusIssued && b.Ticket == nil) {
			return false, nil
		}

		if attach {
			b.SupplierOrderID = event.OrderID
			if b.Timestamps.SavedAt == nil {
				b.Timestamps.SavedAt = ptr(s.now())
			}
		}

		now := s.now()
		switch next {
		case domain.SupplierStatusNew:
			b.SupplierStatus = next
			if attach {
				t.emit(kafka.EventOrderCreated)
			}
		case domain.SupplierStatusConfirmed:
			b.SupplierStatus = next
		case domain.SupplierStatusIssued:
			tickets, locator, document := event.Tickets, event.RecordLocator, event.DocumentURL
			if len(tickets) == 0 && s.enabled() {
				if order, err := s.client.GetOrder(ctx, b.SupplierOrderID); err == nil {
					tickets, locator, document = order.Tickets, order.RecordLocator, order.DocumentURL
				}
			}
			if len(tickets) == 0 {
				// Without a ticket number the booking cannot be issued; the monitor reconciles it.
				b.LastError = "issued event without ticket number"
				if b.PaymentStatus == domain.PaymentStatusPaid && b.SupplierStatus != domain.SupplierStatusFailed {
					b.SupplierStatus = domain.SupplierStatusSavedNotIssued
				}
				return true, nil
			}
			s.markIssued(t, tickets, locator, document)
		case domain.SupplierStatusFailed:
			b.SupplierStatus = next
			b.Timestamps.FailedAt = ptr(now)
			b.LastError = event.ErrorMessage
			t.emit(kafka.EventTicketFailed)
		case domain.SupplierStatusCancelled:
			b.SupplierStatus = next
			b.Timestamps.CancelledAt = ptr(now)
			t.emit(kafka.EventBookingCancel)
		case domain.SupplierStatusExpired:
			b.SupplierStatus = next
			b.Timestamps.ExpiredAt = ptr(now)
			t.emit(kafka.EventBookingExpire)
		}
		s.log.Info("supplier event applied", zap.String("booking_id", b.ID), zap.String("event", event.Event))
		return true, nil
	})
}

func (s *BookingService) resolveBookingID(ctx context.Context, event SupplierEvent) (string, error) {
	b, err := s.bookings.GetBySupplierOrderID(ctx, event.OrderID)
	if err == nil {
		return b.ID, nil
	}
	if !errors.Is(err, domain.ErrNotFound) || event.BookingID == "" {
		return "", err
	}
	// The event may overtake the save response; fall back to the client reference.
	b, err = s.bookings.GetByID(ctx, event.BookingID)
	if err != nil {
		return "", err
	}
	return b.ID, nil
}

func (s *BookingService) CancelBooking(ctx context.Context, id string) (*domain.Booking, error) {
	if !s.enabled() {
		return nil, domain.ErrIntegrationDisabled
	}
	return s.mutate(ctx, id, func(t *txn) (bool, error) {
		b := t.b
		switch b.SupplierStatus {
		case domain.SupplierStatusCancelled:
			return false, nil
		case domain.SupplierStatusExpired:
			return false, fmt.Errorf("booking %s is expired: %w", b.ID, domain.ErrInvalidTransition)
		}

		switch {
		case b.SupplierStatus == domain.SupplierStatusIssued:
			if !b.Flight.Itinerary.Voidable {
				return false, &domain.RejectedError{Op: "void_ticket", Code: supplier.CodeNotVoidable, Message: "ticket is not voidable, request a refund"}
			}
			if _, err := s.client.VoidTicket(ctx, b.Ticket.Number); err != nil {
				b.LastError = err.Error()
				return true, err
			}
			if b.PaymentStatus == domain.PaymentStatusPaid {
				b.PaymentStatus = domain.PaymentStatusRefunded
			}
		case b.SupplierOrderID != "":
			if _, err := s.client.CancelOrder(ctx, b.SupplierOrderID); err != nil {
				b.LastError = err.Error()
				return true, err
			}
		}

		b.SupplierStatus = domain.SupplierStatusCancelled
		b.Timestamps.CancelledAt = ptr(s.now())
		b.LastError = ""
		t.emit(kafka.EventBookingCancel)
		s.log.Info("booking cancelled", zap.String("booking_id", b.ID))
		return true, nil
	})
}

func (s *BookingService) RefundBooking(ctx context.Context, id string) (*domain.Booking, error) {
	if !s.enabled() {
		return nil, domain.ErrIntegrationDisabled
	}
	return s.mutate(ctx, id, func(t *txn) (bool, error) {
		b := t.b
		if b.PaymentStatus == domain.PaymentStatusRefunded {
			return false, nil
		}
		if b.SupplierStatus != domain.SupplierStatusIssued || b.Ticket == nil {
			return false, fmt.Errorf("booking %s is not issued: %w", b.ID, domain.ErrInvalidTransition)
		}
		if _, err := s.client.RefundTicket(ctx, b.Ticket.Number); err != nil {
			b.LastError = err.Error()
			return true, err
		}
		b.SupplierStatus = domain.SupplierStatusCancelled
		b.PaymentStatus = domain.PaymentStatusRefunded
		b.Timestamps.CancelledAt = ptr(s.now())
		b.LastError = ""
		t.emit(kafka.EventBookingRefund)
		return true, nil
	})
}

func (s *BookingService) CompleteBooking(ctx context.Context, id string) (*domain.Booking, error) {
	return s.mutate(ctx, id, func(t *txn) (bool, error) {
		b := t.b
		switch b.Status {
		case domain.BookingStatusDone:
			return false, nil
		case domain.BookingStatusIssued:
			b.Status = domain.BookingStatusDone
			return true, nil
		}
		return false, fmt.Errorf("booking %s is %s: %w", b.ID, b.Status, domain.ErrInvalidTransition)
	})
}

func (s *BookingService) TicketDetails(ctx context.Context, id string) (supplier.TicketInfo, error) {
	if !s.enabled() {
		return supplier.TicketInfo{}, domain.ErrIntegrationDisabled
	}
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return supplier.TicketInfo{}, err
	}
	if b.Ticket == nil {
		return supplier.TicketInfo{}, fmt.Errorf("booking %s has no ticket: %w", id, domain.ErrNotFound)
	}
	return s.client.GetTicket(ctx, b.Ticket.Number)
}

// ExpireStaleBookings marks unpaid bookings older than the hold TTL as expired and
// cancels their supplier orders on a best-effort basis.
func (s *BookingService) ExpireStaleBookings(ctx context.Context) ([]domain.Booking, error) {
	candidates, err := s.bookings.ListExpirable(ctx, s.now().Add(-s.holdTTL), s.expireBatch)
	if err != nil {
		return nil, err
	}

	var expired []domain.Booking
	for _, c := range candidates {
		updated, err := s.mutate(ctx, c.ID, func(t *txn) (bool, error) {
			b := t.b
			if b.PaymentStatus != domain.PaymentStatusUnpaid || (b.SupplierStatus.Terminal() && b.SupplierStatus != domain.SupplierStatusFailed) {
				return false, nil
			}
			if b.SupplierOrderID != "" && s.enabled() {
				if _, err := s.client.CancelOrder(ctx, b.SupplierOrderID); err != nil {
					s.log.Warn("cancel expired order", zap.String("booking_id", b.ID), zap.Error(err))
				}
			}
			b.SupplierStatus = domain.SupplierStatusExpired
			b.Timestamps.ExpiredAt = ptr(s.now())
			t.emit(kafka.EventBookingExpire)
			return true, nil
		})
		if err != nil {
			s.log.Warn("expire booking", zap.String("booking_id", c.ID), zap.Error(err))
			continue
		}
		if updated.SupplierStatus == domain.SupplierStatusExpired {
			expired = append(expired, *updated)
		}
	}
	return expired, nil
}

func (s *BookingService) notify(ctx context.Context, eventType string, b *domain.Booking) {
	if s.producer == nil || s.notificationsTopic == "" {
		return
	}
	event := kafka.BookingEvent{
		ID:             uuid.NewString(),
		Type:           eventType,
		BookingID:      b.ID,
		OrderID:        b.SupplierOrderID,
		Email:          b.Contact.Email,
		Status:         string(b.Status),
		SupplierStatus: string(b.SupplierStatus),
		Error:          b.LastError,
		OccurredAt:     s.now(),
	}
	if b.Ticket != nil {
		event.TicketNumber = b.Ticket.Number
		event.RecordLocator = b.Ticket.RecordLocator
	}
	if err := s.producer.Publish(context.WithoutCancel(ctx), s.notificationsTopic, b.ID, event); err != nil {
		s.log.Warn("failed to publish notification",
			zap.String("booking_id", b.ID),
			zap.String("type", eventType),
			zap.Error(err),
		)
	}
}

// GenerateBookingID renders BK + date + zero-padded sequence, e.g. BK20261019000042.
func GenerateBookingID(now time.Time, seq int64) string {
	return fmt.Sprintf("BK%s%06d", now.Format("20060102"), seq)
}

func toSupplierPassengers(in []domain.Passenger) []supplier.Passenger {
	out := make([]supplier.Passenger, 0, len(in))
	for _, p := range in {
		out = append(out, supplier.Passenger{
			Type:           string(p.Type),
			FirstName:      p.FirstName,
			LastName:       p.LastName,
			Gender:         p.Gender,
			BirthDate:      p.BirthDate,
			Citizenship:    p.Citizenship,
			DocumentType:   p.DocumentType,
			DocumentNumber: p.DocumentNumber,
			DocumentExpiry: p.DocumentExpiry,
		})
	}
	return out
}

func ptr(t time.Time) *time.Time {
	return &t
}

var _ BookingUseCase = (*BookingService)(nil)
