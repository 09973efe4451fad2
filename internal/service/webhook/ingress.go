package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Domenick1991/flightdesk/internal/domain"
	"github.com/Domenick1991/flightdesk/internal/service/booking"
	"go.uber.org/zap"
)

// EventApplier is the part of the booking service the ingress drives.
type EventApplier interface {
	ApplySupplierEvent(ctx context.Context, event booking.SupplierEvent) (*domain.Booking, error)
}

// Deduper short-circuits repeated deliveries of the same event.
type Deduper interface {
	FirstDelivery(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeInvalid   Outcome = "invalid"
	OutcomeFailed    Outcome = "failed"
)

// Result describes what happened to one delivery. The caller acknowledges it
// regardless; Err is for logging only.
type Result struct {
	Outcome   Outcome
	BookingID string
	Err       error
}

type Ingress struct {
	applier EventApplier
	dedupe  Deduper
	log     *zap.Logger
}

func NewIngress(applier EventApplier, dedupe Deduper, log *zap.Logger) *Ingress {
	return &Ingress{
		applier: applier,
		dedupe:  dedupe,
		log:     log.With(zap.String("service", "webhook")),
	}
}

// payload tolerates tickets sent either as a list or as a single string.
type payload struct {
	Event         string          `json:"event"`
	OrderID       string          `json:"order_id"`
	BookingID     string          `json:"booking_id"`
	Status        string          `json:"status"`
	Tickets       json.RawMessage `json:"tickets"`
	TicketNumber  string          `json:"ticket_number"`
	RecordLocator string          `json:"record_locator"`
	DocumentURL   string          `json:"document_url"`
	ErrorMessage  string          `json:"error_message"`
}

// Decode parses a raw webhook body into a supplier event.
func Decode(body []byte) (booking.SupplierEvent, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return booking.SupplierEvent{}, &domain.ValidationError{Field: "body", Reason: err.Error()}
	}
	tickets, err := decodeTickets(p.Tickets)
	if err != nil {
		return booking.SupplierEvent{}, err
	}
	if len(tickets) == 0 && p.TicketNumber != "" {
		tickets = []string{p.TicketNumber}
	}

	event := booking.SupplierEvent{
		Event:         strings.ToLower(strings.TrimSpace(p.Event)),
		OrderID:       strings.TrimSpace(p.OrderID),
		BookingID:     strings.TrimSpace(p.BookingID),
		Status:        p.Status,
		Tickets:       tickets,
		RecordLocator: p.RecordLocator,
		DocumentURL:   p.DocumentURL,
		ErrorMessage:  p.ErrorMessage,
	}
	if event.Event == "" {
		return event, &domain.ValidationError{Field: "event", Reason: "is required"}
	}
	if event.OrderID == "" {
		return event, &domain.ValidationError{Field: "order_id", Reason: "is required"}
	}
	return event, nil
}

func decodeTickets(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if raw[0] == '"' {
		var one string
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, &domain.ValidationError{Field: "tickets", Reason: err.Error()}
		}
		if one == "" {
			return nil, nil
		}
		return []string{one}, nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, &domain.ValidationError{Field: "tickets", Reason: err.Error()}
	}
	out := many[:0]
	for _, t := range many {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out, nil
}

func DeliveryKey(event booking.SupplierEvent) string {
	return fmt.Sprintf("%s:%s", event.OrderID, event.Event)
}

// Handle processes one delivery. It never asks for a redelivery: failures are
// logged, the dedupe key is released and the issuance monitor reconciles.
func (i *Ingress) Handle(ctx context.Context, body []byte) Result {
	event, err := Decode(body)
	if err != nil {
		i.log.Warn("rejecting malformed webhook", zap.Error(err))
		return Result{Outcome: OutcomeInvalid, Err: err}
	}

	logger := i.log.With(zap.String("order_id", event.OrderID), zap.String("event", event.Event))
	key := DeliveryKey(event)

	if i.dedupe != nil {
		first, err := i.dedupe.FirstDelivery(ctx, key)
		switch {
		case err != nil:
			// The state check in the booking service still keeps the event idempotent.
			logger.Warn("dedupe lookup failed", zap.Error(err))
		case !first:
			logger.Info("duplicate webhook delivery")
			return Result{Outcome: OutcomeDuplicate}
		}
	}

	release := func() {
		if i.dedupe == nil {
			return
		}
		if ferr := i.dedupe.Forget(context.WithoutCancel(ctx), key); ferr != nil {
			logger.Warn("release dedupe key", zap.Error(ferr))
		}
	}

	b, err := i.applier.ApplySupplierEvent(ctx, event)
	if err != nil {
		release()
		level := logger.Error
		if errors.Is(err, domain.ErrNotFound) || domain.IsValidation(err) || errors.Is(err, domain.ErrConcurrencyConflict) {
			level = logger.Warn
		}
		level("webhook not applied", zap.Error(err))
		outcome := OutcomeFailed
		if domain.IsValidation(err) {
			outcome = OutcomeInvalid
		}
		return Result{Outcome: outcome, BookingID: event.BookingID, Err: err}
	}

	if !reachedTarget(event, b) {
		// A corrected redelivery of the same event must still get through.
		release()
		logger.Info("webhook left booking short of its target",
			zap.String("booking_id", b.ID),
			zap.String("supplier_status", string(b.SupplierStatus)),
		)
		return Result{Outcome: OutcomeApplied, BookingID: b.ID}
	}

	logger.Info("webhook applied", zap.String("booking_id", b.ID), zap.String("supplier_status", string(b.SupplierStatus)))
	return Result{Outcome: OutcomeApplied, BookingID: b.ID}
}

// reachedTarget is false when the booking could still move to the status the
// event names, i.e. the event was accepted but not fully applied.
func reachedTarget(event booking.SupplierEvent, b *domain.Booking) bool {
	target, ok := booking.EventTarget(event.Event)
	if !ok || b == nil || b.SupplierStatus == target {
		return true
	}
	return !b.SupplierStatus.CanBecome(target)
}
