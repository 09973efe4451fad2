package email

import (
	"context"
	"fmt"

	"github.com/Domenick1991/flightdesk/internal/kafka"
	"go.uber.org/zap"
)

// Sender renders booking notifications. Delivery is handed to the mail relay,
// which lives outside this service; here the rendered message is logged.
type Sender struct {
	log *zap.Logger
}

func NewSender(log *zap.Logger) *Sender {
	return &Sender{log: log.With(zap.String("component", "email"))}
}

func (s *Sender) Send(ctx context.Context, event kafka.BookingEvent) error {
	if event.Email == "" {
		return fmt.Errorf("booking %s: no recipient", event.BookingID)
	}
	subject, body := Render(event)
	s.log.Info("send email",
		zap.String("to", event.Email),
		zap.String("subject", subject),
		zap.String("body", body),
		zap.String("booking_id", event.BookingID),
	)
	return nil
}

func Render(event kafka.BookingEvent) (subject, body string) {
	switch event.Type {
	case kafka.EventOrderCreated:
		return "Booking " + event.BookingID + " reserved",
			fmt.Sprintf("Your booking %s is reserved with the airline (order %s). Complete payment to get your ticket.", event.BookingID, event.OrderID)
	case kafka.EventTicketIssued:
		return "Your e-ticket " + event.TicketNumber,
			fmt.Sprintf("Ticket %s has been issued for booking %s. Record locator: %s.", event.TicketNumber, event.BookingID, event.RecordLocator)
	case kafka.EventTicketFailed:
		return "We could not issue your ticket",
			fmt.Sprintf("Ticketing for booking %s failed: %s. Our team will contact you.", event.BookingID, event.Error)
	case kafka.EventBookingCancel:
		return "Booking " + event.BookingID + " cancelled",
			fmt.Sprintf("Booking %s has been cancelled.", event.BookingID)
	case kafka.EventBookingExpire:
		return "Booking " + event.BookingID + " expired",
			fmt.Sprintf("Booking %s expired before payment was received.", event.BookingID)
	case kafka.EventBookingRefund:
		return "Refund for booking " + event.BookingID,
			fmt.Sprintf("Ticket %s has been refunded.", event.TicketNumber)
	default:
		return "Booking " + event.BookingID + " update",
			fmt.Sprintf("Booking %s status: %s.", event.BookingID, event.Status)
	}
}
