package domain

import (
	"encoding/json"
	"time"
)

// BookingStatus is the coarse customer-facing status.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusIssued    BookingStatus = "issued"
	BookingStatusDone      BookingStatus = "done"
)

func (s BookingStatus) rank() int {
	switch s {
	case BookingStatusConfirmed:
		return 1
	case BookingStatusIssued, BookingStatusDone:
		return 2
	default:
		return 0
	}
}

// AtLeast reports whether s is at or beyond other in pending < confirmed < issued|done.
func (s BookingStatus) AtLeast(other BookingStatus) bool {
	return s.rank() >= other.rank()
}

type SupplierStatus string

const (
	SupplierStatusPending        SupplierStatus = "pending"
	SupplierStatusInitiated      SupplierStatus = "initiated"
	SupplierStatusSaved          SupplierStatus = "saved"
	SupplierStatusNew            SupplierStatus = "new"
	SupplierStatusConfirmed      SupplierStatus = "confirmed"
	SupplierStatusIssued         SupplierStatus = "issued"
	SupplierStatusSavedNotIssued SupplierStatus = "saved_not_issued"
	SupplierStatusFailed         SupplierStatus = "failed"
	SupplierStatusCancelled      SupplierStatus = "cancelled"
	SupplierStatusExpired        SupplierStatus = "expired"
)

// Terminal reports whether no non-terminal event may overwrite the status.
func (s SupplierStatus) Terminal() bool {
	switch s {
	case SupplierStatusIssued, SupplierStatusFailed, SupplierStatusCancelled, SupplierStatusExpired:
		return true
	}
	return false
}

// HasOrder reports whether the status implies an existing supplier order.
func (s SupplierStatus) HasOrder() bool {
	switch s {
	case SupplierStatusPending, SupplierStatusInitiated, "":
		return false
	}
	return true
}

// Issuable reports whether issuance may be attempted from s.
func (s SupplierStatus) Issuable() bool {
	switch s {
	case SupplierStatusSaved, SupplierStatusNew, SupplierStatusConfirmed, SupplierStatusSavedNotIssued, SupplierStatusFailed:
		return true
	}
	return false
}

func (s SupplierStatus) rank() int {
	switch s {
	case SupplierStatusInitiated:
		return 1
	case SupplierStatusSaved, SupplierStatusNew:
		return 2
	case SupplierStatusConfirmed:
		return 3
	case SupplierStatusSavedNotIssued:
		return 4
	default:
		return 0
	}
}

// CanBecome decides whether an event moving the booking from s to next may be applied.
// Any non-terminal status yields to a terminal one; among non-terminal statuses a late
// event never moves the booking backwards. Terminal statuses only give way to a narrow
// set of later terminal statuses.
func (s SupplierStatus) CanBecome(next SupplierStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case SupplierStatusCancelled, SupplierStatusExpired:
		return false
	case SupplierStatusIssued:
		return next == SupplierStatusCancelled
	case SupplierStatusFailed:
		return next == SupplierStatusIssued || next == SupplierStatusCancelled || next == SupplierStatusExpired
	}
	if next.Terminal() {
		return true
	}
	return next.rank() >= s.rank()
}

type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type Contact struct {
	Name  string `json:"name" validate:"required,min=2"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required,min=5"`
}

type PassengerType string

const (
	PassengerAdult  PassengerType = "adult"
	PassengerChild  PassengerType = "child"
	PassengerInfant PassengerType = "infant"
)

type Passenger struct {
	Type           PassengerType `json:"type" validate:"required,oneof=adult child infant"`
	FirstName      string        `json:"first_name" validate:"required"`
	LastName       string        `json:"last_name" validate:"required"`
	Gender         string        `json:"gender" validate:"required,oneof=M F"`
	BirthDate      string        `json:"birth_date" validate:"required,datetime=2006-01-02"`
	Citizenship    string        `json:"citizenship" validate:"required,len=2"`
	DocumentType   string        `json:"document_type" validate:"required"`
	DocumentNumber string        `json:"document_number" validate:"required"`
	DocumentExpiry string        `json:"document_expiry" validate:"required,datetime=2006-01-02"`
}

// FlightSnapshot freezes what the traveler selected at cart time.
type FlightSnapshot struct {
	SearchID   string          `json:"search_id,omitempty"`
	Itinerary  Itinerary       `json:"itinerary"`
	FareKey    string          `json:"fare_key"`
	Passengers PassengerCounts `json:"passengers"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

type Ticket struct {
	Number        string   `json:"number"`
	Numbers       []string `json:"numbers,omitempty"`
	RecordLocator string   `json:"record_locator"`
	DocumentPath  string   `json:"document_path,omitempty"`
}

type Timestamps struct {
	FareCheckedAt *time.Time `json:"fare_checked_at,omitempty"`
	SavedAt       *time.Time `json:"saved_at,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	IssuedAt      *time.Time `json:"issued_at,omitempty"`
	FailedAt      *time.Time `json:"failed_at,omitempty"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
	ExpiredAt     *time.Time `json:"expired_at,omitempty"`
}

type Booking struct {
	ID              string         `json:"id"`
	OwnerID         string         `json:"owner_id"`
	Contact         Contact        `json:"contact"`
	Flight          FlightSnapshot `json:"flight"`
	Passengers      []Passenger    `json:"passengers"`
	Status          BookingStatus  `json:"status"`
	SupplierOrderID string         `json:"supplier_order_id,omitempty"`
	SupplierStatus  SupplierStatus `json:"supplier_status"`
	PaymentStatus   PaymentStatus  `json:"payment_status"`
	PaymentRef      string         `json:"payment_ref,omitempty"`
	PaidAmount      float64        `json:"paid_amount,omitempty"`
	Ticket          *Ticket        `json:"ticket,omitempty"`
	LastError       string         `json:"last_error,omitempty"`
	IssueAttempts   int            `json:"issue_attempts"`
	Version         int64          `json:"version"`
	Timestamps      Timestamps     `json:"timestamps"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	c := *b
	c.Passengers = append([]Passenger(nil), b.Passengers...)
	c.Flight.Raw = append(json.RawMessage(nil), b.Flight.Raw...)
	c.Flight.Itinerary.Legs = append([]Leg(nil), b.Flight.Itinerary.Legs...)
	if b.Ticket != nil {
		t := *b.Ticket
		t.Numbers = append([]string(nil), b.Ticket.Numbers...)
		c.Ticket = &t
	}
	return &c
}

// ProjectStatus recomputes the local status from supplier and payment status.
// The result never ranks below the current local status.
func (b *Booking) ProjectStatus() {
	projected := BookingStatusPending
	switch {
	case b.SupplierStatus == SupplierStatusIssued:
		projected = BookingStatusIssued
	case b.PaymentStatus == PaymentStatusPaid, b.SupplierStatus == SupplierStatusConfirmed:
		projected = BookingStatusConfirmed
	}
	if b.Status == "" || !b.Status.AtLeast(projected) {
		b.Status = projected
	}
}

// NeedsIssuance reports whether the monitor should pick the booking up.
func (b *Booking) NeedsIssuance() bool {
	if b.PaymentStatus != PaymentStatusPaid || b.SupplierOrderID == "" {
		return false
	}
	switch b.SupplierStatus {
	case SupplierStatusNew, SupplierStatusSaved, SupplierStatusConfirmed, SupplierStatusSavedNotIssued:
		return true
	}
	return false
}

func (b *Booking) Total() float64 {
	return b.Flight.Itinerary.TotalPrice
}
