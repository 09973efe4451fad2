package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/flightdesk/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BookingRepository interface {
	NextSequence(ctx context.Context) (int64, error)
	Create(ctx context.Context, booking *domain.Booking) error
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	GetBySupplierOrderID(ctx context.Context, orderID string) (*domain.Booking, error)
	// Update persists booking if its stored version still equals booking.Version,
	// then bumps booking.Version. A stale version yields domain.ErrConcurrencyConflict.
	Update(ctx context.Context, booking *domain.Booking) error
	ListIssuanceCandidates(ctx context.Context, limit int) ([]domain.Booking, error)
	ListExpirable(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Booking, error)
}

type PGBookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) BookingRepository {
	return &PGBookingRepository{db: db}
}

const bookingColumns = `id, owner_id, status, supplier_order_id, supplier_status, payment_status,
	payment_ref, paid_amount, contact, flight, passengers, ticket, timestamps,
	last_error, issue_attempts, version, created_at, updated_at`

func (r *PGBookingRepository) NextSequence(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT nextval('booking_seq')`).Scan(&n); err != nil {
		return 0, &domain.PersistenceError{Op: "next_sequence", Err: err}
	}
	return n, nil
}

func (r *PGBookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	doc, err := encode(b)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		b.ID, b.OwnerID, b.Status, b.SupplierOrderID, b.SupplierStatus, b.PaymentStatus,
		b.PaymentRef, b.PaidAmount, doc.contact, doc.flight, doc.passengers, doc.ticket, doc.timestamps,
		b.LastError, b.IssueAttempts, b.Version, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return &domain.PersistenceError{Op: "create", Err: err}
	}
	return nil
}

func (r *PGBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id)
	return scanOne(row, "booking "+id)
}

func (r *PGBookingRepository) GetBySupplierOrderID(ctx context.Context, orderID string) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE supplier_order_id=$1`, orderID)
	return scanOne(row, "order "+orderID)
}

func (r *PGBookingRepository) Update(ctx context.Context, b *domain.Booking) error {
	doc, err := encode(b)
	if err != nil {
		return err
	}
	cmd, err := r.db.Exec(ctx, `UPDATE bookings SET
			owner_id=$3, status=$4, supplier_order_id=NULLIF($5, ''), supplier_status=$6, payment_status=$7,
			payment_ref=$8, paid_amount=$9, contact=$10, flight=$11, passengers=$12, ticket=$13,
			timestamps=$14, last_error=$15, issue_attempts=$16, updated_at=$17, version=version+1
		WHERE id=$1 AND version=$2`,
		b.ID, b.Version, b.OwnerID, b.Status, b.SupplierOrderID, b.SupplierStatus, b.PaymentStatus,
		b.PaymentRef, b.PaidAmount, doc.contact, doc.flight, doc.passengers, doc.ticket,
		doc.timestamps, b.LastError, b.IssueAttempts, b.UpdatedAt)
	if err != nil {
		return &domain.PersistenceError{Op: "update", Err: err}
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("booking %s version %d: %w", b.ID, b.Version, domain.ErrConcurrencyConflict)
	}
	b.Version++
	return nil
}

func (r *PGBookingRepository) ListIssuanceCandidates(ctx context.Context, limit int) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE payment_status=$1 AND supplier_order_id IS NOT NULL AND supplier_status = ANY($2)
		ORDER BY updated_at LIMIT $3`,
		domain.PaymentStatusPaid,
		[]string{
			string(domain.SupplierStatusNew),
			string(domain.SupplierStatusSaved),
			string(domain.SupplierStatusConfirmed),
			string(domain.SupplierStatusSavedNotIssued),
		},
		limit)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list_issuance_candidates", Err: err}
	}
	return scanAll(rows)
}

func (r *PGBookingRepository) ListExpirable(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE payment_status=$1 AND created_at <= $2 AND supplier_status <> ALL($3)
		ORDER BY created_at LIMIT $4`,
		domain.PaymentStatusUnpaid,
		createdBefore,
		[]string{
			string(domain.SupplierStatusIssued),
			string(domain.SupplierStatusCancelled),
			string(domain.SupplierStatusExpired),
		},
		limit)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list_expirable", Err: err}
	}
	return scanAll(rows)
}

type document struct {
	contact, flight, passengers, ticket, timestamps []byte
}

func encode(b *domain.Booking) (document, error) {
	var d document
	var err error
	if d.contact, err = json.Marshal(b.Contact); err != nil {
		return d, err
	}
	if d.flight, err = json.Marshal(b.Flight); err != nil {
		return d, err
	}
	passengers := b.Passengers
	if passengers == nil {
		passengers = []domain.Passenger{}
	}
	if d.passengers, err = json.Marshal(passengers); err != nil {
		return d, err
	}
	if b.Ticket != nil {
		if d.ticket, err = json.Marshal(b.Ticket); err != nil {
			return d, err
		}
	}
	if d.timestamps, err = json.Marshal(b.Timestamps); err != nil {
		return d, err
	}
	return d, nil
}

func scan(row pgx.Row) (*domain.Booking, error) {
	var (
		b       domain.Booking
		orderID *string
		d       document
	)
	if err := row.Scan(&b.ID, &b.OwnerID, &b.Status, &orderID, &b.SupplierStatus, &b.PaymentStatus,
		&b.PaymentRef, &b.PaidAmount, &d.contact, &d.flight, &d.passengers, &d.ticket, &d.timestamps,
		&b.LastError, &b.IssueAttempts, &b.Version, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	if orderID != nil {
		b.SupplierOrderID = *orderID
	}
	if err := json.Unmarshal(d.contact, &b.Contact); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(d.flight, &b.Flight); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(d.passengers, &b.Passengers); err != nil {
		return nil, err
	}
	if len(d.ticket) > 0 {
		b.Ticket = &domain.Ticket{}
		if err := json.Unmarshal(d.ticket, b.Ticket); err != nil {
			return nil, err
		}
	}
	if err := json.Unmarshal(d.timestamps, &b.Timestamps); err != nil {
		return nil, err
	}
	return &b, nil
}

func scanOne(row pgx.Row, what string) (*domain.Booking, error) {
	b, err := scan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", what, domain.ErrNotFound)
		}
		return nil, &domain.PersistenceError{Op: "get", Err: err}
	}
	return b, nil
}

func scanAll(rows pgx.Rows) ([]domain.Booking, error) {
	defer rows.Close()
	var out []domain.Booking
	for rows.Next() {
		b, err := scan(rows)
		if err != nil {
			return nil, &domain.PersistenceError{Op: "scan", Err: err}
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "scan", Err: err}
	}
	return out, nil
}

var _ BookingRepository = (*PGBookingRepository)(nil)
