package pms

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLStore is the libsql-backed Store. Timestamps are stored as RFC3339 text.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func ensureGuest(ctx context.Context, ex execer, phone string) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO guests (phone) VALUES (?) ON CONFLICT(phone) DO NOTHING`, phone)
	if err != nil {
		return fmt.Errorf("ensure guest %s: %w", phone, err)
	}
	return nil
}

func (s *SQLStore) GetGuest(ctx context.Context, phone string) (Guest, error) {
	if err := ensureGuest(ctx, s.db, phone); err != nil {
		return Guest{}, err
	}

	g := Guest{Phone: phone}
	err := s.db.QueryRowContext(ctx,
		`SELECT name, last_order, visits FROM guests WHERE phone = ?`, phone,
	).Scan(&g.Name, &g.LastOrder, &g.Visits)
	if err != nil {
		return Guest{}, fmt.Errorf("get guest %s: %w", phone, err)
	}
	return g, nil
}

func (s *SQLStore) UpdateGuest(ctx context.Context, phone string, update GuestUpdate) error {
	if err := ensureGuest(ctx, s.db, phone); err != nil {
		return err
	}
	if update.Name != nil {
		if _, err := s.db.ExecContext(ctx, `UPDATE guests SET name = ? WHERE phone = ?`, *update.Name, phone); err != nil {
			return fmt.Errorf("update guest name: %w", err)
		}
	}
	if update.LastOrder != nil {
		if _, err := s.db.ExecContext(ctx, `UPDATE guests SET last_order = ? WHERE phone = ?`, *update.LastOrder, phone); err != nil {
			return fmt.Errorf("update guest last order: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) RecordVisit(ctx context.Context, phone string) error {
	if err := ensureGuest(ctx, s.db, phone); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE guests SET visits = visits + 1 WHERE phone = ?`, phone); err != nil {
		return fmt.Errorf("record visit: %w", err)
	}
	return nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func activeBooking(ctx context.Context, q queryRower, phone string) (Booking, error) {
	var (
		b                 Booking
		checkIn, checkOut string
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, guest_phone, room_number, check_in, check_out, balance, status
		FROM bookings
		WHERE guest_phone = ? AND status = ?
		ORDER BY id DESC
		LIMIT 1`, phone, BookingActive,
	).Scan(&b.ID, &b.GuestPhone, &b.Room, &checkIn, &checkOut, &b.Balance, &b.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return Booking{}, ErrNotFound
	}
	if err != nil {
		return Booking{}, fmt.Errorf("active booking %s: %w", phone, err)
	}

	b.CheckIn, _ = time.Parse(time.RFC3339, checkIn)
	b.CheckOut, _ = time.Parse(time.RFC3339, checkOut)
	return b, nil
}

func (s *SQLStore) GetActiveBooking(ctx context.Context, phone string) (Booking, error) {
	return activeBooking(ctx, s.db, phone)
}

// CreateTicket looks up the booking and inserts the ticket in one transaction.
func (s *SQLStore) CreateTicket(ctx context.Context, phone string, kind TicketType, description string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin ticket tx: %w", err)
	}
	defer tx.Rollback()

	b, err := activeBooking(ctx, tx, phone)
	if err != nil {
		return "", err
	}

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO tickets (booking_id, type, description, status, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`,
		b.ID, string(kind), description, TicketOpen, s.now().UTC().Format(time.RFC3339),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert ticket: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit ticket: %w", err)
	}
	return FormatTicketID(id), nil
}

func (s *SQLStore) GetBalance(ctx context.Context, phone string) (float64, error) {
	b, err := activeBooking(ctx, s.db, phone)
	if err != nil {
		return 0, err
	}
	return b.Balance, nil
}

func (s *SQLStore) TicketCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tickets: %w", err)
	}
	return n, nil
}

// Seed installs a guest with an active booking unless that guest already has one.
func (s *SQLStore) Seed(ctx context.Context, r Reservation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed tx: %w", err)
	}
	defer tx.Rollback()

	if err := ensureGuest(ctx, tx, r.Phone); err != nil {
		return err
	}
	if r.Name != "" {
		if _, err := tx.ExecContext(ctx, `UPDATE guests SET name = ? WHERE phone = ?`, r.Name, r.Phone); err != nil {
			return fmt.Errorf("seed guest name: %w", err)
		}
	}

	if _, err := activeBooking(ctx, tx, r.Phone); err == nil {
		return tx.Commit()
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	checkIn := s.now().UTC().Truncate(24 * time.Hour)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO bookings (guest_phone, room_number, check_in, check_out, balance, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.Phone, r.Room,
		checkIn.Format(time.RFC3339),
		checkIn.AddDate(0, 0, nights(r.Nights)).Format(time.RFC3339),
		r.Balance, BookingActive,
	)
	if err != nil {
		return fmt.Errorf("seed booking: %w", err)
	}
	return tx.Commit()
}
