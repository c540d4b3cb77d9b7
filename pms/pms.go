// Package pms is the minimal property-management store: guests, their
// bookings, and maintenance tickets raised against a booking.
package pms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a phone number has no active booking.
var ErrNotFound = errors.New("pms: not found")

const (
	BookingActive     = "Active"
	BookingCheckedOut = "CheckedOut"
)

// TicketType routes a ticket to a hotel department.
type TicketType string

const (
	Housekeeping TicketType = "Housekeeping"
	Engineering  TicketType = "Engineering"
	Concierge    TicketType = "Concierge"
)

// Ticket statuses
const (
	TicketOpen       = "Open"
	TicketInProgress = "In Progress"
	TicketClosed     = "Closed"
)

// NormalizeTicketType maps a free-form department name onto the fixed set.
// Anything unrecognised goes to the concierge desk.
func NormalizeTicketType(s string) TicketType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "housekeeping", "cleaning":
		return Housekeeping
	case "engineering", "maintenance":
		return Engineering
	default:
		return Concierge
	}
}

// FormatTicketID renders the confirmation token read back to the caller.
func FormatTicketID(id int64) string {
	return fmt.Sprintf("TKT-%d", id)
}

type Guest struct {
	Phone     string `json:"phone"`
	Name      string `json:"name,omitempty"`
	LastOrder string `json:"last_order,omitempty"`
	Visits    int    `json:"visits"`
}

// GuestUpdate carries the fields to change; nil fields are left alone.
type GuestUpdate struct {
	Name      *string
	LastOrder *string
}

type Booking struct {
	ID         int64     `json:"id"`
	GuestPhone string    `json:"guest_phone"`
	Room       string    `json:"room"`
	CheckIn    time.Time `json:"check_in"`
	CheckOut   time.Time `json:"check_out"`
	Balance    float64   `json:"balance"`
	Status     string    `json:"status"`
}

type Ticket struct {
	ID          int64      `json:"id"`
	BookingID   int64      `json:"booking_id"`
	Type        TicketType `json:"type"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Reservation seeds a guest with an active booking.
type Reservation struct {
	Phone   string
	Name    string
	Room    string
	Nights  int
	Balance float64
}

// Store is the narrow query/command surface the phone agent uses.
type Store interface {
	// GetGuest returns the guest, creating a default profile on first lookup.
	GetGuest(ctx context.Context, phone string) (Guest, error)
	UpdateGuest(ctx context.Context, phone string, update GuestUpdate) error
	// RecordVisit bumps the visit counter, once per call.
	RecordVisit(ctx context.Context, phone string) error
	GetActiveBooking(ctx context.Context, phone string) (Booking, error)
	// CreateTicket returns the TKT-<n> token, or ErrNotFound without
	// creating anything when there is no active booking.
	CreateTicket(ctx context.Context, phone string, kind TicketType, description string) (string, error)
	GetBalance(ctx context.Context, phone string) (float64, error)
	TicketCount(ctx context.Context) (int, error)
	Seed(ctx context.Context, r Reservation) error
}
