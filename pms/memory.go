package pms

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store used by tests and the text harness.
type MemoryStore struct {
	mu       sync.Mutex
	guests   map[string]*Guest
	bookings []Booking
	tickets  []Ticket
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		guests: make(map[string]*Guest),
		now:    time.Now,
	}
}

func (m *MemoryStore) guest(phone string) *Guest {
	g, ok := m.guests[phone]
	if !ok {
		g = &Guest{Phone: phone}
		m.guests[phone] = g
	}
	return g
}

func (m *MemoryStore) GetGuest(_ context.Context, phone string) (Guest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.guest(phone), nil
}

func (m *MemoryStore) UpdateGuest(_ context.Context, phone string, update GuestUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g := m.guest(phone)
	if update.Name != nil {
		g.Name = *update.Name
	}
	if update.LastOrder != nil {
		g.LastOrder = *update.LastOrder
	}
	return nil
}

func (m *MemoryStore) RecordVisit(_ context.Context, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guest(phone).Visits++
	return nil
}

// activeBooking returns the newest active booking. Caller holds mu.
func (m *MemoryStore) activeBooking(phone string) (Booking, bool) {
	for i := len(m.bookings) - 1; i >= 0; i-- {
		b := m.bookings[i]
		if b.GuestPhone == phone && b.Status == BookingActive {
			return b, true
		}
	}
	return Booking{}, false
}

func (m *MemoryStore) GetActiveBooking(_ context.Context, phone string) (Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.activeBooking(phone)
	if !ok {
		return Booking{}, ErrNotFound
	}
	return b, nil
}

func (m *MemoryStore) CreateTicket(_ context.Context, phone string, kind TicketType, description string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.activeBooking(phone)
	if !ok {
		return "", ErrNotFound
	}

	t := Ticket{
		ID:          int64(len(m.tickets) + 1),
		BookingID:   b.ID,
		Type:        kind,
		Description: description,
		Status:      TicketOpen,
		CreatedAt:   m.now(),
	}
	m.tickets = append(m.tickets, t)
	return FormatTicketID(t.ID), nil
}

func (m *MemoryStore) GetBalance(_ context.Context, phone string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.activeBooking(phone)
	if !ok {
		return 0, ErrNotFound
	}
	return b.Balance, nil
}

func (m *MemoryStore) TicketCount(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tickets), nil
}

// Tickets returns a copy of every ticket, oldest first.
func (m *MemoryStore) Tickets() []Ticket {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Ticket(nil), m.tickets...)
}

func (m *MemoryStore) Seed(_ context.Context, r Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g := m.guest(r.Phone)
	if r.Name != "" {
		g.Name = r.Name
	}

	if _, ok := m.activeBooking(r.Phone); ok {
		return nil
	}

	checkIn := m.now().UTC().Truncate(24 * time.Hour)
	m.bookings = append(m.bookings, Booking{
		ID:         int64(len(m.bookings) + 1),
		GuestPhone: r.Phone,
		Room:       r.Room,
		CheckIn:    checkIn,
		CheckOut:   checkIn.AddDate(0, 0, nights(r.Nights)),
		Balance:    r.Balance,
		Status:     BookingActive,
	})
	return nil
}

func nights(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}
