package pms

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/room4-2/concierge/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

// StoreTestSuite runs the same contract against every Store implementation.
type StoreTestSuite struct {
	suite.Suite
	newStore func(t *testing.T) Store
	store    Store
	ctx      context.Context
}

func (s *StoreTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.newStore(s.T())
}

func (s *StoreTestSuite) seedRoom402() {
	s.Require().NoError(s.store.Seed(s.ctx, Reservation{
		Phone:   "+15550001234",
		Name:    "Alex",
		Room:    "402",
		Nights:  3,
		Balance: 450,
	}))
}

func (s *StoreTestSuite) TestGetGuestCreatesDefault() {
	g, err := s.store.GetGuest(s.ctx, "+15550009999")
	s.Require().NoError(err)
	s.Equal(Guest{Phone: "+15550009999"}, g)
}

func (s *StoreTestSuite) TestUpdateGuest() {
	order := "Club sandwich x2"
	s.Require().NoError(s.store.UpdateGuest(s.ctx, "+15550001111", GuestUpdate{LastOrder: &order}))

	g, err := s.store.GetGuest(s.ctx, "+15550001111")
	s.Require().NoError(err)
	s.Equal(order, g.LastOrder)
	s.Empty(g.Name)

	name := "Sam"
	s.Require().NoError(s.store.UpdateGuest(s.ctx, "+15550001111", GuestUpdate{Name: &name}))
	g, _ = s.store.GetGuest(s.ctx, "+15550001111")
	s.Equal("Sam", g.Name)
	s.Equal(order, g.LastOrder)
}

func (s *StoreTestSuite) TestRecordVisit() {
	s.Require().NoError(s.store.RecordVisit(s.ctx, "+15550001111"))
	s.Require().NoError(s.store.RecordVisit(s.ctx, "+15550001111"))

	g, _ := s.store.GetGuest(s.ctx, "+15550001111")
	s.Equal(2, g.Visits)
}

func (s *StoreTestSuite) TestActiveBookingAndBalance() {
	s.seedRoom402()

	b, err := s.store.GetActiveBooking(s.ctx, "+15550001234")
	s.Require().NoError(err)
	s.Equal("402", b.Room)
	s.Equal(BookingActive, b.Status)
	s.Equal(3*24.0, b.CheckOut.Sub(b.CheckIn).Hours())

	bal, err := s.store.GetBalance(s.ctx, "+15550001234")
	s.Require().NoError(err)
	s.InDelta(450.0, bal, 0.001)

	g, _ := s.store.GetGuest(s.ctx, "+15550001234")
	s.Equal("Alex", g.Name)
}

func (s *StoreTestSuite) TestNoBooking() {
	_, err := s.store.GetActiveBooking(s.ctx, "+15550000000")
	s.ErrorIs(err, ErrNotFound)

	_, err = s.store.GetBalance(s.ctx, "+15550000000")
	s.ErrorIs(err, ErrNotFound)
}

func (s *StoreTestSuite) TestCreateTicket() {
	s.seedRoom402()

	id, err := s.store.CreateTicket(s.ctx, "+15550001234", Engineering, "air conditioning broken")
	s.Require().NoError(err)
	s.Equal("TKT-1", id)

	id, err = s.store.CreateTicket(s.ctx, "+15550001234", Housekeeping, "extra towels")
	s.Require().NoError(err)
	s.Equal("TKT-2", id)

	n, _ := s.store.TicketCount(s.ctx)
	s.Equal(2, n)
}

func (s *StoreTestSuite) TestCreateTicketWithoutBooking() {
	before, err := s.store.TicketCount(s.ctx)
	s.Require().NoError(err)

	id, err := s.store.CreateTicket(s.ctx, "+15550000000", Engineering, "leak")
	s.ErrorIs(err, ErrNotFound)
	s.Empty(id)

	after, _ := s.store.TicketCount(s.ctx)
	s.Equal(before, after)
}

func (s *StoreTestSuite) TestSeedIsIdempotent() {
	s.seedRoom402()
	s.seedRoom402()

	id, err := s.store.CreateTicket(s.ctx, "+15550001234", Concierge, "late checkout")
	s.Require().NoError(err)
	s.Equal("TKT-1", id)
}

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &StoreTestSuite{newStore: func(*testing.T) Store { return NewMemoryStore() }})
}

func TestSQLStore(t *testing.T) {
	suite.Run(t, &StoreTestSuite{newStore: func(t *testing.T) Store {
		conn, err := db.OpenAndMigrate(context.Background(), filepath.Join(t.TempDir(), "hotel.db"))
		if err != nil {
			t.Fatalf("open db: %v", err)
		}
		t.Cleanup(func() { conn.Close() })
		return NewSQLStore(conn)
	}})
}

func TestNormalizeTicketType(t *testing.T) {
	assert.Equal(t, Engineering, NormalizeTicketType("engineering"))
	assert.Equal(t, Engineering, NormalizeTicketType(" Maintenance "))
	assert.Equal(t, Housekeeping, NormalizeTicketType("Housekeeping"))
	assert.Equal(t, Concierge, NormalizeTicketType("spa"))
	assert.Equal(t, Concierge, NormalizeTicketType(""))
}
