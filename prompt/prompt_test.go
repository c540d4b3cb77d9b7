package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/room4-2/concierge/config"
	"github.com/room4-2/concierge/functions"
	"github.com/room4-2/concierge/pms"

	"github.com/stretchr/testify/assert"
)

func newBuilder() *Builder {
	return NewBuilder(config.DefaultHotel(), functions.Declarations())
}

func at(hour, minute int) time.Time {
	return time.Date(2025, 6, 2, hour, minute, 0, 0, time.UTC)
}

func TestBuildIsDeterministic(t *testing.T) {
	in := Input{
		Guest: pms.Guest{Phone: "+15550001234", Name: "Alex", LastOrder: "1 x Cheeseburger", Visits: 3},
		Room:  "402",
		Now:   at(14, 5),
	}

	first := newBuilder().Build(in)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, newBuilder().Build(in))
	}
}

func TestBuildIncludesKnownGuestFacts(t *testing.T) {
	out := newBuilder().Build(Input{
		Guest: pms.Guest{Name: "Alex", LastOrder: "1 x Cheeseburger", Visits: 3},
		Room:  "402",
		Now:   at(14, 5),
	})

	assert.Contains(t, out, "Grand Hotel")
	assert.Contains(t, out, "Name: Alex")
	assert.Contains(t, out, "room 402")
	assert.Contains(t, out, "1 x Cheeseburger")
	assert.Contains(t, out, "3 calls")
}

func TestBuildOmitsUnknownGuestFacts(t *testing.T) {
	out := newBuilder().Build(Input{Guest: pms.Guest{Phone: "+15550009999"}, Now: at(14, 5)})

	assert.NotContains(t, out, "Name:")
	assert.NotContains(t, out, "Last room-service order")
	assert.NotContains(t, out, "+15550009999")
	assert.Contains(t, out, "Nothing is on file")
}

func TestBuildGatesMenuByTime(t *testing.T) {
	b := newBuilder()

	morning := b.Build(Input{Now: at(8, 0)})
	serving := morning[strings.Index(morning, "Serving now"):]
	assert.Contains(t, serving, "Eggs Benedict")
	assert.NotContains(t, serving[:strings.Index(serving, "Not served")], "Cheeseburger")
	assert.Contains(t, morning, "morning")

	late := b.Build(Input{Now: at(23, 30)})
	assert.Contains(t, late, "Late night until 06:30")
	assert.Contains(t, late, "night")
}

func TestBuildUsesHotelTimezone(t *testing.T) {
	hotel := config.DefaultHotel()
	hotel.Timezone = "America/Toronto"

	// 12:00 UTC is 08:00 in Toronto in June
	out := NewBuilder(hotel, nil).Build(Input{Now: at(12, 0)})
	assert.Contains(t, out, "08:00")
	assert.Contains(t, out, "Eggs Benedict")
}

func TestBuildClosedKitchen(t *testing.T) {
	hotel := config.DefaultHotel()
	hotel.Menu = hotel.Menu[:1]

	out := NewBuilder(hotel, nil).Build(Input{Now: at(15, 0)})
	assert.Contains(t, out, "Room service is closed right now")
}

func TestBuildListsToolsAndContract(t *testing.T) {
	out := newBuilder().Build(Input{Now: at(14, 5)})

	assert.Contains(t, out, "create_maintenance_ticket(issue_type, description)")
	assert.Contains(t, out, "check_bill()")
	assert.Contains(t, out, "book_room_service(item, quantity?)")
	assert.Contains(t, out, "transfer_call(reason)")
	assert.True(t, strings.HasSuffix(out, OutputContract))
}

func TestBuildWithoutTools(t *testing.T) {
	out := NewBuilder(nil, nil).Build(Input{Now: at(9, 0)})
	assert.Contains(t, out, "No tools are available")
	assert.Contains(t, out, "Grand Hotel")
}
