package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Hotel holds the static property facts the concierge may quote to guests.
// It is loaded once at startup and treated as read-only afterwards.
type Hotel struct {
	Name      string        `mapstructure:"name"`
	Timezone  string        `mapstructure:"timezone"`
	Amenities []string      `mapstructure:"amenities"`
	Hours     []HoursEntry  `mapstructure:"hours"`
	Wifi      Wifi          `mapstructure:"wifi"`
	Menu      []MenuSection `mapstructure:"menu"`
}

// HoursEntry is one line of the opening-hours sheet, e.g. Pool / 07:00-22:00.
type HoursEntry struct {
	Name  string `mapstructure:"name"`
	Value string `mapstructure:"value"`
}

// Wifi holds the guest network credentials.
type Wifi struct {
	Network  string `mapstructure:"network"`
	Password string `mapstructure:"password"`
}

// MenuSection is a room-service menu served inside a daily window.
// Opens and Closes are "HH:MM" in hotel local time; a window whose
// close is before its open wraps past midnight.
type MenuSection struct {
	Name   string     `mapstructure:"name"`
	Opens  string     `mapstructure:"opens"`
	Closes string     `mapstructure:"closes"`
	Items  []MenuItem `mapstructure:"items"`
}

// MenuItem is a single orderable dish.
type MenuItem struct {
	Name  string  `mapstructure:"name"`
	Price float64 `mapstructure:"price"`
}

// DefaultHotel returns the built-in property used when no hotel file exists.
func DefaultHotel() *Hotel {
	return &Hotel{
		Name:      "Grand Hotel",
		Timezone:  "UTC",
		Amenities: []string{"Spa", "Indoor pool", "Fitness center", "Valet parking"},
		Hours: []HoursEntry{
			{Name: "Front desk", Value: "24 hours"},
			{Name: "Spa", Value: "09:00-21:00"},
			{Name: "Pool", Value: "07:00-22:00"},
			{Name: "Checkout", Value: "11:00"},
		},
		Wifi: Wifi{Network: "GrandHotel-Guest", Password: "welcome2024"},
		Menu: []MenuSection{
			{
				Name: "Breakfast", Opens: "06:30", Closes: "11:00",
				Items: []MenuItem{
					{Name: "Continental breakfast", Price: 24},
					{Name: "Eggs Benedict", Price: 19},
				},
			},
			{
				Name: "All-day dining", Opens: "11:00", Closes: "23:00",
				Items: []MenuItem{
					{Name: "Club sandwich", Price: 21},
					{Name: "Cheeseburger", Price: 23},
					{Name: "Caesar salad", Price: 17},
				},
			},
			{
				Name: "Late night", Opens: "23:00", Closes: "06:30",
				Items: []MenuItem{
					{Name: "Margherita pizza", Price: 18},
				},
			},
		},
	}
}

// LoadHotel reads hotel facts from a YAML file. A missing file yields
// DefaultHotel; a file that exists but cannot be parsed is an error.
func LoadHotel(path string) (*Hotel, error) {
	if path == "" {
		return DefaultHotel(), nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultHotel(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	def := DefaultHotel()
	v.SetDefault("name", def.Name)
	v.SetDefault("timezone", def.Timezone)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read hotel config %s: %w", path, err)
	}

	hotel := &Hotel{}
	if err := v.Unmarshal(hotel); err != nil {
		return nil, fmt.Errorf("failed to decode hotel config: %w", err)
	}

	for _, section := range hotel.Menu {
		if _, err := parseClock(section.Opens); err != nil {
			return nil, fmt.Errorf("menu %q: invalid opens: %w", section.Name, err)
		}
		if _, err := parseClock(section.Closes); err != nil {
			return nil, fmt.Errorf("menu %q: invalid closes: %w", section.Name, err)
		}
	}
	if _, err := time.LoadLocation(hotel.Timezone); err != nil {
		return nil, fmt.Errorf("invalid hotel timezone %q: %w", hotel.Timezone, err)
	}

	return hotel, nil
}

// Location returns the hotel's time zone, UTC when unset or unknown.
func (h *Hotel) Location() *time.Location {
	loc, err := time.LoadLocation(h.Timezone)
	if err != nil || h.Timezone == "" {
		return time.UTC
	}
	return loc
}

// AvailableAt reports whether the section is served at the wall-clock time t.
func (s MenuSection) AvailableAt(t time.Time) bool {
	opens, err := parseClock(s.Opens)
	if err != nil {
		return false
	}
	closes, err := parseClock(s.Closes)
	if err != nil {
		return false
	}
	now := t.Hour()*60 + t.Minute()
	if opens == closes {
		return true
	}
	if opens < closes {
		return now >= opens && now < closes
	}
	return now >= opens || now < closes
}

// parseClock converts "HH:MM" into minutes after midnight. "24:00" is accepted.
func parseClock(s string) (int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil {
		return 0, fmt.Errorf("bad hour in %q", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil {
		return 0, fmt.Errorf("bad minute in %q", s)
	}
	if hour < 0 || minute < 0 || minute > 59 || hour > 24 || (hour == 24 && minute != 0) {
		return 0, fmt.Errorf("out of range clock %q", s)
	}
	return hour*60 + minute, nil
}
