package domain

import "time"

const (
	MaxHolderNameLength = 64
	MaxHouseholdLength  = 64
	MaxPhoneLength      = 32
)

// Reservation holds a spot for the half-open window [StartTime, EndTime).
type Reservation struct {
	ID         string
	SpotID     string
	HolderName string
	Household  string
	Phone      string
	StartTime  time.Time
	EndTime    time.Time
	CreatedAt  time.Time
}

// Window returns the reserved time range.
func (r Reservation) Window() Window {
	return Window{Start: r.StartTime, End: r.EndTime}
}

// ReservationFilter narrows reservation listings. An empty SpotID lists every spot.
type ReservationFilter struct {
	SpotID string
}
