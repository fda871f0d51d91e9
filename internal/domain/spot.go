package domain

import "time"

// MaxSpotNumberLength bounds Spot.Number.
const MaxSpotNumberLength = 32

// Spot is a single bookable parking location identified by a unique number.
type Spot struct {
	ID        string
	Number    string
	Active    bool
	CreatedAt time.Time
}
