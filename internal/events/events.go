package events

import (
	"context"
	"time"

	"github.com/parkwise/reservation-api/internal/domain"
)

type Type string

const (
	TypeReservationAdmitted  Type = "reservation.admitted"
	TypeReservationCancelled Type = "reservation.cancelled"
	TypeReservationsSwept    Type = "reservations.swept"
)

// Event describes a committed change to the reservation set.
type Event struct {
	Type          Type      `json:"type"`
	ReservationID string    `json:"reservation_id,omitempty"`
	SpotID        string    `json:"spot_id,omitempty"`
	StartTime     time.Time `json:"start_time,omitzero"`
	EndTime       time.Time `json:"end_time,omitzero"`
	Count         int64     `json:"count,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher delivers events after the change they describe has been committed.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// ReservationAdmitted builds the event for a newly admitted reservation.
func ReservationAdmitted(r domain.Reservation, at time.Time) Event {
	return Event{
		Type:          TypeReservationAdmitted,
		ReservationID: r.ID,
		SpotID:        r.SpotID,
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
		OccurredAt:    at,
	}
}

// ReservationCancelled builds the event for a cancelled reservation.
func ReservationCancelled(r domain.Reservation, at time.Time) Event {
	return Event{
		Type:          TypeReservationCancelled,
		ReservationID: r.ID,
		SpotID:        r.SpotID,
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
		OccurredAt:    at,
	}
}

// ReservationsSwept builds the event for a retention sweep that removed count rows.
func ReservationsSwept(count int64, at time.Time) Event {
	return Event{
		Type:       TypeReservationsSwept,
		Count:      count,
		OccurredAt: at,
	}
}
