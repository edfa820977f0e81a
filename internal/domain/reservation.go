package domain

import (
	"fmt"
	"time"
)

// DefaultStay is the occupancy assumed for a reservation without an end date.
const DefaultStay = 24 * time.Hour

type Reservation struct {
	ID        string     `json:"id"`
	GuestID   string     `json:"guestId"`
	DateStart time.Time  `json:"dateStart"`
	DateEnd   *time.Time `json:"dateEnd,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval builds the window a booking request asks for. A nil end means a
// single night.
func NewInterval(start time.Time, end *time.Time) (Interval, error) {
	if start.IsZero() {
		return Interval{}, fmt.Errorf("%w: dateStart is required", ErrValidation)
	}
	if end == nil {
		return Interval{Start: start, End: start.Add(DefaultStay)}, nil
	}
	if !end.After(start) {
		return Interval{}, fmt.Errorf("%w: dateEnd must be after dateStart", ErrValidation)
	}
	return Interval{Start: start, End: *end}, nil
}

// Overlaps uses half-open semantics: touching intervals do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Effective returns the occupied interval of a committed reservation.
func (r Reservation) Effective() Interval {
	if r.DateEnd == nil {
		return Interval{Start: r.DateStart, End: r.DateStart.Add(DefaultStay)}
	}
	return Interval{Start: r.DateStart, End: *r.DateEnd}
}

// Conflicting returns the first reservation in rs overlapping w. The scan is
// order independent.
func Conflicting(rs []Reservation, w Interval) (Reservation, bool) {
	for _, r := range rs {
		if r.Effective().Overlaps(w) {
			return r, true
		}
	}
	return Reservation{}, false
}

// Available reports whether w is free of every reservation in rs.
func Available(rs []Reservation, w Interval) bool {
	_, clash := Conflicting(rs, w)
	return !clash
}

// GuestReservation is one hit of a guest lookup.
type GuestReservation struct {
	HotelID     string      `json:"hotelId"`
	HotelName   string      `json:"hotelName"`
	Room        Room        `json:"room"`
	Reservation Reservation `json:"reservation"`
}
