package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"hotel_booking/internal/adapters/observability"
	"hotel_booking/internal/domain"
)

// ReservationEngine owns availability decisions. All overlap logic lives in
// domain.Conflicting; the repository supplies the per-room commit point.
type ReservationEngine struct {
	repo  domain.HotelRepository
	cache domain.Cache
	now   func() time.Time
}

func NewReservationEngine(r domain.HotelRepository, c domain.Cache) *ReservationEngine {
	return &ReservationEngine{repo: r, cache: c, now: time.Now}
}

// WithClock pins the booking clock (tests, replays).
func (e *ReservationEngine) WithClock(now func() time.Time) *ReservationEngine {
	e.now = now
	return e
}

// CheckAvailability is true iff no reservation on the room overlaps
// [start, end). A nil end asks for a single night.
func (e *ReservationEngine) CheckAvailability(ctx context.Context, hotelID, roomID string, start time.Time, end *time.Time) (bool, error) {
	w, err := domain.NewInterval(start, end)
	if err != nil {
		return false, err
	}
	room, err := e.repo.GetRoom(ctx, hotelID, roomID)
	if err != nil {
		return false, err
	}
	return domain.Available(room.Reservations, w), nil
}

// stamp is the storage precision shared by every repository.
const stamp = time.Millisecond

// shape checks what any stored reservation must satisfy and returns the
// window at storage precision.
func shape(guestID string, start time.Time, end *time.Time) (domain.Interval, error) {
	if strings.TrimSpace(guestID) == "" {
		return domain.Interval{}, fmt.Errorf("%w: guestId is required", domain.ErrValidation)
	}
	start = start.UTC().Truncate(stamp)
	if end != nil {
		e := end.UTC().Truncate(stamp)
		end = &e
	}
	return domain.NewInterval(start, end)
}

// validate adds the booking-time rule: no start before today (UTC).
func (e *ReservationEngine) validate(guestID string, start time.Time, end *time.Time) (domain.Interval, error) {
	w, err := shape(guestID, start, end)
	if err != nil {
		return domain.Interval{}, err
	}
	today := e.now().UTC().Truncate(24 * time.Hour)
	if w.Start.Before(today) {
		return domain.Interval{}, fmt.Errorf("%w: dateStart %s is in the past", domain.ErrValidation, w.Start.Format(time.RFC3339))
	}
	return w, nil
}

// CreateReservation re-validates availability inside the room's exclusive
// section; a prior CheckAvailability result is never trusted.
func (e *ReservationEngine) CreateReservation(ctx context.Context, hotelID, roomID, guestID string, start time.Time, end *time.Time) (domain.Reservation, error) {
	w, err := e.validate(guestID, start, end)
	if err != nil {
		observability.ObserveReservation("invalid")
		return domain.Reservation{}, err
	}
	return e.commit(ctx, hotelID, roomID, guestID, w, end != nil)
}

// ImportReservation records an existing reservation, e.g. from a seed file.
// It skips the past-date rule but keeps the overlap check.
func (e *ReservationEngine) ImportReservation(ctx context.Context, hotelID, roomID, guestID string, start time.Time, end *time.Time) (domain.Reservation, error) {
	w, err := shape(guestID, start, end)
	if err != nil {
		observability.ObserveReservation("invalid")
		return domain.Reservation{}, err
	}
	return e.commit(ctx, hotelID, roomID, guestID, w, end != nil)
}

func (e *ReservationEngine) commit(ctx context.Context, hotelID, roomID, guestID string, w domain.Interval, hasEnd bool) (domain.Reservation, error) {
	res := domain.Reservation{
		ID:        uuid.NewString(),
		GuestID:   guestID,
		DateStart: w.Start,
		CreatedAt: e.now().UTC().Truncate(stamp),
	}
	if hasEnd {
		de := w.End
		res.DateEnd = &de
	}

	out, err := e.repo.CommitReservation(ctx, hotelID, roomID, res, func(existing []domain.Reservation) error {
		if c, clash := domain.Conflicting(existing, w); clash {
			ce := c.Effective()
			return fmt.Errorf("%w: room %s is booked from %s to %s", domain.ErrConflict, roomID,
				ce.Start.Format(time.RFC3339), ce.End.Format(time.RFC3339))
		}
		return nil
	})
	if err != nil {
		observability.ObserveReservation(outcome(err))
		if errors.Is(err, domain.ErrConflict) {
			log.Info().Str("hotel", hotelID).Str("room", roomID).Str("guest", guestID).
				Time("start", w.Start).Time("end", w.End).Msg("reservation rejected: room unavailable")
		}
		return domain.Reservation{}, err
	}

	observability.ObserveReservation("created")
	invalidateListing(ctx, e.cache)
	log.Info().Str("hotel", hotelID).Str("room", roomID).Str("guest", guestID).
		Str("reservation", out.ID).Time("start", w.Start).Time("end", w.End).Msg("reservation committed")
	return out, nil
}

// ListReservationsForGuest scans scope for reservations held by guestID.
func (e *ReservationEngine) ListReservationsForGuest(scope []domain.Hotel, guestID string) []domain.GuestReservation {
	out := make([]domain.GuestReservation, 0)
	for _, h := range scope {
		for _, rm := range h.Rooms {
			for _, r := range rm.Reservations {
				if r.GuestID != guestID {
					continue
				}
				out = append(out, domain.GuestReservation{
					HotelID:     h.ID,
					HotelName:   h.Name,
					Room:        guestView(rm, guestID),
					Reservation: r,
				})
			}
		}
	}
	return out
}

// guestView strips other guests' reservations from the room.
func guestView(rm domain.Room, guestID string) domain.Room {
	out := rm
	out.Reservations = make([]domain.Reservation, 0, 1)
	for _, r := range rm.Reservations {
		if r.GuestID == guestID {
			out.Reservations = append(out.Reservations, r)
		}
	}
	return out
}

// ListAvailableRooms filters a hotel's rooms to those free for [start, end).
func (e *ReservationEngine) ListAvailableRooms(ctx context.Context, hotelID string, start time.Time, end *time.Time) ([]domain.Room, error) {
	w, err := domain.NewInterval(start, end)
	if err != nil {
		return nil, err
	}
	h, err := e.repo.GetHotel(ctx, hotelID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Room, 0, len(h.Rooms))
	for _, rm := range h.Rooms {
		if domain.Available(rm.Reservations, w) {
			out = append(out, rm)
		}
	}
	return out, nil
}

func outcome(err error) string {
	switch domain.Kind(err) {
	case domain.ErrConflict:
		return "conflict"
	case domain.ErrNotFound:
		return "not_found"
	case domain.ErrValidation:
		return "invalid"
	case domain.ErrStorage:
		return "storage_error"
	}
	return "error"
}
