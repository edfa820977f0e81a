package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"hotel_booking/internal/domain"
)

// Directory owns hotels and their rooms. A hotel's manager is fixed at
// creation; room writes and manager listings require that manager.
type Directory struct {
	repo   domain.HotelRepository
	users  domain.UserDirectory
	engine *ReservationEngine
	cache  domain.Cache
}

func NewDirectory(r domain.HotelRepository, u domain.UserDirectory, e *ReservationEngine, c domain.Cache) *Directory {
	return &Directory{repo: r, users: u, engine: e, cache: c}
}

func (d *Directory) AddHotel(ctx context.Context, name, managerID string) (domain.Hotel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Hotel{}, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if strings.TrimSpace(managerID) == "" {
		return domain.Hotel{}, fmt.Errorf("%w: managerId is required", domain.ErrValidation)
	}
	known, err := d.users.Exists(ctx, managerID)
	if err != nil {
		return domain.Hotel{}, err
	}
	if !known {
		return domain.Hotel{}, fmt.Errorf("%w: managerId %s is not a known user", domain.ErrValidation, managerID)
	}

	h, err := d.repo.CreateHotel(ctx, domain.Hotel{
		ID:        uuid.NewString(),
		Name:      name,
		ManagerID: managerID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return domain.Hotel{}, err
	}
	invalidateListing(ctx, d.cache)
	log.Info().Str("hotel", h.ID).Str("manager", managerID).Msg("hotel created")
	return h, nil
}

// AddRoomToHotel appends room to the hotel managed by managerID. Reservations
// carried on the room are validated as a set first, then committed through
// the reservation engine once the room exists.
func (d *Directory) AddRoomToHotel(ctx context.Context, managerID, hotelID string, room domain.Room) (domain.Room, error) {
	return d.addRoom(ctx, managerID, hotelID, room, false)
}

// ImportRoom is AddRoomToHotel for existing data: embedded reservations may
// lie in the past.
func (d *Directory) ImportRoom(ctx context.Context, managerID, hotelID string, room domain.Room) (domain.Room, error) {
	return d.addRoom(ctx, managerID, hotelID, room, true)
}

func (d *Directory) addRoom(ctx context.Context, managerID, hotelID string, room domain.Room, historical bool) (domain.Room, error) {
	if room.RoomNo <= 0 {
		return domain.Room{}, fmt.Errorf("%w: roomNo must be a positive integer", domain.ErrValidation)
	}
	h, err := d.repo.GetHotel(ctx, hotelID)
	if err != nil {
		return domain.Room{}, err
	}
	if h.ManagerID != managerID {
		return domain.Room{}, fmt.Errorf("%w: user %s does not manage hotel %s", domain.ErrForbidden, managerID, hotelID)
	}
	if h.HasRoomNo(room.RoomNo) {
		return domain.Room{}, fmt.Errorf("%w: room %d already exists in hotel %s", domain.ErrConflict, room.RoomNo, hotelID)
	}

	initial := room.Reservations
	if err := d.checkInitial(initial, historical); err != nil {
		return domain.Room{}, err
	}

	room.ID = uuid.NewString()
	created, err := d.repo.AddRoom(ctx, hotelID, room)
	if err != nil {
		return domain.Room{}, err
	}
	invalidateListing(ctx, d.cache)
	log.Info().Str("hotel", hotelID).Str("room", created.ID).Int("roomNo", created.RoomNo).Msg("room added")

	book := d.engine.CreateReservation
	if historical {
		book = d.engine.ImportReservation
	}
	for _, r := range initial {
		res, err := book(ctx, hotelID, created.ID, r.GuestID, r.DateStart, r.DateEnd)
		if err != nil {
			return created, fmt.Errorf("room %d created, reservation for %s failed: %w", created.RoomNo, r.GuestID, err)
		}
		created.Reservations = append(created.Reservations, res)
	}
	return created, nil
}

// checkInitial rejects a batch that is invalid or overlaps itself. Historical
// batches skip the past-date rule.
func (d *Directory) checkInitial(rs []domain.Reservation, historical bool) error {
	check := d.engine.validate
	if historical {
		check = shape
	}
	accepted := make([]domain.Reservation, 0, len(rs))
	for i, r := range rs {
		w, err := check(r.GuestID, r.DateStart, r.DateEnd)
		if err != nil {
			return fmt.Errorf("reservations[%d]: %w", i, err)
		}
		if _, clash := domain.Conflicting(accepted, w); clash {
			return fmt.Errorf("%w: reservations[%d] overlaps an earlier reservation in the request", domain.ErrConflict, i)
		}
		accepted = append(accepted, r)
	}
	return nil
}

func (d *Directory) ListHotels(ctx context.Context) ([]domain.Hotel, error) {
	return d.repo.ListHotels(ctx)
}

func (d *Directory) GetRoomsForManager(ctx context.Context, managerID, hotelID string) ([]domain.Room, error) {
	h, err := d.repo.GetHotel(ctx, hotelID)
	if err != nil {
		return nil, err
	}
	if h.ManagerID != managerID {
		return nil, fmt.Errorf("%w: user %s does not manage hotel %s", domain.ErrForbidden, managerID, hotelID)
	}
	return h.Rooms, nil
}
