package domain

import "context"

// ReservationCheck inspects a room's committed reservations inside the room's
// exclusive section and returns an error to abort the commit.
type ReservationCheck func(existing []Reservation) error

type HotelRepository interface {
	// Write paths
	CreateHotel(ctx context.Context, h Hotel) (Hotel, error)
	// AddRoom fails with ErrConflict when roomNo is taken in that hotel.
	AddRoom(ctx context.Context, hotelID string, r Room) (Room, error)
	// CommitReservation serializes per room: it loads the room's reservations,
	// runs check and appends r only if check returns nil, all in one exclusive
	// section. A failed commit leaves the list unchanged.
	CommitReservation(ctx context.Context, hotelID, roomID string, r Reservation, check ReservationCheck) (Reservation, error)

	// Read paths
	GetHotel(ctx context.Context, id string) (Hotel, error)
	GetRoom(ctx context.Context, hotelID, roomID string) (Room, error)
	ListHotels(ctx context.Context) ([]Hotel, error)
	ListHotelsByManager(ctx context.Context, managerID string) ([]Hotel, error)
}

type UserDirectory interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
	// Incr atomically adds one to an integer key and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
}
