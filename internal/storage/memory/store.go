// Package memory is an in-process HotelRepository. Each room carries its own
// mutex; the store-wide lock only guards the hotel/room index.
package memory

import (
	"context"
	"fmt"
	"sync"

	"hotel_booking/internal/domain"
)

type roomRec struct {
	mu   sync.RWMutex
	room domain.Room
}

type hotelRec struct {
	hotel domain.Hotel // Rooms is always nil here; rooms live in rooms.
	rooms []*roomRec
}

type Store struct {
	mu     sync.RWMutex
	hotels map[string]*hotelRec
	order  []string
	users  map[string]struct{}
}

func New() *Store {
	return &Store{
		hotels: make(map[string]*hotelRec),
		users:  make(map[string]struct{}),
	}
}

// AddUser registers a known identity for the UserDirectory side of the store.
func (s *Store) AddUser(id string) {
	s.mu.Lock()
	s.users[id] = struct{}{}
	s.mu.Unlock()
}

// UpsertUser matches the MySQL repository's seeding signature. The memory
// store does not track roles.
func (s *Store) UpsertUser(ctx context.Context, id string, _ domain.Role) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.AddUser(id)
	return nil
}

func (s *Store) Exists(ctx context.Context, userID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	_, ok := s.users[userID]
	s.mu.RUnlock()
	return ok, nil
}

func (s *Store) CreateHotel(ctx context.Context, h domain.Hotel) (domain.Hotel, error) {
	if err := ctx.Err(); err != nil {
		return domain.Hotel{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.hotels[h.ID]; dup {
		return domain.Hotel{}, fmt.Errorf("%w: hotel %s already exists", domain.ErrConflict, h.ID)
	}
	rec := &hotelRec{hotel: h}
	rec.hotel.Rooms = nil
	s.hotels[h.ID] = rec
	s.order = append(s.order, h.ID)

	out := h
	out.Rooms = []domain.Room{}
	return out, nil
}

func (s *Store) AddRoom(ctx context.Context, hotelID string, r domain.Room) (domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return domain.Room{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	hr, ok := s.hotels[hotelID]
	if !ok {
		return domain.Room{}, fmt.Errorf("%w: hotel %s", domain.ErrNotFound, hotelID)
	}
	for _, rr := range hr.rooms {
		// roomNo and id never change after insert, so no room lock needed.
		if rr.room.RoomNo == r.RoomNo {
			return domain.Room{}, fmt.Errorf("%w: room %d already exists in hotel %s", domain.ErrConflict, r.RoomNo, hotelID)
		}
		if rr.room.ID == r.ID {
			return domain.Room{}, fmt.Errorf("%w: room id %s already exists", domain.ErrConflict, r.ID)
		}
	}
	r.HotelID = hotelID
	r.Reservations = nil
	hr.rooms = append(hr.rooms, &roomRec{room: r})

	r.Reservations = []domain.Reservation{}
	return r, nil
}

// lookupRoom holds the index lock only long enough to find the record.
func (s *Store) lookupRoom(hotelID, roomID string) (*roomRec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hr, ok := s.hotels[hotelID]
	if !ok {
		return nil, fmt.Errorf("%w: hotel %s", domain.ErrNotFound, hotelID)
	}
	for _, rr := range hr.rooms {
		if rr.room.ID == roomID {
			return rr, nil
		}
	}
	return nil, fmt.Errorf("%w: room %s in hotel %s", domain.ErrNotFound, roomID, hotelID)
}

func (s *Store) CommitReservation(ctx context.Context, hotelID, roomID string, r domain.Reservation, check domain.ReservationCheck) (domain.Reservation, error) {
	rr, err := s.lookupRoom(hotelID, roomID)
	if err != nil {
		return domain.Reservation{}, err
	}

	rr.mu.Lock()
	defer rr.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return domain.Reservation{}, err
	}
	if check != nil {
		if err := check(rr.room.Reservations); err != nil {
			return domain.Reservation{}, err
		}
	}
	rr.room.Reservations = append(rr.room.Reservations, r)
	return r, nil
}

func (s *Store) GetRoom(ctx context.Context, hotelID, roomID string) (domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return domain.Room{}, err
	}
	rr, err := s.lookupRoom(hotelID, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	return rr.snapshot(), nil
}

func (s *Store) GetHotel(ctx context.Context, id string) (domain.Hotel, error) {
	if err := ctx.Err(); err != nil {
		return domain.Hotel{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	hr, ok := s.hotels[id]
	if !ok {
		return domain.Hotel{}, fmt.Errorf("%w: hotel %s", domain.ErrNotFound, id)
	}
	return hr.snapshot(), nil
}

func (s *Store) ListHotels(ctx context.Context) ([]domain.Hotel, error) {
	return s.list(ctx, func(domain.Hotel) bool { return true })
}

func (s *Store) ListHotelsByManager(ctx context.Context, managerID string) ([]domain.Hotel, error) {
	return s.list(ctx, func(h domain.Hotel) bool { return h.ManagerID == managerID })
}

func (s *Store) list(ctx context.Context, keep func(domain.Hotel) bool) ([]domain.Hotel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Hotel, 0, len(s.order))
	for _, id := range s.order {
		hr := s.hotels[id]
		if keep(hr.hotel) {
			out = append(out, hr.snapshot())
		}
	}
	return out, nil
}

// snapshot must be called with the index lock held (read or write).
func (hr *hotelRec) snapshot() domain.Hotel {
	h := hr.hotel
	h.Rooms = make([]domain.Room, 0, len(hr.rooms))
	for _, rr := range hr.rooms {
		h.Rooms = append(h.Rooms, rr.snapshot())
	}
	return h
}

func (rr *roomRec) snapshot() domain.Room {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	out := rr.room.Clone()
	if out.Reservations == nil {
		out.Reservations = []domain.Reservation{}
	}
	return out
}
