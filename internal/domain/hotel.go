package domain

import "time"

type Hotel struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ManagerID string    `json:"managerId"`
	Rooms     []Room    `json:"rooms"`
	CreatedAt time.Time `json:"createdAt"`
}

// Room belongs to exactly one hotel. Reservations keep insertion order.
type Room struct {
	ID           string        `json:"id"`
	HotelID      string        `json:"hotelId"`
	RoomNo       int           `json:"roomNo"`
	Reservations []Reservation `json:"reservations"`
}

// FindRoom returns the room with the given id, or false.
func (h Hotel) FindRoom(roomID string) (Room, bool) {
	for _, r := range h.Rooms {
		if r.ID == roomID {
			return r, true
		}
	}
	return Room{}, false
}

// HasRoomNo reports whether a room with that number already exists in the hotel.
func (h Hotel) HasRoomNo(no int) bool {
	for _, r := range h.Rooms {
		if r.RoomNo == no {
			return true
		}
	}
	return false
}

// Clone deep-copies the hotel so callers can't alias a store's slices.
func (h Hotel) Clone() Hotel {
	out := h
	if h.Rooms != nil {
		out.Rooms = make([]Room, len(h.Rooms))
		for i, r := range h.Rooms {
			out.Rooms[i] = r.Clone()
		}
	}
	return out
}

func (r Room) Clone() Room {
	out := r
	if r.Reservations != nil {
		out.Reservations = make([]Reservation, len(r.Reservations))
		copy(out.Reservations, r.Reservations)
	}
	return out
}
