package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"hotel_booking/internal/domain"
)

// UserRegistry is the write side of a user store, used only for seeding.
type UserRegistry interface {
	UpsertUser(ctx context.Context, id string, role domain.Role) error
}

type Seed struct {
	Users  []SeedUser  `json:"users"`
	Hotels []SeedHotel `json:"hotels"`
}

type SeedUser struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

type SeedHotel struct {
	Name      string        `json:"name"`
	ManagerID string        `json:"managerId"`
	Rooms     []domain.Room `json:"rooms"`
}

func ReadSeed(r io.Reader) (Seed, error) {
	var s Seed
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return Seed{}, fmt.Errorf("%w: seed file: %w", domain.ErrValidation, err)
	}
	return s, nil
}

type Seeder struct {
	dir   *Directory
	users UserRegistry
}

func NewSeeder(d *Directory, u UserRegistry) *Seeder {
	return &Seeder{dir: d, users: u}
}

// LoadUsers registers every user with at most workers writes in flight.
func (s *Seeder) LoadUsers(ctx context.Context, users []SeedUser, workers int) error {
	if workers <= 0 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, u := range users {
		u := u
		g.Go(func() error {
			role := domain.RoleGuest
			if u.Role != "" {
				r, ok := domain.ParseRole(u.Role)
				if !ok {
					return fmt.Errorf("%w: user %s has unknown role %q", domain.ErrValidation, u.ID, u.Role)
				}
				role = r
			}
			return s.users.UpsertUser(gctx, u.ID, role)
		})
	}
	return g.Wait()
}

// LoadHotel creates the hotel and its rooms in file order. The whole entry is
// checked before anything is written. Embedded reservations are existing
// data: they may lie in the past but must not overlap.
func (s *Seeder) LoadHotel(ctx context.Context, h SeedHotel) (domain.Hotel, error) {
	if err := s.checkHotel(h); err != nil {
		return domain.Hotel{}, fmt.Errorf("hotel %q: %w", h.Name, err)
	}
	created, err := s.dir.AddHotel(ctx, h.Name, h.ManagerID)
	if err != nil {
		return domain.Hotel{}, err
	}
	for _, rm := range h.Rooms {
		room, err := s.dir.ImportRoom(ctx, h.ManagerID, created.ID, rm)
		if err != nil {
			return created, fmt.Errorf("hotel %q room %d: %w", h.Name, rm.RoomNo, err)
		}
		created.Rooms = append(created.Rooms, room)
	}
	log.Info().Str("hotel", created.ID).Str("name", created.Name).Int("rooms", len(created.Rooms)).Msg("hotel seeded")
	return created, nil
}

func (s *Seeder) checkHotel(h SeedHotel) error {
	seen := make(map[int]bool, len(h.Rooms))
	for _, rm := range h.Rooms {
		if rm.RoomNo <= 0 {
			return fmt.Errorf("%w: roomNo must be a positive integer", domain.ErrValidation)
		}
		if seen[rm.RoomNo] {
			return fmt.Errorf("%w: room %d appears twice", domain.ErrConflict, rm.RoomNo)
		}
		seen[rm.RoomNo] = true
		if err := s.dir.checkInitial(rm.Reservations, true); err != nil {
			return fmt.Errorf("room %d: %w", rm.RoomNo, err)
		}
	}
	return nil
}
