package app

import (
	"context"
	"fmt"
	"time"

	"hotel_booking/internal/domain"
)

// QueryService composes read views from the directory and the engine. It
// holds no overlap logic of its own.
type QueryService struct {
	dir      *Directory
	engine   *ReservationEngine
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(d *Directory, e *ReservationEngine, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{dir: d, engine: e, cache: c, cacheTTL: ttl}
}

func (s *QueryService) GetHotelsWithRooms(ctx context.Context) ([]domain.Hotel, error) {
	if s.cache == nil {
		return s.dir.ListHotels(ctx)
	}
	gen, ok := listingGen(ctx, s.cache)
	if !ok {
		return s.dir.ListHotels(ctx)
	}
	key := listingKey(gen)
	var hs []domain.Hotel
	if hit, _ := s.cache.Get(ctx, key, &hs); hit {
		return hs, nil
	}
	hs, err := s.dir.ListHotels(ctx)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, key, hs, int(s.cacheTTL.Seconds()))
	return hs, nil
}

// GetHotelsWithRoomsForUser returns rooms holding reservations of userID,
// scanning only the hotels caller may see: all for Admin and Guest, managed
// hotels for HotelManager. Guests may only ask about themselves.
func (s *QueryService) GetHotelsWithRoomsForUser(ctx context.Context, caller domain.Principal, userID string) ([]domain.GuestReservation, error) {
	var (
		scope []domain.Hotel
		err   error
	)
	switch caller.Role {
	case domain.RoleAdmin:
		scope, err = s.dir.ListHotels(ctx)
	case domain.RoleHotelManager:
		scope, err = s.dir.repo.ListHotelsByManager(ctx, caller.UserID)
	case domain.RoleGuest:
		if caller.UserID != userID {
			return nil, fmt.Errorf("%w: guests may only list their own reservations", domain.ErrForbidden)
		}
		scope, err = s.dir.ListHotels(ctx)
	default:
		return nil, fmt.Errorf("%w: role %q may not list guest reservations", domain.ErrForbidden, caller.Role)
	}
	if err != nil {
		return nil, err
	}
	return s.engine.ListReservationsForGuest(scope, userID), nil
}

func (s *QueryService) GetAvailableRoomsForUser(ctx context.Context, caller domain.Principal, userID, hotelID string, start time.Time, end *time.Time) ([]domain.Room, error) {
	if caller.Role != domain.RoleAdmin && caller.UserID != userID {
		return nil, fmt.Errorf("%w: user %s may not query as %s", domain.ErrForbidden, caller.UserID, userID)
	}
	return s.engine.ListAvailableRooms(ctx, hotelID, start, end)
}
