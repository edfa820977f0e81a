package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	driver "github.com/go-sql-driver/mysql"

	"hotel_booking/internal/domain"
)

const errDuplicateEntry = 1062

func valTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC()
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// storageErr classifies driver failures. Domain errors and context errors pass
// through so callers still see the caller's deadline.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if domain.Kind(err) != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrStorage, op, err)
}

func isDuplicate(err error) bool {
	var me *driver.MySQLError
	return errors.As(err, &me) && me.Number == errDuplicateEntry
}

// inTx runs fn in a READ COMMITTED transaction so reads after a row lock see
// everything committed before the lock was granted.
func (r *Repo) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return storageErr(op+".begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return storageErr(op, err)
	}
	if err := tx.Commit(); err != nil {
		return storageErr(op+".commit", err)
	}
	return nil
}

func (r *Repo) UpsertUser(ctx context.Context, id string, role domain.Role) error {
	_, err := r.db.ExecContext(ctx, upsertUserSQL, id, string(role))
	return storageErr("users.upsert", err)
}

func (r *Repo) Exists(ctx context.Context, userID string) (bool, error) {
	var ok bool
	if err := r.db.QueryRowContext(ctx, userExistsSQL, userID).Scan(&ok); err != nil {
		return false, storageErr("users.exists", err)
	}
	return ok, nil
}

func (r *Repo) CreateHotel(ctx context.Context, h domain.Hotel) (domain.Hotel, error) {
	_, err := r.db.ExecContext(ctx, insertHotelSQL, h.ID, h.Name, h.ManagerID, h.CreatedAt.UTC())
	if err != nil {
		if isDuplicate(err) {
			return domain.Hotel{}, fmt.Errorf("%w: hotel %s already exists", domain.ErrConflict, h.ID)
		}
		return domain.Hotel{}, storageErr("hotels.insert", err)
	}
	h.Rooms = []domain.Room{}
	return h, nil
}

func (r *Repo) AddRoom(ctx context.Context, hotelID string, room domain.Room) (domain.Room, error) {
	err := r.inTx(ctx, "rooms.add", func(tx *sql.Tx) error {
		var id string
		if err := tx.QueryRowContext(ctx, lockHotelSQL, hotelID).Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: hotel %s", domain.ErrNotFound, hotelID)
			}
			return err
		}
		if _, err := tx.ExecContext(ctx, insertRoomSQL, room.ID, hotelID, room.RoomNo); err != nil {
			if isDuplicate(err) {
				return fmt.Errorf("%w: room %d already exists in hotel %s", domain.ErrConflict, room.RoomNo, hotelID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.Room{}, err
	}
	room.HotelID = hotelID
	room.Reservations = []domain.Reservation{}
	return room, nil
}

func (r *Repo) CommitReservation(ctx context.Context, hotelID, roomID string, res domain.Reservation, check domain.ReservationCheck) (domain.Reservation, error) {
	err := r.inTx(ctx, "reservations.commit", func(tx *sql.Tx) error {
		var id string
		if err := tx.QueryRowContext(ctx, lockRoomSQL, roomID, hotelID).Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: room %s in hotel %s", domain.ErrNotFound, roomID, hotelID)
			}
			return err
		}

		existing, err := queryReservations(ctx, tx, selectRoomReservationsSQL, roomID)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(existing[roomID]); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx, insertReservationSQL,
			res.ID,
			roomID,
			res.GuestID,
			res.DateStart.UTC(),
			valTime(res.DateEnd),
			res.CreatedAt.UTC(),
		)
		return err
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	return res, nil
}

func (r *Repo) GetRoom(ctx context.Context, hotelID, roomID string) (domain.Room, error) {
	var room domain.Room
	err := r.db.QueryRowContext(ctx, selectRoomSQL, roomID, hotelID).Scan(&room.ID, &room.HotelID, &room.RoomNo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Room{}, fmt.Errorf("%w: room %s in hotel %s", domain.ErrNotFound, roomID, hotelID)
		}
		return domain.Room{}, storageErr("rooms.get", err)
	}
	res, err := queryReservations(ctx, r.db, selectRoomReservationsSQL, roomID)
	if err != nil {
		return domain.Room{}, storageErr("rooms.get.reservations", err)
	}
	room.Reservations = nonNil(res[roomID])
	return room, nil
}

func (r *Repo) GetHotel(ctx context.Context, id string) (domain.Hotel, error) {
	hs, err := r.loadHotels(ctx, "hotels.get", "WHERE id = ?", id)
	if err != nil {
		return domain.Hotel{}, err
	}
	if len(hs) == 0 {
		return domain.Hotel{}, fmt.Errorf("%w: hotel %s", domain.ErrNotFound, id)
	}
	return hs[0], nil
}

func (r *Repo) ListHotels(ctx context.Context) ([]domain.Hotel, error) {
	return r.loadHotels(ctx, "hotels.list", "")
}

func (r *Repo) ListHotelsByManager(ctx context.Context, managerID string) ([]domain.Hotel, error) {
	return r.loadHotels(ctx, "hotels.by_manager", "WHERE manager_id = ?", managerID)
}

// loadHotels assembles hotels -> rooms -> reservations with one query per level.
func (r *Repo) loadHotels(ctx context.Context, op, where string, args ...any) ([]domain.Hotel, error) {
	rows, err := r.db.QueryContext(ctx, selectHotelsSQL+where+"\nORDER BY seq", args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	out := make([]domain.Hotel, 0)
	for rows.Next() {
		var h domain.Hotel
		if err := rows.Scan(&h.ID, &h.Name, &h.ManagerID, &h.CreatedAt); err != nil {
			return nil, storageErr(op, err)
		}
		h.Rooms = []domain.Room{}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	if len(out) == 0 {
		return out, nil
	}

	hotelIDs := make([]any, len(out))
	for i, h := range out {
		hotelIDs[i] = h.ID
	}
	rooms, err := r.queryRooms(ctx, hotelIDs)
	if err != nil {
		return nil, storageErr(op+".rooms", err)
	}

	var roomIDs []any
	for _, rs := range rooms {
		for _, rm := range rs {
			roomIDs = append(roomIDs, rm.ID)
		}
	}
	var reservations map[string][]domain.Reservation
	if len(roomIDs) > 0 {
		q := selectReservationsForRoomsPrefix + placeholders(len(roomIDs)) + ")\nORDER BY seq"
		reservations, err = queryReservations(ctx, r.db, q, roomIDs...)
		if err != nil {
			return nil, storageErr(op+".reservations", err)
		}
	}

	for i := range out {
		for _, rm := range rooms[out[i].ID] {
			rm.Reservations = nonNil(reservations[rm.ID])
			out[i].Rooms = append(out[i].Rooms, rm)
		}
	}
	return out, nil
}

func (r *Repo) queryRooms(ctx context.Context, hotelIDs []any) (map[string][]domain.Room, error) {
	q := selectRoomsForHotelsPrefix + placeholders(len(hotelIDs)) + ")\nORDER BY seq"
	rows, err := r.db.QueryContext(ctx, q, hotelIDs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]domain.Room)
	for rows.Next() {
		var rm domain.Room
		if err := rows.Scan(&rm.ID, &rm.HotelID, &rm.RoomNo); err != nil {
			return nil, err
		}
		out[rm.HotelID] = append(out[rm.HotelID], rm)
	}
	return out, rows.Err()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// queryReservations groups rows by room id, preserving insertion order.
func queryReservations(ctx context.Context, q querier, query string, args ...any) (map[string][]domain.Reservation, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]domain.Reservation)
	for rows.Next() {
		var (
			res    domain.Reservation
			roomID string
			end    sql.NullTime
		)
		if err := rows.Scan(&res.ID, &roomID, &res.GuestID, &res.DateStart, &end, &res.CreatedAt); err != nil {
			return nil, err
		}
		if end.Valid {
			e := end.Time
			res.DateEnd = &e
		}
		out[roomID] = append(out[roomID], res)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nonNil(rs []domain.Reservation) []domain.Reservation {
	if rs == nil {
		return []domain.Reservation{}
	}
	return rs
}
