package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"hotel_booking/internal/app"
	"hotel_booking/internal/domain"
)

type Handlers struct {
	Q      *app.QueryService
	Dir    *app.Directory
	Engine *app.ReservationEngine
}

type problem struct {
	Type   string       `json:"type"`
	Title  string       `json:"title"`
	Status int          `json:"status"`
	Detail string       `json:"detail,omitempty"`
	Fields []FieldError `json:"fields,omitempty"`
}

type addHotelRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

type reservationRequest struct {
	GuestID   string `json:"guestId" validate:"required,max=64"`
	DateStart *Date  `json:"dateStart" validate:"required"`
	DateEnd   *Date  `json:"dateEnd,omitempty"`
}

type addRoomRequest struct {
	RoomNo       int                  `json:"roomNo" validate:"required,gt=0"`
	Reservations []reservationRequest `json:"reservations" validate:"dive"`
}

type bookRequest struct {
	GuestID   string `json:"guestId,omitempty" validate:"max=64"`
	DateStart *Date  `json:"dateStart" validate:"required"`
	DateEnd   *Date  `json:"dateEnd,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers, g *Gate) {
	managers := g.Require(domain.Roles(domain.RoleHotelManager))
	anyone := g.Require(domain.Roles(domain.RoleUser))

	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/docs", serveDocs)
	s.mux.Get("/hotels", h.listHotels)
	s.mux.With(managers).Post("/hotels/addHotel/{userId}", h.addHotel)
	s.mux.With(managers).Put("/hotels/{hotelId}/user/{userId}", h.addRoom)
	s.mux.With(g.Require(domain.Roles(domain.RoleHotelManager, domain.RoleAdmin, domain.RoleGuest))).
		Get("/hotels/AllHotelsWithRooms/{userId}", h.guestReservations)
	s.mux.With(anyone).Get("/hotels/available/{userId}/{hotelId}", h.availableRooms)
	s.mux.With(managers).Get("/hotels/{userId}/{hotelId}", h.managerRooms)
	s.mux.With(anyone).Get("/hotels/{hotelId}/rooms/{roomId}/availability", h.availability)
	s.mux.With(anyone).Post("/hotels/{hotelId}/rooms/{roomId}/reservations", h.book)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	writeProblemFields(w, status, title, detail, nil)
}

func writeProblemFields(w http.ResponseWriter, status int, title, detail string, fields []FieldError) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail, Fields: fields}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError translates an error kind into its HTTP status. This is the only
// place kinds become statuses.
func writeError(w http.ResponseWriter, err error) {
	switch domain.Kind(err) {
	case domain.ErrValidation:
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case domain.ErrNotFound:
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case domain.ErrConflict:
		writeProblem(w, http.StatusConflict, "Conflict", err.Error())
	case domain.ErrForbidden:
		writeProblem(w, http.StatusForbidden, "Forbidden", err.Error())
	case domain.ErrUnauthorized:
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case domain.ErrStorage:
		log.Error().Err(err).Msg("storage failure")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "backing store unavailable, retry later")
	default:
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			writeProblem(w, http.StatusServiceUnavailable, "Service Unavailable", "request did not complete in time")
			return
		}
		log.Error().Err(err).Msg("unhandled error")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "unexpected error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func caller(r *http.Request) domain.Principal {
	p, _ := PrincipalFrom(r.Context())
	return p
}

// requireSelf rejects callers acting on another user's path.
func requireSelf(p domain.Principal, userID string) error {
	if p.UserID != userID {
		return fmt.Errorf("%w: user %s may not act as %s", domain.ErrForbidden, p.UserID, userID)
	}
	return nil
}

// window reads dateStart (required) and dateEnd (optional) from the query.
func window(r *http.Request) (time.Time, *time.Time, error) {
	q := r.URL.Query()
	raw := q.Get("dateStart")
	if raw == "" {
		return time.Time{}, nil, fmt.Errorf("%w: dateStart query parameter is required", domain.ErrValidation)
	}
	start, err := parseDate(raw)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("%w: dateStart: %w", domain.ErrValidation, err)
	}
	var end *time.Time
	if raw := q.Get("dateEnd"); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			return time.Time{}, nil, fmt.Errorf("%w: dateEnd: %w", domain.ErrValidation, err)
		}
		end = &t
	}
	return start, end, nil
}

func (h *Handlers) listHotels(w http.ResponseWriter, r *http.Request) {
	hs, err := h.Q.GetHotelsWithRooms(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	etag, body := calcETagAndBody(hs)
	// If client already has this version, short-circuit.
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write listHotels body")
	}
}

func (h *Handlers) addHotel(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if err := requireSelf(caller(r), userID); err != nil {
		writeError(w, err)
		return
	}
	var req addHotelRequest
	if !bindJSON(w, r, &req) {
		return
	}
	hotel, err := h.Dir.AddHotel(r.Context(), req.Name, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, hotel)
}

func (h *Handlers) addRoom(w http.ResponseWriter, r *http.Request) {
	hotelID, userID := chi.URLParam(r, "hotelId"), chi.URLParam(r, "userId")
	if err := requireSelf(caller(r), userID); err != nil {
		writeError(w, err)
		return
	}
	var req addRoomRequest
	if !bindJSON(w, r, &req) {
		return
	}
	room := domain.Room{RoomNo: req.RoomNo}
	for _, rr := range req.Reservations {
		room.Reservations = append(room.Reservations, domain.Reservation{
			GuestID:   rr.GuestID,
			DateStart: rr.DateStart.Time,
			DateEnd:   rr.DateEnd.ptr(),
		})
	}
	created, err := h.Dir.AddRoomToHotel(r.Context(), userID, hotelID, room)
	if err != nil {
		if created.ID != "" {
			log.Warn().Err(err).Str("hotel", hotelID).Str("room", created.ID).Msg("room created with rejected reservations")
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handlers) guestReservations(w http.ResponseWriter, r *http.Request) {
	out, err := h.Q.GetHotelsWithRoomsForUser(r.Context(), caller(r), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) managerRooms(w http.ResponseWriter, r *http.Request) {
	userID, hotelID := chi.URLParam(r, "userId"), chi.URLParam(r, "hotelId")
	if err := requireSelf(caller(r), userID); err != nil {
		writeError(w, err)
		return
	}
	rooms, err := h.Dir.GetRoomsForManager(r.Context(), userID, hotelID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (h *Handlers) availableRooms(w http.ResponseWriter, r *http.Request) {
	start, end, err := window(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rooms, err := h.Q.GetAvailableRoomsForUser(r.Context(), caller(r), chi.URLParam(r, "userId"), chi.URLParam(r, "hotelId"), start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (h *Handlers) availability(w http.ResponseWriter, r *http.Request) {
	start, end, err := window(r)
	if err != nil {
		writeError(w, err)
		return
	}
	ok, err := h.Engine.CheckAvailability(r.Context(), chi.URLParam(r, "hotelId"), chi.URLParam(r, "roomId"), start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"available": ok})
}

func (h *Handlers) book(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if !bindJSON(w, r, &req) {
		return
	}
	p := caller(r)
	guestID := p.UserID
	if req.GuestID != "" && req.GuestID != p.UserID {
		if p.Role != domain.RoleAdmin {
			writeError(w, fmt.Errorf("%w: only admins may book for another guest", domain.ErrForbidden))
			return
		}
		guestID = req.GuestID
	}
	res, err := h.Engine.CreateReservation(r.Context(), chi.URLParam(r, "hotelId"), chi.URLParam(r, "roomId"),
		guestID, req.DateStart.Time, req.DateEnd.ptr())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
