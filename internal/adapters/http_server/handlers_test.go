package httpserver_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"hotel_booking/internal/adapters/auth"
	httpserver "hotel_booking/internal/adapters/http_server"
	"hotel_booking/internal/app"
	"hotel_booking/internal/domain"
	"hotel_booking/internal/storage/memory"
)

type env struct {
	t      *testing.T
	srv    *httptest.Server
	tokens *auth.Manager
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.New()
	for _, u := range []string{"mgr", "mgr2", "randi", "ole", "root"} {
		store.AddUser(u)
	}
	engine := app.NewReservationEngine(store, nil)
	dir := app.NewDirectory(store, store, engine, nil)
	q := app.NewQueryService(dir, engine, nil, time.Minute)

	tm, err := auth.NewManager("test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	s := httpserver.New(httpserver.Options{RequestTimeout: 5 * time.Second})
	s.MountHandlers(&httpserver.Handlers{Q: q, Dir: dir, Engine: engine}, httpserver.NewGate(tm))
	ts := httptest.NewServer(s.Mux())
	t.Cleanup(ts.Close)
	return &env{t: t, srv: ts, tokens: tm}
}

func (e *env) token(user string, role domain.Role) string {
	tok, err := e.tokens.Generate(user, role)
	if err != nil {
		e.t.Fatal(err)
	}
	return tok
}

func (e *env) do(method, path, token string, body any) *http.Response {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			e.t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	if err != nil {
		e.t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.srv.Client().Do(req)
	if err != nil {
		e.t.Fatal(err)
	}
	e.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		var p map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&p)
		t.Fatalf("%s %s: status %d, want %d (%v)", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want, p)
	}
}

// seedHotel creates a hotel for mgr with one room numbered 8.
func (e *env) seedHotel() (domain.Hotel, domain.Room) {
	mgr := e.token("mgr", domain.RoleHotelManager)
	resp := e.do(http.MethodPost, "/hotels/addHotel/mgr", mgr, map[string]string{"name": "Hotel Four"})
	expectStatus(e.t, resp, http.StatusCreated)
	h := decode[domain.Hotel](e.t, resp)

	resp = e.do(http.MethodPut, "/hotels/"+h.ID+"/user/mgr", mgr, map[string]any{"roomNo": 8})
	expectStatus(e.t, resp, http.StatusCreated)
	return h, decode[domain.Room](e.t, resp)
}

func TestHealthzAndPublicListing(t *testing.T) {
	e := newEnv(t)
	expectStatus(t, e.do(http.MethodGet, "/healthz", "", nil), http.StatusOK)

	h, _ := e.seedHotel()
	resp := e.do(http.MethodGet, "/hotels", "", nil)
	expectStatus(t, resp, http.StatusOK)
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}
	hs := decode[[]domain.Hotel](t, resp)
	if len(hs) != 1 || hs[0].ID != h.ID || len(hs[0].Rooms) != 1 {
		t.Fatalf("listing = %+v", hs)
	}

	req, _ := http.NewRequest(http.MethodGet, e.srv.URL+"/hotels", nil)
	req.Header.Set("If-None-Match", etag)
	resp2, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotModified {
		t.Fatalf("conditional GET status %d", resp2.StatusCode)
	}
}

func TestGate_UnauthorizedVsForbidden(t *testing.T) {
	e := newEnv(t)
	body := map[string]string{"name": "X"}

	expectStatus(t, e.do(http.MethodPost, "/hotels/addHotel/mgr", "", body), http.StatusUnauthorized)
	expectStatus(t, e.do(http.MethodPost, "/hotels/addHotel/mgr", "garbage", body), http.StatusUnauthorized)

	other, _ := auth.NewManager("other-secret", time.Hour)
	forged, _ := other.Generate("mgr", domain.RoleHotelManager)
	expectStatus(t, e.do(http.MethodPost, "/hotels/addHotel/mgr", forged, body), http.StatusUnauthorized)

	expectStatus(t, e.do(http.MethodPost, "/hotels/addHotel/randi", e.token("randi", domain.RoleGuest), body), http.StatusForbidden)
	expectStatus(t, e.do(http.MethodPost, "/hotels/addHotel/root", e.token("root", domain.RoleAdmin), body), http.StatusForbidden)
	// right role, wrong path user
	expectStatus(t, e.do(http.MethodPost, "/hotels/addHotel/mgr", e.token("mgr2", domain.RoleHotelManager), body), http.StatusForbidden)
}

func TestAddHotel_Validation(t *testing.T) {
	e := newEnv(t)
	mgr := e.token("mgr", domain.RoleHotelManager)

	resp := e.do(http.MethodPost, "/hotels/addHotel/mgr", mgr, map[string]string{})
	expectStatus(t, resp, http.StatusBadRequest)
	p := decode[map[string]any](t, resp)
	fields, _ := p["fields"].([]any)
	if len(fields) != 1 || fields[0].(map[string]any)["field"] != "name" {
		t.Fatalf("fields = %v", p["fields"])
	}

	expectStatus(t, e.do(http.MethodPost, "/hotels/addHotel/mgr", mgr, map[string]any{"name": "X", "stars": 5}), http.StatusBadRequest)

	ghost := e.token("ghost", domain.RoleHotelManager)
	expectStatus(t, e.do(http.MethodPost, "/hotels/addHotel/ghost", ghost, map[string]string{"name": "X"}), http.StatusBadRequest)
}

func TestAddRoom_OwnershipAndDuplicates(t *testing.T) {
	e := newEnv(t)
	h, _ := e.seedHotel()

	mgr2 := e.token("mgr2", domain.RoleHotelManager)
	expectStatus(t, e.do(http.MethodPut, "/hotels/"+h.ID+"/user/mgr2", mgr2, map[string]any{"roomNo": 9}), http.StatusForbidden)

	mgr := e.token("mgr", domain.RoleHotelManager)
	expectStatus(t, e.do(http.MethodPut, "/hotels/"+h.ID+"/user/mgr", mgr, map[string]any{"roomNo": 8}), http.StatusConflict)
	expectStatus(t, e.do(http.MethodPut, "/hotels/"+h.ID+"/user/mgr", mgr, map[string]any{"roomNo": 0}), http.StatusBadRequest)
	expectStatus(t, e.do(http.MethodPut, "/hotels/nope/user/mgr", mgr, map[string]any{"roomNo": 3}), http.StatusNotFound)

	resp := e.do(http.MethodPut, "/hotels/"+h.ID+"/user/mgr", mgr, map[string]any{
		"roomNo": 9,
		"reservations": []map[string]string{
			{"guestId": "randi", "dateStart": "2030-06-01", "dateEnd": "2030-06-04"},
		},
	})
	expectStatus(t, resp, http.StatusCreated)
	rm := decode[domain.Room](t, resp)
	if len(rm.Reservations) != 1 || rm.Reservations[0].GuestID != "randi" {
		t.Fatalf("room = %+v", rm)
	}

	resp = e.do(http.MethodGet, "/hotels/mgr/"+h.ID, mgr, nil)
	expectStatus(t, resp, http.StatusOK)
	if rooms := decode[[]domain.Room](t, resp); len(rooms) != 2 {
		t.Fatalf("manager rooms = %d", len(rooms))
	}
	expectStatus(t, e.do(http.MethodGet, "/hotels/mgr2/"+h.ID, mgr2, nil), http.StatusForbidden)
}

func TestBookAndCheckAvailability(t *testing.T) {
	e := newEnv(t)
	h, rm := e.seedHotel()
	randi := e.token("randi", domain.RoleGuest)
	ole := e.token("ole", domain.RoleGuest)
	base := "/hotels/" + h.ID + "/rooms/" + rm.ID

	resp := e.do(http.MethodPost, base+"/reservations", randi, map[string]string{
		"dateStart": "2030-04-01T14:00:00Z", "dateEnd": "2030-04-03T10:00:00Z",
	})
	expectStatus(t, resp, http.StatusCreated)
	res := decode[domain.Reservation](t, resp)
	if res.GuestID != "randi" || res.ID == "" {
		t.Fatalf("reservation = %+v", res)
	}

	expectStatus(t, e.do(http.MethodPost, base+"/reservations", ole, map[string]string{
		"dateStart": "2030-04-02", "dateEnd": "2030-04-05",
	}), http.StatusConflict)

	// back-to-back is fine
	expectStatus(t, e.do(http.MethodPost, base+"/reservations", ole, map[string]string{
		"dateStart": "2030-04-03T10:00:00Z",
	}), http.StatusCreated)

	resp = e.do(http.MethodGet, base+"/availability?dateStart=2030-04-02&dateEnd=2030-04-03", ole, nil)
	expectStatus(t, resp, http.StatusOK)
	if got := decode[map[string]bool](t, resp); got["available"] {
		t.Fatal("room reported available inside an existing reservation")
	}
	resp = e.do(http.MethodGet, base+"/availability?dateStart=2030-05-01", ole, nil)
	expectStatus(t, resp, http.StatusOK)
	if got := decode[map[string]bool](t, resp); !got["available"] {
		t.Fatal("free room reported unavailable")
	}

	expectStatus(t, e.do(http.MethodGet, base+"/availability", ole, nil), http.StatusBadRequest)
	expectStatus(t, e.do(http.MethodGet, base+"/availability?dateStart=soon", ole, nil), http.StatusBadRequest)
	expectStatus(t, e.do(http.MethodGet, "/hotels/"+h.ID+"/rooms/missing/availability?dateStart=2030-05-01", ole, nil), http.StatusNotFound)
	expectStatus(t, e.do(http.MethodPost, base+"/reservations", ole, map[string]string{"dateStart": "2020-01-01"}), http.StatusBadRequest)
	expectStatus(t, e.do(http.MethodPost, base+"/reservations", ole, map[string]string{"dateStart": "2030-04-10", "dateEnd": "2030-04-09"}), http.StatusBadRequest)
}

func TestBook_OnBehalfOfAnotherGuest(t *testing.T) {
	e := newEnv(t)
	h, rm := e.seedHotel()
	path := "/hotels/" + h.ID + "/rooms/" + rm.ID + "/reservations"

	expectStatus(t, e.do(http.MethodPost, path, e.token("ole", domain.RoleGuest), map[string]string{
		"guestId": "randi", "dateStart": "2030-07-01",
	}), http.StatusForbidden)

	resp := e.do(http.MethodPost, path, e.token("root", domain.RoleAdmin), map[string]string{
		"guestId": "randi", "dateStart": "2030-07-01",
	})
	expectStatus(t, resp, http.StatusCreated)
	if res := decode[domain.Reservation](t, resp); res.GuestID != "randi" {
		t.Fatalf("guest = %s", res.GuestID)
	}
}

func TestBook_ConcurrentIdenticalRequestsOneWins(t *testing.T) {
	e := newEnv(t)
	h, rm := e.seedHotel()
	path := "/hotels/" + h.ID + "/rooms/" + rm.ID + "/reservations"

	const n = 16
	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, _ := e.tokens.Generate(fmt.Sprintf("guest-%d", i), domain.RoleGuest)
			body, _ := json.Marshal(map[string]string{"dateStart": "2030-09-01", "dateEnd": "2030-09-05"})
			req, _ := http.NewRequest(http.MethodPost, e.srv.URL+path, bytes.NewReader(body))
			req.Header.Set("Authorization", "Bearer "+tok)
			resp, err := e.srv.Client().Do(req)
			if err != nil {
				return
			}
			resp.Body.Close()
			codes[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	created, conflicts := 0, 0
	for _, c := range codes {
		switch c {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflicts++
		}
	}
	if created != 1 || conflicts != n-1 {
		t.Fatalf("created=%d conflicts=%d codes=%v", created, conflicts, codes)
	}
}

func TestGuestReservationsAndAvailableRooms(t *testing.T) {
	e := newEnv(t)
	h, rm := e.seedHotel()
	randi := e.token("randi", domain.RoleGuest)
	expectStatus(t, e.do(http.MethodPost, "/hotels/"+h.ID+"/rooms/"+rm.ID+"/reservations", randi,
		map[string]string{"dateStart": "2030-03-01", "dateEnd": "2030-03-05"}), http.StatusCreated)
	expectStatus(t, e.do(http.MethodPost, "/hotels/"+h.ID+"/rooms/"+rm.ID+"/reservations", e.token("ole", domain.RoleGuest),
		map[string]string{"dateStart": "2030-03-10"}), http.StatusCreated)

	resp := e.do(http.MethodGet, "/hotels/AllHotelsWithRooms/randi", randi, nil)
	expectStatus(t, resp, http.StatusOK)
	got := decode[[]domain.GuestReservation](t, resp)
	if len(got) != 1 || len(got[0].Room.Reservations) != 1 || got[0].Room.Reservations[0].GuestID != "randi" {
		t.Fatalf("guest view = %+v", got)
	}

	expectStatus(t, e.do(http.MethodGet, "/hotels/AllHotelsWithRooms/ole", randi, nil), http.StatusForbidden)
	expectStatus(t, e.do(http.MethodGet, "/hotels/AllHotelsWithRooms/randi", e.token("x", domain.RoleUser), nil), http.StatusForbidden)

	resp = e.do(http.MethodGet, "/hotels/AllHotelsWithRooms/randi", e.token("mgr2", domain.RoleHotelManager), nil)
	expectStatus(t, resp, http.StatusOK)
	if got := decode[[]domain.GuestReservation](t, resp); len(got) != 0 {
		t.Fatalf("unrelated manager saw %d reservations", len(got))
	}

	resp = e.do(http.MethodGet, "/hotels/available/randi/"+h.ID+"?dateStart=2030-03-02", randi, nil)
	expectStatus(t, resp, http.StatusOK)
	if rooms := decode[[]domain.Room](t, resp); len(rooms) != 0 {
		t.Fatalf("booked room listed as available: %+v", rooms)
	}
	resp = e.do(http.MethodGet, "/hotels/available/randi/"+h.ID+"?dateStart=2030-03-05&dateEnd=2030-03-10", randi, nil)
	expectStatus(t, resp, http.StatusOK)
	if rooms := decode[[]domain.Room](t, resp); len(rooms) != 1 {
		t.Fatalf("free room missing: %+v", rooms)
	}
	expectStatus(t, e.do(http.MethodGet, "/hotels/available/ole/"+h.ID+"?dateStart=2030-03-02", randi, nil), http.StatusForbidden)
}

func TestAddRoom_GuestIsForbiddenAndNothingIsCreated(t *testing.T) {
	e := newEnv(t)
	h, _ := e.seedHotel()

	randi := e.token("randi", domain.RoleGuest)
	expectStatus(t, e.do(http.MethodPut, "/hotels/"+h.ID+"/user/randi", randi, map[string]any{"roomNo": 9}), http.StatusForbidden)

	resp := e.do(http.MethodGet, "/hotels/mgr/"+h.ID, e.token("mgr", domain.RoleHotelManager), nil)
	expectStatus(t, resp, http.StatusOK)
	if rooms := decode[[]domain.Room](t, resp); len(rooms) != 1 || rooms[0].RoomNo != 8 {
		t.Fatalf("rooms after forbidden add = %+v", rooms)
	}
}

func TestDocs_ServesOpenAPI(t *testing.T) {
	e := newEnv(t)
	resp := e.do(http.MethodGet, "/docs", "", nil)
	expectStatus(t, resp, http.StatusOK)
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(body), "openapi: 3") || !strings.Contains(string(body), "/hotels/addHotel/{userId}") {
		t.Fatalf("unexpected document: %.80s", body)
	}
}

func TestCORS_Preflight(t *testing.T) {
	s := httpserver.New(httpserver.Options{CORSOrigins: []string{"https://app.example"}})
	s.MountHandlers(&httpserver.Handlers{}, httpserver.NewGate(nil))
	ts := httptest.NewServer(s.Mux())
	defer ts.Close()

	preflight := func(origin string) string {
		req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/hotels", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPut)
		req.Header.Set("Access-Control-Request-Headers", "Authorization")
		resp, err := ts.Client().Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		return resp.Header.Get("Access-Control-Allow-Origin")
	}
	if got := preflight("https://app.example"); got != "https://app.example" {
		t.Fatalf("allowed origin got %q", got)
	}
	if got := preflight("https://evil.example"); got != "" {
		t.Fatalf("foreign origin got %q", got)
	}
}

func TestRateLimit_IgnoresForwardedHeadersUnlessTrusted(t *testing.T) {
	burst := func(trust bool) int {
		s := httpserver.New(httpserver.Options{RateLimitRPS: 1, RateLimitBurst: 2, TrustProxy: trust})
		s.MountHandlers(&httpserver.Handlers{}, httpserver.NewGate(nil))
		ts := httptest.NewServer(s.Mux())
		defer ts.Close()

		var last int
		for i := 0; i < 3; i++ {
			req, _ := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
			req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
			resp, err := ts.Client().Do(req)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			last = resp.StatusCode
		}
		return last
	}
	if got := burst(false); got != http.StatusTooManyRequests {
		t.Fatalf("rotating X-Forwarded-For escaped the limit: %d", got)
	}
	if got := burst(true); got != http.StatusOK {
		t.Fatalf("trusted proxy addresses should be limited separately: %d", got)
	}
}

func TestRateLimit(t *testing.T) {
	s := httpserver.New(httpserver.Options{RateLimitRPS: 1, RateLimitBurst: 2})
	s.MountHandlers(&httpserver.Handlers{}, httpserver.NewGate(nil))
	ts := httptest.NewServer(s.Mux())
	defer ts.Close()

	var last int
	for i := 0; i < 3; i++ {
		resp, err := ts.Client().Get(ts.URL + "/healthz")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		last = resp.StatusCode
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", last)
	}
}
