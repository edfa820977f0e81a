package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	redisad "hotel_booking/internal/adapters/redis"
	"hotel_booking/internal/domain"
)

func TestCache_SetGetDel(t *testing.T) {
	mr := miniredis.RunT(t)
	c := redisad.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	var out []domain.Hotel
	if ok, err := c.Get(ctx, "hotels:all", &out); ok || err != nil {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}

	end := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	in := []domain.Hotel{{
		ID: "h1", Name: "Hotel Four", ManagerID: "M",
		Rooms: []domain.Room{{ID: "r1", HotelID: "h1", RoomNo: 8, Reservations: []domain.Reservation{
			{ID: "x", GuestID: "Randi", DateStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), DateEnd: &end},
		}}},
	}}
	if err := c.Set(ctx, "hotels:all", in, 60); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if ok, err := c.Get(ctx, "hotels:all", &out); !ok || err != nil {
		t.Fatalf("Get after Set: ok=%v err=%v", ok, err)
	}
	if len(out) != 1 || out[0].Rooms[0].Reservations[0].DateEnd == nil || !out[0].Rooms[0].Reservations[0].DateEnd.Equal(end) {
		t.Fatalf("unexpected value: %+v", out)
	}

	mr.FastForward(61 * time.Second)
	if ok, _ := c.Get(ctx, "hotels:all", &out); ok {
		t.Fatalf("entry should expire after TTL")
	}

	_ = c.Set(ctx, "hotels:all", in, 60)
	if err := c.Del(ctx, "hotels:all"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if mr.Exists("hotels:all") {
		t.Fatalf("key still present after Del")
	}
}

func TestCache_IncrIsReadableAsInteger(t *testing.T) {
	mr := miniredis.RunT(t)
	c := redisad.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := c.Incr(ctx, "hotels:gen")
		if err != nil || n != want {
			t.Fatalf("Incr = %d, %v; want %d", n, err, want)
		}
	}
	var gen int64
	if ok, err := c.Get(ctx, "hotels:gen", &gen); !ok || err != nil || gen != 3 {
		t.Fatalf("Get gen = %d ok=%v err=%v", gen, ok, err)
	}
}

func TestCache_UnreachableReturnsError(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	addr := mr.Addr()
	mr.Close()

	c := redisad.New(addr, "", 0)
	t.Cleanup(func() { _ = c.Close() })
	var out []domain.Hotel
	if ok, err := c.Get(context.Background(), "k", &out); ok || err == nil {
		t.Fatalf("want error from closed server, got ok=%v err=%v", ok, err)
	}
}
