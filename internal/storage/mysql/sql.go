package mysql

const insertHotelSQL = `
INSERT INTO hotels (id, name, manager_id, created_at)
VALUES (?, ?, ?, ?)
`

const insertRoomSQL = `
INSERT INTO rooms (id, hotel_id, room_no)
VALUES (?, ?, ?)
`

const insertReservationSQL = `
INSERT INTO reservations (id, room_id, guest_id, date_start, date_end, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`

const upsertUserSQL = `
INSERT INTO users (id, role)
VALUES (?, ?)
ON DUPLICATE KEY UPDATE role = VALUES(role)
`

const userExistsSQL = `SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`

// -----------------------------------------------------------------------------
// LOCKS
// -----------------------------------------------------------------------------

// Parent row lock for room inserts; serializes roomNo checks per hotel.
const lockHotelSQL = `SELECT id FROM hotels WHERE id = ? FOR UPDATE`

// The per-room commit point: concurrent bookings of the same room queue on
// this row lock, other rooms are untouched.
const lockRoomSQL = `SELECT id FROM rooms WHERE id = ? AND hotel_id = ? FOR UPDATE`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

const selectHotelsSQL = `
SELECT id, name, manager_id, created_at
FROM hotels
`

const selectRoomsForHotelsPrefix = `
SELECT id, hotel_id, room_no
FROM rooms
WHERE hotel_id IN (`

const selectReservationsForRoomsPrefix = `
SELECT id, room_id, guest_id, date_start, date_end, created_at
FROM reservations
WHERE room_id IN (`

const selectRoomSQL = `
SELECT id, hotel_id, room_no
FROM rooms
WHERE id = ? AND hotel_id = ?
`

const selectRoomReservationsSQL = `
SELECT id, room_id, guest_id, date_start, date_end, created_at
FROM reservations
WHERE room_id = ?
ORDER BY seq
`
