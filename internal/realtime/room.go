package realtime

import (
	"errors"

	"github.com/google/uuid"
)

const uuidLen = 36

var ErrInvalidRoom = errors.New("invalid room id")

// RoomID is the deterministic room for a pair: the two ids sorted and joined
// with a hyphen, so both sides compute it without a lookup.
func RoomID(a, b uuid.UUID) string {
	x, y := a.String(), b.String()
	if y < x {
		x, y = y, x
	}
	return x + "-" + y
}

// ParseRoomID splits a room id into its two participants.
func ParseRoomID(room string) (uuid.UUID, uuid.UUID, error) {
	if len(room) != 2*uuidLen+1 || room[uuidLen] != '-' {
		return uuid.Nil, uuid.Nil, ErrInvalidRoom
	}
	a, err := uuid.Parse(room[:uuidLen])
	if err != nil {
		return uuid.Nil, uuid.Nil, ErrInvalidRoom
	}
	b, err := uuid.Parse(room[uuidLen+1:])
	if err != nil {
		return uuid.Nil, uuid.Nil, ErrInvalidRoom
	}
	if a == b || RoomID(a, b) != room {
		return uuid.Nil, uuid.Nil, ErrInvalidRoom
	}
	return a, b, nil
}

func roomIncludes(room string, id uuid.UUID) bool {
	a, b, err := ParseRoomID(room)
	return err == nil && (a == id || b == id)
}
