package domain

import (
	"errors"
	"fmt"
)

// Client-facing failures. They are expected during normal play and are
// reported back to the caller instead of being logged as faults.
var (
	ErrUserBusy     = errors.New("user is already in a room or a match")
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomIsFull   = errors.New("room is full")
	ErrNotInRoom    = errors.New("user is not in a room")
	ErrNotInMatch   = errors.New("user is not in a match")
	ErrNotYourTurn  = errors.New("not your turn")
	ErrGameAction   = errors.New("game action rejected")
	ErrBadRequest   = errors.New("bad request")
	ErrRateLimited  = errors.New("too many requests")

	ErrHandshakeTimeout = errors.New("handshake timed out")
	ErrNoMessage        = errors.New("connection closed before handshake")
	ErrWrongMessageType = errors.New("handshake must be a binary frame")
	ErrAuthFailed       = errors.New("authentication failed")
)

var errorKinds = map[error]string{
	ErrUserBusy:         "user_busy",
	ErrRoomNotFound:     "room_not_found",
	ErrRoomIsFull:       "room_is_full",
	ErrNotInRoom:        "not_in_room",
	ErrNotInMatch:       "not_in_match",
	ErrNotYourTurn:      "not_your_turn",
	ErrGameAction:       "game_action",
	ErrBadRequest:       "bad_request",
	ErrRateLimited:      "rate_limited",
	ErrHandshakeTimeout: "timeout",
	ErrNoMessage:        "no_message",
	ErrWrongMessageType: "wrong_message_type",
	ErrAuthFailed:       "auth_failed",
}

// RoomError carries the room an operation was aimed at.
type RoomError struct {
	Kind error
	Room RoomID
}

func NewRoomError(kind error, room RoomID) *RoomError {
	return &RoomError{Kind: kind, Room: room}
}

func (e *RoomError) Error() string {
	if e.Room == 0 {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: room %d", e.Kind, e.Room)
}

func (e *RoomError) Unwrap() error { return e.Kind }

// MatchError wraps a match rule violation, with the engine message when there is one.
type MatchError struct {
	Kind   error
	Detail string
}

func NewMatchError(kind error, detail string) *MatchError {
	return &MatchError{Kind: kind, Detail: detail}
}

func (e *MatchError) Error() string {
	if e.Detail == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Detail
}

func (e *MatchError) Unwrap() error { return e.Kind }

// ErrorKind returns the wire code for a client error and false for anything else.
func ErrorKind(err error) (string, bool) {
	for sentinel, kind := range errorKinds {
		if errors.Is(err, sentinel) {
			return kind, true
		}
	}
	return "", false
}

// ErrorBody is the wire form of a failure.
type ErrorBody struct {
	Kind    string `json:"kind" codec:"kind"`
	Message string `json:"error" codec:"error"`
}

// ErrorBodyOf hides infrastructure failures behind a generic message.
func ErrorBodyOf(err error) *ErrorBody {
	if err == nil {
		return nil
	}
	if kind, ok := ErrorKind(err); ok {
		return &ErrorBody{Kind: kind, Message: err.Error()}
	}
	return &ErrorBody{Kind: "internal", Message: "internal error"}
}
