package domain

import "github.com/dkeye/Hexo/internal/engine"

type EventType string

const (
	EventHello       EventType = "hello"
	EventError       EventType = "error"
	EventResponse    EventType = "response"
	EventPing        EventType = "ping"
	EventUserStatus  EventType = "user_status"
	EventMoveToRoom  EventType = "move_to_room"
	EventRoomUpdate  EventType = "room_update"
	EventMoveToMatch EventType = "move_to_match"
	EventGameStart   EventType = "game_start"
	EventGameEvent   EventType = "game_event"
)

// Event is every server to client frame. Type selects the populated field.
type Event struct {
	Type      EventType   `json:"type" codec:"type"`
	Username  string      `json:"username,omitempty" codec:"username,omitempty"`
	Status    string      `json:"status,omitempty" codec:"status,omitempty"`
	RoomID    RoomID      `json:"room_id,omitempty" codec:"room_id,omitempty"`
	Room      *JoinedRoom `json:"room,omitempty" codec:"room,omitempty"`
	Match     *MatchStart `json:"match,omitempty" codec:"match,omitempty"`
	GameStart *GameStart  `json:"game_start,omitempty" codec:"game_start,omitempty"`
	GameEvent *GameEvent  `json:"game_event,omitempty" codec:"game_event,omitempty"`
	Error     *ErrorBody  `json:"error,omitempty" codec:"error,omitempty"`
	Response  *Response   `json:"response,omitempty" codec:"response,omitempty"`
}

// MatchStart tells an occupant their room became a match.
type MatchStart struct {
	Info     MatchInfo   `json:"info" codec:"info"`
	YourSide engine.Side `json:"your_side" codec:"your_side"`
}

type GameStart struct {
	MatchID  MatchID      `json:"match_id" codec:"match_id"`
	Index    int          `json:"index" codec:"index"`
	YourSide engine.Side  `json:"your_side" codec:"your_side"`
	Scores   Pair[uint32] `json:"scores" codec:"scores"`
}

type GameEventKind string

const (
	GameUserPlay GameEventKind = "user_play"
	GameEnd      GameEventKind = "game_end"
	GameMatchEnd GameEventKind = "match_end"
)

type GameEvent struct {
	Kind    GameEventKind  `json:"kind" codec:"kind"`
	MatchID MatchID        `json:"match_id" codec:"match_id"`
	Side    engine.Side    `json:"side" codec:"side"`
	ByYou   bool           `json:"by_you" codec:"by_you"`
	Action  *engine.Action `json:"action,omitempty" codec:"action,omitempty"`
	YouWon  bool           `json:"you_won" codec:"you_won"`
	Scores  Pair[uint32]   `json:"scores" codec:"scores"`
	// MatchOver is set on game_end when that game decided the series.
	MatchOver bool      `json:"match_over" codec:"match_over"`
	Reason    EndReason `json:"reason,omitempty" codec:"reason,omitempty"`
}

func Hello(username string) Event { return Event{Type: EventHello, Username: username} }

func ErrorEvent(err error) Event { return Event{Type: EventError, Error: ErrorBodyOf(err)} }

func StatusEvent(status string) Event { return Event{Type: EventUserStatus, Status: status} }

func MoveToRoom(id RoomID) Event { return Event{Type: EventMoveToRoom, RoomID: id} }

func RoomUpdate(r JoinedRoom) Event { return Event{Type: EventRoomUpdate, Room: &r} }

func MoveToMatch(info MatchInfo, side engine.Side) Event {
	return Event{Type: EventMoveToMatch, Match: &MatchStart{Info: info, YourSide: side}}
}

func GameStarted(g GameStart) Event { return Event{Type: EventGameStart, GameStart: &g} }

func GameEventOf(g GameEvent) Event { return Event{Type: EventGameEvent, GameEvent: &g} }

func ResponseEvent(r Response) Event { return Event{Type: EventResponse, Response: &r} }
