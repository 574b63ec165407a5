package domain

import "github.com/dkeye/Hexo/internal/engine"

// Handshake is the first frame a websocket client sends.
type Handshake struct {
	Token string `json:"token" codec:"token"`
}

type RequestType string

const (
	RequestPing        RequestType = "ping"
	RequestListRooms   RequestType = "list_rooms"
	RequestGetRoom     RequestType = "get_room"
	RequestCreateRoom  RequestType = "create_room"
	RequestJoinRoom    RequestType = "join_room"
	RequestLeaveRoom   RequestType = "leave_room"
	RequestRoomAction  RequestType = "room_action"
	RequestSyncMatch   RequestType = "sync_match"
	RequestMatchAction RequestType = "match_action"
)

// Request is a client to server frame after the handshake.
type Request struct {
	ID         uint32         `json:"id" codec:"id"`
	Type       RequestType    `json:"type" codec:"type"`
	RoomID     RoomID         `json:"room_id,omitempty" codec:"room_id,omitempty"`
	RoomAction *RoomAction    `json:"room_action,omitempty" codec:"room_action,omitempty"`
	Action     *engine.Action `json:"action,omitempty" codec:"action,omitempty"`
}

// Response answers the Request with the same ID.
type Response struct {
	ID     uint32      `json:"id" codec:"id"`
	Error  *ErrorBody  `json:"error,omitempty" codec:"error,omitempty"`
	RoomID RoomID      `json:"room_id,omitempty" codec:"room_id,omitempty"`
	Room   *JoinedRoom `json:"room,omitempty" codec:"room,omitempty"`
	Rooms  []Room      `json:"rooms,omitempty" codec:"rooms,omitempty"`
	Match  *MatchState `json:"match,omitempty" codec:"match,omitempty"`
}
