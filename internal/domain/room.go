package domain

import "fmt"

const RoomCapacity = 2

type RoomID int64

// MatchConfig selects how long a match promoted from a room lasts.
type MatchConfig string

const (
	ConfigNormal       MatchConfig = "normal"
	ConfigKnockout     MatchConfig = "knockout_stage"
	ConfigChampionship MatchConfig = "championship_stage"
)

// NumberOfGames maps a config to its best-of length.
func (c MatchConfig) NumberOfGames() (uint32, error) {
	switch c {
	case ConfigNormal:
		return 3, nil
	case ConfigKnockout:
		return 5, nil
	case ConfigChampionship:
		return 7, nil
	}
	return 0, fmt.Errorf("unknown match config %q", string(c))
}

type MatchSettings struct {
	Config        MatchConfig `json:"config" codec:"config"`
	NumberOfGames uint32      `json:"number_of_games" codec:"number_of_games"`
}

func DefaultMatchSettings() MatchSettings {
	return MatchSettings{Config: ConfigNormal, NumberOfGames: 3}
}

// Room is one entry of the public room listing.
type Room struct {
	ID    RoomID `json:"id" codec:"id"`
	Users []User `json:"users" codec:"users"`
}

type RoomUser struct {
	User    User `json:"user" codec:"user"`
	IsReady bool `json:"is_ready" codec:"is_ready"`
}

// JoinedRoom is the occupant view of a room. Users[0] is the viewer
// once For has been applied.
type JoinedRoom struct {
	ID       RoomID        `json:"id" codec:"id"`
	Users    []RoomUser    `json:"users" codec:"users"`
	Settings MatchSettings `json:"settings" codec:"settings"`
}

// For returns the room as seen by viewer.
func (r JoinedRoom) For(viewer UserID) JoinedRoom {
	out := r
	out.Users = append([]RoomUser(nil), r.Users...)
	if len(out.Users) == RoomCapacity && out.Users[1].User.ID == viewer {
		out.Users[0], out.Users[1] = out.Users[1], out.Users[0]
	}
	return out
}

type RoomActionKind string

const (
	ActionReady     RoomActionKind = "ready"
	ActionUndoReady RoomActionKind = "undo_ready"
	ActionSetConfig RoomActionKind = "set_config"
)

type RoomAction struct {
	Kind   RoomActionKind `json:"kind" codec:"kind"`
	Config MatchConfig    `json:"config,omitempty" codec:"config,omitempty"`
}
