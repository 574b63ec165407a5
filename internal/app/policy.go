package app

type DisconnectAction int

const (
	NoAction DisconnectAction = iota
	LeaveRoom
	ForfeitAfterGrace
)

func (a DisconnectAction) String() string {
	switch a {
	case LeaveRoom:
		return "leave_room"
	case ForfeitAfterGrace:
		return "forfeit_after_grace"
	}
	return "none"
}

// Policy decides what happens to a user whose live connection is lost.
type Policy interface {
	OnConnectionLost(s Status) DisconnectAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnConnectionLost(s Status) DisconnectAction {
	switch s.Kind {
	case StatusInRoom:
		return LeaveRoom
	case StatusInMatch:
		return ForfeitAfterGrace
	}
	return NoAction
}
