// Package engine holds the turn-based game rules a match drives.
// Coordinators only rely on the State contract; the default rules live in board.go.
package engine

import "errors"

var (
	ErrGameOver   = errors.New("game is over")
	ErrOutOfBoard = errors.New("cell is out of board")
	ErrCellTaken  = errors.New("cell is already taken")
)

// Side is a player's side within one game, independent of match slot.
type Side uint8

const (
	First Side = iota
	Second
)

func (s Side) Other() Side {
	if s == First {
		return Second
	}
	return First
}

func (s Side) String() string {
	switch s {
	case First:
		return "first"
	case Second:
		return "second"
	}
	return "unknown"
}

// Action is one move submitted by the player whose turn it is.
type Action struct {
	Cell int `json:"cell" codec:"cell"`
}

// State is a single game in progress.
type State interface {
	// Play applies an action for the current player.
	Play(Action) error
	// CurrentPlayer reports who moves next; false once the game is decided.
	CurrentPlayer() (Side, bool)
	// Winner reports the winning side; false while the game is running.
	Winner() (Side, bool)
}

// Factory builds a fresh game; First always moves first.
type Factory func() State
