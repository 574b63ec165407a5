package domain

import (
	"time"

	"github.com/dkeye/Hexo/internal/engine"
	"github.com/google/uuid"
)

type MatchID string

func NewMatchID() MatchID { return MatchID(uuid.NewString()) }

type MatchPhase string

const (
	PhaseStarting MatchPhase = "starting"
	PhasePlaying  MatchPhase = "playing"
	PhaseBreak    MatchPhase = "break"
	PhaseEnded    MatchPhase = "ended"
)

type EndReason string

const (
	EndByScore   EndReason = "score"
	EndByForfeit EndReason = "forfeit"
)

// Pair is a per-slot value. Index 0 belongs to whoever the value is shown to.
type Pair[T any] [2]T

func (p Pair[T]) Flip() Pair[T] { return Pair[T]{p[1], p[0]} }

// FlipFor flips p when the viewer sits in slot 1.
func FlipFor[T any](p Pair[T], slot int) Pair[T] {
	if slot == 1 {
		return p.Flip()
	}
	return p
}

type MatchInfo struct {
	ID            MatchID     `json:"id" codec:"id"`
	Config        MatchConfig `json:"config" codec:"config"`
	NumberOfGames uint32      `json:"number_of_games" codec:"number_of_games"`
	Users         Pair[User]  `json:"users" codec:"users"`
}

func (i MatchInfo) Flip() MatchInfo {
	i.Users = i.Users.Flip()
	return i
}

// GameView describes the running or last finished game for one viewer.
type GameView struct {
	Index    int             `json:"index" codec:"index"`
	YourSide engine.Side     `json:"your_side" codec:"your_side"`
	YourTurn bool            `json:"your_turn" codec:"your_turn"`
	Actions  []engine.Action `json:"actions" codec:"actions"`
}

// MatchState is the snapshot returned by SyncMatch.
type MatchState struct {
	Info   MatchInfo    `json:"info" codec:"info"`
	Phase  MatchPhase   `json:"phase" codec:"phase"`
	Scores Pair[uint32] `json:"scores" codec:"scores"`
	Game   *GameView    `json:"game,omitempty" codec:"game,omitempty"`
}

// Flip swaps every per-slot field; applying it twice is a no-op.
func (s MatchState) Flip() MatchState {
	s.Info = s.Info.Flip()
	s.Scores = s.Scores.Flip()
	return s
}

// GameRecord is one finished game inside a match record.
type GameRecord struct {
	FirstSlot  int             `json:"first_slot"`
	WinnerSlot int             `json:"winner_slot"`
	Actions    []engine.Action `json:"actions"`
}

// MatchRecord is what gets persisted once a match is over.
type MatchRecord struct {
	ID            MatchID      `json:"id"`
	Config        MatchConfig  `json:"config"`
	NumberOfGames uint32       `json:"number_of_games"`
	Users         Pair[User]   `json:"users"`
	Scores        Pair[uint32] `json:"scores"`
	WinnerSlot    int          `json:"winner_slot"`
	Reason        EndReason    `json:"reason"`
	Games         []GameRecord `json:"games"`
	EndedAt       time.Time    `json:"ended_at"`
}

// SlotOf reports which slot id played in.
func (r MatchRecord) SlotOf(id UserID) (int, bool) {
	for i, u := range r.Users {
		if u.ID == id {
			return i, true
		}
	}
	return 0, false
}

// MatchSummary is a history row from the viewer's perspective.
type MatchSummary struct {
	ID       MatchID      `json:"id" codec:"id"`
	Opponent User         `json:"opponent" codec:"opponent"`
	Scores   Pair[uint32] `json:"scores" codec:"scores"`
	Won      bool         `json:"won" codec:"won"`
	Reason   EndReason    `json:"reason" codec:"reason"`
	EndedAt  time.Time    `json:"ended_at" codec:"ended_at"`
}

// SummaryFor builds viewer's history row. ok is false if viewer did not play.
func (r MatchRecord) SummaryFor(viewer UserID) (MatchSummary, bool) {
	slot, ok := r.SlotOf(viewer)
	if !ok {
		return MatchSummary{}, false
	}
	return MatchSummary{
		ID:       r.ID,
		Opponent: r.Users[1-slot],
		Scores:   FlipFor(r.Scores, slot),
		Won:      r.WinnerSlot == slot,
		Reason:   r.Reason,
		EndedAt:  r.EndedAt,
	}, true
}
