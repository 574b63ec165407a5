// Package orch is the kernel: it owns the registry and the room coordinator,
// routes inbound requests and applies the disconnect policy.
package orch

import (
	"context"
	"errors"

	"github.com/dkeye/Hexo/internal/app"
	"github.com/dkeye/Hexo/internal/app/actor"
	"github.com/dkeye/Hexo/internal/domain"
	"github.com/dkeye/Hexo/internal/engine"
	"github.com/rs/zerolog/log"
)

// HistoryLister reads finished matches for one user, newest first.
type HistoryLister interface {
	List(ctx context.Context, user domain.UserID, limit int) ([]domain.MatchRecord, error)
}

type Orchestrator struct {
	Registry *app.Registry
	Rooms    *app.RoomManager
	Policy   app.Policy
	Matches  HistoryLister
}

// logErr keeps client errors out of the error log.
func logErr(err error, op string, u *app.User) {
	if err == nil {
		return
	}
	if _, ok := domain.ErrorKind(err); ok {
		log.Debug().Err(err).Str("module", "app.orch").Str("op", op).Str("uid", string(u.ID())).Msg("request rejected")
		return
	}
	log.Error().Err(err).Str("module", "app.orch").Str("op", op).Str("uid", string(u.ID())).Msg("request failed")
}

func (o *Orchestrator) ListRooms() []domain.Room { return o.Rooms.ListRooms() }

// MatchHistory lists u's finished matches from their side of the board.
func (o *Orchestrator) MatchHistory(ctx context.Context, u *app.User, limit int) ([]domain.MatchSummary, error) {
	if o.Matches == nil {
		return []domain.MatchSummary{}, nil
	}
	recs, err := o.Matches.List(ctx, u.ID(), limit)
	if err != nil {
		logErr(err, "history", u)
		return nil, err
	}
	out := make([]domain.MatchSummary, 0, len(recs))
	for _, rec := range recs {
		if s, ok := rec.SummaryFor(u.ID()); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// matchOf resolves the user's current match; a finished one counts as none.
func matchOf(u *app.User) (*app.MatchHandle, error) {
	st := u.CurrentStatus()
	if st.Kind != app.StatusInMatch || st.Match == nil {
		return nil, domain.NewMatchError(domain.ErrNotInMatch, "")
	}
	return st.Match, nil
}

func notInMatchIfGone(err error) error {
	if errors.Is(err, actor.ErrActorGone) {
		return domain.NewMatchError(domain.ErrNotInMatch, "match is over")
	}
	return err
}

func (o *Orchestrator) SyncMatch(ctx context.Context, u *app.User) (domain.MatchState, error) {
	h, err := matchOf(u)
	if err != nil {
		return domain.MatchState{}, err
	}
	st, err := h.SyncMatch(ctx, u)
	err = notInMatchIfGone(err)
	logErr(err, "sync_match", u)
	return st, err
}

func (o *Orchestrator) UserAction(ctx context.Context, u *app.User, a engine.Action) error {
	h, err := matchOf(u)
	if err != nil {
		return err
	}
	err = notInMatchIfGone(h.UserAction(ctx, u, a))
	logErr(err, "match_action", u)
	return err
}

// OnConnectionLost applies the policy for a connection that was still live.
func (o *Orchestrator) OnConnectionLost(ctx context.Context, u *app.User) {
	st := u.CurrentStatus()
	action := app.NoAction
	if o.Policy != nil {
		action = o.Policy.OnConnectionLost(st)
	}
	log.Info().Str("module", "app.orch").Str("uid", string(u.ID())).Str("status", st.Kind.String()).
		Str("action", action.String()).Msg("connection lost")

	switch action {
	case app.LeaveRoom:
		if err := o.Rooms.LeaveRoom(ctx, u); err != nil {
			logErr(err, "leave_on_disconnect", u)
		}
	case app.ForfeitAfterGrace:
		if err := st.Match.ParticipantLost(ctx, u); err != nil && !errors.Is(err, actor.ErrActorGone) {
			logErr(err, "forfeit_on_disconnect", u)
		}
	case app.NoAction:
	}
}
