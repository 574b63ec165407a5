package app

import (
	"context"
	"time"

	"github.com/dkeye/Hexo/internal/app/actor"
	"github.com/dkeye/Hexo/internal/domain"
	"github.com/dkeye/Hexo/internal/engine"
	"github.com/rs/zerolog/log"
)

// MatchRecorder stores finished matches.
type MatchRecorder interface {
	Record(ctx context.Context, rec domain.MatchRecord) error
}

type MatchOptions struct {
	Engine          engine.Factory
	Recorder        MatchRecorder
	NextGameDelay   time.Duration
	DisconnectGrace time.Duration
	Capacity        int
}

func (o MatchOptions) withDefaults() MatchOptions {
	if o.Engine == nil {
		o.Engine = engine.NewBoard
	}
	if o.NextGameDelay <= 0 {
		o.NextGameDelay = 3 * time.Second
	}
	if o.DisconnectGrace <= 0 {
		o.DisconnectGrace = 30 * time.Second
	}
	return o
}

type matchMsg interface{ isMatchMsg() }

type syncMatchMsg struct {
	user  *User
	reply actor.Reply[domain.MatchState]
}

type userActionMsg struct {
	user   *User
	action engine.Action
	reply  actor.Reply[struct{}]
}

type participantLostMsg struct{ user *User }

type startGameMsg struct{}

type forfeitCheckMsg struct {
	slot  int
	epoch uint64
}

func (syncMatchMsg) isMatchMsg() {}
func (userActionMsg) isMatchMsg() {}
func (participantLostMsg) isMatchMsg() {}
func (startGameMsg) isMatchMsg() {}
func (forfeitCheckMsg) isMatchMsg() {}

// MatchHandle addresses a running match.
type MatchHandle struct {
	info domain.MatchInfo
	h    actor.Handle[matchMsg]
}

// StartMatch spawns the coordinator for two users in slot order.
func StartMatch(info domain.MatchInfo, users [2]*User, opts MatchOptions) *MatchHandle {
	opts = opts.withDefaults()
	m := &match{
		info:  info,
		users: users,
		opts:  opts,
		phase: domain.PhaseStarting,
	}
	h := actor.Start[matchMsg](m,
		actor.WithName("match:"+string(info.ID)),
		actor.WithCapacity(opts.Capacity),
	)
	log.Info().Str("module", "app.match").Str("match", string(info.ID)).
		Str("a", string(users[0].ID())).Str("b", string(users[1].ID())).
		Uint32("games", info.NumberOfGames).Msg("match started")
	return &MatchHandle{info: info, h: h}
}

func (m *MatchHandle) ID() domain.MatchID { return m.info.ID }
func (m *MatchHandle) Info() domain.MatchInfo { return m.info }
func (m *MatchHandle) Done() <-chan struct{} { return m.h.Done() }
func (m *MatchHandle) Stop() { m.h.Stop() }

// SyncMatch returns the caller's view of the match and marks them ready.
// The first game starts once both participants have synced.
func (m *MatchHandle) SyncMatch(ctx context.Context, u *User) (domain.MatchState, error) {
	return actor.Ask(ctx, m.h, func(r actor.Reply[domain.MatchState]) matchMsg {
		return syncMatchMsg{user: u, reply: r}
	})
}

func (m *MatchHandle) UserAction(ctx context.Context, u *User, a engine.Action) error {
	_, err := actor.Ask(ctx, m.h, func(r actor.Reply[struct{}]) matchMsg {
		return userActionMsg{user: u, action: a, reply: r}
	})
	return err
}

// ParticipantLost starts the forfeit grace period for u.
func (m *MatchHandle) ParticipantLost(ctx context.Context, u *User) error {
	return m.h.Tell(ctx, participantLostMsg{user: u})
}

type match struct {
	info  domain.MatchInfo
	users [2]*User
	opts  MatchOptions

	phase     domain.MatchPhase
	scores    domain.Pair[uint32]
	synced    [2]bool
	scheduled bool
	gameIndex int
	firstSlot int
	game      engine.State
	actions   []engine.Action
	games     []domain.GameRecord
	lost      [2]bool
	lostEpoch [2]uint64
}

func (m *match) Receive(c *actor.Context[matchMsg], msg matchMsg) {
	switch msg := msg.(type) {
	case syncMatchMsg:
		msg.reply.Send(m.sync(c, msg.user))
	case userActionMsg:
		msg.reply.Send(struct{}{}, m.play(c, msg.user, msg.action))
	case participantLostMsg:
		m.participantLost(c, msg.user)
	case startGameMsg:
		m.startGame()
	case forfeitCheckMsg:
		m.forfeitCheck(c, msg)
	}
}

func (m *match) slotOf(u *User) (int, bool) {
	for i, p := range m.users {
		if p.ID() == u.ID() {
			return i, true
		}
	}
	return 0, false
}

func (m *match) sideOf(slot int) engine.Side {
	if slot == m.firstSlot {
		return engine.First
	}
	return engine.Second
}

func (m *match) slotOfSide(s engine.Side) int {
	if s == engine.First {
		return m.firstSlot
	}
	return 1 - m.firstSlot
}

func (m *match) sync(c *actor.Context[matchMsg], u *User) (domain.MatchState, error) {
	slot, ok := m.slotOf(u)
	if !ok {
		return domain.MatchState{}, domain.NewMatchError(domain.ErrNotInMatch, "")
	}
	m.synced[slot] = true
	m.present(slot)
	if m.phase == domain.PhaseStarting && !m.scheduled && m.synced[0] && m.synced[1] {
		m.scheduled = true
		c.Notify(startGameMsg{})
	}
	return m.snapshot(slot), nil
}

// present cancels a pending forfeit: any request from slot proves the
// participant is back.
func (m *match) present(slot int) {
	if !m.lost[slot] {
		return
	}
	m.lost[slot] = false
	log.Info().Str("module", "app.match").Str("match", string(m.info.ID)).Int("slot", slot).Msg("participant is back")
}

func (m *match) snapshot(slot int) domain.MatchState {
	st := domain.MatchState{
		Info:   m.info,
		Phase:  m.phase,
		Scores: m.scores,
	}
	if m.game != nil {
		cur, running := m.game.CurrentPlayer()
		st.Game = &domain.GameView{
			Index:    m.gameIndex,
			YourSide: m.sideOf(slot),
			YourTurn: running && cur == m.sideOf(slot),
			Actions:  append([]engine.Action(nil), m.actions...),
		}
	}
	if slot == 1 {
		st = st.Flip()
	}
	return st
}

func (m *match) startGame() {
	if m.phase == domain.PhaseEnded || m.phase == domain.PhasePlaying {
		return
	}
	m.gameIndex++
	m.firstSlot = (m.gameIndex - 1) % 2
	m.game = m.opts.Engine()
	m.actions = nil
	m.phase = domain.PhasePlaying

	for slot, u := range m.users {
		u.Send(domain.GameStarted(domain.GameStart{
			MatchID:  m.info.ID,
			Index:    m.gameIndex,
			YourSide: m.sideOf(slot),
			Scores:   domain.FlipFor(m.scores, slot),
		}))
	}
	log.Debug().Str("module", "app.match").Str("match", string(m.info.ID)).Int("game", m.gameIndex).Msg("game started")
}

func (m *match) play(c *actor.Context[matchMsg], u *User, a engine.Action) error {
	slot, ok := m.slotOf(u)
	if !ok {
		return domain.NewMatchError(domain.ErrNotInMatch, "")
	}
	if m.phase == domain.PhaseEnded {
		return domain.NewMatchError(domain.ErrNotInMatch, "match is over")
	}
	m.present(slot)
	if m.phase != domain.PhasePlaying {
		return domain.NewMatchError(domain.ErrNotYourTurn, "no game in progress")
	}
	side := m.sideOf(slot)
	if cur, ok := m.game.CurrentPlayer(); !ok || cur != side {
		return domain.NewMatchError(domain.ErrNotYourTurn, "")
	}
	if err := m.game.Play(a); err != nil {
		return domain.NewMatchError(domain.ErrGameAction, err.Error())
	}
	m.actions = append(m.actions, a)

	for s, p := range m.users {
		action := a
		p.Send(domain.GameEventOf(domain.GameEvent{
			Kind:    domain.GameUserPlay,
			MatchID: m.info.ID,
			Side:    side,
			ByYou:   s == slot,
			Action:  &action,
			Scores:  domain.FlipFor(m.scores, s),
		}))
	}

	winner, decided := m.game.Winner()
	if !decided {
		return nil
	}
	m.endGame(c, m.slotOfSide(winner))
	return nil
}

func (m *match) endGame(c *actor.Context[matchMsg], winnerSlot int) {
	m.scores[winnerSlot]++
	m.phase = domain.PhaseBreak
	decided := m.scores[winnerSlot]*2 > m.info.NumberOfGames
	m.games = append(m.games, domain.GameRecord{
		FirstSlot:  m.firstSlot,
		WinnerSlot: winnerSlot,
		Actions:    m.actions,
	})

	for s, p := range m.users {
		p.Send(domain.GameEventOf(domain.GameEvent{
			Kind:      domain.GameEnd,
			MatchID:   m.info.ID,
			Side:      m.sideOf(winnerSlot),
			YouWon:    s == winnerSlot,
			Scores:    domain.FlipFor(m.scores, s),
			MatchOver: decided,
		}))
	}

	if decided {
		m.finish(c, winnerSlot, domain.EndByScore)
		return
	}
	c.NotifyAfter(startGameMsg{}, m.opts.NextGameDelay)
}

func (m *match) participantLost(c *actor.Context[matchMsg], u *User) {
	slot, ok := m.slotOf(u)
	if !ok || m.phase == domain.PhaseEnded {
		return
	}
	m.lost[slot] = true
	m.lostEpoch[slot]++
	c.NotifyAfter(forfeitCheckMsg{slot: slot, epoch: m.lostEpoch[slot]}, m.opts.DisconnectGrace)
	log.Info().Str("module", "app.match").Str("match", string(m.info.ID)).Int("slot", slot).
		Dur("grace", m.opts.DisconnectGrace).Msg("participant lost")
}

func (m *match) forfeitCheck(c *actor.Context[matchMsg], msg forfeitCheckMsg) {
	if m.phase == domain.PhaseEnded || !m.lost[msg.slot] || m.lostEpoch[msg.slot] != msg.epoch {
		return
	}
	m.finish(c, 1-msg.slot, domain.EndByForfeit)
}

// finish ends the match, frees both users and stops the loop.
func (m *match) finish(c *actor.Context[matchMsg], winnerSlot int, reason domain.EndReason) {
	m.phase = domain.PhaseEnded

	unlock := LockPair(m.users[0], m.users[1])
	for _, u := range m.users {
		if st := u.Status(); st.Kind == StatusInMatch && st.Match != nil && st.Match.ID() == m.info.ID {
			u.SetStatus(Idle())
		}
	}
	unlock()

	for s, p := range m.users {
		p.Send(domain.GameEventOf(domain.GameEvent{
			Kind:    domain.GameMatchEnd,
			MatchID: m.info.ID,
			YouWon:  s == winnerSlot,
			Scores:  domain.FlipFor(m.scores, s),
			Reason:  reason,
		}))
	}
	log.Info().Str("module", "app.match").Str("match", string(m.info.ID)).
		Int("winner", winnerSlot).Str("reason", string(reason)).Msg("match ended")

	if m.opts.Recorder != nil {
		rec := domain.MatchRecord{
			ID:            m.info.ID,
			Config:        m.info.Config,
			NumberOfGames: m.info.NumberOfGames,
			Users:         m.info.Users,
			Scores:        m.scores,
			WinnerSlot:    winnerSlot,
			Reason:        reason,
			Games:         m.games,
			EndedAt:       time.Now().UTC(),
		}
		go m.record(rec)
	}
	c.Stop()
}

func (m *match) record(rec domain.MatchRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.opts.Recorder.Record(ctx, rec); err != nil {
		log.Error().Err(err).Str("module", "app.match").Str("match", string(rec.ID)).Msg("record match")
	}
}
