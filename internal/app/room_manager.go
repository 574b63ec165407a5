package app

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/dkeye/Hexo/internal/app/actor"
	"github.com/dkeye/Hexo/internal/domain"
	"github.com/dkeye/Hexo/internal/engine"
	"github.com/rs/zerolog/log"
)

type roomMsg interface{ isRoomMsg() }

type createRoomMsg struct {
	user  *User
	reply actor.Reply[domain.RoomID]
}

type joinRoomMsg struct {
	user  *User
	room  domain.RoomID
	reply actor.Reply[struct{}]
}

type leaveRoomMsg struct {
	user  *User
	reply actor.Reply[struct{}]
}

type roomActionMsg struct {
	user   *User
	room   domain.RoomID
	action domain.RoomAction
	reply  actor.Reply[struct{}]
}

type getRoomMsg struct {
	user  *User
	room  domain.RoomID
	reply actor.Reply[domain.JoinedRoom]
}

func (createRoomMsg) isRoomMsg() {}
func (joinRoomMsg) isRoomMsg() {}
func (leaveRoomMsg) isRoomMsg() {}
func (roomActionMsg) isRoomMsg() {}
func (getRoomMsg) isRoomMsg() {}

type occupant struct {
	user  *User
	ready bool
}

type room struct {
	id        domain.RoomID
	occupants []*occupant
	settings  domain.MatchSettings
}

func (r *room) find(id domain.UserID) int {
	return slices.IndexFunc(r.occupants, func(o *occupant) bool { return o.user.ID() == id })
}

func (r *room) view() domain.JoinedRoom {
	out := domain.JoinedRoom{ID: r.id, Settings: r.settings}
	for _, o := range r.occupants {
		out.Users = append(out.Users, domain.RoomUser{User: o.user.Profile(), IsReady: o.ready})
	}
	return out
}

func (r *room) entry() domain.Room {
	out := domain.Room{ID: r.id}
	for _, o := range r.occupants {
		out.Users = append(out.Users, o.user.Profile())
	}
	return out
}

func (r *room) resetReady() {
	for _, o := range r.occupants {
		o.ready = false
	}
}

func (r *room) broadcast() {
	v := r.view()
	for _, o := range r.occupants {
		o.user.Send(domain.RoomUpdate(v.For(o.user.ID())))
	}
}

// roomListing is the read side of the room table, refreshed by the loop
// after every change.
type roomListing struct {
	mu    sync.RWMutex
	rooms []domain.Room
}

func (l *roomListing) store(rooms []domain.Room) {
	l.mu.Lock()
	l.rooms = rooms
	l.mu.Unlock()
}

func (l *roomListing) load() []domain.Room {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.rooms)
}

// RoomManager owns every waiting room and promotes full, ready rooms to matches.
type RoomManager struct {
	h       actor.Handle[roomMsg]
	listing *roomListing
}

func NewRoomManager(opts MatchOptions) *RoomManager {
	listing := &roomListing{}
	s := &roomState{
		rooms:   make(map[domain.RoomID]*room),
		listing: listing,
		match:   opts,
	}
	h := actor.Start[roomMsg](s, actor.WithName("rooms"), actor.WithCapacity(opts.Capacity))
	return &RoomManager{h: h, listing: listing}
}

func (m *RoomManager) Stop() { m.h.Stop() }
func (m *RoomManager) Done() <-chan struct{} { return m.h.Done() }

// ListRooms reads the latest snapshot without going through the loop.
func (m *RoomManager) ListRooms() []domain.Room { return m.listing.load() }

func (m *RoomManager) CreateRoom(ctx context.Context, u *User) (domain.RoomID, error) {
	return actor.Ask(ctx, m.h, func(r actor.Reply[domain.RoomID]) roomMsg {
		return createRoomMsg{user: u, reply: r}
	})
}

func (m *RoomManager) JoinRoom(ctx context.Context, u *User, id domain.RoomID) error {
	_, err := actor.Ask(ctx, m.h, func(r actor.Reply[struct{}]) roomMsg {
		return joinRoomMsg{user: u, room: id, reply: r}
	})
	return err
}

func (m *RoomManager) LeaveRoom(ctx context.Context, u *User) error {
	_, err := actor.Ask(ctx, m.h, func(r actor.Reply[struct{}]) roomMsg {
		return leaveRoomMsg{user: u, reply: r}
	})
	return err
}

func (m *RoomManager) RoomAction(ctx context.Context, u *User, id domain.RoomID, a domain.RoomAction) error {
	_, err := actor.Ask(ctx, m.h, func(r actor.Reply[struct{}]) roomMsg {
		return roomActionMsg{user: u, room: id, action: a, reply: r}
	})
	return err
}

func (m *RoomManager) GetJoinedRoom(ctx context.Context, u *User, id domain.RoomID) (domain.JoinedRoom, error) {
	return actor.Ask(ctx, m.h, func(r actor.Reply[domain.JoinedRoom]) roomMsg {
		return getRoomMsg{user: u, room: id, reply: r}
	})
}

type roomState struct {
	rooms   map[domain.RoomID]*room
	counter domain.RoomID
	listing *roomListing
	match   MatchOptions
}

func (s *roomState) Receive(_ *actor.Context[roomMsg], msg roomMsg) {
	switch msg := msg.(type) {
	case createRoomMsg:
		msg.reply.Send(s.create(msg.user))
	case joinRoomMsg:
		msg.reply.Send(struct{}{}, s.join(msg.user, msg.room))
	case leaveRoomMsg:
		msg.reply.Send(struct{}{}, s.leave(msg.user))
	case roomActionMsg:
		msg.reply.Send(struct{}{}, s.action(msg.user, msg.room, msg.action))
	case getRoomMsg:
		msg.reply.Send(s.get(msg.user, msg.room))
	}
}

func (s *roomState) publish() {
	out := make([]domain.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r.entry())
	}
	slices.SortFunc(out, func(a, b domain.Room) int { return cmp.Compare(a.ID, b.ID) })
	s.listing.store(out)
}

func (s *roomState) create(u *User) (domain.RoomID, error) {
	u.Lock()
	defer u.Unlock()
	if !u.Status().IsIdle() {
		return 0, domain.NewRoomError(domain.ErrUserBusy, 0)
	}

	s.counter++
	r := &room{id: s.counter, settings: domain.DefaultMatchSettings()}
	r.occupants = append(r.occupants, &occupant{user: u})
	s.rooms[r.id] = r
	u.SetStatus(InRoom(r.id))

	u.Send(domain.MoveToRoom(r.id))
	s.publish()
	log.Info().Str("module", "app.rooms").Str("uid", string(u.ID())).Int64("room", int64(r.id)).Msg("room created")
	return r.id, nil
}

func (s *roomState) join(u *User, id domain.RoomID) error {
	u.Lock()
	defer u.Unlock()
	if !u.Status().IsIdle() {
		return domain.NewRoomError(domain.ErrUserBusy, id)
	}
	r, ok := s.rooms[id]
	if !ok {
		return domain.NewRoomError(domain.ErrRoomNotFound, id)
	}
	if len(r.occupants) >= domain.RoomCapacity {
		return domain.NewRoomError(domain.ErrRoomIsFull, id)
	}

	r.occupants = append(r.occupants, &occupant{user: u})
	r.resetReady()
	u.SetStatus(InRoom(id))

	u.Send(domain.MoveToRoom(id))
	r.broadcast()
	s.publish()
	log.Info().Str("module", "app.rooms").Str("uid", string(u.ID())).Int64("room", int64(id)).Msg("joined room")
	return nil
}

func (s *roomState) leave(u *User) error {
	u.Lock()
	defer u.Unlock()
	st := u.Status()
	if st.Kind != StatusInRoom {
		return domain.NewRoomError(domain.ErrNotInRoom, 0)
	}
	u.SetStatus(Idle())
	u.Send(domain.StatusEvent(StatusIdle.String()))

	r, ok := s.rooms[st.Room]
	if !ok {
		return nil
	}
	if i := r.find(u.ID()); i >= 0 {
		r.occupants = slices.Delete(r.occupants, i, i+1)
	}
	if len(r.occupants) == 0 {
		delete(s.rooms, r.id)
	} else {
		r.resetReady()
		r.broadcast()
	}
	s.publish()
	log.Info().Str("module", "app.rooms").Str("uid", string(u.ID())).Int64("room", int64(r.id)).Msg("left room")
	return nil
}

func (s *roomState) occupantOf(u *User, id domain.RoomID) (*room, int, error) {
	r, ok := s.rooms[id]
	if !ok {
		return nil, 0, domain.NewRoomError(domain.ErrRoomNotFound, id)
	}
	i := r.find(u.ID())
	if i < 0 {
		return nil, 0, domain.NewRoomError(domain.ErrNotInRoom, id)
	}
	return r, i, nil
}

func (s *roomState) get(u *User, id domain.RoomID) (domain.JoinedRoom, error) {
	r, _, err := s.occupantOf(u, id)
	if err != nil {
		return domain.JoinedRoom{}, err
	}
	return r.view().For(u.ID()), nil
}

func (s *roomState) action(u *User, id domain.RoomID, a domain.RoomAction) error {
	r, i, err := s.occupantOf(u, id)
	if err != nil {
		return err
	}

	switch a.Kind {
	case domain.ActionReady:
		r.occupants[i].ready = true
	case domain.ActionUndoReady:
		r.occupants[i].ready = false
	case domain.ActionSetConfig:
		n, err := a.Config.NumberOfGames()
		if err != nil {
			return domain.NewRoomError(domain.ErrBadRequest, id)
		}
		r.settings = domain.MatchSettings{Config: a.Config, NumberOfGames: n}
		r.resetReady()
	default:
		return domain.NewRoomError(domain.ErrBadRequest, id)
	}

	if s.allReady(r) {
		s.promote(r)
		return nil
	}
	r.broadcast()
	return nil
}

func (s *roomState) allReady(r *room) bool {
	if len(r.occupants) != domain.RoomCapacity {
		return false
	}
	for _, o := range r.occupants {
		if !o.ready {
			return false
		}
	}
	return true
}

// promote turns a full, ready room into a match. The room disappears and
// both occupants move to the match under their pair lock.
func (s *roomState) promote(r *room) {
	a, b := r.occupants[0].user, r.occupants[1].user
	info := domain.MatchInfo{
		ID:            domain.NewMatchID(),
		Config:        r.settings.Config,
		NumberOfGames: r.settings.NumberOfGames,
		Users:         domain.Pair[domain.User]{a.Profile(), b.Profile()},
	}
	h := StartMatch(info, [2]*User{a, b}, s.match)

	unlock := LockPair(a, b)
	a.SetStatus(InMatch(h))
	b.SetStatus(InMatch(h))
	unlock()

	delete(s.rooms, r.id)
	s.publish()

	a.Send(domain.MoveToMatch(info, engine.First))
	b.Send(domain.MoveToMatch(info.Flip(), engine.Second))
	log.Info().Str("module", "app.rooms").Int64("room", int64(r.id)).Str("match", string(info.ID)).Msg("room promoted to match")
}
