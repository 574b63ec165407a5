package orch

import (
	"context"

	"github.com/dkeye/Hexo/internal/app"
	"github.com/dkeye/Hexo/internal/domain"
)

func (o *Orchestrator) CreateRoom(ctx context.Context, u *app.User) (domain.RoomID, error) {
	id, err := o.Rooms.CreateRoom(ctx, u)
	logErr(err, "create_room", u)
	return id, err
}

func (o *Orchestrator) JoinRoom(ctx context.Context, u *app.User, id domain.RoomID) error {
	err := o.Rooms.JoinRoom(ctx, u, id)
	logErr(err, "join_room", u)
	return err
}

func (o *Orchestrator) LeaveRoom(ctx context.Context, u *app.User) error {
	err := o.Rooms.LeaveRoom(ctx, u)
	logErr(err, "leave_room", u)
	return err
}

// currentRoom is the room the user's status points at.
func currentRoom(u *app.User) (domain.RoomID, error) {
	st := u.CurrentStatus()
	if st.Kind != app.StatusInRoom {
		return 0, domain.NewRoomError(domain.ErrNotInRoom, 0)
	}
	return st.Room, nil
}

func (o *Orchestrator) RoomAction(ctx context.Context, u *app.User, a domain.RoomAction) error {
	id, err := currentRoom(u)
	if err != nil {
		return err
	}
	err = o.Rooms.RoomAction(ctx, u, id, a)
	logErr(err, "room_action", u)
	return err
}

func (o *Orchestrator) GetJoinedRoom(ctx context.Context, u *app.User) (domain.JoinedRoom, error) {
	id, err := currentRoom(u)
	if err != nil {
		return domain.JoinedRoom{}, err
	}
	r, err := o.Rooms.GetJoinedRoom(ctx, u, id)
	logErr(err, "get_room", u)
	return r, err
}
