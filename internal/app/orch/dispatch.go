package orch

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/dkeye/Hexo/internal/app"
	"github.com/dkeye/Hexo/internal/core"
	"github.com/dkeye/Hexo/internal/domain"
	"github.com/rs/zerolog/log"
)

// Handle runs one websocket request and builds its response.
func (o *Orchestrator) Handle(ctx context.Context, u *app.User, req domain.Request) domain.Response {
	resp := domain.Response{ID: req.ID}
	var err error

	switch req.Type {
	case domain.RequestPing:
	case domain.RequestListRooms:
		resp.Rooms = o.ListRooms()
	case domain.RequestGetRoom:
		var r domain.JoinedRoom
		if r, err = o.GetJoinedRoom(ctx, u); err == nil {
			resp.Room = &r
		}
	case domain.RequestCreateRoom:
		resp.RoomID, err = o.CreateRoom(ctx, u)
	case domain.RequestJoinRoom:
		if err = o.JoinRoom(ctx, u, req.RoomID); err == nil {
			resp.RoomID = req.RoomID
		}
	case domain.RequestLeaveRoom:
		err = o.LeaveRoom(ctx, u)
	case domain.RequestRoomAction:
		if req.RoomAction == nil {
			err = domain.ErrBadRequest
			break
		}
		err = o.RoomAction(ctx, u, *req.RoomAction)
	case domain.RequestSyncMatch:
		var st domain.MatchState
		if st, err = o.SyncMatch(ctx, u); err == nil {
			resp.Match = &st
		}
	case domain.RequestMatchAction:
		if req.Action == nil {
			err = domain.ErrBadRequest
			break
		}
		err = o.UserAction(ctx, u, *req.Action)
	default:
		err = domain.ErrBadRequest
	}

	resp.Error = domain.ErrorBodyOf(err)
	return resp
}

// Dispatcher feeds inbound traffic to a fixed set of workers. All traffic of
// one user lands on the same worker, so a client's requests run in order.
type Dispatcher struct {
	orch   *Orchestrator
	inbox  chan core.Inbound
	shards []chan core.Inbound
}

func NewDispatcher(o *Orchestrator, workers, buffer int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	d := &Dispatcher{
		orch:   o,
		inbox:  make(chan core.Inbound, buffer),
		shards: make([]chan core.Inbound, workers),
	}
	for i := range d.shards {
		d.shards[i] = make(chan core.Inbound, buffer)
	}
	return d
}

func (d *Dispatcher) Inbox() chan<- core.Inbound { return d.inbox }

// Run blocks until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, ch := range d.shards {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.work(ctx, ch)
		}()
	}
	log.Info().Str("module", "app.orch").Int("workers", len(d.shards)).Msg("dispatcher started")

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			log.Info().Str("module", "app.orch").Msg("dispatcher stopped")
			return
		case in := <-d.inbox:
			select {
			case d.shards[shardOf(in.User, len(d.shards))] <- in:
			case <-ctx.Done():
			}
		}
	}
}

func shardOf(id domain.UserID, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return int(h.Sum32() % uint32(n))
}

func (d *Dispatcher) work(ctx context.Context, ch <-chan core.Inbound) {
	for {
		select {
		case <-ctx.Done():
			return
		case in := <-ch:
			d.handle(ctx, in)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, in core.Inbound) {
	u, ok := d.orch.Registry.Get(in.User)
	if !ok {
		log.Debug().Str("module", "app.orch").Str("uid", string(in.User)).Msg("inbound for unknown user")
		return
	}

	switch in.Kind {
	case core.InboundLost:
		if !d.orch.Registry.Unbind(u, in.Conn) {
			// superseded by a newer connection
			return
		}
		d.orch.OnConnectionLost(ctx, u)
	case core.InboundRequest:
		resp := d.orch.Handle(ctx, u, in.Request)
		u.Send(domain.ResponseEvent(resp))
	}
}
