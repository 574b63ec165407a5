package actor

import "context"

type result[T any] struct {
	val T
	err error
}

// Reply is a one-shot answer slot carried inside a request message.
type Reply[T any] struct {
	ch chan result[T]
}

// Send answers the request. Only the first call is delivered.
func (r Reply[T]) Send(v T, err error) {
	if r.ch == nil {
		return
	}
	select {
	case r.ch <- result[T]{val: v, err: err}:
	default:
	}
}

// Ask builds a request around a fresh reply slot, sends it and waits for the
// answer. If the loop exits before answering, Ask returns ErrActorGone.
func Ask[M, T any](ctx context.Context, h Handle[M], build func(Reply[T]) M) (T, error) {
	var zero T
	r := Reply[T]{ch: make(chan result[T], 1)}
	if err := h.Tell(ctx, build(r)); err != nil {
		return zero, err
	}
	select {
	case res := <-r.ch:
		return res.val, res.err
	case <-h.l.done:
		select {
		case res := <-r.ch:
			return res.val, res.err
		default:
			return zero, ErrActorGone
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
