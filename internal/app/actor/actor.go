// Package actor runs a handler over a private mailbox on its own goroutine.
//
// Messages from the outside go through a bounded channel, so senders block
// when the loop falls behind. Messages a loop sends to itself go through an
// unbounded queue that is always drained before the next outside message.
package actor

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrActorGone = errors.New("actor is gone")

const DefaultCapacity = 16

type Receiver[M any] interface {
	Receive(c *Context[M], msg M)
}

type ReceiverFunc[M any] func(c *Context[M], msg M)

func (f ReceiverFunc[M]) Receive(c *Context[M], msg M) { f(c, msg) }

type options struct {
	name     string
	capacity int
}

type Option func(*options)

func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

func WithCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.capacity = n
		}
	}
}

type loop[M any] struct {
	name    string
	recv    Receiver[M]
	mailbox chan M
	self    selfQueue[M]

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// Handle addresses a running loop. Copies share the same loop.
type Handle[M any] struct {
	l *loop[M]
}

// Start spawns the loop and returns its handle.
func Start[M any](r Receiver[M], opts ...Option) Handle[M] {
	o := options{name: "actor", capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(&o)
	}
	l := &loop[M]{
		name:    o.name,
		recv:    r,
		mailbox: make(chan M, o.capacity),
		self:    selfQueue[M]{signal: make(chan struct{}, 1)},
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go l.run()
	return Handle[M]{l: l}
}

// Tell enqueues msg without waiting for it to be handled.
// It blocks while the mailbox is full.
func (h Handle[M]) Tell(ctx context.Context, msg M) error {
	select {
	case <-h.l.done:
		return ErrActorGone
	default:
	}
	select {
	case h.l.mailbox <- msg:
		return nil
	case <-h.l.done:
		return ErrActorGone
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop asks the loop to exit before its next message.
func (h Handle[M]) Stop() { h.l.requestStop() }

// Done is closed once the loop has exited.
func (h Handle[M]) Done() <-chan struct{} { return h.l.done }

func (h Handle[M]) Alive() bool {
	select {
	case <-h.l.done:
		return false
	default:
		return true
	}
}

// Context is handed to the receiver for every message.
type Context[M any] struct {
	l *loop[M]
}

// Notify queues msg on the loop's own queue; it is handled before any
// outside message still waiting in the mailbox.
func (c *Context[M]) Notify(msg M) { c.l.self.push(msg) }

// NotifyAfter delivers msg to the loop's own queue after d.
// It is dropped if the loop is gone by then.
func (c *Context[M]) NotifyAfter(msg M, d time.Duration) {
	time.AfterFunc(d, func() { c.l.self.push(msg) })
}

// Stop terminates the loop once the current message returns.
func (c *Context[M]) Stop() { c.l.requestStop() }

func (c *Context[M]) Handle() Handle[M] { return Handle[M]{l: c.l} }

func (l *loop[M]) requestStop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *loop[M]) stopped() bool {
	select {
	case <-l.stop:
		return true
	default:
		return false
	}
}

func (l *loop[M]) run() {
	defer close(l.done)
	defer l.self.close()
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("module", "app.actor").
				Str("actor", l.name).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("handler panicked, loop terminated")
		}
	}()

	c := &Context[M]{l: l}
	for {
		if !l.drainSelf(c) {
			return
		}
		select {
		case <-l.stop:
			return
		case <-l.self.signal:
		case msg := <-l.mailbox:
			// Self messages queued in the meantime still go first.
			if !l.drainSelf(c) {
				return
			}
			l.recv.Receive(c, msg)
			if l.stopped() {
				return
			}
		}
	}
}

// drainSelf handles every queued self message. It reports false once
// the loop has been asked to stop.
func (l *loop[M]) drainSelf(c *Context[M]) bool {
	for {
		if l.stopped() {
			return false
		}
		msg, ok := l.self.pop()
		if !ok {
			return true
		}
		l.recv.Receive(c, msg)
	}
}

type selfQueue[M any] struct {
	mu     sync.Mutex
	items  []M
	closed bool
	signal chan struct{}
}

func (q *selfQueue[M]) push(msg M) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, msg)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

func (q *selfQueue[M]) pop() (M, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero M
	if len(q.items) == 0 {
		return zero, false
	}
	msg := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return msg, true
}

func (q *selfQueue[M]) close() {
	q.mu.Lock()
	q.closed = true
	q.items = nil
	q.mu.Unlock()
}
