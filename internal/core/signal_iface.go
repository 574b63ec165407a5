package core

import "github.com/dkeye/Hexo/internal/domain"

// Frame is one encoded binary message.
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
	// Cancelled reports whether the connection was superseded or closed.
	Cancelled() bool
}

type InboundKind int

const (
	InboundRequest InboundKind = iota
	InboundLost
)

// Inbound is what a receive loop hands to the kernel.
// Conn identifies which connection produced it so stale losses can be ignored.
type Inbound struct {
	Kind    InboundKind
	User    domain.UserID
	Conn    SignalConnection
	Request domain.Request
}
