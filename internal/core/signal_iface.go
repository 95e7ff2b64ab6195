package core

import (
	"context"

	"github.com/dkeye/peercall/internal/proto"
)

// Frame is a raw encoded payload.
type Frame []byte

// SignalConnection abstracts one websocket endpoint.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// Signaler delivers call events to a peer. Delivery is best-effort.
type Signaler interface {
	Send(ctx context.Context, msg proto.Message) error
}
