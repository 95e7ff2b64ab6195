package http

import (
	"context"

	"github.com/dkeye/peercall/internal/app/call"
	"github.com/dkeye/peercall/internal/domain"
)

// Controller is the call surface the HTTP API drives. *call.Manager implements it.
type Controller interface {
	StartCall(ctx context.Context, peer domain.UserID) error
	AcceptCall(ctx context.Context) error
	RejectCall(ctx context.Context) error
	EndCall(ctx context.Context, notifyPeer bool) error
	ToggleMute(ctx context.Context) (bool, error)
	ToggleCamera(ctx context.Context) (bool, error)
	SwitchCamera(ctx context.Context) error
	Status(ctx context.Context) (call.Status, error)
}

var _ Controller = (*call.Manager)(nil)
