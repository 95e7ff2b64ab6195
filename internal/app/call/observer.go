package call

import (
	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/pion/webrtc/v4"
)

// Observer receives high-level session events for display.
// Methods run on the manager's loop and must not block.
type Observer interface {
	OnIncomingCall(peer domain.UserID)
	OnStateChanged(state webrtc.PeerConnectionState)
	OnError(kind ErrorKind, detail string)
	OnEnded(reason EndReason)
}

type nopObserver struct{}

func (nopObserver) OnIncomingCall(domain.UserID)              {}
func (nopObserver) OnStateChanged(webrtc.PeerConnectionState) {}
func (nopObserver) OnError(ErrorKind, string)                 {}
func (nopObserver) OnEnded(EndReason)                         {}

// TrackInfo describes one received track.
type TrackInfo struct {
	ID    string          `json:"id"`
	Kind  string          `json:"kind"`
	Stats core.TrackStats `json:"stats"`
}

// Status is a point-in-time snapshot of the manager.
type Status struct {
	State        string        `json:"state"`
	SessionID    string        `json:"session_id,omitempty"`
	Role         string        `json:"role"`
	Peer         domain.UserID `json:"peer,omitempty"`
	Connection   string        `json:"connection"`
	Muted        bool          `json:"muted"`
	CameraOn     bool          `json:"camera_on"`
	Facing       string        `json:"facing"`
	RemoteTracks []TrackInfo   `json:"remote_tracks,omitempty"`
}
