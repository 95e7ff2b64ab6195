package core

import (
	"github.com/pion/webrtc/v4"
)

// NegotiationEngine is the slice of a peer connection the call core drives.
// Callbacks must be registered before the first description is created.
type NegotiationEngine interface {
	// CreateOffer produces a local offer; iceRestart requests fresh ICE credentials.
	CreateOffer(iceRestart bool) (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	// AddICECandidate applies a remote ICE candidate.
	AddICECandidate(webrtc.ICECandidateInit) error
	// AddTrack attaches an outgoing track and remembers its sender by kind.
	AddTrack(webrtc.TrackLocal) error
	// ReplaceTrack swaps the outgoing track of the given kind without renegotiation.
	ReplaceTrack(kind webrtc.RTPCodecType, track webrtc.TrackLocal) error
	// Close releases the connection; only the first call has an effect.
	Close() error
	OnTrack(func(RemoteTrack))
	OnICECandidate(func(webrtc.ICECandidateInit))
	OnConnectionStateChange(func(webrtc.PeerConnectionState))
}

// EngineFactory builds one engine per call session.
type EngineFactory interface {
	NewEngine(sid string) (NegotiationEngine, error)
}

// RemoteTrack is a received track. Its lifetime is bound to the engine.
type RemoteTrack interface {
	ID() string
	StreamID() string
	Kind() webrtc.RTPCodecType
	Stats() TrackStats
}

type TrackStats struct {
	Packets      uint64 `json:"packets"`
	Bytes        uint64 `json:"bytes"`
	LastSequence uint16 `json:"last_sequence"`
}
