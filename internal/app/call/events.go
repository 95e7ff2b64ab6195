package call

import (
	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/dkeye/peercall/internal/proto"
	"github.com/pion/webrtc/v4"
)

// eventKind enumerates everything the loop reacts to.
type eventKind int

const (
	// user actions
	evStartCall eventKind = iota
	evAcceptCall
	evRejectCall
	evEndCall
	evToggleMute
	evToggleCamera
	evSwitchCamera
	evStatus

	// transport
	evSignal

	// completions of off-loop work
	evMediaAcquired
	evLocalDescription
	evRemoteApplied
	evCameraAcquired

	// engine callbacks
	evLocalCandidate
	evConnectionState
	evRemoteTrack

	// timers
	evGraceExpired
	evFlushCandidates
)

func (k eventKind) String() string {
	switch k {
	case evStartCall:
		return "start_call"
	case evAcceptCall:
		return "accept_call"
	case evRejectCall:
		return "reject_call"
	case evEndCall:
		return "end_call"
	case evToggleMute:
		return "toggle_mute"
	case evToggleCamera:
		return "toggle_camera"
	case evSwitchCamera:
		return "switch_camera"
	case evStatus:
		return "status"
	case evSignal:
		return "signal"
	case evMediaAcquired:
		return "media_acquired"
	case evLocalDescription:
		return "local_description"
	case evRemoteApplied:
		return "remote_applied"
	case evCameraAcquired:
		return "camera_acquired"
	case evLocalCandidate:
		return "local_candidate"
	case evConnectionState:
		return "connection_state"
	case evRemoteTrack:
		return "remote_track"
	case evGraceExpired:
		return "grace_expired"
	case evFlushCandidates:
		return "flush_candidates"
	default:
		return "unknown"
	}
}

// sessionScoped events carry the identity of the session they were issued for.
func (k eventKind) sessionScoped() bool {
	return k >= evMediaAcquired
}

type event struct {
	kind eventKind
	sid  string
	seq  uint64

	peer   domain.UserID
	notify bool
	msg    proto.Message

	media  *core.LocalMedia
	track  core.LocalTrack
	facing domain.FacingMode
	remote core.RemoteTrack
	desc   *webrtc.SessionDescription
	cand   webrtc.ICECandidateInit
	state  webrtc.PeerConnectionState
	answer bool
	err    error

	// hadRemote is set on a failed remote apply that replaced an earlier description.
	hadRemote bool

	reply chan result
}

type result struct {
	err    error
	flag   bool
	status Status
}

// discard releases capture resources carried by an event nobody will consume.
func (ev event) discard() {
	if ev.media != nil {
		_ = ev.media.Stop()
	}
	if ev.track != nil {
		_ = ev.track.Stop()
	}
}

func respond(ch chan result, r result) {
	if ch != nil {
		ch <- r
	}
}
