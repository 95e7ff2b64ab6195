package call

import (
	"context"

	"github.com/dkeye/peercall/internal/proto"
)

// dispatch is the single transition function. Completions and callbacks
// issued for a session that is no longer current are dropped here.
func (m *Manager) dispatch(ev event) {
	if ev.kind.sessionScoped() {
		if m.sess == nil || m.sess.ID != ev.sid {
			m.log.Debug().Str("event", ev.kind.String()).Str("sid", ev.sid).Msg("stale event dropped")
			ev.discard()
			return
		}
	}

	switch ev.kind {
	case evStartCall:
		m.startCall(ev)
	case evAcceptCall:
		m.acceptCall(ev)
	case evRejectCall:
		m.rejectCall(ev)
	case evEndCall:
		if m.sess != nil {
			m.end(m.sess, ev.notify, EndLocalHangup)
		}
		respond(ev.reply, result{})
	case evToggleMute:
		m.toggleMute(ev)
	case evToggleCamera:
		m.toggleCamera(ev)
	case evSwitchCamera:
		m.switchCamera(ev)
	case evStatus:
		respond(ev.reply, result{status: m.status()})
	case evSignal:
		m.onSignal(ev.msg)
	case evMediaAcquired:
		m.onMediaAcquired(m.sess, ev)
	case evLocalDescription:
		m.onLocalDescription(m.sess, ev)
	case evRemoteApplied:
		m.onRemoteApplied(m.sess, ev)
	case evCameraAcquired:
		m.onCameraAcquired(m.sess, ev)
	case evLocalCandidate:
		m.onLocalCandidate(m.sess, ev.cand)
	case evConnectionState:
		m.onConnectionState(m.sess, ev.state)
	case evRemoteTrack:
		m.onRemoteTrack(m.sess, ev)
	case evGraceExpired:
		m.onGraceExpired(m.sess, ev.seq)
	case evFlushCandidates:
		m.onFlushTimer(m.sess)
	default:
		m.log.Warn().Int("kind", int(ev.kind)).Msg("unknown event")
	}
}

// send delivers msg best-effort. Failures are surfaced, never retried.
func (m *Manager) send(msg proto.Message) error {
	if msg.Data.From == "" {
		msg.Data.From = m.opts.Self
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.SendTimeout)
	defer cancel()

	if err := m.opts.Signaler.Send(ctx, msg); err != nil {
		e := newError(KindTransportDelivery, "send "+string(msg.Event), err)
		m.report(e)
		return e
	}
	m.log.Debug().Str("event", string(msg.Event)).Str("to", string(msg.Data.To)).Msg("signal sent")
	return nil
}

func (m *Manager) report(e *Error) {
	m.log.Warn().Err(e.Err).Str("kind", e.Kind.String()).Str("op", e.Op).Msg("call error")
	m.observer.OnError(e.Kind, e.Error())
}

func (m *Manager) status() Status {
	st := Status{
		State:      StateIdle.String(),
		Role:       "none",
		Connection: "new",
		Muted:      m.prefs.muted,
		CameraOn:   m.prefs.cameraOn,
		Facing:     string(m.prefs.facing),
	}
	s := m.sess
	if s == nil {
		return st
	}
	st.State = s.state.String()
	st.SessionID = s.ID
	st.Role = s.Role.String()
	st.Peer = s.Peer
	st.Connection = s.conn.String()
	for _, t := range s.remote {
		st.RemoteTracks = append(st.RemoteTracks, TrackInfo{
			ID:    t.ID(),
			Kind:  t.Kind().String(),
			Stats: t.Stats(),
		})
	}
	return st
}
