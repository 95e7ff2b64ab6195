package call

import (
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/peercall/internal/domain"
	"github.com/pion/webrtc/v4"
)

var errFailedAfterRestart = errors.New("connection failed again after ice restart")

func (m *Manager) onConnectionState(s *Session, st webrtc.PeerConnectionState) {
	if st == s.conn {
		return
	}
	s.conn = st
	s.log.Info().Str("connection", st.String()).Str("state", s.state.String()).Msg("connection state")
	m.observer.OnStateChanged(st)

	switch st {
	case webrtc.PeerConnectionStateConnected:
		s.stopGrace()
		s.iceRestarted = false
		if s.state == StateNegotiating || s.state == StateRecovering {
			_ = s.transition(StateConnected)
		}
	case webrtc.PeerConnectionStateDisconnected:
		m.armGrace(s)
		if s.state == StateConnected || s.state == StateNegotiating {
			_ = s.transition(StateRecovering)
		}
	case webrtc.PeerConnectionStateFailed:
		m.onConnectionFailed(s)
	}
}

// onConnectionFailed allows one ICE restart per outage. The caller drives
// it; the callee waits for the re-offer so both sides never offer at once.
func (m *Manager) onConnectionFailed(s *Session) {
	if s.iceRestarted {
		m.report(newError(KindConnectivityTimeout, "ice restart", errFailedAfterRestart))
		m.end(s, true, EndConnectionFailed)
		return
	}
	s.iceRestarted = true
	m.armGrace(s)
	if s.state == StateNegotiating || s.state == StateConnected {
		_ = s.transition(StateRecovering)
	}
	if s.Role == domain.RoleCaller && s.engine != nil {
		s.log.Info().Msg("connection failed, restarting ice")
		m.createOffer(s, true)
		return
	}
	s.log.Info().Msg("connection failed, waiting for ice restart offer")
}

// armGrace starts the disconnect timer unless one is already running.
func (m *Manager) armGrace(s *Session) {
	if s.grace != nil {
		return
	}
	s.graceSeq++
	sid, seq := s.ID, s.graceSeq
	s.grace = time.AfterFunc(m.opts.DisconnectGrace, func() {
		m.post(event{kind: evGraceExpired, sid: sid, seq: seq})
	})
	s.log.Info().Dur("grace", m.opts.DisconnectGrace).Msg("grace timer armed")
}

func (m *Manager) onGraceExpired(s *Session, seq uint64) {
	if s.grace == nil || seq != s.graceSeq {
		return
	}
	s.grace = nil
	if s.conn == webrtc.PeerConnectionStateConnected {
		return
	}
	m.report(newError(KindConnectivityTimeout, "await reconnection",
		fmt.Errorf("still %s after %s", s.conn, m.opts.DisconnectGrace)))
	m.end(s, true, EndConnectivityTimeout)
}
