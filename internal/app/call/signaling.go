package call

import (
	"fmt"

	"github.com/dkeye/peercall/internal/domain"
	"github.com/dkeye/peercall/internal/proto"
	"github.com/pion/webrtc/v4"
)

func (m *Manager) onSignal(msg proto.Message) {
	from := msg.Data.From
	switch msg.Event {
	case proto.EventVideoOffer:
		m.onIncomingOffer(from, msg.Data.Offer)
	case proto.EventVideoAnswer:
		m.onRemoteAnswer(from, msg.Data.Answer)
	case proto.EventICECandidate:
		if msg.Data.Candidate == nil {
			m.log.Warn().Str("from", string(from)).Msg("ice-candidate without candidate")
			return
		}
		m.onRemoteCandidate(from, *msg.Data.Candidate)
	case proto.EventCallRejected:
		m.onRemoteClosed(from, EndRemoteRejected)
	case proto.EventCallBusy:
		m.onRemoteClosed(from, EndRemoteBusy)
	case proto.EventCallEnded:
		m.onRemoteClosed(from, EndRemoteHangup)
	case proto.EventDeliveryFailed:
		m.onDeliveryFailed(msg.Data)
	case proto.EventPing, proto.EventPong:
	default:
		m.log.Warn().Str("event", string(msg.Event)).Msg("unknown signal")
	}
}

// fromPeer reports whether a message sent by from belongs to s.
// Relays that do not stamp senders are trusted.
func fromPeer(s *Session, from domain.UserID) bool {
	return from == "" || from == s.Peer
}

func (m *Manager) onIncomingOffer(from domain.UserID, offer *webrtc.SessionDescription) {
	if offer == nil || from == "" {
		m.log.Warn().Str("from", string(from)).Msg("offer without sender or description dropped")
		return
	}
	s := m.sess
	switch {
	case s == nil:
		m.newIncoming(from, offer)
	case s.state == StateAwaitingDecision && !s.accepting:
		s.log.Info().Str("new_peer", string(from)).Msg("pending call superseded")
		m.sess = nil
		s.release()
		m.newIncoming(from, offer)
	case s.state.Active() && from == s.Peer && s.engine != nil:
		s.log.Info().Msg("re-offer from peer")
		m.applyRemote(s, *offer, true)
	default:
		m.log.Info().Str("from", string(from)).Str("state", s.state.String()).Msg("busy, refusing offer")
		_ = m.send(proto.Message{Event: proto.EventCallBusy, Data: proto.Payload{To: from}})
		m.observer.OnError(KindBusy, fmt.Sprintf("refused call from %s while %s", from, s.state))
	}
}

func (m *Manager) newIncoming(from domain.UserID, offer *webrtc.SessionDescription) {
	s := newSession(domain.RoleCallee, from)
	_ = s.transition(StateAwaitingDecision)
	s.offer = offer
	s.pending = m.adoptStray(from)
	s.received = append(s.received, s.pending...)
	m.sess = s
	m.observer.OnIncomingCall(from)
}

func (m *Manager) onRemoteAnswer(from domain.UserID, answer *webrtc.SessionDescription) {
	s := m.sess
	if answer == nil || s == nil || !fromPeer(s, from) ||
		s.Role != domain.RoleCaller || !s.awaitingAnswer || s.engine == nil {
		m.log.Warn().Str("from", string(from)).Msg("unexpected answer dropped")
		return
	}
	s.awaitingAnswer = false
	m.applyRemote(s, *answer, false)
}

func (m *Manager) onRemoteClosed(from domain.UserID, reason EndReason) {
	s := m.sess
	if s == nil || !fromPeer(s, from) {
		m.log.Debug().Str("from", string(from)).Str("reason", reason.String()).Msg("close for no session ignored")
		return
	}
	m.end(s, false, reason)
}

func (m *Manager) onDeliveryFailed(p proto.Payload) {
	m.observer.OnError(KindTransportDelivery,
		fmt.Sprintf("%s to %s not delivered: %s", p.FailedEvent, p.To, p.Reason))
	s := m.sess
	if s != nil && s.Peer == p.To && s.Role == domain.RoleCaller &&
		p.FailedEvent == proto.EventVideoOffer && !s.remoteApplied {
		m.end(s, false, EndPeerUnavailable)
	}
}
