package call

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/dkeye/peercall/internal/proto"
	"github.com/dkeye/peercall/internal/sdpshape"
	"github.com/pion/webrtc/v4"
)

var errAcceptPending = errors.New("accept already in progress")

func (m *Manager) startCall(ev event) {
	if s := m.sess; s != nil {
		respond(ev.reply, result{err: newError(KindAlreadyInCall, "start call",
			fmt.Errorf("session %s is %s", s.ID, s.state))})
		return
	}
	if ev.peer == "" || ev.peer == m.opts.Self {
		respond(ev.reply, result{err: ErrInvalidPeer})
		return
	}

	s := newSession(domain.RoleCaller, ev.peer)
	_ = s.transition(StateInitiating)
	s.setupReply = ev.reply
	m.sess = s
	m.stray = nil
	m.acquireMedia(s)
}

func (m *Manager) acceptCall(ev event) {
	s := m.sess
	if s == nil || s.state != StateAwaitingDecision {
		respond(ev.reply, result{err: newError(KindInvalidState, "accept call", ErrNoIncomingCall)})
		return
	}
	if s.accepting {
		respond(ev.reply, result{err: newError(KindInvalidState, "accept call", errAcceptPending)})
		return
	}
	s.accepting = true
	s.setupReply = ev.reply
	m.acquireMedia(s)
}

func (m *Manager) rejectCall(ev event) {
	s := m.sess
	if s == nil || s.state != StateAwaitingDecision {
		respond(ev.reply, result{err: newError(KindInvalidState, "reject call", ErrNoIncomingCall)})
		return
	}
	_ = m.send(proto.Message{Event: proto.EventCallRejected, Data: proto.Payload{To: s.Peer}})
	m.finish(s, EndDeclined)
	respond(ev.reply, result{})
}

// end closes s, optionally telling the peer first.
func (m *Manager) end(s *Session, notifyPeer bool, reason EndReason) {
	if notifyPeer {
		_ = m.send(proto.Message{Event: proto.EventCallEnded, Data: proto.Payload{To: s.Peer}})
	}
	m.finish(s, reason)
}

// finish releases every resource of s and returns the manager to idle.
func (m *Manager) finish(s *Session, reason EndReason) {
	s.release()
	if s.state != StateEnded {
		if err := s.transition(StateEnded); err != nil {
			s.log.Warn().Err(err).Msg("forcing end")
			s.state = StateEnded
		}
	}
	respond(s.setupReply, result{err: ErrCallEnded})
	respond(s.switchReply, result{err: ErrCallEnded})
	s.setupReply, s.switchReply = nil, nil

	m.sess = nil
	m.stray = nil
	m.prefs = defaultPrefs()
	s.log.Info().Str("reason", reason.String()).Msg("call ended")
	m.observer.OnEnded(reason)
}

func (m *Manager) setupFailed(s *Session, e *Error) {
	m.report(e)
	m.abortSetup(s, e)
}

// abortSetup returns an outgoing call to idle, or an accept to the pending
// decision with the caller's offer and candidates intact.
func (m *Manager) abortSetup(s *Session, e *Error) {
	reply := s.setupReply
	s.setupReply = nil

	if s.Role == domain.RoleCallee && s.offer != nil {
		ns := newSession(domain.RoleCallee, s.Peer)
		_ = ns.transition(StateAwaitingDecision)
		ns.offer = s.offer
		ns.pending = append(ns.pending, s.received...)
		ns.received = append(ns.received, s.received...)
		s.release()
		m.sess = ns
		ns.log.Info().Str("replaces", s.ID).Msg("accept failed, call still pending")
	} else {
		s.release()
		_ = s.transition(StateIdle)
		m.sess = nil
	}
	respond(reply, result{err: e})
}

func (m *Manager) acquireMedia(s *Session) {
	c := m.opts.Constraints
	c.Audio, c.Video = true, true
	c.Facing = m.prefs.facing
	capturer := m.opts.Capturer
	m.spawn(s, evMediaAcquired, func(ctx context.Context) event {
		media, err := capturer.Acquire(ctx, c)
		return event{media: media, err: err}
	})
}

func (m *Manager) onMediaAcquired(s *Session, ev event) {
	if ev.err != nil {
		m.setupFailed(s, newError(KindMediaAcquisition, "acquire media", ev.err))
		return
	}
	s.local = ev.media
	m.applyGates(s)

	engine, err := m.opts.Engines.NewEngine(s.ID)
	if err != nil {
		m.setupFailed(s, newError(KindNegotiation, "create engine", err))
		return
	}
	s.engine = engine
	m.bindEngine(s)
	for _, t := range s.local.Tracks() {
		if err := engine.AddTrack(t); err != nil {
			m.setupFailed(s, newError(KindNegotiation, "add track", err))
			return
		}
	}
	s.log.Info().Int("tracks", len(s.local.Tracks())).Msg("local media attached")

	if s.Role == domain.RoleCaller {
		m.createOffer(s, false)
		return
	}
	m.applyRemote(s, *s.offer, true)
}

// bindEngine routes engine callbacks into the loop as session-scoped events.
func (m *Manager) bindEngine(s *Session) {
	sid := s.ID
	s.engine.OnICECandidate(func(c webrtc.ICECandidateInit) {
		m.post(event{kind: evLocalCandidate, sid: sid, cand: c})
	})
	s.engine.OnConnectionStateChange(func(st webrtc.PeerConnectionState) {
		m.post(event{kind: evConnectionState, sid: sid, state: st})
	})
	s.engine.OnTrack(func(t core.RemoteTrack) {
		m.post(event{kind: evRemoteTrack, sid: sid, remote: t})
	})
}

func (m *Manager) createOffer(s *Session, iceRestart bool) {
	engine := s.engine
	s.localSent = false
	m.spawn(s, evLocalDescription, func(context.Context) event {
		offer, err := engine.CreateOffer(iceRestart)
		if err != nil {
			return event{err: err}
		}
		if offer.SDP, err = sdpshape.Shape(offer.SDP); err != nil {
			return event{err: err}
		}
		if err := engine.SetLocalDescription(offer); err != nil {
			return event{err: err}
		}
		return event{desc: &offer}
	})
}

func (m *Manager) createAnswer(s *Session) {
	engine := s.engine
	s.localSent = false
	m.spawn(s, evLocalDescription, func(context.Context) event {
		answer, err := engine.CreateAnswer()
		if err != nil {
			return event{err: err}
		}
		if answer.SDP, err = sdpshape.Shape(answer.SDP); err != nil {
			return event{err: err}
		}
		if err := engine.SetLocalDescription(answer); err != nil {
			return event{err: err}
		}
		return event{desc: &answer}
	})
}

// applyRemote shapes and applies desc; answerNext asks for an answer afterwards.
// Remote candidates are buffered until it completes, so candidates of a
// restarted ICE generation never reach the engine ahead of their description.
func (m *Manager) applyRemote(s *Session, desc webrtc.SessionDescription, answerNext bool) {
	engine := s.engine
	hadRemote := s.remoteApplied
	s.remoteApplied = false
	m.spawn(s, evRemoteApplied, func(context.Context) event {
		shaped, err := sdpshape.Shape(desc.SDP)
		if err != nil {
			return event{err: err, answer: answerNext, hadRemote: hadRemote}
		}
		desc.SDP = shaped
		if err := engine.SetRemoteDescription(desc); err != nil {
			return event{err: err, answer: answerNext, hadRemote: hadRemote}
		}
		return event{answer: answerNext}
	})
}

func (m *Manager) onRemoteApplied(s *Session, ev event) {
	if ev.err != nil {
		e := newError(KindNegotiation, "apply remote description", ev.err)
		if s.inSetup() {
			m.setupFailed(s, e)
			return
		}
		// the call stays up; connectivity timeout is the escalation path
		m.report(e)
		// the previous remote description, if any, is still in force
		s.remoteApplied = ev.hadRemote
		if s.remoteApplied {
			m.scheduleFlush(s)
		}
		return
	}
	s.remoteApplied = true
	s.log.Info().Bool("answer_next", ev.answer).Int("pending", len(s.pending)).Msg("remote description applied")
	m.scheduleFlush(s)
	if ev.answer {
		m.createAnswer(s)
	}
}

func (m *Manager) onLocalDescription(s *Session, ev event) {
	if ev.err != nil {
		e := newError(KindNegotiation, "create local description", ev.err)
		if s.inSetup() {
			m.setupFailed(s, e)
			return
		}
		m.report(e)
		if s.state == StateRecovering && s.Role == domain.RoleCaller {
			m.end(s, true, EndConnectionFailed)
		}
		return
	}

	msg := proto.Message{Data: proto.Payload{To: s.Peer}}
	if ev.desc.Type == webrtc.SDPTypeOffer {
		msg.Event = proto.EventVideoOffer
		msg.Data.Offer = ev.desc
		s.awaitingAnswer = true
	} else {
		msg.Event = proto.EventVideoAnswer
		msg.Data.Answer = ev.desc
	}
	if err := m.send(msg); err != nil && s.inSetup() {
		var e *Error
		if !errors.As(err, &e) {
			e = newError(KindTransportDelivery, "send "+string(msg.Event), err)
		}
		m.abortSetup(s, e)
		return
	}
	s.localSent = true
	m.flushOutbox(s)

	if !s.inSetup() {
		return
	}
	s.accepting = false
	s.offer = nil
	s.received = nil
	_ = s.transition(StateNegotiating)
	if s.conn == webrtc.PeerConnectionStateConnected {
		_ = s.transition(StateConnected)
	}
	respond(s.setupReply, result{})
	s.setupReply = nil
}
