package call

import (
	"time"

	"github.com/dkeye/peercall/internal/domain"
	"github.com/dkeye/peercall/internal/proto"
	"github.com/pion/webrtc/v4"
)

// strayCandidate arrived while idle, possibly ahead of its offer.
type strayCandidate struct {
	from domain.UserID
	cand webrtc.ICECandidateInit
}

func (m *Manager) onRemoteCandidate(from domain.UserID, c webrtc.ICECandidateInit) {
	s := m.sess
	if s == nil {
		m.stash(from, c)
		return
	}
	if !fromPeer(s, from) {
		s.log.Warn().Str("from", string(from)).Msg("candidate from another peer dropped")
		return
	}
	if s.state == StateAwaitingDecision {
		s.received = append(s.received, c)
	}
	if s.remoteApplied && len(s.pending) == 0 && !s.flushScheduled && s.engine != nil {
		m.addCandidate(s, c)
		return
	}
	s.pending = append(s.pending, c)
	s.log.Debug().Int("pending", len(s.pending)).Msg("candidate buffered")
}

func (m *Manager) addCandidate(s *Session, c webrtc.ICECandidateInit) {
	if err := s.engine.AddICECandidate(c); err != nil {
		s.log.Warn().Err(err).Str("candidate", c.Candidate).Msg("add ice candidate")
	}
}

// scheduleFlush applies buffered candidates now, or after the configured delay.
func (m *Manager) scheduleFlush(s *Session) {
	if len(s.pending) == 0 {
		return
	}
	delay := m.opts.CandidateFlushDelay
	if delay <= 0 {
		m.flushPending(s)
		return
	}
	s.flushScheduled = true
	sid := s.ID
	s.flushTimer = time.AfterFunc(delay, func() {
		m.post(event{kind: evFlushCandidates, sid: sid})
	})
}

func (m *Manager) onFlushTimer(s *Session) {
	s.flushScheduled = false
	s.flushTimer = nil
	m.flushPending(s)
}

// flushPending applies the buffer in arrival order, each candidate once.
func (m *Manager) flushPending(s *Session) {
	if s.engine == nil {
		return
	}
	pending := s.pending
	s.pending = nil
	for _, c := range pending {
		m.addCandidate(s, c)
	}
	s.log.Info().Int("count", len(pending)).Msg("buffered candidates flushed")
}

func (m *Manager) stash(from domain.UserID, c webrtc.ICECandidateInit) {
	m.stray = append(m.stray, strayCandidate{from: from, cand: c})
	if over := len(m.stray) - m.opts.StrayCandidateLimit; over > 0 {
		m.stray = m.stray[over:]
	}
	m.log.Debug().Str("from", string(from)).Int("stray", len(m.stray)).Msg("candidate before offer stashed")
}

// adoptStray hands over the stashed candidates of from and forgets the rest.
func (m *Manager) adoptStray(from domain.UserID) []webrtc.ICECandidateInit {
	var out []webrtc.ICECandidateInit
	for _, sc := range m.stray {
		if sc.from == from || sc.from == "" {
			out = append(out, sc.cand)
		}
	}
	m.stray = nil
	return out
}

// onLocalCandidate holds candidates until the description they belong to is out.
func (m *Manager) onLocalCandidate(s *Session, c webrtc.ICECandidateInit) {
	if !s.localSent {
		s.outbox = append(s.outbox, c)
		return
	}
	m.sendCandidate(s, c)
}

func (m *Manager) flushOutbox(s *Session) {
	out := s.outbox
	s.outbox = nil
	for _, c := range out {
		m.sendCandidate(s, c)
	}
}

func (m *Manager) sendCandidate(s *Session, c webrtc.ICECandidateInit) {
	_ = m.send(proto.Message{
		Event: proto.EventICECandidate,
		Data:  proto.Payload{To: s.Peer, Candidate: &c},
	})
}
