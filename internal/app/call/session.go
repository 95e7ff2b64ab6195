package call

import (
	"context"
	"time"

	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Session is the single active or pending call. It is owned by the
// manager's loop goroutine and never touched from anywhere else.
type Session struct {
	ID   string
	Role domain.Role
	Peer domain.UserID

	state State
	conn  webrtc.PeerConnectionState

	ctx    context.Context
	cancel context.CancelFunc

	// offer is the CallerInfo held while AwaitingDecision.
	offer     *webrtc.SessionDescription
	accepting bool

	local  *core.LocalMedia
	engine core.NegotiationEngine
	remote []core.RemoteTrack

	remoteApplied  bool
	pending        []webrtc.ICECandidateInit
	received       []webrtc.ICECandidateInit
	flushScheduled bool
	flushTimer     *time.Timer

	localSent      bool
	outbox         []webrtc.ICECandidateInit
	awaitingAnswer bool

	iceRestarted bool
	grace        *time.Timer
	graceSeq     uint64

	switching   bool
	setupReply  chan result
	switchReply chan result

	log zerolog.Logger
}

func newSession(role domain.Role, peer domain.UserID) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	return &Session{
		ID:     id,
		Role:   role,
		Peer:   peer,
		state:  StateIdle,
		conn:   webrtc.PeerConnectionStateNew,
		ctx:    ctx,
		cancel: cancel,
		log: log.With().
			Str("module", "call").
			Str("sid", id).
			Str("peer", string(peer)).
			Str("role", role.String()).
			Logger(),
	}
}

func (s *Session) State() State { return s.state }

func (s *Session) transition(to State) error {
	if !s.state.CanTransitionTo(to) {
		return &TransitionError{SID: s.ID, From: s.state, To: to}
	}
	s.log.Info().Str("from", s.state.String()).Str("to", to.String()).Msg("state transition")
	s.state = to
	return nil
}

// inSetup reports whether the session has not yet sent its first description.
func (s *Session) inSetup() bool {
	return s.state == StateInitiating || (s.state == StateAwaitingDecision && s.accepting)
}

func (s *Session) stopGrace() {
	if s.grace != nil {
		s.grace.Stop()
		s.grace = nil
	}
}

// dropMedia closes the engine and stops capture. Each happens at most once.
func (s *Session) dropMedia() {
	if s.engine != nil {
		if err := s.engine.Close(); err != nil {
			s.log.Warn().Err(err).Msg("engine close")
		}
		s.engine = nil
	}
	if s.local != nil {
		if err := s.local.Stop(); err != nil {
			s.log.Warn().Err(err).Msg("local media stop")
		}
		s.local = nil
	}
	s.remote = nil
}

// release tears down everything the session owns.
func (s *Session) release() {
	s.cancel()
	s.stopGrace()
	if s.flushTimer != nil {
		s.flushTimer.Stop()
		s.flushTimer = nil
	}
	s.dropMedia()
	s.pending = nil
	s.received = nil
	s.outbox = nil
	s.offer = nil
	s.remoteApplied = false
	s.flushScheduled = false
}
