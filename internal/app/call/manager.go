package call

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/dkeye/peercall/internal/proto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	defaultGrace       = 5 * time.Second
	defaultStrayLimit  = 64
	defaultSendTimeout = 5 * time.Second
	eventQueueSize     = 256
)

type Options struct {
	Self     domain.UserID
	Signaler core.Signaler
	Capturer core.MediaCapturer
	Engines  core.EngineFactory
	Observer Observer

	// Constraints is the capture template; facing and track selection are set per call.
	Constraints core.Constraints

	DisconnectGrace     time.Duration
	CandidateFlushDelay time.Duration
	StrayCandidateLimit int
	SendTimeout         time.Duration
}

type prefs struct {
	muted    bool
	cameraOn bool
	facing   domain.FacingMode
}

func defaultPrefs() prefs {
	return prefs{cameraOn: true, facing: domain.FacingUser}
}

// Manager is the process-wide owner of the one call session. It is created
// at startup, runs a single loop that applies every event in order, and
// returns to idle whenever a session ends.
type Manager struct {
	opts     Options
	observer Observer
	events   chan event
	done     chan struct{}
	log      zerolog.Logger

	// closed is set once the loop has exited; posting after that discards.
	mu     sync.RWMutex
	closed bool

	// owned by the loop
	sess  *Session
	prefs prefs
	stray []strayCandidate
}

func NewManager(opts Options) *Manager {
	if opts.DisconnectGrace <= 0 {
		opts.DisconnectGrace = defaultGrace
	}
	if opts.StrayCandidateLimit <= 0 {
		opts.StrayCandidateLimit = defaultStrayLimit
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}
	obs := opts.Observer
	if obs == nil {
		obs = nopObserver{}
	}
	return &Manager{
		opts:     opts,
		observer: obs,
		events:   make(chan event, eventQueueSize),
		done:     make(chan struct{}),
		log:      log.With().Str("module", "call").Str("self", string(opts.Self)).Logger(),
		prefs:    defaultPrefs(),
	}
}

// Run processes events until ctx is cancelled, then ends any active call.
func (m *Manager) Run(ctx context.Context) error {
	m.log.Info().Msg("call manager started")
	defer m.shutdown()
	for {
		select {
		case <-ctx.Done():
			if m.sess != nil {
				m.end(m.sess, true, EndShutdown)
			}
			m.log.Info().Msg("call manager stopped")
			return nil
		case ev := <-m.events:
			m.dispatch(ev)
		}
	}
}

// shutdown stops intake and releases whatever is still queued.
func (m *Manager) shutdown() {
	close(m.done)
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	for {
		select {
		case ev := <-m.events:
			ev.discard()
			respond(ev.reply, result{err: ErrManagerClosed})
		default:
			return
		}
	}
}

// enqueue hands ev to the loop. It reports false once the loop is gone.
func (m *Manager) enqueue(ctx context.Context, ev event) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false, nil
	}
	select {
	case m.events <- ev:
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	case <-m.done:
		return false, nil
	}
}

// post queues an event from a callback or worker goroutine.
func (m *Manager) post(ev event) {
	if ok, _ := m.enqueue(context.Background(), ev); !ok {
		ev.discard()
	}
}

func (m *Manager) request(ctx context.Context, ev event) (result, error) {
	ev.reply = make(chan result, 1)
	ok, err := m.enqueue(ctx, ev)
	if err != nil {
		return result{}, err
	}
	if !ok {
		return result{}, ErrManagerClosed
	}
	select {
	case r := <-ev.reply:
		return r, r.err
	case <-ctx.Done():
		return result{}, ctx.Err()
	case <-m.done:
		return result{}, ErrManagerClosed
	}
}

// spawn runs fn off the loop and posts its result tagged with the session identity.
func (m *Manager) spawn(s *Session, kind eventKind, fn func(ctx context.Context) event) {
	sid, ctx := s.ID, s.ctx
	go func() {
		ev := fn(ctx)
		ev.kind = kind
		ev.sid = sid
		m.post(ev)
	}()
}

// StartCall calls peer. It returns once the offer has been sent.
func (m *Manager) StartCall(ctx context.Context, peer domain.UserID) error {
	_, err := m.request(ctx, event{kind: evStartCall, peer: peer})
	return err
}

// AcceptCall answers the pending incoming call. It returns once the answer has been sent.
func (m *Manager) AcceptCall(ctx context.Context) error {
	_, err := m.request(ctx, event{kind: evAcceptCall})
	return err
}

func (m *Manager) RejectCall(ctx context.Context) error {
	_, err := m.request(ctx, event{kind: evRejectCall})
	return err
}

// EndCall hangs up. It is a no-op when no call is active.
func (m *Manager) EndCall(ctx context.Context, notifyPeer bool) error {
	_, err := m.request(ctx, event{kind: evEndCall, notify: notifyPeer})
	return err
}

// ToggleMute flips the microphone gate and returns whether audio is now muted.
func (m *Manager) ToggleMute(ctx context.Context) (bool, error) {
	r, err := m.request(ctx, event{kind: evToggleMute})
	return r.flag, err
}

// ToggleCamera flips the camera gate and returns whether video is now on.
func (m *Manager) ToggleCamera(ctx context.Context) (bool, error) {
	r, err := m.request(ctx, event{kind: evToggleCamera})
	return r.flag, err
}

// SwitchCamera moves the outgoing video to the opposite-facing camera.
func (m *Manager) SwitchCamera(ctx context.Context) error {
	_, err := m.request(ctx, event{kind: evSwitchCamera})
	return err
}

func (m *Manager) Status(ctx context.Context) (Status, error) {
	r, err := m.request(ctx, event{kind: evStatus})
	return r.status, err
}

// HandleSignal feeds an inbound transport message into the loop.
func (m *Manager) HandleSignal(msg proto.Message) {
	m.post(event{kind: evSignal, msg: msg})
}
