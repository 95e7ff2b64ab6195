package rtc

import (
	"context"
	"errors"
	"sync"

	"github.com/dkeye/peercall/internal/core"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

var ErrNoSender = errors.New("no sender for track kind")

// Connection adapts a pion peer connection to core.NegotiationEngine.
type Connection struct {
	pc     *webrtc.PeerConnection
	sid    string
	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup

	mu      sync.Mutex
	senders map[webrtc.RTPCodecType]*webrtc.RTPSender
	onICE   func(webrtc.ICECandidateInit)
	onState func(webrtc.PeerConnectionState)
	onTrack func(core.RemoteTrack)

	closeOnce sync.Once
	closeErr  error
}

var _ core.NegotiationEngine = (*Connection)(nil)

func newConnection(pc *webrtc.PeerConnection, sid string) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		pc:      pc,
		sid:     sid,
		log:     log.With().Str("module", "webrtc").Str("sid", sid).Logger(),
		ctx:     ctx,
		cancel:  cancel,
		senders: make(map[webrtc.RTPCodecType]*webrtc.RTPSender),
	}
	c.start()
	return c
}

func (c *Connection) start() {
	c.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		c.log.Info().Str("ice_state", s.String()).Msg("ICE state")
	})

	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		c.log.Info().Str("peer_connection_state", s.String()).Msg("Peer state")
		c.mu.Lock()
		fn := c.onState
		c.mu.Unlock()
		if fn != nil {
			fn(s)
		}
	})

	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			c.log.Debug().Msg("ICE gathering complete")
			return
		}
		c.mu.Lock()
		fn := c.onICE
		c.mu.Unlock()
		if fn != nil {
			fn(cand.ToJSON())
		}
	})

	c.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		c.log.Info().
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Str("codec", track.Codec().MimeType).
			Msg("OnTrack received")

		rt := newRemoteTrack(track)
		logger := c.log.With().Str("track_id", track.ID()).Logger()
		c.wg.Go(func() { rt.loop(c.ctx, &logger) })
		if track.Kind() == webrtc.RTPCodecTypeVideo {
			c.wg.Go(func() { c.requestKeyframes(c.ctx, track) })
		}

		c.mu.Lock()
		fn := c.onTrack
		c.mu.Unlock()
		if fn != nil {
			fn(rt)
		}
	})
}

func (c *Connection) CreateOffer(iceRestart bool) (webrtc.SessionDescription, error) {
	return c.pc.CreateOffer(&webrtc.OfferOptions{ICERestart: iceRestart})
}

func (c *Connection) CreateAnswer() (webrtc.SessionDescription, error) {
	return c.pc.CreateAnswer(nil)
}

func (c *Connection) SetLocalDescription(d webrtc.SessionDescription) error {
	return c.pc.SetLocalDescription(d)
}

func (c *Connection) SetRemoteDescription(d webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(d)
}

func (c *Connection) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(ci)
}

// AddTrack attaches a local track and drains RTCP from its sender so
// interceptors keep running.
func (c *Connection) AddTrack(t webrtc.TrackLocal) error {
	sender, err := c.pc.AddTrack(t)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.senders[t.Kind()] = sender
	c.mu.Unlock()

	c.wg.Go(func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	})
	c.log.Info().Str("kind", t.Kind().String()).Str("track_id", t.ID()).Msg("local track added")
	return nil
}

func (c *Connection) ReplaceTrack(kind webrtc.RTPCodecType, t webrtc.TrackLocal) error {
	c.mu.Lock()
	sender := c.senders[kind]
	c.mu.Unlock()
	if sender == nil {
		return ErrNoSender
	}
	if err := sender.ReplaceTrack(t); err != nil {
		return err
	}
	c.log.Info().Str("kind", kind.String()).Str("track_id", t.ID()).Msg("local track replaced")
	return nil
}

func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.closeErr = c.pc.Close()
		c.wg.Wait()
		if c.closeErr != nil {
			c.log.Error().Err(c.closeErr).Msg("close error")
		} else {
			c.log.Info().Msg("closed")
		}
	})
	return c.closeErr
}

func (c *Connection) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onICE = fn
}

func (c *Connection) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = fn
}

// OnTrack sets application-level callback for remote tracks.
func (c *Connection) OnTrack(fn func(core.RemoteTrack)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTrack = fn
}
