package rtc

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dkeye/peercall/internal/core"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

const pliInterval = 3 * time.Second

// remoteTrack consumes a received track and keeps counters for status reports.
type remoteTrack struct {
	id       string
	streamID string
	kind     webrtc.RTPCodecType
	read     func() (*rtp.Packet, error)

	packets atomic.Uint64
	bytes   atomic.Uint64
	lastSeq atomic.Uint32
}

var _ core.RemoteTrack = (*remoteTrack)(nil)

func newRemoteTrack(t *webrtc.TrackRemote) *remoteTrack {
	return &remoteTrack{
		id:       t.ID(),
		streamID: t.StreamID(),
		kind:     t.Kind(),
		read: func() (*rtp.Packet, error) {
			pkt, _, err := t.ReadRTP()
			return pkt, err
		},
	}
}

func (r *remoteTrack) ID() string                { return r.id }
func (r *remoteTrack) StreamID() string          { return r.streamID }
func (r *remoteTrack) Kind() webrtc.RTPCodecType { return r.kind }

func (r *remoteTrack) Stats() core.TrackStats {
	return core.TrackStats{
		Packets:      r.packets.Load(),
		Bytes:        r.bytes.Load(),
		LastSequence: uint16(r.lastSeq.Load()),
	}
}

// loop reads RTP packets until the track or ctx ends.
func (r *remoteTrack) loop(ctx context.Context, logger *zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("remote track ctx done")
			return
		default:
		}
		pkt, err := r.read()
		if err != nil {
			logger.Info().Err(err).Uint64("packets", r.packets.Load()).Msg("remote track read stopped")
			return
		}
		r.record(pkt)
	}
}

func (r *remoteTrack) record(pkt *rtp.Packet) {
	r.packets.Add(1)
	r.bytes.Add(uint64(len(pkt.Payload)))
	r.lastSeq.Store(uint32(pkt.SequenceNumber))
}

// requestKeyframes asks the sender for a keyframe right away and then
// periodically, so a late or lossy start recovers quickly.
func (c *Connection) requestKeyframes(ctx context.Context, track *webrtc.TrackRemote) {
	send := func() {
		if err := c.pc.WriteRTCP([]rtcp.Packet{
			&rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())},
		}); err != nil {
			c.log.Debug().Err(err).Msg("PLI write")
		}
	}
	send()

	ticker := time.NewTicker(pliInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			send()
		}
	}
}
