package capture

import (
	"sync"
	"sync/atomic"

	"github.com/dkeye/peercall/internal/core"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// source is the part of a mediadevices track the gate needs.
type source interface {
	webrtc.TrackLocal
	Close() error
}

// gatedTrack drops outgoing RTP while disabled, so mute and camera-off
// need no renegotiation.
type gatedTrack struct {
	source
	enabled atomic.Bool

	mu       sync.Mutex
	contexts map[string]*gatedContext

	stopOnce sync.Once
	stopErr  error
}

var _ core.LocalTrack = (*gatedTrack)(nil)

func newGatedTrack(src source) *gatedTrack {
	g := &gatedTrack{source: src, contexts: make(map[string]*gatedContext)}
	g.enabled.Store(true)
	return g
}

func (g *gatedTrack) Enabled() bool      { return g.enabled.Load() }
func (g *gatedTrack) SetEnabled(on bool) { g.enabled.Store(on) }

func (g *gatedTrack) Bind(ctx webrtc.TrackLocalContext) (webrtc.RTPCodecParameters, error) {
	gc := &gatedContext{TrackLocalContext: ctx, gate: &g.enabled}
	g.mu.Lock()
	g.contexts[ctx.ID()] = gc
	g.mu.Unlock()

	params, err := g.source.Bind(gc)
	if err != nil {
		g.mu.Lock()
		delete(g.contexts, ctx.ID())
		g.mu.Unlock()
	}
	return params, err
}

func (g *gatedTrack) Unbind(ctx webrtc.TrackLocalContext) error {
	g.mu.Lock()
	gc, ok := g.contexts[ctx.ID()]
	delete(g.contexts, ctx.ID())
	g.mu.Unlock()
	if !ok {
		return g.source.Unbind(ctx)
	}
	return g.source.Unbind(gc)
}

func (g *gatedTrack) Stop() error {
	g.stopOnce.Do(func() {
		g.stopErr = g.source.Close()
	})
	return g.stopErr
}

type gatedContext struct {
	webrtc.TrackLocalContext
	gate *atomic.Bool
}

func (c *gatedContext) WriteStream() webrtc.TrackLocalWriter {
	return &gatedWriter{w: c.TrackLocalContext.WriteStream(), gate: c.gate}
}

type gatedWriter struct {
	w    webrtc.TrackLocalWriter
	gate *atomic.Bool
}

func (w *gatedWriter) WriteRTP(header *rtp.Header, payload []byte) (int, error) {
	if !w.gate.Load() {
		return len(payload), nil
	}
	return w.w.WriteRTP(header, payload)
}

func (w *gatedWriter) Write(b []byte) (int, error) {
	if !w.gate.Load() {
		return len(b), nil
	}
	return w.w.Write(b)
}
