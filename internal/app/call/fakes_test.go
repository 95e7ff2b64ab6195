package call

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/dkeye/peercall/internal/proto"
	"github.com/pion/webrtc/v4"
)

const testSDP = "v=0\r\n" +
	"o=- 1 1 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"m=audio 9 UDP/TLS/RTP/SAVPF 111\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=extmap:1 urn:ietf:params:rtp-hdrext:ssrc-audio-level\r\n" +
	"a=rtpmap:111 opus/48000/2\r\n" +
	"m=video 9 UDP/TLS/RTP/SAVPF 96\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=rtpmap:96 VP8/90000\r\n"

func description(t webrtc.SDPType) *webrtc.SessionDescription {
	return &webrtc.SessionDescription{Type: t, SDP: testSDP}
}

func candidate(n string) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{Candidate: "candidate:" + n + " 1 udp 2122260223 10.0.0.1 5000 typ host"}
}

type fakeTrack struct {
	webrtc.TrackLocal
	id   string
	kind webrtc.RTPCodecType

	mu      sync.Mutex
	enabled bool
	stops   int
}

func newFakeTrack(id string, kind webrtc.RTPCodecType) *fakeTrack {
	return &fakeTrack{id: id, kind: kind, enabled: true}
}

func (f *fakeTrack) ID() string                { return f.id }
func (f *fakeTrack) Kind() webrtc.RTPCodecType { return f.kind }

func (f *fakeTrack) Enabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled
}

func (f *fakeTrack) SetEnabled(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled = on
}

func (f *fakeTrack) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeTrack) Stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

type fakeCapturer struct {
	mu       sync.Mutex
	err      error
	videoErr error
	block    chan struct{}
	acquired []*core.LocalMedia
	videos   []*fakeTrack
	facings  []domain.FacingMode
	waiting  int
	n        int
}

func (f *fakeCapturer) Acquire(ctx context.Context, c core.Constraints) (*core.LocalMedia, error) {
	f.mu.Lock()
	block := f.block
	f.waiting++
	f.mu.Unlock()
	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.waiting--
	f.facings = append(f.facings, c.Facing)
	if f.err != nil {
		return nil, f.err
	}
	f.n++
	media := core.NewLocalMedia(
		newFakeTrack(fmt.Sprintf("audio-%d", f.n), webrtc.RTPCodecTypeAudio),
		newFakeTrack(fmt.Sprintf("video-%d", f.n), webrtc.RTPCodecTypeVideo),
	)
	f.acquired = append(f.acquired, media)
	return media, nil
}

func (f *fakeCapturer) AcquireVideo(ctx context.Context, c core.Constraints) (core.LocalTrack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.facings = append(f.facings, c.Facing)
	if f.videoErr != nil {
		return nil, f.videoErr
	}
	t := newFakeTrack("video-"+string(c.Facing), webrtc.RTPCodecTypeVideo)
	f.videos = append(f.videos, t)
	return t, nil
}

func (f *fakeCapturer) Acquired() []*core.LocalMedia {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*core.LocalMedia(nil), f.acquired...)
}

func (f *fakeCapturer) Waiting() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waiting
}

func (f *fakeCapturer) Facings() []domain.FacingMode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.FacingMode(nil), f.facings...)
}

// engineCalls records what the manager asked of an engine.
type engineCalls struct {
	offers      int
	iceRestarts int
	answers     int
	local       []webrtc.SessionDescription
	remote      []webrtc.SessionDescription
	candidates  []webrtc.ICECandidateInit
	tracks      []webrtc.TrackLocal
	replaced    []webrtc.TrackLocal
	closed      int

	// remoteCalls counts SetRemoteDescription entries, held or not.
	remoteCalls int
	// order interleaves "remote" with the candidate lines in the order applied.
	order []string
}

type fakeEngine struct {
	mu         sync.Mutex
	sid        string
	calls      engineCalls
	replaceErr error
	hold       chan struct{}
	remoteHold chan struct{}

	onICE   func(webrtc.ICECandidateInit)
	onState func(webrtc.PeerConnectionState)
	onTrack func(core.RemoteTrack)
}

func (e *fakeEngine) CreateOffer(iceRestart bool) (webrtc.SessionDescription, error) {
	if e.hold != nil {
		<-e.hold
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls.offers++
	if iceRestart {
		e.calls.iceRestarts++
	}
	return *description(webrtc.SDPTypeOffer), nil
}

func (e *fakeEngine) CreateAnswer() (webrtc.SessionDescription, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls.answers++
	return *description(webrtc.SDPTypeAnswer), nil
}

func (e *fakeEngine) SetLocalDescription(d webrtc.SessionDescription) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls.local = append(e.calls.local, d)
	return nil
}

func (e *fakeEngine) SetRemoteDescription(d webrtc.SessionDescription) error {
	e.mu.Lock()
	e.calls.remoteCalls++
	hold := e.remoteHold
	e.mu.Unlock()
	if hold != nil {
		<-hold
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls.remote = append(e.calls.remote, d)
	e.calls.order = append(e.calls.order, "remote")
	return nil
}

func (e *fakeEngine) AddICECandidate(c webrtc.ICECandidateInit) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls.candidates = append(e.calls.candidates, c)
	e.calls.order = append(e.calls.order, c.Candidate)
	return nil
}

// holdRemote blocks later SetRemoteDescription calls until release runs.
func (e *fakeEngine) holdRemote(t *testing.T) (release func()) {
	t.Helper()
	ch := make(chan struct{})
	e.mu.Lock()
	e.remoteHold = ch
	e.mu.Unlock()
	var once sync.Once
	release = func() { once.Do(func() { close(ch) }) }
	t.Cleanup(release)
	return release
}

func (e *fakeEngine) AddTrack(t webrtc.TrackLocal) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls.tracks = append(e.calls.tracks, t)
	return nil
}

func (e *fakeEngine) ReplaceTrack(_ webrtc.RTPCodecType, t webrtc.TrackLocal) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.replaceErr != nil {
		return e.replaceErr
	}
	e.calls.replaced = append(e.calls.replaced, t)
	return nil
}

func (e *fakeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls.closed++
	return nil
}

func (e *fakeEngine) OnTrack(fn func(core.RemoteTrack)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTrack = fn
}

func (e *fakeEngine) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onICE = fn
}

func (e *fakeEngine) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onState = fn
}

func (e *fakeEngine) bound() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.onICE != nil && e.onState != nil && e.onTrack != nil
}

func (e *fakeEngine) fireState(st webrtc.PeerConnectionState) {
	e.mu.Lock()
	fn := e.onState
	e.mu.Unlock()
	fn(st)
}

func (e *fakeEngine) fireICE(c webrtc.ICECandidateInit) {
	e.mu.Lock()
	fn := e.onICE
	e.mu.Unlock()
	fn(c)
}

func (e *fakeEngine) fireTrack(t core.RemoteTrack) {
	e.mu.Lock()
	fn := e.onTrack
	e.mu.Unlock()
	fn(t)
}

func (e *fakeEngine) snapshot() engineCalls {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.calls
	c.local = append([]webrtc.SessionDescription(nil), c.local...)
	c.remote = append([]webrtc.SessionDescription(nil), c.remote...)
	c.candidates = append([]webrtc.ICECandidateInit(nil), c.candidates...)
	c.tracks = append([]webrtc.TrackLocal(nil), c.tracks...)
	c.replaced = append([]webrtc.TrackLocal(nil), c.replaced...)
	c.order = append([]string(nil), c.order...)
	return c
}

type fakeFactory struct {
	mu      sync.Mutex
	err     error
	hold    chan struct{}
	engines []*fakeEngine
}

func (f *fakeFactory) NewEngine(sid string) (core.NegotiationEngine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	e := &fakeEngine{sid: sid, hold: f.hold}
	f.engines = append(f.engines, e)
	return e, nil
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.engines)
}

func (f *fakeFactory) last(t *testing.T) *fakeEngine {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.engines) == 0 {
		t.Fatal("no engine created")
	}
	return f.engines[len(f.engines)-1]
}

type fakeRemoteTrack struct {
	id   string
	kind webrtc.RTPCodecType
}

func (r fakeRemoteTrack) ID() string                { return r.id }
func (r fakeRemoteTrack) StreamID() string          { return "stream" }
func (r fakeRemoteTrack) Kind() webrtc.RTPCodecType { return r.kind }
func (r fakeRemoteTrack) Stats() core.TrackStats    { return core.TrackStats{Packets: 1} }

type fakeSignaler struct {
	mu   sync.Mutex
	err  error
	sent []proto.Message
}

func (f *fakeSignaler) Send(_ context.Context, msg proto.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSignaler) messages() []proto.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]proto.Message(nil), f.sent...)
}

func (f *fakeSignaler) events() string {
	var names []string
	for _, m := range f.messages() {
		names = append(names, string(m.Event))
	}
	return strings.Join(names, ",")
}

func (f *fakeSignaler) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fakeObserver struct {
	mu       sync.Mutex
	incoming []domain.UserID
	states   []webrtc.PeerConnectionState
	errs     []ErrorKind
	ended    []EndReason
}

func (o *fakeObserver) OnIncomingCall(peer domain.UserID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.incoming = append(o.incoming, peer)
}

func (o *fakeObserver) OnStateChanged(st webrtc.PeerConnectionState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, st)
}

func (o *fakeObserver) OnError(kind ErrorKind, _ string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs = append(o.errs, kind)
}

func (o *fakeObserver) OnEnded(reason EndReason) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ended = append(o.ended, reason)
}

func (o *fakeObserver) errors() []ErrorKind {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]ErrorKind(nil), o.errs...)
}

func (o *fakeObserver) endings() []EndReason {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]EndReason(nil), o.ended...)
}

func (o *fakeObserver) hasError(kind ErrorKind) bool {
	for _, k := range o.errors() {
		if k == kind {
			return true
		}
	}
	return false
}

type harness struct {
	m    *Manager
	stop func()

	sig *fakeSignaler
	cap *fakeCapturer
	eng *fakeFactory
	obs *fakeObserver
}

func newHarness(t *testing.T, opts ...func(*Options)) *harness {
	t.Helper()
	h := &harness{
		sig: &fakeSignaler{},
		cap: &fakeCapturer{},
		eng: &fakeFactory{},
		obs: &fakeObserver{},
	}
	o := Options{
		Self:            "me",
		Signaler:        h.sig,
		Capturer:        h.cap,
		Engines:         h.eng,
		Observer:        h.obs,
		DisconnectGrace: time.Second,
	}
	for _, fn := range opts {
		fn(&o)
	}
	h.m = NewManager(o)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = h.m.Run(ctx)
		close(done)
	}()
	var once sync.Once
	h.stop = func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
	t.Cleanup(h.stop)
	return h
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func (h *harness) status(t *testing.T) Status {
	t.Helper()
	st, err := h.m.Status(testCtx(t))
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	return st
}

func (h *harness) signal(event proto.Event, p proto.Payload) {
	h.m.HandleSignal(proto.Message{Event: event, Data: p})
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// connect drives an outgoing call to Connected and returns its engine.
func (h *harness) connect(t *testing.T, peer domain.UserID) *fakeEngine {
	t.Helper()
	if err := h.m.StartCall(testCtx(t), peer); err != nil {
		t.Fatalf("StartCall() error = %v", err)
	}
	e := h.eng.last(t)
	h.signal(proto.EventVideoAnswer, proto.Payload{From: peer, Answer: description(webrtc.SDPTypeAnswer)})
	eventually(t, "answer applied", func() bool { return len(e.snapshot().remote) == 1 })
	e.fireState(webrtc.PeerConnectionStateConnected)
	eventually(t, "connected", func() bool { return h.status(t).State == StateConnected.String() })
	return e
}

var errBoom = errors.New("boom")

func (f *fakeCapturer) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeCapturer) release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.block != nil {
		close(f.block)
		f.block = nil
	}
}

func trackOf(t *testing.T, lt core.LocalTrack) *fakeTrack {
	t.Helper()
	ft, ok := lt.(*fakeTrack)
	if !ok {
		t.Fatalf("track %T is not a fake", lt)
	}
	return ft
}
