package rtc

import (
	"fmt"

	"github.com/dkeye/peercall/internal/config"
	"github.com/dkeye/peercall/internal/core"
	"github.com/pion/interceptor"
	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// CodecRegistrar fills a media engine with the codecs local capture produces.
type CodecRegistrar interface {
	Populate(*webrtc.MediaEngine)
}

// StaticCodecs registers VP8 and Opus only, for builds without capture encoders.
type StaticCodecs struct{}

func (StaticCodecs) Populate(m *webrtc.MediaEngine) {
	for _, c := range []struct {
		params webrtc.RTPCodecParameters
		kind   webrtc.RTPCodecType
	}{
		{webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:    webrtc.MimeTypeOpus,
				ClockRate:   48000,
				Channels:    2,
				SDPFmtpLine: "minptime=10;useinbandfec=1",
			},
			PayloadType: 111,
		}, webrtc.RTPCodecTypeAudio},
		{webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:  webrtc.MimeTypeVP8,
				ClockRate: 90000,
				RTCPFeedback: []webrtc.RTCPFeedback{
					{Type: "goog-remb"}, {Type: "ccm", Parameter: "fir"},
					{Type: "nack"}, {Type: "nack", Parameter: "pli"},
				},
			},
			PayloadType: 96,
		}, webrtc.RTPCodecTypeVideo},
	} {
		if err := m.RegisterCodec(c.params, c.kind); err != nil {
			log.Error().Err(err).Str("module", "webrtc").Str("mime", c.params.MimeType).Msg("register codec")
		}
	}
}

// Factory builds one peer connection per call session from a shared API.
type Factory struct {
	api    *webrtc.API
	config webrtc.Configuration
}

var _ core.EngineFactory = (*Factory)(nil)

func NewFactory(ice config.ICEConfig, codecs CodecRegistrar) (*Factory, error) {
	if codecs == nil {
		codecs = StaticCodecs{}
	}
	me := &webrtc.MediaEngine{}
	codecs.Populate(me)
	if err := me.RegisterHeaderExtension(
		webrtc.RTPHeaderExtensionCapability{URI: sdp.AudioLevelURI}, webrtc.RTPCodecTypeAudio,
	); err != nil {
		return nil, fmt.Errorf("register audio level extension: %w", err)
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(me, registry); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	se := webrtc.SettingEngine{}
	if ice.DisconnectedTimeout > 0 && ice.FailedTimeout > 0 && ice.KeepAliveInterval > 0 {
		se.SetICETimeouts(ice.DisconnectedTimeout, ice.FailedTimeout, ice.KeepAliveInterval)
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(me),
		webrtc.WithInterceptorRegistry(registry),
		webrtc.WithSettingEngine(se),
	)
	return &Factory{api: api, config: Configuration(ice)}, nil
}

func (f *Factory) NewEngine(sid string) (core.NegotiationEngine, error) {
	pc, err := f.api.NewPeerConnection(f.config)
	if err != nil {
		return nil, err
	}
	return newConnection(pc, sid), nil
}

// Configuration maps the network traversal settings onto a pion configuration.
func Configuration(ice config.ICEConfig) webrtc.Configuration {
	cfg := webrtc.Configuration{
		ICECandidatePoolSize: ice.CandidatePoolSize,
		BundlePolicy:         webrtc.BundlePolicyMaxBundle,
		RTCPMuxPolicy:        webrtc.RTCPMuxPolicyRequire,
	}
	if len(ice.Servers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: append([]string(nil), ice.Servers...)}}
	}
	switch ice.BundlePolicy {
	case "balanced":
		cfg.BundlePolicy = webrtc.BundlePolicyBalanced
	case "max-compat":
		cfg.BundlePolicy = webrtc.BundlePolicyMaxCompat
	}
	if ice.RTCPMuxPolicy == "negotiate" {
		cfg.RTCPMuxPolicy = webrtc.RTCPMuxPolicyNegotiate
	}
	return cfg
}
