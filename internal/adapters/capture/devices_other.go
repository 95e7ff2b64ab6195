//go:build !linux

package capture

import (
	"context"

	"github.com/dkeye/peercall/internal/adapters/rtc"
	"github.com/dkeye/peercall/internal/config"
	"github.com/dkeye/peercall/internal/core"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// Capturer is a placeholder on platforms without the V4L2 and malgo drivers.
type Capturer struct{}

var _ core.MediaCapturer = (*Capturer)(nil)

func NewCapturer(config.CaptureConfig) (*Capturer, error) {
	log.Warn().Str("module", "capture").Msg("no capture drivers on this platform, calls cannot acquire media")
	return &Capturer{}, nil
}

func (*Capturer) Populate(m *webrtc.MediaEngine) {
	rtc.StaticCodecs{}.Populate(m)
}

func (*Capturer) Acquire(context.Context, core.Constraints) (*core.LocalMedia, error) {
	return nil, ErrUnsupported
}

func (*Capturer) AcquireVideo(context.Context, core.Constraints) (core.LocalTrack, error) {
	return nil, ErrUnsupported
}
