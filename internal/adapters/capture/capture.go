package capture

import (
	"errors"

	"github.com/dkeye/peercall/internal/config"
	"github.com/dkeye/peercall/internal/core"
)

var (
	ErrUnsupported  = errors.New("local capture is not supported on this platform")
	ErrNoCamera     = errors.New("no camera for requested facing mode")
	ErrTrackMissing = errors.New("requested track not produced")
)

// Constraints builds the capture template from configuration.
func Constraints(cfg config.CaptureConfig) core.Constraints {
	return core.Constraints{
		Width:        core.IntRange(cfg.Width),
		Height:       core.IntRange(cfg.Height),
		FrameRate:    core.FloatRange{Min: float32(cfg.FrameRate.Min), Ideal: float32(cfg.FrameRate.Ideal), Max: float32(cfg.FrameRate.Max)},
		SampleRate:   cfg.SampleRate,
		ChannelCount: cfg.ChannelCount,
	}
}
