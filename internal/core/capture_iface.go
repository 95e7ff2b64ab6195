package core

import (
	"context"

	"github.com/dkeye/peercall/internal/domain"
	"github.com/pion/webrtc/v4"
)

type IntRange struct {
	Min, Ideal, Max int
}

type FloatRange struct {
	Min, Ideal, Max float32
}

// Constraints describe what to capture. Audio processing flags are requests;
// drivers without the feature ignore them.
type Constraints struct {
	Audio  bool
	Video  bool
	Facing domain.FacingMode

	Width     IntRange
	Height    IntRange
	FrameRate FloatRange

	SampleRate   int
	ChannelCount int
}

// LocalTrack is a captured track whose outgoing flow can be gated.
type LocalTrack interface {
	webrtc.TrackLocal
	Enabled() bool
	SetEnabled(bool)
	// Stop releases the capture device; repeated calls are no-ops.
	Stop() error
}

type MediaCapturer interface {
	// Acquire opens audio and video per c.
	Acquire(ctx context.Context, c Constraints) (*LocalMedia, error)
	// AcquireVideo opens a single video track, used for camera switches.
	AcquireVideo(ctx context.Context, c Constraints) (LocalTrack, error)
}
