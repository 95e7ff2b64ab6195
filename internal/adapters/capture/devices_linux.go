//go:build linux

package capture

import (
	"context"
	"fmt"

	"github.com/dkeye/peercall/internal/config"
	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Capturer opens camera and microphone through V4L2 and malgo and encodes
// them as VP8 and Opus.
type Capturer struct {
	selector *mediadevices.CodecSelector
	front    string
	back     string
	log      zerolog.Logger
}

var _ core.MediaCapturer = (*Capturer)(nil)

func NewCapturer(cfg config.CaptureConfig) (*Capturer, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("vp8 params: %w", err)
	}
	if cfg.VideoBitrate > 0 {
		vpxParams.BitRate = cfg.VideoBitrate
	}
	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("opus params: %w", err)
	}

	c := &Capturer{
		selector: mediadevices.NewCodecSelector(
			mediadevices.WithVideoEncoders(&vpxParams),
			mediadevices.WithAudioEncoders(&opusParams),
		),
		front: cfg.FrontDevice,
		back:  cfg.BackDevice,
		log:   log.With().Str("module", "capture").Logger(),
	}
	for _, d := range mediadevices.EnumerateDevices() {
		c.log.Info().Str("kind", deviceKind(d.Kind)).Str("label", d.Label).Str("id", d.DeviceID).Msg("media device")
	}
	return c, nil
}

// Populate registers exactly the codecs the encoders produce.
func (c *Capturer) Populate(m *webrtc.MediaEngine) {
	c.selector.Populate(m)
}

func (c *Capturer) Acquire(ctx context.Context, cons core.Constraints) (*core.LocalMedia, error) {
	tracks, err := c.open(ctx, cons)
	if err != nil {
		return nil, err
	}
	var audio, video core.LocalTrack
	for _, t := range tracks {
		switch t.Kind() {
		case webrtc.RTPCodecTypeAudio:
			audio = t
		case webrtc.RTPCodecTypeVideo:
			video = t
		}
	}
	if (cons.Audio && audio == nil) || (cons.Video && video == nil) {
		closeAll(tracks)
		return nil, ErrTrackMissing
	}
	c.log.Info().Int("tracks", len(tracks)).Str("facing", string(cons.Facing)).Msg("local media captured")
	return core.NewLocalMedia(audio, video), nil
}

func (c *Capturer) AcquireVideo(ctx context.Context, cons core.Constraints) (core.LocalTrack, error) {
	cons.Audio, cons.Video = false, true
	tracks, err := c.open(ctx, cons)
	if err != nil {
		return nil, err
	}
	for _, t := range tracks {
		if t.Kind() == webrtc.RTPCodecTypeVideo {
			c.log.Info().Str("facing", string(cons.Facing)).Str("track_id", t.ID()).Msg("camera opened")
			return t, nil
		}
	}
	closeAll(tracks)
	return nil, ErrTrackMissing
}

func (c *Capturer) open(ctx context.Context, cons core.Constraints) ([]*gatedTrack, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mc := mediadevices.MediaStreamConstraints{Codec: c.selector}
	if cons.Video {
		deviceID, err := c.deviceFor(cons.Facing)
		if err != nil {
			return nil, err
		}
		mc.Video = func(t *mediadevices.MediaTrackConstraints) {
			// raw formats only; some MJPEG nodes emit frames the VP8 encoder chokes on
			t.FrameFormat = prop.FrameFormatOneOf{
				frame.FormatYUYV,
				frame.FormatI420,
				frame.FormatI444,
				frame.FormatRGBA,
			}
			t.Width = prop.IntRanged{Min: cons.Width.Min, Ideal: cons.Width.Ideal, Max: cons.Width.Max}
			t.Height = prop.IntRanged{Min: cons.Height.Min, Ideal: cons.Height.Ideal, Max: cons.Height.Max}
			t.FrameRate = prop.FloatRanged{Min: cons.FrameRate.Min, Ideal: cons.FrameRate.Ideal, Max: cons.FrameRate.Max}
			if deviceID != "" {
				t.DeviceID = prop.String(deviceID)
			}
		}
	}
	if cons.Audio {
		mc.Audio = func(t *mediadevices.MediaTrackConstraints) {
			if cons.SampleRate > 0 {
				t.SampleRate = prop.Int(cons.SampleRate)
			}
			if cons.ChannelCount > 0 {
				t.ChannelCount = prop.Int(cons.ChannelCount)
			}
		}
	}

	stream, err := mediadevices.GetUserMedia(mc)
	if err != nil {
		return nil, fmt.Errorf("get user media: %w", err)
	}
	var tracks []*gatedTrack
	for _, t := range stream.GetTracks() {
		t.OnEnded(func(err error) {
			if err != nil {
				c.log.Warn().Err(err).Str("kind", t.Kind().String()).Msg("local track ended")
			}
		})
		tracks = append(tracks, newGatedTrack(t))
	}
	// the caller may have given up while the device was opening
	if err := ctx.Err(); err != nil {
		closeAll(tracks)
		return nil, err
	}
	return tracks, nil
}

// deviceFor maps a facing mode to a camera: the configured device when
// set, otherwise the first video input for user and the second for environment.
func (c *Capturer) deviceFor(facing domain.FacingMode) (string, error) {
	want := c.front
	index := 0
	if facing == domain.FacingEnvironment {
		want, index = c.back, 1
	}

	var cams []mediadevices.MediaDeviceInfo
	for _, d := range mediadevices.EnumerateDevices() {
		if d.Kind == mediadevices.VideoInput {
			cams = append(cams, d)
		}
	}
	if want != "" {
		for _, d := range cams {
			if d.DeviceID == want || d.Label == want {
				return d.DeviceID, nil
			}
		}
		return "", fmt.Errorf("%w: %s camera %q not found", ErrNoCamera, facing, want)
	}
	if index < len(cams) {
		return cams[index].DeviceID, nil
	}
	if index == 0 {
		// let the driver pick
		return "", nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoCamera, facing)
}

func deviceKind(k mediadevices.MediaDeviceType) string {
	switch k {
	case mediadevices.VideoInput:
		return "video_input"
	case mediadevices.AudioInput:
		return "audio_input"
	default:
		return "unknown"
	}
}

func closeAll(tracks []*gatedTrack) {
	for _, t := range tracks {
		_ = t.Stop()
	}
}
