package call

import (
	"context"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
)

var errSwitchPending = errors.New("camera switch already in progress")

// applyGates pushes the mute and camera flags onto the local tracks.
func (m *Manager) applyGates(s *Session) {
	if s.local == nil {
		return
	}
	if a := s.local.Audio(); a != nil {
		a.SetEnabled(!m.prefs.muted)
	}
	if v := s.local.Video(); v != nil {
		v.SetEnabled(m.prefs.cameraOn)
	}
}

func (m *Manager) toggleMute(ev event) {
	m.prefs.muted = !m.prefs.muted
	if m.sess != nil {
		m.applyGates(m.sess)
	}
	m.log.Info().Bool("muted", m.prefs.muted).Msg("microphone toggled")
	respond(ev.reply, result{flag: m.prefs.muted})
}

func (m *Manager) toggleCamera(ev event) {
	m.prefs.cameraOn = !m.prefs.cameraOn
	if m.sess != nil {
		m.applyGates(m.sess)
	}
	m.log.Info().Bool("camera_on", m.prefs.cameraOn).Msg("camera toggled")
	respond(ev.reply, result{flag: m.prefs.cameraOn})
}

// switchCamera opens the opposite camera first so a failure leaves the
// current video untouched.
func (m *Manager) switchCamera(ev event) {
	s := m.sess
	if s == nil || (s.state != StateConnected && s.state != StateNegotiating) || s.local == nil || s.engine == nil {
		state := StateIdle
		if s != nil {
			state = s.state
		}
		respond(ev.reply, result{err: newError(KindInvalidState, "switch camera",
			fmt.Errorf("no local video while %s", state))})
		return
	}
	if s.switching {
		respond(ev.reply, result{err: newError(KindInvalidState, "switch camera", errSwitchPending)})
		return
	}
	s.switching = true
	s.switchReply = ev.reply

	c := m.opts.Constraints
	c.Audio, c.Video = false, true
	c.Facing = m.prefs.facing.Opposite()
	capturer := m.opts.Capturer
	m.spawn(s, evCameraAcquired, func(ctx context.Context) event {
		track, err := capturer.AcquireVideo(ctx, c)
		return event{track: track, facing: c.Facing, err: err}
	})
}

func (m *Manager) onCameraAcquired(s *Session, ev event) {
	s.switching = false
	reply := s.switchReply
	s.switchReply = nil

	fail := func(err error) {
		e := newError(KindDeviceSwitch, "switch camera", err)
		m.report(e)
		respond(reply, result{err: e})
	}
	if ev.err != nil {
		fail(ev.err)
		return
	}
	if s.local == nil || s.engine == nil {
		_ = ev.track.Stop()
		fail(ErrInvalidState)
		return
	}

	ev.track.SetEnabled(m.prefs.cameraOn)
	if err := s.engine.ReplaceTrack(webrtc.RTPCodecTypeVideo, ev.track); err != nil {
		_ = ev.track.Stop()
		fail(err)
		return
	}
	if old := s.local.SwapVideo(ev.track); old != nil {
		if err := old.Stop(); err != nil {
			s.log.Warn().Err(err).Msg("stop previous camera")
		}
	}
	m.prefs.facing = ev.facing
	s.log.Info().Str("facing", string(ev.facing)).Msg("camera switched")
	respond(reply, result{})
}

func (m *Manager) onRemoteTrack(s *Session, ev event) {
	if !s.remoteApplied {
		s.log.Warn().Str("track", ev.remote.ID()).Msg("remote track before remote description dropped")
		return
	}
	s.remote = append(s.remote, ev.remote)
	s.log.Info().
		Str("track", ev.remote.ID()).
		Str("kind", ev.remote.Kind().String()).
		Msg("remote track")
}
